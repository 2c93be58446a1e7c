// ABOUTME: FLAC decoder plugin
// ABOUTME: Decodes FLAC frames with mewkiz/flac and reads Vorbis comments
package decode

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/mewkiz/flac"
	"github.com/mewkiz/flac/meta"

	"github.com/Resonate-Protocol/playd/pkg/audio"
)

var flacPlugin = Plugin{
	Name:     "flac",
	Suffixes: []string{"flac"},
	Decode:   decodeFLAC,
}

// flacSampleFormat picks the narrowest container for a bit depth and the
// left shift that scales samples to it
func flacSampleFormat(bits int) (audio.SampleFormat, uint) {
	switch {
	case bits <= 8:
		return audio.FormatS8, uint(8 - bits)
	case bits <= 16:
		return audio.FormatS16, uint(16 - bits)
	case bits <= 24:
		return audio.FormatS24P32, uint(24 - bits)
	}
	return audio.FormatS32, uint(32 - bits)
}

func decodeFLAC(ctx context.Context, r io.ReadSeeker, client Client) error {
	stream, err := flac.Parse(r)
	if err != nil {
		return fmt.Errorf("failed to parse flac stream: %w", err)
	}

	info := stream.Info
	sampleFormat, shift := flacSampleFormat(int(info.BitsPerSample))
	format := audio.NewFormat(info.SampleRate, sampleFormat, info.NChannels)
	if !format.Valid() {
		return fmt.Errorf("flac stream %d:%d:%d: %w",
			info.SampleRate, info.BitsPerSample, info.NChannels, audio.ErrInvalidFormat)
	}

	var duration time.Duration
	if info.NSamples > 0 && info.SampleRate > 0 {
		duration = time.Duration(info.NSamples) * time.Second / time.Duration(info.SampleRate)
	}

	// seeking restarts the stream, so a seekable reader is enough
	client.Ready(format, true, duration)

	md := newComments()
	for _, block := range stream.Blocks {
		if vc, ok := block.Body.(*meta.VorbisComment); ok {
			for _, kv := range vc.Tags {
				md.add(kv[0], kv[1])
			}
		}
	}
	if md.submit(client) == CommandStop {
		return nil
	}

	sampleSize := sampleFormat.Size()
	var buf []byte
	for {
		if ctx.Err() != nil {
			return nil
		}

		frame, err := stream.ParseNext()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("flac decode error: %w", err)
		}

		channels := len(frame.Subframes)
		if channels != int(format.Channels) {
			return fmt.Errorf("flac frame has %d channels, stream has %d", channels, format.Channels)
		}

		blockSize := int(frame.BlockSize)
		need := blockSize * channels * sampleSize
		if cap(buf) < need {
			buf = make([]byte, need)
		}
		buf = buf[:need]

		pos := 0
		for i := 0; i < blockSize; i++ {
			for ch := 0; ch < channels; ch++ {
				s := frame.Subframes[ch].Samples[i] << shift
				switch sampleSize {
				case 1:
					buf[pos] = byte(int8(s))
				case 2:
					binary.LittleEndian.PutUint16(buf[pos:], uint16(int16(s)))
				default:
					binary.LittleEndian.PutUint32(buf[pos:], uint32(s))
				}
				pos += sampleSize
			}
		}

		if client.Data(buf, 0) == CommandStop {
			return nil
		}
	}
}
