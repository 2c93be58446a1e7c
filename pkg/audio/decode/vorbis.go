// ABOUTME: Ogg Vorbis decoder plugin
// ABOUTME: Decodes to interleaved 32-bit float PCM with jfreymuth/oggvorbis
package decode

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"time"

	"github.com/jfreymuth/oggvorbis"

	"github.com/Resonate-Protocol/playd/pkg/audio"
)

// vorbisFramesPerRead is the number of frames decoded per Read call
const vorbisFramesPerRead = 1024

var vorbisPlugin = Plugin{
	Name:     "vorbis",
	Suffixes: []string{"ogg", "oga"},
	Decode:   decodeVorbis,
}

func decodeVorbis(ctx context.Context, r io.ReadSeeker, client Client) error {
	reader, err := oggvorbis.NewReader(r)
	if err != nil {
		return fmt.Errorf("failed to create vorbis decoder: %w", err)
	}

	rate := reader.SampleRate()
	channels := reader.Channels()
	format := audio.NewFormat(uint32(rate), audio.FormatFloat, uint8(channels))
	if rate <= 0 || channels <= 0 || !format.Valid() {
		return fmt.Errorf("vorbis stream %d Hz, %d channels: %w", rate, channels, audio.ErrInvalidFormat)
	}

	var duration time.Duration
	if n := reader.Length(); n > 0 {
		duration = time.Duration(n) * time.Second / time.Duration(rate)
	}

	client.Ready(format, true, duration)

	md := newComments()
	for _, c := range reader.CommentHeader().Comments {
		md.addPair(c)
	}
	if md.submit(client) == CommandStop {
		return nil
	}

	samples := make([]float32, vorbisFramesPerRead*channels)
	out := make([]byte, len(samples)*4)
	for {
		if ctx.Err() != nil {
			return nil
		}

		n, err := reader.Read(samples)
		if n > 0 {
			for i, v := range samples[:n] {
				binary.LittleEndian.PutUint32(out[i*4:], math.Float32bits(v))
			}
			if client.Data(out[:n*4], 0) == CommandStop {
				return nil
			}
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("vorbis decode error: %w", err)
		}
	}
}
