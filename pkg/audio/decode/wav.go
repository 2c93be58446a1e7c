// ABOUTME: WAV and AIFF decoder plugins built on go-audio
// ABOUTME: Integer PCM only; samples are repacked into little-endian frames
package decode

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/go-audio/aiff"
	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/Resonate-Protocol/playd/pkg/audio"
)

// wavFormatPCM is the WAVE_FORMAT_PCM format tag
const wavFormatPCM = 1

// samplesPerRead is the number of samples requested from go-audio at once
const samplesPerRead = 4096

var wavPlugin = Plugin{
	Name:     "wav",
	Suffixes: []string{"wav", "wave"},
	Decode:   decodeWAV,
}

var aiffPlugin = Plugin{
	Name:     "aiff",
	Suffixes: []string{"aiff", "aif"},
	Decode:   decodeAIFF,
}

// intReader is the part of the go-audio decoders the plugins use
type intReader interface {
	Format() *goaudio.Format
	PCMBuffer(buf *goaudio.IntBuffer) (int, error)
}

func intSampleFormat(bits int) (audio.SampleFormat, error) {
	switch bits {
	case 8:
		return audio.FormatS8, nil
	case 16:
		return audio.FormatS16, nil
	case 24:
		return audio.FormatS24P32, nil
	case 32:
		return audio.FormatS32, nil
	}
	return audio.FormatUndefined, fmt.Errorf("%d bit samples: %w", bits, audio.ErrInvalidFormat)
}

func decodeWAV(ctx context.Context, r io.ReadSeeker, client Client) error {
	d := wav.NewDecoder(r)
	if !d.IsValidFile() {
		return fmt.Errorf("not a valid wav file")
	}
	if d.WavAudioFormat != wavFormatPCM {
		return fmt.Errorf("wav format tag %d: %w", d.WavAudioFormat, audio.ErrUnsupportedConversion)
	}

	if err := d.FwdToPCM(); err != nil {
		return fmt.Errorf("wav data chunk: %w", err)
	}
	if err := d.Err(); err != nil {
		return fmt.Errorf("wav header: %w", err)
	}

	// the RIFF size includes the headers, so the length comes from the data chunk
	var duration time.Duration
	if frameSize := int64(d.NumChans) * int64((d.BitDepth+7)/8); frameSize > 0 {
		duration = framesDuration(d.PCMLen()/frameSize, int(d.SampleRate))
	}

	// 8 bit WAV samples are unsigned
	return decodeInt(ctx, d, int(d.BitDepth), duration, d.BitDepth == 8, client)
}

func decodeAIFF(ctx context.Context, r io.ReadSeeker, client Client) error {
	d := aiff.NewDecoder(r)
	if !d.IsValidFile() {
		return fmt.Errorf("not a valid aiff file")
	}

	d.ReadInfo()
	if err := d.Err(); err != nil {
		return fmt.Errorf("aiff header: %w", err)
	}
	duration := framesDuration(int64(d.NumSampleFrames), int(d.SampleRate))

	return decodeInt(ctx, d, int(d.BitDepth), duration, false, client)
}

// framesDuration is the play time of frames at rate, zero when rate is unknown
func framesDuration(frames int64, rate int) time.Duration {
	if rate <= 0 || frames <= 0 {
		return 0
	}
	return time.Duration(frames) * time.Second / time.Duration(rate)
}

func decodeInt(ctx context.Context, d intReader, bits int, duration time.Duration, unsigned bool, client Client) error {
	f := d.Format()
	if f == nil {
		return fmt.Errorf("missing format chunk: %w", audio.ErrInvalidFormat)
	}

	sampleFormat, err := intSampleFormat(bits)
	if err != nil {
		return err
	}
	format := audio.NewFormat(uint32(f.SampleRate), sampleFormat, uint8(f.NumChannels))
	if !format.Valid() {
		return fmt.Errorf("%d Hz, %d channels: %w", f.SampleRate, f.NumChannels, audio.ErrInvalidFormat)
	}

	client.Ready(format, true, duration)

	size := sampleFormat.Size()
	buf := &goaudio.IntBuffer{
		Data:           make([]int, samplesPerRead*int(format.Channels)),
		Format:         f,
		SourceBitDepth: bits,
	}
	out := make([]byte, len(buf.Data)*size)

	for {
		if ctx.Err() != nil {
			return nil
		}

		n, err := d.PCMBuffer(buf)
		if n == 0 {
			if err != nil && !errors.Is(err, io.EOF) {
				return fmt.Errorf("pcm read error: %w", err)
			}
			return nil
		}

		pos := 0
		for _, v := range buf.Data[:n] {
			if unsigned {
				v -= 128
			}
			switch size {
			case 1:
				out[pos] = byte(int8(v))
			case 2:
				binary.LittleEndian.PutUint16(out[pos:], uint16(int16(v)))
			default:
				binary.LittleEndian.PutUint32(out[pos:], uint32(int32(v)))
			}
			pos += size
		}

		if client.Data(out[:pos], 0) == CommandStop {
			return nil
		}
		if err != nil && !errors.Is(err, io.EOF) {
			return fmt.Errorf("pcm read error: %w", err)
		}
	}
}
