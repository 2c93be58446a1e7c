// ABOUTME: Full PCM conversion pipeline between two audio formats
// ABOUTME: Sample format, then channels, then sample rate
package pcm

import (
	"fmt"

	"github.com/Resonate-Protocol/playd/pkg/audio"
	"github.com/Resonate-Protocol/playd/pkg/audio/resample"
)

// Converter converts a stream from one audio format to another. Its state
// is created at Open and discarded at Close.
type Converter struct {
	kind resample.Kind

	src audio.Format
	dst audio.Format

	dither Dither

	formatBuf   Buffer
	channelBuf  Buffer
	resampleBuf Buffer

	fallback *resample.FallbackResampler
	interp   *resample.Resampler
	floats   []float32
}

// NewConverter creates a converter using the given resampling backend
func NewConverter(kind resample.Kind) *Converter {
	return &Converter{kind: kind}
}

// Open prepares the conversion from src to dst. Both must be valid formats.
func (c *Converter) Open(src, dst audio.Format) error {
	if !src.Valid() {
		return fmt.Errorf("invalid source format %s: %w", src, audio.ErrInvalidFormat)
	}
	if !dst.Valid() {
		return fmt.Errorf("invalid destination format %s: %w", dst, audio.ErrInvalidFormat)
	}

	if !CanConvertFormat(src.Format, dst.Format) {
		return unsupported(src.Format, dst.Format)
	}
	if !CanConvertChannels(dst.Format, int(src.Channels), int(dst.Channels)) {
		return fmt.Errorf("conversion from %d to %d channels is not implemented: %w",
			src.Channels, dst.Channels, audio.ErrUnsupportedConversion)
	}

	c.fallback = nil
	c.interp = nil

	if src.SampleRate != dst.SampleRate {
		if dst.Format == audio.FormatDSD {
			return fmt.Errorf("resampling dsd: %w", audio.ErrUnsupportedConversion)
		}

		if c.kind == resample.Fallback || dst.Format == audio.FormatS8 {
			c.fallback = resample.NewFallback(dst.FrameSize(), src.SampleRate, dst.SampleRate)
		} else {
			r, err := resample.New(c.kind, int(src.SampleRate), int(dst.SampleRate), int(dst.Channels))
			if err != nil {
				return fmt.Errorf("failed to create resampler: %w", err)
			}
			c.interp = r
		}
	}

	c.src = src
	c.dst = dst
	c.dither.Reset()

	return nil
}

// Source returns the input format given to Open
func (c *Converter) Source() audio.Format {
	return c.src
}

// Destination returns the output format given to Open
func (c *Converter) Destination() audio.Format {
	return c.dst
}

// Convert converts one buffer. The result may alias src (when nothing needs
// converting) or an internal buffer valid until the next call.
func (c *Converter) Convert(src []byte) ([]byte, error) {
	buf, err := c.dither.ConvertFormat(&c.formatBuf, c.src.Format, c.dst.Format, src)
	if err != nil {
		return nil, err
	}

	buf, err = ConvertChannels(&c.channelBuf, c.dst.Format, int(c.src.Channels), int(c.dst.Channels), buf)
	if err != nil {
		return nil, err
	}

	switch {
	case c.fallback != nil:
		buf = c.fallback.Resample(buf)
	case c.interp != nil:
		c.floats = ToFloat32(c.dst.Format, buf, c.floats)
		buf = FromFloat32(&c.resampleBuf, c.dst.Format, c.interp.Resample(c.floats))
	}

	return buf, nil
}

// Reset drops dither and resampler history, e.g. after a seek
func (c *Converter) Reset() {
	c.dither.Reset()
	if c.interp != nil {
		c.interp.Reset()
	}
}

// Close releases the conversion buffers
func (c *Converter) Close() {
	c.formatBuf.Clear()
	c.channelBuf.Clear()
	c.resampleBuf.Clear()
	c.fallback = nil
	c.interp = nil
	c.floats = nil
}
