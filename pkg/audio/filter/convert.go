// ABOUTME: Conversion filter whose output format is chosen after opening
// ABOUTME: Sits at the end of an output chain, set once the device negotiated
package filter

import (
	"fmt"

	"github.com/Resonate-Protocol/playd/pkg/audio"
	"github.com/Resonate-Protocol/playd/pkg/audio/pcm"
	"github.com/Resonate-Protocol/playd/pkg/audio/resample"
)

// Convert converts from its input format to whatever Set selects. Until Set
// is called it passes audio through.
type Convert struct {
	kind resample.Kind
	in   audio.Format
	out  audio.Format
	conv *pcm.Converter
}

// NewConvert creates a conversion filter using the given resampler
func NewConvert(kind resample.Kind) *Convert {
	return &Convert{kind: kind}
}

// Open accepts any valid format and initially outputs it unchanged
func (c *Convert) Open(in *audio.Format) (audio.Format, error) {
	if !in.Valid() {
		return audio.Format{}, fmt.Errorf("convert: %s: %w", in, audio.ErrInvalidFormat)
	}
	c.in = *in
	c.out = *in
	c.conv = nil
	return *in, nil
}

// Set selects the output format
func (c *Convert) Set(out audio.Format) error {
	if out == c.out {
		return nil
	}

	if out == c.in {
		c.closeConverter()
		c.out = out
		return nil
	}

	conv := pcm.NewConverter(c.kind)
	if err := conv.Open(c.in, out); err != nil {
		return fmt.Errorf("convert %s to %s: %w", c.in, out, err)
	}

	c.closeConverter()
	c.conv = conv
	c.out = out
	return nil
}

// Output returns the currently selected output format
func (c *Convert) Output() audio.Format {
	return c.out
}

func (c *Convert) Filter(src []byte) ([]byte, error) {
	if c.conv == nil {
		return src, nil
	}
	return c.conv.Convert(src)
}

func (c *Convert) Reset() {
	if c.conv != nil {
		c.conv.Reset()
	}
}

func (c *Convert) Close() {
	c.closeConverter()
}

func (c *Convert) closeConverter() {
	if c.conv != nil {
		c.conv.Close()
		c.conv = nil
	}
}
