// ABOUTME: Cross-fade mixing of two PCM buffers
// ABOUTME: Equal-power sin² curve, or plain addition for MixRamp
package pcm

import (
	"fmt"
	"math"

	"github.com/Resonate-Protocol/playd/pkg/audio"
)

// Mix blends src into dst using a fresh dither state
func Mix(dst, src []byte, format audio.SampleFormat, portion float64) error {
	var d Dither
	return d.Mix(dst, src, format, portion)
}

// Mix blends src into dst in place. portion is the share of dst in [0, 1];
// NaN or a negative portion (MixRamp) adds both buffers with clamping. Only
// the common length is mixed.
func (d *Dither) Mix(dst, src []byte, format audio.SampleFormat, portion float64) error {
	if format == audio.FormatDSD || format == audio.FormatUndefined {
		return fmt.Errorf("mixing %s: %w", describe(format), audio.ErrUnsupportedConversion)
	}

	size := len(dst)
	if len(src) < size {
		size = len(src)
	}
	n := size / format.Size()

	if math.IsNaN(portion) || portion < 0 {
		if format == audio.FormatFloat {
			for i := 0; i < n; i++ {
				putF32(dst, i, getF32(dst, i)+getF32(src, i))
			}
			return nil
		}
		for i := 0; i < n; i++ {
			putInt(format, dst, i, getInt(format, dst, i)+getInt(format, src, i))
		}
		return nil
	}

	s := math.Sin(math.Pi / 2 * portion)
	s *= s

	if format == audio.FormatFloat {
		v1 := float32(s)
		v2 := float32(1 - s)
		for i := 0; i < n; i++ {
			putF32(dst, i, getF32(dst, i)*v1+getF32(src, i)*v2)
		}
		return nil
	}

	vol1 := int64(s*VolumeOne + 0.5)
	if vol1 < 0 {
		vol1 = 0
	} else if vol1 > VolumeOne {
		vol1 = VolumeOne
	}
	vol2 := VolumeOne - vol1

	for i := 0; i < n; i++ {
		a := getInt(format, dst, i)
		b := getInt(format, src, i)
		v := (a*vol1 + b*vol2 + d.nextNoise() + VolumeOne/2) >> VolumeBits
		putInt(format, dst, i, v)
	}

	return nil
}
