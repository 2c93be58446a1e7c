// ABOUTME: Fixed point software volume
// ABOUTME: 1024 is unity; rounding uses triangular noise
package pcm

import (
	"fmt"

	"github.com/Resonate-Protocol/playd/pkg/audio"
)

const (
	// VolumeBits is the fixed point precision of a volume value
	VolumeBits = 10
	// VolumeOne is the unity volume
	VolumeOne = 1 << VolumeBits
)

// FloatToVolume converts a linear factor to a fixed point volume
func FloatToVolume(f float64) int {
	return int(f*VolumeOne + 0.5)
}

// ApplyVolume scales buf in place using a fresh dither state
func ApplyVolume(buf []byte, format audio.SampleFormat, volume int) error {
	var d Dither
	return d.ApplyVolume(buf, format, volume)
}

// ApplyVolume scales buf in place. VolumeOne leaves it untouched and a
// volume of zero or less silences it.
func (d *Dither) ApplyVolume(buf []byte, format audio.SampleFormat, volume int) error {
	if volume == VolumeOne {
		return nil
	}

	if volume <= 0 {
		clear(buf)
		return nil
	}

	if format == audio.FormatDSD || format == audio.FormatUndefined {
		return fmt.Errorf("software volume on %s: %w", describe(format), audio.ErrUnsupportedConversion)
	}

	n := len(buf) / format.Size()

	if format == audio.FormatFloat {
		factor := float32(volume) / VolumeOne
		for i := 0; i < n; i++ {
			putF32(buf, i, getF32(buf, i)*factor)
		}
		return nil
	}

	vol := int64(volume)
	for i := 0; i < n; i++ {
		s := getInt(format, buf, i)
		v := (s*vol + d.nextNoise() + VolumeOne/2) >> VolumeBits
		putInt(format, buf, i, v)
	}

	return nil
}
