// ABOUTME: Channel remixing for interleaved PCM
// ABOUTME: Supports mono to stereo, stereo to mono and N to stereo
package pcm

import (
	"fmt"

	"github.com/Resonate-Protocol/playd/pkg/audio"
)

// CanConvertChannels reports whether ConvertChannels supports the pair
func CanConvertChannels(format audio.SampleFormat, from, to int) bool {
	if from == to {
		return true
	}
	if !isInteger(format) && format != audio.FormatFloat {
		return false
	}
	if format == audio.FormatS8 {
		return false
	}
	return to == 2 || (from == 2 && to == 1)
}

// ConvertChannels remixes interleaved samples from one channel count to
// another. Equal counts return src unchanged.
func ConvertChannels(buf *Buffer, format audio.SampleFormat, from, to int, src []byte) ([]byte, error) {
	if from == to {
		return src, nil
	}
	if !CanConvertChannels(format, from, to) {
		return nil, fmt.Errorf("conversion from %d to %d channels (%s) is not implemented: %w",
			from, to, describe(format), audio.ErrUnsupportedConversion)
	}

	frames := len(src) / (format.Size() * from)
	dst := buf.Get(frames * to * format.Size())

	if format == audio.FormatFloat {
		for f := 0; f < frames; f++ {
			var sum float32
			for c := 0; c < from; c++ {
				sum += getF32(src, f*from+c)
			}
			v := sum / float32(from)
			for c := 0; c < to; c++ {
				putF32(dst, f*to+c, v)
			}
		}
		return dst, nil
	}

	for f := 0; f < frames; f++ {
		var sum int64
		for c := 0; c < from; c++ {
			sum += getInt(format, src, f*from+c)
		}
		// Go division truncates toward zero
		v := sum / int64(from)
		for c := 0; c < to; c++ {
			putInt(format, dst, f*to+c, v)
		}
	}

	return dst, nil
}
