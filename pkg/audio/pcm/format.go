// ABOUTME: Sample format conversion between 8/16/24/32 bit integer and float
// ABOUTME: Reductions to 16 bit are dithered; 8 bit and DSD targets are rejected
package pcm

import (
	"github.com/Resonate-Protocol/playd/pkg/audio"
)

// CanConvertFormat reports whether ConvertFormat supports from -> to
func CanConvertFormat(from, to audio.SampleFormat) bool {
	if from == to {
		return true
	}
	if from == audio.FormatDSD || from == audio.FormatUndefined {
		return false
	}
	switch to {
	case audio.FormatS16, audio.FormatS24P32, audio.FormatS32, audio.FormatFloat:
		return true
	}
	return false
}

// ConvertFormat converts src from one sample format to another. Unless the
// formats are equal (src is returned as is) the result lives in buf.
func (d *Dither) ConvertFormat(buf *Buffer, from, to audio.SampleFormat, src []byte) ([]byte, error) {
	if from == to {
		return src, nil
	}
	if !CanConvertFormat(from, to) {
		return nil, unsupported(from, to)
	}

	n := len(src) / from.Size()
	dst := buf.Get(n * to.Size())

	switch to {
	case audio.FormatS16:
		for i := 0; i < n; i++ {
			var v int32
			switch from {
			case audio.FormatS8:
				v = int32(int8(src[i])) << 8
			case audio.FormatS24P32:
				v = d.Dither24To16(getS32(src, i))
			case audio.FormatS32:
				v = d.Dither32To16(getS32(src, i))
			case audio.FormatFloat:
				v = int32(floatToInt(getF32(src, i), 16))
			}
			putS16(dst, i, v)
		}

	case audio.FormatS24P32:
		for i := 0; i < n; i++ {
			var v int32
			switch from {
			case audio.FormatS8:
				v = int32(int8(src[i])) << 16
			case audio.FormatS16:
				v = getS16(src, i) << 8
			case audio.FormatS32:
				v = getS32(src, i) >> 8
			case audio.FormatFloat:
				v = int32(floatToInt(getF32(src, i), 24))
			}
			putS32(dst, i, v)
		}

	case audio.FormatS32:
		for i := 0; i < n; i++ {
			var v int32
			switch from {
			case audio.FormatS8:
				v = int32(int8(src[i])) << 24
			case audio.FormatS16:
				v = getS16(src, i) << 16
			case audio.FormatS24P32:
				v = getS32(src, i) << 8
			case audio.FormatFloat:
				v = int32(floatToInt(getF32(src, i), 24)) << 8
			}
			putS32(dst, i, v)
		}

	case audio.FormatFloat:
		bits := from.Bits()
		for i := 0; i < n; i++ {
			putF32(dst, i, intToFloat(getInt(from, src, i), bits))
		}
	}

	return dst, nil
}

// floatToInt scales a float sample in [-1, 1) to a signed integer of bits
// bits, clamping out of range values
func floatToInt(f float32, bits int) int64 {
	limit := int64(1) << (bits - 1)
	v := int64(float64(f) * float64(limit))
	if v < -limit {
		return -limit
	}
	if v > limit-1 {
		return limit - 1
	}
	return v
}

func intToFloat(s int64, bits int) float32 {
	return float32(float64(s) * (0.5 / float64(int64(1)<<(bits-2))))
}

// ToFloat32 converts a buffer of any integer or float format to float32 samples
func ToFloat32(format audio.SampleFormat, src []byte, out []float32) []float32 {
	n := len(src) / format.Size()
	out = out[:0]
	if format == audio.FormatFloat {
		for i := 0; i < n; i++ {
			out = append(out, getF32(src, i))
		}
		return out
	}

	bits := format.Bits()
	for i := 0; i < n; i++ {
		out = append(out, intToFloat(getInt(format, src, i), bits))
	}
	return out
}

// FromFloat32 converts float32 samples back to format, writing into buf
func FromFloat32(buf *Buffer, format audio.SampleFormat, src []float32) []byte {
	dst := buf.Get(len(src) * format.Size())
	if format == audio.FormatFloat {
		for i, v := range src {
			putF32(dst, i, v)
		}
		return dst
	}

	bits := format.Bits()
	for i, v := range src {
		putInt(format, dst, i, floatToInt(v, bits))
	}
	return dst
}
