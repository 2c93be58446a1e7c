// ABOUTME: Little-endian sample accessors and clamping helpers
// ABOUTME: Shared by format conversion, volume, mixing and export
package pcm

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/Resonate-Protocol/playd/pkg/audio"
)

func getS16(b []byte, i int) int32 {
	return int32(int16(binary.LittleEndian.Uint16(b[i*2:])))
}

func putS16(b []byte, i int, v int32) {
	binary.LittleEndian.PutUint16(b[i*2:], uint16(int16(v)))
}

func getS32(b []byte, i int) int32 {
	return int32(binary.LittleEndian.Uint32(b[i*4:]))
}

func putS32(b []byte, i int, v int32) {
	binary.LittleEndian.PutUint32(b[i*4:], uint32(v))
}

func getF32(b []byte, i int) float32 {
	return math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
}

func putF32(b []byte, i int, v float32) {
	binary.LittleEndian.PutUint32(b[i*4:], math.Float32bits(v))
}

// getInt reads sample i of an integer format
func getInt(f audio.SampleFormat, b []byte, i int) int64 {
	switch f {
	case audio.FormatS8:
		return int64(int8(b[i]))
	case audio.FormatS16:
		return int64(getS16(b, i))
	case audio.FormatS24P32, audio.FormatS32:
		return int64(getS32(b, i))
	}
	return 0
}

// putInt clamps v to the range of f and stores it as sample i
func putInt(f audio.SampleFormat, b []byte, i int, v int64) {
	v = clampInt(f, v)
	switch f {
	case audio.FormatS8:
		b[i] = byte(int8(v))
	case audio.FormatS16:
		putS16(b, i, int32(v))
	case audio.FormatS24P32, audio.FormatS32:
		putS32(b, i, int32(v))
	}
}

func sampleRange(f audio.SampleFormat) (int64, int64) {
	switch f {
	case audio.FormatS8:
		return math.MinInt8, math.MaxInt8
	case audio.FormatS16:
		return math.MinInt16, math.MaxInt16
	case audio.FormatS24P32:
		return audio.Min24Bit, audio.Max24Bit
	}
	return math.MinInt32, math.MaxInt32
}

func clampInt(f audio.SampleFormat, v int64) int64 {
	lo, hi := sampleRange(f)
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func isInteger(f audio.SampleFormat) bool {
	switch f {
	case audio.FormatS8, audio.FormatS16, audio.FormatS24P32, audio.FormatS32:
		return true
	}
	return false
}

func describe(f audio.SampleFormat) string {
	switch f {
	case audio.FormatFloat:
		return "float"
	case audio.FormatDSD:
		return "dsd"
	case audio.FormatUndefined:
		return "undefined"
	}
	return fmt.Sprintf("%d bit", f.Bits())
}

func unsupported(from, to audio.SampleFormat) error {
	return fmt.Errorf("conversion from %s to %s is not implemented: %w",
		describe(from), describe(to), audio.ErrUnsupportedConversion)
}
