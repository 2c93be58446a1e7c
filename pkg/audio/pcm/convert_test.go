// ABOUTME: Tests for the conversion pipeline and device export
// ABOUTME: Covers format negotiation errors, resampling sizes and DoP framing
package pcm

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Resonate-Protocol/playd/pkg/audio"
	"github.com/Resonate-Protocol/playd/pkg/audio/resample"
)

func TestConverterOpenErrors(t *testing.T) {
	tests := []struct {
		name string
		src  audio.Format
		dst  audio.Format
		want error
	}{
		{"undefined source", audio.Format{}, audio.NewFormat(44100, audio.FormatS16, 2), audio.ErrInvalidFormat},
		{"dsd to pcm", audio.NewFormat(352800, audio.FormatDSD, 2), audio.NewFormat(44100, audio.FormatS16, 2), audio.ErrUnsupportedConversion},
		{"stereo to 6", audio.NewFormat(44100, audio.FormatS16, 2), audio.NewFormat(44100, audio.FormatS16, 6), audio.ErrUnsupportedConversion},
		{"to 8 bit", audio.NewFormat(44100, audio.FormatS16, 2), audio.NewFormat(44100, audio.FormatS8, 2), audio.ErrUnsupportedConversion},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewConverter(resample.Linear)
			err := c.Open(tt.src, tt.dst)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.want), "unexpected error %v", err)
		})
	}
}

func TestConverterPassThrough(t *testing.T) {
	f := audio.NewFormat(44100, audio.FormatS16, 2)
	c := NewConverter(resample.Cubic)
	require.NoError(t, c.Open(f, f))
	defer c.Close()

	in := s16Bytes(1, 2, 3, 4)
	out, err := c.Convert(in)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestConverterFormatAndChannels(t *testing.T) {
	c := NewConverter(resample.Cubic)
	require.NoError(t, c.Open(
		audio.NewFormat(44100, audio.FormatS16, 1),
		audio.NewFormat(44100, audio.FormatS24P32, 2),
	))

	out, err := c.Convert(s16Bytes(2, -2))
	require.NoError(t, err)
	assert.Equal(t, s32Bytes(512, 512, -512, -512), out)
}

func TestConverterResampleSize(t *testing.T) {
	for _, kind := range []resample.Kind{resample.Fallback, resample.Linear, resample.Cubic} {
		t.Run(kind.String(), func(t *testing.T) {
			c := NewConverter(kind)
			src := audio.NewFormat(24000, audio.FormatS16, 2)
			dst := audio.NewFormat(48000, audio.FormatS16, 2)
			require.NoError(t, c.Open(src, dst))

			total := 0
			for i := 0; i < 10; i++ {
				out, err := c.Convert(make([]byte, 960*4))
				require.NoError(t, err)
				assert.Zero(t, len(out)%dst.FrameSize())
				total += len(out) / dst.FrameSize()
			}

			assert.InDelta(t, 19200, total, 8)
		})
	}
}

func TestPack24Unpack24(t *testing.T) {
	var pack, unpack Buffer
	in := s32Bytes(0x123456, -1, audio.Min24Bit)

	packed := Pack24(&pack, in)
	assert.Equal(t, []byte{0x56, 0x34, 0x12, 0xff, 0xff, 0xff, 0x00, 0x00, 0x80}, packed)

	assert.Equal(t, in, Unpack24(&unpack, packed))
}

func TestShift8(t *testing.T) {
	buf := s32Bytes(1, -1)
	Shift8(buf)
	assert.Equal(t, s32Bytes(256, -256), buf)
}

func TestReverseEndian(t *testing.T) {
	var buf Buffer
	assert.Equal(t, []byte{2, 1, 4, 3}, ReverseEndian(&buf, 2, []byte{1, 2, 3, 4}))
	assert.Equal(t, []byte{3, 2, 1}, ReverseEndian(&buf, 3, []byte{1, 2, 3}))
}

func TestExportPack24(t *testing.T) {
	var e Export
	f := audio.NewFormat(96000, audio.FormatS24P32, 2)
	e.Open(f, ExportParams{Pack24: true, ReverseEndian: true})

	assert.Equal(t, 6, e.FrameSize(f))
	assert.Equal(t, 8, e.CalcSourceSize(6))
	assert.Equal(t, uint32(96000), e.OutputRate(96000))

	out := e.Export(s32Bytes(0x010203, 0x040506))
	assert.Equal(t, []byte{0x01, 0x02, 0x03, 0x04, 0x05, 0x06}, out)
}

func TestExportDoP(t *testing.T) {
	var e Export
	f := audio.NewFormat(352800, audio.FormatDSD, 2)
	e.Open(f, ExportParams{DSDUSB: true})

	assert.Equal(t, uint32(176400), e.OutputRate(352800))
	assert.Equal(t, 8, e.FrameSize(f))

	// five frames; the odd trailing frame is dropped
	in := []byte{0xa0, 0xb0, 0xa1, 0xb1, 0xa2, 0xb2, 0xa3, 0xb3, 0xa4, 0xb4}
	out := e.Export(in)

	want := s32Bytes(
		word(0xff05a0a1),
		word(0xff05b0b1),
		word(0xfffaa2a3),
		word(0xfffab2b3),
	)
	assert.Equal(t, want, out)
}

func word(u uint32) int32 {
	return int32(u)
}
