// ABOUTME: Tests for the resampling backends
// ABOUTME: Covers output sizes, DC preservation and streaming continuity
package resample

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseKind(t *testing.T) {
	tests := []struct {
		in      string
		want    Kind
		wantErr bool
	}{
		{"", Cubic, false},
		{"cubic", Cubic, false},
		{"Linear", Linear, false},
		{"fallback", Fallback, false},
		{"internal", Fallback, false},
		{"sinc", Fallback, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseKind(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestOutputFrames(t *testing.T) {
	assert.Equal(t, 1024, OutputFrames(1024, 44100, 44100))
	assert.Equal(t, 2048, OutputFrames(1024, 24000, 48000))
	assert.Equal(t, 1115, OutputFrames(1024, 44100, 48000))
}

func TestNewRejectsFallback(t *testing.T) {
	_, err := New(Fallback, 44100, 48000, 2)
	assert.Error(t, err)
}

func TestResamplePreservesDC(t *testing.T) {
	for _, kind := range []Kind{Linear, Cubic} {
		t.Run(kind.String(), func(t *testing.T) {
			r, err := New(kind, 44100, 48000, 2)
			require.NoError(t, err)

			input := make([]float32, 2*441)
			for i := range input {
				input[i] = 0.25
			}

			out := r.Resample(input)
			require.NotEmpty(t, out)
			assert.Zero(t, len(out)%2)
			for i, v := range out {
				if math.Abs(float64(v)-0.25) > 1e-5 {
					t.Fatalf("sample %d: expected 0.25, got %f", i, v)
				}
			}
		})
	}
}

func TestResampleStreamingMatchesSingleBuffer(t *testing.T) {
	input := make([]float32, 1000)
	for i := range input {
		input[i] = float32(math.Sin(float64(i) * 0.05))
	}

	for _, kind := range []Kind{Linear, Cubic} {
		t.Run(kind.String(), func(t *testing.T) {
			whole, err := New(kind, 44100, 48000, 1)
			require.NoError(t, err)
			want := append([]float32(nil), whole.Resample(input)...)

			split, err := New(kind, 44100, 48000, 1)
			require.NoError(t, err)
			var got []float32
			for off := 0; off < len(input); off += 137 {
				end := off + 137
				if end > len(input) {
					end = len(input)
				}
				got = append(got, split.Resample(input[off:end])...)
			}

			require.Equal(t, len(want), len(got))
			for i := range want {
				if math.Abs(float64(want[i]-got[i])) > 1e-5 {
					t.Fatalf("sample %d: expected %f, got %f", i, want[i], got[i])
				}
			}
		})
	}
}

func TestResampleTotalLength(t *testing.T) {
	r, err := New(Linear, 48000, 24000, 1)
	require.NoError(t, err)

	total := 0
	for i := 0; i < 10; i++ {
		total += len(r.Resample(make([]float32, 480)))
	}

	// 4800 input frames halve to 2400, minus the frame kept as history
	assert.InDelta(t, 2400, total, 1)
}

func TestFallbackResample(t *testing.T) {
	f := NewFallback(2, 1, 2)
	out := f.Resample([]byte{1, 2, 3, 4})
	assert.Equal(t, []byte{1, 2, 1, 2, 3, 4, 3, 4}, out)

	down := NewFallback(1, 4, 2)
	assert.Equal(t, []byte{10, 30}, down.Resample([]byte{10, 20, 30, 40}))
}

func TestResetClearsHistory(t *testing.T) {
	r, err := New(Cubic, 44100, 48000, 1)
	require.NoError(t, err)

	first := append([]float32(nil), r.Resample([]float32{1, 1, 1, 1, 1, 1})...)
	r.Reset()
	second := r.Resample([]float32{1, 1, 1, 1, 1, 1})

	assert.Equal(t, first, second)
}
