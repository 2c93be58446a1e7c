// ABOUTME: Interpolating sample rate converters on interleaved float32 audio
// ABOUTME: Linear and cubic (Catmull-Rom) kernels keep state across buffers
package resample

import (
	"fmt"
	"strings"
)

// Kind selects a resampling backend
type Kind int

const (
	// Fallback picks the nearest source frame; bytewise, no arithmetic
	Fallback Kind = iota
	// Linear interpolates between neighbouring frames
	Linear
	// Cubic uses a four-point Catmull-Rom spline
	Cubic
)

func (k Kind) String() string {
	switch k {
	case Fallback:
		return "fallback"
	case Linear:
		return "linear"
	case Cubic:
		return "cubic"
	}
	return "unknown"
}

// ParseKind resolves a configured backend name. The empty string selects
// the cubic backend.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "fallback", "internal":
		return Fallback, nil
	case "linear":
		return Linear, nil
	case "", "cubic":
		return Cubic, nil
	}
	return Fallback, fmt.Errorf("unknown resampler %q", s)
}

// OutputFrames estimates how many frames srcFrames input frames produce
func OutputFrames(srcFrames int, srcRate, dstRate uint32) int {
	return (srcFrames*int(dstRate) + int(srcRate) - 1) / int(srcRate)
}

// Resampler performs interpolation to convert between sample rates
type Resampler struct {
	kind       Kind
	inputRate  int
	outputRate int
	channels   int
	step       float64

	// position of the next output frame, relative to the first history frame
	position float64
	history  []float32
	work     []float32
	out      []float32
}

// New creates a new interpolating resampler. Only Linear and Cubic are
// accepted; the fallback backend works on raw frames, see NewFallback.
func New(kind Kind, inputRate, outputRate, channels int) (*Resampler, error) {
	if kind != Linear && kind != Cubic {
		return nil, fmt.Errorf("resampler %s does not interpolate", kind)
	}
	if inputRate <= 0 || outputRate <= 0 || channels <= 0 {
		return nil, fmt.Errorf("invalid resampler parameters %d -> %d, %d channels",
			inputRate, outputRate, channels)
	}

	return &Resampler{
		kind:       kind,
		inputRate:  inputRate,
		outputRate: outputRate,
		channels:   channels,
		step:       float64(inputRate) / float64(outputRate),
	}, nil
}

// Kind returns the interpolation kernel
func (r *Resampler) Kind() Kind {
	return r.kind
}

// Resample converts interleaved samples at the input rate to the output
// rate. The returned slice is reused by the next call.
func (r *Resampler) Resample(input []float32) []float32 {
	ch := r.channels

	r.work = append(r.work[:0], r.history...)
	r.work = append(r.work, input...)
	frames := len(r.work) / ch

	// frames needed after the current one
	ahead := 1
	behind := 0
	if r.kind == Cubic {
		ahead = 2
		behind = 1
	}

	r.out = r.out[:0]
	for {
		idx := int(r.position)
		if idx+ahead >= frames {
			break
		}
		frac := float32(r.position - float64(idx))

		for c := 0; c < ch; c++ {
			y1 := r.work[idx*ch+c]
			y2 := r.work[(idx+1)*ch+c]

			if r.kind == Linear {
				r.out = append(r.out, y1+(y2-y1)*frac)
				continue
			}

			y0 := y1
			if idx > 0 {
				y0 = r.work[(idx-1)*ch+c]
			}
			y3 := r.work[(idx+2)*ch+c]
			r.out = append(r.out, catmullRom(y0, y1, y2, y3, frac))
		}

		r.position += r.step
	}

	// Keep the frames the next call still needs
	consumed := int(r.position) - behind
	if consumed < 0 {
		consumed = 0
	}
	if consumed > frames {
		consumed = frames
	}
	r.history = append(r.history[:0], r.work[consumed*ch:frames*ch]...)
	r.position -= float64(consumed)

	return r.out
}

func catmullRom(y0, y1, y2, y3, t float32) float32 {
	a0 := -0.5*y0 + 1.5*y1 - 1.5*y2 + 0.5*y3
	a1 := y0 - 2.5*y1 + 2*y2 - 0.5*y3
	a2 := -0.5*y0 + 0.5*y2
	a3 := y1
	return ((a0*t+a1)*t+a2)*t + a3
}

// Reset drops the interpolation history
func (r *Resampler) Reset() {
	r.position = 0
	r.history = r.history[:0]
}

// OutputSamplesNeeded estimates how many output samples input samples produce
func (r *Resampler) OutputSamplesNeeded(inputSamples int) int {
	frames := inputSamples / r.channels
	return OutputFrames(frames, uint32(r.inputRate), uint32(r.outputRate)) * r.channels
}
