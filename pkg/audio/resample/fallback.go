// ABOUTME: Nearest-neighbour resampler working on raw frames
// ABOUTME: Format agnostic; used when no interpolating backend is wanted
package resample

// FallbackResampler repeats or drops whole frames
type FallbackResampler struct {
	frameSize  int
	inputRate  uint32
	outputRate uint32
	out        []byte
}

// NewFallback creates a nearest-neighbour resampler for frames of frameSize bytes
func NewFallback(frameSize int, inputRate, outputRate uint32) *FallbackResampler {
	return &FallbackResampler{
		frameSize:  frameSize,
		inputRate:  inputRate,
		outputRate: outputRate,
	}
}

// Resample converts src; the returned slice is reused by the next call
func (f *FallbackResampler) Resample(src []byte) []byte {
	srcFrames := len(src) / f.frameSize
	if srcFrames == 0 {
		return f.out[:0]
	}

	dstFrames := OutputFrames(srcFrames, f.inputRate, f.outputRate)
	size := dstFrames * f.frameSize
	if cap(f.out) < size {
		f.out = make([]byte, size)
	}
	out := f.out[:size]

	for i := 0; i < dstFrames; i++ {
		j := int(uint64(i) * uint64(f.inputRate) / uint64(f.outputRate))
		if j >= srcFrames {
			j = srcFrames - 1
		}
		copy(out[i*f.frameSize:(i+1)*f.frameSize], src[j*f.frameSize:(j+1)*f.frameSize])
	}

	return out
}
