// ABOUTME: Audio resampling package
// ABOUTME: Converts audio between different sample rates
// Package resample provides audio sample rate conversion.
//
// Three backends exist: a nearest-neighbour fallback that copies whole
// frames, linear interpolation and a Catmull-Rom cubic kernel. The
// interpolating backends work on interleaved float32 samples and carry their
// position and history across calls, so a stream can be fed in pieces.
//
// Example:
//
//	r, err := resample.New(resample.Cubic, 44100, 48000, 2)
//	if err != nil {
//		return err
//	}
//	out := r.Resample(samples)
package resample
