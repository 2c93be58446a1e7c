// ABOUTME: PCM conversion and mixing engine
// ABOUTME: Sample format, channel and rate conversion plus volume, mixing and export
// Package pcm converts and mixes interleaved little-endian PCM buffers.
//
// The building blocks work on byte slices in a given audio.SampleFormat:
//
//   - Dither: error-feedback dither with triangular noise, used when
//     reducing 24 or 32 bit audio to 16 bit, and for volume scaling
//   - ConvertFormat, ConvertChannels: sample format and channel remixing
//   - ApplyVolume, Mix: fixed point volume scaling and cross-fade mixing
//   - Converter: the full format, channels, rate pipeline
//   - Export: device-side packing (24 bit packing, shifting, byte swapping
//     and DSD over PCM)
//
// Example:
//
//	conv := pcm.NewConverter(resample.Cubic)
//	if err := conv.Open(src, dst); err != nil {
//		return err
//	}
//	defer conv.Close()
//	out, err := conv.Convert(chunk.Data())
package pcm
