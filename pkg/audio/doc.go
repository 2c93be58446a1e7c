// ABOUTME: Audio fundamentals package providing core types and utilities
// ABOUTME: Defines Format, SampleFormat, tags, replay gain and pipeline errors
// Package audio provides the fundamental types shared by every stage of the
// playback pipeline.
//
// This package defines:
//   - Format: sample rate, sample representation and channel count
//   - SampleFormat: S8, S16, S24P32, S32, Float and DSD
//   - Tag and ReplayGainInfo: metadata travelling with decoded chunks
//   - Params: configuration blocks for filter and output plugins
//   - the sentinel errors of the pipeline (ErrInvalidFormat, ErrUnsupportedConversion, ...)
//
// Example:
//
//	format, err := audio.ParseFormat("44100:16:2")
//	if err != nil {
//	    return err
//	}
//	bytesPerSecond := format.TimeToSize()
package audio
