// ABOUTME: Audio encoder package for streaming PCM to network clients
// ABOUTME: Provides Encoder interface and implementations for PCM, Opus
// Package encode provides audio encoders for streaming outputs.
//
// Supports: PCM (16-bit and 24-bit), Opus
//
// Encoders accept little-endian PCM bytes in the format they were created
// for and return complete packets. Use NarrowFormat to pick an input format
// the codec accepts before creating the encoder.
//
// Example:
//
//	format := audio.NewFormat(44100, audio.FormatS16, 2)
//	if err := encode.NarrowFormat("opus", &format); err != nil {
//		return err
//	}
//	encoder, err := encode.New("opus", format)
//	packets, err := encoder.Encode(data)
package encode
