// ABOUTME: Sentinel errors shared by the playback pipeline
// ABOUTME: Callers match them with errors.Is after wrapping with context
package audio

import "errors"

var (
	// ErrInvalidFormat is returned when a format fails to parse or negotiate
	ErrInvalidFormat = errors.New("invalid audio format")

	// ErrUnsupportedConversion is returned when no PCM path exists between two representations
	ErrUnsupportedConversion = errors.New("unsupported conversion")

	// ErrBufferExhausted signals that the chunk pool is empty; the caller should wait
	ErrBufferExhausted = errors.New("chunk buffer exhausted")

	// ErrOutputIO is returned when an output device fails to accept audio
	ErrOutputIO = errors.New("output I/O error")

	// ErrFilterOpen is returned when a filter (or chain) refuses to open
	ErrFilterOpen = errors.New("filter open failed")
)
