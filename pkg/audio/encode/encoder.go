// ABOUTME: Encoder interface definition
// ABOUTME: Stream encoders turning pipeline PCM into network packets
package encode

import (
	"fmt"
	"strings"

	"github.com/Resonate-Protocol/playd/pkg/audio"
)

// Encoder encodes little-endian PCM bytes into packets
type Encoder interface {
	// Codec returns the codec name announced to clients
	Codec() string

	// Encode consumes PCM in the format the encoder was created with and
	// returns every packet that is complete. Leftover input is kept for the
	// next call.
	Encode(pcm []byte) ([][]byte, error)

	// Close releases encoder resources
	Close() error
}

// NarrowFormat adjusts f to a format the codec can encode
func NarrowFormat(codec string, f *audio.Format) error {
	switch strings.ToLower(codec) {
	case "opus":
		f.SampleRate = 48000
		f.Format = audio.FormatS16
		if f.Channels > 2 {
			f.Channels = 2
		}
	case "pcm":
		if f.Format != audio.FormatS24P32 {
			f.Format = audio.FormatS16
		}
	default:
		return fmt.Errorf("unknown codec %q", codec)
	}
	return nil
}

// New creates an encoder for codec
func New(codec string, format audio.Format) (Encoder, error) {
	switch strings.ToLower(codec) {
	case "opus":
		return NewOpus(format)
	case "pcm":
		return NewPCM(format)
	}
	return nil, fmt.Errorf("unknown codec %q", codec)
}
