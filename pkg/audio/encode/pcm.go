// ABOUTME: PCM audio "encoder"
// ABOUTME: Passes 16 bit through and packs S24P32 into 3 byte samples
package encode

import (
	"fmt"

	"github.com/Resonate-Protocol/playd/pkg/audio"
	"github.com/Resonate-Protocol/playd/pkg/audio/pcm"
)

// PCMEncoder frames raw PCM
type PCMEncoder struct {
	bitDepth int
	buf      pcm.Buffer
}

// NewPCM creates a new PCM encoder
func NewPCM(format audio.Format) (*PCMEncoder, error) {
	switch format.Format {
	case audio.FormatS16:
		return &PCMEncoder{bitDepth: 16}, nil
	case audio.FormatS24P32:
		return &PCMEncoder{bitDepth: 24}, nil
	}
	return nil, fmt.Errorf("unsupported bit depth: %s (supported: 16, 24)", format.Format)
}

func (e *PCMEncoder) Codec() string {
	return "pcm"
}

// BitDepth returns the bits per sample on the wire
func (e *PCMEncoder) BitDepth() int {
	return e.bitDepth
}

// Encode returns the buffer as one packet
func (e *PCMEncoder) Encode(data []byte) ([][]byte, error) {
	if len(data) == 0 {
		return nil, nil
	}

	var packet []byte
	if e.bitDepth == 24 {
		packet = append([]byte(nil), pcm.Pack24(&e.buf, data)...)
	} else {
		packet = append([]byte(nil), data...)
	}
	return [][]byte{packet}, nil
}

// Close releases resources
func (e *PCMEncoder) Close() error {
	return nil
}
