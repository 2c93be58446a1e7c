// ABOUTME: Opus audio encoder
// ABOUTME: Cuts 16 bit PCM into 20ms frames and encodes each to an Opus packet
package encode

import (
	"encoding/binary"
	"fmt"

	"gopkg.in/hraban/opus.v2"

	"github.com/Resonate-Protocol/playd/pkg/audio"
)

// maxPacketSize is the largest Opus packet we ever produce
const maxPacketSize = 4000

// OpusEncoder encodes Opus audio
type OpusEncoder struct {
	encoder    *opus.Encoder
	sampleRate int
	channels   int
	frameSize  int // samples per channel in one 20ms frame

	pending []byte
	pcm     []int16
}

// NewOpus creates a new Opus encoder for 16 bit input
func NewOpus(format audio.Format) (*OpusEncoder, error) {
	if format.Format != audio.FormatS16 {
		return nil, fmt.Errorf("opus encoder needs 16 bit input, got %s", format)
	}
	switch format.SampleRate {
	case 8000, 12000, 16000, 24000, 48000:
	default:
		return nil, fmt.Errorf("unsupported opus sample rate: %d", format.SampleRate)
	}

	encoder, err := opus.NewEncoder(int(format.SampleRate), int(format.Channels), opus.AppAudio)
	if err != nil {
		return nil, fmt.Errorf("failed to create opus encoder: %w", err)
	}

	// Opus frame size depends on sample rate
	frameSize := int(format.SampleRate) / 50 // 20ms frame

	return &OpusEncoder{
		encoder:    encoder,
		sampleRate: int(format.SampleRate),
		channels:   int(format.Channels),
		frameSize:  frameSize,
		pcm:        make([]int16, frameSize*int(format.Channels)),
	}, nil
}

func (e *OpusEncoder) Codec() string {
	return "opus"
}

// FrameBytes returns the number of input bytes in one Opus frame
func (e *OpusEncoder) FrameBytes() int {
	return e.frameSize * e.channels * 2
}

// Encode converts PCM bytes to Opus packets
func (e *OpusEncoder) Encode(data []byte) ([][]byte, error) {
	e.pending = append(e.pending, data...)
	frameBytes := e.FrameBytes()

	var packets [][]byte
	for len(e.pending) >= frameBytes {
		for i := range e.pcm {
			e.pcm[i] = int16(binary.LittleEndian.Uint16(e.pending[i*2:]))
		}

		packet := make([]byte, maxPacketSize)
		n, err := e.encoder.Encode(e.pcm, packet)
		if err != nil {
			return packets, fmt.Errorf("opus encode error: %w", err)
		}
		packets = append(packets, packet[:n])

		e.pending = e.pending[frameBytes:]
	}

	// Move the remainder to the front so pending does not grow forever
	e.pending = append(e.pending[:0:0], e.pending...)

	return packets, nil
}

// Close releases resources
func (e *OpusEncoder) Close() error {
	e.pending = nil
	return nil
}
