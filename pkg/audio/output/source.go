// ABOUTME: Per-output chunk preparation ahead of the filter chain
// ABOUTME: Applies replay gain, cross-fades with the partner chunk and runs the chain
package output

import (
	"fmt"

	"github.com/Resonate-Protocol/playd/pkg/audio"
	"github.com/Resonate-Protocol/playd/pkg/audio/chunk"
	"github.com/Resonate-Protocol/playd/pkg/audio/filter"
	"github.com/Resonate-Protocol/playd/pkg/audio/pcm"
)

type source struct {
	format audio.Format
	chain  *filter.Chain

	replayGain      *filter.ReplayGain
	otherReplayGain *filter.ReplayGain
	serial          uint32
	otherSerial     uint32

	dither    pcm.Dither
	crossFade pcm.Buffer
}

func newSource(rg, otherRG *filter.ReplayGain, chain *filter.Chain) *source {
	return &source{replayGain: rg, otherReplayGain: otherRG, chain: chain}
}

// open prepares the replay gain stages for in and returns the chain's
// output format
func (s *source) open(in audio.Format) (audio.Format, error) {
	s.format = in
	s.serial = 0
	s.otherSerial = 0
	s.dither.Reset()

	if s.replayGain != nil {
		f := in
		if _, err := s.replayGain.Open(&f); err != nil {
			return audio.Format{}, err
		}
		f = in
		if _, err := s.otherReplayGain.Open(&f); err != nil {
			s.replayGain.Close()
			return audio.Format{}, err
		}
	}

	f := in
	out, err := s.chain.Open(&f)
	if err != nil {
		s.closeReplayGain()
		return audio.Format{}, err
	}
	return out, nil
}

func (s *source) close() {
	s.chain.Close()
	s.closeReplayGain()
}

func (s *source) closeReplayGain() {
	if s.replayGain != nil {
		s.replayGain.Close()
		s.otherReplayGain.Close()
	}
}

func (s *source) setReplayGainMode(mode audio.ReplayGainMode) {
	if s.replayGain != nil {
		s.replayGain.SetMode(mode)
		s.otherReplayGain.SetMode(mode)
	}
}

// chunkData returns the chunk's PCM after replay gain
func chunkData(c *chunk.Chunk, rg *filter.ReplayGain, serial *uint32) ([]byte, error) {
	data := c.Data()
	if len(data) == 0 || rg == nil {
		return data, nil
	}

	if c.ReplayGainSerial != *serial && c.ReplayGainSerial != 0 {
		info := c.ReplayGainInfo
		rg.SetInfo(&info)
		*serial = c.ReplayGainSerial
	}
	return rg.Filter(data)
}

// filterChunk produces the bytes to hand to the plugin for c
func (s *source) filterChunk(c *chunk.Chunk) ([]byte, error) {
	data, err := chunkData(c, s.replayGain, &s.serial)
	if err != nil {
		return nil, fmt.Errorf("replay gain: %w", err)
	}
	if len(data) == 0 {
		return nil, nil
	}

	if c.Other != nil {
		other, err := chunkData(c.Other, s.otherReplayGain, &s.otherSerial)
		if err != nil {
			return nil, fmt.Errorf("replay gain: %w", err)
		}

		if len(other) > 0 {
			if len(data) > len(other) {
				data = data[:len(other)]
			}

			// MixRatio is the share of the fading-out chunk, Mix wants the share of dest
			ratio := float64(c.MixRatio)
			if ratio >= 0 {
				ratio = 1 - ratio
			}

			dest := s.crossFade.Get(len(other))
			copy(dest, other)
			if err := s.dither.Mix(dest, data, s.format.Format, ratio); err != nil {
				return nil, fmt.Errorf("cannot cross-fade %s: %w", s.format, err)
			}
			data = dest
		}
	}

	return s.chain.Filter(data)
}
