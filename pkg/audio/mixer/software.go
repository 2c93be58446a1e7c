// ABOUTME: Software mixer driving a volume filter in the output chain
// ABOUTME: Maps the 0..100 scale onto an exponential curve
package mixer

import (
	"math"
	"sync"

	"github.com/Resonate-Protocol/playd/pkg/audio/pcm"
)

// VolumeFilter is the filter a software mixer controls
type VolumeFilter interface {
	SetVolume(volume int)
}

// PercentToSoftwareVolume maps 0..100 onto the fixed point volume scale
func PercentToSoftwareVolume(volume int) int {
	if volume >= 100 {
		return pcm.VolumeOne
	}
	if volume <= 0 {
		return 0
	}
	return pcm.FloatToVolume((math.Exp(float64(volume)/25) - 1) / (math.Exp(4) - 1))
}

// Software scales PCM through a volume filter
type Software struct {
	mu     sync.Mutex
	filter VolumeFilter
	volume int
}

// NewSoftware creates a software mixer controlling filter
func NewSoftware(filter VolumeFilter) *Software {
	return &Software{filter: filter, volume: 100}
}

func (s *Software) Open() error { return nil }

func (s *Software) Close() {}

func (s *Software) GetVolume() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.volume, nil
}

func (s *Software) SetVolume(volume int) error {
	volume = clampPercent(volume)

	s.mu.Lock()
	s.volume = volume
	s.mu.Unlock()

	s.filter.SetVolume(PercentToSoftwareVolume(volume))
	return nil
}
