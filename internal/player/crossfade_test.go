// ABOUTME: Tests for the cross-fade chunk calculation
// ABOUTME: Covers the disabled cases, the cap and the mix ratio
package player

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/Resonate-Protocol/playd/pkg/audio"
)

func TestCrossFadeCalculate(t *testing.T) {
	cd := audio.NewFormat(44100, audio.FormatS16, 2)
	mono := audio.NewFormat(44100, audio.FormatS16, 1)

	tests := []struct {
		name     string
		duration time.Duration
		total    time.Duration
		next     audio.Format
		max      int
		want     int
	}{
		// 176400 bytes per second are 43.07 chunks
		{"one second", time.Second, time.Minute, cd, 1000, 43},
		{"two seconds", 2 * time.Second, time.Minute, cd, 1000, 86},
		{"capped", 2 * time.Second, time.Minute, cd, 50, 50},
		{"disabled", 0, time.Minute, cd, 1000, 0},
		{"song too short", 5 * time.Second, 5 * time.Second, cd, 1000, 0},
		{"unknown length", time.Second, 0, cd, 1000, 0},
		{"format change", time.Second, time.Minute, mono, 1000, 0},
		{"no room", time.Second, time.Minute, cd, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cf := CrossFade{Duration: tt.duration}
			got := cf.Calculate(tt.total, tt.next, cd, tt.max)
			if got != tt.want {
				t.Errorf("expected %d, got %d", tt.want, got)
			}
		})
	}
}

func TestCrossFadeRatio(t *testing.T) {
	cf := CrossFade{Duration: time.Second}
	assert.Equal(t, float32(1), cf.ratio(10, 10))
	assert.Equal(t, float32(0.5), cf.ratio(5, 10))
	assert.Equal(t, float32(0), cf.ratio(3, 0))

	ramp := CrossFade{Duration: time.Second, MixRamp: true}
	assert.Less(t, ramp.ratio(5, 10), float32(0))
}
