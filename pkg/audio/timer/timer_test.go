// ABOUTME: Tests for the pacing timer
// ABOUTME: Uses a fake clock so no test actually sleeps
package timer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/Resonate-Protocol/playd/pkg/audio"
)

type fakeClock struct {
	now   time.Time
	slept time.Duration
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Sleep(d time.Duration) {
	c.slept += d
	c.now = c.now.Add(d)
}

func newTestTimer(format audio.Format) (*Timer, *fakeClock) {
	clock := &fakeClock{now: time.Unix(1000, 0)}
	tm := New(format)
	tm.now = clock.Now
	tm.sleep = clock.Sleep
	return tm, clock
}

func TestTimerStartReset(t *testing.T) {
	tm, _ := newTestTimer(audio.NewFormat(44100, audio.FormatS16, 2))
	assert.False(t, tm.IsStarted())

	tm.Start()
	assert.True(t, tm.IsStarted())

	tm.Reset()
	assert.False(t, tm.IsStarted())
}

func TestTimerPacing(t *testing.T) {
	tests := []struct {
		name   string
		format audio.Format
		bytes  int
		want   time.Duration
	}{
		{"one second cd", audio.NewFormat(44100, audio.FormatS16, 2), 176400, time.Second},
		{"half second mono 48k", audio.NewFormat(48000, audio.FormatS16, 1), 48000, 500 * time.Millisecond},
		{"20ms float stereo", audio.NewFormat(48000, audio.FormatFloat, 2), 7680, 20 * time.Millisecond},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tm, clock := newTestTimer(tt.format)
			tm.Start()
			tm.Add(tt.bytes)

			if got := tm.Delay(); got != tt.want {
				t.Errorf("expected delay %v, got %v", tt.want, got)
			}

			tm.Synchronize()
			assert.Equal(t, tt.want, clock.slept)
			assert.Zero(t, tm.Delay())
		})
	}
}

func TestTimerDelayNeverNegative(t *testing.T) {
	tm, clock := newTestTimer(audio.NewFormat(44100, audio.FormatS16, 2))
	tm.Start()
	clock.now = clock.now.Add(time.Minute)

	assert.Zero(t, tm.Delay())
	tm.Synchronize()
	assert.Zero(t, clock.slept)
}
