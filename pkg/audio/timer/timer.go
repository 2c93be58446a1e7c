// ABOUTME: Wall-clock pacing for outputs that have no device clock
// ABOUTME: Tracks how much audio was "played" and sleeps until real time catches up
package timer

import (
	"time"

	"github.com/Resonate-Protocol/playd/pkg/audio"
)

// Timer paces a stream of audio in format against the monotonic clock
type Timer struct {
	bytesPerSecond int
	started        bool
	position       time.Time

	now   func() time.Time
	sleep func(time.Duration)
}

// New creates a stopped timer for audio in format
func New(format audio.Format) *Timer {
	return &Timer{
		bytesPerSecond: format.TimeToSize(),
		now:            time.Now,
		sleep:          time.Sleep,
	}
}

// Start anchors the timer at the current time
func (t *Timer) Start() {
	t.position = t.now()
	t.started = true
}

// Reset stops the timer; the next Start re-anchors it
func (t *Timer) Reset() {
	t.started = false
}

// IsStarted reports whether Start was called since the last Reset
func (t *Timer) IsStarted() bool {
	return t.started
}

// Add accounts for size bytes of audio handed to the "device"
func (t *Timer) Add(size int) {
	if t.bytesPerSecond == 0 {
		return
	}
	t.position = t.position.Add(time.Duration(int64(size) * int64(time.Second) / int64(t.bytesPerSecond)))
}

// Delay returns how far the accounted audio runs ahead of the clock, never negative
func (t *Timer) Delay() time.Duration {
	d := t.position.Sub(t.now())
	if d < 0 {
		return 0
	}
	return d
}

// Synchronize sleeps until the clock caught up with the accounted audio
func (t *Timer) Synchronize() {
	if d := t.Delay(); d > 0 {
		t.sleep(d)
	}
}
