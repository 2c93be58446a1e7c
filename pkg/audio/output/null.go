// ABOUTME: Output that discards audio, optionally at real-time speed
// ABOUTME: Useful for headless setups and as a pacing reference in tests
package output

import (
	"fmt"
	"time"

	"github.com/Resonate-Protocol/playd/pkg/audio"
	"github.com/Resonate-Protocol/playd/pkg/audio/timer"
)

const pauseInterval = 100 * time.Millisecond

// Null swallows everything it is given. With sync enabled it consumes audio
// no faster than the wall clock.
type Null struct {
	sync  bool
	timer *timer.Timer
}

// NewNull creates a null output
func NewNull(sync bool) *Null {
	return &Null{sync: sync}
}

func newNullFromParams(params audio.Params) (Plugin, error) {
	sync, err := params.GetBool("sync", true)
	if err != nil {
		return nil, fmt.Errorf("null output: %w", err)
	}
	return NewNull(sync), nil
}

func (n *Null) Enable() error { return nil }

func (n *Null) Disable() {}

func (n *Null) Open(format *audio.Format) error {
	if n.sync {
		n.timer = timer.New(*format)
	}
	return nil
}

func (n *Null) Close() {
	n.timer = nil
}

func (n *Null) Delay() time.Duration {
	if n.timer == nil || !n.timer.IsStarted() {
		return 0
	}
	return n.timer.Delay()
}

func (n *Null) Play(data []byte) (int, error) {
	if n.timer != nil {
		if !n.timer.IsStarted() {
			n.timer.Start()
		}
		n.timer.Add(len(data))
	}
	return len(data), nil
}

func (n *Null) Drain() {
	if n.timer != nil && n.timer.IsStarted() {
		n.timer.Synchronize()
	}
}

func (n *Null) Cancel() {
	if n.timer != nil {
		n.timer.Reset()
	}
}

// Pause keeps the "device" open; the clock restarts on the next Play
func (n *Null) Pause() bool {
	if n.timer != nil {
		n.timer.Reset()
	}
	time.Sleep(pauseInterval)
	return true
}
