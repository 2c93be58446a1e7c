// ABOUTME: Decoder control: one goroutine decoding one song into a queue
// ABOUTME: The player starts, stops and seeks songs through it
package decode

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Resonate-Protocol/playd/pkg/audio"
	"github.com/Resonate-Protocol/playd/pkg/audio/chunk"
	"github.com/Resonate-Protocol/playd/pkg/audio/resample"
)

// State of the decoder goroutine
type State int

const (
	StateStop State = iota
	// StateStart means the song is open but the plugin has not announced a format
	StateStart
	StateDecode
	StateError
)

func (s State) String() string {
	switch s {
	case StateStop:
		return "stop"
	case StateStart:
		return "start"
	case StateDecode:
		return "decode"
	case StateError:
		return "error"
	}
	return "unknown"
}

// ErrNotSeekable is returned when seeking a song whose decoder cannot seek
var ErrNotSeekable = errors.New("song is not seekable")

// Control runs decoder plugins for the player
type Control struct {
	pool *chunk.Pool
	mask audio.Format
	kind resample.Kind

	// notify is signalled after every queued chunk and on state changes
	notify chan struct{}

	mu        sync.Mutex
	state     State
	path      string
	queue     *chunk.Queue
	inFormat  audio.Format
	outFormat audio.Format
	seekable  bool
	totalTime time.Duration
	err       error
	cancel    context.CancelFunc
	done      chan struct{}
	ready     chan struct{}
}

// NewControl creates an idle decoder control allocating from pool
func NewControl(pool *chunk.Pool, mask audio.Format, kind resample.Kind) *Control {
	done := make(chan struct{})
	close(done)
	return &Control{
		pool:   pool,
		mask:   mask,
		kind:   kind,
		notify: make(chan struct{}, 1),
		done:   done,
		ready:  done,
	}
}

func (c *Control) signal() {
	select {
	case c.notify <- struct{}{}:
	default:
	}
}

// Notify delivers a wakeup when chunks were queued or the state changed
func (c *Control) Notify() <-chan struct{} {
	return c.notify
}

// Start decodes path into queue, beginning at start. A running song is
// stopped first.
func (c *Control) Start(path string, queue *chunk.Queue, start time.Duration) error {
	c.Stop()

	plugin, err := ForPath(path)
	if err != nil {
		c.setError(path, err)
		return err
	}

	f, err := os.Open(path)
	if err != nil {
		err = fmt.Errorf("failed to open %q: %w", path, err)
		c.setError(path, err)
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	bridge := NewBridge(ctx, c.pool, queue, c.mask, c.kind)
	bridge.SetSeek(start)
	bridge.OnPush(c.signal)

	done := make(chan struct{})
	ready := make(chan struct{})
	var readyOnce sync.Once
	markReady := func() { readyOnce.Do(func() { close(ready) }) }

	bridge.OnReady(func(in, out audio.Format, seekable bool, duration time.Duration) {
		c.mu.Lock()
		c.state = StateDecode
		c.inFormat = in
		c.outFormat = out
		c.seekable = seekable
		c.totalTime = duration
		c.mu.Unlock()
		markReady()
		c.signal()
	})

	c.mu.Lock()
	c.state = StateStart
	c.path = path
	c.queue = queue
	c.inFormat = audio.Format{}
	c.outFormat = audio.Format{}
	c.seekable = false
	c.totalTime = 0
	c.err = nil
	c.cancel = cancel
	c.done = done
	c.ready = ready
	c.mu.Unlock()

	log := logrus.WithFields(logrus.Fields{"plugin": plugin.Name, "path": path})
	log.Debug("Starting decoder")

	go func() {
		defer close(done)
		defer markReady()
		defer cancel()
		defer f.Close()

		err := plugin.Decode(ctx, f, bridge)
		bridge.Close()
		if err == nil {
			err = bridge.Err()
		}
		if err == nil && !bridge.IsReady() && ctx.Err() == nil {
			err = fmt.Errorf("decoder %s did not recognize the file", plugin.Name)
		}

		c.mu.Lock()
		if err != nil && ctx.Err() == nil {
			c.state = StateError
			c.err = fmt.Errorf("failed to decode %q: %w", path, err)
			log.WithError(err).Warn("Decoder failed")
		} else {
			c.state = StateStop
			log.Debug("Decoder finished")
		}
		c.mu.Unlock()
		c.signal()
	}()

	return nil
}

func (c *Control) setError(path string, err error) {
	c.mu.Lock()
	c.state = StateError
	c.path = path
	c.err = err
	c.mu.Unlock()
	c.signal()
}

// Stop cancels the running decoder and waits for it to exit. Chunks it
// already queued stay in the queue.
func (c *Control) Stop() {
	c.mu.Lock()
	cancel := c.cancel
	done := c.done
	c.cancel = nil
	c.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done

	c.mu.Lock()
	if c.state != StateError {
		c.state = StateStop
	}
	c.mu.Unlock()
}

// Seek restarts the current song at t. The song's queue is cleared.
func (c *Control) Seek(t time.Duration) error {
	c.mu.Lock()
	path := c.path
	queue := c.queue
	seekable := c.seekable
	c.mu.Unlock()

	if queue == nil {
		return fmt.Errorf("no song to seek")
	}
	if !seekable {
		return ErrNotSeekable
	}

	c.Stop()
	queue.ClearAndReturn(c.pool)
	return c.Start(path, queue, t)
}

// WaitReady blocks until the decoder announced its format or finished
func (c *Control) WaitReady(ctx context.Context) error {
	c.mu.Lock()
	ready := c.ready
	c.mu.Unlock()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-ready:
	}
	return c.Err()
}

// Wait blocks until the decoder goroutine exits
func (c *Control) Wait(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-c.Done():
	}
	return c.Err()
}

// Done is closed when the current decoder goroutine exits
func (c *Control) Done() <-chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.done
}

func (c *Control) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// IsIdle reports whether no decoder goroutine is running
func (c *Control) IsIdle() bool {
	s := c.State()
	return s == StateStop || s == StateError
}

// Format returns the format of the queued chunks
func (c *Control) Format() audio.Format {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.outFormat
}

// InFormat returns the format the plugin decodes to
func (c *Control) InFormat() audio.Format {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inFormat
}

// TotalTime returns the song duration, 0 when unknown
func (c *Control) TotalTime() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.totalTime
}

func (c *Control) Seekable() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.seekable
}

// Path returns the song being decoded
func (c *Control) Path() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.path
}

// Err returns the error of the last song, if decoding failed
func (c *Control) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}
