// ABOUTME: Dispatcher fans the chunk stream out to every audio output
// ABOUTME: Chunks return to the pool once all open outputs consumed them
package output

import (
	"context"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/Resonate-Protocol/playd/pkg/audio"
	"github.com/Resonate-Protocol/playd/pkg/audio/chunk"
)

// Dispatcher drives all outputs from the player goroutine. Only the
// query methods (ElapsedTime, Outputs, Find, volume) are safe to call from
// other goroutines.
type Dispatcher struct {
	outputs []*AudioOutput

	mu      sync.Mutex
	format  audio.Format
	queue   *chunk.Queue
	pool    *chunk.Pool
	elapsed float64

	// played is signalled by output goroutines after they played chunks
	played chan struct{}
}

// NewDispatcher takes ownership of outputs. Names must be unique.
func NewDispatcher(outputs []*AudioOutput) (*Dispatcher, error) {
	seen := make(map[string]bool, len(outputs))
	for _, ao := range outputs {
		if seen[ao.Name()] {
			return nil, fmt.Errorf("output name %q is already taken", ao.Name())
		}
		seen[ao.Name()] = true
	}

	d := &Dispatcher{
		outputs: outputs,
		queue:   chunk.NewQueue(),
		elapsed: -1,
		played:  make(chan struct{}, 1),
	}
	for _, ao := range outputs {
		ao.played = d.notify
	}
	return d, nil
}

func (d *Dispatcher) notify() {
	select {
	case d.played <- struct{}{}:
	default:
	}
}

// Played delivers a wakeup after outputs played chunks
func (d *Dispatcher) Played() <-chan struct{} {
	return d.played
}

// Outputs returns the managed outputs in configuration order
func (d *Dispatcher) Outputs() []*AudioOutput {
	return d.outputs
}

// Find returns the output called name
func (d *Dispatcher) Find(name string) *AudioOutput {
	for _, ao := range d.outputs {
		if ao.Name() == name {
			return ao
		}
	}
	return nil
}

// EnableDisable brings every output's device in line with its enable flag
func (d *Dispatcher) EnableDisable() {
	for _, ao := range d.outputs {
		ao.mu.Lock()
		enabled, really := ao.enabled, ao.reallyEnabled
		ao.mu.Unlock()

		if enabled == really {
			continue
		}
		if enabled {
			ao.enable()
		} else {
			ao.disable()
		}
	}
}

// EnableOutput enables output i; it opens with the next Play
func (d *Dispatcher) EnableOutput(i int) error {
	if i < 0 || i >= len(d.outputs) {
		return fmt.Errorf("no such audio output: %d", i)
	}
	ao := d.outputs[i]
	ao.SetEnabled(true)
	ao.enable()
	return nil
}

// DisableOutput closes and disables output i
func (d *Dispatcher) DisableOutput(i int) error {
	if i < 0 || i >= len(d.outputs) {
		return fmt.Errorf("no such audio output: %d", i)
	}
	ao := d.outputs[i]
	ao.SetEnabled(false)
	ao.disable()
	return nil
}

// update opens or closes outputs to match their flags; reports whether
// at least one is open
func (d *Dispatcher) update() bool {
	d.mu.Lock()
	format, queue := d.format, d.queue
	d.mu.Unlock()

	if !format.Defined() {
		return false
	}

	ret := false
	for _, ao := range d.outputs {
		if ao.update(format, queue) {
			ret = true
		}
	}
	return ret
}

func (d *Dispatcher) resetReopen() {
	for _, ao := range d.outputs {
		ao.resetReopen()
	}
}

// Open opens all enabled outputs for format. It fails when none could be
// opened, in which case everything is closed again.
func (d *Dispatcher) Open(format audio.Format, pool *chunk.Pool) error {
	d.mu.Lock()
	if d.queue.Size() > 0 && format != d.format {
		d.mu.Unlock()
		return fmt.Errorf("cannot switch to %s with queued %s audio: %w", format, d.format, audio.ErrInvalidFormat)
	}
	d.pool = pool
	d.format = format
	d.mu.Unlock()

	d.resetReopen()
	d.EnableDisable()
	d.update()

	enabled, open := false, false
	for _, ao := range d.outputs {
		ao.mu.Lock()
		enabled = enabled || ao.enabled
		open = open || ao.open
		ao.mu.Unlock()
	}

	if !enabled {
		logrus.Warn("All audio outputs are disabled")
	}
	if !open {
		d.Close()
		return fmt.Errorf("failed to open audio output: %w", audio.ErrOutputIO)
	}
	return nil
}

// Play appends c to the shared queue and wakes the outputs
func (d *Dispatcher) Play(c *chunk.Chunk) error {
	if !d.update() {
		return fmt.Errorf("no audio output is open: %w", audio.ErrOutputIO)
	}

	d.queue.Push(c)
	for _, ao := range d.outputs {
		ao.signal()
	}
	return nil
}

// isConsumed reports whether every open output is done with c
func (d *Dispatcher) isConsumed(c *chunk.Chunk) bool {
	for _, ao := range d.outputs {
		if !ao.isChunkConsumed(c) {
			return false
		}
	}
	return true
}

// Check returns consumed chunks to the pool and the number still queued
func (d *Dispatcher) Check() int {
	for {
		c := d.queue.Peek()
		if c == nil {
			return 0
		}

		if !d.isConsumed(c) {
			return d.queue.Size()
		}

		if c.Length > 0 && c.Time >= 0 {
			d.mu.Lock()
			d.elapsed = c.Time
			d.mu.Unlock()
		}

		// An output may be holding the tail chunk as its position; it
		// must forget it before the chunk goes back to the pool. Hold the
		// locks until then so it cannot peek the chunk again.
		var locked []*AudioOutput
		if d.queue.IsTail(c) {
			for _, ao := range d.outputs {
				ao.mu.Lock()
				if !ao.open {
					ao.mu.Unlock()
					continue
				}
				ao.current = nil
				locked = append(locked, ao)
			}
		}

		shifted := d.queue.Shift()
		for _, ao := range locked {
			ao.mu.Unlock()
		}
		d.pool.Return(shifted)
	}
}

// Wait returns true when fewer than threshold chunks are queued, waiting
// for the outputs to make progress first if needed
func (d *Dispatcher) Wait(ctx context.Context, threshold int) bool {
	if d.Check() < threshold {
		return true
	}

	select {
	case <-d.played:
	case <-ctx.Done():
		return false
	}
	return d.Check() < threshold
}

func (d *Dispatcher) waitAll() {
	for _, ao := range d.outputs {
		ao.waitCommand()
	}
}

// Pause pauses all open outputs
func (d *Dispatcher) Pause() {
	d.update()
	for _, ao := range d.outputs {
		ao.pauseAsync()
	}
	d.waitAll()
}

// Drain blocks until every open output played all it was given
func (d *Dispatcher) Drain() {
	for _, ao := range d.outputs {
		ao.drainAsync()
	}
	d.waitAll()
}

// Cancel drops all queued and buffered audio
func (d *Dispatcher) Cancel() {
	for _, ao := range d.outputs {
		ao.cancelAsync()
	}
	d.waitAll()

	d.mu.Lock()
	pool := d.pool
	d.elapsed = -1
	d.mu.Unlock()

	if pool != nil {
		d.queue.ClearAndReturn(pool)
	}

	for _, ao := range d.outputs {
		ao.signal()
	}
}

// Close closes all outputs and drops the queue
func (d *Dispatcher) Close() {
	for _, ao := range d.outputs {
		ao.close()
	}

	d.mu.Lock()
	pool := d.pool
	d.format.Clear()
	d.elapsed = -1
	d.mu.Unlock()

	if pool != nil {
		d.queue.ClearAndReturn(pool)
	}
}

// Shutdown closes every output and stops their goroutines
func (d *Dispatcher) Shutdown() {
	for _, ao := range d.outputs {
		ao.finish()
	}

	d.mu.Lock()
	pool := d.pool
	d.mu.Unlock()
	if pool != nil {
		d.queue.ClearAndReturn(pool)
	}
}

// ElapsedTime returns the song position of the last played chunk in
// seconds, negative when unknown
func (d *Dispatcher) ElapsedTime() float64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.elapsed
}

// Format returns the input format the outputs are open with
func (d *Dispatcher) Format() audio.Format {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.format
}

// QueueSize returns the number of chunks not yet consumed by all outputs
func (d *Dispatcher) QueueSize() int {
	return d.queue.Size()
}

// SetReplayGainMode switches the replay gain mode of every output
func (d *Dispatcher) SetReplayGainMode(mode audio.ReplayGainMode) {
	for _, ao := range d.outputs {
		ao.setReplayGainMode(mode)
	}
}

// GetVolume returns the average volume of the enabled outputs with a
// mixer, -1 when there is none
func (d *Dispatcher) GetVolume() int {
	total, n := 0, 0
	for _, ao := range d.outputs {
		if ao.mixer == nil || !ao.IsEnabled() {
			continue
		}
		v, err := ao.mixer.GetVolume()
		if err != nil {
			logrus.WithError(err).WithField("output", ao.name).Warn("Failed to read mixer volume")
			continue
		}
		total += v
		n++
	}
	if n == 0 {
		return -1
	}
	return total / n
}

// SetVolume sets the volume of every enabled output's mixer
func (d *Dispatcher) SetVolume(volume int) error {
	if volume < 0 || volume > 100 {
		return fmt.Errorf("volume %d out of range", volume)
	}

	ok := false
	for _, ao := range d.outputs {
		if ao.mixer == nil || !ao.IsEnabled() {
			continue
		}
		if err := ao.mixer.SetVolume(volume); err != nil {
			logrus.WithError(err).WithField("output", ao.name).Warn("Failed to set mixer volume")
			continue
		}
		ok = true
	}
	if !ok {
		return fmt.Errorf("no mixer accepted the volume")
	}
	return nil
}
