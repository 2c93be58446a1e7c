// ABOUTME: AudioOutput owns one plugin, its filter chain and mixer
// ABOUTME: Client side of the per-output command protocol used by the dispatcher
package output

import (
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Resonate-Protocol/playd/pkg/audio"
	"github.com/Resonate-Protocol/playd/pkg/audio/chunk"
	"github.com/Resonate-Protocol/playd/pkg/audio/filter"
	"github.com/Resonate-Protocol/playd/pkg/audio/mixer"
	"github.com/Resonate-Protocol/playd/pkg/audio/resample"
)

// ReopenAfter is how long a failed output rests before it is retried
const ReopenAfter = 10 * time.Second

// Replay gain handlers
const (
	ReplayGainSoftware = "software"
	ReplayGainMixer    = "mixer"
	ReplayGainNone     = "none"
)

// Config describes one configured output
type Config struct {
	Name    string
	Plugin  string
	Enabled bool

	// Format is a mask forced onto whatever the filter chain produces
	Format audio.Format

	MixerType         mixer.Type
	ReplayGainHandler string

	// Filters is a comma separated list of filter block names
	Filters string

	Params audio.Params
}

// Hooks observe output activity; nil members are skipped
type Hooks struct {
	Played func(output string, bytes int)
	Failed func(output string)
}

// Options are the global settings shared by all outputs
type Options struct {
	Resampler           resample.Kind
	VolumeNormalization bool
	FilterBlocks        filter.BlockLookup
	ReplayGain          filter.ReplayGainConfig
	ReplayGainMode      audio.ReplayGainMode
	Hooks               Hooks
}

// State summarizes an output for status displays
type State int

const (
	StateDisabled State = iota
	StateEnabled
	StateOpen
	StatePaused
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateDisabled:
		return "disabled"
	case StateEnabled:
		return "enabled"
	case StateOpen:
		return "open"
	case StatePaused:
		return "paused"
	case StateFailed:
		return "failed"
	}
	return "unknown"
}

type command int

const (
	cmdNone command = iota
	cmdEnable
	cmdDisable
	cmdOpen
	cmdReopen
	cmdClose
	cmdPause
	cmdDrain
	cmdCancel
	cmdKill
)

// AudioOutput drives one plugin from its own goroutine. All fields below
// mu are shared between the goroutine and the dispatcher.
type AudioOutput struct {
	name       string
	pluginName string
	plugin     Plugin
	mixer      mixer.Mixer
	hooks      Hooks

	configFormat audio.Format
	reopenAfter  time.Duration

	// owned by the output goroutine while it runs
	chain   *filter.Chain
	convert *filter.Convert
	source  *source

	mu   sync.Mutex
	cond *sync.Cond
	wake chan struct{}

	enabled       bool
	reallyEnabled bool
	open          bool
	pause         bool
	started       bool
	done          chan struct{}

	command       command
	waitForResume bool

	inFormat  audio.Format
	outFormat audio.Format
	failTime  time.Time

	queue         *chunk.Queue
	current       *chunk.Chunk
	chunkFinished bool

	played func()
}

// NewFromConfig creates the plugin named in cfg and wraps it
func NewFromConfig(cfg Config, opts Options) (*AudioOutput, error) {
	if cfg.Plugin == "" {
		return nil, fmt.Errorf("output %q: missing \"type\" configuration", cfg.Name)
	}
	p, err := NewPlugin(cfg.Plugin, cfg.Params)
	if err != nil {
		return nil, fmt.Errorf("output %q: %w", cfg.Name, err)
	}
	return New(cfg, p, opts)
}

// New wraps plugin into an AudioOutput and builds its filter chain:
// normalization, the configured filters, the software mixer's volume
// filter and finally the format conversion.
func New(cfg Config, plugin Plugin, opts Options) (*AudioOutput, error) {
	if cfg.Name == "" {
		return nil, fmt.Errorf("missing \"name\" configuration")
	}
	if !cfg.Format.MaskValid() {
		return nil, fmt.Errorf("output %q: format %s: %w", cfg.Name, cfg.Format, audio.ErrInvalidFormat)
	}

	ao := &AudioOutput{
		name:         cfg.Name,
		pluginName:   cfg.Plugin,
		plugin:       plugin,
		hooks:        opts.Hooks,
		configFormat: cfg.Format,
		reopenAfter:  ReopenAfter,
		enabled:      cfg.Enabled,
		chain:        filter.NewChain(),
		wake:         make(chan struct{}, 1),
		played:       func() {},
	}
	ao.cond = sync.NewCond(&ao.mu)

	log := logrus.WithField("output", cfg.Name)

	if opts.VolumeNormalization {
		ao.chain.Append("normalize", filter.NewAutoConvert(filter.NewNormalize(filter.DefaultCompressorConfig()), opts.Resampler))
	}

	lookup := opts.FilterBlocks
	if lookup == nil {
		lookup = func(string) (audio.Params, bool) { return nil, false }
	}
	// Part of the chain may already be set up; an incomplete chain still plays
	if err := filter.ParseChain(ao.chain, cfg.Filters, lookup, opts.Resampler); err != nil {
		log.WithError(err).Warn("Failed to initialize filter chain")
	}

	handler := cfg.ReplayGainHandler
	if handler == "" {
		handler = ReplayGainSoftware
	}
	var rg, otherRG *filter.ReplayGain
	switch handler {
	case ReplayGainNone:
	case ReplayGainSoftware, ReplayGainMixer:
		rg = filter.NewReplayGain(opts.ReplayGain, opts.ReplayGainMode)
		otherRG = filter.NewReplayGain(opts.ReplayGain, opts.ReplayGainMode)
	default:
		return nil, fmt.Errorf("output %q: invalid \"replay_gain_handler\" value %q", cfg.Name, handler)
	}

	switch cfg.MixerType {
	case mixer.TypeHardware:
		if dev, ok := plugin.(mixer.Device); ok {
			ao.mixer = mixer.NewHardware(dev)
		}
	case mixer.TypeSoftware:
		volume := filter.NewVolume()
		ao.chain.Append("software_mixer", volume)
		ao.mixer = mixer.NewSoftware(volume)
	case mixer.TypeNull:
		ao.mixer = mixer.NewNull()
	}

	if handler == ReplayGainMixer {
		if ao.mixer != nil {
			rg.SetMixer(ao.mixer, 100)
		} else {
			log.Warn("No such mixer for output")
		}
	}

	ao.convert = filter.NewConvert(opts.Resampler)
	ao.chain.Append("convert", ao.convert)

	ao.source = newSource(rg, otherRG, ao.chain)
	return ao, nil
}

// Name returns the configured output name
func (ao *AudioOutput) Name() string {
	return ao.name
}

// PluginName returns the plugin type name
func (ao *AudioOutput) PluginName() string {
	return ao.pluginName
}

// Plugin returns the wrapped plugin
func (ao *AudioOutput) Plugin() Plugin {
	return ao.plugin
}

// Mixer returns the output's mixer, nil when it has none
func (ao *AudioOutput) Mixer() mixer.Mixer {
	return ao.mixer
}

// FilterNames lists the filter chain, convert last
func (ao *AudioOutput) FilterNames() []string {
	return ao.chain.Names()
}

// IsEnabled reports the configured enable flag
func (ao *AudioOutput) IsEnabled() bool {
	ao.mu.Lock()
	defer ao.mu.Unlock()
	return ao.enabled
}

// SetEnabled changes the enable flag. It takes effect on the next
// EnableDisable of the dispatcher.
func (ao *AudioOutput) SetEnabled(enabled bool) {
	ao.mu.Lock()
	ao.enabled = enabled
	ao.mu.Unlock()
}

// IsOpen reports whether the device is open
func (ao *AudioOutput) IsOpen() bool {
	ao.mu.Lock()
	defer ao.mu.Unlock()
	return ao.open
}

// OutFormat returns the format the device was opened with
func (ao *AudioOutput) OutFormat() audio.Format {
	ao.mu.Lock()
	defer ao.mu.Unlock()
	return ao.outFormat
}

// State summarizes the output
func (ao *AudioOutput) State() State {
	ao.mu.Lock()
	defer ao.mu.Unlock()

	switch {
	case !ao.enabled:
		return StateDisabled
	case ao.pause:
		return StatePaused
	case ao.open:
		return StateOpen
	case !ao.failTime.IsZero():
		return StateFailed
	}
	return StateEnabled
}

// commandAsyncLocked posts cmd without waiting (must hold ao.mu)
func (ao *AudioOutput) commandAsyncLocked(cmd command) {
	ao.waitCommandLocked()
	ao.command = cmd
	ao.cond.Broadcast()
	select {
	case ao.wake <- struct{}{}:
	default:
	}
}

// commandLocked posts cmd and waits until the goroutine finished it (must hold ao.mu)
func (ao *AudioOutput) commandLocked(cmd command) {
	ao.commandAsyncLocked(cmd)
	ao.waitCommandLocked()
}

func (ao *AudioOutput) waitCommandLocked() {
	for ao.command != cmdNone {
		ao.cond.Wait()
	}
}

func (ao *AudioOutput) waitCommand() {
	ao.mu.Lock()
	ao.waitCommandLocked()
	ao.mu.Unlock()
}

// startLocked launches the output goroutine once (must hold ao.mu)
func (ao *AudioOutput) startLocked() {
	if ao.started {
		return
	}
	ao.started = true
	ao.done = make(chan struct{})
	go ao.run()
}

// enable claims the device unless it already is
func (ao *AudioOutput) enable() {
	ao.mu.Lock()
	defer ao.mu.Unlock()

	ao.startLocked()
	ao.commandLocked(cmdEnable)
}

// disable closes and releases the device
func (ao *AudioOutput) disable() {
	ao.mu.Lock()
	defer ao.mu.Unlock()

	if !ao.started {
		ao.reallyEnabled = false
		return
	}

	if ao.mixer != nil {
		ao.mixer.Close()
	}
	ao.commandLocked(cmdDisable)
}

// openLocked opens (or reopens) the output for format reading from queue (must hold ao.mu)
func (ao *AudioOutput) openLocked(format audio.Format, queue *chunk.Queue) bool {
	ao.failTime = time.Time{}

	if ao.open && format == ao.inFormat {
		if ao.pause {
			ao.current = nil
			ao.queue = queue

			// unpause with the CANCEL command; this hack is needed
			// to leave the pause loop without closing the device
			ao.commandLocked(cmdCancel)
		}
		return true
	}

	ao.inFormat = format
	ao.current = nil
	ao.queue = queue

	ao.startLocked()
	if ao.open {
		ao.commandLocked(cmdReopen)
	} else {
		ao.commandLocked(cmdOpen)
	}

	open := ao.open
	if open && ao.mixer != nil {
		if err := ao.mixer.Open(); err != nil {
			logrus.WithError(err).WithField("output", ao.name).Warn("Failed to open mixer")
		}
	}
	return open
}

// closeLocked closes the device, keeping it enabled (must hold ao.mu)
func (ao *AudioOutput) closeLocked() {
	if ao.mixer != nil {
		ao.mixer.Close()
	}

	if ao.open {
		ao.commandLocked(cmdClose)
	} else {
		ao.failTime = time.Time{}
	}
}

// update opens the output if it should be playing, or closes it. A failed
// output is retried only after its reopen delay.
func (ao *AudioOutput) update(format audio.Format, queue *chunk.Queue) bool {
	ao.mu.Lock()
	defer ao.mu.Unlock()

	if ao.enabled && ao.reallyEnabled {
		if ao.failTime.IsZero() || time.Since(ao.failTime) >= ao.reopenAfter {
			return ao.openLocked(format, queue)
		}
	} else if ao.open {
		ao.closeLocked()
	}
	return false
}

// signal wakes the goroutine to look for new chunks
func (ao *AudioOutput) signal() {
	ao.mu.Lock()
	ao.waitForResume = false
	ao.cond.Broadcast()
	ao.mu.Unlock()
}

func (ao *AudioOutput) pauseAsync() {
	ao.mu.Lock()
	defer ao.mu.Unlock()

	if ao.mixer != nil {
		if _, ok := ao.plugin.(Pauser); !ok {
			// the device is going to be closed, release the mixer with it
			ao.mixer.Close()
		}
	}
	if ao.open {
		ao.commandAsyncLocked(cmdPause)
	}
}

func (ao *AudioOutput) drainAsync() {
	ao.mu.Lock()
	defer ao.mu.Unlock()
	if ao.open {
		ao.commandAsyncLocked(cmdDrain)
	}
}

func (ao *AudioOutput) cancelAsync() {
	ao.mu.Lock()
	defer ao.mu.Unlock()
	if ao.open {
		ao.waitForResume = true
		ao.commandAsyncLocked(cmdCancel)
	}
}

func (ao *AudioOutput) close() {
	ao.mu.Lock()
	defer ao.mu.Unlock()
	ao.closeLocked()
}

func (ao *AudioOutput) resetReopen() {
	ao.mu.Lock()
	defer ao.mu.Unlock()
	if !ao.open {
		ao.failTime = time.Time{}
	}
}

func (ao *AudioOutput) setReplayGainMode(mode audio.ReplayGainMode) {
	ao.source.setReplayGainMode(mode)
}

// finish closes the device and stops the goroutine
func (ao *AudioOutput) finish() {
	ao.mu.Lock()
	ao.closeLocked()
	if !ao.started {
		ao.mu.Unlock()
		return
	}
	ao.commandLocked(cmdKill)
	done := ao.done
	ao.started = false
	ao.mu.Unlock()

	<-done

	if ao.reallyEnabled {
		ao.plugin.Disable()
		ao.reallyEnabled = false
	}
}

// isChunkConsumed reports whether this output is done with c, the oldest
// chunk in the queue
func (ao *AudioOutput) isChunkConsumed(c *chunk.Chunk) bool {
	ao.mu.Lock()
	defer ao.mu.Unlock()

	if !ao.open {
		return true
	}
	if ao.current == nil {
		return false
	}
	if c != ao.current {
		return true
	}
	return ao.chunkFinished && ao.queue.IsTail(c)
}

func (ao *AudioOutput) failed() {
	if ao.hooks.Failed != nil {
		ao.hooks.Failed(ao.name)
	}
}
