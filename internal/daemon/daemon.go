// ABOUTME: Daemon orchestration for the playback pipeline
// ABOUTME: Builds pool, outputs, dispatcher and player and supervises their goroutines
package daemon

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync/atomic"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/Resonate-Protocol/playd/internal/config"
	"github.com/Resonate-Protocol/playd/internal/discovery"
	"github.com/Resonate-Protocol/playd/internal/metrics"
	"github.com/Resonate-Protocol/playd/internal/player"
	"github.com/Resonate-Protocol/playd/internal/ui"
	"github.com/Resonate-Protocol/playd/internal/version"
	"github.com/Resonate-Protocol/playd/pkg/audio/chunk"
	"github.com/Resonate-Protocol/playd/pkg/audio/output"
)

const (
	// seekStep is how far the seek keys jump
	seekStep = 10 * time.Second

	volumeStep = 5

	statusInterval = 500 * time.Millisecond
)

// errPlaylistDone ends Run once every song played when ExitWhenDone is set
var errPlaylistDone = errors.New("playlist finished")

// Config holds daemon configuration
type Config struct {
	Settings *config.Config

	// Songs are enqueued and played on startup
	Songs []string

	// Name overrides the zeroconf service name
	Name string

	UseTUI bool

	// ExitWhenDone makes Run return after the last song
	ExitWhenDone bool
}

// Daemon owns the playback pipeline
type Daemon struct {
	config Config

	pool       *chunk.Pool
	dispatcher *output.Dispatcher
	player     *player.Player
	metrics    *metrics.Metrics
	stateFile  *output.StateFile
	discovery  *discovery.Manager

	controls *ui.Controls
	tuiProg  *tea.Program

	// attempted is set once the player tried to start a song
	attempted atomic.Bool
}

// New builds every component from the configuration without starting any
// goroutine besides the output threads
func New(cfg Config) (*Daemon, error) {
	s := cfg.Settings
	if s == nil {
		s = config.DefaultConfig()
		cfg.Settings = s
	}
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	d := &Daemon{config: cfg}
	d.pool = chunk.NewPool(s.BufferChunks)
	d.metrics = metrics.New(d.pool)

	opts, err := s.OutputOptions()
	if err != nil {
		return nil, err
	}
	opts.Hooks = d.metrics.OutputHooks()

	outputs := make([]*output.AudioOutput, 0, len(s.Outputs))
	for _, block := range s.Outputs {
		oc, err := block.ToOutput()
		if err != nil {
			return nil, err
		}
		ao, err := output.NewFromConfig(oc, opts)
		if err != nil {
			return nil, err
		}
		outputs = append(outputs, ao)
	}
	if len(outputs) == 0 {
		logrus.Warn("No audio outputs configured")
	}

	d.dispatcher, err = output.NewDispatcher(outputs)
	if err != nil {
		return nil, err
	}

	if s.StateFile != "" {
		d.stateFile = output.NewStateFile(s.StateFile, s.StateInterval(), d.dispatcher)
		if err := d.stateFile.Read(); err != nil {
			logrus.WithError(err).Warn("Failed to restore output state")
		}
	}

	bufferBeforePlay, err := s.BufferBeforePlayChunks()
	if err != nil {
		return nil, err
	}
	mask, err := s.AudioFormatMask()
	if err != nil {
		return nil, err
	}
	kind, err := s.ResamplerKind()
	if err != nil {
		return nil, err
	}

	d.player = player.New(player.Config{
		BufferBeforePlay: bufferBeforePlay,
		CrossFade: player.CrossFade{
			Duration: s.CrossFade(),
			MixRamp:  s.MixRamp,
		},
		Mask:      mask,
		Resampler: kind,
		Hooks: d.metrics.PlayerHooks(player.Hooks{
			SongStarted: func(string) { d.attempted.Store(true) },
			SongFailed:  func(string, error) { d.attempted.Store(true) },
		}),
	}, d.pool, d.dispatcher)

	if s.Zeroconf.Enabled {
		name := cfg.Name
		if name == "" {
			name = s.Zeroconf.Name
		}
		if name == "" {
			hostname, err := os.Hostname()
			if err != nil {
				hostname = "unknown"
			}
			name = fmt.Sprintf("%s-%s", hostname, version.Product)
		}
		d.discovery = discovery.NewManager(discovery.Config{
			ServiceName: name,
			Port:        s.Zeroconf.Port,
			Version:     version.Version,
		})
	}

	if cfg.UseTUI {
		d.controls = ui.NewControls()
		d.tuiProg = ui.Run(d.controls)
	}

	return d, nil
}

// Player returns the player goroutine's handle
func (d *Daemon) Player() *player.Player {
	return d.player
}

// Dispatcher returns the output dispatcher
func (d *Daemon) Dispatcher() *output.Dispatcher {
	return d.dispatcher
}

// Metrics returns the collectors
func (d *Daemon) Metrics() *metrics.Metrics {
	return d.metrics
}

// Run starts playback of the configured songs and blocks until ctx is
// done, the TUI quits or, with ExitWhenDone, the playlist ended
func (d *Daemon) Run(ctx context.Context) error {
	defer d.dispatcher.Shutdown()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return d.player.Run(gctx)
	})

	if d.stateFile != nil {
		g.Go(func() error {
			return d.stateFile.Run(gctx)
		})
	}

	if d.discovery != nil {
		g.Go(func() error {
			if err := d.discovery.Advertise(gctx); err != nil {
				// playback works without zeroconf
				logrus.WithError(err).Warn("Zeroconf advertisement failed")
			}
			return nil
		})
	}

	if addr := d.config.Settings.MetricsListen; addr != "" {
		g.Go(func() error {
			return d.metrics.Serve(gctx, addr)
		})
	}

	if d.tuiProg != nil {
		g.Go(func() error {
			_, err := d.tuiProg.Run()
			cancel()
			return err
		})
		g.Go(func() error {
			<-gctx.Done()
			d.tuiProg.Quit()
			return nil
		})
		g.Go(func() error {
			return d.handleControls(gctx)
		})
	}

	g.Go(func() error {
		return d.statusLoop(gctx)
	})

	if len(d.config.Songs) > 0 {
		if err := d.player.Enqueue(gctx, d.config.Songs...); err != nil {
			cancel()
			return errors.Join(err, g.Wait())
		}
		if err := d.player.Play(gctx); err != nil {
			logrus.WithError(err).Warn("Failed to start playback")
		}
	}

	err := g.Wait()
	if errors.Is(err, errPlaylistDone) || errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// handleControls applies keyboard commands from the TUI
func (d *Daemon) handleControls(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-d.controls.Quit:
			return nil
		case cmd := <-d.controls.Commands:
			if err := d.apply(ctx, cmd); err != nil && !errors.Is(err, player.ErrNoSong) {
				logrus.WithError(err).WithField("command", cmd.String()).Warn("Command failed")
			}
		}
	}
}

func (d *Daemon) apply(ctx context.Context, cmd ui.Command) error {
	switch cmd {
	case ui.CommandPlay:
		return d.player.Play(ctx)
	case ui.CommandPause:
		return d.player.Pause(ctx)
	case ui.CommandStop:
		return d.player.Stop(ctx)
	case ui.CommandNext:
		return d.player.Next(ctx)
	case ui.CommandSeekForward, ui.CommandSeekBackward:
		step := seekStep
		if cmd == ui.CommandSeekBackward {
			step = -seekStep
		}
		t := d.player.Status().Elapsed + step
		if t < 0 {
			t = 0
		}
		return d.player.Seek(ctx, t)
	case ui.CommandVolumeUp, ui.CommandVolumeDown:
		volume := d.dispatcher.GetVolume()
		if volume < 0 {
			return fmt.Errorf("no mixer available")
		}
		if cmd == ui.CommandVolumeUp {
			volume += volumeStep
		} else {
			volume -= volumeStep
		}
		volume = min(max(volume, 0), 100)
		return d.dispatcher.SetVolume(volume)
	}
	return nil
}

// outputInfo summarizes the outputs for the TUI
func (d *Daemon) outputInfo() ui.OutputsMsg {
	outputs := d.dispatcher.Outputs()
	info := make(ui.OutputsMsg, 0, len(outputs))
	for _, ao := range outputs {
		info = append(info, ui.OutputInfo{
			Name:   ao.Name(),
			Plugin: ao.PluginName(),
			State:  ao.State().String(),
		})
	}
	return info
}

// statusLoop pushes player status to the TUI and ends Run after the last
// song when ExitWhenDone is set
func (d *Daemon) statusLoop(ctx context.Context) error {
	ticker := time.NewTicker(statusInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-d.player.Updates():
		case <-ticker.C:
		}

		status := d.player.Status()
		if d.tuiProg != nil {
			d.tuiProg.Send(ui.StatusMsg(status))
			d.tuiProg.Send(d.outputInfo())
		}

		if d.config.ExitWhenDone && status.State == player.StateStop && d.attempted.Load() {
			return errPlaylistDone
		}
	}
}
