// ABOUTME: Oto-based audio output with device volume control
// ABOUTME: Streams PCM through a pipe into one persistent oto player
package output

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"
	"github.com/sirupsen/logrus"

	"github.com/Resonate-Protocol/playd/pkg/audio"
)

const (
	otoPauseInterval = 100 * time.Millisecond
	otoDrainPoll     = 10 * time.Millisecond
)

// oto allows a single context per process; every Oto output shares it
var (
	otoMu     sync.Mutex
	otoCtx    *oto.Context
	otoFormat audio.Format
)

// Oto plays through the system's default device. Only signed 16 bit and
// float samples with up to two channels are supported; once the shared
// context exists every later Open is narrowed to its format.
type Oto struct {
	bufferTime time.Duration

	mu         sync.Mutex
	player     *oto.Player
	pipeReader *io.PipeReader
	pipeWriter *io.PipeWriter
	format     audio.Format
	volume     int
	paused     bool
}

// NewOto creates an oto output with the given device buffer length
func NewOto(bufferTime time.Duration) *Oto {
	return &Oto{bufferTime: bufferTime, volume: 100}
}

func newOtoFromParams(params audio.Params) (Plugin, error) {
	ms, err := params.GetInt("buffer_time", 0)
	if err != nil {
		return nil, fmt.Errorf("oto output: %w", err)
	}
	return NewOto(time.Duration(ms) * time.Millisecond), nil
}

func (o *Oto) Enable() error { return nil }

func (o *Oto) Disable() {}

func (o *Oto) Open(format *audio.Format) error {
	otoMu.Lock()
	defer otoMu.Unlock()

	if otoCtx != nil {
		if *format != otoFormat {
			logrus.WithFields(logrus.Fields{
				"requested": format.String(),
				"device":    otoFormat.String(),
			}).Info("Oto context already initialized, converting to its format")
			*format = otoFormat
		}
		if err := otoCtx.Resume(); err != nil {
			return fmt.Errorf("failed to resume oto context: %w", err)
		}
	} else {
		if format.Format != audio.FormatFloat {
			format.Format = audio.FormatS16
		}
		if format.Channels > 2 {
			format.Channels = 2
		}

		op := &oto.NewContextOptions{
			SampleRate:   int(format.SampleRate),
			ChannelCount: int(format.Channels),
			Format:       oto.FormatSignedInt16LE,
			BufferSize:   o.bufferTime,
		}
		if format.Format == audio.FormatFloat {
			op.Format = oto.FormatFloat32LE
		}

		ctx, readyChan, err := oto.NewContext(op)
		if err != nil {
			return fmt.Errorf("failed to create oto context: %w", err)
		}
		<-readyChan

		otoCtx = ctx
		otoFormat = *format
	}

	o.mu.Lock()
	o.format = *format
	o.paused = false
	o.startPlayer()
	o.mu.Unlock()

	logrus.WithField("format", format.String()).Info("Oto output opened")
	return nil
}

// startPlayer creates a fresh pipe and player (must hold o.mu)
func (o *Oto) startPlayer() {
	o.pipeReader, o.pipeWriter = io.Pipe()
	o.player = otoCtx.NewPlayer(o.pipeReader)
	o.player.SetVolume(float64(o.volume) / 100)
	o.player.Play()
}

// stopPlayer discards the player and whatever it buffered (must hold o.mu)
func (o *Oto) stopPlayer() {
	if o.pipeWriter != nil {
		o.pipeWriter.Close()
		o.pipeWriter = nil
	}
	if o.player != nil {
		if err := o.player.Close(); err != nil {
			logrus.WithError(err).Debug("Oto player close")
		}
		o.player = nil
	}
	if o.pipeReader != nil {
		o.pipeReader.Close()
		o.pipeReader = nil
	}
}

func (o *Oto) Close() {
	o.mu.Lock()
	o.stopPlayer()
	o.mu.Unlock()

	otoMu.Lock()
	defer otoMu.Unlock()
	if otoCtx != nil {
		if err := otoCtx.Suspend(); err != nil {
			logrus.WithError(err).Warn("Failed to suspend oto context")
		}
	}
}

func (o *Oto) Play(data []byte) (int, error) {
	o.mu.Lock()
	if o.player == nil {
		o.mu.Unlock()
		return 0, fmt.Errorf("oto output not open: %w", audio.ErrOutputIO)
	}
	if o.paused {
		o.player.Play()
		o.paused = false
	}
	w := o.pipeWriter
	o.mu.Unlock()

	// Blocks until the player pulled the data
	n, err := w.Write(data)
	if err != nil {
		return n, fmt.Errorf("pipe write failed: %w", err)
	}
	return n, nil
}

func (o *Oto) Drain() {
	o.mu.Lock()
	player := o.player
	o.mu.Unlock()
	if player == nil {
		return
	}

	deadline := time.Now().Add(o.format.SizeToTime(player.BufferedSize()) + time.Second)
	for player.BufferedSize() > 0 && time.Now().Before(deadline) {
		time.Sleep(otoDrainPoll)
	}
}

func (o *Oto) Cancel() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.player == nil {
		return
	}
	o.stopPlayer()
	o.startPlayer()
	o.paused = false
}

func (o *Oto) Pause() bool {
	o.mu.Lock()
	if o.player == nil {
		o.mu.Unlock()
		return false
	}
	if !o.paused {
		o.player.Pause()
		o.paused = true
	}
	o.mu.Unlock()

	time.Sleep(otoPauseInterval)
	return true
}

// SetVolume sets the player volume (0-100)
func (o *Oto) SetVolume(volume int) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.volume = max(0, min(100, volume))
	if o.player != nil {
		o.player.SetVolume(float64(o.volume) / 100)
	}
	return nil
}

// GetVolume returns the player volume (0-100)
func (o *Oto) GetVolume() (int, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.volume, nil
}
