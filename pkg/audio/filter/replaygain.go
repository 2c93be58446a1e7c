// ABOUTME: Replay gain filter applying per-song loudness correction
// ABOUTME: Scales PCM, or drives a mixer instead when one is attached
package filter

import (
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/Resonate-Protocol/playd/pkg/audio"
	"github.com/Resonate-Protocol/playd/pkg/audio/pcm"
)

// VolumeSetter is the part of a mixer the replay gain filter drives
type VolumeSetter interface {
	SetVolume(volume int) error
}

// ReplayGainConfig holds the global replay gain settings
type ReplayGainConfig struct {
	// Preamp in dB, applied on top of the song gain
	Preamp float32
	// MissingPreamp in dB, used for songs without replay gain data
	MissingPreamp float32
	// Limit prevents the scaled peak from exceeding full scale
	Limit bool
}

// DefaultReplayGainConfig returns no preamp and limiting enabled
func DefaultReplayGainConfig() ReplayGainConfig {
	return ReplayGainConfig{Limit: true}
}

// ReplayGain applies the replay gain of the current song
type ReplayGain struct {
	mu     sync.Mutex
	config ReplayGainConfig
	mode   audio.ReplayGainMode
	info   audio.ReplayGainInfo
	volume int

	mixer VolumeSetter
	base  int

	format audio.Format
	dither pcm.Dither
	buf    pcm.Buffer
}

// NewReplayGain creates a replay gain filter
func NewReplayGain(config ReplayGainConfig, mode audio.ReplayGainMode) *ReplayGain {
	return &ReplayGain{
		config: config,
		mode:   mode,
		info:   audio.NewReplayGainInfo(),
		volume: pcm.VolumeOne,
	}
}

// SetMixer makes the filter drive mixer instead of scaling PCM. base is the
// mixer volume (1..100) that corresponds to unity gain.
func (r *ReplayGain) SetMixer(mixer VolumeSetter, base int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.mixer = mixer
	r.base = base
	r.update()
}

// SetInfo sets the replay gain data of the current song; nil clears it
func (r *ReplayGain) SetInfo(info *audio.ReplayGainInfo) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if info != nil {
		r.info = *info
	} else {
		r.info.Clear()
	}
	r.update()
}

// SetMode switches between off, track, album and auto
func (r *ReplayGain) SetMode(mode audio.ReplayGainMode) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if mode == r.mode {
		return
	}
	r.mode = mode
	r.update()
}

// Volume returns the current fixed point factor
func (r *ReplayGain) Volume() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.volume
}

// update recalculates the factor; caller holds the lock
func (r *ReplayGain) update() {
	if r.mode != audio.ReplayGainOff {
		scale := r.info.Get(r.mode).Scale(
			audio.DBToFactor(r.config.Preamp),
			audio.DBToFactor(r.config.MissingPreamp),
			r.config.Limit)
		r.volume = pcm.FloatToVolume(float64(scale))
	} else {
		r.volume = pcm.VolumeOne
	}

	if r.mixer != nil {
		volume := r.volume * r.base / pcm.VolumeOne
		if volume > 100 {
			volume = 100
		}
		if err := r.mixer.SetVolume(volume); err != nil {
			logrus.WithError(err).Warn("Failed to update hardware mixer")
		}
	}
}

func (r *ReplayGain) Open(in *audio.Format) (audio.Format, error) {
	r.format = *in
	r.dither.Reset()
	return *in, nil
}

func (r *ReplayGain) Filter(src []byte) ([]byte, error) {
	r.mu.Lock()
	volume := r.volume
	hasMixer := r.mixer != nil
	r.mu.Unlock()

	if hasMixer || volume == pcm.VolumeOne {
		return src, nil
	}

	dst := r.buf.Get(len(src))
	copy(dst, src)
	if err := r.dither.ApplyVolume(dst, r.format.Format, volume); err != nil {
		return nil, err
	}
	return dst, nil
}

func (r *ReplayGain) Close() {
	r.buf.Clear()
}
