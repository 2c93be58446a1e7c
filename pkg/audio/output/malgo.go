// ABOUTME: Malgo-based audio output with hi-res sample formats
// ABOUTME: Uses miniaudio via malgo; Play feeds a ring buffer drained by the device callback
package output

import (
	"fmt"
	"sync"
	"time"

	"github.com/gen2brain/malgo"
	"github.com/sirupsen/logrus"

	"github.com/Resonate-Protocol/playd/pkg/audio"
	"github.com/Resonate-Protocol/playd/pkg/audio/pcm"
)

const (
	malgoPauseInterval = 100 * time.Millisecond
	malgoWriteWait     = 2 * time.Second
	malgoDrainPoll     = 10 * time.Millisecond
)

// Malgo plays through miniaudio. S16, S32 and float are handed to the
// device as-is; 24 bit samples are packed to three bytes, or shifted into
// S32 with "shift8". With "dop" DSD is sent as DoP frames to the DAC.
type Malgo struct {
	bufferTime time.Duration
	dop        bool
	shift8     bool

	mu         sync.Mutex
	malgoCtx   *malgo.AllocatedContext
	device     *malgo.Device
	format     audio.Format
	deviceSize int // bytes per frame on the device side
	volume     int
	paused     bool

	ringBuffer *RingBuffer
	space      chan struct{}
	scratch    []byte
	exporter   exporter
}

// NewMalgo creates a malgo output buffering bufferTime of audio
func NewMalgo(bufferTime time.Duration) *Malgo {
	if bufferTime <= 0 {
		bufferTime = 500 * time.Millisecond
	}
	return &Malgo{
		bufferTime: bufferTime,
		volume:     100,
		space:      make(chan struct{}, 1),
	}
}

func newMalgoFromParams(params audio.Params) (Plugin, error) {
	ms, err := params.GetInt("buffer_time", 500)
	if err != nil {
		return nil, fmt.Errorf("malgo output: %w", err)
	}
	// the device takes native-endian samples, so reverse_endian is not offered
	ep, err := exportParamsFromParams(params, "dop", "shift8")
	if err != nil {
		return nil, fmt.Errorf("malgo output: %w", err)
	}

	m := NewMalgo(time.Duration(ms) * time.Millisecond)
	m.dop = ep.DSDUSB
	m.shift8 = ep.Shift8
	return m, nil
}

// exportParams is what Open hands to the exporter
func (m *Malgo) exportParams() pcm.ExportParams {
	return pcm.ExportParams{
		DSDUSB: m.dop,
		Shift8: m.shift8,
		Pack24: !m.shift8,
	}
}

// deviceFormat maps an exported sample format onto miniaudio
func (m *Malgo) deviceFormat(f audio.SampleFormat) malgo.FormatType {
	switch f {
	case audio.FormatS24P32:
		if m.shift8 {
			return malgo.FormatS32
		}
		return malgo.FormatS24
	case audio.FormatS32:
		return malgo.FormatS32
	case audio.FormatFloat:
		return malgo.FormatF32
	}
	return malgo.FormatS16
}

// Enable initializes the miniaudio context
func (m *Malgo) Enable() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.malgoCtx != nil {
		return nil
	}
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return fmt.Errorf("failed to initialize malgo context: %w", err)
	}
	m.malgoCtx = ctx
	return nil
}

func (m *Malgo) Disable() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.malgoCtx != nil {
		if err := m.malgoCtx.Uninit(); err != nil {
			logrus.WithError(err).Warn("Malgo context uninit error")
		}
		m.malgoCtx.Free()
		m.malgoCtx = nil
	}
}

func (m *Malgo) Open(format *audio.Format) error {
	switch format.Format {
	case audio.FormatS16, audio.FormatS24P32, audio.FormatS32, audio.FormatFloat:
	case audio.FormatDSD:
		if !m.dop {
			format.Format = audio.FormatS16
		}
	default:
		format.Format = audio.FormatS16
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.malgoCtx == nil {
		return fmt.Errorf("malgo output not enabled: %w", audio.ErrOutputIO)
	}

	m.format = *format
	m.exporter.open(*format, m.exportParams())
	deviceFormat := m.deviceFormat(m.exporter.sampleFormat())
	rate := m.exporter.outputRate(format.SampleRate)
	m.deviceSize = m.exporter.frameSize(*format)
	m.ringBuffer = NewRingBuffer(int(int64(rate)*int64(m.bufferTime)/int64(time.Second)) * m.deviceSize)
	m.paused = false

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Playback)
	deviceConfig.Playback.Format = deviceFormat
	deviceConfig.Playback.Channels = uint32(format.Channels)
	deviceConfig.SampleRate = rate
	deviceConfig.Alsa.NoMMap = 1

	callbacks := malgo.DeviceCallbacks{
		Data: func(pOutput, pInput []byte, frameCount uint32) {
			m.dataCallback(pOutput, frameCount)
		},
	}

	device, err := malgo.InitDevice(m.malgoCtx.Context, deviceConfig, callbacks)
	if err != nil {
		return fmt.Errorf("failed to initialize playback device: %w", err)
	}
	if err := device.Start(); err != nil {
		device.Uninit()
		return fmt.Errorf("failed to start device: %w", err)
	}
	m.device = device

	logrus.WithFields(logrus.Fields{
		"format": format.String(),
		"device": formatName(deviceFormat),
		"rate":   rate,
		"dop":    m.dop && format.Format == audio.FormatDSD,
	}).Info("Malgo output opened")
	return nil
}

// dataCallback runs on the device thread
func (m *Malgo) dataCallback(pOutput []byte, frameCount uint32) {
	m.mu.Lock()
	paused := m.paused
	rb := m.ringBuffer
	m.mu.Unlock()

	size := int(frameCount) * m.deviceSize
	if size > len(pOutput) {
		size = len(pOutput)
	}
	if paused || rb == nil {
		clear(pOutput[:size])
		return
	}

	rb.Read(pOutput[:size])
	select {
	case m.space <- struct{}{}:
	default:
	}
}

func (m *Malgo) Close() {
	m.mu.Lock()
	device := m.device
	m.device = nil
	m.mu.Unlock()

	if device != nil {
		if err := device.Stop(); err != nil {
			logrus.WithError(err).Warn("Malgo device stop error")
		}
		device.Uninit()
	}
}

func (m *Malgo) Play(data []byte) (int, error) {
	m.mu.Lock()
	if m.device == nil {
		m.mu.Unlock()
		return 0, fmt.Errorf("malgo output not open: %w", audio.ErrOutputIO)
	}
	m.paused = false
	frameSize := m.format.FrameSize()
	rb := m.ringBuffer
	m.mu.Unlock()

	// how many whole source frames the free device space takes
	fit := func() int {
		return min(len(data), m.exporter.room(rb.Free(), m.deviceSize)) / frameSize * frameSize
	}

	n := fit()
	for n == 0 {
		select {
		case <-m.space:
		case <-time.After(malgoWriteWait):
			return 0, fmt.Errorf("malgo device stalled: %w", audio.ErrOutputIO)
		}
		n = fit()
	}

	m.scratch = append(m.scratch[:0], data[:n]...)

	m.mu.Lock()
	volume := m.volume
	m.mu.Unlock()
	// DoP must reach the DAC untouched
	if volume < 100 && m.format.Format != audio.FormatDSD {
		if err := pcm.ApplyVolume(m.scratch, m.format.Format, volume*pcm.VolumeOne/100); err != nil {
			return 0, err
		}
	}

	rb.Write(m.exporter.convert(m.scratch))
	return n, nil
}

func (m *Malgo) Drain() {
	m.mu.Lock()
	rb := m.ringBuffer
	m.mu.Unlock()
	if rb == nil {
		return
	}

	deadline := time.Now().Add(m.bufferTime + time.Second)
	for rb.Available() > 0 && time.Now().Before(deadline) {
		time.Sleep(malgoDrainPoll)
	}
}

func (m *Malgo) Cancel() {
	m.mu.Lock()
	rb := m.ringBuffer
	m.mu.Unlock()
	if rb != nil {
		rb.Reset()
	}
	m.exporter.reset()
}

func (m *Malgo) Pause() bool {
	m.mu.Lock()
	if m.device == nil {
		m.mu.Unlock()
		return false
	}
	m.paused = true
	m.mu.Unlock()

	time.Sleep(malgoPauseInterval)
	return true
}

// SetVolume sets the volume applied to written samples (0-100)
func (m *Malgo) SetVolume(volume int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.volume = max(0, min(100, volume))
	return nil
}

// GetVolume returns the current volume (0-100)
func (m *Malgo) GetVolume() (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.volume, nil
}

// formatName returns human-readable format name
func formatName(format malgo.FormatType) string {
	switch format {
	case malgo.FormatS16:
		return "S16"
	case malgo.FormatS24:
		return "S24"
	case malgo.FormatS32:
		return "S32"
	case malgo.FormatF32:
		return "F32"
	default:
		return fmt.Sprintf("Unknown(%d)", format)
	}
}
