// ABOUTME: Output that records the stream into a WAV file or a raw dump
// ABOUTME: WAV uses the go-audio encoder; raw files get the device export layout
package output

import (
	"encoding/binary"
	"fmt"
	"os"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/sirupsen/logrus"

	"github.com/Resonate-Protocol/playd/pkg/audio"
	"github.com/Resonate-Protocol/playd/pkg/audio/pcm"
)

// Recorder writes everything it plays to a WAV file. A raw recorder
// writes the exported bytes instead, in any format including DSD.
type Recorder struct {
	path    string
	format  audio.Format
	file    *os.File
	encoder *wav.Encoder
	samples []int

	raw      bool
	export   pcm.ExportParams
	exporter exporter
}

// NewRecorder creates a recorder writing a WAV file to path
func NewRecorder(path string) *Recorder {
	return &Recorder{path: path}
}

// NewRawRecorder creates a recorder writing headerless audio to path
func NewRawRecorder(path string, export pcm.ExportParams) *Recorder {
	return &Recorder{path: path, raw: true, export: export}
}

func newRecorderFromParams(params audio.Params) (Plugin, error) {
	path := params.Get("path", "")
	if path == "" {
		return nil, fmt.Errorf("recorder output: missing \"path\"")
	}

	switch encoder := params.Get("encoder", "wav"); encoder {
	case "wav":
		return NewRecorder(path), nil
	case "raw":
		ep, err := exportParamsFromParams(params, "dop", "pack24", "shift8", "reverse_endian")
		if err != nil {
			return nil, fmt.Errorf("recorder output: %w", err)
		}
		return NewRawRecorder(path, ep), nil
	default:
		return nil, fmt.Errorf("recorder output: unknown encoder %q", encoder)
	}
}

func (r *Recorder) Enable() error { return nil }

func (r *Recorder) Disable() {}

func (r *Recorder) Open(format *audio.Format) error {
	if r.raw {
		return r.openRaw(format)
	}

	switch format.Format {
	case audio.FormatS16, audio.FormatS24P32, audio.FormatS32:
	case audio.FormatFloat:
		format.Format = audio.FormatS24P32
	default:
		format.Format = audio.FormatS16
	}

	f, err := os.Create(r.path)
	if err != nil {
		return fmt.Errorf("failed to create %q: %w", r.path, err)
	}

	r.file = f
	r.format = *format
	r.encoder = wav.NewEncoder(f, int(format.SampleRate), format.Format.Bits(), int(format.Channels), 1)

	logrus.WithFields(logrus.Fields{
		"path":   r.path,
		"format": format.String(),
	}).Debug("Recording started")
	return nil
}

func (r *Recorder) Close() {
	if r.encoder != nil {
		if err := r.encoder.Close(); err != nil {
			logrus.WithError(err).WithField("path", r.path).Warn("Failed to finalise WAV file")
		}
		r.encoder = nil
	}
	if r.file != nil {
		if err := r.file.Close(); err != nil {
			logrus.WithError(err).WithField("path", r.path).Warn("Failed to close recording")
		}
		r.file = nil
	}
}

func (r *Recorder) openRaw(format *audio.Format) error {
	if format.Format == audio.FormatUndefined {
		format.Format = audio.FormatS16
	}

	f, err := os.Create(r.path)
	if err != nil {
		return fmt.Errorf("failed to create %q: %w", r.path, err)
	}

	r.file = f
	r.format = *format
	r.exporter.open(*format, r.export)

	logrus.WithFields(logrus.Fields{
		"path":   r.path,
		"format": format.String(),
		"rate":   r.exporter.outputRate(format.SampleRate),
	}).Debug("Raw recording started")
	return nil
}

func (r *Recorder) Play(data []byte) (int, error) {
	if r.raw {
		if _, err := r.file.Write(r.exporter.convert(data)); err != nil {
			return 0, fmt.Errorf("failed to write %q: %w", r.path, err)
		}
		return len(data), nil
	}

	sampleSize := r.format.SampleSize()
	n := len(data) / sampleSize

	if cap(r.samples) < n {
		r.samples = make([]int, n)
	}
	samples := r.samples[:n]

	for i := range samples {
		b := data[i*sampleSize:]
		if sampleSize == 2 {
			samples[i] = int(int16(binary.LittleEndian.Uint16(b)))
		} else {
			samples[i] = int(int32(binary.LittleEndian.Uint32(b)))
		}
	}

	buf := &goaudio.IntBuffer{
		Format: &goaudio.Format{
			NumChannels: int(r.format.Channels),
			SampleRate:  int(r.format.SampleRate),
		},
		Data:           samples,
		SourceBitDepth: r.format.Format.Bits(),
	}
	if err := r.encoder.Write(buf); err != nil {
		return 0, fmt.Errorf("failed to write %q: %w", r.path, err)
	}
	return n * sampleSize, nil
}

func (r *Recorder) Drain() {}

func (r *Recorder) Cancel() {
	if r.raw {
		r.exporter.reset()
	}
}
