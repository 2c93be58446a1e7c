// ABOUTME: Persistence of the output enable flags in the daemon state file
// ABOUTME: Lines look like "audio_device_state:1:name"; StateFile saves on change
package output

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

const statePrefix = "audio_device_state:"

// WriteState writes one line per output
func WriteState(w io.Writer, outputs []*AudioOutput) error {
	for _, ao := range outputs {
		enabled := 0
		if ao.IsEnabled() {
			enabled = 1
		}
		if _, err := fmt.Fprintf(w, "%s%d:%s\n", statePrefix, enabled, ao.Name()); err != nil {
			return fmt.Errorf("failed to write output state: %w", err)
		}
	}
	return nil
}

// ReadState applies the enable flags found in r to the dispatcher's
// outputs. Lines that do not belong to outputs are ignored; malformed
// lines and unknown outputs are logged and skipped.
func ReadState(r io.Reader, d *Dispatcher) error {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		rest, ok := strings.CutPrefix(line, statePrefix)
		if !ok {
			continue
		}

		value, name, ok := strings.Cut(rest, ":")
		enabled, err := strconv.Atoi(value)
		if !ok || err != nil || name == "" {
			logrus.WithField("line", line).Warn("Malformed audio output state line")
			continue
		}

		ao := d.Find(name)
		if ao == nil {
			logrus.WithField("output", name).Warn("Unrecognized audio output in state file")
			continue
		}
		ao.SetEnabled(enabled != 0)
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read output state: %w", err)
	}
	return nil
}

// StateFile keeps the output state on disk
type StateFile struct {
	path       string
	interval   time.Duration
	dispatcher *Dispatcher
	last       []byte
}

// NewStateFile creates a state file at path checked every interval
func NewStateFile(path string, interval time.Duration, d *Dispatcher) *StateFile {
	return &StateFile{path: path, interval: interval, dispatcher: d}
}

// Read restores the output state; a missing file is not an error
func (s *StateFile) Read() error {
	f, err := os.Open(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to open state file: %w", err)
	}
	defer f.Close()

	if err := ReadState(f, s.dispatcher); err != nil {
		return err
	}
	s.last = s.render()
	return nil
}

func (s *StateFile) render() []byte {
	var buf bytes.Buffer
	// writing to a bytes.Buffer does not fail
	_ = WriteState(&buf, s.dispatcher.Outputs())
	return buf.Bytes()
}

// Write saves the state when it changed since the last Read or Write
func (s *StateFile) Write() error {
	data := s.render()
	if s.last != nil && bytes.Equal(data, s.last) {
		return nil
	}

	tmp := s.path + ".tmp"
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write state file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("failed to replace state file: %w", err)
	}

	s.last = data
	logrus.WithField("path", s.path).Debug("Saved state file")
	return nil
}

// Run saves the state every interval until ctx is done, then once more
func (s *StateFile) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return s.Write()
		case <-ticker.C:
			if err := s.Write(); err != nil {
				logrus.WithError(err).Warn("Failed to save state file")
			}
		}
	}
}
