// ABOUTME: Mixer boundary: volume control for one output
// ABOUTME: Software (PCM scaling), hardware (device volume) and null mixers
package mixer

import (
	"errors"
	"fmt"
	"strings"
	"sync"
)

// ErrNotOpen is returned by mixers that need an open device
var ErrNotOpen = errors.New("mixer is not open")

// Mixer controls the volume of one output on a 0..100 scale
type Mixer interface {
	Open() error
	Close()
	GetVolume() (int, error)
	SetVolume(volume int) error
}

// Type selects a mixer implementation
type Type int

const (
	TypeNone Type = iota
	TypeNull
	TypeSoftware
	TypeHardware
)

func (t Type) String() string {
	switch t {
	case TypeNull:
		return "null"
	case TypeSoftware:
		return "software"
	case TypeHardware:
		return "hardware"
	}
	return "none"
}

// ParseType parses a configured mixer type. The empty string means hardware.
func ParseType(s string) (Type, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "none", "disabled":
		return TypeNone, nil
	case "null":
		return TypeNull, nil
	case "software":
		return TypeSoftware, nil
	case "", "hardware":
		return TypeHardware, nil
	}
	return TypeNone, fmt.Errorf("unknown mixer type %q", s)
}

func clampPercent(volume int) int {
	if volume < 0 {
		return 0
	}
	if volume > 100 {
		return 100
	}
	return volume
}

// Null remembers the volume without affecting audio
type Null struct {
	mu     sync.Mutex
	volume int
}

// NewNull creates a null mixer at full volume
func NewNull() *Null {
	return &Null{volume: 100}
}

func (n *Null) Open() error { return nil }

func (n *Null) Close() {}

func (n *Null) GetVolume() (int, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.volume, nil
}

func (n *Null) SetVolume(volume int) error {
	n.mu.Lock()
	n.volume = clampPercent(volume)
	n.mu.Unlock()
	return nil
}
