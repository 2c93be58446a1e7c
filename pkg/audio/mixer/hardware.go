// ABOUTME: Hardware mixer forwarding volume to an output device
// ABOUTME: Remembers the volume while the device is closed and reapplies it on open
package mixer

import (
	"fmt"
	"sync"
)

// Device is an output that can change its own volume (0..100)
type Device interface {
	SetVolume(volume int) error
	GetVolume() (int, error)
}

// Hardware controls a device's own volume
type Hardware struct {
	mu     sync.Mutex
	device Device
	volume int
	open   bool
}

// NewHardware creates a mixer for device
func NewHardware(device Device) *Hardware {
	return &Hardware{device: device, volume: 100}
}

// Open applies the remembered volume to the (now open) device
func (h *Hardware) Open() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if err := h.device.SetVolume(h.volume); err != nil {
		return fmt.Errorf("failed to restore device volume: %w", err)
	}
	h.open = true
	return nil
}

func (h *Hardware) Close() {
	h.mu.Lock()
	h.open = false
	h.mu.Unlock()
}

func (h *Hardware) GetVolume() (int, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.open {
		return h.volume, nil
	}
	v, err := h.device.GetVolume()
	if err != nil {
		return 0, err
	}
	h.volume = v
	return v, nil
}

func (h *Hardware) SetVolume(volume int) error {
	volume = clampPercent(volume)

	h.mu.Lock()
	defer h.mu.Unlock()

	h.volume = volume
	if !h.open {
		return nil
	}
	return h.device.SetVolume(volume)
}
