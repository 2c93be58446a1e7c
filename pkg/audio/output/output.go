// ABOUTME: Audio output plugin contract and registry
// ABOUTME: Plugins are created by name from an output configuration block
package output

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/Resonate-Protocol/playd/pkg/audio"
)

// Plugin is an audio sink driven by one AudioOutput goroutine.
// Play returns the number of bytes consumed; 0 or an error is fatal for
// this output until it is reopened.
type Plugin interface {
	// Enable claims the device; called once before the first Open
	Enable() error
	Disable()

	// Open configures the device. It may narrow format to what the
	// device supports, the filter chain converts to it.
	Open(format *audio.Format) error
	Close()

	Play(data []byte) (int, error)

	// Drain blocks until everything written has been played
	Drain()

	// Cancel drops buffered audio without closing the device
	Cancel()
}

// Pauser is implemented by plugins that can keep the device open while
// paused. Pause blocks for a short while (around 100ms) and returns false
// when the output has to be closed instead.
type Pauser interface {
	Pause() bool
}

// TagSender is implemented by plugins that forward song metadata
type TagSender interface {
	SendTag(tag *audio.Tag)
}

// Delayer is implemented by plugins that pace playback themselves. Delay
// returns how long the output goroutine should wait before the next Play.
type Delayer interface {
	Delay() time.Duration
}

// Factory creates plugins of one kind from a configuration block
type Factory struct {
	Name string
	New  func(params audio.Params) (Plugin, error)
}

var (
	registryMu sync.RWMutex
	registry   = make(map[string]Factory)
)

func init() {
	Register(Factory{Name: "null", New: newNullFromParams})
	Register(Factory{Name: "recorder", New: newRecorderFromParams})
	Register(Factory{Name: "httpd", New: newHTTPDFromParams})
	Register(Factory{Name: "oto", New: newOtoFromParams})
	Register(Factory{Name: "malgo", New: newMalgoFromParams})
}

// Register adds a plugin factory, replacing one with the same name
func Register(f Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[f.Name] = f
}

// Lookup finds a plugin factory by name
func Lookup(name string) (Factory, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	f, ok := registry[name]
	return f, ok
}

// Plugins returns the registered plugin names, sorted
func Plugins() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// NewPlugin creates a plugin from the named factory
func NewPlugin(name string, params audio.Params) (Plugin, error) {
	f, ok := Lookup(name)
	if !ok {
		return nil, fmt.Errorf("no such audio output plugin: %s", name)
	}
	p, err := f.New(params)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s output: %w", name, err)
	}
	return p, nil
}
