// ABOUTME: Registry of filter plugins creatable from configuration
// ABOUTME: Maps plugin names to constructors taking a parameter block
package filter

import (
	"fmt"
	"sort"
	"sync"

	"github.com/Resonate-Protocol/playd/pkg/audio"
)

// Plugin creates filters of one kind from a configuration block
type Plugin struct {
	Name string
	New  func(params audio.Params) (Filter, error)
}

var (
	registryMu sync.RWMutex
	registry   = make(map[string]Plugin)
)

func init() {
	Register(Plugin{Name: "null", New: func(audio.Params) (Filter, error) { return Null{}, nil }})
	Register(Plugin{Name: "route", New: newRouteFromParams})
	Register(Plugin{Name: "normalize", New: func(audio.Params) (Filter, error) {
		return NewNormalize(DefaultCompressorConfig()), nil
	}})
	Register(Plugin{Name: "volume", New: func(audio.Params) (Filter, error) { return NewVolume(), nil }})
}

// Register adds a plugin, replacing one with the same name
func Register(p Plugin) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[p.Name] = p
}

// Lookup finds a plugin by name
func Lookup(name string) (Plugin, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	p, ok := registry[name]
	return p, ok
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

// New creates a filter from the named plugin
func New(plugin string, params audio.Params) (Filter, error) {
	p, ok := Lookup(plugin)
	if !ok {
		return nil, fmt.Errorf("no such filter plugin: %s", plugin)
	}
	f, err := p.New(params)
	if err != nil {
		return nil, fmt.Errorf("failed to create filter plugin %s: %w", plugin, err)
	}
	return f, nil
}
