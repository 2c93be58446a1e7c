// ABOUTME: Decoder plugin contract and registry
// ABOUTME: Plugins turn an encoded file into PCM handed to a Client
package decode

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/Resonate-Protocol/playd/pkg/audio"
)

// Command tells a decoder plugin what to do next
type Command int

const (
	// CommandNone means keep decoding
	CommandNone Command = iota
	// CommandStop asks the plugin to return as soon as possible
	CommandStop
)

func (c Command) String() string {
	if c == CommandStop {
		return "stop"
	}
	return "none"
}

// Client is the pipeline as seen by a decoder plugin
type Client interface {
	// Ready announces the decoded format; it must be called before Data
	Ready(format audio.Format, seekable bool, duration time.Duration)

	// Data submits interleaved little-endian PCM in the announced format
	Data(pcm []byte, bitRate int) Command

	// Tag submits song metadata found in the stream
	Tag(tag *audio.Tag) Command

	// ReplayGain submits the song's replay gain values
	ReplayGain(info *audio.ReplayGainInfo)

	// Command returns the pending command
	Command() Command
}

// Plugin decodes one kind of file
type Plugin struct {
	Name     string
	Suffixes []string
	Decode   func(ctx context.Context, r io.ReadSeeker, client Client) error
}

var (
	registryMu sync.RWMutex
	registry   = make(map[string]Plugin)
)

func init() {
	Register(mp3Plugin)
	Register(flacPlugin)
	Register(wavPlugin)
	Register(aiffPlugin)
	Register(vorbisPlugin)
	Register(pcmPlugin)
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

// ForPath finds the plugin handling the file's suffix
func ForPath(path string) (Plugin, error) {
	suffix := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	if suffix == "" {
		return Plugin{}, fmt.Errorf("no suffix on %q", path)
	}

	registryMu.RLock()
	defer registryMu.RUnlock()

	// deterministic choice when suffixes overlap
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		p := registry[name]
		for _, s := range p.Suffixes {
			if s == suffix {
				return p, nil
			}
		}
	}
	return Plugin{}, fmt.Errorf("no decoder for %q files", suffix)
}
