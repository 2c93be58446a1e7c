// ABOUTME: Daemon configuration file management
// ABOUTME: Loads and saves config.json and converts it into pipeline settings
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/Resonate-Protocol/playd/pkg/audio"
	"github.com/Resonate-Protocol/playd/pkg/audio/filter"
	"github.com/Resonate-Protocol/playd/pkg/audio/mixer"
	"github.com/Resonate-Protocol/playd/pkg/audio/output"
	"github.com/Resonate-Protocol/playd/pkg/audio/resample"
)

const (
	// DefaultBufferChunks is 4 MiB of audio
	DefaultBufferChunks = 1024

	// FileName is the name of the configuration file inside the config directory
	FileName = "config.json"
)

// Config represents the daemon configuration
type Config struct {
	// BufferChunks is the capacity of the chunk pool
	BufferChunks int `json:"buffer_chunks"`

	// BufferBeforePlay is the share of the buffer decoded before playback
	// starts, e.g. "10%"
	BufferBeforePlay string `json:"buffer_before_play"`

	// AudioOutputFormat forces decoded audio into this format mask
	AudioOutputFormat string `json:"audio_output_format,omitempty"`

	Resampler string `json:"resampler"`

	ReplayGain ReplayGainConfig `json:"replay_gain"`

	VolumeNormalization bool `json:"volume_normalization"`

	CrossfadeSeconds float64 `json:"crossfade_seconds"`
	MixRamp          bool    `json:"mixramp,omitempty"`

	// StateFile keeps the output enable flags across restarts
	StateFile         string `json:"state_file,omitempty"`
	StateFileInterval int    `json:"state_file_interval"`

	Zeroconf ZeroconfConfig `json:"zeroconf"`

	// MetricsListen is the address of the /metrics endpoint; empty disables it
	MetricsListen string `json:"metrics_listen,omitempty"`

	Outputs []OutputConfig `json:"outputs"`
	Filters []FilterConfig `json:"filters,omitempty"`
}

// ReplayGainConfig contains the replay gain settings
type ReplayGainConfig struct {
	Mode          string  `json:"mode"`
	Preamp        float32 `json:"preamp"`
	MissingPreamp float32 `json:"missing_preamp"`
	Limit         bool    `json:"limit"`
}

// ZeroconfConfig controls the mDNS advertisement
type ZeroconfConfig struct {
	Enabled bool   `json:"enabled"`
	Name    string `json:"name,omitempty"`
	Port    int    `json:"port"`
}

// OutputConfig describes one audio output block
type OutputConfig struct {
	Name              string            `json:"name"`
	Type              string            `json:"type"`
	Enabled           *bool             `json:"enabled,omitempty"`
	Format            string            `json:"format,omitempty"`
	MixerType         string            `json:"mixer_type,omitempty"`
	ReplayGainHandler string            `json:"replay_gain_handler,omitempty"`
	Filters           string            `json:"filters,omitempty"`
	Params            map[string]string `json:"params,omitempty"`
}

// FilterConfig describes a named filter template referenced by outputs
type FilterConfig struct {
	Name   string            `json:"name"`
	Plugin string            `json:"plugin"`
	Params map[string]string `json:"params,omitempty"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		BufferChunks:     DefaultBufferChunks,
		BufferBeforePlay: "10%",
		Resampler:        "cubic",
		ReplayGain: ReplayGainConfig{
			Mode:  "off",
			Limit: true,
		},
		StateFileInterval: 120,
		Zeroconf: ZeroconfConfig{
			Enabled: true,
			Port:    6600,
		},
		Outputs: []OutputConfig{
			{Name: "default", Type: "oto", MixerType: "software"},
		},
	}
}

// Manager handles loading and saving configuration
type Manager struct {
	configDir  string
	configPath string
	config     *Config
}

// NewManager creates a new configuration manager
func NewManager(configDir string) *Manager {
	return &Manager{
		configDir:  configDir,
		configPath: filepath.Join(configDir, FileName),
		config:     DefaultConfig(),
	}
}

// Load reads the configuration from disk, writing the defaults when the
// file does not exist yet
func (m *Manager) Load() error {
	if err := os.MkdirAll(m.configDir, 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if _, err := os.Stat(m.configPath); os.IsNotExist(err) {
		m.config = DefaultConfig()
		return m.Save()
	}

	data, err := os.ReadFile(m.configPath)
	if err != nil {
		return fmt.Errorf("failed to read config: %w", err)
	}

	// json decodes array elements into existing ones, so outputs start empty
	// and only fall back to the defaults when the file has none
	config := DefaultConfig()
	defaultOutputs := config.Outputs
	config.Outputs = nil
	if err := json.Unmarshal(data, config); err != nil {
		return fmt.Errorf("failed to parse config: %w", err)
	}
	if config.Outputs == nil {
		config.Outputs = defaultOutputs
	}
	if err := config.Validate(); err != nil {
		return fmt.Errorf("invalid config %s: %w", m.configPath, err)
	}

	m.config = config
	return nil
}

// Save writes the configuration to disk
func (m *Manager) Save() error {
	if err := os.MkdirAll(m.configDir, 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(m.config, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(m.configPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// Get returns the current configuration
func (m *Manager) Get() *Config {
	return m.config
}

// GetPath returns the config file path
func (m *Manager) GetPath() string {
	return m.configPath
}

// Update validates config, replaces the current one and saves it
func (m *Manager) Update(config *Config) error {
	if err := config.Validate(); err != nil {
		return err
	}
	m.config = config
	return m.Save()
}

// Validate checks every field that is parsed later on
func (c *Config) Validate() error {
	if c.BufferChunks <= 0 {
		return fmt.Errorf("buffer_chunks must be positive, got %d", c.BufferChunks)
	}
	if _, err := c.BufferBeforePlayChunks(); err != nil {
		return err
	}
	if _, err := c.AudioFormatMask(); err != nil {
		return err
	}
	if _, err := resample.ParseKind(c.Resampler); err != nil {
		return err
	}
	if _, err := audio.ParseReplayGainMode(c.ReplayGain.Mode); err != nil {
		return err
	}
	if c.CrossfadeSeconds < 0 {
		return fmt.Errorf("crossfade_seconds must not be negative")
	}

	names := make(map[string]bool, len(c.Outputs))
	for i, o := range c.Outputs {
		if _, err := o.ToOutput(); err != nil {
			return fmt.Errorf("output %d: %w", i, err)
		}
		if names[o.Name] {
			return fmt.Errorf("duplicate output name %q", o.Name)
		}
		names[o.Name] = true
	}

	filters := make(map[string]bool, len(c.Filters))
	for _, f := range c.Filters {
		if f.Name == "" || f.Plugin == "" {
			return fmt.Errorf("filter needs a name and a plugin")
		}
		if filters[f.Name] {
			return fmt.Errorf("duplicate filter name %q", f.Name)
		}
		filters[f.Name] = true
	}
	return nil
}

// BufferBeforePlayChunks converts buffer_before_play into a chunk count.
// The value is a percentage of buffer_chunks, the "%" sign is optional.
func (c *Config) BufferBeforePlayChunks() (int, error) {
	s := strings.TrimSuffix(strings.TrimSpace(c.BufferBeforePlay), "%")
	if s == "" {
		return 0, nil
	}
	perc, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || perc < 0 || perc > 100 {
		return 0, fmt.Errorf("buffer_before_play %q is not a percentage", c.BufferBeforePlay)
	}
	return int(perc / 100 * float64(c.BufferChunks)), nil
}

// AudioFormatMask parses audio_output_format; empty means no override
func (c *Config) AudioFormatMask() (audio.Format, error) {
	if strings.TrimSpace(c.AudioOutputFormat) == "" {
		return audio.Format{}, nil
	}
	f, err := audio.ParseFormatMask(c.AudioOutputFormat, true)
	if err != nil {
		return audio.Format{}, fmt.Errorf("audio_output_format: %w", err)
	}
	return f, nil
}

// ResamplerKind parses the resampler setting
func (c *Config) ResamplerKind() (resample.Kind, error) {
	return resample.ParseKind(c.Resampler)
}

// CrossFade returns the configured fade length
func (c *Config) CrossFade() time.Duration {
	return time.Duration(c.CrossfadeSeconds * float64(time.Second))
}

// StateInterval returns how often the state file is checked
func (c *Config) StateInterval() time.Duration {
	if c.StateFileInterval <= 0 {
		return 120 * time.Second
	}
	return time.Duration(c.StateFileInterval) * time.Second
}

// FilterBlock looks up a filter template by name for filter.ParseChain
func (c *Config) FilterBlock(name string) (audio.Params, bool) {
	for _, f := range c.Filters {
		if f.Name != name {
			continue
		}
		params := make(audio.Params, len(f.Params)+1)
		for k, v := range f.Params {
			params[k] = v
		}
		params["plugin"] = f.Plugin
		return params, true
	}
	return nil, false
}

// OutputOptions builds the settings shared by all outputs
func (c *Config) OutputOptions() (output.Options, error) {
	kind, err := c.ResamplerKind()
	if err != nil {
		return output.Options{}, err
	}
	mode, err := audio.ParseReplayGainMode(c.ReplayGain.Mode)
	if err != nil {
		return output.Options{}, err
	}

	return output.Options{
		Resampler:           kind,
		VolumeNormalization: c.VolumeNormalization,
		FilterBlocks:        c.FilterBlock,
		ReplayGain: filter.ReplayGainConfig{
			Preamp:        c.ReplayGain.Preamp,
			MissingPreamp: c.ReplayGain.MissingPreamp,
			Limit:         c.ReplayGain.Limit,
		},
		ReplayGainMode: mode,
	}, nil
}

// IsEnabled reports the configured enable flag, true when unset
func (o OutputConfig) IsEnabled() bool {
	return o.Enabled == nil || *o.Enabled
}

// ToOutput converts the block into an output.Config
func (o OutputConfig) ToOutput() (output.Config, error) {
	if o.Name == "" {
		return output.Config{}, fmt.Errorf("missing \"name\"")
	}
	if o.Type == "" {
		return output.Config{}, fmt.Errorf("output %q: missing \"type\"", o.Name)
	}

	var format audio.Format
	if strings.TrimSpace(o.Format) != "" {
		f, err := audio.ParseFormatMask(o.Format, true)
		if err != nil {
			return output.Config{}, fmt.Errorf("output %q: %w", o.Name, err)
		}
		format = f
	}

	mixerType, err := mixer.ParseType(o.MixerType)
	if err != nil {
		return output.Config{}, fmt.Errorf("output %q: %w", o.Name, err)
	}

	params := make(audio.Params, len(o.Params))
	for k, v := range o.Params {
		params[k] = v
	}

	return output.Config{
		Name:              o.Name,
		Plugin:            o.Type,
		Enabled:           o.IsEnabled(),
		Format:            format,
		MixerType:         mixerType,
		ReplayGainHandler: o.ReplayGainHandler,
		Filters:           o.Filters,
		Params:            params,
	}, nil
}
