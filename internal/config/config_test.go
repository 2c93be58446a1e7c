// ABOUTME: Tests for configuration loading and conversion
// ABOUTME: Covers defaults, persistence, validation and output blocks
package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Resonate-Protocol/playd/pkg/audio"
	"github.com/Resonate-Protocol/playd/pkg/audio/mixer"
	"github.com/Resonate-Protocol/playd/pkg/audio/resample"
)

func TestLoadCreatesDefaults(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "playd")
	m := NewManager(dir)
	require.NoError(t, m.Load())

	_, err := os.Stat(m.GetPath())
	require.NoError(t, err)

	cfg := m.Get()
	assert.Equal(t, DefaultBufferChunks, cfg.BufferChunks)
	require.Len(t, cfg.Outputs, 1)
	assert.Equal(t, "oto", cfg.Outputs[0].Type)
}

func TestLoadKeepsDefaultsForMissingFields(t *testing.T) {
	dir := t.TempDir()
	data := `{"crossfade_seconds": 2.5, "outputs": [{"name": "null", "type": "null", "params": {"sync": "no"}}]}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, FileName), []byte(data), 0600))

	m := NewManager(dir)
	require.NoError(t, m.Load())

	cfg := m.Get()
	assert.Equal(t, DefaultBufferChunks, cfg.BufferChunks)
	assert.Equal(t, 2500*time.Millisecond, cfg.CrossFade())
	require.Len(t, cfg.Outputs, 1)
	assert.Equal(t, "no", cfg.Outputs[0].Params["sync"])
}

func TestLoadOutputsReplaceDefaults(t *testing.T) {
	tests := []struct {
		name string
		data string
		want []OutputConfig
	}{
		{
			name: "configured output",
			data: `{"outputs": [{"name": "rec", "type": "recorder"}]}`,
			want: []OutputConfig{{Name: "rec", Type: "recorder"}},
		},
		{
			name: "no outputs key",
			data: `{"crossfade_seconds": 1}`,
			want: DefaultConfig().Outputs,
		},
		{
			name: "empty list",
			data: `{"outputs": []}`,
			want: []OutputConfig{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			require.NoError(t, os.WriteFile(filepath.Join(dir, FileName), []byte(tt.data), 0600))

			m := NewManager(dir)
			require.NoError(t, m.Load())
			assert.Equal(t, tt.want, m.Get().Outputs)
		})
	}
}

func TestLoadRejectsInvalidFile(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"not json", `{"buffer_chunks": `},
		{"bad format", `{"audio_output_format": "44100:12:2"}`},
		{"bad resampler", `{"resampler": "sinc"}`},
		{"bad replay gain", `{"replay_gain": {"mode": "loud"}}`},
		{"bad percentage", `{"buffer_before_play": "150%"}`},
		{"duplicate outputs", `{"outputs": [{"name": "a", "type": "null"}, {"name": "a", "type": "null"}]}`},
		{"output without type", `{"outputs": [{"name": "a"}]}`},
		{"bad mixer", `{"outputs": [{"name": "a", "type": "null", "mixer_type": "loud"}]}`},
		{"filter without plugin", `{"filters": [{"name": "f"}]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			require.NoError(t, os.WriteFile(filepath.Join(dir, FileName), []byte(tt.data), 0600))
			assert.Error(t, NewManager(dir).Load())
		})
	}
}

func TestUpdateSaves(t *testing.T) {
	dir := t.TempDir()
	m := NewManager(dir)
	require.NoError(t, m.Load())

	cfg := DefaultConfig()
	cfg.CrossfadeSeconds = 3
	require.NoError(t, m.Update(cfg))

	other := NewManager(dir)
	require.NoError(t, other.Load())
	assert.Equal(t, float64(3), other.Get().CrossfadeSeconds)

	bad := DefaultConfig()
	bad.BufferChunks = 0
	assert.Error(t, m.Update(bad))
	assert.Equal(t, float64(3), m.Get().CrossfadeSeconds)
}

func TestBufferBeforePlayChunks(t *testing.T) {
	tests := []struct {
		value string
		want  int
	}{
		{"10%", 102},
		{"50", 512},
		{" 0% ", 0},
		{"", 0},
		{"100%", 1024},
	}

	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.BufferBeforePlay = tt.value
			got, err := cfg.BufferBeforePlayChunks()
			require.NoError(t, err)
			if got != tt.want {
				t.Errorf("expected %d, got %d", tt.want, got)
			}
		})
	}
}

func TestOutputOptions(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Resampler = "linear"
	cfg.ReplayGain = ReplayGainConfig{Mode: "album", Preamp: 3, Limit: true}
	cfg.Filters = []FilterConfig{{Name: "left", Plugin: "route", Params: map[string]string{"routes": "0>0, 0>1"}}}

	opts, err := cfg.OutputOptions()
	require.NoError(t, err)
	assert.Equal(t, resample.Linear, opts.Resampler)
	assert.Equal(t, audio.ReplayGainAlbum, opts.ReplayGainMode)
	assert.Equal(t, float32(3), opts.ReplayGain.Preamp)

	params, ok := opts.FilterBlocks("left")
	require.True(t, ok)
	assert.Equal(t, "route", params.Get("plugin", ""))
	assert.Equal(t, "0>0, 0>1", params.Get("routes", ""))

	_, ok = opts.FilterBlocks("right")
	assert.False(t, ok)
}

func TestOutputConfigToOutput(t *testing.T) {
	disabled := false
	o := OutputConfig{
		Name:      "stream",
		Type:      "httpd",
		Enabled:   &disabled,
		Format:    "48000:*:2",
		MixerType: "null",
		Params:    map[string]string{"bind_to_address": ":8000"},
	}

	cfg, err := o.ToOutput()
	require.NoError(t, err)
	assert.Equal(t, "stream", cfg.Name)
	assert.Equal(t, "httpd", cfg.Plugin)
	assert.False(t, cfg.Enabled)
	assert.Equal(t, audio.Format{SampleRate: 48000, Channels: 2}, cfg.Format)
	assert.Equal(t, mixer.TypeNull, cfg.MixerType)
	assert.Equal(t, ":8000", cfg.Params.Get("bind_to_address", ""))

	o.Enabled = nil
	cfg, err = o.ToOutput()
	require.NoError(t, err)
	assert.True(t, cfg.Enabled)
}

func TestAudioFormatMask(t *testing.T) {
	cfg := DefaultConfig()
	mask, err := cfg.AudioFormatMask()
	require.NoError(t, err)
	assert.Equal(t, audio.Format{}, mask)

	cfg.AudioOutputFormat = "44100:16:*"
	mask, err = cfg.AudioFormatMask()
	require.NoError(t, err)
	assert.Equal(t, audio.Format{SampleRate: 44100, Format: audio.FormatS16}, mask)
}
