// ABOUTME: Tests for daemon wiring
// ABOUTME: Plays generated songs into a recorder output end to end
package daemon

import (
	"context"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Resonate-Protocol/playd/internal/config"
	"github.com/Resonate-Protocol/playd/internal/ui"
)

const songFrames = 8000

func writeSong(t *testing.T, path string) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	samples := make([]int, 2*songFrames)
	for i := range samples {
		samples[i] = i % 1000
	}

	enc := wav.NewEncoder(f, 8000, 16, 2, 1)
	require.NoError(t, enc.Write(&goaudio.IntBuffer{
		Data:           samples,
		Format:         &goaudio.Format{NumChannels: 2, SampleRate: 8000},
		SourceBitDepth: 16,
	}))
	require.NoError(t, enc.Close())
}

func testSettings(dir string) *config.Config {
	s := config.DefaultConfig()
	s.BufferChunks = 32
	s.Zeroconf.Enabled = false
	s.StateFile = filepath.Join(dir, "state")
	s.Outputs = []config.OutputConfig{
		{Name: "file", Type: "recorder", MixerType: "software", Params: map[string]string{"path": filepath.Join(dir, "out.wav")}},
		{Name: "sink", Type: "null", MixerType: "null", Params: map[string]string{"sync": "no"}},
	}
	return s
}

func TestDaemonPlaysSongs(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.wav")
	b := filepath.Join(dir, "b.wav")
	writeSong(t, a)
	writeSong(t, b)
	missing := filepath.Join(dir, "missing.wav")

	d, err := New(Config{
		Settings:     testSettings(dir),
		Songs:        []string{a, missing, b},
		ExitWhenDone: true,
	})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	require.NoError(t, d.Run(ctx))
	require.NoError(t, ctx.Err(), "playlist did not finish")

	info, err := os.Stat(filepath.Join(dir, "out.wav"))
	require.NoError(t, err)
	assert.GreaterOrEqual(t, info.Size(), int64(2*songFrames*4))

	rec := httptest.NewRecorder()
	d.Metrics().Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	assert.Contains(t, rec.Body.String(), "playd_songs_started_total 2")
	assert.Contains(t, rec.Body.String(), "playd_songs_failed_total 1")
	assert.Contains(t, rec.Body.String(), `playd_output_bytes_played_total{output="file"}`)

	state, err := os.ReadFile(filepath.Join(dir, "state"))
	require.NoError(t, err)
	assert.Equal(t, "audio_device_state:1:file\naudio_device_state:1:sink\n", string(state))
}

func TestDaemonRestoresOutputState(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "state"), []byte("audio_device_state:0:sink\n"), 0o644))

	d, err := New(Config{Settings: testSettings(dir)})
	require.NoError(t, err)
	defer d.Dispatcher().Shutdown()

	assert.True(t, d.Dispatcher().Find("file").IsEnabled())
	assert.False(t, d.Dispatcher().Find("sink").IsEnabled())
}

func TestDaemonRejectsBadConfig(t *testing.T) {
	s := config.DefaultConfig()
	s.Outputs = []config.OutputConfig{{Name: "x", Type: "no-such-plugin"}}
	_, err := New(Config{Settings: s})
	assert.Error(t, err)

	s = config.DefaultConfig()
	s.BufferChunks = 0
	_, err = New(Config{Settings: s})
	assert.Error(t, err)
}

func TestApplyVolumeCommands(t *testing.T) {
	d, err := New(Config{Settings: testSettings(t.TempDir())})
	require.NoError(t, err)
	defer d.Dispatcher().Shutdown()

	ctx := context.Background()
	require.NoError(t, d.Dispatcher().SetVolume(50))

	require.NoError(t, d.apply(ctx, ui.CommandVolumeUp))
	assert.Equal(t, 55, d.Dispatcher().GetVolume())

	require.NoError(t, d.apply(ctx, ui.CommandVolumeDown))
	require.NoError(t, d.apply(ctx, ui.CommandVolumeDown))
	assert.Equal(t, 45, d.Dispatcher().GetVolume())
}

func TestOutputInfo(t *testing.T) {
	d, err := New(Config{Settings: testSettings(t.TempDir())})
	require.NoError(t, err)
	defer d.Dispatcher().Shutdown()

	info := d.outputInfo()
	require.Len(t, info, 2)
	assert.Equal(t, "file", info[0].Name)
	assert.Equal(t, "recorder", info[0].Plugin)
	assert.Equal(t, "sink", info[1].Name)
}

func TestPoolSizeFromConfig(t *testing.T) {
	d, err := New(Config{Settings: testSettings(t.TempDir())})
	require.NoError(t, err)
	defer d.Dispatcher().Shutdown()

	assert.Equal(t, 32, d.pool.Size())
}
