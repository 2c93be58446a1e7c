// ABOUTME: Tests for the player goroutine with generated WAV songs
// ABOUTME: A capturing output plugin records what reaches the device
package player

import (
	"context"
	"encoding/binary"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Resonate-Protocol/playd/pkg/audio"
	"github.com/Resonate-Protocol/playd/pkg/audio/chunk"
	"github.com/Resonate-Protocol/playd/pkg/audio/output"
)

const (
	songRate   = 8000
	songFrames = 16000
	songBytes  = songFrames * 4
)

// capturePlugin is an output device that keeps everything it plays
type capturePlugin struct {
	mu      sync.Mutex
	data    []byte
	delay   time.Duration
	maxPlay int
}

func (p *capturePlugin) Enable() error                   { return nil }
func (p *capturePlugin) Disable()                        {}
func (p *capturePlugin) Open(format *audio.Format) error { return nil }
func (p *capturePlugin) Close()                          {}
func (p *capturePlugin) Drain()                          {}
func (p *capturePlugin) Cancel()                         {}

func (p *capturePlugin) Pause() bool {
	time.Sleep(time.Millisecond)
	return true
}

func (p *capturePlugin) Play(data []byte) (int, error) {
	if p.delay > 0 {
		time.Sleep(p.delay)
	}
	if p.maxPlay > 0 && len(data) > p.maxPlay {
		data = data[:p.maxPlay]
	}
	p.mu.Lock()
	p.data = append(p.data, data...)
	p.mu.Unlock()
	return len(data), nil
}

func (p *capturePlugin) played() []byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]byte(nil), p.data...)
}

// writeSong writes a stereo 16 bit WAV whose left channel counts frames
func writeSong(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	samples := make([]int, 0, 2*songFrames)
	for i := 0; i < songFrames; i++ {
		samples = append(samples, i, 1000)
	}

	enc := wav.NewEncoder(f, songRate, 16, 2, 1)
	require.NoError(t, enc.Write(&goaudio.IntBuffer{
		Data:           samples,
		Format:         &goaudio.Format{NumChannels: 2, SampleRate: songRate},
		SourceBitDepth: 16,
	}))
	require.NoError(t, enc.Close())
	return path
}

type testPlayer struct {
	*Player
	plugin *capturePlugin
	cancel context.CancelFunc
	done   chan struct{}
}

func newTestPlayer(t *testing.T, cfg Config, plugin *capturePlugin) *testPlayer {
	t.Helper()

	ao, err := output.New(output.Config{Name: "capture", Enabled: true}, plugin, output.Options{})
	require.NoError(t, err)
	d, err := output.NewDispatcher([]*output.AudioOutput{ao})
	require.NoError(t, err)

	pool := chunk.NewPool(32)
	p := New(cfg, pool, d)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = p.Run(ctx)
	}()

	tp := &testPlayer{Player: p, plugin: plugin, cancel: cancel, done: done}
	t.Cleanup(func() {
		cancel()
		<-done
		d.Shutdown()
	})
	return tp
}

func testContext(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func leftSample(data []byte, frame int) int16 {
	return int16(binary.LittleEndian.Uint16(data[frame*4:]))
}

func stopped(p *testPlayer) func() bool {
	return func() bool { return p.Status().State == StateStop }
}

func TestPlayerPlaysPlaylist(t *testing.T) {
	dir := t.TempDir()
	a := writeSong(t, dir, "a.wav")
	b := writeSong(t, dir, "b.wav")

	var mu sync.Mutex
	var started []string
	cfg := Config{
		BufferBeforePlay: 4,
		Hooks: Hooks{SongStarted: func(path string) {
			mu.Lock()
			started = append(started, path)
			mu.Unlock()
		}},
	}
	p := newTestPlayer(t, cfg, &capturePlugin{})
	ctx := testContext(t)

	require.NoError(t, p.Enqueue(ctx, a, b))
	require.NoError(t, p.Play(ctx))

	require.Eventually(t, func() bool { return len(p.plugin.played()) == 2*songBytes }, 5*time.Second, 10*time.Millisecond)
	require.Eventually(t, stopped(p), 5*time.Second, 10*time.Millisecond)

	data := p.plugin.played()
	assert.Equal(t, int16(0), leftSample(data, 0))
	assert.Equal(t, int16(songFrames-1), leftSample(data, songFrames-1))
	assert.Equal(t, int16(0), leftSample(data, songFrames))

	mu.Lock()
	assert.Equal(t, []string{a, b}, started)
	mu.Unlock()

	status := p.Status()
	assert.Equal(t, 2, status.Queue)
	assert.NoError(t, status.Err)
}

func TestPlayerSkipsBrokenSong(t *testing.T) {
	dir := t.TempDir()
	good := writeSong(t, dir, "good.wav")
	missing := filepath.Join(dir, "missing.wav")
	broken := filepath.Join(dir, "broken.wav")
	require.NoError(t, os.WriteFile(broken, []byte("RIFF junk"), 0o644))

	var mu sync.Mutex
	var failed []string
	cfg := Config{
		BufferBeforePlay: 2,
		Hooks: Hooks{SongFailed: func(path string, err error) {
			mu.Lock()
			failed = append(failed, path)
			mu.Unlock()
		}},
	}
	p := newTestPlayer(t, cfg, &capturePlugin{})
	ctx := testContext(t)

	require.NoError(t, p.Enqueue(ctx, missing, broken, good))
	require.NoError(t, p.Play(ctx))

	require.Eventually(t, func() bool { return len(p.plugin.played()) == songBytes }, 5*time.Second, 10*time.Millisecond)
	require.Eventually(t, stopped(p), 5*time.Second, 10*time.Millisecond)

	mu.Lock()
	assert.Equal(t, []string{missing, broken}, failed)
	mu.Unlock()
}

func TestPlayerCrossFade(t *testing.T) {
	dir := t.TempDir()
	a := writeSong(t, dir, "a.wav")
	b := writeSong(t, dir, "b.wav")

	cfg := Config{
		BufferBeforePlay: 2,
		OutputChunks:     2,
		CrossFade:        CrossFade{Duration: 500 * time.Millisecond},
	}
	p := newTestPlayer(t, cfg, &capturePlugin{delay: time.Millisecond})
	ctx := testContext(t)

	require.NoError(t, p.Enqueue(ctx, a, b))
	require.NoError(t, p.Play(ctx))
	require.Eventually(t, stopped(p), 5*time.Second, 10*time.Millisecond)

	// the overlapping chunks of both songs are played once
	played := len(p.plugin.played())
	assert.Less(t, played, 2*songBytes)
	assert.Greater(t, played, 2*songBytes-8*chunk.Size)
}

func TestPlayerPauseResume(t *testing.T) {
	dir := t.TempDir()
	a := writeSong(t, dir, "a.wav")

	p := newTestPlayer(t, Config{BufferBeforePlay: 2}, &capturePlugin{delay: 2 * time.Millisecond, maxPlay: 256})
	ctx := testContext(t)

	require.NoError(t, p.Enqueue(ctx, a))
	require.NoError(t, p.Play(ctx))
	require.NoError(t, p.Pause(ctx))
	assert.Equal(t, StatePause, p.Status().State)

	require.NoError(t, p.Play(ctx))
	assert.Equal(t, StatePlay, p.Status().State)

	require.Eventually(t, stopped(p), 5*time.Second, 10*time.Millisecond)
	data := p.plugin.played()
	require.GreaterOrEqual(t, len(data), songBytes)
	assert.Equal(t, int16(songFrames-1), leftSample(data, len(data)/4-1))
}

func TestPlayerSeek(t *testing.T) {
	dir := t.TempDir()
	a := writeSong(t, dir, "a.wav")

	p := newTestPlayer(t, Config{BufferBeforePlay: 2}, &capturePlugin{delay: 2 * time.Millisecond, maxPlay: 256})
	ctx := testContext(t)

	require.NoError(t, p.Enqueue(ctx, a))
	require.NoError(t, p.Play(ctx))
	require.Eventually(t, func() bool { return len(p.plugin.played()) > 0 }, 5*time.Second, 5*time.Millisecond)

	require.NoError(t, p.Seek(ctx, 1500*time.Millisecond))
	require.Eventually(t, stopped(p), 5*time.Second, 10*time.Millisecond)

	data := p.plugin.played()
	assert.Less(t, len(data), songBytes*3/4)
	assert.Equal(t, int16(songFrames-1), leftSample(data, len(data)/4-1))
}

func TestPlayerNextAndStop(t *testing.T) {
	dir := t.TempDir()
	a := writeSong(t, dir, "a.wav")
	b := writeSong(t, dir, "b.wav")

	p := newTestPlayer(t, Config{BufferBeforePlay: 2}, &capturePlugin{delay: 2 * time.Millisecond, maxPlay: 256})
	ctx := testContext(t)

	require.NoError(t, p.Enqueue(ctx, a, b))
	require.NoError(t, p.Play(ctx))
	require.NoError(t, p.Next(ctx))

	status := p.Status()
	assert.Equal(t, b, status.Song)
	assert.Equal(t, 1, status.Position)

	require.NoError(t, p.Stop(ctx))
	assert.Equal(t, StateStop, p.Status().State)

	assert.ErrorIs(t, p.Pause(ctx), ErrNoSong)
	assert.ErrorIs(t, p.Seek(ctx, time.Second), ErrNoSong)
}

func TestPlayerEmptyPlaylist(t *testing.T) {
	p := newTestPlayer(t, Config{}, &capturePlugin{})
	assert.ErrorIs(t, p.Play(testContext(t)), ErrNoSong)
}
