// ABOUTME: Tests for the Bridge between decoder plugins and the chunk queue
// ABOUTME: Covers chunk filling, partial frames, tags, replay gain and seeking
package decode

import (
	"context"
	"encoding/binary"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Resonate-Protocol/playd/pkg/audio"
	"github.com/Resonate-Protocol/playd/pkg/audio/chunk"
	"github.com/Resonate-Protocol/playd/pkg/audio/resample"
)

var cdFormat = audio.NewFormat(44100, audio.FormatS16, 2)

func s16Bytes(samples ...int16) []byte {
	buf := make([]byte, 2*len(samples))
	for i, s := range samples {
		binary.LittleEndian.PutUint16(buf[2*i:], uint16(s))
	}
	return buf
}

// frames returns n stereo frames whose left sample is the frame index
func frames(n int) []byte {
	samples := make([]int16, 0, 2*n)
	for i := 0; i < n; i++ {
		samples = append(samples, int16(i), 0)
	}
	return s16Bytes(samples...)
}

func drain(q *chunk.Queue, pool *chunk.Pool) []*chunk.Chunk {
	var out []*chunk.Chunk
	for c := q.Shift(); c != nil; c = q.Shift() {
		out = append(out, c)
	}
	return out
}

func newTestBridge(t *testing.T, poolSize int) (*Bridge, *chunk.Pool, *chunk.Queue) {
	t.Helper()
	pool := chunk.NewPool(poolSize)
	queue := chunk.NewQueue()
	b := NewBridge(context.Background(), pool, queue, audio.Format{}, resample.Linear)
	return b, pool, queue
}

func TestBridgeFillsChunks(t *testing.T) {
	b, pool, queue := newTestBridge(t, 8)
	b.Ready(cdFormat, true, time.Minute)

	// two full chunks, one extra frame and half a frame
	data := append(frames(2*chunk.Size/4+1), 0xAA, 0xBB)
	assert.Equal(t, CommandNone, b.Data(data, 320))
	assert.Equal(t, 2, queue.Size())

	b.Flush()
	chunks := drain(queue, pool)
	require.Len(t, chunks, 3)

	assert.Equal(t, chunk.Size, chunks[0].Length)
	assert.Equal(t, chunk.Size, chunks[1].Length)
	assert.Equal(t, 4, chunks[2].Length)

	assert.Equal(t, 0.0, chunks[0].Time)
	assert.InDelta(t, 1024.0/44100, chunks[1].Time, 1e-9)
	assert.InDelta(t, 2048.0/44100, chunks[2].Time, 1e-9)
	assert.Equal(t, 320, chunks[0].BitRate)
	assert.Equal(t, cdFormat, chunks[0].Format())
}

func TestBridgeJoinsPartialFrames(t *testing.T) {
	b, pool, queue := newTestBridge(t, 4)
	b.Ready(cdFormat, false, 0)

	whole := s16Bytes(7, 8)
	b.Data(whole[:3], 0)
	b.Data(whole[3:], 0)
	b.Flush()

	chunks := drain(queue, pool)
	require.Len(t, chunks, 1)
	assert.Equal(t, whole, chunks[0].Data())
}

func TestBridgeDataBeforeReady(t *testing.T) {
	b, _, _ := newTestBridge(t, 4)
	assert.Equal(t, CommandStop, b.Data(frames(4), 0))
	assert.Error(t, b.Err())
}

func TestBridgeConvertsToMask(t *testing.T) {
	pool := chunk.NewPool(4)
	queue := chunk.NewQueue()
	mask := audio.Format{Channels: 1}
	b := NewBridge(context.Background(), pool, queue, mask, resample.Linear)

	b.Ready(cdFormat, true, 0)
	assert.Equal(t, audio.NewFormat(44100, audio.FormatS16, 1), b.OutFormat())
	assert.Equal(t, cdFormat, b.InFormat())

	b.Data(s16Bytes(100, 100, -50, -50), 0)
	b.Flush()

	chunks := drain(queue, pool)
	require.Len(t, chunks, 1)
	assert.Equal(t, s16Bytes(100, -50), chunks[0].Data())
}

func TestBridgeTagStartsNewChunk(t *testing.T) {
	b, pool, queue := newTestBridge(t, 4)
	b.Ready(cdFormat, true, 0)

	b.Data(frames(4), 0)
	tag := &audio.Tag{Title: "Second"}
	assert.Equal(t, CommandNone, b.Tag(tag))
	b.Data(frames(2), 0)
	b.Flush()

	chunks := drain(queue, pool)
	require.Len(t, chunks, 2)
	assert.Nil(t, chunks[0].Tag)
	assert.Equal(t, 16, chunks[0].Length)
	assert.Same(t, tag, chunks[1].Tag)
	assert.Equal(t, 8, chunks[1].Length)
}

func TestBridgeTagOnlyChunk(t *testing.T) {
	b, pool, queue := newTestBridge(t, 4)
	b.Ready(cdFormat, true, 0)

	b.Tag(&audio.Tag{Artist: "Someone"})
	b.Flush()

	chunks := drain(queue, pool)
	require.Len(t, chunks, 1)
	assert.Equal(t, 0, chunks[0].Length)
	assert.Equal(t, "Someone", chunks[0].Tag.Artist)
}

func TestBridgeReplayGainSerial(t *testing.T) {
	b, pool, queue := newTestBridge(t, 4)
	b.Ready(cdFormat, true, 0)

	b.Data(frames(2), 0)

	info := audio.NewReplayGainInfo()
	info.Track.Gain = -3
	b.ReplayGain(&info)
	b.Data(frames(2), 0)

	info.Track.Gain = -5
	b.ReplayGain(&info)
	b.Data(frames(2), 0)

	b.ReplayGain(nil)
	b.Data(frames(2), 0)
	b.Flush()

	chunks := drain(queue, pool)
	require.Len(t, chunks, 4)

	assert.Equal(t, uint32(0), chunks[0].ReplayGainSerial)
	assert.NotZero(t, chunks[1].ReplayGainSerial)
	assert.Equal(t, float32(-3), chunks[1].ReplayGainInfo.Track.Gain)
	assert.NotZero(t, chunks[2].ReplayGainSerial)
	assert.NotEqual(t, chunks[1].ReplayGainSerial, chunks[2].ReplayGainSerial)
	assert.Equal(t, float32(-5), chunks[2].ReplayGainInfo.Track.Gain)
	assert.Equal(t, uint32(0), chunks[3].ReplayGainSerial)
}

func TestBridgeSeekDiscardsFrames(t *testing.T) {
	b, pool, queue := newTestBridge(t, 4)
	b.SetSeek(time.Second)
	b.Ready(audio.NewFormat(100, audio.FormatS16, 2), true, 0)

	// 100 frames are one second; frame 100 is the first kept
	b.Data(frames(60), 0)
	b.Data(frames(60), 0)
	b.Flush()

	chunks := drain(queue, pool)
	require.Len(t, chunks, 1)
	assert.Equal(t, 20*4, chunks[0].Length)
	assert.InDelta(t, 1.0, chunks[0].Time, 1e-9)
	assert.Equal(t, int16(40), int16(binary.LittleEndian.Uint16(chunks[0].Data())))
}

func TestBridgeTryAllocateExhausted(t *testing.T) {
	b, pool, _ := newTestBridge(t, 1)

	c, err := b.TryAllocate()
	require.NoError(t, err)

	_, err = b.TryAllocate()
	assert.True(t, errors.Is(err, audio.ErrBufferExhausted))

	pool.Return(c)
	c, err = b.TryAllocate()
	require.NoError(t, err)
	pool.Return(c)
}

func TestBridgeAllocateWaitsForReturn(t *testing.T) {
	b, pool, _ := newTestBridge(t, 1)

	held, err := b.TryAllocate()
	require.NoError(t, err)

	go func() {
		time.Sleep(20 * time.Millisecond)
		pool.Return(held)
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	c, err := b.AllocateChunk(ctx)
	require.NoError(t, err)
	pool.Return(c)
}

func TestBridgeStopsWhenCanceled(t *testing.T) {
	pool := chunk.NewPool(1)
	queue := chunk.NewQueue()
	ctx, cancel := context.WithCancel(context.Background())
	b := NewBridge(ctx, pool, queue, audio.Format{}, resample.Linear)
	b.Ready(cdFormat, true, 0)

	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	// needs a second chunk that never comes back
	assert.Equal(t, CommandStop, b.Data(frames(chunk.Size/4+1), 0))
	assert.True(t, errors.Is(b.Err(), context.Canceled))

	b.Close()
	assert.Equal(t, 1, queue.Size())
	assert.Equal(t, 1, pool.InUse())
}
