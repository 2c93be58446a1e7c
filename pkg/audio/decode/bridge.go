// ABOUTME: Bridge between a decoder plugin and the chunk queue
// ABOUTME: Converts decoded PCM to the output format and fills pool chunks
package decode

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Resonate-Protocol/playd/pkg/audio"
	"github.com/Resonate-Protocol/playd/pkg/audio/chunk"
	"github.com/Resonate-Protocol/playd/pkg/audio/pcm"
	"github.com/Resonate-Protocol/playd/pkg/audio/resample"
)

// replayGainSerial is shared by all bridges so a serial never repeats
// within the process; 0 is reserved for "no replay gain"
var replayGainSerial atomic.Uint32

func nextReplayGainSerial() uint32 {
	for {
		if s := replayGainSerial.Add(1); s != 0 {
			return s
		}
	}
}

// Bridge implements Client on top of a chunk pool and queue
type Bridge struct {
	ctx   context.Context
	pool  *chunk.Pool
	queue *chunk.Queue
	mask  audio.Format
	kind  resample.Kind

	// seek is the song position the first delivered frame must start at
	seek time.Duration

	onReady func(in, out audio.Format, seekable bool, duration time.Duration)
	notify  func()

	ready     bool
	inFormat  audio.Format
	outFormat audio.Format
	converter *pcm.Converter

	partial    []byte
	skipFrames int64
	frames     int64

	current *chunk.Chunk

	replayGain       audio.ReplayGainInfo
	replayGainSerial uint32

	err error
}

// NewBridge creates a bridge writing into queue. mask overrides fields of the
// decoded format; kind selects the resampler when conversion is needed.
func NewBridge(ctx context.Context, pool *chunk.Pool, queue *chunk.Queue, mask audio.Format, kind resample.Kind) *Bridge {
	return &Bridge{
		ctx:   ctx,
		pool:  pool,
		queue: queue,
		mask:  mask,
		kind:  kind,
	}
}

// SetSeek makes the bridge discard decoded audio before t
func (b *Bridge) SetSeek(t time.Duration) {
	b.seek = t
}

// OnReady registers a callback run when the plugin announces its format
func (b *Bridge) OnReady(fn func(in, out audio.Format, seekable bool, duration time.Duration)) {
	b.onReady = fn
}

// OnPush registers a callback run after each chunk is queued
func (b *Bridge) OnPush(fn func()) {
	b.notify = fn
}

// IsReady reports whether the plugin announced its format
func (b *Bridge) IsReady() bool {
	return b.ready
}

// InFormat returns the format the plugin decodes to
func (b *Bridge) InFormat() audio.Format {
	return b.inFormat
}

// OutFormat returns the format written into chunks
func (b *Bridge) OutFormat() audio.Format {
	return b.outFormat
}

// Err returns the first error that stopped the bridge
func (b *Bridge) Err() error {
	return b.err
}

// TryAllocate takes a chunk without waiting
func (b *Bridge) TryAllocate() (*chunk.Chunk, error) {
	c := b.pool.Allocate()
	if c == nil {
		return nil, audio.ErrBufferExhausted
	}
	return c, nil
}

// AllocateChunk takes a chunk from the pool, waiting for one to be returned
// while the pool is exhausted
func (b *Bridge) AllocateChunk(ctx context.Context) (*chunk.Chunk, error) {
	for {
		c, err := b.TryAllocate()
		if err == nil {
			return c, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-b.pool.Returned():
		}
	}
}

// Push appends a chunk to the queue. Empty chunks go back to the pool.
func (b *Bridge) Push(c *chunk.Chunk) {
	if c.IsEmpty() {
		b.pool.Return(c)
		return
	}

	b.queue.Push(c)
	if b.notify != nil {
		b.notify()
	}
}

// Flush pushes the chunk being filled
func (b *Bridge) Flush() {
	if b.current == nil {
		return
	}
	c := b.current
	b.current = nil
	b.Push(c)
}

// Expand commits n bytes written into the slice returned by writable and
// pushes the chunk once it is full
func (b *Bridge) Expand(n int) {
	if b.current == nil {
		return
	}
	if b.current.Expand(b.outFormat, n) {
		b.Flush()
	}
}

// writable returns space for audio at song time t, allocating a new chunk
// when needed
func (b *Bridge) writable(t float64, bitRate int) ([]byte, error) {
	for {
		if b.current == nil {
			c, err := b.newChunk()
			if err != nil {
				return nil, err
			}
			b.current = c
		}

		if dst := b.current.Write(b.outFormat, t, bitRate); dst != nil {
			return dst, nil
		}
		b.Flush()
	}
}

func (b *Bridge) newChunk() (*chunk.Chunk, error) {
	c, err := b.AllocateChunk(b.ctx)
	if err != nil {
		return nil, err
	}
	if b.replayGainSerial != 0 {
		c.ReplayGainInfo = b.replayGain
		c.ReplayGainSerial = b.replayGainSerial
	}
	return c, nil
}

// Ready announces the decoded format
func (b *Bridge) Ready(format audio.Format, seekable bool, duration time.Duration) {
	b.inFormat = format
	b.outFormat = format
	b.outFormat.MaskApply(b.mask)

	if b.outFormat != b.inFormat {
		conv := pcm.NewConverter(b.kind)
		if err := conv.Open(b.inFormat, b.outFormat); err != nil {
			logrus.WithFields(logrus.Fields{
				"from": b.inFormat.String(),
				"to":   b.outFormat.String(),
			}).Warnf("Cannot convert decoded audio, using the decoder format: %v", err)
			b.outFormat = b.inFormat
		} else {
			b.converter = conv
		}
	}

	if b.seek > 0 {
		b.skipFrames = int64(b.seek.Seconds() * float64(format.SampleRate))
		b.frames = 0
	}
	b.ready = true

	logrus.WithFields(logrus.Fields{
		"in":       b.inFormat.String(),
		"out":      b.outFormat.String(),
		"seekable": seekable,
		"duration": duration,
	}).Debug("Decoder ready")

	if b.onReady != nil {
		b.onReady(b.inFormat, b.outFormat, seekable, duration)
	}
}

// Data converts and queues a block of decoded audio
func (b *Bridge) Data(data []byte, bitRate int) Command {
	if cmd := b.Command(); cmd != CommandNone {
		return cmd
	}
	if !b.ready {
		b.err = fmt.Errorf("decoder submitted audio before announcing its format")
		return CommandStop
	}

	frameSize := b.inFormat.FrameSize()
	if len(b.partial) > 0 {
		b.partial = append(b.partial, data...)
		data = b.partial
	}

	whole := len(data) - len(data)%frameSize
	rest := data[whole:]
	data = data[:whole]

	if b.skipFrames > 0 {
		skip := int64(len(data) / frameSize)
		if skip > b.skipFrames {
			skip = b.skipFrames
		}
		b.skipFrames -= skip
		b.frames += skip
		data = data[skip*int64(frameSize):]
	}

	if err := b.write(data, bitRate); err != nil {
		b.err = err
		return CommandStop
	}

	// rest may alias partial
	b.partial = append(b.partial[:0], rest...)
	return b.Command()
}

func (b *Bridge) write(data []byte, bitRate int) error {
	if len(data) == 0 {
		return nil
	}

	t := float64(b.frames) / float64(b.inFormat.SampleRate)
	b.frames += int64(len(data) / b.inFormat.FrameSize())

	if b.converter != nil {
		out, err := b.converter.Convert(data)
		if err != nil {
			return fmt.Errorf("failed to convert %s to %s: %w", b.inFormat, b.outFormat, err)
		}
		data = out
	}

	bytesPerSecond := float64(b.outFormat.TimeToSize())
	for len(data) > 0 {
		dst, err := b.writable(t, bitRate)
		if err != nil {
			return err
		}
		n := copy(dst, data)
		b.Expand(n)
		data = data[n:]
		t += float64(n) / bytesPerSecond
	}
	return nil
}

// Tag flushes the current chunk and starts a new one carrying tag
func (b *Bridge) Tag(tag *audio.Tag) Command {
	if cmd := b.Command(); cmd != CommandNone {
		return cmd
	}

	b.Flush()

	c, err := b.newChunk()
	if err != nil {
		b.err = err
		return CommandStop
	}
	c.Tag = tag
	b.current = c

	return b.Command()
}

// ReplayGain applies new replay gain values from the next chunk on. nil
// clears them.
func (b *Bridge) ReplayGain(info *audio.ReplayGainInfo) {
	if info == nil {
		b.replayGain.Clear()
		b.replayGainSerial = 0
	} else {
		b.replayGain = *info
		b.replayGainSerial = nextReplayGainSerial()
	}

	b.Flush()
}

// Command returns CommandStop once the bridge's context is done
func (b *Bridge) Command() Command {
	if b.ctx.Err() != nil {
		return CommandStop
	}
	return CommandNone
}

// Close flushes pending audio and releases the converter
func (b *Bridge) Close() {
	if b.ctx.Err() != nil {
		if b.current != nil {
			b.pool.Return(b.current)
			b.current = nil
		}
	} else {
		b.Flush()
	}

	if b.converter != nil {
		b.converter.Close()
		b.converter = nil
	}
	b.partial = nil
}
