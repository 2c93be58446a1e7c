// ABOUTME: Tests for the chunk queue and chunk writing
// ABOUTME: Covers FIFO order, Next walking and format checks
package chunk

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Resonate-Protocol/playd/pkg/audio"
)

func TestQueueFIFO(t *testing.T) {
	p := NewPool(8)
	q := NewQueue()

	var pushed []*Chunk
	for i := 0; i < 8; i++ {
		c := p.Allocate()
		q.Push(c)
		pushed = append(pushed, c)
	}

	assert.Equal(t, 8, q.Size())
	assert.Equal(t, pushed[0], q.Peek())

	for i, want := range pushed {
		got := q.Shift()
		if got != want {
			t.Fatalf("shift %d returned the wrong chunk", i)
		}
	}

	assert.Nil(t, q.Shift())
	assert.Nil(t, q.Peek())
	assert.True(t, q.IsEmpty())
}

func TestQueueNextWalk(t *testing.T) {
	p := NewPool(3)
	q := NewQueue()
	a, b, c := p.Allocate(), p.Allocate(), p.Allocate()
	q.Push(a)
	q.Push(b)

	assert.Equal(t, b, q.Next(a))
	assert.Nil(t, q.Next(b))
	assert.True(t, q.IsTail(b))

	q.Push(c)
	assert.Equal(t, c, q.Next(b))
	assert.False(t, q.IsTail(b))
}

func TestQueueContainsAndClear(t *testing.T) {
	p := NewPool(3)
	q := NewQueue()
	a, b := p.Allocate(), p.Allocate()
	q.Push(a)

	assert.True(t, q.Contains(a))
	assert.False(t, q.Contains(b))

	q.Push(b)
	q.ClearAndReturn(p)

	assert.True(t, q.IsEmpty())
	assert.Zero(t, p.InUse())
}

func TestQueueCheckFormat(t *testing.T) {
	cd := audio.NewFormat(44100, audio.FormatS16, 2)
	hires := audio.NewFormat(96000, audio.FormatS24P32, 2)

	p := NewPool(2)
	q := NewQueue()

	c := p.Allocate()
	buf := c.Write(cd, 0, 0)
	c.Expand(cd, len(buf)/2)
	q.Push(c)

	empty := p.Allocate()
	q.Push(empty)

	assert.True(t, q.CheckFormat(cd))
	assert.False(t, q.CheckFormat(hires))
}

func TestChunkWrite(t *testing.T) {
	tests := []struct {
		name   string
		format audio.Format
		want   int
	}{
		{"cd stereo", audio.NewFormat(44100, audio.FormatS16, 2), 4096},
		{"24 bit stereo", audio.NewFormat(48000, audio.FormatS24P32, 2), 4096},
		{"16 bit 3 channels", audio.NewFormat(48000, audio.FormatS16, 3), 4092},
		{"float 6 channels", audio.NewFormat(48000, audio.FormatFloat, 6), 4080},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &Chunk{}
			buf := c.Write(tt.format, 1.5, 320)
			if len(buf) != tt.want {
				t.Errorf("expected %d writable bytes, got %d", tt.want, len(buf))
			}
			assert.Equal(t, 1.5, c.Time)
			assert.Equal(t, 320, c.BitRate)
		})
	}
}

func TestChunkWriteRejectsFormatChange(t *testing.T) {
	cd := audio.NewFormat(44100, audio.FormatS16, 2)
	mono := audio.NewFormat(44100, audio.FormatS16, 1)

	c := &Chunk{}
	buf := c.Write(cd, 0, 0)
	full := c.Expand(cd, 400)
	assert.False(t, full)
	require.Len(t, c.Data(), 400)
	_ = buf

	assert.Nil(t, c.Write(mono, 0, 0))

	rest := c.Write(cd, 9, 0)
	assert.Len(t, rest, Size-400)
	assert.Equal(t, 0.0, c.Time, "time is only taken from the first write")
}

func TestChunkIsEmpty(t *testing.T) {
	c := &Chunk{}
	assert.True(t, c.IsEmpty())

	c.Tag = &audio.Tag{Title: "t"}
	assert.False(t, c.IsEmpty())
}
