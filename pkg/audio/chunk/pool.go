// ABOUTME: Fixed-size pool of reusable chunks
// ABOUTME: The only allocator on the hot path; never blocks
package chunk

import (
	"fmt"
	"sync"
)

// Pool owns a fixed arena of chunks and a free list of their indices
type Pool struct {
	mu     sync.Mutex
	chunks []Chunk
	free   []int
	inUse  []bool

	returned chan struct{}
}

// NewPool allocates capacity chunks up front. A zero capacity is a
// programming error and panics.
func NewPool(capacity int) *Pool {
	if capacity <= 0 {
		panic(fmt.Sprintf("chunk: invalid pool capacity %d", capacity))
	}

	p := &Pool{
		chunks:   make([]Chunk, capacity),
		free:     make([]int, capacity),
		inUse:    make([]bool, capacity),
		returned: make(chan struct{}, 1),
	}

	// Pop from the end, so chunk 0 is handed out first
	for i := range p.chunks {
		p.chunks[i].index = i
		p.chunks[i].reset()
		p.free[i] = capacity - 1 - i
	}

	return p
}

// Size returns the pool capacity
func (p *Pool) Size() int {
	return len(p.chunks)
}

// InUse returns the number of chunks currently allocated
func (p *Pool) InUse() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.chunks) - len(p.free)
}

// Allocate takes a chunk from the free list, or returns nil if none is left
func (p *Pool) Allocate() *Chunk {
	p.mu.Lock()
	defer p.mu.Unlock()

	n := len(p.free)
	if n == 0 {
		return nil
	}

	idx := p.free[n-1]
	p.free = p.free[:n-1]
	p.inUse[idx] = true

	return &p.chunks[idx]
}

// Return puts a chunk (and its cross-fade partner) back on the free list.
// Returning a chunk that is not allocated from this pool panics.
func (p *Pool) Return(c *Chunk) {
	if c == nil {
		return
	}

	if other := c.Other; other != nil {
		c.Other = nil
		p.Return(other)
	}

	p.mu.Lock()
	if c.index < 0 || c.index >= len(p.chunks) || &p.chunks[c.index] != c {
		p.mu.Unlock()
		panic("chunk: returned chunk does not belong to this pool")
	}
	if !p.inUse[c.index] {
		p.mu.Unlock()
		panic(fmt.Sprintf("chunk: chunk %d returned twice", c.index))
	}

	c.reset()
	p.inUse[c.index] = false
	p.free = append(p.free, c.index)
	p.mu.Unlock()

	select {
	case p.returned <- struct{}{}:
	default:
	}
}

// Returned delivers a notification after chunks were returned. Decoders
// waiting for free chunks select on it.
func (p *Pool) Returned() <-chan struct{} {
	return p.returned
}
