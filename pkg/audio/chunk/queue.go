// ABOUTME: Thread-safe FIFO of in-use chunks
// ABOUTME: Intrusive singly-linked list; never blocks
package chunk

import (
	"sync"

	"github.com/Resonate-Protocol/playd/pkg/audio"
)

// Queue is an ordered list of chunks produced by a decoder and drained by the
// player (or shared by the outputs). The mutex is held only for pointer updates.
type Queue struct {
	mu   sync.Mutex
	head *Chunk
	tail *Chunk
	size int
}

// NewQueue creates an empty queue
func NewQueue() *Queue {
	return &Queue{}
}

// Push appends a chunk at the tail
func (q *Queue) Push(c *Chunk) {
	q.mu.Lock()
	defer q.mu.Unlock()

	c.next = nil
	if q.tail == nil {
		q.head = c
	} else {
		q.tail.next = c
	}
	q.tail = c
	q.size++
}

// Shift removes and returns the head, or nil if the queue is empty
func (q *Queue) Shift() *Chunk {
	q.mu.Lock()
	defer q.mu.Unlock()

	c := q.head
	if c == nil {
		return nil
	}

	q.head = c.next
	if q.head == nil {
		q.tail = nil
	}
	c.next = nil
	q.size--

	return c
}

// Peek returns the head without removing it
func (q *Queue) Peek() *Chunk {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.head
}

// Next returns the chunk queued after c
func (q *Queue) Next(c *Chunk) *Chunk {
	q.mu.Lock()
	defer q.mu.Unlock()
	return c.next
}

// IsTail reports whether c is the last chunk in the queue
func (q *Queue) IsTail(c *Chunk) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return c.next == nil
}

// ClearAndReturn drains every chunk back to the pool
func (q *Queue) ClearAndReturn(pool *Pool) {
	for {
		c := q.Shift()
		if c == nil {
			return
		}
		pool.Return(c)
	}
}

// IsEmpty reports whether the queue holds no chunks
func (q *Queue) IsEmpty() bool {
	return q.Size() == 0
}

// Size returns the number of queued chunks
func (q *Queue) Size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.size
}

// Contains reports whether c is queued
func (q *Queue) Contains(c *Chunk) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	for i := q.head; i != nil; i = i.next {
		if i == c {
			return true
		}
	}
	return false
}

// CheckFormat reports whether every queued chunk with audio matches format
func (q *Queue) CheckFormat(format audio.Format) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	for i := q.head; i != nil; i = i.next {
		if !i.CheckFormat(format) {
			return false
		}
	}
	return true
}
