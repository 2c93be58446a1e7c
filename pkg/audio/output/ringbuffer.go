// ABOUTME: Thread-safe circular byte buffer between Play and a device callback
// ABOUTME: Reads zero-fill on underrun so the callback always gets a full period
package output

import "sync"

// RingBuffer is a fixed-capacity FIFO of bytes
type RingBuffer struct {
	mu       sync.Mutex
	buffer   []byte
	readPos  int
	writePos int
	count    int
}

// NewRingBuffer creates a ring buffer holding capacity bytes
func NewRingBuffer(capacity int) *RingBuffer {
	return &RingBuffer{buffer: make([]byte, capacity)}
}

// Write copies as much of data as fits and returns the byte count
func (rb *RingBuffer) Write(data []byte) int {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	size := len(rb.buffer)
	n := min(len(data), size-rb.count)
	for written := 0; written < n; {
		end := size
		if rb.writePos+n-written < end {
			end = rb.writePos + n - written
		}
		c := copy(rb.buffer[rb.writePos:end], data[written:])
		written += c
		rb.writePos = (rb.writePos + c) % size
	}
	rb.count += n
	return n
}

// Read fills out from the buffer and returns how many bytes were real
// audio; the rest of out is zeroed
func (rb *RingBuffer) Read(out []byte) int {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	size := len(rb.buffer)
	n := min(len(out), rb.count)
	for read := 0; read < n; {
		end := size
		if rb.readPos+n-read < end {
			end = rb.readPos + n - read
		}
		c := copy(out[read:], rb.buffer[rb.readPos:end])
		read += c
		rb.readPos = (rb.readPos + c) % size
	}
	rb.count -= n

	clear(out[n:])
	return n
}

// Available returns the number of buffered bytes
func (rb *RingBuffer) Available() int {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	return rb.count
}

// Free returns the number of bytes that can be written
func (rb *RingBuffer) Free() int {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	return len(rb.buffer) - rb.count
}

// Reset drops all buffered bytes
func (rb *RingBuffer) Reset() {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	rb.readPos = 0
	rb.writePos = 0
	rb.count = 0
}
