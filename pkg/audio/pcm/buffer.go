// ABOUTME: Growable scratch buffer reused between conversions
// ABOUTME: Avoids allocating on every chunk in the hot path
package pcm

// Buffer hands out a byte slice of the requested size, growing only when
// needed. The previous contents are not preserved.
type Buffer struct {
	data []byte
}

// Get returns a slice of exactly size bytes
func (b *Buffer) Get(size int) []byte {
	if cap(b.data) < size {
		b.data = make([]byte, size)
	}
	return b.data[:size]
}

// Clear releases the backing memory
func (b *Buffer) Clear() {
	b.data = nil
}
