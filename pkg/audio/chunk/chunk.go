// ABOUTME: Fixed-capacity block of decoded PCM plus metadata
// ABOUTME: The unit moved from the decoder through the queue to every output
package chunk

import (
	"github.com/Resonate-Protocol/playd/pkg/audio"
)

// Size is the payload capacity of one chunk in bytes
const Size = 4096

// Chunk is one block of decoded audio. It is owned by exactly one of: the
// pool free list, a decoder, a queue or an output.
type Chunk struct {
	index int
	next  *Chunk

	// Other is the chunk of the next song mixed into this one while cross-fading
	Other *Chunk

	// MixRatio is the cross-fade position in [0,1]; negative means MixRamp (plain add)
	MixRatio float32

	// Length is the number of payload bytes in use
	Length int

	// BitRate of the source at this point in kbit/s
	BitRate int

	// Time is the position within the song in seconds, negative when unknown
	Time float64

	// Tag is set when the song metadata changed at this chunk
	Tag *audio.Tag

	ReplayGainInfo audio.ReplayGainInfo

	// ReplayGainSerial changes whenever ReplayGainInfo changes; 0 means none
	ReplayGainSerial uint32

	format audio.Format
	data   [Size]byte
}

// Data returns the filled part of the payload
func (c *Chunk) Data() []byte {
	return c.data[:c.Length]
}

// Format returns the format the payload was written with
func (c *Chunk) Format() audio.Format {
	return c.format
}

// IsEmpty reports whether the chunk carries neither audio nor a tag
func (c *Chunk) IsEmpty() bool {
	return c.Length == 0 && c.Tag == nil
}

// CheckFormat reports whether the chunk's audio matches format. An empty
// chunk matches anything.
func (c *Chunk) CheckFormat(format audio.Format) bool {
	return c.Length == 0 || c.format == format
}

// Write prepares the chunk for appending audio in format and returns the
// writable tail, truncated to whole frames. It returns nil when the chunk is
// full or already holds audio of a different format.
func (c *Chunk) Write(format audio.Format, t float64, bitRate int) []byte {
	if c.Length == 0 {
		c.format = format
		c.Time = t
		c.BitRate = bitRate
	} else if c.format != format {
		return nil
	}

	frameSize := format.FrameSize()
	if frameSize == 0 {
		return nil
	}

	num := Size - c.Length
	num -= num % frameSize
	if num == 0 {
		return nil
	}

	return c.data[c.Length : c.Length+num]
}

// Expand commits n bytes written into the slice returned by Write and reports
// whether the chunk is now full
func (c *Chunk) Expand(format audio.Format, n int) bool {
	c.Length += n
	return c.Length+format.FrameSize() > Size
}

func (c *Chunk) reset() {
	c.next = nil
	c.Other = nil
	c.MixRatio = 0
	c.Length = 0
	c.BitRate = 0
	c.Time = -1
	c.Tag = nil
	c.ReplayGainInfo.Clear()
	c.ReplayGainSerial = 0
	c.format = audio.Format{}
	if debug {
		for i := range c.data {
			c.data[i] = poisonByte
		}
	}
}
