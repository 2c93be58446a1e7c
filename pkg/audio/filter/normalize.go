// ABOUTME: Volume normalization filter (dynamic range compressor on 16 bit)
// ABOUTME: Tracks recent peaks and smoothly steers gain toward a target level
package filter

import (
	"math"

	"github.com/Resonate-Protocol/playd/pkg/audio"
	"github.com/Resonate-Protocol/playd/pkg/audio/pcm"
)

const gainShift = 10

// CompressorConfig tunes the normalization compressor
type CompressorConfig struct {
	// Target is the peak level (16 bit) to aim for
	Target int
	// MaxGain is the largest gain factor
	MaxGain int
	// Smooth is the log2 of the gain smoothing window
	Smooth int
	// Buckets is the number of buffers the peak history spans
	Buckets int
	// AntiClip ramps the gain from the very first sample when clipping threatens
	AntiClip bool
}

// DefaultCompressorConfig returns the stock tuning
func DefaultCompressorConfig() CompressorConfig {
	return CompressorConfig{
		Target:  25000,
		MaxGain: 32,
		Smooth:  8,
		Buckets: 400,
	}
}

// Compressor is the peak-tracking gain engine behind Normalize
type Compressor struct {
	config CompressorConfig

	peaks       []int
	pn          int
	gainCurrent int
	gainTarget  int
}

// NewCompressor creates a compressor at unity gain
func NewCompressor(config CompressorConfig) *Compressor {
	if config.Buckets <= 0 {
		config.Buckets = 1
	}
	return &Compressor{
		config:      config,
		peaks:       make([]int, config.Buckets),
		gainCurrent: 1 << gainShift,
		gainTarget:  1 << gainShift,
	}
}

// Gain returns the current gain in 1<<10 units
func (c *Compressor) Gain() int {
	return c.gainCurrent
}

// Process compresses interleaved 16 bit samples in place
func (c *Compressor) Process(buf []byte) {
	n := len(buf) / 2
	if n == 0 {
		return
	}

	c.pn = (c.pn + 1) % len(c.peaks)

	peak := 1
	pos := 0
	for i := 0; i < n; i++ {
		v := int(int16(uint16(buf[2*i]) | uint16(buf[2*i+1])<<8))
		if v < 0 {
			v = -v
		}
		if v > peak {
			peak = v
			pos = i
		}
	}
	c.peaks[c.pn] = peak

	for _, p := range c.peaks {
		if p > peak {
			peak = p
			pos = 0
		}
	}

	// Gain needed to hit the target
	gn := (1 << gainShift) * c.config.Target / peak
	if gn < 1<<gainShift {
		gn = 1 << gainShift
	}

	smooth := c.config.Smooth
	c.gainTarget = (c.gainTarget*((1<<smooth)-1) + gn) >> smooth

	// Make sure the gain moves at all
	if gn < c.gainTarget {
		c.gainTarget--
	} else if gn > c.gainTarget {
		c.gainTarget++
	}

	if c.gainTarget > c.config.MaxGain<<gainShift {
		c.gainTarget = c.config.MaxGain << gainShift
	}

	// Would the new gain clip?
	gn = (1 << gainShift) * math.MaxInt16 / peak
	if gn < c.gainTarget {
		c.gainTarget = gn
		if c.config.AntiClip {
			pos = 0
		}
	} else {
		pos = n
	}

	if pos == 0 {
		pos = 1
	}

	gr := ((c.gainTarget - c.gainCurrent) << 16) / pos
	gf := c.gainCurrent << 16

	for i := 0; i < n; i++ {
		c.gainCurrent = gf >> 16
		if i < pos {
			gf += gr
		} else if i == pos {
			gf = c.gainTarget << 16
		}

		s := int(int16(uint16(buf[2*i]) | uint16(buf[2*i+1])<<8))
		s = s * c.gainCurrent >> gainShift
		if s < math.MinInt16 {
			s = math.MinInt16
		} else if s > math.MaxInt16 {
			s = math.MaxInt16
		}
		buf[2*i] = byte(s)
		buf[2*i+1] = byte(s >> 8)
	}
}

// Normalize runs a Compressor over 16 bit audio. It asks for S16 input, so
// it is normally wrapped in an AutoConvert.
type Normalize struct {
	config     CompressorConfig
	compressor *Compressor
	buf        pcm.Buffer
}

// NewNormalize creates a normalization filter
func NewNormalize(config CompressorConfig) *Normalize {
	return &Normalize{config: config}
}

func (n *Normalize) Open(in *audio.Format) (audio.Format, error) {
	in.Format = audio.FormatS16
	n.compressor = NewCompressor(n.config)
	return *in, nil
}

func (n *Normalize) Filter(src []byte) ([]byte, error) {
	dst := n.buf.Get(len(src))
	copy(dst, src)
	n.compressor.Process(dst)
	return dst, nil
}

func (n *Normalize) Reset() {
	n.compressor = NewCompressor(n.config)
}

func (n *Normalize) Close() {
	n.compressor = nil
	n.buf.Clear()
}
