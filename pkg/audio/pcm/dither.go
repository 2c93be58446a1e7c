// ABOUTME: Error-feedback dither with triangular noise
// ABOUTME: Reduces 24 and 32 bit samples to 16 bit without truncation artifacts
package pcm

import (
	"github.com/Resonate-Protocol/playd/pkg/audio"
)

const ditherScaleBits = 8

// prng is the linear congruential generator shared by dither and volume
func prng(r uint32) uint32 {
	return r*0x0019660d + 0x3c6ef35f
}

// Dither holds the noise shaping state of one stream. The zero value is
// ready to use and deterministic.
type Dither struct {
	err    [3]int32
	random uint32

	// separate generator for volume and mix rounding noise
	noise uint32
}

// Reset returns the dither to its initial state
func (d *Dither) Reset() {
	*d = Dither{}
}

// Dither24To16 reduces a 24 bit sample to 16 bit
func (d *Dither) Dither24To16(sample int32) int32 {
	const (
		round = 1 << (ditherScaleBits - 1)
		mask  = (1 << ditherScaleBits) - 1
	)

	sample += d.err[0] - d.err[1] + d.err[2]

	d.err[2] = d.err[1]
	d.err[1] = d.err[0] / 2

	output := sample + round

	rnd := prng(d.random)
	output += int32(rnd&mask) - int32(d.random&mask)
	d.random = rnd

	// Pull the sample to the limit so the feedback does not carry the clip
	if output > audio.Max24Bit {
		output = audio.Max24Bit
		if sample > audio.Max24Bit {
			sample = audio.Max24Bit
		}
	} else if output < audio.Min24Bit {
		output = audio.Min24Bit
		if sample < audio.Min24Bit {
			sample = audio.Min24Bit
		}
	}

	output &^= mask

	d.err[0] = sample - output

	return output >> ditherScaleBits
}

// Dither32To16 reduces a 32 bit sample to 16 bit
func (d *Dither) Dither32To16(sample int32) int32 {
	return d.Dither24To16(sample >> 8)
}

// nextNoise returns triangular rounding noise in [-511, 511]
func (d *Dither) nextNoise() int64 {
	d.noise = prng(d.noise)
	r := d.noise
	return int64(r&511) - int64((r>>9)&511)
}
