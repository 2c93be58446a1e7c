// ABOUTME: Audio type definitions
// ABOUTME: Defines sample formats, the AudioFormat contract and 24-bit helpers
package audio

import (
	"fmt"
	"time"
)

const (
	// 24-bit audio range constants
	Max24Bit = 8388607  // 2^23 - 1
	Min24Bit = -8388608 // -2^23

	// MaxChannels is the largest channel count a Format may carry
	MaxChannels = 8

	// MaxSampleRate is the exclusive upper bound for sample rates
	MaxSampleRate = 1 << 30
)

// SampleFormat describes how one sample is represented in memory
type SampleFormat uint8

const (
	FormatUndefined SampleFormat = iota
	FormatS8
	FormatS16
	// FormatS24P32 is signed 24 bit stored in the low bits of a 32 bit word
	FormatS24P32
	FormatS32
	FormatFloat
	// FormatDSD is 1-bit DSD, 8 samples per byte, per channel
	FormatDSD
)

// Size returns the number of bytes of one sample
func (f SampleFormat) Size() int {
	switch f {
	case FormatS8, FormatDSD:
		return 1
	case FormatS16:
		return 2
	case FormatS24P32, FormatS32, FormatFloat:
		return 4
	}
	return 0
}

// Bits returns the significant bit count, 0 for float/dsd/undefined
func (f SampleFormat) Bits() int {
	switch f {
	case FormatS8:
		return 8
	case FormatS16:
		return 16
	case FormatS24P32:
		return 24
	case FormatS32:
		return 32
	}
	return 0
}

func (f SampleFormat) String() string {
	switch f {
	case FormatS8:
		return "8"
	case FormatS16:
		return "16"
	case FormatS24P32:
		return "24"
	case FormatS32:
		return "32"
	case FormatFloat:
		return "f"
	case FormatDSD:
		return "dsd"
	}
	return "?"
}

// Format describes a PCM stream: sample rate, sample representation and channels.
// Zero fields mean "undefined"; a Format used as a mask only overrides the
// fields it defines.
type Format struct {
	SampleRate uint32
	Format     SampleFormat
	Channels   uint8
}

// NewFormat is a shorthand for building a Format
func NewFormat(rate uint32, format SampleFormat, channels uint8) Format {
	return Format{SampleRate: rate, Format: format, Channels: channels}
}

// Clear resets all fields to undefined
func (f *Format) Clear() {
	*f = Format{}
}

// Defined reports whether the sample rate is set
func (f Format) Defined() bool {
	return f.SampleRate != 0
}

// FullyDefined reports whether every field is set
func (f Format) FullyDefined() bool {
	return f.SampleRate != 0 && f.Format != FormatUndefined && f.Channels != 0
}

// MaskDefined reports whether at least one field is set
func (f Format) MaskDefined() bool {
	return f.SampleRate != 0 || f.Format != FormatUndefined || f.Channels != 0
}

// Valid checks that a fully defined format is usable
func (f Format) Valid() bool {
	return validSampleRate(f.SampleRate) &&
		f.Format != FormatUndefined && f.Format <= FormatDSD &&
		validChannels(f.Channels)
}

// MaskValid checks a mask, allowing undefined fields
func (f Format) MaskValid() bool {
	return (f.SampleRate == 0 || validSampleRate(f.SampleRate)) &&
		f.Format <= FormatDSD &&
		(f.Channels == 0 || validChannels(f.Channels))
}

// MaskApply overrides every field the mask defines
func (f *Format) MaskApply(mask Format) {
	if mask.SampleRate != 0 {
		f.SampleRate = mask.SampleRate
	}
	if mask.Format != FormatUndefined {
		f.Format = mask.Format
	}
	if mask.Channels != 0 {
		f.Channels = mask.Channels
	}
}

// SampleSize returns the number of bytes of one sample
func (f Format) SampleSize() int {
	return f.Format.Size()
}

// FrameSize returns the number of bytes of one frame (all channels)
func (f Format) FrameSize() int {
	return f.Format.Size() * int(f.Channels)
}

// TimeToSize returns the number of bytes per second of audio
func (f Format) TimeToSize() int {
	return int(f.SampleRate) * f.FrameSize()
}

// SizeToTime converts a byte count to a playback duration
func (f Format) SizeToTime(size int) time.Duration {
	bps := f.TimeToSize()
	if bps == 0 {
		return 0
	}
	return time.Duration(int64(size) * int64(time.Second) / int64(bps))
}

// String renders the format as "rate:bits:channels", using "*" for undefined fields
func (f Format) String() string {
	rate := "*"
	if f.SampleRate != 0 {
		rate = fmt.Sprintf("%d", f.SampleRate)
	}
	format := "*"
	if f.Format != FormatUndefined {
		format = f.Format.String()
	}
	channels := "*"
	if f.Channels != 0 {
		channels = fmt.Sprintf("%d", f.Channels)
	}
	return rate + ":" + format + ":" + channels
}

func validSampleRate(rate uint32) bool {
	return rate > 0 && rate < MaxSampleRate
}

func validChannels(channels uint8) bool {
	return channels >= 1 && channels <= MaxChannels
}

// SampleTo24Bit converts int32 to 24-bit packed bytes (little-endian)
func SampleTo24Bit(sample int32) [3]byte {
	return [3]byte{
		byte(sample),
		byte(sample >> 8),
		byte(sample >> 16),
	}
}

// SampleFrom24Bit converts 24-bit packed bytes to int32 (little-endian)
func SampleFrom24Bit(b [3]byte) int32 {
	val := int32(b[0]) | int32(b[1])<<8 | int32(b[2])<<16
	// Sign extend from 24-bit to 32-bit
	if val&0x800000 != 0 {
		val |= ^0xFFFFFF
	}
	return val
}
