// ABOUTME: Parsers for the "rate:bits:channels" audio format text form
// ABOUTME: Strict parser for plain PCM and a mask-aware parser for configuration
package audio

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseFormat parses the strict "<sample_rate>:<bits>:<channels>" form.
// Only 8, 16 and 24 bit and one or two channels are accepted.
func ParseFormat(s string) (Format, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 3 {
		return Format{}, fmt.Errorf("%w: %q is not rate:bits:channels", ErrInvalidFormat, s)
	}

	rate, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil || rate <= 0 || rate >= MaxSampleRate {
		return Format{}, fmt.Errorf("%w: invalid sample rate %q", ErrInvalidFormat, parts[0])
	}

	var format SampleFormat
	switch parts[1] {
	case "8":
		format = FormatS8
	case "16":
		format = FormatS16
	case "24":
		format = FormatS24P32
	default:
		return Format{}, fmt.Errorf("%w: invalid sample format %q", ErrInvalidFormat, parts[1])
	}

	channels, err := strconv.Atoi(parts[2])
	if err != nil || (channels != 1 && channels != 2) {
		return Format{}, fmt.Errorf("%w: invalid channel count %q", ErrInvalidFormat, parts[2])
	}

	return NewFormat(uint32(rate), format, uint8(channels)), nil
}

// ParseFormatMask parses the richer form used in configuration files. It also
// accepts 32 bit, "f" (float), "dsd" and up to MaxChannels channels. When mask
// is true, any field may be "*" meaning "don't override".
func ParseFormatMask(s string, mask bool) (Format, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 3 {
		return Format{}, fmt.Errorf("%w: %q is not rate:bits:channels", ErrInvalidFormat, s)
	}

	var f Format

	if mask && parts[0] == "*" {
		f.SampleRate = 0
	} else {
		rate, err := strconv.ParseUint(parts[0], 10, 32)
		if err != nil || !validSampleRate(uint32(rate)) {
			return Format{}, fmt.Errorf("%w: invalid sample rate %q", ErrInvalidFormat, parts[0])
		}
		f.SampleRate = uint32(rate)
	}

	if mask && parts[1] == "*" {
		f.Format = FormatUndefined
	} else {
		switch parts[1] {
		case "8":
			f.Format = FormatS8
		case "16":
			f.Format = FormatS16
		case "24":
			f.Format = FormatS24P32
		case "32":
			f.Format = FormatS32
		case "f":
			f.Format = FormatFloat
		case "dsd":
			f.Format = FormatDSD
		default:
			return Format{}, fmt.Errorf("%w: invalid sample format %q", ErrInvalidFormat, parts[1])
		}
	}

	if mask && parts[2] == "*" {
		f.Channels = 0
	} else {
		channels, err := strconv.Atoi(parts[2])
		if err != nil || channels < 1 || channels > MaxChannels {
			return Format{}, fmt.Errorf("%w: invalid channel count %q", ErrInvalidFormat, parts[2])
		}
		f.Channels = uint8(channels)
	}

	return f, nil
}
