// ABOUTME: Song metadata and replay gain information carried by chunks
// ABOUTME: Includes the replay gain scale calculation shared by filters and player
package audio

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// Tag holds song metadata sent along with audio
type Tag struct {
	Title    string
	Artist   string
	Album    string
	Name     string
	Duration time.Duration
}

// IsEmpty reports whether no field is set
func (t *Tag) IsEmpty() bool {
	return t == nil || (t.Title == "" && t.Artist == "" && t.Album == "" && t.Name == "" && t.Duration == 0)
}

// Merge returns a tag with the fields of add overriding those of base.
// Either argument may be nil.
func Merge(base, add *Tag) *Tag {
	if base == nil {
		return add
	}
	if add == nil {
		return base
	}

	merged := *base
	if add.Title != "" {
		merged.Title = add.Title
	}
	if add.Artist != "" {
		merged.Artist = add.Artist
	}
	if add.Album != "" {
		merged.Album = add.Album
	}
	if add.Name != "" {
		merged.Name = add.Name
	}
	if add.Duration != 0 {
		merged.Duration = add.Duration
	}
	return &merged
}

// String renders "artist - title" or whichever is available
func (t *Tag) String() string {
	if t == nil {
		return ""
	}
	switch {
	case t.Artist != "" && t.Title != "":
		return t.Artist + " - " + t.Title
	case t.Title != "":
		return t.Title
	default:
		return t.Name
	}
}

// ReplayGainMode selects which replay gain tuple is applied
type ReplayGainMode int

const (
	ReplayGainOff ReplayGainMode = iota
	ReplayGainTrack
	ReplayGainAlbum
	// ReplayGainAuto picks album gain; there is no shuffle mode to switch to track gain
	ReplayGainAuto
)

func (m ReplayGainMode) String() string {
	switch m {
	case ReplayGainTrack:
		return "track"
	case ReplayGainAlbum:
		return "album"
	case ReplayGainAuto:
		return "auto"
	}
	return "off"
}

// ParseReplayGainMode parses "off", "track", "album" or "auto"
func ParseReplayGainMode(s string) (ReplayGainMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "off":
		return ReplayGainOff, nil
	case "track":
		return ReplayGainTrack, nil
	case "album":
		return ReplayGainAlbum, nil
	case "auto":
		return ReplayGainAuto, nil
	}
	return ReplayGainOff, fmt.Errorf("unknown replay gain mode %q", s)
}

// ReplayGainTuple is a gain in dB with the matching peak amplitude
type ReplayGainTuple struct {
	Gain float32
	Peak float32
}

// undefinedGain marks a tuple without data
const undefinedGain = -200

// IsDefined reports whether the tuple carries a gain
func (t ReplayGainTuple) IsDefined() bool {
	return t.Gain > -100
}

// Clear marks the tuple as undefined
func (t *ReplayGainTuple) Clear() {
	t.Gain = undefinedGain
	t.Peak = 0
}

// Scale calculates the linear factor for this tuple. preamp and missingPreamp
// are linear factors; limit prevents the peak from exceeding full scale.
func (t ReplayGainTuple) Scale(preamp, missingPreamp float32, limit bool) float32 {
	if !t.IsDefined() {
		return missingPreamp
	}

	scale := float32(math.Pow(10, float64(t.Gain)/20)) * preamp
	if scale > 15 {
		scale = 15
	}
	if limit && t.Peak > 0 && scale*t.Peak > 1 {
		scale = 1 / t.Peak
	}
	return scale
}

// ReplayGainInfo holds the track and album tuples of one song
type ReplayGainInfo struct {
	Track ReplayGainTuple
	Album ReplayGainTuple
}

// NewReplayGainInfo returns info with both tuples undefined
func NewReplayGainInfo() ReplayGainInfo {
	var info ReplayGainInfo
	info.Clear()
	return info
}

// Clear marks both tuples undefined
func (i *ReplayGainInfo) Clear() {
	i.Track.Clear()
	i.Album.Clear()
}

// Get returns the tuple for a mode, falling back to the other tuple when the
// preferred one is missing
func (i ReplayGainInfo) Get(mode ReplayGainMode) ReplayGainTuple {
	if mode == ReplayGainAlbum || mode == ReplayGainAuto {
		if i.Album.IsDefined() {
			return i.Album
		}
		return i.Track
	}
	if i.Track.IsDefined() {
		return i.Track
	}
	return i.Album
}

// DBToFactor converts decibels to a linear factor
func DBToFactor(db float32) float32 {
	return float32(math.Pow(10, float64(db)/20))
}
