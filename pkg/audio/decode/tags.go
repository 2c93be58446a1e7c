// ABOUTME: Vorbis comment parsing shared by the flac and vorbis plugins
// ABOUTME: Extracts song tags and REPLAYGAIN_* values
package decode

import (
	"strconv"
	"strings"

	"github.com/Resonate-Protocol/playd/pkg/audio"
)

// comments collects "KEY=value" metadata
type comments struct {
	tag        audio.Tag
	replayGain audio.ReplayGainInfo
	hasGain    bool
}

func newComments() *comments {
	return &comments{replayGain: audio.NewReplayGainInfo()}
}

// add records one comment; keys are case-insensitive
func (c *comments) add(key, value string) {
	value = strings.TrimSpace(value)

	switch strings.ToUpper(strings.TrimSpace(key)) {
	case "TITLE":
		c.tag.Title = value
	case "ARTIST":
		c.tag.Artist = value
	case "ALBUM":
		c.tag.Album = value
	case "REPLAYGAIN_TRACK_GAIN":
		c.setGain(&c.replayGain.Track.Gain, value)
	case "REPLAYGAIN_TRACK_PEAK":
		c.setGain(&c.replayGain.Track.Peak, value)
	case "REPLAYGAIN_ALBUM_GAIN":
		c.setGain(&c.replayGain.Album.Gain, value)
	case "REPLAYGAIN_ALBUM_PEAK":
		c.setGain(&c.replayGain.Album.Peak, value)
	}
}

// addPair parses a "KEY=value" comment
func (c *comments) addPair(s string) {
	key, value, ok := strings.Cut(s, "=")
	if !ok {
		return
	}
	c.add(key, value)
}

func (c *comments) setGain(dst *float32, value string) {
	v, ok := parseGain(value)
	if !ok {
		return
	}
	*dst = v
	c.hasGain = true
}

// parseGain reads values like "-6.50 dB" or "0.988"
func parseGain(s string) (float32, bool) {
	s = strings.TrimSpace(s)
	if len(s) > 2 && strings.EqualFold(s[len(s)-2:], "db") {
		s = strings.TrimSpace(s[:len(s)-2])
	}
	v, err := strconv.ParseFloat(s, 32)
	if err != nil {
		return 0, false
	}
	return float32(v), true
}

// submit hands the collected metadata to the client
func (c *comments) submit(client Client) Command {
	if c.hasGain {
		info := c.replayGain
		client.ReplayGain(&info)
	}
	if c.tag.IsEmpty() {
		return client.Command()
	}
	tag := c.tag
	return client.Tag(&tag)
}
