// ABOUTME: Cross-fade settings and the chunk count calculation
// ABOUTME: Decides how many chunks of two songs overlap at a song border
package player

import (
	"time"

	"github.com/Resonate-Protocol/playd/pkg/audio"
	"github.com/Resonate-Protocol/playd/pkg/audio/chunk"
)

// CrossFade configures overlapping song borders
type CrossFade struct {
	Duration time.Duration

	// MixRamp adds both songs at full volume instead of fading
	MixRamp bool
}

// Enabled reports whether song borders overlap at all
func (cf CrossFade) Enabled() bool {
	return cf.Duration > 0
}

// Calculate returns how many chunks of the ending song are mixed with the
// next one. It returns 0 when the next song has a different format than
// the one playing, or is not longer than the fade. maxChunks caps the
// result.
func (cf CrossFade) Calculate(nextTotal time.Duration, next, playing audio.Format, maxChunks int) int {
	if !cf.Enabled() || nextTotal <= cf.Duration || next != playing || maxChunks <= 0 {
		return 0
	}

	chunksPerSecond := float64(next.TimeToSize()) / float64(chunk.Size)
	n := int(chunksPerSecond*cf.Duration.Seconds() + 0.5)
	if n > maxChunks {
		n = maxChunks
	}
	return n
}

// ratio is the share of the ending song at a position counted down from
// total chunks
func (cf CrossFade) ratio(position, total int) float32 {
	if cf.MixRamp {
		return -1
	}
	if total <= 0 {
		return 0
	}
	return float32(position) / float32(total)
}
