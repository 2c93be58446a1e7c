// ABOUTME: Filter interface for the per-output PCM processing stages
// ABOUTME: A filter negotiates formats at Open and transforms buffers afterwards
package filter

import (
	"github.com/Resonate-Protocol/playd/pkg/audio"
)

// Filter transforms PCM buffers between two negotiated formats
type Filter interface {
	// Open prepares the filter for input in *in and returns the output
	// format. A filter that cannot handle *in may rewrite it to the input
	// format it needs; callers either insert a conversion or fail.
	Open(in *audio.Format) (audio.Format, error)

	// Filter processes one buffer. The result may alias src or an internal
	// buffer that stays valid until the next call.
	Filter(src []byte) ([]byte, error)

	// Close releases what Open allocated
	Close()
}

// Resetter is implemented by filters with state that must be dropped when
// playback is interrupted (seek, cancel)
type Resetter interface {
	Reset()
}

// Reset drops the state of f if it has any
func Reset(f Filter) {
	if r, ok := f.(Resetter); ok {
		r.Reset()
	}
}
