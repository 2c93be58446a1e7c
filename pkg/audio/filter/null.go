// ABOUTME: Pass-through filter
// ABOUTME: Used as the placeholder for an empty filter list
package filter

import (
	"github.com/Resonate-Protocol/playd/pkg/audio"
)

// Null passes audio through unchanged
type Null struct{}

func (Null) Open(in *audio.Format) (audio.Format, error) {
	return *in, nil
}

func (Null) Filter(src []byte) ([]byte, error) {
	return src, nil
}

func (Null) Close() {}
