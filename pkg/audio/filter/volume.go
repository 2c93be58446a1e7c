// ABOUTME: Software volume filter
// ABOUTME: Scales PCM with the fixed point volume from the pcm package
package filter

import (
	"sync"

	"github.com/Resonate-Protocol/playd/pkg/audio"
	"github.com/Resonate-Protocol/playd/pkg/audio/pcm"
)

// Volume scales audio by a fixed point factor, VolumeOne being unity
type Volume struct {
	mu     sync.Mutex
	volume int

	format audio.Format
	dither pcm.Dither
	buf    pcm.Buffer
}

// NewVolume creates a volume filter at unity
func NewVolume() *Volume {
	return &Volume{volume: pcm.VolumeOne}
}

// SetVolume sets the factor in 0..VolumeOne. It may be called from any goroutine.
func (v *Volume) SetVolume(volume int) {
	if volume < 0 {
		volume = 0
	}
	if volume > pcm.VolumeOne {
		volume = pcm.VolumeOne
	}
	v.mu.Lock()
	v.volume = volume
	v.mu.Unlock()
}

// GetVolume returns the current factor
func (v *Volume) GetVolume() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.volume
}

func (v *Volume) Open(in *audio.Format) (audio.Format, error) {
	v.format = *in
	v.dither.Reset()
	return *in, nil
}

func (v *Volume) Filter(src []byte) ([]byte, error) {
	volume := v.GetVolume()
	if volume == pcm.VolumeOne {
		return src, nil
	}

	dst := v.buf.Get(len(src))
	copy(dst, src)
	if err := v.dither.ApplyVolume(dst, v.format.Format, volume); err != nil {
		return nil, err
	}
	return dst, nil
}

func (v *Volume) Close() {
	v.buf.Clear()
}
