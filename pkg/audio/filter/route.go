// ABOUTME: Channel routing filter driven by a "src>dst" table
// ABOUTME: Unmapped or missing source channels become silence
package filter

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/Resonate-Protocol/playd/pkg/audio"
	"github.com/Resonate-Protocol/playd/pkg/audio/pcm"
)

// DefaultRoutes passes stereo through unchanged
const DefaultRoutes = "0>0, 1>1"

// Route copies input channels to output channels according to a table
type Route struct {
	// sources[dst] is the input channel feeding dst, or -1
	sources           []int
	minInputChannels  int
	minOutputChannels int

	in  audio.Format
	out audio.Format
	buf pcm.Buffer
}

// ParseRoutes parses "0>1, 1>0" into a destination -> source table
func ParseRoutes(routes string) ([]int, int, error) {
	type copyOp struct{ src, dst int }
	var ops []copyOp
	minIn, minOut := 0, 0

	for _, token := range strings.Split(routes, ",") {
		token = strings.TrimSpace(token)
		parts := strings.Split(token, ">")
		if len(parts) != 2 {
			return nil, 0, fmt.Errorf("invalid copy %q in routes", token)
		}

		src, err := strconv.Atoi(strings.TrimSpace(parts[0]))
		if err != nil || src < 0 || src >= audio.MaxChannels {
			return nil, 0, fmt.Errorf("invalid source channel in %q", token)
		}
		dst, err := strconv.Atoi(strings.TrimSpace(parts[1]))
		if err != nil || dst < 0 || dst >= audio.MaxChannels {
			return nil, 0, fmt.Errorf("invalid destination channel in %q", token)
		}

		if src >= minIn {
			minIn = src + 1
		}
		if dst >= minOut {
			minOut = dst + 1
		}
		ops = append(ops, copyOp{src, dst})
	}

	sources := make([]int, minOut)
	for i := range sources {
		sources[i] = -1
	}
	for _, op := range ops {
		sources[op.dst] = op.src
	}

	return sources, minIn, nil
}

// NewRoute creates a route filter from a routes value such as "0>1, 1>0"
func NewRoute(routes string) (*Route, error) {
	sources, minIn, err := ParseRoutes(routes)
	if err != nil {
		return nil, err
	}
	return &Route{
		sources:           sources,
		minInputChannels:  minIn,
		minOutputChannels: len(sources),
	}, nil
}

func newRouteFromParams(params audio.Params) (Filter, error) {
	return NewRoute(params.Get("routes", DefaultRoutes))
}

// Sources returns the destination -> source table
func (r *Route) Sources() []int {
	return r.sources
}

func (r *Route) Open(in *audio.Format) (audio.Format, error) {
	r.in = *in
	r.out = *in
	r.out.Channels = uint8(r.minOutputChannels)
	return r.out, nil
}

func (r *Route) Filter(src []byte) ([]byte, error) {
	sampleSize := r.in.SampleSize()
	inFrame := r.in.FrameSize()
	outFrame := r.out.FrameSize()
	frames := len(src) / inFrame
	inChannels := int(r.in.Channels)

	dst := r.buf.Get(frames * outFrame)
	for f := 0; f < frames; f++ {
		in := src[f*inFrame:]
		out := dst[f*outFrame:]
		for c, s := range r.sources {
			d := out[c*sampleSize : (c+1)*sampleSize]
			if s < 0 || s >= inChannels {
				for i := range d {
					d[i] = 0
				}
				continue
			}
			copy(d, in[s*sampleSize:(s+1)*sampleSize])
		}
	}

	return dst, nil
}

func (r *Route) Close() {
	r.buf.Clear()
}
