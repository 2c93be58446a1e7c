// ABOUTME: Device-side export shared by the sample-writing output plugins
// ABOUTME: Wraps pcm.Export and holds back frames that do not fill a DoP frame
package output

import (
	"fmt"

	"github.com/Resonate-Protocol/playd/pkg/audio"
	"github.com/Resonate-Protocol/playd/pkg/audio/pcm"
)

// exportParamsFromParams reads the export switches of an output block.
// Only the keys in allowed are accepted.
func exportParamsFromParams(params audio.Params, allowed ...string) (pcm.ExportParams, error) {
	var ep pcm.ExportParams
	fields := map[string]*bool{
		"dop":            &ep.DSDUSB,
		"pack24":         &ep.Pack24,
		"shift8":         &ep.Shift8,
		"reverse_endian": &ep.ReverseEndian,
	}

	for _, key := range allowed {
		dst, ok := fields[key]
		if !ok {
			return ep, fmt.Errorf("unknown export option %q", key)
		}
		v, err := params.GetBool(key, false)
		if err != nil {
			return ep, err
		}
		*dst = v
	}
	return ep, nil
}

// exporter converts pipeline audio into the layout a device wants. Audio
// arrives in whole input frames; a DoP output frame needs two of them, so
// a lone trailing frame waits for the next call.
type exporter struct {
	params pcm.ExportParams
	export pcm.Export

	// block is the number of source bytes per exported frame
	block   int
	pending []byte
	joined  []byte
}

func (e *exporter) open(format audio.Format, params pcm.ExportParams) {
	e.params = params
	e.export.Open(format, params)
	e.block = format.FrameSize()
	if params.DSDUSB && format.Format == audio.FormatDSD {
		e.block *= 2
	}
	e.pending = e.pending[:0]
}

// sampleFormat is the format of exported samples before packing or shifting
func (e *exporter) sampleFormat() audio.SampleFormat {
	return e.export.SampleFormat()
}

func (e *exporter) outputRate(rate uint32) uint32 {
	return e.export.OutputRate(rate)
}

// frameSize is the size of one exported frame
func (e *exporter) frameSize(format audio.Format) int {
	return e.export.FrameSize(format)
}

// room returns how many source bytes fit into free exported bytes, not
// counting what is already held back
func (e *exporter) room(free, frameSize int) int {
	n := e.export.CalcSourceSize(free/frameSize*frameSize) - len(e.pending)
	return max(n, 0)
}

// convert exports every whole block of data. The result is only valid
// until the next call.
func (e *exporter) convert(data []byte) []byte {
	// the copy keeps in-place transformations off the caller's buffer
	src := append(append(e.joined[:0], e.pending...), data...)
	e.joined = src

	n := len(src) / e.block * e.block
	e.pending = append(e.pending[:0], src[n:]...)
	if n == 0 {
		return nil
	}
	return e.export.Export(src[:n])
}

func (e *exporter) reset() {
	e.pending = e.pending[:0]
}
