// ABOUTME: Stream conversion used by the pcmconvert tool
// ABOUTME: Runs raw PCM through an optional filter, a format conversion and the export layout
package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/Resonate-Protocol/playd/pkg/audio"
	"github.com/Resonate-Protocol/playd/pkg/audio/filter"
	"github.com/Resonate-Protocol/playd/pkg/audio/pcm"
	"github.com/Resonate-Protocol/playd/pkg/audio/resample"
)

// framesPerRead is the block size in frames
const framesPerRead = 4096

type job struct {
	in     audio.Format
	mask   audio.Format
	kind   resample.Kind
	filter string
	params audio.Params

	// packedIn reads 24 bit input as three bytes per sample
	packedIn bool
	export   pcm.ExportParams
}

// buildChain returns the opened chain and its output format
func (j job) buildChain() (*filter.Chain, audio.Format, error) {
	chain := filter.NewChain()
	if j.filter != "" {
		f, err := filter.New(j.filter, j.params)
		if err != nil {
			return nil, audio.Format{}, err
		}
		chain.Append(j.filter, filter.NewAutoConvert(f, j.kind))
	}
	conv := filter.NewConvert(j.kind)
	chain.Append("convert", conv)

	in := j.in
	out, err := chain.Open(&in)
	if err != nil {
		return nil, audio.Format{}, err
	}

	out.MaskApply(j.mask)
	if err := conv.Set(out); err != nil {
		chain.Close()
		return nil, audio.Format{}, err
	}
	return chain, out, nil
}

// run converts everything from r to w. A trailing partial frame is dropped.
func (j job) run(r io.Reader, w io.Writer) (audio.Format, error) {
	frameSize := j.in.FrameSize()
	if j.packedIn {
		if j.in.Format != audio.FormatS24P32 {
			return audio.Format{}, fmt.Errorf("packed input needs 24 bit samples, got %s", j.in)
		}
		frameSize = 3 * int(j.in.Channels)
	}

	chain, out, err := j.buildChain()
	if err != nil {
		return audio.Format{}, err
	}
	defer chain.Close()

	var export pcm.Export
	export.Open(out, j.export)
	var unpacked pcm.Buffer

	buf := make([]byte, framesPerRead*frameSize)
	for {
		n, err := io.ReadFull(r, buf)
		eof := errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF)
		if err != nil && !eof {
			return out, fmt.Errorf("failed to read input: %w", err)
		}

		n -= n % frameSize
		if n > 0 {
			block := buf[:n]
			if j.packedIn {
				block = pcm.Unpack24(&unpacked, block)
			}
			data, err := chain.Filter(block)
			if err != nil {
				return out, err
			}
			if _, err := w.Write(export.Export(data)); err != nil {
				return out, fmt.Errorf("failed to write output: %w", err)
			}
		}
		if eof {
			return out, nil
		}
	}
}
