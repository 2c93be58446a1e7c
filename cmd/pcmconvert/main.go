// ABOUTME: Entry point for the offline PCM converter
// ABOUTME: Reads raw PCM on stdin and writes the converted stream to stdout
package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/Resonate-Protocol/playd/pkg/audio"
	"github.com/Resonate-Protocol/playd/pkg/audio/pcm"
	"github.com/Resonate-Protocol/playd/pkg/audio/resample"
)

// paramFlag collects repeated -param key=value flags
type paramFlag audio.Params

func (p paramFlag) String() string {
	pairs := make([]string, 0, len(p))
	for k, v := range p {
		pairs = append(pairs, k+"="+v)
	}
	return strings.Join(pairs, ",")
}

func (p paramFlag) Set(s string) error {
	k, v, ok := strings.Cut(s, "=")
	if !ok || strings.TrimSpace(k) == "" {
		return fmt.Errorf("expected key=value, got %q", s)
	}
	p[strings.TrimSpace(k)] = strings.TrimSpace(v)
	return nil
}

var (
	inFormat  = flag.String("in", "44100:16:2", "Input format rate:bits:channels")
	outFormat = flag.String("out", "*:*:*", "Output format mask, * keeps the input value")
	resampler = flag.String("resampler", "cubic", "Resampler: fallback, linear or cubic")
	filterArg = flag.String("filter", "", "Filter plugin to run before the conversion")
	debug     = flag.Bool("debug", false, "Enable debug logging")

	packedIn      = flag.Bool("packed-in", false, "24 bit input uses three bytes per sample")
	pack24        = flag.Bool("pack24", false, "Write 24 bit output as three bytes per sample")
	shift8        = flag.Bool("shift8", false, "Write 24 bit output in the high bits of 32")
	reverseEndian = flag.Bool("reverse-endian", false, "Write big-endian samples")
	dop           = flag.Bool("dop", false, "Wrap DSD output into DoP frames")
)

func main() {
	params := paramFlag{}
	flag.Var(params, "param", "Filter parameter key=value (repeatable)")
	flag.Parse()

	logrus.SetOutput(os.Stderr)
	if *debug {
		logrus.SetLevel(logrus.DebugLevel)
	}

	if err := run(audio.Params(params)); err != nil {
		logrus.WithError(err).Error("Conversion failed")
		os.Exit(1)
	}
}

func run(params audio.Params) error {
	in, err := audio.ParseFormatMask(*inFormat, false)
	if err != nil {
		return err
	}
	mask, err := audio.ParseFormatMask(*outFormat, true)
	if err != nil {
		return err
	}
	kind, err := resample.ParseKind(*resampler)
	if err != nil {
		return err
	}

	w := bufio.NewWriter(os.Stdout)
	j := job{
		in:       in,
		mask:     mask,
		kind:     kind,
		filter:   *filterArg,
		params:   params,
		packedIn: *packedIn,
		export: pcm.ExportParams{
			Pack24:        *pack24,
			Shift8:        *shift8,
			ReverseEndian: *reverseEndian,
			DSDUSB:        *dop,
		},
	}
	out, err := j.run(bufio.NewReader(os.Stdin), w)
	if err != nil {
		return err
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	logrus.WithFields(logrus.Fields{"in": in.String(), "out": out.String()}).Debug("Converted")
	return nil
}
