// ABOUTME: Raw PCM decoder plugin
// ABOUTME: Streams headerless 16-bit little-endian stereo at 44.1 kHz
package decode

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/Resonate-Protocol/playd/pkg/audio"
)

// rawFormat is the layout of headerless PCM files
var rawFormat = audio.NewFormat(44100, audio.FormatS16, 2)

var pcmPlugin = Plugin{
	Name:     "pcm",
	Suffixes: []string{"pcm", "raw"},
	Decode:   decodePCM,
}

func decodePCM(ctx context.Context, r io.ReadSeeker, client Client) error {
	size, err := r.Seek(0, io.SeekEnd)
	if err != nil {
		return fmt.Errorf("failed to size raw pcm: %w", err)
	}
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("failed to rewind raw pcm: %w", err)
	}

	client.Ready(rawFormat, true, rawFormat.SizeToTime(int(size)))

	buf := make([]byte, readBufferSize)
	for {
		if ctx.Err() != nil {
			return nil
		}

		n, err := r.Read(buf)
		if n > 0 {
			if client.Data(buf[:n], 0) == CommandStop {
				return nil
			}
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("raw pcm read error: %w", err)
		}
	}
}
