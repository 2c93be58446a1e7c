// ABOUTME: MP3 decoder plugin
// ABOUTME: Decodes MP3 to 16-bit stereo PCM with go-mp3
package decode

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/hajimehoshi/go-mp3"

	"github.com/Resonate-Protocol/playd/pkg/audio"
)

// readBufferSize is the number of decoded bytes handed to the client at once
const readBufferSize = 8192

var mp3Plugin = Plugin{
	Name:     "mp3",
	Suffixes: []string{"mp3"},
	Decode:   decodeMP3,
}

func decodeMP3(ctx context.Context, r io.ReadSeeker, client Client) error {
	decoder, err := mp3.NewDecoder(r)
	if err != nil {
		return fmt.Errorf("failed to create mp3 decoder: %w", err)
	}

	// go-mp3 always produces 16 bit stereo
	format := audio.NewFormat(uint32(decoder.SampleRate()), audio.FormatS16, 2)
	if !format.Valid() {
		return fmt.Errorf("mp3 sample rate %d: %w", decoder.SampleRate(), audio.ErrInvalidFormat)
	}

	client.Ready(format, true, format.SizeToTime(int(decoder.Length())))

	buf := make([]byte, readBufferSize)
	for {
		n, err := decoder.Read(buf)
		if n > 0 {
			if client.Data(buf[:n], 0) == CommandStop {
				return nil
			}
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("mp3 decode error: %w", err)
		}
		if ctx.Err() != nil {
			return nil
		}
	}
}
