// ABOUTME: Decoder package documentation
// ABOUTME: Plugins, the Bridge into the chunk queue and the per-song Control
// Package decode turns audio files into chunks of PCM.
//
// A Plugin reads one file kind (mp3, flac, wav, aiff, ogg vorbis, raw pcm)
// and reports to a Client: Ready with the decoded format, then Data blocks,
// Tag and ReplayGain when the stream carries them. The Bridge implements
// Client on top of a chunk.Pool and chunk.Queue, converting to the
// configured output format on the way. Control runs one plugin per song in
// its own goroutine.
//
// Example:
//
//	ctl := decode.NewControl(pool, mask, resample.Cubic)
//	if err := ctl.Start("song.flac", queue, 0); err != nil {
//		return err
//	}
//	if err := ctl.WaitReady(ctx); err != nil {
//		return err
//	}
//	format := ctl.Format()
package decode
