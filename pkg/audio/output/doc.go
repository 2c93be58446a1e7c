// ABOUTME: Audio output package fanning decoded chunks out to sinks
// ABOUTME: Provides the plugin contract, AudioOutput, the Dispatcher and built-in plugins
// Package output plays the chunk stream on one or more audio outputs.
//
// Every AudioOutput runs its own goroutine that walks the shared chunk
// queue, applies replay gain and cross-fading, runs the output's filter
// chain and hands the result to its Plugin. The Dispatcher is driven by the
// player: it queues chunks, returns them to the pool once every open
// output played them and isolates failing outputs, which are retried after
// ReopenAfter.
//
// Built-in plugins: null, recorder (WAV file), httpd (websocket stream),
// oto and malgo (sound devices).
//
// Example:
//
//	ao, err := output.NewFromConfig(output.Config{Name: "speakers", Plugin: "oto", Enabled: true}, opts)
//	d, err := output.NewDispatcher([]*output.AudioOutput{ao})
//	err = d.Open(format, pool)
//	err = d.Play(c)
//	queued := d.Check()
package output
