// ABOUTME: The output goroutine executing commands and playing chunks
// ABOUTME: Plugin calls run with the output lock released
package output

import (
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Resonate-Protocol/playd/pkg/audio/chunk"
)

func (ao *AudioOutput) log() *logrus.Entry {
	return logrus.WithFields(logrus.Fields{"output": ao.name, "plugin": ao.pluginName})
}

// commandFinished acknowledges the current command (must hold ao.mu)
func (ao *AudioOutput) commandFinished() {
	ao.command = cmdNone
	ao.cond.Broadcast()
}

// unlocked runs fn with ao.mu released
func (ao *AudioOutput) unlocked(fn func()) {
	ao.mu.Unlock()
	defer ao.mu.Lock()
	fn()
}

// sleepLocked waits for d or until a command arrives (must hold ao.mu)
func (ao *AudioOutput) sleepLocked(d time.Duration) {
	ao.unlocked(func() {
		t := time.NewTimer(d)
		defer t.Stop()
		select {
		case <-t.C:
		case <-ao.wake:
		}
	})
}

func (ao *AudioOutput) doEnable() bool {
	if ao.reallyEnabled {
		return true
	}

	var err error
	ao.unlocked(func() { err = ao.plugin.Enable() })
	if err != nil {
		ao.log().WithError(err).Warn("Failed to enable output")
		return false
	}
	ao.reallyEnabled = true
	return true
}

func (ao *AudioOutput) doDisable() {
	if ao.open {
		ao.doClose(false)
	}
	if ao.reallyEnabled {
		ao.reallyEnabled = false
		ao.unlocked(ao.plugin.Disable)
	}
}

func (ao *AudioOutput) doOpen() {
	if !ao.doEnable() {
		return
	}

	out, err := ao.source.open(ao.inFormat)
	if err != nil {
		ao.log().WithError(err).Warn("Failed to open filter")
		ao.failTime = time.Now()
		return
	}

	out.MaskApply(ao.configFormat)

	device := out
	ao.unlocked(func() { err = ao.plugin.Open(&device) })
	if err != nil {
		ao.log().WithError(err).Warn("Failed to open audio output")
		ao.source.close()
		ao.failTime = time.Now()
		ao.failed()
		return
	}

	if err := ao.convert.Set(device); err != nil {
		ao.log().WithError(err).Warn("Failed to convert for audio output")
		ao.unlocked(ao.plugin.Close)
		ao.source.close()
		ao.failTime = time.Now()
		ao.failed()
		return
	}

	ao.outFormat = device
	ao.open = true

	entry := ao.log().WithField("format", ao.inFormat.String())
	if ao.inFormat != ao.outFormat {
		entry = entry.WithField("device_format", ao.outFormat.String())
	}
	entry.Debug("Opened audio output")
}

func (ao *AudioOutput) doClose(drain bool) {
	ao.current = nil
	ao.open = false

	ao.unlocked(func() {
		if drain {
			ao.plugin.Drain()
		} else {
			ao.plugin.Cancel()
		}
		ao.plugin.Close()
		ao.source.close()
	})

	ao.log().Debug("Closed audio output")
}

// doReopen handles an input format change on an open output
func (ao *AudioOutput) doReopen() {
	if !ao.configFormat.FullyDefined() {
		if ao.open {
			ao.doClose(true)
		}

		// the device format follows the input; reopen it with the new one
		ao.outFormat = ao.inFormat
		ao.outFormat.MaskApply(ao.configFormat)
	}

	if !ao.open {
		ao.doOpen()
		return
	}

	// the device keeps its fixed format, only the filters follow the input
	ao.source.close()
	if _, err := ao.source.open(ao.inFormat); err != nil {
		ao.log().WithError(err).Warn("Failed to open filter")
		ao.open = false
		ao.current = nil
		ao.failTime = time.Now()
		ao.unlocked(ao.plugin.Close)
		ao.failed()
		return
	}

	if err := ao.convert.Set(ao.outFormat); err != nil {
		ao.log().WithError(err).Warn("Failed to convert for audio output")
		ao.doClose(false)
		ao.failTime = time.Now()
		ao.failed()
	}
}

// fail closes the device after a playback error and arms the reopen timer
func (ao *AudioOutput) fail() {
	ao.doClose(false)
	ao.failTime = time.Now()
	ao.failed()
}

func (ao *AudioOutput) playChunk(c *chunk.Chunk) bool {
	if c.Tag != nil {
		if ts, ok := ao.plugin.(TagSender); ok {
			tag := c.Tag
			ao.unlocked(func() { ts.SendTag(tag) })
		}
	}

	if c.IsEmpty() {
		return true
	}

	data, err := ao.source.filterChunk(c)
	if err != nil {
		ao.log().WithError(err).Warn("Failed to filter for output")
		ao.fail()
		return false
	}

	delayer, _ := ao.plugin.(Delayer)
	for len(data) > 0 && ao.command == cmdNone {
		if delayer != nil {
			var delay time.Duration
			ao.unlocked(func() { delay = delayer.Delay() })
			if delay > 0 {
				ao.sleepLocked(delay)
				continue
			}
		}

		var n int
		ao.unlocked(func() { n, err = ao.plugin.Play(data) })
		if err != nil || n <= 0 {
			entry := ao.log()
			if err != nil {
				entry = entry.WithError(err)
			}
			entry.Warn("Audio output failed to play")
			ao.fail()
			return false
		}

		if n > len(data) {
			n = len(data)
		}
		if ao.hooks.Played != nil {
			ao.hooks.Played(ao.name, n)
		}
		data = data[n:]
	}

	return true
}

// doPlay plays every chunk after the current one. It returns false when
// there was nothing to play.
func (ao *AudioOutput) doPlay() bool {
	var c *chunk.Chunk
	if ao.current != nil {
		c = ao.queue.Next(ao.current)
	} else if ao.queue != nil {
		c = ao.queue.Peek()
	}
	if c == nil {
		return false
	}

	ao.chunkFinished = false

	for c != nil && ao.command == cmdNone {
		ao.current = c
		if !ao.playChunk(c) {
			break
		}
		c = ao.queue.Next(c)
	}

	ao.chunkFinished = true

	ao.unlocked(ao.played)
	return true
}

func (ao *AudioOutput) doPause() {
	ao.unlocked(ao.plugin.Cancel)

	ao.pause = true
	ao.commandFinished()

	pauser, _ := ao.plugin.(Pauser)
	for {
		ok := false
		if pauser != nil {
			ao.unlocked(func() { ok = pauser.Pause() })
		}
		if !ok {
			ao.doClose(false)
			break
		}
		if ao.command != cmdNone {
			break
		}
	}

	ao.pause = false
}

func (ao *AudioOutput) run() {
	ao.mu.Lock()
	defer ao.mu.Unlock()
	defer close(ao.done)

	for {
		switch ao.command {
		case cmdNone:

		case cmdEnable:
			ao.doEnable()
			ao.commandFinished()

		case cmdDisable:
			ao.doDisable()
			ao.commandFinished()

		case cmdOpen:
			ao.doOpen()
			ao.commandFinished()

		case cmdReopen:
			ao.doReopen()
			ao.commandFinished()

		case cmdClose:
			if ao.open {
				ao.doClose(false)
			}
			ao.commandFinished()

		case cmdPause:
			if !ao.open {
				// the output failed after the pause was requested
				ao.commandFinished()
				break
			}
			ao.doPause()
			// a new command arrived during the pause
			continue

		case cmdDrain:
			if ao.open {
				ao.unlocked(ao.plugin.Drain)
			}
			ao.commandFinished()
			continue

		case cmdCancel:
			ao.current = nil
			if ao.open {
				ao.unlocked(ao.plugin.Cancel)
			}
			ao.commandFinished()

			// the dispatcher is clearing the queue; wait until it is done
			for ao.waitForResume && ao.command == cmdNone {
				ao.cond.Wait()
			}
			continue

		case cmdKill:
			ao.current = nil
			ao.commandFinished()
			return
		}

		if ao.open && ao.doPlay() {
			// chunks may have been added while playing
			continue
		}

		if ao.command == cmdNone {
			ao.cond.Wait()
		}
	}
}
