// ABOUTME: Player goroutine moving decoded chunks from the decoder to the outputs
// ABOUTME: Handles buffering, song borders, cross-fading and transport commands
package player

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Resonate-Protocol/playd/pkg/audio"
	"github.com/Resonate-Protocol/playd/pkg/audio/chunk"
	"github.com/Resonate-Protocol/playd/pkg/audio/decode"
	"github.com/Resonate-Protocol/playd/pkg/audio/output"
	"github.com/Resonate-Protocol/playd/pkg/audio/resample"
)

const (
	// DefaultOutputChunks is the number of chunks the outputs may hold
	// before the player stops feeding them
	DefaultOutputChunks = 64

	// pollInterval bounds how long the player sleeps while waiting on the
	// decoder or the outputs
	pollInterval = 10 * time.Millisecond
)

// ErrNoSong is returned when a command needs a song but none is playing
var ErrNoSong = errors.New("no song")

// State of the player
type State int

const (
	StateStop State = iota
	StatePlay
	StatePause
)

func (s State) String() string {
	switch s {
	case StatePlay:
		return "play"
	case StatePause:
		return "pause"
	}
	return "stop"
}

// Config holds player settings
type Config struct {
	// BufferBeforePlay is the number of chunks decoded before playback starts
	BufferBeforePlay int

	// OutputChunks is the number of chunks handed to the outputs ahead of
	// playback; 0 selects DefaultOutputChunks. Cross-fading can only mix
	// chunks the player still holds.
	OutputChunks int

	CrossFade CrossFade

	// Mask overrides fields of the decoded format
	Mask audio.Format

	Resampler resample.Kind

	Hooks Hooks
}

// Hooks are called from the player goroutine
type Hooks struct {
	SongStarted func(path string)
	SongFailed  func(path string, err error)
}

// Status is a snapshot of the player
type Status struct {
	State    State
	Song     string
	Position int
	Queue    int
	Elapsed  time.Duration
	Total    time.Duration
	Format   audio.Format
	BitRate  int
	Tag      *audio.Tag
	Volume   int
	Err      error
}

type requestKind int

const (
	reqEnqueue requestKind = iota
	reqPlay
	reqPause
	reqStop
	reqSeek
	reqNext
)

type request struct {
	kind  requestKind
	songs []string
	seek  time.Duration
	done  chan error
}

// xfadeState tracks whether the current song border cross-fades
type xfadeState int

const (
	xfadeUnknown xfadeState = iota
	xfadeDisabled
	xfadeEnabled
)

// Player plays a list of songs through the dispatcher
type Player struct {
	cfg        Config
	pool       *chunk.Pool
	dispatcher *output.Dispatcher
	decoder    *decode.Control

	requests chan request
	updates  chan struct{}

	mu     sync.Mutex
	status Status

	// owned by the Run goroutine
	playlist    []string
	pos         int
	nextPos     int
	pipe        *chunk.Queue
	nextPipe    *chunk.Queue
	playing     bool
	paused      bool
	buffering   bool
	starting    bool
	outputOpen  bool
	seekable    bool
	format      audio.Format
	xfade       xfadeState
	xfadeChunks int
	crossFading bool
	xfadeTag    *audio.Tag
}

// New creates a player allocating chunks from pool
func New(cfg Config, pool *chunk.Pool, dispatcher *output.Dispatcher) *Player {
	if cfg.BufferBeforePlay < 0 {
		cfg.BufferBeforePlay = 0
	}
	if cfg.OutputChunks <= 0 {
		cfg.OutputChunks = DefaultOutputChunks
	}
	if cfg.BufferBeforePlay >= pool.Size() {
		cfg.BufferBeforePlay = pool.Size() - 1
	}

	return &Player{
		cfg:        cfg,
		pool:       pool,
		dispatcher: dispatcher,
		decoder:    decode.NewControl(pool, cfg.Mask, cfg.Resampler),
		requests:   make(chan request),
		updates:    make(chan struct{}, 1),
	}
}

// Updates delivers a wakeup whenever the status changed
func (p *Player) Updates() <-chan struct{} {
	return p.updates
}

// Status returns a snapshot of the player state
func (p *Player) Status() Status {
	p.mu.Lock()
	s := p.status
	p.mu.Unlock()

	if s.State != StateStop {
		if e := p.dispatcher.ElapsedTime(); e >= 0 {
			s.Elapsed = time.Duration(e * float64(time.Second))
		}
	}
	s.Volume = p.dispatcher.GetVolume()
	return s
}

func (p *Player) publish(fn func(s *Status)) {
	p.mu.Lock()
	fn(&p.status)
	p.mu.Unlock()

	select {
	case p.updates <- struct{}{}:
	default:
	}
}

func (p *Player) send(ctx context.Context, req request) error {
	req.done = make(chan error, 1)
	select {
	case p.requests <- req:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-req.done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Enqueue appends songs to the playlist
func (p *Player) Enqueue(ctx context.Context, songs ...string) error {
	return p.send(ctx, request{kind: reqEnqueue, songs: songs})
}

// Play starts the playlist, or resumes when paused
func (p *Player) Play(ctx context.Context) error {
	return p.send(ctx, request{kind: reqPlay})
}

// Pause toggles pause
func (p *Player) Pause(ctx context.Context) error {
	return p.send(ctx, request{kind: reqPause})
}

// Stop stops playback and closes the outputs
func (p *Player) Stop(ctx context.Context) error {
	return p.send(ctx, request{kind: reqStop})
}

// Seek jumps within the current song
func (p *Player) Seek(ctx context.Context, t time.Duration) error {
	return p.send(ctx, request{kind: reqSeek, seek: t})
}

// Next skips to the next song
func (p *Player) Next(ctx context.Context) error {
	return p.send(ctx, request{kind: reqNext})
}

// Run is the player goroutine. It returns when ctx is done.
func (p *Player) Run(ctx context.Context) error {
	defer p.stopPlayback()

	timer := time.NewTimer(pollInterval)
	defer timer.Stop()

	for {
		if !p.playing || p.paused {
			select {
			case <-ctx.Done():
				return nil
			case req := <-p.requests:
				p.handle(req)
			}
			continue
		}

		select {
		case req := <-p.requests:
			p.handle(req)
			continue
		default:
		}

		if !p.step() {
			continue
		}

		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(pollInterval)

		select {
		case <-ctx.Done():
			return nil
		case req := <-p.requests:
			p.handle(req)
		case <-p.decoder.Notify():
		case <-p.dispatcher.Played():
		case <-timer.C:
		}
	}
}

func (p *Player) handle(req request) {
	var err error
	switch req.kind {
	case reqEnqueue:
		p.playlist = append(p.playlist, req.songs...)
		p.publish(func(s *Status) { s.Queue = len(p.playlist) })
	case reqPlay:
		err = p.play()
	case reqPause:
		err = p.togglePause()
	case reqStop:
		p.stopPlayback()
	case reqSeek:
		err = p.seek(req.seek)
	case reqNext:
		err = p.next()
	}
	req.done <- err
}

func (p *Player) play() error {
	if p.playing {
		if p.paused {
			return p.togglePause()
		}
		return nil
	}
	if p.pos >= len(p.playlist) {
		p.pos = 0
	}
	if len(p.playlist) == 0 {
		return fmt.Errorf("playlist is empty: %w", ErrNoSong)
	}
	return p.startSong(p.pos, 0)
}

// startSong starts decoding playlist[i], skipping songs that cannot be
// opened
func (p *Player) startSong(i int, start time.Duration) error {
	p.decoder.Stop()
	p.clearPipes()

	for ; i < len(p.playlist); i++ {
		song := p.playlist[i]
		pipe := chunk.NewQueue()
		if err := p.decoder.Start(song, pipe, start); err != nil {
			p.songFailed(song, err)
			start = 0
			continue
		}

		p.pos = i
		p.nextPos = i + 1
		p.pipe = pipe
		p.playing = true
		p.buffering = true
		p.starting = true
		p.xfade = xfadeUnknown
		p.crossFading = false

		p.publish(func(s *Status) {
			s.Song = song
			s.Position = i
			s.Tag = nil
			s.Total = 0
			s.Err = nil
			if !p.paused {
				s.State = StatePlay
			}
		})
		return nil
	}

	p.stopPlayback()
	return fmt.Errorf("no playable song left: %w", ErrNoSong)
}

func (p *Player) songFailed(song string, err error) {
	logrus.WithError(err).WithField("song", song).Warn("Cannot play song")
	if p.cfg.Hooks.SongFailed != nil {
		p.cfg.Hooks.SongFailed(song, err)
	}
	p.publish(func(s *Status) { s.Err = err })
}

func (p *Player) clearPipes() {
	if p.pipe != nil {
		p.pipe.ClearAndReturn(p.pool)
		p.pipe = nil
	}
	if p.nextPipe != nil {
		p.nextPipe.ClearAndReturn(p.pool)
		p.nextPipe = nil
	}
	p.xfadeTag = nil
}

func (p *Player) stopPlayback() {
	p.decoder.Stop()
	p.dispatcher.Cancel()
	p.dispatcher.Close()
	p.clearPipes()

	p.playing = false
	p.paused = false
	p.outputOpen = false
	p.format.Clear()

	p.publish(func(s *Status) {
		s.State = StateStop
		s.Format = audio.Format{}
		s.BitRate = 0
		s.Elapsed = 0
	})
}

func (p *Player) togglePause() error {
	if !p.playing {
		return fmt.Errorf("cannot pause: %w", ErrNoSong)
	}

	p.paused = !p.paused
	if p.paused {
		p.dispatcher.Pause()
		p.publish(func(s *Status) { s.State = StatePause })
		return nil
	}

	p.publish(func(s *Status) { s.State = StatePlay })
	if !p.format.Defined() {
		// the decoder has not announced a format yet
		return nil
	}
	return p.openOutput()
}

func (p *Player) seek(t time.Duration) error {
	if !p.playing {
		return fmt.Errorf("cannot seek: %w", ErrNoSong)
	}
	if !p.seekable && !p.starting {
		return decode.ErrNotSeekable
	}

	total := p.decoder.TotalTime()
	if p.nextPipe != nil {
		// the decoder already moved on; its total belongs to the next song
		total = p.status.Total
	}
	if total > 0 && t > total {
		t = total - 100*time.Millisecond
	}
	if t < 0 {
		t = 0
	}

	p.dispatcher.Cancel()
	err := p.startSong(p.pos, t)
	if err == nil {
		p.xfade = xfadeUnknown
	}
	return err
}

func (p *Player) next() error {
	if !p.playing {
		return fmt.Errorf("cannot skip: %w", ErrNoSong)
	}
	p.dispatcher.Cancel()
	if p.pos+1 >= len(p.playlist) {
		p.stopPlayback()
		p.pos = len(p.playlist)
		return nil
	}
	return p.startSong(p.pos+1, 0)
}

// openOutput opens the dispatcher with the current format. A failure
// pauses playback until the user resumes.
func (p *Player) openOutput() error {
	if err := p.dispatcher.Open(p.format, p.pool); err != nil {
		logrus.WithError(err).Warn("Failed to open audio outputs")
		p.outputOpen = false
		p.paused = true
		p.publish(func(s *Status) {
			s.State = StatePause
			s.Err = err
		})
		return err
	}
	p.outputOpen = true
	return nil
}

// step does one unit of work and reports whether the player should wait
// for the decoder or the outputs before the next one
func (p *Player) step() bool {
	if p.buffering {
		if p.pipe.Size() < p.cfg.BufferBeforePlay && !p.decoder.IsIdle() {
			return true
		}
		p.buffering = false
	}

	if p.starting {
		return p.checkDecoderStartup()
	}

	if p.nextPipe == nil && p.decoder.IsIdle() && p.nextPos < len(p.playlist) {
		p.startNextDecoder()
	}

	if p.nextPipe != nil && p.xfade == xfadeUnknown && p.decoder.State() != decode.StateStart {
		p.xfadeChunks = p.cfg.CrossFade.Calculate(p.decoder.TotalTime(), p.decoder.Format(),
			p.format, p.pool.Size()-p.cfg.BufferBeforePlay)
		if p.xfadeChunks > 0 {
			p.xfade = xfadeEnabled
			p.crossFading = false
		} else {
			p.xfade = xfadeDisabled
		}
	}

	switch {
	case !p.pipe.IsEmpty():
		return p.playNextChunk()
	case p.dispatcher.Check() > 0:
		return true
	case p.nextPipe != nil:
		p.songBorder()
		return false
	case p.decoder.IsIdle():
		if p.pipe.IsEmpty() {
			p.dispatcher.Drain()
			logrus.WithField("song", p.playlist[p.pos]).Info("Played")
			p.stopPlayback()
			p.pos = len(p.playlist)
		}
		return false
	}
	return true
}

// checkDecoderStartup waits for the decoder to announce the song's format
// and opens the outputs with it
func (p *Player) checkDecoderStartup() bool {
	switch p.decoder.State() {
	case decode.StateError:
		if p.dispatcher.Check() > 0 {
			// let the previous song finish first
			return true
		}
		p.songFailed(p.playlist[p.pos], p.decoder.Err())
		if err := p.startSong(p.pos+1, 0); err != nil {
			logrus.WithError(err).Debug("Playlist finished")
		}
		return false
	case decode.StateStart:
		return true
	}

	if p.outputOpen && p.dispatcher.Check() > 0 {
		// outputs are still playing the previous song
		return true
	}

	p.format = p.decoder.Format()
	p.seekable = p.decoder.Seekable()
	p.starting = false

	song := p.playlist[p.pos]
	total := p.decoder.TotalTime()
	logrus.WithFields(logrus.Fields{
		"song":   song,
		"format": p.format.String(),
		"total":  total,
	}).Info("Playing")

	p.publish(func(s *Status) {
		s.Format = p.format
		s.Total = total
	})
	if p.cfg.Hooks.SongStarted != nil {
		p.cfg.Hooks.SongStarted(song)
	}

	if !p.paused {
		_ = p.openOutput()
	}
	return false
}

func (p *Player) startNextDecoder() {
	song := p.playlist[p.nextPos]
	pipe := chunk.NewQueue()
	if err := p.decoder.Start(song, pipe, 0); err != nil {
		p.songFailed(song, err)
		p.nextPos++
		return
	}
	p.nextPipe = pipe
	p.xfade = xfadeUnknown
}

func (p *Player) playNextChunk() bool {
	if p.dispatcher.Check() >= p.cfg.OutputChunks {
		return true
	}

	var c *chunk.Chunk
	if p.xfade == xfadeEnabled && p.nextPipe != nil {
		if position := p.pipe.Size(); position <= p.xfadeChunks {
			other := p.nextPipe.Shift()
			if !p.crossFading {
				// the ending song may have fewer chunks left than planned
				p.xfadeChunks = position
				p.crossFading = true
			}

			if other != nil {
				c = p.pipe.Shift()

				// the faded-in song's tag waits until the fade is over
				p.xfadeTag = audio.Merge(p.xfadeTag, other.Tag)
				other.Tag = nil

				c.MixRatio = p.cfg.CrossFade.ratio(position, p.xfadeChunks)
				if other.Length == 0 {
					p.pool.Return(other)
					other = nil
				}
				c.Other = other
			} else if p.decoder.IsIdle() {
				p.xfade = xfadeDisabled
			} else {
				return true
			}
		}
	}

	if c == nil {
		c = p.pipe.Shift()
	}

	if p.xfade != xfadeEnabled && p.xfadeTag != nil {
		c.Tag = audio.Merge(c.Tag, p.xfadeTag)
		p.xfadeTag = nil
	}

	if err := p.playChunk(c); err != nil {
		logrus.WithError(err).Warn("Playback failed")
		p.pool.Return(c)
		p.paused = true
		p.publish(func(s *Status) {
			s.State = StatePause
			s.Err = err
		})
	}
	return false
}

func (p *Player) playChunk(c *chunk.Chunk) error {
	if c.Tag != nil {
		tag := c.Tag
		p.publish(func(s *Status) { s.Tag = audio.Merge(s.Tag, tag) })
	}

	if c.Length == 0 {
		p.pool.Return(c)
		return nil
	}

	if c.BitRate != p.status.BitRate {
		bitRate := c.BitRate
		p.publish(func(s *Status) { s.BitRate = bitRate })
	}

	return p.dispatcher.Play(c)
}

// songBorder switches to the next song once the current one is played
func (p *Player) songBorder() {
	logrus.WithField("song", p.playlist[p.pos]).Info("Played")

	p.pipe = p.nextPipe
	p.nextPipe = nil
	p.pos = p.nextPos
	p.nextPos = p.pos + 1
	p.xfade = xfadeUnknown
	p.starting = true

	song := p.playlist[p.pos]
	p.publish(func(s *Status) {
		s.Song = song
		s.Position = p.pos
		s.Tag = nil
	})
}
