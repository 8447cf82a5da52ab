package playback

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/cbegin/trackperform/internal/decoder"
)

// ErrNoSession is returned when an operation needs a loaded module.
var ErrNoSession = errors.New("no module loaded")

// Controller owns the current Session and serializes module reloads with
// render calls.
type Controller struct {
	// audio is held by Render and by the detach and install steps of Load.
	audio   sync.Mutex
	session *Session

	// current mirrors session for producers that must not take the lock.
	current atomic.Pointer[Session]
	playing atomic.Bool

	sampleRate int
	open       decoder.Opener
	cb         Callbacks
	logger     *slog.Logger
}

func NewController(sampleRate int, open decoder.Opener, cb Callbacks, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{
		sampleRate: sampleRate,
		open:       open,
		cb:         cb,
		logger:     logger,
	}
}

// Load replaces the current session with one decoding data. If the decoder
// cannot open data the previous session stays in place.
func (c *Controller) Load(data []byte) error {
	dec, err := c.open(data)
	if err != nil {
		return fmt.Errorf("open module: %w", err)
	}
	next := NewSession(dec, c.sampleRate, c.cb)

	c.detach()

	c.audio.Lock()
	c.session = next
	c.current.Store(next)
	c.audio.Unlock()

	c.logger.Info("module loaded",
		"channels", dec.NumChannels(),
		"orders", dec.NumOrders(),
		"bpm", dec.EstimatedBPM(),
		"mixer", next.MixerSupported())
	if !next.MixerSupported() {
		c.logger.Warn("decoder has no per-channel volume; mute, solo and channel volume disabled")
	}
	return nil
}

// Unload detaches and closes the current session.
func (c *Controller) Unload() {
	c.detach()
}

// detach removes the session under the audio lock and frees it outside.
func (c *Controller) detach() {
	c.audio.Lock()
	old := c.session
	c.session = nil
	c.current.Store(nil)
	c.audio.Unlock()

	if old == nil {
		return
	}
	if dropped := old.Dropped(); dropped > 0 {
		c.logger.Debug("commands dropped on full queue", "count", dropped)
	}
	if err := old.Close(); err != nil {
		c.logger.Warn("close decoder", "err", err)
	}
}

// Enqueue hands cmd to the render context. It never blocks; false means
// there is no session or the queue was full.
func (c *Controller) Enqueue(cmd Command) bool {
	s := c.current.Load()
	if s == nil {
		return false
	}
	return s.Enqueue(cmd)
}

// Render produces the next block. It writes silence while stopped, while
// no module is loaded, or while a reload holds the audio lock. Queued
// commands are applied even while stopped so the queue cannot back up.
func (c *Controller) Render(buf []float32) {
	if !c.audio.TryLock() {
		clear(buf)
		return
	}
	defer c.audio.Unlock()
	if c.session == nil {
		clear(buf)
		return
	}
	if !c.playing.Load() {
		clear(buf)
		c.session.Idle()
		return
	}
	c.session.Render(buf)
}

func (c *Controller) SetPlaying(playing bool) { c.playing.Store(playing) }
func (c *Controller) Playing() bool           { return c.playing.Load() }

// Status returns the latest published session state.
func (c *Controller) Status() (Status, error) {
	s := c.current.Load()
	if s == nil {
		return Status{}, ErrNoSession
	}
	return s.Status(), nil
}

// Dropped returns the drop count of the current session's queue.
func (c *Controller) Dropped() uint64 {
	if s := c.current.Load(); s != nil {
		return s.Dropped()
	}
	return 0
}
