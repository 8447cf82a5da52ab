package playback

import (
	"math"
	"sync/atomic"

	"github.com/cbegin/trackperform/internal/decoder"
)

// Pitch multiplier bounds, one octave either way.
const (
	MinPitch = 0.5
	MaxPitch = 2.0
)

// ClampPitch limits a pitch multiplier to [MinPitch, MaxPitch]. NaN maps to 1.
func ClampPitch(p float64) float64 {
	if math.IsNaN(p) {
		return 1
	}
	return clampFloat(p, MinPitch, MaxPitch)
}

// Callbacks are invoked from the render context and must not block.
type Callbacks struct {
	OrderChanged   func(order int)
	PatternChanged func(pattern int)
	// RowChanged is the row tick that drives the performance and phrase
	// engines. It fires at most once per render call: when the decoder
	// advanced into a new row, or when a reposition or the first render
	// entered one. Loop repositions never swallow a tick.
	RowChanged    func(order, row int)
	PatternLooped func(order int)
	SongLooped    func()
}

// Status is a point-in-time view of a session, safe to read from any
// goroutine.
type Status struct {
	Order      int
	Pattern    int
	Row        int
	Mode       LoopMode
	Pitch      float64
	CustomRows int
	Channels   int
	Orders     int
	MuteMask   uint64
	// Mixer is false when the decoder cannot override channel volume.
	Mixer bool
}

type statusCell struct {
	order, pattern, row, mode, customRows atomic.Int32
	pitch                                 atomic.Uint64
	mute                                  atomic.Uint64
}

// Session is the playback state of one loaded module. Everything except
// Enqueue and Status belongs to the render context.
type Session struct {
	dec        decoder.Decoder
	sampleRate float64
	pitch      float64
	channels   int
	numOrders  int

	loop       loopState
	customRows int
	queued     queuedJump

	queue *Queue
	mixer mixer

	// Position after the previous render call; the baseline for detecting
	// wraps and row advances. Every reposition updates it.
	prevOrder, prevRow int
	// entered is set by the first render and by every reposition, so the
	// row landed on still produces a tick.
	entered bool

	orderEdge, patternEdge edge

	cb     Callbacks
	status statusCell
}

// queuedJump is the song-mode one-shot jump taken at the next pattern
// boundary.
type queuedJump struct {
	armed bool
	order int
	from  int
}

// NewSession takes ownership of dec. Mute, solo and volume are disabled
// when dec does not implement decoder.ChannelVolumer.
func NewSession(dec decoder.Decoder, sampleRate int, cb Callbacks) *Session {
	vol, _ := dec.(decoder.ChannelVolumer)
	channels := dec.NumChannels()
	if channels < 0 {
		channels = 0
	}
	s := &Session{
		dec:        dec,
		sampleRate: float64(sampleRate),
		pitch:      1,
		channels:   channels,
		numOrders:  dec.NumOrders(),
		queue:      NewQueue(),
		mixer:      newMixer(channels, vol),
		prevOrder:  dec.Order(),
		prevRow:    dec.Row(),
		entered:    true,
		cb:         cb,
	}
	s.mixer.apply()
	s.publish(s.prevOrder, dec.Pattern(), s.prevRow)
	return s
}

// Enqueue is the non-blocking producer entry point. A full queue drops cmd.
func (s *Session) Enqueue(cmd Command) bool {
	return s.queue.Push(cmd)
}

// Dropped returns the number of commands lost to a full queue.
func (s *Session) Dropped() uint64 { return s.queue.Dropped() }

// MixerSupported reports whether mute, solo and volume are available.
func (s *Session) MixerSupported() bool { return s.mixer.enabled() }

func (s *Session) Close() error { return s.dec.Close() }

// Render fills buf with interleaved stereo frames and runs one step of the
// control state machine.
func (s *Session) Render(buf []float32) int {
	s.drain()

	n := s.dec.Render(s.sampleRate*s.pitch, buf)
	if n < 0 {
		n = 0
	}
	clear(buf[min(2*n, len(buf)):])

	// Judge the row tick on the raw decoder position, before the looping
	// policy moves it back.
	order, row := s.dec.Order(), s.dec.Row()
	tick := s.entered || order != s.prevOrder || row != s.prevRow

	if s.songWrapped(order, row) && s.cb.SongLooped != nil {
		s.cb.SongLooped()
	}

	switch s.loop.mode {
	case LoopTillRowMode:
		order, row = s.evalLoopTillRow(order, row)
	case PatternLoop:
		order, row = s.evalPatternLoop(order, row)
	default:
		order, row = s.evalQueuedJump(order, row)
	}
	s.prevOrder, s.prevRow = order, row
	s.entered = false

	pattern := s.dec.PatternAt(order)
	s.report(order, pattern, row, tick)
	s.publish(order, pattern, row)
	return n
}

// Idle applies queued commands and publishes status without advancing the
// decoder. The controller calls it in place of Render while stopped.
func (s *Session) Idle() {
	s.drain()
	s.publish(s.prevOrder, s.dec.PatternAt(s.prevOrder), s.prevRow)
}

func (s *Session) drain() {
	for {
		cmd, ok := s.queue.Pop()
		if !ok {
			return
		}
		s.apply(cmd)
	}
}

func (s *Session) apply(cmd Command) {
	switch cmd.Kind {
	case CmdQueueOrder:
		s.queueOrder(cmd.Arg)
	case CmdQueuePattern:
		s.queueOrder(s.orderOfPattern(cmd.Arg))
	case CmdJumpToOrder:
		s.jump(cmd.Arg)
	case CmdJumpToPattern:
		s.jump(s.orderOfPattern(cmd.Arg))
	case CmdSetLoopRows:
		s.customRows = max(cmd.Arg, 0)
	case CmdLoopTillRow:
		s.loopTillRow(cmd.Arg)
	case CmdToggleMute:
		s.mixer.toggleMute(cmd.Arg)
	case CmdToggleSolo:
		s.mixer.toggleSolo(cmd.Arg)
	case CmdSetVolume:
		s.mixer.setVolume(cmd.Arg, cmd.Value)
	case CmdMuteAll:
		s.mixer.setAllMuted(true)
	case CmdUnmuteAll:
		s.mixer.setAllMuted(false)
	case CmdSetPitch:
		s.pitch = ClampPitch(cmd.Value)
	case CmdSetPatternMode:
		s.setPatternMode(cmd.Value != 0)
	case CmdRetrigger:
		order := s.dec.Order()
		if s.loop.mode != SongMode {
			order = s.loop.order
		}
		s.reposition(order, 0)
	}
}

func (s *Session) validOrder(order int) bool {
	return order >= 0 && order < s.numOrders
}

// orderOfPattern finds the next order at or after the current one that
// plays pattern, wrapping around the song. It returns -1 if none does.
func (s *Session) orderOfPattern(pattern int) int {
	if s.numOrders == 0 {
		return -1
	}
	start := max(s.dec.Order(), 0)
	for i := 0; i < s.numOrders; i++ {
		o := (start + i) % s.numOrders
		if s.dec.PatternAt(o) == pattern {
			return o
		}
	}
	return -1
}

func (s *Session) queueOrder(order int) {
	if !s.validOrder(order) {
		return
	}
	if s.loop.mode == PatternLoop {
		s.loop.pending = true
		s.loop.pendingOrder = order
		return
	}
	s.queued = queuedJump{armed: true, order: order, from: s.dec.Order()}
}

// jump repositions immediately and retargets any active loop.
func (s *Session) jump(order int) {
	if !s.validOrder(order) {
		return
	}
	s.reposition(order, 0)
	s.queued.armed = false
	switch s.loop.mode {
	case PatternLoop:
		s.loop.order = order
		s.loop.pattern = s.dec.PatternAt(order)
		s.loop.pending = false
	case LoopTillRowMode:
		s.loop.order = order
		s.loop.pattern = s.dec.PatternAt(order)
		s.loop.targetRow = s.clampRow(s.loop.pattern, s.loop.targetRow)
	}
}

func (s *Session) setPatternMode(enabled bool) {
	if !enabled {
		s.loop = loopState{mode: SongMode}
		return
	}
	order := s.dec.Order()
	s.loop = loopState{mode: PatternLoop, order: order, pattern: s.dec.PatternAt(order)}
	s.queued.armed = false
}

func (s *Session) loopTillRow(row int) {
	order := s.dec.Order()
	pattern := s.dec.PatternAt(order)
	s.loop = loopState{
		mode:      LoopTillRowMode,
		order:     order,
		pattern:   pattern,
		targetRow: s.clampRow(pattern, row),
	}
	s.queued.armed = false
}

func (s *Session) clampRow(pattern, row int) int {
	n := s.dec.NumRows(pattern)
	if row >= n {
		row = n - 1
	}
	return max(row, 0)
}

// loopLength is the effective pattern loop length: the custom override when
// it is shorter than the pattern, the full pattern otherwise.
func (s *Session) loopLength() int {
	n := s.dec.NumRows(s.loop.pattern)
	if s.customRows > 0 && s.customRows < n {
		return s.customRows
	}
	return n
}

func (s *Session) reposition(order, row int) {
	s.dec.SetPosition(order, row)
	s.mixer.apply()
	s.prevOrder, s.prevRow = order, row
	s.entered = true
}

func (s *Session) songWrapped(order, row int) bool {
	if s.numOrders == 0 || s.prevOrder != s.numOrders-1 || order != 0 {
		return false
	}
	return order != s.prevOrder || row < s.prevRow
}

// wrappedInPlace reports a restart of the same order, as happens when a
// single-order song or pattern wraps onto itself.
func (s *Session) wrappedInPlace(order, row int) bool {
	return order == s.prevOrder && row == 0 && s.prevRow > 0
}

func (s *Session) evalLoopTillRow(order, row int) (int, int) {
	lt := &s.loop
	prevRow := s.prevRow
	if order != lt.order || s.wrappedInPlace(order, row) {
		s.reposition(lt.order, 0)
		order, row, prevRow = lt.order, 0, -1
		if s.cb.PatternLooped != nil {
			s.cb.PatternLooped(lt.order)
		}
	}
	if row == lt.targetRow || (prevRow < lt.targetRow && row >= lt.targetRow) {
		s.loop = loopState{mode: SongMode}
	}
	return order, row
}

func (s *Session) evalPatternLoop(order, row int) (int, int) {
	pl := &s.loop
	left := order != pl.order
	boundary := left || s.wrappedInPlace(order, row) ||
		(s.customRows > 0 && row >= s.loopLength())

	if pl.pending && boundary {
		pl.order = pl.pendingOrder
		pl.pattern = s.dec.PatternAt(pl.order)
		pl.pending = false
		s.reposition(pl.order, 0)
		return pl.order, 0
	}
	if !boundary {
		return order, row
	}
	// Leaving the loop order from inside it is the natural end of the
	// pattern; arriving elsewhere from outside is drift.
	if !left || s.prevOrder == pl.order {
		if s.cb.PatternLooped != nil {
			s.cb.PatternLooped(pl.order)
		}
	}
	s.reposition(pl.order, 0)
	return pl.order, 0
}

func (s *Session) evalQueuedJump(order, row int) (int, int) {
	q := &s.queued
	if !q.armed {
		return order, row
	}
	if order == q.from && !s.wrappedInPlace(order, row) {
		return order, row
	}
	q.armed = false
	s.reposition(q.order, 0)
	return q.order, 0
}

func (s *Session) report(order, pattern, row int, tick bool) {
	orderChanged := s.orderEdge.changed(order)
	patternChanged := s.patternEdge.changed(pattern)
	if orderChanged && s.cb.OrderChanged != nil {
		s.cb.OrderChanged(order)
	}
	if patternChanged && s.cb.PatternChanged != nil {
		s.cb.PatternChanged(pattern)
	}
	if tick && s.cb.RowChanged != nil {
		s.cb.RowChanged(order, row)
	}
}

func (s *Session) publish(order, pattern, row int) {
	s.status.order.Store(int32(order))
	s.status.pattern.Store(int32(pattern))
	s.status.row.Store(int32(row))
	s.status.mode.Store(int32(s.loop.mode))
	s.status.customRows.Store(int32(s.customRows))
	s.status.pitch.Store(math.Float64bits(s.pitch))
	s.status.mute.Store(s.mixer.muteMask())
}

// Status reads the snapshot published by the last render call.
func (s *Session) Status() Status {
	return Status{
		Order:      int(s.status.order.Load()),
		Pattern:    int(s.status.pattern.Load()),
		Row:        int(s.status.row.Load()),
		Mode:       LoopMode(s.status.mode.Load()),
		Pitch:      math.Float64frombits(s.status.pitch.Load()),
		CustomRows: int(s.status.customRows.Load()),
		Channels:   s.channels,
		Orders:     s.numOrders,
		MuteMask:   s.status.mute.Load(),
		Mixer:      s.mixer.enabled(),
	}
}
