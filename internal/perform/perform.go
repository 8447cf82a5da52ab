// Package perform records control actions against an elapsed-row timeline
// and replays them in sync with playback.
package perform

import (
	"slices"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/cbegin/trackperform/internal/action"
)

// Event is one recorded action. Events sharing a Row run in insertion order.
type Event struct {
	Row    int64
	Action action.Action
	Param  int
	Value  float64
}

// Engine owns the performance timeline. The row counter advances once per
// Tick and is independent of song position: loops and jumps do not reset it.
type Engine struct {
	// carried counts ticks that arrived while the control side held mu.
	carried atomic.Int64

	mu        sync.Mutex
	events    []Event
	row       int64
	recording bool
	playing   bool
	due       []Event

	exec action.Func
}

// New returns an engine that replays through exec.
func New(exec action.Func) *Engine {
	return &Engine{exec: exec, due: make([]Event, 0, 16)}
}

// SetRecording arms or disarms recording.
func (e *Engine) SetRecording(on bool) {
	e.mu.Lock()
	e.recording = on
	e.mu.Unlock()
}

func (e *Engine) Recording() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.recording
}

// SetPlayback enables or disables replay on subsequent ticks.
func (e *Engine) SetPlayback(on bool) {
	e.mu.Lock()
	e.playing = on
	e.mu.Unlock()
}

func (e *Engine) Playing() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.playing
}

// Row returns the current performance row.
func (e *Engine) Row() int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.row + e.carried.Load()
}

// Record appends a user action at the current row when recording is armed
// and the action is recordable. It reports whether the action was kept.
func (e *Engine) Record(a action.Action, param int, value float64) bool {
	if !a.Recordable() {
		return false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.recording {
		return false
	}
	ev := Event{Row: e.row + e.carried.Load(), Action: a, Param: param, Value: value}
	// Insert after every event already at this row.
	i := sort.Search(len(e.events), func(i int) bool { return e.events[i].Row > ev.Row })
	e.events = slices.Insert(e.events, i, ev)
	return true
}

// Tick replays the events at the current row, if playback is enabled, and
// advances the counter. It never waits for the lock: a tick that finds the
// engine busy is carried into the next one. Actions run after the lock is
// released so they may call back into the engine.
func (e *Engine) Tick() {
	e.carried.Add(1)
	if !e.mu.TryLock() {
		return
	}
	n := e.carried.Swap(0)
	due := e.due[:0]
	for ; n > 0; n-- {
		if e.playing {
			i := sort.Search(len(e.events), func(i int) bool { return e.events[i].Row >= e.row })
			for ; i < len(e.events) && e.events[i].Row == e.row; i++ {
				due = append(due, e.events[i])
			}
		}
		e.row++
	}
	e.due = due
	exec := e.exec
	e.mu.Unlock()

	if exec == nil {
		return
	}
	for _, ev := range due {
		if !ev.Action.Replayable() {
			continue
		}
		exec(ev.Action, ev.Param, ev.Value, action.SourcePlayback)
	}
}

// Reset zeroes the counter and disables playback. Recorded events are kept.
func (e *Engine) Reset() {
	e.mu.Lock()
	e.row = 0
	e.carried.Store(0)
	e.playing = false
	e.mu.Unlock()
}

// Load replaces the recorded events. Events are ordered by row, keeping the
// given order within a row.
func (e *Engine) Load(events []Event) {
	sorted := slices.Clone(events)
	slices.SortStableFunc(sorted, func(a, b Event) int {
		switch {
		case a.Row < b.Row:
			return -1
		case a.Row > b.Row:
			return 1
		}
		return 0
	})
	e.mu.Lock()
	e.events = sorted
	e.mu.Unlock()
}

// Events returns a copy of the recorded timeline.
func (e *Engine) Events() []Event {
	e.mu.Lock()
	defer e.mu.Unlock()
	return slices.Clone(e.events)
}

// Clear drops all recorded events.
func (e *Engine) Clear() {
	e.mu.Lock()
	e.events = nil
	e.mu.Unlock()
}
