// Package phrase runs named, pre-authored sequences of control actions.
package phrase

import (
	"errors"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/cbegin/trackperform/internal/action"
)

var ErrUnknownPhrase = errors.New("unknown phrase")

// Step is one action of a phrase, Row rows after the trigger.
type Step struct {
	Action action.Action
	Param  int
	Value  float64
	Row    int
}

type Phrase struct {
	Name  string
	Steps []Step
}

// length is the number of ticks a phrase stays active.
func (p *Phrase) length() int {
	n := 0
	for _, s := range p.Steps {
		n = max(n, s.Row+1)
	}
	return max(n, 1)
}

// Hooks are invoked outside the engine lock.
type Hooks struct {
	// Reset runs once per trigger before the phrase starts. interrupted is
	// the phrase that was cut short, or "".
	Reset func(interrupted string)
	// Complete runs when a phrase's last step has elapsed.
	Complete func(name string)
}

// Engine plays at most one phrase at a time.
type Engine struct {
	// carried counts ticks that arrived while the control side held mu.
	carried atomic.Int64

	mu      sync.Mutex
	phrases []Phrase
	active  int // index into phrases, -1 when idle
	elapsed int
	gen     atomic.Uint64 // bumped on every trigger
	due     []Step

	exec  action.Func
	hooks Hooks
}

func New(exec action.Func, hooks Hooks) *Engine {
	return &Engine{active: -1, exec: exec, hooks: hooks, due: make([]Step, 0, 8)}
}

// Load replaces the phrase set and stops any active phrase. Steps are
// ordered by row, keeping authored order within a row.
func (e *Engine) Load(phrases []Phrase) {
	loaded := make([]Phrase, len(phrases))
	for i, p := range phrases {
		steps := slices.Clone(p.Steps)
		slices.SortStableFunc(steps, func(a, b Step) int { return a.Row - b.Row })
		loaded[i] = Phrase{Name: p.Name, Steps: steps}
	}
	e.mu.Lock()
	e.phrases = loaded
	e.active = -1
	e.mu.Unlock()
}

// Names lists phrases in load order.
func (e *Engine) Names() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	names := make([]string, len(e.phrases))
	for i, p := range e.phrases {
		names[i] = p.Name
	}
	return names
}

// Phrases returns a copy of the loaded phrases.
func (e *Engine) Phrases() []Phrase {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]Phrase, len(e.phrases))
	for i, p := range e.phrases {
		out[i] = Phrase{Name: p.Name, Steps: slices.Clone(p.Steps)}
	}
	return out
}

// Active returns the running phrase name.
func (e *Engine) Active() (string, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.active < 0 {
		return "", false
	}
	return e.phrases[e.active].Name, true
}

// Trigger starts the named phrase, interrupting any active one.
func (e *Engine) Trigger(name string) error {
	e.mu.Lock()
	idx := slices.IndexFunc(e.phrases, func(p Phrase) bool { return p.Name == name })
	e.mu.Unlock()
	if idx < 0 {
		return ErrUnknownPhrase
	}
	return e.TriggerIndex(idx)
}

// TriggerIndex starts the phrase at position i in load order.
func (e *Engine) TriggerIndex(i int) error {
	e.mu.Lock()
	if i < 0 || i >= len(e.phrases) {
		e.mu.Unlock()
		return ErrUnknownPhrase
	}
	interrupted := ""
	if e.active >= 0 {
		interrupted = e.phrases[e.active].Name
	}
	e.active = -1
	e.mu.Unlock()

	if e.hooks.Reset != nil {
		e.hooks.Reset(interrupted)
	}

	e.mu.Lock()
	e.active = i
	e.elapsed = 0
	e.carried.Store(0)
	e.gen.Add(1)
	e.mu.Unlock()
	return nil
}

// Stop cancels the active phrase without running Complete.
func (e *Engine) Stop() {
	e.mu.Lock()
	e.active = -1
	e.mu.Unlock()
}

// Tick runs the steps due at the current elapsed row and advances. When the
// last step's row has elapsed the phrase completes. Like the performance
// engine, a tick that finds the lock held is carried into the next one.
func (e *Engine) Tick() {
	e.carried.Add(1)
	if !e.mu.TryLock() {
		return
	}
	n := e.carried.Swap(0)
	if e.active < 0 {
		e.mu.Unlock()
		return
	}
	p := &e.phrases[e.active]
	due := e.due[:0]
	done := false
	for ; n > 0 && !done; n-- {
		for _, s := range p.Steps {
			if s.Row == e.elapsed {
				due = append(due, s)
			}
		}
		e.elapsed++
		done = e.elapsed >= p.length()
	}
	completed := ""
	if done {
		completed = p.Name
		e.active = -1
	}
	e.due = due
	gen := e.gen.Load()
	e.mu.Unlock()

	if e.exec != nil {
		for _, s := range due {
			e.exec(s.Action, s.Param, s.Value, action.SourcePhrase)
		}
	}
	if !done || e.hooks.Complete == nil {
		return
	}
	// A final step that triggers another phrase hands over without completing.
	if e.gen.Load() == gen {
		e.hooks.Complete(completed)
	}
}
