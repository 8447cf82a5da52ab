// Package midimap binds incoming MIDI notes and controllers to actions.
package midimap

import (
	"fmt"
	"strconv"
	"strings"

	"gitlab.com/gomidi/midi/v2"

	"github.com/cbegin/trackperform/internal/action"
)

type Kind uint8

const (
	KindNote Kind = iota
	KindCC
)

func (k Kind) String() string {
	if k == KindCC {
		return "cc"
	}
	return "note"
}

// Trigger identifies a MIDI source: a note key or a controller number on a
// channel (0-15).
type Trigger struct {
	Kind    Kind
	Channel uint8
	Number  uint8
}

// ParseTrigger reads "note <ch> <key>" or "cc <ch> <num>".
func ParseTrigger(s string) (Trigger, error) {
	f := strings.Fields(s)
	if len(f) != 3 {
		return Trigger{}, fmt.Errorf("midi trigger %q: want \"note|cc <channel> <number>\"", s)
	}
	var t Trigger
	switch strings.ToLower(f[0]) {
	case "note":
		t.Kind = KindNote
	case "cc":
		t.Kind = KindCC
	default:
		return Trigger{}, fmt.Errorf("midi trigger %q: unknown kind %q", s, f[0])
	}
	ch, err := strconv.ParseUint(f[1], 10, 8)
	if err != nil || ch > 15 {
		return Trigger{}, fmt.Errorf("midi trigger %q: bad channel %q", s, f[1])
	}
	n, err := strconv.ParseUint(f[2], 10, 8)
	if err != nil || n > 127 {
		return Trigger{}, fmt.Errorf("midi trigger %q: bad number %q", s, f[2])
	}
	t.Channel, t.Number = uint8(ch), uint8(n)
	return t, nil
}

func (t Trigger) String() string {
	return fmt.Sprintf("%s %d %d", t.Kind, t.Channel, t.Number)
}

// Binding maps a trigger to an action. Note bindings pass Value through;
// controller bindings pass the controller position scaled to [0,1].
type Binding struct {
	Trigger Trigger
	Action  action.Action
	Param   int
	Value   float64
}

// Map resolves messages against a fixed set of bindings. Several bindings
// may share a trigger; they run in the order given.
type Map struct {
	bindings []Binding
	index    map[Trigger][]int
}

func New(bindings []Binding) *Map {
	m := &Map{bindings: append([]Binding(nil), bindings...), index: make(map[Trigger][]int)}
	for i, b := range m.bindings {
		m.index[b.Trigger] = append(m.index[b.Trigger], i)
	}
	return m
}

// Bindings returns a copy of the bindings in order.
func (m *Map) Bindings() []Binding {
	return append([]Binding(nil), m.bindings...)
}

// Dispatch runs every binding matching msg through exec and reports how many
// matched. Note-offs and unbound messages are ignored.
func (m *Map) Dispatch(msg midi.Message, exec action.Func) int {
	var ch, key, vel, cc, val uint8
	var t Trigger
	value := -1.0
	switch {
	case msg.GetNoteStart(&ch, &key, &vel):
		t = Trigger{Kind: KindNote, Channel: ch, Number: key}
	case msg.GetControlChange(&ch, &cc, &val):
		t = Trigger{Kind: KindCC, Channel: ch, Number: cc}
		value = float64(val) / 127
	default:
		return 0
	}
	idx := m.index[t]
	for _, i := range idx {
		b := m.bindings[i]
		v := b.Value
		if value >= 0 {
			v = value
		}
		if exec != nil {
			exec(b.Action, b.Param, v, action.SourceUser)
		}
	}
	return len(idx)
}
