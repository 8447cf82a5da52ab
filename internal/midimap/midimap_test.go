package midimap

import (
	"testing"

	"gitlab.com/gomidi/midi/v2"

	"github.com/cbegin/trackperform/internal/action"
)

func TestParseTrigger(t *testing.T) {
	tests := []struct {
		in   string
		want Trigger
		ok   bool
	}{
		{"note 0 60", Trigger{KindNote, 0, 60}, true},
		{"CC 15 74", Trigger{KindCC, 15, 74}, true},
		{"  note   9 36 ", Trigger{KindNote, 9, 36}, true},
		{"note 16 60", Trigger{}, false},
		{"cc 0 128", Trigger{}, false},
		{"pitchbend 0 0", Trigger{}, false},
		{"note 0", Trigger{}, false},
	}
	for _, tt := range tests {
		got, err := ParseTrigger(tt.in)
		if (err == nil) != tt.ok {
			t.Errorf("ParseTrigger(%q) err = %v", tt.in, err)
			continue
		}
		if tt.ok && got != tt.want {
			t.Errorf("ParseTrigger(%q) = %+v, want %+v", tt.in, got, tt.want)
		}
		if tt.ok {
			back, err := ParseTrigger(got.String())
			if err != nil || back != got {
				t.Errorf("String round trip for %q = %+v, %v", tt.in, back, err)
			}
		}
	}
}

type fired struct {
	a     action.Action
	param int
	value float64
}

func TestDispatchNotesAndControllers(t *testing.T) {
	m := New([]Binding{
		{Trigger: Trigger{KindNote, 0, 60}, Action: action.TriggerPhrase, Param: 2},
		{Trigger: Trigger{KindNote, 0, 60}, Action: action.PitchReset},
		{Trigger: Trigger{KindCC, 1, 74}, Action: action.EffectParam, Param: 3},
	})
	var got []fired
	exec := func(a action.Action, param int, value float64, src action.Source) {
		if src != action.SourceUser {
			t.Errorf("source = %v", src)
		}
		got = append(got, fired{a, param, value})
	}

	if n := m.Dispatch(midi.NoteOn(0, 60, 100), exec); n != 2 {
		t.Fatalf("note on matched %d bindings, want 2", n)
	}
	if got[0].a != action.TriggerPhrase || got[0].param != 2 || got[1].a != action.PitchReset {
		t.Fatalf("note bindings fired out of order: %+v", got)
	}

	got = nil
	m.Dispatch(midi.ControlChange(1, 74, 127), exec)
	if len(got) != 1 || got[0].a != action.EffectParam || got[0].param != 3 || got[0].value != 1 {
		t.Fatalf("cc dispatch = %+v", got)
	}

	got = nil
	m.Dispatch(midi.NoteOff(0, 60), exec)
	m.Dispatch(midi.NoteOn(1, 60, 100), exec)
	m.Dispatch(midi.ControlChange(0, 74, 10), exec)
	if len(got) != 0 {
		t.Fatalf("unbound messages fired: %+v", got)
	}
}
