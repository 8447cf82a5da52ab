package phrase

import (
	"errors"
	"reflect"
	"testing"

	"github.com/cbegin/trackperform/internal/action"
)

type trace struct {
	entries []string
}

func (tr *trace) exec(a action.Action, param int, value float64, src action.Source) {
	if src != action.SourcePhrase {
		tr.entries = append(tr.entries, "bad-source")
	}
	tr.entries = append(tr.entries, a.String())
}

func (tr *trace) hooks() Hooks {
	return Hooks{
		Reset:    func(interrupted string) { tr.entries = append(tr.entries, "reset:"+interrupted) },
		Complete: func(name string) { tr.entries = append(tr.entries, "complete:"+name) },
	}
}

func testPhrases() []Phrase {
	return []Phrase{
		{Name: "A", Steps: []Step{
			{Action: action.MuteAll, Row: 0},
			{Action: action.UnmuteAll, Row: 2},
		}},
		{Name: "B", Steps: []Step{
			{Action: action.PitchUp, Row: 1},
			{Action: action.Retrigger, Row: 0},
		}},
	}
}

func TestPhraseRunsStepsAtRelativeRowsThenCompletes(t *testing.T) {
	tr := &trace{}
	e := New(tr.exec, tr.hooks())
	e.Load(testPhrases())
	if err := e.Trigger("A"); err != nil {
		t.Fatalf("trigger: %v", err)
	}
	for i := 0; i < 5; i++ {
		e.Tick()
	}
	want := []string{"reset:", "mute_all", "unmute_all", "complete:A"}
	if !reflect.DeepEqual(tr.entries, want) {
		t.Fatalf("trace = %v, want %v", tr.entries, want)
	}
	if _, ok := e.Active(); ok {
		t.Fatalf("phrase still active after completion")
	}
}

func TestTriggerWhileActiveResetsOnceBeforeNewSteps(t *testing.T) {
	tr := &trace{}
	e := New(tr.exec, tr.hooks())
	e.Load(testPhrases())
	_ = e.Trigger("A")
	e.Tick()
	if err := e.Trigger("B"); err != nil {
		t.Fatalf("trigger B: %v", err)
	}
	for i := 0; i < 4; i++ {
		e.Tick()
	}
	want := []string{
		"reset:", "mute_all",
		"reset:A", "retrigger", "pitch_up", "complete:B",
	}
	if !reflect.DeepEqual(tr.entries, want) {
		t.Fatalf("trace = %v, want %v", tr.entries, want)
	}
}

func TestUnknownPhrase(t *testing.T) {
	e := New(nil, Hooks{})
	e.Load(testPhrases())
	if err := e.Trigger("missing"); !errors.Is(err, ErrUnknownPhrase) {
		t.Fatalf("err = %v", err)
	}
	if err := e.TriggerIndex(7); !errors.Is(err, ErrUnknownPhrase) {
		t.Fatalf("err = %v", err)
	}
	if err := e.TriggerIndex(1); err != nil {
		t.Fatalf("trigger index: %v", err)
	}
	if name, ok := e.Active(); !ok || name != "B" {
		t.Fatalf("active = %q %v", name, ok)
	}
}

func TestStopCancelsWithoutCompletion(t *testing.T) {
	tr := &trace{}
	e := New(tr.exec, tr.hooks())
	e.Load(testPhrases())
	_ = e.Trigger("A")
	e.Tick()
	e.Stop()
	e.Tick()
	e.Tick()
	want := []string{"reset:", "mute_all"}
	if !reflect.DeepEqual(tr.entries, want) {
		t.Fatalf("trace = %v, want %v", tr.entries, want)
	}
}

func TestEmptyPhraseCompletesOnFirstTick(t *testing.T) {
	tr := &trace{}
	e := New(tr.exec, tr.hooks())
	e.Load([]Phrase{{Name: "silence"}})
	_ = e.Trigger("silence")
	e.Tick()
	want := []string{"reset:", "complete:silence"}
	if !reflect.DeepEqual(tr.entries, want) {
		t.Fatalf("trace = %v, want %v", tr.entries, want)
	}
}

func TestFinalStepTriggeringPhraseSkipsCompletion(t *testing.T) {
	var e *Engine
	var entries []string
	exec := func(a action.Action, param int, value float64, src action.Source) {
		entries = append(entries, a.String())
		if a == action.TriggerPhrase {
			_ = e.TriggerIndex(param)
		}
	}
	e = New(exec, Hooks{Complete: func(name string) { entries = append(entries, "complete:"+name) }})
	e.Load([]Phrase{
		{Name: "chain", Steps: []Step{{Action: action.TriggerPhrase, Param: 1, Row: 0}}},
		{Name: "next", Steps: []Step{{Action: action.MuteAll, Row: 0}}},
	})
	_ = e.Trigger("chain")
	e.Tick()
	e.Tick()
	want := []string{"phrase", "mute_all", "complete:next"}
	if !reflect.DeepEqual(entries, want) {
		t.Fatalf("entries = %v, want %v", entries, want)
	}
}

func TestTickCarriedWhileLockHeld(t *testing.T) {
	tr := &trace{}
	e := New(tr.exec, tr.hooks())
	e.Load(testPhrases())
	_ = e.Trigger("A")

	e.mu.Lock()
	e.Tick()
	e.Tick()
	e.mu.Unlock()
	if want := []string{"reset:"}; !reflect.DeepEqual(tr.entries, want) {
		t.Fatalf("steps ran while the engine was busy: %v", tr.entries)
	}

	e.Tick()
	want := []string{"reset:", "mute_all", "unmute_all", "complete:A"}
	if !reflect.DeepEqual(tr.entries, want) {
		t.Fatalf("trace = %v, want %v", tr.entries, want)
	}
}

func TestTriggerDiscardsCarriedTicks(t *testing.T) {
	tr := &trace{}
	e := New(tr.exec, tr.hooks())
	e.Load(testPhrases())

	e.mu.Lock()
	e.Tick()
	e.Tick()
	e.mu.Unlock()
	_ = e.Trigger("A")
	e.Tick()
	want := []string{"reset:", "mute_all"}
	if !reflect.DeepEqual(tr.entries, want) {
		t.Fatalf("trace = %v, want %v", tr.entries, want)
	}
}
