package sidecar

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/cbegin/trackperform/internal/action"
	"github.com/cbegin/trackperform/internal/midimap"
	"github.com/cbegin/trackperform/internal/perform"
)

const sample = `
patterns:
  0: intro groove
  3: breakdown
phrases:
  - name: drop
    steps:
      - {row: 4, action: unmute_all}
      - {row: 0, action: mute_all}
triggers:
  - {midi: "note 0 36", action: phrase, param: 0}
  - {midi: "cc 0 74", action: effect_param, param: 3}
performance:
  - {row: 4, action: next_order}
  - {row: 4, action: channel_mute, param: 1}
`

func TestParseConvertsEverySection(t *testing.T) {
	md, err := Parse([]byte(sample))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if md.Patterns[3] != "breakdown" {
		t.Fatalf("patterns = %v", md.Patterns)
	}

	phrases, err := md.PhraseSet()
	if err != nil {
		t.Fatalf("phrases: %v", err)
	}
	if len(phrases) != 1 || phrases[0].Name != "drop" || len(phrases[0].Steps) != 2 {
		t.Fatalf("phrases = %+v", phrases)
	}
	if phrases[0].Steps[0].Action != action.UnmuteAll || phrases[0].Steps[0].Row != 4 {
		t.Fatalf("authored step order not kept: %+v", phrases[0].Steps)
	}

	bindings, err := md.Bindings()
	if err != nil {
		t.Fatalf("bindings: %v", err)
	}
	want := midimap.Trigger{Kind: midimap.KindCC, Channel: 0, Number: 74}
	if len(bindings) != 2 || bindings[1].Trigger != want || bindings[1].Action != action.EffectParam {
		t.Fatalf("bindings = %+v", bindings)
	}

	events, err := md.Events()
	if err != nil {
		t.Fatalf("events: %v", err)
	}
	if len(events) != 2 || events[1].Action != action.ChannelMute || events[1].Param != 1 {
		t.Fatalf("events = %+v", events)
	}
}

func TestParseRejectsBadEntries(t *testing.T) {
	if _, err := Parse([]byte("unknown_key: 1\n")); err == nil {
		t.Fatalf("expected unknown field error")
	}
	md, err := Parse([]byte("performance:\n  - {row: 0, action: moonwalk}\n"))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if _, err := md.Events(); err == nil {
		t.Fatalf("expected unknown action error")
	}
	md, _ = Parse([]byte("triggers:\n  - {midi: \"aftertouch 0 1\", action: play}\n"))
	if _, err := md.Bindings(); err == nil {
		t.Fatalf("expected bad trigger error")
	}
}

func TestEmptyInputIsEmptyMetadata(t *testing.T) {
	md, err := Parse(nil)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(md.Phrases)+len(md.Triggers)+len(md.Performance) != 0 {
		t.Fatalf("md = %+v", md)
	}
}

func TestLoadMissingFileIsNotAnError(t *testing.T) {
	md, err := Load(filepath.Join(t.TempDir(), "nope.perf.yaml"))
	if err != nil || md == nil {
		t.Fatalf("Load = %v, %v", md, err)
	}
}

func TestSaveThenLoadKeepsRecordedPerformance(t *testing.T) {
	path := Path(filepath.Join(t.TempDir(), "song.xm"))
	if filepath.Base(path) != "song.perf.yaml" {
		t.Fatalf("path = %s", path)
	}
	md := &Metadata{Patterns: map[int]string{1: "verse"}}
	md.SetEvents([]perform.Event{
		{Row: 2, Action: action.SetPitch, Value: 1.25},
		{Row: 9, Action: action.JumpToOrder, Param: 3},
	})
	if err := Save(path, md); err != nil {
		t.Fatalf("save: %v", err)
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Fatalf("temporary file left behind")
	}
	got, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	events, err := got.Events()
	if err != nil {
		t.Fatalf("events: %v", err)
	}
	if len(events) != 2 || events[0].Value != 1.25 || events[1].Param != 3 || events[1].Row != 9 {
		t.Fatalf("events = %+v", events)
	}
	if got.Patterns[1] != "verse" {
		t.Fatalf("patterns = %v", got.Patterns)
	}
}
