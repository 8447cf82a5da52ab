// Package sidecar reads and writes the per-module performance metadata file
// kept next to a module as <name>.perf.yaml.
package sidecar

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/cbegin/trackperform/internal/action"
	"github.com/cbegin/trackperform/internal/midimap"
	"github.com/cbegin/trackperform/internal/perform"
	"github.com/cbegin/trackperform/internal/phrase"
)

const Ext = ".perf.yaml"

type Metadata struct {
	// Patterns holds operator notes keyed by pattern index.
	Patterns    map[int]string `yaml:"patterns,omitempty"`
	Phrases     []Phrase       `yaml:"phrases,omitempty"`
	Triggers    []Trigger      `yaml:"triggers,omitempty"`
	Performance []Event        `yaml:"performance,omitempty"`
}

type Phrase struct {
	Name  string `yaml:"name"`
	Steps []Step `yaml:"steps"`
}

type Step struct {
	Row    int     `yaml:"row"`
	Action string  `yaml:"action"`
	Param  int     `yaml:"param,omitempty"`
	Value  float64 `yaml:"value,omitempty"`
}

type Trigger struct {
	MIDI   string  `yaml:"midi"`
	Action string  `yaml:"action"`
	Param  int     `yaml:"param,omitempty"`
	Value  float64 `yaml:"value,omitempty"`
}

type Event struct {
	Row    int64   `yaml:"row"`
	Action string  `yaml:"action"`
	Param  int     `yaml:"param,omitempty"`
	Value  float64 `yaml:"value,omitempty"`
}

// Path returns the sidecar path for a module file.
func Path(modulePath string) string {
	return strings.TrimSuffix(modulePath, filepath.Ext(modulePath)) + Ext
}

// Load reads a sidecar. A missing file yields empty metadata.
func Load(path string) (*Metadata, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return &Metadata{}, nil
	}
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

func Parse(data []byte) (*Metadata, error) {
	md := &Metadata{}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(md); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse sidecar: %w", err)
	}
	return md, nil
}

func (md *Metadata) Marshal() ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(md); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Save writes md to path through a temporary file in the same directory.
func Save(path string, md *Metadata) error {
	data, err := md.Marshal()
	if err != nil {
		return fmt.Errorf("encode sidecar: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// PhraseSet converts the phrases for the phrase engine.
func (md *Metadata) PhraseSet() ([]phrase.Phrase, error) {
	out := make([]phrase.Phrase, 0, len(md.Phrases))
	for _, p := range md.Phrases {
		ph := phrase.Phrase{Name: p.Name, Steps: make([]phrase.Step, 0, len(p.Steps))}
		for i, s := range p.Steps {
			a, err := action.Parse(s.Action)
			if err != nil {
				return nil, fmt.Errorf("phrase %q step %d: %w", p.Name, i, err)
			}
			if s.Row < 0 {
				return nil, fmt.Errorf("phrase %q step %d: negative row", p.Name, i)
			}
			ph.Steps = append(ph.Steps, phrase.Step{Action: a, Param: s.Param, Value: s.Value, Row: s.Row})
		}
		out = append(out, ph)
	}
	return out, nil
}

// Bindings converts the MIDI triggers.
func (md *Metadata) Bindings() ([]midimap.Binding, error) {
	out := make([]midimap.Binding, 0, len(md.Triggers))
	for i, tr := range md.Triggers {
		t, err := midimap.ParseTrigger(tr.MIDI)
		if err != nil {
			return nil, fmt.Errorf("trigger %d: %w", i, err)
		}
		a, err := action.Parse(tr.Action)
		if err != nil {
			return nil, fmt.Errorf("trigger %d: %w", i, err)
		}
		out = append(out, midimap.Binding{Trigger: t, Action: a, Param: tr.Param, Value: tr.Value})
	}
	return out, nil
}

// Events converts the recorded performance.
func (md *Metadata) Events() ([]perform.Event, error) {
	out := make([]perform.Event, 0, len(md.Performance))
	for i, e := range md.Performance {
		a, err := action.Parse(e.Action)
		if err != nil {
			return nil, fmt.Errorf("performance event %d: %w", i, err)
		}
		out = append(out, perform.Event{Row: e.Row, Action: a, Param: e.Param, Value: e.Value})
	}
	return out, nil
}

// SetEvents replaces the recorded performance.
func (md *Metadata) SetEvents(events []perform.Event) {
	md.Performance = make([]Event, len(events))
	for i, e := range events {
		md.Performance[i] = Event{Row: e.Row, Action: e.Action.String(), Param: e.Param, Value: e.Value}
	}
}
