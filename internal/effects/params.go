package effects

import (
	"fmt"
	"math"
	"strings"
)

// Stage identifies one slot of the chain. Stages process in declaration order.
type Stage int

const (
	StageDistortion Stage = iota
	StageFilter
	StageEQ
	StageCompressor
	StageDelay
	NumStages
)

var stageNames = [NumStages]string{"distortion", "filter", "eq", "compressor", "delay"}

func (s Stage) String() string {
	if s >= 0 && s < NumStages {
		return stageNames[s]
	}
	return fmt.Sprintf("stage(%d)", int(s))
}

func ParseStage(name string) (Stage, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for i, n := range stageNames {
		if n == name {
			return Stage(i), nil
		}
	}
	return 0, fmt.Errorf("unknown effect stage %q", name)
}

// Param identifies a normalized chain parameter.
type Param int

const (
	DistortionDrive Param = iota
	DistortionTone
	DistortionLevel
	FilterCutoff
	FilterResonance
	EQLow
	EQMid
	EQHigh
	CompressorThreshold
	CompressorRatio
	CompressorAttack
	CompressorRelease
	CompressorMakeup
	DelayTime
	DelayFeedback
	DelayMix
	EQLowCrossover
	EQHighCrossover
	NumParams
)

// paramSpec maps [0,1] onto a physical range. Exponential ranges suit
// frequencies, times and gains heard logarithmically; all mappings are
// monotonic non-decreasing.
type paramSpec struct {
	name     string
	stage    Stage
	min, max float64
	exp      bool
	def      float32
}

var paramSpecs = [NumParams]paramSpec{
	DistortionDrive:     {"drive", StageDistortion, 1, 50, true, 0.3},
	DistortionTone:      {"tone", StageDistortion, 500, 18000, true, 0.7},
	DistortionLevel:     {"level", StageDistortion, 0, 1.5, false, 0.6},
	FilterCutoff:        {"cutoff", StageFilter, 20, 20000, true, 1},
	FilterResonance:     {"resonance", StageFilter, 0.5, 12, true, 0.1},
	EQLow:               {"low", StageEQ, 0, 2, false, 0.5},
	EQMid:               {"mid", StageEQ, 0, 2, false, 0.5},
	EQHigh:              {"high", StageEQ, 0, 2, false, 0.5},
	CompressorThreshold: {"threshold", StageCompressor, -60, 0, false, 0.67},
	CompressorRatio:     {"ratio", StageCompressor, 1, 20, true, 0.46},
	CompressorAttack:    {"attack", StageCompressor, 0.1, 100, true, 0.5},
	CompressorRelease:   {"release", StageCompressor, 10, 1000, true, 0.5},
	CompressorMakeup:    {"makeup", StageCompressor, 0, 24, false, 0},
	DelayTime:           {"time", StageDelay, 10, maxDelayMs, true, 0.6},
	DelayFeedback:       {"feedback", StageDelay, 0, 0.95, false, 0.4},
	DelayMix:            {"mix", StageDelay, 0, 1, false, 0.3},
	EQLowCrossover:      {"low_freq", StageEQ, 60, 1000, true, 0.572},
	EQHighCrossover:     {"high_freq", StageEQ, 1000, 12000, true, 0.442},
}

func (p Param) valid() bool { return p >= 0 && p < NumParams }

func (p Param) String() string {
	if !p.valid() {
		return fmt.Sprintf("param(%d)", int(p))
	}
	s := paramSpecs[p]
	return s.stage.String() + "." + s.name
}

// Stage returns the stage p belongs to.
func (p Param) Stage() Stage {
	if !p.valid() {
		return -1
	}
	return paramSpecs[p].stage
}

// Default returns the normalized default value of p.
func (p Param) Default() float32 {
	if !p.valid() {
		return 0
	}
	return paramSpecs[p].def
}

// Denormalize maps a normalized value onto p's physical range. Inputs
// outside [0,1] are clamped first.
func (p Param) Denormalize(v float32) float64 {
	if !p.valid() {
		return 0
	}
	s := paramSpecs[p]
	x := float64(Clamp01(v))
	if s.exp {
		return s.min * math.Pow(s.max/s.min, x)
	}
	return s.min + (s.max-s.min)*x
}

// ParseParam accepts "stage.name", e.g. "filter.cutoff".
func ParseParam(name string) (Param, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for i := Param(0); i < NumParams; i++ {
		if i.String() == name {
			return i, nil
		}
	}
	return 0, fmt.Errorf("unknown effect parameter %q", name)
}

// Clamp01 limits v to [0,1]; NaN maps to 0.
func Clamp01(v float32) float32 {
	if v != v {
		return 0
	}
	return clamp(v, 0, 1)
}
