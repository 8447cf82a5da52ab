package effects

import (
	"math"
	"testing"
)

func TestParamMappingsAreMonotonic(t *testing.T) {
	for p := Param(0); p < NumParams; p++ {
		prev := p.Denormalize(0)
		for i := 1; i <= 1000; i++ {
			v := p.Denormalize(float32(i) / 1000)
			if v < prev {
				t.Fatalf("%s: denormalize(%v) = %v < %v", p, float32(i)/1000, v, prev)
			}
			prev = v
		}
		spec := paramSpecs[p]
		if lo := p.Denormalize(0); math.Abs(lo-spec.min) > 1e-9 {
			t.Errorf("%s: low end = %v, want %v", p, lo, spec.min)
		}
		if hi := p.Denormalize(1); math.Abs(hi-spec.max) > 1e-6*math.Abs(spec.max) {
			t.Errorf("%s: high end = %v, want %v", p, hi, spec.max)
		}
	}
}

func TestFilterCutoffSweepIsNonDecreasing(t *testing.T) {
	c := NewChain(44100)
	var last float64
	for i, v := range []float32{0.0, 0.5, 1.0} {
		c.SetParam(FilterCutoff, v)
		got := FilterCutoff.Denormalize(c.Param(FilterCutoff))
		if i > 0 && got < last {
			t.Fatalf("cutoff at %v = %v, below previous %v", v, got, last)
		}
		last = got
	}
	if last != 20000 {
		t.Fatalf("full-scale cutoff = %v, want 20000", last)
	}
}

func TestSetParamClampsAndRejectsNaN(t *testing.T) {
	c := NewChain(44100)
	c.SetParam(DelayMix, 3)
	if got := c.Param(DelayMix); got != 1 {
		t.Errorf("over range = %v, want 1", got)
	}
	c.SetParam(DelayMix, -2)
	if got := c.Param(DelayMix); got != 0 {
		t.Errorf("under range = %v, want 0", got)
	}
	c.SetParam(DelayMix, float32(math.NaN()))
	if got := c.Param(DelayMix); got != 0 {
		t.Errorf("NaN = %v, want 0", got)
	}
	c.SetParam(NumParams, 0.5) // ignored
}

func TestDisabledChainPassesThrough(t *testing.T) {
	c := NewChain(44100)
	buf := []float32{0.1, -0.2, 0.3, -0.4, 0.9, -0.9}
	want := append([]float32(nil), buf...)
	c.Process(buf)
	for i := range buf {
		if buf[i] != want[i] {
			t.Fatalf("sample %d = %v, want %v", i, buf[i], want[i])
		}
	}
}

func TestToggleAndSettings(t *testing.T) {
	c := NewChain(44100)
	if !c.Toggle(StageFilter) || !c.Enabled(StageFilter) {
		t.Fatalf("toggle did not enable filter")
	}
	if c.Toggle(StageFilter) {
		t.Fatalf("second toggle should disable")
	}
	s := DefaultSettings()
	s.Enabled[StageDelay] = true
	s.Params[DelayTime] = 0.25
	c.Apply(s)
	if got := c.Snapshot(); got != s {
		t.Fatalf("snapshot = %+v, want %+v", got, s)
	}
}

func TestParseNames(t *testing.T) {
	p, err := ParseParam("Filter.Cutoff")
	if err != nil || p != FilterCutoff {
		t.Fatalf("ParseParam = %v, %v", p, err)
	}
	s, err := ParseStage("compressor")
	if err != nil || s != StageCompressor {
		t.Fatalf("ParseStage = %v, %v", s, err)
	}
	if _, err := ParseParam("filter.drive"); err == nil {
		t.Fatalf("expected error for unknown param")
	}
}

func TestDelayProducesOutput(t *testing.T) {
	d := NewDelay(44100, 100, 0.5, 0.5)
	// Feed a pulse and check delayed output appears
	d.Process(1.0, 1.0)
	for i := 0; i < 4409; i++ { // ~100ms at 44100Hz
		d.Process(0, 0)
	}
	l, r := d.Process(0, 0)
	if math.Abs(float64(l)) < 0.01 || math.Abs(float64(r)) < 0.01 {
		t.Errorf("expected delayed output, got l=%f r=%f", l, r)
	}
}

func TestDistortionClips(t *testing.T) {
	d := NewDistortion(44100, 10, 0.5, 0)
	l, r := d.Process(0.5, 0.5)
	if math.Abs(float64(l)) > 1.0 || math.Abs(float64(r)) > 1.0 {
		t.Error("distortion output should be bounded")
	}
	if math.Abs(float64(l)) < 0.01 {
		t.Error("expected non-zero distortion output")
	}
}

func TestFilterPassesDCAndCutsNyquist(t *testing.T) {
	f := NewFilter(44100, 1000, 0.707)
	var l float32
	for i := 0; i < 4000; i++ {
		l, _ = f.Process(1, 1)
	}
	if math.Abs(float64(l)-1) > 0.01 {
		t.Fatalf("DC gain = %v, want 1", l)
	}

	f = NewFilter(44100, 200, 0.707)
	var peak float64
	for i := 0; i < 4000; i++ {
		x := float32(1)
		if i%2 == 1 {
			x = -1
		}
		l, _ = f.Process(x, x)
		if i > 1000 {
			peak = max(peak, math.Abs(float64(l)))
		}
	}
	if peak > 0.01 {
		t.Fatalf("nyquist leaked through at %v", peak)
	}
}

func TestCompressorReducesLoudSignal(t *testing.T) {
	c := NewCompressor(44100, -20, 8, 1, 100, 0)
	var l float32
	for i := 0; i < 44100; i++ {
		l, _ = c.Process(0.9, 0.9)
	}
	if l >= 0.5 {
		t.Fatalf("compressed level = %v, expected well below input", l)
	}
	c.Reset()
	if l, _ = c.Process(0.01, 0.01); l != 0.01 {
		t.Fatalf("quiet signal changed: %v", l)
	}
}

func TestEQDefaultsAreUnity(t *testing.T) {
	c := NewChain(44100)
	c.SetEnabled(StageEQ, true)
	buf := make([]float32, 2*256)
	for i := range buf {
		buf[i] = float32(math.Sin(float64(i) * 0.05))
	}
	want := append([]float32(nil), buf...)
	c.Process(buf)
	for i := range buf {
		if math.Abs(float64(buf[i]-want[i])) > 1e-5 {
			t.Fatalf("sample %d = %v, want %v", i, buf[i], want[i])
		}
	}
}

func TestRequestResetClearsDelayMemory(t *testing.T) {
	run := func(reset bool) float32 {
		c := NewChain(44100)
		c.SetEnabled(StageDelay, true)
		c.SetParam(DelayTime, 0) // 10ms
		c.SetParam(DelayFeedback, 0)
		c.SetParam(DelayMix, 1)
		c.Process([]float32{1, 1})
		if reset {
			c.RequestReset()
		}
		buf := make([]float32, 2*1000)
		c.Process(buf)
		var peak float32
		for _, v := range buf {
			peak = max(peak, v)
		}
		return peak
	}
	if got := run(false); got < 0.5 {
		t.Fatalf("expected echo without reset, peak=%v", got)
	}
	if got := run(true); got != 0 {
		t.Fatalf("echo survived reset, peak=%v", got)
	}
}

func TestProcessDoesNotAllocate(t *testing.T) {
	c := NewChain(44100)
	for s := Stage(0); s < NumStages; s++ {
		c.SetEnabled(s, true)
	}
	buf := make([]float32, 2*512)
	for i := range buf {
		buf[i] = 0.25
	}
	allocs := testing.AllocsPerRun(20, func() {
		c.SetParam(FilterCutoff, 0.3)
		c.Process(buf)
	})
	if allocs != 0 {
		t.Fatalf("Process allocated %v times per run", allocs)
	}
}

func TestEQCrossoverMovesBandEdge(t *testing.T) {
	// Low band muted: a 500 Hz tone survives a 60 Hz crossover and is mostly
	// removed by a 1 kHz one.
	level := func(crossover float32) float64 {
		c := NewChain(44100)
		c.SetEnabled(StageEQ, true)
		c.SetParam(EQLow, 0)
		c.SetParam(EQLowCrossover, crossover)
		buf := make([]float32, 2*4410)
		for i := 0; i < len(buf)/2; i++ {
			v := float32(math.Sin(2 * math.Pi * 500 * float64(i) / 44100))
			buf[2*i], buf[2*i+1] = v, v
		}
		c.Process(buf)
		var sum float64
		tail := buf[len(buf)/2:]
		for _, v := range tail {
			sum += float64(v) * float64(v)
		}
		return math.Sqrt(2 * sum / float64(len(tail)))
	}
	lo, hi := level(0), level(1)
	if lo < 0.9 {
		t.Fatalf("60 Hz crossover: level %v, want near 1", lo)
	}
	if hi > 0.6 {
		t.Fatalf("1 kHz crossover: level %v, want below 0.6", hi)
	}
}

func TestEQCrossoversFollowParams(t *testing.T) {
	tests := []struct {
		name       string
		low, high  float32
		wantLowHz  float64
		wantHighHz float64
	}{
		{"defaults", EQLowCrossover.Default(), EQHighCrossover.Default(), 300, 3000},
		{"extremes", 0, 1, 60, 12000},
		{"high pinned to low", 1, 0, 1000, 1000},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewChain(44100)
			c.SetEnabled(StageEQ, true)
			c.SetParam(EQLowCrossover, tt.low)
			c.SetParam(EQHighCrossover, tt.high)
			c.Process(make([]float32, 2))
			if math.Abs(float64(c.eq.lowHz)-tt.wantLowHz) > 0.01*tt.wantLowHz {
				t.Fatalf("low crossover = %v, want %v", c.eq.lowHz, tt.wantLowHz)
			}
			if math.Abs(float64(c.eq.highHz)-tt.wantHighHz) > 0.01*tt.wantHighHz {
				t.Fatalf("high crossover = %v, want %v", c.eq.highHz, tt.wantHighHz)
			}
		})
	}
}
