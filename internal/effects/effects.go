package effects

import (
	"math"
	"sync/atomic"
)

// Effector processes stereo audio in-place.
type Effector interface {
	Process(l, r float32) (float32, float32)
	Reset()
}

// stage is an Effector whose coefficients follow the chain's parameters.
type stage interface {
	Effector
	prepare(c *Chain)
}

// Settings is a plain copy of the chain's controls.
type Settings struct {
	Enabled [NumStages]bool
	Params  [NumParams]float32
}

// DefaultSettings has every stage disabled and every parameter at its
// default.
func DefaultSettings() Settings {
	var s Settings
	for p := Param(0); p < NumParams; p++ {
		s.Params[p] = p.Default()
	}
	return s
}

// Chain is the fixed five-stage post-render chain:
// distortion, filter, eq, compressor, delay.
//
// Enabled flags and normalized parameters are atomics written by the control
// context; Process snapshots them once per block, so the render side never
// waits and never allocates. Filter and delay memory is owned here and
// cleared through RequestReset.
type Chain struct {
	sampleRate int
	enabled    [NumStages]atomic.Bool
	params     [NumParams]atomic.Uint32 // float32 bit patterns
	resetReq   atomic.Bool

	distortion *Distortion
	filter     *Filter
	eq         *EQ3Band
	compressor *Compressor
	delay      *Delay
	stages     [NumStages]stage
}

func NewChain(sampleRate int) *Chain {
	def := DefaultSettings()
	p := func(id Param) float32 { return float32(id.Denormalize(def.Params[id])) }
	c := &Chain{
		sampleRate: sampleRate,
		distortion: NewDistortion(sampleRate, p(DistortionDrive), p(DistortionLevel), p(DistortionTone)),
		filter:     NewFilter(sampleRate, p(FilterCutoff), p(FilterResonance)),
		eq:         NewEQ3Band(sampleRate, p(EQLow), p(EQMid), p(EQHigh), p(EQLowCrossover), p(EQHighCrossover)),
		compressor: NewCompressor(sampleRate, p(CompressorThreshold), p(CompressorRatio),
			p(CompressorAttack), p(CompressorRelease), p(CompressorMakeup)),
		delay: NewDelay(sampleRate, float64(p(DelayTime)), p(DelayFeedback), p(DelayMix)),
	}
	c.stages = [NumStages]stage{c.distortion, c.filter, c.eq, c.compressor, c.delay}
	c.Apply(def)
	return c
}

func (c *Chain) SampleRate() int { return c.sampleRate }

func (c *Chain) SetEnabled(s Stage, on bool) {
	if s >= 0 && s < NumStages {
		c.enabled[s].Store(on)
	}
}

func (c *Chain) Enabled(s Stage) bool {
	if s >= 0 && s < NumStages {
		return c.enabled[s].Load()
	}
	return false
}

// Toggle flips a stage and returns its new state.
func (c *Chain) Toggle(s Stage) bool {
	if s < 0 || s >= NumStages {
		return false
	}
	for {
		old := c.enabled[s].Load()
		if c.enabled[s].CompareAndSwap(old, !old) {
			return !old
		}
	}
}

// SetParam stores a normalized value, clamped to [0,1].
func (c *Chain) SetParam(p Param, v float32) {
	if p.valid() {
		c.params[p].Store(math.Float32bits(Clamp01(v)))
	}
}

// Param returns the normalized value of p.
func (c *Chain) Param(p Param) float32 {
	if !p.valid() {
		return 0
	}
	return math.Float32frombits(c.params[p].Load())
}

// physical returns the denormalized value of p as seen by the DSP.
func (c *Chain) physical(p Param) float32 {
	return float32(p.Denormalize(c.Param(p)))
}

// Apply replaces every control at once.
func (c *Chain) Apply(s Settings) {
	for i := range s.Enabled {
		c.SetEnabled(Stage(i), s.Enabled[i])
	}
	for i := range s.Params {
		c.SetParam(Param(i), s.Params[i])
	}
}

func (c *Chain) Snapshot() Settings {
	var s Settings
	for i := range s.Enabled {
		s.Enabled[i] = c.Enabled(Stage(i))
	}
	for i := range s.Params {
		s.Params[i] = c.Param(Param(i))
	}
	return s
}

// RequestReset clears stage memory at the start of the next block.
func (c *Chain) RequestReset() {
	c.resetReq.Store(true)
}

// Reset clears stage memory immediately. Only the render context, or a
// caller that knows rendering is stopped, may use it.
func (c *Chain) Reset() {
	for _, s := range c.stages {
		s.Reset()
	}
}

// Process runs the enabled stages over interleaved stereo samples in place.
func (c *Chain) Process(buf []float32) {
	if c.resetReq.Swap(false) {
		c.Reset()
	}
	for i, s := range c.stages {
		if !c.enabled[i].Load() {
			continue
		}
		s.prepare(c)
		for j := 0; j+1 < len(buf); j += 2 {
			buf[j], buf[j+1] = s.Process(buf[j], buf[j+1])
		}
	}
}

func clamp(v, lo, hi float32) float32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
