package effects

import "math"

// Filter is a resonant lowpass state-variable filter (trapezoidal
// integration), one state pair per channel.
type Filter struct {
	sampleRate float32
	cutoff     float32
	q          float32
	a1, a2, a3 float32
	ic1, ic2   [2]float32
}

// NewFilter creates a lowpass filter. cutoff is in Hz, q is the resonance.
func NewFilter(sampleRate int, cutoff, q float32) *Filter {
	f := &Filter{sampleRate: float32(sampleRate)}
	f.set(cutoff, q)
	return f
}

func (f *Filter) set(cutoff, q float32) {
	if cutoff == f.cutoff && q == f.q {
		return
	}
	f.cutoff, f.q = cutoff, q
	// Keep the prewarped frequency below Nyquist.
	fc := clamp(cutoff, 1, f.sampleRate*0.49)
	g := math.Tan(math.Pi * float64(fc) / float64(f.sampleRate))
	k := 1.0 / float64(max(q, 0.01))
	a1 := 1.0 / (1.0 + g*(g+k))
	f.a1 = float32(a1)
	f.a2 = float32(g * a1)
	f.a3 = float32(g * g * a1)
}

func (f *Filter) prepare(c *Chain) {
	f.set(c.physical(FilterCutoff), c.physical(FilterResonance))
}

func (f *Filter) tick(ch int, x float32) float32 {
	v3 := x - f.ic2[ch]
	v1 := f.a1*f.ic1[ch] + f.a2*v3
	v2 := f.ic2[ch] + f.a2*f.ic1[ch] + f.a3*v3
	f.ic1[ch] = 2*v1 - f.ic1[ch]
	f.ic2[ch] = 2*v2 - f.ic2[ch]
	return v2
}

func (f *Filter) Process(l, r float32) (float32, float32) {
	return f.tick(0, l), f.tick(1, r)
}

func (f *Filter) Reset() {
	f.ic1 = [2]float32{}
	f.ic2 = [2]float32{}
}
