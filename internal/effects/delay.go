package effects

const maxDelayMs = 1000

// Delay implements a stereo feedback delay. The line is sized for the
// longest delay time up front, so changing the time never allocates.
type Delay struct {
	sampleRate float64
	bufL, bufR []float32
	pos        int
	samples    int
	feedback   float32
	wet        float32
}

// NewDelay creates a delay effect.
// delayMs: delay time in milliseconds, at most 1000
// feedback: feedback amount 0..0.95
// wet: wet/dry mix 0..1
func NewDelay(sampleRate int, delayMs float64, feedback, wet float32) *Delay {
	size := sampleRate*maxDelayMs/1000 + 1
	d := &Delay{
		sampleRate: float64(sampleRate),
		bufL:       make([]float32, size),
		bufR:       make([]float32, size),
	}
	d.set(delayMs, feedback, wet)
	return d
}

func (d *Delay) set(delayMs float64, feedback, wet float32) {
	n := int(delayMs * d.sampleRate / 1000.0)
	d.samples = min(max(n, 1), len(d.bufL)-1)
	d.feedback = clamp(feedback, 0, 0.95)
	d.wet = clamp(wet, 0, 1)
}

func (d *Delay) prepare(c *Chain) {
	d.set(float64(c.physical(DelayTime)), c.physical(DelayFeedback), c.physical(DelayMix))
}

func (d *Delay) Process(l, r float32) (float32, float32) {
	read := d.pos - d.samples
	if read < 0 {
		read += len(d.bufL)
	}
	delL := d.bufL[read]
	delR := d.bufR[read]
	d.bufL[d.pos] = l + delL*d.feedback
	d.bufR[d.pos] = r + delR*d.feedback
	d.pos++
	if d.pos >= len(d.bufL) {
		d.pos = 0
	}
	return l*(1-d.wet) + delL*d.wet, r*(1-d.wet) + delR*d.wet
}

func (d *Delay) Reset() {
	clear(d.bufL)
	clear(d.bufR)
	d.pos = 0
}
