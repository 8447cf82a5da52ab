package effects

import "math"

// EQ3Band splits the signal with two one-pole low-passes. The low band is
// everything under the low crossover, the high band everything over the
// high crossover, and mid is the remainder, so unity gains sum back to the
// input.
type EQ3Band struct {
	sampleRate float64
	gain       [3]float32 // low, mid, high

	lowHz, highHz float32 // crossovers the coefficients were computed for
	lowCoef       float32
	highCoef      float32

	low, belowHigh [2]float32 // filter state per channel
}

// NewEQ3Band creates a 3-band EQ. Gains are linear (1 = unity); lowHz and
// highHz are the crossover frequencies.
func NewEQ3Band(sampleRate int, lowGain, midGain, highGain, lowHz, highHz float32) *EQ3Band {
	eq := &EQ3Band{sampleRate: float64(sampleRate)}
	eq.gain = [3]float32{lowGain, midGain, highGain}
	eq.setCrossovers(lowHz, highHz)
	return eq
}

// onePoleCoef returns the smoothing factor of an RC low-pass at hz.
func onePoleCoef(hz float32, sampleRate float64) float32 {
	nyquist := sampleRate / 2
	f := math.Min(float64(hz), nyquist*0.99)
	rc := 1 / (2 * math.Pi * f)
	dt := 1 / sampleRate
	return float32(dt / (rc + dt))
}

// setCrossovers recomputes coefficients only when a frequency moved. The
// high crossover never sits below the low one.
func (eq *EQ3Band) setCrossovers(lowHz, highHz float32) {
	highHz = max(highHz, lowHz)
	if lowHz == eq.lowHz && highHz == eq.highHz {
		return
	}
	eq.lowHz, eq.highHz = lowHz, highHz
	eq.lowCoef = onePoleCoef(lowHz, eq.sampleRate)
	eq.highCoef = onePoleCoef(highHz, eq.sampleRate)
}

func (eq *EQ3Band) prepare(c *Chain) {
	eq.gain = [3]float32{c.physical(EQLow), c.physical(EQMid), c.physical(EQHigh)}
	eq.setCrossovers(c.physical(EQLowCrossover), c.physical(EQHighCrossover))
}

func (eq *EQ3Band) band(ch int, x float32) float32 {
	eq.low[ch] += eq.lowCoef * (x - eq.low[ch])
	eq.belowHigh[ch] += eq.highCoef * (x - eq.belowHigh[ch])
	lo := eq.low[ch]
	hi := x - eq.belowHigh[ch]
	mid := x - lo - hi
	return lo*eq.gain[0] + mid*eq.gain[1] + hi*eq.gain[2]
}

func (eq *EQ3Band) Process(l, r float32) (float32, float32) {
	return eq.band(0, l), eq.band(1, r)
}

func (eq *EQ3Band) Reset() {
	eq.low = [2]float32{}
	eq.belowHigh = [2]float32{}
}
