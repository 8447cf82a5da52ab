package effects

import "math"

// Compressor implements feed-forward dynamic range compression with a
// per-channel envelope follower.
type Compressor struct {
	sampleRate float64
	settings   [5]float32 // threshold dB, ratio, attack ms, release ms, makeup dB
	threshold  float32
	ratio      float32
	attack     float32 // coefficient
	release    float32 // coefficient
	makeup     float32
	envL       float32
	envR       float32
}

// NewCompressor creates a compressor effect.
// thresholdDB: threshold in dB (e.g., -20)
// ratio: compression ratio (e.g., 4 for 4:1)
// attackMs: attack time in ms
// releaseMs: release time in ms
// makeupDB: makeup gain in dB
func NewCompressor(sampleRate int, thresholdDB, ratio, attackMs, releaseMs, makeupDB float32) *Compressor {
	c := &Compressor{sampleRate: float64(sampleRate)}
	c.set(thresholdDB, ratio, attackMs, releaseMs, makeupDB)
	return c
}

func (c *Compressor) set(thresholdDB, ratio, attackMs, releaseMs, makeupDB float32) {
	s := [5]float32{thresholdDB, ratio, attackMs, releaseMs, makeupDB}
	if s == c.settings && c.ratio != 0 {
		return
	}
	c.settings = s
	c.threshold = float32(math.Pow(10, float64(thresholdDB)/20))
	c.ratio = max(ratio, 1)
	c.attack = float32(1.0 - math.Exp(-1.0/(float64(attackMs)*c.sampleRate/1000.0)))
	c.release = float32(1.0 - math.Exp(-1.0/(float64(releaseMs)*c.sampleRate/1000.0)))
	c.makeup = float32(math.Pow(10, float64(makeupDB)/20))
}

func (c *Compressor) prepare(ch *Chain) {
	c.set(ch.physical(CompressorThreshold), ch.physical(CompressorRatio),
		ch.physical(CompressorAttack), ch.physical(CompressorRelease), ch.physical(CompressorMakeup))
}

func (c *Compressor) Process(l, r float32) (float32, float32) {
	c.envL = c.follow(c.envL, float32(math.Abs(float64(l))))
	c.envR = c.follow(c.envR, float32(math.Abs(float64(r))))
	return l * c.computeGain(c.envL) * c.makeup, r * c.computeGain(c.envR) * c.makeup
}

func (c *Compressor) follow(env, in float32) float32 {
	if in > env {
		return env + c.attack*(in-env)
	}
	return env + c.release*(in-env)
}

func (c *Compressor) computeGain(env float32) float32 {
	if env <= c.threshold || c.threshold <= 0 {
		return 1.0
	}
	over := env / c.threshold
	return float32(math.Pow(float64(over), float64(1.0/c.ratio-1)))
}

func (c *Compressor) Reset() {
	c.envL = 0
	c.envR = 0
}
