package effects

import "math"

// Distortion implements tanh waveshaping with drive, output level and a
// one-pole tone filter.
type Distortion struct {
	sampleRate int
	preGain    float32
	postGain   float32
	tone       float32
	lpfAlpha   float32
	lpfL       float32
	lpfR       float32
}

// NewDistortion creates a distortion effect.
// drive: input gain (higher = more distortion)
// level: output gain
// tone: lowpass cutoff in Hz (0 = no filter)
func NewDistortion(sampleRate int, drive, level, tone float32) *Distortion {
	d := &Distortion{sampleRate: sampleRate}
	d.set(drive, level, tone)
	return d
}

func (d *Distortion) set(drive, level, tone float32) {
	d.preGain = drive
	d.postGain = level
	if tone == d.tone {
		return
	}
	d.tone = tone
	d.lpfAlpha = 0
	if tone > 0 && tone < float32(d.sampleRate)/2 {
		rc := 1.0 / (2.0 * math.Pi * float64(tone))
		dt := 1.0 / float64(d.sampleRate)
		d.lpfAlpha = float32(dt / (rc + dt))
	}
}

func (d *Distortion) prepare(c *Chain) {
	d.set(c.physical(DistortionDrive), c.physical(DistortionLevel), c.physical(DistortionTone))
}

func (d *Distortion) Process(l, r float32) (float32, float32) {
	l = float32(math.Tanh(float64(l*d.preGain))) * d.postGain
	r = float32(math.Tanh(float64(r*d.preGain))) * d.postGain
	if d.lpfAlpha > 0 {
		d.lpfL += d.lpfAlpha * (l - d.lpfL)
		d.lpfR += d.lpfAlpha * (r - d.lpfR)
		l = d.lpfL
		r = d.lpfR
	}
	return l, r
}

func (d *Distortion) Reset() {
	d.lpfL = 0
	d.lpfR = 0
}
