package playback

import "github.com/cbegin/trackperform/internal/decoder"

// mixer is the per-channel mute/solo/volume bookkeeping of a session.
// Decoders reset channel state on seek, so it is reapplied after every
// reposition.
type mixer struct {
	muted  []bool
	soloed []bool
	volume []float64
	out    decoder.ChannelVolumer // nil disables every operation
}

func newMixer(channels int, out decoder.ChannelVolumer) mixer {
	m := mixer{
		muted:  make([]bool, channels),
		soloed: make([]bool, channels),
		volume: make([]float64, channels),
		out:    out,
	}
	for i := range m.volume {
		m.volume[i] = 1
	}
	return m
}

func (m *mixer) enabled() bool { return m.out != nil }

func (m *mixer) valid(ch int) bool {
	return m.enabled() && ch >= 0 && ch < len(m.muted)
}

func (m *mixer) toggleMute(ch int) {
	if !m.valid(ch) {
		return
	}
	m.muted[ch] = !m.muted[ch]
	m.soloed[ch] = false
	m.applyChannel(ch)
}

func (m *mixer) toggleSolo(ch int) {
	if !m.valid(ch) {
		return
	}
	if m.soloed[ch] {
		for i := range m.muted {
			m.muted[i] = false
			m.soloed[i] = false
		}
	} else {
		for i := range m.muted {
			m.muted[i] = i != ch
			m.soloed[i] = i == ch
		}
	}
	m.apply()
}

func (m *mixer) setVolume(ch int, v float64) {
	if !m.valid(ch) {
		return
	}
	m.volume[ch] = clampFloat(v, 0, 1)
	m.applyChannel(ch)
}

func (m *mixer) setAllMuted(muted bool) {
	if !m.enabled() {
		return
	}
	for i := range m.muted {
		m.muted[i] = muted
		m.soloed[i] = false
	}
	m.apply()
}

func (m *mixer) apply() {
	if !m.enabled() {
		return
	}
	for i := range m.muted {
		m.applyChannel(i)
	}
}

func (m *mixer) applyChannel(ch int) {
	v := m.volume[ch]
	if m.muted[ch] {
		v = 0
	}
	m.out.SetChannelVolume(ch, v)
}

// muteMask packs the first 64 mute flags.
func (m *mixer) muteMask() uint64 {
	var mask uint64
	for i, muted := range m.muted {
		if muted && i < 64 {
			mask |= 1 << uint(i)
		}
	}
	return mask
}

func clampFloat(v, lo, hi float64) float64 {
	if v != v {
		return lo
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
