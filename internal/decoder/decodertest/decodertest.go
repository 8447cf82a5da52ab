// Package decodertest provides a deterministic in-memory decoder.Decoder
// for exercising playback logic without real module data.
package decodertest

import (
	"github.com/cbegin/trackperform/internal/decoder"
)

// Config describes the song layout of a fake module.
type Config struct {
	Channels int
	// Orders lists the pattern played at each order.
	Orders []int
	// Rows lists the row count of each pattern.
	Rows []int
	// FramesPerRow is the row length in frames at SampleRate.
	FramesPerRow int
	SampleRate   float64
	BPM          float64
}

// Decoder advances one row every FramesPerRow nominal frames and wraps to
// order 0 after the last order. Its output level is the mean channel volume,
// which makes mute state observable in rendered audio.
type Decoder struct {
	cfg Config

	order int
	row   int
	acc   float64

	volumes []float64

	// SetPositions records every SetPosition call.
	SetPositions [][2]int
	// LastRate is the effective rate of the most recent Render.
	LastRate float64
	Renders  int
	Closed   bool
}

// New returns a decoder positioned at order 0, row 0.
func New(cfg Config) *Decoder {
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = 44100
	}
	if cfg.FramesPerRow <= 0 {
		cfg.FramesPerRow = 64
	}
	if cfg.BPM <= 0 {
		cfg.BPM = 125
	}
	d := &Decoder{cfg: cfg, volumes: make([]float64, cfg.Channels)}
	for i := range d.volumes {
		d.volumes[i] = 1
	}
	return d
}

// Simple returns a decoder with the given number of channels and orders,
// all orders alternating over patterns of rowsPerPattern rows.
func Simple(channels, patterns, orders, rowsPerPattern, framesPerRow int) *Decoder {
	cfg := Config{Channels: channels, FramesPerRow: framesPerRow}
	for i := 0; i < patterns; i++ {
		cfg.Rows = append(cfg.Rows, rowsPerPattern)
	}
	for i := 0; i < orders; i++ {
		cfg.Orders = append(cfg.Orders, i%patterns)
	}
	return New(cfg)
}

func (d *Decoder) Render(effectiveRate float64, out []float32) int {
	d.LastRate = effectiveRate
	d.Renders++
	frames := len(out) / 2
	step := 1.0
	if effectiveRate > 0 {
		step = d.cfg.SampleRate / effectiveRate
	}
	level := float32(d.level() * 0.5)
	for i := 0; i < frames; i++ {
		out[2*i] = level
		out[2*i+1] = level
		d.acc += step
		for d.acc >= float64(d.cfg.FramesPerRow) {
			d.acc -= float64(d.cfg.FramesPerRow)
			d.advanceRow()
		}
	}
	return frames
}

func (d *Decoder) level() float64 {
	if len(d.volumes) == 0 {
		return 1
	}
	var sum float64
	for _, v := range d.volumes {
		sum += v
	}
	return sum / float64(len(d.volumes))
}

func (d *Decoder) advanceRow() {
	d.row++
	if d.row < d.NumRows(d.Pattern()) {
		return
	}
	d.row = 0
	d.order++
	if d.order >= len(d.cfg.Orders) {
		d.order = 0
	}
}

func (d *Decoder) Order() int   { return d.order }
func (d *Decoder) Pattern() int { return d.PatternAt(d.order) }
func (d *Decoder) Row() int     { return d.row }

func (d *Decoder) NumChannels() int { return d.cfg.Channels }
func (d *Decoder) NumOrders() int   { return len(d.cfg.Orders) }

func (d *Decoder) PatternAt(order int) int {
	if order < 0 || order >= len(d.cfg.Orders) {
		return -1
	}
	return d.cfg.Orders[order]
}

func (d *Decoder) NumRows(pattern int) int {
	if pattern < 0 || pattern >= len(d.cfg.Rows) {
		return 0
	}
	return d.cfg.Rows[pattern]
}

func (d *Decoder) EstimatedBPM() float64 { return d.cfg.BPM }

// SetPosition mimics real decoders by resetting channel volumes on seek.
func (d *Decoder) SetPosition(order, row int) {
	d.SetPositions = append(d.SetPositions, [2]int{order, row})
	if order < 0 || order >= len(d.cfg.Orders) {
		return
	}
	if row < 0 {
		row = 0
	}
	if n := d.NumRows(d.PatternAt(order)); row >= n {
		row = n - 1
	}
	d.order, d.row, d.acc = order, row, 0
	for i := range d.volumes {
		d.volumes[i] = 1
	}
}

func (d *Decoder) Close() error {
	d.Closed = true
	return nil
}

func (d *Decoder) SetChannelVolume(channel int, volume float64) {
	if channel >= 0 && channel < len(d.volumes) {
		d.volumes[channel] = volume
	}
}

// ChannelVolume returns the volume last applied to channel.
func (d *Decoder) ChannelVolume(channel int) float64 {
	if channel >= 0 && channel < len(d.volumes) {
		return d.volumes[channel]
	}
	return 0
}

// WithoutChannelVolume hides the ChannelVolumer capability.
func (d *Decoder) WithoutChannelVolume() decoder.Decoder {
	return plain{d}
}

type plain struct{ d *Decoder }

func (p plain) Render(rate float64, out []float32) int { return p.d.Render(rate, out) }
func (p plain) Order() int                               { return p.d.Order() }
func (p plain) Pattern() int                             { return p.d.Pattern() }
func (p plain) Row() int                                 { return p.d.Row() }
func (p plain) NumChannels() int                         { return p.d.NumChannels() }
func (p plain) NumOrders() int                           { return p.d.NumOrders() }
func (p plain) PatternAt(order int) int                  { return p.d.PatternAt(order) }
func (p plain) NumRows(pattern int) int                  { return p.d.NumRows(pattern) }
func (p plain) EstimatedBPM() float64                    { return p.d.EstimatedBPM() }
func (p plain) SetPosition(order, row int)               { p.d.SetPosition(order, row) }
func (p plain) Close() error                             { return p.d.Close() }

// Opener returns an Opener that hands out dec regardless of input.
func Opener(dec decoder.Decoder) decoder.Opener {
	return func([]byte) (decoder.Decoder, error) {
		return dec, nil
	}
}

// FailingOpener returns an Opener that always fails with err.
func FailingOpener(err error) decoder.Opener {
	return func([]byte) (decoder.Decoder, error) {
		return nil, err
	}
}
