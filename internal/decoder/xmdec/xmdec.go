// Package xmdec adapts the quasilyte/xm FastTracker II player to
// decoder.Decoder.
package xmdec

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/quasilyte/xm"
	"github.com/quasilyte/xm/xmfile"

	"github.com/cbegin/trackperform/internal/decoder"
)

// SourceRate is the only output rate the xm stream supports.
const SourceRate = 44100

// minBPM is the slowest speed an XM module can request; it bounds the
// largest tick the stream will emit.
const minBPM = 32

// Decoder renders an XM module. The xm stream has no per-channel volume
// control, so the adapter does not implement decoder.ChannelVolumer.
//
// Repositioning never fast-forwards on the render thread. A seek swaps in a
// stream the seeker has already staged at the target; otherwise the decoder
// holds at the target and plays silence until one is ready.
type Decoder struct {
	module *xmfile.Module
	stream tickStream
	seek   *seeker

	ready    prepared // staged stream not yet needed
	hasReady bool
	pending  bool // waiting for a stream at target
	target   int  // song row

	tempo int
	bpm   float64
	clock songClock

	pcm []byte    // 16-bit LE stereo staging for stream reads
	src []float32 // decoded source frames, interleaved
	n   int       // frames held in src
	pos float64   // fractional read position in src
}

// Open parses XM data and prepares a looping stream positioned at order 0.
func Open(data []byte) (decoder.Decoder, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty input", decoder.ErrUnsupported)
	}
	m, err := xmfile.NewParser(xmfile.ParserConfig{}).ParseFromBytes(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", decoder.ErrUnsupported, err)
	}
	if m.SongLength <= 0 || len(m.PatternOrder) == 0 {
		return nil, fmt.Errorf("%w: module has no orders", decoder.ErrUnsupported)
	}
	streams := make([]tickStream, 1+spareStreams)
	for i := range streams {
		s := xm.NewStream()
		if err := s.LoadModule(m, xm.LoadModuleConfig{LinearInterpolation: true}); err != nil {
			return nil, fmt.Errorf("compile module: %w", err)
		}
		s.SetLooping(true)
		streams[i] = s
	}
	return newDecoder(m, streams), nil
}

// newDecoder plays streams[0] and hands the rest to the seeker. All streams
// must start at the song start.
func newDecoder(m *xmfile.Module, streams []tickStream) *Decoder {
	tempo := m.DefaultTempo
	if tempo <= 0 {
		tempo = 6
	}
	bpm := float64(m.DefaultBPM)
	if bpm <= 0 {
		bpm = 120
	}
	d := &Decoder{module: m, stream: streams[0], tempo: tempo, bpm: bpm}

	rows := make([]int, d.NumOrders())
	for i := range rows {
		rows[i] = d.NumRows(d.PatternAt(i))
	}
	d.clock = newSongClock(rows, samplesPerTick(bpm)*float64(tempo))

	// Reads only deliver whole ticks and need room for more than one.
	maxTick := bytesPerTick(minBPM)
	d.pcm = make([]byte, 4*maxTick+1)
	d.src = make([]float32, 2*(len(d.pcm)/4+2))

	d.seek = newSeeker(streams[1:], tempo*bytesPerTick(bpm), 4*maxTick+1)
	// Retrigger and loops at the song start are the most common seeks.
	d.seek.request(0)
	return d
}

// samplesPerTick matches the stream's own tick length for a given BPM.
func samplesPerTick(bpm float64) float64 {
	return math.Round(SourceRate / (bpm * 0.4))
}

func bytesPerTick(bpm float64) int {
	return int(samplesPerTick(bpm)) * 4
}

// Render resamples the stream to effectiveRate with linear interpolation.
func (d *Decoder) Render(effectiveRate float64, out []float32) int {
	frames := len(out) / 2
	if d.stream == nil {
		clear(out)
		return 0
	}
	d.collect()
	if d.pending {
		// The clock holds at the target until the stream arrives.
		clear(out)
		return frames
	}
	step := 1.0
	if effectiveRate > 0 {
		step = SourceRate / effectiveRate
	}
	for i := 0; i < frames; i++ {
		for int(d.pos)+1 >= d.n {
			d.refill()
		}
		j := int(d.pos)
		frac := float32(d.pos - float64(j))
		a, b := d.src[2*j:2*j+2], d.src[2*j+2:2*j+4]
		out[2*i] = a[0] + (b[0]-a[0])*frac
		out[2*i+1] = a[1] + (b[1]-a[1])*frac
		d.pos += step
	}
	d.clock.advance(float64(frames) * step)
	return frames
}

// refill keeps the current frame and appends the next stream read.
func (d *Decoder) refill() {
	base := int(d.pos)
	if base > d.n {
		base = d.n
	}
	copy(d.src, d.src[2*base:2*d.n])
	d.n -= base
	d.pos -= float64(base)

	written, _ := d.stream.Read(d.pcm)
	if written == 0 {
		// A tempo change past the staging size; emit a silent tick to make progress.
		written = min(bytesPerTick(d.bpm), len(d.pcm)-1)
		clear(d.pcm[:written])
	}
	for k := 0; k+3 < written && 2*d.n+1 < len(d.src); k += 4 {
		d.src[2*d.n] = float32(int16(binary.LittleEndian.Uint16(d.pcm[k:]))) / 32768
		d.src[2*d.n+1] = float32(int16(binary.LittleEndian.Uint16(d.pcm[k+2:]))) / 32768
		d.n++
	}
}

func (d *Decoder) Order() int {
	o, _ := d.clock.position()
	return o
}

func (d *Decoder) Pattern() int { return d.PatternAt(d.Order()) }

func (d *Decoder) Row() int {
	_, r := d.clock.position()
	return r
}

func (d *Decoder) NumChannels() int { return d.module.NumChannels }

func (d *Decoder) NumOrders() int {
	return min(d.module.SongLength, len(d.module.PatternOrder))
}

func (d *Decoder) PatternAt(order int) int {
	if order < 0 || order >= d.NumOrders() {
		return -1
	}
	return int(d.module.PatternOrder[order])
}

func (d *Decoder) NumRows(pattern int) int {
	if pattern < 0 || pattern >= len(d.module.Patterns) {
		return 0
	}
	return len(d.module.Patterns[pattern].Rows)
}

// EstimatedBPM assumes four rows per beat at the module's initial speed.
func (d *Decoder) EstimatedBPM() float64 {
	return d.bpm * 6 / float64(d.tempo)
}

// SetPosition moves the clock to (order, row) at once. The audio follows as
// soon as a stream staged at that row is available. Each seek also asks the
// seeker to stage the same row again, so a pattern loop that keeps returning
// to its start swaps without a gap after the first pass.
func (d *Decoder) SetPosition(order, row int) {
	if d.stream == nil || order < 0 || order >= d.NumOrders() {
		return
	}
	songRow := d.clock.seek(order, row)
	d.n, d.pos = 0, 0
	d.target = songRow
	d.pending = true
	d.collect()
	if d.pending && d.hasReady && d.ready.songRow == songRow {
		d.hasReady = false
		d.swap(d.ready.stream)
	}
	d.seek.request(songRow)
}

// collect takes a finished stream from the seeker, if any.
func (d *Decoder) collect() {
	p, ok := d.seek.poll()
	if !ok {
		return
	}
	if d.pending && p.songRow == d.target {
		d.swap(p.stream)
		d.seek.request(d.target)
		return
	}
	if d.hasReady {
		d.seek.recycle(d.ready.stream)
	}
	d.ready, d.hasReady = p, true
}

func (d *Decoder) swap(st tickStream) {
	d.seek.recycle(d.stream)
	d.stream = st
	d.pending = false
	d.n, d.pos = 0, 0
}

// Seeking reports whether the decoder is waiting for a staged stream.
func (d *Decoder) Seeking() bool { return d.pending }

func (d *Decoder) Close() error {
	if d.seek != nil {
		d.seek.close()
		d.seek = nil
	}
	d.stream = nil
	return nil
}
