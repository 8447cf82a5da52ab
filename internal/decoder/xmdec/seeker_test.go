package xmdec

import (
	"encoding/binary"
	"sync/atomic"
	"testing"
	"time"

	"github.com/quasilyte/xm/xmfile"
)

// fakeStream emits one constant tick per Read and counts ticks since the
// last Rewind. A non-nil gate holds Rewind until it is closed.
type fakeStream struct {
	ticks atomic.Int64
	gate  chan struct{}
}

const fakeTickBytes = 882 * 4 // 125 BPM

func (f *fakeStream) Rewind() {
	if f.gate != nil {
		<-f.gate
	}
	f.ticks.Store(0)
}

func (f *fakeStream) Read(b []byte) (int, error) {
	if len(b) <= fakeTickBytes {
		return 0, nil
	}
	for k := 0; k < fakeTickBytes; k += 2 {
		binary.LittleEndian.PutUint16(b[k:], 1000)
	}
	f.ticks.Add(1)
	return fakeTickBytes, nil
}

func testModule() *xmfile.Module {
	return &xmfile.Module{
		SongLength:   2,
		NumChannels:  4,
		DefaultTempo: 6,
		DefaultBPM:   125,
		PatternOrder: []uint8{0, 1},
		Patterns: []xmfile.Pattern{
			{Rows: make([]xmfile.PatternRow, 8)},
			{Rows: make([]xmfile.PatternRow, 8)},
		},
	}
}

func waitFor(t *testing.T, d *Decoder, what string, cond func() bool) {
	t.Helper()
	buf := make([]float32, 64)
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		d.Render(44100, buf)
		time.Sleep(time.Millisecond)
	}
}

func TestSetPositionReturnsBeforeStreamIsReady(t *testing.T) {
	gate := make(chan struct{})
	d := newDecoder(testModule(), []tickStream{
		&fakeStream{},
		&fakeStream{gate: gate},
		&fakeStream{gate: gate},
	})
	defer d.Close()

	d.SetPosition(1, 2)
	if !d.Seeking() {
		t.Fatalf("seek completed while the seeker was held")
	}
	if d.Order() != 1 || d.Row() != 2 {
		t.Fatalf("position = %d/%d, want 1/2", d.Order(), d.Row())
	}
	buf := make([]float32, 256)
	for i := range buf {
		buf[i] = 1
	}
	if n := d.Render(44100, buf); n != 128 {
		t.Fatalf("frames = %d, want 128", n)
	}
	for i, v := range buf {
		if v != 0 {
			t.Fatalf("sample %d = %v while seeking, want silence", i, v)
		}
	}
	if d.Order() != 1 || d.Row() != 2 {
		t.Fatalf("clock moved while seeking: %d/%d", d.Order(), d.Row())
	}

	close(gate)
	waitFor(t, d, "seek", func() bool { return !d.Seeking() })
	// Song row 10 at 6 ticks per row.
	if got := d.stream.(*fakeStream).ticks.Load(); got < 60 {
		t.Fatalf("swapped stream is %d ticks in, want at least 60", got)
	}
	d.Render(44100, buf)
	if buf[0] == 0 {
		t.Fatalf("no audio after seek")
	}
}

func TestRepeatedSeekSwapsStagedStream(t *testing.T) {
	d := newDecoder(testModule(), []tickStream{&fakeStream{}, &fakeStream{}, &fakeStream{}})
	defer d.Close()

	d.SetPosition(1, 0)
	waitFor(t, d, "first seek", func() bool { return !d.Seeking() })
	waitFor(t, d, "restage", func() bool { return d.hasReady && d.ready.songRow == 8 })

	d.SetPosition(1, 0)
	if d.Seeking() {
		t.Fatalf("second seek to the loop start did not swap immediately")
	}
	if d.Order() != 1 || d.Row() != 0 {
		t.Fatalf("position = %d/%d, want 1/0", d.Order(), d.Row())
	}
}

func TestCloseStopsSeeker(t *testing.T) {
	d := newDecoder(testModule(), []tickStream{&fakeStream{}, &fakeStream{}, &fakeStream{}})
	if err := d.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	d.SetPosition(1, 0)
	buf := make([]float32, 8)
	if n := d.Render(44100, buf); n != 0 {
		t.Fatalf("closed decoder rendered %d frames", n)
	}
}
