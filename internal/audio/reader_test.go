package audio

import (
	"encoding/binary"
	"math"
	"testing"
)

type countingSource struct {
	calls int
	sizes []int
	next  float32
}

func (s *countingSource) Process(dst []float32) {
	s.calls++
	s.sizes = append(s.sizes, len(dst))
	for i := range dst {
		dst[i] = s.next
		s.next++
	}
}

func TestStreamReaderRendersWholeBlocks(t *testing.T) {
	src := &countingSource{}
	r := NewStreamReader(src, 4)
	p := make([]byte, 8*3) // three frames, less than a block
	for i := 0; i < 3; i++ {
		n, err := r.Read(p)
		if err != nil || n != len(p) {
			t.Fatalf("read %d: n=%d err=%v", i, n, err)
		}
	}
	// 9 frames read from 4-frame blocks.
	if src.calls != 3 {
		t.Fatalf("source calls = %d, want 3", src.calls)
	}
	for _, sz := range src.sizes {
		if sz != 8 {
			t.Fatalf("block size = %d samples, want 8", sz)
		}
	}
}

func TestStreamReaderKeepsSampleOrder(t *testing.T) {
	src := &countingSource{}
	r := NewStreamReader(src, 3)
	p := make([]byte, 8*5)
	if _, err := r.Read(p); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 10; i++ {
		got := math.Float32frombits(binary.LittleEndian.Uint32(p[i*4:]))
		if got != float32(i) {
			t.Fatalf("sample %d = %v", i, got)
		}
	}
}

func TestStreamReaderIgnoresPartialFrames(t *testing.T) {
	r := NewStreamReader(&countingSource{}, 0)
	if r.BlockFrames() != DefaultBlockFrames {
		t.Fatalf("block frames = %d", r.BlockFrames())
	}
	n, err := r.Read(make([]byte, 7))
	if n != 0 || err != nil {
		t.Fatalf("n=%d err=%v", n, err)
	}
}
