package audio

import (
	"encoding/binary"
	"math"
	"sync"
)

// DefaultBlockFrames is the render block size used when none is configured.
const DefaultBlockFrames = 512

// SampleSource renders interleaved stereo float32 samples into dst.
type SampleSource interface {
	Process(dst []float32)
}

// StreamReader adapts a SampleSource to the little-endian float32 byte stream
// ebiten's F32 players pull. The source is always asked for whole blocks of
// blockFrames frames, however the audio driver sizes its reads.
type StreamReader struct {
	mu          sync.Mutex
	source      SampleSource
	blockFrames int
	block       []float32
	off         int // next unread sample in block
}

func NewStreamReader(source SampleSource, blockFrames int) *StreamReader {
	if blockFrames <= 0 {
		blockFrames = DefaultBlockFrames
	}
	block := make([]float32, blockFrames*2)
	return &StreamReader{
		source:      source,
		blockFrames: blockFrames,
		block:       block,
		off:         len(block),
	}
}

func (r *StreamReader) BlockFrames() int { return r.blockFrames }

func (r *StreamReader) Read(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	need := (len(p) / 8) * 2
	n := 0
	for i := 0; i < need; i++ {
		if r.off == len(r.block) {
			r.source.Process(r.block)
			r.off = 0
		}
		binary.LittleEndian.PutUint32(p[n:], math.Float32bits(r.block[r.off]))
		r.off++
		n += 4
	}
	return n, nil
}

func (r *StreamReader) Close() error { return nil }
