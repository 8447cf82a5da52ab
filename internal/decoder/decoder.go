package decoder

import "errors"

// ErrUnsupported is returned by an Opener for data it cannot decode.
var ErrUnsupported = errors.New("unsupported module format")

// Decoder is the module decoding and synthesis backend. Only the render
// context calls into it once a session owns it, so implementations need no
// locking.
type Decoder interface {
	// Render writes len(out)/2 interleaved stereo frames synthesized at
	// effectiveRate and returns the number of frames written.
	Render(effectiveRate float64, out []float32) int

	Order() int
	Pattern() int
	Row() int

	NumChannels() int
	NumOrders() int
	// PatternAt returns the pattern referenced by order, or -1.
	PatternAt(order int) int
	// NumRows returns the row count of pattern, or 0.
	NumRows(pattern int) int
	EstimatedBPM() float64

	// SetPosition repositions playback. Channel state set through
	// ChannelVolumer may be reset by the decoder.
	SetPosition(order, row int)

	Close() error
}

// ChannelVolumer is implemented by decoders that support a per-channel
// volume override. Mute, solo and channel volume depend on it.
type ChannelVolumer interface {
	SetChannelVolume(channel int, volume float64)
}

// Opener creates a Decoder from raw module bytes.
type Opener func(data []byte) (Decoder, error)
