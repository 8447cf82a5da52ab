package playback

// LoopMode identifies the active LoopState variant.
type LoopMode int

const (
	SongMode LoopMode = iota
	PatternLoop
	LoopTillRowMode
)

func (m LoopMode) String() string {
	switch m {
	case SongMode:
		return "song"
	case PatternLoop:
		return "pattern"
	case LoopTillRowMode:
		return "loop-till-row"
	}
	return "unknown"
}

// loopState holds the single active loop variant. Fields not used by the
// current mode are ignored.
type loopState struct {
	mode    LoopMode
	order   int
	pattern int

	// PatternLoop: a queued switch applied at the next loop boundary.
	pending      bool
	pendingOrder int

	// LoopTillRow
	targetRow int
}

// edge reports a tracked value only when it changes.
type edge struct {
	last  int
	valid bool
}

func (e *edge) changed(v int) bool {
	if e.valid && e.last == v {
		return false
	}
	e.last, e.valid = v, true
	return true
}

func (e *edge) reset() { e.valid = false }
