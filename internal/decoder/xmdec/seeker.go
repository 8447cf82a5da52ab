package xmdec

// spareStreams is how many streams the seeker can prepare besides the one
// playing. One holds the staged loop target, one is in flight.
const spareStreams = 2

// tickStream is the part of xm.Stream the adapter drives.
type tickStream interface {
	Read(b []byte) (int, error)
	Rewind()
}

type prepared struct {
	stream  tickStream
	songRow int
}

// seeker positions spare streams on its own goroutine. The stream cannot
// seek, so reaching a row means rewinding and rendering every tick before
// it; the render thread only ever swaps a finished stream in.
//
// Streams change hands through channels, so each is used by one goroutine
// at a time.
type seeker struct {
	requests chan int      // song row; a newer request replaces an unstarted one
	results  chan prepared // at most one unclaimed result
	spare    chan tickStream
	done     chan struct{}

	bytesPerRow int
	scratch     []byte
}

func newSeeker(spares []tickStream, bytesPerRow, scratchSize int) *seeker {
	k := &seeker{
		requests:    make(chan int, 1),
		results:     make(chan prepared, 1),
		spare:       make(chan tickStream, len(spares)+1),
		done:        make(chan struct{}),
		bytesPerRow: bytesPerRow,
		scratch:     make([]byte, scratchSize),
	}
	for _, s := range spares {
		k.spare <- s
	}
	go k.run()
	return k
}

func (k *seeker) run() {
	for {
		var songRow int
		select {
		case <-k.done:
			return
		case songRow = <-k.requests:
		}
		var st tickStream
		select {
		case <-k.done:
			return
		case st = <-k.spare:
		}
		k.fastForward(st, songRow*k.bytesPerRow)
		k.deliver(prepared{stream: st, songRow: songRow})
	}
}

func (k *seeker) fastForward(st tickStream, skip int) {
	st.Rewind()
	for skip > 0 {
		n := min(skip+1, len(k.scratch))
		written, _ := st.Read(k.scratch[:n])
		if written == 0 {
			return
		}
		skip -= written
	}
}

// deliver publishes p, recycling an older result nobody claimed.
func (k *seeker) deliver(p prepared) {
	for {
		select {
		case k.results <- p:
			return
		default:
		}
		select {
		case old := <-k.results:
			k.recycle(old.stream)
		default:
		}
	}
}

// request asks for a stream positioned at songRow. It never blocks.
func (k *seeker) request(songRow int) {
	select {
	case <-k.requests:
	default:
	}
	select {
	case k.requests <- songRow:
	default:
	}
}

// poll returns a finished stream, if one is waiting. It never blocks.
func (k *seeker) poll() (prepared, bool) {
	select {
	case p := <-k.results:
		return p, true
	default:
		return prepared{}, false
	}
}

// recycle hands a stream back to the worker. The spare channel has room for
// every stream, so this never blocks.
func (k *seeker) recycle(st tickStream) {
	select {
	case k.spare <- st:
	default:
	}
}

func (k *seeker) close() {
	close(k.done)
}
