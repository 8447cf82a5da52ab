package playback

import "sync/atomic"

// QueueCapacity is the number of commands buffered between render calls.
const QueueCapacity = 8

const queueMask = QueueCapacity - 1

// Queue is a bounded lock-free command ring. Any number of goroutines may
// push; exactly one (the render context) pops. Each slot carries a sequence
// number that tells producers and the consumer whose turn it is.
type Queue struct {
	slots   [QueueCapacity]queueSlot
	head    atomic.Uint64 // next slot to pop
	tail    atomic.Uint64 // next slot to claim
	dropped atomic.Uint64
}

type queueSlot struct {
	seq atomic.Uint64
	cmd Command
}

func NewQueue() *Queue {
	q := &Queue{}
	for i := range q.slots {
		q.slots[i].seq.Store(uint64(i))
	}
	return q
}

// Push adds cmd without blocking. It reports false and counts a drop when
// the queue is full.
func (q *Queue) Push(cmd Command) bool {
	for {
		pos := q.tail.Load()
		slot := &q.slots[pos&queueMask]
		seq := slot.seq.Load()
		switch diff := int64(seq) - int64(pos); {
		case diff == 0:
			if q.tail.CompareAndSwap(pos, pos+1) {
				slot.cmd = cmd
				slot.seq.Store(pos + 1)
				return true
			}
		case diff < 0:
			q.dropped.Add(1)
			return false
		}
		// Another producer claimed pos first; retry with the new tail.
	}
}

// Pop removes the oldest command. Only the consumer may call it.
func (q *Queue) Pop() (Command, bool) {
	pos := q.head.Load()
	slot := &q.slots[pos&queueMask]
	if int64(slot.seq.Load())-int64(pos+1) < 0 {
		return Command{}, false
	}
	cmd := slot.cmd
	slot.seq.Store(pos + QueueCapacity)
	q.head.Store(pos + 1)
	return cmd, true
}

// Len is approximate while producers are active.
func (q *Queue) Len() int {
	return int(q.tail.Load() - q.head.Load())
}

// Dropped returns the number of commands rejected because the queue was full.
func (q *Queue) Dropped() uint64 {
	return q.dropped.Load()
}
