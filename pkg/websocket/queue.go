package websocket

import (
	"sync"

	"golang.org/x/exp/slices"
)

// priority classes for the outbound queue: control frames (ping/pong) are
// always inserted ahead of data frames, but behind any control frames
// already queued.
type priority int

const (
	priorityData priority = iota
	priorityControl
)

// queuedFrame is one entry in the outbound queue. done, if non-nil,
// receives the outcome of this frame: nil once it has been handed to the
// transport, or ErrFrameUnsent if it was dropped because a close frame was
// already sent.
type queuedFrame struct {
	frame    Frame
	priority priority
	done     chan<- error
}

// outboundQueue is the WriterTask's queue: one mutex paired with two
// condition variables guarding an ordered slice, so both producers
// (blocked on back-pressure) and the writer (blocked on an empty queue)
// can be woken independently.
type outboundQueue struct {
	mu            sync.Mutex
	notEmpty      *sync.Cond
	spaceAvail    *sync.Cond
	items         []queuedFrame
	maxDataFrames int // 0 = unbounded back-pressure bound
	stopRequested bool
	closeSent     bool
}

func newOutboundQueue(maxDataFrames int) *outboundQueue {
	q := &outboundQueue{maxDataFrames: maxDataFrames}
	q.notEmpty = sync.NewCond(&q.mu)
	q.spaceAvail = sync.NewCond(&q.mu)
	return q
}

// dataCount returns the number of data-priority frames currently queued.
// Caller must hold q.mu.
func (q *outboundQueue) dataCount() int {
	n := 0
	for _, it := range q.items {
		if it.priority == priorityData {
			n++
		}
	}
	return n
}

// Enqueue adds f to the queue. Ping/pong frames are spliced in ahead of
// any data frames, after the last already-queued control frame; a close
// frame is appended at the tail.
// Data frames observe the back-pressure bound: if maxDataFrames is set and
// already reached, Enqueue blocks until space frees up — unless the queue
// has already latched closeSent, in which case the frame is rejected with
// ErrFrameUnsent immediately.
func (q *outboundQueue) Enqueue(qf queuedFrame) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closeSent {
		return ErrFrameUnsent
	}

	if qf.priority == priorityData {
		for q.maxDataFrames > 0 && q.dataCount() >= q.maxDataFrames && !q.stopRequested && !q.closeSent {
			q.spaceAvail.Wait()
		}
		if q.closeSent {
			return ErrFrameUnsent
		}
		q.items = append(q.items, qf)
	} else if qf.frame.Opcode == OpClose {
		// A close frame keeps queue order behind earlier data frames; like
		// other control frames it is not subject to back-pressure.
		q.items = append(q.items, qf)
	} else {
		insertAt := 0
		for insertAt < len(q.items) && q.items[insertAt].priority == priorityControl {
			insertAt++
		}
		q.items = slices.Insert(q.items, insertAt, qf)
	}
	q.notEmpty.Signal()
	return nil
}

// Dequeue blocks until a frame is available or the queue is asked to
// stop, returning (frame, ok). ok is false only when stopRequested is set
// and the queue is empty.
func (q *outboundQueue) Dequeue() (queuedFrame, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for len(q.items) == 0 {
		if q.stopRequested {
			return queuedFrame{}, false
		}
		q.notEmpty.Wait()
	}
	qf := q.items[0]
	q.items = q.items[1:]
	q.spaceAvail.Signal()
	return qf, true
}

// Len reports the current queue length, for diagnostics/metrics.
func (q *outboundQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Drain removes and returns every remaining item, marking the queue
// stopped. Used when the writer exits so that any frames still queued can
// be notified as unsent.
func (q *outboundQueue) Drain() []queuedFrame {
	q.mu.Lock()
	defer q.mu.Unlock()
	items := q.items
	q.items = nil
	q.stopRequested = true
	q.notEmpty.Broadcast()
	q.spaceAvail.Broadcast()
	return items
}

// MarkCloseSent latches closeSent so that subsequent Enqueue calls are
// rejected, and wakes any blocked producers so they observe it promptly.
func (q *outboundQueue) MarkCloseSent() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closeSent = true
	q.spaceAvail.Broadcast()
}

// RequestStop wakes any goroutine blocked in Dequeue or Enqueue so it can
// observe stopRequested.
func (q *outboundQueue) RequestStop() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.stopRequested = true
	q.notEmpty.Broadcast()
	q.spaceAvail.Broadcast()
}
