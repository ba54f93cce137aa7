package websocket

import (
	"context"
	"time"
)

// writerTask is the connection's write-side worker: dequeue in priority
// order, write each frame, and flush according to the configured policy.
type writerTask struct {
	conn *ConnectionManager

	lastFlush time.Time
}

// run pumps outboundQueue.Dequeue (a blocking call that cannot itself
// appear in a select) through a channel so the loop can also wake on the
// flush-interval ticker and on cancellation. A frame written but not
// immediately flushed (AutoFlush off, not a control frame, FlushThreshold
// not yet elapsed) leaves pending set; the ticker then flushes it once the
// queue has gone idle instead of leaving it buffered indefinitely.
func (w *writerTask) run(ctx context.Context) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = &UnexpectedError{Task: "writer", Err: panicToError(rec)}
		}
	}()

	w.lastFlush = time.Now()
	ticker := time.NewTicker(w.flushInterval())
	defer ticker.Stop()

	done := make(chan struct{})
	go func() {
		<-ctx.Done()
		w.conn.queue.RequestStop()
		close(done)
	}()

	frames := make(chan queuedFrame)
	dequeueErr := make(chan struct{})
	go func() {
		defer close(dequeueErr)
		for {
			qf, ok := w.conn.queue.Dequeue()
			if !ok {
				return
			}
			select {
			case frames <- qf:
			case <-done:
				return
			}
		}
	}()

	var pending bool

	for {
		select {
		case qf, ok := <-frames:
			if !ok {
				w.finalFlush()
				return nil
			}
			closeSent, werr := w.writeOne(qf)
			if werr != nil {
				return werr
			}
			if closeSent {
				w.drainUnsent()
				return nil
			}
			pending = !w.shouldFlush(qf, closeSent)
			if !pending {
				w.lastFlush = time.Now()
			}

		case <-ticker.C:
			if pending && w.conn.queue.Len() == 0 {
				if flushErr := w.conn.writer.Flush(); flushErr != nil {
					return newIOError("writer.run", flushErr)
				}
				w.lastFlush = time.Now()
				pending = false
			}

		case <-dequeueErr:
			w.finalFlush()
			return nil

		case <-done:
			w.finalFlush()
			return nil
		}
	}
}

// writeOne writes qf's frame, flushing immediately when shouldFlush
// requires it, and reports whether a close frame was just sent.
func (w *writerTask) writeOne(qf queuedFrame) (closeSent bool, err error) {
	w.conn.metrics.queueDepth.Set(float64(w.conn.queue.Len()))

	if writeErr := WriteFrame(w.conn.writer, qf.frame); writeErr != nil {
		if qf.done != nil {
			qf.done <- writeErr
		}
		return false, writeErr
	}
	if qf.done != nil {
		qf.done <- nil
	}

	w.conn.metrics.observeFrameWritten(qf.frame.Opcode)

	closeSent = qf.frame.Opcode == OpClose
	if closeSent {
		w.conn.mu.Lock()
		w.conn.closeSent = true
		w.conn.mu.Unlock()
		w.conn.queue.MarkCloseSent()
	}

	if w.shouldFlush(qf, closeSent) {
		if flushErr := w.conn.writer.Flush(); flushErr != nil {
			return closeSent, newIOError("writer.run", flushErr)
		}
		w.lastFlush = time.Now()
	}

	return closeSent, nil
}

func (w *writerTask) flushInterval() time.Duration {
	if w.conn.opts.FlushThreshold <= 0 {
		return time.Second
	}
	return w.conn.opts.FlushThreshold
}

// shouldFlush implements the flush policy: always after a control frame,
// always when AutoFlush is set, and otherwise only once FlushThreshold
// has elapsed since the last flush. When none of those hold, the caller
// leaves the write pending for the ticker to flush once the queue drains.
func (w *writerTask) shouldFlush(qf queuedFrame, closeSent bool) bool {
	if closeSent || qf.priority == priorityControl {
		return true
	}
	if w.conn.opts.AutoFlush {
		return true
	}
	return time.Since(w.lastFlush) >= w.flushInterval()
}

func (w *writerTask) finalFlush() {
	_ = w.conn.writer.Flush()
}

// drainUnsent notifies every frame still queued, after the close frame
// has gone out, that it will never be sent.
func (w *writerTask) drainUnsent() {
	_ = w.conn.writer.Flush()
	for _, qf := range w.conn.queue.Drain() {
		if qf.done != nil {
			qf.done <- ErrFrameUnsent
		}
	}
}
