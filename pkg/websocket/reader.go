package websocket

import (
	"context"
	"errors"
	"io"
)

// readerTask is the connection's read-side worker: a blocking loop over
// ReadFrame, validating, reassembling, decompressing, and dispatching
// each inbound frame, and driving the close handshake's server-observed
// half.
type readerTask struct {
	conn      *ConnectionManager
	validator *FrameValidator

	fragments  []byte
	fragOpcode Opcode
	fragRsv1   bool
}

func (r *readerTask) run(ctx context.Context) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = &UnexpectedError{Task: "reader", Err: panicToError(rec)}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		f, readErr := ReadFrame(r.conn.reader, uint64(r.conn.opts.MaxFramePayload))
		if readErr != nil {
			return r.handleReadError(readErr)
		}

		r.conn.metrics.observeFrameRead(f.Opcode)

		if err := r.validator.Validate(f); err != nil {
			r.fail(err)
			return err
		}

		if f.Opcode.IsControl() {
			if err := r.dispatchControl(f); err != nil {
				if errors.Is(err, errNoMoreFrameSentinel) {
					return nil
				}
				return err
			}
			continue
		}

		if err := r.dispatchData(f); err != nil {
			r.fail(err)
			return err
		}
	}
}

func (r *readerTask) handleReadError(readErr error) error {
	var pe *ProtocolError
	if errors.As(readErr, &pe) && errors.Is(pe.Err, ErrNoMoreFrame) {
		// Clean EOF. If we're already closing, this is the expected end
		// of the transport; otherwise the peer vanished mid-stream.
		r.conn.mu.Lock()
		closing := r.conn.state == StateClosing
		tolerate := r.conn.opts.TolerateMissingCloseFrame
		r.conn.mu.Unlock()
		if closing || tolerate {
			return nil
		}
		r.fail(newFormatError("reader.run", CloseAbnormal, io.ErrUnexpectedEOF))
		return pe
	}
	r.fail(readErr)
	return readErr
}

func (r *readerTask) fail(err error) {
	code := CloseViolated
	var pe *ProtocolError
	if errors.As(err, &pe) {
		code = pe.Code
	}
	_ = r.conn.Close(code, "")
}

func (r *readerTask) dispatchControl(f Frame) error {
	switch f.Opcode {
	case OpPing:
		r.conn.listener.onPing(f.Payload)
		if err := r.conn.queue.Enqueue(queuedFrame{
			frame:    Frame{Fin: true, Opcode: OpPong, Payload: f.Payload},
			priority: priorityControl,
		}); err != nil && !errors.Is(err, ErrFrameUnsent) {
			return err
		}
	case OpPong:
		r.conn.listener.onPong(f.Payload)
	case OpClose:
		code, reason := decodeCloseFrame(f.Payload)
		r.conn.mu.Lock()
		r.conn.closeRecvd = true
		firstToClose := r.conn.initiator == InitiatorNone
		if firstToClose {
			r.conn.initiator = InitiatorServer
		}
		r.conn.mu.Unlock()

		if firstToClose {
			r.conn.setState(StateClosing)
			echo := code
			if echo == CloseNone {
				echo = CloseNormal
			}
			_ = r.conn.queue.Enqueue(queuedFrame{
				frame:    Frame{Fin: true, Opcode: OpClose, Payload: encodeCloseFrame(echo, "")},
				priority: priorityControl,
			})
			r.conn.armCloseGuard()
		}
		_ = reason
		return errNoMoreFrameSentinel
	}
	return nil
}

// errNoMoreFrameSentinel signals run's loop to stop after a close frame
// has been fully handled, without being surfaced as a task failure.
var errNoMoreFrameSentinel = errors.New("reader: close handshake observed")

func (r *readerTask) dispatchData(f Frame) error {
	switch f.Opcode {
	case OpText, OpBinary:
		if len(r.fragments) != 0 {
			return newFormatError("reader.dispatchData", CloseUnconformed, ErrContinuationNotClosed)
		}
		r.fragOpcode = f.Opcode
		r.fragRsv1 = f.Rsv1
		r.fragments = append(r.fragments[:0], f.Payload...)
	case OpContinuation:
		r.fragments = append(r.fragments, f.Payload...)
	default:
		return nil
	}

	if max := r.conn.opts.MaxMessagePayload; max > 0 && int64(len(r.fragments)) > max {
		r.fragments = nil
		return newOversizeError("reader.dispatchData", ErrInsufficientMemory)
	}

	if !f.Fin {
		return nil
	}

	payload := r.fragments
	r.fragments = nil

	if r.fragRsv1 {
		if r.conn.pmd == nil {
			return newFormatError("reader.dispatchData", CloseUnconformed, ErrUnexpectedReservedBit)
		}
		decoded, err := r.conn.pmd.Decompress(payload)
		if err != nil {
			return err
		}
		payload = decoded
		r.conn.metrics.decompressed.Inc()
	}

	r.conn.metrics.messagesIn.Inc()
	r.conn.listener.onMessage(payload, r.fragOpcode == OpBinary)
	return nil
}
