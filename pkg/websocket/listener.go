package websocket

// Listener is the set of callbacks a caller registers to observe a
// connection: fixed typed fields rather than a string-keyed subscriber
// map, since this package has a small, closed set of event kinds and a
// map of subscriber lists would only add indirection. Any field left nil
// is simply not invoked.
type Listener struct {
	// OnMessage is called once per reassembled, decompressed message.
	// binary is true for OpBinary, false for OpText.
	OnMessage func(payload []byte, binary bool)

	// OnPing is called when a ping frame is received, just before the
	// automatic pong reply is queued.
	OnPing func(payload []byte)

	// OnPong is called when a pong frame is received.
	OnPong func(payload []byte)

	// OnClose is called by ConnectionManager.Wait, once per Wait call,
	// after both tasks have exited and the state is CLOSED. The code is
	// CloseNormal if a close frame was sent or received and CloseAbnormal
	// otherwise; the code and reason carried in the peer's close frame are
	// not passed through, and reason is always empty.
	OnClose func(code CloseCode, reason string)

	// OnStateChange is called on every ConnectionManager state
	// transition, after the state has already changed.
	OnStateChange func(from, to State)

	// OnCallbackError is invoked when one of the other callbacks panics;
	// if nil, such panics are recovered and discarded.
	OnCallbackError func(err error)
}

// dispatch recovers a panicking callback and routes it to
// OnCallbackError instead of letting it escape into ReaderTask or
// WriterTask's goroutine, which would otherwise take down the whole
// connection's errgroup.
func (l *Listener) dispatch(call func()) {
	if call == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			if l.OnCallbackError != nil {
				l.OnCallbackError(&UnexpectedError{Task: "listener", Err: panicToError(r)})
			}
		}
	}()
	call()
}

func (l *Listener) onMessage(payload []byte, binary bool) {
	l.dispatch(func() {
		if l.OnMessage != nil {
			l.OnMessage(payload, binary)
		}
	})
}

func (l *Listener) onPing(payload []byte) {
	l.dispatch(func() {
		if l.OnPing != nil {
			l.OnPing(payload)
		}
	})
}

func (l *Listener) onPong(payload []byte) {
	l.dispatch(func() {
		if l.OnPong != nil {
			l.OnPong(payload)
		}
	})
}

func (l *Listener) onClose(code CloseCode, reason string) {
	l.dispatch(func() {
		if l.OnClose != nil {
			l.OnClose(code, reason)
		}
	})
}

func (l *Listener) onStateChange(from, to State) {
	l.dispatch(func() {
		if l.OnStateChange != nil {
			l.OnStateChange(from, to)
		}
	})
}
