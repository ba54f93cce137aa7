package websocket

import "testing"

func TestListenerDispatchRecoversPanic(t *testing.T) {
	var recovered error
	l := &Listener{
		OnMessage: func(payload []byte, binary bool) { panic("boom") },
		OnCallbackError: func(err error) {
			recovered = err
		},
	}
	l.onMessage([]byte("x"), false)
	if recovered == nil {
		t.Fatal("OnCallbackError was not invoked after a panicking OnMessage")
	}
}

func TestListenerNilCallbacksAreNoOps(t *testing.T) {
	l := &Listener{}
	l.onMessage([]byte("x"), false)
	l.onPing([]byte("x"))
	l.onPong([]byte("x"))
	l.onClose(CloseNormal, "")
	l.onStateChange(StateOpen, StateClosing)
}

func TestListenerOnStateChangeInvoked(t *testing.T) {
	var from, to State
	l := &Listener{OnStateChange: func(f, s State) { from, to = f, s }}
	l.onStateChange(StateOpen, StateClosing)
	if from != StateOpen || to != StateClosing {
		t.Errorf("OnStateChange(%v, %v), want (%v, %v)", from, to, StateOpen, StateClosing)
	}
}
