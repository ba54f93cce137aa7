package websocket

import (
	"context"
	"crypto/sha1"
	"encoding/base64"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

type tcpDialer struct{}

func (tcpDialer) DialContext(ctx context.Context, host string) (net.Conn, error) {
	var d net.Dialer
	return d.DialContext(ctx, "tcp", host)
}

func expectedKeyForTest(r *http.Request) string {
	h := sha1.New()
	h.Write([]byte(r.Header.Get("Sec-WebSocket-Key")))
	h.Write([]byte(websocketGUID))
	return base64.StdEncoding.EncodeToString(h.Sum(nil))
}

func subTestHandshake(f func(http.ResponseWriter, *http.Request)) func(t *testing.T) {
	return func(t *testing.T) {
		ts := httptest.NewServer(http.HandlerFunc(f))
		defer ts.Close()

		rawurl := "ws://" + strings.TrimPrefix(ts.URL, "http://") + "/devtools/browser/01234567-89ab-cdef-0123-456789abcdef"
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_, _, _, _, err := performHandshake(ctx, tcpDialer{}, rawurl, DefaultOptions())
		if err == nil {
			t.Error("performHandshake() = nil error, want error")
		}
	}
}

func TestHandshakeExpectedErrors(t *testing.T) {
	t.Run("incorrect status code", subTestHandshake(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Add("Upgrade", "websocket")
		w.Header().Add("Connection", "Upgrade")
		w.Header().Add("Sec-WebSocket-Accept", expectedKeyForTest(r))
		w.WriteHeader(http.StatusOK)
	}))
	t.Run("incorrect upgrade header", subTestHandshake(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Add("Upgrade", "FOO")
		w.Header().Add("Connection", "Upgrade")
		w.Header().Add("Sec-WebSocket-Accept", expectedKeyForTest(r))
		w.WriteHeader(http.StatusSwitchingProtocols)
	}))
	t.Run("incorrect connection header", subTestHandshake(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Add("Upgrade", "websocket")
		w.Header().Add("Connection", "BAR")
		w.Header().Add("Sec-WebSocket-Accept", expectedKeyForTest(r))
		w.WriteHeader(http.StatusSwitchingProtocols)
	}))
	t.Run("incorrect accept header", subTestHandshake(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Add("Upgrade", "websocket")
		w.Header().Add("Connection", "Upgrade")
		w.Header().Add("Sec-WebSocket-Accept", "BAZ")
		w.WriteHeader(http.StatusSwitchingProtocols)
	}))
	t.Run("missing upgrade header", subTestHandshake(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Add("Connection", "Upgrade")
		w.Header().Add("Sec-WebSocket-Accept", expectedKeyForTest(r))
		w.WriteHeader(http.StatusSwitchingProtocols)
	}))
	t.Run("missing connection header", subTestHandshake(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Add("Upgrade", "websocket")
		w.Header().Add("Sec-WebSocket-Accept", expectedKeyForTest(r))
		w.WriteHeader(http.StatusSwitchingProtocols)
	}))
	t.Run("missing accept header", subTestHandshake(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Add("Upgrade", "websocket")
		w.Header().Add("Connection", "Upgrade")
		w.WriteHeader(http.StatusSwitchingProtocols)
	}))
}

func TestHandshakeSuccess(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Add("Upgrade", "websocket")
		w.Header().Add("Connection", "Upgrade")
		w.Header().Add("Sec-WebSocket-Accept", expectedKeyForTest(r))
		w.WriteHeader(http.StatusSwitchingProtocols)
	}))
	defer ts.Close()

	rawurl := "ws://" + strings.TrimPrefix(ts.URL, "http://") + "/devtools/browser/01234567-89ab-cdef-0123-456789abcdef"
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	conn, _, _, pmd, err := performHandshake(ctx, tcpDialer{}, rawurl, DefaultOptions())
	if err != nil {
		t.Fatalf("performHandshake(); unexpected error: %v", err)
	}
	defer conn.Close()
	if pmd != nil {
		t.Error("performHandshake(); expected nil PerMessageDeflate when permessage-deflate not requested")
	}
}

func TestHandshakeNegotiatesPermessageDeflate(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Add("Upgrade", "websocket")
		w.Header().Add("Connection", "Upgrade")
		w.Header().Add("Sec-WebSocket-Accept", expectedKeyForTest(r))
		w.Header().Add("Sec-WebSocket-Extensions", "permessage-deflate; server_no_context_takeover")
		w.WriteHeader(http.StatusSwitchingProtocols)
	}))
	defer ts.Close()

	rawurl := "ws://" + strings.TrimPrefix(ts.URL, "http://") + "/path"
	opts := NewOptions(WithPermessageDeflate(DefaultPMDParams(), -1))
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	conn, _, _, pmd, err := performHandshake(ctx, tcpDialer{}, rawurl, opts)
	if err != nil {
		t.Fatalf("performHandshake(); unexpected error: %v", err)
	}
	defer conn.Close()
	if pmd == nil {
		t.Fatal("performHandshake(); expected non-nil PerMessageDeflate")
	}
	if !pmd.params.ServerNoContextTakeover {
		t.Error("performHandshake(); expected ServerNoContextTakeover to be negotiated")
	}
}
