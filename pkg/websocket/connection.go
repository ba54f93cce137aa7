package websocket

import (
	"bufio"
	"context"
	"log"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// State is a ConnectionManager's position in its lifecycle:
// CREATED -> CONNECTING -> OPEN -> CLOSING -> CLOSED.
type State int

const (
	StateCreated State = iota
	StateConnecting
	StateOpen
	StateClosing
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// CloseInitiator records which side latched the close handshake first,
// since the reader and writer tasks both need to agree on who is
// responsible for echoing vs. originating the close frame.
type CloseInitiator int

const (
	InitiatorNone CloseInitiator = iota
	InitiatorClient
	InitiatorServer
)

// Dialer abstracts the transport connection step so ConnectionManager does
// not depend on a concrete net.Dial or proxy implementation; see
// handshake.go for the default implementation, which wires
// golang.org/x/net/proxy for SOCKS5 traversal.
type Dialer interface {
	DialContext(ctx context.Context, url string) (net.Conn, error)
}

// ConnectionManager owns one client connection's lifecycle: the opening
// handshake, the reader and writer tasks, and the state machine that
// coordinates them. All mutable state is guarded by a single mutex,
// the same way a type with one guarded string field would protect it,
// just widened to the full state/initiator/closeSent/closeRecvd tuple.
type ConnectionManager struct {
	id      string
	dialer  Dialer
	url     string
	opts    Options
	log     *log.Logger
	metrics *connMetrics
	listener *Listener

	mu          sync.Mutex
	state       State
	initiator   CloseInitiator
	closeSent   bool
	closeRecvd  bool
	closeGuard  *time.Timer

	conn   net.Conn
	reader *bufio.Reader
	writer *bufio.Writer
	queue  *outboundQueue
	pmd    *PerMessageDeflate

	cancel context.CancelFunc
	group  *errgroup.Group
}

// NewConnectionManager constructs a manager in the CREATED state. It does
// not dial; call Connect to do that.
func NewConnectionManager(url string, dialer Dialer, opts Options, listener *Listener) *ConnectionManager {
	if listener == nil {
		listener = &Listener{}
	}
	return &ConnectionManager{
		id:       uuid.NewString(),
		dialer:   dialer,
		url:      url,
		opts:     opts,
		log:      newLogger(),
		metrics:  newConnMetrics(),
		listener: listener,
		queue:    newOutboundQueue(opts.MaxQueuedDataFrames),
	}
}

// ID returns the connection's stable identifier, used in log lines.
func (c *ConnectionManager) ID() string { return c.id }

// Metrics exposes the Prometheus registry backing this connection.
func (c *ConnectionManager) Metrics() *connMetrics { return c.metrics }

func (c *ConnectionManager) setState(s State) {
	c.mu.Lock()
	from := c.state
	c.state = s
	c.mu.Unlock()
	if from != s {
		c.metrics.observeStateChange(s)
		c.listener.onStateChange(from, s)
	}
}

func (c *ConnectionManager) getState() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Connect performs the opening handshake, then starts the reader and
// writer tasks. It returns once the handshake completes; OPEN is reached
// before Connect returns.
func (c *ConnectionManager) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.state != StateCreated {
		c.mu.Unlock()
		return ErrNotInCreatedState
	}
	c.mu.Unlock()
	c.setState(StateConnecting)

	conn, reader, writer, pmd, err := performHandshake(ctx, c.dialer, c.url, c.opts)
	if err != nil {
		c.setState(StateClosed)
		return err
	}

	c.mu.Lock()
	c.conn = conn
	c.reader = reader
	c.writer = writer
	c.pmd = pmd
	c.mu.Unlock()

	runCtx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	g, gctx := errgroup.WithContext(runCtx)
	c.group = g

	validator := NewFrameValidator(c.opts.ValidatorMode, c.pmd != nil)
	r := &readerTask{conn: c, validator: validator}
	w := &writerTask{conn: c}

	g.Go(func() error { return r.run(gctx) })
	g.Go(func() error { return w.run(gctx) })

	c.setState(StateOpen)
	c.log.Printf("connection %s open to %s", c.id, c.url)
	return nil
}

// Wait blocks until both tasks have exited, returning the first non-nil
// error either reported (context cancellation from a clean close does not
// count as an error).
func (c *ConnectionManager) Wait() error {
	if c.group == nil {
		return nil
	}
	err := c.group.Wait()
	c.setState(StateClosed)
	code, reason := c.finalCloseInfo()
	c.listener.onClose(code, reason)
	return err
}

// Send queues a text or binary message for transmission. It returns
// ErrFrameUnsent if a close frame has already been sent.
func (c *ConnectionManager) Send(payload []byte, binary bool) error {
	op := OpText
	if binary {
		op = OpBinary
	}
	rsv1 := false
	body := payload
	if c.pmd != nil {
		compressed, ok, err := c.pmd.Compress(payload)
		if err != nil {
			return err
		}
		if ok {
			body, rsv1 = compressed, true
		}
	}
	f := Frame{Fin: true, Rsv1: rsv1, Opcode: op, Payload: body}
	c.metrics.messagesOut.Inc()
	return c.queue.Enqueue(queuedFrame{frame: f, priority: priorityData})
}

// Ping queues a ping control frame.
func (c *ConnectionManager) Ping(payload []byte) error {
	return c.queue.Enqueue(queuedFrame{frame: Frame{Fin: true, Opcode: OpPing, Payload: payload}, priority: priorityControl})
}

// Close initiates the closing handshake from the client side: it queues a
// close frame (code/reason) and transitions to CLOSING. Idempotent.
func (c *ConnectionManager) Close(code CloseCode, reason string) error {
	c.mu.Lock()
	if c.initiator == InitiatorNone {
		c.initiator = InitiatorClient
	}
	alreadyClosing := c.state == StateClosing || c.state == StateClosed
	c.mu.Unlock()
	if alreadyClosing {
		return nil
	}
	c.setState(StateClosing)

	payload := encodeCloseFrame(code, reason)
	err := c.queue.Enqueue(queuedFrame{frame: Frame{Fin: true, Opcode: OpClose, Payload: payload}, priority: priorityControl})
	c.armCloseGuard()
	return err
}

// armCloseGuard starts (or restarts) the timer that forces the transport
// closed if the peer never completes the close handshake.
func (c *ConnectionManager) armCloseGuard() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closeGuard != nil {
		c.closeGuard.Stop()
	}
	c.closeGuard = time.AfterFunc(c.opts.CloseDelay, func() {
		c.mu.Lock()
		conn := c.conn
		c.mu.Unlock()
		if conn != nil {
			conn.Close()
		}
		if c.cancel != nil {
			c.cancel()
		}
	})
}

func (c *ConnectionManager) finalCloseInfo() (CloseCode, string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closeGuard != nil {
		c.closeGuard.Stop()
	}
	if !c.closeRecvd && !c.closeSent {
		return CloseAbnormal, ""
	}
	return CloseNormal, ""
}

func encodeCloseFrame(code CloseCode, reason string) []byte {
	if code == CloseNone {
		return nil
	}
	buf := make([]byte, 2+len(reason))
	buf[0] = byte(code >> 8)
	buf[1] = byte(code)
	copy(buf[2:], reason)
	return buf
}

func decodeCloseFrame(payload []byte) (CloseCode, string) {
	if len(payload) < 2 {
		return CloseNone, ""
	}
	code := CloseCode(uint16(payload[0])<<8 | uint16(payload[1]))
	return code, string(payload[2:])
}
