package signaling

import (
	"context"
	"errors"
	"net"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/BioHazard786/liteshare/internal/dns"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
	sendQueueSize  = 64
)

// State is the lifecycle state of a Channel.
type State int32

const (
	StateConnecting State = iota
	StateOpen
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Channel is a duplex message channel to the relay. Handlers are registered
// before Connect; inbound messages are delivered in order from a single
// goroutine.
type Channel struct {
	endpoint string
	dialer   *websocket.Dialer
	log      *zap.Logger

	conn     *websocket.Conn
	state    atomic.Int32
	outgoing chan *Message
	done     chan struct{}

	closeOnce  sync.Once
	finishOnce sync.Once
	dropped    atomic.Uint64

	onMessage func(*Message)
	onClose   func(error)
}

// Option configures a Channel.
type Option func(*Channel)

// WithDialer replaces the WebSocket dialer.
func WithDialer(d *websocket.Dialer) Option {
	return func(c *Channel) { c.dialer = d }
}

// WithLogger sets the channel logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Channel) { c.log = l }
}

// NewChannel creates a channel for endpoint in the connecting state.
func NewChannel(endpoint string, opts ...Option) *Channel {
	c := &Channel{
		endpoint: endpoint,
		dialer:   defaultDialer(),
		log:      zap.NewNop(),
		outgoing: make(chan *Message, sendQueueSize),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.state.Store(int32(StateConnecting))
	return c
}

// defaultDialer resolves the relay host through the DNS fallback.
func defaultDialer() *websocket.Dialer {
	d := *websocket.DefaultDialer
	d.NetDialContext = func(ctx context.Context, network, addr string) (net.Conn, error) {
		host, port, err := net.SplitHostPort(addr)
		if err != nil {
			return nil, err
		}

		ip, err := dns.Lookup(ctx, host)
		if err != nil {
			return nil, err
		}

		var nd net.Dialer
		return nd.DialContext(ctx, network, net.JoinHostPort(ip, port))
	}
	return &d
}

// OnMessage registers the single consumer of inbound messages.
func (c *Channel) OnMessage(h func(*Message)) {
	c.onMessage = h
}

// OnClose registers the hook fired exactly once when the channel closes.
// err is nil for an orderly local close.
func (c *Channel) OnClose(h func(error)) {
	c.onClose = h
}

// State returns the current lifecycle state.
func (c *Channel) State() State {
	return State(c.state.Load())
}

// Dropped returns how many outbound messages were discarded.
func (c *Channel) Dropped() uint64 {
	return c.dropped.Load()
}

// Connect establishes the WebSocket connection to the relay.
func (c *Channel) Connect(ctx context.Context) error {
	if c.State() != StateConnecting {
		return &ConnectionError{Endpoint: redact(c.endpoint), Err: ErrClosed}
	}

	conn, resp, err := c.dialer.DialContext(ctx, c.endpoint, nil)
	if err != nil {
		cerr := &ConnectionError{Endpoint: redact(c.endpoint), Err: err}
		if resp != nil && errors.Is(err, websocket.ErrBadHandshake) {
			cerr.Status = resp.StatusCode
		}
		c.finish(cerr)
		return cerr
	}

	if !c.state.CompareAndSwap(int32(StateConnecting), int32(StateOpen)) {
		conn.Close()
		return &ConnectionError{Endpoint: redact(c.endpoint), Err: ErrClosed}
	}

	c.conn = conn
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	c.log.Debug("signaling channel open", zap.String("endpoint", redact(c.endpoint)))

	go c.readPump()
	go c.writePump()

	return nil
}

// Send enqueues a message. Messages sent while the channel is not open, or
// while the queue is full, are dropped.
func (c *Channel) Send(msg *Message) {
	if c.State() != StateOpen {
		c.drop(msg, ErrNotOpen)
		return
	}

	select {
	case c.outgoing <- msg:
	case <-c.done:
		c.drop(msg, ErrClosed)
	default:
		c.drop(msg, errors.New("send queue full"))
	}
}

func (c *Channel) drop(msg *Message, reason error) {
	c.dropped.Add(1)
	c.log.Debug("dropping outbound message", zap.String("type", msg.Type), zap.Error(reason))
}

// Close requests an orderly shutdown. It is safe to call more than once.
func (c *Channel) Close() error {
	prev := State(c.state.Swap(int32(StateClosed)))
	c.stopWriter()
	if prev == StateConnecting {
		// Never opened: no pumps will report the transition.
		c.finish(nil)
	}
	return nil
}

func (c *Channel) stopWriter() {
	c.closeOnce.Do(func() { close(c.done) })
}

// finish moves the channel to closed and fires OnClose once.
func (c *Channel) finish(err error) {
	c.finishOnce.Do(func() {
		c.state.Store(int32(StateClosed))
		if c.onClose != nil {
			c.onClose(err)
		}
	})
}

// readPump reads messages from the WebSocket connection.
func (c *Channel) readPump() {
	var readErr error
	defer func() {
		c.conn.Close()
		select {
		case <-c.done:
			readErr = nil
		default:
			c.stopWriter()
		}
		c.finish(readErr)
	}()

	c.conn.SetReadDeadline(time.Now().Add(pongWait))

	for {
		var msg Message
		if err := c.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				readErr = err
			}
			return
		}

		if c.onMessage != nil {
			c.onMessage(&msg)
		}
	}
}

// writePump writes messages to the WebSocket connection and sends periodic pings.
func (c *Channel) writePump() {
	ticker := time.NewTicker(pingPeriod)

	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message := <-c.outgoing:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(message); err != nil {
				c.log.Debug("write failed", zap.Error(err))
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

// redact strips the query so tokens never reach logs or error strings.
func redact(endpoint string) string {
	u, err := url.Parse(endpoint)
	if err != nil {
		return endpoint
	}
	u.RawQuery = ""
	return u.String()
}
