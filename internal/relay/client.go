package relay

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/BioHazard786/liteshare/internal/signaling"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer. Enough for SDP.
	maxMessageSize = 64 * 1024

	sendBufferSize = 256
)

// Client is one WebSocket connection to the relay.
type Client struct {
	ID     string
	hub    *Hub
	conn   *websocket.Conn
	send   chan *signaling.Message
	limit  *rate.Limiter
	log    *zap.Logger
	roomID string
}

// NewClient wraps conn. The hub owns roomID; the pumps own conn.
func NewClient(hub *Hub, conn *websocket.Conn) *Client {
	id := uuid.NewString()
	return &Client{
		ID:    id,
		hub:   hub,
		conn:  conn,
		send:  make(chan *signaling.Message, sendBufferSize),
		limit: rate.NewLimiter(rate.Limit(hub.cfg.MessagesPerSecond), hub.cfg.MessageBurst),
		log:   hub.log.With(zap.String("client", id), zap.String("remote", conn.RemoteAddr().String())),
	}
}

// Serve registers the client and runs its pumps until the connection ends.
func (c *Client) Serve() {
	if !c.hub.register(c) {
		c.conn.Close()
		return
	}
	go c.writePump()
	c.readPump()
}

// readPump pumps messages from the websocket connection to the hub.
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		var msg signaling.Message
		if err := c.conn.ReadJSON(&msg); err != nil {
			if isDecodeError(err) {
				c.log.Debug("ignoring malformed message", zap.Error(err))
				continue
			}
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.log.Debug("read error", zap.Error(err))
			}
			return
		}

		if !c.limit.Allow() {
			c.log.Debug("rate limited, dropping message", zap.String("type", msg.Type))
			continue
		}

		if !c.hub.dispatch(c, &msg) {
			return
		}
	}
}

// writePump pumps messages from the hub to the websocket connection.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel.
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(message); err != nil {
				c.log.Debug("write error", zap.Error(err))
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// isDecodeError reports whether err came from a well-framed message that was
// not valid JSON for a Message.
func isDecodeError(err error) bool {
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	return errors.As(err, &syntaxErr) || errors.As(err, &typeErr)
}
