// Package relay implements the room hub that pairs two clients and forwards
// their signaling messages.
package relay

import (
	"context"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/BioHazard786/liteshare/internal/config"
	"github.com/BioHazard786/liteshare/internal/signaling"
)

type envelope struct {
	from *Client
	msg  *signaling.Message
}

// Hub manages all rooms and clients from a single goroutine.
type Hub struct {
	cfg config.RelayConfig
	log *zap.Logger

	rooms   map[string]*Room
	clients map[*Client]struct{}

	registerCh   chan *Client
	unregisterCh chan *Client
	inbound      chan envelope
	done         chan struct{}

	roomCount   atomic.Int64
	clientCount atomic.Int64
}

func NewHub(cfg config.RelayConfig, log *zap.Logger) *Hub {
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.MessagesPerSecond <= 0 {
		cfg.MessagesPerSecond = 50
	}
	if cfg.MessageBurst <= 0 {
		cfg.MessageBurst = 100
	}
	return &Hub{
		cfg:          cfg,
		log:          log,
		rooms:        make(map[string]*Room),
		clients:      make(map[*Client]struct{}),
		registerCh:   make(chan *Client),
		unregisterCh: make(chan *Client),
		inbound:      make(chan envelope),
		done:         make(chan struct{}),
	}
}

// Stats returns how many rooms and clients are live.
func (h *Hub) Stats() (rooms, clients int64) {
	return h.roomCount.Load(), h.clientCount.Load()
}

func (h *Hub) register(c *Client) bool {
	select {
	case h.registerCh <- c:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) unregister(c *Client) {
	select {
	case h.unregisterCh <- c:
	case <-h.done:
	}
}

func (h *Hub) dispatch(c *Client, msg *signaling.Message) bool {
	select {
	case h.inbound <- envelope{from: c, msg: msg}:
		return true
	case <-h.done:
		return false
	}
}

// Run is the single goroutine that owns rooms and clients. It returns when
// ctx is cancelled, closing every client.
func (h *Hub) Run(ctx context.Context) {
	defer h.shutdown()

	for {
		select {
		case <-ctx.Done():
			return

		case c := <-h.registerCh:
			h.clients[c] = struct{}{}
			h.clientCount.Store(int64(len(h.clients)))
			c.log.Debug("client registered")

		case c := <-h.unregisterCh:
			if _, ok := h.clients[c]; !ok {
				continue
			}
			h.leave(c)
			delete(h.clients, c)
			h.clientCount.Store(int64(len(h.clients)))
			close(c.send)
			c.log.Debug("client unregistered")

		case env := <-h.inbound:
			h.handle(env.from, env.msg)
		}
	}
}

func (h *Hub) shutdown() {
	close(h.done)
	for c := range h.clients {
		close(c.send)
		delete(h.clients, c)
	}
	h.rooms = make(map[string]*Room)
	h.roomCount.Store(0)
	h.clientCount.Store(0)
}

func (h *Hub) handle(c *Client, msg *signaling.Message) {
	switch msg.Type {
	case signaling.TypeJoin:
		h.join(c, msg)

	case signaling.TypeOffer, signaling.TypeAnswer, signaling.TypeICE:
		room, ok := h.rooms[c.roomID]
		if !ok {
			h.deliver(c, signaling.Error(signaling.ReasonNotJoined))
			return
		}
		peer := room.other(c)
		if peer == nil {
			c.log.Debug("no peer to relay to", zap.String("type", msg.Type), zap.String("room", room.ID))
			return
		}
		h.deliver(peer, &signaling.Message{Type: msg.Type, Payload: msg.Payload})

	default:
		c.log.Debug("unknown message type", zap.String("type", msg.Type))
	}
}

func (h *Hub) join(c *Client, msg *signaling.Message) {
	roomID := msg.RoomID
	var p signaling.JoinPayload
	if err := msg.DecodePayload(&p); err == nil && p.RoomID != "" {
		roomID = p.RoomID
	}

	if !signaling.ValidRoomID(roomID) {
		h.deliver(c, signaling.Error(signaling.ReasonInvalidRoom))
		return
	}
	if c.roomID == roomID {
		return
	}

	room, ok := h.rooms[roomID]
	if ok && room.full() {
		c.log.Info("room join rejected, room full", zap.String("room", roomID))
		h.deliver(c, signaling.Error(signaling.ReasonRoomFull))
		return
	}

	h.leave(c)

	if !ok {
		room = &Room{ID: roomID}
		h.rooms[roomID] = room
		h.roomCount.Store(int64(len(h.rooms)))
	}
	room.add(c)
	c.roomID = roomID
	c.log.Info("client joined room", zap.String("room", roomID), zap.Int("peers", len(room.Peers)))

	if peer := room.other(c); peer != nil {
		h.deliver(peer, &signaling.Message{Type: signaling.TypePeerJoined})
	}
}

// leave removes c from its room and tells the remaining peer.
func (h *Hub) leave(c *Client) {
	room, ok := h.rooms[c.roomID]
	c.roomID = ""
	if !ok || !room.remove(c) {
		return
	}

	if len(room.Peers) == 0 {
		delete(h.rooms, room.ID)
		h.roomCount.Store(int64(len(h.rooms)))
		h.log.Debug("room deleted", zap.String("room", room.ID))
		return
	}
	for _, peer := range room.Peers {
		h.deliver(peer, &signaling.Message{Type: signaling.TypePeerLeft})
	}
}

// deliver queues msg for c without blocking the hub.
func (h *Hub) deliver(c *Client, msg *signaling.Message) {
	select {
	case c.send <- msg:
	default:
		c.log.Warn("send buffer full, dropping message", zap.String("type", msg.Type))
	}
}
