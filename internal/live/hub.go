// Package live pushes fresh leaderboard snapshots to connected clients
// whenever a room's completions change.
package live

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"habitroom-backend/internal/metrics"
)

// Conn is the write side of a subscriber connection. Writes must give up
// on their own when the peer stops reading; the handlers package wraps
// *websocket.Conn with a write deadline for that.
type Conn interface {
	WriteJSON(v interface{}) error
	Close() error
}

// Client is one subscriber watching one room.
type Client struct {
	Conn   Conn
	RoomID string
	UserID string

	writeMu sync.Mutex
	// pending holds the newest payload not yet written. A slow client
	// skips straight to the latest snapshot.
	pending chan interface{}
	quit    chan struct{}
	stop    sync.Once
}

// SafeWriteJSON serialises writes; websocket connections allow only one
// concurrent writer.
func (c *Client) SafeWriteJSON(v interface{}) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.Conn.WriteJSON(v)
}

// offer queues v for the writer, replacing any payload still waiting.
func (c *Client) offer(v interface{}) {
	for {
		select {
		case c.pending <- v:
			return
		default:
		}
		select {
		case <-c.pending:
		default:
		}
	}
}

// RenderFunc produces the payload pushed to a room's subscribers.
type RenderFunc func(ctx context.Context, roomID string) (interface{}, error)

// Hub tracks subscribers per room. Every client has its own writer
// goroutine, so a peer that stops reading only delays itself.
type Hub struct {
	mu     sync.RWMutex
	rooms  map[string]map[*Client]struct{}
	render RenderFunc
	logger *zap.Logger
}

func NewHub(render RenderFunc, logger *zap.Logger) *Hub {
	return &Hub{
		rooms:  make(map[string]map[*Client]struct{}),
		render: render,
		logger: logger,
	}
}

// Register adds c, sends it the current snapshot and starts its writer.
// c is subscribed before the snapshot is rendered, so a change landing in
// between is queued rather than lost. On error c is unregistered and its
// connection closed.
func (h *Hub) Register(ctx context.Context, c *Client) error {
	c.pending = make(chan interface{}, 1)
	c.quit = make(chan struct{})

	h.mu.Lock()
	clients, ok := h.rooms[c.RoomID]
	if !ok {
		clients = make(map[*Client]struct{})
		h.rooms[c.RoomID] = clients
	}
	clients[c] = struct{}{}
	h.mu.Unlock()
	metrics.LiveSubscribers.Inc()

	payload, err := h.render(ctx, c.RoomID)
	if err != nil {
		h.Unregister(c)
		return err
	}
	if err := c.SafeWriteJSON(payload); err != nil {
		h.Unregister(c)
		return err
	}
	metrics.LivePushes.Inc()

	go h.writeLoop(c)
	h.logger.Debug("live client registered", zap.String("room_id", c.RoomID), zap.String("user_id", c.UserID))
	return nil
}

func (h *Hub) writeLoop(c *Client) {
	for {
		select {
		case <-c.quit:
			return
		case payload := <-c.pending:
			if err := c.SafeWriteJSON(payload); err != nil {
				h.logger.Debug("dropping live client", zap.String("room_id", c.RoomID), zap.Error(err))
				h.Unregister(c)
				return
			}
			metrics.LivePushes.Inc()
		}
	}
}

// Unregister removes c and closes its connection. Safe to call twice.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	clients, ok := h.rooms[c.RoomID]
	_, present := clients[c]
	if ok && present {
		delete(clients, c)
		if len(clients) == 0 {
			delete(h.rooms, c.RoomID)
		}
	}
	h.mu.Unlock()

	if present {
		metrics.LiveSubscribers.Dec()
		c.stop.Do(func() { close(c.quit) })
		_ = c.Conn.Close()
	}
}

// Subscribers returns how many clients watch roomID.
func (h *Hub) Subscribers(roomID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[roomID])
}

// Notify renders roomID once and queues it for every subscriber. It never
// waits on a connection.
func (h *Hub) Notify(ctx context.Context, roomID string) {
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.rooms[roomID]))
	for c := range h.rooms[roomID] {
		clients = append(clients, c)
	}
	h.mu.RUnlock()
	if len(clients) == 0 {
		return
	}

	payload, err := h.render(ctx, roomID)
	if err != nil {
		h.logger.Warn("render live snapshot", zap.String("room_id", roomID), zap.Error(err))
		return
	}
	for _, c := range clients {
		c.offer(payload)
	}
}

// Run feeds room-change events from b into Notify until ctx is done.
func (h *Hub) Run(ctx context.Context, b Broadcaster) error {
	return b.Run(ctx, h.Notify)
}

// Close drops every subscriber.
func (h *Hub) Close() {
	h.mu.RLock()
	var all []*Client
	for _, clients := range h.rooms {
		for c := range clients {
			all = append(all, c)
		}
	}
	h.mu.RUnlock()
	for _, c := range all {
		h.Unregister(c)
	}
}
