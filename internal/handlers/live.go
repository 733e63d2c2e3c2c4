package handlers

import (
	"net/http"
	"time"

	"habitroom-backend/internal/live"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	liveWriteWait  = 10 * time.Second
	livePongWait   = 60 * time.Second
	livePingPeriod = (livePongWait * 9) / 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Authentication is the session token, not the origin.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// deadlineConn bounds every data write by liveWriteWait so a peer that
// stops reading fails its own writer instead of hanging it.
type deadlineConn struct {
	*websocket.Conn
}

func (c deadlineConn) WriteJSON(v interface{}) error {
	if err := c.SetWriteDeadline(time.Now().Add(liveWriteWait)); err != nil {
		return err
	}
	return c.Conn.WriteJSON(v)
}

type LiveHandler struct {
	hub    *live.Hub
	users  userFinder
	logger *zap.Logger
}

func NewLiveHandler(hub *live.Hub, users userFinder, logger *zap.Logger) *LiveHandler {
	return &LiveHandler{hub: hub, users: users, logger: logger}
}

// --- GET /rooms/{roomID}/live ---
// Upgrades to a WebSocket and pushes a LiveUpdate on connect and after
// every change to the room. Closing the socket unsubscribes.

func (h *LiveHandler) Subscribe(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}
	roomID := roomParam(r)
	if _, err := requireMember(r.Context(), h.users, userID, roomID); err != nil {
		writeMemberError(w, h.logger, err)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the HTTP error.
		h.logger.Debug("websocket upgrade", zap.Error(err))
		return
	}

	client := &live.Client{Conn: deadlineConn{conn}, RoomID: roomID, UserID: userID.Hex()}
	if err := h.hub.Register(r.Context(), client); err != nil {
		// Register has closed the socket.
		h.logger.Warn("register live client", zap.String("room_id", roomID), zap.Error(err))
		return
	}
	defer h.hub.Unregister(client)

	done := make(chan struct{})
	defer close(done)
	go h.keepAlive(conn, done)

	// Clients never send anything meaningful; reading surfaces closes and
	// processes pongs.
	conn.SetReadLimit(512)
	conn.SetReadDeadline(time.Now().Add(livePongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(livePongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *LiveHandler) keepAlive(conn *websocket.Conn, done <-chan struct{}) {
	ticker := time.NewTicker(livePingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(liveWriteWait)); err != nil {
				return
			}
		}
	}
}
