package hub

import (
	"chatapp-backend/internal/database"
	"chatapp-backend/internal/metrics"
	"chatapp-backend/internal/models"
	"chatapp-backend/internal/permissions"
	"chatapp-backend/internal/rooms"
	"context"
	"maps"
	"net/http"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
	sendBuffer     = 256
	eventTimeout   = 10 * time.Second
	presenceShards = 64
)

// Store is the part of the durable store the hub reads and writes
type Store interface {
	permissions.MembershipSource
	UsersByIDs(ctx context.Context, userIDs []int64) (map[int64]models.User, error)
	SetUserStatus(ctx context.Context, userID int64, status string) error
	ChannelByID(ctx context.Context, channelID int64) (models.Channel, error)
	CreateMessage(ctx context.Context, channelID int64, userID int64, content string, attachments []database.AttachmentInput) (models.Message, error)
}

// Client is one websocket connection. A user may have several.
type Client struct {
	ID     uint64
	UserID int64
	hub    *Hub
	conn   *websocket.Conn
	send   chan []byte

	mutex  sync.Mutex
	closed bool

	// guarded by hub.mutex
	rooms          map[string]struct{}
	currentChannel int64
}

type handlerFunc func(ctx context.Context, c *Client, data json.RawMessage) error

type Hub struct {
	store    Store
	registry *rooms.Registry
	gate     *permissions.Gate
	sugar    *zap.SugaredLogger
	upgrader websocket.Upgrader
	handlers map[string]handlerFunc

	mutex   sync.Mutex
	clients map[int64]map[*Client]struct{}
	lastID  atomic.Uint64

	// users whose last written status is online, guarded by mutex
	announced map[int64]struct{}

	// one user's status writes never overlap, so the last write matches the connection count
	presence [presenceShards]sync.Mutex
}

func New(store Store, registry *rooms.Registry, gate *permissions.Gate, sugar *zap.SugaredLogger) *Hub {
	h := &Hub{
		store:    store,
		registry: registry,
		gate:     gate,
		sugar:    sugar,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
		},
		clients:   make(map[int64]map[*Client]struct{}),
		announced: make(map[int64]struct{}),
	}

	h.handlers = map[string]handlerFunc{
		EventJoinServer:   h.joinServer,
		EventLeaveServer:  h.leaveServer,
		EventJoinChannel:  h.joinChannel,
		EventLeaveChannel: h.leaveChannel,
		EventMessage:      h.message,
		EventJoinVoice:    h.joinVoice,
		EventLeaveVoice:   h.leaveVoice,
		EventJoinVideo:    h.joinVideo,
		EventLeaveVideo:   h.leaveVideo,
		EventCallUser:     h.relay(EventCallUser),
		EventCallAccepted: h.relay(EventCallAccepted),
		EventIceCandidate: h.relay(EventIceCandidate),
		EventEndCall:      h.relay(CallEnded),
	}
	return h
}

// CheckOrigin replaces the upgrader's same origin check, used when cors is enabled
func (h *Hub) CheckOrigin(check func(r *http.Request) bool) {
	h.upgrader.CheckOrigin = check
}

// ServeWS upgrades the request and blocks until the connection is gone.
// userID has already been resolved by the auth middleware.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, userID int64) {
	h.sugar.Debugf("Connecting user ID [%d] to WebSocket", userID)

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// upgrader already replied with an http error
		h.sugar.Debug(err)
		return
	}

	// the request context ends with the handler, events outlive it
	ctx := context.WithoutCancel(r.Context())

	c := h.newClient(userID, conn)
	h.connect(ctx, c)

	go c.writePump()
	c.readPump(ctx)

	h.disconnect(ctx, c)
}

func (h *Hub) newClient(userID int64, conn *websocket.Conn) *Client {
	return &Client{
		ID:     h.lastID.Add(1),
		UserID: userID,
		hub:    h,
		conn:   conn,
		send:   make(chan []byte, sendBuffer),
		rooms:  make(map[string]struct{}),
	}
}

func (h *Hub) connect(ctx context.Context, c *Client) {
	h.mutex.Lock()
	conns, exists := h.clients[c.UserID]
	if !exists {
		conns = make(map[*Client]struct{})
		h.clients[c.UserID] = conns
	}
	conns[c] = struct{}{}

	if c.UserID != 0 {
		h.subscribeLocked(c, rooms.UserRoom(c.UserID))
	}
	h.mutex.Unlock()

	metrics.WsConnections.Inc()
	h.sugar.Debugf("Added session ID [%d] of user ID [%d] to clients", c.ID, c.UserID)

	if c.UserID != 0 {
		h.syncPresence(ctx, c.UserID)
	}
}

// disconnect leaves every room this connection held, unless another
// connection of the same user still holds it
func (h *Hub) disconnect(ctx context.Context, c *Client) {
	h.mutex.Lock()
	conns := h.clients[c.UserID]
	delete(conns, c)
	if len(conns) == 0 {
		delete(h.clients, c.UserID)
	}

	departed := h.leaveRoomsLocked(c, slices.Collect(maps.Keys(c.rooms)))
	h.mutex.Unlock()

	c.close()
	metrics.WsConnections.Dec()
	h.sugar.Debugf("Removed session ID [%d] of user ID [%d] from clients", c.ID, c.UserID)

	h.announceDepartures(c.UserID, departed)

	if c.UserID != 0 {
		h.syncPresence(ctx, c.UserID)
	}
}

// syncPresence writes and broadcasts the user's status when it differs from
// the last one written. The connection count is read under the user's
// presence lock, after any earlier write has landed.
func (h *Hub) syncPresence(ctx context.Context, userID int64) {
	lock := &h.presence[uint64(userID)%presenceShards]
	lock.Lock()
	defer lock.Unlock()

	h.mutex.Lock()
	online := len(h.clients[userID]) > 0
	_, wasOnline := h.announced[userID]
	if online {
		h.announced[userID] = struct{}{}
	} else {
		delete(h.announced, userID)
	}
	h.mutex.Unlock()

	if online == wasOnline {
		return
	}
	status := models.StatusOffline
	if online {
		status = models.StatusOnline
	}

	ctx, cancel := context.WithTimeout(ctx, eventTimeout)
	defer cancel()

	if err := h.store.SetUserStatus(ctx, userID, status); err != nil {
		h.sugar.Errorf("Failed to set status of user ID [%d] to %s: %v", userID, status, err)
	}
	h.Broadcast(UserStatusChanged, StatusEvent{UserID: userID, Status: status})
}

// IsOnline reports whether the user has at least one live connection
func (h *Hub) IsOnline(userID int64) bool {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	return len(h.clients[userID]) > 0
}

func (c *Client) readPump(ctx context.Context) {
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.sugar.Debugf("Session ID [%d] closed unexpectedly: %v", c.ID, err)
			}
			return
		}
		c.hub.dispatch(ctx, c, raw)
	}
}

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
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.hub.sugar.Debugf("Failed writing to session ID [%d]: %v", c.ID, err)
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

// trySend never blocks, a connection that can't keep up is closed
func (c *Client) trySend(message []byte) bool {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if c.closed {
		return false
	}

	select {
	case c.send <- message:
		return true
	default:
		c.hub.sugar.Warnf("Send buffer of session ID [%d] is full, closing it", c.ID)
		c.closed = true
		close(c.send)
		return false
	}
}

func (c *Client) close() {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if !c.closed {
		c.closed = true
		close(c.send)
	}
}
