package hub

import (
	"chatapp-backend/internal/metrics"
	"chatapp-backend/internal/rooms"

	"github.com/goccy/go-json"
)

type outgoing struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

func encode(event string, data any) ([]byte, error) {
	return json.Marshal(outgoing{Event: event, Data: data})
}

// subscribeLocked adds room to the connection. The user joins the registry
// room at the first connection that subscribes. Caller holds h.mutex.
func (h *Hub) subscribeLocked(c *Client, room string) (bool, []int64) {
	c.rooms[room] = struct{}{}
	added, roster := h.registry.JoinAndSnapshot(room, c.UserID)
	metrics.Rooms.Set(float64(h.registry.Count()))

	h.sugar.Debugf("Session ID [%d] subscribed to room [%s]", c.ID, room)
	return added, roster
}

// unsubscribeLocked removes room from the connection and reports whether
// the user left the registry room with it. Caller holds h.mutex.
func (h *Hub) unsubscribeLocked(c *Client, room string) bool {
	if _, held := c.rooms[room]; !held {
		return false
	}
	delete(c.rooms, room)
	h.sugar.Debugf("Session ID [%d] unsubscribed from room [%s]", c.ID, room)

	for other := range h.clients[c.UserID] {
		if _, held := other.rooms[room]; held && other != c {
			return false
		}
	}

	left := h.registry.Leave(room, c.UserID)
	metrics.Rooms.Set(float64(h.registry.Count()))
	return left
}

func (h *Hub) subscribe(c *Client, room string) (bool, []int64) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	return h.subscribeLocked(c, room)
}

func (h *Hub) unsubscribe(c *Client, room string) bool {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	return h.unsubscribeLocked(c, room)
}

// switchChannel makes channelID the only channel room of the connection
func (h *Hub) switchChannel(c *Client, channelID int64) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	if c.currentChannel != 0 && c.currentChannel != channelID {
		h.unsubscribeLocked(c, rooms.ChannelRoom(c.currentChannel))
	}
	h.subscribeLocked(c, rooms.ChannelRoom(channelID))
	c.currentChannel = channelID
}

func (h *Hub) leaveCurrentChannel(c *Client, channelID int64) bool {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	if c.currentChannel != channelID {
		return false
	}
	h.unsubscribeLocked(c, rooms.ChannelRoom(channelID))
	c.currentChannel = 0
	return true
}

func serverRooms(serverID int64, channelIDs []int64) []string {
	out := []string{rooms.ServerRoom(serverID)}
	for _, channelID := range channelIDs {
		out = append(out, rooms.ChannelRoom(channelID), rooms.VoiceRoom(channelID))
	}
	return out
}

// leaveRoomsLocked returns the call rooms the user left with this connection.
// Caller holds h.mutex.
func (h *Hub) leaveRoomsLocked(c *Client, roomList []string) []string {
	var departed []string
	for _, room := range roomList {
		if h.unsubscribeLocked(c, room) && (rooms.IsVoice(room) || rooms.IsVideo(room)) {
			departed = append(departed, room)
		}
	}
	if _, held := c.rooms[rooms.ChannelRoom(c.currentChannel)]; !held {
		c.currentChannel = 0
	}
	return departed
}

func (h *Hub) announceDepartures(userID int64, departed []string) {
	for _, room := range departed {
		event := UserLeftVoice
		if rooms.IsVideo(room) {
			event = UserLeftVideo
		}
		h.EmitToRoom(room, event, ParticipantLeft{UserID: userID})
	}
}

// EvictFromServer drops the server, channel and voice rooms of a user who is
// no longer a member, on every connection of theirs
func (h *Hub) EvictFromServer(serverID int64, userID int64, channelIDs []int64) {
	roomList := serverRooms(serverID, channelIDs)

	var departed []string
	h.mutex.Lock()
	for c := range h.clients[userID] {
		departed = append(departed, h.leaveRoomsLocked(c, roomList)...)
	}
	h.mutex.Unlock()

	h.sugar.Debugf("Evicted user ID [%d] from rooms of server ID [%d]", userID, serverID)
	h.announceDepartures(userID, departed)
	h.EmitToUser(userID, LeftServer, ServerEvent{ServerID: serverID})
}

// CloseServer drops the rooms of a deleted server from every connection
func (h *Hub) CloseServer(serverID int64, channelIDs []int64) {
	roomList := serverRooms(serverID, channelIDs)

	h.mutex.Lock()
	defer h.mutex.Unlock()

	for _, conns := range h.clients {
		for c := range conns {
			h.leaveRoomsLocked(c, roomList)
		}
	}
}

// EmitToRoom sends to every live connection that holds the room
func (h *Hub) EmitToRoom(room string, event string, data any) {
	message, err := encode(event, data)
	if err != nil {
		h.sugar.Errorf("Failed to encode [%s] for room [%s]: %v", event, room, err)
		return
	}

	members := h.registry.Members(room)
	if len(members) == 0 {
		return
	}
	h.sugar.Debugf("Sending [%s] to %d users in room [%s]", event, len(members), room)

	h.mutex.Lock()
	defer h.mutex.Unlock()

	for _, userID := range members {
		for c := range h.clients[userID] {
			if _, held := c.rooms[room]; held {
				c.trySend(message)
			}
		}
	}
}

func (h *Hub) EmitToUser(userID int64, event string, data any) {
	h.EmitToRoom(rooms.UserRoom(userID), event, data)
}

// Broadcast reaches every connection, rooms don't matter
func (h *Hub) Broadcast(event string, data any) {
	message, err := encode(event, data)
	if err != nil {
		h.sugar.Errorf("Failed to encode [%s] for broadcast: %v", event, err)
		return
	}

	h.mutex.Lock()
	defer h.mutex.Unlock()

	for _, conns := range h.clients {
		for c := range conns {
			c.trySend(message)
		}
	}
}

// reply goes to the one connection only
func (h *Hub) reply(c *Client, event string, data any) {
	message, err := encode(event, data)
	if err != nil {
		h.sugar.Errorf("Failed to encode [%s] for session ID [%d]: %v", event, c.ID, err)
		return
	}
	c.trySend(message)
}
