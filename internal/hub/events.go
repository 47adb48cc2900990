package hub

import (
	"bytes"
	"chatapp-backend/internal/apperr"
	"chatapp-backend/internal/metrics"
	"chatapp-backend/internal/models"
	"chatapp-backend/internal/rooms"
	"context"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/goccy/go-json"
)

type envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// dispatch runs on the connection's read loop, so one connection's events
// are handled in order. Failures only ever reach this connection.
func (h *Hub) dispatch(ctx context.Context, c *Client, raw []byte) {
	var in envelope
	if err := json.Unmarshal(raw, &in); err != nil || in.Event == "" {
		metrics.RecordEvent("malformed", true)
		h.sendError(c, "", apperr.Invalid("Malformed message"))
		return
	}

	handler, exists := h.handlers[in.Event]
	if !exists {
		metrics.RecordEvent("unknown", true)
		h.sendError(c, in.Event, apperr.Invalid("Unknown event "+in.Event))
		return
	}

	ctx, cancel := context.WithTimeout(ctx, eventTimeout)
	defer cancel()

	err := handler(ctx, c, in.Data)
	metrics.RecordEvent(in.Event, err != nil)
	if err != nil {
		h.sendError(c, in.Event, err)
	}
}

func (h *Hub) sendError(c *Client, event string, err error) {
	if apperr.KindOf(err) == apperr.PersistenceFailure {
		h.sugar.Errorf("Event [%s] of user ID [%d] failed: %v", event, c.UserID, err)
	} else {
		h.sugar.Debugf("Event [%s] of user ID [%d] rejected: %v", event, c.UserID, err)
	}
	h.reply(c, Error, apperr.Message(err))
}

func decode(data json.RawMessage, v any) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return apperr.Wrap(apperr.ValidationFailed, "Malformed event data", err)
	}
	return nil
}

func requireUser(c *Client) error {
	if c.UserID == 0 {
		return apperr.Unauthenticated("Not authenticated")
	}
	return nil
}

func (h *Hub) joinServer(ctx context.Context, c *Client, data json.RawMessage) error {
	if err := requireUser(c); err != nil {
		return err
	}
	var req serverRequest
	if err := decode(data, &req); err != nil {
		return err
	}
	if req.ServerID == 0 {
		return apperr.Invalid("Server ID is required")
	}

	h.subscribe(c, rooms.ServerRoom(int64(req.ServerID)))
	h.reply(c, JoinedServer, ServerEvent{ServerID: int64(req.ServerID)})
	return nil
}

func (h *Hub) leaveServer(ctx context.Context, c *Client, data json.RawMessage) error {
	if err := requireUser(c); err != nil {
		return err
	}
	var req serverRequest
	if err := decode(data, &req); err != nil {
		return err
	}
	if req.ServerID == 0 {
		return apperr.Invalid("Server ID is required")
	}

	h.unsubscribe(c, rooms.ServerRoom(int64(req.ServerID)))
	h.reply(c, LeftServer, ServerEvent{ServerID: int64(req.ServerID)})
	return nil
}

func (h *Hub) joinChannel(ctx context.Context, c *Client, data json.RawMessage) error {
	if err := requireUser(c); err != nil {
		return err
	}
	var req channelRequest
	if err := decode(data, &req); err != nil {
		return err
	}
	if req.ChannelID == 0 {
		return apperr.Invalid("Channel ID is required")
	}

	channel, err := h.store.ChannelByID(ctx, int64(req.ChannelID))
	if err != nil {
		return err
	}
	if err := h.gate.RequireMember(ctx, c.UserID, channel.ServerID); err != nil {
		return err
	}

	h.switchChannel(c, channel.ID)
	h.reply(c, JoinedChannel, ChannelEvent{ChannelID: channel.ID})
	return nil
}

func (h *Hub) leaveChannel(ctx context.Context, c *Client, data json.RawMessage) error {
	if err := requireUser(c); err != nil {
		return err
	}
	var req channelRequest
	if err := decode(data, &req); err != nil {
		return err
	}
	if req.ChannelID == 0 {
		return apperr.Invalid("Channel ID is required")
	}

	if h.leaveCurrentChannel(c, int64(req.ChannelID)) {
		h.reply(c, LeftChannel, ChannelEvent{ChannelID: int64(req.ChannelID)})
	}
	return nil
}

func (h *Hub) message(ctx context.Context, c *Client, data json.RawMessage) error {
	if err := requireUser(c); err != nil {
		return err
	}
	var req messageRequest
	if err := decode(data, &req); err != nil {
		return err
	}
	if req.ChannelID == 0 {
		return apperr.Invalid("Channel ID is required")
	}
	if strings.TrimSpace(req.Content) == "" {
		return apperr.Invalid("Message content is required")
	}
	if utf8.RuneCountInString(req.Content) > models.MaxMessageLength {
		return apperr.Invalid("content must be at most 4000 characters")
	}

	channel, err := h.store.ChannelByID(ctx, int64(req.ChannelID))
	if err != nil {
		return err
	}
	if err := h.gate.RequireMember(ctx, c.UserID, channel.ServerID); err != nil {
		return err
	}

	message, err := h.store.CreateMessage(ctx, channel.ID, c.UserID, req.Content, nil)
	if err != nil {
		if apperr.KindOf(err) == apperr.PersistenceFailure {
			return apperr.Wrap(apperr.PersistenceFailure, "Error sending message", err)
		}
		return err
	}
	metrics.MessagesTotal.Inc()

	h.EmitToRoom(rooms.ChannelRoom(channel.ID), NewMessage, NewMessageEvent(message))
	return nil
}

func (h *Hub) joinVoice(ctx context.Context, c *Client, data json.RawMessage) error {
	if err := requireUser(c); err != nil {
		return err
	}
	var req voiceRequest
	if err := decode(data, &req); err != nil {
		return err
	}
	if req.ChannelID == 0 {
		return apperr.Invalid("Channel ID is required")
	}

	return h.joinCall(ctx, c, rooms.VoiceRoom(int64(req.ChannelID)), UserJoinedVoice, VoiceUsers)
}

func (h *Hub) leaveVoice(ctx context.Context, c *Client, data json.RawMessage) error {
	if err := requireUser(c); err != nil {
		return err
	}
	var req voiceRequest
	if err := decode(data, &req); err != nil {
		return err
	}
	if req.ChannelID == 0 {
		return apperr.Invalid("Channel ID is required")
	}

	h.leaveCall(c, rooms.VoiceRoom(int64(req.ChannelID)), UserLeftVoice)
	return nil
}

func (h *Hub) joinVideo(ctx context.Context, c *Client, data json.RawMessage) error {
	if err := requireUser(c); err != nil {
		return err
	}
	var req videoRequest
	if err := decode(data, &req); err != nil {
		return err
	}
	if req.RoomID == "" {
		return apperr.Invalid("Room ID is required")
	}

	return h.joinCall(ctx, c, rooms.VideoRoom(string(req.RoomID)), UserJoinedVideo, VideoUsers)
}

func (h *Hub) leaveVideo(ctx context.Context, c *Client, data json.RawMessage) error {
	if err := requireUser(c); err != nil {
		return err
	}
	var req videoRequest
	if err := decode(data, &req); err != nil {
		return err
	}
	if req.RoomID == "" {
		return apperr.Invalid("Room ID is required")
	}

	h.leaveCall(c, rooms.VideoRoom(string(req.RoomID)), UserLeftVideo)
	return nil
}

// joinCall announces the caller to the room and hands the caller the
// whole roster, itself included, so it can set up its peer connections
func (h *Hub) joinCall(ctx context.Context, c *Client, room string, joinedEvent string, rosterEvent string) error {
	added, roster := h.subscribe(c, room)

	users, err := h.store.UsersByIDs(ctx, roster)
	if err != nil {
		return err
	}

	participants := make([]Participant, 0, len(roster))
	for _, userID := range roster {
		participants = append(participants, Participant{UserID: userID, Username: users[userID].UserName})
	}

	if added {
		h.EmitToRoom(room, joinedEvent, Participant{UserID: c.UserID, Username: users[c.UserID].UserName})
	}
	h.reply(c, rosterEvent, Roster{Users: participants})
	return nil
}

func (h *Hub) leaveCall(c *Client, room string, leftEvent string) {
	if h.unsubscribe(c, room) {
		h.EmitToRoom(room, leftEvent, ParticipantLeft{UserID: c.UserID})
	}
}

// relay forwards a signaling payload to the target user without looking
// into it, "to" is swapped for "from"
func (h *Hub) relay(outEvent string) handlerFunc {
	return func(ctx context.Context, c *Client, data json.RawMessage) error {
		if err := requireUser(c); err != nil {
			return err
		}

		payload := map[string]json.RawMessage{}
		if err := decode(data, &payload); err != nil {
			return err
		}

		var to ID
		if raw, exists := payload["to"]; exists {
			if err := json.Unmarshal(raw, &to); err != nil {
				return apperr.Wrap(apperr.ValidationFailed, "Malformed event data", err)
			}
		}
		if to == 0 {
			return apperr.Invalid("Recipient is required")
		}

		delete(payload, "to")
		payload["from"] = json.RawMessage(strconv.Quote(strconv.FormatInt(c.UserID, 10)))

		h.EmitToUser(int64(to), outEvent, payload)
		return nil
	}
}
