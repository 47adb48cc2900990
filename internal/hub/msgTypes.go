package hub

import (
	"chatapp-backend/internal/models"
	"strconv"
	"strings"
	"time"
)

// incoming
const (
	EventJoinServer   = "join_server"
	EventLeaveServer  = "leave_server"
	EventJoinChannel  = "join_channel"
	EventLeaveChannel = "leave_channel"
	EventMessage      = "message"
	EventJoinVoice    = "join_voice"
	EventLeaveVoice   = "leave_voice"
	EventJoinVideo    = "join_video"
	EventLeaveVideo   = "leave_video"
	EventCallUser     = "call_user"
	EventCallAccepted = "call_accepted"
	EventIceCandidate = "ice_candidate"
	EventEndCall      = "end_call"
)

// outgoing
const (
	UserStatusChanged = "user_status_changed"
	JoinedServer      = "joined_server"
	LeftServer        = "left_server"
	JoinedChannel     = "joined_channel"
	LeftChannel       = "left_channel"
	Error             = "error"

	UserJoinedVoice = "user_joined_voice"
	UserLeftVoice   = "user_left_voice"
	VoiceUsers      = "voice_users"
	UserJoinedVideo = "user_joined_video"
	UserLeftVideo   = "user_left_video"
	VideoUsers      = "video_users"
	CallEnded       = "call_ended"

	NewMessage     = "new_message"
	MessageEdited  = "message_edited"
	MessageDeleted = "message_deleted"

	ServerUpdated  = "server_updated"
	ServerDeleted  = "server_deleted"
	MemberJoined   = "member_joined"
	MemberLeft     = "member_left"
	ChannelCreated = "channel_created"
	ChannelUpdated = "channel_updated"
	ChannelDeleted = "channel_deleted"

	FriendRequest         = "friend_request"
	FriendRequestAccepted = "friend_request_accepted"
)

// ID accepts a snowflake id sent either as a JSON number or a string
type ID int64

func (id *ID) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		*id = 0
		return nil
	}

	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return err
	}
	*id = ID(v)
	return nil
}

// RoomKey is a video room name, clients send it as a string or a number
type RoomKey string

func (k *RoomKey) UnmarshalJSON(b []byte) error {
	s := string(b)
	if s == "null" {
		*k = ""
		return nil
	}
	*k = RoomKey(strings.Trim(s, `"`))
	return nil
}

type serverRequest struct {
	ServerID ID `json:"server_id"`
}

type channelRequest struct {
	ChannelID ID `json:"channel_id"`
}

type messageRequest struct {
	ChannelID ID     `json:"channel_id"`
	Content   string `json:"content"`
}

type voiceRequest struct {
	ChannelID ID `json:"channelId"`
}

type videoRequest struct {
	RoomID RoomKey `json:"roomId"`
}

type ServerEvent struct {
	ServerID int64 `json:"server_id,string"`
}

type ChannelEvent struct {
	ChannelID int64 `json:"channel_id,string"`
}

type StatusEvent struct {
	UserID int64  `json:"user_id,string"`
	Status string `json:"status"`
}

type Participant struct {
	UserID   int64  `json:"userId,string"`
	Username string `json:"username"`
}

type ParticipantLeft struct {
	UserID int64 `json:"userId,string"`
}

type Roster struct {
	Users []Participant `json:"users"`
}

type MessageEvent struct {
	MessageID   int64               `json:"message_id,string"`
	ChannelID   int64               `json:"channel_id,string"`
	Content     string              `json:"content"`
	UserID      int64               `json:"user_id,string"`
	Username    string              `json:"username"`
	AvatarURL   string              `json:"avatar_url"`
	CreatedAt   string              `json:"created_at"`
	EditedAt    string              `json:"edited_at,omitempty"`
	Attachments []models.Attachment `json:"attachments"`
}

const isoMillis = "2006-01-02T15:04:05.000Z07:00"

// NewMessageEvent is the payload of new_message and message_edited
func NewMessageEvent(message models.Message) MessageEvent {
	event := MessageEvent{
		MessageID:   message.ID,
		ChannelID:   message.ChannelID,
		Content:     message.Content,
		UserID:      message.UserID,
		Username:    message.User.UserName,
		AvatarURL:   message.User.Avatar,
		CreatedAt:   formatTime(message.CreatedAt),
		Attachments: message.Attachments,
	}
	if message.EditedAt != nil {
		event.EditedAt = formatTime(*message.EditedAt)
	}
	if event.Attachments == nil {
		event.Attachments = []models.Attachment{}
	}
	return event
}

type MessageDeletedEvent struct {
	MessageID int64 `json:"message_id,string"`
	ChannelID int64 `json:"channel_id,string"`
}

func formatTime(t time.Time) string {
	return t.UTC().Format(isoMillis)
}

type MemberEvent struct {
	ServerID int64 `json:"server_id,string"`
	UserID   int64 `json:"user_id,string"`
}

type ChannelRef struct {
	ServerID  int64 `json:"server_id,string"`
	ChannelID int64 `json:"channel_id,string"`
}
