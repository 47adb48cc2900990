package models

import (
	"chatapp-backend/internal/permissions"
	"time"
)

const (
	StatusOnline  = "online"
	StatusOffline = "offline"

	ChannelTypeText  = "text"
	ChannelTypeVoice = "voice"

	RankAdmin  = "admin"
	RankMember = "member"

	FriendPending  = "pending"
	FriendAccepted = "accepted"
	FriendBlocked  = "blocked"
)

// MaxMessageLength is counted in characters, the same for REST and websocket sends
const MaxMessageLength = 4000

type User struct {
	ID           int64     `json:"id,string"`
	UserName     string    `json:"username"`
	Email        string    `json:"email,omitempty"`
	DisplayName  string    `json:"displayName"`
	Avatar       string    `json:"avatar"`
	Status       string    `json:"status"`
	PasswordHash []byte    `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
}

type Server struct {
	ID          int64     `json:"id,string"`
	OwnerID     int64     `json:"owner_id,string"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Icon        string    `json:"icon"`
	Template    string    `json:"template"`
	BoostLevel  int       `json:"boost_level"`
	BoostCount  int       `json:"boost_count"`
	CreatedAt   time.Time `json:"created_at"`
}

type Category struct {
	ID       int64  `json:"id,string"`
	ServerID int64  `json:"server_id,string"`
	Name     string `json:"name"`
	Position int    `json:"position"`
}

type Channel struct {
	ID         int64  `json:"id,string"`
	ServerID   int64  `json:"server_id,string"`
	CategoryID *int64 `json:"category_id,string,omitempty"`
	Name       string `json:"name"`
	Type       string `json:"type"`
	Topic      string `json:"topic"`
	Position   int    `json:"position"`
	Private    bool   `json:"private"`
}

type Attachment struct {
	ID        int64  `json:"id,string"`
	MessageID int64  `json:"message_id,string"`
	Filename  string `json:"filename"`
	FileType  string `json:"file_type"`
	URL       string `json:"url"`
}

type Message struct {
	ID          int64        `json:"id,string"`
	ChannelID   int64        `json:"channel_id,string"`
	UserID      int64        `json:"user_id,string"`
	Content     string       `json:"content"`
	CreatedAt   time.Time    `json:"created_at"`
	EditedAt    *time.Time   `json:"edited_at,omitempty"`
	Attachments []Attachment `json:"attachments"`
	User        User         `json:"user"`
}

type Role struct {
	ID          int64                  `json:"id,string"`
	ServerID    int64                  `json:"server_id,string"`
	Name        string                 `json:"name"`
	Color       string                 `json:"color"`
	Permissions permissions.Permission `json:"permissions"`
}

type ServerMember struct {
	ID       int64     `json:"id,string"`
	ServerID int64     `json:"server_id,string"`
	UserID   int64     `json:"user_id,string"`
	Nickname string    `json:"nickname,omitempty"`
	Rank     string    `json:"rank"`
	JoinedAt time.Time `json:"joined_at"`
	User     User      `json:"user"`
	Roles    []Role    `json:"roles"`
}

// FriendAssociation is one row per unordered pair, User1 is the one who asked
type FriendAssociation struct {
	ID        int64     `json:"id,string"`
	User1ID   int64     `json:"user1_id,string"`
	User2ID   int64     `json:"user2_id,string"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	Sender    *User     `json:"sender,omitempty"`
}

// Other returns the user on the opposite side of the association
func (f FriendAssociation) Other(userID int64) int64 {
	if f.User1ID == userID {
		return f.User2ID
	}
	return f.User1ID
}
