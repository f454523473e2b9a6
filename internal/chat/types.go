package chat

import (
	"strings"
	"time"
)

// Kind classifies a message payload.
type Kind string

const (
	KindText     Kind = "text"
	KindImage    Kind = "image"
	KindDocument Kind = "document"
	KindVideo    Kind = "video"
	KindAudio    Kind = "audio"
)

// KindForMIME derives the message kind for an attachment media type.
// An empty media type means a plain text message.
func KindForMIME(mediaType string) Kind {
	switch {
	case mediaType == "":
		return KindText
	case strings.HasPrefix(mediaType, "image/"):
		return KindImage
	case strings.HasPrefix(mediaType, "audio/"):
		return KindAudio
	case strings.HasPrefix(mediaType, "video/"):
		return KindVideo
	default:
		return KindDocument
	}
}

// Status is the read state of a message.
type Status int

const (
	StatusUnread Status = 0
	StatusRead   Status = 1
)

// Message is a single chat entry. A message is in exactly one of three
// lifecycle states: pending (Temporary set, placeholder TempID),
// confirmed (server-assigned ID), or failed (removed from the
// sequence). A pending entry transitions forward exactly once.
type Message struct {
	ID        int64  `json:"id,omitempty"`
	TempID    string `json:"temporary_id,omitempty"`
	Temporary bool   `json:"temporary,omitempty"`

	RoomID    string    `json:"room_id"`
	SenderID  string    `json:"sender_id"`
	Body      string    `json:"body"`
	Status    Status    `json:"status"`
	Kind      Kind      `json:"message_kind,omitempty"`
	CreatedAt time.Time `json:"created_at"`

	FileURL  string `json:"file_url,omitempty"`
	FileName string `json:"file_name,omitempty"`
	FileType string `json:"file_type,omitempty"`
	FileSize int64  `json:"file_size,omitempty"`

	ParentID       int64  `json:"parent_id,omitempty"`
	ParentBody     string `json:"parent_body,omitempty"`
	ParentSenderID string `json:"parent_sender_id,omitempty"`
	ParentKind     Kind   `json:"parent_kind,omitempty"`
}

// Pending reports whether the message awaits server confirmation.
func (m *Message) Pending() bool {
	return m.Temporary
}

// Room is an addressable conversation as delivered by the server.
// For two-party rooms the id encodes both participant identities
// joined by an underscore.
type Room struct {
	RoomID    string    `json:"room_id"`
	IsGroup   bool      `json:"is_group"`
	CreatedAt time.Time `json:"created_at"`

	DisplayName string `json:"full_name,omitempty"`
	Email       string `json:"email,omitempty"`
	Unread      int    `json:"unread,omitempty"`

	LastMessage         string     `json:"last_message,omitempty"`
	LastMessageKind     Kind       `json:"last_message_type,omitempty"`
	LastMessageSenderID string     `json:"last_message_sender_id,omitempty"`
	LastMessageAt       *time.Time `json:"last_message_created_at,omitempty"`
}

// Contact is the projection of a room from the current user's point of
// view. Contacts are derived, never mutated independently.
type Contact struct {
	CounterpartID string
	RoomID        string
	Name          string
	Email         string
	IsGroup       bool
	Unread        int
	LastActivity  *time.Time
	LastMessage   string
	LastKind      Kind
}

// RoomUnread is a per-room unread counter entry.
type RoomUnread struct {
	RoomID string `json:"room_id"`
	Count  int    `json:"unread_count"`
}

// UnreadCounts is the authoritative unread snapshot pushed by the
// server.
type UnreadCounts struct {
	Total   int          `json:"total_unread"`
	PerRoom []RoomUnread `json:"unread_per_room"`
}

// User identifies the authenticated local user.
type User struct {
	ID       string `json:"id"`
	Username string `json:"username,omitempty"`
	FullName string `json:"full_name,omitempty"`
	Email    string `json:"email,omitempty"`
}

// FileAttachment is a file already converted to its transmittable
// form: base64 payload plus declared media type and original name.
// Size and type admission is enforced upstream by the picker.
type FileAttachment struct {
	Data string
	Name string
	MIME string
	Size int64
}
