package wire

import (
	"encoding/json"

	"github.com/gfranca/papo/internal/chat"
)

// Outbound event names.
const (
	OpStartChat      = "start-chat"
	OpJoinRoom       = "join-room"
	OpLeaveRoom      = "leave-room"
	OpGetRooms       = "get-rooms"
	OpGetMessages    = "get-messages"
	OpMarkRead       = "mark-read"
	OpGetUnreadCount = "get-unread-count"
	OpSendMessage    = "send-message"
)

// SendEnvelope is the payload of a send-message frame. File carries
// the base64-encoded attachment when present.
type SendEnvelope struct {
	UserID         string    `json:"user_id"`
	RoomID         string    `json:"room_id"`
	Body           string    `json:"body"`
	ParentID       int64     `json:"parent_id,omitempty"`
	ParentBody     string    `json:"parent_body,omitempty"`
	ParentSenderID string    `json:"parent_sender_id,omitempty"`
	File           string    `json:"file,omitempty"`
	FileName       string    `json:"file_name,omitempty"`
	FileType       string    `json:"file_type,omitempty"`
	Kind           chat.Kind `json:"message_kind,omitempty"`
	TemporaryID    string    `json:"temporary_id,omitempty"`
}

func frame(event string, payload any) Frame {
	data, err := json.Marshal(payload)
	if err != nil {
		// Payloads are plain structs of scalars; marshal cannot fail.
		panic(err)
	}
	return Frame{Event: event, Data: data}
}

// StartChat requests a (possibly new) two-party room with the target.
func StartChat(userID, targetUserID string) Frame {
	return frame(OpStartChat, struct {
		UserID       string `json:"user_id"`
		TargetUserID string `json:"target_user_id"`
	}{userID, targetUserID})
}

// JoinRoom subscribes to a room's live updates. Carrying the user id
// lets the server apply auto-mark-read on join.
func JoinRoom(roomID, userID string) Frame {
	return frame(OpJoinRoom, struct {
		RoomID string `json:"room_id"`
		UserID string `json:"user_id"`
	}{roomID, userID})
}

// LeaveRoom leaves one room; an empty roomID leaves all rooms.
func LeaveRoom(roomID, userID string) Frame {
	return frame(OpLeaveRoom, struct {
		RoomID string `json:"room_id,omitempty"`
		UserID string `json:"user_id"`
	}{roomID, userID})
}

// GetRooms requests the authoritative room list.
func GetRooms(userID string) Frame {
	return frame(OpGetRooms, struct {
		UserID string `json:"user_id"`
	}{userID})
}

// GetMessages requests the message snapshot for a room.
func GetMessages(roomID, userID string) Frame {
	return frame(OpGetMessages, struct {
		RoomID string `json:"room_id"`
		UserID string `json:"user_id"`
	}{roomID, userID})
}

// MarkRead asks the server to mark every message in the room read.
func MarkRead(roomID, userID string) Frame {
	return frame(OpMarkRead, struct {
		RoomID string `json:"room_id"`
		UserID string `json:"user_id"`
	}{roomID, userID})
}

// GetUnreadCount requests the authoritative unread snapshot.
func GetUnreadCount(userID string) Frame {
	return frame(OpGetUnreadCount, struct {
		UserID string `json:"user_id"`
	}{userID})
}

// SendMessage transmits a composed message envelope.
func SendMessage(env SendEnvelope) Frame {
	return frame(OpSendMessage, env)
}
