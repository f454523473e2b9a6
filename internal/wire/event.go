// Package wire defines the frame format spoken with the messaging
// service. Inbound frames decode into a closed set of typed events;
// anything outside the set is an error the channel drops.
package wire

import (
	"encoding/json"
	"fmt"

	"github.com/gfranca/papo/internal/chat"
)

// EventName identifies an inbound event.
type EventName string

const (
	EvConnected       EventName = "connected"
	EvMessageReceived EventName = "message-received"
	EvChatStarted     EventName = "chat-started"
	EvMessagesLoaded  EventName = "messages-loaded"
	EvRoomsLoaded     EventName = "rooms-loaded"
	EvMarkedRead      EventName = "marked-read"
	EvUnreadCount     EventName = "unread-count"
	EvMarkReadAck     EventName = "mark-read-ack"
	EvMessageSaved    EventName = "message-saved"
	EvMessageFailed   EventName = "message-failed"
	EvError           EventName = "error"
)

// Frame is the on-the-wire envelope for both directions.
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// ChatStarted announces a freshly created (or re-opened) room.
type ChatStarted struct {
	RoomID string `json:"room_id"`
}

// MessagesLoaded is the authoritative message snapshot for one room.
// RoomID tags which load request this answers; older servers omit it,
// in which case the room is inferred from the messages themselves.
type MessagesLoaded struct {
	RoomID   string         `json:"room_id,omitempty"`
	Messages []chat.Message `json:"messages"`
}

// MarkedRead broadcasts that a user marked a room read.
type MarkedRead struct {
	RoomID string `json:"room_id"`
	UserID string `json:"user_id"`
}

// MarkReadAck confirms this client's own mark-read request.
type MarkReadAck struct {
	RoomID string `json:"room_id"`
}

// ErrorDetail carries the server-side reason for a failure.
type ErrorDetail struct {
	Message string `json:"message"`
}

// MessageFailed reports a rejected send, correlated by placeholder id.
type MessageFailed struct {
	TemporaryID string      `json:"temporary_id"`
	Error       ErrorDetail `json:"error"`
}

// ServerError is the taxonomy-dispatched error event.
type ServerError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// Inbound is the decoded form of a server frame: exactly one payload
// field matching Name is set. Consumers dispatch through a single
// switch on Name.
type Inbound struct {
	Name EventName

	Message   *chat.Message // message-received, message-saved
	Started   *ChatStarted
	Loaded    *MessagesLoaded
	Rooms     []chat.Room
	Marked    *MarkedRead
	Unread    *chat.UnreadCounts
	Ack       *MarkReadAck
	Failed    *MessageFailed
	ServerErr *ServerError
}

// Decode parses a raw frame into its typed event.
func Decode(raw []byte) (Inbound, error) {
	var f Frame
	if err := json.Unmarshal(raw, &f); err != nil {
		return Inbound{}, fmt.Errorf("decode frame: %w", err)
	}
	return DecodeFrame(f)
}

// DecodeFrame converts an already-parsed frame into its typed event.
func DecodeFrame(f Frame) (Inbound, error) {
	evt := Inbound{Name: EventName(f.Event)}

	unmarshal := func(v any) error {
		if len(f.Data) == 0 {
			return nil
		}
		if err := json.Unmarshal(f.Data, v); err != nil {
			return fmt.Errorf("decode %s payload: %w", f.Event, err)
		}
		return nil
	}

	switch evt.Name {
	case EvConnected:
		return evt, nil
	case EvMessageReceived, EvMessageSaved:
		evt.Message = &chat.Message{}
		return evt, unmarshal(evt.Message)
	case EvChatStarted:
		evt.Started = &ChatStarted{}
		return evt, unmarshal(evt.Started)
	case EvMessagesLoaded:
		evt.Loaded = &MessagesLoaded{}
		return evt, unmarshal(evt.Loaded)
	case EvRoomsLoaded:
		return evt, unmarshal(&evt.Rooms)
	case EvMarkedRead:
		evt.Marked = &MarkedRead{}
		return evt, unmarshal(evt.Marked)
	case EvUnreadCount:
		evt.Unread = &chat.UnreadCounts{}
		return evt, unmarshal(evt.Unread)
	case EvMarkReadAck:
		evt.Ack = &MarkReadAck{}
		return evt, unmarshal(evt.Ack)
	case EvMessageFailed:
		evt.Failed = &MessageFailed{}
		return evt, unmarshal(evt.Failed)
	case EvError:
		evt.ServerErr = &ServerError{}
		return evt, unmarshal(evt.ServerErr)
	default:
		return Inbound{}, fmt.Errorf("unknown event %q", f.Event)
	}
}
