package sync

import (
	"context"
	gosync "sync"
	"time"

	"go.uber.org/zap"

	"github.com/gfranca/papo/internal/bus"
	"github.com/gfranca/papo/internal/chat"
	"github.com/gfranca/papo/internal/outbox"
	"github.com/gfranca/papo/internal/wire"
)

// markReadGrace bounds how long the marking flag stays set without a
// server ack. UI responsiveness only; the unread snapshot remains the
// source of truth.
const markReadGrace = time.Second

// Engine is the room session manager: it owns which room is active,
// orchestrates join/leave/load around contact selection, and drives
// the reconciler and unread ledger from the inbound event stream.
// All inbound events flow through a single goroutine and one
// exhaustive dispatch.
type Engine struct {
	emitter outbox.Emitter
	events  <-chan wire.Inbound

	rec      *Reconciler
	ledger   *Ledger
	composer *outbox.Composer
	journal  outbox.Journal

	mu          gosync.RWMutex
	user        chat.User
	rooms       []chat.Room
	contacts    []chat.Contact
	composeText string
	searchQuery string
	replyTo     *chat.Message
	marking     bool
	markTimer   *time.Timer

	bus    *bus.Bus
	logger *zap.Logger
	cancel context.CancelFunc
}

// NewEngine wires the reconciliation core around an injected
// connection. journal may be nil.
func NewEngine(
	user chat.User,
	emitter outbox.Emitter,
	events <-chan wire.Inbound,
	rec *Reconciler,
	ledger *Ledger,
	composer *outbox.Composer,
	journal outbox.Journal,
	b *bus.Bus,
	logger *zap.Logger,
) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		emitter:  emitter,
		events:   events,
		rec:      rec,
		ledger:   ledger,
		composer: composer,
		journal:  journal,
		user:     user,
		bus:      b,
		logger:   logger,
	}
}

// Start drains inbound events until the context is cancelled.
func (e *Engine) Start(ctx context.Context) {
	ctx, e.cancel = context.WithCancel(ctx)
	go func() {
		for {
			select {
			case evt := <-e.events:
				e.handleEvent(evt)
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop stops the engine.
func (e *Engine) Stop() {
	if e.cancel != nil {
		e.cancel()
	}
	e.mu.Lock()
	if e.markTimer != nil {
		e.markTimer.Stop()
	}
	e.mu.Unlock()
}

// handleEvent dispatches one inbound event. Malformed or irrelevant
// events degrade to no-ops; the engine never panics on remote input.
func (e *Engine) handleEvent(evt wire.Inbound) {
	switch evt.Name {
	case wire.EvConnected:
		e.LoadRooms()
		e.LoadUnreadCount()

	case wire.EvMessageReceived:
		if evt.Message == nil {
			return
		}
		e.handleIncoming(*evt.Message)

	case wire.EvChatStarted:
		if evt.Started == nil || evt.Started.RoomID == "" {
			return
		}
		e.enterRoom(evt.Started.RoomID)
		e.LoadRooms()

	case wire.EvMessagesLoaded:
		if evt.Loaded == nil {
			return
		}
		e.handleSnapshot(evt.Loaded)

	case wire.EvRoomsLoaded:
		e.handleRooms(evt.Rooms)

	case wire.EvMarkedRead:
		if evt.Marked == nil || evt.Marked.RoomID == "" || evt.Marked.UserID == "" {
			return
		}
		e.rec.ApplyMarkedRead(evt.Marked.RoomID, evt.Marked.UserID)
		e.ledger.Decrement(evt.Marked.RoomID, 1)
		e.LoadUnreadCount()

	case wire.EvUnreadCount:
		if evt.Unread == nil {
			return
		}
		e.ledger.ReplaceSnapshot(*evt.Unread)

	case wire.EvMarkReadAck:
		e.clearMarking()

	case wire.EvMessageSaved:
		if evt.Message == nil {
			return
		}
		e.rec.ApplySaved(*evt.Message)
		if e.journal != nil && evt.Message.TempID != "" {
			_ = e.journal.MarkSent(evt.Message.TempID, evt.Message.ID)
		}

	case wire.EvMessageFailed:
		if evt.Failed == nil {
			return
		}
		e.handleSendFailure(evt.Failed)

	case wire.EvError:
		if evt.ServerErr == nil {
			return
		}
		e.handleServerError(evt.ServerErr)

	default:
		e.logger.Warn("ignoring unexpected event", zap.String("event", string(evt.Name)))
	}
}

func (e *Engine) handleIncoming(m chat.Message) {
	if m.RoomID == e.rec.ActiveRoom() {
		e.rec.ApplyIncoming(m)
		return
	}
	// Inactive room: the visible sequence is untouched, but the
	// sender's unread badge moves immediately.
	if !m.Temporary && m.SenderID != e.user.ID {
		e.ledger.Increment(m.RoomID, 1)
	}
}

func (e *Engine) handleSnapshot(loaded *wire.MessagesLoaded) {
	roomID := loaded.RoomID
	if roomID == "" && len(loaded.Messages) > 0 {
		roomID = loaded.Messages[0].RoomID
	}
	if roomID == "" {
		return
	}
	if !e.rec.ApplySnapshot(roomID, loaded.Messages) {
		return
	}
	e.MarkRead(roomID)
}

func (e *Engine) handleRooms(rooms []chat.Room) {
	e.mu.Lock()
	e.rooms = rooms
	e.contacts = chat.ProjectContacts(rooms, e.user.ID)
	e.mu.Unlock()
	e.publish("roster.updated", len(rooms))
}

func (e *Engine) handleSendFailure(f *wire.MessageFailed) {
	e.rec.ApplyFailed(f.TemporaryID)
	if e.journal != nil {
		_ = e.journal.MarkFailed(f.TemporaryID, f.Error.Message)
	}
	e.logger.Error("message rejected by server",
		zap.String("temp_id", f.TemporaryID),
		zap.String("reason", f.Error.Message))
	e.publish("send.failed", f.Error.Message)
}

// handleServerError applies the error taxonomy: read-state delivery
// errors stay in the log (the next unread snapshot reconciles them),
// send errors and everything unclassified reach the user.
func (e *Engine) handleServerError(se *wire.ServerError) {
	switch se.Type {
	case "mark-read-error":
		e.logger.Warn("mark-read failed",
			zap.String("message", se.Message),
			zap.String("details", se.Details))
	case "send-error":
		e.logger.Error("send failed",
			zap.String("message", se.Message),
			zap.String("details", se.Details))
		e.publish("send.failed", se.Message)
	default:
		e.logger.Error("server error",
			zap.String("type", se.Type),
			zap.String("message", se.Message),
			zap.String("details", se.Details))
		e.publish("alert.error", se.Message)
	}
}

// SelectContact makes the contact's room active: leave the previous
// room, join the new one, request its snapshot and schedule mark-read.
// A nil contact closes the chat. At most one room is active at a time.
func (e *Engine) SelectContact(c *chat.Contact) {
	if c == nil {
		e.CloseChat()
		return
	}
	e.enterRoom(c.RoomID)
}

func (e *Engine) enterRoom(roomID string) {
	active := e.rec.ActiveRoom()
	if active != "" && active != roomID {
		e.emit(wire.LeaveRoom(active, e.user.ID))
	}

	e.rec.SetActiveRoom(roomID)

	e.mu.Lock()
	e.searchQuery = ""
	e.replyTo = nil
	e.mu.Unlock()

	e.emit(wire.JoinRoom(roomID, e.user.ID))
	e.loadMessages(roomID)
	e.publish("session.room_changed", roomID)
}

// CloseChat leaves all rooms and resets every room-scoped field.
// Closing with no active room is a no-op.
func (e *Engine) CloseChat() {
	if e.rec.ActiveRoom() == "" {
		return
	}
	e.emit(wire.LeaveRoom("", e.user.ID))
	e.rec.Reset()

	e.mu.Lock()
	e.composeText = ""
	e.searchQuery = ""
	e.replyTo = nil
	e.mu.Unlock()

	e.publish("session.room_changed", "")
}

// StartChat asks the server for a (possibly new) two-party room; the
// chat-started event completes the switch.
func (e *Engine) StartChat(targetUserID string) {
	if targetUserID == "" {
		return
	}
	e.emit(wire.StartChat(e.user.ID, targetUserID))
}

// Send composes the current draft. Compose text and reply target are
// cleared synchronously once an envelope is submitted, whatever the
// eventual outcome.
func (e *Engine) Send(text string, att *chat.FileAttachment) {
	e.mu.Lock()
	replyTo := e.replyTo
	e.mu.Unlock()

	msg, err := e.composer.Send(e.user, e.rec.ActiveRoom(), text, att, replyTo)
	if err != nil {
		e.logger.Error("send failed", zap.Error(err))
		e.publish("send.failed", err.Error())
		return
	}
	if msg == nil {
		return
	}

	e.mu.Lock()
	e.composeText = ""
	e.replyTo = nil
	e.mu.Unlock()
}

// LoadRooms requests the authoritative room list plus unread counts.
func (e *Engine) LoadRooms() {
	e.emit(wire.GetRooms(e.user.ID))
}

// LoadUnreadCount requests the authoritative unread snapshot.
func (e *Engine) LoadUnreadCount() {
	e.emit(wire.GetUnreadCount(e.user.ID))
}

func (e *Engine) loadMessages(roomID string) {
	e.emit(wire.GetMessages(roomID, e.user.ID))
	e.MarkRead(roomID)
}

// MarkRead asks the server to mark the room read and sets the marking
// flag, cleared by the ack or a local timer, whichever fires first.
func (e *Engine) MarkRead(roomID string) {
	if roomID == "" {
		return
	}
	e.mu.Lock()
	e.marking = true
	if e.markTimer != nil {
		e.markTimer.Stop()
	}
	e.markTimer = time.AfterFunc(markReadGrace, e.clearMarking)
	e.mu.Unlock()

	e.emit(wire.MarkRead(roomID, e.user.ID))
}

func (e *Engine) clearMarking() {
	e.mu.Lock()
	e.marking = false
	e.mu.Unlock()
}

// SetComposeText stores the draft text.
func (e *Engine) SetComposeText(text string) {
	e.mu.Lock()
	e.composeText = text
	e.mu.Unlock()
}

// SetSearchQuery stores the contact filter text.
func (e *Engine) SetSearchQuery(q string) {
	e.mu.Lock()
	e.searchQuery = q
	e.mu.Unlock()
}

// SetReplyTarget stores the message the next send replies to.
func (e *Engine) SetReplyTarget(m *chat.Message) {
	e.mu.Lock()
	e.replyTo = m
	e.mu.Unlock()
}

// CancelReply clears the reply target.
func (e *Engine) CancelReply() {
	e.SetReplyTarget(nil)
}

// ActiveRoom returns the active room id, or "".
func (e *Engine) ActiveRoom() string {
	return e.rec.ActiveRoom()
}

// Messages returns a copy of the active room's sequence.
func (e *Engine) Messages() []chat.Message {
	return e.rec.Messages()
}

// Contacts returns the projected contact list.
func (e *Engine) Contacts() []chat.Contact {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]chat.Contact, len(e.contacts))
	copy(out, e.contacts)
	return out
}

// Rooms returns the raw room list.
func (e *Engine) Rooms() []chat.Room {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]chat.Room, len(e.rooms))
	copy(out, e.rooms)
	return out
}

// ComposeText returns the current draft text.
func (e *Engine) ComposeText() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.composeText
}

// SearchQuery returns the current contact filter text.
func (e *Engine) SearchQuery() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.searchQuery
}

// ReplyTarget returns the message the next send replies to, or nil.
func (e *Engine) ReplyTarget() *chat.Message {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.replyTo
}

// Marking reports whether a mark-read round-trip is in flight.
func (e *Engine) Marking() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.marking
}

// UnreadFor returns the unread count for a room.
func (e *Engine) UnreadFor(roomID string) int {
	return e.ledger.CountFor(roomID)
}

// TotalUnread returns the aggregate unread count.
func (e *Engine) TotalUnread() int {
	return e.ledger.Total()
}

func (e *Engine) emit(f wire.Frame) {
	if err := e.emitter.Emit(f); err != nil {
		e.logger.Warn("emit failed", zap.String("event", f.Event), zap.Error(err))
	}
}

func (e *Engine) publish(kind string, payload any) {
	if e.bus != nil {
		e.bus.Emit(kind, payload)
	}
}
