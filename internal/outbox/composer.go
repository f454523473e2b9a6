// Package outbox builds and transmits outgoing messages: envelope
// construction, placeholder identity, optimistic local echo, and a
// persistent journal of send outcomes.
package outbox

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/gfranca/papo/internal/chat"
	"github.com/gfranca/papo/internal/wire"
)

// Emitter transmits a frame over the live connection.
type Emitter interface {
	Emit(wire.Frame) error
}

// Sequence receives the optimistic pending entry for the active room.
type Sequence interface {
	AppendPending(chat.Message)
}

// Journal persists send lifecycle transitions keyed by placeholder id.
type Journal interface {
	QueueSend(tempID, roomID, body, kind string) error
	MarkSent(tempID string, serverMsgID int64) error
	MarkFailed(tempID, errMsg string) error
}

// Composer assembles outgoing envelopes and hands them to the channel.
type Composer struct {
	emitter Emitter
	seq     Sequence
	journal Journal
	logger  *zap.Logger
	now     func() time.Time
}

// NewComposer creates a composer. journal may be nil.
func NewComposer(e Emitter, seq Sequence, journal Journal, logger *zap.Logger) *Composer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Composer{
		emitter: e,
		seq:     seq,
		journal: journal,
		logger:  logger,
		now:     time.Now,
	}
}

// Send composes and transmits a message. At least one of text (after
// trimming) or att must be present and roomID must be non-empty;
// otherwise Send is a silent no-op returning (nil, nil) — the UI
// disables the control, but the contract holds regardless.
//
// On success the returned pending message has already been appended to
// the sequence; confirmation or failure arrives later as an inbound
// event, not here.
func (c *Composer) Send(user chat.User, roomID, text string, att *chat.FileAttachment, replyTo *chat.Message) (*chat.Message, error) {
	text = strings.TrimSpace(text)
	if roomID == "" || (text == "" && att == nil) {
		return nil, nil
	}

	kind := chat.KindText
	body := text
	if att != nil {
		kind = chat.KindForMIME(att.MIME)
		if body == "" {
			body = att.Name
		}
	}

	msg := chat.Message{
		TempID:    uuid.NewString(),
		Temporary: true,
		RoomID:    roomID,
		SenderID:  user.ID,
		Body:      body,
		Status:    chat.StatusUnread,
		Kind:      kind,
		CreatedAt: c.now(),
	}
	if att != nil {
		msg.FileName = att.Name
		msg.FileType = att.MIME
		msg.FileSize = att.Size
	}

	// Replying to a reply points at the original target: previews
	// never nest beyond one level.
	if replyTo != nil {
		msg.ParentID = replyTo.ID
		if replyTo.ParentID != 0 {
			msg.ParentID = replyTo.ParentID
		}
		msg.ParentBody = replyTo.Body
		msg.ParentSenderID = replyTo.SenderID
		msg.ParentKind = replyTo.Kind
	}

	env := wire.SendEnvelope{
		UserID:         user.ID,
		RoomID:         roomID,
		Body:           body,
		ParentID:       msg.ParentID,
		ParentBody:     msg.ParentBody,
		ParentSenderID: msg.ParentSenderID,
		Kind:           kind,
		TemporaryID:    msg.TempID,
	}
	if att != nil {
		env.File = att.Data
		env.FileName = att.Name
		env.FileType = att.MIME
	}

	if c.journal != nil {
		if err := c.journal.QueueSend(msg.TempID, roomID, body, string(kind)); err != nil {
			c.logger.Warn("failed to journal send", zap.Error(err), zap.String("temp_id", msg.TempID))
		}
	}

	if err := c.emitter.Emit(wire.SendMessage(env)); err != nil {
		if c.journal != nil {
			_ = c.journal.MarkFailed(msg.TempID, err.Error())
		}
		return nil, fmt.Errorf("emit send: %w", err)
	}

	c.seq.AppendPending(msg)
	c.logger.Info("message queued",
		zap.String("temp_id", msg.TempID),
		zap.String("room_id", roomID),
		zap.String("kind", string(kind)))
	return &msg, nil
}
