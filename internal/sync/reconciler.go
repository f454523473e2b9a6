// Package sync is the reconciliation core: it merges the asynchronous,
// possibly-duplicated remote event stream into a single consistent
// local view of the active conversation.
package sync

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/gfranca/papo/internal/bus"
	"github.com/gfranca/papo/internal/chat"
)

// dedupWindow is the created-at tolerance for treating two messages
// with equal body, sender and room as one redelivery. The client
// cannot always correlate its own echo precisely, so identity matching
// alone is not enough.
const dedupWindow = 5 * time.Second

// Reconciler owns the in-memory message sequence for the active room.
// Messages for inactive rooms are not retained; every room switch
// triggers a fresh authoritative load. Confirmed messages keep server
// order, pending messages sit at the tail in submission order and are
// replaced in place on confirmation.
type Reconciler struct {
	mu     sync.RWMutex
	roomID string
	seq    []chat.Message
	bus    *bus.Bus
	logger *zap.Logger
}

// NewReconciler creates an empty reconciler with no active room.
func NewReconciler(b *bus.Bus, logger *zap.Logger) *Reconciler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reconciler{bus: b, logger: logger}
}

// ActiveRoom returns the room whose sequence is held, or "".
func (r *Reconciler) ActiveRoom() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.roomID
}

// SetActiveRoom switches the held room and drops the old sequence,
// including any unresolved pending entries.
func (r *Reconciler) SetActiveRoom(roomID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.roomID = roomID
	r.seq = nil
}

// Reset clears the active room and its sequence.
func (r *Reconciler) Reset() {
	r.SetActiveRoom("")
}

// Messages returns a copy of the current sequence.
func (r *Reconciler) Messages() []chat.Message {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]chat.Message, len(r.seq))
	copy(out, r.seq)
	return out
}

// Len returns the current sequence length.
func (r *Reconciler) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.seq)
}

// AppendPending adds an optimistic entry for a just-composed message
// so the sender sees it before server confirmation.
func (r *Reconciler) AppendPending(m chat.Message) {
	r.mu.Lock()
	if m.RoomID != r.roomID {
		r.mu.Unlock()
		return
	}
	r.seq = append(r.seq, m)
	r.mu.Unlock()
	r.publish("message.appended", m)
}

// ApplyIncoming handles a message delivered from the remote stream: a
// new message from another participant, the confirmation echo of this
// client's own pending send, or a duplicate redelivery. Reports
// whether the sequence changed.
func (r *Reconciler) ApplyIncoming(m chat.Message) bool {
	r.mu.Lock()

	if m.RoomID != r.roomID {
		r.mu.Unlock()
		return false
	}

	// A final message correlated to one of our pending entries
	// replaces it in place; it is never appended a second time.
	if m.TempID != "" && !m.Temporary {
		if i := r.findPending(m.TempID); i >= 0 {
			m.Temporary = false
			r.seq[i] = m
			r.mu.Unlock()
			r.publish("message.updated", m)
			return true
		}
	}

	if r.isDuplicate(&m) {
		r.mu.Unlock()
		r.logger.Debug("dropping duplicate message",
			zap.Int64("id", m.ID),
			zap.String("room_id", m.RoomID))
		return false
	}

	if m.ParentID != 0 {
		r.resolveParent(&m)
	}

	r.seq = append(r.seq, m)
	r.mu.Unlock()
	r.publish("message.appended", m)
	return true
}

// ApplySnapshot replaces the whole sequence with an authoritative
// load. The snapshot is discarded when it is not for the active room
// (a stale response from a superseded room switch).
func (r *Reconciler) ApplySnapshot(roomID string, msgs []chat.Message) bool {
	r.mu.Lock()
	if roomID != r.roomID {
		r.mu.Unlock()
		r.logger.Info("discarding stale message snapshot",
			zap.String("room_id", roomID),
			zap.String("active_room", r.roomID))
		return false
	}
	r.seq = make([]chat.Message, len(msgs))
	copy(r.seq, msgs)
	r.mu.Unlock()
	r.publish("message.loaded", roomID)
	return true
}

// ApplySaved is the authoritative save acknowledgment: the pending
// entry correlated by placeholder id is replaced in place with the
// confirmed message; an already-confirmed entry with the same final id
// is updated instead.
func (r *Reconciler) ApplySaved(saved chat.Message) bool {
	r.mu.Lock()
	if saved.RoomID != "" && saved.RoomID != r.roomID {
		r.mu.Unlock()
		return false
	}

	changed := false
	for i := range r.seq {
		if r.seq[i].Temporary && saved.TempID != "" && r.seq[i].TempID == saved.TempID {
			saved.Temporary = false
			r.seq[i] = saved
			changed = true
			break
		}
		if saved.ID != 0 && r.seq[i].ID == saved.ID {
			r.seq[i].Status = saved.Status
			r.seq[i].FileURL = saved.FileURL
			changed = true
			break
		}
	}
	r.mu.Unlock()
	if changed {
		r.publish("message.updated", saved)
	}
	return changed
}

// ApplyFailed removes the pending entry matching the failure's
// correlation id. The failure itself is surfaced elsewhere; no ghost
// entry remains in the sequence.
func (r *Reconciler) ApplyFailed(tempID string) bool {
	r.mu.Lock()
	i := r.findPending(tempID)
	if i < 0 {
		r.mu.Unlock()
		return false
	}
	removed := r.seq[i]
	r.seq = append(r.seq[:i], r.seq[i+1:]...)
	r.mu.Unlock()
	r.publish("message.removed", removed)
	return true
}

// ApplyMarkedRead flips every unread message in the room not authored
// by markedBy to read. Read state only moves forward. Returns how many
// messages changed.
func (r *Reconciler) ApplyMarkedRead(roomID, markedBy string) int {
	r.mu.Lock()
	if roomID != r.roomID {
		r.mu.Unlock()
		return 0
	}
	changed := 0
	for i := range r.seq {
		if r.seq[i].SenderID != markedBy && r.seq[i].Status == chat.StatusUnread {
			r.seq[i].Status = chat.StatusRead
			changed++
		}
	}
	r.mu.Unlock()
	if changed > 0 {
		r.publish("message.marked_read", roomID)
	}
	return changed
}

// findPending returns the index of the pending entry with the given
// placeholder id, or -1. Callers hold the lock.
func (r *Reconciler) findPending(tempID string) int {
	if tempID == "" {
		return -1
	}
	for i := range r.seq {
		if r.seq[i].Temporary && r.seq[i].TempID == tempID {
			return i
		}
	}
	return -1
}

// isDuplicate applies the three-step redelivery test: exact final id,
// matching placeholder id on two pending entries, then equal
// body/sender/room inside the created-at tolerance. Callers hold the
// lock.
func (r *Reconciler) isDuplicate(m *chat.Message) bool {
	for i := range r.seq {
		ex := &r.seq[i]
		if ex.ID != 0 && m.ID != 0 && ex.ID == m.ID {
			return true
		}
		if ex.Temporary && m.Temporary && ex.TempID == m.TempID {
			return true
		}
		if ex.Body == m.Body && ex.SenderID == m.SenderID && ex.RoomID == m.RoomID {
			delta := ex.CreatedAt.Sub(m.CreatedAt)
			if delta < 0 {
				delta = -delta
			}
			if delta < dedupWindow {
				return true
			}
		}
	}
	return false
}

// resolveParent denormalizes the reply preview from the in-memory
// sequence. A missing parent leaves the preview empty. Callers hold
// the lock.
func (r *Reconciler) resolveParent(m *chat.Message) {
	for i := range r.seq {
		if r.seq[i].ID == m.ParentID {
			m.ParentBody = r.seq[i].Body
			m.ParentSenderID = r.seq[i].SenderID
			m.ParentKind = r.seq[i].Kind
			return
		}
	}
}

func (r *Reconciler) publish(kind string, payload any) {
	if r.bus != nil {
		r.bus.Emit(kind, payload)
	}
}
