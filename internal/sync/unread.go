package sync

import (
	gosync "sync"

	"github.com/gfranca/papo/internal/bus"
	"github.com/gfranca/papo/internal/chat"
)

// Ledger tracks per-room and total unread counts. The server snapshot
// is authoritative; local increments and decrements only bridge the
// gap until the next snapshot arrives, so badges never flash stale
// values. Ledger updates apply regardless of which room is active.
type Ledger struct {
	mu    gosync.RWMutex
	total int
	rooms map[string]int
	bus   *bus.Bus
}

// NewLedger creates an empty ledger.
func NewLedger(b *bus.Bus) *Ledger {
	return &Ledger{
		rooms: make(map[string]int),
		bus:   b,
	}
}

// ReplaceSnapshot overwrites all counts from an authoritative server
// snapshot.
func (l *Ledger) ReplaceSnapshot(counts chat.UnreadCounts) {
	l.mu.Lock()
	l.total = counts.Total
	l.rooms = make(map[string]int, len(counts.PerRoom))
	for _, r := range counts.PerRoom {
		l.rooms[r.RoomID] = r.Count
	}
	l.mu.Unlock()
	l.notify()
}

// Increment bumps a room's count for a message that arrived while the
// room was not active.
func (l *Ledger) Increment(roomID string, by int) {
	if by <= 0 {
		return
	}
	l.mu.Lock()
	l.rooms[roomID] += by
	l.total += by
	l.mu.Unlock()
	l.notify()
}

// Decrement optimistically lowers a room's count when the client marks
// it read, floored at zero per room and in aggregate.
func (l *Ledger) Decrement(roomID string, by int) {
	if by <= 0 {
		return
	}
	l.mu.Lock()
	if n, ok := l.rooms[roomID]; ok {
		l.rooms[roomID] = max(0, n-by)
	}
	l.total = max(0, l.total-by)
	l.mu.Unlock()
	l.notify()
}

// CountFor returns the unread count for a room, 0 for unknown rooms.
func (l *Ledger) CountFor(roomID string) int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.rooms[roomID]
}

// Total returns the aggregate unread count.
func (l *Ledger) Total() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.total
}

// Snapshot returns the ledger contents in wire form.
func (l *Ledger) Snapshot() chat.UnreadCounts {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := chat.UnreadCounts{Total: l.total}
	for roomID, n := range l.rooms {
		out.PerRoom = append(out.PerRoom, chat.RoomUnread{RoomID: roomID, Count: n})
	}
	return out
}

func (l *Ledger) notify() {
	if l.bus != nil {
		l.bus.Emit("unread.updated", nil)
	}
}
