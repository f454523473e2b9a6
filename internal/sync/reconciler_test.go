package sync

import (
	"testing"
	"time"

	"github.com/gfranca/papo/internal/bus"
	"github.com/gfranca/papo/internal/chat"
)

var baseTime = time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)

func activeReconciler(roomID string) *Reconciler {
	r := NewReconciler(nil, nil)
	r.SetActiveRoom(roomID)
	return r
}

func confirmed(id int64, roomID, sender, body string, at time.Time) chat.Message {
	return chat.Message{
		ID: id, RoomID: roomID, SenderID: sender, Body: body,
		Kind: chat.KindText, CreatedAt: at,
	}
}

func TestIncomingAppend(t *testing.T) {
	r := activeReconciler("1_2")

	if !r.ApplyIncoming(confirmed(1, "1_2", "2", "oi", baseTime)) {
		t.Fatal("first message rejected")
	}
	if r.Len() != 1 {
		t.Fatalf("len = %d, want 1", r.Len())
	}
}

func TestRedeliverySameIDDropped(t *testing.T) {
	r := activeReconciler("1_2")
	m := confirmed(7, "1_2", "2", "oi", baseTime)

	r.ApplyIncoming(m)
	if r.ApplyIncoming(m) {
		t.Error("byte-identical redelivery changed state")
	}
	if r.Len() != 1 {
		t.Errorf("len = %d, want 1", r.Len())
	}
}

func TestRedeliveryWithinToleranceDropped(t *testing.T) {
	r := activeReconciler("1_2")
	r.ApplyIncoming(confirmed(7, "1_2", "2", "oi", baseTime))

	// Same body/sender/room, no id yet, 3s apart: one redelivery.
	echo := confirmed(0, "1_2", "2", "oi", baseTime.Add(3*time.Second))
	if r.ApplyIncoming(echo) {
		t.Error("near-duplicate within tolerance was appended")
	}

	// 8s apart is a genuinely repeated message.
	later := confirmed(0, "1_2", "2", "oi", baseTime.Add(8*time.Second))
	if !r.ApplyIncoming(later) {
		t.Error("distinct repeated message was dropped")
	}
	if r.Len() != 2 {
		t.Errorf("len = %d, want 2", r.Len())
	}
}

func TestIncomingReplacesPendingByTempID(t *testing.T) {
	r := activeReconciler("1_2")
	r.AppendPending(chat.Message{
		TempID: "tmp-1", Temporary: true, RoomID: "1_2",
		SenderID: "1", Body: "hello", CreatedAt: baseTime,
	})

	echo := confirmed(42, "1_2", "1", "hello", baseTime.Add(time.Second))
	echo.TempID = "tmp-1"
	if !r.ApplyIncoming(echo) {
		t.Fatal("confirmation echo rejected")
	}

	msgs := r.Messages()
	if len(msgs) != 1 {
		t.Fatalf("len = %d, want 1 (replace, not append)", len(msgs))
	}
	if msgs[0].ID != 42 || msgs[0].Temporary {
		t.Errorf("entry = %+v, want confirmed id 42", msgs[0])
	}
}

func TestSavedReplacesPending(t *testing.T) {
	r := activeReconciler("1_2")
	r.AppendPending(chat.Message{
		TempID: "tmp-P", Temporary: true, RoomID: "1_2",
		SenderID: "1", Body: "hello", CreatedAt: baseTime,
	})

	saved := confirmed(42, "1_2", "1", "hello", baseTime)
	saved.TempID = "tmp-P"
	if !r.ApplySaved(saved) {
		t.Fatal("ApplySaved() did not match pending entry")
	}

	msgs := r.Messages()
	if len(msgs) != 1 {
		t.Fatalf("len = %d, want 1", len(msgs))
	}
	got := msgs[0]
	if got.ID != 42 || got.Temporary {
		t.Errorf("entry = %+v, want confirmed id 42", got)
	}
	for _, m := range msgs {
		if m.Pending() {
			t.Errorf("pending entry survived confirmation: %+v", m)
		}
	}
}

func TestSavedUpdatesConfirmedEntry(t *testing.T) {
	r := activeReconciler("1_2")
	r.ApplyIncoming(confirmed(42, "1_2", "1", "hello", baseTime))

	saved := confirmed(42, "1_2", "1", "hello", baseTime)
	saved.Status = chat.StatusRead
	saved.FileURL = "/files/42.png"
	if !r.ApplySaved(saved) {
		t.Fatal("ApplySaved() did not match confirmed entry")
	}

	got := r.Messages()[0]
	if got.Status != chat.StatusRead || got.FileURL != "/files/42.png" {
		t.Errorf("entry = %+v, want merged status and file url", got)
	}
}

func TestFailedRemovesPending(t *testing.T) {
	r := activeReconciler("1_2")
	r.AppendPending(chat.Message{
		TempID: "tmp-1", Temporary: true, RoomID: "1_2", SenderID: "1", Body: "x",
	})
	r.ApplyIncoming(confirmed(1, "1_2", "2", "keep", baseTime))

	if !r.ApplyFailed("tmp-1") {
		t.Fatal("ApplyFailed() did not find pending entry")
	}
	msgs := r.Messages()
	if len(msgs) != 1 || msgs[0].Body != "keep" {
		t.Errorf("sequence = %+v, want only the confirmed message", msgs)
	}

	// Unknown correlation id: no state change, no panic.
	if r.ApplyFailed("tmp-unknown") {
		t.Error("ApplyFailed() matched nonexistent entry")
	}
}

func TestMarkedReadMonotone(t *testing.T) {
	r := activeReconciler("1_2")
	m1 := confirmed(1, "1_2", "1", "mine", baseTime)
	m2 := confirmed(2, "1_2", "2", "theirs unread", baseTime)
	m3 := confirmed(3, "1_2", "2", "theirs read", baseTime)
	m3.Status = chat.StatusRead
	for _, m := range []chat.Message{m1, m2, m3} {
		r.ApplyIncoming(m)
	}

	// User "2" marked the room read: only messages NOT authored by
	// "2" that are still unread flip.
	if n := r.ApplyMarkedRead("1_2", "2"); n != 1 {
		t.Errorf("changed = %d, want 1", n)
	}

	msgs := r.Messages()
	if msgs[0].Status != chat.StatusRead {
		t.Error("counterpart's unread message not flipped")
	}
	if msgs[1].Status != chat.StatusUnread {
		t.Error("marker's own message was flipped")
	}
	if msgs[2].Status != chat.StatusRead {
		t.Error("already-read message lost its status")
	}

	// Running again changes nothing: read state never reverts.
	if n := r.ApplyMarkedRead("1_2", "2"); n != 0 {
		t.Errorf("second pass changed %d messages, want 0", n)
	}
}

func TestMarkedReadWrongRoomIgnored(t *testing.T) {
	r := activeReconciler("1_2")
	r.ApplyIncoming(confirmed(1, "1_2", "2", "oi", baseTime))

	if n := r.ApplyMarkedRead("3_4", "1"); n != 0 {
		t.Errorf("marked-read for inactive room touched %d messages", n)
	}
	if r.Messages()[0].Status != chat.StatusUnread {
		t.Error("message flipped by foreign-room marked-read")
	}
}

func TestReplyPreviewResolution(t *testing.T) {
	r := activeReconciler("1_2")
	parent := confirmed(10, "1_2", "2", "original", baseTime)
	parent.Kind = chat.KindImage
	r.ApplyIncoming(parent)

	reply := confirmed(11, "1_2", "1", "answer", baseTime.Add(time.Minute))
	reply.ParentID = 10
	r.ApplyIncoming(reply)

	got := r.Messages()[1]
	if got.ParentBody != "original" || got.ParentSenderID != "2" || got.ParentKind != chat.KindImage {
		t.Errorf("preview = %+v, want denormalized parent fields", got)
	}
}

func TestReplyToMissingParent(t *testing.T) {
	r := activeReconciler("1_2")
	reply := confirmed(11, "1_2", "1", "answer", baseTime)
	reply.ParentID = 999
	if !r.ApplyIncoming(reply) {
		t.Fatal("reply with unknown parent rejected")
	}
	got := r.Messages()[0]
	if got.ParentBody != "" || got.ParentSenderID != "" {
		t.Errorf("preview = %+v, want empty for missing parent", got)
	}
}

func TestIncomingForeignRoomIgnored(t *testing.T) {
	r := activeReconciler("1_2")
	if r.ApplyIncoming(confirmed(1, "3_4", "3", "elsewhere", baseTime)) {
		t.Error("message for inactive room mutated the sequence")
	}
	if r.Len() != 0 {
		t.Errorf("len = %d, want 0", r.Len())
	}
}

func TestSnapshotWholesaleReplace(t *testing.T) {
	r := activeReconciler("1_2")
	r.ApplyIncoming(confirmed(1, "1_2", "2", "old", baseTime))

	snap := []chat.Message{
		confirmed(5, "1_2", "2", "a", baseTime),
		confirmed(6, "1_2", "1", "b", baseTime.Add(time.Second)),
	}
	if !r.ApplySnapshot("1_2", snap) {
		t.Fatal("snapshot rejected")
	}
	msgs := r.Messages()
	if len(msgs) != 2 || msgs[0].ID != 5 {
		t.Errorf("sequence = %+v, want wholesale replacement", msgs)
	}
}

func TestStaleSnapshotDiscarded(t *testing.T) {
	r := activeReconciler("1_2")
	r.ApplyIncoming(confirmed(1, "1_2", "2", "keep", baseTime))

	// A load response for a room we already left.
	if r.ApplySnapshot("3_4", []chat.Message{confirmed(9, "3_4", "3", "late", baseTime)}) {
		t.Error("stale snapshot applied")
	}
	if r.Messages()[0].Body != "keep" {
		t.Error("stale snapshot clobbered active sequence")
	}
}

func TestAppendPublishesBusEvent(t *testing.T) {
	b := bus.New()
	ch, unsub := b.Subscribe("message.", 10)
	defer unsub()

	r := NewReconciler(b, nil)
	r.SetActiveRoom("1_2")
	r.ApplyIncoming(confirmed(1, "1_2", "2", "oi", baseTime))

	select {
	case evt := <-ch:
		if evt.Kind != "message.appended" {
			t.Errorf("kind = %q, want message.appended", evt.Kind)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for append event")
	}
}
