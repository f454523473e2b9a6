package store

import (
	"path/filepath"
	"testing"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	db, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.Migrate(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestMigrateIdempotent(t *testing.T) {
	db := testDB(t)
	result, err := db.Migrate()
	if err != nil {
		t.Fatalf("second Migrate() error = %v", err)
	}
	if result.Changed {
		t.Error("second Migrate() reported changes")
	}
}

func TestSessionSnapshotRoundTrip(t *testing.T) {
	db := testDB(t)

	loaded, err := db.LoadSnapshot()
	if err != nil {
		t.Fatal(err)
	}
	if loaded != nil {
		t.Fatalf("fresh db has snapshot: %+v", loaded)
	}

	snap := &SessionSnapshot{
		UserID: "5", Username: "gui", FullName: "Gui Franca",
		Email: "gui@x.io", Token: "tok",
	}
	if err := db.SaveSnapshot(snap); err != nil {
		t.Fatal(err)
	}

	loaded, err = db.LoadSnapshot()
	if err != nil {
		t.Fatal(err)
	}
	if loaded == nil || loaded.UserID != "5" || loaded.Token != "tok" {
		t.Errorf("LoadSnapshot() = %+v", loaded)
	}

	// Saving again overwrites the single row.
	snap.Token = "tok2"
	if err := db.SaveSnapshot(snap); err != nil {
		t.Fatal(err)
	}
	loaded, _ = db.LoadSnapshot()
	if loaded.Token != "tok2" {
		t.Errorf("token = %q, want tok2", loaded.Token)
	}

	if err := db.ClearSnapshot(); err != nil {
		t.Fatal(err)
	}
	loaded, _ = db.LoadSnapshot()
	if loaded != nil {
		t.Errorf("snapshot survived clear: %+v", loaded)
	}
}

func TestSendJournalLifecycle(t *testing.T) {
	db := testDB(t)

	if err := db.QueueSend("tmp-1", "1_2", "hello", "text"); err != nil {
		t.Fatal(err)
	}
	if err := db.QueueSend("tmp-2", "1_2", "pic", "image"); err != nil {
		t.Fatal(err)
	}

	pending, err := db.PendingSends()
	if err != nil {
		t.Fatal(err)
	}
	if len(pending) != 2 {
		t.Fatalf("got %d pending, want 2", len(pending))
	}
	if pending[0].TempID != "tmp-1" || pending[0].Status != "queued" {
		t.Errorf("first pending = %+v", pending[0])
	}

	if err := db.MarkSent("tmp-1", 42); err != nil {
		t.Fatal(err)
	}
	if err := db.MarkFailed("tmp-2", "room closed"); err != nil {
		t.Fatal(err)
	}

	pending, err = db.PendingSends()
	if err != nil {
		t.Fatal(err)
	}
	if len(pending) != 0 {
		t.Errorf("got %d pending after resolution, want 0", len(pending))
	}
}

func TestQueueSendDuplicateTempID(t *testing.T) {
	db := testDB(t)
	if err := db.QueueSend("tmp-1", "1_2", "a", "text"); err != nil {
		t.Fatal(err)
	}
	if err := db.QueueSend("tmp-1", "1_2", "b", "text"); err == nil {
		t.Error("duplicate temp_id accepted")
	}
}
