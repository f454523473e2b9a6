package store

import (
	"database/sql"
	"time"
)

// SessionSnapshot is the persisted login state: written on login,
// cleared on logout, loaded once at startup. There is no implicit
// rehydration anywhere else.
type SessionSnapshot struct {
	UserID   string
	Username string
	FullName string
	Email    string
	Token    string
	SavedAt  int64
}

// SaveSnapshot writes the single-row session snapshot.
func (db *DB) SaveSnapshot(s *SessionSnapshot) error {
	now := time.Now().UnixMilli()
	_, err := db.Exec(`
		INSERT INTO session_snapshot (id, user_id, username, full_name, email, token, saved_at)
		VALUES (1, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			user_id = excluded.user_id,
			username = excluded.username,
			full_name = excluded.full_name,
			email = excluded.email,
			token = excluded.token,
			saved_at = excluded.saved_at`,
		s.UserID, s.Username, s.FullName, s.Email, s.Token, now)
	return err
}

// LoadSnapshot returns the persisted session, or nil if none exists.
func (db *DB) LoadSnapshot() (*SessionSnapshot, error) {
	var s SessionSnapshot
	err := db.QueryRow(`
		SELECT user_id, username, full_name, email, token, saved_at
		FROM session_snapshot WHERE id = 1`).
		Scan(&s.UserID, &s.Username, &s.FullName, &s.Email, &s.Token, &s.SavedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// ClearSnapshot removes the persisted session (logout).
func (db *DB) ClearSnapshot() error {
	_, err := db.Exec(`DELETE FROM session_snapshot WHERE id = 1`)
	return err
}
