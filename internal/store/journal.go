package store

import "time"

// SendRecord tracks one outgoing message through its lifecycle,
// keyed by the placeholder id assigned at compose time.
type SendRecord struct {
	ID           int64
	TempID       string
	RoomID       string
	Body         string
	Kind         string
	Status       string // queued, sent, failed
	ServerMsgID  int64
	ErrorMessage string
}

// QueueSend journals a freshly composed message as queued.
func (db *DB) QueueSend(tempID, roomID, body, kind string) error {
	now := time.Now().UnixMilli()
	_, err := db.Exec(`
		INSERT INTO send_journal (temp_id, room_id, body, kind, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, 'queued', ?, ?)`,
		tempID, roomID, body, kind, now, now)
	return err
}

// MarkSent records server confirmation with the final message id.
func (db *DB) MarkSent(tempID string, serverMsgID int64) error {
	now := time.Now().UnixMilli()
	_, err := db.Exec(`
		UPDATE send_journal SET status = 'sent', server_msg_id = ?, updated_at = ?
		WHERE temp_id = ?`,
		serverMsgID, now, tempID)
	return err
}

// MarkFailed records a rejected send with its error message.
func (db *DB) MarkFailed(tempID, errMsg string) error {
	now := time.Now().UnixMilli()
	_, err := db.Exec(`
		UPDATE send_journal SET status = 'failed', error_message = ?, updated_at = ?
		WHERE temp_id = ?`,
		errMsg, now, tempID)
	return err
}

// PendingSends returns journal entries still awaiting confirmation.
func (db *DB) PendingSends() ([]SendRecord, error) {
	rows, err := db.Query(`
		SELECT id, temp_id, room_id, body, kind, status, server_msg_id, error_message
		FROM send_journal WHERE status = 'queued' ORDER BY created_at ASC`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var records []SendRecord
	for rows.Next() {
		var r SendRecord
		if err := rows.Scan(&r.ID, &r.TempID, &r.RoomID, &r.Body, &r.Kind, &r.Status, &r.ServerMsgID, &r.ErrorMessage); err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	return records, rows.Err()
}
