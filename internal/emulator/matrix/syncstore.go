package matrix

// syncstore.go implements mautrix.SyncStore on the Emulator's SQLite
// database. Persisting the next_batch token keeps a restarted bot from
// replaying room history and re-answering prompts it already handled.

import (
	"context"
	"database/sql"

	"maunium.net/go/mautrix"
	"maunium.net/go/mautrix/id"
)

var _ mautrix.SyncStore = (*sqlSyncStore)(nil)

// sqlSyncStore stores each value as a row in matrix_sync_state keyed by
// (user_id, key).
type sqlSyncStore struct {
	db *sql.DB
}

func newSyncStore(db *sql.DB) *sqlSyncStore {
	return &sqlSyncStore{db: db}
}

// SaveFilterID persists the event-filter ID for the given user.
func (s *sqlSyncStore) SaveFilterID(ctx context.Context, userID id.UserID, filterID string) error {
	return s.saveKey(ctx, userID.String(), "filter_id", filterID)
}

// LoadFilterID returns the persisted event-filter ID, or ("", nil) when none
// has been saved.
func (s *sqlSyncStore) LoadFilterID(ctx context.Context, userID id.UserID) (string, error) {
	return s.loadKey(ctx, userID.String(), "filter_id")
}

// SaveNextBatch persists the opaque /sync token.
func (s *sqlSyncStore) SaveNextBatch(ctx context.Context, userID id.UserID, nextBatchToken string) error {
	return s.saveKey(ctx, userID.String(), "next_batch", nextBatchToken)
}

// LoadNextBatch returns the last saved /sync token, or ("", nil) on first run.
func (s *sqlSyncStore) LoadNextBatch(ctx context.Context, userID id.UserID) (string, error) {
	return s.loadKey(ctx, userID.String(), "next_batch")
}

func (s *sqlSyncStore) saveKey(ctx context.Context, userID, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO matrix_sync_state (user_id, key, value)
		VALUES (?, ?, ?)
		ON CONFLICT(user_id, key) DO UPDATE SET value = excluded.value
	`, userID, key, value)
	return err
}

func (s *sqlSyncStore) loadKey(ctx context.Context, userID, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `
		SELECT value FROM matrix_sync_state WHERE user_id = ? AND key = ?
	`, userID, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return value, err
}
