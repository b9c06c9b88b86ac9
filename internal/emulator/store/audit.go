package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// CommandAudit is one recorded ?-command dispatch.
type CommandAudit struct {
	ID           int64
	Timestamp    time.Time
	TraceID      string
	SenderMXID   string
	Command      string
	Args         sql.NullString
	Result       string
	ErrorMessage sql.NullString
}

// WriteCommandAudit records one command dispatch.
func (s *Store) WriteCommandAudit(ctx context.Context, traceID, senderMXID, command, args, result, errorMsg string) error {
	var argsNull sql.NullString
	if args != "" {
		argsNull = sql.NullString{String: args, Valid: true}
	}
	var errorNull sql.NullString
	if errorMsg != "" {
		errorNull = sql.NullString{String: errorMsg, Valid: true}
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO command_audit (ts, trace_id, sender_mxid, command, args, result, error_message)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, time.Now(), traceID, senderMXID, command, argsNull, result, errorNull)
	if err != nil {
		return fmt.Errorf("write command audit: %w", err)
	}
	return nil
}

// RecentCommandAudit returns the most recent audit rows, newest first.
func (s *Store) RecentCommandAudit(ctx context.Context, limit int) ([]*CommandAudit, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, ts, trace_id, sender_mxid, command, args, result, error_message
		FROM command_audit
		ORDER BY ts DESC, id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query command audit: %w", err)
	}
	defer rows.Close()

	var entries []*CommandAudit
	for rows.Next() {
		e := &CommandAudit{}
		if err := rows.Scan(
			&e.ID, &e.Timestamp, &e.TraceID, &e.SenderMXID,
			&e.Command, &e.Args, &e.Result, &e.ErrorMessage,
		); err != nil {
			return nil, fmt.Errorf("scan command audit: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate command audit: %w", err)
	}
	return entries, nil
}

// BumpUnauthorized increments and returns the sender's denied-command count.
// The count drives the escalating warnings and survives restarts.
func (s *Store) BumpUnauthorized(ctx context.Context, senderMXID string) (int, error) {
	var attempts int
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO unauthorized_attempts (sender_mxid, attempts, last_attempt)
		VALUES (?, 1, ?)
		ON CONFLICT(sender_mxid) DO UPDATE SET
			attempts = attempts + 1,
			last_attempt = excluded.last_attempt
		RETURNING attempts
	`, senderMXID, time.Now()).Scan(&attempts)
	if err != nil {
		return 0, fmt.Errorf("bump unauthorized attempts: %w", err)
	}
	return attempts, nil
}

// UnauthorizedAttempts returns the sender's current denied-command count.
func (s *Store) UnauthorizedAttempts(ctx context.Context, senderMXID string) (int, error) {
	var attempts int
	err := s.db.QueryRowContext(ctx, `
		SELECT attempts FROM unauthorized_attempts WHERE sender_mxid = ?
	`, senderMXID).Scan(&attempts)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read unauthorized attempts: %w", err)
	}
	return attempts, nil
}

// ForgiveUnauthorized clears the sender's denied-command count.
func (s *Store) ForgiveUnauthorized(ctx context.Context, senderMXID string) error {
	if _, err := s.db.ExecContext(ctx, `
		DELETE FROM unauthorized_attempts WHERE sender_mxid = ?
	`, senderMXID); err != nil {
		return fmt.Errorf("clear unauthorized attempts: %w", err)
	}
	return nil
}
