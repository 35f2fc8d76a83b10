package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/erazemk/zadolzitve/internal/model"
)

// appendLog writes an audit entry. Always called inside the transaction of
// the action being logged.
func appendLog(ctx context.Context, q querier, action, description string) error {
	_, err := q.ExecContext(ctx,
		`INSERT INTO logs (action, description, created_at) VALUES (?, ?, ?)`,
		action, description, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("writing audit log: %w", err)
	}
	return nil
}

// ListLogs returns audit entries newest first, optionally filtered by action.
func ListLogs(ctx context.Context, db *sql.DB, action string) ([]model.LogEntry, error) {
	query := `SELECT id, action, description, created_at FROM logs`
	var args []any
	if action != "" {
		query += ` WHERE action = ?`
		args = append(args, action)
	}
	query += ` ORDER BY id DESC`

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing logs: %w", err)
	}
	defer rows.Close()

	var entries []model.LogEntry
	for rows.Next() {
		var e model.LogEntry
		if err := rows.Scan(&e.ID, &e.Action, &e.Description, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning log: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
