package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// Error classes returned (wrapped) by store operations. Callers use errors.Is.
var (
	// ErrValidation means the caller supplied malformed or conflicting data.
	ErrValidation = errors.New("validation error")
	// ErrInvariant means the operation would break a custody invariant.
	ErrInvariant = errors.New("invariant violation")
	// ErrNotFound means a referenced record does not exist.
	ErrNotFound = errors.New("not found")
	// ErrUnauthorized means the actor may not perform the operation.
	ErrUnauthorized = errors.New("unauthorized")
)

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// withTx runs fn inside a transaction, committing on success.
// fn must only use tx: the pool holds a single connection.
func withTx(ctx context.Context, db *sql.DB, fn func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

func countRows(ctx context.Context, q querier, query string, args ...any) (int, error) {
	var n int
	if err := q.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

// IsSoftFailure reports whether err is one of the domain error classes
// rather than a storage failure.
func IsSoftFailure(err error) bool {
	return errors.Is(err, ErrValidation) || errors.Is(err, ErrInvariant) ||
		errors.Is(err, ErrNotFound) || errors.Is(err, ErrUnauthorized)
}
