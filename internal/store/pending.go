package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/erazemk/zadolzitve/internal/model"
)

const pendingSelect = `SELECT p.id, p.item_id, p.master_pid, p.client_pid, p.quantity, p.description, p.created_at,
	        i.name, COALESCE(c.first_name || ' ' || c.last_name, ''), COALESCE(m.first_name || ' ' || m.last_name, '')
	 FROM pending_signings p
	 JOIN items i ON i.id = p.item_id
	 LEFT JOIN users c ON c.personal_id = p.client_pid
	 LEFT JOIN users m ON m.personal_id = p.master_pid`

func scanPending(s rowScanner) (*model.PendingSigning, error) {
	p := &model.PendingSigning{}
	if err := s.Scan(&p.ID, &p.ItemID, &p.MasterPID, &p.ClientPID, &p.Quantity, &p.Description,
		&p.CreatedAt, &p.ItemName, &p.ClientName, &p.MasterName); err != nil {
		return nil, err
	}
	return p, nil
}

// PlaceOnHold takes each requested quantity out of the pool and parks it as a
// pending signing for clientPID. Entries are processed in order, each in its
// own transaction; processing stops at the first failure and the holds placed
// so far are returned along with the error.
func PlaceOnHold(ctx context.Context, db *sql.DB, masterPID, clientPID int64, holds []model.HoldRequest, description string) ([]model.PendingSigning, error) {
	var placed []model.PendingSigning
	for _, h := range holds {
		p, err := placeOnHold(ctx, db, masterPID, clientPID, h, description)
		if err != nil {
			return placed, fmt.Errorf("placing item %d on hold: %w", h.ItemID, err)
		}
		placed = append(placed, *p)
	}
	return placed, nil
}

func placeOnHold(ctx context.Context, db *sql.DB, masterPID, clientPID int64, h model.HoldRequest, description string) (*model.PendingSigning, error) {
	var id int64
	err := withTx(ctx, db, func(tx *sql.Tx) error {
		if _, err := requireClient(ctx, tx, clientPID); err != nil {
			return err
		}
		if _, err := decreaseCount(ctx, tx, h.ItemID, h.Quantity); err != nil {
			return err
		}

		result, err := tx.ExecContext(ctx,
			`INSERT INTO pending_signings (item_id, master_pid, client_pid, quantity, description, created_at)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			h.ItemID, masterPID, clientPID, h.Quantity, description, time.Now().UTC(),
		)
		if err != nil {
			return fmt.Errorf("creating pending signing: %w", err)
		}
		id, err = result.LastInsertId()
		if err != nil {
			return fmt.Errorf("getting pending signing id: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return GetPending(ctx, db, id)
}

// ReleaseHold cancels a pending signing and returns its quantity to the pool.
func ReleaseHold(ctx context.Context, db *sql.DB, pendingID int64) error {
	return withTx(ctx, db, func(tx *sql.Tx) error {
		p, err := scanPending(tx.QueryRowContext(ctx, pendingSelect+` WHERE p.id = ?`, pendingID))
		if err == sql.ErrNoRows {
			return fmt.Errorf("%w: pending signing %d", ErrNotFound, pendingID)
		}
		if err != nil {
			return fmt.Errorf("getting pending signing: %w", err)
		}

		if _, err := increaseCount(ctx, tx, p.ItemID, p.Quantity); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM pending_signings WHERE id = ?`, pendingID); err != nil {
			return fmt.Errorf("deleting pending signing: %w", err)
		}
		return nil
	})
}

// CommitPending turns a pending signing into a signing. The pool is not
// touched: the quantity already left it when the hold was placed.
func CommitPending(ctx context.Context, db *sql.DB, pendingID int64) (*model.Signing, error) {
	var id int64
	err := withTx(ctx, db, func(tx *sql.Tx) error {
		p, err := scanPending(tx.QueryRowContext(ctx, pendingSelect+` WHERE p.id = ?`, pendingID))
		if err == sql.ErrNoRows {
			return fmt.Errorf("%w: pending signing %d", ErrNotFound, pendingID)
		}
		if err != nil {
			return fmt.Errorf("getting pending signing: %w", err)
		}

		result, err := tx.ExecContext(ctx,
			`INSERT INTO signings (item_id, master_pid, client_pid, quantity, description, date)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			p.ItemID, p.MasterPID, p.ClientPID, p.Quantity, p.Description, time.Now().UTC(),
		)
		if err != nil {
			return fmt.Errorf("creating signing: %w", err)
		}
		id, err = result.LastInsertId()
		if err != nil {
			return fmt.Errorf("getting signing id: %w", err)
		}

		master, err := describeUser(ctx, tx, p.MasterPID)
		if err != nil {
			return err
		}
		client, err := describeUser(ctx, tx, p.ClientPID)
		if err != nil {
			return err
		}
		if err := appendLog(ctx, tx, model.ActionNewSigning, fmt.Sprintf(
			"%s signed %d x %s (item %d) to %s", master, p.Quantity, p.ItemName, p.ItemID, client,
		)); err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM pending_signings WHERE id = ?`, pendingID); err != nil {
			return fmt.Errorf("deleting pending signing: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return GetSigning(ctx, db, id)
}

// CommitPendingBatch commits each pending signing independently, stopping at
// the first failure.
func CommitPendingBatch(ctx context.Context, db *sql.DB, pendingIDs []int64) ([]model.Signing, error) {
	var committed []model.Signing
	for _, id := range pendingIDs {
		s, err := CommitPending(ctx, db, id)
		if err != nil {
			return committed, fmt.Errorf("committing pending signing %d: %w", id, err)
		}
		committed = append(committed, *s)
	}
	return committed, nil
}

// GetPending returns a pending signing by ID.
func GetPending(ctx context.Context, db *sql.DB, id int64) (*model.PendingSigning, error) {
	p, err := scanPending(db.QueryRowContext(ctx, pendingSelect+` WHERE p.id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting pending signing: %w", err)
	}
	return p, nil
}

// ListPending returns pending signings, all of them when masterPID is 0.
func ListPending(ctx context.Context, db *sql.DB, masterPID int64) ([]model.PendingSigning, error) {
	query := pendingSelect
	var args []any
	if masterPID != 0 {
		query += ` WHERE p.master_pid = ?`
		args = append(args, masterPID)
	}
	query += ` ORDER BY p.id`

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing pending signings: %w", err)
	}
	defer rows.Close()

	var pending []model.PendingSigning
	for rows.Next() {
		p, err := scanPending(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning pending signing: %w", err)
		}
		pending = append(pending, *p)
	}
	return pending, rows.Err()
}
