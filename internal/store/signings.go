package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/erazemk/zadolzitve/internal/model"
)

const signingSelect = `SELECT s.id, s.item_id, s.master_pid, s.client_pid, s.quantity, s.description, s.date,
	        i.name, COALESCE(c.first_name || ' ' || c.last_name, ''), COALESCE(m.first_name || ' ' || m.last_name, '')
	 FROM signings s
	 JOIN items i ON i.id = s.item_id
	 LEFT JOIN users c ON c.personal_id = s.client_pid
	 LEFT JOIN users m ON m.personal_id = s.master_pid`

func scanSigning(s rowScanner) (*model.Signing, error) {
	sg := &model.Signing{}
	if err := s.Scan(&sg.ID, &sg.ItemID, &sg.MasterPID, &sg.ClientPID, &sg.Quantity, &sg.Description,
		&sg.Date, &sg.ItemName, &sg.ClientName, &sg.MasterName); err != nil {
		return nil, err
	}
	return sg, nil
}

func getSigning(ctx context.Context, q querier, id int64) (*model.Signing, error) {
	sg, err := scanSigning(q.QueryRowContext(ctx, signingSelect+` WHERE s.id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting signing: %w", err)
	}
	return sg, nil
}

// GetSigning returns a signing by ID.
func GetSigning(ctx context.Context, db *sql.DB, id int64) (*model.Signing, error) {
	return getSigning(ctx, db, id)
}

// ListSignings returns signings, all of them when clientPID is 0.
func ListSignings(ctx context.Context, db *sql.DB, clientPID int64) ([]model.Signing, error) {
	query := signingSelect
	var args []any
	if clientPID != 0 {
		query += ` WHERE s.client_pid = ?`
		args = append(args, clientPID)
	}
	query += ` ORDER BY s.date DESC, s.id DESC`

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing signings: %w", err)
	}
	defer rows.Close()

	var signings []model.Signing
	for rows.Next() {
		sg, err := scanSigning(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning signing: %w", err)
		}
		signings = append(signings, *sg)
	}
	return signings, rows.Err()
}

// CreditSigning returns qty of a signing to the pool. A fully credited
// signing is removed.
func CreditSigning(ctx context.Context, db *sql.DB, masterPID, signingID int64, qty int) error {
	return withTx(ctx, db, func(tx *sql.Tx) error {
		sg, err := getSigning(ctx, tx, signingID)
		if err != nil {
			return err
		}
		if sg == nil {
			return fmt.Errorf("%w: signing %d", ErrNotFound, signingID)
		}
		if qty <= 0 {
			return fmt.Errorf("%w: quantity must be positive", ErrValidation)
		}
		if qty > sg.Quantity {
			return fmt.Errorf("%w: cannot credit %d, signing holds %d", ErrInvariant, qty, sg.Quantity)
		}

		if _, err := increaseCount(ctx, tx, sg.ItemID, qty); err != nil {
			return err
		}

		master, err := describeUser(ctx, tx, masterPID)
		if err != nil {
			return err
		}
		client, err := describeUser(ctx, tx, sg.ClientPID)
		if err != nil {
			return err
		}
		if err := appendLog(ctx, tx, model.ActionCredit, fmt.Sprintf(
			"%s credited %d x %s (item %d) from %s", master, qty, sg.ItemName, sg.ItemID, client,
		)); err != nil {
			return err
		}

		if qty == sg.Quantity {
			_, err = tx.ExecContext(ctx, `DELETE FROM signings WHERE id = ?`, signingID)
		} else {
			_, err = tx.ExecContext(ctx, `UPDATE signings SET quantity = quantity - ? WHERE id = ?`, qty, signingID)
		}
		if err != nil {
			return fmt.Errorf("updating signing: %w", err)
		}
		return nil
	})
}

// CreditSigningBatch credits each request independently, stopping at the
// first failure. It returns how many requests were credited.
func CreditSigningBatch(ctx context.Context, db *sql.DB, masterPID int64, reqs []model.QuantityRequest) (int, error) {
	for i, r := range reqs {
		if err := CreditSigning(ctx, db, masterPID, r.ID, r.Quantity); err != nil {
			return i, fmt.Errorf("crediting signing %d: %w", r.ID, err)
		}
	}
	return len(reqs), nil
}

// TransferSigning moves qty of a signing to newClientPID on behalf of a
// master. Returns the signing now held by the new client.
func TransferSigning(ctx context.Context, db *sql.DB, masterPID, signingID int64, qty int, newClientPID int64, description string) (*model.Signing, error) {
	var id int64
	err := withTx(ctx, db, func(tx *sql.Tx) error {
		sg, err := getSigning(ctx, tx, signingID)
		if err != nil {
			return err
		}
		if sg == nil {
			return fmt.Errorf("%w: signing %d", ErrNotFound, signingID)
		}
		id, err = transferTx(ctx, tx, sg, masterPID, qty, newClientPID, description)
		return err
	})
	if err != nil {
		return nil, err
	}
	return GetSigning(ctx, db, id)
}

// transferTx moves qty of sg to newClientPID. A full transfer rewrites the
// signing in place, a partial one splits off a new signing attributed to the
// acting master. The pool is not touched.
func transferTx(ctx context.Context, tx *sql.Tx, sg *model.Signing, masterPID int64, qty int, newClientPID int64, description string) (int64, error) {
	if qty <= 0 {
		return 0, fmt.Errorf("%w: quantity must be positive", ErrValidation)
	}
	if qty > sg.Quantity {
		return 0, fmt.Errorf("%w: cannot transfer %d, signing holds %d", ErrInvariant, qty, sg.Quantity)
	}
	if newClientPID == sg.ClientPID {
		return 0, fmt.Errorf("%w: signing already belongs to %d", ErrValidation, newClientPID)
	}
	newClient, err := requireClient(ctx, tx, newClientPID)
	if err != nil {
		return 0, err
	}

	now := time.Now().UTC()
	id := sg.ID
	if qty == sg.Quantity {
		_, err = tx.ExecContext(ctx,
			`UPDATE signings SET client_pid = ?, description = ?, date = ? WHERE id = ?`,
			newClientPID, description, now, sg.ID,
		)
		if err != nil {
			return 0, fmt.Errorf("moving signing: %w", err)
		}
	} else {
		if _, err := tx.ExecContext(ctx,
			`UPDATE signings SET quantity = quantity - ? WHERE id = ?`, qty, sg.ID,
		); err != nil {
			return 0, fmt.Errorf("splitting signing: %w", err)
		}
		result, err := tx.ExecContext(ctx,
			`INSERT INTO signings (item_id, master_pid, client_pid, quantity, description, date)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			sg.ItemID, masterPID, newClientPID, qty, description, now,
		)
		if err != nil {
			return 0, fmt.Errorf("creating split signing: %w", err)
		}
		if id, err = result.LastInsertId(); err != nil {
			return 0, fmt.Errorf("getting signing id: %w", err)
		}
	}

	master, err := describeUser(ctx, tx, masterPID)
	if err != nil {
		return 0, err
	}
	oldClient, err := describeUser(ctx, tx, sg.ClientPID)
	if err != nil {
		return 0, err
	}
	if err := appendLog(ctx, tx, model.ActionSwitchSigning, fmt.Sprintf(
		"%s switched %d x %s (item %d) from %s to %s",
		master, qty, sg.ItemName, sg.ItemID, oldClient, newClient.Presentation(),
	)); err != nil {
		return 0, err
	}
	return id, nil
}
