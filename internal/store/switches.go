package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/erazemk/zadolzitve/internal/model"
)

const switchSelect = `SELECT r.id, r.signing_id, r.old_pid, r.new_pid, r.quantity, r.description, r.status,
	        r.initiated_by, r.master_initiated, r.created_at, COALESCE(i.name, '')
	 FROM switch_requests r
	 LEFT JOIN signings s ON s.id = r.signing_id
	 LEFT JOIN items i ON i.id = s.item_id`

func scanSwitch(s rowScanner) (*model.SwitchRequest, error) {
	r := &model.SwitchRequest{}
	if err := s.Scan(&r.ID, &r.SigningID, &r.OldPID, &r.NewPID, &r.Quantity, &r.Description, &r.Status,
		&r.InitiatedBy, &r.MasterInitiated, &r.CreatedAt, &r.ItemName); err != nil {
		return nil, err
	}
	return r, nil
}

func getSwitch(ctx context.Context, q querier, id int64) (*model.SwitchRequest, error) {
	r, err := scanSwitch(q.QueryRowContext(ctx, switchSelect+` WHERE r.id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting switch request: %w", err)
	}
	return r, nil
}

// GetSwitchRequest returns a switch request by ID.
func GetSwitchRequest(ctx context.Context, db *sql.DB, id int64) (*model.SwitchRequest, error) {
	return getSwitch(ctx, db, id)
}

// FileClientSwitch files one request per selected signing of oldPID, asking
// newPID to take it over. Requests start awaiting the new signer.
func FileClientSwitch(ctx context.Context, db *sql.DB, oldPID, newPID int64, reqs []model.QuantityRequest, description string) ([]model.SwitchRequest, error) {
	return fileSwitches(ctx, db, oldPID, oldPID, newPID, false, reqs, description)
}

// FileMasterSwitch files master-initiated requests moving signings of oldPID
// to newPID. They skip the new signer's approval.
func FileMasterSwitch(ctx context.Context, db *sql.DB, masterPID, oldPID, newPID int64, reqs []model.QuantityRequest, description string) ([]model.SwitchRequest, error) {
	return fileSwitches(ctx, db, masterPID, oldPID, newPID, true, reqs, description)
}

func fileSwitches(ctx context.Context, db *sql.DB, initiatedBy, oldPID, newPID int64, master bool, reqs []model.QuantityRequest, description string) ([]model.SwitchRequest, error) {
	if oldPID == newPID {
		return nil, fmt.Errorf("%w: old and new signer are the same", ErrValidation)
	}
	if _, err := requireClient(ctx, db, newPID); err != nil {
		return nil, err
	}

	status := model.SwitchPendingNewSigner
	if master {
		status = model.SwitchPendingMaster
	}

	var filed []model.SwitchRequest
	for _, req := range reqs {
		sg, err := getSigning(ctx, db, req.ID)
		if err != nil {
			return filed, err
		}
		if sg == nil {
			return filed, fmt.Errorf("%w: signing %d", ErrNotFound, req.ID)
		}
		if sg.ClientPID != oldPID {
			return filed, fmt.Errorf("%w: signing %d is not held by %d", ErrUnauthorized, req.ID, oldPID)
		}
		if req.Quantity <= 0 {
			return filed, fmt.Errorf("%w: quantity must be positive", ErrValidation)
		}
		if req.Quantity > sg.Quantity {
			return filed, fmt.Errorf("%w: cannot switch %d, signing %d holds %d",
				ErrValidation, req.Quantity, req.ID, sg.Quantity)
		}

		result, err := db.ExecContext(ctx,
			`INSERT INTO switch_requests (signing_id, old_pid, new_pid, quantity, description, status,
			                              initiated_by, master_initiated, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			req.ID, oldPID, newPID, req.Quantity, description, status, initiatedBy, master, time.Now().UTC(),
		)
		if err != nil {
			return filed, fmt.Errorf("creating switch request: %w", err)
		}
		id, err := result.LastInsertId()
		if err != nil {
			return filed, fmt.Errorf("getting switch request id: %w", err)
		}
		r, err := getSwitch(ctx, db, id)
		if err != nil {
			return filed, err
		}
		filed = append(filed, *r)
	}
	return filed, nil
}

// ApproveAsNewSigner moves requests addressed to newPID on to master approval.
// It returns how many requests were approved before the first failure.
func ApproveAsNewSigner(ctx context.Context, db *sql.DB, newPID int64, ids []int64) (int, error) {
	for i, id := range ids {
		result, err := db.ExecContext(ctx,
			`UPDATE switch_requests SET status = ? WHERE id = ? AND new_pid = ? AND status = ?`,
			model.SwitchPendingMaster, id, newPID, model.SwitchPendingNewSigner,
		)
		if err != nil {
			return i, fmt.Errorf("approving switch request: %w", err)
		}
		if n, _ := result.RowsAffected(); n == 1 {
			continue
		}

		// Nothing changed: report why.
		r, err := getSwitch(ctx, db, id)
		if err != nil {
			return i, err
		}
		switch {
		case r == nil:
			return i, fmt.Errorf("%w: switch request %d", ErrNotFound, id)
		case r.NewPID != newPID:
			return i, fmt.Errorf("%w: switch request %d is not addressed to %d", ErrUnauthorized, id, newPID)
		default:
			return i, fmt.Errorf("%w: switch request %d is %s", ErrValidation, id, r.Status)
		}
	}
	return len(ids), nil
}

// ApproveSwitchRequests finalizes requests on behalf of a master. Each request
// is handled in its own transaction. A request whose signing vanished, changed
// hands or shrank below the requested quantity is marked impossible instead of
// failing the batch. The error is only set on storage failures.
func ApproveSwitchRequests(ctx context.Context, db *sql.DB, masterPID int64, ids []int64) ([]model.SwitchOutcome, error) {
	var outcomes []model.SwitchOutcome
	for _, id := range ids {
		out, err := approveSwitch(ctx, db, masterPID, id)
		if err != nil {
			return outcomes, fmt.Errorf("approving switch request %d: %w", id, err)
		}
		outcomes = append(outcomes, out)
	}
	return outcomes, nil
}

func approveSwitch(ctx context.Context, db *sql.DB, masterPID, id int64) (model.SwitchOutcome, error) {
	out := model.SwitchOutcome{RequestID: id}
	err := withTx(ctx, db, func(tx *sql.Tx) error {
		r, err := getSwitch(ctx, tx, id)
		if err != nil {
			return err
		}
		if r == nil {
			out.Reason = "switch request not found"
			return nil
		}
		out.Status = r.Status
		if !r.AwaitsMaster() {
			out.Reason = "switch request is " + r.Status.String()
			return nil
		}

		sg, err := getSigning(ctx, tx, r.SigningID)
		if err != nil {
			return err
		}
		newClient, err := getUserByPersonalID(ctx, tx, r.NewPID)
		if err != nil {
			return err
		}

		var reason string
		switch {
		case sg == nil:
			reason = "signing no longer exists"
		case sg.ClientPID != r.OldPID:
			reason = "signing changed hands"
		case sg.Quantity < r.Quantity:
			reason = fmt.Sprintf("signing holds %d, %d requested", sg.Quantity, r.Quantity)
		case newClient == nil || newClient.Role != model.RoleClient:
			reason = "new signer no longer exists"
		}
		if reason != "" {
			if _, err := tx.ExecContext(ctx,
				`UPDATE switch_requests SET status = ? WHERE id = ?`, model.SwitchImpossible, id,
			); err != nil {
				return fmt.Errorf("marking switch request impossible: %w", err)
			}
			out.Status = model.SwitchImpossible
			out.Reason = reason
			return nil
		}

		if _, err := transferTx(ctx, tx, sg, masterPID, r.Quantity, r.NewPID, r.Description); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM switch_requests WHERE id = ?`, id); err != nil {
			return fmt.Errorf("deleting switch request: %w", err)
		}
		out.Approved = true
		out.Status = 0
		return nil
	})
	return out, err
}

// RejectSwitchRequests deletes requests without transferring anything.
// Masters may reject any request, clients only those they are a party to.
func RejectSwitchRequests(ctx context.Context, db *sql.DB, actor model.Identity, ids []int64) (int, error) {
	for i, id := range ids {
		r, err := getSwitch(ctx, db, id)
		if err != nil {
			return i, err
		}
		if r == nil {
			return i, fmt.Errorf("%w: switch request %d", ErrNotFound, id)
		}
		if c, ok := actor.(*model.Client); ok && c.PersonalID != r.OldPID && c.PersonalID != r.NewPID {
			return i, fmt.Errorf("%w: not a party to switch request %d", ErrUnauthorized, id)
		}
		if _, err := db.ExecContext(ctx, `DELETE FROM switch_requests WHERE id = ?`, id); err != nil {
			return i, fmt.Errorf("deleting switch request: %w", err)
		}
	}
	return len(ids), nil
}

// ReconcileSwitchRequests deletes requests whose signing no longer exists.
func ReconcileSwitchRequests(ctx context.Context, db *sql.DB) (int64, error) {
	result, err := db.ExecContext(ctx,
		`DELETE FROM switch_requests WHERE signing_id NOT IN (SELECT id FROM signings)`,
	)
	if err != nil {
		return 0, fmt.Errorf("reconciling switch requests: %w", err)
	}
	n, _ := result.RowsAffected()
	return n, nil
}

// SwitchFilter narrows ListSwitchRequests. Zero fields match everything.
type SwitchFilter struct {
	OldPID       int64
	NewPID       int64
	AwaitsMaster bool
}

// ListSwitchRequests reconciles and then returns the matching requests.
func ListSwitchRequests(ctx context.Context, db *sql.DB, f SwitchFilter) ([]model.SwitchRequest, error) {
	if _, err := ReconcileSwitchRequests(ctx, db); err != nil {
		return nil, err
	}

	query := switchSelect + ` WHERE 1 = 1`
	var args []any
	if f.OldPID != 0 {
		query += ` AND r.old_pid = ?`
		args = append(args, f.OldPID)
	}
	if f.NewPID != 0 {
		query += ` AND r.new_pid = ?`
		args = append(args, f.NewPID)
	}
	query += ` ORDER BY r.id`

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing switch requests: %w", err)
	}
	defer rows.Close()

	var requests []model.SwitchRequest
	for rows.Next() {
		r, err := scanSwitch(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning switch request: %w", err)
		}
		if f.AwaitsMaster && !r.AwaitsMaster() {
			continue
		}
		requests = append(requests, *r)
	}
	return requests, rows.Err()
}

