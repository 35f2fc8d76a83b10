package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/erazemk/zadolzitve/internal/model"
)

// DefaultWorkflowTTL is how long a workflow context stays usable.
const DefaultWorkflowTTL = 15 * time.Minute

func createWorkflow(ctx context.Context, q querier, w *model.Workflow, ttl time.Duration) (*model.Workflow, error) {
	if ttl <= 0 {
		ttl = DefaultWorkflowTTL
	}
	out := *w
	out.ID = uuid.NewString()
	out.ExpiresAt = time.Now().UTC().Add(ttl).Truncate(time.Second)

	_, err := q.ExecContext(ctx,
		`INSERT INTO workflow_contexts (id, owner_pid, purpose, target_pid, source_pid, payload, expires_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		out.ID, out.OwnerPID, out.Purpose, out.TargetPID, out.SourcePID, out.Payload, out.ExpiresAt.Unix(),
	)
	if err != nil {
		return nil, fmt.Errorf("creating workflow context: %w", err)
	}
	return &out, nil
}

// CreateWorkflow stores a new workflow context and returns it with its token.
func CreateWorkflow(ctx context.Context, db *sql.DB, w *model.Workflow, ttl time.Duration) (*model.Workflow, error) {
	return createWorkflow(ctx, db, w, ttl)
}

func getWorkflow(ctx context.Context, q querier, id string, ownerPID int64, purpose string, now time.Time) (*model.Workflow, error) {
	w := &model.Workflow{}
	var expires int64
	err := q.QueryRowContext(ctx,
		`SELECT id, owner_pid, purpose, target_pid, source_pid, payload, expires_at
		 FROM workflow_contexts WHERE id = ?`, id,
	).Scan(&w.ID, &w.OwnerPID, &w.Purpose, &w.TargetPID, &w.SourcePID, &w.Payload, &expires)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: unknown workflow", ErrUnauthorized)
	}
	if err != nil {
		return nil, fmt.Errorf("getting workflow context: %w", err)
	}
	w.ExpiresAt = time.Unix(expires, 0).UTC()

	if w.OwnerPID != ownerPID || w.Purpose != purpose {
		return nil, fmt.Errorf("%w: workflow does not belong to this action", ErrUnauthorized)
	}
	if !now.Before(w.ExpiresAt) {
		return nil, fmt.Errorf("%w: workflow expired", ErrUnauthorized)
	}
	return w, nil
}

// GetWorkflow returns a live workflow context owned by ownerPID for purpose.
// Missing, expired and foreign contexts all yield ErrUnauthorized.
func GetWorkflow(ctx context.Context, db *sql.DB, id string, ownerPID int64, purpose string, now time.Time) (*model.Workflow, error) {
	return getWorkflow(ctx, db, id, ownerPID, purpose, now)
}

// DeleteWorkflow removes a workflow context.
func DeleteWorkflow(ctx context.Context, db *sql.DB, id string) error {
	if _, err := db.ExecContext(ctx, `DELETE FROM workflow_contexts WHERE id = ?`, id); err != nil {
		return fmt.Errorf("deleting workflow context: %w", err)
	}
	return nil
}

// PurgeExpiredWorkflows deletes contexts that expired before now.
func PurgeExpiredWorkflows(ctx context.Context, db *sql.DB, now time.Time) (int64, error) {
	result, err := db.ExecContext(ctx,
		`DELETE FROM workflow_contexts WHERE expires_at <= ?`, now.Unix(),
	)
	if err != nil {
		return 0, fmt.Errorf("purging workflow contexts: %w", err)
	}
	n, _ := result.RowsAffected()
	return n, nil
}
