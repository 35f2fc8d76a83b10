package jobs

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erazemk/zadolzitve/internal/db"
	"github.com/erazemk/zadolzitve/internal/model"
	"github.com/erazemk/zadolzitve/internal/store"
)

func TestPurge(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	// Purge uses the real clock, so back-date the context.
	w, err := store.CreateWorkflow(ctx, database, &model.Workflow{OwnerPID: 1, Purpose: model.WorkflowNewSigning}, time.Second)
	require.NoError(t, err)
	_, err = database.ExecContext(ctx, `UPDATE workflow_contexts SET expires_at = ? WHERE id = ?`,
		time.Now().Add(-time.Minute).Unix(), w.ID)
	require.NoError(t, err)
	require.NoError(t, store.RevokeToken(ctx, database, "old", time.Now().Add(-time.Hour)))

	require.NoError(t, Purge(ctx, database))

	var n int
	require.NoError(t, database.QueryRow(`SELECT COUNT(*) FROM workflow_contexts`).Scan(&n))
	assert.Zero(t, n)
	revoked, err := store.IsTokenRevoked(ctx, database, "old")
	require.NoError(t, err)
	assert.False(t, revoked)
}

func TestSchedulerLifecycle(t *testing.T) {
	database := db.NewTestDB(t)

	s, err := New(database, time.Hour)
	require.NoError(t, err)
	s.Start()
	require.NoError(t, s.Stop())
	assert.ErrorIs(t, s.ctx.Err(), context.Canceled, "Stop must cancel the job context")
}

func TestPurgeStopsOnCancelledContext(t *testing.T) {
	database := db.NewTestDB(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.Error(t, Purge(ctx, database))
}
