package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erazemk/zadolzitve/internal/db"
	"github.com/erazemk/zadolzitve/internal/model"
)

func TestHoldCommitCredit(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	seedUsers(t, database)
	item := seedItem(t, database, "Night vision", 10)

	held, err := PlaceOnHold(ctx, database, masterPID, clientAPID,
		[]model.HoldRequest{{ItemID: item.ID, Quantity: 4}}, "exercise")
	require.NoError(t, err)
	require.Len(t, held, 1)
	assert.Equal(t, 4, held[0].Quantity)

	d := requireConserved(t, database, item.ID)
	assert.Equal(t, 6, d.Available)
	assert.Equal(t, 4, d.Pending)

	sg, err := CommitPending(ctx, database, held[0].ID)
	require.NoError(t, err)
	assert.Equal(t, 4, sg.Quantity)
	assert.Equal(t, clientAPID, sg.ClientPID)
	assert.Equal(t, "exercise", sg.Description)

	pending, err := ListPending(ctx, database, 0)
	require.NoError(t, err)
	assert.Empty(t, pending)

	d = requireConserved(t, database, item.ID)
	assert.Equal(t, 6, d.Available)
	assert.Equal(t, 4, d.Signed)

	require.NoError(t, CreditSigning(ctx, database, masterPID, sg.ID, 4))

	gone, err := GetSigning(ctx, database, sg.ID)
	require.NoError(t, err)
	assert.Nil(t, gone)

	d = requireConserved(t, database, item.ID)
	assert.Equal(t, 10, d.Available)

	logs, err := ListLogs(ctx, database, "")
	require.NoError(t, err)
	require.Len(t, logs, 2)
	assert.Equal(t, model.ActionCredit, logs[0].Action)
	assert.Equal(t, model.ActionNewSigning, logs[1].Action)
	assert.Contains(t, logs[1].Description, "Avi Cohen (2000001)")
}

func TestPlaceOnHoldFailFast(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	seedUsers(t, database)
	a := seedItem(t, database, "Compass", 5)
	b := seedItem(t, database, "Map case", 1)
	c := seedItem(t, database, "Canteen", 5)

	held, err := PlaceOnHold(ctx, database, masterPID, clientAPID, []model.HoldRequest{
		{ItemID: a.ID, Quantity: 2},
		{ItemID: b.ID, Quantity: 3},
		{ItemID: c.ID, Quantity: 1},
	}, "")
	require.ErrorIs(t, err, ErrInvariant)
	require.Len(t, held, 1, "entries before the failure stay placed")

	for _, id := range []int64{a.ID, b.ID, c.ID} {
		requireConserved(t, database, id)
	}
	got, _ := GetItem(ctx, database, c.ID)
	assert.Equal(t, 5, got.Count, "entries after the failure must not run")
}

func TestPlaceOnHoldUnknownClient(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	seedUsers(t, database)
	item := seedItem(t, database, "Knife", 2)

	_, err := PlaceOnHold(ctx, database, masterPID, masterPID,
		[]model.HoldRequest{{ItemID: item.ID, Quantity: 1}}, "")
	require.ErrorIs(t, err, ErrValidation)

	got, _ := GetItem(ctx, database, item.ID)
	assert.Equal(t, 2, got.Count)
}

func TestReleaseHold(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	seedUsers(t, database)
	item := seedItem(t, database, "Stretcher", 3)

	held, err := PlaceOnHold(ctx, database, masterPID, clientAPID,
		[]model.HoldRequest{{ItemID: item.ID, Quantity: 3}}, "")
	require.NoError(t, err)

	require.NoError(t, ReleaseHold(ctx, database, held[0].ID))
	d := requireConserved(t, database, item.ID)
	assert.Equal(t, 3, d.Available)

	require.ErrorIs(t, ReleaseHold(ctx, database, held[0].ID), ErrNotFound)
}

func TestCreditValidation(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	seedUsers(t, database)
	item := seedItem(t, database, "Binoculars", 5)
	sg := signItem(t, database, item.ID, clientAPID, 3)

	require.ErrorIs(t, CreditSigning(ctx, database, masterPID, sg.ID, 4), ErrInvariant)
	require.ErrorIs(t, CreditSigning(ctx, database, masterPID, sg.ID, 0), ErrValidation)
	require.ErrorIs(t, CreditSigning(ctx, database, masterPID, 999, 1), ErrNotFound)

	// Partial credit decrements the signing.
	require.NoError(t, CreditSigning(ctx, database, masterPID, sg.ID, 1))
	got, _ := GetSigning(ctx, database, sg.ID)
	require.NotNil(t, got)
	assert.Equal(t, 2, got.Quantity)
	requireConserved(t, database, item.ID)
}

func TestCreditSigningBatch(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	seedUsers(t, database)
	item := seedItem(t, database, "Flashlight", 6)
	s1 := signItem(t, database, item.ID, clientAPID, 2)
	s2 := signItem(t, database, item.ID, clientBPID, 2)

	n, err := CreditSigningBatch(ctx, database, masterPID, []model.QuantityRequest{
		{ID: s1.ID, Quantity: 2},
		{ID: s2.ID, Quantity: 5},
	})
	require.ErrorIs(t, err, ErrInvariant)
	assert.Equal(t, 1, n)

	d := requireConserved(t, database, item.ID)
	assert.Equal(t, 4, d.Available)
	assert.Equal(t, 2, d.Signed)
}

func TestPartialTransfer(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	seedUsers(t, database)
	item := seedItem(t, database, "Jerrycan", 8)
	sg := signItem(t, database, item.ID, clientAPID, 5)

	moved, err := TransferSigning(ctx, database, masterPID, sg.ID, 2, clientBPID, "handover")
	require.NoError(t, err)
	assert.NotEqual(t, sg.ID, moved.ID)
	assert.Equal(t, clientBPID, moved.ClientPID)
	assert.Equal(t, 2, moved.Quantity)
	assert.Equal(t, item.ID, moved.ItemID)

	orig, _ := GetSigning(ctx, database, sg.ID)
	assert.Equal(t, clientAPID, orig.ClientPID)
	assert.Equal(t, 3, orig.Quantity)

	d := requireConserved(t, database, item.ID)
	assert.Equal(t, 3, d.Available, "transfer must not touch the pool")
}

func TestFullTransfer(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	seedUsers(t, database)
	item := seedItem(t, database, "Tent", 2)
	sg := signItem(t, database, item.ID, clientAPID, 2)

	moved, err := TransferSigning(ctx, database, masterPID, sg.ID, 2, clientBPID, "new owner")
	require.NoError(t, err)
	assert.Equal(t, sg.ID, moved.ID)
	assert.Equal(t, clientBPID, moved.ClientPID)
	assert.Equal(t, "new owner", moved.Description)

	_, err = TransferSigning(ctx, database, masterPID, sg.ID, 1, clientBPID, "")
	require.ErrorIs(t, err, ErrValidation, "same-client transfer")
	_, err = TransferSigning(ctx, database, masterPID, sg.ID, 3, clientAPID, "")
	require.ErrorIs(t, err, ErrInvariant)

	logs, _ := ListLogs(ctx, database, model.ActionSwitchSigning)
	assert.Len(t, logs, 1)
}
