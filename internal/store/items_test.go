package store

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erazemk/zadolzitve/internal/db"
	"github.com/erazemk/zadolzitve/internal/model"
)

func TestCreateAndGetItem(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	item, err := CreateItem(ctx, database, model.ItemFields{
		Name: "PRC-152", Category: "radio", SerialNo: "SN-1", Palga: "3",
	}, 10)
	if err != nil {
		t.Fatalf("CreateItem: %v", err)
	}
	if item.Count != 10 || item.TotalCount != 10 {
		t.Errorf("expected count=total=10, got %d/%d", item.Count, item.TotalCount)
	}
	if item.IsKit() {
		t.Error("new item reported as kit")
	}

	got, err := GetItem(ctx, database, item.ID)
	if err != nil {
		t.Fatalf("GetItem: %v", err)
	}
	if got.SerialNo != "SN-1" {
		t.Errorf("expected serial 'SN-1', got %q", got.SerialNo)
	}

	missing, err := GetItem(ctx, database, 999)
	if err != nil || missing != nil {
		t.Errorf("expected nil, nil for missing item, got %v, %v", missing, err)
	}
}

func TestCreateItemValidation(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	tests := []struct {
		name   string
		fields model.ItemFields
		total  int
	}{
		{"empty name", model.ItemFields{}, 1},
		{"zero total", model.ItemFields{Name: "Rope"}, 0},
		{"kit category", model.ItemFields{Name: "Rope", Category: model.CategoryKit}, 1},
	}
	for _, tt := range tests {
		if _, err := CreateItem(ctx, database, tt.fields, tt.total); !errors.Is(err, ErrValidation) {
			t.Errorf("%s: expected validation error, got %v", tt.name, err)
		}
	}
}

func TestListItemsAvailable(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	seedUsers(t, database)

	seedItem(t, database, "Helmet", 2)
	vest := seedItem(t, database, "Vest", 1)
	signItem(t, database, vest.ID, clientAPID, 1)

	all, err := ListItems(ctx, database, false)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	available, err := ListItems(ctx, database, true)
	require.NoError(t, err)
	require.Len(t, available, 1)
	assert.Equal(t, "Helmet", available[0].Name)
}

func TestUpdateItemResize(t *testing.T) {
	tests := []struct {
		name      string
		count     int // units left in the pool before resizing
		newTotal  int
		wantCount int
		wantErr   error
	}{
		{"grow with stock out", 6, 12, 8, nil},
		{"shrink with nothing out", 10, 3, 3, nil},
		{"shrink within available", 6, 8, 4, nil},
		{"shrink to exactly what is out", 6, 4, 0, nil},
		{"shrink below out on loan", 2, 6, 0, ErrValidation},
		{"shrink below available", 5, 3, 0, ErrValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			database := db.NewTestDB(t)
			ctx := context.Background()
			seedUsers(t, database)

			item := seedItem(t, database, "Battery", 10)
			var sg *model.Signing
			if out := 10 - tt.count; out > 0 {
				sg = signItem(t, database, item.ID, clientAPID, out)
			}

			updated, err := UpdateItem(ctx, database, item.ID, model.ItemFields{Name: "Battery"}, tt.newTotal)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				got, _ := GetItem(ctx, database, item.ID)
				assert.Equal(t, 10, got.TotalCount, "rejected resize mutated the item")
				assert.Equal(t, tt.count, got.Count, "rejected resize mutated the item")
				requireConserved(t, database, item.ID)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.newTotal, updated.TotalCount)
			assert.Equal(t, tt.wantCount, updated.Count)
			requireConserved(t, database, item.ID)

			// Everything out on loan can still come back.
			if sg != nil {
				require.NoError(t, CreditSigning(ctx, database, masterPID, sg.ID, sg.Quantity))
			}
			d := requireConserved(t, database, item.ID)
			assert.Equal(t, tt.newTotal, d.Available)
			require.NoError(t, DeleteItem(ctx, database, item.ID))
		})
	}
}

func TestDeleteItemGuards(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	seedUsers(t, database)

	item := seedItem(t, database, "Scope", 3)
	sg := signItem(t, database, item.ID, clientAPID, 1)

	require.ErrorIs(t, DeleteItem(ctx, database, item.ID), ErrInvariant)

	require.NoError(t, CreditSigning(ctx, database, masterPID, sg.ID, 1))
	_, err := AddAmplifierTracking(ctx, database, item.ID, "calibration", 30)
	require.NoError(t, err)

	require.NoError(t, DeleteItem(ctx, database, item.ID))
	got, _ := GetItem(ctx, database, item.ID)
	assert.Nil(t, got)

	tracked, err := ListAmplifierTracking(ctx, database, nil)
	require.NoError(t, err)
	assert.Empty(t, tracked)

	require.ErrorIs(t, DeleteItem(ctx, database, item.ID), ErrNotFound)
}

func TestItemImage(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	item := seedItem(t, database, "Goggles", 1)
	require.NoError(t, SetItemImage(ctx, database, item.ID, []byte{0xff, 0xd8}, "image/jpeg"))

	data, mime, err := GetItemImage(ctx, database, item.ID)
	require.NoError(t, err)
	assert.Equal(t, "image/jpeg", mime)
	assert.Equal(t, []byte{0xff, 0xd8}, data)

	require.ErrorIs(t, SetItemImage(ctx, database, 999, nil, ""), ErrNotFound)
}
