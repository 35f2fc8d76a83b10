package store

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/erazemk/zadolzitve/internal/model"
)

const (
	masterPID  int64 = 1000001
	clientAPID int64 = 2000001
	clientBPID int64 = 2000002
)

// seedUsers creates one master and two clients.
func seedUsers(t *testing.T, database *sql.DB) {
	t.Helper()
	ctx := context.Background()

	users := []model.User{
		{PersonalID: masterPID, FirstName: "Noa", LastName: "Master", Role: model.RoleMaster},
		{PersonalID: clientAPID, FirstName: "Avi", LastName: "Cohen", Role: model.RoleClient, Palga: "1", Team: "A"},
		{PersonalID: clientBPID, FirstName: "Bar", LastName: "Levi", Role: model.RoleClient, Palga: "1", Team: "B"},
	}
	for i := range users {
		users[i].PasswordHash = "hash"
		_, err := CreateUser(ctx, database, &users[i])
		require.NoError(t, err)
	}
}

func createClient(t *testing.T, database *sql.DB, pid int64) *model.User {
	t.Helper()
	u, err := CreateUser(context.Background(), database, &model.User{
		PersonalID: pid, FirstName: "Extra", LastName: "Client", PasswordHash: "hash",
		Role: model.RoleClient, Palga: "1", Team: "C",
	})
	require.NoError(t, err)
	return u
}

func seedItem(t *testing.T, database *sql.DB, name string, total int) *model.Item {
	t.Helper()
	item, err := CreateItem(context.Background(), database, model.ItemFields{Name: name}, total)
	require.NoError(t, err)
	return item
}

// signItem places qty of item on hold for client and commits it.
func signItem(t *testing.T, database *sql.DB, itemID, client int64, qty int) *model.Signing {
	t.Helper()
	ctx := context.Background()

	held, err := PlaceOnHold(ctx, database, masterPID, client, []model.HoldRequest{{ItemID: itemID, Quantity: qty}}, "")
	require.NoError(t, err)
	require.Len(t, held, 1)

	sg, err := CommitPending(ctx, database, held[0].ID)
	require.NoError(t, err)
	return sg
}

// requireConserved asserts every unit of the item is accounted for.
func requireConserved(t *testing.T, database *sql.DB, itemID int64) *model.ItemDistribution {
	t.Helper()
	d, err := GetItemDistribution(context.Background(), database, itemID)
	require.NoError(t, err)
	require.Equal(t, d.TotalCount, d.Accounted(), "distribution %+v", *d)
	require.GreaterOrEqual(t, d.Available, 0)
	return d
}
