package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/target/seclab-api/internal/domain/auth"
	"github.com/target/seclab-api/internal/domain/model"
	apperrors "github.com/target/seclab-api/internal/errors"
)

func TestUserRepo_CreateAndLookup(t *testing.T) {
	repo := NewUserRepo()
	ctx := context.Background()

	u, err := repo.Create(ctx, &model.CreateUserRequest{
		Username:     "alice",
		PasswordHash: "h",
		Role:         auth.RoleCustomer,
		Department:   "north",
		Email:        "alice@example.com",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), u.ID)
	assert.False(t, u.CreatedAt.IsZero())

	byName, err := repo.GetByUsername(ctx, "ALICE")
	require.NoError(t, err)
	assert.Equal(t, u.ID, byName.ID)

	byEmail, err := repo.GetByEmail(ctx, "alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, u.ID, byEmail.ID)

	_, err = repo.GetByEmail(ctx, "")
	assert.True(t, apperrors.IsNotFound(err))

	_, err = repo.GetByID(ctx, 99)
	assert.True(t, apperrors.IsNotFound(err))
}

func TestUserRepo_CreateDuplicate(t *testing.T) {
	repo := NewUserRepo()
	ctx := context.Background()

	_, err := repo.Create(ctx, &model.CreateUserRequest{Username: "bob", Role: auth.RoleUser})
	require.NoError(t, err)

	_, err = repo.Create(ctx, &model.CreateUserRequest{Username: "Bob", Role: auth.RoleUser})
	require.Error(t, err)
	assert.True(t, apperrors.IsConflict(err))
	assert.Equal(t, "username", apperrors.GetField(err))
}

func TestUserRepo_EmailIsUnique(t *testing.T) {
	repo := NewUserRepo()
	ctx := context.Background()

	alice, err := repo.Create(ctx, &model.CreateUserRequest{Username: "alice", Role: auth.RoleUser, Email: "shared@example.com"})
	require.NoError(t, err)
	bob, err := repo.Create(ctx, &model.CreateUserRequest{Username: "bob", Role: auth.RoleUser})
	require.NoError(t, err)
	_, err = repo.Create(ctx, &model.CreateUserRequest{Username: "carol", Role: auth.RoleUser})
	require.NoError(t, err, "empty emails never collide")

	_, err = repo.Create(ctx, &model.CreateUserRequest{Username: "mallory", Role: auth.RoleUser, Email: "SHARED@example.com"})
	assert.True(t, apperrors.IsConflict(err))
	assert.Equal(t, "email", apperrors.GetField(err))

	err = repo.UpdateEmail(ctx, bob.ID, "Shared@Example.com")
	assert.True(t, apperrors.IsConflict(err))
	assert.Equal(t, "email", apperrors.GetField(err))

	require.NoError(t, repo.UpdateEmail(ctx, alice.ID, "shared@example.com"))
	for range 50 {
		got, err := repo.GetByEmail(ctx, "shared@example.com")
		require.NoError(t, err)
		require.Equal(t, alice.ID, got.ID)
	}
}

func TestUserRepo_UpdateEmailAndList(t *testing.T) {
	repo := NewUserRepo()
	ctx := context.Background()

	for _, name := range []string{"a1", "b2", "c3"} {
		_, err := repo.Create(ctx, &model.CreateUserRequest{Username: name, Role: auth.RoleUser})
		require.NoError(t, err)
	}

	require.NoError(t, repo.UpdateEmail(ctx, 2, "new@example.com"))
	u, err := repo.GetByID(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, "new@example.com", u.Email)

	assert.True(t, apperrors.IsNotFound(repo.UpdateEmail(ctx, 42, "x@y.z")))

	all, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []int64{1, 2, 3}, []int64{all[0].ID, all[1].ID, all[2].ID})
}

func TestOrderRepo(t *testing.T) {
	repo := NewOrderRepo(
		model.Order{ID: 1, UserID: 1, Region: "north"},
		model.Order{ID: 2, UserID: 1, Region: "north"},
		model.Order{ID: 3, UserID: 2, Region: "south"},
	)
	ctx := context.Background()

	o, err := repo.GetByID(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, int64(2), o.UserID)

	_, err = repo.GetByID(ctx, 9)
	assert.True(t, apperrors.IsNotFound(err))

	owned, err := repo.ListByOwner(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, owned, 2)

	south, err := repo.ListByRegion(ctx, "south")
	require.NoError(t, err)
	require.Len(t, south, 1)
	assert.Equal(t, int64(3), south[0].ID)

	none, err := repo.ListByRegion(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestTransactionRepo_ListByOwner(t *testing.T) {
	repo := NewTransactionRepo(
		model.Transaction{ID: 1, UserID: 1, Amount: 25.5, Description: "Coffee shop"},
		model.Transaction{ID: 2, UserID: 1, Amount: 100, Description: "Groceries"},
		model.Transaction{ID: 3, UserID: 2, Amount: 5, Description: "Coffee cart"},
	)
	ctx := context.Background()

	all, err := repo.ListByOwner(ctx, model.TransactionListOptions{UserID: 1})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, int64(2), all[0].ID)

	coffee, err := repo.ListByOwner(ctx, model.TransactionListOptions{UserID: 1, Q: "COFFEE"})
	require.NoError(t, err)
	require.Len(t, coffee, 1)
	assert.Equal(t, int64(1), coffee[0].ID)

	injected, err := repo.ListByOwner(ctx, model.TransactionListOptions{UserID: 1, Q: "' OR '1'='1"})
	require.NoError(t, err)
	assert.Empty(t, injected)
}

func TestFeedbackRepo_NewestFirst(t *testing.T) {
	repo := NewFeedbackRepo()
	ctx := context.Background()

	for _, c := range []string{"one", "two", "three"} {
		_, err := repo.Create(ctx, "alice", c)
		require.NoError(t, err)
	}

	items, err := repo.List(ctx, 2)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "three", items[0].Comment)
	assert.Equal(t, "two", items[1].Comment)
}

func TestStationRepo_Search(t *testing.T) {
	repo := NewStationRepo(
		model.Station{ID: 1, Name: "Downtown Hub", Location: "Main St"},
		model.Station{ID: 2, Name: "Campus North", Location: "GMU North Gate"},
	)
	ctx := context.Background()

	all, err := repo.Search(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 2)

	byLoc, err := repo.Search(ctx, "main")
	require.NoError(t, err)
	require.Len(t, byLoc, 1)
	assert.Equal(t, int64(1), byLoc[0].ID)
}

func TestCreateAssignsNextID(t *testing.T) {
	ctx := context.Background()

	orders := NewOrderRepo(model.Order{ID: 4, UserID: 2})
	o, err := orders.Create(ctx, model.Order{UserID: 1, Item: "Cable", Region: "north"})
	require.NoError(t, err)
	assert.Equal(t, int64(5), o.ID)
	got, err := orders.GetByID(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, "Cable", got.Item)

	txs := NewTransactionRepo()
	require.NoError(t, txs.Create(ctx, model.Transaction{UserID: 1, Description: "first"}))
	require.NoError(t, txs.Create(ctx, model.Transaction{UserID: 1, Description: "second"}))
	list, err := txs.ListByOwner(ctx, model.TransactionListOptions{UserID: 1})
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, int64(2), list[0].ID)

	stations := NewStationRepo()
	require.NoError(t, stations.Create(ctx, model.Station{Name: "Depot"}))
	all, err := stations.Search(ctx, "")
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, int64(1), all[0].ID)
	assert.Equal(t, model.StationAvailable, all[0].Status)
}
