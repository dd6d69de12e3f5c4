package user

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/redmonkez12/cicero/internal/database/dbtest"
)

func TestRepository_CreateAndGet(t *testing.T) {
	repo := NewRepository(dbtest.New(t))
	ctx := context.Background()

	created, err := repo.Create(ctx, NewUser{
		Name:    "Ada",
		Email:   "ada@example.com",
		Account: LocalAccount{Hash: "h1"},
	})
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, created.ID)

	byEmail, err := repo.GetByEmail(ctx, "ada@example.com")
	require.NoError(t, err)
	assert.Equal(t, created.ID, byEmail.ID)
	assert.Equal(t, LocalAccount{Hash: "h1"}, byEmail.Account)

	byID, err := repo.GetByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Ada", byID.Name)
}

func TestRepository_DuplicateEmail(t *testing.T) {
	repo := NewRepository(dbtest.New(t))
	ctx := context.Background()

	_, err := repo.Create(ctx, NewUser{Name: "Ada", Email: "ada@example.com", Account: LocalAccount{Hash: "h"}})
	require.NoError(t, err)

	_, err = repo.Create(ctx, NewUser{Name: "Eve", Email: "ada@example.com", Account: FederatedAccount{Subject: "g-1"}})
	assert.ErrorIs(t, err, ErrDuplicateEmail)
}

func TestRepository_NotFound(t *testing.T) {
	repo := NewRepository(dbtest.New(t))
	ctx := context.Background()

	_, err := repo.GetByEmail(ctx, "ghost@example.com")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = repo.GetByExternalID(ctx, "g-404")
	assert.ErrorIs(t, err, ErrNotFound)

	err = repo.UpdatePassword(ctx, uuid.New(), "h")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRepository_BindExternalIDMakesHybrid(t *testing.T) {
	repo := NewRepository(dbtest.New(t))
	ctx := context.Background()

	u, err := repo.Create(ctx, NewUser{Name: "Ada", Email: "ada@example.com", Account: LocalAccount{Hash: "h"}})
	require.NoError(t, err)

	require.NoError(t, repo.BindExternalID(ctx, u.ID, "g-42"))

	got, err := repo.GetByExternalID(ctx, "g-42")
	require.NoError(t, err)
	assert.Equal(t, HybridAccount{Hash: "h", Subject: "g-42"}, got.Account)
}

func TestRepository_UpdatePasswordOnFederated(t *testing.T) {
	repo := NewRepository(dbtest.New(t))
	ctx := context.Background()

	u, err := repo.Create(ctx, NewUser{Name: "Fed", Email: "fed@example.com", ProfilePic: "https://img", Account: FederatedAccount{Subject: "g-7"}})
	require.NoError(t, err)
	_, hasPassword := u.Account.PasswordHash()
	assert.False(t, hasPassword)

	require.NoError(t, repo.UpdatePassword(ctx, u.ID, "new-hash"))

	got, err := repo.GetByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, HybridAccount{Hash: "new-hash", Subject: "g-7"}, got.Account)
	assert.Equal(t, "https://img", got.ProfilePic)
}

func TestRepository_CreateRequiresAccount(t *testing.T) {
	repo := NewRepository(dbtest.New(t))

	_, err := repo.Create(context.Background(), NewUser{Name: "x", Email: "x@example.com"})
	assert.ErrorIs(t, err, ErrNoCredential)
}

func TestAccountTransitions(t *testing.T) {
	assert.Equal(t, HybridAccount{Hash: "h", Subject: "s"}, WithExternalID(LocalAccount{Hash: "h"}, "s"))
	assert.Equal(t, FederatedAccount{Subject: "s"}, WithExternalID(FederatedAccount{Subject: "old"}, "s"))

	assert.Equal(t, []string{"password"}, LoginMethods(LocalAccount{}))
	assert.Equal(t, []string{"google"}, LoginMethods(FederatedAccount{}))
	assert.Equal(t, []string{"password", "google"}, LoginMethods(HybridAccount{}))
}
