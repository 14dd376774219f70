package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/vibely-go-api/internal/models"
)

func TestUserRepositoryCreateRejectsDuplicateUserCode(t *testing.T) {
	db := newTestDB(t)
	repo := NewUserRepository(db)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, &models.User{ID: "u1", Username: "alice", UserCode: "alice#1234"}))
	require.ErrorIs(t, repo.Create(ctx, &models.User{ID: "u2", Username: "alice", UserCode: "alice#1234"}), ErrConflict)
	require.ErrorIs(t, repo.Create(ctx, &models.User{ID: "u1", Username: "other", UserCode: "other#1111"}), ErrConflict)

	found, err := repo.GetByUserCode(ctx, "alice#1234")
	require.NoError(t, err)
	require.Equal(t, "u1", found.ID)
}

func TestUserRepositoryUpdateChecksUserCodeUniqueness(t *testing.T) {
	db := newTestDB(t)
	repo := NewUserRepository(db)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, &models.User{ID: "u1", Username: "alice", UserCode: "alice#1234"}))
	require.NoError(t, repo.Create(ctx, &models.User{ID: "u2", Username: "bob", UserCode: "bob#4321"}))

	bob, err := repo.Get(ctx, "u2")
	require.NoError(t, err)
	bob.UserCode = "alice#1234"
	require.ErrorIs(t, repo.Update(ctx, &bob), ErrConflict)

	bob.UserCode = "bob#4321"
	bob.FullName = "Bob Builder"
	require.NoError(t, repo.Update(ctx, &bob))

	stored, err := repo.Get(ctx, "u2")
	require.NoError(t, err)
	require.Equal(t, "Bob Builder", stored.FullName)

	require.ErrorIs(t, repo.Update(ctx, &models.User{ID: "missing"}), ErrNotFound)
}

func TestUserRepositorySearchExcludesViewer(t *testing.T) {
	db := newTestDB(t)
	repo := NewUserRepository(db)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, &models.User{ID: "u1", FullName: "Alice Doe", Username: "alice", UserCode: "alice#1000"}))
	require.NoError(t, repo.Create(ctx, &models.User{ID: "u2", FullName: "Alicia Keys", Username: "alicia", UserCode: "alicia#2000"}))
	require.NoError(t, repo.Create(ctx, &models.User{ID: "u3", FullName: "Bob", Username: "bob", UserCode: "bob#3000"}))

	users, err := repo.Search(ctx, "ALI", "u1", 0)
	require.NoError(t, err)
	require.Len(t, users, 1)
	require.Equal(t, "u2", users[0].ID)

	users, err = repo.Search(ctx, "bob#3000", "u1", 0)
	require.NoError(t, err)
	require.Len(t, users, 1)

	users, err = repo.Search(ctx, "   ", "u1", 0)
	require.NoError(t, err)
	require.Empty(t, users)

	many, err := repo.GetMany(ctx, []string{"u1", "u3", "missing"})
	require.NoError(t, err)
	require.Len(t, many, 2)
}
