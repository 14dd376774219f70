package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"

	"github.com/noah-isme/vibely-go-api/internal/models"
)

func TestCompanionRepositoryScopesToOwner(t *testing.T) {
	db := newTestDB(t)
	repo := NewCompanionRepository(db)
	ctx := context.Background()
	now := time.Now().UTC()

	for i, companion := range []models.Companion{
		{ID: "k1", OwnerID: "ana", Name: "Nova", Voice: "Enif", Tools: datatypes.JSONSlice[string]{"web_search"}},
		{ID: "k2", OwnerID: "ana", Name: "Orion", Voice: "Hadar"},
		{ID: "k3", OwnerID: "ben", Name: "Vega", Voice: "Sirius"},
	} {
		companion.CreatedAt = now.Add(time.Duration(i) * time.Second)
		require.NoError(t, repo.Create(ctx, &companion))
	}

	owned, err := repo.ListByOwner(ctx, "ana")
	require.NoError(t, err)
	require.Len(t, owned, 2)
	require.Equal(t, "k2", owned[0].ID)
	require.Equal(t, []string{"web_search"}, []string(owned[1].Tools))
	require.NotNil(t, owned[0].Tools)
	require.NotEmpty(t, owned[0].AvatarURL)

	require.ErrorIs(t, repo.Delete(ctx, "ben", "k1"), ErrNotFound)
	require.NoError(t, repo.Delete(ctx, "ana", "k1"))
	require.ErrorIs(t, repo.Delete(ctx, "ana", "k1"), ErrNotFound)

	owned, err = repo.ListByOwner(ctx, "ana")
	require.NoError(t, err)
	require.Len(t, owned, 1)
}
