package firestore

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/vibely-go-api/internal/models"
	"github.com/noah-isme/vibely-go-api/internal/repository"
)

func newEmulatorClient(t *testing.T) *firestore.Client {
	t.Helper()
	if os.Getenv("FIRESTORE_EMULATOR_HOST") == "" {
		t.Skip("FIRESTORE_EMULATOR_HOST not set")
	}
	client, err := firestore.NewClient(context.Background(), "demo-vibely")
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestSearchTermsIncludePrefixesAndCode(t *testing.T) {
	terms := searchTerms(models.User{FullName: "Ada Lovelace", Username: "ada", UserCode: "ada#1815"})

	require.Contains(t, terms, "ada lovelace")
	require.Contains(t, terms, "ada#1815")
	require.Contains(t, terms, "ad")
	require.Contains(t, terms, "love")
	require.NotContains(t, terms, "a")
}

func TestChatDocumentKeepsMembershipAsArray(t *testing.T) {
	chat := models.Chat{ID: "a_b", IsDM: true, Members: models.NewMembers("a_b", "b", "a")}
	doc := newChatDoc(chat)
	require.Equal(t, []string{"a", "b"}, doc.Members)
	require.NotNil(t, doc.Automations)

	back := doc.model("a_b")
	require.Equal(t, models.ChatKindDirect, back.Kind())
}

func TestCompanionDocumentDefaultsOnRead(t *testing.T) {
	doc := newCompanionDoc(models.Companion{ID: "k1", OwnerID: "ana", Name: "Nova", Voice: "Enif"})
	require.Equal(t, "ana", doc.OwnerID)

	back := doc.model("k1")
	require.Equal(t, "k1", back.ID)
	require.NotNil(t, back.Tools)
	require.Equal(t, models.DefaultAvatarURL("companion-k1"), back.AvatarURL)
}

func TestFirestoreCompanionDeleteChecksOwner(t *testing.T) {
	client := newEmulatorClient(t)
	repo := NewCompanionRepository(client)
	ctx := context.Background()
	owner := "ana-" + uuid.NewString()[:8]

	companion := models.Companion{ID: uuid.NewString(), OwnerID: owner, Name: "Nova", Voice: "Enif", CreatedAt: time.Now().UTC()}
	require.NoError(t, repo.Create(ctx, &companion))

	require.ErrorIs(t, repo.Delete(ctx, "someone-else", companion.ID), repository.ErrNotFound)
	owned, err := repo.ListByOwner(ctx, owner)
	require.NoError(t, err)
	require.Len(t, owned, 1)

	require.NoError(t, repo.Delete(ctx, owner, companion.ID))
	owned, err = repo.ListByOwner(ctx, owner)
	require.NoError(t, err)
	require.Empty(t, owned)
}

func TestFirestoreChatCreateIfAbsent(t *testing.T) {
	client := newEmulatorClient(t)
	repo := NewChatRepository(client)
	ctx := context.Background()
	id := fmt.Sprintf("a%s_b%s", uuid.NewString()[:8], uuid.NewString()[:8])

	now := time.Now().UTC()
	chat := models.Chat{ID: id, IsDM: true, OwnerID: "a", Members: models.NewMembers(id, "a", "b"), CreatedAt: now, UpdatedAt: now}

	_, created, err := repo.CreateIfAbsent(ctx, &chat)
	require.NoError(t, err)
	require.True(t, created)

	_, created, err = repo.CreateIfAbsent(ctx, &chat)
	require.NoError(t, err)
	require.False(t, created)

	require.ErrorIs(t, repo.Create(ctx, &chat), repository.ErrConflict)
}

func TestFirestoreToggleReaction(t *testing.T) {
	client := newEmulatorClient(t)
	repo := NewMessageRepository(client)
	ctx := context.Background()
	chatID := "chat-" + uuid.NewString()

	message := models.Message{ID: "m1", ChatID: chatID, AuthorID: "u2", Content: "hi", Timestamp: time.Now().UTC()}
	require.NoError(t, repo.Create(ctx, &message))

	reaction := models.MessageReaction{MessageID: "m1", UserID: "u1", Username: "alice", Emoji: "👍"}
	added, err := repo.ToggleReaction(ctx, chatID, reaction)
	require.NoError(t, err)
	require.True(t, added)

	added, err = repo.ToggleReaction(ctx, chatID, reaction)
	require.NoError(t, err)
	require.False(t, added)

	stored, err := repo.Get(ctx, chatID, "m1")
	require.NoError(t, err)
	require.Empty(t, stored.Reactions)
}
