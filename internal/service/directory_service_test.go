package service

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/vibely-go-api/internal/dto"
	"github.com/noah-isme/vibely-go-api/internal/models"
	"github.com/noah-isme/vibely-go-api/pkg/chatid"
)

func TestDirectoryPartitionsOneOfEachKind(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.seedUser(t, "ana", "ana")
	env.seedUser(t, "ben", "ben")
	env.seedUser(t, "cat", "cat")

	_, err := env.directory.CreateChannel(ctx, "ana", dto.CreateChannelRequest{Name: "general"})
	require.NoError(t, err)
	_, err = env.directory.CreateGroupDM(ctx, "ana", dto.CreateGroupRequest{Name: "trio", MemberIDs: []string{"ben", "cat"}})
	require.NoError(t, err)
	_, err = env.directory.StartDirect(ctx, "ana", "ben")
	require.NoError(t, err)

	directory, err := env.directory.List(ctx, "ana")
	require.NoError(t, err)
	require.Len(t, directory.Public, 1)
	require.Len(t, directory.Groups, 1)
	require.Len(t, directory.Direct, 1)

	direct := directory.Direct[0]
	require.Equal(t, chatid.Direct("ana", "ben"), direct.ID)
	require.NotNil(t, direct.Counterpart)
	require.Equal(t, "ben", direct.Counterpart.ID)
	require.Empty(t, direct.Counterpart.Email)

	others, err := env.directory.List(ctx, "cat")
	require.NoError(t, err)
	require.Empty(t, others.Public)
	require.Len(t, others.Groups, 1)
	require.NotNil(t, others.Direct)
	require.Empty(t, others.Direct)
}

func TestStartDirectConcurrentCallersConverge(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.seedUser(t, "ana", "ana")
	env.seedUser(t, "ben", "ben")

	const callers = 8
	ids := make([]string, callers)
	errs := make([]error, callers)

	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			self, other := "ana", "ben"
			if i%2 == 1 {
				self, other = other, self
			}
			chat, err := env.directory.StartDirect(ctx, self, other)
			ids[i], errs[i] = chat.ID, err
		}(i)
	}
	wg.Wait()

	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		require.Equal(t, chatid.Direct("ana", "ben"), ids[i])
	}

	directory, err := env.directory.List(ctx, "ben")
	require.NoError(t, err)
	require.Len(t, directory.Direct, 1)
}

func TestStartDirectReusesLegacyChat(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.seedUser(t, "ana", "ana")
	env.seedUser(t, "ben", "ben")

	legacy := models.Chat{ID: "legacy-dm", IsDM: true, Members: models.NewMembers("legacy-dm", "ana", "ben")}
	require.NoError(t, env.chats.Create(ctx, &legacy))

	chat, err := env.directory.StartDirect(ctx, "ben", "ana")
	require.NoError(t, err)
	require.Equal(t, "legacy-dm", chat.ID)
}

func TestStartDirectRejectsSelfAndUnknownUsers(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.seedUser(t, "ana", "ana")

	_, err := env.directory.StartDirect(ctx, "ana", "ana")
	require.ErrorIs(t, err, ErrCannotDMSelf)

	_, err = env.directory.StartDirect(ctx, "ana", "ghost")
	require.ErrorIs(t, err, ErrUserNotFound)
}

func TestCreateChannelAddsOwnerAndDefaults(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.seedUser(t, "ana", "ana")
	env.seedUser(t, "ben", "ben")

	chat, err := env.directory.CreateChannel(ctx, "ana", dto.CreateChannelRequest{
		Name:        "design",
		MemberIDs:   []string{"ben"},
		Automations: []dto.AutomationPayload{{Name: "Welcome Message", Enabled: true}},
	})
	require.NoError(t, err)
	require.Equal(t, models.ChatKindPublic, chat.Kind)
	require.Equal(t, "A channel for design", chat.Description)
	require.ElementsMatch(t, []string{"ana", "ben"}, chat.MemberIDs)
	require.Len(t, chat.Automations, 1)
	require.NotEmpty(t, chat.Automations[0].ID)

	_, err = env.directory.CreateChannel(ctx, "ana", dto.CreateChannelRequest{Name: "ab"})
	require.Error(t, err)

	_, err = env.directory.CreateChannel(ctx, "ana", dto.CreateChannelRequest{Name: "ghosts", MemberIDs: []string{"ghost"}})
	require.ErrorIs(t, err, ErrUserNotFound)
}

func TestCreateGroupNeedsThreeDistinctPeople(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.seedUser(t, "ana", "ana")
	env.seedUser(t, "ben", "ben")

	_, err := env.directory.CreateGroupDM(ctx, "ana", dto.CreateGroupRequest{MemberIDs: []string{"ben", "ana"}})
	require.ErrorIs(t, err, ErrInvalidMembers)
}

func TestDirectoryGetRequiresMembership(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.seedUser(t, "ana", "ana")
	env.seedUser(t, "ben", "ben")
	env.seedUser(t, "cat", "cat")

	chat, err := env.directory.StartDirect(ctx, "ana", "ben")
	require.NoError(t, err)

	_, err = env.directory.Get(ctx, chat.ID, "cat")
	require.ErrorIs(t, err, ErrNotChatMember)

	_, err = env.directory.Get(ctx, "missing", "ana")
	require.ErrorIs(t, err, ErrChatNotFound)
}

func TestDirectoryWatchSeesNewDirectChat(t *testing.T) {
	env := newTestEnv(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	env.seedUser(t, "ana", "ana")
	env.seedUser(t, "ben", "ben")

	stream, stop := env.directory.Watch(ctx, "ben")
	defer stop()
	require.Empty(t, receive(t, stream).Direct)

	_, err := env.directory.StartDirect(ctx, "ana", "ben")
	require.NoError(t, err)

	snapshot := receive(t, stream)
	require.Len(t, snapshot.Direct, 1)
	require.Equal(t, "ana", snapshot.Direct[0].Counterpart.ID)
}
