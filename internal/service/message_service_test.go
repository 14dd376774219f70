package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/vibely-go-api/internal/dto"
)

func newDirectChat(t *testing.T, env *testEnv) string {
	t.Helper()

	env.seedUser(t, "ana", "ana")
	env.seedUser(t, "ben", "ben")
	chat, err := env.directory.StartDirect(context.Background(), "ana", "ben")
	require.NoError(t, err)
	return chat.ID
}

func TestSendStampsWithBackendClockAndUpdatesPreview(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	chatID := newDirectChat(t, env)

	first := env.clock.Advance(time.Second)
	_, err := env.messaging.Send(ctx, chatID, "ana", "hello")
	require.NoError(t, err)
	env.clock.Advance(time.Second)
	last, err := env.messaging.Send(ctx, chatID, "ben", "hi <b>there</b><script>alert(1)</script>")
	require.NoError(t, err)
	require.Equal(t, "hi <b>there</b>", last.Content)

	history, err := env.messaging.History(ctx, chatID, "ana", dto.MessageHistoryQuery{})
	require.NoError(t, err)
	require.Len(t, history, 2)
	require.True(t, first.Equal(history[0].Timestamp))
	require.Equal(t, last.ID, history[1].ID)
	require.Nil(t, history[1].ReadStatus)

	directory, err := env.directory.List(ctx, "ana")
	require.NoError(t, err)
	require.Len(t, directory.Direct, 1)
	require.NotNil(t, directory.Direct[0].LastMessage)
	require.Equal(t, last.ID, directory.Direct[0].LastMessage.ID)
}

func TestSendRejectsNonMembersAndEmptyContent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	chatID := newDirectChat(t, env)
	env.seedUser(t, "cat", "cat")

	_, err := env.messaging.Send(ctx, chatID, "cat", "let me in")
	require.ErrorIs(t, err, ErrNotChatMember)

	_, err = env.messaging.Send(ctx, chatID, "ana", "   ")
	require.ErrorIs(t, err, ErrEmptyMessage)

	_, err = env.messaging.Send(ctx, "missing", "ana", "hello")
	require.ErrorIs(t, err, ErrChatNotFound)
}

func TestHistoryPagesBackwards(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	chatID := newDirectChat(t, env)

	var sent []string
	var stamps []time.Time
	for i := 0; i < 5; i++ {
		env.clock.Advance(time.Second)
		message, err := env.messaging.Send(ctx, chatID, "ana", "message")
		require.NoError(t, err)
		sent = append(sent, message.ID)
		stamps = append(stamps, message.Timestamp)
	}

	page, err := env.messaging.History(ctx, chatID, "ben", dto.MessageHistoryQuery{Before: &stamps[3], Limit: 2})
	require.NoError(t, err)
	require.Len(t, page, 2)
	require.Equal(t, sent[1], page[0].ID)
	require.Equal(t, sent[2], page[1].ID)
}

func TestHistoryCursorWalksMessagesSharingATimestamp(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	chatID := newDirectChat(t, env)

	var sent []string
	for i := 0; i < 5; i++ {
		message, err := env.messaging.Send(ctx, chatID, "ana", "same tick")
		require.NoError(t, err)
		sent = append(sent, message.ID)
	}

	var walked []string
	cursor := ""
	for {
		page, err := env.messaging.History(ctx, chatID, "ben", dto.MessageHistoryQuery{Cursor: cursor, Limit: 2})
		require.NoError(t, err)
		if len(page) == 0 {
			break
		}
		ids := make([]string, 0, len(page))
		for _, message := range page {
			ids = append(ids, message.ID)
		}
		walked = append(ids, walked...)
		cursor = page[0].ID
	}
	require.Equal(t, sent, walked)

	_, err := env.messaging.History(ctx, chatID, "ben", dto.MessageHistoryQuery{Cursor: "missing"})
	require.ErrorIs(t, err, ErrMessageNotFound)
}

func TestToggleReactionAddsThenRemoves(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	chatID := newDirectChat(t, env)

	message, err := env.messaging.Send(ctx, chatID, "ana", "ship it")
	require.NoError(t, err)

	toggled, err := env.messaging.ToggleReaction(ctx, chatID, message.ID, "ben", "👍")
	require.NoError(t, err)
	require.True(t, toggled.Added)

	snapshot, err := env.messaging.Snapshot(ctx, chatID, "ana")
	require.NoError(t, err)
	require.Len(t, snapshot.Messages, 1)
	require.Equal(t, []dto.ReactionResponse{{UserID: "ben", Username: "ben", Emoji: "👍"}}, snapshot.Messages[0].Reactions)

	toggled, err = env.messaging.ToggleReaction(ctx, chatID, message.ID, "ben", "👍")
	require.NoError(t, err)
	require.False(t, toggled.Added)

	snapshot, err = env.messaging.Snapshot(ctx, chatID, "ana")
	require.NoError(t, err)
	require.Empty(t, snapshot.Messages[0].Reactions)

	_, err = env.messaging.ToggleReaction(ctx, chatID, "missing", "ben", "👍")
	require.ErrorIs(t, err, ErrMessageNotFound)
}

func TestMessageWatchStreamsNewMessages(t *testing.T) {
	env := newTestEnv(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	chatID := newDirectChat(t, env)

	stream, stop, err := env.messaging.Watch(ctx, chatID, "ben")
	require.NoError(t, err)
	defer stop()
	require.Empty(t, receive(t, stream).Messages)

	sent, err := env.messaging.Send(ctx, chatID, "ana", "ping")
	require.NoError(t, err)

	snapshot := receive(t, stream)
	require.Equal(t, chatID, snapshot.ChatID)
	require.Len(t, snapshot.Messages, 1)
	require.Equal(t, sent.ID, snapshot.Messages[0].ID)

	_, _, err = env.messaging.Watch(ctx, chatID, "cat")
	require.ErrorIs(t, err, ErrNotChatMember)
}
