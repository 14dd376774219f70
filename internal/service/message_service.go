package service

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/noah-isme/vibely-go-api/internal/dto"
	"github.com/noah-isme/vibely-go-api/internal/models"
	"github.com/noah-isme/vibely-go-api/internal/observability"
	"github.com/noah-isme/vibely-go-api/internal/realtime"
	"github.com/noah-isme/vibely-go-api/internal/repository"
)

// MessageSnapshotter loads the current message view of a chat.
type MessageSnapshotter interface {
	Snapshot(ctx context.Context, chatID, viewerID string) (dto.MessageSnapshot, error)
}

// MessageService reads and writes chat messages.
type MessageService interface {
	MessageSnapshotter
	History(ctx context.Context, chatID, viewerID string, query dto.MessageHistoryQuery) ([]dto.MessageResponse, error)
	Watch(ctx context.Context, chatID, viewerID string) (<-chan dto.MessageSnapshot, func(), error)
	Send(ctx context.Context, chatID, authorID, content string) (dto.MessageResponse, error)
	ToggleReaction(ctx context.Context, chatID, messageID, userID, emoji string) (dto.ReactionToggleResponse, error)
}

type messageService struct {
	messages  repository.MessageRepository
	chats     repository.ChatRepository
	users     repository.UserRepository
	members   ChatMembership
	cache     MessageCache
	notifier  realtime.Notifier
	clock     realtime.Clock
	sanitizer *bluemonday.Policy
	pageSize  int
	logger    zerolog.Logger
	tracer    trace.Tracer
}

// NewMessageService constructs the message stream.
func NewMessageService(messages repository.MessageRepository, chats repository.ChatRepository, users repository.UserRepository, members ChatMembership, cache MessageCache, notifier realtime.Notifier, clock realtime.Clock, pageSize int, logger zerolog.Logger) MessageService {
	sanitizer := bluemonday.UGCPolicy()
	sanitizer.AllowElements("br")

	if pageSize <= 0 {
		pageSize = 50
	}
	if clock == nil {
		clock = realtime.SystemClock{}
	}

	return &messageService{
		messages:  messages,
		chats:     chats,
		users:     users,
		members:   members,
		cache:     cache,
		notifier:  notifier,
		clock:     clock,
		sanitizer: sanitizer,
		pageSize:  pageSize,
		logger:    logger.With().Str("component", "message_service").Logger(),
		tracer:    otel.Tracer("github.com/noah-isme/vibely-go-api/internal/service/message"),
	}
}

// History pages backwards from query.Before, returning messages in ascending order.
func (s *messageService) History(ctx context.Context, chatID, viewerID string, query dto.MessageHistoryQuery) ([]dto.MessageResponse, error) {
	chat, err := s.members.Membership(ctx, chatID, viewerID)
	if err != nil {
		return nil, err
	}

	cursor := repository.MessageCursor{ID: query.Cursor}
	if query.Before != nil {
		cursor.Before = *query.Before
	}
	limit := query.Limit
	if limit <= 0 || limit > s.pageSize {
		limit = s.pageSize
	}

	messages, err := s.messages.ListByChat(ctx, chatID, cursor, limit)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrMessageNotFound
		}
		return nil, err
	}
	return s.render(chat, messages), nil
}

// Snapshot returns the latest page of the chat in ascending order.
func (s *messageService) Snapshot(ctx context.Context, chatID, viewerID string) (dto.MessageSnapshot, error) {
	chat, err := s.members.Membership(ctx, chatID, viewerID)
	if err != nil {
		return dto.MessageSnapshot{}, err
	}
	return s.snapshot(ctx, chat)
}

// Watch streams snapshots of the chat on every message change.
func (s *messageService) Watch(ctx context.Context, chatID, viewerID string) (<-chan dto.MessageSnapshot, func(), error) {
	chat, err := s.members.Membership(ctx, chatID, viewerID)
	if err != nil {
		return nil, nil, err
	}

	stream, stop := realtime.Watch(ctx, s.notifier, []string{realtime.ChatMessagesTopic(chatID)}, func(ctx context.Context) (dto.MessageSnapshot, error) {
		return s.snapshot(ctx, chat)
	}, s.logger)
	return stream, stop, nil
}

// Send persists a message stamped with the backend clock.
func (s *messageService) Send(ctx context.Context, chatID, authorID, content string) (dto.MessageResponse, error) {
	chat, err := s.members.Membership(ctx, chatID, authorID)
	if err != nil {
		return dto.MessageResponse{}, err
	}

	clean := strings.TrimSpace(s.sanitizer.Sanitize(content))
	if clean == "" {
		return dto.MessageResponse{}, ErrEmptyMessage
	}

	spanCtx, span := s.tracer.Start(ctx, "message.send", trace.WithAttributes(
		attribute.String("chat.id", chatID),
		attribute.String("chat.author_id", authorID),
	))
	defer span.End()

	id, err := uuid.NewV7()
	if err != nil {
		return dto.MessageResponse{}, err
	}

	message := models.Message{
		ID:        id.String(),
		ChatID:    chatID,
		AuthorID:  authorID,
		Content:   clean,
		Timestamp: s.clock.Now(spanCtx),
		Reactions: []models.MessageReaction{},
	}
	if err := s.messages.Create(spanCtx, &message); err != nil {
		span.RecordError(err)
		return dto.MessageResponse{}, err
	}

	if err := s.chats.Touch(spanCtx, chatID, message.Timestamp); err != nil {
		s.logger.Warn().Err(err).Str("chat_id", chatID).Msg("failed to bump chat activity")
	}
	s.cache.Store(spanCtx, chatID, dto.MessagePreview{
		ID:        message.ID,
		AuthorID:  message.AuthorID,
		Content:   message.Content,
		Timestamp: message.Timestamp,
	})

	topics := []string{realtime.ChatMessagesTopic(chatID)}
	for _, memberID := range chat.MemberIDs() {
		topics = append(topics, realtime.UserChatsTopic(memberID))
	}
	s.notifier.Publish(spanCtx, topics...)
	observability.MessagesSent().Inc()

	return dto.NewMessageResponse(message), nil
}

// ToggleReaction adds the user's emoji to a message, or removes it if already present.
func (s *messageService) ToggleReaction(ctx context.Context, chatID, messageID, userID, emoji string) (dto.ReactionToggleResponse, error) {
	if _, err := s.members.Membership(ctx, chatID, userID); err != nil {
		return dto.ReactionToggleResponse{}, err
	}

	emoji = strings.TrimSpace(emoji)
	if emoji == "" {
		return dto.ReactionToggleResponse{}, errors.New("emoji is required")
	}

	username := "User"
	if user, err := s.users.Get(ctx, userID); err == nil {
		if strings.TrimSpace(user.Username) != "" {
			username = user.Username
		}
	}

	added, err := s.messages.ToggleReaction(ctx, chatID, models.MessageReaction{
		MessageID: messageID,
		UserID:    userID,
		Username:  username,
		Emoji:     emoji,
		CreatedAt: s.clock.Now(ctx),
	})
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return dto.ReactionToggleResponse{}, ErrMessageNotFound
		}
		return dto.ReactionToggleResponse{}, err
	}

	outcome := "removed"
	if added {
		outcome = "added"
	}
	observability.ReactionToggles().WithLabelValues(outcome).Inc()
	s.notifier.Publish(ctx, realtime.ChatMessagesTopic(chatID))

	return dto.ReactionToggleResponse{MessageID: messageID, Emoji: emoji, Added: added}, nil
}

func (s *messageService) snapshot(ctx context.Context, chat models.Chat) (dto.MessageSnapshot, error) {
	messages, err := s.messages.ListByChat(ctx, chat.ID, repository.MessageCursor{}, s.pageSize)
	if err != nil {
		return dto.MessageSnapshot{}, err
	}
	return dto.MessageSnapshot{ChatID: chat.ID, Messages: s.render(chat, messages)}, nil
}

// render drops messages whose author is no longer resolvable as a member.
func (s *messageService) render(chat models.Chat, messages []models.Message) []dto.MessageResponse {
	out := make([]dto.MessageResponse, 0, len(messages))
	for _, message := range messages {
		if !chat.HasMember(message.AuthorID) {
			s.logger.Debug().Str("chat_id", chat.ID).Str("message_id", message.ID).Msg("dropping message from non-member author")
			continue
		}
		out = append(out, dto.NewMessageResponse(message))
	}
	return out
}
