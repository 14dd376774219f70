package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
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
	"github.com/noah-isme/vibely-go-api/pkg/chatid"
)

// ChatMembership resolves a chat the caller belongs to.
type ChatMembership interface {
	Membership(ctx context.Context, chatID, userID string) (models.Chat, error)
}

// DirectoryService lists and creates the chats a user belongs to.
type DirectoryService interface {
	ChatMembership
	List(ctx context.Context, userID string) (dto.ChatDirectory, error)
	Watch(ctx context.Context, userID string) (<-chan dto.ChatDirectory, func())
	Get(ctx context.Context, chatID, viewerID string) (dto.ChatResponse, error)
	CreateChannel(ctx context.Context, ownerID string, req dto.CreateChannelRequest) (dto.ChatResponse, error)
	CreateGroupDM(ctx context.Context, ownerID string, req dto.CreateGroupRequest) (dto.ChatResponse, error)
	StartDirect(ctx context.Context, userID, otherID string) (dto.ChatResponse, error)
}

type directoryService struct {
	chats     repository.ChatRepository
	users     repository.UserRepository
	presence  PresenceReader
	cache     MessageCache
	notifier  realtime.Notifier
	clock     realtime.Clock
	validator *validator.Validate
	sanitizer *bluemonday.Policy
	logger    zerolog.Logger
	tracer    trace.Tracer
}

// NewDirectoryService constructs the chat directory.
func NewDirectoryService(chats repository.ChatRepository, users repository.UserRepository, presence PresenceReader, cache MessageCache, notifier realtime.Notifier, clock realtime.Clock, validate *validator.Validate, logger zerolog.Logger) DirectoryService {
	if clock == nil {
		clock = realtime.SystemClock{}
	}
	return &directoryService{
		chats:     chats,
		users:     users,
		presence:  presence,
		cache:     cache,
		notifier:  notifier,
		clock:     clock,
		validator: validate,
		sanitizer: bluemonday.StrictPolicy(),
		logger:    logger.With().Str("component", "directory_service").Logger(),
		tracer:    otel.Tracer("github.com/noah-isme/vibely-go-api/internal/service/directory"),
	}
}

// List returns the user's chats partitioned into sections, most recently updated first.
func (s *directoryService) List(ctx context.Context, userID string) (dto.ChatDirectory, error) {
	chats, err := s.chats.ListForMember(ctx, userID)
	if err != nil {
		return dto.ChatDirectory{}, err
	}
	return dto.PartitionChats(s.decorate(ctx, userID, chats)), nil
}

// Watch streams the directory whenever one of the user's chats changes.
func (s *directoryService) Watch(ctx context.Context, userID string) (<-chan dto.ChatDirectory, func()) {
	return realtime.Watch(ctx, s.notifier, []string{realtime.UserChatsTopic(userID)}, func(ctx context.Context) (dto.ChatDirectory, error) {
		return s.List(ctx, userID)
	}, s.logger)
}

// Get returns one chat the viewer belongs to.
func (s *directoryService) Get(ctx context.Context, chatID, viewerID string) (dto.ChatResponse, error) {
	chat, err := s.Membership(ctx, chatID, viewerID)
	if err != nil {
		return dto.ChatResponse{}, err
	}
	entries := s.decorate(ctx, viewerID, []models.Chat{chat})
	return entries[0], nil
}

// Membership loads the chat and checks the user belongs to it.
func (s *directoryService) Membership(ctx context.Context, chatID, userID string) (models.Chat, error) {
	chat, err := s.chats.Get(ctx, chatID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return models.Chat{}, ErrChatNotFound
		}
		return models.Chat{}, err
	}
	if !chat.HasMember(userID) {
		return models.Chat{}, ErrNotChatMember
	}
	return chat, nil
}

// CreateChannel creates a public channel. The owner is always a member.
func (s *directoryService) CreateChannel(ctx context.Context, ownerID string, req dto.CreateChannelRequest) (dto.ChatResponse, error) {
	ctx, span := s.tracer.Start(ctx, "directory.create_channel", trace.WithAttributes(attribute.String("user.id", ownerID)))
	defer span.End()

	req.Name = strings.TrimSpace(s.sanitizer.Sanitize(req.Name))
	req.Description = strings.TrimSpace(s.sanitizer.Sanitize(req.Description))
	if err := s.validator.Struct(req); err != nil {
		return dto.ChatResponse{}, err
	}

	memberIDs := append([]string{ownerID}, req.MemberIDs...)
	if err := s.requireUsers(ctx, memberIDs); err != nil {
		return dto.ChatResponse{}, err
	}

	description := req.Description
	if description == "" {
		description = fmt.Sprintf("A channel for %s", req.Name)
	}

	id := uuid.NewString()
	chat := models.Chat{
		ID:            id,
		SchemaVersion: models.ChatSchemaVersion,
		Name:          req.Name,
		Description:   description,
		IsPublic:      true,
		OwnerID:       ownerID,
		Members:       models.NewMembers(id, memberIDs...),
		Automations:   assignAutomationIDs(req.Automations),
	}
	return s.create(ctx, ownerID, chat)
}

// CreateGroupDM creates a DM with the owner and at least two other members.
func (s *directoryService) CreateGroupDM(ctx context.Context, ownerID string, req dto.CreateGroupRequest) (dto.ChatResponse, error) {
	ctx, span := s.tracer.Start(ctx, "directory.create_group", trace.WithAttributes(attribute.String("user.id", ownerID)))
	defer span.End()

	req.Name = strings.TrimSpace(s.sanitizer.Sanitize(req.Name))
	if err := s.validator.Struct(req); err != nil {
		return dto.ChatResponse{}, err
	}

	id := uuid.NewString()
	members := models.NewMembers(id, append([]string{ownerID}, req.MemberIDs...)...)
	if len(members) <= 2 {
		return dto.ChatResponse{}, fmt.Errorf("%w: a group needs at least three people", ErrInvalidMembers)
	}

	ids := make([]string, 0, len(members))
	for _, member := range members {
		ids = append(ids, member.UserID)
	}
	if err := s.requireUsers(ctx, ids); err != nil {
		return dto.ChatResponse{}, err
	}

	chat := models.Chat{
		ID:            id,
		SchemaVersion: models.ChatSchemaVersion,
		Name:          req.Name,
		IsDM:          true,
		OwnerID:       ownerID,
		Members:       members,
	}
	return s.create(ctx, ownerID, chat)
}

// StartDirect returns the 1:1 DM between two users, creating it when absent.
// Concurrent callers converge on one chat under the deterministic id.
func (s *directoryService) StartDirect(ctx context.Context, userID, otherID string) (dto.ChatResponse, error) {
	ctx, span := s.tracer.Start(ctx, "directory.start_direct", trace.WithAttributes(attribute.String("user.id", userID)))
	defer span.End()

	id, err := chatid.Resolve(userID, otherID)
	if err != nil {
		if errors.Is(err, chatid.ErrSameParticipant) {
			return dto.ChatResponse{}, ErrCannotDMSelf
		}
		return dto.ChatResponse{}, fmt.Errorf("%w: %v", ErrInvalidMembers, err)
	}

	if _, err := s.users.Get(ctx, otherID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return dto.ChatResponse{}, ErrUserNotFound
		}
		return dto.ChatResponse{}, err
	}

	existing, err := s.chats.Get(ctx, id)
	switch {
	case err == nil && chatid.IsDirect(id, userID, otherID) && existing.HasMember(userID):
		observability.DirectChatsStarted().WithLabelValues("existing").Inc()
		return s.decorate(ctx, userID, []models.Chat{existing})[0], nil
	case err != nil && !errors.Is(err, repository.ErrNotFound):
		return dto.ChatResponse{}, err
	}

	legacy, err := s.chats.FindDirect(ctx, userID, otherID)
	switch {
	case err == nil:
		observability.DirectChatsStarted().WithLabelValues("fallback").Inc()
		return s.decorate(ctx, userID, []models.Chat{legacy})[0], nil
	case !errors.Is(err, repository.ErrNotFound):
		return dto.ChatResponse{}, err
	}

	chat := models.Chat{
		ID:            id,
		SchemaVersion: models.ChatSchemaVersion,
		IsDM:          true,
		OwnerID:       userID,
		Members:       models.NewMembers(id, userID, otherID),
		CreatedAt:     s.clock.Now(ctx),
	}
	chat.UpdatedAt = chat.CreatedAt

	stored, created, err := s.chats.CreateIfAbsent(ctx, &chat)
	if err != nil {
		span.RecordError(err)
		return dto.ChatResponse{}, err
	}
	if created {
		observability.DirectChatsStarted().WithLabelValues("created").Inc()
		s.publishMembers(ctx, stored)
	} else {
		observability.DirectChatsStarted().WithLabelValues("existing").Inc()
	}
	return s.decorate(ctx, userID, []models.Chat{stored})[0], nil
}

func (s *directoryService) create(ctx context.Context, viewerID string, chat models.Chat) (dto.ChatResponse, error) {
	now := s.clock.Now(ctx)
	chat.CreatedAt = now
	chat.UpdatedAt = now
	if err := s.chats.Create(ctx, &chat); err != nil {
		return dto.ChatResponse{}, err
	}

	s.logger.Info().Str("chat_id", chat.ID).Str("kind", string(chat.Kind())).Int("members", len(chat.Members)).Msg("chat created")
	s.publishMembers(ctx, chat)
	return s.decorate(ctx, viewerID, []models.Chat{chat})[0], nil
}

func (s *directoryService) publishMembers(ctx context.Context, chat models.Chat) {
	topics := make([]string, 0, len(chat.Members))
	for _, id := range chat.MemberIDs() {
		topics = append(topics, realtime.UserChatsTopic(id))
	}
	s.notifier.Publish(ctx, topics...)
}

func (s *directoryService) requireUsers(ctx context.Context, ids []string) error {
	users, err := s.users.GetMany(ctx, ids)
	if err != nil {
		return err
	}
	for _, id := range ids {
		if _, ok := users[strings.TrimSpace(id)]; !ok {
			return fmt.Errorf("%w: %s", ErrUserNotFound, id)
		}
	}
	return nil
}

// decorate attaches counterparts and last-message previews. An unresolvable
// counterpart stays nil.
func (s *directoryService) decorate(ctx context.Context, viewerID string, chats []models.Chat) []dto.ChatResponse {
	counterpartIDs := make([]string, 0)
	chatIDs := make([]string, 0, len(chats))
	for _, chat := range chats {
		chatIDs = append(chatIDs, chat.ID)
		if id, ok := chat.Counterpart(viewerID); ok {
			counterpartIDs = append(counterpartIDs, id)
		}
	}

	profiles := map[string]models.User{}
	presence := map[string]dto.PresenceResponse{}
	if len(counterpartIDs) > 0 {
		var err error
		if profiles, err = s.users.GetMany(ctx, counterpartIDs); err != nil {
			s.logger.Warn().Err(err).Msg("counterpart lookup failed")
			profiles = map[string]models.User{}
		}
		if presence, err = s.presence.GetMany(ctx, counterpartIDs); err != nil {
			s.logger.Warn().Err(err).Msg("counterpart presence lookup failed")
		}
	}
	previews := s.cache.LastMany(ctx, chatIDs)

	out := make([]dto.ChatResponse, 0, len(chats))
	for _, chat := range chats {
		entry := dto.NewChatResponse(chat)
		if id, ok := chat.Counterpart(viewerID); ok {
			if profile, found := profiles[id]; found {
				counterpart := dto.NewUserResponse(profile, presence[id]).PublicView()
				entry.Counterpart = &counterpart
			}
		}
		if preview, ok := previews[chat.ID]; ok {
			entry.LastMessage = &preview
		}
		out = append(out, entry)
	}
	return out
}

func assignAutomationIDs(payloads []dto.AutomationPayload) []models.Automation {
	automations := make([]models.Automation, 0, len(payloads))
	for _, payload := range payloads {
		automation := payload.ToModel()
		if strings.TrimSpace(automation.ID) == "" {
			automation.ID = "auto-" + uuid.NewString()
		}
		automations = append(automations, automation)
	}
	return automations
}
