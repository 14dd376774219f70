package service

import (
	"context"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/noah-isme/vibely-go-api/internal/dto"
	"github.com/noah-isme/vibely-go-api/internal/models"
	"github.com/noah-isme/vibely-go-api/internal/realtime"
	"github.com/noah-isme/vibely-go-api/internal/repository"
	"github.com/noah-isme/vibely-go-api/pkg/ai"
)

// AutomationService manages per-chat automations and AI-assisted setup.
type AutomationService interface {
	UpdateAutomations(ctx context.Context, chatID, actorID string, req dto.UpdateAutomationsRequest) ([]dto.AutomationPayload, error)
	SuggestSetup(ctx context.Context, actorID string, req dto.SetupSuggestionRequest) (dto.SetupSuggestionResponse, error)
	Save(ctx context.Context, chatID, actorID string, req dto.UpdateAutomationsRequest) (dto.SaveAutomationsResponse, error)
}

type automationService struct {
	chats     repository.ChatRepository
	users     repository.UserRepository
	members   ChatMembership
	assistant ai.Assistant
	notifier  realtime.Notifier
	clock     realtime.Clock
	validator *validator.Validate
	logger    zerolog.Logger
	tracer    trace.Tracer
}

// NewAutomationService constructs the automation service. assistant may be nil.
func NewAutomationService(chats repository.ChatRepository, users repository.UserRepository, members ChatMembership, assistant ai.Assistant, notifier realtime.Notifier, clock realtime.Clock, validate *validator.Validate, logger zerolog.Logger) AutomationService {
	if clock == nil {
		clock = realtime.SystemClock{}
	}
	return &automationService{
		chats:     chats,
		users:     users,
		members:   members,
		assistant: assistant,
		notifier:  notifier,
		clock:     clock,
		validator: validate,
		logger:    logger.With().Str("component", "automation_service").Logger(),
		tracer:    otel.Tracer("github.com/noah-isme/vibely-go-api/internal/service/automation"),
	}
}

// UpdateAutomations replaces the chat's automations wholesale.
func (s *automationService) UpdateAutomations(ctx context.Context, chatID, actorID string, req dto.UpdateAutomationsRequest) ([]dto.AutomationPayload, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, err
	}
	chat, err := s.members.Membership(ctx, chatID, actorID)
	if err != nil {
		return nil, err
	}
	return s.persist(ctx, chat, req.Automations)
}

// SuggestSetup asks the assistant for a description and catalog automations for a draft channel.
func (s *automationService) SuggestSetup(ctx context.Context, actorID string, req dto.SetupSuggestionRequest) (dto.SetupSuggestionResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return dto.SetupSuggestionResponse{}, err
	}
	if s.assistant == nil {
		return dto.SetupSuggestionResponse{}, ErrAssistantUnavailable
	}

	ctx, span := s.tracer.Start(ctx, "automation.suggest", trace.WithAttributes(attribute.String("chat.title", req.ChatTitle)))
	defer span.End()

	names, err := s.memberNames(ctx, append([]string{actorID}, req.MemberIDs...))
	if err != nil {
		return dto.SetupSuggestionResponse{}, err
	}

	suggestion, err := s.assistant.SuggestChannelSetup(ctx, ai.ChannelSetupInput{
		ChannelTitle: req.ChatTitle,
		MemberNames:  names,
	})
	if err != nil {
		span.RecordError(err)
		return dto.SetupSuggestionResponse{}, fmt.Errorf("suggest channel setup: %w", err)
	}

	seen := map[string]struct{}{}
	automations := make([]dto.AutomationPayload, 0, len(suggestion.AutomationSuggestions))
	for _, name := range suggestion.AutomationSuggestions {
		entry, ok := ai.LookupCatalog(name)
		if !ok {
			s.logger.Debug().Str("automation", name).Msg("ignoring automation outside the catalog")
			continue
		}
		if _, dup := seen[entry.Name]; dup {
			continue
		}
		seen[entry.Name] = struct{}{}
		automations = append(automations, dto.AutomationPayload{
			ID:          "auto-" + uuid.NewString(),
			Name:        entry.Name,
			Description: entry.Description,
			Enabled:     true,
			Content:     entry.DefaultContent,
		})
	}

	description := suggestion.DescriptionSuggestion
	if description == "" {
		description = fmt.Sprintf("A channel for %s", req.ChatTitle)
	}
	return dto.SetupSuggestionResponse{DescriptionSuggestion: description, Automations: automations}, nil
}

// Save runs the assistant over the submitted settings and persists them.
// An assistant failure aborts the save.
func (s *automationService) Save(ctx context.Context, chatID, actorID string, req dto.UpdateAutomationsRequest) (dto.SaveAutomationsResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return dto.SaveAutomationsResponse{}, err
	}
	chat, err := s.members.Membership(ctx, chatID, actorID)
	if err != nil {
		return dto.SaveAutomationsResponse{}, err
	}

	configured := map[string]string{}
	if s.assistant != nil {
		names, err := s.memberNames(ctx, chat.MemberIDs())
		if err != nil {
			return dto.SaveAutomationsResponse{}, err
		}

		settings := make(map[string]bool, len(req.Automations))
		adjustments := make(map[string]string, len(req.Automations))
		for _, automation := range req.Automations {
			settings[automation.Name] = automation.Enabled
			adjustments[automation.Name] = automation.Content
		}

		result, err := s.assistant.ConfigureAutomations(ctx, ai.AutomationConfigInput{
			ChannelName:           chat.Name,
			ChannelDescription:    chat.Description,
			MemberList:            names,
			AutomationSettings:    settings,
			AutomationAdjustments: adjustments,
		})
		if err != nil {
			return dto.SaveAutomationsResponse{}, fmt.Errorf("configure automations: %w", err)
		}
		configured = result.ConfiguredAutomations
	}

	stored, err := s.persist(ctx, chat, req.Automations)
	if err != nil {
		return dto.SaveAutomationsResponse{}, err
	}
	return dto.SaveAutomationsResponse{Automations: stored, ConfiguredAutomations: configured}, nil
}

func (s *automationService) persist(ctx context.Context, chat models.Chat, payloads []dto.AutomationPayload) ([]dto.AutomationPayload, error) {
	automations := assignAutomationIDs(payloads)
	if err := s.chats.UpdateAutomations(ctx, chat.ID, automations, s.clock.Now(ctx)); err != nil {
		return nil, err
	}

	topics := make([]string, 0, len(chat.Members))
	for _, id := range chat.MemberIDs() {
		topics = append(topics, realtime.UserChatsTopic(id))
	}
	s.notifier.Publish(ctx, topics...)
	return dto.NewAutomationPayloads(automations), nil
}

func (s *automationService) memberNames(ctx context.Context, ids []string) ([]string, error) {
	users, err := s.users.GetMany(ctx, ids)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(ids))
	seen := map[string]struct{}{}
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		if user, ok := users[id]; ok {
			names = append(names, user.DisplayName())
			continue
		}
		names = append(names, "User")
	}
	return names, nil
}
