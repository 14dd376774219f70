package service

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/noah-isme/vibely-go-api/internal/dto"
	"github.com/noah-isme/vibely-go-api/internal/models"
	"github.com/noah-isme/vibely-go-api/internal/realtime"
	"github.com/noah-isme/vibely-go-api/internal/repository"
)

// ChatRequestService handles DM consent requests addressed by user code.
type ChatRequestService interface {
	Send(ctx context.Context, fromID, userCode string) (dto.ChatRequestResponse, error)
	ListPending(ctx context.Context, recipientID string) ([]dto.ChatRequestResponse, error)
	Watch(ctx context.Context, recipientID string) (<-chan []dto.ChatRequestResponse, func())
	Respond(ctx context.Context, recipientID, requestID string, accept bool) (dto.ChatRequestOutcome, error)
}

type chatRequestService struct {
	requests  repository.ChatRequestRepository
	users     repository.UserRepository
	directory DirectoryService
	notifier  realtime.Notifier
	clock     realtime.Clock
	logger    zerolog.Logger
}

// NewChatRequestService constructs the chat request service.
func NewChatRequestService(requests repository.ChatRequestRepository, users repository.UserRepository, directory DirectoryService, notifier realtime.Notifier, clock realtime.Clock, logger zerolog.Logger) ChatRequestService {
	if clock == nil {
		clock = realtime.SystemClock{}
	}
	return &chatRequestService{
		requests:  requests,
		users:     users,
		directory: directory,
		notifier:  notifier,
		clock:     clock,
		logger:    logger.With().Str("component", "chat_request_service").Logger(),
	}
}

// Send files a pending request with the recipient identified by userCode.
func (s *chatRequestService) Send(ctx context.Context, fromID, userCode string) (dto.ChatRequestResponse, error) {
	recipient, err := s.users.GetByUserCode(ctx, strings.TrimSpace(userCode))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return dto.ChatRequestResponse{}, ErrUserNotFound
		}
		return dto.ChatRequestResponse{}, err
	}
	if recipient.ID == fromID {
		return dto.ChatRequestResponse{}, ErrCannotDMSelf
	}

	sender, err := s.users.Get(ctx, fromID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return dto.ChatRequestResponse{}, ErrUserNotFound
		}
		return dto.ChatRequestResponse{}, err
	}
	sender.Normalize()

	if _, err := s.requests.FindPending(ctx, recipient.ID, fromID); err == nil {
		return dto.ChatRequestResponse{}, ErrDuplicateRequest
	} else if !errors.Is(err, repository.ErrNotFound) {
		return dto.ChatRequestResponse{}, err
	}

	now := s.clock.Now(ctx)
	request := models.ChatRequest{
		ID:            uuid.NewString(),
		RecipientID:   recipient.ID,
		FromUserID:    sender.ID,
		FromUserCode:  sender.UserCode,
		FromFullName:  sender.DisplayName(),
		FromAvatarURL: sender.AvatarURL,
		Status:        models.ChatRequestPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.requests.Create(ctx, &request); err != nil {
		return dto.ChatRequestResponse{}, err
	}

	s.logger.Info().Str("from_user_id", fromID).Str("recipient_id", recipient.ID).Msg("chat request sent")
	s.notifier.Publish(ctx, realtime.UserRequestsTopic(recipient.ID))
	return dto.NewChatRequestResponse(request), nil
}

// ListPending returns the recipient's unanswered requests, newest first.
func (s *chatRequestService) ListPending(ctx context.Context, recipientID string) ([]dto.ChatRequestResponse, error) {
	requests, err := s.requests.ListPending(ctx, recipientID)
	if err != nil {
		return nil, err
	}
	return dto.NewChatRequestResponseSlice(requests), nil
}

// Watch streams the recipient's pending requests.
func (s *chatRequestService) Watch(ctx context.Context, recipientID string) (<-chan []dto.ChatRequestResponse, func()) {
	return realtime.Watch(ctx, s.notifier, []string{realtime.UserRequestsTopic(recipientID)}, func(ctx context.Context) ([]dto.ChatRequestResponse, error) {
		return s.ListPending(ctx, recipientID)
	}, s.logger)
}

// Respond accepts or declines a pending request. Accepting opens the DM.
func (s *chatRequestService) Respond(ctx context.Context, recipientID, requestID string, accept bool) (dto.ChatRequestOutcome, error) {
	request, err := s.requests.Get(ctx, recipientID, requestID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return dto.ChatRequestOutcome{}, ErrRequestNotFound
		}
		return dto.ChatRequestOutcome{}, err
	}
	if request.IsTerminal() {
		return dto.ChatRequestOutcome{}, ErrRequestResolved
	}

	outcome := dto.ChatRequestOutcome{}
	status := models.ChatRequestDeclined
	if accept {
		status = models.ChatRequestAccepted
		chat, err := s.directory.StartDirect(ctx, recipientID, request.FromUserID)
		if err != nil {
			return dto.ChatRequestOutcome{}, err
		}
		outcome.Chat = &chat
	}

	resolved, err := s.requests.Resolve(ctx, recipientID, requestID, status, s.clock.Now(ctx))
	if err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return dto.ChatRequestOutcome{}, ErrRequestResolved
		}
		return dto.ChatRequestOutcome{}, err
	}

	s.notifier.Publish(ctx, realtime.UserRequestsTopic(recipientID))
	outcome.Request = dto.NewChatRequestResponse(resolved)
	return outcome, nil
}
