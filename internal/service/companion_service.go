package service

import (
	"context"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
	"gorm.io/datatypes"

	"github.com/noah-isme/vibely-go-api/internal/dto"
	"github.com/noah-isme/vibely-go-api/internal/models"
	"github.com/noah-isme/vibely-go-api/internal/realtime"
	"github.com/noah-isme/vibely-go-api/internal/repository"
)

// CompanionService manages the AI companions a user has designed.
type CompanionService interface {
	Create(ctx context.Context, ownerID string, req dto.CreateCompanionRequest) (dto.CompanionResponse, error)
	List(ctx context.Context, ownerID string) ([]dto.CompanionResponse, error)
	Delete(ctx context.Context, ownerID, companionID string) error
}

type companionService struct {
	companions repository.CompanionRepository
	validator  *validator.Validate
	sanitizer  *bluemonday.Policy
	clock      realtime.Clock
	logger     zerolog.Logger
}

// NewCompanionService constructs the companion service.
func NewCompanionService(companions repository.CompanionRepository, validate *validator.Validate, clock realtime.Clock, logger zerolog.Logger) CompanionService {
	if clock == nil {
		clock = realtime.SystemClock{}
	}
	return &companionService{
		companions: companions,
		validator:  validate,
		sanitizer:  bluemonday.StrictPolicy(),
		clock:      clock,
		logger:     logger.With().Str("component", "companion_service").Logger(),
	}
}

func (s *companionService) Create(ctx context.Context, ownerID string, req dto.CreateCompanionRequest) (dto.CompanionResponse, error) {
	req.Name = strings.TrimSpace(s.sanitizer.Sanitize(req.Name))
	req.Persona = strings.TrimSpace(s.sanitizer.Sanitize(req.Persona))
	req.AvatarURL = strings.TrimSpace(req.AvatarURL)
	if err := s.validator.Struct(req); err != nil {
		return dto.CompanionResponse{}, err
	}

	companion := models.Companion{
		ID:        uuid.NewString(),
		OwnerID:   ownerID,
		Name:      req.Name,
		Persona:   req.Persona,
		Voice:     req.Voice,
		AvatarURL: req.AvatarURL,
		Tools:     datatypes.JSONSlice[string]{models.CompanionDefaultTool},
		CreatedAt: s.clock.Now(ctx),
	}
	if err := s.companions.Create(ctx, &companion); err != nil {
		return dto.CompanionResponse{}, err
	}

	s.logger.Info().Str("owner_id", ownerID).Str("companion_id", companion.ID).Msg("companion created")
	return dto.NewCompanionResponse(companion), nil
}

// List returns the owner's companions, newest first.
func (s *companionService) List(ctx context.Context, ownerID string) ([]dto.CompanionResponse, error) {
	companions, err := s.companions.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	out := make([]dto.CompanionResponse, 0, len(companions))
	for _, companion := range companions {
		out = append(out, dto.NewCompanionResponse(companion))
	}
	return out, nil
}

func (s *companionService) Delete(ctx context.Context, ownerID, companionID string) error {
	if err := s.companions.Delete(ctx, ownerID, companionID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrCompanionNotFound
		}
		return err
	}
	s.logger.Info().Str("owner_id", ownerID).Str("companion_id", companionID).Msg("companion deleted")
	return nil
}
