package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math/rand"
	"mime/multipart"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/noah-isme/vibely-go-api/internal/dto"
	"github.com/noah-isme/vibely-go-api/internal/models"
	"github.com/noah-isme/vibely-go-api/internal/repository"
	"github.com/noah-isme/vibely-go-api/pkg/auth"
)

const (
	userCodeAttempts = 5
	userSearchLimit  = 10
)

// IdentityService owns user profiles keyed by the identity provider's uid.
type IdentityService interface {
	EnsureProfile(ctx context.Context, identity auth.Identity) (dto.SessionResponse, error)
	Signup(ctx context.Context, req dto.SignupRequest) (dto.SessionResponse, error)
	CompleteProfile(ctx context.Context, userID string, req dto.CompleteProfileRequest) (dto.UserResponse, error)
	UpdateProfile(ctx context.Context, userID string, req dto.UpdateProfileRequest) (dto.UserResponse, error)
	UploadAvatar(ctx context.Context, userID string, file *multipart.FileHeader) (dto.UserResponse, error)
	Get(ctx context.Context, viewerID, userID string) (dto.UserResponse, error)
	Search(ctx context.Context, viewerID, term string) ([]dto.UserResponse, error)
}

// IdentityConfig tunes the identity service.
type IdentityConfig struct {
	AvatarMaxSizeMB int
}

type identityService struct {
	users     repository.UserRepository
	presence  PresenceReader
	registrar auth.Registrar
	issuer    auth.Issuer
	storage   FileStorage
	validator *validator.Validate
	sanitizer *bluemonday.Policy
	maxAvatar int64
	logger    zerolog.Logger
	tracer    trace.Tracer

	rngMu sync.Mutex
	rng   *rand.Rand
}

// NewIdentityService constructs the identity service. Registrar, issuer and storage may be nil.
func NewIdentityService(users repository.UserRepository, presence PresenceReader, registrar auth.Registrar, issuer auth.Issuer, storage FileStorage, validate *validator.Validate, cfg IdentityConfig, logger zerolog.Logger) IdentityService {
	if cfg.AvatarMaxSizeMB <= 0 {
		cfg.AvatarMaxSizeMB = 5
	}
	return &identityService{
		users:     users,
		presence:  presence,
		registrar: registrar,
		issuer:    issuer,
		storage:   storage,
		validator: validate,
		sanitizer: bluemonday.StrictPolicy(),
		maxAvatar: int64(cfg.AvatarMaxSizeMB) * 1024 * 1024,
		logger:    logger.With().Str("component", "identity_service").Logger(),
		tracer:    otel.Tracer("github.com/noah-isme/vibely-go-api/internal/service/identity"),
		rng:       rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// EnsureProfile returns the caller's profile, creating it on first sign-in and
// migrating profiles stored under an older schema.
func (s *identityService) EnsureProfile(ctx context.Context, identity auth.Identity) (dto.SessionResponse, error) {
	ctx, span := s.tracer.Start(ctx, "identity.ensure_profile", trace.WithAttributes(attribute.String("user.id", identity.UID)))
	defer span.End()

	if strings.TrimSpace(identity.UID) == "" {
		return dto.SessionResponse{}, auth.NewError(auth.CodeInvalidCredential, errors.New("identity has no uid"))
	}

	user, err := s.users.Get(ctx, identity.UID)
	switch {
	case err == nil:
		if user.NeedsMigration() {
			if err := s.migrate(ctx, &user, identity); err != nil {
				span.RecordError(err)
				return dto.SessionResponse{}, err
			}
		}
		return dto.SessionResponse{User: s.withPresence(ctx, user), ProfileComplete: user.ProfileComplete()}, nil
	case errors.Is(err, repository.ErrNotFound):
	default:
		span.RecordError(err)
		return dto.SessionResponse{}, err
	}

	user = models.User{
		ID:        identity.UID,
		Email:     identity.Email,
		FullName:  s.clean(identity.DisplayName),
		Username:  identity.UsernameHint(),
		AvatarURL: identity.PhotoURL,
	}
	if user.AvatarURL == "" {
		user.AvatarURL = models.DefaultAvatarURL(fmt.Sprintf("%s-%d", identity.UID, s.suffix()))
	}

	created, err := s.createWithUniqueCode(ctx, &user)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "profile creation failed")
		return dto.SessionResponse{}, err
	}

	s.logger.Info().Str("user_id", user.ID).Str("user_code", user.UserCode).Bool("created", created).Msg("profile ensured")
	return dto.SessionResponse{User: s.withPresence(ctx, user), ProfileComplete: user.ProfileComplete()}, nil
}

// Signup creates an email/password account and its profile.
func (s *identityService) Signup(ctx context.Context, req dto.SignupRequest) (dto.SessionResponse, error) {
	ctx, span := s.tracer.Start(ctx, "identity.signup")
	defer span.End()

	req.Email = strings.TrimSpace(req.Email)
	req.FullName = s.clean(req.FullName)
	req.Username = strings.ToLower(strings.TrimSpace(req.Username))
	if err := s.validator.Struct(req); err != nil {
		return dto.SessionResponse{}, err
	}
	if s.registrar == nil {
		return dto.SessionResponse{}, auth.ErrRegistrationUnsupported
	}
	if err := auth.CheckPassword(req.Password); err != nil {
		return dto.SessionResponse{}, err
	}

	identity, err := s.registrar.CreateAccount(ctx, auth.SignupInput{
		Email:       req.Email,
		Password:    req.Password,
		DisplayName: req.FullName,
	})
	if err != nil {
		span.RecordError(err)
		return dto.SessionResponse{}, err
	}

	if _, err := s.users.Get(ctx, identity.UID); err == nil {
		return dto.SessionResponse{}, auth.NewError(auth.CodeEmailAlreadyInUse, nil)
	} else if !errors.Is(err, repository.ErrNotFound) {
		return dto.SessionResponse{}, err
	}

	user := models.User{
		ID:        identity.UID,
		Email:     identity.Email,
		FullName:  req.FullName,
		Username:  req.Username,
		AvatarURL: models.DefaultAvatarURL(fmt.Sprintf("%s-%d", identity.UID, s.suffix())),
	}
	user.MarkProfileComplete(time.Now())
	created, err := s.createWithUniqueCode(ctx, &user)
	if err != nil {
		span.RecordError(err)
		return dto.SessionResponse{}, err
	}
	if !created {
		return dto.SessionResponse{}, auth.NewError(auth.CodeEmailAlreadyInUse, nil)
	}

	response := dto.SessionResponse{User: s.withPresence(ctx, user), ProfileComplete: user.ProfileComplete()}
	if s.issuer != nil {
		token, err := s.issuer.Issue(identity)
		if err != nil {
			return dto.SessionResponse{}, fmt.Errorf("issue session token: %w", err)
		}
		response.Token = token
	}
	return response, nil
}

// CompleteProfile lets a federated user choose their public name and username.
func (s *identityService) CompleteProfile(ctx context.Context, userID string, req dto.CompleteProfileRequest) (dto.UserResponse, error) {
	req.FullName = s.clean(req.FullName)
	req.Username = strings.ToLower(strings.TrimSpace(req.Username))
	if err := s.validator.Struct(req); err != nil {
		return dto.UserResponse{}, err
	}

	user, err := s.load(ctx, userID)
	if err != nil {
		return dto.UserResponse{}, err
	}

	user.FullName = req.FullName
	user.MarkProfileComplete(time.Now())
	if user.Username != req.Username || user.UserCode == "" {
		user.Username = req.Username
		if err := s.updateWithUniqueCode(ctx, &user); err != nil {
			return dto.UserResponse{}, err
		}
	} else if err := s.users.Update(ctx, &user); err != nil {
		return dto.UserResponse{}, err
	}

	return s.withPresence(ctx, user), nil
}

// UpdateProfile changes the caller's name and avatar URL.
func (s *identityService) UpdateProfile(ctx context.Context, userID string, req dto.UpdateProfileRequest) (dto.UserResponse, error) {
	if req.FullName != nil {
		cleaned := s.clean(*req.FullName)
		req.FullName = &cleaned
	}
	if err := s.validator.Struct(req); err != nil {
		return dto.UserResponse{}, err
	}

	user, err := s.load(ctx, userID)
	if err != nil {
		return dto.UserResponse{}, err
	}
	if req.FullName != nil {
		user.FullName = *req.FullName
	}
	if req.AvatarURL != nil {
		user.AvatarURL = strings.TrimSpace(*req.AvatarURL)
	}

	if err := s.users.Update(ctx, &user); err != nil {
		return dto.UserResponse{}, err
	}
	return s.withPresence(ctx, user), nil
}

// UploadAvatar stores an image and points the profile at it.
func (s *identityService) UploadAvatar(ctx context.Context, userID string, file *multipart.FileHeader) (dto.UserResponse, error) {
	ctx, span := s.tracer.Start(ctx, "identity.upload_avatar", trace.WithAttributes(attribute.Int64("upload.max_bytes", s.maxAvatar)))
	defer span.End()

	if s.storage == nil {
		return dto.UserResponse{}, ErrStorageUnavailable
	}

	payload, err := readAvatar(file, userID, s.maxAvatar)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "validation failed")
		return dto.UserResponse{}, err
	}
	span.SetAttributes(attribute.String("upload.detected_mime", payload.mime))

	user, err := s.load(ctx, userID)
	if err != nil {
		return dto.UserResponse{}, err
	}

	url, err := s.storage.Upload(ctx, payload.name, bytes.NewReader(payload.data))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "storage failed")
		return dto.UserResponse{}, err
	}

	user.AvatarURL = url
	if err := s.users.Update(ctx, &user); err != nil {
		return dto.UserResponse{}, err
	}
	return s.withPresence(ctx, user), nil
}

// Get returns a profile. Email is only visible to its owner.
func (s *identityService) Get(ctx context.Context, viewerID, userID string) (dto.UserResponse, error) {
	user, err := s.load(ctx, userID)
	if err != nil {
		return dto.UserResponse{}, err
	}
	response := s.withPresence(ctx, user)
	if viewerID != userID {
		response = response.PublicView()
	}
	return response, nil
}

// Search finds users by name, username or user code, excluding the viewer.
func (s *identityService) Search(ctx context.Context, viewerID, term string) ([]dto.UserResponse, error) {
	term = strings.TrimSpace(term)
	if len(term) < 2 {
		return []dto.UserResponse{}, nil
	}

	users, err := s.users.Search(ctx, term, viewerID, userSearchLimit)
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(users))
	for _, user := range users {
		ids = append(ids, user.ID)
	}
	presence, err := s.presence.GetMany(ctx, ids)
	if err != nil {
		s.logger.Warn().Err(err).Msg("presence lookup failed during search")
	}

	out := make([]dto.UserResponse, 0, len(users))
	for _, user := range users {
		out = append(out, dto.NewUserResponse(user, presence[user.ID]).PublicView())
	}
	return out, nil
}

func (s *identityService) load(ctx context.Context, userID string) (models.User, error) {
	user, err := s.users.Get(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return models.User{}, ErrUserNotFound
	}
	return user, err
}

// migrate upgrades a stored profile. Profiles that already carried a chosen
// username count as complete; backfilled usernames still need confirming.
func (s *identityService) migrate(ctx context.Context, user *models.User, identity auth.Identity) error {
	if strings.TrimSpace(user.Username) != "" {
		user.MarkProfileComplete(user.CreatedAt)
	} else {
		hint := identity
		if hint.DisplayName == "" {
			hint.DisplayName = user.FullName
		}
		if hint.Email == "" {
			hint.Email = user.Email
		}
		user.Username = hint.UsernameHint()
	}
	if strings.TrimSpace(user.Email) == "" {
		user.Email = identity.Email
	}

	if strings.TrimSpace(user.UserCode) == "" {
		if err := s.updateWithUniqueCode(ctx, user); err != nil {
			return err
		}
	} else {
		user.SchemaVersion = models.UserSchemaVersion
		if err := s.users.Update(ctx, user); err != nil {
			return err
		}
	}

	s.logger.Info().Str("user_id", user.ID).Int("schema_version", user.SchemaVersion).Msg("profile migrated")
	return nil
}

// createWithUniqueCode inserts the user, regenerating the code suffix on collision.
// It reports false when a concurrent request created the same user first.
func (s *identityService) createWithUniqueCode(ctx context.Context, user *models.User) (bool, error) {
	user.SchemaVersion = models.UserSchemaVersion
	for attempt := 0; attempt < userCodeAttempts; attempt++ {
		user.UserCode = models.FormatUserCode(user.Username, s.suffix())
		err := s.users.Create(ctx, user)
		if err == nil {
			return true, nil
		}
		if !errors.Is(err, repository.ErrConflict) {
			return false, err
		}

		existing, getErr := s.users.Get(ctx, user.ID)
		if getErr == nil {
			*user = existing
			return false, nil
		}
		if !errors.Is(getErr, repository.ErrNotFound) {
			return false, getErr
		}
		s.logger.Debug().Str("user_code", user.UserCode).Int("attempt", attempt+1).Msg("user code taken, retrying")
	}
	return false, ErrUserCodeExhausted
}

func (s *identityService) updateWithUniqueCode(ctx context.Context, user *models.User) error {
	user.SchemaVersion = models.UserSchemaVersion
	for attempt := 0; attempt < userCodeAttempts; attempt++ {
		user.UserCode = models.FormatUserCode(user.Username, s.suffix())
		err := s.users.Update(ctx, user)
		if err == nil {
			return nil
		}
		if !errors.Is(err, repository.ErrConflict) {
			return err
		}
	}
	return ErrUserCodeExhausted
}

func (s *identityService) suffix() int {
	s.rngMu.Lock()
	defer s.rngMu.Unlock()
	return 1000 + s.rng.Intn(9000)
}

func (s *identityService) clean(value string) string {
	return strings.TrimSpace(s.sanitizer.Sanitize(value))
}

func (s *identityService) withPresence(ctx context.Context, user models.User) dto.UserResponse {
	presence, err := s.presence.Get(ctx, user.ID)
	if err != nil {
		s.logger.Warn().Err(err).Str("user_id", user.ID).Msg("presence lookup failed")
	}
	return dto.NewUserResponse(user, presence)
}
