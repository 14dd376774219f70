package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/vibely-go-api/internal/dto"
	"github.com/noah-isme/vibely-go-api/internal/middleware"
	"github.com/noah-isme/vibely-go-api/internal/service"
	"github.com/noah-isme/vibely-go-api/internal/utils"
	"github.com/noah-isme/vibely-go-api/pkg/auth"
)

// AuthHandler exposes sign-up, session bootstrap and logout.
type AuthHandler struct {
	identity service.IdentityService
	presence service.PresenceService
	logger   zerolog.Logger
}

// NewAuthHandler constructs the handler.
func NewAuthHandler(identity service.IdentityService, presence service.PresenceService, logger zerolog.Logger) *AuthHandler {
	return &AuthHandler{
		identity: identity,
		presence: presence,
		logger:   logger.With().Str("component", "auth_handler").Logger(),
	}
}

// Register binds the public sign-up route and the authenticated session routes.
func (h *AuthHandler) Register(public fiber.Router, protected fiber.Router) {
	public.Post("/signup", h.signup)
	protected.Post("/session", h.session)
	protected.Post("/logout", h.logout)
}

func (h *AuthHandler) signup(c *fiber.Ctx) error {
	var req dto.SignupRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	session, err := h.identity.Signup(requestContext(c), req)
	if err != nil {
		return h.authError(c, auth.FlowSignup, err)
	}
	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "account created", session)
}

// session resolves the verified identity into a profile, creating it on first sign-in.
func (h *AuthHandler) session(c *fiber.Ctx) error {
	identity, ok := middleware.IdentityFromLocals(c)
	if !ok {
		return utils.SendError(c, fiber.StatusUnauthorized, auth.FriendlyMessage(auth.FlowLogin, auth.CodeInvalidCredential))
	}

	session, err := h.identity.EnsureProfile(requestContext(c), identity)
	if err != nil {
		return h.authError(c, auth.FlowLogin, err)
	}
	return utils.SendSuccess(c, "session established", session)
}

func (h *AuthHandler) logout(c *fiber.Ctx) error {
	userID := userIDFromContext(c)
	if err := h.presence.Logout(requestContext(c), userID); err != nil {
		requestLogger(h.logger, c).Warn().Err(err).Str("user_id", userID).Msg("failed to clear presence on logout")
	}
	return utils.SendSuccess(c, "signed out", fiber.Map{"user_id": userID})
}

func (h *AuthHandler) authError(c *fiber.Ctx, flow auth.Flow, err error) error {
	if isValidationError(err) {
		return sendServiceError(c, h.logger, err)
	}
	if errors.Is(err, auth.ErrRegistrationUnsupported) {
		return utils.SendError(c, fiber.StatusNotImplemented, err.Error())
	}

	code := auth.Classify(err)
	if code == auth.CodeUnknown {
		var authErr *auth.Error
		if !errors.As(err, &authErr) {
			requestLogger(h.logger, c).Error().Err(err).Str("flow", string(flow)).Msg("authentication failed")
			return utils.Fail(c, fiber.StatusInternalServerError, auth.FriendlyMessage(flow, code), fiber.Map{"code": code})
		}
	}

	status := fiber.StatusBadRequest
	switch code {
	case auth.CodeEmailAlreadyInUse, auth.CodeAccountExistsWithOtherCred:
		status = fiber.StatusConflict
	case auth.CodeInvalidCredential, auth.CodeUserNotFound, auth.CodeWrongPassword:
		status = fiber.StatusUnauthorized
	}
	return utils.Fail(c, status, auth.FriendlyMessage(flow, code), fiber.Map{"code": code})
}
