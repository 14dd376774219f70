package handler

import (
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/vibely-go-api/internal/dto"
	"github.com/noah-isme/vibely-go-api/internal/service"
	"github.com/noah-isme/vibely-go-api/internal/utils"
)

// UserHandler serves profiles, user search and presence.
type UserHandler struct {
	identity  service.IdentityService
	presence  service.PresenceService
	validator *validator.Validate
	logger    zerolog.Logger
}

// NewUserHandler constructs the handler.
func NewUserHandler(identity service.IdentityService, presence service.PresenceService, validator *validator.Validate, logger zerolog.Logger) *UserHandler {
	return &UserHandler{
		identity:  identity,
		presence:  presence,
		validator: validator,
		logger:    logger.With().Str("component", "user_handler").Logger(),
	}
}

// Register binds profile, user and presence routes on the authenticated router.
func (h *UserHandler) Register(router fiber.Router) {
	me := router.Group("/me")
	me.Get("", h.me)
	me.Patch("", h.updateProfile)
	me.Post("/profile", h.completeProfile)
	me.Post("/avatar", h.uploadAvatar)

	users := router.Group("/users")
	users.Get("/search", h.search)
	users.Get("/:id", h.get)
	users.Get("/:id/presence", h.presenceOf)

	router.Post("/presence/offline", h.offline)
}

func (h *UserHandler) me(c *fiber.Ctx) error {
	userID := userIDFromContext(c)
	user, err := h.identity.Get(requestContext(c), userID, userID)
	if err != nil {
		return sendServiceError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "profile retrieved", user)
}

func (h *UserHandler) updateProfile(c *fiber.Ctx) error {
	var req dto.UpdateProfileRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	user, err := h.identity.UpdateProfile(requestContext(c), userIDFromContext(c), req)
	if err != nil {
		return sendServiceError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "profile updated", user)
}

func (h *UserHandler) completeProfile(c *fiber.Ctx) error {
	var req dto.CompleteProfileRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	user, err := h.identity.CompleteProfile(requestContext(c), userIDFromContext(c), req)
	if err != nil {
		return sendServiceError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "profile completed", user)
}

func (h *UserHandler) uploadAvatar(c *fiber.Ctx) error {
	file, err := c.FormFile("avatar")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, service.ErrUploadMissing.Error())
	}

	user, err := h.identity.UploadAvatar(requestContext(c), userIDFromContext(c), file)
	if err != nil {
		return sendServiceError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "avatar updated", user)
}

func (h *UserHandler) search(c *fiber.Ctx) error {
	users, err := h.identity.Search(requestContext(c), userIDFromContext(c), strings.TrimSpace(c.Query("q")))
	if err != nil {
		return sendServiceError(c, h.logger, err)
	}
	return utils.OK(c, users, "users retrieved", utils.PageMeta{Limit: 10, Count: len(users)})
}

func (h *UserHandler) get(c *fiber.Ctx) error {
	user, err := h.identity.Get(requestContext(c), userIDFromContext(c), c.Params("id"))
	if err != nil {
		return sendServiceError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "user retrieved", user)
}

func (h *UserHandler) presenceOf(c *fiber.Ctx) error {
	state, err := h.presence.Get(requestContext(c), c.Params("id"))
	if err != nil {
		return sendServiceError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "presence retrieved", state)
}

// offline is the unload beacon. It always succeeds from the client's point of view.
func (h *UserHandler) offline(c *fiber.Ctx) error {
	var req dto.PresenceOfflineRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}
	if err := h.validator.Struct(req); err != nil {
		return sendServiceError(c, h.logger, err)
	}

	userID := userIDFromContext(c)
	if err := h.presence.Unload(requestContext(c), userID, req.SessionID); err != nil {
		requestLogger(h.logger, c).Warn().Err(err).Str("user_id", userID).Msg("presence unload failed")
	}
	return c.SendStatus(fiber.StatusNoContent)
}
