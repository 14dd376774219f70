package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/vibely-go-api/internal/dto"
	"github.com/noah-isme/vibely-go-api/internal/service"
	"github.com/noah-isme/vibely-go-api/internal/utils"
)

// CompanionHandler exposes the caller's AI companions.
type CompanionHandler struct {
	service service.CompanionService
	logger  zerolog.Logger
}

// NewCompanionHandler creates a companion handler instance.
func NewCompanionHandler(service service.CompanionService, logger zerolog.Logger) *CompanionHandler {
	return &CompanionHandler{
		service: service,
		logger:  logger.With().Str("component", "companion_handler").Logger(),
	}
}

// Register binds companion routes under the provided router group.
func (h *CompanionHandler) Register(router fiber.Router) {
	router.Get("", h.list)
	router.Post("", h.create)
	router.Delete("/:id", h.delete)
}

func (h *CompanionHandler) list(c *fiber.Ctx) error {
	companions, err := h.service.List(requestContext(c), userIDFromContext(c))
	if err != nil {
		return sendServiceError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "companions retrieved", companions)
}

func (h *CompanionHandler) create(c *fiber.Ctx) error {
	var req dto.CreateCompanionRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	companion, err := h.service.Create(requestContext(c), userIDFromContext(c), req)
	if err != nil {
		return sendServiceError(c, h.logger, err)
	}
	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "companion created", companion)
}

func (h *CompanionHandler) delete(c *fiber.Ctx) error {
	id := c.Params("id")
	if err := h.service.Delete(requestContext(c), userIDFromContext(c), id); err != nil {
		return sendServiceError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "companion deleted", fiber.Map{"id": id})
}
