package handler

import (
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/vibely-go-api/internal/dto"
	"github.com/noah-isme/vibely-go-api/internal/service"
	"github.com/noah-isme/vibely-go-api/internal/utils"
)

// ChatRequestHandler exposes DM requests addressed by user code.
type ChatRequestHandler struct {
	service   service.ChatRequestService
	validator *validator.Validate
	logger    zerolog.Logger
}

// NewChatRequestHandler creates a chat request handler instance.
func NewChatRequestHandler(service service.ChatRequestService, validator *validator.Validate, logger zerolog.Logger) *ChatRequestHandler {
	return &ChatRequestHandler{
		service:   service,
		validator: validator,
		logger:    logger.With().Str("component", "chat_request_handler").Logger(),
	}
}

// Register binds chat request routes under the provided router group.
func (h *ChatRequestHandler) Register(router fiber.Router) {
	router.Get("", h.list)
	router.Post("", h.send)
	router.Post("/:id/respond", h.respond)
}

func (h *ChatRequestHandler) list(c *fiber.Ctx) error {
	pending, err := h.service.ListPending(requestContext(c), userIDFromContext(c))
	if err != nil {
		return sendServiceError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "chat requests retrieved", pending)
}

func (h *ChatRequestHandler) send(c *fiber.Ctx) error {
	var req dto.SendChatRequestRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}
	if err := h.validator.Struct(req); err != nil {
		return sendServiceError(c, h.logger, err)
	}

	request, err := h.service.Send(requestContext(c), userIDFromContext(c), req.UserCode)
	if err != nil {
		return sendServiceError(c, h.logger, err)
	}
	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "chat request sent", request)
}

func (h *ChatRequestHandler) respond(c *fiber.Ctx) error {
	var req dto.RespondChatRequestRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}
	if err := h.validator.Struct(req); err != nil {
		return sendServiceError(c, h.logger, err)
	}

	outcome, err := h.service.Respond(requestContext(c), userIDFromContext(c), c.Params("id"), *req.Accept)
	if err != nil {
		return sendServiceError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "chat request answered", outcome)
}
