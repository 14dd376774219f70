package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/vibely-go-api/internal/dto"
	"github.com/noah-isme/vibely-go-api/internal/service"
	"github.com/noah-isme/vibely-go-api/internal/utils"
)

// ChatHandler wires the chat directory and automation endpoints.
type ChatHandler struct {
	directory  service.DirectoryService
	automation service.AutomationService
	logger     zerolog.Logger
}

// NewChatHandler creates a chat handler instance.
func NewChatHandler(directory service.DirectoryService, automation service.AutomationService, logger zerolog.Logger) *ChatHandler {
	return &ChatHandler{
		directory:  directory,
		automation: automation,
		logger:     logger.With().Str("component", "chat_handler").Logger(),
	}
}

// Register binds chat routes under the provided router group.
func (h *ChatHandler) Register(router fiber.Router) {
	router.Get("", h.list)
	router.Post("/channels", h.createChannel)
	router.Post("/groups", h.createGroup)
	router.Post("/direct", h.startDirect)
	router.Post("/suggestions", h.suggest)
	router.Get("/:id", h.get)
	router.Put("/:id/automations", h.updateAutomations)
	router.Post("/:id/automations/save", h.saveAutomations)
}

func (h *ChatHandler) list(c *fiber.Ctx) error {
	directory, err := h.directory.List(requestContext(c), userIDFromContext(c))
	if err != nil {
		return sendServiceError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "chats retrieved", directory)
}

func (h *ChatHandler) get(c *fiber.Ctx) error {
	chat, err := h.directory.Get(requestContext(c), c.Params("id"), userIDFromContext(c))
	if err != nil {
		return sendServiceError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "chat retrieved", chat)
}

func (h *ChatHandler) createChannel(c *fiber.Ctx) error {
	var req dto.CreateChannelRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	chat, err := h.directory.CreateChannel(requestContext(c), userIDFromContext(c), req)
	if err != nil {
		return sendServiceError(c, h.logger, err)
	}
	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "channel created", chat)
}

func (h *ChatHandler) createGroup(c *fiber.Ctx) error {
	var req dto.CreateGroupRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	chat, err := h.directory.CreateGroupDM(requestContext(c), userIDFromContext(c), req)
	if err != nil {
		return sendServiceError(c, h.logger, err)
	}
	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "group created", chat)
}

func (h *ChatHandler) startDirect(c *fiber.Ctx) error {
	var req dto.StartDirectRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}
	if req.UserID == "" {
		return utils.SendError(c, fiber.StatusBadRequest, "user_id required")
	}

	chat, err := h.directory.StartDirect(requestContext(c), userIDFromContext(c), req.UserID)
	if err != nil {
		return sendServiceError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "direct chat ready", chat)
}

func (h *ChatHandler) suggest(c *fiber.Ctx) error {
	var req dto.SetupSuggestionRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	suggestion, err := h.automation.SuggestSetup(requestContext(c), userIDFromContext(c), req)
	if err != nil {
		return sendServiceError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "setup suggested", suggestion)
}

func (h *ChatHandler) updateAutomations(c *fiber.Ctx) error {
	var req dto.UpdateAutomationsRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	automations, err := h.automation.UpdateAutomations(requestContext(c), c.Params("id"), userIDFromContext(c), req)
	if err != nil {
		return sendServiceError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "automations updated", automations)
}

func (h *ChatHandler) saveAutomations(c *fiber.Ctx) error {
	var req dto.UpdateAutomationsRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	result, err := h.automation.Save(requestContext(c), c.Params("id"), userIDFromContext(c), req)
	if err != nil {
		return sendServiceError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "automations saved", result)
}
