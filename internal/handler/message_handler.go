package handler

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/vibely-go-api/internal/dto"
	"github.com/noah-isme/vibely-go-api/internal/service"
	"github.com/noah-isme/vibely-go-api/internal/utils"
)

// MessageHandler exposes message history, sending, reactions and read receipts.
type MessageHandler struct {
	messages service.MessageService
	receipts service.ReadReceiptReconciler
	logger   zerolog.Logger
}

// NewMessageHandler creates a message handler instance.
func NewMessageHandler(messages service.MessageService, receipts service.ReadReceiptReconciler, logger zerolog.Logger) *MessageHandler {
	return &MessageHandler{
		messages: messages,
		receipts: receipts,
		logger:   logger.With().Str("component", "message_handler").Logger(),
	}
}

// Register binds message routes below a chat router group.
func (h *MessageHandler) Register(router fiber.Router) {
	router.Get("/:id/messages", h.history)
	router.Post("/:id/messages", h.send)
	router.Post("/:id/messages/:messageId/reactions", h.toggleReaction)
	router.Post("/:id/read", h.markRead)
}

func (h *MessageHandler) history(c *fiber.Ctx) error {
	query := dto.MessageHistoryQuery{Cursor: strings.TrimSpace(c.Query("cursor"))}
	if raw := c.Query("before"); raw != "" {
		before, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			return utils.SendError(c, fiber.StatusBadRequest, "invalid before parameter")
		}
		query.Before = &before
	}
	limit, err := parseQueryInt(c, "limit")
	if err != nil || limit < 0 {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid limit parameter")
	}
	query.Limit = limit

	messages, err := h.messages.History(requestContext(c), c.Params("id"), userIDFromContext(c), query)
	if err != nil {
		return sendServiceError(c, h.logger, err)
	}

	meta := utils.PageMeta{Limit: limit, Count: len(messages)}
	if len(messages) > 0 {
		meta.NextCursor = messages[0].ID
	}
	return utils.OK(c, messages, "messages retrieved", meta)
}

func (h *MessageHandler) send(c *fiber.Ctx) error {
	var req dto.SendMessageRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	message, err := h.messages.Send(requestContext(c), c.Params("id"), userIDFromContext(c), req.Content)
	if err != nil {
		return sendServiceError(c, h.logger, err)
	}
	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "message sent", message)
}

func (h *MessageHandler) toggleReaction(c *fiber.Ctx) error {
	var req dto.ToggleReactionRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}
	if req.Emoji == "" {
		return utils.SendError(c, fiber.StatusBadRequest, "emoji required")
	}

	result, err := h.messages.ToggleReaction(requestContext(c), c.Params("id"), c.Params("messageId"), userIDFromContext(c), req.Emoji)
	if err != nil {
		return sendServiceError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "reaction toggled", result)
}

func (h *MessageHandler) markRead(c *fiber.Ctx) error {
	marked, err := h.receipts.MarkChatRead(requestContext(c), c.Params("id"), userIDFromContext(c))
	if err != nil {
		return sendServiceError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "messages marked read", dto.ReadReceiptResponse{Marked: marked})
}
