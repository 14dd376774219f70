package dto

import (
	"time"

	"github.com/noah-isme/vibely-go-api/internal/models"
)

// SendMessageRequest posts a message to a chat.
type SendMessageRequest struct {
	Content string `json:"content" validate:"required,min=1,max=4000"`
}

// ToggleReactionRequest adds or removes the caller's emoji on a message.
type ToggleReactionRequest struct {
	Emoji string `json:"emoji" validate:"required,max=32"`
}

// MessageHistoryQuery pages backwards through a chat. Cursor is the id of the
// oldest message already seen and takes precedence over Before.
type MessageHistoryQuery struct {
	Cursor string     `query:"cursor"`
	Before *time.Time `query:"before"`
	Limit  int        `query:"limit" validate:"omitempty,min=1,max=100"`
}

// ReactionResponse is one user's emoji on a message.
type ReactionResponse struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	Emoji    string `json:"emoji"`
}

// MessageResponse is the serialized representation of a chat message.
type MessageResponse struct {
	ID         string             `json:"id"`
	ChatID     string             `json:"chat_id"`
	AuthorID   string             `json:"author_id"`
	Content    string             `json:"content"`
	Timestamp  time.Time          `json:"timestamp"`
	ReadStatus *string            `json:"read_status"`
	Reactions  []ReactionResponse `json:"reactions"`
}

// MessageSnapshot is the ordered message view of one chat.
type MessageSnapshot struct {
	ChatID   string            `json:"chat_id"`
	Messages []MessageResponse `json:"messages"`
}

// ReactionToggleResponse reports the outcome of a toggle.
type ReactionToggleResponse struct {
	MessageID string `json:"message_id"`
	Emoji     string `json:"emoji"`
	Added     bool   `json:"added"`
}

// ReadReceiptResponse reports how many messages were marked read.
type ReadReceiptResponse struct {
	Marked int `json:"marked"`
}

// NewMessageResponse converts a model into a DTO.
func NewMessageResponse(message models.Message) MessageResponse {
	reactions := make([]ReactionResponse, 0, len(message.Reactions))
	for _, reaction := range message.Reactions {
		reactions = append(reactions, ReactionResponse{
			UserID:   reaction.UserID,
			Username: reaction.Username,
			Emoji:    reaction.Emoji,
		})
	}

	return MessageResponse{
		ID:         message.ID,
		ChatID:     message.ChatID,
		AuthorID:   message.AuthorID,
		Content:    message.Content,
		Timestamp:  message.Timestamp,
		ReadStatus: message.ReadStatus,
		Reactions:  reactions,
	}
}

// NewMessageResponseSlice converts a slice of models into DTOs.
func NewMessageResponseSlice(messages []models.Message) []MessageResponse {
	out := make([]MessageResponse, 0, len(messages))
	for _, message := range messages {
		out = append(out, NewMessageResponse(message))
	}
	return out
}

// IsRead reports whether the message carries the read status.
func (m MessageResponse) IsRead() bool {
	return m.ReadStatus != nil && *m.ReadStatus == models.ReadStatusRead
}
