package dto

import (
	"time"

	"github.com/noah-isme/vibely-go-api/internal/models"
)

// SendChatRequestRequest asks the owner of a user code for a DM.
type SendChatRequestRequest struct {
	UserCode string `json:"user_code" validate:"required,min=3,max=80"`
}

// RespondChatRequestRequest accepts or declines a pending request.
type RespondChatRequestRequest struct {
	Accept *bool `json:"accept" validate:"required"`
}

// ChatRequestResponse is an incoming DM request.
type ChatRequestResponse struct {
	ID            string                   `json:"id"`
	FromUserID    string                   `json:"from_user_id"`
	FromUserCode  string                   `json:"from_user_code"`
	FromFullName  string                   `json:"from_full_name"`
	FromAvatarURL string                   `json:"from_avatar_url"`
	Status        models.ChatRequestStatus `json:"status"`
	CreatedAt     time.Time                `json:"created_at"`
}

// ChatRequestOutcome is returned after answering a request. Chat is set on accept.
type ChatRequestOutcome struct {
	Request ChatRequestResponse `json:"request"`
	Chat    *ChatResponse       `json:"chat,omitempty"`
}

// NewChatRequestResponse converts a model into a DTO.
func NewChatRequestResponse(request models.ChatRequest) ChatRequestResponse {
	return ChatRequestResponse{
		ID:            request.ID,
		FromUserID:    request.FromUserID,
		FromUserCode:  request.FromUserCode,
		FromFullName:  request.FromFullName,
		FromAvatarURL: request.FromAvatarURL,
		Status:        request.Status,
		CreatedAt:     request.CreatedAt,
	}
}

// NewChatRequestResponseSlice converts a slice of models into DTOs.
func NewChatRequestResponseSlice(requests []models.ChatRequest) []ChatRequestResponse {
	out := make([]ChatRequestResponse, 0, len(requests))
	for _, request := range requests {
		out = append(out, NewChatRequestResponse(request))
	}
	return out
}
