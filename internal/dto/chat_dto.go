package dto

import (
	"time"

	"github.com/noah-isme/vibely-go-api/internal/models"
)

// AutomationPayload is the wire shape of a chat automation.
type AutomationPayload struct {
	ID          string `json:"id" validate:"omitempty,max=64"`
	Name        string `json:"name" validate:"required,max=80"`
	Description string `json:"description" validate:"max=280"`
	Enabled     bool   `json:"enabled"`
	Content     string `json:"content" validate:"max=2000"`
}

// CreateChannelRequest creates a public channel owned by the caller.
type CreateChannelRequest struct {
	Name        string              `json:"name" validate:"required,min=3,max=80"`
	Description string              `json:"description" validate:"max=500"`
	MemberIDs   []string            `json:"member_ids" validate:"max=200,dive,required,max=128"`
	Automations []AutomationPayload `json:"automations" validate:"max=20,dive"`
}

// CreateGroupRequest creates a group DM with the caller and at least two others.
type CreateGroupRequest struct {
	Name      string   `json:"name" validate:"max=80"`
	MemberIDs []string `json:"member_ids" validate:"required,min=2,max=50,dive,required,max=128"`
}

// StartDirectRequest opens the 1:1 DM with another user.
type StartDirectRequest struct {
	UserID string `json:"user_id" validate:"required,max=128"`
}

// MessagePreview is the latest message of a chat shown in the directory.
type MessagePreview struct {
	ID        string    `json:"id"`
	AuthorID  string    `json:"author_id"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// ChatResponse is a directory entry.
type ChatResponse struct {
	ID          string              `json:"id"`
	Name        string              `json:"name"`
	Description string              `json:"description"`
	Kind        models.ChatKind     `json:"kind"`
	IsPublic    bool                `json:"is_public"`
	IsDM        bool                `json:"is_dm"`
	OwnerID     string              `json:"owner_id"`
	MemberIDs   []string            `json:"member_ids"`
	Automations []AutomationPayload `json:"automations"`
	Counterpart *UserResponse       `json:"counterpart"`
	LastMessage *MessagePreview     `json:"last_message,omitempty"`
	CreatedAt   time.Time           `json:"created_at"`
	UpdatedAt   time.Time           `json:"updated_at"`
}

// ChatDirectory is the viewer's chat list split into sections.
type ChatDirectory struct {
	Public []ChatResponse `json:"public"`
	Groups []ChatResponse `json:"groups"`
	Direct []ChatResponse `json:"direct"`
}

// NewChatResponse converts a chat model. Counterpart and preview are attached by the caller.
func NewChatResponse(chat models.Chat) ChatResponse {
	chat.Normalize()
	return ChatResponse{
		ID:          chat.ID,
		Name:        chat.Name,
		Description: chat.Description,
		Kind:        chat.Kind(),
		IsPublic:    chat.IsPublic,
		IsDM:        chat.IsDM,
		OwnerID:     chat.OwnerID,
		MemberIDs:   chat.MemberIDs(),
		Automations: NewAutomationPayloads(chat.Automations),
		CreatedAt:   chat.CreatedAt,
		UpdatedAt:   chat.UpdatedAt,
	}
}

// PartitionChats splits entries into public channels, group DMs and 1:1 DMs, keeping order.
// Private non-DM chats belong to no section.
func PartitionChats(chats []ChatResponse) ChatDirectory {
	directory := ChatDirectory{
		Public: []ChatResponse{},
		Groups: []ChatResponse{},
		Direct: []ChatResponse{},
	}
	for _, chat := range chats {
		switch {
		case chat.IsPublic && !chat.IsDM:
			directory.Public = append(directory.Public, chat)
		case chat.IsDM && len(chat.MemberIDs) > 2:
			directory.Groups = append(directory.Groups, chat)
		case chat.IsDM && len(chat.MemberIDs) == 2:
			directory.Direct = append(directory.Direct, chat)
		}
	}
	return directory
}

// NewAutomationPayloads converts stored automations.
func NewAutomationPayloads(automations []models.Automation) []AutomationPayload {
	out := make([]AutomationPayload, 0, len(automations))
	for _, automation := range automations {
		out = append(out, AutomationPayload{
			ID:          automation.ID,
			Name:        automation.Name,
			Description: automation.Description,
			Enabled:     automation.Enabled,
			Content:     automation.Content,
		})
	}
	return out
}

// ToModel converts the payload into a stored automation.
func (p AutomationPayload) ToModel() models.Automation {
	return models.Automation{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		Enabled:     p.Enabled,
		Content:     p.Content,
	}
}
