package dto

import (
	"time"

	"github.com/noah-isme/vibely-go-api/internal/models"
)

// CreateCompanionRequest defines a new AI companion.
type CreateCompanionRequest struct {
	Name      string `json:"name" validate:"required,min=3,max=80"`
	Persona   string `json:"persona" validate:"required,min=10,max=500"`
	Voice     string `json:"voice" validate:"required,oneof=Algenib Achernar Enif Hadar Regulus Sirius"`
	AvatarURL string `json:"avatar_url" validate:"omitempty,url,max=512"`
}

// CompanionResponse is a companion as shown to its owner.
type CompanionResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Persona   string    `json:"persona"`
	Voice     string    `json:"voice"`
	AvatarURL string    `json:"avatar_url"`
	Tools     []string  `json:"tools"`
	CreatedAt time.Time `json:"created_at"`
}

// NewCompanionResponse converts a model into a DTO.
func NewCompanionResponse(companion models.Companion) CompanionResponse {
	companion.Normalize()
	return CompanionResponse{
		ID:        companion.ID,
		Name:      companion.Name,
		Persona:   companion.Persona,
		Voice:     companion.Voice,
		AvatarURL: companion.AvatarURL,
		Tools:     []string(companion.Tools),
		CreatedAt: companion.CreatedAt,
	}
}
