package models

import (
	"time"

	"gorm.io/datatypes"
)

// CompanionVoices are the speech voices a companion can be given.
var CompanionVoices = []string{"Algenib", "Achernar", "Enif", "Hadar", "Regulus", "Sirius"}

// CompanionDefaultTool is enabled on every new companion.
const CompanionDefaultTool = "web_search"

// Companion is an AI persona owned by one user.
type Companion struct {
	ID        string                      `gorm:"primaryKey;size:64" json:"id"`
	OwnerID   string                      `gorm:"size:128;index;not null" json:"owner_id"`
	Name      string                      `gorm:"size:80;not null" json:"name"`
	Persona   string                      `gorm:"size:500" json:"persona"`
	Voice     string                      `gorm:"size:32" json:"voice"`
	AvatarURL string                      `gorm:"size:512" json:"avatar_url"`
	Tools     datatypes.JSONSlice[string] `json:"tools"`
	CreatedAt time.Time                   `json:"created_at"`
}

// Normalize fills read-time defaults.
func (c *Companion) Normalize() {
	if c.Tools == nil {
		c.Tools = datatypes.JSONSlice[string]{}
	}
	if c.AvatarURL == "" {
		c.AvatarURL = DefaultAvatarURL("companion-" + c.ID)
	}
}
