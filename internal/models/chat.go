package models

import (
	"sort"
	"strings"
	"time"

	"gorm.io/datatypes"
)

// ChatSchemaVersion is the current shape of persisted chats.
const ChatSchemaVersion = 1

// ChatKind classifies a chat for directory presentation.
type ChatKind string

const (
	ChatKindPublic  ChatKind = "public"
	ChatKindGroupDM ChatKind = "group"
	ChatKindDirect  ChatKind = "direct"
	ChatKindPrivate ChatKind = "private"
)

// Chat is a channel, group DM or 1:1 DM. Membership is fixed at creation.
type Chat struct {
	ID            string                          `gorm:"primaryKey;size:160" json:"id"`
	SchemaVersion int                             `gorm:"not null;default:1" json:"schema_version"`
	Name          string                          `gorm:"size:120" json:"name"`
	Description   string                          `gorm:"type:text" json:"description"`
	IsPublic      bool                            `gorm:"not null;default:false;index" json:"is_public"`
	IsDM          bool                            `gorm:"column:is_dm;not null;default:false;index" json:"is_dm"`
	OwnerID       string                          `gorm:"size:128;index" json:"owner_id"`
	Members       []ChatMember                    `gorm:"foreignKey:ChatID;constraint:OnDelete:CASCADE" json:"members"`
	Automations   datatypes.JSONSlice[Automation] `json:"automations"`
	CreatedAt     time.Time                       `json:"created_at"`
	UpdatedAt     time.Time                       `gorm:"index" json:"updated_at"`
}

// ChatMember indexes chats by participant.
type ChatMember struct {
	ChatID    string    `gorm:"primaryKey;size:160" json:"chat_id"`
	UserID    string    `gorm:"primaryKey;size:128;index" json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
}

// Automation is a per-chat toggle with a free-text content template.
type Automation struct {
	ID          string `json:"id" firestore:"id"`
	Name        string `json:"name" firestore:"name"`
	Description string `json:"description" firestore:"description"`
	Enabled     bool   `json:"enabled" firestore:"enabled"`
	Content     string `json:"content" firestore:"content"`
}

// MemberIDs returns the sorted, de-duplicated member ids.
func (c Chat) MemberIDs() []string {
	seen := make(map[string]struct{}, len(c.Members))
	ids := make([]string, 0, len(c.Members))
	for _, member := range c.Members {
		id := strings.TrimSpace(member.UserID)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// HasMember reports whether userID belongs to the chat.
func (c Chat) HasMember(userID string) bool {
	for _, member := range c.Members {
		if member.UserID == userID {
			return true
		}
	}
	return false
}

// Kind derives the directory partition of the chat.
func (c Chat) Kind() ChatKind {
	count := len(c.MemberIDs())
	switch {
	case c.IsDM && count > 2:
		return ChatKindGroupDM
	case c.IsDM && count == 2:
		return ChatKindDirect
	case c.IsPublic && !c.IsDM:
		return ChatKindPublic
	default:
		return ChatKindPrivate
	}
}

// Counterpart returns the other participant of a 1:1 DM.
func (c Chat) Counterpart(userID string) (string, bool) {
	if c.Kind() != ChatKindDirect {
		return "", false
	}
	for _, id := range c.MemberIDs() {
		if id != userID {
			return id, true
		}
	}
	return "", false
}

// Normalize fills read-time defaults.
func (c *Chat) Normalize() {
	if c.Automations == nil {
		c.Automations = datatypes.JSONSlice[Automation]{}
	}
	if c.Members == nil {
		c.Members = []ChatMember{}
	}
	if c.SchemaVersion == 0 {
		c.SchemaVersion = ChatSchemaVersion
	}
}

// NewMembers builds membership rows for the given ids, skipping blanks and duplicates.
func NewMembers(chatID string, userIDs ...string) []ChatMember {
	seen := make(map[string]struct{}, len(userIDs))
	members := make([]ChatMember, 0, len(userIDs))
	for _, id := range userIDs {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		members = append(members, ChatMember{ChatID: chatID, UserID: id})
	}
	return members
}
