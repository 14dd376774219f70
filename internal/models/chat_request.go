package models

import "time"

// ChatRequestStatus captures the lifecycle of a DM consent request.
type ChatRequestStatus string

const (
	ChatRequestPending  ChatRequestStatus = "pending"
	ChatRequestAccepted ChatRequestStatus = "accepted"
	ChatRequestDeclined ChatRequestStatus = "declined"
)

// ChatRequest asks RecipientID for consent to open a DM. Terminal once not pending.
type ChatRequest struct {
	ID            string            `gorm:"primaryKey;size:64" json:"id"`
	RecipientID   string            `gorm:"size:128;index:idx_chat_requests_recipient_status,priority:1;not null" json:"recipient_id"`
	FromUserID    string            `gorm:"size:128;index;not null" json:"from_user_id"`
	FromUserCode  string            `gorm:"size:80" json:"from_user_code"`
	FromFullName  string            `gorm:"size:120" json:"from_full_name"`
	FromAvatarURL string            `gorm:"size:512" json:"from_avatar_url"`
	Status        ChatRequestStatus `gorm:"size:16;index:idx_chat_requests_recipient_status,priority:2;not null" json:"status"`
	CreatedAt     time.Time         `json:"created_at"`
	UpdatedAt     time.Time         `json:"updated_at"`
}

// IsTerminal reports whether the request has been answered.
func (r ChatRequest) IsTerminal() bool {
	return r.Status != ChatRequestPending
}
