package models

import "time"

// ReadStatusRead is the only non-nil read status a message may carry.
const ReadStatusRead = "read"

// Message is an append-only chat entry. Only ReadStatus and Reactions change after creation.
type Message struct {
	ID         string            `gorm:"primaryKey;size:64" json:"id"`
	ChatID     string            `gorm:"size:160;index:idx_messages_chat_ts,priority:1;not null" json:"chat_id"`
	AuthorID   string            `gorm:"size:128;index;not null" json:"author_id"`
	Content    string            `gorm:"type:text;not null" json:"content"`
	Timestamp  time.Time         `gorm:"column:sent_at;index:idx_messages_chat_ts,priority:2;not null" json:"timestamp"`
	ReadStatus *string           `gorm:"size:16" json:"read_status"`
	Reactions  []MessageReaction `gorm:"foreignKey:MessageID;constraint:OnDelete:CASCADE" json:"reactions"`
}

// IsRead reports whether the message has been marked read.
func (m Message) IsRead() bool {
	return m.ReadStatus != nil && *m.ReadStatus == ReadStatusRead
}

// MessageReaction records one emoji from one user; (message, user, emoji) is unique.
type MessageReaction struct {
	ID        uint      `gorm:"primaryKey" json:"-"`
	MessageID string    `gorm:"size:64;not null;uniqueIndex:idx_reaction_unique,priority:1" json:"message_id"`
	UserID    string    `gorm:"size:128;not null;uniqueIndex:idx_reaction_unique,priority:2" json:"user_id"`
	Emoji     string    `gorm:"size:32;not null;uniqueIndex:idx_reaction_unique,priority:3" json:"emoji"`
	Username  string    `gorm:"size:64" json:"username"`
	CreatedAt time.Time `json:"created_at"`
}
