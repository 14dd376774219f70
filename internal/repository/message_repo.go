package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/noah-isme/vibely-go-api/internal/models"
)

// MessageCursor positions a history page. ID names the oldest message already
// seen and wins over Before, so messages sharing its timestamp are not skipped.
type MessageCursor struct {
	Before time.Time
	ID     string
}

// MessageRepository persists chat messages, read state and reactions.
type MessageRepository interface {
	Create(ctx context.Context, message *models.Message) error
	Get(ctx context.Context, chatID, messageID string) (models.Message, error)
	ListByChat(ctx context.Context, chatID string, cursor MessageCursor, limit int) ([]models.Message, error)
	MarkRead(ctx context.Context, chatID string, messageIDs []string) (int64, error)
	ToggleReaction(ctx context.Context, chatID string, reaction models.MessageReaction) (bool, error)
}

type messageRepository struct {
	db *gorm.DB
}

// NewMessageRepository constructs a message repository backed by GORM.
func NewMessageRepository(db *gorm.DB) MessageRepository {
	return &messageRepository{db: db}
}

func (r *messageRepository) Create(ctx context.Context, message *models.Message) error {
	return r.db.WithContext(ctx).Omit("Reactions").Create(message).Error
}

func (r *messageRepository) Get(ctx context.Context, chatID, messageID string) (models.Message, error) {
	var message models.Message
	err := r.db.WithContext(ctx).
		Preload("Reactions", orderReactions).
		Where("id = ? AND chat_id = ?", messageID, chatID).
		First(&message).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Message{}, ErrNotFound
		}
		return models.Message{}, err
	}
	return message, nil
}

func (r *messageRepository) ListByChat(ctx context.Context, chatID string, cursor MessageCursor, limit int) ([]models.Message, error) {
	limit = normalizeLimit(limit)

	query := r.db.WithContext(ctx).Where("chat_id = ?", chatID)
	switch {
	case cursor.ID != "":
		anchor := func() *gorm.DB {
			return r.db.WithContext(ctx).Model(&models.Message{}).
				Select("sent_at").
				Where("id = ? AND chat_id = ?", cursor.ID, chatID)
		}

		var count int64
		if err := anchor().Count(&count).Error; err != nil {
			return nil, err
		}
		if count == 0 {
			return nil, ErrNotFound
		}
		query = query.Where("(sent_at < (?) OR (sent_at = (?) AND id < ?))", anchor(), anchor(), cursor.ID)
	case !cursor.Before.IsZero():
		query = query.Where("sent_at < ?", cursor.Before)
	}

	var messages []models.Message
	err := query.Preload("Reactions", orderReactions).
		Order("sent_at DESC").Order("id DESC").
		Limit(limit).
		Find(&messages).Error
	if err != nil {
		return nil, err
	}

	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}

	return messages, nil
}

// MarkRead flips every listed unread message to read in one statement.
// Rows already read are not touched, so read status never reverts.
func (r *messageRepository) MarkRead(ctx context.Context, chatID string, messageIDs []string) (int64, error) {
	if len(messageIDs) == 0 {
		return 0, nil
	}
	result := r.db.WithContext(ctx).Model(&models.Message{}).
		Where("chat_id = ? AND id IN ? AND read_status IS NULL", chatID, messageIDs).
		UpdateColumn("read_status", models.ReadStatusRead)
	return result.RowsAffected, result.Error
}

// ToggleReaction removes the (user, emoji) reaction if present, otherwise adds it.
// It reports whether the reaction is present afterwards.
func (r *messageRepository) ToggleReaction(ctx context.Context, chatID string, reaction models.MessageReaction) (bool, error) {
	added := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.Message{}).Where("id = ? AND chat_id = ?", reaction.MessageID, chatID).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return ErrNotFound
		}

		removed := tx.Where("message_id = ? AND user_id = ? AND emoji = ?", reaction.MessageID, reaction.UserID, reaction.Emoji).
			Delete(&models.MessageReaction{})
		if removed.Error != nil {
			return removed.Error
		}
		if removed.RowsAffected > 0 {
			return nil
		}

		reaction.ID = 0
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&reaction).Error; err != nil {
			return err
		}
		added = true
		return nil
	})
	return added, err
}

func orderReactions(db *gorm.DB) *gorm.DB {
	return db.Order("message_reactions.id ASC")
}
