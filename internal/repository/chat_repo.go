package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/noah-isme/vibely-go-api/internal/models"
)

// ChatRepository persists chats and their membership index.
type ChatRepository interface {
	Get(ctx context.Context, id string) (models.Chat, error)
	ListForMember(ctx context.Context, userID string) ([]models.Chat, error)
	FindDirect(ctx context.Context, a, b string) (models.Chat, error)
	Create(ctx context.Context, chat *models.Chat) error
	CreateIfAbsent(ctx context.Context, chat *models.Chat) (models.Chat, bool, error)
	Touch(ctx context.Context, chatID string, at time.Time) error
	UpdateAutomations(ctx context.Context, chatID string, automations []models.Automation, at time.Time) error
}

type chatRepository struct {
	db *gorm.DB
}

// NewChatRepository constructs a chat repository backed by GORM.
func NewChatRepository(db *gorm.DB) ChatRepository {
	return &chatRepository{db: db}
}

func (r *chatRepository) Get(ctx context.Context, id string) (models.Chat, error) {
	var chat models.Chat
	err := r.db.WithContext(ctx).Preload("Members").Where("id = ?", id).First(&chat).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Chat{}, ErrNotFound
		}
		return models.Chat{}, err
	}
	chat.Normalize()
	return chat, nil
}

func (r *chatRepository) ListForMember(ctx context.Context, userID string) ([]models.Chat, error) {
	var chats []models.Chat
	err := r.db.WithContext(ctx).
		Joins("JOIN chat_members AS cm ON cm.chat_id = chats.id AND cm.user_id = ?", userID).
		Preload("Members").
		Order("chats.updated_at DESC").
		Find(&chats).Error
	if err != nil {
		return nil, err
	}
	for i := range chats {
		chats[i].Normalize()
	}
	return chats, nil
}

// FindDirect scans a's DM chats for a 1:1 thread with b regardless of its id.
func (r *chatRepository) FindDirect(ctx context.Context, a, b string) (models.Chat, error) {
	var chats []models.Chat
	err := r.db.WithContext(ctx).
		Joins("JOIN chat_members AS cm ON cm.chat_id = chats.id AND cm.user_id = ?", a).
		Where("chats.is_dm = ?", true).
		Preload("Members").
		Order("chats.created_at ASC").
		Find(&chats).Error
	if err != nil {
		return models.Chat{}, err
	}
	for _, chat := range chats {
		if chat.Kind() == models.ChatKindDirect && chat.HasMember(b) {
			chat.Normalize()
			return chat, nil
		}
	}
	return models.Chat{}, ErrNotFound
}

func (r *chatRepository) Create(ctx context.Context, chat *models.Chat) error {
	_, created, err := r.CreateIfAbsent(ctx, chat)
	if err != nil {
		return err
	}
	if !created {
		return ErrConflict
	}
	return nil
}

// CreateIfAbsent inserts chat unless its id is taken and returns the stored document.
func (r *chatRepository) CreateIfAbsent(ctx context.Context, chat *models.Chat) (models.Chat, bool, error) {
	created := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		members := chat.Members
		result := tx.Clauses(clause.OnConflict{DoNothing: true}).Omit("Members").Create(chat)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return nil
		}
		created = true
		if len(members) == 0 {
			return nil
		}
		return tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&members).Error
	})
	if err != nil {
		return models.Chat{}, false, err
	}

	stored, err := r.Get(ctx, chat.ID)
	if err != nil {
		return models.Chat{}, false, err
	}
	return stored, created, nil
}

func (r *chatRepository) Touch(ctx context.Context, chatID string, at time.Time) error {
	result := r.db.WithContext(ctx).Model(&models.Chat{}).
		Where("id = ? AND updated_at < ?", chatID, at).
		UpdateColumn("updated_at", at)
	return result.Error
}

func (r *chatRepository) UpdateAutomations(ctx context.Context, chatID string, automations []models.Automation, at time.Time) error {
	if automations == nil {
		automations = []models.Automation{}
	}
	result := r.db.WithContext(ctx).Model(&models.Chat{}).
		Where("id = ?", chatID).
		UpdateColumns(map[string]interface{}{
			"automations": datatypes.JSONSlice[models.Automation](automations),
			"updated_at":  at,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
