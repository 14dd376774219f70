package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/noah-isme/vibely-go-api/internal/models"
)

// ChatRequestRepository persists DM consent requests under the recipient.
type ChatRequestRepository interface {
	Create(ctx context.Context, request *models.ChatRequest) error
	Get(ctx context.Context, recipientID, id string) (models.ChatRequest, error)
	FindPending(ctx context.Context, recipientID, fromUserID string) (models.ChatRequest, error)
	ListPending(ctx context.Context, recipientID string) ([]models.ChatRequest, error)
	Resolve(ctx context.Context, recipientID, id string, status models.ChatRequestStatus, at time.Time) (models.ChatRequest, error)
}

type chatRequestRepository struct {
	db *gorm.DB
}

// NewChatRequestRepository constructs a chat request repository backed by GORM.
func NewChatRequestRepository(db *gorm.DB) ChatRequestRepository {
	return &chatRequestRepository{db: db}
}

func (r *chatRequestRepository) Create(ctx context.Context, request *models.ChatRequest) error {
	return r.db.WithContext(ctx).Create(request).Error
}

func (r *chatRequestRepository) Get(ctx context.Context, recipientID, id string) (models.ChatRequest, error) {
	var request models.ChatRequest
	err := r.db.WithContext(ctx).Where("id = ? AND recipient_id = ?", id, recipientID).First(&request).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.ChatRequest{}, ErrNotFound
		}
		return models.ChatRequest{}, err
	}
	return request, nil
}

func (r *chatRequestRepository) FindPending(ctx context.Context, recipientID, fromUserID string) (models.ChatRequest, error) {
	var request models.ChatRequest
	err := r.db.WithContext(ctx).
		Where("recipient_id = ? AND from_user_id = ? AND status = ?", recipientID, fromUserID, models.ChatRequestPending).
		First(&request).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.ChatRequest{}, ErrNotFound
		}
		return models.ChatRequest{}, err
	}
	return request, nil
}

func (r *chatRequestRepository) ListPending(ctx context.Context, recipientID string) ([]models.ChatRequest, error) {
	var requests []models.ChatRequest
	err := r.db.WithContext(ctx).
		Where("recipient_id = ? AND status = ?", recipientID, models.ChatRequestPending).
		Order("created_at DESC").
		Find(&requests).Error
	if err != nil {
		return nil, err
	}
	return requests, nil
}

// Resolve moves a pending request to a terminal status. Answered requests yield ErrConflict.
func (r *chatRequestRepository) Resolve(ctx context.Context, recipientID, id string, status models.ChatRequestStatus, at time.Time) (models.ChatRequest, error) {
	result := r.db.WithContext(ctx).Model(&models.ChatRequest{}).
		Where("id = ? AND recipient_id = ? AND status = ?", id, recipientID, models.ChatRequestPending).
		UpdateColumns(map[string]interface{}{"status": status, "updated_at": at})
	if result.Error != nil {
		return models.ChatRequest{}, result.Error
	}

	request, err := r.Get(ctx, recipientID, id)
	if err != nil {
		return models.ChatRequest{}, err
	}
	if result.RowsAffected == 0 {
		return request, ErrConflict
	}
	return request, nil
}
