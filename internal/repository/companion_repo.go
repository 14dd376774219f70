package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/noah-isme/vibely-go-api/internal/models"
)

// CompanionRepository persists AI companions per owner.
type CompanionRepository interface {
	Create(ctx context.Context, companion *models.Companion) error
	ListByOwner(ctx context.Context, ownerID string) ([]models.Companion, error)
	Delete(ctx context.Context, ownerID, id string) error
}

type companionRepository struct {
	db *gorm.DB
}

// NewCompanionRepository constructs a companion repository backed by GORM.
func NewCompanionRepository(db *gorm.DB) CompanionRepository {
	return &companionRepository{db: db}
}

func (r *companionRepository) Create(ctx context.Context, companion *models.Companion) error {
	return r.db.WithContext(ctx).Create(companion).Error
}

func (r *companionRepository) ListByOwner(ctx context.Context, ownerID string) ([]models.Companion, error) {
	var companions []models.Companion
	err := r.db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Order("created_at DESC").
		Find(&companions).Error
	if err != nil {
		return nil, err
	}
	for i := range companions {
		companions[i].Normalize()
	}
	return companions, nil
}

// Delete removes the owner's companion. Another owner's id yields ErrNotFound.
func (r *companionRepository) Delete(ctx context.Context, ownerID, id string) error {
	result := r.db.WithContext(ctx).
		Where("id = ? AND owner_id = ?", id, ownerID).
		Delete(&models.Companion{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
