package repository

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/noah-isme/vibely-go-api/internal/models"
)

// UserRepository persists user profiles.
type UserRepository interface {
	Get(ctx context.Context, id string) (models.User, error)
	GetMany(ctx context.Context, ids []string) (map[string]models.User, error)
	GetByUserCode(ctx context.Context, code string) (models.User, error)
	Create(ctx context.Context, user *models.User) error
	Update(ctx context.Context, user *models.User) error
	Search(ctx context.Context, term, excludeID string, limit int) ([]models.User, error)
}

type userRepository struct {
	db *gorm.DB
}

// NewUserRepository constructs a user repository backed by GORM.
func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) Get(ctx context.Context, id string) (models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.User{}, ErrNotFound
		}
		return models.User{}, err
	}
	return user, nil
}

func (r *userRepository) GetMany(ctx context.Context, ids []string) (map[string]models.User, error) {
	result := make(map[string]models.User, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	var users []models.User
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&users).Error; err != nil {
		return nil, err
	}
	for _, user := range users {
		result[user.ID] = user
	}
	return result, nil
}

func (r *userRepository) GetByUserCode(ctx context.Context, code string) (models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).Where("user_code = ?", strings.TrimSpace(code)).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.User{}, ErrNotFound
		}
		return models.User{}, err
	}
	return user, nil
}

// Create inserts a profile; a taken id or user code yields ErrConflict.
func (r *userRepository) Create(ctx context.Context, user *models.User) error {
	result := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(user)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrConflict
	}
	return nil
}

// Update writes the mutable profile fields; a taken user code yields ErrConflict.
func (r *userRepository) Update(ctx context.Context, user *models.User) error {
	if strings.TrimSpace(user.UserCode) != "" {
		var count int64
		err := r.db.WithContext(ctx).Model(&models.User{}).
			Where("user_code = ? AND id <> ?", user.UserCode, user.ID).
			Count(&count).Error
		if err != nil {
			return err
		}
		if count > 0 {
			return ErrConflict
		}
	}

	result := r.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", user.ID).
		Updates(map[string]interface{}{
			"schema_version":       user.SchemaVersion,
			"email":                user.Email,
			"full_name":            user.FullName,
			"username":             user.Username,
			"user_code":            user.UserCode,
			"avatar_url":           user.AvatarURL,
			"profile_completed_at": user.ProfileCompletedAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *userRepository) Search(ctx context.Context, term, excludeID string, limit int) ([]models.User, error) {
	term = strings.ToLower(strings.TrimSpace(term))
	if term == "" {
		return []models.User{}, nil
	}
	if limit <= 0 || limit > searchLimit {
		limit = searchLimit
	}

	pattern := "%" + escapeLike(term) + "%"
	var users []models.User
	err := r.db.WithContext(ctx).
		Where("id <> ?", excludeID).
		Where("(LOWER(full_name) LIKE ? ESCAPE '\\' OR LOWER(username) LIKE ? ESCAPE '\\' OR LOWER(user_code) LIKE ? ESCAPE '\\')", pattern, pattern, pattern).
		Order("username ASC").
		Limit(limit).
		Find(&users).Error
	if err != nil {
		return nil, err
	}
	return users, nil
}

func escapeLike(value string) string {
	replacer := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return replacer.Replace(value)
}
