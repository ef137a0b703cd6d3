package repository

import (
	"context"
	"errors"
	"strings"

	"github.com/mbeoliero/hearth/internal/entity"
	"gorm.io/gorm"
)

// ProfileRepo is the repository for profile operations
type ProfileRepo struct {
	db *gorm.DB
}

// NewProfileRepo creates a new ProfileRepo
func NewProfileRepo(db *gorm.DB) *ProfileRepo {
	return &ProfileRepo{db: db}
}

// Create creates a new profile
func (r *ProfileRepo) Create(ctx context.Context, profile *entity.Profile) error {
	return r.db.WithContext(ctx).Create(profile).Error
}

// GetById gets profile by Id, nil when absent
func (r *ProfileRepo) GetById(ctx context.Context, id string) (*entity.Profile, error) {
	var profile entity.Profile
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&profile).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &profile, nil
}

// GetByEmail gets profile by email, nil when absent
func (r *ProfileRepo) GetByEmail(ctx context.Context, email string) (*entity.Profile, error) {
	var profile entity.Profile
	err := r.db.WithContext(ctx).Where("email = ?", strings.ToLower(email)).First(&profile).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &profile, nil
}

// GetByIds gets profiles by Ids
func (r *ProfileRepo) GetByIds(ctx context.Context, ids []string) ([]*entity.Profile, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var profiles []*entity.Profile
	err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&profiles).Error
	if err != nil {
		return nil, err
	}
	return profiles, nil
}

// List lists profiles, optionally narrowed by role and a case-insensitive name query
func (r *ProfileRepo) List(ctx context.Context, role, query string, limit int) ([]*entity.Profile, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}

	db := r.db.WithContext(ctx).Model(&entity.Profile{})
	if role != "" {
		db = db.Where("role = ?", role)
	}
	if query != "" {
		db = db.Where("LOWER(full_name) LIKE ?", "%"+strings.ToLower(query)+"%")
	}

	var profiles []*entity.Profile
	err := db.Order("full_name ASC").Limit(limit).Find(&profiles).Error
	if err != nil {
		return nil, err
	}
	return profiles, nil
}

// Update updates profile fields
func (r *ProfileRepo) Update(ctx context.Context, id string, updates map[string]interface{}) error {
	return r.db.WithContext(ctx).Model(&entity.Profile{}).Where("id = ?", id).Updates(updates).Error
}

// ExistsByEmail checks if an email is already registered
func (r *ProfileRepo) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&entity.Profile{}).Where("email = ?", strings.ToLower(email)).Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
