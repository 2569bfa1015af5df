package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/otcheredev/clinic-gate/internal/models"
)

// ProfileRepository reads staff profiles
type ProfileRepository struct {
	db *gorm.DB
}

// NewProfileRepository creates a new profile repository
func NewProfileRepository(db *gorm.DB) *ProfileRepository {
	return &ProfileRepository{db: db}
}

// GetByAuthUserID retrieves the profile linked to an identity-provider user
func (r *ProfileRepository) GetByAuthUserID(ctx context.Context, authUserID string) (*models.Profile, error) {
	var profile models.Profile
	if err := r.db.WithContext(ctx).
		Where("auth_user_id = ?", authUserID).
		First(&profile).Error; err != nil {
		return nil, fmt.Errorf("failed to get profile: %w", notFound(err))
	}
	return &profile, nil
}
