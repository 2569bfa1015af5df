package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/otcheredev/clinic-gate/internal/models"
)

// ConsultationRepository handles consultation database operations
type ConsultationRepository struct {
	db *gorm.DB
}

// NewConsultationRepository creates a new consultation repository
func NewConsultationRepository(db *gorm.DB) *ConsultationRepository {
	return &ConsultationRepository{db: db}
}

// Create inserts a new consultation
func (r *ConsultationRepository) Create(ctx context.Context, c *models.Consultation) error {
	if err := r.db.WithContext(ctx).Create(c).Error; err != nil {
		return fmt.Errorf("failed to create consultation: %w", err)
	}
	return nil
}

// GetByID retrieves a consultation regardless of clinic. Callers compare the
// returned clinic with the request scope.
func (r *ConsultationRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Consultation, error) {
	var c models.Consultation
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&c).Error; err != nil {
		return nil, fmt.Errorf("failed to get consultation: %w", notFound(err))
	}
	return &c, nil
}

// List returns one page of a clinic's consultations, newest first
func (r *ConsultationRepository) List(ctx context.Context, tenantID uuid.UUID, filter models.ConsultationFilter) ([]models.Consultation, int64, error) {
	query := r.db.WithContext(ctx).
		Model(&models.Consultation{}).
		Where("clinic_id = ?", tenantID)

	if filter.PatientID != nil {
		query = query.Where("patient_id = ?", *filter.PatientID)
	}
	if filter.ClinicianID != nil {
		query = query.Where("medecin_id = ?", *filter.ClinicianID)
	}
	if filter.Status != "" {
		query = query.Where("statut = ?", filter.Status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count consultations: %w", err)
	}

	var items []models.Consultation
	if err := query.
		Order("date_consultation DESC").
		Limit(filter.Limit).
		Offset(filter.Offset()).
		Find(&items).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list consultations: %w", err)
	}

	return items, total, nil
}

// UpdateFields writes the given columns of one consultation inside its clinic
func (r *ConsultationRepository) UpdateFields(ctx context.Context, tenantID, id uuid.UUID, fields map[string]interface{}) error {
	result := r.db.WithContext(ctx).
		Model(&models.Consultation{}).
		Where("id = ? AND clinic_id = ?", id, tenantID).
		Updates(fields)
	if result.Error != nil {
		return fmt.Errorf("failed to update consultation: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("failed to update consultation: %w", ErrNotFound)
	}
	return nil
}
