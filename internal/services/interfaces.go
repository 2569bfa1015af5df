package services

import (
	"context"

	"github.com/google/uuid"

	"github.com/otcheredev/clinic-gate/internal/models"
)

// PolicyStore persists billing policies
type PolicyStore interface {
	GetByTenantID(ctx context.Context, tenantID uuid.UUID) (*models.BillingPolicy, error)
	Upsert(ctx context.Context, policy *models.BillingPolicy) (*models.BillingPolicy, error)
}

// ConsultationStore persists consultations
type ConsultationStore interface {
	Create(ctx context.Context, c *models.Consultation) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Consultation, error)
	List(ctx context.Context, tenantID uuid.UUID, filter models.ConsultationFilter) ([]models.Consultation, int64, error)
	UpdateFields(ctx context.Context, tenantID, id uuid.UUID, fields map[string]interface{}) error
}

// InvoiceService is the external invoicing system
type InvoiceService interface {
	CreateConsultationInvoice(ctx context.Context, req models.ConsultationInvoiceRequest) (*models.InvoiceSummary, error)
	GetInvoice(ctx context.Context, tenantID uuid.UUID, invoiceID string) (*models.InvoiceSummary, error)
	ListComplementaryInvoices(ctx context.Context, tenantID, consultationID uuid.UUID) ([]models.InvoiceSummary, error)
}

// AuditStore persists audit entries
type AuditStore interface {
	Create(ctx context.Context, entry *models.AuditLog) error
	ListByResource(ctx context.Context, tenantID uuid.UUID, resourceType, resourceUID string, limit int) ([]models.AuditLog, error)
}
