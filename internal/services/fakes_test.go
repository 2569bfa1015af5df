package services

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/otcheredev/clinic-gate/internal/apperror"
	"github.com/otcheredev/clinic-gate/internal/models"
	"github.com/otcheredev/clinic-gate/internal/repository"
)

type fakePolicyStore struct {
	mu       sync.Mutex
	policies map[uuid.UUID]models.BillingPolicy
	gets     int
	err      error
}

func newFakePolicyStore() *fakePolicyStore {
	return &fakePolicyStore{policies: map[uuid.UUID]models.BillingPolicy{}}
}

func (f *fakePolicyStore) put(p *models.BillingPolicy) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.policies[p.TenantID] = *p
}

func (f *fakePolicyStore) GetByTenantID(ctx context.Context, tenantID uuid.UUID) (*models.BillingPolicy, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gets++
	if f.err != nil {
		return nil, f.err
	}
	p, ok := f.policies[tenantID]
	if !ok {
		return nil, fmt.Errorf("failed to get billing policy: %w", repository.ErrNotFound)
	}
	return &p, nil
}

func (f *fakePolicyStore) Upsert(ctx context.Context, p *models.BillingPolicy) (*models.BillingPolicy, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	if existing, ok := f.policies[p.TenantID]; ok {
		p.ID = existing.ID
		p.CreatedBy = existing.CreatedBy
	} else if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	f.policies[p.TenantID] = *p
	saved := *p
	return &saved, nil
}

type fakeConsultationStore struct {
	mu        sync.Mutex
	items     map[uuid.UUID]models.Consultation
	createErr error
	updateErr error
	updates   []map[string]interface{}
}

func newFakeConsultationStore() *fakeConsultationStore {
	return &fakeConsultationStore{items: map[uuid.UUID]models.Consultation{}}
}

func (f *fakeConsultationStore) Create(ctx context.Context, c *models.Consultation) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	f.items[c.ID] = *c
	return nil
}

func (f *fakeConsultationStore) GetByID(ctx context.Context, id uuid.UUID) (*models.Consultation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.items[id]
	if !ok {
		return nil, fmt.Errorf("failed to get consultation: %w", repository.ErrNotFound)
	}
	return &c, nil
}

func (f *fakeConsultationStore) List(ctx context.Context, tenantID uuid.UUID, filter models.ConsultationFilter) ([]models.Consultation, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Consultation
	for _, c := range f.items {
		if c.TenantID != tenantID {
			continue
		}
		if filter.PatientID != nil && c.PatientID != *filter.PatientID {
			continue
		}
		if filter.Status != "" && c.Status != filter.Status {
			continue
		}
		out = append(out, c)
	}
	return out, int64(len(out)), nil
}

func (f *fakeConsultationStore) UpdateFields(ctx context.Context, tenantID, id uuid.UUID, fields map[string]interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.updateErr != nil {
		return f.updateErr
	}
	c, ok := f.items[id]
	if !ok || c.TenantID != tenantID {
		return fmt.Errorf("failed to update consultation: %w", repository.ErrNotFound)
	}
	f.updates = append(f.updates, fields)
	for k, v := range fields {
		switch k {
		case "motif":
			c.Motif = v.(string)
		case "type_consultation":
			c.Type = v.(string)
		case "urgence":
			c.Urgent = v.(bool)
		case "conclusion":
			c.Conclusion = v.(string)
		case "statut":
			c.Status = v.(string)
		case "statut_paiement":
			c.PaymentStatus = v.(models.PaymentStatus)
		case "facture_id":
			s := v.(string)
			c.InvoiceID = &s
		case "raison_urgence":
			c.EmergencyReason = v.(string)
		}
	}
	f.items[id] = c
	return nil
}

func (f *fakeConsultationStore) stored(id uuid.UUID) models.Consultation {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.items[id]
}

type fakeInvoices struct {
	mu            sync.Mutex
	created       []models.ConsultationInvoiceRequest
	createErr     error
	invoices      map[string]models.InvoiceSummary
	getErr        error
	complementary []models.InvoiceSummary
	listErr       error
	seq           int
}

func newFakeInvoices() *fakeInvoices {
	return &fakeInvoices{invoices: map[string]models.InvoiceSummary{}}
}

func (f *fakeInvoices) CreateConsultationInvoice(ctx context.Context, req models.ConsultationInvoiceRequest) (*models.InvoiceSummary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.created = append(f.created, req)
	f.seq++
	inv := models.InvoiceSummary{
		ID:                fmt.Sprintf("inv-%d", f.seq),
		ConsultationID:    req.ConsultationID,
		Kind:              models.InvoiceKindPrimary,
		Status:            models.InvoicePending,
		AmountDue:         10000,
		AmountOutstanding: 10000,
	}
	f.invoices[inv.ID] = inv
	return &inv, nil
}

func (f *fakeInvoices) GetInvoice(ctx context.Context, tenantID uuid.UUID, invoiceID string) (*models.InvoiceSummary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	inv, ok := f.invoices[invoiceID]
	if !ok {
		return nil, apperror.NotFound("invoice not found")
	}
	return &inv, nil
}

func (f *fakeInvoices) ListComplementaryInvoices(ctx context.Context, tenantID, consultationID uuid.UUID) ([]models.InvoiceSummary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.complementary, nil
}

func (f *fakeInvoices) setStatus(id string, status models.InvoiceStatus, outstanding float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	inv := f.invoices[id]
	inv.ID = id
	inv.Status = status
	inv.AmountOutstanding = outstanding
	f.invoices[id] = inv
}

type fakeAuditStore struct {
	mu      sync.Mutex
	entries []models.AuditLog
	err     error
}

func (f *fakeAuditStore) Create(ctx context.Context, entry *models.AuditLog) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.entries = append(f.entries, *entry)
	return nil
}

func (f *fakeAuditStore) ListByResource(ctx context.Context, tenantID uuid.UUID, resourceType, resourceUID string, limit int) ([]models.AuditLog, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	var out []models.AuditLog
	for i := len(f.entries) - 1; i >= 0; i-- {
		e := f.entries[i]
		if e.TenantID == tenantID && e.ResourceType == resourceType && e.ResourceUID == resourceUID {
			out = append(out, e)
		}
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (f *fakeAuditStore) actions() []models.AuditLog {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.AuditLog(nil), f.entries...)
}
