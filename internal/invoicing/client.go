// Package invoicing is the HTTP client of the external invoice service.
package invoicing

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/otcheredev/clinic-gate/internal/apperror"
	"github.com/otcheredev/clinic-gate/internal/models"
)

const (
	headerAPIKey         = "X-API-Key"
	headerTenantID       = "X-Tenant-ID"
	headerIdempotencyKey = "Idempotency-Key"
)

// Config configures the invoice service client
type Config struct {
	BaseURL    string
	APIKey     string
	Timeout    time.Duration
	RetryCount int
}

// Client talks to the invoice service. The tenant header always comes from
// the caller's trusted scope.
type Client struct {
	http *resty.Client
}

// NewClient creates a new invoice service client
func NewClient(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}

	client := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout).
		SetRetryCount(cfg.RetryCount).
		SetRetryWaitTime(200 * time.Millisecond).
		SetRetryMaxWaitTime(2 * time.Second).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			return err != nil || r.StatusCode() >= http.StatusInternalServerError
		}).
		SetJSONMarshaler(json.Marshal).
		SetJSONUnmarshaler(json.Unmarshal).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")

	if cfg.APIKey != "" {
		client.SetHeader(headerAPIKey, cfg.APIKey)
	}

	return &Client{http: client}
}

// CreateConsultationInvoice asks the invoice service to bill a consultation.
// The consultation id doubles as idempotency key so retried calls do not
// bill twice on services that honour it.
func (c *Client) CreateConsultationInvoice(ctx context.Context, req models.ConsultationInvoiceRequest) (*models.InvoiceSummary, error) {
	var invoice models.InvoiceSummary
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader(headerTenantID, req.TenantID.String()).
		SetHeader(headerIdempotencyKey, req.ConsultationID.String()).
		SetBody(req).
		SetResult(&invoice).
		Post("/invoices/consultation")
	if err := check(resp, err, "create consultation invoice"); err != nil {
		return nil, err
	}

	log.Debug().
		Str("tenant_id", req.TenantID.String()).
		Str("consultation_id", req.ConsultationID.String()).
		Str("invoice_id", invoice.ID).
		Msg("Consultation invoice created")
	return &invoice, nil
}

// GetInvoice retrieves one invoice summary
func (c *Client) GetInvoice(ctx context.Context, tenantID uuid.UUID, invoiceID string) (*models.InvoiceSummary, error) {
	var invoice models.InvoiceSummary
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader(headerTenantID, tenantID.String()).
		SetPathParam("id", invoiceID).
		SetQueryParam("tenant_id", tenantID.String()).
		SetResult(&invoice).
		Get("/invoices/{id}")
	if err := check(resp, err, "get invoice"); err != nil {
		return nil, err
	}
	return &invoice, nil
}

// ListComplementaryInvoices lists the secondary invoices tied to a consultation
func (c *Client) ListComplementaryInvoices(ctx context.Context, tenantID, consultationID uuid.UUID) ([]models.InvoiceSummary, error) {
	var invoices []models.InvoiceSummary
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader(headerTenantID, tenantID.String()).
		SetPathParam("id", consultationID.String()).
		SetQueryParams(map[string]string{
			"tenant_id": tenantID.String(),
			"kind":      models.InvoiceKindComplementary,
		}).
		SetResult(&invoices).
		Get("/consultations/{id}/invoices")
	if err := check(resp, err, "list complementary invoices"); err != nil {
		return nil, err
	}
	return invoices, nil
}

func check(resp *resty.Response, err error, op string) error {
	if err != nil {
		return apperror.Upstream("invoice service unavailable", fmt.Errorf("failed to %s: %w", op, err))
	}
	switch {
	case resp.StatusCode() == http.StatusNotFound:
		return apperror.NotFound("invoice not found")
	case resp.IsError():
		return apperror.Upstream(
			"invoice service error",
			fmt.Errorf("failed to %s: status %d: %s", op, resp.StatusCode(), truncate(resp.String(), 256)),
		)
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
