package models

import "github.com/google/uuid"

// Invoice kinds reported by the invoice service
const (
	InvoiceKindPrimary       = "principale"
	InvoiceKindComplementary = "complementaire"
)

// InvoiceStatus as reported by the invoice service
type InvoiceStatus string

const (
	InvoicePaid      InvoiceStatus = "payee"
	InvoicePending   InvoiceStatus = "en_attente"
	InvoicePartial   InvoiceStatus = "partiellement_payee"
	InvoiceExempt    InvoiceStatus = "exoneree"
	InvoiceCancelled InvoiceStatus = "annulee"
)

// Settled reports whether the invoice no longer blocks care
func (s InvoiceStatus) Settled() bool {
	return s == InvoicePaid || s == InvoiceExempt
}

// InvoiceSummary is the external invoice as seen by this service. Amounts
// are forwarded for display and never computed here.
type InvoiceSummary struct {
	ID                string        `json:"id"`
	ConsultationID    uuid.UUID     `json:"consultation_id"`
	Kind              string        `json:"kind"`
	Status            InvoiceStatus `json:"status"`
	AmountDue         float64       `json:"amount_due"`
	AmountOutstanding float64       `json:"amount_outstanding"`
}

// BlocksResults reports whether the invoice still holds back results: it is
// pending or partially paid with something left to pay
func (i InvoiceSummary) BlocksResults() bool {
	unpaid := i.Status == InvoicePending || i.Status == InvoicePartial
	return unpaid && i.AmountOutstanding > 0
}

// ConsultationInvoiceRequest asks the invoice service to bill a consultation
type ConsultationInvoiceRequest struct {
	ConsultationID   uuid.UUID `json:"consultation_id"`
	PatientID        uuid.UUID `json:"patient_id"`
	TenantID         uuid.UUID `json:"tenant_id"`
	ConsultationType string    `json:"type_consultation"`
	Urgent           bool      `json:"urgence"`
	LineItems        []string  `json:"line_items"`
}
