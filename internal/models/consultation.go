package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// PaymentStatus is the payment gate state of a consultation
type PaymentStatus string

const (
	PaymentNotRequired         PaymentStatus = "non_requis"
	PaymentPending             PaymentStatus = "en_attente"
	PaymentPaid                PaymentStatus = "paye"
	PaymentEmergencyAuthorized PaymentStatus = "urgence_autorisee"
)

// ConsultationType values accepted for type_consultation
const (
	ConsultationGeneral   = "generale"
	ConsultationEmergency = "urgence"
	ConsultationOther     = "autre"
)

// Consultation lifecycle values
const (
	ConsultationInProgress = "en_cours"
	ConsultationClosed     = "terminee"
)

// Consultation is one clinical encounter
type Consultation struct {
	ID                    uuid.UUID     `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	TenantID              uuid.UUID     `gorm:"column:clinic_id;type:uuid;not null;index" json:"clinic_id"`
	PatientID             uuid.UUID     `gorm:"type:uuid;not null;index" json:"patient_id"`
	ClinicianID           uuid.UUID     `gorm:"column:medecin_id;type:uuid;not null;index" json:"medecin_id"`
	Motif                 string        `gorm:"type:text" json:"motif"`
	Type                  string        `gorm:"column:type_consultation;type:varchar(30);not null;default:generale" json:"type_consultation"`
	Urgent                bool          `gorm:"column:urgence;not null;default:false" json:"urgence"`
	Status                string        `gorm:"column:statut;type:varchar(20);not null;index" json:"statut"`
	Conclusion            string        `gorm:"type:text" json:"conclusion,omitempty"`
	PaymentStatus         PaymentStatus `gorm:"column:statut_paiement;type:varchar(30);not null;index" json:"statut_paiement"`
	InvoiceID             *string       `gorm:"column:facture_id;type:varchar(64)" json:"facture_id,omitempty"`
	EmergencyReason       string        `gorm:"column:raison_urgence;type:text" json:"raison_urgence,omitempty"`
	EmergencyAuthorizedBy *uuid.UUID    `gorm:"column:urgence_autorisee_par;type:uuid" json:"urgence_autorisee_par,omitempty"`
	EmergencyAuthorizedAt *time.Time    `gorm:"column:urgence_autorisee_le" json:"urgence_autorisee_le,omitempty"`
	ConsultedAt           time.Time     `gorm:"column:date_consultation;not null;index" json:"date_consultation"`
	ClosedAt              *time.Time    `gorm:"column:date_cloture" json:"date_cloture,omitempty"`
	CreatedBy             uuid.UUID     `gorm:"type:uuid" json:"created_by"`
	CreatedAt             time.Time     `json:"created_at"`
	UpdatedAt             time.Time     `json:"updated_at"`
}

// TableName overrides the table name
func (Consultation) TableName() string {
	return "consultations"
}

// BeforeCreate hook
func (c *Consultation) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}

func (c *Consultation) IsClosed() bool {
	return c.Status == ConsultationClosed
}

// HasInvoice reports whether a primary invoice is linked
func (c *Consultation) HasInvoice() bool {
	return c.InvoiceID != nil && *c.InvoiceID != ""
}

// CreateConsultationInput is the body of POST /consultations. Any tenant
// supplied by the client is not part of this type and is never read.
type CreateConsultationInput struct {
	PatientID   uuid.UUID `json:"patient_id" validate:"required"`
	ClinicianID uuid.UUID `json:"medecin_id" validate:"required"`
	Motif       string    `json:"motif" validate:"max=2000"`
	Type        string    `json:"type_consultation" validate:"omitempty,oneof=generale urgence autre"`
	Urgent      bool      `json:"urgence"`
}

// UpdateConsultationInput carries the client-writable fields
type UpdateConsultationInput struct {
	Motif      *string `json:"motif" validate:"omitempty,max=2000"`
	Type       *string `json:"type_consultation" validate:"omitempty,oneof=generale urgence autre"`
	Urgent     *bool   `json:"urgence"`
	Conclusion *string `json:"conclusion" validate:"omitempty,max=5000"`
}

type CloseConsultationInput struct {
	Conclusion string `json:"conclusion" validate:"max=5000"`
}

type AuthorizeEmergencyInput struct {
	Reason string `json:"reason" validate:"required,max=1000"`
}

// ConsultationFilter narrows List results inside one clinic
type ConsultationFilter struct {
	PatientID   *uuid.UUID
	ClinicianID *uuid.UUID
	Status      string
	Page        int
	Limit       int
}

// Normalize applies the default paging
func (f *ConsultationFilter) Normalize() {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.Limit < 1 {
		f.Limit = 20
	}
	if f.Limit > 100 {
		f.Limit = 100
	}
}

func (f ConsultationFilter) Offset() int {
	return (f.Page - 1) * f.Limit
}

// ConsultationPage is one page of List results
type ConsultationPage struct {
	Items []Consultation `json:"items"`
	Total int64          `json:"total"`
	Page  int            `json:"page"`
	Limit int            `json:"limit"`
}

// PaymentDecision answers "may clinical work proceed" for a consultation
type PaymentDecision struct {
	Status          PaymentStatus `json:"statutPaiement"`
	MayProceed      bool          `json:"peutConsulter"`
	Message         string        `json:"message"`
	InvoiceID       *string       `json:"factureId"`
	AmountRemaining float64       `json:"montantRestant"`
}

// ResultGuard answers whether a result (lab, imaging) may be released
type ResultGuard struct {
	Blocked          bool             `json:"bloque"`
	BlockingInvoices []InvoiceSummary `json:"factures_bloquantes"`
	Message          string           `json:"message"`
}
