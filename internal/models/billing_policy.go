package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// BillingPolicy holds a clinic's payment rules for consultations
type BillingPolicy struct {
	ID                          uuid.UUID  `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	TenantID                    uuid.UUID  `gorm:"column:clinic_id;type:uuid;not null;uniqueIndex" json:"clinic_id"`
	PaymentRequired             bool       `gorm:"column:paiement_obligatoire_avant_consultation;not null" json:"paiement_obligatoire_avant_consultation"`
	AutoBlockOnUnpaid           bool       `gorm:"column:blocage_automatique_impaye;not null" json:"blocage_automatique_impaye"`
	AllowInstallments           bool       `gorm:"column:paiement_plusieurs_temps;not null" json:"paiement_plusieurs_temps"`
	EmergencyExceptionClinician bool       `gorm:"column:exception_urgence_medecin;not null" json:"exception_urgence_medecin"`
	RegularLineItems            []string   `gorm:"column:actes_defaut_consultation;type:jsonb;serializer:json" json:"actes_defaut_consultation"`
	RecordOpeningLineItems      bool       `gorm:"column:actes_defaut_dossier;not null" json:"actes_defaut_dossier"`
	EmergencyLineItems          bool       `gorm:"column:actes_defaut_urgence;not null" json:"actes_defaut_urgence"`
	CreatedBy                   *uuid.UUID `gorm:"type:uuid" json:"created_by,omitempty"`
	UpdatedBy                   *uuid.UUID `gorm:"type:uuid" json:"updated_by,omitempty"`
	CreatedAt                   time.Time  `json:"created_at"`
	UpdatedAt                   time.Time  `json:"updated_at"`
}

// TableName overrides the table name
func (BillingPolicy) TableName() string {
	return "configurations_facturation"
}

// BeforeCreate hook
func (b *BillingPolicy) BeforeCreate(tx *gorm.DB) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	return nil
}

// DefaultBillingPolicy is the policy of a clinic that never saved one
func DefaultBillingPolicy(tenantID uuid.UUID) *BillingPolicy {
	return &BillingPolicy{
		TenantID:                    tenantID,
		PaymentRequired:             false,
		AutoBlockOnUnpaid:           true,
		AllowInstallments:           true,
		EmergencyExceptionClinician: true,
		RegularLineItems:            []string{},
		RecordOpeningLineItems:      false,
		EmergencyLineItems:          true,
	}
}

// BillingPolicyInput is the body of PUT /configurations/billing. Nil fields
// fall back to the defaults.
type BillingPolicyInput struct {
	PaymentRequired             *bool    `json:"paiement_obligatoire_avant_consultation"`
	AutoBlockOnUnpaid           *bool    `json:"blocage_automatique_impaye"`
	AllowInstallments           *bool    `json:"paiement_plusieurs_temps"`
	EmergencyExceptionClinician *bool    `json:"exception_urgence_medecin"`
	RegularLineItems            []string `json:"actes_defaut_consultation" validate:"omitempty,max=50,dive,required,max=100"`
	RecordOpeningLineItems      *bool    `json:"actes_defaut_dossier"`
	EmergencyLineItems          *bool    `json:"actes_defaut_urgence"`
}

// Apply builds a full policy for tenantID from the input and defaults
func (in BillingPolicyInput) Apply(tenantID uuid.UUID) *BillingPolicy {
	p := DefaultBillingPolicy(tenantID)
	if in.PaymentRequired != nil {
		p.PaymentRequired = *in.PaymentRequired
	}
	if in.AutoBlockOnUnpaid != nil {
		p.AutoBlockOnUnpaid = *in.AutoBlockOnUnpaid
	}
	if in.AllowInstallments != nil {
		p.AllowInstallments = *in.AllowInstallments
	}
	if in.EmergencyExceptionClinician != nil {
		p.EmergencyExceptionClinician = *in.EmergencyExceptionClinician
	}
	if in.RegularLineItems != nil {
		p.RegularLineItems = in.RegularLineItems
	}
	if in.RecordOpeningLineItems != nil {
		p.RecordOpeningLineItems = *in.RecordOpeningLineItems
	}
	if in.EmergencyLineItems != nil {
		p.EmergencyLineItems = *in.EmergencyLineItems
	}
	return p
}
