package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Audit actions
const (
	AuditBillingPolicyUpsert  = "billing_policy.upsert"
	AuditEmergencyAuthorize   = "consultation.authorize_emergency"
	AuditTenantOverride       = "tenant.act_as"
	AuditStatusSuccess        = "success"
	AuditStatusFailure        = "failure"
	AuditResourceConsultation = "consultation"
	AuditResourceBilling      = "billing_policy"
	AuditResourceTenant       = "tenant"
)

// AuditLog represents an audit log entry
type AuditLog struct {
	ID           uuid.UUID         `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	TenantID     uuid.UUID         `gorm:"type:uuid;index" json:"tenant_id"`
	UserID       uuid.UUID         `gorm:"type:uuid;index" json:"user_id"`
	UserRole     string            `gorm:"type:varchar(50)" json:"user_role"`
	Action       string            `gorm:"type:varchar(100);not null;index" json:"action"`
	ResourceType string            `gorm:"type:varchar(50);index" json:"resource_type"`
	ResourceUID  string            `gorm:"type:varchar(255);index" json:"resource_uid"`
	IPAddress    string            `gorm:"type:varchar(45)" json:"ip_address"`
	UserAgent    string            `gorm:"type:text" json:"user_agent"`
	Status       string            `gorm:"type:varchar(20);index" json:"status"` // success, failure
	ErrorMessage string            `gorm:"type:text" json:"error_message,omitempty"`
	Details      map[string]string `gorm:"type:jsonb;serializer:json" json:"details,omitempty"`
	Duration     int64             `json:"duration_ms"` // milliseconds
	CreatedAt    time.Time         `gorm:"index" json:"timestamp"`
}

// TableName overrides the table name
func (AuditLog) TableName() string {
	return "audit_logs"
}

// BeforeCreate hook
func (a *AuditLog) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}
