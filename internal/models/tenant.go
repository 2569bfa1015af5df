package models

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/otcheredev/clinic-gate/internal/apperror"
)

// AccountStatus of a staff profile
type AccountStatus string

const (
	AccountActive    AccountStatus = "ACTIVE"
	AccountPending   AccountStatus = "PENDING"
	AccountSuspended AccountStatus = "SUSPENDED"
	AccountRejected  AccountStatus = "REJECTED"
)

// Profile is the stored staff record linked to an identity-provider user
type Profile struct {
	ID            uuid.UUID     `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	AuthUserID    string        `gorm:"type:varchar(255);not null;uniqueIndex" json:"auth_user_id"`
	Email         string        `gorm:"type:varchar(255);not null" json:"email"`
	FullName      string        `gorm:"type:varchar(255)" json:"full_name"`
	Role          string        `gorm:"type:varchar(50);not null;default:USER" json:"role"`
	TenantID      *uuid.UUID    `gorm:"type:uuid;index" json:"tenant_id,omitempty"`
	AccountStatus AccountStatus `gorm:"type:varchar(20);not null;default:PENDING" json:"account_status"`
	IsActive      bool          `gorm:"not null" json:"is_active"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

// TableName overrides the table name
func (Profile) TableName() string {
	return "profiles"
}

// BeforeCreate hook
func (p *Profile) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

// Principal builds the request principal from the stored profile
func (p *Profile) Principal() Principal {
	pr := Principal{
		ID:            p.ID,
		AuthUserID:    p.AuthUserID,
		Email:         p.Email,
		Role:          ParseRole(p.Role),
		AccountStatus: p.AccountStatus,
		Active:        p.IsActive,
	}
	if p.TenantID != nil {
		pr.TenantID = *p.TenantID
	}
	return pr
}

// Principal is the authenticated caller
type Principal struct {
	ID            uuid.UUID
	AuthUserID    string
	Email         string
	Role          Role
	TenantID      uuid.UUID // uuid.Nil when the profile has no clinic
	AccountStatus AccountStatus
	Active        bool
}

// Usable reports whether the account may act at all
func (p Principal) Usable() bool {
	return p.Active && p.AccountStatus == AccountActive
}

// JWTClaims represents custom JWT claims
type JWTClaims struct {
	Email string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// Scope is the trusted tenant context of a request. It is built once per
// request by the tenant middleware and passed explicitly to services.
type Scope struct {
	Principal    Principal
	TenantID     uuid.UUID
	IsSuperAdmin bool
	ActingAs     bool // super-admin override header was applied
	Origin       RequestOrigin
}

// RequestOrigin identifies where a request came from, for the audit trail
type RequestOrigin struct {
	IPAddress string
	UserAgent string
	RequestID string
}

// RequireTenant returns the scoped tenant or MissingTenantContext
func (s Scope) RequireTenant() (uuid.UUID, error) {
	if s.TenantID == uuid.Nil {
		return uuid.Nil, apperror.MissingTenantContext()
	}
	return s.TenantID, nil
}

// CanAccess reports whether a resource owned by tenantID is visible
func (s Scope) CanAccess(tenantID uuid.UUID) bool {
	if s.IsSuperAdmin {
		return true
	}
	return s.TenantID != uuid.Nil && s.TenantID == tenantID
}

func (s Scope) Can(c Capability) bool {
	return s.Principal.Role.Can(c)
}
