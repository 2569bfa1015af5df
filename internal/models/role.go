package models

import "strings"

// Role is the closed set of staff roles
type Role string

const (
	RoleSuperAdmin     Role = "SUPER_ADMIN"
	RoleClinicAdmin    Role = "CLINIC_ADMIN"
	RoleMedecin        Role = "MEDECIN"
	RoleInfirmier      Role = "INFIRMIER"
	RolePharmacien     Role = "PHARMACIEN"
	RoleLaborantin     Role = "LABORANTIN"
	RoleCaissier       Role = "CAISSIER"
	RoleReceptionniste Role = "RECEPTIONNISTE"
	RoleUser           Role = "USER"
)

// Capability is a permission tag granted to roles
type Capability string

const (
	CapConsultationsRead  Capability = "consultations:read"
	CapConsultationsWrite Capability = "consultations:write"
	CapEmergencyOverride  Capability = "consultations:emergency_override"
	CapBillingConfigRead  Capability = "billing_config:read"
	CapBillingConfigWrite Capability = "billing_config:write"
	CapTenantOverride     Capability = "tenant:override"
	CapAuditRead          Capability = "audit:read"
)

type capabilitySet map[Capability]struct{}

func caps(cs ...Capability) capabilitySet {
	s := make(capabilitySet, len(cs))
	for _, c := range cs {
		s[c] = struct{}{}
	}
	return s
}

var roleCapabilities = map[Role]capabilitySet{
	RoleSuperAdmin: caps(
		CapConsultationsRead, CapConsultationsWrite, CapEmergencyOverride,
		CapBillingConfigRead, CapBillingConfigWrite, CapTenantOverride,
		CapAuditRead,
	),
	RoleClinicAdmin: caps(
		CapConsultationsRead, CapConsultationsWrite, CapEmergencyOverride,
		CapBillingConfigRead, CapBillingConfigWrite, CapAuditRead,
	),
	RoleMedecin: caps(
		CapConsultationsRead, CapConsultationsWrite, CapEmergencyOverride,
		CapBillingConfigRead,
	),
	RoleInfirmier: caps(
		CapConsultationsRead, CapConsultationsWrite, CapBillingConfigRead,
	),
	RolePharmacien:     caps(CapConsultationsRead, CapBillingConfigRead),
	RoleLaborantin:     caps(CapConsultationsRead, CapBillingConfigRead),
	RoleCaissier:       caps(CapConsultationsRead, CapBillingConfigRead),
	RoleReceptionniste: caps(CapConsultationsRead, CapBillingConfigRead),
	RoleUser:           caps(),
}

// legacy role names still found in older profile rows
var roleAliases = map[string]Role{
	"ADMIN":      RoleClinicAdmin,
	"SUPERADMIN": RoleSuperAdmin,
	"DOCTOR":     RoleMedecin,
	"NURSE":      RoleInfirmier,
}

// ParseRole normalises a stored role name. Unknown values map to RoleUser.
func ParseRole(s string) Role {
	key := strings.ToUpper(strings.TrimSpace(s))
	key = strings.ReplaceAll(key, "-", "_")
	if r := Role(key); r.Valid() {
		return r
	}
	if r, ok := roleAliases[key]; ok {
		return r
	}
	return RoleUser
}

// Can reports whether the role holds the capability
func (r Role) Can(c Capability) bool {
	set, ok := roleCapabilities[r]
	if !ok {
		return false
	}
	_, ok = set[c]
	return ok
}

// IsSuperAdmin reports whether the role spans every clinic
func (r Role) IsSuperAdmin() bool {
	return r == RoleSuperAdmin
}

// Valid reports whether r is one of the declared roles
func (r Role) Valid() bool {
	_, ok := roleCapabilities[r]
	return ok
}

func (r Role) String() string {
	return string(r)
}
