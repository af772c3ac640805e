package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// RoleKind distinguishes the two system roles from tenant-defined ones
type RoleKind string

const (
	RoleKindAdmin  RoleKind = "admin"
	RoleKindBasic  RoleKind = "basic"
	RoleKindCustom RoleKind = "custom"
)

// Default names of the system roles
const (
	RoleNameAdmin = "Admin"
	RoleNameBasic = "Basic"
)

// IsSystem reports whether the kind is immutable and undeletable
func (k RoleKind) IsSystem() bool {
	return k == RoleKindAdmin || k == RoleKindBasic
}

// Role is a tenant-scoped named bundle of permission claims
type Role struct {
	ID             string    `json:"id" gorm:"type:varchar(36);primaryKey"`
	TenantID       string    `json:"-" gorm:"type:varchar(64);not null;uniqueIndex:idx_roles_tenant_name"`
	Name           string    `json:"name" gorm:"type:varchar(256);not null"`
	NormalizedName string    `json:"-" gorm:"type:varchar(256);not null;uniqueIndex:idx_roles_tenant_name"`
	Description    string    `json:"description"`
	Kind           RoleKind  `json:"kind" gorm:"type:varchar(16);not null"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

func (Role) TableName() string {
	return "roles"
}

func (r *Role) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.Kind == "" {
		r.Kind = RoleKindCustom
	}
	r.NormalizedName = NormalizeName(r.Name)
	return nil
}

// RoleClaim is a permission granted to a role
type RoleClaim struct {
	ID          uint   `json:"-" gorm:"primaryKey"`
	TenantID    string `json:"-" gorm:"type:varchar(64);not null;index"`
	RoleID      string `json:"role_id" gorm:"type:varchar(36);not null;uniqueIndex:idx_role_claims_value"`
	ClaimType   string `json:"claim_type" gorm:"type:varchar(64);not null;uniqueIndex:idx_role_claims_value"`
	ClaimValue  string `json:"claim_value" gorm:"type:varchar(256);not null;uniqueIndex:idx_role_claims_value"`
	Description string `json:"description"`
	Group       string `json:"group" gorm:"column:claim_group"`
}

func (RoleClaim) TableName() string {
	return "role_claims"
}

// NormalizeName produces the case-insensitive lookup key for role names and emails
func NormalizeName(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}
