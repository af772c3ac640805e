package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// User represents a tenant user account
type User struct {
	ID                 string     `json:"id" gorm:"type:varchar(36);primaryKey"`
	TenantID           string     `json:"-" gorm:"type:varchar(64);not null;uniqueIndex:idx_users_tenant_email"`
	UserName           string     `json:"user_name" gorm:"type:varchar(256);not null"`
	Email              string     `json:"email" gorm:"type:varchar(256);not null"`
	NormalizedEmail    string     `json:"-" gorm:"type:varchar(256);not null;uniqueIndex:idx_users_tenant_email"`
	FirstName          string     `json:"first_name"`
	LastName           string     `json:"last_name"`
	PhoneNumber        string     `json:"phone_number"`
	PasswordHash       string     `json:"-" gorm:"not null"`
	IsActive           bool       `json:"is_active"`
	RefreshTokenHash   string     `json:"-"`
	RefreshTokenExpiry *time.Time `json:"-"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

func (User) TableName() string {
	return "users"
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	if u.UserName == "" {
		u.UserName = u.Email
	}
	u.NormalizedEmail = NormalizeName(u.Email)
	return nil
}

// UserRole links a user to a role within one tenant
type UserRole struct {
	TenantID string `gorm:"type:varchar(64);not null;index"`
	UserID   string `gorm:"type:varchar(36);primaryKey"`
	RoleID   string `gorm:"type:varchar(36);primaryKey;index"`
}

func (UserRole) TableName() string {
	return "user_roles"
}

// UserClaim is a claim attached directly to a user rather than through a role
type UserClaim struct {
	ID         uint   `json:"-" gorm:"primaryKey"`
	TenantID   string `json:"-" gorm:"type:varchar(64);not null;index"`
	UserID     string `json:"user_id" gorm:"type:varchar(36);not null;index"`
	ClaimType  string `json:"claim_type" gorm:"type:varchar(64);not null"`
	ClaimValue string `json:"claim_value" gorm:"type:varchar(256);not null"`
}

func (UserClaim) TableName() string {
	return "user_claims"
}

// IdentityModels lists the per-tenant tables for auto-migration
func IdentityModels() []interface{} {
	return []interface{}{&Role{}, &RoleClaim{}, &User{}, &UserRole{}, &UserClaim{}}
}
