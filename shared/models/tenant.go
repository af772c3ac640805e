package models

import (
	"time"
)

// RootTenantID is the well-known id of the bootstrap tenant
const RootTenantID = "root"

// Tenant represents a school subscribed to the platform. ID doubles as the
// identifier and as the key for the tenant's database connection.
type Tenant struct {
	ID               string    `json:"id" gorm:"type:varchar(64);primaryKey"`
	Identifier       string    `json:"identifier" gorm:"type:varchar(64);uniqueIndex;not null"`
	Name             string    `json:"name" gorm:"not null"`
	Email            string    `json:"email"`
	FirstName        string    `json:"first_name"`
	LastName         string    `json:"last_name"`
	IsActive         bool      `json:"is_active"`
	ValidUpTo        time.Time `json:"valid_up_to"`
	ConnectionString string    `json:"-"`
	// Dedicated marks copies whose ConnectionString was withheld, such as
	// tenants read back from the cache
	Dedicated        bool      `json:"-" gorm:"-"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// TableName returns the table name for the Tenant model
func (Tenant) TableName() string {
	return "tenants"
}

// IsRoot reports whether t is the bootstrap tenant
func (t *Tenant) IsRoot() bool {
	return t.ID == RootTenantID
}

// SubscriptionExpired reports whether the subscription lapsed before now.
// The root tenant never expires.
func (t *Tenant) SubscriptionExpired(now time.Time) bool {
	if t.IsRoot() {
		return false
	}
	return t.ValidUpTo.Before(now)
}

// UsesDedicatedDatabase reports whether t has its own database
func (t *Tenant) UsesDedicatedDatabase() bool {
	return t.ConnectionString != "" || t.Dedicated
}
