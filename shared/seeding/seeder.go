package seeding

import (
	"context"
	"errors"
	"fmt"

	"github.com/pavitra93/go-multi-tenant-admin/shared/claims"
	"github.com/pavitra93/go-multi-tenant-admin/shared/identity"
	"github.com/pavitra93/go-multi-tenant-admin/shared/models"
	"github.com/pavitra93/go-multi-tenant-admin/shared/permissions"
	"github.com/pavitra93/go-multi-tenant-admin/shared/tenancy"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Options configures the admin user created for each tenant
type Options struct {
	DefaultPassword string
	AdminFirstName  string
	AdminLastName   string
}

// TenantSource lists the tenants to seed at startup
type TenantSource interface {
	EnsureRoot(ctx context.Context) (*models.Tenant, error)
	GetAll(ctx context.Context) ([]models.Tenant, error)
}

// Seeder bootstraps the schema, system roles and admin user of a tenant.
// Every step checks for existing rows first so it can run on every start.
type Seeder struct {
	conns  *tenancy.Connections
	hasher *identity.PasswordHasher
	opts   Options
}

func NewSeeder(conns *tenancy.Connections, hasher *identity.PasswordHasher, opts Options) *Seeder {
	return &Seeder{conns: conns, hasher: hasher, opts: opts}
}

// SeedAll creates the root tenant if needed and seeds every tenant
func (s *Seeder) SeedAll(ctx context.Context, source TenantSource) error {
	if _, err := source.EnsureRoot(ctx); err != nil {
		return err
	}

	tenants, err := source.GetAll(ctx)
	if err != nil {
		return err
	}
	for i := range tenants {
		tenant := &tenants[i]
		if err := s.SeedTenant(tenancy.WithTenant(ctx, tenant), tenant); err != nil {
			return err
		}
	}

	logrus.WithField("tenants", len(tenants)).Info("Tenant seeding completed")
	return nil
}

// SeedTenant migrates the tenant's tables and ensures its Admin and Basic
// roles, their permission grants and the tenant admin user.
func (s *Seeder) SeedTenant(ctx context.Context, tenant *models.Tenant) error {
	db, release, err := s.conns.For(ctx, tenant)
	if err != nil {
		return err
	}
	defer release()
	db = db.WithContext(ctx)

	if err := db.AutoMigrate(models.IdentityModels()...); err != nil {
		return fmt.Errorf("failed to migrate tenant %s: %w", tenant.ID, err)
	}

	adminPerms := permissions.Admin()
	if tenant.IsRoot() {
		adminPerms = permissions.All()
	}

	// hash before opening the transaction; argon2 is slow
	var passwordHash string
	if tenant.Email != "" {
		if passwordHash, err = s.hasher.Hash(s.opts.DefaultPassword); err != nil {
			return err
		}
	}

	err = db.Transaction(func(tx *gorm.DB) error {
		admin, err := ensureRole(tx, tenant.ID, models.RoleNameAdmin, models.RoleKindAdmin, "Administrator Role")
		if err != nil {
			return err
		}
		if err := ensureRoleClaims(tx, tenant.ID, admin.ID, adminPerms); err != nil {
			return err
		}

		basic, err := ensureRole(tx, tenant.ID, models.RoleNameBasic, models.RoleKindBasic, "Basic Role")
		if err != nil {
			return err
		}
		if err := ensureRoleClaims(tx, tenant.ID, basic.ID, permissions.Basic()); err != nil {
			return err
		}

		if tenant.Email == "" {
			logrus.WithField("tenant_id", tenant.ID).Warn("Tenant has no email, skipping admin user")
			return nil
		}
		return s.ensureAdminUser(tx, tenant, admin, passwordHash)
	})
	if err != nil {
		return fmt.Errorf("failed to seed tenant %s: %w", tenant.ID, err)
	}

	logrus.WithField("tenant_id", tenant.ID).Info("Tenant seeded")
	return nil
}

func ensureRole(tx *gorm.DB, tenantID, name string, kind models.RoleKind, description string) (*models.Role, error) {
	var role models.Role
	err := tx.Where("tenant_id = ? AND kind = ?", tenantID, kind).First(&role).Error
	if err == nil {
		return &role, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to load %s role: %w", name, err)
	}

	role = models.Role{TenantID: tenantID, Name: name, Description: description, Kind: kind}
	if err := tx.Create(&role).Error; err != nil {
		return nil, fmt.Errorf("failed to create %s role: %w", name, err)
	}
	return &role, nil
}

func ensureRoleClaims(tx *gorm.DB, tenantID, roleID string, perms []permissions.Permission) error {
	var existing []string
	err := tx.Model(&models.RoleClaim{}).
		Where("tenant_id = ? AND role_id = ? AND claim_type = ?", tenantID, roleID, claims.TypePermission).
		Pluck("claim_value", &existing).Error
	if err != nil {
		return fmt.Errorf("failed to load role claims: %w", err)
	}
	have := make(map[string]struct{}, len(existing))
	for _, v := range existing {
		have[v] = struct{}{}
	}

	var missing []models.RoleClaim
	for _, p := range perms {
		if _, ok := have[p.Name()]; ok {
			continue
		}
		missing = append(missing, models.RoleClaim{
			TenantID:    tenantID,
			RoleID:      roleID,
			ClaimType:   claims.TypePermission,
			ClaimValue:  p.Name(),
			Description: p.Description,
			Group:       p.Group,
		})
	}
	if len(missing) == 0 {
		return nil
	}
	if err := tx.Create(&missing).Error; err != nil {
		return fmt.Errorf("failed to grant role claims: %w", err)
	}
	return nil
}

func (s *Seeder) ensureAdminUser(tx *gorm.DB, tenant *models.Tenant, admin *models.Role, passwordHash string) error {
	var user models.User
	err := tx.Where("tenant_id = ? AND normalized_email = ?", tenant.ID, models.NormalizeName(tenant.Email)).First(&user).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		user = models.User{
			TenantID:     tenant.ID,
			Email:        tenant.Email,
			UserName:     tenant.Email,
			FirstName:    firstNonEmpty(tenant.FirstName, s.opts.AdminFirstName),
			LastName:     firstNonEmpty(tenant.LastName, s.opts.AdminLastName),
			PasswordHash: passwordHash,
			IsActive:     true,
		}
		if err := tx.Create(&user).Error; err != nil {
			return fmt.Errorf("failed to create admin user: %w", err)
		}
		logrus.WithFields(logrus.Fields{
			"tenant_id": tenant.ID,
			"user_id":   user.ID,
		}).Info("Tenant admin user created")
	case err != nil:
		return fmt.Errorf("failed to load admin user: %w", err)
	}

	var count int64
	err = tx.Model(&models.UserRole{}).
		Where("tenant_id = ? AND user_id = ? AND role_id = ?", tenant.ID, user.ID, admin.ID).
		Count(&count).Error
	if err != nil {
		return fmt.Errorf("failed to check admin membership: %w", err)
	}
	if count > 0 {
		return nil
	}
	if err := tx.Create(&models.UserRole{TenantID: tenant.ID, UserID: user.ID, RoleID: admin.ID}).Error; err != nil {
		return fmt.Errorf("failed to assign admin role: %w", err)
	}
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
