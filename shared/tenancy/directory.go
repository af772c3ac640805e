package tenancy

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/pavitra93/go-multi-tenant-admin/shared/apperrors"
	"github.com/pavitra93/go-multi-tenant-admin/shared/events"
	"github.com/pavitra93/go-multi-tenant-admin/shared/models"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Seeder bootstraps roles, permissions and the admin user of a new tenant
type Seeder interface {
	SeedTenant(ctx context.Context, tenant *models.Tenant) error
}

// RootSettings describes the bootstrap tenant created on first run
type RootSettings struct {
	Name      string
	Email     string
	FirstName string
	LastName  string
}

// CreateTenantRequest is the payload for creating a tenant
type CreateTenantRequest struct {
	Identifier       string    `json:"identifier" binding:"required"`
	Name             string    `json:"name" binding:"required"`
	ConnectionString string    `json:"connection_string"`
	Email            string    `json:"email" binding:"required,email"`
	FirstName        string    `json:"first_name"`
	LastName         string    `json:"last_name"`
	ValidUpTo        time.Time `json:"valid_up_to" binding:"required"`
	IsActive         bool      `json:"is_active"`
}

// UpdateSubscriptionRequest moves a tenant's subscription expiry
type UpdateSubscriptionRequest struct {
	TenantID      string    `json:"tenant_id" binding:"required"`
	NewExpiryDate time.Time `json:"new_expiry_date" binding:"required"`
}

// Directory stores tenant records in the shared database
type Directory struct {
	db        *gorm.DB
	cache     *Cache
	seeder    Seeder
	publisher events.Publisher
	root      RootSettings
	now       func() time.Time
}

// NewDirectory creates a tenant directory. cache and seeder may be nil.
func NewDirectory(db *gorm.DB, cache *Cache, seeder Seeder, publisher events.Publisher, root RootSettings) *Directory {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &Directory{
		db:        db,
		cache:     cache,
		seeder:    seeder,
		publisher: publisher,
		root:      root,
		now:       time.Now,
	}
}

// CreateTenant persists a tenant and seeds its roles and admin user before returning
func (d *Directory) CreateTenant(ctx context.Context, req CreateTenantRequest) (*models.Tenant, error) {
	identifier := strings.TrimSpace(req.Identifier)
	if identifier == "" {
		return nil, apperrors.Conflict("Tenant identifier is required.")
	}

	exists, err := d.exists(ctx, identifier)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, apperrors.Conflict(fmt.Sprintf("Tenant with identifier %s already exists.", identifier))
	}

	tenant := &models.Tenant{
		ID:               identifier,
		Identifier:       identifier,
		Name:             req.Name,
		Email:            req.Email,
		FirstName:        req.FirstName,
		LastName:         req.LastName,
		IsActive:         req.IsActive,
		ValidUpTo:        req.ValidUpTo.UTC(),
		ConnectionString: req.ConnectionString,
	}
	if err := d.db.WithContext(ctx).Create(tenant).Error; err != nil {
		return nil, fmt.Errorf("failed to create tenant: %w", err)
	}

	if d.seeder != nil {
		if err := d.seeder.SeedTenant(WithTenant(ctx, tenant), tenant); err != nil {
			// drop the row so the identifier can be retried
			if delErr := d.db.WithContext(ctx).Delete(&models.Tenant{}, "id = ?", tenant.ID).Error; delErr != nil {
				logrus.WithField("tenant_id", tenant.ID).WithError(delErr).Error("Failed to remove tenant after seeding failure")
			}
			return nil, fmt.Errorf("failed to seed tenant %s: %w", tenant.ID, err)
		}
	}

	if err := d.cache.Invalidate(ctx, tenant.Identifier); err != nil {
		logrus.WithField("tenant_id", tenant.ID).WithError(err).Warn("Tenant created with cache still warm")
	}
	d.publisher.Publish(ctx, events.New(events.TenantCreated, tenant.ID, map[string]interface{}{
		"name":        tenant.Name,
		"email":       tenant.Email,
		"valid_up_to": tenant.ValidUpTo,
	}))

	logrus.WithFields(logrus.Fields{
		"tenant_id": tenant.ID,
		"name":      tenant.Name,
	}).Info("Tenant created")
	return tenant, nil
}

// Activate marks a tenant active
func (d *Directory) Activate(ctx context.Context, id string) (string, error) {
	return d.setActive(ctx, id, true)
}

// Deactivate marks a tenant inactive; its users can no longer log in
func (d *Directory) Deactivate(ctx context.Context, id string) (string, error) {
	return d.setActive(ctx, id, false)
}

func (d *Directory) setActive(ctx context.Context, id string, active bool) (string, error) {
	tenant, err := d.GetByID(ctx, id)
	if err != nil {
		return "", err
	}
	if err := d.db.WithContext(ctx).Model(tenant).Update("is_active", active).Error; err != nil {
		return "", fmt.Errorf("failed to update tenant status: %w", err)
	}
	if err := d.cache.Invalidate(ctx, tenant.Identifier); err != nil {
		return "", err
	}

	eventType := events.TenantDeactivated
	if active {
		eventType = events.TenantActivated
	}
	d.publisher.Publish(ctx, events.New(eventType, tenant.ID, nil))

	logrus.WithFields(logrus.Fields{
		"tenant_id": tenant.ID,
		"is_active": active,
	}).Info("Tenant status changed")
	return tenant.ID, nil
}

// UpdateSubscription sets the tenant's subscription expiry
func (d *Directory) UpdateSubscription(ctx context.Context, req UpdateSubscriptionRequest) (string, error) {
	tenant, err := d.GetByID(ctx, req.TenantID)
	if err != nil {
		return "", err
	}
	expiry := req.NewExpiryDate.UTC()
	if err := d.db.WithContext(ctx).Model(tenant).Update("valid_up_to", expiry).Error; err != nil {
		return "", fmt.Errorf("failed to update subscription: %w", err)
	}
	if err := d.cache.Invalidate(ctx, tenant.Identifier); err != nil {
		return "", err
	}
	d.publisher.Publish(ctx, events.New(events.TenantSubscriptionUpdated, tenant.ID, map[string]interface{}{
		"valid_up_to": expiry,
	}))

	logrus.WithFields(logrus.Fields{
		"tenant_id":   tenant.ID,
		"valid_up_to": expiry,
	}).Info("Tenant subscription updated")
	return tenant.ID, nil
}

// Resolve loads the tenant named by a request's tenant identifier. The result
// may come from the cache and lag behind status or subscription changes;
// login reloads the tenant before trusting either.
func (d *Directory) Resolve(ctx context.Context, identifier string) (*models.Tenant, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return nil, apperrors.NotFound("Tenant not found.")
	}
	if tenant, ok := d.cache.Get(ctx, identifier); ok {
		return tenant, nil
	}

	var tenant models.Tenant
	err := d.db.WithContext(ctx).Where("identifier = ?", identifier).First(&tenant).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.NotFound("Tenant not found.")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to resolve tenant: %w", err)
	}

	d.cache.Set(ctx, &tenant)
	return &tenant, nil
}

// GetAll lists every tenant
func (d *Directory) GetAll(ctx context.Context) ([]models.Tenant, error) {
	var tenants []models.Tenant
	if err := d.db.WithContext(ctx).Order("created_at").Find(&tenants).Error; err != nil {
		return nil, fmt.Errorf("failed to list tenants: %w", err)
	}
	return tenants, nil
}

// GetByID loads a tenant by id
func (d *Directory) GetByID(ctx context.Context, id string) (*models.Tenant, error) {
	var tenant models.Tenant
	err := d.db.WithContext(ctx).Where("id = ?", id).First(&tenant).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.NotFound("Tenant not found.")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load tenant: %w", err)
	}
	return &tenant, nil
}

// EnsureRoot creates the root tenant on first run and returns it
func (d *Directory) EnsureRoot(ctx context.Context) (*models.Tenant, error) {
	tenant, err := d.GetByID(ctx, models.RootTenantID)
	if err == nil {
		return tenant, nil
	}
	if !apperrors.IsNotFound(err) {
		return nil, err
	}

	tenant = &models.Tenant{
		ID:         models.RootTenantID,
		Identifier: models.RootTenantID,
		Name:       d.root.Name,
		Email:      d.root.Email,
		FirstName:  d.root.FirstName,
		LastName:   d.root.LastName,
		IsActive:   true,
		ValidUpTo:  d.now().UTC().AddDate(2, 0, 0),
	}
	if err := d.db.WithContext(ctx).Create(tenant).Error; err != nil {
		return nil, fmt.Errorf("failed to create root tenant: %w", err)
	}

	logrus.WithField("tenant_id", tenant.ID).Info("Root tenant created")
	return tenant, nil
}

func (d *Directory) exists(ctx context.Context, identifier string) (bool, error) {
	var count int64
	err := d.db.WithContext(ctx).Model(&models.Tenant{}).
		Where("identifier = ? OR id = ?", identifier, identifier).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to check tenant identifier: %w", err)
	}
	return count > 0, nil
}
