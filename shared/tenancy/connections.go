package tenancy

import (
	"context"
	"errors"
	"fmt"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/pavitra93/go-multi-tenant-admin/shared/apperrors"
	"github.com/pavitra93/go-multi-tenant-admin/shared/models"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Opener opens a database handle for a tenant connection string
type Opener func(dsn string) (*gorm.DB, error)

// handle is a dedicated tenant database shared by in-flight requests.
// It is closed once it has been evicted and the last holder released it.
type handle struct {
	tenantID string
	db       *gorm.DB
	refs     int
	evicted  bool
}

// Connections routes each tenant to its database. Tenants without a
// connection string share the default database, which also holds the
// tenant directory; the rest get their own handle, kept in a bounded LRU.
type Connections struct {
	shared *gorm.DB
	open   Opener

	mu      sync.Mutex
	handles *lru.Cache[string, *handle]
}

func NewConnections(shared *gorm.DB, size int, open Opener) (*Connections, error) {
	if size <= 0 {
		size = 1
	}
	// the callback runs under c.mu from Add and Purge
	handles, err := lru.NewWithEvict[string, *handle](size, func(_ string, h *handle) {
		h.evicted = true
		if h.refs == 0 {
			closeHandle(h)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create connection cache: %w", err)
	}
	return &Connections{shared: shared, open: open, handles: handles}, nil
}

// For returns the database holding tenant's identity tables. The caller must
// call release when done; a dedicated handle stays open until then even if
// it is evicted meanwhile.
func (c *Connections) For(ctx context.Context, tenant *models.Tenant) (db *gorm.DB, release func(), err error) {
	if !tenant.UsesDedicatedDatabase() {
		return c.shared, func() {}, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if h, ok := c.handles.Get(tenant.ID); ok {
		h.refs++
		return h.db, c.releaser(h), nil
	}

	dsn := tenant.ConnectionString
	if dsn == "" {
		// cached tenant copies carry no connection string
		if dsn, err = c.connectionString(ctx, tenant.ID); err != nil {
			return nil, nil, err
		}
	}

	opened, err := c.open(dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open database for tenant %s: %w", tenant.ID, err)
	}
	h := &handle{tenantID: tenant.ID, db: opened, refs: 1}
	c.handles.Add(tenant.ID, h)

	logrus.WithField("tenant_id", tenant.ID).Info("Opened dedicated tenant database")
	return opened, c.releaser(h), nil
}

// DB returns the database of the tenant attached to ctx, bound to ctx. The
// handle is held until ctx is done.
func (c *Connections) DB(ctx context.Context) (*gorm.DB, *models.Tenant, error) {
	tenant, err := Require(ctx)
	if err != nil {
		return nil, nil, err
	}
	return c.bind(ctx, tenant)
}

// Current is DB with the tenant reloaded from the directory, for checks that
// must not trust a cached copy of the tenant.
func (c *Connections) Current(ctx context.Context) (*gorm.DB, *models.Tenant, error) {
	cached, err := Require(ctx)
	if err != nil {
		return nil, nil, err
	}
	tenant, err := c.load(ctx, cached.ID)
	if err != nil {
		return nil, nil, err
	}
	return c.bind(ctx, tenant)
}

func (c *Connections) bind(ctx context.Context, tenant *models.Tenant) (*gorm.DB, *models.Tenant, error) {
	db, release, err := c.For(ctx, tenant)
	if err != nil {
		return nil, nil, err
	}
	context.AfterFunc(ctx, release)
	return db.WithContext(ctx), tenant, nil
}

// Len reports how many dedicated handles are cached
func (c *Connections) Len() int {
	return c.handles.Len()
}

// Close evicts every dedicated handle. Handles still held close on release.
// The shared database is left open.
func (c *Connections) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handles.Purge()
}

func (c *Connections) releaser(h *handle) func() {
	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			h.refs--
			if h.evicted && h.refs == 0 {
				closeHandle(h)
			}
		})
	}
}

func (c *Connections) load(ctx context.Context, id string) (*models.Tenant, error) {
	var tenant models.Tenant
	err := c.shared.WithContext(ctx).Where("id = ?", id).First(&tenant).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.NotFound("Tenant not found.")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load tenant: %w", err)
	}
	return &tenant, nil
}

func (c *Connections) connectionString(ctx context.Context, id string) (string, error) {
	tenant, err := c.load(ctx, id)
	if err != nil {
		return "", err
	}
	if tenant.ConnectionString == "" {
		return "", fmt.Errorf("tenant %s has no connection string", id)
	}
	return tenant.ConnectionString, nil
}

func closeHandle(h *handle) {
	sqlDB, err := h.db.DB()
	if err != nil {
		return
	}
	if err := sqlDB.Close(); err != nil {
		logrus.WithField("tenant_id", h.tenantID).WithError(err).Warn("Failed to close tenant database")
	}
}
