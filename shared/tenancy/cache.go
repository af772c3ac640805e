package tenancy

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/pavitra93/go-multi-tenant-admin/shared/metrics"
	"github.com/pavitra93/go-multi-tenant-admin/shared/models"
	"github.com/pavitra93/go-multi-tenant-admin/shared/utils"
	"github.com/sirupsen/logrus"
)

const cacheKeyPrefix = "tenant:"

// cacheEntry mirrors models.Tenant. The connection string never leaves the
// database; Dedicated records that the tenant has one.
type cacheEntry struct {
	ID         string    `json:"id"`
	Identifier string    `json:"identifier"`
	Name       string    `json:"name"`
	Email      string    `json:"email"`
	FirstName  string    `json:"first_name"`
	LastName   string    `json:"last_name"`
	IsActive   bool      `json:"is_active"`
	ValidUpTo  time.Time `json:"valid_up_to"`
	Dedicated  bool      `json:"dedicated"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Cache keeps resolved tenants in Redis. Errors are logged and treated as
// misses so resolution falls back to the database. A nil *Cache disables caching.
type Cache struct {
	client  redis.Cmdable
	ttl     time.Duration
	metrics *metrics.Metrics
}

func NewCache(client redis.Cmdable, ttl time.Duration, m *metrics.Metrics) *Cache {
	return &Cache{client: client, ttl: ttl, metrics: m}
}

func (c *Cache) Get(ctx context.Context, identifier string) (*models.Tenant, bool) {
	if c == nil {
		return nil, false
	}
	var entry cacheEntry
	found, err := utils.CacheGetJSON(ctx, c.client, cacheKeyPrefix+identifier, &entry)
	if err != nil {
		logrus.WithField("tenant_id", identifier).WithError(err).Warn("Tenant cache read failed")
		return nil, false
	}
	c.metrics.TenantCacheLookup(found)
	if !found {
		return nil, false
	}
	return &models.Tenant{
		ID:         entry.ID,
		Identifier: entry.Identifier,
		Name:       entry.Name,
		Email:      entry.Email,
		FirstName:  entry.FirstName,
		LastName:   entry.LastName,
		IsActive:   entry.IsActive,
		ValidUpTo:  entry.ValidUpTo,
		Dedicated:  entry.Dedicated,
		CreatedAt:  entry.CreatedAt,
		UpdatedAt:  entry.UpdatedAt,
	}, true
}

func (c *Cache) Set(ctx context.Context, t *models.Tenant) {
	if c == nil {
		return
	}
	entry := cacheEntry{
		ID:         t.ID,
		Identifier: t.Identifier,
		Name:       t.Name,
		Email:      t.Email,
		FirstName:  t.FirstName,
		LastName:   t.LastName,
		IsActive:   t.IsActive,
		ValidUpTo:  t.ValidUpTo,
		Dedicated:  t.UsesDedicatedDatabase(),
		CreatedAt:  t.CreatedAt,
		UpdatedAt:  t.UpdatedAt,
	}
	if err := utils.CacheSetJSON(ctx, c.client, cacheKeyPrefix+t.Identifier, entry, c.ttl); err != nil {
		logrus.WithField("tenant_id", t.ID).WithError(err).Warn("Tenant cache write failed")
	}
}

// Invalidate drops the cached tenant. Unlike reads, failures are returned.
func (c *Cache) Invalidate(ctx context.Context, identifier string) error {
	if c == nil {
		return nil
	}
	if err := utils.CacheDelete(ctx, c.client, cacheKeyPrefix+identifier); err != nil {
		logrus.WithField("tenant_id", identifier).WithError(err).Error("Tenant cache invalidation failed")
		return fmt.Errorf("failed to invalidate cached tenant %s: %w", identifier, err)
	}
	return nil
}
