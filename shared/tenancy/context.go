package tenancy

import (
	"context"

	"github.com/pavitra93/go-multi-tenant-admin/shared/apperrors"
	"github.com/pavitra93/go-multi-tenant-admin/shared/models"
)

type ctxKey struct{}

// WithTenant returns a copy of ctx scoped to tenant. The tenant is visible
// only to calls made with the returned context.
func WithTenant(ctx context.Context, tenant *models.Tenant) context.Context {
	return context.WithValue(ctx, ctxKey{}, tenant)
}

// FromContext returns the tenant attached by WithTenant
func FromContext(ctx context.Context) (*models.Tenant, bool) {
	tenant, ok := ctx.Value(ctxKey{}).(*models.Tenant)
	return tenant, ok && tenant != nil
}

// Require returns the tenant attached to ctx or an Unauthorized error
func Require(ctx context.Context) (*models.Tenant, error) {
	tenant, ok := FromContext(ctx)
	if !ok {
		return nil, apperrors.Unauthorized("Tenant could not be resolved.")
	}
	return tenant, nil
}
