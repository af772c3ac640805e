package tenancy

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/pavitra93/go-multi-tenant-admin/shared/apperrors"
	"github.com/pavitra93/go-multi-tenant-admin/shared/events"
	"github.com/pavitra93/go-multi-tenant-admin/shared/models"
	"github.com/pavitra93/go-multi-tenant-admin/shared/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type fakeSeeder struct {
	seeded  []string
	sawCtx  []string
	failFor string
}

func (s *fakeSeeder) SeedTenant(ctx context.Context, tenant *models.Tenant) error {
	if tenant.ID == s.failFor {
		return errors.New("seed failed")
	}
	s.seeded = append(s.seeded, tenant.ID)
	if t, ok := FromContext(ctx); ok {
		s.sawCtx = append(s.sawCtx, t.ID)
	}
	return nil
}

type fixture struct {
	db     *gorm.DB
	dir    *Directory
	seeder *fakeSeeder
	events *events.Recorder
	redis  *miniredis.Miniredis
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	f := &fixture{
		db:     testutil.NewDB(t),
		seeder: &fakeSeeder{},
		events: &events.Recorder{},
		redis:  mr,
	}
	f.dir = NewDirectory(f.db, NewCache(client, time.Minute, nil), f.seeder, f.events, RootSettings{
		Name:  "Root",
		Email: "admin.root@abcschool.com",
	})
	return f
}

func createRequest(id string) CreateTenantRequest {
	return CreateTenantRequest{
		Identifier: id,
		Name:       "School " + id,
		Email:      "admin@" + id + ".com",
		FirstName:  "Ada",
		LastName:   "Admin",
		ValidUpTo:  time.Now().AddDate(1, 0, 0),
		IsActive:   true,
	}
}

func TestCreateTenantSeedsWithTenantContext(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tenant, err := f.dir.CreateTenant(ctx, createRequest("t1"))
	require.NoError(t, err)
	assert.Equal(t, "t1", tenant.ID)
	assert.Equal(t, "t1", tenant.Identifier)
	assert.Equal(t, []string{"t1"}, f.seeder.seeded)
	assert.Equal(t, []string{"t1"}, f.seeder.sawCtx)
	assert.Len(t, f.events.OfType(events.TenantCreated), 1)

	_, ok := FromContext(ctx)
	assert.False(t, ok)
}

func TestCreateTenantDuplicateIdentifier(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.dir.CreateTenant(ctx, createRequest("t1"))
	require.NoError(t, err)

	_, err = f.dir.CreateTenant(ctx, createRequest("t1"))
	assert.True(t, apperrors.IsConflict(err))
	assert.Len(t, f.seeder.seeded, 1)
}

func TestCreateTenantRollsBackOnSeedFailure(t *testing.T) {
	f := newFixture(t)
	f.seeder.failFor = "t1"
	ctx := context.Background()

	_, err := f.dir.CreateTenant(ctx, createRequest("t1"))
	require.Error(t, err)

	_, err = f.dir.GetByID(ctx, "t1")
	assert.True(t, apperrors.IsNotFound(err))
	assert.Empty(t, f.events.Events())
}

func TestActivateDeactivate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.dir.CreateTenant(ctx, createRequest("t1"))
	require.NoError(t, err)

	id, err := f.dir.Deactivate(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, "t1", id)
	tenant, err := f.dir.GetByID(ctx, "t1")
	require.NoError(t, err)
	assert.False(t, tenant.IsActive)

	_, err = f.dir.Activate(ctx, "t1")
	require.NoError(t, err)
	tenant, err = f.dir.GetByID(ctx, "t1")
	require.NoError(t, err)
	assert.True(t, tenant.IsActive)

	assert.Len(t, f.events.OfType(events.TenantDeactivated), 1)
	assert.Len(t, f.events.OfType(events.TenantActivated), 1)

	_, err = f.dir.Activate(ctx, "missing")
	assert.True(t, apperrors.IsNotFound(err))
	_, err = f.dir.Deactivate(ctx, "missing")
	assert.True(t, apperrors.IsNotFound(err))
}

func TestUpdateSubscription(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.dir.CreateTenant(ctx, createRequest("t1"))
	require.NoError(t, err)

	expiry := time.Date(2030, 1, 2, 0, 0, 0, 0, time.UTC)
	_, err = f.dir.UpdateSubscription(ctx, UpdateSubscriptionRequest{TenantID: "t1", NewExpiryDate: expiry})
	require.NoError(t, err)

	tenant, err := f.dir.GetByID(ctx, "t1")
	require.NoError(t, err)
	assert.True(t, tenant.ValidUpTo.Equal(expiry))
	assert.Len(t, f.events.OfType(events.TenantSubscriptionUpdated), 1)

	_, err = f.dir.UpdateSubscription(ctx, UpdateSubscriptionRequest{TenantID: "nope", NewExpiryDate: expiry})
	assert.True(t, apperrors.IsNotFound(err))
}

func TestResolveUsesAndInvalidatesCache(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	req := createRequest("t1")
	req.ConnectionString = "host=db dbname=t1"
	_, err := f.dir.CreateTenant(ctx, req)
	require.NoError(t, err)

	tenant, err := f.dir.Resolve(ctx, "t1")
	require.NoError(t, err)
	assert.True(t, tenant.IsActive)
	assert.True(t, f.redis.Exists("tenant:t1"))

	raw, err := f.redis.Get("tenant:t1")
	require.NoError(t, err)
	assert.NotContains(t, raw, "host=db")

	cached, err := f.dir.Resolve(ctx, "t1")
	require.NoError(t, err)
	assert.Empty(t, cached.ConnectionString)
	assert.True(t, cached.Dedicated)
	assert.True(t, cached.UsesDedicatedDatabase())

	_, err = f.dir.Deactivate(ctx, "t1")
	require.NoError(t, err)
	assert.False(t, f.redis.Exists("tenant:t1"))

	tenant, err = f.dir.Resolve(ctx, "t1")
	require.NoError(t, err)
	assert.False(t, tenant.IsActive)
}

func TestStatusChangeFailsWhenCacheCannotBeInvalidated(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.dir.CreateTenant(ctx, createRequest("t1"))
	require.NoError(t, err)

	_, err = f.dir.Resolve(ctx, "t1")
	require.NoError(t, err)
	require.True(t, f.redis.Exists("tenant:t1"))

	f.redis.SetError("LOADING redis is loading the dataset")
	_, err = f.dir.Deactivate(ctx, "t1")
	assert.Error(t, err)
	_, err = f.dir.UpdateSubscription(ctx, UpdateSubscriptionRequest{TenantID: "t1", NewExpiryDate: time.Now().AddDate(0, 0, -1)})
	assert.Error(t, err)
	f.redis.SetError("")

	// the row changed even though the cached copy is stale
	stored, err := f.dir.GetByID(ctx, "t1")
	require.NoError(t, err)
	assert.False(t, stored.IsActive)
}

func TestResolveUnknown(t *testing.T) {
	f := newFixture(t)
	_, err := f.dir.Resolve(context.Background(), "ghost")
	assert.True(t, apperrors.IsNotFound(err))
	_, err = f.dir.Resolve(context.Background(), "  ")
	assert.True(t, apperrors.IsNotFound(err))
}

func TestResolveFallsBackWhenCacheDown(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.dir.CreateTenant(ctx, createRequest("t1"))
	require.NoError(t, err)

	f.redis.Close()

	tenant, err := f.dir.Resolve(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, "t1", tenant.ID)
}

func TestEnsureRootIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	root, err := f.dir.EnsureRoot(ctx)
	require.NoError(t, err)
	assert.True(t, root.IsRoot())
	assert.True(t, root.IsActive)
	assert.Equal(t, "admin.root@abcschool.com", root.Email)
	assert.True(t, root.ValidUpTo.After(time.Now().AddDate(1, 11, 0)))

	again, err := f.dir.EnsureRoot(ctx)
	require.NoError(t, err)
	assert.Equal(t, root.ID, again.ID)

	all, err := f.dir.GetAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestTenantContextIsRequestLocal(t *testing.T) {
	base := context.Background()
	a := WithTenant(base, &models.Tenant{ID: "a"})
	b := WithTenant(base, &models.Tenant{ID: "b"})

	ta, _ := FromContext(a)
	tb, _ := FromContext(b)
	assert.Equal(t, "a", ta.ID)
	assert.Equal(t, "b", tb.ID)

	_, err := Require(base)
	assert.True(t, apperrors.IsUnauthorized(err))
}
