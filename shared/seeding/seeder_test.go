package seeding

import (
	"context"
	"testing"
	"time"

	"github.com/pavitra93/go-multi-tenant-admin/shared/claims"
	"github.com/pavitra93/go-multi-tenant-admin/shared/identity"
	"github.com/pavitra93/go-multi-tenant-admin/shared/models"
	"github.com/pavitra93/go-multi-tenant-admin/shared/permissions"
	"github.com/pavitra93/go-multi-tenant-admin/shared/tenancy"
	"github.com/pavitra93/go-multi-tenant-admin/shared/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const (
	rootEmail       = "admin.root@abcschool.com"
	defaultPassword = "P@ssw0rd@123"
)

type harness struct {
	db     *gorm.DB
	conns  *tenancy.Connections
	hasher *identity.PasswordHasher
	seeder *Seeder
	dir    *tenancy.Directory
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	db := testutil.NewDB(t)
	conns, err := tenancy.NewConnections(db, 2, nil)
	require.NoError(t, err)

	hasher := &identity.PasswordHasher{Time: 1, Memory: 1024, Threads: 1}
	seeder := NewSeeder(conns, hasher, Options{
		DefaultPassword: defaultPassword,
		AdminFirstName:  "Root",
		AdminLastName:   "Admin",
	})
	dir := tenancy.NewDirectory(db, nil, seeder, nil, tenancy.RootSettings{
		Name:  "Root",
		Email: rootEmail,
	})
	return &harness{db: db, conns: conns, hasher: hasher, seeder: seeder, dir: dir}
}

func (h *harness) count(t *testing.T, model interface{}, tenantID string) int64 {
	t.Helper()
	var n int64
	require.NoError(t, h.db.Model(model).Where("tenant_id = ?", tenantID).Count(&n).Error)
	return n
}

func (h *harness) roleClaims(t *testing.T, tenantID string, kind models.RoleKind) []string {
	t.Helper()
	var role models.Role
	require.NoError(t, h.db.Where("tenant_id = ? AND kind = ?", tenantID, kind).First(&role).Error)
	var values []string
	require.NoError(t, h.db.Model(&models.RoleClaim{}).
		Where("role_id = ? AND claim_type = ?", role.ID, claims.TypePermission).
		Pluck("claim_value", &values).Error)
	return values
}

func TestSeedAllCreatesRootTenant(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	require.NoError(t, h.seeder.SeedAll(ctx, h.dir))

	root, err := h.dir.GetByID(ctx, models.RootTenantID)
	require.NoError(t, err)
	assert.True(t, root.IsActive)
	assert.True(t, root.ValidUpTo.After(time.Now().AddDate(1, 11, 0)))

	assert.ElementsMatch(t, permissions.Names(permissions.All()), h.roleClaims(t, root.ID, models.RoleKindAdmin))
	assert.ElementsMatch(t, permissions.Names(permissions.Basic()), h.roleClaims(t, root.ID, models.RoleKindBasic))

	var user models.User
	require.NoError(t, h.db.Where("tenant_id = ?", root.ID).First(&user).Error)
	assert.Equal(t, rootEmail, user.Email)
	assert.Equal(t, "Root", user.FirstName)
	assert.True(t, user.IsActive)
	ok, err := h.hasher.Verify(defaultPassword, user.PasswordHash)
	require.NoError(t, err)
	assert.True(t, ok)

	assert.Equal(t, int64(1), h.count(t, &models.UserRole{}, root.ID))
}

func TestSeedAllIsIdempotent(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	require.NoError(t, h.seeder.SeedAll(ctx, h.dir))
	roles := h.count(t, &models.Role{}, models.RootTenantID)
	roleClaims := h.count(t, &models.RoleClaim{}, models.RootTenantID)

	require.NoError(t, h.seeder.SeedAll(ctx, h.dir))
	assert.Equal(t, roles, h.count(t, &models.Role{}, models.RootTenantID))
	assert.Equal(t, roleClaims, h.count(t, &models.RoleClaim{}, models.RootTenantID))
	assert.Equal(t, int64(1), h.count(t, &models.User{}, models.RootTenantID))
	assert.Equal(t, int64(1), h.count(t, &models.UserRole{}, models.RootTenantID))

	var tenants int64
	require.NoError(t, h.db.Model(&models.Tenant{}).Count(&tenants).Error)
	assert.Equal(t, int64(1), tenants)
}

func TestSeedTenantRestoresMissingGrants(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	require.NoError(t, h.seeder.SeedAll(ctx, h.dir))

	refresh := permissions.NameFor(permissions.FeatureTokens, permissions.ActionRefreshToken)
	require.NoError(t, h.db.Where("tenant_id = ? AND claim_value = ?", models.RootTenantID, refresh).Delete(&models.RoleClaim{}).Error)

	require.NoError(t, h.seeder.SeedAll(ctx, h.dir))
	assert.Contains(t, h.roleClaims(t, models.RootTenantID, models.RoleKindBasic), refresh)
	assert.Contains(t, h.roleClaims(t, models.RootTenantID, models.RoleKindAdmin), refresh)
}

func TestCreateTenantSeedsNonRootTenant(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	tenant, err := h.dir.CreateTenant(ctx, tenancy.CreateTenantRequest{
		Identifier: "t1",
		Name:       "School One",
		Email:      "admin@t1.com",
		FirstName:  "Jane",
		LastName:   "Doe",
		ValidUpTo:  time.Now().AddDate(1, 0, 0),
		IsActive:   true,
	})
	require.NoError(t, err)

	adminClaims := h.roleClaims(t, tenant.ID, models.RoleKindAdmin)
	assert.ElementsMatch(t, permissions.Names(permissions.Admin()), adminClaims)
	for _, c := range adminClaims {
		assert.False(t, permissions.IsTenantManagement(c), c)
	}

	var user models.User
	require.NoError(t, h.db.Where("tenant_id = ?", tenant.ID).First(&user).Error)
	assert.Equal(t, "Jane", user.FirstName)

	store := identity.NewStore(h.conns)
	tokens := identity.NewTokenService(store, h.hasher, identity.TokenOptions{
		Secret:          []byte("0123456789abcdef0123456789abcdef"),
		TokenTTL:        time.Hour,
		RefreshTokenTTL: 24 * time.Hour,
	}, nil)
	resp, err := tokens.Login(tenancy.WithTenant(ctx, tenant), identity.TokenRequest{Username: "admin@t1.com", Password: defaultPassword})
	require.NoError(t, err)

	sc, err := tokens.Validate(resp.JWT)
	require.NoError(t, err)
	assert.Equal(t, "t1", sc.Tenant)
	assert.Contains(t, sc.Roles, models.RoleNameAdmin)
	assert.ElementsMatch(t, permissions.Names(permissions.Admin()), sc.Permissions)
}

func TestSeedTenantSkipsAdminUserWithoutEmail(t *testing.T) {
	h := newHarness(t)
	tenant := &models.Tenant{ID: "t2", Identifier: "t2", Name: "School Two", IsActive: true, ValidUpTo: time.Now().AddDate(1, 0, 0)}
	require.NoError(t, h.db.Create(tenant).Error)

	require.NoError(t, h.seeder.SeedTenant(context.Background(), tenant))
	assert.Equal(t, int64(2), h.count(t, &models.Role{}, "t2"))
	assert.Zero(t, h.count(t, &models.User{}, "t2"))
}
