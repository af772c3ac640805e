package identity

import (
	"context"
	"testing"
	"time"

	"github.com/pavitra93/go-multi-tenant-admin/shared/claims"
	"github.com/pavitra93/go-multi-tenant-admin/shared/events"
	"github.com/pavitra93/go-multi-tenant-admin/shared/metrics"
	"github.com/pavitra93/go-multi-tenant-admin/shared/models"
	"github.com/pavitra93/go-multi-tenant-admin/shared/permissions"
	"github.com/pavitra93/go-multi-tenant-admin/shared/tenancy"
	"github.com/pavitra93/go-multi-tenant-admin/shared/testutil"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const (
	rootEmail    = "admin.root@abcschool.com"
	testPassword = "Passw0rd!"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

type fixture struct {
	t       *testing.T
	db      *gorm.DB
	tenant  *models.Tenant
	ctx     context.Context
	roles   *RoleService
	users   *UserService
	tokens  *TokenService
	events  *events.Recorder
	metrics *metrics.Metrics
	admin   *models.Role
	basic   *models.Role
}

func fastHasher() *PasswordHasher {
	return &PasswordHasher{Time: 1, Memory: 1024, Threads: 1}
}

// newFixture sets up tenant with seeded Admin and Basic roles on a fresh database
func newFixture(t *testing.T, tenant *models.Tenant) *fixture {
	t.Helper()
	return newFixtureOn(t, testutil.NewDB(t), tenant)
}

func newFixtureOn(t *testing.T, db *gorm.DB, tenant *models.Tenant) *fixture {
	t.Helper()
	conns, err := tenancy.NewConnections(db, 2, nil)
	require.NoError(t, err)
	require.NoError(t, db.Create(tenant).Error)

	store := NewStore(conns)
	hasher := fastHasher()
	rec := &events.Recorder{}
	m := metrics.New(prometheus.NewRegistry())

	f := &fixture{
		t:       t,
		db:      db,
		tenant:  tenant,
		ctx:     tenancy.WithTenant(context.Background(), tenant),
		roles:   NewRoleService(store, rec),
		users:   NewUserService(store, hasher, rec, rootEmail),
		tokens:  NewTokenService(store, hasher, TokenOptions{Secret: testSecret, TokenTTL: time.Hour, RefreshTokenTTL: 7 * 24 * time.Hour}, m),
		events:  rec,
		metrics: m,
	}
	f.admin = f.systemRole(models.RoleNameAdmin, models.RoleKindAdmin, adminPermissions(tenant))
	f.basic = f.systemRole(models.RoleNameBasic, models.RoleKindBasic, permissions.Basic())
	return f
}

func activeTenant(id string) *models.Tenant {
	return &models.Tenant{
		ID:         id,
		Identifier: id,
		Name:       "School " + id,
		Email:      "admin@" + id + ".com",
		IsActive:   true,
		ValidUpTo:  time.Now().AddDate(1, 0, 0),
	}
}

func adminPermissions(tenant *models.Tenant) []permissions.Permission {
	perms := permissions.Admin()
	if tenant.IsRoot() {
		perms = append(perms, permissions.Root()...)
	}
	return perms
}

func (f *fixture) systemRole(name string, kind models.RoleKind, perms []permissions.Permission) *models.Role {
	role := &models.Role{TenantID: f.tenant.ID, Name: name, Kind: kind}
	require.NoError(f.t, f.db.Create(role).Error)
	for _, p := range perms {
		require.NoError(f.t, f.db.Create(&models.RoleClaim{
			TenantID:    f.tenant.ID,
			RoleID:      role.ID,
			ClaimType:   claims.TypePermission,
			ClaimValue:  p.Name(),
			Description: p.Description,
			Group:       p.Group,
		}).Error)
	}
	return role
}

func (f *fixture) createUser(email string) string {
	f.t.Helper()
	id, err := f.users.Create(f.ctx, CreateUserRequest{
		FirstName:       "First",
		LastName:        "Last",
		Email:           email,
		Password:        testPassword,
		ConfirmPassword: testPassword,
		PhoneNumber:     "555-0100",
		IsActive:        true,
	})
	require.NoError(f.t, err)
	return id
}

func (f *fixture) assign(userID string, roles ...UserRole) {
	f.t.Helper()
	_, err := f.users.AssignRoles(f.ctx, userID, UserRolesRequest{UserRoles: roles})
	require.NoError(f.t, err)
}

// setTenantActive changes the stored tenant only; f.ctx keeps its copy
func (f *fixture) setTenantActive(active bool) {
	f.t.Helper()
	require.NoError(f.t, f.db.Model(&models.Tenant{}).Where("id = ?", f.tenant.ID).Update("is_active", active).Error)
}

func grant(name string) UserRole  { return UserRole{Name: name, IsAssigned: true} }
func revoke(name string) UserRole { return UserRole{Name: name, IsAssigned: false} }

func (f *fixture) roleClaimIDs(roleID string) []uint {
	var ids []uint
	require.NoError(f.t, f.db.Model(&models.RoleClaim{}).Where("role_id = ?", roleID).Order("id").Pluck("id", &ids).Error)
	return ids
}
