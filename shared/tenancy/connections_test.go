package tenancy

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/pavitra93/go-multi-tenant-admin/shared/apperrors"
	"github.com/pavitra93/go-multi-tenant-admin/shared/models"
	"github.com/pavitra93/go-multi-tenant-admin/shared/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func sqliteOpener(opened *[]string) Opener {
	return func(dsn string) (*gorm.DB, error) {
		*opened = append(*opened, dsn)
		return gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	}
}

func memoryDSN(name string) string {
	return fmt.Sprintf("file:%s?mode=memory&cache=shared", name)
}

func TestConnectionsSharedForPlainTenants(t *testing.T) {
	shared := testutil.NewDB(t)
	var opened []string
	conns, err := NewConnections(shared, 2, sqliteOpener(&opened))
	require.NoError(t, err)

	db, release, err := conns.For(context.Background(), &models.Tenant{ID: "t1"})
	require.NoError(t, err)
	defer release()
	assert.Same(t, shared, db)
	assert.Empty(t, opened)
}

func TestConnectionsDedicatedHandlesAreCachedAndEvicted(t *testing.T) {
	shared := testutil.NewDB(t)
	var opened []string
	conns, err := NewConnections(shared, 1, sqliteOpener(&opened))
	require.NoError(t, err)
	defer conns.Close()
	ctx := context.Background()

	t1 := &models.Tenant{ID: "t1", ConnectionString: memoryDSN("conn-t1")}
	t2 := &models.Tenant{ID: "t2", ConnectionString: memoryDSN("conn-t2")}

	db1, release1, err := conns.For(ctx, t1)
	require.NoError(t, err)
	again, releaseAgain, err := conns.For(ctx, t1)
	require.NoError(t, err)
	assert.Same(t, db1, again)
	assert.Len(t, opened, 1)
	release1()
	releaseAgain()

	_, release2, err := conns.For(ctx, t2)
	require.NoError(t, err)
	defer release2()
	assert.Len(t, opened, 2)
	assert.Equal(t, 1, conns.Len())

	sqlDB, err := db1.DB()
	require.NoError(t, err)
	assert.Error(t, sqlDB.Ping(), "evicted idle handle should be closed")
}

func TestConnectionsEvictionKeepsHeldHandleOpen(t *testing.T) {
	shared := testutil.NewDB(t)
	var opened []string
	conns, err := NewConnections(shared, 1, sqliteOpener(&opened))
	require.NoError(t, err)
	defer conns.Close()
	ctx := context.Background()

	held, release, err := conns.For(ctx, &models.Tenant{ID: "t1", ConnectionString: memoryDSN("held-t1")})
	require.NoError(t, err)

	_, release2, err := conns.For(ctx, &models.Tenant{ID: "t2", ConnectionString: memoryDSN("held-t2")})
	require.NoError(t, err)
	defer release2()
	assert.Equal(t, 1, conns.Len())

	require.NoError(t, held.Exec("SELECT 1").Error)

	release()
	release()
	sqlDB, err := held.DB()
	require.NoError(t, err)
	assert.Error(t, sqlDB.Ping())
}

func TestConnectionsDBHoldsHandleUntilContextDone(t *testing.T) {
	shared := testutil.NewDB(t)
	var opened []string
	conns, err := NewConnections(shared, 1, sqliteOpener(&opened))
	require.NoError(t, err)
	defer conns.Close()

	reqCtx, cancel := context.WithCancel(context.Background())
	defer cancel()
	t1 := &models.Tenant{ID: "t1", ConnectionString: memoryDSN("req-t1")}
	db, _, err := conns.DB(WithTenant(reqCtx, t1))
	require.NoError(t, err)

	other, cancelOther := context.WithCancel(context.Background())
	defer cancelOther()
	_, _, err = conns.DB(WithTenant(other, &models.Tenant{ID: "t2", ConnectionString: memoryDSN("req-t2")}))
	require.NoError(t, err)

	var one int
	require.NoError(t, db.Raw("SELECT 1").Scan(&one).Error)
	assert.Equal(t, 1, one)

	cancel()
	sqlDB, err := db.DB()
	require.NoError(t, err)
	assert.Eventually(t, func() bool { return sqlDB.Ping() != nil }, time.Second, 10*time.Millisecond)
}

func TestConnectionsLoadsConnectionStringForCachedCopies(t *testing.T) {
	shared := testutil.NewDB(t)
	require.NoError(t, shared.Create(&models.Tenant{
		ID:               "t1",
		Identifier:       "t1",
		Name:             "School t1",
		IsActive:         true,
		ConnectionString: memoryDSN("lookup-t1"),
	}).Error)

	var opened []string
	conns, err := NewConnections(shared, 2, sqliteOpener(&opened))
	require.NoError(t, err)
	defer conns.Close()

	_, release, err := conns.For(context.Background(), &models.Tenant{ID: "t1", Dedicated: true})
	require.NoError(t, err)
	defer release()
	assert.Equal(t, []string{memoryDSN("lookup-t1")}, opened)

	_, _, err = conns.For(context.Background(), &models.Tenant{ID: "ghost", Dedicated: true})
	assert.True(t, apperrors.IsNotFound(err))
}

func TestConnectionsCurrentReloadsTenant(t *testing.T) {
	shared := testutil.NewDB(t)
	require.NoError(t, shared.Create(&models.Tenant{ID: "t1", Identifier: "t1", Name: "School t1", IsActive: false}).Error)
	conns, err := NewConnections(shared, 1, nil)
	require.NoError(t, err)

	stale := &models.Tenant{ID: "t1", Identifier: "t1", IsActive: true}
	_, tenant, err := conns.Current(WithTenant(context.Background(), stale))
	require.NoError(t, err)
	assert.False(t, tenant.IsActive)

	_, _, err = conns.Current(WithTenant(context.Background(), &models.Tenant{ID: "ghost"}))
	assert.True(t, apperrors.IsNotFound(err))
}

func TestConnectionsDBRequiresTenant(t *testing.T) {
	shared := testutil.NewDB(t)
	conns, err := NewConnections(shared, 1, nil)
	require.NoError(t, err)

	_, _, err = conns.DB(context.Background())
	assert.True(t, apperrors.IsUnauthorized(err))

	db, tenant, err := conns.DB(WithTenant(context.Background(), &models.Tenant{ID: "t1"}))
	require.NoError(t, err)
	assert.NotNil(t, db)
	assert.Equal(t, "t1", tenant.ID)
}
