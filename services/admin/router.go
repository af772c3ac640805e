package main

import (
	"github.com/gin-gonic/gin"
	"github.com/pavitra93/go-multi-tenant-admin/shared/config"
	"github.com/pavitra93/go-multi-tenant-admin/shared/identity"
	"github.com/pavitra93/go-multi-tenant-admin/shared/metrics"
	"github.com/pavitra93/go-multi-tenant-admin/shared/middleware"
	"github.com/pavitra93/go-multi-tenant-admin/shared/permissions"
	"github.com/pavitra93/go-multi-tenant-admin/shared/tenancy"
	"github.com/pavitra93/go-multi-tenant-admin/shared/utils"
	"gorm.io/gorm"
)

// App bundles the services the HTTP handlers call into
type App struct {
	DB      *gorm.DB
	Tenants *tenancy.Directory
	Roles   *identity.RoleService
	Users   *identity.UserService
	Tokens  *identity.TokenService
	Auth    *middleware.AuthMiddleware
	Metrics *metrics.Metrics
}

func perm(feature, action string) string {
	return permissions.NameFor(feature, action)
}

// NewRouter wires every route onto a new gin engine
func NewRouter(app *App, tenantHeader string) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), middleware.RequestLogger(), middleware.RequestMetrics(app.Metrics), middleware.CORS(tenantHeader))

	router.GET("/health", handleHealth(app.DB))
	router.GET("/metrics", gin.WrapH(app.Metrics.Handler()))

	am := app.Auth
	api := router.Group("/api")
	api.Use(am.ResolveTenant())

	auth := api.Group("/auth")
	{
		auth.POST("/login", handleLogin(app.Tokens))
		auth.POST("/refresh-token", am.RequireAuth(),
			am.RequirePermission(perm(permissions.FeatureTokens, permissions.ActionRefreshToken)),
			handleRefreshToken(app.Tokens))
		auth.GET("/claims", am.RequireAuth(), handleGetClaims())
	}

	tenants := api.Group("/tenants")
	tenants.Use(am.RequireAuth())
	{
		tenants.POST("", am.RequirePermission(perm(permissions.FeatureTenants, permissions.ActionCreate)), handleCreateTenant(app.Tenants))
		tenants.GET("", am.RequirePermission(perm(permissions.FeatureTenants, permissions.ActionRead)), handleGetTenants(app.Tenants))
		tenants.GET("/:id", am.RequirePermission(perm(permissions.FeatureTenants, permissions.ActionRead)), handleGetTenant(app.Tenants))
		tenants.PUT("/:id/activate", am.RequirePermission(perm(permissions.FeatureTenants, permissions.ActionUpdate)), handleSetTenantActive(app.Tenants, true))
		tenants.PUT("/:id/deactivate", am.RequirePermission(perm(permissions.FeatureTenants, permissions.ActionUpdate)), handleSetTenantActive(app.Tenants, false))
		tenants.PUT("/subscription", am.RequirePermission(perm(permissions.FeatureTenants, permissions.ActionUpgradeSubscription)), handleUpdateSubscription(app.Tenants))
	}

	roles := api.Group("/roles")
	roles.Use(am.RequireAuth())
	{
		roles.POST("", am.RequirePermission(perm(permissions.FeatureRoles, permissions.ActionCreate)), handleCreateRole(app.Roles))
		roles.PUT("/:id", am.RequirePermission(perm(permissions.FeatureRoles, permissions.ActionUpdate)), handleUpdateRole(app.Roles))
		roles.DELETE("/:id", am.RequirePermission(perm(permissions.FeatureRoles, permissions.ActionDelete)), handleDeleteRole(app.Roles))
		roles.GET("", am.RequirePermission(perm(permissions.FeatureRoles, permissions.ActionRead)), handleGetRoles(app.Roles))
		roles.GET("/:id", am.RequirePermission(perm(permissions.FeatureRoles, permissions.ActionRead)), handleGetRole(app.Roles))
		roles.GET("/:id/permissions", am.RequirePermission(perm(permissions.FeatureRoleClaims, permissions.ActionRead)), handleGetRolePermissions(app.Roles))
		roles.PUT("/:id/permissions", am.RequirePermission(perm(permissions.FeatureRoleClaims, permissions.ActionUpdate)), handleUpdateRolePermissions(app.Roles))
	}

	users := api.Group("/users")
	users.Use(am.RequireAuth())
	{
		users.POST("", am.RequirePermission(perm(permissions.FeatureUsers, permissions.ActionCreate)), handleCreateUser(app.Users))
		users.PUT("/:id", am.RequirePermission(perm(permissions.FeatureUsers, permissions.ActionUpdate)), handleUpdateUser(app.Users))
		users.PUT("/:id/status", am.RequirePermission(perm(permissions.FeatureUsers, permissions.ActionUpdate)), handleChangeUserStatus(app.Users))
		users.PUT("/:id/password", handleChangePassword(app.Users))
		users.PUT("/:id/roles", am.RequirePermission(perm(permissions.FeatureUserRoles, permissions.ActionUpdate)), handleAssignRoles(app.Users))
		users.DELETE("/:id", am.RequirePermission(perm(permissions.FeatureUsers, permissions.ActionDelete)), handleDeleteUser(app.Users))
		users.GET("", am.RequirePermission(perm(permissions.FeatureUsers, permissions.ActionRead)), handleGetUsers(app.Users))
		users.GET("/:id", am.RequirePermission(perm(permissions.FeatureUsers, permissions.ActionRead)), handleGetUser(app.Users))
		users.GET("/:id/roles", am.RequirePermission(perm(permissions.FeatureUserRoles, permissions.ActionRead)), handleGetUserRoles(app.Users))
		users.GET("/:id/permissions", am.RequirePermission(perm(permissions.FeatureRoleClaims, permissions.ActionRead)), handleGetUserPermissions(app.Users))
	}

	return router
}

// handleHealth reports whether the shared database is reachable
func handleHealth(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := config.HealthCheck(c.Request.Context(), db); err != nil {
			utils.ServiceUnavailableResponse(c, "Admin service is unhealthy")
			return
		}
		utils.OKResponse(c, "Admin service is healthy", nil)
	}
}
