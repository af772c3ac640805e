package middleware

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/pavitra93/go-multi-tenant-admin/shared/authz"
	"github.com/pavitra93/go-multi-tenant-admin/shared/claims"
	"github.com/pavitra93/go-multi-tenant-admin/shared/identity"
	"github.com/pavitra93/go-multi-tenant-admin/shared/models"
	"github.com/pavitra93/go-multi-tenant-admin/shared/tenancy"
	"github.com/pavitra93/go-multi-tenant-admin/shared/utils"
	"github.com/sirupsen/logrus"
)

// TokenValidator verifies session tokens
type TokenValidator interface {
	Validate(token string) (*identity.SessionClaims, error)
}

// TenantResolver looks a tenant up by identifier
type TenantResolver interface {
	Resolve(ctx context.Context, identifier string) (*models.Tenant, error)
}

// AuthMiddleware resolves the tenant, validates session tokens and
// enforces authorization policies.
type AuthMiddleware struct {
	tokens       TokenValidator
	tenants      TenantResolver
	policies     *authz.PolicyProvider
	tenantHeader string
}

// NewAuthMiddleware creates a new authentication middleware
func NewAuthMiddleware(tokens TokenValidator, tenants TenantResolver, policies *authz.PolicyProvider, tenantHeader string) *AuthMiddleware {
	if tenantHeader == "" {
		tenantHeader = "tenant"
	}
	return &AuthMiddleware{
		tokens:       tokens,
		tenants:      tenants,
		policies:     policies,
		tenantHeader: tenantHeader,
	}
}

// ResolveTenant attaches the request's tenant to the request context. The
// tenant header wins; otherwise the tenant claim of a valid bearer token is
// used. Requests without either continue unresolved.
func (am *AuthMiddleware) ResolveTenant() gin.HandlerFunc {
	return func(c *gin.Context) {
		identifier := strings.TrimSpace(c.GetHeader(am.tenantHeader))
		if identifier == "" {
			if token := extractToken(c); token != "" {
				if sc, err := am.tokens.Validate(token); err == nil {
					identifier = sc.Tenant
				}
			}
		}
		if identifier == "" {
			c.Next()
			return
		}

		tenant, err := am.tenants.Resolve(c.Request.Context(), identifier)
		if err != nil {
			utils.RenderError(c, err)
			c.Abort()
			return
		}

		c.Request = c.Request.WithContext(tenancy.WithTenant(c.Request.Context(), tenant))
		c.Set("tenant_id", tenant.ID)
		c.Next()
	}
}

// RequireAuth middleware validates the bearer token against the resolved tenant
func (am *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := extractToken(c)
		if tokenString == "" {
			utils.UnauthorizedResponse(c, "Authorization token required")
			c.Abort()
			return
		}

		sc, err := am.tokens.Validate(tokenString)
		if err != nil {
			utils.RenderError(c, err)
			c.Abort()
			return
		}

		tenant, err := tenancy.Require(c.Request.Context())
		if err != nil {
			utils.RenderError(c, err)
			c.Abort()
			return
		}
		if sc.Tenant != tenant.ID {
			logrus.WithFields(logrus.Fields{
				"tenant_id":    tenant.ID,
				"token_tenant": sc.Tenant,
			}).Warn("Token presented to a different tenant")
			utils.UnauthorizedResponse(c, "Invalid or expired token.")
			c.Abort()
			return
		}

		c.Request = c.Request.WithContext(claims.WithClaims(c.Request.Context(), sc.ClaimSet()))
		c.Set("user_id", sc.Subject)
		c.Set("email", sc.Email)
		c.Next()
	}
}

// RequirePermission admits callers holding perm
func (am *AuthMiddleware) RequirePermission(perm string) gin.HandlerFunc {
	return am.RequirePolicy(perm)
}

// RequirePolicy admits callers satisfying the named policy. Must run after RequireAuth.
func (am *AuthMiddleware) RequirePolicy(name string) gin.HandlerFunc {
	return func(c *gin.Context) {
		set, ok := claims.FromContext(c.Request.Context())
		if !ok {
			utils.UnauthorizedResponse(c, "Authorization token required")
			c.Abort()
			return
		}

		allowed, err := am.policies.Authorize(set, name)
		if err != nil {
			utils.RenderError(c, err)
			c.Abort()
			return
		}
		if !allowed {
			utils.ForbiddenResponse(c, "You do not have permission to perform this action.")
			c.Abort()
			return
		}
		c.Next()
	}
}

// extractToken extracts the JWT token from the Authorization header
func extractToken(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		return ""
	}

	if strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimPrefix(authHeader, "Bearer ")
	}

	return authHeader
}

// UserIDFromContext returns the authenticated user's id
func UserIDFromContext(c *gin.Context) string {
	return c.GetString("user_id")
}
