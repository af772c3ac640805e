package identity

import (
	"context"
	"errors"
	"fmt"

	"github.com/pavitra93/go-multi-tenant-admin/shared/apperrors"
	"github.com/pavitra93/go-multi-tenant-admin/shared/claims"
	"github.com/pavitra93/go-multi-tenant-admin/shared/models"
	"github.com/pavitra93/go-multi-tenant-admin/shared/tenancy"
	"gorm.io/gorm"
)

// Store gives the identity services a tenant-scoped view of the database
// routed through the tenant attached to the request context.
type Store struct {
	conns *tenancy.Connections
}

func NewStore(conns *tenancy.Connections) *Store {
	return &Store{conns: conns}
}

// scope returns the tenant's database and the tenant itself
func (s *Store) scope(ctx context.Context) (*gorm.DB, *models.Tenant, error) {
	return s.conns.DB(ctx)
}

// currentScope is scope with the tenant reloaded from the directory
func (s *Store) currentScope(ctx context.Context) (*gorm.DB, *models.Tenant, error) {
	return s.conns.Current(ctx)
}

func findRole(db *gorm.DB, tenantID, id string) (*models.Role, error) {
	var role models.Role
	err := db.Where("tenant_id = ? AND id = ?", tenantID, id).First(&role).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.NotFound("Role does not exist.")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load role: %w", err)
	}
	return &role, nil
}

func findRoleByName(db *gorm.DB, tenantID, name string) (*models.Role, error) {
	var role models.Role
	err := db.Where("tenant_id = ? AND normalized_name = ?", tenantID, models.NormalizeName(name)).First(&role).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load role: %w", err)
	}
	return &role, nil
}

func findUser(db *gorm.DB, tenantID, id string) (*models.User, error) {
	var user models.User
	err := db.Where("tenant_id = ? AND id = ?", tenantID, id).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.NotFound("User does not exist.")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	return &user, nil
}

// findUserByEmail returns nil without error when no user matches
func findUserByEmail(db *gorm.DB, tenantID, email string) (*models.User, error) {
	var user models.User
	err := db.Where("tenant_id = ? AND normalized_email = ?", tenantID, models.NormalizeName(email)).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	return &user, nil
}

// rolesOfUser returns the user's roles ordered by name
func rolesOfUser(db *gorm.DB, tenantID, userID string) ([]models.Role, error) {
	var roles []models.Role
	err := db.Table("roles").
		Joins("JOIN user_roles ON user_roles.role_id = roles.id").
		Where("user_roles.tenant_id = ? AND user_roles.user_id = ?", tenantID, userID).
		Order("roles.normalized_name").
		Find(&roles).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load user roles: %w", err)
	}
	return roles, nil
}

func countRoleMembers(db *gorm.DB, tenantID, roleID string) (int64, error) {
	var count int64
	err := db.Model(&models.UserRole{}).
		Where("tenant_id = ? AND role_id = ?", tenantID, roleID).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count role members: %w", err)
	}
	return count, nil
}

func rolePermissionClaims(db *gorm.DB, tenantID string, roleIDs []string) ([]models.RoleClaim, error) {
	if len(roleIDs) == 0 {
		return nil, nil
	}
	var rcs []models.RoleClaim
	err := db.Where("tenant_id = ? AND role_id IN ? AND claim_type = ?", tenantID, roleIDs, claims.TypePermission).
		Order("id").
		Find(&rcs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load role claims: %w", err)
	}
	return rcs, nil
}

// aggregateClaims builds the effective claim set of a user: identity
// claims, one Role claim per role, the user's direct claims and the union
// of the permission claims of every role. Token issuance and permission
// queries both read from here.
func aggregateClaims(db *gorm.DB, tenant *models.Tenant, user *models.User) (*claims.Set, error) {
	set := claims.NewSet(
		claims.Claim{Type: claims.TypeSubject, Value: user.ID},
		claims.Claim{Type: claims.TypeEmail, Value: user.Email},
		claims.Claim{Type: claims.TypeName, Value: user.FirstName},
		claims.Claim{Type: claims.TypeSurname, Value: user.LastName},
		claims.Claim{Type: claims.TypeTenant, Value: tenant.ID},
		claims.Claim{Type: claims.TypeMobilePhone, Value: user.PhoneNumber},
	)

	roles, err := rolesOfUser(db, tenant.ID, user.ID)
	if err != nil {
		return nil, err
	}
	roleIDs := make([]string, len(roles))
	for i, r := range roles {
		set.Add(claims.TypeRole, r.Name)
		roleIDs[i] = r.ID
	}

	var direct []models.UserClaim
	if err := db.Where("tenant_id = ? AND user_id = ?", tenant.ID, user.ID).Order("id").Find(&direct).Error; err != nil {
		return nil, fmt.Errorf("failed to load user claims: %w", err)
	}
	for _, uc := range direct {
		set.Add(uc.ClaimType, uc.ClaimValue)
	}

	rcs, err := rolePermissionClaims(db, tenant.ID, roleIDs)
	if err != nil {
		return nil, err
	}
	for _, rc := range rcs {
		set.Add(claims.TypePermission, rc.ClaimValue)
	}
	return set, nil
}
