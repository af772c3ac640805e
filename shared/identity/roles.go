package identity

import (
	"context"
	"fmt"
	"strings"

	"github.com/pavitra93/go-multi-tenant-admin/shared/apperrors"
	"github.com/pavitra93/go-multi-tenant-admin/shared/claims"
	"github.com/pavitra93/go-multi-tenant-admin/shared/events"
	"github.com/pavitra93/go-multi-tenant-admin/shared/models"
	"github.com/pavitra93/go-multi-tenant-admin/shared/permissions"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

type CreateRoleRequest struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
}

type UpdateRoleRequest struct {
	ID          string `json:"id"`
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
}

type UpdateRolePermissionsRequest struct {
	RoleID         string   `json:"role_id"`
	NewPermissions []string `json:"new_permissions"`
}

// RoleResponse is a role with, when requested, its permission values
type RoleResponse struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Kind        models.RoleKind `json:"kind"`
	Permissions []string        `json:"permissions,omitempty"`
}

func toRoleResponse(r *models.Role) RoleResponse {
	return RoleResponse{ID: r.ID, Name: r.Name, Description: r.Description, Kind: r.Kind}
}

// RoleService manages a tenant's roles and their permission claims
type RoleService struct {
	store     *Store
	publisher events.Publisher
}

func NewRoleService(store *Store, publisher events.Publisher) *RoleService {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &RoleService{store: store, publisher: publisher}
}

// Create adds a custom role and returns its id
func (s *RoleService) Create(ctx context.Context, req CreateRoleRequest) (string, error) {
	db, tenant, err := s.store.scope(ctx)
	if err != nil {
		return "", err
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		return "", apperrors.Conflict("Role name is required.")
	}
	existing, err := findRoleByName(db, tenant.ID, name)
	if err != nil {
		return "", err
	}
	if existing != nil {
		return "", apperrors.Conflict(fmt.Sprintf("Role '%s' already exists.", name))
	}

	role := &models.Role{
		TenantID:    tenant.ID,
		Name:        name,
		Description: req.Description,
		Kind:        models.RoleKindCustom,
	}
	if err := db.Create(role).Error; err != nil {
		return "", fmt.Errorf("failed to create role: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"tenant_id": tenant.ID,
		"role_id":   role.ID,
		"name":      role.Name,
	}).Info("Role created")
	return role.ID, nil
}

// Update renames or re-describes a custom role
func (s *RoleService) Update(ctx context.Context, req UpdateRoleRequest) (string, error) {
	db, tenant, err := s.store.scope(ctx)
	if err != nil {
		return "", err
	}

	role, err := findRole(db, tenant.ID, req.ID)
	if err != nil {
		return "", err
	}
	if role.Kind.IsSystem() {
		return "", apperrors.Conflict(fmt.Sprintf("Changes not allowed on system role '%s'.", role.Name))
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		return "", apperrors.Conflict("Role name is required.")
	}
	if models.NormalizeName(name) != role.NormalizedName {
		clash, err := findRoleByName(db, tenant.ID, name)
		if err != nil {
			return "", err
		}
		if clash != nil {
			return "", apperrors.Conflict(fmt.Sprintf("Role '%s' already exists.", name))
		}
	}

	err = db.Model(role).Updates(map[string]interface{}{
		"name":            name,
		"normalized_name": models.NormalizeName(name),
		"description":     req.Description,
	}).Error
	if err != nil {
		return "", fmt.Errorf("failed to update role: %w", err)
	}
	return role.ID, nil
}

// Delete removes a custom role nobody holds
func (s *RoleService) Delete(ctx context.Context, id string) (string, error) {
	db, tenant, err := s.store.scope(ctx)
	if err != nil {
		return "", err
	}

	role, err := findRole(db, tenant.ID, id)
	if err != nil {
		return "", err
	}
	if role.Kind.IsSystem() {
		return "", apperrors.Conflict(fmt.Sprintf("Not allowed to delete '%s' role.", role.Name))
	}
	members, err := countRoleMembers(db, tenant.ID, role.ID)
	if err != nil {
		return "", err
	}
	if members > 0 {
		return "", apperrors.Conflict(fmt.Sprintf("Not allowed to delete '%s' role as it is currently assigned to users.", role.Name))
	}

	err = db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("tenant_id = ? AND role_id = ?", tenant.ID, role.ID).Delete(&models.RoleClaim{}).Error; err != nil {
			return err
		}
		return tx.Delete(role).Error
	})
	if err != nil {
		return "", fmt.Errorf("failed to delete role: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"tenant_id": tenant.ID,
		"role_id":   role.ID,
	}).Info("Role deleted")
	return role.ID, nil
}

// UpdatePermissions replaces a role's permission claims with the requested
// set, writing only the difference. The Admin role is fixed by the catalog.
// Tenant-management permissions are dropped outside the root tenant.
func (s *RoleService) UpdatePermissions(ctx context.Context, req UpdateRolePermissionsRequest) (string, error) {
	db, tenant, err := s.store.scope(ctx)
	if err != nil {
		return "", err
	}

	role, err := findRole(db, tenant.ID, req.RoleID)
	if err != nil {
		return "", err
	}
	if role.Kind == models.RoleKindAdmin {
		return "", apperrors.Conflict(fmt.Sprintf("Not allowed to change permissions for '%s' role.", role.Name))
	}

	wanted, err := sanitizePermissions(req.NewPermissions, tenant.IsRoot())
	if err != nil {
		return "", err
	}

	current, err := rolePermissionClaims(db, tenant.ID, []string{role.ID})
	if err != nil {
		return "", err
	}

	var removeIDs []uint
	have := make(map[string]struct{}, len(current))
	for _, rc := range current {
		have[rc.ClaimValue] = struct{}{}
		if _, keep := wanted.index[rc.ClaimValue]; !keep {
			removeIDs = append(removeIDs, rc.ID)
		}
	}
	var additions []models.RoleClaim
	for _, value := range wanted.values {
		if _, ok := have[value]; ok {
			continue
		}
		p, _ := permissions.Lookup(value)
		additions = append(additions, models.RoleClaim{
			TenantID:    tenant.ID,
			RoleID:      role.ID,
			ClaimType:   claims.TypePermission,
			ClaimValue:  value,
			Description: p.Description,
			Group:       p.Group,
		})
	}

	if len(removeIDs) == 0 && len(additions) == 0 {
		return "Permissions Updated Successfully", nil
	}

	err = db.Transaction(func(tx *gorm.DB) error {
		if len(removeIDs) > 0 {
			if err := tx.Where("tenant_id = ? AND id IN ?", tenant.ID, removeIDs).Delete(&models.RoleClaim{}).Error; err != nil {
				return err
			}
		}
		if len(additions) > 0 {
			if err := tx.Create(&additions).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("failed to update role permissions: %w", err)
	}

	s.publisher.Publish(ctx, events.New(events.RolePermissionsUpdated, tenant.ID, map[string]interface{}{
		"role_id": role.ID,
		"added":   len(additions),
		"removed": len(removeIDs),
	}))
	logrus.WithFields(logrus.Fields{
		"tenant_id": tenant.ID,
		"role_id":   role.ID,
		"added":     len(additions),
		"removed":   len(removeIDs),
	}).Info("Role permissions updated")
	return "Permissions Updated Successfully", nil
}

type permissionSet struct {
	values []string
	index  map[string]struct{}
}

// sanitizePermissions dedupes the request, drops tenant-management values
// for non-root tenants and rejects anything outside the catalog.
func sanitizePermissions(requested []string, root bool) (permissionSet, error) {
	set := permissionSet{index: make(map[string]struct{}, len(requested))}
	var unknown []string
	for _, raw := range requested {
		value := strings.TrimSpace(raw)
		if value == "" {
			continue
		}
		if !root && permissions.IsTenantManagement(value) {
			continue
		}
		if !permissions.IsKnown(value) {
			unknown = append(unknown, value)
			continue
		}
		if _, dup := set.index[value]; dup {
			continue
		}
		set.index[value] = struct{}{}
		set.values = append(set.values, value)
	}
	if len(unknown) > 0 {
		msgs := make([]string, len(unknown))
		for i, u := range unknown {
			msgs[i] = fmt.Sprintf("Permission '%s' does not exist.", u)
		}
		return permissionSet{}, apperrors.Conflict(msgs...)
	}
	return set, nil
}

// GetWithPermissions returns a role and its current permission values
func (s *RoleService) GetWithPermissions(ctx context.Context, id string) (*RoleResponse, error) {
	db, tenant, err := s.store.scope(ctx)
	if err != nil {
		return nil, err
	}
	role, err := findRole(db, tenant.ID, id)
	if err != nil {
		return nil, err
	}
	rcs, err := rolePermissionClaims(db, tenant.ID, []string{role.ID})
	if err != nil {
		return nil, err
	}

	resp := toRoleResponse(role)
	resp.Permissions = make([]string, len(rcs))
	for i, rc := range rcs {
		resp.Permissions[i] = rc.ClaimValue
	}
	return &resp, nil
}

func (s *RoleService) GetAll(ctx context.Context) ([]RoleResponse, error) {
	db, tenant, err := s.store.scope(ctx)
	if err != nil {
		return nil, err
	}
	var roles []models.Role
	if err := db.Where("tenant_id = ?", tenant.ID).Order("normalized_name").Find(&roles).Error; err != nil {
		return nil, fmt.Errorf("failed to list roles: %w", err)
	}
	out := make([]RoleResponse, len(roles))
	for i := range roles {
		out[i] = toRoleResponse(&roles[i])
	}
	return out, nil
}

func (s *RoleService) GetByID(ctx context.Context, id string) (*RoleResponse, error) {
	db, tenant, err := s.store.scope(ctx)
	if err != nil {
		return nil, err
	}
	role, err := findRole(db, tenant.ID, id)
	if err != nil {
		return nil, err
	}
	resp := toRoleResponse(role)
	return &resp, nil
}

// Exists reports whether a role with the name exists (case-insensitive)
func (s *RoleService) Exists(ctx context.Context, name string) (bool, error) {
	db, tenant, err := s.store.scope(ctx)
	if err != nil {
		return false, err
	}
	role, err := findRoleByName(db, tenant.ID, name)
	if err != nil {
		return false, err
	}
	return role != nil, nil
}
