package identity

import (
	"context"
	"fmt"
	"strings"

	"github.com/pavitra93/go-multi-tenant-admin/shared/apperrors"
	"github.com/pavitra93/go-multi-tenant-admin/shared/claims"
	"github.com/pavitra93/go-multi-tenant-admin/shared/events"
	"github.com/pavitra93/go-multi-tenant-admin/shared/models"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

type CreateUserRequest struct {
	FirstName       string `json:"first_name" binding:"required"`
	LastName        string `json:"last_name" binding:"required"`
	Email           string `json:"email" binding:"required,email"`
	Password        string `json:"password" binding:"required"`
	ConfirmPassword string `json:"confirm_password" binding:"required"`
	PhoneNumber     string `json:"phone_number"`
	IsActive        bool   `json:"is_active"`
}

type UpdateUserRequest struct {
	ID          string `json:"id"`
	FirstName   string `json:"first_name" binding:"required"`
	LastName    string `json:"last_name" binding:"required"`
	PhoneNumber string `json:"phone_number"`
}

type ChangePasswordRequest struct {
	UserID             string `json:"user_id"`
	CurrentPassword    string `json:"current_password" binding:"required"`
	NewPassword        string `json:"new_password" binding:"required"`
	ConfirmNewPassword string `json:"confirm_new_password" binding:"required"`
}

// UserRole reports one tenant role and whether the user holds it. It is
// also the element of a role assignment batch.
type UserRole struct {
	RoleID      string `json:"role_id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	IsAssigned  bool   `json:"is_assigned"`
}

type UserRolesRequest struct {
	UserRoles []UserRole `json:"user_roles" binding:"required"`
}

// UserService manages a tenant's user accounts and role memberships
type UserService struct {
	store          *Store
	hasher         *PasswordHasher
	publisher      events.Publisher
	rootAdminEmail string
}

// NewUserService creates a user service. rootAdminEmail identifies the
// protected account that can never be deleted.
func NewUserService(store *Store, hasher *PasswordHasher, publisher events.Publisher, rootAdminEmail string) *UserService {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &UserService{
		store:          store,
		hasher:         hasher,
		publisher:      publisher,
		rootAdminEmail: rootAdminEmail,
	}
}

func (s *UserService) isRootAdmin(u *models.User) bool {
	return strings.EqualFold(strings.TrimSpace(u.Email), strings.TrimSpace(s.rootAdminEmail))
}

// Create registers a user and returns the new id
func (s *UserService) Create(ctx context.Context, req CreateUserRequest) (string, error) {
	db, tenant, err := s.store.scope(ctx)
	if err != nil {
		return "", err
	}

	if req.Password != req.ConfirmPassword {
		return "", apperrors.Conflict("Passwords do not match.")
	}
	taken, err := findUserByEmail(db, tenant.ID, req.Email)
	if err != nil {
		return "", err
	}
	if taken != nil {
		return "", apperrors.Conflict("Email is already taken.")
	}
	if err := s.hasher.Validate(req.Password); err != nil {
		return "", err
	}
	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}

	user := &models.User{
		TenantID:     tenant.ID,
		UserName:     req.Email,
		Email:        req.Email,
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		PhoneNumber:  req.PhoneNumber,
		PasswordHash: hash,
		IsActive:     req.IsActive,
	}
	if err := db.Create(user).Error; err != nil {
		return "", fmt.Errorf("failed to create user: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"tenant_id": tenant.ID,
		"user_id":   user.ID,
	}).Info("User created")
	return user.ID, nil
}

func (s *UserService) Update(ctx context.Context, req UpdateUserRequest) (string, error) {
	db, tenant, err := s.store.scope(ctx)
	if err != nil {
		return "", err
	}
	user, err := findUser(db, tenant.ID, req.ID)
	if err != nil {
		return "", err
	}
	err = db.Model(user).Updates(map[string]interface{}{
		"first_name":   req.FirstName,
		"last_name":    req.LastName,
		"phone_number": req.PhoneNumber,
	}).Error
	if err != nil {
		return "", fmt.Errorf("failed to update user: %w", err)
	}
	return user.ID, nil
}

func (s *UserService) ActivateOrDeactivate(ctx context.Context, userID string, activation bool) (string, error) {
	db, tenant, err := s.store.scope(ctx)
	if err != nil {
		return "", err
	}
	user, err := findUser(db, tenant.ID, userID)
	if err != nil {
		return "", err
	}
	if err := db.Model(user).Update("is_active", activation).Error; err != nil {
		return "", fmt.Errorf("failed to update user status: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"tenant_id": tenant.ID,
		"user_id":   user.ID,
		"is_active": activation,
	}).Info("User status changed")
	return user.ID, nil
}

// ChangePassword verifies the current password before storing the new
// one. The refresh token is dropped so existing sessions cannot be renewed.
func (s *UserService) ChangePassword(ctx context.Context, req ChangePasswordRequest) (string, error) {
	db, tenant, err := s.store.scope(ctx)
	if err != nil {
		return "", err
	}
	user, err := findUser(db, tenant.ID, req.UserID)
	if err != nil {
		return "", err
	}
	if req.NewPassword != req.ConfirmNewPassword {
		return "", apperrors.Conflict("Passwords do not match.")
	}

	ok, err := s.hasher.Verify(req.CurrentPassword, user.PasswordHash)
	if err != nil || !ok {
		return "", apperrors.Identity("Incorrect password.")
	}
	if err := s.hasher.Validate(req.NewPassword); err != nil {
		return "", err
	}
	hash, err := s.hasher.Hash(req.NewPassword)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}

	err = db.Model(user).Updates(map[string]interface{}{
		"password_hash":        hash,
		"refresh_token_hash":   "",
		"refresh_token_expiry": nil,
	}).Error
	if err != nil {
		return "", fmt.Errorf("failed to change password: %w", err)
	}
	return user.ID, nil
}

// Delete removes a user with its memberships and direct claims. The root
// admin account is protected.
func (s *UserService) Delete(ctx context.Context, userID string) (string, error) {
	db, tenant, err := s.store.scope(ctx)
	if err != nil {
		return "", err
	}
	user, err := findUser(db, tenant.ID, userID)
	if err != nil {
		return "", err
	}
	if s.isRootAdmin(user) {
		return "", apperrors.Conflict("Not allowed to delete Root Admin User for Tenant.")
	}

	err = db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("tenant_id = ? AND user_id = ?", tenant.ID, user.ID).Delete(&models.UserRole{}).Error; err != nil {
			return err
		}
		if err := tx.Where("tenant_id = ? AND user_id = ?", tenant.ID, user.ID).Delete(&models.UserClaim{}).Error; err != nil {
			return err
		}
		return tx.Delete(user).Error
	})
	if err != nil {
		return "", fmt.Errorf("failed to delete user: %w", err)
	}

	s.publisher.Publish(ctx, events.New(events.UserDeleted, tenant.ID, map[string]interface{}{
		"user_id": user.ID,
	}))
	logrus.WithFields(logrus.Fields{
		"tenant_id": tenant.ID,
		"user_id":   user.ID,
	}).Info("User deleted")
	return user.ID, nil
}

// AssignRoles applies a batch of role memberships. Preconditions are
// checked against the state before the batch and the batch is written in
// one transaction. Removing Admin is refused for the root tenant's root
// admin, and for anyone while the tenant has two or fewer Admin holders.
func (s *UserService) AssignRoles(ctx context.Context, userID string, req UserRolesRequest) (string, error) {
	db, tenant, err := s.store.scope(ctx)
	if err != nil {
		return "", err
	}
	user, err := findUser(db, tenant.ID, userID)
	if err != nil {
		return "", err
	}

	var tenantRoles []models.Role
	if err := db.Where("tenant_id = ?", tenant.ID).Find(&tenantRoles).Error; err != nil {
		return "", fmt.Errorf("failed to load roles: %w", err)
	}
	byName := make(map[string]*models.Role, len(tenantRoles))
	for i := range tenantRoles {
		byName[tenantRoles[i].NormalizedName] = &tenantRoles[i]
	}

	held, err := rolesOfUser(db, tenant.ID, user.ID)
	if err != nil {
		return "", err
	}
	holds := make(map[string]bool, len(held))
	for _, r := range held {
		holds[r.ID] = true
	}

	type change struct {
		role   *models.Role
		assign bool
	}
	changes := make([]change, 0, len(req.UserRoles))
	removesAdmin := false
	for _, ur := range req.UserRoles {
		role, ok := byName[models.NormalizeName(ur.Name)]
		if !ok {
			return "", apperrors.NotFound(fmt.Sprintf("Role '%s' does not exist.", ur.Name))
		}
		if role.Kind == models.RoleKindAdmin && !ur.IsAssigned && holds[role.ID] {
			removesAdmin = true
		}
		changes = append(changes, change{role: role, assign: ur.IsAssigned})
	}

	if removesAdmin {
		if s.isRootAdmin(user) && tenant.IsRoot() {
			return "", apperrors.Conflict("Not allowed to remove Admin role for a Root Tenant User.")
		}
		var admin *models.Role
		for i := range tenantRoles {
			if tenantRoles[i].Kind == models.RoleKindAdmin {
				admin = &tenantRoles[i]
			}
		}
		count, err := countRoleMembers(db, tenant.ID, admin.ID)
		if err != nil {
			return "", err
		}
		if count <= 2 {
			return "", apperrors.Conflict("Not allowed. Tenant should have at least two Admin Users.")
		}
	}

	changed := 0
	err = db.Transaction(func(tx *gorm.DB) error {
		for _, c := range changes {
			switch {
			case c.assign && !holds[c.role.ID]:
				if err := tx.Create(&models.UserRole{TenantID: tenant.ID, UserID: user.ID, RoleID: c.role.ID}).Error; err != nil {
					return err
				}
				holds[c.role.ID] = true
				changed++
			case !c.assign && holds[c.role.ID]:
				err := tx.Where("tenant_id = ? AND user_id = ? AND role_id = ?", tenant.ID, user.ID, c.role.ID).
					Delete(&models.UserRole{}).Error
				if err != nil {
					return err
				}
				holds[c.role.ID] = false
				changed++
			}
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("failed to assign roles: %w", err)
	}

	if changed > 0 {
		s.publisher.Publish(ctx, events.New(events.UserRolesAssigned, tenant.ID, map[string]interface{}{
			"user_id": user.ID,
			"changes": changed,
		}))
		logrus.WithFields(logrus.Fields{
			"tenant_id": tenant.ID,
			"user_id":   user.ID,
			"changes":   changed,
		}).Info("User roles updated")
	}
	return user.ID, nil
}

func (s *UserService) GetAll(ctx context.Context) ([]models.User, error) {
	db, tenant, err := s.store.scope(ctx)
	if err != nil {
		return nil, err
	}
	var users []models.User
	if err := db.Where("tenant_id = ?", tenant.ID).Order("created_at").Find(&users).Error; err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	return users, nil
}

func (s *UserService) GetByID(ctx context.Context, userID string) (*models.User, error) {
	db, tenant, err := s.store.scope(ctx)
	if err != nil {
		return nil, err
	}
	return findUser(db, tenant.ID, userID)
}

// GetUserRoles lists every tenant role flagged with whether the user holds it
func (s *UserService) GetUserRoles(ctx context.Context, userID string) ([]UserRole, error) {
	db, tenant, err := s.store.scope(ctx)
	if err != nil {
		return nil, err
	}
	user, err := findUser(db, tenant.ID, userID)
	if err != nil {
		return nil, err
	}

	var roles []models.Role
	if err := db.Where("tenant_id = ?", tenant.ID).Order("normalized_name").Find(&roles).Error; err != nil {
		return nil, fmt.Errorf("failed to list roles: %w", err)
	}
	held, err := rolesOfUser(db, tenant.ID, user.ID)
	if err != nil {
		return nil, err
	}
	holds := make(map[string]bool, len(held))
	for _, r := range held {
		holds[r.ID] = true
	}

	out := make([]UserRole, len(roles))
	for i, r := range roles {
		out[i] = UserRole{RoleID: r.ID, Name: r.Name, Description: r.Description, IsAssigned: holds[r.ID]}
	}
	return out, nil
}

// GetUserPermissions returns the distinct permissions the user would carry
// in a freshly issued token.
func (s *UserService) GetUserPermissions(ctx context.Context, userID string) ([]string, error) {
	db, tenant, err := s.store.scope(ctx)
	if err != nil {
		return nil, err
	}
	user, err := findUser(db, tenant.ID, userID)
	if err != nil {
		return nil, err
	}
	set, err := aggregateClaims(db, tenant, user)
	if err != nil {
		return nil, err
	}
	return set.Values(claims.TypePermission), nil
}

func (s *UserService) IsPermissionAssigned(ctx context.Context, userID, permission string) (bool, error) {
	perms, err := s.GetUserPermissions(ctx, userID)
	if err != nil {
		return false, err
	}
	for _, p := range perms {
		if p == permission {
			return true, nil
		}
	}
	return false, nil
}

func (s *UserService) IsEmailTaken(ctx context.Context, email string) (bool, error) {
	db, tenant, err := s.store.scope(ctx)
	if err != nil {
		return false, err
	}
	user, err := findUserByEmail(db, tenant.ID, email)
	if err != nil {
		return false, err
	}
	return user != nil, nil
}
