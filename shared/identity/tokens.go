package identity

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/pavitra93/go-multi-tenant-admin/shared/apperrors"
	"github.com/pavitra93/go-multi-tenant-admin/shared/claims"
	"github.com/pavitra93/go-multi-tenant-admin/shared/metrics"
	"github.com/pavitra93/go-multi-tenant-admin/shared/models"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const refreshTokenBytes = 32

// Authentication failure messages. Unknown user and wrong password share one.
const (
	msgTenantInactive      = "Tenant subscription is not active. Contact Admin"
	msgAuthFailed          = "Authentication not successful"
	msgUserInactive        = "User not active. Contact Admin"
	msgSubscriptionExpired = "Tenant subscription has expired. Contact Admin"
	msgInvalidJWT          = "Invalid token provided. Failed to generate new token"
	msgRefreshUserMissing  = "Authorization failed"
	msgInvalidRefresh      = "Invalid token."
)

type TokenRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type RefreshTokenRequest struct {
	CurrentJWT          string `json:"current_jwt" binding:"required"`
	CurrentRefreshToken string `json:"current_refresh_token" binding:"required"`
}

type TokenResponse struct {
	JWT                    string    `json:"jwt"`
	RefreshToken           string    `json:"refresh_token"`
	RefreshTokenExpiryDate time.Time `json:"refresh_token_expiry_date"`
}

// SessionClaims is the JWT payload. Claims other than identity, tenant,
// role and permission are carried in Extra keyed by type.
type SessionClaims struct {
	Email       string              `json:"email"`
	Name        string              `json:"name"`
	Surname     string              `json:"surname"`
	Phone       string              `json:"phone"`
	Tenant      string              `json:"tenant"`
	Roles       []string            `json:"role"`
	Permissions []string            `json:"permission"`
	Extra       map[string][]string `json:"claims,omitempty"`
	jwt.RegisteredClaims
}

func newSessionClaims(set *claims.Set) *SessionClaims {
	sc := &SessionClaims{
		Email:       set.First(claims.TypeEmail),
		Name:        set.First(claims.TypeName),
		Surname:     set.First(claims.TypeSurname),
		Phone:       set.First(claims.TypeMobilePhone),
		Tenant:      set.First(claims.TypeTenant),
		Roles:       set.Values(claims.TypeRole),
		Permissions: set.Values(claims.TypePermission),
	}
	sc.Subject = set.First(claims.TypeSubject)

	for _, c := range set.All() {
		switch c.Type {
		case claims.TypeSubject, claims.TypeEmail, claims.TypeName, claims.TypeSurname,
			claims.TypeMobilePhone, claims.TypeTenant, claims.TypeRole, claims.TypePermission:
			continue
		}
		if sc.Extra == nil {
			sc.Extra = make(map[string][]string)
		}
		sc.Extra[c.Type] = append(sc.Extra[c.Type], c.Value)
	}
	return sc
}

// ClaimSet rebuilds the claim set carried by the token
func (sc *SessionClaims) ClaimSet() *claims.Set {
	set := claims.NewSet(
		claims.Claim{Type: claims.TypeSubject, Value: sc.Subject},
		claims.Claim{Type: claims.TypeEmail, Value: sc.Email},
		claims.Claim{Type: claims.TypeName, Value: sc.Name},
		claims.Claim{Type: claims.TypeSurname, Value: sc.Surname},
		claims.Claim{Type: claims.TypeTenant, Value: sc.Tenant},
		claims.Claim{Type: claims.TypeMobilePhone, Value: sc.Phone},
	)
	for _, r := range sc.Roles {
		set.Add(claims.TypeRole, r)
	}
	for claimType, values := range sc.Extra {
		for _, v := range values {
			set.Add(claimType, v)
		}
	}
	for _, p := range sc.Permissions {
		set.Add(claims.TypePermission, p)
	}
	return set
}

// TokenOptions configures signing and lifetimes
type TokenOptions struct {
	Secret          []byte
	TokenTTL        time.Duration
	RefreshTokenTTL time.Duration
}

// TokenService authenticates users and issues session and refresh tokens
type TokenService struct {
	store   *Store
	hasher  *PasswordHasher
	opts    TokenOptions
	metrics *metrics.Metrics
	now     func() time.Time
}

func NewTokenService(store *Store, hasher *PasswordHasher, opts TokenOptions, m *metrics.Metrics) *TokenService {
	return &TokenService{
		store:   store,
		hasher:  hasher,
		opts:    opts,
		metrics: m,
		now:     time.Now,
	}
}

// Login authenticates against the tenant in ctx. Checks run in a fixed
// order: tenant active, user exists, password, user active, subscription.
// Tenant status is read from the directory, not from the resolved copy in ctx.
func (s *TokenService) Login(ctx context.Context, req TokenRequest) (*TokenResponse, error) {
	db, tenant, err := s.store.currentScope(ctx)
	if err != nil {
		return nil, err
	}
	log := logrus.WithFields(logrus.Fields{"tenant_id": tenant.ID})

	if !tenant.IsActive {
		s.metrics.LoginAttempt(metrics.OutcomeTenantInactive)
		log.Warn("Login rejected: tenant inactive")
		return nil, apperrors.Unauthorized(msgTenantInactive)
	}

	user, err := s.findLoginUser(db, tenant.ID, req.Username)
	if err != nil {
		return nil, err
	}
	if user == nil {
		s.hasher.VerifyDummy(req.Password)
		s.metrics.LoginAttempt(metrics.OutcomeInvalid)
		return nil, apperrors.Unauthorized(msgAuthFailed)
	}

	ok, err := s.hasher.Verify(req.Password, user.PasswordHash)
	if err != nil || !ok {
		s.metrics.LoginAttempt(metrics.OutcomeInvalid)
		log.WithField("user_id", user.ID).Warn("Login rejected: bad credentials")
		return nil, apperrors.Unauthorized(msgAuthFailed)
	}

	if !user.IsActive {
		s.metrics.LoginAttempt(metrics.OutcomeUserInactive)
		return nil, apperrors.Unauthorized(msgUserInactive)
	}

	if tenant.SubscriptionExpired(s.now()) {
		s.metrics.LoginAttempt(metrics.OutcomeSubscriptionEnd)
		log.Warn("Login rejected: subscription expired")
		return nil, apperrors.Unauthorized(msgSubscriptionExpired)
	}

	resp, err := s.issue(db, tenant, user)
	if err != nil {
		return nil, err
	}
	s.metrics.LoginAttempt(metrics.OutcomeSuccess)
	s.metrics.TokenIssued(metrics.KindLogin)
	log.WithField("user_id", user.ID).Info("User logged in")
	return resp, nil
}

func (s *TokenService) findLoginUser(db *gorm.DB, tenantID, username string) (*models.User, error) {
	var users []models.User
	err := db.Where("tenant_id = ? AND (user_name = ? OR normalized_email = ?)", tenantID, username, models.NormalizeName(username)).
		Limit(1).
		Find(&users).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	if len(users) == 0 {
		return nil, nil
	}
	return &users[0], nil
}

// Issue mints a session token for user and rotates the refresh token
func (s *TokenService) Issue(ctx context.Context, user *models.User) (*TokenResponse, error) {
	db, tenant, err := s.store.scope(ctx)
	if err != nil {
		return nil, err
	}
	if user.TenantID != tenant.ID {
		return nil, apperrors.Unauthorized(msgAuthFailed)
	}
	return s.issue(db, tenant, user)
}

func (s *TokenService) issue(db *gorm.DB, tenant *models.Tenant, user *models.User) (*TokenResponse, error) {
	set, err := aggregateClaims(db, tenant, user)
	if err != nil {
		return nil, err
	}

	now := s.now()
	sc := newSessionClaims(set)
	sc.IssuedAt = jwt.NewNumericDate(now)
	sc.ExpiresAt = jwt.NewNumericDate(now.Add(s.opts.TokenTTL))
	sc.ID = uuid.NewString()

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, sc).SignedString(s.opts.Secret)
	if err != nil {
		return nil, fmt.Errorf("failed to sign token: %w", err)
	}

	refresh, err := newRefreshToken()
	if err != nil {
		return nil, err
	}
	expiry := now.Add(s.opts.RefreshTokenTTL).UTC()

	// overwriting the hash invalidates any previous refresh token
	err = db.Model(user).Updates(map[string]interface{}{
		"refresh_token_hash":   hashRefreshToken(refresh),
		"refresh_token_expiry": expiry,
	}).Error
	if err != nil {
		return nil, fmt.Errorf("failed to store refresh token: %w", err)
	}

	return &TokenResponse{
		JWT:                    signed,
		RefreshToken:           refresh,
		RefreshTokenExpiryDate: expiry,
	}, nil
}

// Refresh exchanges an expired (but authentic) session token and the
// current refresh token for a new pair.
func (s *TokenService) Refresh(ctx context.Context, req RefreshTokenRequest) (*TokenResponse, error) {
	db, tenant, err := s.store.currentScope(ctx)
	if err != nil {
		return nil, err
	}

	sc, err := s.parse(req.CurrentJWT, jwt.WithoutClaimsValidation())
	if err != nil || sc.Tenant != tenant.ID {
		return nil, apperrors.Unauthorized(msgInvalidJWT)
	}

	user, err := findUserByEmail(db, tenant.ID, sc.Email)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, apperrors.Unauthorized(msgRefreshUserMissing)
	}

	presented := hashRefreshToken(req.CurrentRefreshToken)
	if user.RefreshTokenHash == "" ||
		subtle.ConstantTimeCompare([]byte(presented), []byte(user.RefreshTokenHash)) != 1 ||
		user.RefreshTokenExpiry == nil ||
		user.RefreshTokenExpiry.Before(s.now()) {
		logrus.WithFields(logrus.Fields{
			"tenant_id": tenant.ID,
			"user_id":   user.ID,
		}).Warn("Refresh rejected: refresh token mismatch or expired")
		return nil, apperrors.Unauthorized(msgInvalidRefresh)
	}
	if !user.IsActive {
		return nil, apperrors.Unauthorized(msgUserInactive)
	}

	resp, err := s.issue(db, tenant, user)
	if err != nil {
		return nil, err
	}
	s.metrics.TokenIssued(metrics.KindRefresh)
	return resp, nil
}

// Validate fully verifies a session token, expiry included
func (s *TokenService) Validate(token string) (*SessionClaims, error) {
	sc, err := s.parse(token, jwt.WithExpirationRequired())
	if err != nil {
		return nil, apperrors.Unauthorized("Invalid or expired token.")
	}
	return sc, nil
}

func (s *TokenService) parse(token string, opts ...jwt.ParserOption) (*SessionClaims, error) {
	opts = append(opts,
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
	)
	sc := &SessionClaims{}
	parsed, err := jwt.ParseWithClaims(token, sc, func(t *jwt.Token) (interface{}, error) {
		return s.opts.Secret, nil
	}, opts...)
	if err != nil {
		return nil, err
	}
	if !parsed.Valid {
		return nil, fmt.Errorf("invalid token")
	}
	return sc, nil
}

func newRefreshToken() (string, error) {
	buf := make([]byte, refreshTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate refresh token: %w", err)
	}
	return base64.StdEncoding.EncodeToString(buf), nil
}

func hashRefreshToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
