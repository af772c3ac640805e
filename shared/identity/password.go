package identity

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/pavitra93/go-multi-tenant-admin/shared/apperrors"
	"golang.org/x/crypto/argon2"
)

// MinPasswordLength is the only password rule enforced
const MinPasswordLength = 8

const (
	argonKeyLen  = 32
	argonSaltLen = 16
)

// PasswordHasher hashes passwords with Argon2id into PHC strings:
// $argon2id$v=19$m=65536,t=3,p=1$<salt>$<hash>
type PasswordHasher struct {
	Time    uint32
	Memory  uint32
	Threads uint8

	dummyOnce sync.Once
	dummy     string
}

// NewPasswordHasher returns a hasher with the OWASP recommended parameters
func NewPasswordHasher() *PasswordHasher {
	return &PasswordHasher{Time: 3, Memory: 64 * 1024, Threads: 1}
}

// Validate applies the password policy
func (h *PasswordHasher) Validate(password string) error {
	if utf8.RuneCountInString(password) < MinPasswordLength {
		return apperrors.Identity(fmt.Sprintf("Passwords must be at least %d characters.", MinPasswordLength))
	}
	return nil
}

func (h *PasswordHasher) Hash(password string) (string, error) {
	salt := make([]byte, argonSaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generating salt: %w", err)
	}

	hash := argon2.IDKey([]byte(password), salt, h.Time, h.Memory, h.Threads, argonKeyLen)

	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version,
		h.Memory, h.Time, h.Threads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(hash),
	), nil
}

// Verify checks password against an encoded hash. Parameters are read from
// the hash, so hashes made with older settings keep verifying.
func (h *PasswordHasher) Verify(password, encoded string) (bool, error) {
	salt, hash, params, err := decodePHC(encoded)
	if err != nil {
		return false, err
	}

	candidate := argon2.IDKey([]byte(password), salt, params.time, params.memory, params.threads, uint32(len(hash)))

	return subtle.ConstantTimeCompare(hash, candidate) == 1, nil
}

// VerifyDummy burns the same work as a real verification. Used when the
// user does not exist so response timing does not reveal it.
func (h *PasswordHasher) VerifyDummy(password string) {
	h.dummyOnce.Do(func() {
		h.dummy, _ = h.Hash("not-a-real-password")
	})
	_, _ = h.Verify(password, h.dummy)
}

type argonParams struct {
	time    uint32
	memory  uint32
	threads uint8
}

func decodePHC(encoded string) (salt, hash []byte, params argonParams, err error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 {
		return nil, nil, params, fmt.Errorf("invalid PHC hash format")
	}
	if parts[1] != "argon2id" {
		return nil, nil, params, fmt.Errorf("unsupported algorithm: %s", parts[1])
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil {
		return nil, nil, params, fmt.Errorf("parsing version: %w", err)
	}
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &params.memory, &params.time, &params.threads); err != nil {
		return nil, nil, params, fmt.Errorf("parsing parameters: %w", err)
	}

	salt, err = base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return nil, nil, params, fmt.Errorf("decoding salt: %w", err)
	}
	hash, err = base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return nil, nil, params, fmt.Errorf("decoding hash: %w", err)
	}
	return salt, hash, params, nil
}
