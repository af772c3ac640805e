package identity

import (
	"strings"
	"testing"

	"github.com/pavitra93/go-multi-tenant-admin/shared/apperrors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashAndVerify(t *testing.T) {
	h := fastHasher()

	encoded, err := h.Hash("correct horse")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(encoded, "$argon2id$v=19$m=1024,t=1,p=1$"))

	ok, err := h.Verify("correct horse", encoded)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = h.Verify("wrong horse", encoded)
	require.NoError(t, err)
	assert.False(t, ok)

	other, err := h.Hash("correct horse")
	require.NoError(t, err)
	assert.NotEqual(t, encoded, other, "salts must differ")
}

func TestVerifyUsesParametersFromHash(t *testing.T) {
	old := &PasswordHasher{Time: 2, Memory: 2048, Threads: 1}
	encoded, err := old.Hash("secret-pass")
	require.NoError(t, err)

	ok, err := fastHasher().Verify("secret-pass", encoded)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestVerifyRejectsMalformedHash(t *testing.T) {
	h := fastHasher()
	for _, bad := range []string{"", "plain", "$bcrypt$v=19$m=1,t=1,p=1$c2FsdA$aGFzaA", "$argon2id$v=19$m=x$a$b"} {
		_, err := h.Verify("pw", bad)
		assert.Error(t, err, bad)
	}
}

func TestValidatePolicy(t *testing.T) {
	h := fastHasher()
	err := h.Validate("short")
	assert.True(t, apperrors.IsIdentity(err))
	assert.NoError(t, h.Validate("12345678"))

	assert.NotPanics(t, func() { h.VerifyDummy("anything") })
}
