package authz

import (
	"testing"

	"github.com/pavitra93/go-multi-tenant-admin/shared/claims"
	"github.com/pavitra93/go-multi-tenant-admin/shared/metrics"
	"github.com/pavitra93/go-multi-tenant-admin/shared/permissions"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var readUsers = permissions.NameFor(permissions.FeatureUsers, permissions.ActionRead)

func TestEvaluate(t *testing.T) {
	set := claims.NewSet(
		claims.Claim{Type: claims.TypeRole, Value: readUsers},
		claims.Claim{Type: claims.TypePermission, Value: readUsers},
	)
	assert.True(t, Evaluate(set, readUsers))
	assert.False(t, Evaluate(set, permissions.NameFor(permissions.FeatureUsers, permissions.ActionDelete)))

	// a role claim with the same value does not grant anything
	roleOnly := claims.NewSet(claims.Claim{Type: claims.TypeRole, Value: readUsers})
	assert.False(t, Evaluate(roleOnly, readUsers))

	assert.False(t, Evaluate(nil, readUsers))
}

func TestEvaluateIsExactMatch(t *testing.T) {
	set := claims.NewSet(claims.Claim{Type: claims.TypePermission, Value: readUsers})
	assert.False(t, Evaluate(set, "permission.users.read"))
	assert.False(t, Evaluate(set, readUsers+" "))
}

func TestPolicyProviderBuildsPermissionPolicies(t *testing.T) {
	p := NewPolicyProvider(nil)
	for _, name := range []string{readUsers, "permission.Anything.Else", "PERMISSION.x"} {
		policy, err := p.Policy(name)
		require.NoError(t, err)
		assert.Equal(t, name, policy.Name())
	}

	set := claims.NewSet(claims.Claim{Type: claims.TypePermission, Value: readUsers})
	policy, err := p.Policy(readUsers)
	require.NoError(t, err)
	assert.True(t, policy.Allow(set))
}

func TestPolicyProviderFallsBackToRegistered(t *testing.T) {
	p := NewPolicyProvider(nil)

	_, err := p.Policy("TeachersOnly")
	assert.Error(t, err)

	p.Register(PolicyFunc{
		PolicyName: "TeachersOnly",
		Fn:         func(set *claims.Set) bool { return set.Has(claims.TypeRole, "Teachers") },
	})
	policy, err := p.Policy("TeachersOnly")
	require.NoError(t, err)
	assert.True(t, policy.Allow(claims.NewSet(claims.Claim{Type: claims.TypeRole, Value: "Teachers"})))

	auth, err := p.Policy(PolicyAuthenticated)
	require.NoError(t, err)
	assert.False(t, auth.Allow(claims.NewSet()))
	assert.True(t, auth.Allow(claims.NewSet(claims.Claim{Type: claims.TypeSubject, Value: "u1"})))
}

func TestAuthorizeRecordsDecisions(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())
	p := NewPolicyProvider(m)
	set := claims.NewSet(claims.Claim{Type: claims.TypePermission, Value: readUsers})

	ok, err := p.Authorize(set, readUsers)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = p.Authorize(set, permissions.NameFor(permissions.FeatureRoles, permissions.ActionRead))
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = p.Authorize(set, "unknown")
	assert.Error(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.AuthzDecisionsTotal.WithLabelValues("allowed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.AuthzDecisionsTotal.WithLabelValues("denied")))
}
