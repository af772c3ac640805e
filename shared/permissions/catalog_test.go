package permissions

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNameFor(t *testing.T) {
	assert.Equal(t, "Permission.Users.Create", NameFor(FeatureUsers, ActionCreate))
	assert.Equal(t, "Permission.Tenants.UpgradeSubscription", NameFor(FeatureTenants, ActionUpgradeSubscription))
}

func TestNamesAreUnique(t *testing.T) {
	seen := make(map[string]bool)
	for _, p := range All() {
		assert.False(t, seen[p.Name()], "duplicate permission %s", p.Name())
		seen[p.Name()] = true
	}
}

func TestSubsetsPartitionRootAndAdmin(t *testing.T) {
	root := Names(Root())
	admin := Names(Admin())

	assert.Len(t, append(root, admin...), len(All()))
	for _, name := range root {
		assert.True(t, IsTenantManagement(name), "%s should be tenant management", name)
		assert.NotContains(t, admin, name)
	}
	for _, name := range admin {
		assert.False(t, IsTenantManagement(name), "%s should not be tenant management", name)
	}
}

func TestBasicSubset(t *testing.T) {
	basic := Names(Basic())

	assert.ElementsMatch(t, []string{
		"Permission.Schools.Read",
		"Permission.Tokens.RefreshToken",
	}, basic)
	for _, name := range basic {
		assert.Contains(t, Names(Admin()), name)
	}
}

func TestLookup(t *testing.T) {
	p, ok := Lookup("Permission.Roles.Delete")
	require.True(t, ok)
	assert.Equal(t, "Delete Roles", p.Description)
	assert.Equal(t, "SystemAccess", p.Group)

	assert.False(t, IsKnown("Permission.Roles.Explode"))
	assert.False(t, IsKnown("permission.roles.delete"))
}

func TestSubsetsAreCopies(t *testing.T) {
	a := All()
	a[0].Description = "mutated"
	assert.NotEqual(t, "mutated", All()[0].Description)
}
