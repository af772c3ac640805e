package permissions

import "strings"

// Prefix starts every canonical permission string
const Prefix = "Permission"

// Features
const (
	FeatureTenants    = "Tenants"
	FeatureUsers      = "Users"
	FeatureRoles      = "Roles"
	FeatureUserRoles  = "UserRoles"
	FeatureRoleClaims = "RoleClaims"
	FeatureSchools    = "Schools"
	FeatureTokens     = "Tokens"
)

// Actions
const (
	ActionCreate              = "Create"
	ActionRead                = "Read"
	ActionUpdate              = "Update"
	ActionDelete              = "Delete"
	ActionUpgradeSubscription = "UpgradeSubscription"
	ActionRefreshToken        = "RefreshToken"
)

// Permission is one feature × action entry of the catalog
type Permission struct {
	Feature     string
	Action      string
	Description string
	Group       string
	IsBasic     bool
	IsRoot      bool
}

// Name returns the canonical permission string
func (p Permission) Name() string {
	return NameFor(p.Feature, p.Action)
}

// NameFor builds the canonical permission string for a feature and action.
// Every permission string in the system must come from here.
func NameFor(feature, action string) string {
	return Prefix + "." + feature + "." + action
}

var all = []Permission{
	{Feature: FeatureTenants, Action: ActionCreate, Description: "Create Tenants", Group: "Tenancy", IsRoot: true},
	{Feature: FeatureTenants, Action: ActionRead, Description: "Read Tenants", Group: "Tenancy", IsRoot: true},
	{Feature: FeatureTenants, Action: ActionUpdate, Description: "Update Tenants", Group: "Tenancy", IsRoot: true},
	{Feature: FeatureTenants, Action: ActionUpgradeSubscription, Description: "Upgrade Tenant's Subscription", Group: "Tenancy", IsRoot: true},

	{Feature: FeatureUsers, Action: ActionCreate, Description: "Create Users", Group: "SystemAccess"},
	{Feature: FeatureUsers, Action: ActionUpdate, Description: "Update Users", Group: "SystemAccess"},
	{Feature: FeatureUsers, Action: ActionDelete, Description: "Delete Users", Group: "SystemAccess"},
	{Feature: FeatureUsers, Action: ActionRead, Description: "Read Users", Group: "SystemAccess"},

	{Feature: FeatureUserRoles, Action: ActionRead, Description: "Read User Roles", Group: "SystemAccess"},
	{Feature: FeatureUserRoles, Action: ActionUpdate, Description: "Update User Roles", Group: "SystemAccess"},

	{Feature: FeatureRoles, Action: ActionCreate, Description: "Create Roles", Group: "SystemAccess"},
	{Feature: FeatureRoles, Action: ActionRead, Description: "Read Roles", Group: "SystemAccess"},
	{Feature: FeatureRoles, Action: ActionUpdate, Description: "Update Roles", Group: "SystemAccess"},
	{Feature: FeatureRoles, Action: ActionDelete, Description: "Delete Roles", Group: "SystemAccess"},

	{Feature: FeatureRoleClaims, Action: ActionRead, Description: "Read Role Claims/Permissions", Group: "SystemAccess"},
	{Feature: FeatureRoleClaims, Action: ActionUpdate, Description: "Update Role Claims/Permissions", Group: "SystemAccess"},

	{Feature: FeatureTokens, Action: ActionRefreshToken, Description: "Generate Refresh Token", Group: "SystemAccess", IsBasic: true},

	{Feature: FeatureSchools, Action: ActionRead, Description: "Read Schools", Group: "Academics", IsBasic: true},
	{Feature: FeatureSchools, Action: ActionCreate, Description: "Create Schools", Group: "Academics"},
	{Feature: FeatureSchools, Action: ActionUpdate, Description: "Update Schools", Group: "Academics"},
	{Feature: FeatureSchools, Action: ActionDelete, Description: "Delete Schools", Group: "Academics"},
}

var byName = func() map[string]Permission {
	m := make(map[string]Permission, len(all))
	for _, p := range all {
		m[p.Name()] = p
	}
	return m
}()

func filter(keep func(Permission) bool) []Permission {
	out := make([]Permission, 0, len(all))
	for _, p := range all {
		if keep(p) {
			out = append(out, p)
		}
	}
	return out
}

// All returns every catalog entry
func All() []Permission { return filter(func(Permission) bool { return true }) }

// Root returns the permissions reserved for the root tenant's Admin role
func Root() []Permission { return filter(func(p Permission) bool { return p.IsRoot }) }

// Admin returns the permissions every tenant's Admin role receives
func Admin() []Permission { return filter(func(p Permission) bool { return !p.IsRoot }) }

// Basic returns the permissions of the Basic role
func Basic() []Permission { return filter(func(p Permission) bool { return p.IsBasic }) }

// Lookup finds the catalog entry for a canonical permission string
func Lookup(name string) (Permission, bool) {
	p, ok := byName[name]
	return p, ok
}

func IsKnown(name string) bool {
	_, ok := byName[name]
	return ok
}

// IsTenantManagement reports whether name belongs to the tenant-management
// namespace, which only root tenant roles may hold.
func IsTenantManagement(name string) bool {
	return strings.HasPrefix(name, Prefix+"."+FeatureTenants+".")
}

// Names maps a permission list to canonical strings
func Names(perms []Permission) []string {
	names := make([]string, len(perms))
	for i, p := range perms {
		names[i] = p.Name()
	}
	return names
}
