package authz

import (
	"fmt"
	"strings"
	"sync"

	"github.com/pavitra93/go-multi-tenant-admin/shared/claims"
	"github.com/pavitra93/go-multi-tenant-admin/shared/metrics"
)

// PolicyAuthenticated admits any caller with a validated token
const PolicyAuthenticated = "Authenticated"

// permissionPrefix marks policy names that are permission strings themselves
const permissionPrefix = "permission"

// Evaluate reports whether set grants perm
func Evaluate(set *claims.Set, perm string) bool {
	return set.Has(claims.TypePermission, perm)
}

// Policy decides whether a claim set may proceed
type Policy interface {
	Name() string
	Allow(set *claims.Set) bool
}

// PolicyFunc adapts a function to Policy
type PolicyFunc struct {
	PolicyName string
	Fn         func(set *claims.Set) bool
}

func (p PolicyFunc) Name() string               { return p.PolicyName }
func (p PolicyFunc) Allow(set *claims.Set) bool { return p.Fn(set) }

// PermissionPolicy requires a single permission claim
type PermissionPolicy string

func (p PermissionPolicy) Name() string { return string(p) }

func (p PermissionPolicy) Allow(set *claims.Set) bool {
	return Evaluate(set, string(p))
}

// PolicyProvider resolves policy names. Names starting with "Permission"
// (any case) are built on demand; everything else must be registered.
type PolicyProvider struct {
	mu       sync.RWMutex
	policies map[string]Policy
	metrics  *metrics.Metrics
}

func NewPolicyProvider(m *metrics.Metrics) *PolicyProvider {
	p := &PolicyProvider{
		policies: make(map[string]Policy),
		metrics:  m,
	}
	p.Register(PolicyFunc{
		PolicyName: PolicyAuthenticated,
		Fn:         func(set *claims.Set) bool { return set.Len() > 0 },
	})
	return p
}

// Register adds or replaces a static policy
func (p *PolicyProvider) Register(policy Policy) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.policies[policy.Name()] = policy
}

// Policy returns the policy for name
func (p *PolicyProvider) Policy(name string) (Policy, error) {
	if strings.HasPrefix(strings.ToLower(name), permissionPrefix) {
		return PermissionPolicy(name), nil
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	policy, ok := p.policies[name]
	if !ok {
		return nil, fmt.Errorf("policy %q is not registered", name)
	}
	return policy, nil
}

// Authorize resolves name and evaluates it against set
func (p *PolicyProvider) Authorize(set *claims.Set, name string) (bool, error) {
	policy, err := p.Policy(name)
	if err != nil {
		return false, err
	}
	allowed := policy.Allow(set)
	p.metrics.AuthzDecision(allowed)
	return allowed, nil
}
