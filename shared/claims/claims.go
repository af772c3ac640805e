package claims

import "context"

// Claim types carried in session tokens
const (
	TypeSubject     = "Subject"
	TypeEmail       = "Email"
	TypeName        = "Name"
	TypeSurname     = "Surname"
	TypeMobilePhone = "MobilePhone"
	TypeTenant      = "Tenant"
	TypeRole        = "Role"
	TypePermission  = "Permission"
)

// Claim is a typed key/value fact about a principal
type Claim struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

// Set is an insertion-ordered collection of distinct claims
type Set struct {
	items []Claim
	index map[Claim]struct{}
}

func NewSet(initial ...Claim) *Set {
	s := &Set{index: make(map[Claim]struct{})}
	s.AddClaims(initial...)
	return s
}

// Add inserts a claim and reports whether it was new
func (s *Set) Add(claimType, value string) bool {
	c := Claim{Type: claimType, Value: value}
	if _, ok := s.index[c]; ok {
		return false
	}
	s.index[c] = struct{}{}
	s.items = append(s.items, c)
	return true
}

func (s *Set) AddClaims(cs ...Claim) {
	for _, c := range cs {
		s.Add(c.Type, c.Value)
	}
}

func (s *Set) Has(claimType, value string) bool {
	if s == nil {
		return false
	}
	_, ok := s.index[Claim{Type: claimType, Value: value}]
	return ok
}

// Values returns every value of the given type in insertion order
func (s *Set) Values(claimType string) []string {
	if s == nil {
		return nil
	}
	var out []string
	for _, c := range s.items {
		if c.Type == claimType {
			out = append(out, c.Value)
		}
	}
	return out
}

// First returns the first value of the given type, or ""
func (s *Set) First(claimType string) string {
	if s == nil {
		return ""
	}
	for _, c := range s.items {
		if c.Type == claimType {
			return c.Value
		}
	}
	return ""
}

func (s *Set) All() []Claim {
	if s == nil {
		return nil
	}
	out := make([]Claim, len(s.items))
	copy(out, s.items)
	return out
}

func (s *Set) Len() int {
	if s == nil {
		return 0
	}
	return len(s.items)
}

// Equal compares two sets ignoring order
func (s *Set) Equal(other *Set) bool {
	if s.Len() != other.Len() {
		return false
	}
	for _, c := range s.All() {
		if !other.Has(c.Type, c.Value) {
			return false
		}
	}
	return true
}

type ctxKey struct{}

// WithClaims attaches the authenticated principal's claims to ctx
func WithClaims(ctx context.Context, s *Set) context.Context {
	return context.WithValue(ctx, ctxKey{}, s)
}

// FromContext returns the claims attached by WithClaims
func FromContext(ctx context.Context) (*Set, bool) {
	s, ok := ctx.Value(ctxKey{}).(*Set)
	return s, ok && s != nil
}
