package events

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Type names a domain event
type Type string

const (
	TenantCreated             Type = "tenant.created"
	TenantActivated           Type = "tenant.activated"
	TenantDeactivated         Type = "tenant.deactivated"
	TenantSubscriptionUpdated Type = "tenant.subscription_updated"
	TenantSubscriptionExpired Type = "tenant.subscription_expired"
	RolePermissionsUpdated    Type = "role.permissions_updated"
	UserRolesAssigned         Type = "user.roles_assigned"
	UserDeleted               Type = "user.deleted"
)

// Event is an identity or tenancy change announced to downstream consumers
type Event struct {
	ID         string                 `json:"id"`
	Type       Type                   `json:"type"`
	TenantID   string                 `json:"tenant_id"`
	OccurredAt time.Time              `json:"occurred_at"`
	Data       map[string]interface{} `json:"data,omitempty"`
}

// New stamps an event with an id and the current time
func New(eventType Type, tenantID string, data map[string]interface{}) Event {
	return Event{
		ID:         uuid.NewString(),
		Type:       eventType,
		TenantID:   tenantID,
		OccurredAt: time.Now().UTC(),
		Data:       data,
	}
}

// Publisher announces events without blocking the caller
type Publisher interface {
	Publish(ctx context.Context, event Event)
}

// NopPublisher discards every event
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) {}

// Recorder keeps published events in memory
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) Publish(_ context.Context, event Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

// Events returns a copy of everything published so far
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// OfType returns the recorded events of one type
func (r *Recorder) OfType(eventType Type) []Event {
	var out []Event
	for _, e := range r.Events() {
		if e.Type == eventType {
			out = append(out, e)
		}
	}
	return out
}
