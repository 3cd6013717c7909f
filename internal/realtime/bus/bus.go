package bus

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Event kinds fanned out across instances. Catalog changes drive snapshot
// invalidation in every policy reader; decision and profile events exist for
// presentation layers.
const (
	EventDecisionMade   = "decision_made"
	EventCatalogChanged = "catalog_changed"
	EventProfileChanged = "profile_changed"
	EventJobUpdated     = "job_updated"
)

type Event struct {
	Kind     string         `json:"kind"`
	UserID   *uuid.UUID     `json:"user_id,omitempty"`
	EntityID *uuid.UUID     `json:"entity_id,omitempty"`
	At       time.Time      `json:"at"`
	Data     map[string]any `json:"data,omitempty"`
}

type Bus interface {
	Publish(ctx context.Context, ev Event) error
	StartForwarder(ctx context.Context, onEvent func(ev Event)) error
	Close() error
}

// Deduper is the redis fast-path in front of the events table's unique
// constraint. Both sides must agree: the constraint stays authoritative, the
// deduper only short-circuits the common case.
type Deduper interface {
	Seen(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Heartbeat(ctx context.Context, key string, ttl time.Duration) error
}
