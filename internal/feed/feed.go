// Package feed is the change-feed port: row-level insert/update events
// published by the repositories and consumed by live subscribers. Delivery
// is at-least-once with no ordering guarantee across subscriptions, so
// consumers must deduplicate by event id.
package feed

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
)

// Collections whose mutations are published to the feed.
const (
	CollectionMessages = "messages"
	CollectionHires    = "hires"
)

// Event operations.
const (
	OpInsert = "insert"
	OpUpdate = "update"
)

// Event is one row-level mutation. Record holds the affected row's new
// state as JSON.
type Event struct {
	ID         string          `json:"id"`
	Collection string          `json:"collection"`
	Op         string          `json:"op"`
	Record     json.RawMessage `json:"record"`
}

// NewEvent builds an Event with a fresh id and the record marshaled as JSON.
func NewEvent(collection, op string, record any) (Event, error) {
	raw, err := json.Marshal(record)
	if err != nil {
		return Event{}, err
	}
	return Event{
		ID:         uuid.New().String(),
		Collection: collection,
		Op:         op,
		Record:     raw,
	}, nil
}

// Handler receives events for one subscription. Handlers must be
// replay-tolerant: the same event may be delivered more than once.
type Handler func(Event)

// Subscription is a live event stream for one collection.
type Subscription interface {
	Close() error
}

// Broker fans row-level events out to any number of live subscribers.
type Broker interface {
	Publish(ctx context.Context, ev Event) error
	Subscribe(ctx context.Context, collection string, h Handler) (Subscription, error)
	Close() error
}
