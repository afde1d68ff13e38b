package events

import (
	"context"
)

// Publisher defines the interface for publishing domain events
type Publisher interface {
	// Publish publishes an event to the given exchange, routed by the
	// event's routing key
	Publish(ctx context.Context, exchange string, event *Event, headers Headers) error

	// IsHealthy reports whether the broker connection is usable
	IsHealthy() bool

	// Close closes the publisher connection
	Close() error
}
