package port

import "context"

// EventListenerPort listens for queue events and drives the business logic.
type EventListenerPort interface {
	Start(ctx context.Context) error
	// Close stops the listener after in-flight work is finished.
	Close() error
}
