// Package producer defines the interface for publishing registration events (e.g. to Kafka).
package producer

import (
	"context"

	"parkncharge/registration/internal/telemetry/domain"
)

// Producer publishes registration events. Callers use it best-effort: log and ignore errors.
type Producer interface {
	// Emit sends a single event. Implementations may block briefly; call from a goroutine if needed.
	Emit(ctx context.Context, event *domain.Event) error
	// Close flushes and releases resources. Safe to call if already closed.
	Close() error
}
