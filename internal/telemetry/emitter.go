package telemetry

import (
	"context"

	"parkncharge/registration/internal/telemetry/domain"
)

// EventEmitter publishes registration events. Best-effort; callers log and ignore errors.
type EventEmitter interface {
	Emit(ctx context.Context, event *domain.Event) error
}
