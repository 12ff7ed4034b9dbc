// Package telemetry streams security events to external sinks (OTel logs,
// Kafka). Emission is best-effort; callers log and ignore errors.
package telemetry

import (
	"context"

	"resqride/backend/internal/audit/domain"
)

// EventEmitter emits security events to an external sink.
type EventEmitter interface {
	Emit(ctx context.Context, event *domain.SecurityEvent) error
}

// MultiEmitter fans one event out to several emitters. The first error is
// returned after all emitters have been attempted.
type MultiEmitter []EventEmitter

// Emit sends the event to every emitter, attempting all even when one fails.
func (m MultiEmitter) Emit(ctx context.Context, event *domain.SecurityEvent) error {
	var firstErr error
	for _, e := range m {
		if e == nil {
			continue
		}
		if err := e.Emit(ctx, event); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
