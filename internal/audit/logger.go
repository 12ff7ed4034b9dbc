// Package audit records security-relevant events: logins, logouts, token
// refreshes, invalid tokens, denied access. Logging is strictly best-effort
// and never blocks or fails the operation that triggered it.
package audit

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"resqride/backend/internal/audit/domain"
	"resqride/backend/internal/telemetry"
)

// Recorder writes a single security event. Used by the auth, token, and
// policy code paths. Log is best-effort: failures are logged and do not
// affect the caller.
type Recorder interface {
	Log(ctx context.Context, event *domain.SecurityEvent)
}

// DurableSink persists critical security events. Persist failures must not
// propagate to the request path.
type DurableSink interface {
	Persist(ctx context.Context, event *domain.SecurityEvent) error
}

// Logger implements Recorder. Every event is written to the process log and
// streamed to the telemetry emitter; events whose type is critical are
// additionally persisted through the durable sink.
type Logger struct {
	sink    DurableSink
	emitter telemetry.EventEmitter

	mu     sync.Mutex
	counts map[domain.EventType]int
	total  int
}

// NewLogger returns a Logger writing critical events to sink and streaming all
// events to emitter. Both may be nil; the corresponding output is skipped.
func NewLogger(sink DurableSink, emitter telemetry.EventEmitter) *Logger {
	return &Logger{
		sink:    sink,
		emitter: emitter,
		counts:  make(map[domain.EventType]int),
	}
}

// Log records one security event. Never returns an error: sink and emitter
// failures are logged and swallowed so auditing can never fail a request.
func (l *Logger) Log(ctx context.Context, event *domain.SecurityEvent) {
	if event == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}

	l.mu.Lock()
	l.counts[event.Type]++
	l.total++
	l.mu.Unlock()

	details := ""
	if len(event.Details) > 0 {
		if raw, err := json.Marshal(event.Details); err == nil {
			details = string(raw)
		}
	}
	log.Printf("audit: %s user=%s session=%s ip=%s details=%s",
		event.Type, event.UserID, event.SessionID, event.IP, details)

	if l.sink != nil && event.Type.IsCritical() {
		if err := l.sink.Persist(ctx, event); err != nil {
			log.Printf("audit: failed to persist critical event %s: %v", event.Type, err)
		}
	}

	telemetry.EmitAsync(l.emitter, ctx, event)
}

// Count returns the total number of events logged since process start.
func (l *Logger) Count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.total
}

// Stats returns a copy of the per-type event counters, for operational dashboards.
func (l *Logger) Stats() map[domain.EventType]int {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make(map[domain.EventType]int, len(l.counts))
	for k, v := range l.counts {
		out[k] = v
	}
	return out
}
