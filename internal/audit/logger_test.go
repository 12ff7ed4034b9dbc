package audit

import (
	"context"
	"errors"
	"sync"
	"testing"

	"resqride/backend/internal/audit/domain"
)

type memSink struct {
	mu     sync.Mutex
	events []*domain.SecurityEvent
	err    error
}

func (s *memSink) Persist(ctx context.Context, e *domain.SecurityEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.events = append(s.events, e)
	return nil
}

func (s *memSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events)
}

func TestLogger_CriticalPersisted(t *testing.T) {
	sink := &memSink{}
	l := NewLogger(sink, nil)

	l.Log(context.Background(), &domain.SecurityEvent{UserID: "u1", Type: domain.EventInvalidToken})
	l.Log(context.Background(), &domain.SecurityEvent{UserID: "u1", Type: domain.EventSessionExpired})
	l.Log(context.Background(), &domain.SecurityEvent{UserID: "u1", Type: domain.EventSuspiciousActivity})

	if sink.count() != 3 {
		t.Errorf("critical events persisted: got %d want 3", sink.count())
	}
}

func TestLogger_NonCriticalNotPersisted(t *testing.T) {
	sink := &memSink{}
	l := NewLogger(sink, nil)

	l.Log(context.Background(), &domain.SecurityEvent{UserID: "u1", Type: domain.EventLogin})
	l.Log(context.Background(), &domain.SecurityEvent{UserID: "u1", Type: domain.EventLogout})
	l.Log(context.Background(), &domain.SecurityEvent{UserID: "u1", Type: domain.EventTokenRefresh})

	if sink.count() != 0 {
		t.Errorf("non-critical events persisted: got %d want 0", sink.count())
	}
	if l.Count() != 3 {
		t.Errorf("Count: got %d want 3", l.Count())
	}
}

func TestLogger_SinkFailureSwallowed(t *testing.T) {
	sink := &memSink{err: errors.New("db down")}
	l := NewLogger(sink, nil)

	// Must not panic or propagate; Log has no error return by design.
	l.Log(context.Background(), &domain.SecurityEvent{UserID: "u1", Type: domain.EventInvalidToken})

	if l.Count() != 1 {
		t.Errorf("Count after sink failure: got %d want 1", l.Count())
	}
}

func TestLogger_AssignsIDAndTimestamp(t *testing.T) {
	sink := &memSink{}
	l := NewLogger(sink, nil)

	e := &domain.SecurityEvent{UserID: "u1", Type: domain.EventInvalidToken}
	l.Log(context.Background(), e)

	if e.ID == "" {
		t.Error("event ID not assigned")
	}
	if e.CreatedAt.IsZero() {
		t.Error("event timestamp not assigned")
	}
}

func TestLogger_Stats(t *testing.T) {
	l := NewLogger(nil, nil)
	l.Log(context.Background(), &domain.SecurityEvent{Type: domain.EventLogin})
	l.Log(context.Background(), &domain.SecurityEvent{Type: domain.EventLogin})
	l.Log(context.Background(), &domain.SecurityEvent{Type: domain.EventLogout})

	stats := l.Stats()
	if stats[domain.EventLogin] != 2 || stats[domain.EventLogout] != 1 {
		t.Errorf("Stats: got %v", stats)
	}
	// Returned map is a copy.
	stats[domain.EventLogin] = 99
	if l.Stats()[domain.EventLogin] != 2 {
		t.Error("Stats returned live map")
	}
}

func TestEventType_IsCritical(t *testing.T) {
	critical := []domain.EventType{domain.EventSuspiciousActivity, domain.EventInvalidToken, domain.EventSessionExpired}
	for _, et := range critical {
		if !et.IsCritical() {
			t.Errorf("%s: want critical", et)
		}
	}
	for _, et := range []domain.EventType{domain.EventLogin, domain.EventLogout, domain.EventTokenRefresh, domain.EventMassTokenRevocation} {
		if et.IsCritical() {
			t.Errorf("%s: want non-critical", et)
		}
	}
}
