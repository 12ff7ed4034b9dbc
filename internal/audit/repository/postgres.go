package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"resqride/backend/internal/audit/domain"
)

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a security event repository that uses the
// given db for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Persist writes the security event. Details are stored as JSONB.
func (r *PostgresRepository) Persist(ctx context.Context, e *domain.SecurityEvent) error {
	details := []byte("{}")
	if len(e.Details) > 0 {
		raw, err := json.Marshal(e.Details)
		if err != nil {
			return err
		}
		details = raw
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO security_events (id, user_id, session_id, event_type, ip, user_agent, details, created_at)
		VALUES ($1, $2, NULLIF($3, ''), $4, NULLIF($5, ''), NULLIF($6, ''), $7, $8)`,
		e.ID, e.UserID, e.SessionID, string(e.Type), e.IP, e.UserAgent, details, e.CreatedAt,
	)
	return err
}

// GetByID returns the security event for id, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.SecurityEvent, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, user_id, COALESCE(session_id, ''), event_type, COALESCE(ip, ''), COALESCE(user_agent, ''), details, created_at
		FROM security_events WHERE id = $1`, id)
	e, err := scanEvent(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return e, nil
}

// ListByUser returns security events for the given user, newest first,
// paginated by limit and offset.
func (r *PostgresRepository) ListByUser(ctx context.Context, userID string, limit, offset int32) ([]*domain.SecurityEvent, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, user_id, COALESCE(session_id, ''), event_type, COALESCE(ip, ''), COALESCE(user_agent, ''), details, created_at
		FROM security_events WHERE user_id = $1
		ORDER BY created_at DESC LIMIT $2 OFFSET $3`, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*domain.SecurityEvent
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEvent(row rowScanner) (*domain.SecurityEvent, error) {
	var e domain.SecurityEvent
	var eventType string
	var details []byte
	if err := row.Scan(&e.ID, &e.UserID, &e.SessionID, &eventType, &e.IP, &e.UserAgent, &details, &e.CreatedAt); err != nil {
		return nil, err
	}
	e.Type = domain.EventType(eventType)
	if len(details) > 0 {
		_ = json.Unmarshal(details, &e.Details)
	}
	return &e, nil
}
