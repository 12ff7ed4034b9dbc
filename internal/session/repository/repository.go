package repository

import (
	"context"
	"time"

	"resqride/backend/internal/session/domain"
)

// Repository defines persistence for sessions.
type Repository interface {
	GetByID(ctx context.Context, id string) (*domain.Session, error)
	ListByUser(ctx context.Context, userID string) ([]*domain.Session, error)
	Create(ctx context.Context, s *domain.Session) error
	// UpdateRefreshToken rotates the session's refresh token binding and
	// bumps updated_at.
	UpdateRefreshToken(ctx context.Context, sessionID, jti, refreshTokenHash string) error
	DeleteByID(ctx context.Context, id string) error
	// DeleteByUser removes every session for the user and returns how many
	// were deleted.
	DeleteByUser(ctx context.Context, userID string) (int, error)
	// DeleteIdleSince removes sessions not updated since cutoff and returns
	// how many were deleted. Implementations must not hold locks for a full
	// table scan.
	DeleteIdleSince(ctx context.Context, cutoff time.Time) (int, error)
}
