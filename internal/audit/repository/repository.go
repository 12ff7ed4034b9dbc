package repository

import (
	"context"

	"resqride/backend/internal/audit/domain"
)

// Repository defines durable storage for critical security events.
type Repository interface {
	Persist(ctx context.Context, e *domain.SecurityEvent) error
	GetByID(ctx context.Context, id string) (*domain.SecurityEvent, error)
	ListByUser(ctx context.Context, userID string, limit, offset int32) ([]*domain.SecurityEvent, error)
}
