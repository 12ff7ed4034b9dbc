package repository

import (
	"context"

	"resqride/backend/internal/user/domain"
)

// Repository defines persistence for users.
type Repository interface {
	GetByID(ctx context.Context, id string) (*domain.User, error)
	// GetByEmailAndRole returns the non-deleted user with the given email and
	// role, or nil if absent.
	GetByEmailAndRole(ctx context.Context, email string, role domain.Role) (*domain.User, error)
	// GetByProviderSubjectOrEmail returns the non-deleted user matched by
	// external provider subject id OR email, or nil. Used by external-identity
	// reconciliation.
	GetByProviderSubjectOrEmail(ctx context.Context, subject, email string) (*domain.User, error)
	// ExistsByEmailOrPhone reports whether a non-deleted user exists with the
	// given email or the given (phone, country code) pair.
	ExistsByEmailOrPhone(ctx context.Context, email, phone, countryCode string) (bool, error)
	Create(ctx context.Context, u *domain.User) error
	Update(ctx context.Context, u *domain.User) error
	// SetPresence updates the online/socket presence flags.
	SetPresence(ctx context.Context, id string, online, socketConnected bool) error
}
