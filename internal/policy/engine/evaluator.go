package engine

import (
	"context"

	userdomain "resqride/backend/internal/user/domain"
)

// AccessResult holds the result of an admin resource-access evaluation.
type AccessResult struct {
	Allowed bool
}

// Evaluator decides whether an admin without explicit grants may touch the
// requested resources. Used as the fallback path of the admin capability
// check when the caller carries no granted-permissions list.
type Evaluator interface {
	EvaluateAdminAccess(ctx context.Context, caller *userdomain.User, requested []userdomain.Permission) (AccessResult, error)
}
