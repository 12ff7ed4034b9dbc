// Package rbac holds the authorization checks run on guarded routes: a
// role/approval gate and an admin capability gate. Route requirements are
// explicit configuration structs passed in by the transport layer; nothing
// is derived from annotations or reflection.
package rbac

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"resqride/backend/internal/audit"
	auditdomain "resqride/backend/internal/audit/domain"
	"resqride/backend/internal/policy/engine"
	userdomain "resqride/backend/internal/user/domain"
)

// ErrForbidden is returned on every authorization denial. The reason is
// recorded in the audit log, not in the error.
var ErrForbidden = errors.New("forbidden")

// Caller is the authenticated principal a request acts as.
type Caller struct {
	User      *userdomain.User
	SessionID string
	IP        string
	UserAgent string
}

// RoleRequirement is one route's role gate. An empty role set allows every
// authenticated caller.
type RoleRequirement struct {
	Roles []userdomain.Role
	// RequireApproval additionally gates driver callers on an approved
	// application.
	RequireApproval bool
	Endpoint        string
	Method          string
}

// AdminRequirement is one route's admin capability gate.
type AdminRequirement struct {
	Required []userdomain.Permission
	Endpoint string
	Method   string
}

// Guard evaluates route requirements against the caller and records every
// denial.
type Guard struct {
	audit  audit.Recorder
	policy engine.Evaluator
}

// NewGuard returns a Guard that falls back to the given policy evaluator for
// admins without explicit grants.
func NewGuard(auditLog audit.Recorder, policy engine.Evaluator) *Guard {
	return &Guard{audit: auditLog, policy: policy}
}

// RequireRole allows the caller iff its role is in the required set (or the
// set is empty), and, for driver callers on approval-gated routes, its
// application is approved.
func (g *Guard) RequireRole(ctx context.Context, caller Caller, req RoleRequirement) error {
	if caller.User == nil {
		return ErrForbidden
	}
	if len(req.Roles) > 0 && !roleIn(caller.User.Role, req.Roles) {
		g.denyRole(ctx, caller, req, "role_not_allowed")
		return ErrForbidden
	}
	if req.RequireApproval && caller.User.Role == userdomain.RoleDriver && caller.User.ApprovalStatus != userdomain.ApprovalApproved {
		g.denyRole(ctx, caller, req, "driver_not_approved")
		return ErrForbidden
	}
	return nil
}

// RequireAdmin allows admin callers whose grants cover every required
// (resource, action) pair. Super-admins bypass capability checks entirely.
// Callers without a grants list fall back to the resource-access policy.
func (g *Guard) RequireAdmin(ctx context.Context, caller Caller, req AdminRequirement) error {
	if caller.User == nil || caller.User.Role != userdomain.RoleAdmin {
		g.denyAdmin(ctx, caller, req, "not_admin")
		return ErrForbidden
	}
	if caller.User.SuperAdmin || len(req.Required) == 0 {
		return nil
	}
	if len(caller.User.Permissions) > 0 {
		for _, need := range req.Required {
			if !covered(need, caller.User.Permissions) {
				g.denyAdmin(ctx, caller, req, "missing_permission")
				return ErrForbidden
			}
		}
		return nil
	}
	res, err := g.policy.EvaluateAdminAccess(ctx, caller.User, req.Required)
	if err != nil {
		log.Printf("rbac: admin access policy: %v", err)
		g.denyAdmin(ctx, caller, req, "policy_error")
		return ErrForbidden
	}
	if !res.Allowed {
		g.denyAdmin(ctx, caller, req, "policy_denied")
		return ErrForbidden
	}
	return nil
}

// covered reports whether grants include need directly or via a "manage"
// grant on the same resource.
func covered(need userdomain.Permission, grants []userdomain.Permission) bool {
	for _, g := range grants {
		if g.Resource != need.Resource {
			continue
		}
		if g.Action == need.Action || g.Action == userdomain.ActionManage {
			return true
		}
	}
	return false
}

func roleIn(role userdomain.Role, set []userdomain.Role) bool {
	for _, r := range set {
		if r == role {
			return true
		}
	}
	return false
}

func (g *Guard) denyRole(ctx context.Context, caller Caller, req RoleRequirement, reason string) {
	required := make([]string, 0, len(req.Roles))
	for _, r := range req.Roles {
		required = append(required, string(r))
	}
	g.audit.Log(ctx, &auditdomain.SecurityEvent{
		UserID:    caller.User.ID,
		SessionID: caller.SessionID,
		Type:      auditdomain.EventUnauthorizedAccess,
		IP:        caller.IP,
		UserAgent: caller.UserAgent,
		Details: map[string]string{
			"reason":   reason,
			"endpoint": req.Endpoint,
			"method":   req.Method,
			"required": strings.Join(required, ","),
			"actual":   string(caller.User.Role),
			"approval": string(caller.User.ApprovalStatus),
		},
	})
}

func (g *Guard) denyAdmin(ctx context.Context, caller Caller, req AdminRequirement, reason string) {
	event := &auditdomain.SecurityEvent{
		SessionID: caller.SessionID,
		Type:      auditdomain.EventUnauthorizedAdminAccess,
		IP:        caller.IP,
		UserAgent: caller.UserAgent,
		Details: map[string]string{
			"reason":    reason,
			"endpoint":  req.Endpoint,
			"method":    req.Method,
			"requested": permissionList(req.Required),
		},
	}
	if caller.User != nil {
		event.UserID = caller.User.ID
		event.Details["granted"] = permissionList(caller.User.Permissions)
	}
	g.audit.Log(ctx, event)
}

func permissionList(perms []userdomain.Permission) string {
	parts := make([]string, 0, len(perms))
	for _, p := range perms {
		parts = append(parts, fmt.Sprintf("%s:%s", p.Resource, p.Action))
	}
	return strings.Join(parts, ",")
}
