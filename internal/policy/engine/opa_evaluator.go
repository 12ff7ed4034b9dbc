package engine

import (
	"context"
	"fmt"

	"github.com/open-policy-agent/opa/v1/ast"
	"github.com/open-policy-agent/opa/v1/rego"

	userdomain "resqride/backend/internal/user/domain"
)

const policyQuery = "data.resqride.admin_access.allow"

// Default Rego policy for admins without explicit grants: any admin may
// touch basic resources; restricted resources need the super-admin flag.
const defaultRegoPolicy = `package resqride.admin_access

default allow = false

basic_resources := {"users", "drivers", "rides", "blacklist", "sessions", "reports"}

restricted_resources := {"admins", "payments", "system", "audit"}

allow if {
	input.caller.super_admin
}

allow if {
	not input.caller.super_admin
	count(input.requested) > 0
	every r in input.requested {
		basic_resources[r.resource]
		not restricted_resources[r.resource]
	}
}
`

// OPAEvaluator evaluates the admin resource-access policy with the
// in-process OPA Rego engine.
type OPAEvaluator struct{}

// NewOPAEvaluator returns an OPA-based access evaluator over the default
// policy.
func NewOPAEvaluator() *OPAEvaluator {
	return &OPAEvaluator{}
}

// HealthCheck verifies the default policy compiles and evaluates.
// Returns nil on success.
func (e *OPAEvaluator) HealthCheck(ctx context.Context) error {
	_, err := e.eval(ctx, map[string]interface{}{
		"caller":    map[string]interface{}{"super_admin": false},
		"requested": []interface{}{map[string]interface{}{"resource": "users", "action": "read"}},
	})
	return err
}

// EvaluateAdminAccess decides whether the caller may touch every requested
// resource. Evaluation failures deny: authorization fails closed.
func (e *OPAEvaluator) EvaluateAdminAccess(ctx context.Context, caller *userdomain.User, requested []userdomain.Permission) (AccessResult, error) {
	reqs := make([]interface{}, 0, len(requested))
	for _, p := range requested {
		reqs = append(reqs, map[string]interface{}{
			"resource": p.Resource,
			"action":   p.Action,
		})
	}
	input := map[string]interface{}{
		"caller": map[string]interface{}{
			"id":          caller.ID,
			"super_admin": caller.SuperAdmin,
		},
		"requested": reqs,
	}
	allowed, err := e.eval(ctx, input)
	if err != nil {
		return AccessResult{}, err
	}
	return AccessResult{Allowed: allowed}, nil
}

func (e *OPAEvaluator) eval(ctx context.Context, input map[string]interface{}) (bool, error) {
	compiler, err := ast.CompileModules(map[string]string{"admin_access.rego": defaultRegoPolicy})
	if err != nil {
		return false, fmt.Errorf("compile policy: %w", err)
	}
	q := rego.New(
		rego.Query(policyQuery),
		rego.Compiler(compiler),
		rego.Input(input),
	)
	rs, err := q.Eval(ctx)
	if err != nil {
		return false, fmt.Errorf("eval policy: %w", err)
	}
	if len(rs) == 0 || len(rs[0].Expressions) == 0 {
		return false, fmt.Errorf("policy query returned no result")
	}
	allowed, ok := rs[0].Expressions[0].Value.(bool)
	if !ok {
		return false, fmt.Errorf("policy query returned non-boolean %T", rs[0].Expressions[0].Value)
	}
	return allowed, nil
}
