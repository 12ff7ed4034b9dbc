package engine

import (
	"context"
	"testing"

	userdomain "resqride/backend/internal/user/domain"
)

func TestHealthCheck(t *testing.T) {
	if err := NewOPAEvaluator().HealthCheck(context.Background()); err != nil {
		t.Fatalf("HealthCheck: %v", err)
	}
}

func TestEvaluateAdminAccess(t *testing.T) {
	e := NewOPAEvaluator()
	ctx := context.Background()
	admin := &userdomain.User{ID: "a1", Role: userdomain.RoleAdmin}
	super := &userdomain.User{ID: "a2", Role: userdomain.RoleAdmin, SuperAdmin: true}

	cases := []struct {
		name      string
		caller    *userdomain.User
		requested []userdomain.Permission
		want      bool
	}{
		{"basic resource allowed", admin, []userdomain.Permission{{Resource: "users", Action: "read"}}, true},
		{"several basic resources allowed", admin, []userdomain.Permission{{Resource: "drivers", Action: "approve"}, {Resource: "blacklist", Action: "read"}}, true},
		{"restricted resource denied", admin, []userdomain.Permission{{Resource: "system", Action: "read"}}, false},
		{"mixed set denied", admin, []userdomain.Permission{{Resource: "users", Action: "read"}, {Resource: "payments", Action: "read"}}, false},
		{"unknown resource denied", admin, []userdomain.Permission{{Resource: "nonsense", Action: "read"}}, false},
		{"empty request denied", admin, nil, false},
		{"super admin bypasses restricted", super, []userdomain.Permission{{Resource: "system", Action: "manage"}}, true},
		{"super admin with empty request", super, nil, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res, err := e.EvaluateAdminAccess(ctx, tc.caller, tc.requested)
			if err != nil {
				t.Fatalf("EvaluateAdminAccess: %v", err)
			}
			if res.Allowed != tc.want {
				t.Fatalf("allowed = %v, want %v", res.Allowed, tc.want)
			}
		})
	}
}
