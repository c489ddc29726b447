package authz

import (
	"fmt"
	"strings"
	"testing"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

func setupAuthzServiceTest(t *testing.T) *Service {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	svc, err := NewService(db)
	if err != nil {
		t.Fatalf("new authz service failed: %v", err)
	}
	return svc
}

func TestEnforceRoleWithPolicy(t *testing.T) {
	svc := setupAuthzServiceTest(t)
	if err := svc.GrantRolePolicy("teacher", "/teacher/courses/:id", "PUT"); err != nil {
		t.Fatalf("grant role policy failed: %v", err)
	}

	allow, err := svc.EnforceRole("teacher", "/api/v1/teacher/courses/42", "put")
	if err != nil {
		t.Fatalf("enforce allow failed: %v", err)
	}
	if !allow {
		t.Fatalf("expected allow=true")
	}

	allow, err = svc.EnforceRole("teacher", "/api/v1/teacher/courses/42", "DELETE")
	if err != nil {
		t.Fatalf("enforce deny failed: %v", err)
	}
	if allow {
		t.Fatalf("expected allow=false")
	}

	if err := svc.RevokeRolePolicy("teacher", "/teacher/courses/:id", "PUT"); err != nil {
		t.Fatalf("revoke failed: %v", err)
	}
	allow, err = svc.EnforceRole("teacher", "/teacher/courses/42", "PUT")
	if err != nil || allow {
		t.Fatalf("expected revoked policy to deny, allow=%v err=%v", allow, err)
	}
}

func TestNormalizeObject(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{in: "/api/v1/admin/orders/:id", want: "/admin/orders/:id"},
		{in: "/admin/orders/:id", want: "/admin/orders/:id"},
		{in: "admin/orders", want: "/admin/orders"},
		{in: "/api/v1", want: "/"},
		{in: "", want: "/"},
	}
	for _, item := range cases {
		got := NormalizeObject(item.in)
		if got != item.want {
			t.Fatalf("normalize object failed, in=%q want=%q got=%q", item.in, item.want, got)
		}
	}
}

func TestBootstrapBuiltinRoles(t *testing.T) {
	svc := setupAuthzServiceTest(t)
	if err := svc.BootstrapBuiltinRoles(); err != nil {
		t.Fatalf("bootstrap builtin roles failed: %v", err)
	}
	// 重复初始化保持幂等
	if err := svc.BootstrapBuiltinRoles(); err != nil {
		t.Fatalf("second bootstrap failed: %v", err)
	}

	roles, err := svc.ListRoles()
	if err != nil {
		t.Fatalf("list roles failed: %v", err)
	}
	if strings.Join(roles, ",") != "role:admin,role:student,role:teacher" {
		t.Fatalf("unexpected builtin roles: %v", roles)
	}

	cases := []struct {
		role   string
		path   string
		method string
		want   bool
	}{
		{"student", "/api/v1/cart/5/checkout", "POST", true},
		{"student", "/api/v1/orders/7/pay", "POST", true},
		{"student", "/api/v1/appointments/3/complete", "POST", false},
		{"student", "/api/v1/admin/coupons", "GET", false},
		{"student", "/api/v1/appointments/3/review", "POST", true},
		{"student", "/api/v1/reviews/4/response", "POST", false},
		{"teacher", "/api/v1/appointments/3/complete", "POST", true},
		{"teacher", "/api/v1/cart", "GET", false},
		{"teacher", "/api/v1/teacher/availability", "PUT", true},
		{"teacher", "/api/v1/appointments/3/review", "POST", false},
		{"teacher", "/api/v1/admin/orders/1/refund", "POST", false},
		{"admin", "/api/v1/admin/orders/1/refund", "POST", true},
		{"admin", "/api/v1/admin/coupons/9", "DELETE", true},
		{"admin", "/api/v1/admin/reviews/2/status", "PATCH", true},
		{"admin", "/api/v1/cart/1/checkout", "POST", false},
	}
	for _, tc := range cases {
		allow, err := svc.EnforceRole(tc.role, tc.path, tc.method)
		if err != nil {
			t.Fatalf("enforce %s %s %s failed: %v", tc.role, tc.method, tc.path, err)
		}
		if allow != tc.want {
			t.Fatalf("enforce %s %s %s = %v, want %v", tc.role, tc.method, tc.path, allow, tc.want)
		}
	}

	policies, err := svc.GetRolePolicies("teacher")
	if err != nil {
		t.Fatalf("get role policies failed: %v", err)
	}
	if len(policies) != 9 {
		t.Fatalf("teacher policies = %d, want 9", len(policies))
	}
}
