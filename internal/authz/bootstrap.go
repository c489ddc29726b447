package authz

import (
	"fmt"

	"github.com/musictutor-next/internal/constants"
)

// RoleSeed 预置角色定义
type RoleSeed struct {
	Role     string
	Policies []Policy
}

// BuiltinRoleSeeds 系统预置角色矩阵
func BuiltinRoleSeeds() []RoleSeed {
	return []RoleSeed{
		{
			Role: constants.RoleStudent,
			Policies: []Policy{
				{Object: "/auth/me", Action: "GET"},
				{Object: "/cart", Action: "GET"},
				{Object: "/cart/items", Action: "POST"},
				{Object: "/cart/items/:courseId", Action: "PATCH"},
				{Object: "/cart/items/:courseId", Action: "DELETE"},
				{Object: "/cart/:id/coupon", Action: "POST"},
				{Object: "/cart/:id/coupon", Action: "DELETE"},
				{Object: "/cart/:id/checkout", Action: "POST"},
				{Object: "/orders", Action: "GET"},
				{Object: "/orders/:id", Action: "GET"},
				{Object: "/orders/:id/pay", Action: "POST"},
				{Object: "/orders/:id/cancel", Action: "POST"},
				{Object: "/appointments", Action: "GET"},
				{Object: "/appointments", Action: "POST"},
				{Object: "/appointments/:id/cancel", Action: "POST"},
				{Object: "/appointments/:id/review", Action: "POST"},
			},
		},
		{
			Role: constants.RoleTeacher,
			Policies: []Policy{
				{Object: "/auth/me", Action: "GET"},
				{Object: "/teacher/courses", Action: "POST"},
				{Object: "/teacher/courses/:id", Action: "PUT"},
				{Object: "/appointments", Action: "GET"},
				{Object: "/appointments/:id/confirm", Action: "POST"},
				{Object: "/appointments/:id/cancel", Action: "POST"},
				{Object: "/appointments/:id/complete", Action: "POST"},
				{Object: "/teacher/availability", Action: "PUT"},
				{Object: "/reviews/:id/response", Action: "POST"},
			},
		},
		{
			Role: constants.RoleAdmin,
			Policies: []Policy{
				{Object: "/auth/me", Action: "GET"},
				{Object: "/admin/*", Action: "*"},
				{Object: "/teacher/courses/:id", Action: "PUT"},
				{Object: "/appointments", Action: "GET"},
				{Object: "/appointments/:id/confirm", Action: "POST"},
				{Object: "/appointments/:id/cancel", Action: "POST"},
				{Object: "/appointments/:id/complete", Action: "POST"},
			},
		},
	}
}

// BootstrapBuiltinRoles 初始化预置角色的默认策略，已存在的策略保持不变
func (s *Service) BootstrapBuiltinRoles() error {
	if s == nil || s.enforcer == nil {
		return fmt.Errorf("authz service unavailable")
	}
	for _, seed := range BuiltinRoleSeeds() {
		role, err := NormalizeRole(seed.Role)
		if err != nil {
			return err
		}
		for _, policy := range seed.Policies {
			action := NormalizeAction(policy.Action)
			if action == "" {
				return fmt.Errorf("builtin policy action is required")
			}
			if _, err := s.enforcer.AddPolicy(role, NormalizeObject(policy.Object), action); err != nil {
				return fmt.Errorf("add builtin policy failed: %w", err)
			}
		}
	}
	return nil
}
