package public

import "github.com/musictutor-next/internal/provider"

// Handler 前台接口处理器入口
// 说明：学生、老师以及公开接口共用，角色权限由 RBAC 中间件在路由层控制。
type Handler struct {
	*provider.Container
}

// New 创建前台处理器
func New(c *provider.Container) *Handler {
	return &Handler{Container: c}
}
