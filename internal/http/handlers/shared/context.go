package shared

import (
	"strconv"

	"github.com/musictutor-next/internal/http/response"
	"github.com/musictutor-next/internal/service"

	"github.com/gin-gonic/gin"
)

// GetContextUint 从上下文读取 uint 值并统一处理错误响应。
func GetContextUint(c *gin.Context, key string) (uint, bool) {
	value, exists := c.Get(key)
	if !exists {
		response.Unauthorized(c, "unauthorized")
		return 0, false
	}

	switch v := value.(type) {
	case uint:
		if v == 0 {
			response.Unauthorized(c, "unauthorized")
			return 0, false
		}
		return v, true
	case int:
		if v <= 0 {
			response.Unauthorized(c, "unauthorized")
			return 0, false
		}
		return uint(v), true
	case float64:
		if v <= 0 {
			response.Unauthorized(c, "unauthorized")
			return 0, false
		}
		return uint(v), true
	default:
		RequestLog(c).Errorw("handler_context_type_invalid", "key", key)
		response.Internal(c)
		return 0, false
	}
}

// GetActor 读取鉴权中间件写入的当前用户
func GetActor(c *gin.Context) (service.Actor, bool) {
	uid, ok := GetContextUint(c, "user_id")
	if !ok {
		return service.Actor{}, false
	}
	role := c.GetString("role")
	if role == "" {
		response.Unauthorized(c, "unauthorized")
		return service.Actor{}, false
	}
	return service.Actor{UserID: uid, Role: role}, true
}

// ParseUintParam 解析路径中的正整数 ID
func ParseUintParam(c *gin.Context, name string) (uint, bool) {
	raw := c.Param(name)
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		response.BadRequest(c, "invalid "+name)
		return 0, false
	}
	return uint(id), true
}
