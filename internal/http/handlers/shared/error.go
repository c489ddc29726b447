package shared

import (
	"net/http"

	"github.com/musictutor-next/internal/http/response"
	"github.com/musictutor-next/internal/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// RequestLog 提供携带 request_id 的日志实例。
func RequestLog(c *gin.Context) *zap.SugaredLogger {
	if c == nil {
		return logger.S()
	}
	if requestID, ok := c.Get("request_id"); ok {
		if id, ok := requestID.(string); ok && id != "" {
			return logger.SW("request_id", id)
		}
	}
	return logger.S()
}

// RespondError 按业务错误分类返回响应；未分类错误记录日志后返回通用 500。
func RespondError(c *gin.Context, err error) {
	appErr := response.FromError(err)
	switch {
	case appErr.Status >= http.StatusInternalServerError && appErr.Status != http.StatusServiceUnavailable:
		RequestLog(c).Errorw("handler_error",
			"status", appErr.Status,
			"path", c.FullPath(),
			"error", err,
		)
	case appErr.Status == http.StatusServiceUnavailable:
		RequestLog(c).Warnw("handler_dependency_unavailable",
			"path", c.FullPath(),
			"error", err,
		)
	}
	response.Error(c, appErr.Status, appErr.Message)
}

// RespondBindError 请求体解析失败
func RespondBindError(c *gin.Context, err error) {
	RequestLog(c).Debugw("handler_bind_failed", "path", c.FullPath(), "error", err)
	response.BadRequest(c, "invalid request body")
}
