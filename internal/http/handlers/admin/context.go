package admin

import (
	handlershared "github.com/musictutor-next/internal/http/handlers/shared"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func getAdminID(c *gin.Context) (uint, bool) {
	return handlershared.GetContextUint(c, "user_id")
}

func parseID(c *gin.Context) (uint, bool) {
	return handlershared.ParseUintParam(c, "id")
}

func requestLog(c *gin.Context) *zap.SugaredLogger {
	return handlershared.RequestLog(c)
}

func respondError(c *gin.Context, err error) {
	handlershared.RespondError(c, err)
}

func respondBindError(c *gin.Context, err error) {
	handlershared.RespondBindError(c, err)
}
