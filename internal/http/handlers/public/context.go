package public

import (
	handlershared "github.com/musictutor-next/internal/http/handlers/shared"
	"github.com/musictutor-next/internal/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func getUserID(c *gin.Context) (uint, bool) {
	return handlershared.GetContextUint(c, "user_id")
}

func getActor(c *gin.Context) (service.Actor, bool) {
	return handlershared.GetActor(c)
}

func parseID(c *gin.Context, name string) (uint, bool) {
	return handlershared.ParseUintParam(c, name)
}

func respondError(c *gin.Context, err error) {
	handlershared.RespondError(c, err)
}

func respondBindError(c *gin.Context, err error) {
	handlershared.RespondBindError(c, err)
}

func requestLog(c *gin.Context) *zap.SugaredLogger {
	return handlershared.RequestLog(c)
}
