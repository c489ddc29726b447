package admin

import (
	"github.com/musictutor-next/internal/http/response"

	"github.com/gin-gonic/gin"
)

// ReviewStatusRequest 评价状态变更
type ReviewStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

// AdminSetReviewStatus 隐藏或恢复评价
func (h *Handler) AdminSetReviewStatus(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var req ReviewStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}
	review, err := h.ReviewService.SetStatus(c.Request.Context(), id, req.Status)
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, review)
}
