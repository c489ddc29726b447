package public

import (
	"github.com/musictutor-next/internal/http/response"
	"github.com/musictutor-next/internal/service"

	"github.com/gin-gonic/gin"
)

// SetAvailabilityRequest 老师设置每周时段
type SetAvailabilityRequest struct {
	Slots []service.SlotInput `json:"slots"`
}

// GetTeacherAvailability 查看老师的每周可预约时段
func (h *Handler) GetTeacherAvailability(c *gin.Context) {
	teacherID, ok := parseID(c, "id")
	if !ok {
		return
	}
	slots, err := h.AvailabilityService.List(teacherID)
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, slots)
}

// SetMyAvailability 老师整体替换自己的每周时段
func (h *Handler) SetMyAvailability(c *gin.Context) {
	uid, ok := getUserID(c)
	if !ok {
		return
	}
	var req SetAvailabilityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}
	slots, err := h.AvailabilityService.SetWeekly(c.Request.Context(), uid, req.Slots)
	if err != nil {
		respondError(c, err)
		return
	}
	requestLog(c).Infow("availability_set", "teacher_id", uid, "slots", len(slots))
	response.Success(c, slots)
}
