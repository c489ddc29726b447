package public

import (
	"strings"
	"time"

	handlershared "github.com/musictutor-next/internal/http/handlers/shared"
	"github.com/musictutor-next/internal/http/response"
	"github.com/musictutor-next/internal/repository"
	"github.com/musictutor-next/internal/service"

	"github.com/gin-gonic/gin"
)

// BookAppointmentRequest 预约请求
type BookAppointmentRequest struct {
	OrderItemID     uint      `json:"order_item_id" binding:"required"`
	StartTime       time.Time `json:"start_time" binding:"required"`
	DurationMinutes int       `json:"duration_minutes"`
	LocationType    string    `json:"location_type"`
	Location        string    `json:"location"`
	Notes           string    `json:"notes"`
}

// BookAppointment 学生用已购课时预约上课
func (h *Handler) BookAppointment(c *gin.Context) {
	uid, ok := getUserID(c)
	if !ok {
		return
	}
	var req BookAppointmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}
	appointment, err := h.AppointmentService.Book(c.Request.Context(), service.BookInput{
		StudentID:       uid,
		OrderItemID:     req.OrderItemID,
		StartTime:       req.StartTime,
		DurationMinutes: req.DurationMinutes,
		LocationType:    req.LocationType,
		Location:        req.Location,
		Notes:           req.Notes,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	response.Created(c, appointment)
}

// ListAppointments 按角色列出预约
func (h *Handler) ListAppointments(c *gin.Context) {
	actor, ok := getActor(c)
	if !ok {
		return
	}
	page, pageSize := handlershared.ParsePagination(c)
	filter := repository.AppointmentListFilter{
		Page:     page,
		PageSize: pageSize,
		Status:   strings.TrimSpace(c.Query("status")),
	}
	if from, err := time.Parse(time.RFC3339, c.Query("from")); err == nil {
		filter.From = &from
	}
	if to, err := time.Parse(time.RFC3339, c.Query("to")); err == nil {
		filter.To = &to
	}
	appointments, total, err := h.AppointmentService.List(filter, actor)
	if err != nil {
		respondError(c, err)
		return
	}
	response.SuccessWithPage(c, appointments, response.BuildPagination(page, pageSize, total))
}

// ConfirmAppointment 老师确认预约
func (h *Handler) ConfirmAppointment(c *gin.Context) {
	actor, ok := getActor(c)
	if !ok {
		return
	}
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	appointment, err := h.AppointmentService.Confirm(c.Request.Context(), id, actor)
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, appointment)
}

// CancelAppointment 取消预约，学生需在课程规定的截止时间前取消
func (h *Handler) CancelAppointment(c *gin.Context) {
	actor, ok := getActor(c)
	if !ok {
		return
	}
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	appointment, err := h.AppointmentService.Cancel(c.Request.Context(), id, actor)
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, appointment)
}

// CompleteAppointment 标记上课完成并扣减课时
func (h *Handler) CompleteAppointment(c *gin.Context) {
	actor, ok := getActor(c)
	if !ok {
		return
	}
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	appointment, err := h.SettlementService.CompleteAppointment(c.Request.Context(), id, actor)
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, appointment)
}
