package public

import (
	handlershared "github.com/musictutor-next/internal/http/handlers/shared"
	"github.com/musictutor-next/internal/http/response"
	"github.com/musictutor-next/internal/service"

	"github.com/gin-gonic/gin"
)

// ReviewResponseRequest 老师回复评价
type ReviewResponseRequest struct {
	Content string `json:"content" binding:"required"`
}

// CreateReview 学生评价已完成的预约
func (h *Handler) CreateReview(c *gin.Context) {
	uid, ok := getUserID(c)
	if !ok {
		return
	}
	appointmentID, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req service.ReviewInput
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}
	req.StudentID = uid
	req.AppointmentID = appointmentID
	review, err := h.ReviewService.Create(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	response.Created(c, review)
}

// ListCourseReviews 课程公开评价列表
func (h *Handler) ListCourseReviews(c *gin.Context) {
	courseID, ok := parseID(c, "id")
	if !ok {
		return
	}
	page, pageSize := handlershared.ParsePagination(c)
	reviews, total, err := h.ReviewService.ListByCourse(courseID, page, pageSize)
	if err != nil {
		respondError(c, err)
		return
	}
	response.SuccessWithPage(c, reviews, response.BuildPagination(page, pageSize, total))
}

// RespondReview 老师回复自己课程的评价
func (h *Handler) RespondReview(c *gin.Context) {
	actor, ok := getActor(c)
	if !ok {
		return
	}
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req ReviewResponseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}
	review, err := h.ReviewService.Respond(c.Request.Context(), id, req.Content, actor)
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, review)
}
