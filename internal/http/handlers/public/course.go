package public

import (
	"strings"

	handlershared "github.com/musictutor-next/internal/http/handlers/shared"
	"github.com/musictutor-next/internal/http/response"
	"github.com/musictutor-next/internal/models"
	"github.com/musictutor-next/internal/repository"
	"github.com/musictutor-next/internal/service"

	"github.com/gin-gonic/gin"
)

// CourseRequest 老师创建/更新课程请求
type CourseRequest struct {
	Name                      string                 `json:"name" binding:"required"`
	Intro                     string                 `json:"intro"`
	Instrument                string                 `json:"instrument" binding:"required"`
	Level                     string                 `json:"level"`
	Status                    string                 `json:"status"`
	SingleLessonPrice         models.Money           `json:"single_lesson_price"`
	PackageOptions            []models.PackageOption `json:"package_options"`
	CancellationDeadlineHours *int                   `json:"cancellation_deadline_hours"`
}

func (r CourseRequest) toInput() service.CourseInput {
	return service.CourseInput{
		Name:                      r.Name,
		Intro:                     r.Intro,
		Instrument:                r.Instrument,
		Level:                     r.Level,
		Status:                    r.Status,
		SingleLessonPrice:         r.SingleLessonPrice,
		PackageOptions:            r.PackageOptions,
		CancellationDeadlineHours: r.CancellationDeadlineHours,
	}
}

// ListCourses 公开课程列表
func (h *Handler) ListCourses(c *gin.Context) {
	page, pageSize := handlershared.ParsePagination(c)
	courses, total, err := h.CourseService.List(repository.CourseListFilter{
		Page:       page,
		PageSize:   pageSize,
		Instrument: strings.TrimSpace(c.Query("instrument")),
		Level:      strings.TrimSpace(c.Query("level")),
		Search:     strings.TrimSpace(c.Query("search")),
	}, true)
	if err != nil {
		respondError(c, err)
		return
	}
	response.SuccessWithPage(c, courses, response.BuildPagination(page, pageSize, total))
}

// GetCourse 公开课程详情
func (h *Handler) GetCourse(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	course, err := h.CourseService.Get(id, nil)
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, course)
}

// CreateTeacherCourse 老师创建课程
func (h *Handler) CreateTeacherCourse(c *gin.Context) {
	uid, ok := getUserID(c)
	if !ok {
		return
	}
	var req CourseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}
	course, err := h.CourseService.Create(uid, req.toInput())
	if err != nil {
		respondError(c, err)
		return
	}
	response.Created(c, course)
}

// UpdateTeacherCourse 老师更新自己的课程，管理员可更新任意课程
func (h *Handler) UpdateTeacherCourse(c *gin.Context) {
	actor, ok := getActor(c)
	if !ok {
		return
	}
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req CourseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}
	course, err := h.CourseService.Update(actor, id, req.toInput())
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, course)
}
