package service

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/musictutor-next/internal/constants"
	"github.com/musictutor-next/internal/logger"
	"github.com/musictutor-next/internal/models"
	"github.com/musictutor-next/internal/repository"

	"gorm.io/gorm"
)

const (
	maxReviewComment     = 1000
	maxReviewSuggestions = 500
	maxReviewResponse    = 500
	maxReviewListItems   = 10
	maxReviewListItemLen = 100
)

// ReviewInput 学生提交的评价
type ReviewInput struct {
	StudentID        uint     `json:"-"`
	AppointmentID    uint     `json:"-"`
	TeachingQuality  int      `json:"teaching_quality"`
	Communication    int      `json:"communication"`
	Punctuality      int      `json:"punctuality"`
	Professionalism  int      `json:"professionalism"`
	Overall          int      `json:"overall"`
	Comment          string   `json:"comment"`
	LearningProgress string   `json:"learning_progress"`
	Strengths        []string `json:"strengths"`
	Improvements     []string `json:"improvements"`
	Suggestions      string   `json:"suggestions"`
}

// ReviewService 课程评价服务
type ReviewService struct {
	reviewRepo      repository.ReviewRepository
	appointmentRepo repository.AppointmentRepository
	courseRepo      repository.CourseRepository
}

// NewReviewService 创建评价服务
func NewReviewService(reviewRepo repository.ReviewRepository, appointmentRepo repository.AppointmentRepository, courseRepo repository.CourseRepository) *ReviewService {
	return &ReviewService{
		reviewRepo:      reviewRepo,
		appointmentRepo: appointmentRepo,
		courseRepo:      courseRepo,
	}
}

// Create 学生评价已完成的预约，每个预约只能评价一次，提交后刷新课程评分
func (s *ReviewService) Create(ctx context.Context, input ReviewInput) (*models.CourseReview, error) {
	if input.StudentID == 0 || input.AppointmentID == 0 {
		return nil, ErrInvalidInput
	}
	for _, rating := range []int{input.TeachingQuality, input.Communication, input.Punctuality, input.Professionalism, input.Overall} {
		if rating < 1 || rating > 5 {
			return nil, ErrRatingInvalid
		}
	}
	comment := strings.TrimSpace(input.Comment)
	if comment == "" {
		return nil, wrapf(ErrInvalidInput, "comment is required")
	}
	if utf8.RuneCountInString(comment) > maxReviewComment {
		return nil, wrapf(ErrInvalidInput, "comment exceeds %d characters", maxReviewComment)
	}
	progress := strings.ToLower(strings.TrimSpace(input.LearningProgress))
	if !validLearningProgress(progress) {
		return nil, wrapf(ErrInvalidInput, "unknown learning progress %q", input.LearningProgress)
	}
	suggestions := strings.TrimSpace(input.Suggestions)
	if utf8.RuneCountInString(suggestions) > maxReviewSuggestions {
		return nil, wrapf(ErrInvalidInput, "suggestions exceed %d characters", maxReviewSuggestions)
	}
	strengths, err := normalizeReviewList(input.Strengths)
	if err != nil {
		return nil, err
	}
	improvements, err := normalizeReviewList(input.Improvements)
	if err != nil {
		return nil, err
	}

	var review *models.CourseReview
	err = models.DB.Transaction(func(tx *gorm.DB) error {
		reviewRepo := s.reviewRepo.WithTx(tx)
		appointment, err := s.appointmentRepo.WithTx(tx).GetByID(input.AppointmentID)
		if err != nil {
			return err
		}
		if appointment == nil {
			return ErrAppointmentNotFound
		}
		if appointment.StudentID != input.StudentID {
			return ErrReviewForbidden
		}
		if appointment.Status != constants.AppointmentStatusCompleted {
			return wrapf(ErrReviewNotAllowed, "appointment %d is %s", appointment.ID, appointment.Status)
		}
		existing, err := reviewRepo.GetByAppointment(appointment.ID)
		if err != nil {
			return err
		}
		if existing != nil {
			return ErrReviewExists
		}

		now := time.Now()
		review = &models.CourseReview{
			AppointmentID:    appointment.ID,
			CourseID:         appointment.CourseID,
			TeacherID:        appointment.TeacherID,
			StudentID:        appointment.StudentID,
			TeachingQuality:  input.TeachingQuality,
			Communication:    input.Communication,
			Punctuality:      input.Punctuality,
			Professionalism:  input.Professionalism,
			Overall:          input.Overall,
			Comment:          comment,
			LearningProgress: progress,
			Strengths:        strengths,
			Improvements:     improvements,
			Suggestions:      suggestions,
			Status:           constants.ReviewStatusPublished,
			CreatedAt:        now,
			UpdatedAt:        now,
		}
		if err := reviewRepo.Create(review); err != nil {
			// 并发提交时唯一索引冲突
			if again, lookupErr := s.reviewRepo.WithTx(tx).GetByAppointment(appointment.ID); lookupErr == nil && again != nil {
				return ErrReviewExists
			}
			return err
		}
		return s.refreshCourseRating(tx, appointment.CourseID)
	})
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrReviewExists
		}
		return nil, err
	}
	logger.Infow("review_created",
		"review_id", review.ID,
		"appointment_id", review.AppointmentID,
		"course_id", review.CourseID,
		"overall", review.Overall,
	)
	return review, nil
}

// Respond 老师回复自己课程的评价
func (s *ReviewService) Respond(ctx context.Context, id uint, content string, actor Actor) (*models.CourseReview, error) {
	review, err := s.get(id)
	if err != nil {
		return nil, err
	}
	if !actor.IsAdmin() && review.TeacherID != actor.UserID {
		return nil, ErrReviewForbidden
	}
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, wrapf(ErrInvalidInput, "response is required")
	}
	if utf8.RuneCountInString(content) > maxReviewResponse {
		return nil, wrapf(ErrInvalidInput, "response exceeds %d characters", maxReviewResponse)
	}
	if err := s.reviewRepo.UpdateResponse(review.ID, content, time.Now()); err != nil {
		return nil, err
	}
	return s.get(id)
}

// SetStatus 管理员隐藏或恢复评价，隐藏后不计入课程评分
func (s *ReviewService) SetStatus(ctx context.Context, id uint, status string) (*models.CourseReview, error) {
	status = strings.ToLower(strings.TrimSpace(status))
	if status != constants.ReviewStatusPublished && status != constants.ReviewStatusHidden {
		return nil, wrapf(ErrInvalidInput, "unknown review status %q", status)
	}
	review, err := s.get(id)
	if err != nil {
		return nil, err
	}
	if review.Status == status {
		return review, nil
	}
	err = models.DB.Transaction(func(tx *gorm.DB) error {
		if err := s.reviewRepo.WithTx(tx).UpdateStatus(review.ID, status); err != nil {
			return err
		}
		return s.refreshCourseRating(tx, review.CourseID)
	})
	if err != nil {
		return nil, err
	}
	logger.Infow("review_status_changed", "review_id", review.ID, "status", status)
	return s.get(id)
}

// ListByCourse 课程的公开评价
func (s *ReviewService) ListByCourse(courseID uint, page, pageSize int) ([]models.CourseReview, int64, error) {
	if courseID == 0 {
		return nil, 0, ErrInvalidInput
	}
	return s.reviewRepo.List(repository.ReviewListFilter{
		Page:     page,
		PageSize: pageSize,
		CourseID: courseID,
		Status:   constants.ReviewStatusPublished,
	})
}

func (s *ReviewService) refreshCourseRating(tx *gorm.DB, courseID uint) error {
	average, count, err := s.reviewRepo.WithTx(tx).CourseRatingStats(courseID)
	if err != nil {
		return err
	}
	average = float64(int(average*100+0.5)) / 100
	return s.courseRepo.WithTx(tx).UpdateRatingStats(courseID, average, count)
}

func (s *ReviewService) get(id uint) (*models.CourseReview, error) {
	if id == 0 {
		return nil, ErrInvalidInput
	}
	review, err := s.reviewRepo.GetByID(id)
	if err != nil {
		return nil, err
	}
	if review == nil {
		return nil, ErrReviewNotFound
	}
	return review, nil
}

func validLearningProgress(value string) bool {
	switch value {
	case constants.LearningProgressExcellent,
		constants.LearningProgressGood,
		constants.LearningProgressFair,
		constants.LearningProgressNeedsImprovement:
		return true
	}
	return false
}

func normalizeReviewList(values []string) (models.StringList, error) {
	if len(values) > maxReviewListItems {
		return nil, wrapf(ErrInvalidInput, "at most %d items", maxReviewListItems)
	}
	result := make(models.StringList, 0, len(values))
	for _, value := range values {
		value = strings.TrimSpace(value)
		if value == "" {
			continue
		}
		if utf8.RuneCountInString(value) > maxReviewListItemLen {
			return nil, wrapf(ErrInvalidInput, "item exceeds %d characters", maxReviewListItemLen)
		}
		result = append(result, value)
	}
	return result, nil
}
