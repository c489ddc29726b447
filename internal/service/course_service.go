package service

import (
	"strings"
	"unicode/utf8"

	"github.com/musictutor-next/internal/constants"
	"github.com/musictutor-next/internal/models"
	"github.com/musictutor-next/internal/repository"
)

const (
	maxCourseNameLength       = 200
	defaultCancellationWindow = 24
)

// CourseService 课程服务
type CourseService struct {
	courseRepo repository.CourseRepository
}

// NewCourseService 创建课程服务
func NewCourseService(courseRepo repository.CourseRepository) *CourseService {
	return &CourseService{courseRepo: courseRepo}
}

// CourseInput 创建/更新课程输入
type CourseInput struct {
	Name                      string
	Intro                     string
	Instrument                string
	Level                     string
	Status                    string
	SingleLessonPrice         models.Money
	PackageOptions            []models.PackageOption
	CancellationDeadlineHours *int
}

// List 课程列表，公开接口只返回上架课程
func (s *CourseService) List(filter repository.CourseListFilter, publicOnly bool) ([]models.Course, int64, error) {
	if publicOnly {
		filter.Status = constants.CourseStatusActive
	}
	return s.courseRepo.List(filter)
}

// Get 获取课程详情；未上架课程仅对授课老师与管理员可见
func (s *CourseService) Get(id uint, actor *Actor) (*models.Course, error) {
	if id == 0 {
		return nil, ErrInvalidInput
	}
	course, err := s.courseRepo.GetByID(id)
	if err != nil {
		return nil, err
	}
	if course == nil {
		return nil, ErrCourseNotFound
	}
	if course.Status != constants.CourseStatusActive {
		if actor == nil || (!actor.IsAdmin() && actor.UserID != course.TeacherID) {
			return nil, ErrCourseNotFound
		}
	}
	return course, nil
}

// Create 老师创建课程
func (s *CourseService) Create(teacherID uint, input CourseInput) (*models.Course, error) {
	if teacherID == 0 {
		return nil, ErrInvalidInput
	}
	course := &models.Course{
		TeacherID:                 teacherID,
		Status:                    constants.CourseStatusDraft,
		CancellationDeadlineHours: defaultCancellationWindow,
	}
	if err := applyCourseInput(course, input); err != nil {
		return nil, err
	}
	if err := s.courseRepo.Create(course); err != nil {
		return nil, err
	}
	return course, nil
}

// Update 更新课程，老师只能修改自己的课程
func (s *CourseService) Update(actor Actor, id uint, input CourseInput) (*models.Course, error) {
	if id == 0 {
		return nil, ErrInvalidInput
	}
	course, err := s.courseRepo.GetByID(id)
	if err != nil {
		return nil, err
	}
	if course == nil {
		return nil, ErrCourseNotFound
	}
	if !actor.IsAdmin() && course.TeacherID != actor.UserID {
		return nil, ErrCourseForbidden
	}
	if err := applyCourseInput(course, input); err != nil {
		return nil, err
	}
	if err := s.courseRepo.Update(course); err != nil {
		return nil, err
	}
	return course, nil
}

func applyCourseInput(course *models.Course, input CourseInput) error {
	name := strings.TrimSpace(input.Name)
	if name == "" || utf8.RuneCountInString(name) > maxCourseNameLength {
		return wrapf(ErrInvalidInput, "course name must be 1-%d characters", maxCourseNameLength)
	}
	instrument := strings.ToLower(strings.TrimSpace(input.Instrument))
	if instrument == "" {
		return wrapf(ErrInvalidInput, "instrument is required")
	}
	level := strings.ToLower(strings.TrimSpace(input.Level))
	switch level {
	case constants.CourseLevelBeginner, constants.CourseLevelIntermediate, constants.CourseLevelAdvanced:
	case "":
		level = constants.CourseLevelBeginner
	default:
		return wrapf(ErrInvalidInput, "unknown level %q", input.Level)
	}
	status := strings.ToLower(strings.TrimSpace(input.Status))
	switch status {
	case constants.CourseStatusActive, constants.CourseStatusInactive, constants.CourseStatusDraft:
	case "":
		status = course.Status
	default:
		return wrapf(ErrInvalidInput, "unknown status %q", input.Status)
	}
	if input.SingleLessonPrice.IsNegative() {
		return wrapf(ErrInvalidInput, "single lesson price must not be negative")
	}
	options, err := normalizePackageOptions(input.PackageOptions)
	if err != nil {
		return err
	}
	if status == constants.CourseStatusActive && !input.SingleLessonPrice.IsPositive() && len(options) == 0 {
		return wrapf(ErrInvalidInput, "an active course needs a single lesson price or a package option")
	}

	course.Name = name
	course.Intro = strings.TrimSpace(input.Intro)
	course.Instrument = instrument
	course.Level = level
	course.Status = status
	course.SingleLessonPrice = input.SingleLessonPrice
	course.PackageOptions = options
	if input.CancellationDeadlineHours != nil {
		if *input.CancellationDeadlineHours < 0 {
			return wrapf(ErrInvalidInput, "cancellation deadline must not be negative")
		}
		course.CancellationDeadlineHours = *input.CancellationDeadlineHours
	}
	return nil
}

func normalizePackageOptions(options []models.PackageOption) (models.PackageOptions, error) {
	result := make(models.PackageOptions, 0, len(options))
	seen := make(map[int]struct{}, len(options))
	for _, option := range options {
		if option.Lessons <= 1 {
			return nil, wrapf(ErrPackageInvalid, "package needs more than one lesson")
		}
		if !option.PricePerLesson.IsPositive() {
			return nil, wrapf(ErrPackageInvalid, "package price must be positive")
		}
		if option.ValidityDays < 0 {
			return nil, wrapf(ErrPackageInvalid, "validity days must not be negative")
		}
		if _, ok := seen[option.Lessons]; ok {
			return nil, wrapf(ErrPackageInvalid, "duplicate package of %d lessons", option.Lessons)
		}
		seen[option.Lessons] = struct{}{}
		result = append(result, option)
	}
	return result, nil
}
