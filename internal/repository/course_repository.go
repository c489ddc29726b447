package repository

import (
	"errors"
	"strings"

	"github.com/musictutor-next/internal/models"

	"gorm.io/gorm"
)

// CourseRepository 课程数据访问接口
type CourseRepository interface {
	GetByID(id uint) (*models.Course, error)
	ListByIDs(ids []uint) ([]models.Course, error)
	Create(course *models.Course) error
	Update(course *models.Course) error
	List(filter CourseListFilter) ([]models.Course, int64, error)
	UpdateRatingStats(courseID uint, average float64, count int) error
	WithTx(tx *gorm.DB) *GormCourseRepository
}

// GormCourseRepository GORM 实现
type GormCourseRepository struct {
	db *gorm.DB
}

// NewCourseRepository 创建课程仓库
func NewCourseRepository(db *gorm.DB) *GormCourseRepository {
	return &GormCourseRepository{db: db}
}

// WithTx 绑定事务
func (r *GormCourseRepository) WithTx(tx *gorm.DB) *GormCourseRepository {
	if tx == nil {
		return r
	}
	return &GormCourseRepository{db: tx}
}

// GetByID 根据 ID 获取课程
func (r *GormCourseRepository) GetByID(id uint) (*models.Course, error) {
	var course models.Course
	if err := r.db.First(&course, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &course, nil
}

// ListByIDs 批量获取课程
func (r *GormCourseRepository) ListByIDs(ids []uint) ([]models.Course, error) {
	if len(ids) == 0 {
		return []models.Course{}, nil
	}
	var courses []models.Course
	if err := r.db.Where("id IN ?", ids).Find(&courses).Error; err != nil {
		return nil, err
	}
	return courses, nil
}

// Create 创建课程
func (r *GormCourseRepository) Create(course *models.Course) error {
	return r.db.Create(course).Error
}

// Update 更新课程（评分统计只能通过 UpdateRatingStats 变更）
func (r *GormCourseRepository) Update(course *models.Course) error {
	return r.db.Omit("average_rating", "review_count").Save(course).Error
}

// UpdateRatingStats 回写课程评分统计
func (r *GormCourseRepository) UpdateRatingStats(courseID uint, average float64, count int) error {
	return r.db.Model(&models.Course{}).
		Where("id = ?", courseID).
		UpdateColumns(map[string]interface{}{
			"average_rating": average,
			"review_count":   count,
		}).Error
}

// List 课程列表
func (r *GormCourseRepository) List(filter CourseListFilter) ([]models.Course, int64, error) {
	query := r.db.Model(&models.Course{})

	if filter.TeacherID > 0 {
		query = query.Where("teacher_id = ?", filter.TeacherID)
	}
	if filter.Instrument != "" {
		query = query.Where("instrument = ?", filter.Instrument)
	}
	if filter.Level != "" {
		query = query.Where("level = ?", filter.Level)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if search := strings.TrimSpace(filter.Search); search != "" {
		condition, argCount := buildLikeCondition(r.db, []string{"name", "intro"})
		query = query.Where(condition, repeatLikeArgs("%"+search+"%", argCount)...)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	query = applyPagination(query, filter.Page, filter.PageSize)

	var courses []models.Course
	if err := query.Order("id DESC").Find(&courses).Error; err != nil {
		return nil, 0, err
	}
	return courses, total, nil
}
