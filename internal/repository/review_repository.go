package repository

import (
	"errors"
	"time"

	"github.com/musictutor-next/internal/constants"
	"github.com/musictutor-next/internal/models"

	"gorm.io/gorm"
)

// ReviewRepository 课程评价数据访问接口
type ReviewRepository interface {
	Create(review *models.CourseReview) error
	GetByID(id uint) (*models.CourseReview, error)
	GetByAppointment(appointmentID uint) (*models.CourseReview, error)
	List(filter ReviewListFilter) ([]models.CourseReview, int64, error)
	UpdateStatus(id uint, status string) error
	UpdateResponse(id uint, content string, respondedAt time.Time) error
	CourseRatingStats(courseID uint) (float64, int, error)
	WithTx(tx *gorm.DB) *GormReviewRepository
}

// GormReviewRepository GORM 实现
type GormReviewRepository struct {
	db *gorm.DB
}

// NewReviewRepository 创建评价仓库
func NewReviewRepository(db *gorm.DB) *GormReviewRepository {
	return &GormReviewRepository{db: db}
}

// WithTx 绑定事务
func (r *GormReviewRepository) WithTx(tx *gorm.DB) *GormReviewRepository {
	if tx == nil {
		return r
	}
	return &GormReviewRepository{db: tx}
}

// Create 创建评价
func (r *GormReviewRepository) Create(review *models.CourseReview) error {
	return r.db.Create(review).Error
}

// GetByID 根据 ID 获取评价
func (r *GormReviewRepository) GetByID(id uint) (*models.CourseReview, error) {
	var review models.CourseReview
	if err := r.db.First(&review, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &review, nil
}

// GetByAppointment 根据预约获取评价
func (r *GormReviewRepository) GetByAppointment(appointmentID uint) (*models.CourseReview, error) {
	var review models.CourseReview
	if err := r.db.Where("appointment_id = ?", appointmentID).First(&review).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &review, nil
}

// List 评价列表
func (r *GormReviewRepository) List(filter ReviewListFilter) ([]models.CourseReview, int64, error) {
	query := r.db.Model(&models.CourseReview{})
	if filter.CourseID != 0 {
		query = query.Where("course_id = ?", filter.CourseID)
	}
	if filter.TeacherID != 0 {
		query = query.Where("teacher_id = ?", filter.TeacherID)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	query = applyPagination(query, filter.Page, filter.PageSize)

	var reviews []models.CourseReview
	if err := query.Order("created_at desc, id desc").Find(&reviews).Error; err != nil {
		return nil, 0, err
	}
	return reviews, total, nil
}

// UpdateStatus 更新评价状态
func (r *GormReviewRepository) UpdateStatus(id uint, status string) error {
	return r.db.Model(&models.CourseReview{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":     status,
			"updated_at": time.Now(),
		}).Error
}

// UpdateResponse 写入老师回复
func (r *GormReviewRepository) UpdateResponse(id uint, content string, respondedAt time.Time) error {
	return r.db.Model(&models.CourseReview{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"teacher_response": content,
			"responded_at":     respondedAt,
			"updated_at":       respondedAt,
		}).Error
}

// CourseRatingStats 统计课程公开评价的平均整体评分与数量
func (r *GormReviewRepository) CourseRatingStats(courseID uint) (float64, int, error) {
	var row struct {
		Average float64
		Total   int
	}
	err := r.db.Model(&models.CourseReview{}).
		Select("COALESCE(AVG(overall), 0) AS average, COUNT(*) AS total").
		Where("course_id = ? AND status = ?", courseID, constants.ReviewStatusPublished).
		Scan(&row).Error
	if err != nil {
		return 0, 0, err
	}
	return row.Average, row.Total, nil
}
