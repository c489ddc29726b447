package repository

import (
	"github.com/musictutor-next/internal/models"

	"gorm.io/gorm"
)

// AvailabilityRepository 老师可预约时段数据访问接口
type AvailabilityRepository interface {
	ListByTeacher(teacherID uint) ([]models.TeacherAvailability, error)
	ReplaceForTeacher(teacherID uint, slots []models.TeacherAvailability) error
	WithTx(tx *gorm.DB) *GormAvailabilityRepository
}

// GormAvailabilityRepository GORM 实现
type GormAvailabilityRepository struct {
	db *gorm.DB
}

// NewAvailabilityRepository 创建可预约时段仓库
func NewAvailabilityRepository(db *gorm.DB) *GormAvailabilityRepository {
	return &GormAvailabilityRepository{db: db}
}

// WithTx 绑定事务
func (r *GormAvailabilityRepository) WithTx(tx *gorm.DB) *GormAvailabilityRepository {
	if tx == nil {
		return r
	}
	return &GormAvailabilityRepository{db: tx}
}

// ListByTeacher 获取老师的全部时段
func (r *GormAvailabilityRepository) ListByTeacher(teacherID uint) ([]models.TeacherAvailability, error) {
	var slots []models.TeacherAvailability
	if err := r.db.Where("teacher_id = ?", teacherID).
		Order("day_of_week asc, start_time asc").
		Find(&slots).Error; err != nil {
		return nil, err
	}
	return slots, nil
}

// ReplaceForTeacher 整体替换老师的时段
func (r *GormAvailabilityRepository) ReplaceForTeacher(teacherID uint, slots []models.TeacherAvailability) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("teacher_id = ?", teacherID).Delete(&models.TeacherAvailability{}).Error; err != nil {
			return err
		}
		if len(slots) == 0 {
			return nil
		}
		for i := range slots {
			slots[i].ID = 0
			slots[i].TeacherID = teacherID
		}
		return tx.Create(&slots).Error
	})
}
