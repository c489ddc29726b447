package repository

import (
	"errors"
	"time"

	"github.com/musictutor-next/internal/constants"
	"github.com/musictutor-next/internal/models"

	"gorm.io/gorm"
)

// AppointmentRepository 预约数据访问接口
type AppointmentRepository interface {
	Create(appointment *models.Appointment) error
	GetByID(id uint) (*models.Appointment, error)
	List(filter AppointmentListFilter) ([]models.Appointment, int64, error)
	CountOpenByOrderItem(orderItemID uint, statuses []string) (int64, error)
	CountTeacherOverlap(teacherID uint, start, end time.Time, statuses []string) (int64, error)
	TransitionStatus(id uint, from []string, to string, updates map[string]interface{}) (bool, error)
	CancelFutureByOrder(orderID uint, after time.Time, statuses []string) error
	WithTx(tx *gorm.DB) *GormAppointmentRepository
}

// GormAppointmentRepository GORM 实现
type GormAppointmentRepository struct {
	db *gorm.DB
}

// NewAppointmentRepository 创建预约仓库
func NewAppointmentRepository(db *gorm.DB) *GormAppointmentRepository {
	return &GormAppointmentRepository{db: db}
}

// WithTx 绑定事务
func (r *GormAppointmentRepository) WithTx(tx *gorm.DB) *GormAppointmentRepository {
	if tx == nil {
		return r
	}
	return &GormAppointmentRepository{db: tx}
}

// Create 创建预约
func (r *GormAppointmentRepository) Create(appointment *models.Appointment) error {
	return r.db.Create(appointment).Error
}

// GetByID 根据 ID 获取预约
func (r *GormAppointmentRepository) GetByID(id uint) (*models.Appointment, error) {
	var appointment models.Appointment
	if err := r.db.First(&appointment, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &appointment, nil
}

// List 预约列表
func (r *GormAppointmentRepository) List(filter AppointmentListFilter) ([]models.Appointment, int64, error) {
	query := r.db.Model(&models.Appointment{})
	if filter.StudentID != 0 {
		query = query.Where("student_id = ?", filter.StudentID)
	}
	if filter.TeacherID != 0 {
		query = query.Where("teacher_id = ?", filter.TeacherID)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.From != nil {
		query = query.Where("start_time >= ?", *filter.From)
	}
	if filter.To != nil {
		query = query.Where("start_time <= ?", *filter.To)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	query = applyPagination(query, filter.Page, filter.PageSize)

	var appointments []models.Appointment
	if err := query.Order("start_time asc").Find(&appointments).Error; err != nil {
		return nil, 0, err
	}
	return appointments, total, nil
}

// CountOpenByOrderItem 统计占用某订单项课时的未结束预约
func (r *GormAppointmentRepository) CountOpenByOrderItem(orderItemID uint, statuses []string) (int64, error) {
	var count int64
	err := r.db.Model(&models.Appointment{}).
		Where("order_item_id = ? AND status IN ?", orderItemID, statuses).
		Count(&count).Error
	return count, err
}

// CountTeacherOverlap 统计老师在时间段内的冲突预约
func (r *GormAppointmentRepository) CountTeacherOverlap(teacherID uint, start, end time.Time, statuses []string) (int64, error) {
	var count int64
	err := r.db.Model(&models.Appointment{}).
		Where("teacher_id = ? AND status IN ?", teacherID, statuses).
		Where("start_time < ? AND end_time > ?", end, start).
		Count(&count).Error
	return count, err
}

// TransitionStatus 按当前状态做 CAS 更新
func (r *GormAppointmentRepository) TransitionStatus(id uint, from []string, to string, updates map[string]interface{}) (bool, error) {
	if updates == nil {
		updates = map[string]interface{}{}
	}
	updates["status"] = to
	updates["updated_at"] = time.Now()
	result := r.db.Model(&models.Appointment{}).
		Where("id = ? AND status IN ?", id, from).
		Updates(updates)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// CancelFutureByOrder 取消订单下尚未开始的预约
func (r *GormAppointmentRepository) CancelFutureByOrder(orderID uint, after time.Time, statuses []string) error {
	return r.db.Model(&models.Appointment{}).
		Where("order_id = ? AND start_time > ? AND status IN ?", orderID, after, statuses).
		Updates(map[string]interface{}{
			"status":       constants.AppointmentStatusCancelled,
			"cancelled_at": after,
			"updated_at":   after,
		}).Error
}
