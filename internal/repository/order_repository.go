package repository

import (
	"errors"
	"time"

	"github.com/musictutor-next/internal/constants"
	"github.com/musictutor-next/internal/models"

	"gorm.io/gorm"
)

// OrderRepository 订单数据访问接口
type OrderRepository interface {
	Create(order *models.Order, items []models.OrderItem) error
	GetByID(id uint) (*models.Order, error)
	GetByIDAndStudent(id, studentID uint) (*models.Order, error)
	GetByOrderNo(orderNo string) (*models.Order, error)
	List(filter OrderListFilter) ([]models.Order, int64, error)
	TransitionStatus(id uint, from []string, to string, updates map[string]interface{}) (bool, error)
	ListProcessingBefore(before time.Time, limit int) ([]models.Order, error)
	ListExpiredPending(now time.Time, limit int) ([]models.Order, error)
	GetItem(id uint) (*models.OrderItem, error)
	LockItem(id uint) (*models.OrderItem, error)
	ActivateItems(orderID uint, paidAt time.Time, defaultValidityDays int) error
	ConsumeLesson(itemID uint) (bool, error)
	ZeroRemainingLessons(orderID uint) error
	WithTx(tx *gorm.DB) *GormOrderRepository
}

// GormOrderRepository GORM 实现
type GormOrderRepository struct {
	db *gorm.DB
}

// NewOrderRepository 创建订单仓库
func NewOrderRepository(db *gorm.DB) *GormOrderRepository {
	return &GormOrderRepository{db: db}
}

// WithTx 绑定事务
func (r *GormOrderRepository) WithTx(tx *gorm.DB) *GormOrderRepository {
	if tx == nil {
		return r
	}
	return &GormOrderRepository{db: tx}
}

// Create 创建订单与订单项
func (r *GormOrderRepository) Create(order *models.Order, items []models.OrderItem) error {
	if err := r.db.Omit("Items").Create(order).Error; err != nil {
		return err
	}
	for i := range items {
		items[i].OrderID = order.ID
	}
	if len(items) > 0 {
		if err := r.db.Create(&items).Error; err != nil {
			return err
		}
	}
	order.Items = items
	return nil
}

func (r *GormOrderRepository) first(query *gorm.DB) (*models.Order, error) {
	var order models.Order
	if err := query.Preload("Items").First(&order).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &order, nil
}

// GetByID 根据 ID 获取订单
func (r *GormOrderRepository) GetByID(id uint) (*models.Order, error) {
	return r.first(r.db.Where("id = ?", id))
}

// GetByIDAndStudent 获取学生自己的订单
func (r *GormOrderRepository) GetByIDAndStudent(id, studentID uint) (*models.Order, error) {
	return r.first(r.db.Where("id = ? AND student_id = ?", id, studentID))
}

// GetByOrderNo 根据订单号获取订单
func (r *GormOrderRepository) GetByOrderNo(orderNo string) (*models.Order, error) {
	return r.first(r.db.Where("order_no = ?", orderNo))
}

// List 订单列表，StudentID 为 0 时查询全部
func (r *GormOrderRepository) List(filter OrderListFilter) ([]models.Order, int64, error) {
	var orders []models.Order
	query := r.db.Model(&models.Order{})

	if filter.StudentID != 0 {
		query = query.Where("student_id = ?", filter.StudentID)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.OrderNo != "" {
		query = query.Where("order_no = ?", filter.OrderNo)
	}
	if filter.CreatedFrom != nil {
		query = query.Where("created_at >= ?", *filter.CreatedFrom)
	}
	if filter.CreatedTo != nil {
		query = query.Where("created_at <= ?", *filter.CreatedTo)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	query = applyPagination(query, filter.Page, filter.PageSize)

	if err := query.Preload("Items").Order("id desc").Find(&orders).Error; err != nil {
		return nil, 0, err
	}
	return orders, total, nil
}

// TransitionStatus 按当前状态做 CAS 更新，状态已被他人变更时返回 false
func (r *GormOrderRepository) TransitionStatus(id uint, from []string, to string, updates map[string]interface{}) (bool, error) {
	if updates == nil {
		updates = map[string]interface{}{}
	}
	updates["status"] = to
	updates["updated_at"] = time.Now()
	result := r.db.Model(&models.Order{}).
		Where("id = ? AND status IN ?", id, from).
		Updates(updates)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// ListProcessingBefore 获取长时间停留在 processing 的订单
func (r *GormOrderRepository) ListProcessingBefore(before time.Time, limit int) ([]models.Order, error) {
	var orders []models.Order
	query := r.db.Where("status = ? AND updated_at < ?", constants.OrderStatusProcessing, before).Order("updated_at asc")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&orders).Error; err != nil {
		return nil, err
	}
	return orders, nil
}

// ListExpiredPending 获取已过支付截止时间的待支付订单
func (r *GormOrderRepository) ListExpiredPending(now time.Time, limit int) ([]models.Order, error) {
	var orders []models.Order
	query := r.db.Where("status = ? AND expires_at IS NOT NULL AND expires_at < ?", constants.OrderStatusPending, now).Order("expires_at asc")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&orders).Error; err != nil {
		return nil, err
	}
	return orders, nil
}

// GetItem 获取订单项
func (r *GormOrderRepository) GetItem(id uint) (*models.OrderItem, error) {
	var item models.OrderItem
	if err := r.db.First(&item, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &item, nil
}

// LockItem 事务内锁定订单项，串行化同一课时包的预约
func (r *GormOrderRepository) LockItem(id uint) (*models.OrderItem, error) {
	var item models.OrderItem
	if err := forUpdate(r.db).Where("id = ?", id).First(&item).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &item, nil
}

// ActivateItems 支付成功后写入课时有效期
func (r *GormOrderRepository) ActivateItems(orderID uint, paidAt time.Time, defaultValidityDays int) error {
	var items []models.OrderItem
	if err := r.db.Where("order_id = ?", orderID).Find(&items).Error; err != nil {
		return err
	}
	for _, item := range items {
		days := item.ValidityDays
		if days <= 0 {
			days = defaultValidityDays
		}
		updates := map[string]interface{}{
			"valid_from": paidAt,
		}
		if days > 0 {
			updates["valid_until"] = paidAt.AddDate(0, 0, days)
		}
		if err := r.db.Model(&models.OrderItem{}).Where("id = ?", item.ID).Updates(updates).Error; err != nil {
			return err
		}
	}
	return nil
}

// ConsumeLesson 扣减一节剩余课时，余额为 0 时返回 false
func (r *GormOrderRepository) ConsumeLesson(itemID uint) (bool, error) {
	result := r.db.Model(&models.OrderItem{}).
		Where("id = ? AND remaining_lessons > 0", itemID).
		UpdateColumn("remaining_lessons", gorm.Expr("remaining_lessons - 1"))
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// ZeroRemainingLessons 退款后清空剩余课时
func (r *GormOrderRepository) ZeroRemainingLessons(orderID uint) error {
	return r.db.Model(&models.OrderItem{}).Where("order_id = ?", orderID).
		UpdateColumn("remaining_lessons", 0).Error
}
