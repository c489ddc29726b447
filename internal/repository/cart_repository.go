package repository

import (
	"errors"

	"github.com/musictutor-next/internal/models"

	"gorm.io/gorm"
)

// CartRepository 购物车数据访问接口
type CartRepository interface {
	GetByID(id uint) (*models.Cart, error)
	GetByStudent(studentID uint) (*models.Cart, error)
	LockByID(id uint) (*models.Cart, error)
	Create(cart *models.Cart) error
	SaveSummary(cart *models.Cart) error
	GetItem(cartID, courseID uint) (*models.CartItem, error)
	CreateItem(item *models.CartItem) error
	UpdateItem(item *models.CartItem) error
	DeleteItem(cartID, courseID uint) (bool, error)
	ClearItems(cartID uint) error
	NextPosition(cartID uint) (int, error)
	WithTx(tx *gorm.DB) *GormCartRepository
}

// GormCartRepository GORM 实现
type GormCartRepository struct {
	db *gorm.DB
}

// NewCartRepository 创建购物车仓库
func NewCartRepository(db *gorm.DB) *GormCartRepository {
	return &GormCartRepository{db: db}
}

// WithTx 绑定事务
func (r *GormCartRepository) WithTx(tx *gorm.DB) *GormCartRepository {
	if tx == nil {
		return r
	}
	return &GormCartRepository{db: tx}
}

func (r *GormCartRepository) withItems(query *gorm.DB) *gorm.DB {
	return query.Preload("Items", func(db *gorm.DB) *gorm.DB {
		return db.Order("position ASC, id ASC")
	})
}

func (r *GormCartRepository) first(query *gorm.DB) (*models.Cart, error) {
	var cart models.Cart
	if err := r.withItems(query).First(&cart).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &cart, nil
}

// GetByID 根据 ID 获取购物车（含明细）
func (r *GormCartRepository) GetByID(id uint) (*models.Cart, error) {
	return r.first(r.db.Where("id = ?", id))
}

// GetByStudent 获取学生的购物车（含明细）
func (r *GormCartRepository) GetByStudent(studentID uint) (*models.Cart, error) {
	return r.first(r.db.Where("student_id = ?", studentID))
}

// LockByID 事务内锁定购物车行，串行化同一学生的结账
func (r *GormCartRepository) LockByID(id uint) (*models.Cart, error) {
	return r.first(forUpdate(r.db).Where("id = ?", id))
}

// Create 创建购物车
func (r *GormCartRepository) Create(cart *models.Cart) error {
	return r.db.Omit("Items", "Coupon").Create(cart).Error
}

// SaveSummary 保存购物车金额与优惠券信息
func (r *GormCartRepository) SaveSummary(cart *models.Cart) error {
	if cart == nil {
		return nil
	}
	updates := map[string]interface{}{
		"coupon_id":       cart.CouponID,
		"subtotal":        cart.Subtotal,
		"discount_amount": cart.DiscountAmount,
		"total":           cart.Total,
		"coupon_info":     cart.CouponInfo,
	}
	return r.db.Model(&models.Cart{}).Where("id = ?", cart.ID).Updates(updates).Error
}

// GetItem 获取购物车中的某门课程
func (r *GormCartRepository) GetItem(cartID, courseID uint) (*models.CartItem, error) {
	var item models.CartItem
	if err := r.db.Where("cart_id = ? AND course_id = ?", cartID, courseID).First(&item).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &item, nil
}

// CreateItem 新增购物车项
func (r *GormCartRepository) CreateItem(item *models.CartItem) error {
	return r.db.Create(item).Error
}

// UpdateItem 更新购物车项
func (r *GormCartRepository) UpdateItem(item *models.CartItem) error {
	return r.db.Save(item).Error
}

// DeleteItem 删除购物车项
func (r *GormCartRepository) DeleteItem(cartID, courseID uint) (bool, error) {
	result := r.db.Where("cart_id = ? AND course_id = ?", cartID, courseID).Delete(&models.CartItem{})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// ClearItems 清空购物车
func (r *GormCartRepository) ClearItems(cartID uint) error {
	return r.db.Where("cart_id = ?", cartID).Delete(&models.CartItem{}).Error
}

// NextPosition 获取下一个排序位置
func (r *GormCartRepository) NextPosition(cartID uint) (int, error) {
	var maxPosition *int
	if err := r.db.Model(&models.CartItem{}).Where("cart_id = ?", cartID).
		Select("MAX(position)").Scan(&maxPosition).Error; err != nil {
		return 0, err
	}
	if maxPosition == nil {
		return 0, nil
	}
	return *maxPosition + 1, nil
}
