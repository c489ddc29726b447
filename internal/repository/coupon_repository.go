package repository

import (
	"errors"
	"strings"

	"github.com/musictutor-next/internal/models"

	"gorm.io/gorm"
)

// CouponRepository 优惠券数据访问接口
type CouponRepository interface {
	GetByID(id uint) (*models.Coupon, error)
	GetByCode(code string) (*models.Coupon, error)
	Create(coupon *models.Coupon) error
	Update(coupon *models.Coupon) error
	Delete(id uint) error
	List(filter CouponListFilter) ([]models.Coupon, int64, error)
	TryConsume(id uint) (bool, error)
	Release(id uint) error
	WithTx(tx *gorm.DB) *GormCouponRepository
}

// GormCouponRepository GORM 实现
type GormCouponRepository struct {
	db *gorm.DB
}

// NewCouponRepository 创建优惠券仓库
func NewCouponRepository(db *gorm.DB) *GormCouponRepository {
	return &GormCouponRepository{db: db}
}

// WithTx 绑定事务
func (r *GormCouponRepository) WithTx(tx *gorm.DB) *GormCouponRepository {
	if tx == nil {
		return r
	}
	return &GormCouponRepository{db: tx}
}

// GetByID 根据ID获取优惠券
func (r *GormCouponRepository) GetByID(id uint) (*models.Coupon, error) {
	var coupon models.Coupon
	if err := r.db.First(&coupon, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &coupon, nil
}

// GetByCode 根据优惠码获取优惠券
func (r *GormCouponRepository) GetByCode(code string) (*models.Coupon, error) {
	var coupon models.Coupon
	if err := r.db.Where("code = ?", code).First(&coupon).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &coupon, nil
}

// Create 创建优惠券
func (r *GormCouponRepository) Create(coupon *models.Coupon) error {
	return r.db.Create(coupon).Error
}

// Update 更新优惠券（不覆盖 used_count，计数只能通过 TryConsume/Release 变更）
func (r *GormCouponRepository) Update(coupon *models.Coupon) error {
	return r.db.Model(coupon).Select("*").Omit("used_count", "created_at", "created_by").Updates(coupon).Error
}

// Delete 物理删除优惠券，删除后优惠码可重新使用
func (r *GormCouponRepository) Delete(id uint) error {
	return r.db.Delete(&models.Coupon{}, id).Error
}

// List 获取优惠券列表
func (r *GormCouponRepository) List(filter CouponListFilter) ([]models.Coupon, int64, error) {
	var coupons []models.Coupon
	query := r.db.Model(&models.Coupon{})

	if code := strings.TrimSpace(filter.Code); code != "" {
		condition, argCount := buildLikeCondition(r.db, []string{"code"})
		query = query.Where(condition, repeatLikeArgs("%"+strings.ToUpper(code)+"%", argCount)...)
	}
	if filter.IsActive != nil {
		query = query.Where("is_active = ?", *filter.IsActive)
	}
	if filter.ApplicableCourse > 0 {
		condition, args := idListContainsCondition("applicable_course_ids", filter.ApplicableCourse)
		query = query.Where(condition, args...)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	query = applyPagination(query, filter.Page, filter.PageSize)

	if err := query.Order("id desc").Find(&coupons).Error; err != nil {
		return nil, 0, err
	}
	return coupons, total, nil
}

// TryConsume 原子占用一次使用名额，名额已满或已停用时返回 false
func (r *GormCouponRepository) TryConsume(id uint) (bool, error) {
	result := r.db.Model(&models.Coupon{}).
		Where("id = ? AND is_active = ?", id, true).
		Where("usage_limit_total = 0 OR used_count < usage_limit_total").
		UpdateColumn("used_count", gorm.Expr("used_count + 1"))
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// Release 归还一次使用名额
func (r *GormCouponRepository) Release(id uint) error {
	return r.db.Model(&models.Coupon{}).
		Where("id = ?", id).
		Where("used_count >= ?", 1).
		UpdateColumn("used_count", gorm.Expr("used_count - ?", 1)).Error
}
