package repository

import (
	"errors"
	"time"

	"github.com/musictutor-next/internal/constants"
	"github.com/musictutor-next/internal/models"

	"gorm.io/gorm"
)

// RedemptionRepository 优惠券核销流水数据访问接口
type RedemptionRepository interface {
	Create(redemption *models.CouponRedemption) error
	CountApplied(couponID uint) (int64, error)
	CountAppliedByUser(couponID, userID uint) (int64, error)
	GetAppliedByOrder(orderID uint) (*models.CouponRedemption, error)
	MarkReleased(id uint, at time.Time) (bool, error)
	ExistsForCoupon(couponID uint) (bool, error)
	WithTx(tx *gorm.DB) *GormRedemptionRepository
}

// GormRedemptionRepository GORM 实现
type GormRedemptionRepository struct {
	db *gorm.DB
}

// NewRedemptionRepository 创建核销流水仓库
func NewRedemptionRepository(db *gorm.DB) *GormRedemptionRepository {
	return &GormRedemptionRepository{db: db}
}

// WithTx 绑定事务
func (r *GormRedemptionRepository) WithTx(tx *gorm.DB) *GormRedemptionRepository {
	if tx == nil {
		return r
	}
	return &GormRedemptionRepository{db: tx}
}

// Create 追加核销记录
func (r *GormRedemptionRepository) Create(redemption *models.CouponRedemption) error {
	return r.db.Create(redemption).Error
}

// CountApplied 统计优惠券有效核销次数
func (r *GormRedemptionRepository) CountApplied(couponID uint) (int64, error) {
	var count int64
	err := r.db.Model(&models.CouponRedemption{}).
		Where("coupon_id = ? AND status = ?", couponID, constants.RedemptionStatusApplied).
		Count(&count).Error
	return count, err
}

// CountAppliedByUser 统计用户对某优惠券的有效核销次数
func (r *GormRedemptionRepository) CountAppliedByUser(couponID, userID uint) (int64, error) {
	var count int64
	err := r.db.Model(&models.CouponRedemption{}).
		Where("coupon_id = ? AND user_id = ? AND status = ?", couponID, userID, constants.RedemptionStatusApplied).
		Count(&count).Error
	return count, err
}

// GetAppliedByOrder 获取订单的有效核销记录
func (r *GormRedemptionRepository) GetAppliedByOrder(orderID uint) (*models.CouponRedemption, error) {
	var redemption models.CouponRedemption
	err := r.db.Where("order_id = ? AND status = ?", orderID, constants.RedemptionStatusApplied).First(&redemption).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &redemption, nil
}

// MarkReleased 将核销记录标记为已释放，已释放时返回 false
func (r *GormRedemptionRepository) MarkReleased(id uint, at time.Time) (bool, error) {
	result := r.db.Model(&models.CouponRedemption{}).
		Where("id = ? AND status = ?", id, constants.RedemptionStatusApplied).
		Updates(map[string]interface{}{
			"status":      constants.RedemptionStatusReleased,
			"released_at": at,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// ExistsForCoupon 优惠券是否有过核销（含已释放）
func (r *GormRedemptionRepository) ExistsForCoupon(couponID uint) (bool, error) {
	var count int64
	if err := r.db.Model(&models.CouponRedemption{}).Where("coupon_id = ?", couponID).Limit(1).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}
