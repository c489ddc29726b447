package models

import "time"

// CouponRedemption 优惠券核销流水（只追加，释放时仅变更状态）
type CouponRedemption struct {
	ID              uint       `gorm:"primarykey" json:"id"`                                                      // 主键
	CouponID        uint       `gorm:"uniqueIndex:idx_redemption_coupon_order;index;not null" json:"coupon_id"`   // 优惠券ID
	UserID          uint       `gorm:"index;not null" json:"user_id"`                                             // 用户ID
	OrderID         uint       `gorm:"uniqueIndex:idx_redemption_coupon_order;not null" json:"order_id"`          // 订单ID
	DiscountApplied Money      `gorm:"type:decimal(20,2);not null;default:0" json:"discount_applied"`             // 实际优惠金额
	Status          string     `gorm:"type:varchar(20);index;not null;default:'applied'" json:"status"`           // 状态（applied/released）
	CreatedAt       time.Time  `gorm:"index" json:"created_at"`                                                   // 核销时间
	ReleasedAt      *time.Time `json:"released_at,omitempty"`                                                     // 释放时间
}

// TableName 指定表名
func (CouponRedemption) TableName() string {
	return "coupon_redemptions"
}
