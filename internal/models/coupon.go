package models

import "time"

// Coupon 优惠券
type Coupon struct {
	ID                   uint           `gorm:"primarykey" json:"id"`                                              // 主键
	Name                 string         `gorm:"type:varchar(100);not null" json:"name"`                            // 名称
	Code                 string         `gorm:"type:varchar(20);uniqueIndex;not null" json:"code"`                 // 优惠码（大写字母与数字）
	Description          string         `gorm:"type:varchar(500)" json:"description"`                              // 描述
	DiscountType         string         `gorm:"type:varchar(20);not null" json:"discount_type"`                    // 类型（percentage/fixed/free_lesson）
	DiscountValue        Money          `gorm:"type:decimal(20,2);not null" json:"discount_value"`                 // 数值（百分比或固定金额）
	MinimumPurchase      Money          `gorm:"type:decimal(20,2);not null;default:0" json:"minimum_purchase"`     // 使用门槛
	MaximumDiscount      Money          `gorm:"type:decimal(20,2);not null;default:0" json:"maximum_discount"`     // 最大优惠金额（0 表示不限制）
	StartsAt             time.Time      `gorm:"index;not null" json:"starts_at"`                                   // 生效时间
	ExpiresAt            time.Time      `gorm:"index;not null" json:"expires_at"`                                  // 失效时间
	UsageLimitTotal      int            `gorm:"not null;default:0" json:"usage_limit_total"`                       // 总使用上限（0 表示不限制）
	UsageLimitPerUser    int            `gorm:"not null;default:1" json:"usage_limit_per_user"`                    // 每人使用上限（0 表示不限制）
	UsedCount            int            `gorm:"not null;default:0" json:"used_count"`                              // 已使用次数
	ApplicableCourseIDs  IDList         `gorm:"type:text" json:"applicable_course_ids"`                            // 适用课程
	ApplicableTeacherIDs IDList         `gorm:"type:text" json:"applicable_teacher_ids"`                           // 适用老师
	IsActive             bool           `gorm:"not null;default:true" json:"is_active"`                            // 是否启用
	CreatedBy            uint           `gorm:"index" json:"created_by"`                                           // 创建人
	CreatedAt            time.Time      `gorm:"index" json:"created_at"`                                           // 创建时间
	UpdatedAt            time.Time      `gorm:"index" json:"updated_at"`                                           // 更新时间
}

// TableName 指定表名
func (Coupon) TableName() string {
	return "coupons"
}

// HasRestrictions 是否限定了适用范围
func (c *Coupon) HasRestrictions() bool {
	return len(c.ApplicableCourseIDs) > 0 || len(c.ApplicableTeacherIDs) > 0
}
