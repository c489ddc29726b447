package models

import "time"

// Cart 学生购物车（每个学生一个）
type Cart struct {
	ID             uint       `gorm:"primarykey" json:"id"`                                         // 主键
	StudentID      uint       `gorm:"uniqueIndex;not null" json:"student_id"`                       // 学生ID
	CouponID       *uint      `gorm:"index" json:"coupon_id,omitempty"`                             // 已套用的优惠券
	Subtotal       Money      `gorm:"type:decimal(20,2);not null;default:0" json:"subtotal"`        // 小计
	DiscountAmount Money      `gorm:"type:decimal(20,2);not null;default:0" json:"discount_amount"` // 优惠金额
	Total          Money      `gorm:"type:decimal(20,2);not null;default:0" json:"total"`           // 应付金额
	CouponInfo     CouponInfo `gorm:"type:text" json:"coupon_info"`                                 // 优惠券校验结果
	CreatedAt      time.Time  `json:"created_at"`                                                   // 创建时间
	UpdatedAt      time.Time  `json:"updated_at"`                                                   // 更新时间

	Items  []CartItem `gorm:"foreignKey:CartID" json:"items"`                    // 购物车项
	Coupon *Coupon    `gorm:"foreignKey:CouponID" json:"coupon,omitempty"`       // 优惠券
}

// TableName 指定表名
func (Cart) TableName() string {
	return "carts"
}

// CartItem 购物车项
type CartItem struct {
	ID             uint      `gorm:"primarykey" json:"id"`                                                    // 主键
	CartID         uint      `gorm:"uniqueIndex:idx_cart_item_course;not null" json:"cart_id"`                // 购物车ID
	CourseID       uint      `gorm:"uniqueIndex:idx_cart_item_course;not null" json:"course_id"`              // 课程ID
	TeacherID      uint      `gorm:"index;not null" json:"teacher_id"`                                        // 老师ID
	CourseName     string    `gorm:"type:varchar(200)" json:"course_name"`                                    // 课程名称
	PackageType    string    `gorm:"type:varchar(20);not null" json:"package_type"`                           // 购买方案（single/package）
	Lessons        int       `gorm:"not null;default:1" json:"lessons"`                                       // 课时数
	PricePerLesson Money     `gorm:"type:decimal(20,2);not null;default:0" json:"price_per_lesson"`           // 单节价格
	TotalPrice     Money     `gorm:"type:decimal(20,2);not null;default:0" json:"total_price"`                // 小计
	ValidityDays   int       `gorm:"not null;default:0" json:"validity_days"`                                 // 有效天数
	Position       int       `gorm:"not null;default:0" json:"position"`                                      // 排序
	CreatedAt      time.Time `json:"created_at"`                                                              // 创建时间
	UpdatedAt      time.Time `json:"updated_at"`                                                              // 更新时间
}

// TableName 指定表名
func (CartItem) TableName() string {
	return "cart_items"
}
