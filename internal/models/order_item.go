package models

import "time"

// OrderItem 订单项（购买的课时包）
type OrderItem struct {
	ID               uint       `gorm:"primarykey" json:"id"`                                          // 主键
	OrderID          uint       `gorm:"index;not null" json:"order_id"`                                // 订单ID
	CourseID         uint       `gorm:"index;not null" json:"course_id"`                               // 课程ID
	TeacherID        uint       `gorm:"index;not null" json:"teacher_id"`                              // 老师ID
	CourseName       string     `gorm:"type:varchar(200)" json:"course_name"`                          // 课程名称快照
	PackageType      string     `gorm:"type:varchar(20);not null" json:"package_type"`                 // 购买方案
	Lessons          int        `gorm:"not null" json:"lessons"`                                       // 购买课时数
	PricePerLesson   Money      `gorm:"type:decimal(20,2);not null;default:0" json:"price_per_lesson"` // 单节价格
	TotalPrice       Money      `gorm:"type:decimal(20,2);not null;default:0" json:"total_price"`      // 小计
	ValidityDays     int        `gorm:"not null;default:0" json:"validity_days"`                       // 有效天数
	RemainingLessons int        `gorm:"not null;default:0" json:"remaining_lessons"`                   // 剩余课时
	ValidFrom        *time.Time `json:"valid_from"`                                                    // 生效时间（支付后）
	ValidUntil       *time.Time `gorm:"index" json:"valid_until"`                                      // 到期时间
	CreatedAt        time.Time  `json:"created_at"`                                                    // 创建时间
	UpdatedAt        time.Time  `json:"updated_at"`                                                    // 更新时间
}

// TableName 指定表名
func (OrderItem) TableName() string {
	return "order_items"
}
