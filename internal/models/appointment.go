package models

import "time"

// Appointment 上课预约
type Appointment struct {
	ID           uint       `gorm:"primarykey" json:"id"`                                          // 主键
	TeacherID    uint       `gorm:"index;not null" json:"teacher_id"`                              // 老师ID
	StudentID    uint       `gorm:"index;not null" json:"student_id"`                              // 学生ID
	CourseID     uint       `gorm:"index;not null" json:"course_id"`                               // 课程ID
	OrderID      uint       `gorm:"index;not null" json:"order_id"`                                // 订单ID
	OrderItemID  uint       `gorm:"index;not null" json:"order_item_id"`                           // 订单项ID（扣减课时来源）
	StartTime    time.Time  `gorm:"index;not null" json:"start_time"`                              // 开始时间
	EndTime      time.Time  `gorm:"not null" json:"end_time"`                                      // 结束时间
	Status       string     `gorm:"type:varchar(20);index;not null" json:"status"`                 // 预约状态
	LocationType string     `gorm:"type:varchar(20);not null;default:'online'" json:"location_type"` // 上课方式
	Location     string     `gorm:"type:varchar(500)" json:"location,omitempty"`                   // 地址或会议链接
	Notes        string     `gorm:"type:varchar(500)" json:"notes,omitempty"`                      // 备注
	CompletedAt  *time.Time `json:"completed_at"`                                                  // 完成时间
	CancelledAt  *time.Time `json:"cancelled_at"`                                                  // 取消时间
	CreatedAt    time.Time  `gorm:"index" json:"created_at"`                                       // 创建时间
	UpdatedAt    time.Time  `json:"updated_at"`                                                    // 更新时间
}

// TableName 指定表名
func (Appointment) TableName() string {
	return "appointments"
}
