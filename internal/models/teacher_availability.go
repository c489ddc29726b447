package models

import "time"

// TeacherAvailability 老师每周可预约时段，时间为 HH:MM（按应用时区解释）
type TeacherAvailability struct {
	ID        uint      `gorm:"primarykey" json:"id"`                       // 主键
	TeacherID uint      `gorm:"index;not null" json:"teacher_id"`           // 老师ID
	DayOfWeek int       `gorm:"not null" json:"day_of_week"`                // 星期（0 为周日）
	StartTime string    `gorm:"type:varchar(5);not null" json:"start_time"` // 开始时间
	EndTime   string    `gorm:"type:varchar(5);not null" json:"end_time"`   // 结束时间
	CreatedAt time.Time `json:"created_at"`                                 // 创建时间
	UpdatedAt time.Time `json:"updated_at"`                                 // 更新时间
}

// TableName 指定表名
func (TeacherAvailability) TableName() string {
	return "teacher_availabilities"
}
