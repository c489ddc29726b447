package models

import (
	"time"

	"gorm.io/gorm"
)

// Course 课程表
type Course struct {
	ID                        uint           `gorm:"primarykey" json:"id"`                                             // 主键
	TeacherID                 uint           `gorm:"index;not null" json:"teacher_id"`                                 // 授课老师
	Name                      string         `gorm:"type:varchar(200);not null" json:"name"`                           // 课程名称
	Intro                     string         `gorm:"type:text" json:"intro"`                                           // 课程简介
	Instrument                string         `gorm:"type:varchar(32);index;not null" json:"instrument"`                // 乐器
	Level                     string         `gorm:"type:varchar(32);not null" json:"level"`                           // 难度
	Status                    string         `gorm:"type:varchar(32);index;not null;default:'active'" json:"status"`   // 课程状态
	SingleLessonPrice         Money          `gorm:"type:decimal(20,2);not null;default:0" json:"single_lesson_price"` // 单堂价格
	PackageOptions            PackageOptions `gorm:"type:text" json:"package_options"`                                 // 套餐方案
	CancellationDeadlineHours int            `gorm:"not null;default:24" json:"cancellation_deadline_hours"`           // 取消预约需提前小时数
	AverageRating             float64        `gorm:"not null;default:0" json:"average_rating"`                         // 公开评价的平均整体评分
	ReviewCount               int            `gorm:"not null;default:0" json:"review_count"`                           // 公开评价数
	CreatedAt                 time.Time      `gorm:"index" json:"created_at"`                                          // 创建时间
	UpdatedAt                 time.Time      `gorm:"index" json:"updated_at"`                                          // 更新时间
	DeletedAt                 gorm.DeletedAt `gorm:"index" json:"-"`                                                   // 软删除时间

	Teacher *User `gorm:"foreignKey:TeacherID" json:"teacher,omitempty"` // 授课老师
}

// TableName 指定表名
func (Course) TableName() string {
	return "courses"
}
