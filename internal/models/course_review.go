package models

import "time"

// CourseReview 课程评价，每个已完成的预约最多一条
type CourseReview struct {
	ID               uint       `gorm:"primarykey" json:"id"`                                                   // 主键
	AppointmentID    uint       `gorm:"uniqueIndex;not null" json:"appointment_id"`                             // 预约ID
	CourseID         uint       `gorm:"index:idx_review_course_status;not null" json:"course_id"`               // 课程ID
	TeacherID        uint       `gorm:"index;not null" json:"teacher_id"`                                       // 老师ID
	StudentID        uint       `gorm:"index;not null" json:"student_id"`                                       // 学生ID
	TeachingQuality  int        `gorm:"not null" json:"teaching_quality"`                                       // 教学品质
	Communication    int        `gorm:"not null" json:"communication"`                                          // 沟通能力
	Punctuality      int        `gorm:"not null" json:"punctuality"`                                            // 准时程度
	Professionalism  int        `gorm:"not null" json:"professionalism"`                                        // 专业程度
	Overall          int        `gorm:"not null" json:"overall"`                                                // 整体评分
	Comment          string     `gorm:"type:varchar(1000);not null" json:"comment"`                             // 评价内容
	LearningProgress string     `gorm:"type:varchar(20);not null" json:"learning_progress"`                     // 学习进展
	Strengths        StringList `gorm:"type:text" json:"strengths"`                                             // 优点
	Improvements     StringList `gorm:"type:text" json:"improvements"`                                          // 待改进
	Suggestions      string     `gorm:"type:varchar(500)" json:"suggestions,omitempty"`                         // 建议
	Status           string     `gorm:"type:varchar(20);index:idx_review_course_status;not null" json:"status"` // 状态（published/hidden）
	TeacherResponse  string     `gorm:"type:varchar(500)" json:"teacher_response,omitempty"`                    // 老师回复
	RespondedAt      *time.Time `json:"responded_at,omitempty"`                                                 // 回复时间
	CreatedAt        time.Time  `gorm:"index" json:"created_at"`                                                // 创建时间
	UpdatedAt        time.Time  `json:"updated_at"`                                                             // 更新时间
}

// TableName 指定表名
func (CourseReview) TableName() string {
	return "course_reviews"
}
