package repository

import "time"

// CourseListFilter 查询课程列表的过滤条件
type CourseListFilter struct {
	Page       int
	PageSize   int
	TeacherID  uint
	Instrument string
	Level      string
	Status     string
	Search     string
}

// CouponListFilter 优惠券列表筛选
type CouponListFilter struct {
	Page             int
	PageSize         int
	Code             string
	IsActive         *bool
	ApplicableCourse uint
}

// OrderListFilter 查询订单列表的过滤条件
type OrderListFilter struct {
	Page        int
	PageSize    int
	StudentID   uint
	Status      string
	OrderNo     string
	CreatedFrom *time.Time
	CreatedTo   *time.Time
}

// AppointmentListFilter 查询预约列表的过滤条件
type AppointmentListFilter struct {
	Page      int
	PageSize  int
	StudentID uint
	TeacherID uint
	Status    string
	From      *time.Time
	To        *time.Time
}

// ReviewListFilter 查询评价列表的过滤条件
type ReviewListFilter struct {
	Page      int
	PageSize  int
	CourseID  uint
	TeacherID uint
	Status    string
}
