package constants

// 用户角色常量
const (
	RoleStudent = "student"
	RoleTeacher = "teacher"
	RoleAdmin   = "admin"
)

// 用户状态常量
const (
	UserStatusActive   = "active"
	UserStatusDisabled = "disabled"
)

// 订单状态常量
const (
	OrderStatusPending    = "pending"
	OrderStatusProcessing = "processing"
	OrderStatusPaid       = "paid"
	OrderStatusCancelled  = "cancelled"
	OrderStatusRefunded   = "refunded"
)

// 支付状态常量
const (
	PaymentStatusPending    = "pending"
	PaymentStatusProcessing = "processing"
	PaymentStatusCompleted  = "completed"
	PaymentStatusFailed     = "failed"
	PaymentStatusRefunded   = "refunded"
)

// 支付方式常量
const (
	PaymentMethodCreditCard   = "credit_card"
	PaymentMethodPaypal       = "paypal"
	PaymentMethodCash         = "cash"
	PaymentMethodBankTransfer = "bank_transfer"
)

// 优惠券类型常量
const (
	CouponTypePercentage = "percentage"
	CouponTypeFixed      = "fixed"
	CouponTypeFreeLesson = "free_lesson"
)

// 优惠券核销记录状态常量
const (
	RedemptionStatusApplied  = "applied"
	RedemptionStatusReleased = "released"
)

// 购买方案常量
const (
	PackageTypeSingle  = "single"
	PackageTypePackage = "package"
)

// 课程状态常量
const (
	CourseStatusActive   = "active"
	CourseStatusInactive = "inactive"
	CourseStatusDraft    = "draft"
)

// 课程难度常量
const (
	CourseLevelBeginner     = "beginner"
	CourseLevelIntermediate = "intermediate"
	CourseLevelAdvanced     = "advanced"
)

// 预约状态常量
const (
	AppointmentStatusScheduled  = "scheduled"
	AppointmentStatusConfirmed  = "confirmed"
	AppointmentStatusInProgress = "in_progress"
	AppointmentStatusCompleted  = "completed"
	AppointmentStatusCancelled  = "cancelled"
	AppointmentStatusMissed     = "missed"
)

// 验证码常量
const (
	CaptchaProviderNone  = "none"
	CaptchaProviderImage = "image"

	CaptchaSceneLogin    = "login"
	CaptchaSceneRegister = "register"
)

// 评价状态常量
const (
	ReviewStatusPublished = "published"
	ReviewStatusHidden    = "hidden"
)

// 学习进展常量
const (
	LearningProgressExcellent        = "excellent"
	LearningProgressGood             = "good"
	LearningProgressFair             = "fair"
	LearningProgressNeedsImprovement = "needs_improvement"
)

// 上课地点类型常量
const (
	LocationTypeOnline   = "online"
	LocationTypeInPerson = "in_person"
)

// 订单取消原因常量
const (
	CancelReasonUser    = "user"
	CancelReasonAdmin   = "admin"
	CancelReasonTimeout = "timeout"
	CancelReasonPayment = "payment_attempts_exceeded"
)

// 支付回调状态常量
const (
	CallbackStatusCompleted = "completed"
	CallbackStatusFailed    = "failed"
	CallbackStatusRefunded  = "refunded"
	CallbackStatusPending   = "pending"
)

// 队列常量
const (
	QueueDefault           = "default"
	QueueCritical          = "critical"
	TaskOrderStatusEmail   = "order:status_email"
	TaskOrderTimeoutCancel = "order:timeout_cancel"
	TaskPaymentVerify      = "payment:verify"
)

// 缓存默认配置常量
const (
	RedisPrefixDefault = "mt"
)
