package models

import "time"

// Order 订单表（结账时购物车的快照）
type Order struct {
	ID              uint       `gorm:"primarykey" json:"id"`                                                  // 主键
	OrderNo         string     `gorm:"uniqueIndex;not null" json:"order_no"`                                  // 订单编号
	StudentID       uint       `gorm:"index;not null" json:"student_id"`                                      // 学生ID
	Status          string     `gorm:"type:varchar(20);index;not null" json:"status"`                         // 订单状态
	Subtotal        Money      `gorm:"type:decimal(20,2);not null;default:0" json:"subtotal"`                 // 小计
	DiscountAmount  Money      `gorm:"type:decimal(20,2);not null;default:0" json:"discount_amount"`          // 优惠金额
	TotalAmount     Money      `gorm:"type:decimal(20,2);not null;default:0" json:"total_amount"`             // 实付金额
	CouponID        *uint      `gorm:"index" json:"coupon_id,omitempty"`                                      // 优惠券ID
	CouponCode      string     `gorm:"type:varchar(20)" json:"coupon_code,omitempty"`                         // 优惠码
	CouponInfo      CouponInfo `gorm:"type:text" json:"coupon_info"`                                          // 结账时的优惠券校验结果
	PaymentMethod   string     `gorm:"type:varchar(20);not null" json:"payment_method"`                       // 支付方式
	PaymentStatus   string     `gorm:"type:varchar(20);index;not null" json:"payment_status"`                 // 支付状态
	TransactionID   string     `gorm:"type:varchar(128);index" json:"transaction_id,omitempty"`               // 支付流水号
	PaymentAttempts int        `gorm:"not null;default:0" json:"payment_attempts"`                            // 支付核验次数
	UserNotes       string     `gorm:"type:varchar(500)" json:"user_notes,omitempty"`                         // 用户备注
	CancelReason    string     `gorm:"type:varchar(64)" json:"cancel_reason,omitempty"`                       // 取消原因
	ExpiresAt       *time.Time `gorm:"index" json:"expires_at"`                                               // 支付截止时间
	PaidAt          *time.Time `gorm:"index" json:"paid_at"`                                                  // 支付时间
	CancelledAt     *time.Time `gorm:"index" json:"cancelled_at"`                                             // 取消时间
	RefundedAt      *time.Time `json:"refunded_at"`                                                           // 退款时间
	CreatedAt       time.Time  `gorm:"index" json:"created_at"`                                               // 创建时间
	UpdatedAt       time.Time  `gorm:"index" json:"updated_at"`                                               // 更新时间

	Items []OrderItem `gorm:"foreignKey:OrderID" json:"items,omitempty"` // 订单项
}

// TableName 指定表名
func (Order) TableName() string {
	return "orders"
}
