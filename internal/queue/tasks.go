package queue

import (
	"encoding/json"

	"github.com/musictutor-next/internal/constants"

	"github.com/hibiken/asynq"
)

const (
	// TaskOrderStatusEmail 订单状态邮件通知任务
	TaskOrderStatusEmail = constants.TaskOrderStatusEmail
	// TaskOrderTimeoutCancel 超时取消任务
	TaskOrderTimeoutCancel = constants.TaskOrderTimeoutCancel
	// TaskPaymentVerify 支付核验重试任务
	TaskPaymentVerify = constants.TaskPaymentVerify
)

// OrderStatusEmailPayload 订单状态邮件任务载荷
type OrderStatusEmailPayload struct {
	OrderID uint   `json:"order_id"`
	Status  string `json:"status"`
}

// OrderTimeoutCancelPayload 超时取消任务载荷
type OrderTimeoutCancelPayload struct {
	OrderID uint `json:"order_id"`
}

// PaymentVerifyPayload 支付核验任务载荷
type PaymentVerifyPayload struct {
	OrderID       uint   `json:"order_id"`
	TransactionID string `json:"transaction_id"`
}

func newTask(taskType string, payload interface{}) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(taskType, body), nil
}

// NewOrderStatusEmailTask 创建订单状态邮件任务
func NewOrderStatusEmailTask(payload OrderStatusEmailPayload) (*asynq.Task, error) {
	return newTask(TaskOrderStatusEmail, payload)
}

// NewOrderTimeoutCancelTask 创建超时取消任务
func NewOrderTimeoutCancelTask(payload OrderTimeoutCancelPayload) (*asynq.Task, error) {
	return newTask(TaskOrderTimeoutCancel, payload)
}

// NewPaymentVerifyTask 创建支付核验任务
func NewPaymentVerifyTask(payload PaymentVerifyPayload) (*asynq.Task, error) {
	return newTask(TaskPaymentVerify, payload)
}
