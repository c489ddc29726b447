package service

import (
	"strings"
	"time"

	"github.com/musictutor-next/internal/constants"
	"github.com/musictutor-next/internal/queue"
	"github.com/musictutor-next/internal/repository"
)

// TaskQueue 异步任务投递，由 *queue.Client 实现
type TaskQueue interface {
	EnqueueOrderStatusEmail(payload queue.OrderStatusEmailPayload) error
	EnqueueOrderTimeoutCancel(payload queue.OrderTimeoutCancelPayload, delay time.Duration) error
	EnqueuePaymentVerify(payload queue.PaymentVerifyPayload, delay time.Duration) error
}

var notifiableOrderStatuses = map[string]bool{
	constants.OrderStatusPaid:      true,
	constants.OrderStatusCancelled: true,
	constants.OrderStatusRefunded:  true,
}

// enqueueOrderStatusEmailTaskIfEligible 根据订单状态与学生账号决定是否入队状态邮件任务。
// 返回值 skipped 表示任务被策略跳过（状态无需通知、账号停用或没有邮箱）。
func enqueueOrderStatusEmailTaskIfEligible(userRepo repository.UserRepository, queueClient TaskQueue, orderID, studentID uint, status string) (skipped bool, err error) {
	status = strings.TrimSpace(status)
	if queueClient == nil || orderID == 0 || !notifiableOrderStatuses[status] {
		return true, nil
	}
	if userRepo != nil && studentID != 0 {
		user, lookupErr := userRepo.GetByID(studentID)
		if lookupErr == nil {
			if user == nil || user.Status != constants.UserStatusActive || strings.TrimSpace(user.Email) == "" {
				return true, nil
			}
		}
	}
	if err := queueClient.EnqueueOrderStatusEmail(queue.OrderStatusEmailPayload{
		OrderID: orderID,
		Status:  status,
	}); err != nil {
		return false, err
	}
	return false, nil
}
