package worker

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/musictutor-next/internal/logger"
	"github.com/musictutor-next/internal/models"
	"github.com/musictutor-next/internal/provider"
	"github.com/musictutor-next/internal/queue"
	"github.com/musictutor-next/internal/service"

	"github.com/hibiken/asynq"
)

// Consumer 异步任务消费者
type Consumer struct {
	*provider.Container
}

// NewConsumer 创建消费者
func NewConsumer(c *provider.Container) *Consumer {
	return &Consumer{
		Container: c,
	}
}

// Register 注册消费者
func (c *Consumer) Register(mux *asynq.ServeMux) {
	if c == nil || mux == nil {
		logger.Debugw("worker_register_skip_nil", "consumer_nil", c == nil, "mux_nil", mux == nil)
		return
	}
	mux.HandleFunc(queue.TaskOrderStatusEmail, c.instrument(queue.TaskOrderStatusEmail, c.handleOrderStatusEmail))
	mux.HandleFunc(queue.TaskOrderTimeoutCancel, c.instrument(queue.TaskOrderTimeoutCancel, c.handleOrderTimeoutCancel))
	mux.HandleFunc(queue.TaskPaymentVerify, c.instrument(queue.TaskPaymentVerify, c.handlePaymentVerify))
}

func (c *Consumer) instrument(taskType string, next func(context.Context, *asynq.Task) error) func(context.Context, *asynq.Task) error {
	return func(ctx context.Context, task *asynq.Task) error {
		err := next(ctx, task)
		c.Metrics.QueueTask(taskType, err)
		return err
	}
}

func (c *Consumer) handleOrderStatusEmail(_ context.Context, task *asynq.Task) error {
	if c == nil || task == nil {
		logger.Debugw("worker_order_status_email_skip_nil", "consumer_nil", c == nil, "task_nil", task == nil)
		return nil
	}
	var payload queue.OrderStatusEmailPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		logger.Warnw("worker_order_status_email_unmarshal_failed", "error", err)
		return err
	}
	if payload.OrderID == 0 {
		logger.Debugw("worker_order_status_email_skip_invalid_payload", "order_id", payload.OrderID)
		return nil
	}
	if !c.EmailService.Enabled() {
		logger.Debugw("worker_order_status_email_skip_disabled", "order_id", payload.OrderID)
		return nil
	}
	order, err := c.OrderRepo.GetByID(payload.OrderID)
	if err != nil {
		logger.Warnw("worker_order_status_email_fetch_order_failed", "order_id", payload.OrderID, "error", err)
		return err
	}
	if order == nil {
		logger.Debugw("worker_order_status_email_skip_order_not_found", "order_id", payload.OrderID)
		return nil
	}
	user, err := c.UserRepo.GetByID(order.StudentID)
	if err != nil {
		logger.Warnw("worker_order_status_email_fetch_user_failed", "order_id", order.ID, "student_id", order.StudentID, "error", err)
		return err
	}
	if user == nil || strings.TrimSpace(user.Email) == "" {
		logger.Debugw("worker_order_status_email_skip_empty_receiver", "order_id", order.ID, "order_no", order.OrderNo)
		return nil
	}
	status := strings.TrimSpace(payload.Status)
	if status == "" {
		status = order.Status
	}
	input := service.OrderStatusEmailInput{
		OrderNo: order.OrderNo,
		Status:  status,
		Amount:  order.TotalAmount,
		Courses: buildOrderCourseSummary(order),
	}
	if err := c.EmailService.SendOrderStatusEmail(strings.TrimSpace(user.Email), input, strings.TrimSpace(user.Locale)); err != nil {
		logger.Warnw("worker_order_status_email_send_failed",
			"order_id", order.ID,
			"order_no", order.OrderNo,
			"status", status,
			"error", err,
		)
		return err
	}
	return nil
}

func (c *Consumer) handleOrderTimeoutCancel(ctx context.Context, task *asynq.Task) error {
	if c == nil || task == nil {
		logger.Debugw("worker_order_timeout_cancel_skip_nil", "consumer_nil", c == nil, "task_nil", task == nil)
		return nil
	}
	var payload queue.OrderTimeoutCancelPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		logger.Warnw("worker_order_timeout_cancel_unmarshal_failed", "error", err)
		return err
	}
	if payload.OrderID == 0 {
		logger.Debugw("worker_order_timeout_cancel_skip_invalid_payload", "order_id", payload.OrderID)
		return nil
	}
	if c.SettlementService == nil {
		logger.Warnw("worker_order_timeout_cancel_skip_settlement_nil", "order_id", payload.OrderID)
		return nil
	}
	if err := c.SettlementService.ExpirePendingOrder(ctx, payload.OrderID); err != nil {
		if errors.Is(err, service.ErrOrderNotFound) {
			logger.Debugw("worker_order_timeout_cancel_skip_order_not_found", "order_id", payload.OrderID)
			return nil
		}
		logger.Warnw("worker_order_timeout_cancel_failed", "order_id", payload.OrderID, "error", err)
		return err
	}
	return nil
}

func (c *Consumer) handlePaymentVerify(ctx context.Context, task *asynq.Task) error {
	if c == nil || task == nil {
		logger.Debugw("worker_payment_verify_skip_nil", "consumer_nil", c == nil, "task_nil", task == nil)
		return nil
	}
	var payload queue.PaymentVerifyPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		logger.Warnw("worker_payment_verify_unmarshal_failed", "error", err)
		return err
	}
	if payload.OrderID == 0 {
		logger.Debugw("worker_payment_verify_skip_invalid_payload", "order_id", payload.OrderID)
		return nil
	}
	if c.SettlementService == nil {
		logger.Warnw("worker_payment_verify_skip_settlement_nil", "order_id", payload.OrderID)
		return nil
	}
	// 网关仍不可用时返回原始错误，由 asynq 按退避策略重试
	if err := c.SettlementService.VerifyPayment(ctx, payload.OrderID, payload.TransactionID); err != nil {
		logger.Warnw("worker_payment_verify_failed", "order_id", payload.OrderID, "error", err)
		return err
	}
	return nil
}

func buildOrderCourseSummary(order *models.Order) string {
	if order == nil || len(order.Items) == 0 {
		return ""
	}
	names := make([]string, 0, len(order.Items))
	for _, item := range order.Items {
		name := strings.TrimSpace(item.CourseName)
		if name == "" {
			continue
		}
		names = append(names, name)
	}
	return strings.Join(names, ", ")
}
