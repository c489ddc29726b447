package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/musictutor-next/internal/constants"
	"github.com/musictutor-next/internal/logger"
	"github.com/musictutor-next/internal/metrics"
	"github.com/musictutor-next/internal/models"
	"github.com/musictutor-next/internal/payment"
	"github.com/musictutor-next/internal/queue"
	"github.com/musictutor-next/internal/repository"

	"gorm.io/gorm"
)

// SettlementOptions 结算相关配置
type SettlementOptions struct {
	RetryDelay          time.Duration // 网关不可用时的核验重试间隔
	MaxAttempts         int           // 支付核验最大次数，超出后取消订单
	DefaultValidityDays int           // 单堂课默认有效天数
}

// SettlementService 订单结算：支付确认、回调、取消、退款与课时扣减
type SettlementService struct {
	orderRepo       repository.OrderRepository
	couponRepo      repository.CouponRepository
	redemptionRepo  repository.RedemptionRepository
	appointmentRepo repository.AppointmentRepository
	userRepo        repository.UserRepository
	gateway         payment.Gateway
	queueClient     TaskQueue
	metrics         *metrics.Recorder
	opts            SettlementOptions
}

// NewSettlementService 创建结算服务
func NewSettlementService(orderRepo repository.OrderRepository, couponRepo repository.CouponRepository, redemptionRepo repository.RedemptionRepository, appointmentRepo repository.AppointmentRepository, userRepo repository.UserRepository, gateway payment.Gateway, queueClient TaskQueue, recorder *metrics.Recorder, opts SettlementOptions) *SettlementService {
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = 30 * time.Second
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 5
	}
	return &SettlementService{
		orderRepo:       orderRepo,
		couponRepo:      couponRepo,
		redemptionRepo:  redemptionRepo,
		appointmentRepo: appointmentRepo,
		userRepo:        userRepo,
		gateway:         gateway,
		queueClient:     queueClient,
		metrics:         recorder,
		opts:            opts,
	}
}

// Actor 操作人
type Actor struct {
	UserID uint
	Role   string
}

// IsAdmin 是否管理员
func (a Actor) IsAdmin() bool {
	return a.Role == constants.RoleAdmin
}

// ConfirmPaymentInput 支付确认输入
type ConfirmPaymentInput struct {
	OrderID       uint
	StudentID     uint // 0 表示不校验订单归属
	TransactionID string
}

// PaymentCallbackInput 支付回调输入
type PaymentCallbackInput struct {
	OrderNo       string
	TransactionID string
	Status        string
}

// CancelOrderInput 取消订单输入
type CancelOrderInput struct {
	OrderID   uint
	StudentID uint // 0 表示管理员或系统取消
	Reason    string
}

// ReconcileResult 卡单扫描结果
type ReconcileResult struct {
	Requeued  int
	Cancelled int
	Skipped   int
}

// ConfirmPayment 学生提交支付流水后核验并结算。网关不可用时订单保持 processing 并投递重试任务
func (s *SettlementService) ConfirmPayment(ctx context.Context, input ConfirmPaymentInput) (*models.Order, error) {
	transactionID := strings.TrimSpace(input.TransactionID)
	if input.OrderID == 0 || transactionID == "" {
		return nil, ErrInvalidInput
	}
	order, err := s.loadOrder(s.orderRepo, input.OrderID, input.StudentID)
	if err != nil {
		return nil, err
	}

	switch order.Status {
	case constants.OrderStatusPaid:
		if order.TransactionID == transactionID {
			return order, nil
		}
		return nil, ErrTransactionMismatch
	case constants.OrderStatusProcessing:
		if order.TransactionID != "" && order.TransactionID != transactionID {
			return nil, ErrTransactionMismatch
		}
		if payment.IsManualMethod(order.PaymentMethod) {
			return nil, ErrPaymentAwaitingManual
		}
	case constants.OrderStatusPending:
		ok, err := transitionOrder(s.orderRepo, order, constants.OrderStatusProcessing, map[string]interface{}{
			"transaction_id":   transactionID,
			"payment_status":   constants.PaymentStatusProcessing,
			"payment_attempts": gorm.Expr("payment_attempts + 1"),
		})
		if err != nil {
			return nil, err
		}
		if !ok {
			return s.resolvePaymentConflict(order.ID, transactionID)
		}
		s.metrics.OrderTransition(constants.OrderStatusPending, constants.OrderStatusProcessing)
		order.TransactionID = transactionID
		order.PaymentAttempts++
	default:
		return nil, ErrInvalidTransition
	}

	if payment.IsManualMethod(order.PaymentMethod) {
		logger.Infow("settlement_awaiting_manual_confirmation",
			"order_id", order.ID,
			"order_no", order.OrderNo,
			"payment_method", order.PaymentMethod,
		)
		return s.reload(order.ID)
	}

	if err := s.verifyAndSettle(ctx, order, true); err != nil {
		return nil, err
	}
	return s.reload(order.ID)
}

// VerifyPayment 由 worker 调用的支付核验重试；网关仍不可用时返回错误交给队列重试
func (s *SettlementService) VerifyPayment(ctx context.Context, orderID uint, transactionID string) error {
	order, err := s.orderRepo.GetByID(orderID)
	if err != nil {
		return err
	}
	if order == nil || order.Status != constants.OrderStatusProcessing {
		return nil
	}
	if payment.IsManualMethod(order.PaymentMethod) {
		return nil
	}
	transactionID = strings.TrimSpace(transactionID)
	if transactionID != "" && order.TransactionID != "" && transactionID != order.TransactionID {
		logger.Warnw("settlement_verify_transaction_mismatch",
			"order_id", order.ID,
			"task_transaction_id", transactionID,
			"order_transaction_id", order.TransactionID,
		)
	}
	if order.PaymentAttempts >= s.opts.MaxAttempts {
		_, err := s.cancel(order.ID, 0, constants.CancelReasonPayment, []string{constants.OrderStatusProcessing})
		if errors.Is(err, ErrInvalidTransition) {
			return nil
		}
		return err
	}
	ok, err := s.orderRepo.TransitionStatus(order.ID, []string{constants.OrderStatusProcessing}, constants.OrderStatusProcessing, map[string]interface{}{
		"payment_attempts": gorm.Expr("payment_attempts + 1"),
	})
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	order.PaymentAttempts++
	return s.verifyAndSettle(ctx, order, false)
}

// verifyAndSettle 调用网关核验并落库。scheduleRetry 为 true 时网关故障转为延迟重试任务
func (s *SettlementService) verifyAndSettle(ctx context.Context, order *models.Order, scheduleRetry bool) error {
	result, err := s.gateway.Verify(ctx, payment.VerifyInput{
		OrderNo:       order.OrderNo,
		TransactionID: order.TransactionID,
		Method:        order.PaymentMethod,
		Amount:        order.TotalAmount.Decimal,
	})
	if err != nil {
		if errors.Is(err, payment.ErrMethodUnsupported) || errors.Is(err, payment.ErrTransactionMissing) {
			s.metrics.GatewayCall(order.PaymentMethod, "rejected")
			return wrapError(ErrPaymentMethodInvalid, err)
		}
		s.metrics.GatewayCall(order.PaymentMethod, "unavailable")
		logger.Warnw("settlement_gateway_unavailable",
			"order_id", order.ID,
			"order_no", order.OrderNo,
			"attempts", order.PaymentAttempts,
			"error", err,
		)
		if !scheduleRetry {
			return err
		}
		s.scheduleVerify(order)
		return wrapError(ErrPaymentDeferred, err)
	}
	s.metrics.GatewayCall(order.PaymentMethod, result.Status)

	switch result.Status {
	case payment.StatusCompleted:
		_, err := s.markPaid(order.ID, order.TransactionID, false)
		return err
	case payment.StatusDeclined:
		if err := s.markDeclined(order); err != nil {
			return err
		}
		if !scheduleRetry {
			return nil
		}
		return wrapf(ErrPaymentDeclined, "%s", result.Reason)
	default:
		if scheduleRetry {
			s.scheduleVerify(order)
		}
		return nil
	}
}

func (s *SettlementService) scheduleVerify(order *models.Order) {
	if s.queueClient == nil {
		return
	}
	err := s.queueClient.EnqueuePaymentVerify(queue.PaymentVerifyPayload{
		OrderID:       order.ID,
		TransactionID: order.TransactionID,
	}, s.opts.RetryDelay)
	if err != nil {
		logger.Errorw("settlement_enqueue_payment_verify_failed",
			"order_id", order.ID,
			"order_no", order.OrderNo,
			"error", err,
		)
	}
}

// markPaid processing -> paid，写入课时有效期。fromPending 为 true 时在同一事务内先推进到 processing
func (s *SettlementService) markPaid(orderID uint, transactionID string, fromPending bool) (*models.Order, error) {
	paidAt := time.Now()
	var settled *models.Order
	var transitions [][2]string
	var alreadyPaid bool

	err := models.DB.Transaction(func(tx *gorm.DB) error {
		orderRepo := s.orderRepo.WithTx(tx)
		order, err := orderRepo.GetByID(orderID)
		if err != nil {
			return err
		}
		if order == nil {
			return ErrOrderNotFound
		}
		if order.Status == constants.OrderStatusPaid {
			if order.TransactionID != "" && transactionID != "" && order.TransactionID != transactionID {
				return ErrTransactionMismatch
			}
			alreadyPaid = true
			settled = order
			return nil
		}
		// processing 订单已记录的流水不能被另一笔流水覆盖
		if order.Status == constants.OrderStatusProcessing && order.TransactionID != "" && transactionID != "" && order.TransactionID != transactionID {
			logger.Warnw("settlement_transaction_mismatch",
				"order_id", order.ID,
				"order_no", order.OrderNo,
				"order_transaction_id", order.TransactionID,
				"transaction_id", transactionID,
			)
			return ErrTransactionMismatch
		}
		if order.Status == constants.OrderStatusPending && fromPending {
			ok, err := transitionOrder(orderRepo, order, constants.OrderStatusProcessing, map[string]interface{}{
				"transaction_id":   transactionID,
				"payment_status":   constants.PaymentStatusProcessing,
				"payment_attempts": gorm.Expr("payment_attempts + 1"),
			})
			if err != nil {
				return err
			}
			if !ok {
				return ErrInvalidTransition
			}
			transitions = append(transitions, [2]string{constants.OrderStatusPending, constants.OrderStatusProcessing})
		}
		if order.Status != constants.OrderStatusProcessing {
			return wrapf(ErrInvalidTransition, "%s -> %s", order.Status, constants.OrderStatusPaid)
		}
		updates := map[string]interface{}{
			"paid_at":        paidAt,
			"payment_status": constants.PaymentStatusCompleted,
		}
		if transactionID != "" {
			updates["transaction_id"] = transactionID
		}
		ok, err := transitionOrder(orderRepo, order, constants.OrderStatusPaid, updates)
		if err != nil {
			return err
		}
		if !ok {
			logger.Warnw("settlement_cas_conflict",
				"order_id", order.ID,
				"expected", constants.OrderStatusProcessing,
				"target", constants.OrderStatusPaid,
			)
			return ErrInvalidTransition
		}
		transitions = append(transitions, [2]string{constants.OrderStatusProcessing, constants.OrderStatusPaid})
		if err := orderRepo.ActivateItems(order.ID, paidAt, s.opts.DefaultValidityDays); err != nil {
			return err
		}
		settled = order
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrInvalidTransition) {
			return s.resolvePaymentConflict(orderID, transactionID)
		}
		return nil, err
	}
	if alreadyPaid {
		return settled, nil
	}

	for _, t := range transitions {
		s.metrics.OrderTransition(t[0], t[1])
	}
	logger.Infow("settlement_order_paid",
		"order_id", settled.ID,
		"order_no", settled.OrderNo,
		"transaction_id", transactionID,
	)
	s.notify(settled)
	return settled, nil
}

// markDeclined 网关明确拒绝：processing -> pending，学生可重新提交
func (s *SettlementService) markDeclined(order *models.Order) error {
	ok, err := transitionOrder(s.orderRepo, order, constants.OrderStatusPending, map[string]interface{}{
		"payment_status": constants.PaymentStatusFailed,
	})
	if err != nil {
		return err
	}
	if !ok {
		logger.Warnw("settlement_cas_conflict",
			"order_id", order.ID,
			"expected", constants.OrderStatusProcessing,
			"target", constants.OrderStatusPending,
		)
		return nil
	}
	s.metrics.OrderTransition(constants.OrderStatusProcessing, constants.OrderStatusPending)
	return nil
}

// resolvePaymentConflict CAS 失败后重新读取：同一流水已支付视为成功，否则为冲突
func (s *SettlementService) resolvePaymentConflict(orderID uint, transactionID string) (*models.Order, error) {
	order, err := s.orderRepo.GetByID(orderID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, ErrOrderNotFound
	}
	if order.Status == constants.OrderStatusPaid {
		if transactionID == "" || order.TransactionID == transactionID {
			return order, nil
		}
		return nil, ErrTransactionMismatch
	}
	return nil, ErrInvalidTransition
}

// AdminConfirmPayment 管理员确认线下收款，pending 订单在同一事务内经 processing 推进到 paid
func (s *SettlementService) AdminConfirmPayment(orderID uint, transactionID string) (*models.Order, error) {
	if orderID == 0 {
		return nil, ErrInvalidInput
	}
	transactionID = strings.TrimSpace(transactionID)
	order, err := s.loadOrder(s.orderRepo, orderID, 0)
	if err != nil {
		return nil, err
	}
	if transactionID == "" {
		transactionID = order.TransactionID
	}
	if transactionID == "" {
		transactionID = "manual-" + order.OrderNo
	}
	return s.markPaid(orderID, transactionID, true)
}

// HandlePaymentCallback 处理网关异步通知，不再回查网关；重复通知为幂等操作
func (s *SettlementService) HandlePaymentCallback(ctx context.Context, input PaymentCallbackInput) (*models.Order, error) {
	orderNo := strings.TrimSpace(input.OrderNo)
	transactionID := strings.TrimSpace(input.TransactionID)
	status := strings.ToLower(strings.TrimSpace(input.Status))
	if orderNo == "" {
		return nil, ErrCallbackInvalid
	}
	order, err := s.orderRepo.GetByOrderNo(orderNo)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, ErrOrderNotFound
	}

	switch status {
	case constants.CallbackStatusCompleted:
		if transactionID == "" {
			return nil, ErrCallbackInvalid
		}
		switch order.Status {
		case constants.OrderStatusPaid:
			if order.TransactionID == transactionID {
				return order, nil
			}
			return nil, ErrTransactionMismatch
		case constants.OrderStatusPending, constants.OrderStatusProcessing:
			return s.markPaid(order.ID, transactionID, true)
		default:
			logger.Warnw("settlement_callback_after_terminal",
				"order_id", order.ID,
				"order_no", order.OrderNo,
				"status", order.Status,
				"transaction_id", transactionID,
			)
			return nil, ErrInvalidTransition
		}
	case constants.CallbackStatusFailed:
		if order.Status != constants.OrderStatusProcessing {
			return order, nil
		}
		if err := s.markDeclined(order); err != nil {
			return nil, err
		}
		return s.reload(order.ID)
	case constants.CallbackStatusRefunded:
		if order.Status == constants.OrderStatusRefunded {
			return order, nil
		}
		return s.RefundOrder(ctx, order.ID)
	case constants.CallbackStatusPending:
		return order, nil
	default:
		return nil, wrapf(ErrCallbackInvalid, "unknown status %q", input.Status)
	}
}

// CancelOrder 取消未支付订单并释放优惠券名额；已取消时幂等返回
func (s *SettlementService) CancelOrder(ctx context.Context, input CancelOrderInput) (*models.Order, error) {
	if input.OrderID == 0 {
		return nil, ErrInvalidInput
	}
	reason := strings.TrimSpace(input.Reason)
	if reason == "" {
		reason = constants.CancelReasonUser
		if input.StudentID == 0 {
			reason = constants.CancelReasonAdmin
		}
	}
	return s.cancel(input.OrderID, input.StudentID, reason, []string{constants.OrderStatusPending, constants.OrderStatusProcessing})
}

// ExpirePendingOrder 超时取消，订单已不是 pending 时不做任何事
func (s *SettlementService) ExpirePendingOrder(ctx context.Context, orderID uint) error {
	order, err := s.orderRepo.GetByID(orderID)
	if err != nil {
		return err
	}
	if order == nil || order.Status != constants.OrderStatusPending {
		return nil
	}
	if order.ExpiresAt != nil && order.ExpiresAt.After(time.Now()) {
		return nil
	}
	_, err = s.cancel(order.ID, 0, constants.CancelReasonTimeout, []string{constants.OrderStatusPending})
	if errors.Is(err, ErrInvalidTransition) || errors.Is(err, ErrOrderCancelPaid) {
		return nil
	}
	return err
}

func (s *SettlementService) cancel(orderID, studentID uint, reason string, from []string) (*models.Order, error) {
	now := time.Now()
	var cancelled *models.Order
	var previous string
	var released bool
	var alreadyCancelled bool

	err := models.DB.Transaction(func(tx *gorm.DB) error {
		orderRepo := s.orderRepo.WithTx(tx)
		order, err := s.loadOrder(orderRepo, orderID, studentID)
		if err != nil {
			return err
		}
		switch order.Status {
		case constants.OrderStatusCancelled:
			alreadyCancelled = true
			cancelled = order
			return nil
		case constants.OrderStatusPaid:
			return ErrOrderCancelPaid
		}
		if !containsStatus(from, order.Status) {
			return wrapf(ErrInvalidTransition, "%s -> %s", order.Status, constants.OrderStatusCancelled)
		}
		previous = order.Status
		ok, err := transitionOrder(orderRepo, order, constants.OrderStatusCancelled, map[string]interface{}{
			"cancelled_at":  now,
			"cancel_reason": reason,
		})
		if err != nil {
			return err
		}
		if !ok {
			logger.Warnw("settlement_cas_conflict",
				"order_id", order.ID,
				"expected", previous,
				"target", constants.OrderStatusCancelled,
			)
			return ErrInvalidTransition
		}
		released, err = releaseRedemption(s.couponRepo.WithTx(tx), s.redemptionRepo.WithTx(tx), order.ID, now)
		if err != nil {
			return err
		}
		cancelled = order
		return nil
	})
	if err != nil {
		return nil, err
	}
	if alreadyCancelled {
		return cancelled, nil
	}

	s.metrics.OrderTransition(previous, constants.OrderStatusCancelled)
	if released {
		s.metrics.RedemptionReleased()
	}
	logger.Infow("settlement_order_cancelled",
		"order_id", cancelled.ID,
		"order_no", cancelled.OrderNo,
		"reason", reason,
		"coupon_released", released,
	)
	s.notify(cancelled)
	return s.reload(cancelled.ID)
}

// releaseRedemption 释放订单占用的优惠券：流水改为 released，计数减一
func releaseRedemption(couponRepo repository.CouponRepository, redemptionRepo repository.RedemptionRepository, orderID uint, now time.Time) (bool, error) {
	redemption, err := redemptionRepo.GetAppliedByOrder(orderID)
	if err != nil {
		return false, err
	}
	if redemption == nil {
		return false, nil
	}
	ok, err := redemptionRepo.MarkReleased(redemption.ID, now)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, nil
	}
	if err := couponRepo.Release(redemption.CouponID); err != nil {
		return false, err
	}
	return true, nil
}

// RefundOrder 退款：清空剩余课时并取消未开始的预约
func (s *SettlementService) RefundOrder(ctx context.Context, orderID uint) (*models.Order, error) {
	if orderID == 0 {
		return nil, ErrInvalidInput
	}
	now := time.Now()
	var refunded *models.Order
	var alreadyRefunded bool

	err := models.DB.Transaction(func(tx *gorm.DB) error {
		orderRepo := s.orderRepo.WithTx(tx)
		order, err := s.loadOrder(orderRepo, orderID, 0)
		if err != nil {
			return err
		}
		if order.Status == constants.OrderStatusRefunded {
			alreadyRefunded = true
			refunded = order
			return nil
		}
		ok, err := transitionOrder(orderRepo, order, constants.OrderStatusRefunded, map[string]interface{}{
			"refunded_at":    now,
			"payment_status": constants.PaymentStatusRefunded,
		})
		if err != nil {
			return err
		}
		if !ok {
			return ErrInvalidTransition
		}
		if err := orderRepo.ZeroRemainingLessons(order.ID); err != nil {
			return err
		}
		if err := s.appointmentRepo.WithTx(tx).CancelFutureByOrder(order.ID, now, []string{
			constants.AppointmentStatusScheduled,
			constants.AppointmentStatusConfirmed,
		}); err != nil {
			return err
		}
		refunded = order
		return nil
	})
	if err != nil {
		return nil, err
	}
	if alreadyRefunded {
		return refunded, nil
	}

	s.metrics.OrderTransition(constants.OrderStatusPaid, constants.OrderStatusRefunded)
	logger.Infow("settlement_order_refunded",
		"order_id", refunded.ID,
		"order_no", refunded.OrderNo,
	)
	s.notify(refunded)
	return s.reload(refunded.ID)
}

// CompleteAppointment 完成上课并扣减一节课时；同一预约只扣一次
func (s *SettlementService) CompleteAppointment(ctx context.Context, appointmentID uint, actor Actor) (*models.Appointment, error) {
	if appointmentID == 0 {
		return nil, ErrInvalidInput
	}
	now := time.Now()
	var completed *models.Appointment

	err := models.DB.Transaction(func(tx *gorm.DB) error {
		appointmentRepo := s.appointmentRepo.WithTx(tx)
		appointment, err := appointmentRepo.GetByID(appointmentID)
		if err != nil {
			return err
		}
		if appointment == nil {
			return ErrAppointmentNotFound
		}
		if !actor.IsAdmin() && appointment.TeacherID != actor.UserID {
			return ErrAppointmentForbidden
		}
		ok, err := appointmentRepo.TransitionStatus(appointment.ID, []string{
			constants.AppointmentStatusScheduled,
			constants.AppointmentStatusConfirmed,
			constants.AppointmentStatusInProgress,
		}, constants.AppointmentStatusCompleted, map[string]interface{}{
			"completed_at": now,
		})
		if err != nil {
			return err
		}
		if !ok {
			return wrapf(ErrAppointmentTransition, "appointment %d is %s", appointment.ID, appointment.Status)
		}
		consumed, err := s.orderRepo.WithTx(tx).ConsumeLesson(appointment.OrderItemID)
		if err != nil {
			return err
		}
		if !consumed {
			logger.Errorw("settlement_lesson_balance_inconsistent",
				"appointment_id", appointment.ID,
				"order_item_id", appointment.OrderItemID,
				"student_id", appointment.StudentID,
			)
			return ErrLessonBalanceEmpty
		}
		appointment.Status = constants.AppointmentStatusCompleted
		appointment.CompletedAt = &now
		completed = appointment
		return nil
	})
	if err != nil {
		return nil, err
	}
	logger.Infow("settlement_appointment_completed",
		"appointment_id", completed.ID,
		"order_item_id", completed.OrderItemID,
		"actor_id", actor.UserID,
	)
	return completed, nil
}

// ReconcileProcessing 扫描长时间停留在 processing 的订单：重新投递核验或按次数上限取消
func (s *SettlementService) ReconcileProcessing(ctx context.Context, olderThan time.Time, limit int) (ReconcileResult, error) {
	var result ReconcileResult
	orders, err := s.orderRepo.ListProcessingBefore(olderThan, limit)
	if err != nil {
		return result, err
	}
	for i := range orders {
		order := &orders[i]
		if payment.IsManualMethod(order.PaymentMethod) {
			result.Skipped++
			continue
		}
		if order.PaymentAttempts >= s.opts.MaxAttempts {
			if _, err := s.cancel(order.ID, 0, constants.CancelReasonPayment, []string{constants.OrderStatusProcessing}); err != nil {
				if errors.Is(err, ErrInvalidTransition) || errors.Is(err, ErrOrderCancelPaid) {
					result.Skipped++
					continue
				}
				logger.Warnw("settlement_reconcile_cancel_failed",
					"order_id", order.ID,
					"error", err,
				)
				continue
			}
			result.Cancelled++
			continue
		}
		if s.queueClient == nil {
			result.Skipped++
			continue
		}
		if err := s.queueClient.EnqueuePaymentVerify(queue.PaymentVerifyPayload{
			OrderID:       order.ID,
			TransactionID: order.TransactionID,
		}, 0); err != nil {
			logger.Warnw("settlement_reconcile_enqueue_failed",
				"order_id", order.ID,
				"error", err,
			)
			continue
		}
		result.Requeued++
	}
	return result, nil
}

// ExpireOverdue 兜底扫描：取消已过支付截止时间但超时任务未执行的订单
func (s *SettlementService) ExpireOverdue(ctx context.Context, now time.Time, limit int) (int, error) {
	orders, err := s.orderRepo.ListExpiredPending(now, limit)
	if err != nil {
		return 0, err
	}
	expired := 0
	for _, order := range orders {
		if err := s.ExpirePendingOrder(ctx, order.ID); err != nil {
			logger.Warnw("settlement_expire_overdue_failed",
				"order_id", order.ID,
				"error", err,
			)
			continue
		}
		expired++
	}
	return expired, nil
}

func (s *SettlementService) loadOrder(orderRepo repository.OrderRepository, orderID, studentID uint) (*models.Order, error) {
	var order *models.Order
	var err error
	if studentID != 0 {
		order, err = orderRepo.GetByIDAndStudent(orderID, studentID)
	} else {
		order, err = orderRepo.GetByID(orderID)
	}
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, ErrOrderNotFound
	}
	return order, nil
}

func (s *SettlementService) reload(orderID uint) (*models.Order, error) {
	return s.loadOrder(s.orderRepo, orderID, 0)
}

func (s *SettlementService) notify(order *models.Order) {
	if _, err := enqueueOrderStatusEmailTaskIfEligible(s.userRepo, s.queueClient, order.ID, order.StudentID, order.Status); err != nil {
		logger.Warnw("settlement_enqueue_status_email_failed",
			"order_id", order.ID,
			"status", order.Status,
			"error", err,
		)
	}
}

func containsStatus(statuses []string, status string) bool {
	for _, item := range statuses {
		if item == status {
			return true
		}
	}
	return false
}
