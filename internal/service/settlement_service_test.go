package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/musictutor-next/internal/constants"
	"github.com/musictutor-next/internal/models"
	"github.com/musictutor-next/internal/payment"
)

func (f *serviceFixture) paidOrder(t *testing.T, studentID uint, course *models.Course, packageType string, lessons int) *models.Order {
	t.Helper()
	order := f.checkoutWith(t, studentID, course, packageType, lessons, "")
	paid, err := f.settlementService.ConfirmPayment(context.Background(), ConfirmPaymentInput{
		OrderID:       order.ID,
		StudentID:     studentID,
		TransactionID: "TX-" + order.OrderNo,
	})
	if err != nil {
		t.Fatalf("confirm payment failed: %v", err)
	}
	if paid.Status != constants.OrderStatusPaid {
		t.Fatalf("order should be paid, got %s", paid.Status)
	}
	return paid
}

func (f *serviceFixture) checkoutManual(t *testing.T, studentID uint, course *models.Course) *models.Order {
	t.Helper()
	cart, err := f.cartService.AddItem(CartItemInput{StudentID: studentID, CourseID: course.ID})
	if err != nil {
		t.Fatalf("add item failed: %v", err)
	}
	order, err := f.checkoutService.Checkout(CheckoutInput{StudentID: studentID, CartID: cart.ID, PaymentMethod: constants.PaymentMethodCash})
	if err != nil {
		t.Fatalf("checkout failed: %v", err)
	}
	return order
}

func TestConfirmPaymentSettlesAndActivatesLessons(t *testing.T) {
	f := setupServiceFixture(t)
	student := f.createUser(t, "student@example.com", constants.RoleStudent)
	course := f.createCourse(t, 9, "50", pianoPackage())
	order := f.checkoutWith(t, student.ID, course, constants.PackageTypePackage, 4, "")

	paid, err := f.settlementService.ConfirmPayment(context.Background(), ConfirmPaymentInput{
		OrderID:       order.ID,
		StudentID:     student.ID,
		TransactionID: "TX-1001",
	})
	if err != nil {
		t.Fatalf("confirm payment failed: %v", err)
	}
	if paid.Status != constants.OrderStatusPaid || paid.PaymentStatus != constants.PaymentStatusCompleted {
		t.Fatalf("unexpected status: %s/%s", paid.Status, paid.PaymentStatus)
	}
	if paid.TransactionID != "TX-1001" || paid.PaidAt == nil || paid.PaymentAttempts != 1 {
		t.Fatalf("unexpected payment fields: %+v", paid)
	}
	item := paid.Items[0]
	if item.ValidFrom == nil || item.ValidUntil == nil {
		t.Fatalf("lesson validity not activated: %+v", item)
	}
	if days := item.ValidUntil.Sub(*item.ValidFrom).Hours() / 24; days < 89 || days > 91 {
		t.Fatalf("package validity should be 90 days, got %.1f", days)
	}
	if len(f.queue.emails) != 1 || f.queue.emails[0].Status != constants.OrderStatusPaid {
		t.Fatalf("paid email not queued: %+v", f.queue.emails)
	}

	again, err := f.settlementService.ConfirmPayment(context.Background(), ConfirmPaymentInput{OrderID: order.ID, StudentID: student.ID, TransactionID: "TX-1001"})
	if err != nil || again.Status != constants.OrderStatusPaid {
		t.Fatalf("repeated confirmation should be idempotent, got %v", err)
	}
	if f.gateway.calls != 1 {
		t.Fatalf("gateway calls = %d, want 1", f.gateway.calls)
	}
	if _, err := f.settlementService.ConfirmPayment(context.Background(), ConfirmPaymentInput{OrderID: order.ID, StudentID: student.ID, TransactionID: "TX-OTHER"}); !errors.Is(err, ErrTransactionMismatch) {
		t.Fatalf("expected ErrTransactionMismatch, got %v", err)
	}
	if len(f.queue.emails) != 1 {
		t.Fatalf("no additional email expected, got %d", len(f.queue.emails))
	}
}

func TestConfirmPaymentDefersWhenGatewayUnavailable(t *testing.T) {
	f := setupServiceFixture(t)
	student := f.createUser(t, "student@example.com", constants.RoleStudent)
	course := f.createCourse(t, 9, "50")
	order := f.checkoutWith(t, student.ID, course, constants.PackageTypeSingle, 1, "")

	f.gateway.err = payment.ErrGatewayUnavailable
	_, err := f.settlementService.ConfirmPayment(context.Background(), ConfirmPaymentInput{OrderID: order.ID, StudentID: student.ID, TransactionID: "TX-2001"})
	if !errors.Is(err, ErrPaymentDeferred) || KindOf(err) != KindDependency {
		t.Fatalf("expected ErrPaymentDeferred, got %v", err)
	}
	current := f.reloadOrder(t, order.ID)
	if current.Status != constants.OrderStatusProcessing || current.TransactionID != "TX-2001" {
		t.Fatalf("order should stay processing, got %s", current.Status)
	}
	if len(f.queue.verifies) != 1 || f.queue.verifies[0].OrderID != order.ID {
		t.Fatalf("verify task not queued: %+v", f.queue.verifies)
	}
	if last := f.queue.delays[len(f.queue.delays)-1]; last != time.Minute {
		t.Fatalf("verify delay = %s, want 1m", last)
	}

	// worker 重试时网关仍故障，错误交给队列
	if err := f.settlementService.VerifyPayment(context.Background(), order.ID, "TX-2001"); !errors.Is(err, payment.ErrGatewayUnavailable) {
		t.Fatalf("worker should surface gateway error, got %v", err)
	}

	f.gateway.err = nil
	if err := f.settlementService.VerifyPayment(context.Background(), order.ID, "TX-2001"); err != nil {
		t.Fatalf("verify payment failed: %v", err)
	}
	current = f.reloadOrder(t, order.ID)
	if current.Status != constants.OrderStatusPaid || current.PaymentAttempts != 3 {
		t.Fatalf("order should be paid after 3 attempts, got %s attempts=%d", current.Status, current.PaymentAttempts)
	}
	if err := f.settlementService.VerifyPayment(context.Background(), order.ID, "TX-2001"); err != nil {
		t.Fatalf("verifying a paid order should be a no-op, got %v", err)
	}
}

func TestVerifyPaymentCancelsAfterMaxAttempts(t *testing.T) {
	f := setupServiceFixture(t)
	student := f.createUser(t, "student@example.com", constants.RoleStudent)
	course := f.createCourse(t, 9, "50")
	coupon := f.createCoupon(t, "RETRYME1", constants.CouponTypeFixed, "5", nil)
	order := f.checkoutWith(t, student.ID, course, constants.PackageTypeSingle, 1, "RETRYME1")

	f.gateway.err = payment.ErrGatewayUnavailable
	if _, err := f.settlementService.ConfirmPayment(context.Background(), ConfirmPaymentInput{OrderID: order.ID, StudentID: student.ID, TransactionID: "TX-3001"}); !errors.Is(err, ErrPaymentDeferred) {
		t.Fatalf("expected deferral, got %v", err)
	}
	for i := 0; i < 2; i++ {
		if err := f.settlementService.VerifyPayment(context.Background(), order.ID, "TX-3001"); err == nil {
			t.Fatalf("attempt %d should fail while gateway is down", i+2)
		}
	}
	if err := f.settlementService.VerifyPayment(context.Background(), order.ID, "TX-3001"); err != nil {
		t.Fatalf("exhausted verify should cancel without error, got %v", err)
	}
	current := f.reloadOrder(t, order.ID)
	if current.Status != constants.OrderStatusCancelled || current.CancelReason != constants.CancelReasonPayment {
		t.Fatalf("order should be cancelled for payment attempts, got %s/%s", current.Status, current.CancelReason)
	}
	if got := f.reloadCoupon(t, coupon.ID).UsedCount; got != 0 {
		t.Fatalf("coupon slot should be released, used_count=%d", got)
	}
}

func TestConfirmPaymentDeclinedReturnsToPending(t *testing.T) {
	f := setupServiceFixture(t)
	student := f.createUser(t, "student@example.com", constants.RoleStudent)
	course := f.createCourse(t, 9, "50")
	order := f.checkoutWith(t, student.ID, course, constants.PackageTypeSingle, 1, "")

	f.gateway.result = &payment.VerifyResult{Status: payment.StatusDeclined, Reason: "card declined"}
	_, err := f.settlementService.ConfirmPayment(context.Background(), ConfirmPaymentInput{OrderID: order.ID, StudentID: student.ID, TransactionID: "TX-4001"})
	if !errors.Is(err, ErrPaymentDeclined) {
		t.Fatalf("expected ErrPaymentDeclined, got %v", err)
	}
	current := f.reloadOrder(t, order.ID)
	if current.Status != constants.OrderStatusPending || current.PaymentStatus != constants.PaymentStatusFailed {
		t.Fatalf("declined order should return to pending/failed, got %s/%s", current.Status, current.PaymentStatus)
	}

	f.gateway.result = nil
	paid, err := f.settlementService.ConfirmPayment(context.Background(), ConfirmPaymentInput{OrderID: order.ID, StudentID: student.ID, TransactionID: "TX-4002"})
	if err != nil {
		t.Fatalf("retry after decline failed: %v", err)
	}
	if paid.Status != constants.OrderStatusPaid || paid.TransactionID != "TX-4002" {
		t.Fatalf("unexpected order after retry: %s %s", paid.Status, paid.TransactionID)
	}
}

func TestGatewayPendingKeepsProcessing(t *testing.T) {
	f := setupServiceFixture(t)
	student := f.createUser(t, "student@example.com", constants.RoleStudent)
	course := f.createCourse(t, 9, "50")
	order := f.checkoutWith(t, student.ID, course, constants.PackageTypeSingle, 1, "")

	f.gateway.result = &payment.VerifyResult{Status: payment.StatusPending}
	current, err := f.settlementService.ConfirmPayment(context.Background(), ConfirmPaymentInput{OrderID: order.ID, StudentID: student.ID, TransactionID: "TX-5001"})
	if err != nil {
		t.Fatalf("pending verification should not fail: %v", err)
	}
	if current.Status != constants.OrderStatusProcessing || len(f.queue.verifies) != 1 {
		t.Fatalf("expected processing with verify queued, got %s verifies=%d", current.Status, len(f.queue.verifies))
	}
}

func TestPaymentCallbackIsIdempotent(t *testing.T) {
	f := setupServiceFixture(t)
	student := f.createUser(t, "student@example.com", constants.RoleStudent)
	course := f.createCourse(t, 9, "50", pianoPackage())
	order := f.checkoutWith(t, student.ID, course, constants.PackageTypePackage, 4, "")
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		paid, err := f.settlementService.HandlePaymentCallback(ctx, PaymentCallbackInput{OrderNo: order.OrderNo, TransactionID: "CB-1", Status: "COMPLETED"})
		if err != nil {
			t.Fatalf("callback %d failed: %v", i, err)
		}
		if paid.Status != constants.OrderStatusPaid {
			t.Fatalf("callback %d: status %s", i, paid.Status)
		}
	}
	if len(f.queue.emails) != 1 {
		t.Fatalf("duplicate callbacks must settle once, emails=%d", len(f.queue.emails))
	}
	if f.gateway.calls != 0 {
		t.Fatalf("callbacks must not call the gateway")
	}
	current := f.reloadOrder(t, order.ID)
	if current.Items[0].RemainingLessons != 4 || current.Items[0].ValidUntil == nil {
		t.Fatalf("lessons should be activated once: %+v", current.Items[0])
	}

	if _, err := f.settlementService.HandlePaymentCallback(ctx, PaymentCallbackInput{OrderNo: order.OrderNo, TransactionID: "CB-2", Status: "completed"}); !errors.Is(err, ErrTransactionMismatch) {
		t.Fatalf("expected ErrTransactionMismatch, got %v", err)
	}
	failed, err := f.settlementService.HandlePaymentCallback(ctx, PaymentCallbackInput{OrderNo: order.OrderNo, TransactionID: "CB-1", Status: "failed"})
	if err != nil || failed.Status != constants.OrderStatusPaid {
		t.Fatalf("late failure callback must not touch a paid order: %v", err)
	}
	if _, err := f.settlementService.HandlePaymentCallback(ctx, PaymentCallbackInput{OrderNo: order.OrderNo, Status: "mystery"}); !errors.Is(err, ErrCallbackInvalid) {
		t.Fatalf("expected ErrCallbackInvalid, got %v", err)
	}
	if _, err := f.settlementService.HandlePaymentCallback(ctx, PaymentCallbackInput{OrderNo: "MT000", TransactionID: "CB-1", Status: "completed"}); !errors.Is(err, ErrOrderNotFound) {
		t.Fatalf("expected ErrOrderNotFound, got %v", err)
	}
}

func TestCallbackAfterCancelIsRejected(t *testing.T) {
	f := setupServiceFixture(t)
	student := f.createUser(t, "student@example.com", constants.RoleStudent)
	course := f.createCourse(t, 9, "50")
	order := f.checkoutWith(t, student.ID, course, constants.PackageTypeSingle, 1, "")
	ctx := context.Background()

	if _, err := f.settlementService.CancelOrder(ctx, CancelOrderInput{OrderID: order.ID, StudentID: student.ID}); err != nil {
		t.Fatalf("cancel failed: %v", err)
	}
	if _, err := f.settlementService.HandlePaymentCallback(ctx, PaymentCallbackInput{OrderNo: order.OrderNo, TransactionID: "CB-9", Status: "completed"}); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
	if f.reloadOrder(t, order.ID).Status != constants.OrderStatusCancelled {
		t.Fatalf("cancelled order must stay cancelled")
	}
}

func TestCancelOrderReleasesCoupon(t *testing.T) {
	f := setupServiceFixture(t)
	student := f.createUser(t, "student@example.com", constants.RoleStudent)
	other := f.createUser(t, "other@example.com", constants.RoleStudent)
	course := f.createCourse(t, 9, "50")
	second := f.createCourse(t, 10, "70")
	coupon := f.createCoupon(t, "COMEBACK", constants.CouponTypeFixed, "10", nil)
	ctx := context.Background()

	order := f.checkoutWith(t, student.ID, course, constants.PackageTypeSingle, 1, "COMEBACK")
	if _, err := f.settlementService.CancelOrder(ctx, CancelOrderInput{OrderID: order.ID, StudentID: other.ID}); !errors.Is(err, ErrOrderNotFound) {
		t.Fatalf("foreign student must not cancel, got %v", err)
	}

	cancelled, err := f.settlementService.CancelOrder(ctx, CancelOrderInput{OrderID: order.ID, StudentID: student.ID})
	if err != nil {
		t.Fatalf("cancel failed: %v", err)
	}
	if cancelled.Status != constants.OrderStatusCancelled || cancelled.CancelReason != constants.CancelReasonUser || cancelled.CancelledAt == nil {
		t.Fatalf("unexpected cancelled order: %+v", cancelled)
	}
	if got := f.reloadCoupon(t, coupon.ID).UsedCount; got != 0 {
		t.Fatalf("used_count = %d, want 0", got)
	}
	if redemption, _ := f.redemptions.GetAppliedByOrder(order.ID); redemption != nil {
		t.Fatalf("redemption should be released")
	}
	emails := len(f.queue.emails)

	again, err := f.settlementService.CancelOrder(ctx, CancelOrderInput{OrderID: order.ID, StudentID: student.ID})
	if err != nil || again.Status != constants.OrderStatusCancelled {
		t.Fatalf("second cancel should be idempotent, got %v", err)
	}
	if len(f.queue.emails) != emails {
		t.Fatalf("idempotent cancel must not notify again")
	}
	if got := f.reloadCoupon(t, coupon.ID).UsedCount; got != 0 {
		t.Fatalf("second cancel must not release twice, used_count=%d", got)
	}

	// 释放后学生可以再次使用该优惠码
	reused := f.checkoutWith(t, student.ID, second, constants.PackageTypeSingle, 1, "COMEBACK")
	if reused.CouponID == nil || reused.TotalAmount.String() != "60.00" {
		t.Fatalf("released coupon should apply again: %+v", reused)
	}
}

func TestCancelPaidOrderIsRejected(t *testing.T) {
	f := setupServiceFixture(t)
	student := f.createUser(t, "student@example.com", constants.RoleStudent)
	course := f.createCourse(t, 9, "50")
	order := f.paidOrder(t, student.ID, course, constants.PackageTypeSingle, 1)

	if _, err := f.settlementService.CancelOrder(context.Background(), CancelOrderInput{OrderID: order.ID}); !errors.Is(err, ErrOrderCancelPaid) {
		t.Fatalf("expected ErrOrderCancelPaid, got %v", err)
	}
}

func TestExpirePendingOrders(t *testing.T) {
	f := setupServiceFixture(t)
	student := f.createUser(t, "student@example.com", constants.RoleStudent)
	course := f.createCourse(t, 9, "50")
	coupon := f.createCoupon(t, "TIMEOUT1", constants.CouponTypeFixed, "10", nil)
	order := f.checkoutWith(t, student.ID, course, constants.PackageTypeSingle, 1, "TIMEOUT1")
	ctx := context.Background()

	if err := f.settlementService.ExpirePendingOrder(ctx, order.ID); err != nil {
		t.Fatalf("expire failed: %v", err)
	}
	if f.reloadOrder(t, order.ID).Status != constants.OrderStatusPending {
		t.Fatalf("order must not expire before its deadline")
	}

	past := time.Now().Add(-time.Minute)
	if err := f.db.Model(&models.Order{}).Where("id = ?", order.ID).UpdateColumn("expires_at", past).Error; err != nil {
		t.Fatalf("update expires_at failed: %v", err)
	}
	expired, err := f.settlementService.ExpireOverdue(ctx, time.Now(), 10)
	if err != nil {
		t.Fatalf("expire overdue failed: %v", err)
	}
	if expired != 1 {
		t.Fatalf("expired = %d, want 1", expired)
	}
	current := f.reloadOrder(t, order.ID)
	if current.Status != constants.OrderStatusCancelled || current.CancelReason != constants.CancelReasonTimeout {
		t.Fatalf("unexpected order after expiry: %s/%s", current.Status, current.CancelReason)
	}
	if got := f.reloadCoupon(t, coupon.ID).UsedCount; got != 0 {
		t.Fatalf("expired order should release coupon, used_count=%d", got)
	}

	// 支付后到达的超时任务不做任何事
	paid := f.paidOrder(t, student.ID, course, constants.PackageTypeSingle, 1)
	if err := f.settlementService.ExpirePendingOrder(ctx, paid.ID); err != nil {
		t.Fatalf("expire on paid order should be a no-op, got %v", err)
	}
	if f.reloadOrder(t, paid.ID).Status != constants.OrderStatusPaid {
		t.Fatalf("paid order must stay paid")
	}
}

func TestManualPaymentAwaitsAdminConfirmation(t *testing.T) {
	f := setupServiceFixture(t)
	student := f.createUser(t, "student@example.com", constants.RoleStudent)
	course := f.createCourse(t, 9, "50")
	order := f.checkoutManual(t, student.ID, course)
	ctx := context.Background()

	current, err := f.settlementService.ConfirmPayment(ctx, ConfirmPaymentInput{OrderID: order.ID, StudentID: student.ID, TransactionID: "CASH-1"})
	if err != nil {
		t.Fatalf("manual confirm failed: %v", err)
	}
	if current.Status != constants.OrderStatusProcessing || f.gateway.calls != 0 {
		t.Fatalf("manual order should wait in processing without gateway calls, got %s calls=%d", current.Status, f.gateway.calls)
	}
	if _, err := f.settlementService.ConfirmPayment(ctx, ConfirmPaymentInput{OrderID: order.ID, StudentID: student.ID, TransactionID: "CASH-1"}); !errors.Is(err, ErrPaymentAwaitingManual) {
		t.Fatalf("expected ErrPaymentAwaitingManual, got %v", err)
	}

	paid, err := f.settlementService.AdminConfirmPayment(order.ID, "")
	if err != nil {
		t.Fatalf("admin confirm failed: %v", err)
	}
	if paid.Status != constants.OrderStatusPaid || paid.TransactionID != "CASH-1" {
		t.Fatalf("unexpected order after admin confirm: %s %s", paid.Status, paid.TransactionID)
	}
	if _, err := f.settlementService.AdminConfirmPayment(order.ID, "OTHER"); !errors.Is(err, ErrTransactionMismatch) {
		t.Fatalf("expected ErrTransactionMismatch, got %v", err)
	}

	// 未提交流水的线下订单由管理员直接确认
	direct := f.checkoutManual(t, student.ID, f.createCourse(t, 10, "30"))
	paid, err = f.settlementService.AdminConfirmPayment(direct.ID, "")
	if err != nil {
		t.Fatalf("admin confirm of pending order failed: %v", err)
	}
	if paid.Status != constants.OrderStatusPaid || paid.TransactionID != "manual-"+direct.OrderNo {
		t.Fatalf("unexpected direct confirmation: %s %s", paid.Status, paid.TransactionID)
	}
}

func TestRefundClearsLessonsAndFutureAppointments(t *testing.T) {
	f := setupServiceFixture(t)
	student := f.createUser(t, "student@example.com", constants.RoleStudent)
	course := f.createCourse(t, 9, "50", pianoPackage())
	order := f.paidOrder(t, student.ID, course, constants.PackageTypePackage, 4)
	ctx := context.Background()

	appointment, err := f.appointmentService.Book(ctx, BookInput{
		StudentID:   student.ID,
		OrderItemID: order.Items[0].ID,
		StartTime:   time.Now().Add(72 * time.Hour),
	})
	if err != nil {
		t.Fatalf("book failed: %v", err)
	}

	refunded, err := f.settlementService.RefundOrder(ctx, order.ID)
	if err != nil {
		t.Fatalf("refund failed: %v", err)
	}
	if refunded.Status != constants.OrderStatusRefunded || refunded.PaymentStatus != constants.PaymentStatusRefunded {
		t.Fatalf("unexpected refund status: %s/%s", refunded.Status, refunded.PaymentStatus)
	}
	if refunded.Items[0].RemainingLessons != 0 {
		t.Fatalf("remaining lessons should be zero, got %d", refunded.Items[0].RemainingLessons)
	}
	reloaded, err := f.appointments.GetByID(appointment.ID)
	if err != nil || reloaded.Status != constants.AppointmentStatusCancelled {
		t.Fatalf("future appointment should be cancelled: %+v err=%v", reloaded, err)
	}
	if _, err := f.settlementService.RefundOrder(ctx, order.ID); err != nil {
		t.Fatalf("second refund should be idempotent, got %v", err)
	}

	pending := f.checkoutWith(t, student.ID, f.createCourse(t, 10, "40"), constants.PackageTypeSingle, 1, "")
	if _, err := f.settlementService.RefundOrder(ctx, pending.ID); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("refunding an unpaid order should fail, got %v", err)
	}
}

func TestCompleteAppointmentConsumesOneLesson(t *testing.T) {
	f := setupServiceFixture(t)
	student := f.createUser(t, "student@example.com", constants.RoleStudent)
	course := f.createCourse(t, 9, "50", pianoPackage())
	order := f.paidOrder(t, student.ID, course, constants.PackageTypePackage, 4)
	ctx := context.Background()

	appointment, err := f.appointmentService.Book(ctx, BookInput{
		StudentID:   student.ID,
		OrderItemID: order.Items[0].ID,
		StartTime:   time.Now().Add(time.Hour),
	})
	if err != nil {
		t.Fatalf("book failed: %v", err)
	}

	if _, err := f.settlementService.CompleteAppointment(ctx, appointment.ID, Actor{UserID: 99, Role: constants.RoleTeacher}); !errors.Is(err, ErrAppointmentForbidden) {
		t.Fatalf("expected ErrAppointmentForbidden, got %v", err)
	}
	teacher := Actor{UserID: course.TeacherID, Role: constants.RoleTeacher}
	completed, err := f.settlementService.CompleteAppointment(ctx, appointment.ID, teacher)
	if err != nil {
		t.Fatalf("complete failed: %v", err)
	}
	if completed.Status != constants.AppointmentStatusCompleted || completed.CompletedAt == nil {
		t.Fatalf("unexpected appointment: %+v", completed)
	}
	if _, err := f.settlementService.CompleteAppointment(ctx, appointment.ID, teacher); !errors.Is(err, ErrAppointmentTransition) {
		t.Fatalf("second completion should fail with ErrAppointmentTransition, got %v", err)
	}
	item, err := f.orders.GetItem(order.Items[0].ID)
	if err != nil {
		t.Fatalf("get item failed: %v", err)
	}
	if item.RemainingLessons != 3 {
		t.Fatalf("remaining lessons = %d, want 3", item.RemainingLessons)
	}
}

func TestReconcileProcessingOrders(t *testing.T) {
	f := setupServiceFixture(t)
	student := f.createUser(t, "student@example.com", constants.RoleStudent)
	ctx := context.Background()

	f.gateway.err = payment.ErrGatewayUnavailable
	retryable := f.checkoutWith(t, student.ID, f.createCourse(t, 9, "50"), constants.PackageTypeSingle, 1, "")
	if _, err := f.settlementService.ConfirmPayment(ctx, ConfirmPaymentInput{OrderID: retryable.ID, StudentID: student.ID, TransactionID: "TX-R1"}); !errors.Is(err, ErrPaymentDeferred) {
		t.Fatalf("expected deferral, got %v", err)
	}
	exhausted := f.checkoutWith(t, student.ID, f.createCourse(t, 10, "50"), constants.PackageTypeSingle, 1, "")
	if _, err := f.settlementService.ConfirmPayment(ctx, ConfirmPaymentInput{OrderID: exhausted.ID, StudentID: student.ID, TransactionID: "TX-R2"}); !errors.Is(err, ErrPaymentDeferred) {
		t.Fatalf("expected deferral, got %v", err)
	}
	if err := f.db.Model(&models.Order{}).Where("id = ?", exhausted.ID).UpdateColumn("payment_attempts", 3).Error; err != nil {
		t.Fatalf("bump attempts failed: %v", err)
	}
	manual := f.checkoutManual(t, student.ID, f.createCourse(t, 11, "50"))
	if _, err := f.settlementService.ConfirmPayment(ctx, ConfirmPaymentInput{OrderID: manual.ID, StudentID: student.ID, TransactionID: "CASH-R3"}); err != nil {
		t.Fatalf("manual confirm failed: %v", err)
	}
	verifiesBefore := len(f.queue.verifies)

	result, err := f.settlementService.ReconcileProcessing(ctx, time.Now().Add(time.Second), 10)
	if err != nil {
		t.Fatalf("reconcile failed: %v", err)
	}
	if result.Requeued != 1 || result.Cancelled != 1 || result.Skipped != 1 {
		t.Fatalf("unexpected reconcile result: %+v", result)
	}
	if len(f.queue.verifies) != verifiesBefore+1 || f.queue.verifies[len(f.queue.verifies)-1].OrderID != retryable.ID {
		t.Fatalf("retryable order should be requeued: %+v", f.queue.verifies)
	}
	if f.reloadOrder(t, exhausted.ID).Status != constants.OrderStatusCancelled {
		t.Fatalf("exhausted order should be cancelled")
	}
	if f.reloadOrder(t, manual.ID).Status != constants.OrderStatusProcessing {
		t.Fatalf("manual order must wait for an admin")
	}
}

func TestCallbackWithDifferentTransactionDoesNotOverwriteProcessing(t *testing.T) {
	f := setupServiceFixture(t)
	student := f.createUser(t, "student@example.com", constants.RoleStudent)
	course := f.createCourse(t, 9, "50")
	order := f.checkoutWith(t, student.ID, course, constants.PackageTypeSingle, 1, "")
	ctx := context.Background()

	f.gateway.result = &payment.VerifyResult{Status: payment.StatusPending}
	if _, err := f.settlementService.ConfirmPayment(ctx, ConfirmPaymentInput{OrderID: order.ID, StudentID: student.ID, TransactionID: "TX-6001"}); err != nil {
		t.Fatalf("confirm payment failed: %v", err)
	}

	if _, err := f.settlementService.HandlePaymentCallback(ctx, PaymentCallbackInput{OrderNo: order.OrderNo, TransactionID: "TX-6002", Status: "completed"}); !errors.Is(err, ErrTransactionMismatch) {
		t.Fatalf("expected ErrTransactionMismatch, got %v", err)
	}
	current := f.reloadOrder(t, order.ID)
	if current.Status != constants.OrderStatusProcessing || current.TransactionID != "TX-6001" {
		t.Fatalf("processing order must keep its transaction, got %s %s", current.Status, current.TransactionID)
	}
	if len(f.queue.emails) != 0 {
		t.Fatalf("mismatched callback must not notify, emails=%d", len(f.queue.emails))
	}

	paid, err := f.settlementService.HandlePaymentCallback(ctx, PaymentCallbackInput{OrderNo: order.OrderNo, TransactionID: "TX-6001", Status: "completed"})
	if err != nil {
		t.Fatalf("matching callback failed: %v", err)
	}
	if paid.Status != constants.OrderStatusPaid || paid.TransactionID != "TX-6001" {
		t.Fatalf("unexpected order after callback: %s %s", paid.Status, paid.TransactionID)
	}
}

func TestCompleteAppointmentWithoutBalanceKeepsAppointment(t *testing.T) {
	f := setupServiceFixture(t)
	student := f.createUser(t, "student@example.com", constants.RoleStudent)
	course := f.createCourse(t, 9, "50")
	order := f.paidOrder(t, student.ID, course, constants.PackageTypeSingle, 1)
	ctx := context.Background()

	appointment, err := f.appointmentService.Book(ctx, BookInput{
		StudentID:   student.ID,
		OrderItemID: order.Items[0].ID,
		StartTime:   time.Now().Add(time.Hour),
	})
	if err != nil {
		t.Fatalf("book failed: %v", err)
	}
	if err := f.db.Model(&models.OrderItem{}).Where("id = ?", order.Items[0].ID).UpdateColumn("remaining_lessons", 0).Error; err != nil {
		t.Fatalf("drain balance failed: %v", err)
	}

	teacher := Actor{UserID: course.TeacherID, Role: constants.RoleTeacher}
	if _, err := f.settlementService.CompleteAppointment(ctx, appointment.ID, teacher); !errors.Is(err, ErrLessonBalanceEmpty) {
		t.Fatalf("expected ErrLessonBalanceEmpty, got %v", err)
	}
	reloaded, err := f.appointments.GetByID(appointment.ID)
	if err != nil {
		t.Fatalf("reload appointment failed: %v", err)
	}
	if reloaded.Status != constants.AppointmentStatusScheduled || reloaded.CompletedAt != nil {
		t.Fatalf("appointment should stay scheduled, got %s", reloaded.Status)
	}
	item, err := f.orders.GetItem(order.Items[0].ID)
	if err != nil {
		t.Fatalf("get item failed: %v", err)
	}
	if item.RemainingLessons != 0 {
		t.Fatalf("remaining lessons = %d, want 0", item.RemainingLessons)
	}
}
