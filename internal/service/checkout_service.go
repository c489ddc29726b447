package service

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/musictutor-next/internal/constants"
	"github.com/musictutor-next/internal/logger"
	"github.com/musictutor-next/internal/metrics"
	"github.com/musictutor-next/internal/models"
	"github.com/musictutor-next/internal/payment"
	"github.com/musictutor-next/internal/pricing"
	"github.com/musictutor-next/internal/queue"
	"github.com/musictutor-next/internal/repository"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const maxUserNotesLength = 500

// CheckoutInput 结账输入
type CheckoutInput struct {
	StudentID     uint
	CartID        uint
	PaymentMethod string
	Notes         string
}

// CheckoutService 购物车结账：在同一事务内生成订单快照、记录优惠券核销并清空购物车
type CheckoutService struct {
	cartRepo       repository.CartRepository
	couponRepo     repository.CouponRepository
	redemptionRepo repository.RedemptionRepository
	orderRepo      repository.OrderRepository
	queueClient    TaskQueue
	metrics        *metrics.Recorder
	expireAfter    time.Duration
}

// NewCheckoutService 创建结账服务
func NewCheckoutService(cartRepo repository.CartRepository, couponRepo repository.CouponRepository, redemptionRepo repository.RedemptionRepository, orderRepo repository.OrderRepository, queueClient TaskQueue, recorder *metrics.Recorder, expireAfter time.Duration) *CheckoutService {
	if expireAfter <= 0 {
		expireAfter = 30 * time.Minute
	}
	return &CheckoutService{
		cartRepo:       cartRepo,
		couponRepo:     couponRepo,
		redemptionRepo: redemptionRepo,
		orderRepo:      orderRepo,
		queueClient:    queueClient,
		metrics:        recorder,
		expireAfter:    expireAfter,
	}
}

// Checkout 结账。优惠券在结账时已失效则按原价下单；名额在并发下被抢完时整单回滚并返回 ErrCouponLimitExceeded
func (s *CheckoutService) Checkout(input CheckoutInput) (*models.Order, error) {
	if input.StudentID == 0 || input.CartID == 0 {
		return nil, ErrInvalidInput
	}
	method := strings.ToLower(strings.TrimSpace(input.PaymentMethod))
	if !payment.IsSupportedMethod(method) {
		return nil, ErrPaymentMethodInvalid
	}
	notes := strings.TrimSpace(input.Notes)
	if utf8.RuneCountInString(notes) > maxUserNotesLength {
		return nil, wrapf(ErrInvalidInput, "notes exceed %d characters", maxUserNotesLength)
	}

	now := time.Now()
	expiresAt := now.Add(s.expireAfter)
	var order *models.Order
	var redeemed bool

	err := models.DB.Transaction(func(tx *gorm.DB) error {
		cartRepo := s.cartRepo.WithTx(tx)
		couponRepo := s.couponRepo.WithTx(tx)
		redemptionRepo := s.redemptionRepo.WithTx(tx)
		orderRepo := s.orderRepo.WithTx(tx)

		cart, err := cartRepo.LockByID(input.CartID)
		if err != nil {
			return err
		}
		if cart == nil || cart.StudentID != input.StudentID {
			return ErrCartNotFound
		}
		if len(cart.Items) == 0 {
			return ErrCartEmpty
		}

		totals, err := recomputeCart(cartRepo, couponRepo, redemptionRepo, cart, now)
		if err != nil {
			return err
		}
		if cart.Coupon != nil {
			s.metrics.CouponEvaluated(totals.Evaluation.Reason)
		}

		order = &models.Order{
			OrderNo:        generateOrderNo(),
			StudentID:      input.StudentID,
			Status:         constants.OrderStatusPending,
			Subtotal:       models.NewMoneyFromDecimal(totals.Subtotal),
			DiscountAmount: models.NewMoneyFromDecimal(totals.DiscountAmount),
			TotalAmount:    models.NewMoneyFromDecimal(totals.Total),
			CouponInfo:     totals.CouponInfo,
			PaymentMethod:  method,
			PaymentStatus:  constants.PaymentStatusPending,
			UserNotes:      notes,
			ExpiresAt:      &expiresAt,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		applied := cart.Coupon != nil && totals.Evaluation.Valid
		if applied {
			couponID := cart.Coupon.ID
			order.CouponID = &couponID
			order.CouponCode = cart.Coupon.Code
		}
		if err := orderRepo.Create(order, buildOrderItems(cart.Items, totals.Lines, now)); err != nil {
			return err
		}

		if applied {
			if err := recordRedemption(couponRepo, redemptionRepo, cart.Coupon, input.StudentID, order.ID, totals.DiscountAmount, now); err != nil {
				return err
			}
			redeemed = true
		}

		if err := cartRepo.ClearItems(cart.ID); err != nil {
			return err
		}
		cart.Items = nil
		cart.CouponID = nil
		cart.Coupon = nil
		cart.Subtotal = models.ZeroMoney()
		cart.DiscountAmount = models.ZeroMoney()
		cart.Total = models.ZeroMoney()
		cart.CouponInfo = models.CouponInfo{Reason: pricing.ReasonNoCoupon, Message: pricing.ReasonMessage(pricing.ReasonNoCoupon)}
		return cartRepo.SaveSummary(cart)
	})
	if err != nil {
		if errors.Is(err, ErrCouponLimitExceeded) {
			logger.Warnw("checkout_coupon_limit_exceeded",
				"student_id", input.StudentID,
				"cart_id", input.CartID,
			)
			s.metrics.Checkout("limit_exceeded")
			return nil, err
		}
		s.metrics.Checkout("failed")
		return nil, err
	}

	s.metrics.Checkout("created")
	if redeemed {
		s.metrics.RedemptionApplied()
	}
	if s.queueClient != nil {
		if err := s.queueClient.EnqueueOrderTimeoutCancel(queue.OrderTimeoutCancelPayload{OrderID: order.ID}, s.expireAfter); err != nil {
			// 兜底由 worker 的过期订单扫描处理
			logger.Errorw("order_enqueue_timeout_cancel_failed",
				"order_id", order.ID,
				"order_no", order.OrderNo,
				"error", err,
			)
		}
	}
	return order, nil
}

// recordRedemption 在结账事务内占用优惠券名额并写入核销流水
func recordRedemption(couponRepo repository.CouponRepository, redemptionRepo repository.RedemptionRepository, coupon *models.Coupon, userID, orderID uint, discount decimal.Decimal, now time.Time) error {
	ok, err := couponRepo.TryConsume(coupon.ID)
	if err != nil {
		return err
	}
	if !ok {
		return wrapf(ErrCouponLimitExceeded, "coupon %s", coupon.Code)
	}
	return redemptionRepo.Create(&models.CouponRedemption{
		CouponID:        coupon.ID,
		UserID:          userID,
		OrderID:         orderID,
		DiscountApplied: models.NewMoneyFromDecimal(discount),
		Status:          constants.RedemptionStatusApplied,
		CreatedAt:       now,
	})
}

func buildOrderItems(items []models.CartItem, lines []pricing.Line, now time.Time) []models.OrderItem {
	result := make([]models.OrderItem, 0, len(items))
	for i, item := range items {
		total := item.TotalPrice
		if i < len(lines) {
			total = models.NewMoneyFromDecimal(lines[i].TotalPrice)
		}
		result = append(result, models.OrderItem{
			CourseID:         item.CourseID,
			TeacherID:        item.TeacherID,
			CourseName:       item.CourseName,
			PackageType:      item.PackageType,
			Lessons:          item.Lessons,
			PricePerLesson:   item.PricePerLesson,
			TotalPrice:       total,
			ValidityDays:     item.ValidityDays,
			RemainingLessons: item.Lessons,
			CreatedAt:        now,
			UpdatedAt:        now,
		})
	}
	return result
}

func decimalFromInt(n int) decimal.Decimal {
	return decimal.NewFromInt(int64(n))
}

func generateOrderNo() string {
	now := time.Now().Format("20060102150405")
	randPart := randNumeric(6)
	return fmt.Sprintf("MT%s%s", now, randPart)
}

func randNumeric(length int) string {
	var b strings.Builder
	for i := 0; i < length; i++ {
		n, err := rand.Int(rand.Reader, big.NewInt(10))
		if err != nil {
			b.WriteString("0")
			continue
		}
		b.WriteString(fmt.Sprintf("%d", n.Int64()))
	}
	return b.String()
}
