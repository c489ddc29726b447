package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/musictutor-next/internal/constants"
	"github.com/musictutor-next/internal/metrics"
	"github.com/musictutor-next/internal/models"
	"github.com/musictutor-next/internal/payment"
	"github.com/musictutor-next/internal/repository"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

// gatewayStub 可控的支付网关
type gatewayStub struct {
	mu     sync.Mutex
	result *payment.VerifyResult
	err    error
	calls  int
}

func (g *gatewayStub) Verify(_ context.Context, input payment.VerifyInput) (*payment.VerifyResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	if g.err != nil {
		return nil, g.err
	}
	if g.result == nil {
		return &payment.VerifyResult{Status: payment.StatusCompleted, TransactionID: input.TransactionID}, nil
	}
	result := *g.result
	return &result, nil
}

type serviceFixture struct {
	db           *gorm.DB
	users        *repository.GormUserRepository
	courses      *repository.GormCourseRepository
	coupons      *repository.GormCouponRepository
	redemptions  *repository.GormRedemptionRepository
	carts        *repository.GormCartRepository
	orders       *repository.GormOrderRepository
	appointments *repository.GormAppointmentRepository
	availability *repository.GormAvailabilityRepository
	reviews      *repository.GormReviewRepository
	queue        *taskQueueStub
	gateway      *gatewayStub
	recorder     *metrics.Recorder

	cartService         *CartService
	checkoutService     *CheckoutService
	settlementService   *SettlementService
	appointmentService  *AppointmentService
	availabilityService *AvailabilityService
	reviewService       *ReviewService
	couponAdmin         *CouponAdminService
	orderService        *OrderService
}

func setupServiceFixture(t *testing.T) *serviceFixture {
	t.Helper()
	dsn := fmt.Sprintf("file:service_fixture_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("get sql db failed: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	models.DB = db
	if err := models.AutoMigrate(); err != nil {
		t.Fatalf("auto migrate failed: %v", err)
	}

	f := &serviceFixture{
		db:           db,
		users:        repository.NewUserRepository(db),
		courses:      repository.NewCourseRepository(db),
		coupons:      repository.NewCouponRepository(db),
		redemptions:  repository.NewRedemptionRepository(db),
		carts:        repository.NewCartRepository(db),
		orders:       repository.NewOrderRepository(db),
		appointments: repository.NewAppointmentRepository(db),
		availability: repository.NewAvailabilityRepository(db),
		reviews:      repository.NewReviewRepository(db),
		queue:        &taskQueueStub{},
		gateway:      &gatewayStub{},
		recorder:     metrics.New(),
	}
	couponService := NewCouponService(f.coupons, f.redemptions)
	f.cartService = NewCartService(f.carts, f.courses, f.coupons, f.redemptions, couponService, f.recorder)
	f.checkoutService = NewCheckoutService(f.carts, f.coupons, f.redemptions, f.orders, f.queue, f.recorder, 30*time.Minute)
	f.settlementService = NewSettlementService(f.orders, f.coupons, f.redemptions, f.appointments, f.users, f.gateway, f.queue, f.recorder, SettlementOptions{
		RetryDelay:          time.Minute,
		MaxAttempts:         3,
		DefaultValidityDays: 180,
	})
	f.appointmentService = NewAppointmentService(f.appointments, f.orders, f.courses, f.availability, time.UTC)
	f.availabilityService = NewAvailabilityService(f.availability)
	f.reviewService = NewReviewService(f.reviews, f.appointments, f.courses)
	f.couponAdmin = NewCouponAdminService(f.coupons, f.redemptions)
	f.orderService = NewOrderService(f.orders, f.settlementService)
	return f
}

func (f *serviceFixture) createUser(t *testing.T, email, role string) *models.User {
	t.Helper()
	user := &models.User{
		Email:        email,
		PasswordHash: "x",
		Role:         role,
		Status:       constants.UserStatusActive,
	}
	if err := f.users.Create(user); err != nil {
		t.Fatalf("create user failed: %v", err)
	}
	return user
}

func (f *serviceFixture) createCourse(t *testing.T, teacherID uint, singlePrice string, options ...models.PackageOption) *models.Course {
	t.Helper()
	course := &models.Course{
		TeacherID:                 teacherID,
		Name:                      fmt.Sprintf("Course of teacher %d", teacherID),
		Instrument:                "piano",
		Level:                     constants.CourseLevelBeginner,
		Status:                    constants.CourseStatusActive,
		SingleLessonPrice:         models.MustMoney(singlePrice),
		PackageOptions:            models.PackageOptions(options),
		CancellationDeadlineHours: 24,
	}
	if err := f.courses.Create(course); err != nil {
		t.Fatalf("create course failed: %v", err)
	}
	return course
}

func (f *serviceFixture) createCoupon(t *testing.T, code, discountType, value string, mutate func(*models.Coupon)) *models.Coupon {
	t.Helper()
	now := time.Now()
	coupon := &models.Coupon{
		Name:              code,
		Code:              code,
		DiscountType:      discountType,
		DiscountValue:     models.MustMoney(value),
		MinimumPurchase:   models.ZeroMoney(),
		MaximumDiscount:   models.ZeroMoney(),
		StartsAt:          now.Add(-time.Hour),
		ExpiresAt:         now.Add(24 * time.Hour),
		UsageLimitPerUser: 1,
		IsActive:          true,
	}
	if mutate != nil {
		mutate(coupon)
	}
	if err := f.coupons.Create(coupon); err != nil {
		t.Fatalf("create coupon failed: %v", err)
	}
	return coupon
}

// checkoutWith 学生加购课程、可选套用优惠码并结账
func (f *serviceFixture) checkoutWith(t *testing.T, studentID uint, course *models.Course, packageType string, lessons int, code string) *models.Order {
	t.Helper()
	cart, err := f.cartService.AddItem(CartItemInput{StudentID: studentID, CourseID: course.ID, PackageType: packageType, Lessons: lessons})
	if err != nil {
		t.Fatalf("add item failed: %v", err)
	}
	if code != "" {
		if _, err := f.cartService.ApplyCoupon(context.Background(), studentID, cart.ID, code); err != nil {
			t.Fatalf("apply coupon failed: %v", err)
		}
	}
	order, err := f.checkoutService.Checkout(CheckoutInput{StudentID: studentID, CartID: cart.ID, PaymentMethod: constants.PaymentMethodPaypal})
	if err != nil {
		t.Fatalf("checkout failed: %v", err)
	}
	return order
}

func (f *serviceFixture) reloadCoupon(t *testing.T, id uint) *models.Coupon {
	t.Helper()
	coupon, err := f.coupons.GetByID(id)
	if err != nil || coupon == nil {
		t.Fatalf("reload coupon failed: %v", err)
	}
	return coupon
}

func (f *serviceFixture) reloadOrder(t *testing.T, id uint) *models.Order {
	t.Helper()
	order, err := f.orders.GetByID(id)
	if err != nil || order == nil {
		t.Fatalf("reload order failed: %v", err)
	}
	return order
}
