package service

import (
	"context"
	"strings"
	"time"

	"github.com/musictutor-next/internal/constants"
	"github.com/musictutor-next/internal/logger"
	"github.com/musictutor-next/internal/metrics"
	"github.com/musictutor-next/internal/models"
	"github.com/musictutor-next/internal/pricing"
	"github.com/musictutor-next/internal/repository"

	"gorm.io/gorm"
)

// CartItemInput 购物车项输入
type CartItemInput struct {
	StudentID   uint
	CourseID    uint
	PackageType string
	Lessons     int
}

// CartService 购物车服务
type CartService struct {
	cartRepo       repository.CartRepository
	courseRepo     repository.CourseRepository
	couponRepo     repository.CouponRepository
	redemptionRepo repository.RedemptionRepository
	couponService  *CouponService
	metrics        *metrics.Recorder
}

// NewCartService 创建购物车服务
func NewCartService(cartRepo repository.CartRepository, courseRepo repository.CourseRepository, couponRepo repository.CouponRepository, redemptionRepo repository.RedemptionRepository, couponService *CouponService, recorder *metrics.Recorder) *CartService {
	return &CartService{
		cartRepo:       cartRepo,
		courseRepo:     courseRepo,
		couponRepo:     couponRepo,
		redemptionRepo: redemptionRepo,
		couponService:  couponService,
		metrics:        recorder,
	}
}

// GetCart 获取学生购物车，不存在时创建；每次读取都会重新计算金额与优惠券有效性
func (s *CartService) GetCart(studentID uint) (*models.Cart, error) {
	if studentID == 0 {
		return nil, ErrInvalidInput
	}
	var result *models.Cart
	err := models.DB.Transaction(func(tx *gorm.DB) error {
		cartRepo := s.cartRepo.WithTx(tx)
		cart, err := getOrCreateCart(cartRepo, studentID)
		if err != nil {
			return err
		}
		if _, err := s.recompute(tx, cart, time.Now()); err != nil {
			return err
		}
		result = cart
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// AddItem 加入课程，同一课程只能出现一次
func (s *CartService) AddItem(input CartItemInput) (*models.Cart, error) {
	if input.StudentID == 0 || input.CourseID == 0 {
		return nil, ErrInvalidInput
	}
	course, err := s.courseRepo.GetByID(input.CourseID)
	if err != nil {
		return nil, err
	}
	line, err := resolveCartLine(course, input.PackageType, input.Lessons)
	if err != nil {
		return nil, err
	}

	var result *models.Cart
	err = models.DB.Transaction(func(tx *gorm.DB) error {
		cartRepo := s.cartRepo.WithTx(tx)
		cart, err := getOrCreateCart(cartRepo, input.StudentID)
		if err != nil {
			return err
		}
		existing, err := cartRepo.GetItem(cart.ID, course.ID)
		if err != nil {
			return err
		}
		if existing != nil {
			return ErrCartItemExists
		}
		position, err := cartRepo.NextPosition(cart.ID)
		if err != nil {
			return err
		}
		line.CartID = cart.ID
		line.Position = position
		if err := cartRepo.CreateItem(line); err != nil {
			return err
		}
		result, err = s.reloadAndRecompute(tx, cart.ID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// UpdateItem 修改购买方案或课时数
func (s *CartService) UpdateItem(input CartItemInput) (*models.Cart, error) {
	if input.StudentID == 0 || input.CourseID == 0 {
		return nil, ErrInvalidInput
	}
	course, err := s.courseRepo.GetByID(input.CourseID)
	if err != nil {
		return nil, err
	}
	line, err := resolveCartLine(course, input.PackageType, input.Lessons)
	if err != nil {
		return nil, err
	}

	var result *models.Cart
	err = models.DB.Transaction(func(tx *gorm.DB) error {
		cartRepo := s.cartRepo.WithTx(tx)
		cart, err := cartRepo.GetByStudent(input.StudentID)
		if err != nil {
			return err
		}
		if cart == nil {
			return ErrCartNotFound
		}
		item, err := cartRepo.GetItem(cart.ID, course.ID)
		if err != nil {
			return err
		}
		if item == nil {
			return ErrCartItemNotFound
		}
		item.PackageType = line.PackageType
		item.Lessons = line.Lessons
		item.PricePerLesson = line.PricePerLesson
		item.TotalPrice = line.TotalPrice
		item.ValidityDays = line.ValidityDays
		item.CourseName = line.CourseName
		if err := cartRepo.UpdateItem(item); err != nil {
			return err
		}
		result, err = s.reloadAndRecompute(tx, cart.ID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// RemoveItem 移除课程
func (s *CartService) RemoveItem(studentID, courseID uint) (*models.Cart, error) {
	if studentID == 0 || courseID == 0 {
		return nil, ErrInvalidInput
	}
	var result *models.Cart
	err := models.DB.Transaction(func(tx *gorm.DB) error {
		cartRepo := s.cartRepo.WithTx(tx)
		cart, err := cartRepo.GetByStudent(studentID)
		if err != nil {
			return err
		}
		if cart == nil {
			return ErrCartNotFound
		}
		removed, err := cartRepo.DeleteItem(cart.ID, courseID)
		if err != nil {
			return err
		}
		if !removed {
			return ErrCartItemNotFound
		}
		result, err = s.reloadAndRecompute(tx, cart.ID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// ApplyCoupon 套用优惠码。优惠码存在即挂到购物车上，校验失败只体现在 coupon_info 中
func (s *CartService) ApplyCoupon(ctx context.Context, studentID, cartID uint, code string) (*models.Cart, error) {
	if studentID == 0 || cartID == 0 {
		return nil, ErrInvalidInput
	}
	coupon, err := s.couponService.ResolveCode(ctx, code)
	if err != nil {
		return nil, err
	}

	var result *models.Cart
	err = models.DB.Transaction(func(tx *gorm.DB) error {
		cart, err := loadOwnedCart(s.cartRepo.WithTx(tx), studentID, cartID)
		if err != nil {
			return err
		}
		couponID := coupon.ID
		cart.CouponID = &couponID
		totals, err := s.recompute(tx, cart, time.Now())
		if err != nil {
			return err
		}
		if !totals.Evaluation.Valid {
			logger.Infow("cart_coupon_rejected",
				"cart_id", cart.ID,
				"student_id", studentID,
				"code", coupon.Code,
				"reason", totals.Evaluation.Reason,
			)
		}
		result = cart
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// RemoveCoupon 移除优惠券
func (s *CartService) RemoveCoupon(studentID, cartID uint) (*models.Cart, error) {
	if studentID == 0 || cartID == 0 {
		return nil, ErrInvalidInput
	}
	var result *models.Cart
	err := models.DB.Transaction(func(tx *gorm.DB) error {
		cart, err := loadOwnedCart(s.cartRepo.WithTx(tx), studentID, cartID)
		if err != nil {
			return err
		}
		cart.CouponID = nil
		cart.Coupon = nil
		if _, err := s.recompute(tx, cart, time.Now()); err != nil {
			return err
		}
		result = cart
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *CartService) reloadAndRecompute(tx *gorm.DB, cartID uint) (*models.Cart, error) {
	cart, err := s.cartRepo.WithTx(tx).GetByID(cartID)
	if err != nil {
		return nil, err
	}
	if cart == nil {
		return nil, ErrCartNotFound
	}
	if _, err := s.recompute(tx, cart, time.Now()); err != nil {
		return nil, err
	}
	return cart, nil
}

func (s *CartService) recompute(tx *gorm.DB, cart *models.Cart, now time.Time) (pricing.Totals, error) {
	totals, err := recomputeCart(s.cartRepo.WithTx(tx), s.couponRepo.WithTx(tx), s.redemptionRepo.WithTx(tx), cart, now)
	if err != nil {
		return totals, err
	}
	if cart.Coupon != nil {
		s.metrics.CouponEvaluated(totals.Evaluation.Reason)
	}
	return totals, nil
}

// recomputeCart 重新计算购物车金额并写回。金额只由明细与优惠券推导，不读取已存储的合计
func recomputeCart(cartRepo repository.CartRepository, couponRepo repository.CouponRepository, redemptionRepo repository.RedemptionRepository, cart *models.Cart, now time.Time) (pricing.Totals, error) {
	var coupon *models.Coupon
	if cart.CouponID != nil {
		found, err := couponRepo.GetByID(*cart.CouponID)
		if err != nil {
			return pricing.Totals{}, err
		}
		if found == nil {
			cart.CouponID = nil
		}
		coupon = found
	}
	usage, err := loadCouponUsage(redemptionRepo, coupon, cart.StudentID)
	if err != nil {
		return pricing.Totals{}, err
	}

	totals := pricing.Recompute(cartLines(cart.Items), coupon, pricing.Context{
		PurchaserID: cart.StudentID,
		Usage:       usage,
		Now:         now,
	})
	for i := range cart.Items {
		recomputed := totals.Lines[i].TotalPrice
		if cart.Items[i].TotalPrice.Equal(recomputed) {
			continue
		}
		cart.Items[i].TotalPrice = models.NewMoneyFromDecimal(recomputed)
		if err := cartRepo.UpdateItem(&cart.Items[i]); err != nil {
			return pricing.Totals{}, err
		}
	}

	cart.Coupon = coupon
	cart.Subtotal = models.NewMoneyFromDecimal(totals.Subtotal)
	cart.DiscountAmount = models.NewMoneyFromDecimal(totals.DiscountAmount)
	cart.Total = models.NewMoneyFromDecimal(totals.Total)
	cart.CouponInfo = totals.CouponInfo
	if err := cartRepo.SaveSummary(cart); err != nil {
		return pricing.Totals{}, err
	}
	return totals, nil
}

func cartLines(items []models.CartItem) []pricing.Line {
	lines := make([]pricing.Line, 0, len(items))
	for _, item := range items {
		lines = append(lines, pricing.Line{
			CourseID:       item.CourseID,
			TeacherID:      item.TeacherID,
			Lessons:        item.Lessons,
			PricePerLesson: item.PricePerLesson.Decimal,
			TotalPrice:     item.TotalPrice.Decimal,
		})
	}
	return lines
}

func getOrCreateCart(cartRepo repository.CartRepository, studentID uint) (*models.Cart, error) {
	cart, err := cartRepo.GetByStudent(studentID)
	if err != nil {
		return nil, err
	}
	if cart != nil {
		return cart, nil
	}
	cart = &models.Cart{
		StudentID:  studentID,
		CouponInfo: models.CouponInfo{Message: pricing.ReasonMessage(pricing.ReasonNoCoupon), Reason: pricing.ReasonNoCoupon},
	}
	if err := cartRepo.Create(cart); err != nil {
		return nil, err
	}
	return cart, nil
}

func loadOwnedCart(cartRepo repository.CartRepository, studentID, cartID uint) (*models.Cart, error) {
	cart, err := cartRepo.GetByID(cartID)
	if err != nil {
		return nil, err
	}
	if cart == nil || cart.StudentID != studentID {
		return nil, ErrCartNotFound
	}
	return cart, nil
}

// resolveCartLine 根据课程价格与购买方案生成购物车项快照
func resolveCartLine(course *models.Course, packageType string, lessons int) (*models.CartItem, error) {
	if course == nil {
		return nil, ErrCourseNotFound
	}
	if course.Status != constants.CourseStatusActive {
		return nil, ErrCourseUnavailable
	}
	item := &models.CartItem{
		CourseID:    course.ID,
		TeacherID:   course.TeacherID,
		CourseName:  course.Name,
		PackageType: strings.ToLower(strings.TrimSpace(packageType)),
	}
	if item.PackageType == "" {
		item.PackageType = constants.PackageTypeSingle
	}
	switch item.PackageType {
	case constants.PackageTypeSingle:
		if lessons <= 0 {
			lessons = 1
		}
		if !course.SingleLessonPrice.IsPositive() {
			return nil, ErrCourseUnavailable
		}
		item.Lessons = lessons
		item.PricePerLesson = course.SingleLessonPrice
	case constants.PackageTypePackage:
		option, ok := course.PackageOptions.FindByLessons(lessons)
		if !ok || !option.PricePerLesson.IsPositive() {
			return nil, ErrPackageInvalid
		}
		item.Lessons = option.Lessons
		item.PricePerLesson = option.PricePerLesson
		item.ValidityDays = option.ValidityDays
	default:
		return nil, ErrPackageInvalid
	}
	item.TotalPrice = models.NewMoneyFromDecimal(item.PricePerLesson.Mul(decimalFromInt(item.Lessons)))
	return item, nil
}
