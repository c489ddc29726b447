package service

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/musictutor-next/internal/cache"
	"github.com/musictutor-next/internal/constants"
	"github.com/musictutor-next/internal/logger"
	"github.com/musictutor-next/internal/models"
	"github.com/musictutor-next/internal/pricing"
	"github.com/musictutor-next/internal/repository"

	"github.com/shopspring/decimal"
)

const maxCouponDescriptionLength = 500

// CouponAdminService 优惠券管理服务
type CouponAdminService struct {
	repo           repository.CouponRepository
	redemptionRepo repository.RedemptionRepository
}

// NewCouponAdminService 创建优惠券管理服务
func NewCouponAdminService(repo repository.CouponRepository, redemptionRepo repository.RedemptionRepository) *CouponAdminService {
	return &CouponAdminService{repo: repo, redemptionRepo: redemptionRepo}
}

// CouponInput 创建/更新优惠券输入
type CouponInput struct {
	Name                 string
	Code                 string
	Description          string
	DiscountType         string
	DiscountValue        models.Money
	MinimumPurchase      models.Money
	MaximumDiscount      models.Money
	StartsAt             time.Time
	ExpiresAt            time.Time
	UsageLimitTotal      int
	UsageLimitPerUser    *int
	ApplicableCourseIDs  []uint
	ApplicableTeacherIDs []uint
	IsActive             *bool
	CreatedBy            uint
}

// Create 创建优惠券
func (s *CouponAdminService) Create(ctx context.Context, input CouponInput) (*models.Coupon, error) {
	coupon := &models.Coupon{IsActive: true, UsageLimitPerUser: 1, CreatedBy: input.CreatedBy}
	if err := applyCouponInput(coupon, input); err != nil {
		return nil, err
	}
	exist, err := s.repo.GetByCode(coupon.Code)
	if err != nil {
		return nil, err
	}
	if exist != nil {
		return nil, ErrCouponCodeTaken
	}
	if err := s.repo.Create(coupon); err != nil {
		return nil, err
	}
	logger.Infow("coupon_created",
		"coupon_id", coupon.ID,
		"code", coupon.Code,
		"discount_type", coupon.DiscountType,
		"created_by", coupon.CreatedBy,
	)
	return coupon, nil
}

// Update 更新优惠券，已占用的使用次数保留
func (s *CouponAdminService) Update(ctx context.Context, id uint, input CouponInput) (*models.Coupon, error) {
	existing, err := s.get(id)
	if err != nil {
		return nil, err
	}
	previousCode := existing.Code
	input.CreatedBy = existing.CreatedBy
	if err := applyCouponInput(existing, input); err != nil {
		return nil, err
	}
	if existing.Code != previousCode {
		dup, err := s.repo.GetByCode(existing.Code)
		if err != nil {
			return nil, err
		}
		if dup != nil && dup.ID != existing.ID {
			return nil, ErrCouponCodeTaken
		}
	}
	if err := s.repo.Update(existing); err != nil {
		return nil, err
	}
	s.invalidate(ctx, previousCode, existing.Code)
	return existing, nil
}

// Deactivate 停用优惠券，已下单的核销不受影响
func (s *CouponAdminService) Deactivate(ctx context.Context, id uint) (*models.Coupon, error) {
	existing, err := s.get(id)
	if err != nil {
		return nil, err
	}
	if !existing.IsActive {
		return existing, nil
	}
	existing.IsActive = false
	if err := s.repo.Update(existing); err != nil {
		return nil, err
	}
	s.invalidate(ctx, existing.Code)
	return existing, nil
}

// Delete 删除优惠券，存在核销记录时只能停用
func (s *CouponAdminService) Delete(ctx context.Context, id uint) error {
	existing, err := s.get(id)
	if err != nil {
		return err
	}
	used, err := s.redemptionRepo.ExistsForCoupon(existing.ID)
	if err != nil {
		return err
	}
	if used {
		return ErrCouponInUse
	}
	if err := s.repo.Delete(id); err != nil {
		return err
	}
	s.invalidate(ctx, existing.Code)
	return nil
}

// Get 获取优惠券详情
func (s *CouponAdminService) Get(id uint) (*models.Coupon, error) {
	return s.get(id)
}

// List 获取优惠券列表
func (s *CouponAdminService) List(filter repository.CouponListFilter) ([]models.Coupon, int64, error) {
	return s.repo.List(filter)
}

func (s *CouponAdminService) get(id uint) (*models.Coupon, error) {
	if id == 0 {
		return nil, ErrInvalidInput
	}
	existing, err := s.repo.GetByID(id)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, ErrCouponNotFound
	}
	return existing, nil
}

func (s *CouponAdminService) invalidate(ctx context.Context, codes ...string) {
	if err := cache.InvalidateCoupon(ctx, codes...); err != nil {
		logger.Warnw("coupon_cache_invalidate_failed", "codes", codes, "error", err)
	}
}

func applyCouponInput(coupon *models.Coupon, input CouponInput) error {
	code, err := NormalizeCouponCode(input.Code)
	if err != nil {
		return err
	}
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return wrapf(ErrInvalidInput, "name is required")
	}
	description := strings.TrimSpace(input.Description)
	if utf8.RuneCountInString(description) > maxCouponDescriptionLength {
		return wrapf(ErrInvalidInput, "description exceeds %d characters", maxCouponDescriptionLength)
	}
	discountType := strings.ToLower(strings.TrimSpace(input.DiscountType))
	if !pricing.IsSupportedType(discountType) {
		return ErrCouponTypeInvalid
	}
	switch discountType {
	case constants.CouponTypePercentage:
		if !input.DiscountValue.IsPositive() || input.DiscountValue.GreaterThan(decimal.NewFromInt(100)) {
			return ErrCouponValueInvalid
		}
	case constants.CouponTypeFixed:
		if !input.DiscountValue.IsPositive() {
			return ErrCouponValueInvalid
		}
	}
	if input.MinimumPurchase.IsNegative() || input.MaximumDiscount.IsNegative() {
		return ErrCouponValueInvalid
	}
	if input.StartsAt.IsZero() || input.ExpiresAt.IsZero() || !input.ExpiresAt.After(input.StartsAt) {
		return ErrCouponWindowInvalid
	}
	if input.UsageLimitTotal < 0 || (input.UsageLimitPerUser != nil && *input.UsageLimitPerUser < 0) {
		return wrapf(ErrInvalidInput, "usage limits must not be negative")
	}

	coupon.Name = name
	coupon.Code = code
	coupon.Description = description
	coupon.DiscountType = discountType
	coupon.DiscountValue = input.DiscountValue
	if discountType == constants.CouponTypeFreeLesson {
		coupon.DiscountValue = models.ZeroMoney()
	}
	coupon.MinimumPurchase = input.MinimumPurchase
	coupon.MaximumDiscount = input.MaximumDiscount
	coupon.StartsAt = input.StartsAt
	coupon.ExpiresAt = input.ExpiresAt
	coupon.UsageLimitTotal = input.UsageLimitTotal
	if input.UsageLimitPerUser != nil {
		coupon.UsageLimitPerUser = *input.UsageLimitPerUser
	}
	coupon.ApplicableCourseIDs = models.IDList(dedupeIDs(input.ApplicableCourseIDs))
	coupon.ApplicableTeacherIDs = models.IDList(dedupeIDs(input.ApplicableTeacherIDs))
	if input.IsActive != nil {
		coupon.IsActive = *input.IsActive
	}
	return nil
}

func dedupeIDs(ids []uint) []uint {
	result := make([]uint, 0, len(ids))
	seen := make(map[uint]struct{}, len(ids))
	for _, id := range ids {
		if id == 0 {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		result = append(result, id)
	}
	return result
}
