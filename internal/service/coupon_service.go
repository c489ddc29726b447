package service

import (
	"context"
	"regexp"
	"strings"

	"github.com/musictutor-next/internal/cache"
	"github.com/musictutor-next/internal/logger"
	"github.com/musictutor-next/internal/models"
	"github.com/musictutor-next/internal/pricing"
	"github.com/musictutor-next/internal/repository"
)

var couponCodePattern = regexp.MustCompile(`^[A-Z0-9]{6,20}$`)

// NormalizeCouponCode 去除空白并转大写后校验格式
func NormalizeCouponCode(raw string) (string, error) {
	code := strings.ToUpper(strings.TrimSpace(raw))
	if !couponCodePattern.MatchString(code) {
		return "", ErrCouponCodeInvalid
	}
	return code, nil
}

// CouponService 优惠券查询与使用量统计
type CouponService struct {
	couponRepo     repository.CouponRepository
	redemptionRepo repository.RedemptionRepository
}

// NewCouponService 创建优惠券服务
func NewCouponService(couponRepo repository.CouponRepository, redemptionRepo repository.RedemptionRepository) *CouponService {
	return &CouponService{
		couponRepo:     couponRepo,
		redemptionRepo: redemptionRepo,
	}
}

// ResolveCode 按优惠码查找优惠券，优先读取缓存快照
func (s *CouponService) ResolveCode(ctx context.Context, raw string) (*models.Coupon, error) {
	code, err := NormalizeCouponCode(raw)
	if err != nil {
		return nil, err
	}
	if cached, hit, cacheErr := cache.GetCouponByCode(ctx, code); cacheErr != nil {
		logger.Warnw("coupon_cache_read_failed", "code", code, "error", cacheErr)
	} else if hit {
		return cached, nil
	}

	coupon, err := s.couponRepo.GetByCode(code)
	if err != nil {
		return nil, err
	}
	if coupon == nil {
		return nil, ErrCouponNotFound
	}
	if err := cache.SetCoupon(ctx, coupon); err != nil {
		logger.Warnw("coupon_cache_write_failed", "code", code, "error", err)
	}
	return coupon, nil
}

// loadCouponUsage 从核销流水统计有效使用次数
func loadCouponUsage(redemptionRepo repository.RedemptionRepository, coupon *models.Coupon, purchaserID uint) (pricing.Usage, error) {
	if coupon == nil {
		return pricing.Usage{}, nil
	}
	total, err := redemptionRepo.CountApplied(coupon.ID)
	if err != nil {
		return pricing.Usage{}, err
	}
	var byPurchaser int64
	if purchaserID != 0 {
		byPurchaser, err = redemptionRepo.CountAppliedByUser(coupon.ID, purchaserID)
		if err != nil {
			return pricing.Usage{}, err
		}
	}
	return pricing.Usage{Total: int(total), ByPurchaser: int(byPurchaser)}, nil
}
