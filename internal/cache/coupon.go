package cache

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/musictutor-next/internal/models"
)

var couponCacheTTL = 5 * time.Minute

func couponCodeKey(code string) string {
	return fmt.Sprintf("coupon:code:%s", strings.ToUpper(strings.TrimSpace(code)))
}

// GetCouponByCode 读取优惠券快照。快照中的 used_count 不可作为限额依据。
func GetCouponByCode(ctx context.Context, code string) (*models.Coupon, bool, error) {
	if strings.TrimSpace(code) == "" {
		return nil, false, nil
	}
	var coupon models.Coupon
	hit, err := GetJSON(ctx, couponCodeKey(code), &coupon)
	if err != nil || !hit {
		return nil, hit, err
	}
	return &coupon, true, nil
}

// SetCoupon 写入优惠券快照
func SetCoupon(ctx context.Context, coupon *models.Coupon) error {
	if coupon == nil || coupon.Code == "" {
		return nil
	}
	return SetJSON(ctx, couponCodeKey(coupon.Code), coupon, couponCacheTTL)
}

// InvalidateCoupon 管理端修改优惠券后删除快照
func InvalidateCoupon(ctx context.Context, codes ...string) error {
	keys := make([]string, 0, len(codes))
	for _, code := range codes {
		if strings.TrimSpace(code) == "" {
			continue
		}
		keys = append(keys, couponCodeKey(code))
	}
	return Del(ctx, keys...)
}
