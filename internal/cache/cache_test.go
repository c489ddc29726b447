package cache

import (
	"context"
	"testing"
	"time"

	"github.com/musictutor-next/internal/constants"
	"github.com/musictutor-next/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestRedis 使用 miniredis 替换全局客户端
func setupTestRedis(t *testing.T) *miniredis.Miniredis {
	t.Helper()
	mr := miniredis.RunT(t)
	Use(redis.NewClient(&redis.Options{Addr: mr.Addr()}), "test")
	t.Cleanup(func() {
		_ = Close()
	})
	return mr
}

func TestCouponSnapshotRoundTrip(t *testing.T) {
	mr := setupTestRedis(t)
	ctx := context.Background()

	coupon := &models.Coupon{
		ID:            7,
		Code:          "WELCOME100",
		DiscountType:  constants.CouponTypeFixed,
		DiscountValue: models.MustMoney("100"),
		ExpiresAt:     time.Now().Add(time.Hour).UTC(),
		IsActive:      true,
	}
	require.NoError(t, SetCoupon(ctx, coupon))
	assert.True(t, mr.Exists("test:coupon:code:WELCOME100"))

	got, hit, err := GetCouponByCode(ctx, " welcome100 ")
	require.NoError(t, err)
	require.True(t, hit)
	assert.Equal(t, coupon.ID, got.ID)
	assert.True(t, got.DiscountValue.Equal(coupon.DiscountValue.Decimal))

	ttl := mr.TTL("test:coupon:code:WELCOME100")
	assert.Greater(t, ttl, time.Duration(0))
}

func TestInvalidateCoupon(t *testing.T) {
	mr := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, SetCoupon(ctx, &models.Coupon{ID: 1, Code: "SPRING2026"}))
	require.NoError(t, InvalidateCoupon(ctx, "spring2026", ""))

	assert.False(t, mr.Exists("test:coupon:code:SPRING2026"))
	_, hit, err := GetCouponByCode(ctx, "SPRING2026")
	require.NoError(t, err)
	assert.False(t, hit)
}

func TestCouponSnapshotExpires(t *testing.T) {
	mr := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, SetCoupon(ctx, &models.Coupon{ID: 2, Code: "SHORTLIVED"}))
	mr.FastForward(couponCacheTTL + time.Second)

	_, hit, err := GetCouponByCode(ctx, "SHORTLIVED")
	require.NoError(t, err)
	assert.False(t, hit)
}

func TestUserAuthStateRoundTrip(t *testing.T) {
	setupTestRedis(t)
	ctx := context.Background()

	state := BuildUserAuthState(&models.User{ID: 3, Role: constants.RoleTeacher, Status: constants.UserStatusActive, TokenVersion: 4})
	require.NoError(t, SetUserAuthState(ctx, state))

	got, hit, err := GetUserAuthState(ctx, 3)
	require.NoError(t, err)
	require.True(t, hit)
	assert.Equal(t, constants.RoleTeacher, got.Role)
	assert.Equal(t, uint64(4), got.TokenVersion)

	require.NoError(t, DelUserAuthState(ctx, 3))
	_, hit, err = GetUserAuthState(ctx, 3)
	require.NoError(t, err)
	assert.False(t, hit)
}

func TestDisabledCacheIsNoop(t *testing.T) {
	require.NoError(t, Close())
	ctx := context.Background()

	require.NoError(t, SetCoupon(ctx, &models.Coupon{ID: 1, Code: "NOOPCODE1"}))
	_, hit, err := GetCouponByCode(ctx, "NOOPCODE1")
	require.NoError(t, err)
	assert.False(t, hit)
}
