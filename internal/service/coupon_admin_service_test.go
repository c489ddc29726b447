package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/musictutor-next/internal/constants"
	"github.com/musictutor-next/internal/models"
)

func validCouponInput(code string) CouponInput {
	now := time.Now()
	return CouponInput{
		Name:          "Spring sale",
		Code:          code,
		DiscountType:  constants.CouponTypePercentage,
		DiscountValue: models.MustMoney("15"),
		StartsAt:      now.Add(-time.Hour),
		ExpiresAt:     now.Add(7 * 24 * time.Hour),
	}
}

func TestCouponAdminCreateNormalizesInput(t *testing.T) {
	f := setupServiceFixture(t)
	ctx := context.Background()

	input := validCouponInput(" spring15 ")
	input.ApplicableCourseIDs = []uint{3, 3, 0, 5}
	coupon, err := f.couponAdmin.Create(ctx, input)
	if err != nil {
		t.Fatalf("create coupon failed: %v", err)
	}
	if coupon.Code != "SPRING15" || !coupon.IsActive || coupon.UsageLimitPerUser != 1 {
		t.Fatalf("unexpected coupon defaults: %+v", coupon)
	}
	if len(coupon.ApplicableCourseIDs) != 2 {
		t.Fatalf("course ids should be deduplicated, got %v", coupon.ApplicableCourseIDs)
	}
	if _, err := f.couponAdmin.Create(ctx, validCouponInput("SPRING15")); !errors.Is(err, ErrCouponCodeTaken) {
		t.Fatalf("expected ErrCouponCodeTaken, got %v", err)
	}

	free := validCouponInput("FREELESSON")
	free.DiscountType = constants.CouponTypeFreeLesson
	free.DiscountValue = models.MustMoney("99")
	created, err := f.couponAdmin.Create(ctx, free)
	if err != nil {
		t.Fatalf("create free lesson coupon failed: %v", err)
	}
	if !created.DiscountValue.IsZero() {
		t.Fatalf("free lesson coupon should carry no value, got %s", created.DiscountValue)
	}
}

func TestCouponAdminRejectsInvalidInput(t *testing.T) {
	f := setupServiceFixture(t)
	ctx := context.Background()
	negative := -1

	cases := []struct {
		name   string
		mutate func(*CouponInput)
		want   error
	}{
		{"short code", func(in *CouponInput) { in.Code = "AB" }, ErrCouponCodeInvalid},
		{"missing name", func(in *CouponInput) { in.Name = " " }, ErrInvalidInput},
		{"unknown type", func(in *CouponInput) { in.DiscountType = "bogo" }, ErrCouponTypeInvalid},
		{"percentage over 100", func(in *CouponInput) { in.DiscountValue = models.MustMoney("120") }, ErrCouponValueInvalid},
		{"zero fixed", func(in *CouponInput) {
			in.DiscountType = constants.CouponTypeFixed
			in.DiscountValue = models.ZeroMoney()
		}, ErrCouponValueInvalid},
		{"inverted window", func(in *CouponInput) { in.ExpiresAt = in.StartsAt.Add(-time.Minute) }, ErrCouponWindowInvalid},
		{"negative per user limit", func(in *CouponInput) { in.UsageLimitPerUser = &negative }, ErrInvalidInput},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			input := validCouponInput("VALID123")
			tc.mutate(&input)
			if _, err := f.couponAdmin.Create(ctx, input); !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestCouponAdminUpdateAndDeactivate(t *testing.T) {
	f := setupServiceFixture(t)
	ctx := context.Background()

	coupon, err := f.couponAdmin.Create(ctx, validCouponInput("SUMMER10"))
	if err != nil {
		t.Fatalf("create coupon failed: %v", err)
	}
	if _, err := f.couponAdmin.Create(ctx, validCouponInput("WINTER10")); err != nil {
		t.Fatalf("create coupon failed: %v", err)
	}

	update := validCouponInput("WINTER10")
	if _, err := f.couponAdmin.Update(ctx, coupon.ID, update); !errors.Is(err, ErrCouponCodeTaken) {
		t.Fatalf("expected ErrCouponCodeTaken on rename, got %v", err)
	}
	update = validCouponInput("SUMMER20")
	update.DiscountValue = models.MustMoney("20")
	updated, err := f.couponAdmin.Update(ctx, coupon.ID, update)
	if err != nil {
		t.Fatalf("update failed: %v", err)
	}
	if updated.Code != "SUMMER20" || updated.DiscountValue.String() != "20.00" {
		t.Fatalf("unexpected updated coupon: %+v", updated)
	}

	deactivated, err := f.couponAdmin.Deactivate(ctx, coupon.ID)
	if err != nil || deactivated.IsActive {
		t.Fatalf("deactivate failed: %+v err=%v", deactivated, err)
	}
	if _, err := f.couponAdmin.Get(999); !errors.Is(err, ErrCouponNotFound) {
		t.Fatalf("expected ErrCouponNotFound, got %v", err)
	}
}

func TestCouponAdminDeleteRequiresNoRedemptions(t *testing.T) {
	f := setupServiceFixture(t)
	student := f.createUser(t, "student@example.com", constants.RoleStudent)
	course := f.createCourse(t, 9, "50")
	ctx := context.Background()

	used := f.createCoupon(t, "USEDCODE", constants.CouponTypeFixed, "5", nil)
	order := f.checkoutWith(t, student.ID, course, constants.PackageTypeSingle, 1, "USEDCODE")
	if err := f.couponAdmin.Delete(ctx, used.ID); !errors.Is(err, ErrCouponInUse) {
		t.Fatalf("expected ErrCouponInUse, got %v", err)
	}
	// 释放后的核销记录仍然保留，优惠券依旧不可删除
	if _, err := f.settlementService.CancelOrder(ctx, CancelOrderInput{OrderID: order.ID, StudentID: student.ID}); err != nil {
		t.Fatalf("cancel failed: %v", err)
	}
	if err := f.couponAdmin.Delete(ctx, used.ID); !errors.Is(err, ErrCouponInUse) {
		t.Fatalf("released redemptions should still block deletion, got %v", err)
	}

	unused := f.createCoupon(t, "UNUSED01", constants.CouponTypeFixed, "5", nil)
	if err := f.couponAdmin.Delete(ctx, unused.ID); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if _, err := f.couponAdmin.Get(unused.ID); !errors.Is(err, ErrCouponNotFound) {
		t.Fatalf("deleted coupon should be gone, got %v", err)
	}
}

func TestCouponAdminCodeReusableAfterDelete(t *testing.T) {
	f := setupServiceFixture(t)
	ctx := context.Background()

	first, err := f.couponAdmin.Create(ctx, validCouponInput("REUSE123"))
	if err != nil {
		t.Fatalf("create coupon failed: %v", err)
	}
	if err := f.couponAdmin.Delete(ctx, first.ID); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	second, err := f.couponAdmin.Create(ctx, validCouponInput("REUSE123"))
	if err != nil {
		t.Fatalf("recreate with released code failed: %v", err)
	}
	if second.Code != "REUSE123" || !second.IsActive {
		t.Fatalf("unexpected recreated coupon: %+v", second)
	}
	if _, err := f.couponAdmin.Create(ctx, validCouponInput("REUSE123")); !errors.Is(err, ErrCouponCodeTaken) {
		t.Fatalf("expected ErrCouponCodeTaken, got %v", err)
	}
}
