package repository

import (
	"fmt"
	"testing"
	"time"

	"github.com/musictutor-next/internal/constants"
	"github.com/musictutor-next/internal/models"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

func setupCouponRepositoryTest(t *testing.T) (*GormCouponRepository, *gorm.DB) {
	t.Helper()
	dsn := fmt.Sprintf("file:coupon_repo_test_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	if err := db.AutoMigrate(&models.Coupon{}, &models.CouponRedemption{}); err != nil {
		t.Fatalf("auto migrate failed: %v", err)
	}
	return NewCouponRepository(db), db
}

func createRepoTestCoupon(t *testing.T, repo *GormCouponRepository, code string, limit int) *models.Coupon {
	t.Helper()
	now := time.Now()
	coupon := &models.Coupon{
		Name:              code,
		Code:              code,
		DiscountType:      constants.CouponTypeFixed,
		DiscountValue:     models.MustMoney("100"),
		StartsAt:          now.Add(-time.Hour),
		ExpiresAt:         now.Add(time.Hour),
		UsageLimitTotal:   limit,
		UsageLimitPerUser: 1,
		IsActive:          true,
	}
	if err := repo.Create(coupon); err != nil {
		t.Fatalf("create coupon failed: %v", err)
	}
	return coupon
}

func TestCouponRepositoryTryConsumeStopsAtLimit(t *testing.T) {
	repo, _ := setupCouponRepositoryTest(t)
	coupon := createRepoTestCoupon(t, repo, "LIMIT0002", 2)

	for i := 0; i < 2; i++ {
		ok, err := repo.TryConsume(coupon.ID)
		if err != nil || !ok {
			t.Fatalf("consume %d should succeed, ok=%v err=%v", i, ok, err)
		}
	}
	ok, err := repo.TryConsume(coupon.ID)
	if err != nil {
		t.Fatalf("consume failed: %v", err)
	}
	if ok {
		t.Fatalf("third consume should be rejected")
	}

	stored, _ := repo.GetByID(coupon.ID)
	if stored.UsedCount != 2 {
		t.Fatalf("used count want 2 got %d", stored.UsedCount)
	}
}

func TestCouponRepositoryTryConsumeUnlimited(t *testing.T) {
	repo, _ := setupCouponRepositoryTest(t)
	coupon := createRepoTestCoupon(t, repo, "UNLIMITED1", 0)

	for i := 0; i < 5; i++ {
		if ok, err := repo.TryConsume(coupon.ID); err != nil || !ok {
			t.Fatalf("unlimited consume should succeed, ok=%v err=%v", ok, err)
		}
	}
}

func TestCouponRepositoryTryConsumeRejectsInactive(t *testing.T) {
	repo, db := setupCouponRepositoryTest(t)
	coupon := createRepoTestCoupon(t, repo, "INACTIVE01", 0)
	if err := db.Model(&models.Coupon{}).Where("id = ?", coupon.ID).Update("is_active", false).Error; err != nil {
		t.Fatalf("deactivate failed: %v", err)
	}

	if ok, err := repo.TryConsume(coupon.ID); err != nil || ok {
		t.Fatalf("inactive coupon should not be consumed, ok=%v err=%v", ok, err)
	}
}

func TestCouponRepositoryReleaseNeverGoesNegative(t *testing.T) {
	repo, _ := setupCouponRepositoryTest(t)
	coupon := createRepoTestCoupon(t, repo, "RELEASE01", 1)

	if ok, _ := repo.TryConsume(coupon.ID); !ok {
		t.Fatalf("consume should succeed")
	}
	if err := repo.Release(coupon.ID); err != nil {
		t.Fatalf("release failed: %v", err)
	}
	if err := repo.Release(coupon.ID); err != nil {
		t.Fatalf("second release failed: %v", err)
	}
	stored, _ := repo.GetByID(coupon.ID)
	if stored.UsedCount != 0 {
		t.Fatalf("used count want 0 got %d", stored.UsedCount)
	}
}

func TestCouponRepositoryUpdateKeepsUsedCount(t *testing.T) {
	repo, _ := setupCouponRepositoryTest(t)
	coupon := createRepoTestCoupon(t, repo, "KEEPCOUNT1", 10)

	stale, _ := repo.GetByID(coupon.ID)
	if ok, _ := repo.TryConsume(coupon.ID); !ok {
		t.Fatalf("consume should succeed")
	}

	stale.Name = "renamed"
	stale.IsActive = false
	if err := repo.Update(stale); err != nil {
		t.Fatalf("update failed: %v", err)
	}

	stored, _ := repo.GetByID(coupon.ID)
	if stored.UsedCount != 1 {
		t.Fatalf("update must not overwrite used_count, got %d", stored.UsedCount)
	}
	if stored.Name != "renamed" || stored.IsActive {
		t.Fatalf("update not applied: %+v", stored)
	}
}

func TestCouponRepositoryListByApplicableCourse(t *testing.T) {
	repo, db := setupCouponRepositoryTest(t)
	first := createRepoTestCoupon(t, repo, "COURSE0001", 0)
	second := createRepoTestCoupon(t, repo, "COURSE0011", 0)
	db.Model(&models.Coupon{}).Where("id = ?", first.ID).Update("applicable_course_ids", models.IDList{1, 5})
	db.Model(&models.Coupon{}).Where("id = ?", second.ID).Update("applicable_course_ids", models.IDList{11})

	coupons, total, err := repo.List(CouponListFilter{ApplicableCourse: 1, Page: 1, PageSize: 10})
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if total != 1 || len(coupons) != 1 || coupons[0].ID != first.ID {
		t.Fatalf("expected only coupon %d, got total=%d coupons=%+v", first.ID, total, coupons)
	}
}

func TestRedemptionRepositoryReleaseIsOneShot(t *testing.T) {
	repo, db := setupCouponRepositoryTest(t)
	coupon := createRepoTestCoupon(t, repo, "LEDGER0001", 0)
	redemptions := NewRedemptionRepository(db)

	row := &models.CouponRedemption{
		CouponID:        coupon.ID,
		UserID:          9,
		OrderID:         21,
		DiscountApplied: models.MustMoney("100"),
		Status:          constants.RedemptionStatusApplied,
	}
	if err := redemptions.Create(row); err != nil {
		t.Fatalf("create redemption failed: %v", err)
	}
	if count, _ := redemptions.CountAppliedByUser(coupon.ID, 9); count != 1 {
		t.Fatalf("applied count want 1 got %d", count)
	}

	released, err := redemptions.MarkReleased(row.ID, time.Now())
	if err != nil || !released {
		t.Fatalf("first release should succeed, released=%v err=%v", released, err)
	}
	released, err = redemptions.MarkReleased(row.ID, time.Now())
	if err != nil || released {
		t.Fatalf("second release should be a no-op, released=%v err=%v", released, err)
	}
	if count, _ := redemptions.CountAppliedByUser(coupon.ID, 9); count != 0 {
		t.Fatalf("applied count want 0 got %d", count)
	}
	if exists, _ := redemptions.ExistsForCoupon(coupon.ID); !exists {
		t.Fatalf("released rows must stay in the ledger")
	}
}
