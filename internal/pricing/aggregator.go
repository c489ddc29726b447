package pricing

import (
	"github.com/musictutor-next/internal/models"

	"github.com/shopspring/decimal"
)

// Totals 重新计算后的金额
type Totals struct {
	Lines          []Line
	Subtotal       decimal.Decimal
	DiscountAmount decimal.Decimal
	Total          decimal.Decimal
	CouponInfo     models.CouponInfo
	Evaluation     Evaluation
}

// Recompute 根据明细与已套用的优惠券重新计算金额。
// 明细小计总是由 lessons × pricePerLesson 重新得出，不信任已存储的 totalPrice。
func Recompute(lines []Line, coupon *models.Coupon, ctx Context) Totals {
	normalized := make([]Line, len(lines))
	subtotal := decimal.Zero
	for i, line := range lines {
		lessons := line.Lessons
		if lessons < 0 {
			lessons = 0
		}
		line.Lessons = lessons
		line.PricePerLesson = line.PricePerLesson.Round(2)
		line.TotalPrice = line.PricePerLesson.Mul(decimal.NewFromInt(int64(lessons))).Round(2)
		normalized[i] = line
		subtotal = subtotal.Add(line.TotalPrice)
	}

	evaluation := Evaluate(coupon, ctx, subtotal, normalized)
	discount := evaluation.DiscountAmount
	total := subtotal.Sub(discount)
	if total.LessThan(decimal.Zero) {
		total = decimal.Zero
	}

	return Totals{
		Lines:          normalized,
		Subtotal:       subtotal,
		DiscountAmount: discount,
		Total:          total,
		CouponInfo:     buildCouponInfo(coupon, evaluation),
		Evaluation:     evaluation,
	}
}

func buildCouponInfo(coupon *models.Coupon, evaluation Evaluation) models.CouponInfo {
	info := models.CouponInfo{
		IsValid: evaluation.Valid,
		Reason:  evaluation.Reason,
		Message: evaluation.Message,
	}
	if coupon == nil {
		return info
	}
	value := coupon.DiscountValue
	minimum := coupon.MinimumPurchase
	info.Code = coupon.Code
	info.DiscountType = coupon.DiscountType
	info.DiscountValue = &value
	info.MinimumPurchase = &minimum
	if coupon.MaximumDiscount.GreaterThan(decimal.Zero) {
		maximum := coupon.MaximumDiscount
		info.MaximumDiscount = &maximum
	}
	return info
}
