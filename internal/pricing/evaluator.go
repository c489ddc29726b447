// Package pricing 购物车与订单金额计算（纯函数，不访问存储）
package pricing

import (
	"time"

	"github.com/musictutor-next/internal/constants"
	"github.com/musictutor-next/internal/models"

	"github.com/shopspring/decimal"
)

// 优惠券校验失败原因
const (
	ReasonValid                 = "valid"
	ReasonNoCoupon              = "no_coupon"
	ReasonInactive              = "inactive"
	ReasonNotStarted            = "not_started"
	ReasonExpired               = "expired"
	ReasonMinimumPurchaseNotMet = "minimum_purchase_not_met"
	ReasonNotApplicable         = "not_applicable"
	ReasonUsageLimitReached     = "usage_limit_reached"
	ReasonPerUserLimitReached   = "per_user_limit_reached"
	ReasonUnsupportedType       = "unsupported_type"
)

var reasonMessages = map[string]string{
	ReasonValid:                 "coupon applied",
	ReasonNoCoupon:              "no coupon applied",
	ReasonInactive:              "coupon is not active",
	ReasonNotStarted:            "coupon is not yet valid",
	ReasonExpired:               "coupon has expired",
	ReasonMinimumPurchaseNotMet: "minimum purchase not met",
	ReasonNotApplicable:         "coupon does not apply to any item in the cart",
	ReasonUsageLimitReached:     "coupon usage limit reached",
	ReasonPerUserLimitReached:   "coupon already used the maximum number of times",
	ReasonUnsupportedType:       "unsupported coupon type",
}

// ReasonMessage 返回失败原因对应的提示文案
func ReasonMessage(reason string) string {
	if msg, ok := reasonMessages[reason]; ok {
		return msg
	}
	return reason
}

// Line 参与计价的明细行
type Line struct {
	CourseID       uint
	TeacherID      uint
	Lessons        int
	PricePerLesson decimal.Decimal
	TotalPrice     decimal.Decimal
}

// Usage 优惠券已使用次数
type Usage struct {
	Total       int // 全部有效核销次数
	ByPurchaser int // 当前购买人的有效核销次数
}

// Context 校验优惠券所需的上下文
type Context struct {
	PurchaserID uint
	Usage       Usage
	Now         time.Time
}

// Evaluation 优惠券校验结果
type Evaluation struct {
	Valid          bool
	Reason         string
	Message        string
	DiscountAmount decimal.Decimal
}

func invalid(reason string) Evaluation {
	return Evaluation{
		Valid:          false,
		Reason:         reason,
		Message:        ReasonMessage(reason),
		DiscountAmount: decimal.Zero,
	}
}

// discountRule 每种优惠类型一个实现
type discountRule interface {
	amount(coupon *models.Coupon, subtotal decimal.Decimal, eligible []Line) decimal.Decimal
}

type percentageRule struct{}

func (percentageRule) amount(coupon *models.Coupon, subtotal decimal.Decimal, _ []Line) decimal.Decimal {
	discount := subtotal.Mul(coupon.DiscountValue.Decimal).Div(decimal.NewFromInt(100)).Round(2)
	if coupon.MaximumDiscount.GreaterThan(decimal.Zero) && discount.GreaterThan(coupon.MaximumDiscount.Decimal) {
		discount = coupon.MaximumDiscount.Decimal
	}
	return discount
}

type fixedRule struct{}

func (fixedRule) amount(coupon *models.Coupon, subtotal decimal.Decimal, _ []Line) decimal.Decimal {
	return decimal.Min(coupon.DiscountValue.Decimal, subtotal)
}

// freeLessonRule 免除符合条件的明细中单价最低的一节课
type freeLessonRule struct{}

func (freeLessonRule) amount(_ *models.Coupon, _ decimal.Decimal, eligible []Line) decimal.Decimal {
	var lowest *decimal.Decimal
	for i := range eligible {
		if eligible[i].Lessons < 1 {
			continue
		}
		price := eligible[i].PricePerLesson
		if lowest == nil || price.LessThan(*lowest) {
			lowest = &price
		}
	}
	if lowest == nil {
		return decimal.Zero
	}
	return *lowest
}

var discountRules = map[string]discountRule{
	constants.CouponTypePercentage: percentageRule{},
	constants.CouponTypeFixed:      fixedRule{},
	constants.CouponTypeFreeLesson: freeLessonRule{},
}

// IsSupportedType 判断优惠类型是否受支持
func IsSupportedType(discountType string) bool {
	_, ok := discountRules[discountType]
	return ok
}

// eligibleLines 返回受适用范围约束后的明细；无限制时返回全部
func eligibleLines(coupon *models.Coupon, lines []Line) []Line {
	if !coupon.HasRestrictions() {
		return lines
	}
	matched := make([]Line, 0, len(lines))
	for _, line := range lines {
		if coupon.ApplicableCourseIDs.Contains(line.CourseID) || coupon.ApplicableTeacherIDs.Contains(line.TeacherID) {
			matched = append(matched, line)
		}
	}
	return matched
}

// Evaluate 校验优惠券并计算优惠金额，按顺序短路，失败时优惠金额为 0
func Evaluate(coupon *models.Coupon, ctx Context, subtotal decimal.Decimal, lines []Line) Evaluation {
	if coupon == nil {
		return invalid(ReasonNoCoupon)
	}
	if !coupon.IsActive {
		return invalid(ReasonInactive)
	}
	now := ctx.Now
	if now.IsZero() {
		now = time.Now()
	}
	if now.Before(coupon.StartsAt) {
		return invalid(ReasonNotStarted)
	}
	if now.After(coupon.ExpiresAt) {
		return invalid(ReasonExpired)
	}
	if subtotal.LessThan(coupon.MinimumPurchase.Decimal) {
		return invalid(ReasonMinimumPurchaseNotMet)
	}
	eligible := eligibleLines(coupon, lines)
	if coupon.HasRestrictions() && len(eligible) == 0 {
		return invalid(ReasonNotApplicable)
	}
	if coupon.UsageLimitTotal > 0 && ctx.Usage.Total >= coupon.UsageLimitTotal {
		return invalid(ReasonUsageLimitReached)
	}
	if coupon.UsageLimitPerUser > 0 && ctx.Usage.ByPurchaser >= coupon.UsageLimitPerUser {
		return invalid(ReasonPerUserLimitReached)
	}

	rule, ok := discountRules[coupon.DiscountType]
	if !ok {
		return invalid(ReasonUnsupportedType)
	}
	discount := clamp(rule.amount(coupon, subtotal, eligible).Round(2), subtotal)
	return Evaluation{
		Valid:          true,
		Reason:         ReasonValid,
		Message:        ReasonMessage(ReasonValid),
		DiscountAmount: discount,
	}
}

func clamp(discount, subtotal decimal.Decimal) decimal.Decimal {
	if discount.LessThan(decimal.Zero) {
		return decimal.Zero
	}
	if discount.GreaterThan(subtotal) {
		return subtotal
	}
	return discount
}
