package admin

import (
	"strconv"
	"strings"
	"time"

	handlershared "github.com/musictutor-next/internal/http/handlers/shared"
	"github.com/musictutor-next/internal/http/response"
	"github.com/musictutor-next/internal/models"
	"github.com/musictutor-next/internal/repository"
	"github.com/musictutor-next/internal/service"

	"github.com/gin-gonic/gin"
)

// CouponRequest 创建/更新优惠券请求
type CouponRequest struct {
	Name                 string       `json:"name" binding:"required"`
	Code                 string       `json:"code" binding:"required"`
	Description          string       `json:"description"`
	DiscountType         string       `json:"discount_type" binding:"required"`
	DiscountValue        models.Money `json:"discount_value"`
	MinimumPurchase      models.Money `json:"minimum_purchase"`
	MaximumDiscount      models.Money `json:"maximum_discount"`
	StartsAt             string       `json:"starts_at"`
	ExpiresAt            string       `json:"expires_at"`
	UsageLimitTotal      int          `json:"usage_limit_total"`
	UsageLimitPerUser    *int         `json:"usage_limit_per_user"`
	ApplicableCourseIDs  []uint       `json:"applicable_course_ids"`
	ApplicableTeacherIDs []uint       `json:"applicable_teacher_ids"`
	IsActive             *bool        `json:"is_active"`
}

func (r CouponRequest) toInput(adminID uint) (service.CouponInput, error) {
	startsAt, err := parseTime(r.StartsAt)
	if err != nil {
		return service.CouponInput{}, err
	}
	expiresAt, err := parseTime(r.ExpiresAt)
	if err != nil {
		return service.CouponInput{}, err
	}
	return service.CouponInput{
		Name:                 r.Name,
		Code:                 r.Code,
		Description:          r.Description,
		DiscountType:         r.DiscountType,
		DiscountValue:        r.DiscountValue,
		MinimumPurchase:      r.MinimumPurchase,
		MaximumDiscount:      r.MaximumDiscount,
		StartsAt:             startsAt,
		ExpiresAt:            expiresAt,
		UsageLimitTotal:      r.UsageLimitTotal,
		UsageLimitPerUser:    r.UsageLimitPerUser,
		ApplicableCourseIDs:  r.ApplicableCourseIDs,
		ApplicableTeacherIDs: r.ApplicableTeacherIDs,
		IsActive:             r.IsActive,
		CreatedBy:            adminID,
	}, nil
}

// CreateCoupon 创建优惠券
func (h *Handler) CreateCoupon(c *gin.Context) {
	adminID, ok := getAdminID(c)
	if !ok {
		return
	}
	var req CouponRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}
	input, err := req.toInput(adminID)
	if err != nil {
		response.BadRequest(c, "starts_at and expires_at must be RFC3339 timestamps")
		return
	}

	coupon, err := h.CouponAdminService.Create(c.Request.Context(), input)
	if err != nil {
		respondError(c, err)
		return
	}
	requestLog(c).Infow("admin_coupon_created",
		"admin_id", adminID,
		"coupon_id", coupon.ID,
		"code", coupon.Code,
	)
	response.Created(c, coupon)
}

// UpdateCoupon 更新优惠券
func (h *Handler) UpdateCoupon(c *gin.Context) {
	adminID, ok := getAdminID(c)
	if !ok {
		return
	}
	couponID, ok := parseID(c)
	if !ok {
		return
	}
	var req CouponRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}
	input, err := req.toInput(adminID)
	if err != nil {
		response.BadRequest(c, "starts_at and expires_at must be RFC3339 timestamps")
		return
	}

	coupon, err := h.CouponAdminService.Update(c.Request.Context(), couponID, input)
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, coupon)
}

// DeactivateCoupon 停用优惠券
func (h *Handler) DeactivateCoupon(c *gin.Context) {
	couponID, ok := parseID(c)
	if !ok {
		return
	}
	coupon, err := h.CouponAdminService.Deactivate(c.Request.Context(), couponID)
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, coupon)
}

// DeleteCoupon 删除未被使用过的优惠券
func (h *Handler) DeleteCoupon(c *gin.Context) {
	couponID, ok := parseID(c)
	if !ok {
		return
	}
	if err := h.CouponAdminService.Delete(c.Request.Context(), couponID); err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, gin.H{"deleted": true})
}

// GetAdminCoupons 获取优惠券列表
func (h *Handler) GetAdminCoupons(c *gin.Context) {
	page, pageSize := handlershared.ParsePagination(c)
	filter := repository.CouponListFilter{
		Page:     page,
		PageSize: pageSize,
		Code:     strings.TrimSpace(c.Query("code")),
	}
	if raw := strings.TrimSpace(c.Query("is_active")); raw != "" {
		if active, err := strconv.ParseBool(raw); err == nil {
			filter.IsActive = &active
		}
	}
	if raw := strings.TrimSpace(c.Query("course_id")); raw != "" {
		if courseID, err := strconv.ParseUint(raw, 10, 64); err == nil {
			filter.ApplicableCourse = uint(courseID)
		}
	}

	coupons, total, err := h.CouponAdminService.List(filter)
	if err != nil {
		respondError(c, err)
		return
	}
	response.SuccessWithPage(c, coupons, response.BuildPagination(page, pageSize, total))
}

// GetAdminCoupon 获取优惠券详情
func (h *Handler) GetAdminCoupon(c *gin.Context) {
	couponID, ok := parseID(c)
	if !ok {
		return
	}
	coupon, err := h.CouponAdminService.Get(couponID)
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, coupon)
}

func parseTime(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339, raw)
}
