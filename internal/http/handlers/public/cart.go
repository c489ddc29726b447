package public

import (
	"github.com/musictutor-next/internal/http/response"
	"github.com/musictutor-next/internal/service"

	"github.com/gin-gonic/gin"
)

// CartItemRequest 购物车项请求
type CartItemRequest struct {
	CourseID    uint   `json:"course_id"`
	PackageType string `json:"package_type" binding:"required"`
	Lessons     int    `json:"lessons"`
}

// ApplyCouponRequest 套用优惠券请求
type ApplyCouponRequest struct {
	Code string `json:"code" binding:"required"`
}

// CheckoutRequest 结账请求
type CheckoutRequest struct {
	PaymentMethod string `json:"payment_method" binding:"required"`
	Notes         string `json:"notes"`
}

// GetCart 获取购物车（含优惠券校验结果）
func (h *Handler) GetCart(c *gin.Context) {
	uid, ok := getUserID(c)
	if !ok {
		return
	}
	cart, err := h.CartService.GetCart(uid)
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, cart)
}

// AddCartItem 加入课程
func (h *Handler) AddCartItem(c *gin.Context) {
	uid, ok := getUserID(c)
	if !ok {
		return
	}
	var req CartItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}
	cart, err := h.CartService.AddItem(service.CartItemInput{
		StudentID:   uid,
		CourseID:    req.CourseID,
		PackageType: req.PackageType,
		Lessons:     req.Lessons,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, cart)
}

// UpdateCartItem 修改购买方案
func (h *Handler) UpdateCartItem(c *gin.Context) {
	uid, ok := getUserID(c)
	if !ok {
		return
	}
	courseID, ok := parseID(c, "courseId")
	if !ok {
		return
	}
	var req CartItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}
	cart, err := h.CartService.UpdateItem(service.CartItemInput{
		StudentID:   uid,
		CourseID:    courseID,
		PackageType: req.PackageType,
		Lessons:     req.Lessons,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, cart)
}

// RemoveCartItem 移除课程
func (h *Handler) RemoveCartItem(c *gin.Context) {
	uid, ok := getUserID(c)
	if !ok {
		return
	}
	courseID, ok := parseID(c, "courseId")
	if !ok {
		return
	}
	cart, err := h.CartService.RemoveItem(uid, courseID)
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, cart)
}

// ApplyCoupon 套用优惠码；优惠码无效时仍返回 200，原因见 coupon_info
func (h *Handler) ApplyCoupon(c *gin.Context) {
	uid, ok := getUserID(c)
	if !ok {
		return
	}
	cartID, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req ApplyCouponRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}
	cart, err := h.CartService.ApplyCoupon(c.Request.Context(), uid, cartID, req.Code)
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, cart)
}

// RemoveCoupon 移除优惠码
func (h *Handler) RemoveCoupon(c *gin.Context) {
	uid, ok := getUserID(c)
	if !ok {
		return
	}
	cartID, ok := parseID(c, "id")
	if !ok {
		return
	}
	cart, err := h.CartService.RemoveCoupon(uid, cartID)
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, cart)
}

// Checkout 结账生成订单
func (h *Handler) Checkout(c *gin.Context) {
	uid, ok := getUserID(c)
	if !ok {
		return
	}
	cartID, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req CheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}
	order, err := h.CheckoutService.Checkout(service.CheckoutInput{
		StudentID:     uid,
		CartID:        cartID,
		PaymentMethod: req.PaymentMethod,
		Notes:         req.Notes,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	response.Created(c, order)
}
