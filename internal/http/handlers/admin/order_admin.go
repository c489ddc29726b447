package admin

import (
	"strings"
	"time"

	"github.com/musictutor-next/internal/constants"
	handlershared "github.com/musictutor-next/internal/http/handlers/shared"
	"github.com/musictutor-next/internal/http/response"
	"github.com/musictutor-next/internal/repository"
	"github.com/musictutor-next/internal/service"

	"github.com/gin-gonic/gin"
)

// ConfirmOrderRequest 管理员确认收款
type ConfirmOrderRequest struct {
	TransactionID string `json:"transaction_id"`
}

// AdminListOrders 获取订单列表
func (h *Handler) AdminListOrders(c *gin.Context) {
	page, pageSize := handlershared.ParsePagination(c)
	filter := repository.OrderListFilter{
		Page:     page,
		PageSize: pageSize,
		Status:   strings.TrimSpace(c.Query("status")),
		OrderNo:  strings.TrimSpace(c.Query("order_no")),
	}
	if raw := strings.TrimSpace(c.Query("created_from")); raw != "" {
		if parsed, err := time.Parse(time.RFC3339, raw); err == nil {
			filter.CreatedFrom = &parsed
		}
	}
	if raw := strings.TrimSpace(c.Query("created_to")); raw != "" {
		if parsed, err := time.Parse(time.RFC3339, raw); err == nil {
			filter.CreatedTo = &parsed
		}
	}

	orders, total, err := h.OrderService.ListOrders(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err)
		return
	}
	response.SuccessWithPage(c, orders, response.BuildPagination(page, pageSize, total))
}

// AdminGetOrder 获取订单详情
func (h *Handler) AdminGetOrder(c *gin.Context) {
	orderID, ok := parseID(c)
	if !ok {
		return
	}
	order, err := h.OrderService.GetOrder(c.Request.Context(), orderID)
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, order)
}

// AdminConfirmOrder 确认线下收款
func (h *Handler) AdminConfirmOrder(c *gin.Context) {
	adminID, ok := getAdminID(c)
	if !ok {
		return
	}
	orderID, ok := parseID(c)
	if !ok {
		return
	}
	var req ConfirmOrderRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			respondBindError(c, err)
			return
		}
	}
	order, err := h.SettlementService.AdminConfirmPayment(orderID, req.TransactionID)
	if err != nil {
		respondError(c, err)
		return
	}
	requestLog(c).Infow("admin_order_payment_confirmed",
		"admin_id", adminID,
		"order_id", order.ID,
		"transaction_id", order.TransactionID,
	)
	response.Success(c, order)
}

// AdminCancelOrder 取消未支付订单
func (h *Handler) AdminCancelOrder(c *gin.Context) {
	adminID, ok := getAdminID(c)
	if !ok {
		return
	}
	orderID, ok := parseID(c)
	if !ok {
		return
	}
	order, err := h.SettlementService.CancelOrder(c.Request.Context(), service.CancelOrderInput{
		OrderID: orderID,
		Reason:  constants.CancelReasonAdmin,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	requestLog(c).Infow("admin_order_cancelled", "admin_id", adminID, "order_id", order.ID)
	response.Success(c, order)
}

// AdminRefundOrder 退款已支付订单
func (h *Handler) AdminRefundOrder(c *gin.Context) {
	adminID, ok := getAdminID(c)
	if !ok {
		return
	}
	orderID, ok := parseID(c)
	if !ok {
		return
	}
	order, err := h.SettlementService.RefundOrder(c.Request.Context(), orderID)
	if err != nil {
		respondError(c, err)
		return
	}
	requestLog(c).Infow("admin_order_refunded", "admin_id", adminID, "order_id", order.ID)
	response.Success(c, order)
}
