package public

import (
	"strings"

	"github.com/musictutor-next/internal/constants"
	handlershared "github.com/musictutor-next/internal/http/handlers/shared"
	"github.com/musictutor-next/internal/http/response"
	"github.com/musictutor-next/internal/repository"
	"github.com/musictutor-next/internal/service"

	"github.com/gin-gonic/gin"
)

// PayOrderRequest 提交支付流水
type PayOrderRequest struct {
	TransactionID string `json:"transaction_id" binding:"required"`
}

// ListOrders 获取当前学生的订单列表
func (h *Handler) ListOrders(c *gin.Context) {
	uid, ok := getUserID(c)
	if !ok {
		return
	}

	page, pageSize := handlershared.ParsePagination(c)
	orders, total, err := h.OrderService.ListOrdersByStudent(c.Request.Context(), uid, repository.OrderListFilter{
		Page:     page,
		PageSize: pageSize,
		Status:   strings.TrimSpace(c.Query("status")),
		OrderNo:  strings.TrimSpace(c.Query("order_no")),
	})
	if err != nil {
		respondError(c, err)
		return
	}

	response.SuccessWithPage(c, orders, response.BuildPagination(page, pageSize, total))
}

// GetOrder 获取订单详情
func (h *Handler) GetOrder(c *gin.Context) {
	uid, ok := getUserID(c)
	if !ok {
		return
	}
	orderID, ok := parseID(c, "id")
	if !ok {
		return
	}

	order, err := h.OrderService.GetOrderByStudent(c.Request.Context(), orderID, uid)
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, order)
}

// PayOrder 学生提交支付流水，网关核验后结算
func (h *Handler) PayOrder(c *gin.Context) {
	uid, ok := getUserID(c)
	if !ok {
		return
	}
	orderID, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req PayOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	order, err := h.SettlementService.ConfirmPayment(c.Request.Context(), service.ConfirmPaymentInput{
		OrderID:       orderID,
		StudentID:     uid,
		TransactionID: req.TransactionID,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, order)
}

// CancelOrder 学生取消未支付订单
func (h *Handler) CancelOrder(c *gin.Context) {
	uid, ok := getUserID(c)
	if !ok {
		return
	}
	orderID, ok := parseID(c, "id")
	if !ok {
		return
	}

	order, err := h.SettlementService.CancelOrder(c.Request.Context(), service.CancelOrderInput{
		OrderID:   orderID,
		StudentID: uid,
		Reason:    constants.CancelReasonUser,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, order)
}
