// Package payment 支付网关抽象与公共实现
package payment

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/musictutor-next/internal/constants"

	"github.com/shopspring/decimal"
)

var (
	ErrGatewayUnavailable = errors.New("payment gateway unavailable")
	ErrMethodUnsupported  = errors.New("payment method unsupported")
	ErrTransactionMissing = errors.New("payment transaction id missing")
)

// 网关核验结果状态
const (
	StatusCompleted = "completed"
	StatusDeclined  = "declined"
	StatusPending   = "pending"
)

// VerifyInput 支付核验输入
type VerifyInput struct {
	OrderNo       string
	TransactionID string
	Method        string
	Amount        decimal.Decimal
}

// VerifyResult 支付核验结果
type VerifyResult struct {
	Status        string
	TransactionID string
	Amount        string
	Reason        string
}

// Gateway 支付网关
type Gateway interface {
	Verify(ctx context.Context, input VerifyInput) (*VerifyResult, error)
}

// Router 按支付方式分发到具体网关
type Router struct {
	gateways map[string]Gateway
}

// NewRouter 创建网关路由
func NewRouter() *Router {
	return &Router{gateways: make(map[string]Gateway)}
}

// Register 注册支付方式对应的网关
func (r *Router) Register(gateway Gateway, methods ...string) *Router {
	for _, method := range methods {
		method = strings.ToLower(strings.TrimSpace(method))
		if method == "" {
			continue
		}
		r.gateways[method] = gateway
	}
	return r
}

// Verify 实现 Gateway
func (r *Router) Verify(ctx context.Context, input VerifyInput) (*VerifyResult, error) {
	if r == nil {
		return nil, ErrMethodUnsupported
	}
	gateway, ok := r.gateways[strings.ToLower(strings.TrimSpace(input.Method))]
	if !ok || gateway == nil {
		return nil, fmt.Errorf("%w: %s", ErrMethodUnsupported, input.Method)
	}
	if strings.TrimSpace(input.TransactionID) == "" {
		return nil, ErrTransactionMissing
	}
	return gateway.Verify(ctx, input)
}

// IsManualMethod 线下支付方式需管理员确认
func IsManualMethod(method string) bool {
	switch strings.ToLower(strings.TrimSpace(method)) {
	case constants.PaymentMethodCash, constants.PaymentMethodBankTransfer:
		return true
	}
	return false
}

// IsSupportedMethod 判断支付方式是否合法
func IsSupportedMethod(method string) bool {
	switch strings.ToLower(strings.TrimSpace(method)) {
	case constants.PaymentMethodCreditCard, constants.PaymentMethodPaypal,
		constants.PaymentMethodCash, constants.PaymentMethodBankTransfer:
		return true
	}
	return false
}
