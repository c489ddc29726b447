package payment

import "context"

// ManualGateway 现金与银行转账，由管理员在后台确认到账
type ManualGateway struct{}

// NewManualGateway 创建线下支付网关
func NewManualGateway() *ManualGateway {
	return &ManualGateway{}
}

// Verify 线下支付无法自动核验，始终返回待确认
func (g *ManualGateway) Verify(_ context.Context, input VerifyInput) (*VerifyResult, error) {
	return &VerifyResult{
		Status:        StatusPending,
		TransactionID: input.TransactionID,
		Reason:        "awaiting_admin_confirmation",
	}, nil
}
