package service

import (
	"github.com/musictutor-next/internal/repository"
)

// OrderService 订单查询服务
type OrderService struct {
	orderRepo  repository.OrderRepository
	settlement *SettlementService
}

// NewOrderService 创建订单查询服务
func NewOrderService(orderRepo repository.OrderRepository, settlement *SettlementService) *OrderService {
	return &OrderService{
		orderRepo:  orderRepo,
		settlement: settlement,
	}
}
