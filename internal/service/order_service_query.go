package service

import (
	"context"
	"strings"
	"time"

	"github.com/musictutor-next/internal/constants"
	"github.com/musictutor-next/internal/logger"
	"github.com/musictutor-next/internal/models"
	"github.com/musictutor-next/internal/repository"
)

// ensureOrderCancelledIfExpired 读取时懒同步过期订单状态
func (s *OrderService) ensureOrderCancelledIfExpired(ctx context.Context, order *models.Order) (*models.Order, error) {
	if order == nil || s.settlement == nil {
		return order, nil
	}
	if order.Status != constants.OrderStatusPending || order.ExpiresAt == nil {
		return order, nil
	}
	if order.ExpiresAt.After(time.Now()) {
		return order, nil
	}
	if err := s.settlement.ExpirePendingOrder(ctx, order.ID); err != nil {
		logger.Warnw("order_lazy_expire_failed",
			"order_id", order.ID,
			"error", err,
		)
		return order, nil
	}
	refreshed, err := s.orderRepo.GetByID(order.ID)
	if err != nil {
		return nil, err
	}
	if refreshed == nil {
		return order, nil
	}
	return refreshed, nil
}

// GetOrderByStudent 获取学生自己的订单详情
func (s *OrderService) GetOrderByStudent(ctx context.Context, orderID, studentID uint) (*models.Order, error) {
	if orderID == 0 || studentID == 0 {
		return nil, ErrInvalidInput
	}
	order, err := s.orderRepo.GetByIDAndStudent(orderID, studentID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, ErrOrderNotFound
	}
	return s.ensureOrderCancelledIfExpired(ctx, order)
}

// ListOrdersByStudent 学生订单列表
func (s *OrderService) ListOrdersByStudent(ctx context.Context, studentID uint, filter repository.OrderListFilter) ([]models.Order, int64, error) {
	if studentID == 0 {
		return nil, 0, ErrInvalidInput
	}
	filter.StudentID = studentID
	return s.listOrders(ctx, filter)
}

// GetOrder 管理端订单详情
func (s *OrderService) GetOrder(ctx context.Context, orderID uint) (*models.Order, error) {
	if orderID == 0 {
		return nil, ErrInvalidInput
	}
	order, err := s.orderRepo.GetByID(orderID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, ErrOrderNotFound
	}
	return s.ensureOrderCancelledIfExpired(ctx, order)
}

// ListOrders 管理端订单列表，可按状态与订单号筛选
func (s *OrderService) ListOrders(ctx context.Context, filter repository.OrderListFilter) ([]models.Order, int64, error) {
	return s.listOrders(ctx, filter)
}

func (s *OrderService) listOrders(ctx context.Context, filter repository.OrderListFilter) ([]models.Order, int64, error) {
	filter.Status = strings.ToLower(strings.TrimSpace(filter.Status))
	filter.OrderNo = strings.TrimSpace(filter.OrderNo)
	orders, total, err := s.orderRepo.List(filter)
	if err != nil {
		return nil, 0, err
	}
	for i := range orders {
		refreshed, err := s.ensureOrderCancelledIfExpired(ctx, &orders[i])
		if err != nil {
			return nil, 0, err
		}
		orders[i] = *refreshed
	}
	return orders, total, nil
}
