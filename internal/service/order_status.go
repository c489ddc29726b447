package service

import (
	"strings"

	"github.com/musictutor-next/internal/constants"
	"github.com/musictutor-next/internal/models"
	"github.com/musictutor-next/internal/repository"
)

// allowedTransitions 订单状态机。cancelled 与 refunded 为终态
var allowedTransitions = map[string]map[string]bool{
	constants.OrderStatusPending: {
		constants.OrderStatusProcessing: true,
		constants.OrderStatusCancelled:  true,
	},
	constants.OrderStatusProcessing: {
		constants.OrderStatusPaid:      true,
		constants.OrderStatusPending:   true,
		constants.OrderStatusCancelled: true,
	},
	constants.OrderStatusPaid: {
		constants.OrderStatusRefunded: true,
	},
}

func isTransitionAllowed(from, to string) bool {
	from = strings.ToLower(strings.TrimSpace(from))
	to = strings.ToLower(strings.TrimSpace(to))
	next, ok := allowedTransitions[from]
	if !ok {
		return false
	}
	return next[to]
}

// transitionOrder 按订单当前状态做 CAS；返回 false 表示状态已被并发修改
func transitionOrder(orderRepo repository.OrderRepository, order *models.Order, to string, updates map[string]interface{}) (bool, error) {
	if !isTransitionAllowed(order.Status, to) {
		return false, wrapf(ErrInvalidTransition, "%s -> %s", order.Status, to)
	}
	ok, err := orderRepo.TransitionStatus(order.ID, []string{order.Status}, to, updates)
	if err != nil {
		return false, err
	}
	if ok {
		order.Status = to
	}
	return ok, nil
}
