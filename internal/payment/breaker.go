package payment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/musictutor-next/internal/config"
	"github.com/musictutor-next/internal/logger"

	"github.com/sony/gobreaker/v2"
)

// BreakerGateway 为下游网关增加超时与熔断
type BreakerGateway struct {
	next    Gateway
	timeout time.Duration
	cb      *gobreaker.CircuitBreaker[*VerifyResult]
}

// NewBreakerGateway 包装网关
func NewBreakerGateway(name string, next Gateway, cfg config.PaymentConfig) *BreakerGateway {
	threshold := cfg.Breaker.FailureThreshold
	if threshold == 0 {
		threshold = 5
	}
	maxRequests := cfg.Breaker.MaxRequests
	if maxRequests == 0 {
		maxRequests = 1
	}
	openTimeout := time.Duration(cfg.Breaker.TimeoutSeconds) * time.Second
	if openTimeout <= 0 {
		openTimeout = 30 * time.Second
	}
	settings := gobreaker.Settings{
		Name:        name,
		MaxRequests: maxRequests,
		Interval:    time.Duration(cfg.Breaker.IntervalSeconds) * time.Second,
		Timeout:     openTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warnw("payment_breaker_state_changed",
				"gateway", name,
				"from", from.String(),
				"to", to.String(),
			)
		},
	}
	return &BreakerGateway{
		next:    next,
		timeout: cfg.Timeout(),
		cb:      gobreaker.NewCircuitBreaker[*VerifyResult](settings),
	}
}

// Verify 实现 Gateway；超时、熔断与传输错误统一归为 ErrGatewayUnavailable
func (g *BreakerGateway) Verify(ctx context.Context, input VerifyInput) (*VerifyResult, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	result, err := g.cb.Execute(func() (*VerifyResult, error) {
		return g.next.Verify(ctx, input)
	})
	if err == nil {
		return result, nil
	}
	if errors.Is(err, ErrMethodUnsupported) || errors.Is(err, ErrTransactionMissing) {
		return nil, err
	}
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, fmt.Errorf("%w: circuit %s", ErrGatewayUnavailable, g.cb.State().String())
	}
	return nil, fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
}

// State 当前熔断状态
func (g *BreakerGateway) State() gobreaker.State {
	return g.cb.State()
}
