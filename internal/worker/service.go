package worker

import (
	"context"
	"errors"
	"time"

	"github.com/musictutor-next/internal/config"
	"github.com/musictutor-next/internal/logger"
	"github.com/musictutor-next/internal/queue"

	"github.com/hibiken/asynq"
)

const reconcileBatchSize = 100

// Service 异步队列服务
type Service struct {
	name     string
	server   *asynq.Server
	mux      *asynq.ServeMux
	consumer *Consumer
}

// NewService 创建异步队列服务
func NewService(cfg *config.QueueConfig, consumer *Consumer) (*Service, error) {
	if cfg == nil || !cfg.Enabled {
		return nil, errors.New("queue disabled")
	}
	if consumer == nil {
		return nil, errors.New("consumer is nil")
	}
	opt, serverCfg := queue.BuildServerConfig(cfg)
	server := asynq.NewServer(opt, serverCfg)
	mux := asynq.NewServeMux()
	consumer.Register(mux)
	return &Service{
		name:     "worker",
		server:   server,
		mux:      mux,
		consumer: consumer,
	}, nil
}

// Name 服务名称
func (s *Service) Name() string {
	if s == nil || s.name == "" {
		return "worker"
	}
	return s.name
}

// Start 启动服务
func (s *Service) Start(ctx context.Context) error {
	if s == nil || s.server == nil || s.mux == nil {
		return errors.New("worker not initialized")
	}
	if s.consumer != nil && s.consumer.SettlementService != nil {
		go s.runReconcileLoop(ctx)
	}
	return s.server.Run(s.mux)
}

// Stop 停止服务
func (s *Service) Stop(ctx context.Context) error {
	if s == nil || s.server == nil {
		return nil
	}
	_ = ctx
	s.server.Shutdown()
	return nil
}

// runReconcileLoop 周期性扫描卡在 processing 的订单与漏掉超时任务的 pending 订单
func (s *Service) runReconcileLoop(ctx context.Context) {
	if s == nil || s.consumer == nil || s.consumer.SettlementService == nil {
		return
	}
	orderCfg := s.consumer.Config.Order
	s.consumer.ReconcileOnce(ctx, time.Now(), orderCfg.ProcessingStaleAfter())

	ticker := time.NewTicker(orderCfg.ReconcileInterval())
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			s.consumer.ReconcileOnce(ctx, now, orderCfg.ProcessingStaleAfter())
		}
	}
}

// ReconcileOnce 执行一轮对账
func (c *Consumer) ReconcileOnce(ctx context.Context, now time.Time, staleAfter time.Duration) {
	result, err := c.SettlementService.ReconcileProcessing(ctx, now.Add(-staleAfter), reconcileBatchSize)
	if err != nil {
		logger.Warnw("worker_reconcile_processing_failed", "error", err)
	} else if result.Requeued+result.Cancelled > 0 {
		logger.Infow("worker_reconcile_processing_done",
			"requeued", result.Requeued,
			"cancelled", result.Cancelled,
			"skipped", result.Skipped,
		)
	}

	expired, err := c.SettlementService.ExpireOverdue(ctx, now, reconcileBatchSize)
	if err != nil {
		logger.Warnw("worker_expire_overdue_failed", "error", err)
		return
	}
	if expired > 0 {
		logger.Infow("worker_expire_overdue_done", "cancelled", expired)
	}
}

// ReconcileService 队列未启用时单独运行的对账服务
type ReconcileService struct {
	consumer *Consumer
	cancel   context.CancelFunc
}

// NewReconcileService 创建对账服务
func NewReconcileService(consumer *Consumer) (*ReconcileService, error) {
	if consumer == nil || consumer.SettlementService == nil {
		return nil, errors.New("consumer is nil")
	}
	return &ReconcileService{consumer: consumer}, nil
}

// Name 服务名称
func (s *ReconcileService) Name() string {
	return "reconcile"
}

// Start 启动对账循环，阻塞直到 ctx 结束
func (s *ReconcileService) Start(ctx context.Context) error {
	ctx, s.cancel = context.WithCancel(ctx)
	loop := &Service{consumer: s.consumer}
	loop.runReconcileLoop(ctx)
	return nil
}

// Stop 停止服务
func (s *ReconcileService) Stop(ctx context.Context) error {
	if s != nil && s.cancel != nil {
		s.cancel()
	}
	return nil
}
