package app

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"time"

	"go.uber.org/zap"
)

// Service 可被 Runner 托管的长驻服务（HTTP、队列消费、对账循环）
type Service interface {
	Name() string
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// Runner 并行启动服务，任一服务退出即整体停机
type Runner struct {
	services []Service
}

// serviceExit 服务退出结果
type serviceExit struct {
	name string
	err  error
}

// NewRunner 创建服务运行器
func NewRunner(services ...Service) *Runner {
	return &Runner{services: services}
}

// Names 已注册的服务名称，按注册顺序
func (r *Runner) Names() []string {
	if r == nil {
		return nil
	}
	names := make([]string, 0, len(r.services))
	for _, svc := range r.services {
		if svc == nil {
			continue
		}
		names = append(names, svc.Name())
	}
	return names
}

// RunWithOptions 运行服务并处理系统信号
func RunWithOptions(runner *Runner, opts Options) error {
	if runner == nil {
		return errors.New("runner is nil")
	}
	opts = normalizeOptions(opts)
	ctx := context.Background()
	if len(opts.Signals) > 0 {
		var cancel context.CancelFunc
		ctx, cancel = signal.NotifyContext(ctx, opts.Signals...)
		defer cancel()
	}
	return runner.Run(ctx, opts.ShutdownTimeout, opts.Logger)
}

// Run 启动全部服务并阻塞；服务出错时返回带服务名的错误，正常退出或取消时返回 nil
func (r *Runner) Run(ctx context.Context, stopTimeout time.Duration, logger *zap.SugaredLogger) error {
	if r == nil || len(r.services) == 0 {
		return errors.New("no services to run")
	}
	if err := r.validate(); err != nil {
		return err
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	exitCh := make(chan serviceExit, len(r.services))
	for _, svc := range r.services {
		go func(service Service) {
			name := service.Name()
			if logger != nil {
				logger.Infow("service_start", "service", name)
			}
			err := service.Start(ctx)
			if logger != nil {
				logger.Infow("service_exit", "service", name, "error", err)
			}
			exitCh <- serviceExit{name: name, err: err}
		}(svc)
	}

	var runErr error
	select {
	case <-ctx.Done():
		runErr = ctx.Err()
	case exit := <-exitCh:
		if exit.err != nil {
			runErr = fmt.Errorf("service %s: %w", exit.name, exit.err)
		} else if logger != nil {
			// asynq 自行处理信号，正常返回时其余服务一并停机
			logger.Infow("service_shutdown_triggered", "service", exit.name)
		}
	}

	cancel()
	r.stopAll(stopTimeout, logger)
	if errors.Is(runErr, context.Canceled) {
		return nil
	}
	return runErr
}

// stopAll 按注册的逆序停止服务
func (r *Runner) stopAll(stopTimeout time.Duration, logger *zap.SugaredLogger) {
	if stopTimeout <= 0 {
		stopTimeout = defaultShutdownTimeout
	}
	stopCtx, stopCancel := context.WithTimeout(context.Background(), stopTimeout)
	defer stopCancel()
	for i := len(r.services) - 1; i >= 0; i-- {
		svc := r.services[i]
		if err := svc.Stop(stopCtx); err != nil && logger != nil {
			logger.Errorw("service_stop_failed", "service", svc.Name(), "error", err)
		}
	}
}

func (r *Runner) validate() error {
	seen := make(map[string]struct{}, len(r.services))
	for _, svc := range r.services {
		if svc == nil {
			return errors.New("service is nil")
		}
		name := svc.Name()
		if _, ok := seen[name]; ok {
			return fmt.Errorf("duplicate service %q", name)
		}
		seen[name] = struct{}{}
	}
	return nil
}
