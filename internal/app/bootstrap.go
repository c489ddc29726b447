package app

import (
	"errors"

	"github.com/musictutor-next/internal/config"
	"github.com/musictutor-next/internal/logger"
	"github.com/musictutor-next/internal/provider"
	"github.com/musictutor-next/internal/router"
	"github.com/musictutor-next/internal/worker"
)

// BuildRunner 构建服务运行器
func BuildRunner(cfg *config.Config, mode string) (*Runner, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}

	container := provider.NewContainer(cfg)

	var services []Service

	// 初始化 HTTP 服务
	if runsAPI(mode) {
		engine := router.SetupRouter(cfg, container)
		addr := cfg.Server.Host + ":" + cfg.Server.Port
		httpService := NewHTTPService(addr, engine)
		services = append(services, httpService)
	}

	// 初始化 Worker 服务；队列未启用或 reconcile 模式下仅运行对账循环，超时订单由兜底扫描取消
	if runsWorker(mode) || mode == ModeReconcile {
		consumer := worker.NewConsumer(container)
		if cfg.Queue.Enabled && mode != ModeReconcile {
			workerService, err := worker.NewService(&cfg.Queue, consumer)
			if err != nil {
				return nil, err
			}
			services = append(services, workerService)
		} else {
			if mode != ModeReconcile {
				logger.Warnw("app_queue_disabled_reconcile_only", "mode", mode)
			}
			reconcileService, err := worker.NewReconcileService(consumer)
			if err != nil {
				return nil, err
			}
			services = append(services, reconcileService)
		}
	}

	if len(services) == 0 {
		return nil, errors.New("no services initialized (check mode and config)")
	}

	return NewRunner(services...), nil
}

// Run 应用启动入口
func Run(opts Options) error {
	opts = normalizeOptions(opts)
	if opts.Config == nil {
		return errors.New("config is nil")
	}

	mode, err := ParseMode(opts.Mode)
	if err != nil {
		return err
	}
	opts.Mode = mode

	runner, err := BuildRunner(opts.Config, opts.Mode)
	if err != nil {
		return err
	}

	addr := opts.Config.Server.Host + ":" + opts.Config.Server.Port
	opts.Logger.Infow("app_start", "addr", addr, "mode", opts.Mode, "services", runner.Names())
	return RunWithOptions(runner, opts)
}
