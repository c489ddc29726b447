package app

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/musictutor-next/internal/config"
	"github.com/musictutor-next/internal/logger"

	"go.uber.org/zap"
)

// 启动模式
const (
	ModeAll       = "all"
	ModeAPI       = "api"
	ModeWorker    = "worker"
	ModeReconcile = "reconcile"
)

const defaultShutdownTimeout = 10 * time.Second

// Options 应用启动选项
type Options struct {
	Config          *config.Config
	Logger          *zap.SugaredLogger
	Signals         []os.Signal
	ShutdownTimeout time.Duration
	Mode            string
}

// ParseMode 解析命令行启动模式，空值视为 all
func ParseMode(raw string) (string, error) {
	mode := strings.ToLower(strings.TrimSpace(raw))
	switch mode {
	case "":
		return ModeAll, nil
	case ModeAll, ModeAPI, ModeWorker, ModeReconcile:
		return mode, nil
	}
	return "", fmt.Errorf("unknown mode %q (all, api, worker, reconcile)", raw)
}

// normalizeOptions 补齐默认参数
func normalizeOptions(opts Options) Options {
	if opts.Logger == nil {
		opts.Logger = logger.S()
	}
	if opts.ShutdownTimeout <= 0 {
		opts.ShutdownTimeout = defaultShutdownTimeout
	}
	if mode, err := ParseMode(opts.Mode); err == nil {
		opts.Mode = mode
	}
	return opts
}

// runsAPI 模式是否包含 HTTP 服务
func runsAPI(mode string) bool {
	return mode == ModeAll || mode == ModeAPI
}

// runsWorker 模式是否包含队列消费
func runsWorker(mode string) bool {
	return mode == ModeAll || mode == ModeWorker
}
