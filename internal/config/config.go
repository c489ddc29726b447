package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/musictutor-next/internal/logger"

	"github.com/spf13/viper"
)

// Config 应用配置结构
type Config struct {
	App      AppConfig      `mapstructure:"app"`
	Server   ServerConfig   `mapstructure:"server"`
	Log      LogConfig      `mapstructure:"log"`
	Database DatabaseConfig `mapstructure:"database"`
	JWT      JWTConfig      `mapstructure:"jwt"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Queue    QueueConfig    `mapstructure:"queue"`
	CORS     CORSConfig     `mapstructure:"cors"`
	Security SecurityConfig `mapstructure:"security"`
	Email    EmailConfig    `mapstructure:"email"`
	Order    OrderConfig    `mapstructure:"order"`
	Payment  PaymentConfig  `mapstructure:"payment"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
	Captcha  CaptchaConfig  `mapstructure:"captcha"`
}

// AppConfig 应用基础配置
type AppConfig struct {
	Name          string `mapstructure:"name"`
	AdminEmail    string `mapstructure:"admin_email"`
	AdminPassword string `mapstructure:"admin_password"`
	Timezone      string `mapstructure:"timezone"` // 老师可预约时段按此时区解释
}

// Location 返回应用时区，未配置或无效时使用本地时区
func (c AppConfig) Location() *time.Location {
	name := strings.TrimSpace(c.Timezone)
	if name == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		logger.Warnw("config_timezone_invalid", "timezone", name, "error", err)
		return time.Local
	}
	return loc
}

// ServerConfig 服务器配置
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port string `mapstructure:"port"`
	Mode string `mapstructure:"mode"` // debug / release
}

// LogConfig 日志配置
type LogConfig struct {
	Dir        string `mapstructure:"dir"`
	Filename   string `mapstructure:"filename"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
}

// ToLoggerOptions 转换为 logger 配置
func (c LogConfig) ToLoggerOptions() logger.Options {
	return logger.Options{
		Dir:        c.Dir,
		Filename:   c.Filename,
		MaxSizeMB:  c.MaxSizeMB,
		MaxBackups: c.MaxBackups,
		MaxAgeDays: c.MaxAgeDays,
		Compress:   c.Compress,
	}
}

// DatabasePoolConfig 数据库连接池配置
type DatabasePoolConfig struct {
	MaxOpenConns           int `mapstructure:"max_open_conns"`
	MaxIdleConns           int `mapstructure:"max_idle_conns"`
	ConnMaxLifetimeSeconds int `mapstructure:"conn_max_lifetime_seconds"`
	ConnMaxIdleTimeSeconds int `mapstructure:"conn_max_idle_time_seconds"`
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Driver string             `mapstructure:"driver"` // 数据库驱动（sqlite/postgres）
	DSN    string             `mapstructure:"dsn"`    // 数据库连接串
	Pool   DatabasePoolConfig `mapstructure:"pool"`
}

// JWTConfig JWT 配置
type JWTConfig struct {
	SecretKey   string `mapstructure:"secret"`
	ExpireHours int    `mapstructure:"expire_hours"`
}

// RedisConfig Redis 配置
type RedisConfig struct {
	Enabled          bool   `mapstructure:"enabled"`
	Host             string `mapstructure:"host"`
	Port             int    `mapstructure:"port"`
	Password         string `mapstructure:"password"`
	DB               int    `mapstructure:"db"`
	Prefix           string `mapstructure:"prefix"`
	DialTimeoutMS    int    `mapstructure:"dial_timeout_ms"`
	ReadTimeoutMS    int    `mapstructure:"read_timeout_ms"`
	CouponTTLSeconds int    `mapstructure:"coupon_ttl_seconds"`
}

// QueueConfig 异步队列配置
type QueueConfig struct {
	Enabled     bool           `mapstructure:"enabled"`
	Host        string         `mapstructure:"host"`
	Port        int            `mapstructure:"port"`
	Password    string         `mapstructure:"password"`
	DB          int            `mapstructure:"db"`
	Concurrency int            `mapstructure:"concurrency"`
	MaxRetry    int            `mapstructure:"max_retry"`
	Queues      map[string]int `mapstructure:"queues"`
}

// OrderConfig 订单配置
type OrderConfig struct {
	PaymentExpireMinutes     int `mapstructure:"payment_expire_minutes"`
	SingleLessonValidityDays int `mapstructure:"single_lesson_validity_days"`
	ReconcileIntervalSeconds int `mapstructure:"reconcile_interval_seconds"`
	ProcessingStaleMinutes   int `mapstructure:"processing_stale_minutes"`
}

// PaymentExpireDuration 待支付订单的支付时限
func (c OrderConfig) PaymentExpireDuration() time.Duration {
	if c.PaymentExpireMinutes <= 0 {
		return 30 * time.Minute
	}
	return time.Duration(c.PaymentExpireMinutes) * time.Minute
}

// ReconcileInterval 支付对账扫描间隔
func (c OrderConfig) ReconcileInterval() time.Duration {
	if c.ReconcileIntervalSeconds <= 0 {
		return time.Minute
	}
	return time.Duration(c.ReconcileIntervalSeconds) * time.Second
}

// ProcessingStaleAfter processing 状态超过该时长视为卡单
func (c OrderConfig) ProcessingStaleAfter() time.Duration {
	if c.ProcessingStaleMinutes <= 0 {
		return 10 * time.Minute
	}
	return time.Duration(c.ProcessingStaleMinutes) * time.Minute
}

// PaymentConfig 支付网关配置
type PaymentConfig struct {
	TimeoutMS         int                 `mapstructure:"timeout_ms"`
	RetryDelaySeconds int                 `mapstructure:"retry_delay_seconds"`
	MaxAttempts       int                 `mapstructure:"max_attempts"`
	CallbackSecret    string              `mapstructure:"callback_secret"`
	Breaker           BreakerConfig       `mapstructure:"breaker"`
	Paypal            PaypalGatewayConfig `mapstructure:"paypal"`
}

// Timeout 网关调用超时
func (c PaymentConfig) Timeout() time.Duration {
	if c.TimeoutMS <= 0 {
		return 8 * time.Second
	}
	return time.Duration(c.TimeoutMS) * time.Millisecond
}

// RetryDelay 网关不可用时的重试间隔
func (c PaymentConfig) RetryDelay() time.Duration {
	if c.RetryDelaySeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.RetryDelaySeconds) * time.Second
}

// BreakerConfig 熔断器配置
type BreakerConfig struct {
	MaxRequests      uint32 `mapstructure:"max_requests"`
	IntervalSeconds  int    `mapstructure:"interval_seconds"`
	TimeoutSeconds   int    `mapstructure:"timeout_seconds"`
	FailureThreshold uint32 `mapstructure:"failure_threshold"`
}

// PaypalGatewayConfig PayPal 网关配置
type PaypalGatewayConfig struct {
	ClientID     string `mapstructure:"client_id"`
	ClientSecret string `mapstructure:"client_secret"`
	BaseURL      string `mapstructure:"base_url"`
	WebhookID    string `mapstructure:"webhook_id"`
}

// MetricsConfig 指标配置
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// EmailConfig 邮件服务配置
type EmailConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Host      string `mapstructure:"host"`
	Port      int    `mapstructure:"port"`
	Username  string `mapstructure:"username"`
	Password  string `mapstructure:"password"`
	From      string `mapstructure:"from"`
	FromName  string `mapstructure:"from_name"`
	UseTLS    bool   `mapstructure:"use_tls"`
	UseSSL    bool   `mapstructure:"use_ssl"`
	TimeoutMS int    `mapstructure:"timeout_ms"`
}

// CORSConfig 跨域配置
type CORSConfig struct {
	AllowedOrigins   []string `mapstructure:"allowed_origins"`
	AllowedMethods   []string `mapstructure:"allowed_methods"`
	AllowedHeaders   []string `mapstructure:"allowed_headers"`
	AllowCredentials bool     `mapstructure:"allow_credentials"`
	MaxAge           int      `mapstructure:"max_age"`
}

// SecurityConfig 安全配置
type SecurityConfig struct {
	LoginRateLimit    RateLimitConfig `mapstructure:"login_rate_limit"`
	CouponRateLimit   RateLimitConfig `mapstructure:"coupon_rate_limit"`
	PasswordMinLength int             `mapstructure:"password_min_length"`
}

// CaptchaConfig 验证码配置
type CaptchaConfig struct {
	Provider string             `mapstructure:"provider"` // none / image
	Scenes   CaptchaSceneConfig `mapstructure:"scenes"`
	Image    CaptchaImageConfig `mapstructure:"image"`
}

// CaptchaSceneConfig 验证码场景开关
type CaptchaSceneConfig struct {
	Login    bool `mapstructure:"login"`
	Register bool `mapstructure:"register"`
}

// CaptchaImageConfig 图片验证码配置
type CaptchaImageConfig struct {
	Length        int `mapstructure:"length"`
	Width         int `mapstructure:"width"`
	Height        int `mapstructure:"height"`
	NoiseCount    int `mapstructure:"noise_count"`
	ShowLine      int `mapstructure:"show_line"`
	ExpireSeconds int `mapstructure:"expire_seconds"`
	MaxStore      int `mapstructure:"max_store"`
}

// RateLimitConfig 限流配置
type RateLimitConfig struct {
	WindowSeconds int `mapstructure:"window_seconds"`
	MaxAttempts   int `mapstructure:"max_attempts"`
	BlockSeconds  int `mapstructure:"block_seconds"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "musictutor")
	v.SetDefault("app.admin_email", "admin@musictutor.local")
	v.SetDefault("app.admin_password", "")
	v.SetDefault("app.timezone", "")
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.mode", "debug")
	v.SetDefault("log.dir", "")
	v.SetDefault("log.filename", "app.log")
	v.SetDefault("log.max_size_mb", 100)
	v.SetDefault("log.max_backups", 7)
	v.SetDefault("log.max_age_days", 30)
	v.SetDefault("log.compress", true)
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "./db/musictutor.db")
	v.SetDefault("database.pool.max_open_conns", 1)
	v.SetDefault("database.pool.max_idle_conns", 1)
	v.SetDefault("database.pool.conn_max_lifetime_seconds", 0)
	v.SetDefault("database.pool.conn_max_idle_time_seconds", 0)
	v.SetDefault("jwt.secret", "change-me-in-production")
	v.SetDefault("jwt.expire_hours", 24)
	v.SetDefault("redis.enabled", true)
	v.SetDefault("redis.host", "127.0.0.1")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.prefix", "mt")
	v.SetDefault("redis.dial_timeout_ms", 2000)
	v.SetDefault("redis.read_timeout_ms", 1000)
	v.SetDefault("redis.coupon_ttl_seconds", 300)
	v.SetDefault("queue.enabled", true)
	v.SetDefault("queue.host", "127.0.0.1")
	v.SetDefault("queue.port", 6379)
	v.SetDefault("queue.password", "")
	v.SetDefault("queue.db", 1)
	v.SetDefault("queue.concurrency", 10)
	v.SetDefault("queue.max_retry", 8)
	v.SetDefault("queue.queues", map[string]int{
		"critical": 6,
		"default":  3,
	})
	v.SetDefault("cors.allowed_origins", []string{"*"})
	v.SetDefault("cors.allowed_methods", []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"})
	v.SetDefault("cors.allowed_headers", []string{
		"Content-Type",
		"Content-Length",
		"Accept-Encoding",
		"Authorization",
		"Cache-Control",
		"X-Requested-With",
		"X-Request-ID",
	})
	v.SetDefault("cors.allow_credentials", true)
	v.SetDefault("cors.max_age", 600)
	v.SetDefault("security.login_rate_limit.window_seconds", 300)
	v.SetDefault("security.login_rate_limit.max_attempts", 5)
	v.SetDefault("security.login_rate_limit.block_seconds", 900)
	v.SetDefault("security.coupon_rate_limit.window_seconds", 60)
	v.SetDefault("security.coupon_rate_limit.max_attempts", 10)
	v.SetDefault("security.coupon_rate_limit.block_seconds", 300)
	v.SetDefault("security.password_min_length", 8)
	v.SetDefault("email.enabled", false)
	v.SetDefault("email.host", "")
	v.SetDefault("email.port", 587)
	v.SetDefault("email.username", "")
	v.SetDefault("email.password", "")
	v.SetDefault("email.from", "")
	v.SetDefault("email.from_name", "")
	v.SetDefault("email.use_tls", true)
	v.SetDefault("email.use_ssl", false)
	v.SetDefault("email.timeout_ms", 10000)
	v.SetDefault("order.payment_expire_minutes", 30)
	v.SetDefault("order.single_lesson_validity_days", 90)
	v.SetDefault("order.reconcile_interval_seconds", 60)
	v.SetDefault("order.processing_stale_minutes", 10)
	v.SetDefault("payment.timeout_ms", 8000)
	v.SetDefault("payment.retry_delay_seconds", 30)
	v.SetDefault("payment.max_attempts", 6)
	v.SetDefault("payment.callback_secret", "")
	v.SetDefault("payment.breaker.max_requests", 1)
	v.SetDefault("payment.breaker.interval_seconds", 60)
	v.SetDefault("payment.breaker.timeout_seconds", 30)
	v.SetDefault("payment.breaker.failure_threshold", 5)
	v.SetDefault("payment.paypal.base_url", "https://api-m.sandbox.paypal.com")
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")
	v.SetDefault("captcha.provider", "none")
	v.SetDefault("captcha.scenes.login", false)
	v.SetDefault("captcha.scenes.register", false)
	v.SetDefault("captcha.image.length", 5)
	v.SetDefault("captcha.image.width", 240)
	v.SetDefault("captcha.image.height", 80)
	v.SetDefault("captcha.image.noise_count", 2)
	v.SetDefault("captcha.image.show_line", 2)
	v.SetDefault("captcha.image.expire_seconds", 300)
	v.SetDefault("captcha.image.max_store", 10240)
}

// Load 从 config.yml 加载配置
func Load() *Config {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")     // 从当前目录查找
	v.AddConfigPath("../")   // 如果从 cmd/server 运行
	v.AddConfigPath("./etc") // etc 文件夹

	setDefaults(v)

	// 环境变量支持（例如 server.port -> SERVER_PORT）
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		logger.Warnw("config_file_read_failed",
			"error", err,
			"fallback", "env_or_defaults",
		)
	} else {
		logger.Infow("config_file_loaded", "file", v.ConfigFileUsed())
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		logger.Errorw("config_unmarshal_failed", "error", err)
		panic(fmt.Errorf("配置解析失败: %w", err))
	}

	return &cfg
}
