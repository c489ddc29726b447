package provider

import (
	"fmt"
	"net/http"

	"github.com/musictutor-next/internal/authz"
	"github.com/musictutor-next/internal/cache"
	"github.com/musictutor-next/internal/config"
	"github.com/musictutor-next/internal/constants"
	"github.com/musictutor-next/internal/logger"
	"github.com/musictutor-next/internal/metrics"
	"github.com/musictutor-next/internal/models"
	"github.com/musictutor-next/internal/payment"
	"github.com/musictutor-next/internal/payment/paypal"
	"github.com/musictutor-next/internal/queue"
	"github.com/musictutor-next/internal/repository"
	"github.com/musictutor-next/internal/service"

	"gorm.io/gorm"
)

// Container 依赖注入容器
type Container struct {
	Config        *config.Config
	QueueClient   *queue.Client
	Metrics       *metrics.Recorder
	Gateway       payment.Gateway
	PaypalGateway *paypal.Gateway

	// Repositories
	UserRepo         repository.UserRepository
	CourseRepo       repository.CourseRepository
	CartRepo         repository.CartRepository
	CouponRepo       repository.CouponRepository
	RedemptionRepo   repository.RedemptionRepository
	OrderRepo        repository.OrderRepository
	AppointmentRepo  repository.AppointmentRepository
	AvailabilityRepo repository.AvailabilityRepository
	ReviewRepo       repository.ReviewRepository

	// Services
	AuthzService        *authz.Service
	AuthService         *service.AuthService
	EmailService        *service.EmailService
	CourseService       *service.CourseService
	CouponService       *service.CouponService
	CouponAdminService  *service.CouponAdminService
	CartService         *service.CartService
	CheckoutService     *service.CheckoutService
	SettlementService   *service.SettlementService
	OrderService        *service.OrderService
	AppointmentService  *service.AppointmentService
	AvailabilityService *service.AvailabilityService
	ReviewService       *service.ReviewService
	CaptchaService      *service.CaptchaService
}

// NewContainer 初始化容器
func NewContainer(cfg *config.Config) *Container {
	// 初始化缓存
	if err := cache.InitRedis(&cfg.Redis); err != nil {
		logger.Warnw("provider_init_redis_failed", "error", err)
	}

	// 初始化队列客户端
	queueClient, err := queue.NewClient(&cfg.Queue)
	if err != nil {
		logger.Errorw("provider_init_queue_client_failed", "error", err)
	}

	var recorder *metrics.Recorder
	if cfg.Metrics.Enabled {
		recorder = metrics.New()
	}

	c, err := Build(cfg, models.DB, queueClient, recorder)
	if err != nil {
		logger.Errorw("provider_build_container_failed", "error", err)
		panic(err)
	}
	return c
}

// Build 基于给定数据库与基础组件组装容器
func Build(cfg *config.Config, db *gorm.DB, queueClient *queue.Client, recorder *metrics.Recorder) (*Container, error) {
	if cfg == nil || db == nil {
		return nil, fmt.Errorf("provider requires config and db")
	}
	if queueClient == nil {
		queueClient, _ = queue.NewClient(nil)
	}
	c := &Container{
		Config:      cfg,
		QueueClient: queueClient,
		Metrics:     recorder,
	}

	// 1. 初始化 Repositories
	c.initRepositories(db)

	// 2. 初始化支付网关
	c.initGateways()

	// 3. 初始化 Services
	if err := c.initServices(db); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Container) initRepositories(db *gorm.DB) {
	c.UserRepo = repository.NewUserRepository(db)
	c.CourseRepo = repository.NewCourseRepository(db)
	c.CartRepo = repository.NewCartRepository(db)
	c.CouponRepo = repository.NewCouponRepository(db)
	c.RedemptionRepo = repository.NewRedemptionRepository(db)
	c.OrderRepo = repository.NewOrderRepository(db)
	c.AppointmentRepo = repository.NewAppointmentRepository(db)
	c.AvailabilityRepo = repository.NewAvailabilityRepository(db)
	c.ReviewRepo = repository.NewReviewRepository(db)
}

func (c *Container) initGateways() {
	router := payment.NewRouter().
		Register(payment.NewManualGateway(), constants.PaymentMethodCash, constants.PaymentMethodBankTransfer)

	paypalCfg := paypal.FromAppConfig(c.Config.Payment.Paypal)
	if err := paypal.ValidateConfig(paypalCfg); err != nil {
		logger.Warnw("provider_paypal_gateway_disabled", "error", err)
	} else {
		c.PaypalGateway = paypal.NewGateway(paypalCfg, &http.Client{Timeout: c.Config.Payment.Timeout()})
		breaker := payment.NewBreakerGateway(constants.PaymentMethodPaypal, c.PaypalGateway, c.Config.Payment)
		router.Register(breaker, constants.PaymentMethodPaypal, constants.PaymentMethodCreditCard)
	}
	c.Gateway = router
}

func (c *Container) initServices(db *gorm.DB) error {
	authzService, err := authz.NewService(db)
	if err != nil {
		return fmt.Errorf("init authz failed: %w", err)
	}
	if err := authzService.BootstrapBuiltinRoles(); err != nil {
		return fmt.Errorf("bootstrap builtin roles failed: %w", err)
	}
	c.AuthzService = authzService

	c.EmailService = service.NewEmailService(&c.Config.Email)
	c.AuthService = service.NewAuthService(c.Config, c.UserRepo)
	c.CaptchaService = service.NewCaptchaService(c.Config.Captcha)
	c.CourseService = service.NewCourseService(c.CourseRepo)
	c.CouponService = service.NewCouponService(c.CouponRepo, c.RedemptionRepo)
	c.CouponAdminService = service.NewCouponAdminService(c.CouponRepo, c.RedemptionRepo)
	c.CartService = service.NewCartService(c.CartRepo, c.CourseRepo, c.CouponRepo, c.RedemptionRepo, c.CouponService, c.Metrics)
	c.CheckoutService = service.NewCheckoutService(
		c.CartRepo,
		c.CouponRepo,
		c.RedemptionRepo,
		c.OrderRepo,
		c.QueueClient,
		c.Metrics,
		c.Config.Order.PaymentExpireDuration(),
	)
	c.SettlementService = service.NewSettlementService(
		c.OrderRepo,
		c.CouponRepo,
		c.RedemptionRepo,
		c.AppointmentRepo,
		c.UserRepo,
		c.Gateway,
		c.QueueClient,
		c.Metrics,
		service.SettlementOptions{
			RetryDelay:          c.Config.Payment.RetryDelay(),
			MaxAttempts:         c.Config.Payment.MaxAttempts,
			DefaultValidityDays: c.Config.Order.SingleLessonValidityDays,
		},
	)
	c.OrderService = service.NewOrderService(c.OrderRepo, c.SettlementService)
	c.AppointmentService = service.NewAppointmentService(
		c.AppointmentRepo,
		c.OrderRepo,
		c.CourseRepo,
		c.AvailabilityRepo,
		c.Config.App.Location(),
	)
	c.AvailabilityService = service.NewAvailabilityService(c.AvailabilityRepo)
	c.ReviewService = service.NewReviewService(c.ReviewRepo, c.AppointmentRepo, c.CourseRepo)
	return nil
}
