package router

import (
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/musictutor-next/internal/authz"
	"github.com/musictutor-next/internal/cache"
	"github.com/musictutor-next/internal/config"
	adminhandlers "github.com/musictutor-next/internal/http/handlers/admin"
	publichandlers "github.com/musictutor-next/internal/http/handlers/public"
	"github.com/musictutor-next/internal/http/response"
	"github.com/musictutor-next/internal/logger"
	"github.com/musictutor-next/internal/provider"

	"github.com/gin-gonic/gin"
)

// SetupRouter 初始化路由
func SetupRouter(cfg *config.Config, c *provider.Container) *gin.Engine {
	log := logger.L
	if log == nil {
		log = logger.Init(cfg.Server.Mode, cfg.Log.ToLoggerOptions())
	}
	r := gin.New()

	// 初始化 Handler（按前台/后台分组）
	publicHandler := publichandlers.New(c)
	adminHandler := adminhandlers.New(c)
	redisPrefix := strings.TrimSpace(cfg.Redis.Prefix)
	if redisPrefix == "" {
		redisPrefix = "mt"
	}
	redisClient := cache.Client()
	loginRule := RateLimitRule{
		Prefix:        fmt.Sprintf("%s:rate:login", redisPrefix),
		WindowSeconds: cfg.Security.LoginRateLimit.WindowSeconds,
		MaxRequests:   cfg.Security.LoginRateLimit.MaxAttempts,
		Message:       "too many login attempts",
	}
	couponRule := RateLimitRule{
		Prefix:        fmt.Sprintf("%s:rate:coupon", redisPrefix),
		WindowSeconds: cfg.Security.CouponRateLimit.WindowSeconds,
		MaxRequests:   cfg.Security.CouponRateLimit.MaxAttempts,
		Message:       "too many coupon attempts",
	}

	// 中间件
	r.Use(gin.Recovery())
	r.Use(RequestIDMiddleware())
	r.Use(LoggerMiddleware(log))
	r.Use(CORSMiddleware(cfg.CORS))
	if c.Metrics != nil {
		r.Use(MetricsMiddleware(c.Metrics))
	}

	apiV1 := r.Group("/api/v1")
	{
		// 用户认证接口
		auth := apiV1.Group("/auth")
		{
			auth.POST("/register", publicHandler.Register)
			auth.POST("/login", RateLimitMiddleware(redisClient, loginRule, KeyByIPAndJSONField("email")), publicHandler.Login)
		}
		apiV1.GET("/captcha/image", publicHandler.GetImageCaptcha)

		// 公开课程目录
		apiV1.GET("/courses", publicHandler.ListCourses)
		apiV1.GET("/courses/:id", publicHandler.GetCourse)
		apiV1.GET("/courses/:id/reviews", publicHandler.ListCourseReviews)
		apiV1.GET("/teachers/:id/availability", publicHandler.GetTeacherAvailability)

		// 支付回调（签名校验）
		apiV1.POST("/payments/callback", publicHandler.PaymentCallback)

		// 需鉴权接口，按角色授权
		authorized := apiV1.Group("")
		authorized.Use(AuthMiddleware(c.AuthService), RBACMiddleware(c.AuthzService))
		{
			authorized.GET("/auth/me", publicHandler.GetCurrentUser)

			// 教师课程管理
			authorized.POST("/teacher/courses", publicHandler.CreateTeacherCourse)
			authorized.PUT("/teacher/courses/:id", publicHandler.UpdateTeacherCourse)
			authorized.PUT("/teacher/availability", publicHandler.SetMyAvailability)

			// 购物车与结账
			authorized.GET("/cart", publicHandler.GetCart)
			authorized.POST("/cart/items", publicHandler.AddCartItem)
			authorized.PATCH("/cart/items/:courseId", publicHandler.UpdateCartItem)
			authorized.DELETE("/cart/items/:courseId", publicHandler.RemoveCartItem)
			authorized.POST("/cart/:id/coupon", RateLimitMiddleware(redisClient, couponRule, KeyByUser), publicHandler.ApplyCoupon)
			authorized.DELETE("/cart/:id/coupon", publicHandler.RemoveCoupon)
			authorized.POST("/cart/:id/checkout", publicHandler.Checkout)

			// 订单
			authorized.GET("/orders", publicHandler.ListOrders)
			authorized.GET("/orders/:id", publicHandler.GetOrder)
			authorized.POST("/orders/:id/pay", publicHandler.PayOrder)
			authorized.POST("/orders/:id/cancel", publicHandler.CancelOrder)

			// 预约
			authorized.GET("/appointments", publicHandler.ListAppointments)
			authorized.POST("/appointments", publicHandler.BookAppointment)
			authorized.POST("/appointments/:id/confirm", publicHandler.ConfirmAppointment)
			authorized.POST("/appointments/:id/cancel", publicHandler.CancelAppointment)
			authorized.POST("/appointments/:id/complete", publicHandler.CompleteAppointment)

			// 评价
			authorized.POST("/appointments/:id/review", publicHandler.CreateReview)
			authorized.POST("/reviews/:id/response", publicHandler.RespondReview)

			admin := authorized.Group("/admin")
			{
				// 优惠券管理
				admin.GET("/coupons", adminHandler.GetAdminCoupons)
				admin.GET("/coupons/:id", adminHandler.GetAdminCoupon)
				admin.POST("/coupons", adminHandler.CreateCoupon)
				admin.PUT("/coupons/:id", adminHandler.UpdateCoupon)
				admin.POST("/coupons/:id/deactivate", adminHandler.DeactivateCoupon)
				admin.DELETE("/coupons/:id", adminHandler.DeleteCoupon)

				// 订单管理
				admin.GET("/orders", adminHandler.AdminListOrders)
				admin.GET("/orders/:id", adminHandler.AdminGetOrder)
				admin.POST("/orders/:id/confirm", adminHandler.AdminConfirmOrder)
				admin.POST("/orders/:id/cancel", adminHandler.AdminCancelOrder)
				admin.POST("/orders/:id/refund", adminHandler.AdminRefundOrder)

				// 评价管理
				admin.PATCH("/reviews/:id/status", adminHandler.AdminSetReviewStatus)

				// 权限管理
				admin.GET("/authz/roles", adminHandler.ListAuthzRoles)
				admin.GET("/authz/roles/:role/policies", adminHandler.GetAuthzRolePolicies)
				admin.POST("/authz/policies", adminHandler.GrantAuthzPolicy)
				admin.DELETE("/authz/policies", adminHandler.RevokeAuthzPolicy)
				admin.GET("/authz/permissions/catalog", func(ctx *gin.Context) {
					response.Success(ctx, buildPermissionCatalog(r))
				})
			}
		}
	}

	// 健康检查
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	if cfg.Metrics.Enabled && c.Metrics != nil {
		path := strings.TrimSpace(cfg.Metrics.Path)
		if path == "" {
			path = "/metrics"
		}
		r.GET(path, gin.WrapH(c.Metrics.Handler()))
	}

	return r
}

type permissionCatalogItem struct {
	Module     string `json:"module"`
	Method     string `json:"method"`
	Object     string `json:"object"`
	Permission string `json:"permission"`
}

// buildPermissionCatalog 列出所有需授权的路由，供管理端配置角色策略
func buildPermissionCatalog(engine *gin.Engine) []permissionCatalogItem {
	if engine == nil {
		return []permissionCatalogItem{}
	}

	routes := engine.Routes()
	seen := make(map[string]struct{}, len(routes))
	items := make([]permissionCatalogItem, 0, len(routes))

	for _, item := range routes {
		method := strings.ToUpper(strings.TrimSpace(item.Method))
		if method == "" || method == http.MethodOptions || method == http.MethodHead {
			continue
		}
		if !strings.HasPrefix(item.Path, "/api/v1/") || isPublicRoute(item.Path) {
			continue
		}
		object := authz.NormalizeObject(item.Path)
		permission := method + ":" + object
		if _, exists := seen[permission]; exists {
			continue
		}
		seen[permission] = struct{}{}
		items = append(items, permissionCatalogItem{
			Module:     derivePermissionModule(object),
			Method:     method,
			Object:     object,
			Permission: permission,
		})
	}

	sort.Slice(items, func(i, j int) bool {
		if items[i].Module == items[j].Module {
			if items[i].Object == items[j].Object {
				return items[i].Method < items[j].Method
			}
			return items[i].Object < items[j].Object
		}
		return items[i].Module < items[j].Module
	})

	return items
}

func isPublicRoute(path string) bool {
	switch path {
	case "/api/v1/auth/register", "/api/v1/auth/login", "/api/v1/payments/callback",
		"/api/v1/captcha/image", "/api/v1/courses", "/api/v1/courses/:id",
		"/api/v1/courses/:id/reviews", "/api/v1/teachers/:id/availability":
		return true
	}
	return false
}

func derivePermissionModule(object string) string {
	normalized := strings.TrimPrefix(strings.TrimSpace(object), "/")
	if normalized == "" {
		return "system"
	}
	segments := strings.Split(normalized, "/")
	if len(segments) <= 1 {
		return segments[0]
	}
	if segments[0] == "admin" || segments[0] == "teacher" {
		return segments[0] + "." + segments[1]
	}
	return segments[0]
}
