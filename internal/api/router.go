package api

import (
	v1 "github.com/assistly/billing/internal/api/v1"
	"github.com/assistly/billing/internal/config"
	"github.com/assistly/billing/internal/logger"
	"github.com/assistly/billing/internal/rest/middleware"
	"github.com/assistly/billing/internal/types"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Handlers struct {
	Health       *v1.HealthHandler
	Subscription *v1.SubscriptionHandler
	Coupon       *v1.CouponHandler
	Checkout     *v1.CheckoutHandler
}

func NewRouter(handlers Handlers, cfg *config.Configuration, logger *logger.Logger) *gin.Engine {
	if cfg.Deployment.Mode != types.ModeLocal {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(
		gin.Recovery(),
		middleware.CORSMiddleware(cfg),
		middleware.RequestIDMiddleware,
		middleware.LoggingMiddleware(logger),
		middleware.SentryMiddleware(cfg),
		middleware.ErrorHandler(logger),
	)

	router.GET("/health", handlers.Health.Health)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1Group := router.Group("/v1")
	registerV1Routes(v1Group, handlers, cfg)

	return router
}

func registerV1Routes(router *gin.RouterGroup, handlers Handlers, cfg *config.Configuration) {
	subscriptions := router.Group("/subscriptions")
	{
		subscriptions.POST("/:id/proration-preview", handlers.Subscription.PreviewProration)
		subscriptions.POST("/:id/tier-change", handlers.Subscription.ChangeTier)
		subscriptions.GET("/:id/proration-events", handlers.Subscription.ListProrationEvents)
	}

	// coupon endpoints are throttled per client IP to slow down code guessing
	coupons := router.Group("/coupons", middleware.RateLimitMiddleware(cfg))
	{
		coupons.POST("", handlers.Coupon.CreateCoupon)
		coupons.POST("/validate", handlers.Coupon.ValidateCoupon)
		coupons.POST("/discount-preview", handlers.Coupon.PreviewDiscount)
		coupons.POST("/redeem", handlers.Coupon.RedeemCoupon)
	}

	checkout := router.Group("/checkout")
	{
		checkout.POST("/upgrade-preview", handlers.Checkout.PreviewUpgrade)
		checkout.POST("/upgrade", handlers.Checkout.ApplyUpgrade)
	}
}
