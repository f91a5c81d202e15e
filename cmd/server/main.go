package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/assistly/billing/internal/api"
	v1 "github.com/assistly/billing/internal/api/v1"
	"github.com/assistly/billing/internal/cache"
	"github.com/assistly/billing/internal/config"
	"github.com/assistly/billing/internal/domain/proration"
	"github.com/assistly/billing/internal/logger"
	"github.com/assistly/billing/internal/metrics"
	"github.com/assistly/billing/internal/postgres"
	"github.com/assistly/billing/internal/publisher"
	"github.com/assistly/billing/internal/repository"
	"github.com/assistly/billing/internal/sentry"
	"github.com/assistly/billing/internal/service"
	"github.com/assistly/billing/internal/types"
	"github.com/assistly/billing/internal/validator"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/fx"
)

// @title Billing API
// @version 1.0
// @description Subscription proration and coupon validation
// @BasePath /v1
// @schemes http https

func init() {
	// Set UTC timezone for the entire application
	time.Local = time.UTC
}

func main() {
	var opts []fx.Option

	// Core dependencies
	opts = append(opts,
		fx.Provide(
			// Validator
			validator.NewValidator,

			// Config
			config.NewConfig,

			// Logger
			logger.NewLogger,

			// Cache
			cache.NewInMemoryCache,

			// Metrics
			provideMetrics,
		),
		sentry.Module(),
		postgres.Module(),
		publisher.Module(),
	)

	// Repositories
	opts = append(opts,
		fx.Provide(
			repository.NewSubscriptionRepository,
			repository.NewProrationEventRepository,
			repository.NewCouponRepository,
			repository.NewRedemptionRepository,
			repository.NewFraudRepository,
			repository.NewUserRepository,
		),
	)

	// Services
	opts = append(opts,
		fx.Provide(
			service.NewCalculator,
			service.NewCouponEngine,
			service.NewServiceParams,

			service.NewProrationService,
			service.NewCouponValidationService,
			service.NewCouponService,
			service.NewCheckoutService,
		),
	)

	// API handlers and router
	opts = append(opts,
		fx.Provide(
			provideHandlers,
			provideRouter,
		),
		fx.Invoke(startServer),
	)

	app := fx.New(opts...)
	app.Run()
}

func provideMetrics() *metrics.Metrics {
	return metrics.New(prometheus.DefaultRegisterer)
}

func provideHandlers(
	logger *logger.Logger,
	prorationService proration.Service,
	couponService service.CouponService,
	validationService service.CouponValidationService,
	checkoutService service.CheckoutService,
) api.Handlers {
	return api.Handlers{
		Health:       v1.NewHealthHandler(logger),
		Subscription: v1.NewSubscriptionHandler(prorationService, logger),
		Coupon:       v1.NewCouponHandler(couponService, validationService, logger),
		Checkout:     v1.NewCheckoutHandler(checkoutService, logger),
	}
}

func provideRouter(handlers api.Handlers, cfg *config.Configuration, logger *logger.Logger) *gin.Engine {
	return api.NewRouter(handlers, cfg, logger)
}

func startServer(
	lc fx.Lifecycle,
	cfg *config.Configuration,
	r *gin.Engine,
	log *logger.Logger,
) {
	mode := cfg.Deployment.Mode
	if mode == "" {
		mode = types.ModeLocal
	}

	switch mode {
	case types.ModeLocal, types.ModeAPI:
		startAPIServer(lc, r, cfg, log)
	default:
		log.Fatalf("Unknown deployment mode: %s", mode)
	}
}

func startAPIServer(
	lc fx.Lifecycle,
	r *gin.Engine,
	cfg *config.Configuration,
	log *logger.Logger,
) {
	srv := &http.Server{
		Addr:              cfg.Server.Address,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	log.Info("Registering API server start hook")
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Infow("Starting API server...", "address", cfg.Server.Address, "mode", cfg.Deployment.Mode)
			go func() {
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Fatalf("Failed to start server: %v", err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			log.Info("Shutting down server...")
			return srv.Shutdown(ctx)
		},
	})
}
