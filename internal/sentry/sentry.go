package sentry

import (
	"context"
	"time"

	"github.com/assistly/billing/internal/config"
	"github.com/assistly/billing/internal/logger"
	"github.com/getsentry/sentry-go"
	"go.uber.org/fx"
)

type Service struct {
	cfg    *config.Configuration
	logger *logger.Logger
}

// Module provides fx options for Sentry
func Module() fx.Option {
	return fx.Options(
		fx.Provide(NewSentryService),
		fx.Invoke(RegisterHooks),
	)
}

// RegisterHooks initializes the SDK on start and flushes pending events on stop
func RegisterHooks(lc fx.Lifecycle, svc *Service) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if !svc.cfg.Sentry.Enabled {
				svc.logger.Info("Sentry is disabled")
				return nil
			}

			err := sentry.Init(sentry.ClientOptions{
				Dsn:              svc.cfg.Sentry.DSN,
				Environment:      svc.cfg.Sentry.Environment,
				EnableTracing:    true,
				TracesSampleRate: svc.cfg.Sentry.SampleRate,
				TracesSampler: sentry.TracesSampler(func(ctx sentry.SamplingContext) float64 {
					if ctx.Span.Name == "GET /health" || ctx.Span.Name == "GET /metrics" {
						return 0.0
					}
					return svc.cfg.Sentry.SampleRate
				}),
			})
			if err != nil {
				svc.logger.Errorw("Failed to initialize Sentry", "error", err)
				return err
			}
			svc.logger.Infow("Sentry initialized successfully",
				"environment", svc.cfg.Sentry.Environment,
				"sample_rate", svc.cfg.Sentry.SampleRate,
			)
			return nil
		},
		OnStop: func(ctx context.Context) error {
			if svc.cfg.Sentry.Enabled {
				svc.logger.Info("Flushing Sentry events before shutdown")
				sentry.Flush(2 * time.Second)
			}
			return nil
		},
	})
}

func NewSentryService(cfg *config.Configuration, logger *logger.Logger) *Service {
	return &Service{
		cfg:    cfg,
		logger: logger,
	}
}

// Enabled reports whether events are sent at all
func (s *Service) Enabled() bool {
	return s != nil && s.cfg.Sentry.Enabled
}

// CaptureException captures an error in Sentry
func (s *Service) CaptureException(err error) {
	if !s.Enabled() {
		return
	}
	sentry.CaptureException(err)
}

// CaptureWithTags reports err on the request's hub when there is one, tagged for grouping
func (s *Service) CaptureWithTags(ctx context.Context, err error, tags map[string]string) {
	if !s.Enabled() || err == nil {
		return
	}

	hub := sentry.GetHubFromContext(ctx)
	if hub == nil {
		hub = sentry.CurrentHub().Clone()
	}
	hub.WithScope(func(scope *sentry.Scope) {
		scope.SetTags(tags)
		hub.CaptureException(err)
	})
}

// AddBreadcrumb adds a breadcrumb to the current scope
func (s *Service) AddBreadcrumb(category, message string, data map[string]interface{}) {
	if !s.Enabled() {
		return
	}
	sentry.AddBreadcrumb(&sentry.Breadcrumb{
		Category: category,
		Message:  message,
		Level:    sentry.LevelInfo,
		Data:     data,
	})
}

// Flush waits for queued events to be sent
func (s *Service) Flush(timeout uint) bool {
	if !s.Enabled() {
		return true
	}
	return sentry.Flush(time.Duration(timeout) * time.Second)
}

// StartDBSpan starts a new database span in the current transaction
func (s *Service) StartDBSpan(ctx context.Context, operation string, params map[string]interface{}) (*sentry.Span, context.Context) {
	return s.startSpan(ctx, "db.postgres", operation, params)
}

// StartServiceSpan starts a span around a service operation such as coupon validation
func (s *Service) StartServiceSpan(ctx context.Context, operation string, params map[string]interface{}) (*sentry.Span, context.Context) {
	return s.startSpan(ctx, "service", operation, params)
}

func (s *Service) startSpan(ctx context.Context, op, operation string, params map[string]interface{}) (*sentry.Span, context.Context) {
	if !s.Enabled() {
		return nil, ctx
	}

	span := sentry.StartSpan(ctx, operation)
	span.Description = operation
	span.Op = op
	for k, v := range params {
		span.SetData(k, v)
	}

	return span, span.Context()
}

// FinishSpan finishes span, which may be nil when Sentry is disabled
func FinishSpan(span *sentry.Span) {
	if span != nil {
		span.Finish()
	}
}
