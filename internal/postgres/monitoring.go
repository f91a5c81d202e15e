package postgres

import (
	"context"

	"github.com/assistly/billing/internal/logger"
	sentryService "github.com/assistly/billing/internal/sentry"
)

// SentryClient wraps a client so every transaction shows up as a span
type SentryClient struct {
	client IClient
	sentry *sentryService.Service
	logger *logger.Logger
}

func NewSentryClient(client IClient, sentry *sentryService.Service, logger *logger.Logger) IClient {
	return &SentryClient{
		client: client,
		sentry: sentry,
		logger: logger,
	}
}

// WithTx wraps the given function in a transaction with Sentry span tracking
func (c *SentryClient) WithTx(ctx context.Context, fn func(context.Context) error) error {
	span, spanCtx := c.sentry.StartDBSpan(ctx, "postgres.transaction", map[string]interface{}{
		"operation": "transaction",
	})
	defer sentryService.FinishSpan(span)

	err := c.client.WithTx(spanCtx, fn)
	if err != nil && span != nil {
		span.SetData("error", err.Error())
	}
	return err
}
