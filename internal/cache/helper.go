package cache

import (
	"context"

	"github.com/getsentry/sentry-go"
)

// StartCacheSpan opens a span named cache.<cache>.<operation>.
// Returns nil when ctx carries no Sentry hub, e.g. when Sentry is disabled.
func StartCacheSpan(ctx context.Context, cache, operation string, params map[string]interface{}) *sentry.Span {
	if sentry.GetHubFromContext(ctx) == nil {
		return nil
	}

	name := "cache." + cache + "." + operation
	span := sentry.StartSpan(ctx, name)
	span.Description = name
	span.Op = "db.cache"
	span.SetData("cache", cache)
	span.SetData("operation", operation)
	for k, v := range params {
		span.SetData(k, v)
	}
	return span
}

// FinishSpan finishes span if there is one
func FinishSpan(span *sentry.Span) {
	if span != nil {
		span.Finish()
	}
}
