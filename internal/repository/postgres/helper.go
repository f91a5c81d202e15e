package postgres

import (
	"context"
	"database/sql"
	"errors"

	ierr "github.com/assistly/billing/internal/errors"
	"github.com/getsentry/sentry-go"
	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// StartRepositorySpan creates a new span for a repository operation
// Returns nil if Sentry is not available in the context
func StartRepositorySpan(ctx context.Context, repository, operation string, params map[string]interface{}) *sentry.Span {
	hub := sentry.GetHubFromContext(ctx)
	if hub == nil {
		return nil
	}

	span := sentry.StartSpan(ctx, "repository."+repository+"."+operation)
	if span != nil {
		span.Description = "repository." + repository + "." + operation
		span.Op = "db.postgres"

		span.SetData("repository", repository)
		span.SetData("operation", operation)

		for k, v := range params {
			span.SetData(k, v)
		}
	}

	return span
}

// FinishSpan safely finishes a span, handling nil spans
func FinishSpan(span *sentry.Span) {
	if span != nil {
		span.Finish()
	}
}

// SetSpanError marks a span as failed and adds error information
func SetSpanError(span *sentry.Span, err error) {
	if span == nil || err == nil {
		return
	}

	span.Status = sentry.SpanStatusInternalError
	span.SetData("error", err.Error())
}

// SetSpanSuccess marks a span as successful
func SetSpanSuccess(span *sentry.Span) {
	if span != nil {
		span.Status = sentry.SpanStatusOK
	}
}

// wrapGetError maps sql.ErrNoRows to ErrNotFound and everything else to ErrDatabase
func wrapGetError(err error, entity, id string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ierr.WithError(err).
			WithHintf("%s %s was not found", entity, id).
			WithReportableDetails(map[string]any{
				"id": id,
			}).
			Mark(ierr.ErrNotFound)
	}
	return ierr.WithError(err).
		WithHintf("Failed to get %s %s", entity, id).
		Mark(ierr.ErrDatabase)
}

// marshalJSONB encodes v for a JSONB column, writing {} for nil maps
func marshalJSONB(v map[string]any) ([]byte, error) {
	if v == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(v)
}

func unmarshalJSONB(raw []byte) (map[string]any, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}
