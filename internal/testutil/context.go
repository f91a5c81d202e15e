package testutil

import (
	"context"

	"github.com/assistly/billing/internal/types"
)

func SetupContext() context.Context {
	ctx := context.Background()
	ctx = types.SetUserID(ctx, types.DefaultUserID)
	ctx = types.SetRequestID(ctx, types.GenerateUUID())
	return ctx
}
