package testutil

import (
	"context"

	"github.com/assistly/billing/internal/logger"
	"github.com/assistly/billing/internal/postgres"
)

var _ postgres.IClient = (*MockPostgresClient)(nil)

// MockPostgresClient runs transactional functions without a database.
// Stores written inside a failed WithTx are not rolled back.
type MockPostgresClient struct {
	logger *logger.Logger
	txs    int
}

// NewMockPostgresClient creates a new mock postgres client
func NewMockPostgresClient(logger *logger.Logger) *MockPostgresClient {
	return &MockPostgresClient{
		logger: logger,
	}
}

// WithTx executes the given function without a real transaction
func (c *MockPostgresClient) WithTx(ctx context.Context, fn func(context.Context) error) error {
	c.txs++
	return fn(ctx)
}

// Transactions returns how many times WithTx was called
func (c *MockPostgresClient) Transactions() int {
	return c.txs
}
