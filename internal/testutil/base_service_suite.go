package testutil

import (
	"context"
	"time"

	"github.com/assistly/billing/internal/config"
	"github.com/assistly/billing/internal/logger"
	"github.com/assistly/billing/internal/metrics"
	"github.com/assistly/billing/internal/types"
	"github.com/assistly/billing/internal/validator"
	"github.com/stretchr/testify/suite"
)

// Stores holds the in-memory repositories, typed so tests can seed and inspect them
type Stores struct {
	SubscriptionRepo *InMemorySubscriptionStore
	ProrationRepo    *InMemoryProrationStore
	CouponRepo       *InMemoryCouponStore
	RedemptionRepo   *InMemoryRedemptionStore
	FraudRepo        *InMemoryFraudStore
	UserRepo         *InMemoryUserStore
}

// BaseServiceTestSuite provides common functionality for all service test suites
type BaseServiceTestSuite struct {
	suite.Suite
	ctx       context.Context
	stores    Stores
	publisher *InMemoryPublisherService
	db        *MockPostgresClient
	logger    *logger.Logger
	config    *config.Configuration
	metrics   *metrics.Metrics
	now       time.Time
}

// SetupSuite is called once before running the tests in the suite
func (s *BaseServiceTestSuite) SetupSuite() {
	validator.NewValidator()

	cfg := config.GetDefaultConfig()
	cfg.Logging.Level = types.LogLevelInfo

	var err error
	s.config = cfg
	s.logger, err = logger.NewLogger(cfg)
	if err != nil {
		s.T().Fatalf("failed to create logger: %v", err)
	}
}

// SetupTest is called before each test
func (s *BaseServiceTestSuite) SetupTest() {
	s.ctx = SetupContext()
	s.setupStores()
	s.now = time.Now().UTC()
}

// TearDownTest is called after each test
func (s *BaseServiceTestSuite) TearDownTest() {
	s.clearStores()
}

func (s *BaseServiceTestSuite) setupStores() {
	s.stores = Stores{
		SubscriptionRepo: NewInMemorySubscriptionStore(),
		ProrationRepo:    NewInMemoryProrationStore(),
		CouponRepo:       NewInMemoryCouponStore(),
		RedemptionRepo:   NewInMemoryRedemptionStore(),
		FraudRepo:        NewInMemoryFraudStore(),
		UserRepo:         NewInMemoryUserStore(),
	}

	s.db = NewMockPostgresClient(s.logger)
	s.publisher = NewInMemoryEventPublisher()
	s.metrics = metrics.NewNoop()
}

func (s *BaseServiceTestSuite) clearStores() {
	s.stores.SubscriptionRepo.Clear()
	s.stores.ProrationRepo.Clear()
	s.stores.CouponRepo.Clear()
	s.stores.RedemptionRepo.Clear()
	s.stores.FraudRepo.Clear()
	s.stores.UserRepo.Clear()
	s.publisher.Clear()
}

// GetContext returns the test context
func (s *BaseServiceTestSuite) GetContext() context.Context {
	return s.ctx
}

// GetConfig returns the test configuration
func (s *BaseServiceTestSuite) GetConfig() *config.Configuration {
	return s.config
}

// GetStores returns all test repositories
func (s *BaseServiceTestSuite) GetStores() Stores {
	return s.stores
}

// GetPublisher returns the test event publisher
func (s *BaseServiceTestSuite) GetPublisher() *InMemoryPublisherService {
	return s.publisher
}

// GetDB returns the test database client
func (s *BaseServiceTestSuite) GetDB() *MockPostgresClient {
	return s.db
}

// GetLogger returns the test logger
func (s *BaseServiceTestSuite) GetLogger() *logger.Logger {
	return s.logger
}

// GetMetrics returns collectors registered on a private registry
func (s *BaseServiceTestSuite) GetMetrics() *metrics.Metrics {
	return s.metrics
}

// GetNow returns the current test time
func (s *BaseServiceTestSuite) GetNow() time.Time {
	return s.now.UTC()
}

// GetUUID returns a new UUID string
func (s *BaseServiceTestSuite) GetUUID() string {
	return types.GenerateUUID()
}
