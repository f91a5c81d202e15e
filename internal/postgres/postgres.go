package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/assistly/billing/internal/config"
	ierr "github.com/assistly/billing/internal/errors"
	"github.com/assistly/billing/internal/logger"
	sentryService "github.com/assistly/billing/internal/sentry"
	"github.com/cenkalti/backoff/v4"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"go.uber.org/fx"
)

// IClient is what services need from the database: a way to group repository calls in one transaction
type IClient interface {
	// WithTx runs fn in a transaction. Nested calls use savepoints.
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// DB wraps sqlx.DB to provide transaction management
type DB struct {
	*sqlx.DB
	logger *logger.Logger
}

// Querier interface defines all database operations
// Both *sqlx.DB and *sqlx.Tx implement these methods
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryxContext(ctx context.Context, query string, args ...interface{}) (*sqlx.Rows, error)
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	NamedExecContext(ctx context.Context, query string, arg interface{}) (sql.Result, error)
}

// Module provides the database and the transaction client to fx
func Module() fx.Option {
	return fx.Options(
		fx.Provide(
			NewDB,
			func(db *DB, s *sentryService.Service, log *logger.Logger) IClient {
				return NewSentryClient(db, s, log)
			},
		),
		fx.Invoke(func(lc fx.Lifecycle, db *DB) {
			lc.Append(fx.Hook{
				OnStop: func(context.Context) error {
					db.Close()
					return nil
				},
			})
		}),
	)
}

// NewDB connects to postgres, retrying with exponential backoff while the server comes up
func NewDB(cfg *config.Configuration, log *logger.Logger) (*DB, error) {
	dsn := cfg.Postgres.GetDSN()

	var db *sqlx.DB
	connect := func() error {
		var err error
		db, err = sqlx.Connect("postgres", dsn)
		if err != nil {
			log.Warnw("postgres not reachable, retrying",
				"host", cfg.Postgres.Host,
				"error", err,
			)
		}
		return err
	}

	policy := backoff.WithMaxRetries(backoff.NewExponentialBackOff(), cfg.Postgres.ConnectRetries)
	if err := backoff.Retry(connect, policy); err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to connect to the database").
			WithReportableDetails(map[string]any{
				"host": cfg.Postgres.Host,
				"port": cfg.Postgres.Port,
			}).
			Mark(ierr.ErrDatabase)
	}

	if cfg.Postgres.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.Postgres.MaxOpenConns)
	}
	if cfg.Postgres.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.Postgres.MaxIdleConns)
	}
	if cfg.Postgres.ConnMaxLifetimeMinutes > 0 {
		db.SetConnMaxLifetime(time.Duration(cfg.Postgres.ConnMaxLifetimeMinutes) * time.Minute)
	}

	return NewFromSQLX(db, log), nil
}

// NewFromSQLX wraps an existing connection
func NewFromSQLX(db *sqlx.DB, log *logger.Logger) *DB {
	return &DB{DB: db, logger: log}
}

// Close closes the database connection
func (db *DB) Close() {
	if err := db.DB.Close(); err != nil {
		db.logger.Errorw("error closing database", "error", err)
	}
}

// GetQuerier returns either the transaction from context or the base DB
func (db *DB) GetQuerier(ctx context.Context) Querier {
	if tx, ok := GetTx(ctx); ok {
		return NewTracedQuerier(tx.Tx, db.logger, tx.ID)
	}
	return NewTracedQuerier(db.DB, db.logger, "")
}

// Ping checks the connection, used by the health endpoint
func (db *DB) Ping(ctx context.Context) error {
	return db.DB.PingContext(ctx)
}
