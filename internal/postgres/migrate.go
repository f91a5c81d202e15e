package postgres

import (
	"context"
	"embed"
	"fmt"

	ierr "github.com/assistly/billing/internal/errors"
	"github.com/assistly/billing/internal/logger"
	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const migrationsDir = "migrations"

// MigrationCommand selects what Migrate does
type MigrationCommand string

const (
	MigrationUp     MigrationCommand = "up"
	MigrationDown   MigrationCommand = "down"
	MigrationStatus MigrationCommand = "status"
)

// Migrate runs the embedded goose migrations against db
func Migrate(ctx context.Context, db *DB, cmd MigrationCommand, log *logger.Logger) error {
	goose.SetBaseFS(migrationsFS)
	goose.SetLogger(&gooseLogger{log: log})

	if err := goose.SetDialect("postgres"); err != nil {
		return ierr.WithError(err).
			WithHint("Unsupported migration dialect").
			Mark(ierr.ErrSystem)
	}

	var err error
	switch cmd {
	case MigrationUp:
		err = goose.UpContext(ctx, db.DB.DB, migrationsDir)
	case MigrationDown:
		err = goose.DownContext(ctx, db.DB.DB, migrationsDir)
	case MigrationStatus:
		err = goose.StatusContext(ctx, db.DB.DB, migrationsDir)
	default:
		return ierr.NewErrorf("unknown migration command %q", cmd).
			WithHint("Migration command must be up, down or status").
			Mark(ierr.ErrValidation)
	}
	if err != nil {
		return ierr.WithError(err).
			WithHintf("Migration %s failed", cmd).
			Mark(ierr.ErrDatabase)
	}
	return nil
}

// gooseLogger routes goose output through the application logger
type gooseLogger struct {
	log *logger.Logger
}

func (l *gooseLogger) Fatalf(format string, v ...any) {
	l.log.Error(fmt.Sprintf(format, v...))
}

func (l *gooseLogger) Printf(format string, v ...any) {
	l.log.Info(fmt.Sprintf(format, v...))
}
