package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/assistly/billing/internal/config"
	"github.com/assistly/billing/internal/logger"
	"github.com/assistly/billing/internal/postgres"
)

func main() {
	command := flag.String("command", string(postgres.MigrationUp), "Migration command: up, down or status")
	timeout := flag.Duration("timeout", 30*time.Second, "Timeout for the whole migration run")
	flag.Parse()

	cfg, err := config.NewConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := logger.NewLogger(cfg)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}

	logger.Infow("Connecting to database", "host", cfg.Postgres.Host)

	db, err := postgres.NewDB(cfg, logger)
	if err != nil {
		logger.Fatalw("Failed to connect to postgres", "error", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	logger.Infow("Running database migrations...", "command", *command)
	if err := postgres.Migrate(ctx, db, postgres.MigrationCommand(*command), logger); err != nil {
		logger.Fatalw("Migration failed", "error", err)
	}

	fmt.Println("Migration process completed")
}
