package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/platinummonkey/sitemgmt/pkg/cli"
	"github.com/platinummonkey/sitemgmt/pkg/config"
	"github.com/platinummonkey/sitemgmt/pkg/directory"
)

func main() {
	logger := setupLogger(os.Getenv("SITEMGMT_LOG_LEVEL"))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	env := &cli.Env{
		Out:    os.Stdout,
		Logger: logger,
		Open:   openBackend,
	}

	if err := cli.NewRootCommand(env).ExecuteContext(ctx); err != nil {
		if errors.Is(err, cli.ErrUsage) {
			logger.Error(err)
			os.Exit(2)
		}
		logger.Fatalf("Command failed: %v", err)
	}
}

func setupLogger(logLevel string) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(os.Stderr)
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})

	level, err := logrus.ParseLevel(logLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	return logger
}

// openBackend opens the store named by the database configuration. Schema
// migrations are left to the migrate command.
func openBackend(ctx context.Context) (*cli.Backend, error) {
	cfg, err := config.LoadDatabaseConfig()
	if err != nil {
		return nil, err
	}

	if cfg.Store == config.StoreMemory {
		return &cli.Backend{Store: directory.NewMemoryStore()}, nil
	}

	dialect, err := directory.ParseDialect(cfg.Store)
	if err != nil {
		return nil, err
	}
	db, err := directory.OpenDB(ctx, directory.DBConfig{
		Dialect:     dialect,
		DSN:         cfg.DSN,
		MaxConns:    cfg.MaxConns,
		MaxIdle:     cfg.MaxIdle,
		MaxLifetime: cfg.MaxLifetime,
		Timeout:     cfg.Timeout,
	})
	if err != nil {
		return nil, err
	}
	store, err := directory.NewSQLStore(db, dialect)
	if err != nil {
		db.Close()
		return nil, err
	}
	return &cli.Backend{Store: store, DB: db, Dialect: dialect}, nil
}
