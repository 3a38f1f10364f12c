package main

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/platinummonkey/sitemgmt/pkg/config"
	"github.com/platinummonkey/sitemgmt/pkg/directory"
	"github.com/platinummonkey/sitemgmt/pkg/middleware"
	"github.com/platinummonkey/sitemgmt/pkg/notify"
	"github.com/platinummonkey/sitemgmt/pkg/observability"
)

// limiterWindow is the period RequestsPerMinute is measured over
const limiterWindow = time.Minute

// dependencies are the external connections shared by the servers
type dependencies struct {
	store directory.Store
	db    *sql.DB
	redis *redis.Client
}

// Close releases every open connection
func (d *dependencies) Close() {
	if d.db != nil {
		d.db.Close()
	}
	if d.redis != nil {
		d.redis.Close()
	}
}

func openDependencies(ctx context.Context, cfg *config.Config, logger *observability.Logger) (*dependencies, error) {
	deps := &dependencies{}

	store, db, err := openStore(ctx, cfg.Database, logger)
	if err != nil {
		return nil, err
	}
	deps.store, deps.db = store, db

	if cfg.Redis.URL != "" {
		client, err := newRedisClient(ctx, cfg.Redis)
		if err != nil {
			deps.Close()
			return nil, err
		}
		deps.redis = client
	}
	return deps, nil
}

// openStore opens the configured admin store, migrating SQL schemas when
// AutoMigrate is set. The returned *sql.DB is nil for the memory store.
func openStore(ctx context.Context, cfg config.DatabaseConfig, logger *observability.Logger) (directory.Store, *sql.DB, error) {
	if cfg.Store == config.StoreMemory {
		logger.Warn("Using the in-memory admin store; admins are lost on restart")
		return directory.NewMemoryStore(), nil, nil
	}

	dialect, err := directory.ParseDialect(cfg.Store)
	if err != nil {
		return nil, nil, err
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
		return nil, nil, err
	}

	if cfg.AutoMigrate {
		if err := directory.Migrate(ctx, db, dialect, logger); err != nil {
			db.Close()
			return nil, nil, err
		}
	}

	store, err := directory.NewSQLStore(db, dialect)
	if err != nil {
		db.Close()
		return nil, nil, err
	}
	logger.WithField("dialect", string(dialect)).Info("Connected to admin store")
	return store, db, nil
}

func newRedisClient(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}
	if cfg.Password != "" {
		opts.Password = cfg.Password
	}
	if cfg.DB != 0 {
		opts.DB = cfg.DB
	}
	opts.MaxRetries = cfg.MaxRetries
	if cfg.PoolSize > 0 {
		opts.PoolSize = cfg.PoolSize
	}

	client := redis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return client, nil
}

// newPublisher builds the deactivation publisher selected by cfg.Notify.Type
func newPublisher(ctx context.Context, cfg *config.Config, redisClient *redis.Client, logger *observability.Logger) (notify.Publisher, error) {
	switch cfg.Notify.Type {
	case config.NotifierSES:
		sesCfg := notify.SESConfig{
			Region:     cfg.Notify.SESRegion,
			Endpoint:   cfg.Notify.SESEndpoint,
			AccessKey:  cfg.Notify.SESAccessKey,
			SecretKey:  cfg.Notify.SESSecretKey,
			From:       cfg.Notify.SESFrom,
			Recipients: cfg.Notify.SESRecipients,
			Subject:    cfg.Notify.SESSubject,
		}
		client, err := notify.NewSESClient(ctx, sesCfg)
		if err != nil {
			return nil, err
		}
		publisher, err := notify.NewSESPublisher(client, sesCfg)
		if err != nil {
			return nil, err
		}
		return publisher, nil
	case config.NotifierRedis:
		publisher, err := notify.NewRedisPublisher(redisClient, cfg.Notify.RedisChannel)
		if err != nil {
			return nil, err
		}
		return publisher, nil
	default:
		return notify.NewLogPublisher(logger), nil
	}
}

// newLoginLimiter returns nil when rate limiting is disabled
func newLoginLimiter(ctx context.Context, cfg *config.Config, redisClient *redis.Client) middleware.Limiter {
	if !cfg.RateLimit.Enabled {
		return nil
	}
	limitCfg := &middleware.RateLimitConfig{
		RequestsPerWindow: cfg.RateLimit.RequestsPerMinute,
		WindowDuration:    limiterWindow,
		BurstSize:         cfg.RateLimit.Burst,
	}
	if cfg.RateLimit.Backend == "redis" && redisClient != nil {
		return middleware.NewRedisLimiter(redisClient, limitCfg, "")
	}
	limiter := middleware.NewMemoryLimiter(limitCfg)
	limiter.StartCleanup(ctx)
	return limiter
}
