package db

import (
	"context"
	"fmt"
	"time"

	"github.com/Hackoholiq/Short-Term-Loan-Platform/internal/config"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	defaultConnLifetime = 30 * time.Minute
	connIdleTime        = 5 * time.Minute
	healthCheckPeriod   = 30 * time.Second
	pingAttempts        = 5
)

// NewPostgresPool opens a pool tagged with appName so api and worker
// sessions can be told apart in pg_stat_activity. The first ping is retried
// with a linear backoff while ctx allows, since the database often starts
// alongside the service.
func NewPostgresPool(ctx context.Context, cfg config.Config, appName string) (*pgxpool.Pool, error) {
	poolCfg, err := poolConfig(cfg, appName)
	if err != nil {
		return nil, err
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create pgx pool: %w", err)
	}

	for attempt := 1; ; attempt++ {
		err = pool.Ping(ctx)
		if err == nil {
			return pool, nil
		}
		if attempt == pingAttempts {
			break
		}
		select {
		case <-ctx.Done():
			pool.Close()
			return nil, fmt.Errorf("ping postgres: %w", err)
		case <-time.After(time.Duration(attempt) * time.Second):
		}
	}
	pool.Close()
	return nil, fmt.Errorf("ping postgres after %d attempts: %w", pingAttempts, err)
}

func poolConfig(cfg config.Config, appName string) (*pgxpool.Config, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}

	if cfg.DBMaxConns > 0 {
		poolCfg.MaxConns = cfg.DBMaxConns
	}
	if cfg.DBMinConns > 0 && cfg.DBMinConns <= poolCfg.MaxConns {
		poolCfg.MinConns = cfg.DBMinConns
	}
	lifetime, err := time.ParseDuration(cfg.DBMaxConnLifetime)
	if err != nil || lifetime <= 0 {
		lifetime = defaultConnLifetime
	}
	poolCfg.MaxConnLifetime = lifetime
	poolCfg.MaxConnIdleTime = connIdleTime
	poolCfg.HealthCheckPeriod = healthCheckPeriod

	if appName != "" {
		if _, set := poolCfg.ConnConfig.RuntimeParams["application_name"]; !set {
			poolCfg.ConnConfig.RuntimeParams["application_name"] = appName
		}
	}
	return poolCfg, nil
}
