package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// ErrPostgresUnavailable is returned by every query when the store was
// built without a pool.
var ErrPostgresUnavailable = errors.New("postgres unavailable")

// PGStore is the read-only Postgres store for pricing and CMS content.
type PGStore struct {
	PG     *pgxpool.Pool
	logger *zap.Logger
}

type PGPoolConfig struct {
	MaxConns          int32
	MinConns          int32
	MaxConnLifetime   time.Duration
	MaxConnIdleTime   time.Duration
	HealthCheckPeriod time.Duration
}

// NewPG connects a pgx pool. An empty pgURL yields a store whose queries
// all fail with ErrPostgresUnavailable.
func NewPG(ctx context.Context, pgURL string, poolCfg PGPoolConfig, logger *zap.Logger) (*PGStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if pgURL == "" {
		logger.Warn("store.pg.disabled")
		return &PGStore{logger: logger}, nil
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	cfg, err := pgxpool.ParseConfig(pgURL)
	if err != nil {
		return nil, fmt.Errorf("invalid pg config: %w", err)
	}
	if poolCfg.MaxConns > 0 {
		cfg.MaxConns = poolCfg.MaxConns
	}
	if poolCfg.MinConns > 0 {
		cfg.MinConns = poolCfg.MinConns
	}
	if poolCfg.MaxConnLifetime > 0 {
		cfg.MaxConnLifetime = poolCfg.MaxConnLifetime
	}
	if poolCfg.MaxConnIdleTime > 0 {
		cfg.MaxConnIdleTime = poolCfg.MaxConnIdleTime
	}
	if poolCfg.HealthCheckPeriod > 0 {
		cfg.HealthCheckPeriod = poolCfg.HealthCheckPeriod
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}
	return &PGStore{PG: pool, logger: logger}, nil
}

func (s *PGStore) HealthCheck(ctx context.Context) error {
	if s.PG == nil {
		return ErrPostgresUnavailable
	}
	if err := s.PG.Ping(ctx); err != nil {
		return fmt.Errorf("postgres ping failed: %w", err)
	}
	return nil
}

func (s *PGStore) Close() error {
	if s.PG != nil {
		s.PG.Close()
	}
	return nil
}
