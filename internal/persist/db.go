package persist

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/locogo/server/internal/config"
	"go.uber.org/zap"
)

const defaultPingTimeout = 5 * time.Second

var ErrNoDSN = errors.New("ledger dsn is empty")

// DB wraps the pgx pool backing the Postgres ledger store.
type DB struct {
	Pool *pgxpool.Pool
	log  *zap.Logger
}

// poolConfig maps the ledger section onto pgx pool settings. The persistence
// system flushes from a single goroutine, so the idle floor is capped at the
// pool size rather than rejected.
func poolConfig(cfg config.LedgerConfig) (*pgxpool.Config, error) {
	if cfg.DSN == "" {
		return nil, ErrNoDSN
	}
	pc, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		pc.MaxConns = int32(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		pc.MinConns = int32(min(cfg.MaxIdleConns, int(pc.MaxConns)))
	}
	if cfg.ConnMaxLifetime > 0 {
		pc.MaxConnLifetime = cfg.ConnMaxLifetime
	}
	return pc, nil
}

// NewDB opens the pool and verifies the server answers within the configured
// ping timeout.
func NewDB(ctx context.Context, cfg config.LedgerConfig, log *zap.Logger) (*DB, error) {
	pc, err := poolConfig(cfg)
	if err != nil {
		return nil, err
	}
	pool, err := pgxpool.NewWithConfig(ctx, pc)
	if err != nil {
		return nil, fmt.Errorf("connect to db: %w", err)
	}

	timeout := cfg.PingTimeout
	if timeout <= 0 {
		timeout = defaultPingTimeout
	}
	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}

	log.Info("帳本資料庫已連線",
		zap.String("host", pc.ConnConfig.Host),
		zap.String("database", pc.ConnConfig.Database),
		zap.Int32("max_conns", pc.MaxConns),
		zap.Int32("min_conns", pc.MinConns),
	)
	return &DB{Pool: pool, log: log}, nil
}

func (db *DB) Close() {
	db.log.Debug("關閉帳本資料庫連線池", zap.Int32("total_conns", db.Pool.Stat().TotalConns()))
	db.Pool.Close()
}
