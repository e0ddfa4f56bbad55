package datafeed

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/fazecat/triggerdesk/Internal/utils/config"
	"github.com/fazecat/triggerdesk/Internal/utils/logger"
)

// Store is the Postgres-backed trade, trigger and scan snapshot store.
type Store struct {
	db  *sqlx.DB
	log *logger.Logger
}

// Connect opens the pool, pings it and applies the schema.
func Connect(ctx context.Context, cfg config.DatabaseConfig, log *logger.Logger) (*Store, error) {
	db, err := sqlx.Open("postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}
	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s := NewStore(db, log)
	if err := s.InitSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}

	log.Info("database connected", logger.String("host", cfg.Host), logger.Int("port", cfg.Port), logger.String("db", cfg.Name))
	return s, nil
}

func NewStore(db *sqlx.DB, log *logger.Logger) *Store {
	return &Store{db: db, log: log.With(logger.String("component", "store"))}
}

// Columns are only ever added, never changed.
const schemaSQL = `
CREATE TABLE IF NOT EXISTS trades (
	id SERIAL PRIMARY KEY,
	opened_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	ticker TEXT NOT NULL,
	setup_note TEXT NOT NULL DEFAULT '',
	buy_price DOUBLE PRECISION NOT NULL,
	sell_price DOUBLE PRECISION NOT NULL DEFAULT 0,
	units BIGINT NOT NULL,
	stop_loss DOUBLE PRECISION NOT NULL DEFAULT 0,
	r1 DOUBLE PRECISION NOT NULL DEFAULT 0,
	r2 DOUBLE PRECISION NOT NULL DEFAULT 0,
	total_cost DOUBLE PRECISION NOT NULL DEFAULT 0,
	status TEXT NOT NULL DEFAULT 'New',
	pnl DOUBLE PRECISION NOT NULL DEFAULT 0,
	closed_at TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS trigger (
	id SERIAL PRIMARY KEY,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	ticker TEXT NOT NULL,
	status TEXT NOT NULL DEFAULT 'Active',
	type TEXT NOT NULL,
	price DOUBLE PRECISION NOT NULL,
	pnl DOUBLE PRECISION NOT NULL DEFAULT 0,
	closed_at TIMESTAMPTZ
);

ALTER TABLE trigger ADD COLUMN IF NOT EXISTS order_id TEXT NOT NULL DEFAULT '';

CREATE TABLE IF NOT EXISTS stocks (
	id SERIAL PRIMARY KEY,
	ticker TEXT NOT NULL,
	company TEXT NOT NULL DEFAULT '',
	bear_score DOUBLE PRECISION NOT NULL DEFAULT 0,
	bear_steps INTEGER NOT NULL DEFAULT 0,
	bounce_score DOUBLE PRECISION NOT NULL DEFAULT 0,
	bounce_steps INTEGER NOT NULL DEFAULT 0,
	vol_score DOUBLE PRECISION NOT NULL DEFAULT 0,
	pullback_swallow INTEGER NOT NULL DEFAULT 0,
	opt_size DOUBLE PRECISION NOT NULL DEFAULT 0,
	last_open DOUBLE PRECISION NOT NULL DEFAULT 0,
	last_high DOUBLE PRECISION NOT NULL DEFAULT 0,
	last_low DOUBLE PRECISION NOT NULL DEFAULT 0,
	last_close DOUBLE PRECISION NOT NULL DEFAULT 0,
	prev_close DOUBLE PRECISION NOT NULL DEFAULT 0,
	scanned_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_trades_ticker_status ON trades(ticker, status);
CREATE INDEX IF NOT EXISTS idx_trigger_ticker_status ON trigger(ticker, status);
CREATE INDEX IF NOT EXISTS idx_stocks_bear_score ON stocks(bear_score);
`

func (s *Store) InitSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *Store) HealthCheck(ctx context.Context) error {
	if s.db == nil {
		return fmt.Errorf("database connection is nil")
	}
	return s.db.PingContext(ctx)
}
