package state

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/rs/zerolog/log"
)

// DBConfig holds database connection parameters.
type DBConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string // "disable", "require", "verify-full", etc.
}

// DSN renders the config as a lib/pq connection string.
func (cfg DBConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, cfg.SSLMode)
}

// OpenDB opens and pings a PostgreSQL connection pool.
func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.Info().Msg("Successfully connected to the PostgreSQL database!")
	return db, nil
}

// EnsureSchema applies the DDL to create tables if they don't exist.
func EnsureSchema(db *sql.DB) error {
	if db == nil {
		return fmt.Errorf("database not initialized")
	}

	schemaSQL := `
		CREATE TABLE IF NOT EXISTS pools (
			address VARCHAR(64) PRIMARY KEY,
			authority VARCHAR(64) NOT NULL,
			token_a_mint VARCHAR(64) NOT NULL,
			token_b_mint VARCHAR(64) NOT NULL,
			token_a_vault VARCHAR(64) NOT NULL,
			token_b_vault VARCHAR(64) NOT NULL,
			lp_mint VARCHAR(64) NOT NULL,
			token_a_reserve NUMERIC(20, 0) NOT NULL,
			token_b_reserve NUMERIC(20, 0) NOT NULL,
			lp_supply NUMERIC(20, 0) NOT NULL,
			base_fee_bps INTEGER NOT NULL,
			current_fee_bps INTEGER NOT NULL,
			dynamic_fee_enabled BOOLEAN NOT NULL,
			alm_enabled BOOLEAN NOT NULL,
			mev_protection_enabled BOOLEAN NOT NULL,
			batch_size INTEGER NOT NULL,
			volatility_score INTEGER NOT NULL,
			last_price_update BIGINT NOT NULL,
			total_volume_a NUMERIC(39, 0) NOT NULL,
			total_volume_b NUMERIC(39, 0) NOT NULL,
			total_fees_collected_a NUMERIC(39, 0) NOT NULL,
			total_fees_collected_b NUMERIC(39, 0) NOT NULL,
			swap_count NUMERIC(20, 0) NOT NULL,
			paused BOOLEAN NOT NULL,
			emergency_mode BOOLEAN NOT NULL,
			upgrade_authority VARCHAR(64) NOT NULL,
			created_at BIGINT NOT NULL,
			updated_at BIGINT NOT NULL,
			CONSTRAINT uq_pools_mints UNIQUE (token_a_mint, token_b_mint)
		);

		CREATE TABLE IF NOT EXISTS positions (
			address VARCHAR(64) PRIMARY KEY,
			owner VARCHAR(64) NOT NULL,
			pool VARCHAR(64) NOT NULL REFERENCES pools(address),
			lp_tokens NUMERIC(20, 0) NOT NULL,
			strategy_type SMALLINT NOT NULL,
			risk_profile SMALLINT NOT NULL,
			price_range_lower NUMERIC(39, 0) NOT NULL,
			price_range_upper NUMERIC(39, 0) NOT NULL,
			auto_rebalance BOOLEAN NOT NULL,
			rebalance_threshold_bps INTEGER NOT NULL,
			initial_deposit_a NUMERIC(20, 0) NOT NULL,
			initial_deposit_b NUMERIC(20, 0) NOT NULL,
			realized_fees_a NUMERIC(20, 0) NOT NULL,
			realized_fees_b NUMERIC(20, 0) NOT NULL,
			unrealized_pnl_a BIGINT NOT NULL,
			unrealized_pnl_b BIGINT NOT NULL,
			mev_rewards_earned NUMERIC(20, 0) NOT NULL,
			mev_rewards_claimed NUMERIC(20, 0) NOT NULL,
			created_at BIGINT NOT NULL,
			last_rebalanced BIGINT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_positions_pool ON positions(pool);
		CREATE INDEX IF NOT EXISTS idx_positions_owner ON positions(owner);

		CREATE TABLE IF NOT EXISTS pool_events (
			seq BIGSERIAL PRIMARY KEY,
			event_id UUID NOT NULL UNIQUE,
			event_type VARCHAR(50) NOT NULL,
			pool VARCHAR(64) NOT NULL,
			event_timestamp BIGINT NOT NULL,
			payload JSONB NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_pool_events_pool_seq ON pool_events(pool, seq DESC);
		CREATE INDEX IF NOT EXISTS idx_pool_events_type ON pool_events(event_type);

		CREATE TABLE IF NOT EXISTS price_observations (
			seq BIGSERIAL PRIMARY KEY,
			pool VARCHAR(64) NOT NULL,
			price NUMERIC(39, 0) NOT NULL,
			observed_at BIGINT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_price_observations_pool_seq ON price_observations(pool, seq DESC);

		CREATE TABLE IF NOT EXISTS protocol_parameters (
			params_id SERIAL PRIMARY KEY,
			version INTEGER NOT NULL DEFAULT 1,
			config_name VARCHAR(255) NOT NULL DEFAULT 'default',
			is_active BOOLEAN NOT NULL DEFAULT FALSE,
			activated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
			created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
			default_rebalance_threshold_bps INTEGER NOT NULL,
			recommended_max_fee_bps INTEGER NOT NULL,
			default_batch_size INTEGER NOT NULL,
			price_history_window INTEGER NOT NULL,
			annualization_factor DECIMAL(20, 8) NOT NULL,
			volatility_score_cap DECIMAL(20, 8) NOT NULL,
			liquidity_depth_target NUMERIC(20, 0) NOT NULL,
			max_price_impact_bps INTEGER NOT NULL,
			CONSTRAINT uq_protocol_parameters_config_version UNIQUE (config_name, version)
		);
		CREATE INDEX IF NOT EXISTS idx_protocol_parameters_config_active ON protocol_parameters(config_name, is_active, activated_at DESC);

		CREATE TABLE IF NOT EXISTS alm_cycle_snapshots (
			snapshot_id SERIAL PRIMARY KEY,
			cycle_number INTEGER NOT NULL,
			snapshot_timestamp TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
			pools_evaluated INTEGER NOT NULL,
			fee_updates JSONB,
			rebalances JSONB,
			errors TEXT[],
			duration_millis BIGINT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_alm_cycle_snapshots_timestamp ON alm_cycle_snapshots(snapshot_timestamp DESC);

		-- Cycle counter table for persistent global cycle tracking
		CREATE TABLE IF NOT EXISTS cycle_counter (
			id INTEGER PRIMARY KEY DEFAULT 1,
			current_cycle INTEGER NOT NULL DEFAULT 0,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
			CONSTRAINT single_row_check CHECK (id = 1)
		);

		INSERT INTO cycle_counter (id, current_cycle)
		VALUES (1, 0)
		ON CONFLICT (id) DO NOTHING;
	`
	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("failed to execute schema DDL: %w", err)
	}
	log.Info().Msg("Database schema ensured.")
	return nil
}

// DropSchema removes every table EnsureSchema creates.
func DropSchema(db *sql.DB) error {
	dropTablesQuery := `
		DROP TABLE IF EXISTS positions CASCADE;
		DROP TABLE IF EXISTS pool_events CASCADE;
		DROP TABLE IF EXISTS price_observations CASCADE;
		DROP TABLE IF EXISTS pools CASCADE;
		DROP TABLE IF EXISTS alm_cycle_snapshots CASCADE;
		DROP TABLE IF EXISTS protocol_parameters CASCADE;
		DROP TABLE IF EXISTS cycle_counter CASCADE;
	`
	if _, err := db.Exec(dropTablesQuery); err != nil {
		return fmt.Errorf("failed to drop tables: %w", err)
	}
	return nil
}

// TestDBConnection tests if the database connection is healthy
func TestDBConnection(ctx context.Context, db *sql.DB) error {
	if db == nil {
		return fmt.Errorf("database connection is nil")
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}
	return nil
}
