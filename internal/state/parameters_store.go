package state

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/fluxdex/flux-core/internal/types"
)

// SaveProtocolParameters saves a new version of protocol parameters.
func (s *PostgresStore) SaveProtocolParameters(ctx context.Context, params types.ProtocolParameters, configName string, version int, makeActive bool) (paramsID int64, err error) {
	if s.DB == nil {
		return 0, fmt.Errorf("database not initialized")
	}

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p) // Re-panic after rollback
		} else if err != nil {
			tx.Rollback() // Rollback if error occurred
		}
	}()

	if makeActive {
		stmtDeactivate := `UPDATE protocol_parameters SET is_active = FALSE WHERE config_name = $1 AND is_active = TRUE;`
		if _, err = tx.ExecContext(ctx, stmtDeactivate, configName); err != nil {
			return 0, fmt.Errorf("failed to deactivate existing active parameters for %s: %w", configName, err)
		}
	}

	stmt := `
        INSERT INTO protocol_parameters (
            version, config_name, is_active, activated_at, created_at,
            default_rebalance_threshold_bps, recommended_max_fee_bps, default_batch_size,
            price_history_window, annualization_factor, volatility_score_cap,
            liquidity_depth_target, max_price_impact_bps
        ) VALUES (
            $1, $2, $3, $4, $5,
            $6, $7, $8,
            $9, $10, $11,
            $12, $13
        ) RETURNING params_id;`

	currentTime := time.Now()
	err = tx.QueryRowContext(ctx,
		stmt,
		version, configName, makeActive, currentTime, currentTime,
		int(params.DefaultRebalanceThresholdBps), int(params.RecommendedMaxFeeBps), int(params.DefaultBatchSize),
		params.PriceHistoryWindow, params.AnnualizationFactor, params.VolatilityScoreCap,
		strconv.FormatUint(params.LiquidityDepthTarget, 10), int(params.MaxPriceImpactBps),
	).Scan(&paramsID)
	if err != nil {
		return 0, fmt.Errorf("failed to insert protocol parameters: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}

	log.Info().
		Int("version", version).
		Str("config", configName).
		Int64("params_id", paramsID).
		Bool("active", makeActive).
		Msg("Saved protocol parameters")
	return paramsID, nil
}

// LoadActiveProtocolParameters loads the currently active protocol parameters.
func (s *PostgresStore) LoadActiveProtocolParameters(ctx context.Context, configName string) (*types.ProtocolParameters, error) {
	if s.DB == nil {
		return nil, fmt.Errorf("database not initialized")
	}

	query := `
        SELECT
            default_rebalance_threshold_bps, recommended_max_fee_bps, default_batch_size,
            price_history_window, annualization_factor, volatility_score_cap,
            liquidity_depth_target, max_price_impact_bps
        FROM protocol_parameters
        WHERE config_name = $1 AND is_active = TRUE
        ORDER BY activated_at DESC
        LIMIT 1;`

	var (
		p                                types.ProtocolParameters
		threshold, maxFee, batch, impact int
		depthTarget                      string
	)
	err := s.DB.QueryRowContext(ctx, query, configName).Scan(
		&threshold, &maxFee, &batch,
		&p.PriceHistoryWindow, &p.AnnualizationFactor, &p.VolatilityScoreCap,
		&depthTarget, &impact,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("no active protocol parameters found for config '%s'", configName)
		}
		return nil, fmt.Errorf("failed to scan active protocol parameters for config '%s': %w", configName, err)
	}

	p.DefaultRebalanceThresholdBps = uint16(threshold)
	p.RecommendedMaxFeeBps = uint16(maxFee)
	p.DefaultBatchSize = uint16(batch)
	p.MaxPriceImpactBps = uint16(impact)
	if p.LiquidityDepthTarget, err = strconv.ParseUint(depthTarget, 10, 64); err != nil {
		return nil, fmt.Errorf("bad liquidity_depth_target %q: %w", depthTarget, err)
	}

	log.Info().Str("config", configName).Msg("Loaded active protocol parameters")
	return &p, nil
}
