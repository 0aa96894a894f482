package state

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/lib/pq" // PostgreSQL driver for array support
	"github.com/rs/zerolog/log"

	"github.com/fluxdex/flux-core/internal/types"
)

// SaveCycleSnapshot saves a complete cycle snapshot to the database.
func (s *PostgresStore) SaveCycleSnapshot(ctx context.Context, snapshot types.CycleSnapshot) (int64, error) {
	if s.DB == nil {
		return 0, fmt.Errorf("database not initialized")
	}

	feeUpdatesJSON, err := json.Marshal(snapshot.FeeUpdates)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal fee_updates: %w", err)
	}
	rebalancesJSON, err := json.Marshal(snapshot.Rebalances)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal rebalances: %w", err)
	}

	query := `
		INSERT INTO alm_cycle_snapshots (
			cycle_number, snapshot_timestamp, pools_evaluated,
			fee_updates, rebalances, errors, duration_millis
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING snapshot_id;
	`

	var snapshotID int64
	err = s.DB.QueryRowContext(ctx,
		query,
		snapshot.CycleNumber, snapshot.Timestamp, snapshot.PoolsEvaluated,
		feeUpdatesJSON, rebalancesJSON, pq.Array(snapshot.Errors), snapshot.DurationMillis,
	).Scan(&snapshotID)
	if err != nil {
		return 0, fmt.Errorf("failed to save cycle snapshot: %w", err)
	}

	log.Info().
		Int64("snapshot_id", snapshotID).
		Int("cycle_number", snapshot.CycleNumber).
		Int("rebalances", len(snapshot.Rebalances)).
		Msg("Cycle snapshot saved to database")

	return snapshotID, nil
}

// GetRecentCycles retrieves recent cycle snapshots, newest first.
func (s *PostgresStore) GetRecentCycles(ctx context.Context, limit int) ([]types.CycleSnapshot, error) {
	if s.DB == nil {
		return nil, fmt.Errorf("database not initialized")
	}

	query := `
		SELECT
			snapshot_id, cycle_number, snapshot_timestamp, pools_evaluated,
			fee_updates, rebalances, errors, duration_millis
		FROM alm_cycle_snapshots
		ORDER BY snapshot_timestamp DESC
		LIMIT $1
	`

	rows, err := s.DB.QueryContext(ctx, query, clampLimit(limit))
	if err != nil {
		log.Error().Err(err).Msg("Failed to query recent cycles")
		return nil, fmt.Errorf("failed to query recent cycles: %w", err)
	}
	defer rows.Close()

	var cycles []types.CycleSnapshot
	for rows.Next() {
		var (
			cycle                      types.CycleSnapshot
			feeUpdatesJSON, rebalances []byte
		)
		err := rows.Scan(
			&cycle.SnapshotID, &cycle.CycleNumber, &cycle.Timestamp, &cycle.PoolsEvaluated,
			&feeUpdatesJSON, &rebalances, pq.Array(&cycle.Errors), &cycle.DurationMillis,
		)
		if err != nil {
			log.Error().Err(err).Msg("Failed to scan cycle row")
			continue // Skip this row and continue with others
		}
		if len(feeUpdatesJSON) > 0 {
			if err := json.Unmarshal(feeUpdatesJSON, &cycle.FeeUpdates); err != nil {
				log.Warn().Err(err).Int64("snapshot_id", cycle.SnapshotID).Msg("Failed to unmarshal fee_updates")
			}
		}
		if len(rebalances) > 0 {
			if err := json.Unmarshal(rebalances, &cycle.Rebalances); err != nil {
				log.Warn().Err(err).Int64("snapshot_id", cycle.SnapshotID).Msg("Failed to unmarshal rebalances")
			}
		}
		cycles = append(cycles, cycle)
	}
	return cycles, rows.Err()
}
