package alm

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/fluxdex/flux-core/internal/analyzer"
	"github.com/fluxdex/flux-core/internal/liquidity"
	"github.com/fluxdex/flux-core/internal/logger"
	"github.com/fluxdex/flux-core/internal/metrics"
	"github.com/fluxdex/flux-core/internal/planner"
	"github.com/fluxdex/flux-core/internal/state"
	"github.com/fluxdex/flux-core/internal/types"
)

const (
	// Export constants for use in main.go
	DefaultParametersConfigName    = "default_flux_alm"
	DefaultParametersConfigVersion = 1
)

// Manager runs the automated liquidity management cycle: it refreshes dynamic
// fees from recent prices and reserve depth, then re-centres auto-rebalancing
// positions whose price has drifted towards a range bound.
type Manager struct {
	logger  zerolog.Logger
	service *liquidity.Service
	store   state.Store
	planner *planner.Planner
	metrics *metrics.Metrics
	params  types.ProtocolParameters

	// Runtime state
	cycleCount int
}

// Config holds the dependencies for creating a new Manager
type Config struct {
	Service *liquidity.Service
	Store   state.Store
	Metrics *metrics.Metrics // optional
}

// NewManager creates a Manager that uses the service's protocol parameters.
func NewManager(cfg Config) (*Manager, error) {
	if err := validateConfig(cfg); err != nil {
		return nil, fmt.Errorf("manager configuration validation failed: %w", err)
	}

	m := &Manager{
		logger:  logger.GetForComponent("alm_manager"),
		service: cfg.Service,
		store:   cfg.Store,
		planner: planner.New(),
		metrics: cfg.Metrics,
		params:  cfg.Service.Parameters(),
	}
	m.logger.Info().
		Int("price_history_window", m.params.PriceHistoryWindow).
		Uint64("liquidity_depth_target", m.params.LiquidityDepthTarget).
		Msg("Liquidity manager created")
	return m, nil
}

func validateConfig(cfg Config) error {
	if cfg.Service == nil {
		return fmt.Errorf("liquidity service cannot be nil")
	}
	if cfg.Store == nil {
		return fmt.Errorf("store cannot be nil")
	}
	if cfg.Service.Parameters().PriceHistoryWindow < 2 {
		return fmt.Errorf("price history window must hold at least two observations")
	}
	return nil
}

// RunLoop runs a cycle immediately and then once per interval until ctx is done.
func (m *Manager) RunLoop(ctx context.Context, interval time.Duration) {
	m.logger.Info().Dur("interval", interval).Msg("Starting liquidity manager loop")

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	m.tick(ctx)
	for {
		select {
		case <-ctx.Done():
			m.logger.Info().Msg("Liquidity manager loop stopped due to context cancellation")
			return
		case <-ticker.C:
			m.tick(ctx)
		}
	}
}

func (m *Manager) tick(ctx context.Context) {
	m.cycleCount++
	m.logger.Info().Int("cycle", m.cycleCount).Msg("Initiating cycle")
	if _, err := m.RunCycle(ctx); err != nil {
		m.logger.Error().Err(err).Int("cycle", m.cycleCount).Msg("Cycle aborted")
		return
	}
	m.logger.Info().Int("cycle", m.cycleCount).Msg("Cycle completed")
}

// RunCycle evaluates every operational pool that has dynamic fees or range
// management switched on. Per-pool failures are recorded in the snapshot and
// do not stop the cycle.
func (m *Manager) RunCycle(ctx context.Context) (types.CycleSnapshot, error) {
	start := time.Now()
	cycleLogger := m.logger.With().Str("cycle_id", uuid.New().String()).Logger()
	cycleLogger.Info().Msg("--- Starting cycle ---")

	number, err := m.store.IncrementCycleNumber(ctx)
	if err != nil {
		m.metrics.RecordCycle("failed", time.Since(start).Seconds())
		return types.CycleSnapshot{}, fmt.Errorf("failed to advance cycle number: %w", err)
	}
	snapshot := types.CycleSnapshot{
		CycleNumber: number,
		Timestamp:   start.UTC(),
		FeeUpdates:  make([]types.PoolFeeUpdated, 0),
		Rebalances:  make([]types.RebalanceAction, 0),
		Errors:      make([]string, 0),
	}

	pools, err := m.service.ListPools(ctx)
	if err != nil {
		m.metrics.RecordCycle("failed", time.Since(start).Seconds())
		return types.CycleSnapshot{}, fmt.Errorf("failed to list pools: %w", err)
	}

	for _, pool := range pools {
		if !pool.IsOperational() || (!pool.DynamicFeeEnabled && !pool.ALMEnabled) {
			continue
		}
		snapshot.PoolsEvaluated++
		poolLogger := cycleLogger.With().Str("pool", pool.Address.String()).Logger()
		if err := m.evaluatePool(ctx, poolLogger, pool, &snapshot); err != nil {
			poolLogger.Error().Err(err).Msg("Pool evaluation failed")
			snapshot.Errors = append(snapshot.Errors, fmt.Sprintf("%s: %v", pool.Address, err))
		}
	}

	elapsed := time.Since(start)
	snapshot.DurationMillis = elapsed.Milliseconds()
	if id, err := m.store.SaveCycleSnapshot(ctx, snapshot); err != nil {
		cycleLogger.Error().Err(err).Msg("Failed to save cycle snapshot")
	} else {
		snapshot.SnapshotID = id
	}

	status := "ok"
	if len(snapshot.Errors) > 0 {
		status = "partial"
	}
	m.metrics.RecordCycle(status, elapsed.Seconds())
	cycleLogger.Info().
		Int("cycle_number", snapshot.CycleNumber).
		Int("pools_evaluated", snapshot.PoolsEvaluated).
		Int("fee_updates", len(snapshot.FeeUpdates)).
		Int("rebalances", len(snapshot.Rebalances)).
		Int("errors", len(snapshot.Errors)).
		Str("duration", elapsed.String()).
		Msg("--- Cycle finished ---")
	return snapshot, nil
}

func (m *Manager) evaluatePool(ctx context.Context, l zerolog.Logger, pool types.Pool, snapshot *types.CycleSnapshot) error {
	if pool.DynamicFeeEnabled {
		prices, err := m.service.RecentPrices(ctx, pool.Address, m.params.PriceHistoryWindow)
		if err != nil {
			return fmt.Errorf("failed to load price history: %w", err)
		}
		volatility := analyzer.VolatilityScore(types.ToPriceData(prices), m.params.AnnualizationFactor, m.params.VolatilityScoreCap)
		depth := analyzer.LiquidityScore(pool.TokenAReserve, pool.TokenBReserve, m.params.LiquidityDepthTarget)
		l.Debug().
			Int("observations", len(prices)).
			Uint16("volatility_score", volatility).
			Uint16("liquidity_score", depth).
			Msg("Pool scored")

		update, err := m.service.UpdatePoolFee(ctx, pool.Address, volatility, depth)
		if err != nil {
			return err
		}
		if update.OldFeeBps != update.NewFeeBps {
			snapshot.FeeUpdates = append(snapshot.FeeUpdates, update)
		}
	}

	if !pool.ALMEnabled {
		return nil
	}
	// reload so the plan sees the refreshed volatility score
	current, err := m.service.GetPool(ctx, pool.Address)
	if err != nil {
		return err
	}
	positions, err := m.service.ListPositions(ctx, pool.Address)
	if err != nil {
		return err
	}
	needs, err := m.planner.NeedsRebalance(current, positions)
	if err != nil {
		return err
	}
	if !needs {
		l.Debug().Int("positions", len(positions)).Msg("No position near a range bound")
		return nil
	}
	plan := m.planner.GenerateRebalancePlan(current, positions)
	if len(plan.Actions) == 0 {
		return nil
	}
	l.Info().Str("plan", plan.String()).Msg("Rebalance plan generated")

	applied, err := m.service.ApplyRebalance(ctx, plan)
	if err != nil {
		return err
	}
	snapshot.Rebalances = append(snapshot.Rebalances, applied...)
	return nil
}
