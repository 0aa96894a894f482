package planner

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/fluxdex/flux-core/internal/activerange"
	"github.com/fluxdex/flux-core/internal/logger"
	"github.com/fluxdex/flux-core/internal/types"
)

// Planner turns pool state into range changes for auto-rebalancing positions.
type Planner struct {
	logger zerolog.Logger
}

func New() *Planner {
	return &Planner{logger: logger.GetForComponent("rebalance_planner")}
}

// eligible reports whether a position takes part in automated range management.
func eligible(pos *types.Position) bool {
	return pos.AutoRebalance && !pos.IsEmpty() && pos.HasRange()
}

// NeedsRebalance is true when at least one eligible position of the pool sits
// within its rebalance threshold of a range bound at the current pool price.
func (p *Planner) NeedsRebalance(pool types.Pool, positions []types.Position) (bool, error) {
	if pool.LPSupply == 0 {
		return false, nil
	}
	price := pool.CurrentPrice()
	for i := range positions {
		pos := &positions[i]
		if !pos.Pool.Equals(pool.Address) || !eligible(pos) {
			continue
		}
		trigger, err := activerange.ShouldRebalance(price, pos.PriceRangeLower, pos.PriceRangeUpper, pos.RebalanceThresholdBps)
		if err != nil {
			return false, fmt.Errorf("position %s: %w", pos.Address, err)
		}
		if trigger {
			return true, nil
		}
	}
	return false, nil
}

// GenerateRebalancePlan proposes a fresh optimal range for every triggered
// position. Positions whose range cannot be evaluated are logged and skipped.
func (p *Planner) GenerateRebalancePlan(pool types.Pool, positions []types.Position) types.RebalancePlan {
	plan := types.RebalancePlan{
		Pool:            pool.Address,
		GoalDescription: "Re-center auto-rebalancing positions around the current pool price",
	}
	if pool.LPSupply == 0 {
		return plan
	}

	price := pool.CurrentPrice()
	for i := range positions {
		pos := &positions[i]
		if !pos.Pool.Equals(pool.Address) || !eligible(pos) {
			continue
		}

		trigger, err := activerange.ShouldRebalance(price, pos.PriceRangeLower, pos.PriceRangeUpper, pos.RebalanceThresholdBps)
		if err != nil {
			p.logger.Warn().Err(err).Str("position", pos.Address.String()).Msg("Skipping position with invalid range")
			continue
		}
		if !trigger {
			continue
		}

		lower, upper, err := activerange.CalculateOptimalRange(price, pool.VolatilityScore, pos.RiskProfile.Tier())
		if err != nil {
			p.logger.Warn().Err(err).Str("position", pos.Address.String()).Msg("Skipping position without a valid range")
			continue
		}
		if lower.Cmp(pos.PriceRangeLower) == 0 && upper.Cmp(pos.PriceRangeUpper) == 0 {
			continue
		}

		plan.Actions = append(plan.Actions, types.RebalanceAction{
			Position:    pos.Address,
			Owner:       pos.Owner,
			OldLower:    pos.PriceRangeLower,
			OldUpper:    pos.PriceRangeUpper,
			NewLower:    lower,
			NewUpper:    upper,
			PriceAtPlan: price,
		})
	}

	p.logger.Debug().
		Str("pool", pool.Address.String()).
		Str("price", price.String()).
		Int("actions", len(plan.Actions)).
		Msg("Rebalance plan generated")
	return plan
}
