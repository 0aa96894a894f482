package liquidity

import (
	"context"

	"github.com/fluxdex/flux-core/internal/activerange"
	"github.com/fluxdex/flux-core/internal/ammmath"
	"github.com/fluxdex/flux-core/internal/dexerrors"
	"github.com/fluxdex/flux-core/internal/state"
	"github.com/fluxdex/flux-core/internal/types"
)

// ConfigurePosition sets the range management settings of the owner's
// position. When the pool has liquidity the range is re-centred on the current
// price for the chosen risk profile.
func (s *Service) ConfigurePosition(ctx context.Context, req types.ConfigurePositionRequest) (types.Position, error) {
	const op = "configure_position"
	l := s.requestLogger(op, req.Pool)

	if uint64(req.RebalanceThresholdBps) > ammmath.BpsDenominator {
		return types.Position{}, s.reject(l, op, dexerrors.ErrInvalidCalculation.Wrapf("rebalance threshold %d bps exceeds %d", req.RebalanceThresholdBps, ammmath.BpsDenominator))
	}
	if req.StrategyType > types.StrategyDynamicHedging {
		return types.Position{}, s.reject(l, op, dexerrors.ErrInvalidStrategyType.Wrapf("%s", req.StrategyType))
	}
	if req.RiskProfile > types.RiskAggressive {
		return types.Position{}, s.reject(l, op, dexerrors.ErrInvalidRiskProfile.Wrapf("%s", req.RiskProfile))
	}
	addr, err := s.deriver.Position(req.Owner, req.Pool)
	if err != nil {
		return types.Position{}, s.reject(l, op, err)
	}

	var pos types.Position
	err = s.store.Update(ctx, func(tx state.Tx) error {
		pool, err := tx.GetPool(req.Pool)
		if err != nil {
			return err
		}
		p, found, err := tx.GetPosition(addr)
		if err != nil {
			return err
		}
		if !found || p.IsEmpty() {
			return dexerrors.ErrPositionNotFound.Wrapf("owner %s pool %s", req.Owner, req.Pool)
		}

		p.StrategyType = req.StrategyType
		p.RiskProfile = req.RiskProfile
		p.AutoRebalance = req.AutoRebalance
		p.RebalanceThresholdBps = req.RebalanceThresholdBps
		if pool.LPSupply > 0 {
			lower, upper, err := activerange.CalculateOptimalRange(pool.CurrentPrice(), pool.VolatilityScore, req.RiskProfile.Tier())
			if err != nil {
				return err
			}
			p.PriceRangeLower, p.PriceRangeUpper = lower, upper
		}
		if err := tx.PutPosition(p); err != nil {
			return err
		}
		pos = p
		return nil
	})
	if err != nil {
		return types.Position{}, s.reject(l, op, err)
	}

	l.Info().
		Str("owner", req.Owner.String()).
		Stringer("strategy", pos.StrategyType).
		Stringer("risk", pos.RiskProfile).
		Bool("auto_rebalance", pos.AutoRebalance).
		Str("range_lower", pos.PriceRangeLower.String()).
		Str("range_upper", pos.PriceRangeUpper.String()).
		Msg("Position configured")
	return pos, nil
}

// ApplyRebalance writes the planned ranges and returns the actions it applied.
// Actions whose position changed since planning are skipped.
func (s *Service) ApplyRebalance(ctx context.Context, plan types.RebalancePlan) ([]types.RebalanceAction, error) {
	const op = "apply_rebalance"
	l := s.requestLogger(op, plan.Pool)
	if len(plan.Actions) == 0 {
		return nil, nil
	}

	var applied []types.RebalanceAction
	err := s.store.Update(ctx, func(tx state.Tx) error {
		applied = applied[:0]
		if _, err := requireOperational(tx, plan.Pool); err != nil {
			return err
		}
		ts := s.now().Unix()
		for _, action := range plan.Actions {
			pos, found, err := tx.GetPosition(action.Position)
			if err != nil {
				return err
			}
			if !found || !pos.Pool.Equals(plan.Pool) ||
				pos.PriceRangeLower.Cmp(action.OldLower) != 0 || pos.PriceRangeUpper.Cmp(action.OldUpper) != 0 {
				l.Debug().Str("position", action.Position.String()).Msg("Skipping stale rebalance action")
				continue
			}
			if action.NewUpper.Cmp(action.NewLower) < 0 {
				return dexerrors.ErrInvalidPriceRange.Wrapf("position %s: upper %s below lower %s", action.Position, action.NewUpper, action.NewLower)
			}

			pos.PriceRangeLower, pos.PriceRangeUpper = action.NewLower, action.NewUpper
			pos.LastRebalanced = ts
			if err := tx.PutPosition(pos); err != nil {
				return err
			}
			if err := appendEvent(tx, types.EventPositionRebalanced, plan.Pool, ts, types.PositionRebalanced{
				Pool:      plan.Pool,
				Position:  pos.Address,
				Action:    action,
				Timestamp: ts,
			}); err != nil {
				return err
			}
			applied = append(applied, action)
		}
		return nil
	})
	if err != nil {
		return nil, s.reject(l, op, err)
	}

	s.metrics.RecordRebalance(plan.Pool.String(), len(applied))
	l.Info().Int("planned", len(plan.Actions)).Int("applied", len(applied)).Msg("Rebalance plan applied")
	return applied, nil
}
