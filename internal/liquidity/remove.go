package liquidity

import (
	"context"

	"github.com/fluxdex/flux-core/internal/ammmath"
	"github.com/fluxdex/flux-core/internal/dexerrors"
	"github.com/fluxdex/flux-core/internal/state"
	"github.com/fluxdex/flux-core/internal/types"
)

// LiquidityRemovedResult carries the committed records of a withdrawal.
type LiquidityRemovedResult struct {
	Event    types.LiquidityRemoved `json:"event"`
	Pool     types.Pool             `json:"pool"`
	Position types.Position         `json:"position"`
}

// RemoveLiquidity burns LP tokens from the user's position and pays out the
// pro-rata share of both reserves. A fully withdrawn position keeps its record.
func (s *Service) RemoveLiquidity(ctx context.Context, req types.RemoveLiquidityRequest) (*LiquidityRemovedResult, error) {
	const op = "remove_liquidity"
	l := s.requestLogger(op, req.Pool)

	if req.LPTokens == 0 {
		return nil, s.reject(l, op, dexerrors.ErrInvalidInputAmount.Wrap("lp amount is zero"))
	}
	positionAddr, err := s.deriver.Position(req.User, req.Pool)
	if err != nil {
		return nil, s.reject(l, op, err)
	}

	eff, err := s.beginEffects(ctx)
	if err != nil {
		return nil, s.reject(l, op, err)
	}
	ctx = eff.ctx

	var result LiquidityRemovedResult
	err = s.store.Update(ctx, func(tx state.Tx) error {
		pool, err := requireOperational(tx, req.Pool)
		if err != nil {
			return err
		}
		pos, found, err := tx.GetPosition(positionAddr)
		if err != nil {
			return err
		}
		if !found {
			return dexerrors.ErrPositionNotFound.Wrapf("owner %s pool %s", req.User, req.Pool)
		}
		if req.LPTokens > pos.LPTokens {
			return dexerrors.ErrInsufficientLiquidity.Wrapf("position holds %d lp tokens, redeeming %d", pos.LPTokens, req.LPTokens)
		}

		if err := s.checkTokenAccount(ctx, req.UserLPToken, pool.LPMint, req.User, req.LPTokens); err != nil {
			return err
		}
		if err := s.checkTokenAccount(ctx, req.UserTokenA, pool.TokenAMint, req.User, 0); err != nil {
			return err
		}
		if err := s.checkTokenAccount(ctx, req.UserTokenB, pool.TokenBMint, req.User, 0); err != nil {
			return err
		}

		amountA, amountB, err := ammmath.CalculateRemoveAmounts(req.LPTokens, pool.LPSupply, pool.TokenAReserve, pool.TokenBReserve)
		if err != nil {
			return err
		}
		if amountA == 0 && amountB == 0 {
			return dexerrors.ErrInvalidInputAmount.Wrapf("%d lp tokens redeem nothing", req.LPTokens)
		}
		if amountA < req.MinAmountA || amountB < req.MinAmountB {
			return dexerrors.ErrSlippageExceeded.Wrapf("amounts a=%d b=%d below minimums a=%d b=%d", amountA, amountB, req.MinAmountA, req.MinAmountB)
		}

		ts := s.now().Unix()
		next := pool
		if next.TokenAReserve, err = checkedSub(pool.TokenAReserve, amountA, "token A reserve"); err != nil {
			return err
		}
		if next.TokenBReserve, err = checkedSub(pool.TokenBReserve, amountB, "token B reserve"); err != nil {
			return err
		}
		if next.LPSupply, err = checkedSub(pool.LPSupply, req.LPTokens, "lp supply"); err != nil {
			return err
		}
		if next.LPSupply > 0 && (next.TokenAReserve == 0 || next.TokenBReserve == 0) {
			return dexerrors.ErrInsufficientLiquidity.Wrap("withdrawal would leave one reserve empty")
		}
		next.UpdatedAt = ts
		if pos.LPTokens, err = checkedSub(pos.LPTokens, req.LPTokens, "position lp tokens"); err != nil {
			return err
		}

		if err := eff.burn(pool.LPMint, req.UserLPToken, req.User, pool.Address, req.LPTokens); err != nil {
			return err
		}
		if amountA > 0 {
			if err := eff.transfer(pool.TokenAVault, req.UserTokenA, pool.Address, req.User, amountA); err != nil {
				return err
			}
		}
		if amountB > 0 {
			if err := eff.transfer(pool.TokenBVault, req.UserTokenB, pool.Address, req.User, amountB); err != nil {
				return err
			}
		}

		if err := tx.PutPool(next); err != nil {
			return err
		}
		if err := tx.PutPosition(pos); err != nil {
			return err
		}
		if next.LPSupply > 0 {
			if err := tx.AppendPriceObservation(types.PriceObservation{Pool: next.Address, Price: next.CurrentPrice(), Timestamp: ts}); err != nil {
				return err
			}
		}

		event := types.LiquidityRemoved{
			User:           req.User,
			Pool:           next.Address,
			AmountA:        amountA,
			AmountB:        amountB,
			LPTokensBurned: req.LPTokens,
			Timestamp:      ts,
		}
		if err := appendEvent(tx, types.EventLiquidityRemoved, next.Address, ts, event); err != nil {
			return err
		}
		result = LiquidityRemovedResult{Event: event, Pool: next, Position: pos}
		return nil
	})
	if err != nil {
		eff.revert(l)
		return nil, s.reject(l, op, err)
	}

	s.metrics.RecordLiquidityRemoved(result.Event)
	s.metrics.ObservePool(result.Pool)
	l.Info().
		Str("user", req.User.String()).
		Uint64("amount_a", result.Event.AmountA).
		Uint64("amount_b", result.Event.AmountB).
		Uint64("lp_tokens_burned", result.Event.LPTokensBurned).
		Uint64("lp_supply", result.Pool.LPSupply).
		Msg("Liquidity removed")
	return &result, nil
}
