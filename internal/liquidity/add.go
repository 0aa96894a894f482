package liquidity

import (
	"context"

	"github.com/gagliardetto/solana-go"

	"github.com/fluxdex/flux-core/internal/ammmath"
	"github.com/fluxdex/flux-core/internal/dexerrors"
	"github.com/fluxdex/flux-core/internal/state"
	"github.com/fluxdex/flux-core/internal/types"
)

// LiquidityAddedResult carries the committed records of a deposit.
type LiquidityAddedResult struct {
	Event    types.LiquidityAdded `json:"event"`
	Pool     types.Pool           `json:"pool"`
	Position types.Position       `json:"position"`
}

// AddLiquidity deposits a balanced amount of both tokens and mints LP tokens
// to the user. Amounts are trimmed to the pool ratio, bounded below by the
// request minimums. The user's position is opened on the first deposit, and
// re-opened with default settings when it holds no LP tokens.
// Once started, cancelling ctx does not interrupt the workflow.
func (s *Service) AddLiquidity(ctx context.Context, req types.AddLiquidityRequest) (*LiquidityAddedResult, error) {
	const op = "add_liquidity"
	l := s.requestLogger(op, req.Pool)

	if req.DesiredAmountA == 0 || req.DesiredAmountB == 0 {
		return nil, s.reject(l, op, dexerrors.ErrInvalidInputAmount.Wrapf("desired amounts must be positive: a=%d b=%d", req.DesiredAmountA, req.DesiredAmountB))
	}
	if req.MinAmountA > req.DesiredAmountA || req.MinAmountB > req.DesiredAmountB {
		return nil, s.reject(l, op, dexerrors.ErrInvalidInputAmount.Wrapf("minimum exceeds desired: a=%d/%d b=%d/%d",
			req.MinAmountA, req.DesiredAmountA, req.MinAmountB, req.DesiredAmountB))
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

	var result LiquidityAddedResult
	err = s.store.Update(ctx, func(tx state.Tx) error {
		pool, err := requireOperational(tx, req.Pool)
		if err != nil {
			return err
		}

		if err := s.checkTokenAccount(ctx, req.UserTokenA, pool.TokenAMint, req.User, req.DesiredAmountA); err != nil {
			return err
		}
		if err := s.checkTokenAccount(ctx, req.UserTokenB, pool.TokenBMint, req.User, req.DesiredAmountB); err != nil {
			return err
		}
		if err := s.checkTokenAccount(ctx, req.UserLPToken, pool.LPMint, req.User, 0); err != nil {
			return err
		}

		amountA, amountB, err := ammmath.CalculateOptimalAmounts(req.DesiredAmountA, req.DesiredAmountB,
			pool.TokenAReserve, pool.TokenBReserve, req.MinAmountA, req.MinAmountB)
		if err != nil {
			return err
		}
		if amountA < req.MinAmountA || amountB < req.MinAmountB {
			return dexerrors.ErrSlippageExceeded.Wrapf("amounts a=%d b=%d below minimums a=%d b=%d", amountA, amountB, req.MinAmountA, req.MinAmountB)
		}

		lp, err := ammmath.CalculateLPTokens(amountA, amountB, pool.TokenAReserve, pool.TokenBReserve, pool.LPSupply)
		if err != nil {
			return err
		}
		if lp == 0 {
			return dexerrors.ErrInvalidInputAmount.Wrapf("deposit a=%d b=%d mints no lp tokens", amountA, amountB)
		}
		if lp < req.MinLPTokens {
			return dexerrors.ErrSlippageExceeded.Wrapf("lp tokens %d below minimum %d", lp, req.MinLPTokens)
		}
		l.Debug().
			Uint64("amount_a", amountA).
			Uint64("amount_b", amountB).
			Uint64("lp_tokens", lp).
			Msg("Deposit amounts computed")

		ts := s.now().Unix()
		next := pool
		if next.TokenAReserve, err = checkedAdd(pool.TokenAReserve, amountA, "token A reserve"); err != nil {
			return err
		}
		if next.TokenBReserve, err = checkedAdd(pool.TokenBReserve, amountB, "token B reserve"); err != nil {
			return err
		}
		if next.LPSupply, err = checkedAdd(pool.LPSupply, lp, "lp supply"); err != nil {
			return err
		}
		next.UpdatedAt = ts

		pos, found, err := tx.GetPosition(positionAddr)
		if err != nil {
			return err
		}
		if !found || pos.IsEmpty() {
			pos = s.openPosition(positionAddr, req, ts)
		}
		if pos.LPTokens, err = checkedAdd(pos.LPTokens, lp, "position lp tokens"); err != nil {
			return err
		}
		if pos.InitialDepositA, err = checkedAdd(pos.InitialDepositA, amountA, "position deposit A"); err != nil {
			return err
		}
		if pos.InitialDepositB, err = checkedAdd(pos.InitialDepositB, amountB, "position deposit B"); err != nil {
			return err
		}

		if err := eff.transfer(req.UserTokenA, pool.TokenAVault, req.User, pool.Address, amountA); err != nil {
			return err
		}
		if err := eff.transfer(req.UserTokenB, pool.TokenBVault, req.User, pool.Address, amountB); err != nil {
			return err
		}
		if err := eff.mintTo(pool.LPMint, req.UserLPToken, pool.Address, req.User, lp); err != nil {
			return err
		}

		if err := tx.PutPool(next); err != nil {
			return err
		}
		if err := tx.PutPosition(pos); err != nil {
			return err
		}
		if err := tx.AppendPriceObservation(types.PriceObservation{Pool: next.Address, Price: next.CurrentPrice(), Timestamp: ts}); err != nil {
			return err
		}

		event := types.LiquidityAdded{
			User:           req.User,
			Pool:           next.Address,
			AmountA:        amountA,
			AmountB:        amountB,
			LPTokensMinted: lp,
			Timestamp:      ts,
		}
		if err := appendEvent(tx, types.EventLiquidityAdded, next.Address, ts, event); err != nil {
			return err
		}
		result = LiquidityAddedResult{Event: event, Pool: next, Position: pos}
		return nil
	})
	if err != nil {
		eff.revert(l)
		return nil, s.reject(l, op, err)
	}

	s.metrics.RecordLiquidityAdded(result.Event)
	s.metrics.ObservePool(result.Pool)
	l.Info().
		Str("user", req.User.String()).
		Uint64("amount_a", result.Event.AmountA).
		Uint64("amount_b", result.Event.AmountB).
		Uint64("lp_tokens_minted", result.Event.LPTokensMinted).
		Uint64("lp_supply", result.Pool.LPSupply).
		Msg("Liquidity added")
	return &result, nil
}

// openPosition builds the record for a deposit into an empty position.
func (s *Service) openPosition(addr solana.PublicKey, req types.AddLiquidityRequest, ts int64) types.Position {
	threshold := s.params.DefaultRebalanceThresholdBps
	if threshold == 0 {
		threshold = types.DefaultRebalanceThresholdBps
	}
	return types.Position{
		Address:               addr,
		Owner:                 req.User,
		Pool:                  req.Pool,
		StrategyType:          types.StrategyPassive,
		RiskProfile:           types.RiskBalanced,
		RebalanceThresholdBps: threshold,
		CreatedAt:             ts,
		LastRebalanced:        ts,
	}
}
