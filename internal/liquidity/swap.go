package liquidity

import (
	"context"

	"github.com/gagliardetto/solana-go"

	"github.com/fluxdex/flux-core/internal/ammmath"
	"github.com/fluxdex/flux-core/internal/dexerrors"
	"github.com/fluxdex/flux-core/internal/state"
	"github.com/fluxdex/flux-core/internal/types"
)

// SwapResult carries the committed records of a swap.
type SwapResult struct {
	Event types.Swapped `json:"event"`
	Pool  types.Pool    `json:"pool"`
}

// swapLeg is the pool seen from the direction of one trade.
type swapLeg struct {
	reserveIn, reserveOut uint64
	mintIn, mintOut       solana.PublicKey
	vaultIn, vaultOut     solana.PublicKey
}

func legFor(p types.Pool, aToB bool) swapLeg {
	if aToB {
		return swapLeg{
			reserveIn: p.TokenAReserve, reserveOut: p.TokenBReserve,
			mintIn: p.TokenAMint, mintOut: p.TokenBMint,
			vaultIn: p.TokenAVault, vaultOut: p.TokenBVault,
		}
	}
	return swapLeg{
		reserveIn: p.TokenBReserve, reserveOut: p.TokenAReserve,
		mintIn: p.TokenBMint, mintOut: p.TokenAMint,
		vaultIn: p.TokenBVault, vaultOut: p.TokenAVault,
	}
}

// quote prices a trade against p at its current fee.
func (s *Service) quote(p types.Pool, aToB bool, amountIn uint64) (types.SwapQuote, error) {
	leg := legFor(p, aToB)
	out, err := ammmath.CalculateAMMOutput(amountIn, leg.reserveIn, leg.reserveOut, p.CurrentFeeBps)
	if err != nil {
		return types.SwapQuote{}, err
	}
	if out == 0 {
		return types.SwapQuote{}, dexerrors.ErrInvalidInputAmount.Wrapf("input %d buys no output", amountIn)
	}
	if out >= leg.reserveOut {
		return types.SwapQuote{}, dexerrors.ErrInsufficientLiquidity.Wrapf("output %d would drain reserve %d", out, leg.reserveOut)
	}
	impact, err := ammmath.CalculatePriceImpact(amountIn, leg.reserveIn, leg.reserveOut)
	if err != nil {
		return types.SwapQuote{}, err
	}
	return types.SwapQuote{
		Pool:           p.Address,
		AToB:           aToB,
		AmountIn:       amountIn,
		AmountOut:      out,
		FeeBps:         p.CurrentFeeBps,
		PriceImpactBps: impact,
	}, nil
}

// Quote previews a swap without moving tokens.
func (s *Service) Quote(ctx context.Context, pool solana.PublicKey, aToB bool, amountIn uint64) (types.SwapQuote, error) {
	var q types.SwapQuote
	err := s.store.View(ctx, func(tx state.Tx) error {
		p, err := tx.GetPool(pool)
		if err != nil {
			return err
		}
		q, err = s.quote(p, aToB, amountIn)
		return err
	})
	return q, err
}

// Swap trades AmountIn of the source token for the other side of the pool.
func (s *Service) Swap(ctx context.Context, req types.SwapRequest) (*SwapResult, error) {
	const op = "swap"
	l := s.requestLogger(op, req.Pool)

	if req.AmountIn == 0 {
		return nil, s.reject(l, op, dexerrors.ErrInvalidInputAmount.Wrap("swap amount is zero"))
	}

	eff, err := s.beginEffects(ctx)
	if err != nil {
		return nil, s.reject(l, op, err)
	}
	ctx = eff.ctx

	var result SwapResult
	err = s.store.Update(ctx, func(tx state.Tx) error {
		pool, err := requireOperational(tx, req.Pool)
		if err != nil {
			return err
		}
		leg := legFor(pool, req.AToB)
		if err := s.checkTokenAccount(ctx, req.UserSource, leg.mintIn, req.User, req.AmountIn); err != nil {
			return err
		}
		if err := s.checkTokenAccount(ctx, req.UserDestination, leg.mintOut, req.User, 0); err != nil {
			return err
		}

		q, err := s.quote(pool, req.AToB, req.AmountIn)
		if err != nil {
			return err
		}
		if q.AmountOut < req.MinAmountOut {
			return dexerrors.ErrMinimumOutputNotMet.Wrapf("output %d below minimum %d", q.AmountOut, req.MinAmountOut)
		}
		if limit := s.params.MaxPriceImpactBps; limit > 0 && q.PriceImpactBps > limit {
			return dexerrors.ErrPriceImpactTooHigh.Wrapf("impact %d bps above %d", q.PriceImpactBps, limit)
		}
		// floor(amountIn·fee/10000) without a 64-bit overflow
		fee := req.AmountIn / ammmath.BpsDenominator * uint64(q.FeeBps)
		fee += req.AmountIn % ammmath.BpsDenominator * uint64(q.FeeBps) / ammmath.BpsDenominator

		ts := s.now().Unix()
		next := pool
		newIn, err := checkedAdd(leg.reserveIn, req.AmountIn, "input reserve")
		if err != nil {
			return err
		}
		newOut, err := checkedSub(leg.reserveOut, q.AmountOut, "output reserve")
		if err != nil {
			return err
		}
		if req.AToB {
			next.TokenAReserve, next.TokenBReserve = newIn, newOut
			if next.TotalVolumeA, err = pool.TotalVolumeA.Add(req.AmountIn); err != nil {
				return err
			}
			if next.TotalFeesCollectedA, err = pool.TotalFeesCollectedA.Add(fee); err != nil {
				return err
			}
		} else {
			next.TokenBReserve, next.TokenAReserve = newIn, newOut
			if next.TotalVolumeB, err = pool.TotalVolumeB.Add(req.AmountIn); err != nil {
				return err
			}
			if next.TotalFeesCollectedB, err = pool.TotalFeesCollectedB.Add(fee); err != nil {
				return err
			}
		}
		if next.SwapCount, err = checkedAdd(pool.SwapCount, 1, "swap count"); err != nil {
			return err
		}
		next.LastPriceUpdate = ts
		next.UpdatedAt = ts

		if err := eff.transfer(req.UserSource, leg.vaultIn, req.User, pool.Address, req.AmountIn); err != nil {
			return err
		}
		if err := eff.transfer(leg.vaultOut, req.UserDestination, pool.Address, req.User, q.AmountOut); err != nil {
			return err
		}

		if err := tx.PutPool(next); err != nil {
			return err
		}
		if err := tx.AppendPriceObservation(types.PriceObservation{Pool: next.Address, Price: next.CurrentPrice(), Timestamp: ts}); err != nil {
			return err
		}
		event := types.Swapped{
			User:        req.User,
			Pool:        next.Address,
			AToB:        req.AToB,
			AmountIn:    req.AmountIn,
			AmountOut:   q.AmountOut,
			FeeAmount:   fee,
			FeeBps:      q.FeeBps,
			PriceImpact: q.PriceImpactBps,
			Timestamp:   ts,
		}
		if err := appendEvent(tx, types.EventSwapped, next.Address, ts, event); err != nil {
			return err
		}
		result = SwapResult{Event: event, Pool: next}
		return nil
	})
	if err != nil {
		eff.revert(l)
		return nil, s.reject(l, op, err)
	}

	s.metrics.RecordSwap(result.Event)
	s.metrics.ObservePool(result.Pool)
	l.Info().
		Str("user", req.User.String()).
		Bool("a_to_b", req.AToB).
		Uint64("amount_in", result.Event.AmountIn).
		Uint64("amount_out", result.Event.AmountOut).
		Uint64("fee_amount", result.Event.FeeAmount).
		Uint16("price_impact_bps", result.Event.PriceImpact).
		Msg("Swap executed")
	return &result, nil
}
