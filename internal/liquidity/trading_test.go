package liquidity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fluxdex/flux-core/internal/dexerrors"
	"github.com/fluxdex/flux-core/internal/fixedpoint"
	"github.com/fluxdex/flux-core/internal/types"
)

func (f *fixture) removeRequest(tr trader, lp, minA, minB uint64) types.RemoveLiquidityRequest {
	return types.RemoveLiquidityRequest{
		User:        tr.key,
		Pool:        f.pool.Address,
		UserTokenA:  tr.a,
		UserTokenB:  tr.b,
		UserLPToken: tr.lp,
		LPTokens:    lp,
		MinAmountA:  minA,
		MinAmountB:  minB,
	}
}

func (f *fixture) swapRequest(tr trader, aToB bool, amountIn, minOut uint64) types.SwapRequest {
	req := types.SwapRequest{
		User:            tr.key,
		Pool:            f.pool.Address,
		UserSource:      tr.a,
		UserDestination: tr.b,
		AToB:            aToB,
		AmountIn:        amountIn,
		MinAmountOut:    minOut,
	}
	if !aToB {
		req.UserSource, req.UserDestination = tr.b, tr.a
	}
	return req
}

func TestRemoveLiquidity(t *testing.T) {
	f := newFixture(t)
	alice := f.newTrader(t, 1000, 1000)
	_, err := f.svc.AddLiquidity(f.ctx, f.addRequest(alice, 1000, 1000, 0, 0, 0))
	require.NoError(t, err)

	res, err := f.svc.RemoveLiquidity(f.ctx, f.removeRequest(alice, 400, 400, 400))
	require.NoError(t, err)
	assert.Equal(t, uint64(400), res.Event.AmountA)
	assert.Equal(t, uint64(400), res.Event.AmountB)
	assert.Equal(t, uint64(600), res.Pool.TokenAReserve)
	assert.Equal(t, uint64(600), res.Pool.LPSupply)
	assert.Equal(t, uint64(600), res.Position.LPTokens)
	assert.Equal(t, uint64(400), f.balance(t, alice.a))
	assert.Equal(t, uint64(600), f.balance(t, alice.lp))
	require.NoError(t, f.svc.CheckSupplyInvariant(f.ctx, f.pool.Address))

	res, err = f.svc.RemoveLiquidity(f.ctx, f.removeRequest(alice, 600, 0, 0))
	require.NoError(t, err)
	assert.Zero(t, res.Pool.LPSupply)
	assert.Zero(t, res.Pool.TokenAReserve)
	assert.Zero(t, res.Pool.TokenBReserve)
	assert.Equal(t, uint64(1000), f.balance(t, alice.a))
	assert.Equal(t, uint64(1000), f.balance(t, alice.b))

	pos, err := f.svc.GetPosition(f.ctx, alice.key, f.pool.Address)
	require.NoError(t, err, "withdrawn positions keep their record")
	assert.True(t, pos.IsEmpty())
	require.NoError(t, f.svc.CheckSupplyInvariant(f.ctx, f.pool.Address))

	events, err := f.svc.ListEvents(f.ctx, f.pool.Address, 1)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, types.EventLiquidityRemoved, events[0].Type)
}

func TestRemoveLiquidityRejections(t *testing.T) {
	f := newFixture(t)
	alice := f.newTrader(t, 1000, 1000)
	bob := f.newTrader(t, 0, 0)
	_, err := f.svc.AddLiquidity(f.ctx, f.addRequest(alice, 1000, 1000, 0, 0, 0))
	require.NoError(t, err)

	tests := []struct {
		name string
		req  types.RemoveLiquidityRequest
		want error
	}{
		{"zero amount", f.removeRequest(alice, 0, 0, 0), dexerrors.ErrInvalidInputAmount},
		{"no position", f.removeRequest(bob, 10, 0, 0), dexerrors.ErrPositionNotFound},
		{"more than held", f.removeRequest(alice, 1001, 0, 0), dexerrors.ErrInsufficientLiquidity},
		{"below minimum", f.removeRequest(alice, 100, 101, 0), dexerrors.ErrSlippageExceeded},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.RemoveLiquidity(f.ctx, tt.req)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	assert.Equal(t, uint64(1000), f.currentPool(t).LPSupply)
	assert.Equal(t, uint64(1000), f.balance(t, alice.lp))
}

func TestDepositRedeemRoundTripNeverProfits(t *testing.T) {
	f := newFixture(t)
	alice := f.newTrader(t, 1_000_000, 3_000_000)
	bob := f.newTrader(t, 777, 5000)

	_, err := f.svc.AddLiquidity(f.ctx, f.addRequest(alice, 1_000_000, 3_000_000, 0, 0, 0))
	require.NoError(t, err)

	added, err := f.svc.AddLiquidity(f.ctx, f.addRequest(bob, 777, 5000, 0, 0, 0))
	require.NoError(t, err)
	removed, err := f.svc.RemoveLiquidity(f.ctx, f.removeRequest(bob, added.Event.LPTokensMinted, 0, 0))
	require.NoError(t, err)

	assert.LessOrEqual(t, removed.Event.AmountA, added.Event.AmountA)
	assert.LessOrEqual(t, removed.Event.AmountB, added.Event.AmountB)
	require.NoError(t, f.svc.CheckSupplyInvariant(f.ctx, f.pool.Address))
}

func TestSwap(t *testing.T) {
	f := newFixture(t)
	lp := f.newTrader(t, 1_000_000, 1_000_000)
	_, err := f.svc.AddLiquidity(f.ctx, f.addRequest(lp, 1_000_000, 1_000_000, 0, 0, 0))
	require.NoError(t, err)
	carol := f.newTrader(t, 10_000, 0)

	quote, err := f.svc.Quote(f.ctx, f.pool.Address, true, 1000)
	require.NoError(t, err)
	assert.Equal(t, uint64(996), quote.AmountOut)
	assert.Equal(t, uint16(10), quote.PriceImpactBps)
	assert.Equal(t, uint16(30), quote.FeeBps)

	_, err = f.svc.Swap(f.ctx, f.swapRequest(carol, true, 1000, 997))
	require.ErrorIs(t, err, dexerrors.ErrMinimumOutputNotMet)

	res, err := f.svc.Swap(f.ctx, f.swapRequest(carol, true, 1000, 996))
	require.NoError(t, err)
	assert.Equal(t, quote.AmountOut, res.Event.AmountOut)
	assert.Equal(t, uint64(3), res.Event.FeeAmount)
	assert.Equal(t, uint64(1_001_000), res.Pool.TokenAReserve)
	assert.Equal(t, uint64(999_004), res.Pool.TokenBReserve)
	assert.Equal(t, uint64(1), res.Pool.SwapCount)
	assert.Equal(t, "1000", res.Pool.TotalVolumeA.String())
	assert.Equal(t, "3", res.Pool.TotalFeesCollectedA.String())
	assert.Equal(t, "0", res.Pool.TotalVolumeB.String())
	assert.Equal(t, testNow.Unix(), res.Pool.LastPriceUpdate)

	assert.Equal(t, uint64(9000), f.balance(t, carol.a))
	assert.Equal(t, uint64(996), f.balance(t, carol.b))
	assert.Equal(t, res.Pool.TokenBReserve, f.balance(t, f.pool.TokenBVault))

	back, err := f.svc.Swap(f.ctx, f.swapRequest(carol, false, 996, 0))
	require.NoError(t, err)
	assert.Less(t, back.Event.AmountOut, uint64(1000), "a round trip pays the fee twice")
	assert.Equal(t, "996", back.Pool.TotalVolumeB.String())

	prices, err := f.svc.RecentPrices(f.ctx, f.pool.Address, 10)
	require.NoError(t, err)
	require.Len(t, prices, 3)
	assert.Equal(t, back.Pool.CurrentPrice(), prices[2].Price)
	assert.Equal(t, fixedpoint.One, prices[0].Price)
}

func TestSwapRejections(t *testing.T) {
	f := newFixture(t)
	lp := f.newTrader(t, 1_000_000, 1_000_000)
	_, err := f.svc.AddLiquidity(f.ctx, f.addRequest(lp, 1_000_000, 1_000_000, 0, 0, 0))
	require.NoError(t, err)
	carol := f.newTrader(t, 100, 0)

	_, err = f.svc.Swap(f.ctx, f.swapRequest(carol, true, 0, 0))
	assert.ErrorIs(t, err, dexerrors.ErrInvalidInputAmount)

	_, err = f.svc.Swap(f.ctx, f.swapRequest(carol, true, 101, 0))
	assert.ErrorIs(t, err, dexerrors.ErrInsufficientLiquidity)

	_, err = f.svc.Quote(f.ctx, f.pool.Address, true, 1)
	assert.ErrorIs(t, err, dexerrors.ErrInvalidInputAmount, "one unit rounds to zero output")
	_, err = f.svc.Swap(f.ctx, f.swapRequest(carol, true, 1, 0))
	assert.ErrorIs(t, err, dexerrors.ErrInvalidInputAmount)
	assert.Equal(t, uint64(100), f.balance(t, carol.a))

	strict, err := NewService(Config{
		Store:      f.store,
		Tokens:     f.ledger,
		Parameters: types.ProtocolParameters{MaxPriceImpactBps: 1},
		Clock:      f.svc.now,
	})
	require.NoError(t, err)
	_, err = strict.Swap(f.ctx, f.swapRequest(carol, true, 100, 0))
	assert.NoError(t, err, "impact at the limit is allowed")

	whale := f.newTrader(t, 500_000, 0)
	_, err = strict.Swap(f.ctx, f.swapRequest(whale, true, 500_000, 0))
	assert.ErrorIs(t, err, dexerrors.ErrPriceImpactTooHigh)
	assert.Equal(t, uint64(500_000), f.balance(t, whale.a))

	_, err = f.svc.Quote(f.ctx, newKey(), true, 10)
	assert.ErrorIs(t, err, dexerrors.ErrAccountNotFound)
}

func TestSwapOnEmptyPool(t *testing.T) {
	f := newFixture(t)
	carol := f.newTrader(t, 100, 0)

	_, err := f.svc.Swap(f.ctx, f.swapRequest(carol, true, 10, 0))
	assert.ErrorIs(t, err, dexerrors.ErrInsufficientLiquidity)
}
