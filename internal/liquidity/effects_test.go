package liquidity

import (
	"context"
	"errors"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fluxdex/flux-core/internal/types"
	"github.com/fluxdex/flux-core/internal/vault"
)

var errLedgerDown = errors.New("ledger unavailable")

// flakyLedger wraps the in-memory ledger with hooks that fire mid-workflow.
type flakyLedger struct {
	*vault.MemoryLedger
	beforeMintTo func()
	failMintTo   bool
	failTransfer int // 1-based Transfer call that fails, 0 for none
	transfers    int
}

func (l *flakyLedger) Transfer(ctx context.Context, from, to, authority solana.PublicKey, amount uint64) error {
	l.transfers++
	if l.transfers == l.failTransfer {
		return errLedgerDown
	}
	return l.MemoryLedger.Transfer(ctx, from, to, authority, amount)
}

func (l *flakyLedger) MintTo(ctx context.Context, mint, to, authority solana.PublicKey, amount uint64) error {
	if l.beforeMintTo != nil {
		l.beforeMintTo()
	}
	if l.failMintTo {
		l.failMintTo = false
		return errLedgerDown
	}
	return l.MemoryLedger.MintTo(ctx, mint, to, authority, amount)
}

// withLedger returns a service over the fixture's store whose token calls go through l.
func (f *fixture) withLedger(t *testing.T, l *flakyLedger) *Service {
	t.Helper()
	svc, err := NewService(Config{Store: f.store, Tokens: l, Parameters: testParams, Clock: f.svc.now})
	require.NoError(t, err)
	return svc
}

func (f *fixture) lpSupply(t *testing.T) uint64 {
	t.Helper()
	m, err := f.ledger.Mint(f.ctx, f.pool.LPMint)
	require.NoError(t, err)
	return m.Supply
}

func TestAddLiquidityCompletesWhenCancelledMidway(t *testing.T) {
	f := newFixture(t)
	alice := f.newTrader(t, 1000, 1000)
	ctx, cancel := context.WithCancel(f.ctx)
	defer cancel()
	svc := f.withLedger(t, &flakyLedger{MemoryLedger: f.ledger, beforeMintTo: cancel})

	res, err := svc.AddLiquidity(ctx, f.addRequest(alice, 1000, 1000, 1000, 1000, 0))
	require.NoError(t, err)
	require.ErrorIs(t, ctx.Err(), context.Canceled)
	assert.Equal(t, uint64(1000), res.Event.LPTokensMinted)

	pool := f.currentPool(t)
	assert.Equal(t, uint64(1000), pool.TokenAReserve)
	assert.Equal(t, uint64(1000), pool.LPSupply)
	assert.Equal(t, pool.LPSupply, f.lpSupply(t))
	assert.Equal(t, uint64(1000), f.balance(t, f.pool.TokenAVault))
	assert.Equal(t, uint64(1000), f.balance(t, alice.lp))
	require.NoError(t, f.svc.CheckSupplyInvariant(f.ctx, f.pool.Address))
}

func TestAddLiquidityWithCancelledContextMovesNothing(t *testing.T) {
	f := newFixture(t)
	alice := f.newTrader(t, 1000, 1000)
	ctx, cancel := context.WithCancel(f.ctx)
	cancel()

	_, err := f.svc.AddLiquidity(ctx, f.addRequest(alice, 1000, 1000, 0, 0, 0))
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, uint64(1000), f.balance(t, alice.a))
	assert.Zero(t, f.currentPool(t).LPSupply)
}

func TestAddLiquidityRevertsTokenMovements(t *testing.T) {
	tests := []struct {
		name   string
		ledger func(*vault.MemoryLedger) *flakyLedger
	}{
		{"second transfer fails", func(m *vault.MemoryLedger) *flakyLedger {
			return &flakyLedger{MemoryLedger: m, failTransfer: 2}
		}},
		{"mint fails", func(m *vault.MemoryLedger) *flakyLedger {
			return &flakyLedger{MemoryLedger: m, failMintTo: true}
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			alice := f.newTrader(t, 1000, 1000)
			svc := f.withLedger(t, tt.ledger(f.ledger))

			_, err := svc.AddLiquidity(f.ctx, f.addRequest(alice, 1000, 1000, 0, 0, 0))
			require.ErrorIs(t, err, errLedgerDown)

			assert.Equal(t, uint64(1000), f.balance(t, alice.a))
			assert.Equal(t, uint64(1000), f.balance(t, alice.b))
			assert.Zero(t, f.balance(t, alice.lp))
			assert.Zero(t, f.balance(t, f.pool.TokenAVault))
			assert.Zero(t, f.balance(t, f.pool.TokenBVault))
			assert.Zero(t, f.lpSupply(t))
			assert.Zero(t, f.currentPool(t).LPSupply)
		})
	}
}

func TestRemoveLiquidityRevertsTokenMovements(t *testing.T) {
	f := newFixture(t)
	alice := f.newTrader(t, 1000, 1000)
	_, err := f.svc.AddLiquidity(f.ctx, f.addRequest(alice, 1000, 1000, 0, 0, 0))
	require.NoError(t, err)
	svc := f.withLedger(t, &flakyLedger{MemoryLedger: f.ledger, failTransfer: 2})

	_, err = svc.RemoveLiquidity(f.ctx, f.removeRequest(alice, 400, 0, 0))
	require.ErrorIs(t, err, errLedgerDown)

	assert.Equal(t, uint64(1000), f.balance(t, alice.lp))
	assert.Equal(t, uint64(1000), f.lpSupply(t))
	assert.Zero(t, f.balance(t, alice.a))
	assert.Equal(t, uint64(1000), f.balance(t, f.pool.TokenAVault))
	assert.Equal(t, uint64(1000), f.currentPool(t).LPSupply)
	require.NoError(t, f.svc.CheckSupplyInvariant(f.ctx, f.pool.Address))
}

func TestSwapRevertsInputWhenPayoutFails(t *testing.T) {
	f := newFixture(t)
	lp := f.newTrader(t, 1_000_000, 1_000_000)
	_, err := f.svc.AddLiquidity(f.ctx, f.addRequest(lp, 1_000_000, 1_000_000, 0, 0, 0))
	require.NoError(t, err)
	carol := f.newTrader(t, 1000, 0)
	svc := f.withLedger(t, &flakyLedger{MemoryLedger: f.ledger, failTransfer: 2})

	_, err = svc.Swap(f.ctx, f.swapRequest(carol, true, 1000, 0))
	require.ErrorIs(t, err, errLedgerDown)

	pool := f.currentPool(t)
	assert.Equal(t, uint64(1000), f.balance(t, carol.a))
	assert.Zero(t, f.balance(t, carol.b))
	assert.Equal(t, pool.TokenAReserve, f.balance(t, f.pool.TokenAVault))
	assert.Zero(t, pool.SwapCount)
}

func TestRedepositReopensEmptyPosition(t *testing.T) {
	f := newFixture(t)
	alice := f.newTrader(t, 2000, 2000)
	_, err := f.svc.AddLiquidity(f.ctx, f.addRequest(alice, 1000, 1000, 0, 0, 0))
	require.NoError(t, err)
	_, err = f.svc.ConfigurePosition(f.ctx, types.ConfigurePositionRequest{
		Owner:                 alice.key,
		Pool:                  f.pool.Address,
		StrategyType:          types.StrategyDynamicHedging,
		RiskProfile:           types.RiskAggressive,
		AutoRebalance:         true,
		RebalanceThresholdBps: 9000,
	})
	require.NoError(t, err)

	emptied, err := f.svc.RemoveLiquidity(f.ctx, f.removeRequest(alice, 1000, 0, 0))
	require.NoError(t, err)
	assert.True(t, emptied.Position.IsEmpty())
	assert.True(t, emptied.Position.AutoRebalance, "an emptied position keeps its record")

	res, err := f.svc.AddLiquidity(f.ctx, f.addRequest(alice, 500, 500, 0, 0, 0))
	require.NoError(t, err)
	pos := res.Position
	assert.Equal(t, types.StrategyPassive, pos.StrategyType)
	assert.Equal(t, types.RiskBalanced, pos.RiskProfile)
	assert.False(t, pos.AutoRebalance)
	assert.Equal(t, testParams.DefaultRebalanceThresholdBps, pos.RebalanceThresholdBps)
	assert.False(t, pos.HasRange())
	assert.Equal(t, uint64(500), pos.InitialDepositA)
	assert.Equal(t, uint64(500), pos.InitialDepositB)
	assert.Equal(t, uint64(500), pos.LPTokens)
	require.NoError(t, f.svc.CheckSupplyInvariant(f.ctx, f.pool.Address))
}
