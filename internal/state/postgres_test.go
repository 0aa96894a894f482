package state

import (
	"context"
	"encoding/json"
	"math"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"lukechampine.com/uint128"

	"github.com/fluxdex/flux-core/internal/dexerrors"
	"github.com/fluxdex/flux-core/internal/fixedpoint"
	"github.com/fluxdex/flux-core/internal/types"
)

// openTestStore connects to FLUX_TEST_DATABASE_URL and resets the schema.
func openTestStore(t *testing.T) *PostgresStore {
	t.Helper()
	dsn := os.Getenv("FLUX_TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("FLUX_TEST_DATABASE_URL not set")
	}
	db, err := OpenDB(dsn)
	require.NoError(t, err)
	require.NoError(t, DropSchema(db))
	require.NoError(t, EnsureSchema(db))

	store := NewPostgresStore(db)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestPostgresStorePoolRoundTrip(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	pool := samplePool()
	pool.TokenAReserve = math.MaxUint64
	pool.TokenBReserve = 12345
	pool.LPSupply = math.MaxUint64 - 1
	pool.TotalVolumeA = types.Counter{Uint128: uint128.Max}
	pool.SwapCount = 3

	require.NoError(t, store.Update(ctx, func(tx Tx) error { return tx.CreatePool(pool) }))
	err := store.Update(ctx, func(tx Tx) error { return tx.CreatePool(pool) })
	require.ErrorIs(t, err, dexerrors.ErrAccountAlreadyInitialized)

	require.NoError(t, store.View(ctx, func(tx Tx) error {
		got, err := tx.GetPool(pool.Address)
		require.NoError(t, err)
		assert.Equal(t, pool, got)
		return nil
	}))
}

func TestPostgresStoreRollsBack(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	pool := samplePool()
	require.NoError(t, store.Update(ctx, func(tx Tx) error { return tx.CreatePool(pool) }))

	err := store.Update(ctx, func(tx Tx) error {
		pool.LPSupply = 99
		pool.TokenAReserve = 99
		pool.TokenBReserve = 99
		if err := tx.PutPool(pool); err != nil {
			return err
		}
		return dexerrors.ErrSlippageExceeded
	})
	require.ErrorIs(t, err, dexerrors.ErrSlippageExceeded)

	require.NoError(t, store.View(ctx, func(tx Tx) error {
		got, err := tx.GetPool(pool.Address)
		require.NoError(t, err)
		assert.Zero(t, got.LPSupply)
		return nil
	}))
}

func TestPostgresStorePositionsEventsPrices(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	pool := samplePool()

	lower, err := fixedpoint.Parse("0.833333333333333333")
	require.NoError(t, err)
	pos := types.Position{
		Address:               newKey(),
		Owner:                 newKey(),
		Pool:                  pool.Address,
		LPTokens:              1000,
		StrategyType:          types.StrategyActive,
		RiskProfile:           types.RiskAggressive,
		PriceRangeLower:       lower,
		PriceRangeUpper:       fixedpoint.FromUint64(2),
		AutoRebalance:         true,
		RebalanceThresholdBps: 500,
		UnrealizedPnLA:        -5,
		CreatedAt:             time.Now().Unix(),
	}
	payload, _ := json.Marshal(types.LiquidityAdded{Pool: pool.Address, AmountA: 1})

	require.NoError(t, store.Update(ctx, func(tx Tx) error {
		require.NoError(t, tx.CreatePool(pool))
		require.NoError(t, tx.PutPosition(pos))
		require.NoError(t, tx.AppendEvent(types.EventRecord{ID: uuid.NewString(), Type: types.EventLiquidityAdded, Pool: pool.Address, Timestamp: 1, Payload: payload}))
		require.NoError(t, tx.AppendEvent(types.EventRecord{ID: uuid.NewString(), Type: types.EventSwapped, Pool: pool.Address, Timestamp: 2, Payload: payload}))
		require.NoError(t, tx.AppendPriceObservation(types.PriceObservation{Pool: pool.Address, Price: fixedpoint.FromUint64(1), Timestamp: 1}))
		return tx.AppendPriceObservation(types.PriceObservation{Pool: pool.Address, Price: fixedpoint.FromUint64(2), Timestamp: 2})
	}))

	require.NoError(t, store.View(ctx, func(tx Tx) error {
		got, found, err := tx.GetPosition(pos.Address)
		require.NoError(t, err)
		require.True(t, found)
		assert.Equal(t, pos, got)

		_, found, err = tx.GetPosition(newKey())
		require.NoError(t, err)
		assert.False(t, found)

		events, err := tx.ListEvents(pool.Address, 10)
		require.NoError(t, err)
		require.Len(t, events, 2)
		assert.Equal(t, types.EventSwapped, events[0].Type)

		prices, err := tx.RecentPrices(pool.Address, 10)
		require.NoError(t, err)
		require.Len(t, prices, 2)
		assert.Equal(t, int64(1), prices[0].Timestamp)
		return nil
	}))
}

func TestPostgresStoreParametersAndCycles(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	params := types.ProtocolParameters{
		DefaultRebalanceThresholdBps: 500,
		RecommendedMaxFeeBps:         1000,
		DefaultBatchSize:             10,
		PriceHistoryWindow:           24,
		AnnualizationFactor:          8760,
		VolatilityScoreCap:           2,
		LiquidityDepthTarget:         1_000_000,
		MaxPriceImpactBps:            10_000,
	}
	_, err := store.SaveProtocolParameters(ctx, params, "default", 1, true)
	require.NoError(t, err)
	got, err := store.LoadActiveProtocolParameters(ctx, "default")
	require.NoError(t, err)
	assert.Equal(t, params, *got)

	n, err := store.IncrementCycleNumber(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = store.SaveCycleSnapshot(ctx, types.CycleSnapshot{
		CycleNumber: n,
		Timestamp:   time.Now(),
		Errors:      []string{"pool x: stale"},
		FeeUpdates:  []types.PoolFeeUpdated{{OldFeeBps: 30, NewFeeBps: 40}},
	})
	require.NoError(t, err)

	cycles, err := store.GetRecentCycles(ctx, 5)
	require.NoError(t, err)
	require.Len(t, cycles, 1)
	assert.Equal(t, []string{"pool x: stale"}, cycles[0].Errors)
	assert.Equal(t, uint16(40), cycles[0].FeeUpdates[0].NewFeeBps)

	require.NoError(t, store.ResetCycleNumber(ctx, 0))
	current, err := store.GetCurrentCycleNumber(ctx)
	require.NoError(t, err)
	assert.Zero(t, current)
}
