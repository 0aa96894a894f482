package state

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fluxdex/flux-core/internal/dexerrors"
	"github.com/fluxdex/flux-core/internal/fixedpoint"
	"github.com/fluxdex/flux-core/internal/types"
)

func newKey() solana.PublicKey {
	return solana.NewWallet().PublicKey()
}

func samplePool() types.Pool {
	return types.Pool{
		Address:       newKey(),
		Authority:     newKey(),
		TokenAMint:    newKey(),
		TokenBMint:    newKey(),
		TokenAVault:   newKey(),
		TokenBVault:   newKey(),
		LPMint:        newKey(),
		BaseFeeBps:    30,
		CurrentFeeBps: 30,
		BatchSize:     1,
		CreatedAt:     time.Now().Unix(),
	}
}

func TestMemoryStoreCreateAndGetPool(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	pool := samplePool()

	require.NoError(t, store.Update(ctx, func(tx Tx) error { return tx.CreatePool(pool) }))

	err := store.Update(ctx, func(tx Tx) error { return tx.CreatePool(pool) })
	require.ErrorIs(t, err, dexerrors.ErrAccountAlreadyInitialized)

	require.NoError(t, store.View(ctx, func(tx Tx) error {
		got, err := tx.GetPool(pool.Address)
		require.NoError(t, err)
		assert.Equal(t, pool, got)

		_, err = tx.GetPool(newKey())
		assert.ErrorIs(t, err, dexerrors.ErrAccountNotFound)
		return nil
	}))
}

func TestMemoryStoreRollsBackOnError(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	pool := samplePool()
	require.NoError(t, store.Update(ctx, func(tx Tx) error { return tx.CreatePool(pool) }))

	boom := errors.New("boom")
	err := store.Update(ctx, func(tx Tx) error {
		updated := pool
		updated.TokenAReserve = 1000
		updated.TokenBReserve = 1000
		updated.LPSupply = 1000
		require.NoError(t, tx.PutPool(updated))
		require.NoError(t, tx.PutPosition(types.Position{Address: newKey(), Pool: pool.Address, LPTokens: 1000}))
		require.NoError(t, tx.AppendEvent(types.EventRecord{ID: "1", Type: types.EventLiquidityAdded, Pool: pool.Address}))

		// Writes are visible inside the unit of work.
		inside, err := tx.GetPool(pool.Address)
		require.NoError(t, err)
		assert.Equal(t, uint64(1000), inside.LPSupply)
		return boom
	})
	require.ErrorIs(t, err, boom)

	require.NoError(t, store.View(ctx, func(tx Tx) error {
		got, err := tx.GetPool(pool.Address)
		require.NoError(t, err)
		assert.Zero(t, got.LPSupply)

		positions, err := tx.ListPositions(pool.Address)
		require.NoError(t, err)
		assert.Empty(t, positions)

		events, err := tx.ListEvents(pool.Address, 10)
		require.NoError(t, err)
		assert.Empty(t, events)
		return nil
	}))
}

func TestMemoryStoreViewIsReadOnly(t *testing.T) {
	store := NewMemoryStore()
	err := store.View(context.Background(), func(tx Tx) error {
		return tx.CreatePool(samplePool())
	})
	require.Error(t, err)
}

func TestMemoryStorePositionRequiresPool(t *testing.T) {
	store := NewMemoryStore()
	err := store.Update(context.Background(), func(tx Tx) error {
		return tx.PutPosition(types.Position{Address: newKey(), Pool: newKey()})
	})
	require.ErrorIs(t, err, dexerrors.ErrAccountNotFound)
}

func TestMemoryStoreEventsAndPrices(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	pool := samplePool()
	other := samplePool()

	require.NoError(t, store.Update(ctx, func(tx Tx) error {
		require.NoError(t, tx.CreatePool(pool))
		require.NoError(t, tx.CreatePool(other))
		for i := 1; i <= 5; i++ {
			payload, _ := json.Marshal(map[string]int{"i": i})
			require.NoError(t, tx.AppendEvent(types.EventRecord{ID: string(rune('a' + i)), Type: types.EventSwapped, Pool: pool.Address, Timestamp: int64(i), Payload: payload}))
			require.NoError(t, tx.AppendPriceObservation(types.PriceObservation{Pool: pool.Address, Price: fixedpoint.FromUint64(uint64(i)), Timestamp: int64(i)}))
		}
		return tx.AppendEvent(types.EventRecord{ID: "z", Type: types.EventSwapped, Pool: other.Address, Timestamp: 1})
	}))

	require.NoError(t, store.View(ctx, func(tx Tx) error {
		events, err := tx.ListEvents(pool.Address, 3)
		require.NoError(t, err)
		require.Len(t, events, 3)
		assert.Equal(t, int64(5), events[0].Timestamp)
		assert.Equal(t, int64(3), events[2].Timestamp)

		prices, err := tx.RecentPrices(pool.Address, 2)
		require.NoError(t, err)
		require.Len(t, prices, 2)
		assert.Equal(t, int64(4), prices[0].Timestamp)
		assert.Equal(t, int64(5), prices[1].Timestamp)

		otherEvents, err := tx.ListEvents(other.Address, 0)
		require.NoError(t, err)
		assert.Len(t, otherEvents, 1)
		return nil
	}))
}

func TestMemoryStoreProtocolParameters(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	_, err := store.LoadActiveProtocolParameters(ctx, "default")
	require.Error(t, err)

	v1 := types.ProtocolParameters{DefaultRebalanceThresholdBps: 500, PriceHistoryWindow: 10}
	v2 := types.ProtocolParameters{DefaultRebalanceThresholdBps: 300, PriceHistoryWindow: 20}

	_, err = store.SaveProtocolParameters(ctx, v1, "default", 1, true)
	require.NoError(t, err)
	_, err = store.SaveProtocolParameters(ctx, v1, "default", 1, true)
	require.Error(t, err, "duplicate version")

	_, err = store.SaveProtocolParameters(ctx, v2, "default", 2, false)
	require.NoError(t, err)
	got, err := store.LoadActiveProtocolParameters(ctx, "default")
	require.NoError(t, err)
	assert.Equal(t, v1, *got)

	_, err = store.SaveProtocolParameters(ctx, v2, "default", 3, true)
	require.NoError(t, err)
	got, err = store.LoadActiveProtocolParameters(ctx, "default")
	require.NoError(t, err)
	assert.Equal(t, v2, *got)
}

func TestMemoryStoreCycles(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	for i := 0; i < 3; i++ {
		n, err := store.IncrementCycleNumber(ctx)
		require.NoError(t, err)
		_, err = store.SaveCycleSnapshot(ctx, types.CycleSnapshot{CycleNumber: n, Timestamp: time.Now()})
		require.NoError(t, err)
	}

	cycles, err := store.GetRecentCycles(ctx, 2)
	require.NoError(t, err)
	require.Len(t, cycles, 2)
	assert.Equal(t, 3, cycles[0].CycleNumber)
	assert.Equal(t, 2, cycles[1].CycleNumber)

	current, err := store.GetCurrentCycleNumber(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, current)
}

func TestMemoryStoreCommitsAfterCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	store := NewMemoryStore()
	pool := samplePool()

	err := store.Update(ctx, func(tx Tx) error {
		require.NoError(t, tx.CreatePool(pool))
		cancel()
		return nil
	})
	require.NoError(t, err)

	require.NoError(t, store.View(context.Background(), func(tx Tx) error {
		_, err := tx.GetPool(pool.Address)
		return err
	}))

	err = store.Update(ctx, func(tx Tx) error {
		t.Fatal("a cancelled context must not start a unit of work")
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestProtocolSummary(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	pool := samplePool()
	paused := samplePool()
	paused.Paused = true
	pool.SwapCount = 7

	require.NoError(t, store.Update(ctx, func(tx Tx) error {
		require.NoError(t, tx.CreatePool(pool))
		require.NoError(t, tx.CreatePool(paused))
		require.NoError(t, tx.PutPosition(types.Position{Address: newKey(), Pool: pool.Address, LPTokens: 10}))
		return tx.PutPosition(types.Position{Address: newKey(), Pool: pool.Address})
	}))

	summary, err := GetProtocolSummary(ctx, store)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.PoolCount)
	assert.Equal(t, 1, summary.OperationalPools)
	assert.Equal(t, 1, summary.PositionCount)
	assert.Equal(t, uint64(7), summary.TotalSwaps)

	poolSummary, err := GetPoolSummary(ctx, store, pool.Address)
	require.NoError(t, err)
	assert.Equal(t, 1, poolSummary.PositionCount)
	assert.Equal(t, "0.000000000000000000", poolSummary.Price)

	_, err = GetPoolSummary(ctx, store, newKey())
	require.ErrorIs(t, err, dexerrors.ErrAccountNotFound)
}
