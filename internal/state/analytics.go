package state

import (
	"context"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"

	"github.com/fluxdex/flux-core/internal/types"
)

// ProtocolSummary represents high-level protocol statistics
type ProtocolSummary struct {
	PoolCount        int    `json:"pool_count"`
	OperationalPools int    `json:"operational_pools"`
	PositionCount    int    `json:"position_count"`
	TotalSwaps       uint64 `json:"total_swaps"`
	TotalCycles      int    `json:"total_cycles"`
	LastCycleAt      string `json:"last_cycle_at,omitempty"`
	LastUpdated      string `json:"last_updated"`
}

// PoolSummary pairs a pool with its open positions and latest price.
type PoolSummary struct {
	Pool          types.Pool `json:"pool"`
	PositionCount int        `json:"position_count"`
	ActiveRanges  int        `json:"active_ranges"`
	Price         string     `json:"price"`
}

// GetProtocolSummary aggregates counts across every pool in the store.
func GetProtocolSummary(ctx context.Context, store Store) (*ProtocolSummary, error) {
	summary := &ProtocolSummary{LastUpdated: time.Now().UTC().Format(time.RFC3339)}

	err := store.View(ctx, func(tx Tx) error {
		pools, err := tx.ListPools()
		if err != nil {
			return err
		}
		summary.PoolCount = len(pools)
		for _, p := range pools {
			if p.IsOperational() {
				summary.OperationalPools++
			}
			summary.TotalSwaps += p.SwapCount
			positions, err := tx.ListPositions(p.Address)
			if err != nil {
				return err
			}
			for _, pos := range positions {
				if !pos.IsEmpty() {
					summary.PositionCount++
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build protocol summary: %w", err)
	}

	cycles, err := store.GetRecentCycles(ctx, 1)
	if err != nil {
		return nil, fmt.Errorf("failed to load latest cycle: %w", err)
	}
	if len(cycles) > 0 {
		summary.TotalCycles = cycles[0].CycleNumber
		summary.LastCycleAt = cycles[0].Timestamp.UTC().Format(time.RFC3339)
	}
	return summary, nil
}

// GetPoolSummary loads one pool together with its position statistics.
func GetPoolSummary(ctx context.Context, store Store, addr solana.PublicKey) (*PoolSummary, error) {
	summary := &PoolSummary{}
	err := store.View(ctx, func(tx Tx) error {
		pool, err := tx.GetPool(addr)
		if err != nil {
			return err
		}
		summary.Pool = pool
		summary.Price = pool.CurrentPrice().String()

		positions, err := tx.ListPositions(addr)
		if err != nil {
			return err
		}
		for _, pos := range positions {
			if pos.IsEmpty() {
				continue
			}
			summary.PositionCount++
			if pos.HasRange() {
				summary.ActiveRanges++
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return summary, nil
}
