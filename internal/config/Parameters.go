/*

This file contains the default protocol parameters. They are saved to the store the
first time the daemon starts and loaded from there afterwards.

*/

package config

import (
	"github.com/fluxdex/flux-core/internal/types"
)

// DefaultProtocolParameters provides a baseline set of parameters for the liquidity
// service and the management cycle. These values are used if no active parameters
// are found in the store during initialization.
var DefaultProtocolParameters = types.ProtocolParameters{
	// --- Positions ---
	DefaultRebalanceThresholdBps: 500, // New positions rebalance within 5% of the range span from a bound.

	// --- Fees ---
	RecommendedMaxFeeBps: 1_000, // Base fees above 10% are accepted but logged.
	MaxPriceImpactBps:    1_000, // Reject swaps that move the price by more than 10%.

	// --- MEV protection ---
	DefaultBatchSize: 10, // Batch size applied when a pool turns MEV protection on.

	// --- Volatility and depth scoring ---
	PriceHistoryWindow:   48,        // Most recent price observations fed into the volatility score.
	AnnualizationFactor:  8_760,     // Observations are treated as hourly.
	VolatilityScoreCap:   1.5,       // 150% annualized volatility maps to the maximum score.
	LiquidityDepthTarget: 1_000_000, // Geometric-mean reserve that earns the full liquidity score.
}
