/*

This file contains the tunable protocol parameters used by the liquidity manager
and the automated range/fee cycle.

*/

package types

// ProtocolParameters holds thresholds and defaults that can be versioned in the store.
type ProtocolParameters struct {
	DefaultRebalanceThresholdBps uint16  `json:"default_rebalance_threshold_bps"` // Threshold assigned to new positions.
	RecommendedMaxFeeBps         uint16  `json:"recommended_max_fee_bps"`         // Soft ceiling for base fees; pools above it are logged.
	DefaultBatchSize             uint16  `json:"default_batch_size"`              // Batch size used when MEV protection is switched on.
	PriceHistoryWindow           int     `json:"price_history_window"`            // Observations fed into the volatility score.
	AnnualizationFactor          float64 `json:"annualization_factor"`            // Periods per year for the volatility estimate.
	VolatilityScoreCap           float64 `json:"volatility_score_cap"`            // Annualized volatility that maps to a score of 10000.
	LiquidityDepthTarget         uint64  `json:"liquidity_depth_target"`          // Geometric-mean reserve that maps to a liquidity score of 10000.
	MaxPriceImpactBps            uint16  `json:"max_price_impact_bps"`            // Swaps above this impact are rejected. 10000 disables the check.
}
