/*

Pool scores on the 0..10000 basis-point scale consumed by the dynamic fee and
range engines.

*/

package analyzer

import (
	"math"

	"lukechampine.com/uint128"

	"github.com/fluxdex/flux-core/internal/ammmath"
	"github.com/fluxdex/flux-core/internal/logger"
	"github.com/fluxdex/flux-core/internal/types"
)

const maxScore uint16 = 10_000

// VolatilityScore maps annualized volatility to basis points, where volatilityCap
// and anything above it score 10000. Fewer than two prices score zero.
func VolatilityScore(prices []types.PriceData, annualizationFactor, volatilityCap float64) uint16 {
	vol, err := CalculateVolatility(prices, annualizationFactor)
	if err != nil {
		logger.Logger.Debug().Err(err).Int("prices", len(prices)).Msg("Volatility score defaulted to zero")
		return 0
	}
	if volatilityCap <= 0 {
		return maxScore
	}
	return clampScore(vol / volatilityCap * float64(maxScore))
}

// LiquidityScore compares the geometric mean of the reserves with depthTarget.
// A pool at or above the target scores 10000; an empty pool scores zero.
func LiquidityScore(reserveA, reserveB, depthTarget uint64) uint16 {
	if reserveA == 0 || reserveB == 0 {
		return 0
	}
	if depthTarget == 0 {
		return maxScore
	}
	depth := ammmath.SqrtUint128(uint128.From64(reserveA).Mul64(reserveB))
	if depth >= depthTarget {
		return maxScore
	}
	// depth < depthTarget, so the product fits after the division below.
	return uint16(uint128.From64(depth).Mul64(uint64(maxScore)).Div64(depthTarget).Lo)
}

func clampScore(v float64) uint16 {
	switch {
	case math.IsNaN(v) || v <= 0:
		return 0
	case v >= float64(maxScore):
		return maxScore
	default:
		return uint16(v)
	}
}
