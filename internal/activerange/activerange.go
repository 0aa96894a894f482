package activerange

import (
	"github.com/holiman/uint256"
	"lukechampine.com/uint128"

	"github.com/fluxdex/flux-core/internal/ammmath"
	"github.com/fluxdex/flux-core/internal/dexerrors"
	"github.com/fluxdex/flux-core/internal/fixedpoint"
)

// Risk tiers accepted by CalculateOptimalRange.
const (
	TierConservative uint8 = 1
	TierBalanced     uint8 = 2
	TierAggressive   uint8 = 3
)

// VolatilityWidening is the extra width, in bps of the base width, added per bps of volatility.
const VolatilityWidening uint64 = 50

var baseWidthBps = map[uint8]uint64{
	TierConservative: 2000,
	TierBalanced:     3000,
	TierAggressive:   5000,
}

// BaseWidthBps returns the half-width of the range for a risk tier before volatility is applied.
func BaseWidthBps(tier uint8) (uint64, error) {
	w, ok := baseWidthBps[tier]
	if !ok {
		return 0, dexerrors.ErrInvalidRiskProfile.Wrapf("risk tier %d", tier)
	}
	return w, nil
}

// CalculateOptimalRange brackets price by a multiplier derived from the risk tier
// and the volatility score: lower = price/m, upper = price·m.
func CalculateOptimalRange(price fixedpoint.FixedPoint, volatilityScore uint16, tier uint8) (fixedpoint.FixedPoint, fixedpoint.FixedPoint, error) {
	base, err := BaseWidthBps(tier)
	if err != nil {
		return fixedpoint.Zero, fixedpoint.Zero, err
	}

	volFactor := ammmath.BpsDenominator + uint64(volatilityScore)*VolatilityWidening
	adjusted := base * volFactor / ammmath.BpsDenominator

	// 1 + adjusted/10000
	widen := uint128.From64(adjusted).Mul64(fixedpoint.ScaleUint64).Div64(ammmath.BpsDenominator)
	multiplier := fixedpoint.New(fixedpoint.Scale.Add(widen))

	lower, err := price.Div(multiplier)
	if err != nil {
		return fixedpoint.Zero, fixedpoint.Zero, err
	}
	upper, err := price.Mul(multiplier)
	if err != nil {
		return fixedpoint.Zero, fixedpoint.Zero, err
	}
	return lower, upper, nil
}

// ShouldRebalance reports whether price sits within thresholdBps of the range span
// from either bound, or outside the range entirely.
func ShouldRebalance(price, lower, upper fixedpoint.FixedPoint, thresholdBps uint16) (bool, error) {
	if upper.Cmp(lower) < 0 {
		return false, dexerrors.ErrInvalidPriceRange.Wrapf("upper %s below lower %s", upper, lower)
	}
	if uint64(thresholdBps) > ammmath.BpsDenominator {
		return false, dexerrors.ErrInvalidCalculation.Wrapf("rebalance threshold %d bps exceeds %d", thresholdBps, ammmath.BpsDenominator)
	}

	span, err := upper.Sub(lower)
	if err != nil {
		return false, err
	}
	thr := new(uint256.Int).Mul(span.Uint256(), uint256.NewInt(uint64(thresholdBps)))
	thr.Div(thr, uint256.NewInt(ammmath.BpsDenominator))
	// thr <= span, so it fits in 128 bits
	threshold := fixedpoint.New(uint128.New(thr[0], thr[1]))

	lowerEdge, err := lower.Add(threshold)
	if err != nil {
		return false, err
	}
	upperEdge, err := upper.Sub(threshold)
	if err != nil {
		return false, err
	}
	return price.Cmp(lowerEdge) <= 0 || price.Cmp(upperEdge) >= 0, nil
}
