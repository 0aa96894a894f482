package ammmath

import (
	"github.com/holiman/uint256"

	"github.com/fluxdex/flux-core/internal/dexerrors"
)

const (
	// BpsDenominator is 100% expressed in basis points.
	BpsDenominator uint64 = 10_000

	// MinLiquidityThreshold is the liquidity score below which the dynamic fee adds a depth premium.
	MinLiquidityThreshold uint16 = 1_000
)

var bps256 = uint256.NewInt(BpsDenominator)

// CalculateAMMOutput returns the constant-product output for amountIn with the fee
// taken from the input side:
//
//	out = in·(10000-fee)·Rout / (Rin·10000 + in·(10000-fee))
func CalculateAMMOutput(amountIn, reserveIn, reserveOut uint64, feeBps uint16) (uint64, error) {
	if amountIn == 0 {
		return 0, dexerrors.ErrInvalidInputAmount.Wrap("swap amount is zero")
	}
	if reserveIn == 0 || reserveOut == 0 {
		return 0, dexerrors.ErrInsufficientLiquidity.Wrap("pool reserve is empty")
	}
	if uint64(feeBps) > BpsDenominator {
		return 0, dexerrors.ErrInvalidFeeTier.Wrapf("fee %d bps exceeds %d", feeBps, BpsDenominator)
	}

	inWithFee := new(uint256.Int).Mul(uint256.NewInt(amountIn), uint256.NewInt(BpsDenominator-uint64(feeBps)))
	numerator := new(uint256.Int).Mul(inWithFee, uint256.NewInt(reserveOut))
	denominator := new(uint256.Int).Mul(uint256.NewInt(reserveIn), bps256)
	denominator.Add(denominator, inWithFee)

	out := numerator.Div(numerator, denominator)
	if !out.IsUint64() {
		return 0, dexerrors.ErrOverflow.Wrap("swap output exceeds 64 bits")
	}
	return out.Uint64(), nil
}

// CalculateDynamicFee raises the base fee with volatility and with thin liquidity.
// Both scores are in basis points. The result saturates at 10000.
func CalculateDynamicFee(baseFeeBps, volatilityScore, liquidityScore uint16) (uint16, error) {
	if uint64(baseFeeBps) > BpsDenominator {
		return 0, dexerrors.ErrInvalidFeeTier.Wrapf("base fee %d bps exceeds %d", baseFeeBps, BpsDenominator)
	}
	if uint64(volatilityScore) > BpsDenominator || uint64(liquidityScore) > BpsDenominator {
		return 0, dexerrors.ErrInvalidCalculation.Wrapf("score out of range: volatility=%d liquidity=%d", volatilityScore, liquidityScore)
	}

	fee := uint64(baseFeeBps) + uint64(volatilityScore)/100
	if liquidityScore < MinLiquidityThreshold {
		fee += uint64(MinLiquidityThreshold-liquidityScore) / 100
	}
	if fee > BpsDenominator {
		fee = BpsDenominator
	}
	return uint16(fee), nil
}

// CalculatePriceImpact estimates the move in the output reserve caused by a fee-less
// trade of amountIn, in basis points of the output reserve.
func CalculatePriceImpact(amountIn, reserveIn, reserveOut uint64) (uint16, error) {
	if amountIn == 0 {
		return 0, dexerrors.ErrInvalidInputAmount.Wrap("swap amount is zero")
	}
	if reserveIn == 0 || reserveOut == 0 {
		return 0, dexerrors.ErrInsufficientLiquidity.Wrap("pool reserve is empty")
	}

	k := new(uint256.Int).Mul(uint256.NewInt(reserveIn), uint256.NewInt(reserveOut))
	newIn := new(uint256.Int).Add(uint256.NewInt(reserveIn), uint256.NewInt(amountIn))
	newOut := k.Div(k, newIn)

	rOut := uint256.NewInt(reserveOut)
	change, underflow := new(uint256.Int).SubOverflow(rOut, newOut)
	if underflow {
		return 0, dexerrors.ErrUnderflow.Wrap("output reserve grew after trade")
	}

	impact := change.Mul(change, bps256)
	impact.Div(impact, rOut)
	// change <= reserveOut, so impact <= 10000
	return uint16(impact.Uint64()), nil
}

// CalculateLPTokens returns the LP tokens minted for a deposit. The first deposit
// mints sqrt(a·b); later deposits mint the smaller pro-rata share.
func CalculateLPTokens(amountA, amountB, reserveA, reserveB, lpSupply uint64) (uint64, error) {
	if lpSupply == 0 {
		prod := new(uint256.Int).Mul(uint256.NewInt(amountA), uint256.NewInt(amountB))
		// sqrt of a 128-bit product fits in 64 bits
		return Sqrt(prod).Uint64(), nil
	}
	if reserveA == 0 || reserveB == 0 {
		return 0, dexerrors.ErrDivisionByZero.Wrap("pool has supply but an empty reserve")
	}

	supply := uint256.NewInt(lpSupply)
	fromA := new(uint256.Int).Mul(uint256.NewInt(amountA), supply)
	fromA.Div(fromA, uint256.NewInt(reserveA))
	fromB := new(uint256.Int).Mul(uint256.NewInt(amountB), supply)
	fromB.Div(fromB, uint256.NewInt(reserveB))

	lp := fromA
	if fromB.Lt(fromA) {
		lp = fromB
	}
	if !lp.IsUint64() {
		return 0, dexerrors.ErrOverflow.Wrap("lp token amount exceeds 64 bits")
	}
	return lp.Uint64(), nil
}

// CalculateRemoveAmounts returns the pro-rata reserves redeemed by lpTokens.
func CalculateRemoveAmounts(lpTokens, lpSupply, reserveA, reserveB uint64) (uint64, uint64, error) {
	if lpTokens == 0 {
		return 0, 0, dexerrors.ErrInvalidInputAmount.Wrap("lp amount is zero")
	}
	if lpSupply == 0 || lpTokens > lpSupply {
		return 0, 0, dexerrors.ErrInsufficientLiquidity.Wrapf("redeeming %d of %d lp tokens", lpTokens, lpSupply)
	}

	supply := uint256.NewInt(lpSupply)
	a := new(uint256.Int).Mul(uint256.NewInt(lpTokens), uint256.NewInt(reserveA))
	a.Div(a, supply)
	b := new(uint256.Int).Mul(uint256.NewInt(lpTokens), uint256.NewInt(reserveB))
	b.Div(b, supply)
	// lpTokens <= lpSupply bounds both results by their reserve
	return a.Uint64(), b.Uint64(), nil
}

// CalculateOptimalAmounts balances a deposit against the current reserve ratio.
// An empty pool accepts the desired amounts as-is.
func CalculateOptimalAmounts(desiredA, desiredB, reserveA, reserveB, minA, minB uint64) (uint64, uint64, error) {
	if reserveA == 0 && reserveB == 0 {
		return desiredA, desiredB, nil
	}
	if reserveA == 0 || reserveB == 0 {
		return 0, 0, dexerrors.ErrDivisionByZero.Wrap("pool has one empty reserve")
	}

	optimalB := new(uint256.Int).Mul(uint256.NewInt(desiredA), uint256.NewInt(reserveB))
	optimalB.Div(optimalB, uint256.NewInt(reserveA))
	if !optimalB.Gt(uint256.NewInt(desiredB)) {
		b := optimalB.Uint64()
		if b < minB {
			return 0, 0, dexerrors.ErrSlippageExceeded.Wrapf("token B amount %d below minimum %d", b, minB)
		}
		return desiredA, b, nil
	}

	optimalA := new(uint256.Int).Mul(uint256.NewInt(desiredB), uint256.NewInt(reserveA))
	optimalA.Div(optimalA, uint256.NewInt(reserveB))
	// optimalB > desiredB implies optimalA < desiredA
	a := optimalA.Uint64()
	if a < minA {
		return 0, 0, dexerrors.ErrSlippageExceeded.Wrapf("token A amount %d below minimum %d", a, minA)
	}
	return a, desiredB, nil
}
