package analyzer

import (
	"errors"
	"math"
	"sort"

	"github.com/fluxdex/flux-core/internal/types"
)

// ErrInsufficientData is returned when fewer than two usable prices are available.
var ErrInsufficientData = errors.New("insufficient data points to calculate volatility")

// CalculateVolatility returns the annualized standard deviation of log returns.
// prices is sorted chronologically in place. annualizationFactor is the number of
// sampling periods per year (8760 for hourly data, 365 for daily).
func CalculateVolatility(prices []types.PriceData, annualizationFactor float64) (float64, error) {
	if len(prices) < 2 {
		return 0, ErrInsufficientData
	}

	sort.SliceStable(prices, func(i, j int) bool {
		return prices[i].Timestamp.Before(prices[j].Timestamp)
	})

	returns := make([]float64, 0, len(prices)-1)
	for i := 1; i < len(prices); i++ {
		prev, cur := prices[i-1].Price, prices[i].Price
		if prev <= 0 || cur <= 0 {
			continue
		}
		returns = append(returns, math.Log(cur/prev))
	}
	if len(returns) == 0 {
		return 0, ErrInsufficientData
	}

	var mean float64
	for _, r := range returns {
		mean += r
	}
	mean /= float64(len(returns))

	// Population variance.
	var variance float64
	for _, r := range returns {
		variance += (r - mean) * (r - mean)
	}
	variance /= float64(len(returns))

	return math.Sqrt(variance) * math.Sqrt(annualizationFactor), nil
}
