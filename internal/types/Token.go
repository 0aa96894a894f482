/*

Token side selection and the price observations the analyzer turns into a volatility score.

*/

package types

import (
	"time"

	"github.com/gagliardetto/solana-go"

	"github.com/fluxdex/flux-core/internal/fixedpoint"
	"github.com/fluxdex/flux-core/internal/utils"
)

// Side names one of the two pool assets.
type Side string

const (
	SideA Side = "A"
	SideB Side = "B"
)

// PriceData holds historical price info
type PriceData struct {
	Timestamp time.Time `json:"timestamp"`
	Price     float64   `json:"price"`
}

// PriceObservation is the pool price recorded after a reserve change.
type PriceObservation struct {
	Pool      solana.PublicKey      `json:"pool"`
	Price     fixedpoint.FixedPoint `json:"price"`
	Timestamp int64                 `json:"timestamp"`
}

// ToPriceData converts observations for the float-based analyzer. Observations
// that have no finite float rendering are dropped.
func ToPriceData(obs []PriceObservation) []PriceData {
	out := make([]PriceData, 0, len(obs))
	for _, o := range obs {
		price, err := utils.FixedToFloat64(o.Price)
		if err != nil {
			continue
		}
		out = append(out, PriceData{Timestamp: time.Unix(o.Timestamp, 0).UTC(), Price: price})
	}
	return out
}
