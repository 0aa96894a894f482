/*

Domain events emitted after a state transition commits.

*/

package types

import (
	"encoding/json"

	"github.com/gagliardetto/solana-go"
)

type EventType string

const (
	EventPoolInitialized    EventType = "pool_initialized"
	EventLiquidityAdded     EventType = "liquidity_added"
	EventLiquidityRemoved   EventType = "liquidity_removed"
	EventSwapped            EventType = "swapped"
	EventPositionRebalanced EventType = "position_rebalanced"
	EventPoolFeeUpdated     EventType = "pool_fee_updated"
)

type PoolInitialized struct {
	Pool       solana.PublicKey `json:"pool"`
	Authority  solana.PublicKey `json:"authority"`
	TokenAMint solana.PublicKey `json:"token_a_mint"`
	TokenBMint solana.PublicKey `json:"token_b_mint"`
	BaseFeeBps uint16           `json:"base_fee_bps"`
	Timestamp  int64            `json:"timestamp"`
}

type LiquidityAdded struct {
	User           solana.PublicKey `json:"user"`
	Pool           solana.PublicKey `json:"pool"`
	AmountA        uint64           `json:"amount_a"`
	AmountB        uint64           `json:"amount_b"`
	LPTokensMinted uint64           `json:"lp_tokens_minted"`
	Timestamp      int64            `json:"timestamp"`
}

type LiquidityRemoved struct {
	User           solana.PublicKey `json:"user"`
	Pool           solana.PublicKey `json:"pool"`
	AmountA        uint64           `json:"amount_a"`
	AmountB        uint64           `json:"amount_b"`
	LPTokensBurned uint64           `json:"lp_tokens_burned"`
	Timestamp      int64            `json:"timestamp"`
}

type Swapped struct {
	User        solana.PublicKey `json:"user"`
	Pool        solana.PublicKey `json:"pool"`
	AToB        bool             `json:"a_to_b"`
	AmountIn    uint64           `json:"amount_in"`
	AmountOut   uint64           `json:"amount_out"`
	FeeAmount   uint64           `json:"fee_amount"`
	FeeBps      uint16           `json:"fee_bps"`
	PriceImpact uint16           `json:"price_impact_bps"`
	Timestamp   int64            `json:"timestamp"`
}

type PositionRebalanced struct {
	Pool      solana.PublicKey `json:"pool"`
	Position  solana.PublicKey `json:"position"`
	Action    RebalanceAction  `json:"action"`
	Timestamp int64            `json:"timestamp"`
}

type PoolFeeUpdated struct {
	Pool            solana.PublicKey `json:"pool"`
	OldFeeBps       uint16           `json:"old_fee_bps"`
	NewFeeBps       uint16           `json:"new_fee_bps"`
	VolatilityScore uint16           `json:"volatility_score"`
	LiquidityScore  uint16           `json:"liquidity_score"`
	Timestamp       int64            `json:"timestamp"`
}

// EventRecord is the stored envelope of a domain event.
type EventRecord struct {
	ID        string           `json:"id"`
	Type      EventType        `json:"type"`
	Pool      solana.PublicKey `json:"pool"`
	Timestamp int64            `json:"timestamp"`
	Payload   json.RawMessage  `json:"payload"`
}
