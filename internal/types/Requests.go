package types

import "github.com/gagliardetto/solana-go"

type InitializePoolRequest struct {
	Authority  solana.PublicKey `json:"authority"`
	TokenAMint solana.PublicKey `json:"token_a_mint"`
	TokenBMint solana.PublicKey `json:"token_b_mint"`
	BaseFeeBps uint16           `json:"base_fee_bps"`
}

// AddLiquidityRequest deposits up to the desired amounts. Token accounts belong to User.
type AddLiquidityRequest struct {
	User           solana.PublicKey `json:"user"`
	Pool           solana.PublicKey `json:"pool"`
	UserTokenA     solana.PublicKey `json:"user_token_a"`
	UserTokenB     solana.PublicKey `json:"user_token_b"`
	UserLPToken    solana.PublicKey `json:"user_lp_token"`
	DesiredAmountA uint64           `json:"desired_amount_a"`
	DesiredAmountB uint64           `json:"desired_amount_b"`
	MinAmountA     uint64           `json:"min_amount_a"`
	MinAmountB     uint64           `json:"min_amount_b"`
	MinLPTokens    uint64           `json:"min_lp_tokens"`
}

type RemoveLiquidityRequest struct {
	User        solana.PublicKey `json:"user"`
	Pool        solana.PublicKey `json:"pool"`
	UserTokenA  solana.PublicKey `json:"user_token_a"`
	UserTokenB  solana.PublicKey `json:"user_token_b"`
	UserLPToken solana.PublicKey `json:"user_lp_token"`
	LPTokens    uint64           `json:"lp_tokens"`
	MinAmountA  uint64           `json:"min_amount_a"`
	MinAmountB  uint64           `json:"min_amount_b"`
}

// SwapRequest trades AmountIn of the source side. AToB selects token A as the source.
type SwapRequest struct {
	User            solana.PublicKey `json:"user"`
	Pool            solana.PublicKey `json:"pool"`
	UserSource      solana.PublicKey `json:"user_source"`
	UserDestination solana.PublicKey `json:"user_destination"`
	AToB            bool             `json:"a_to_b"`
	AmountIn        uint64           `json:"amount_in"`
	MinAmountOut    uint64           `json:"min_amount_out"`
}

type ConfigurePositionRequest struct {
	Owner                 solana.PublicKey `json:"owner"`
	Pool                  solana.PublicKey `json:"pool"`
	StrategyType          StrategyType     `json:"strategy_type"`
	RiskProfile           RiskProfile      `json:"risk_profile"`
	AutoRebalance         bool             `json:"auto_rebalance"`
	RebalanceThresholdBps uint16           `json:"rebalance_threshold_bps"`
}

// PoolFlagsRequest changes operational flags. Nil fields are left unchanged.
type PoolFlagsRequest struct {
	Authority            solana.PublicKey `json:"authority"`
	Pool                 solana.PublicKey `json:"pool"`
	Paused               *bool            `json:"paused,omitempty"`
	EmergencyMode        *bool            `json:"emergency_mode,omitempty"`
	DynamicFeeEnabled    *bool            `json:"dynamic_fee_enabled,omitempty"`
	ALMEnabled           *bool            `json:"alm_enabled,omitempty"`
	MEVProtectionEnabled *bool            `json:"mev_protection_enabled,omitempty"`
}

// SwapQuote is a read-only preview of a swap at the pool's current fee.
type SwapQuote struct {
	Pool           solana.PublicKey `json:"pool"`
	AToB           bool             `json:"a_to_b"`
	AmountIn       uint64           `json:"amount_in"`
	AmountOut      uint64           `json:"amount_out"`
	FeeBps         uint16           `json:"fee_bps"`
	PriceImpactBps uint16           `json:"price_impact_bps"`
}
