/*

A Pool is a two-asset constant-product liquidity pool. It carries the reserves and
LP supply that every pricing operation reads, plus the fee settings and lifetime
counters that swaps update.

*/

package types

import (
	"github.com/gagliardetto/solana-go"

	"github.com/fluxdex/flux-core/internal/dexerrors"
	"github.com/fluxdex/flux-core/internal/fixedpoint"
)

type Pool struct {
	Address     solana.PublicKey `json:"address"`
	Authority   solana.PublicKey `json:"authority"`
	TokenAMint  solana.PublicKey `json:"token_a_mint"`
	TokenBMint  solana.PublicKey `json:"token_b_mint"`
	TokenAVault solana.PublicKey `json:"token_a_vault"`
	TokenBVault solana.PublicKey `json:"token_b_vault"`
	LPMint      solana.PublicKey `json:"lp_mint"`

	TokenAReserve uint64 `json:"token_a_reserve"`
	TokenBReserve uint64 `json:"token_b_reserve"`
	LPSupply      uint64 `json:"lp_supply"`

	BaseFeeBps           uint16 `json:"base_fee_bps"`    // 0..10000
	CurrentFeeBps        uint16 `json:"current_fee_bps"` // base fee adjusted by the dynamic fee cycle
	DynamicFeeEnabled    bool   `json:"dynamic_fee_enabled"`
	ALMEnabled           bool   `json:"alm_enabled"`
	MEVProtectionEnabled bool   `json:"mev_protection_enabled"`
	BatchSize            uint16 `json:"batch_size"`

	VolatilityScore uint16 `json:"volatility_score"` // 0..10000
	LastPriceUpdate int64  `json:"last_price_update"`

	TotalVolumeA        Counter `json:"total_volume_a"`
	TotalVolumeB        Counter `json:"total_volume_b"`
	TotalFeesCollectedA Counter `json:"total_fees_collected_a"`
	TotalFeesCollectedB Counter `json:"total_fees_collected_b"`
	SwapCount           uint64  `json:"swap_count"`

	Paused           bool             `json:"paused"`
	EmergencyMode    bool             `json:"emergency_mode"`
	UpgradeAuthority solana.PublicKey `json:"upgrade_authority"`

	CreatedAt int64 `json:"created_at"`
	UpdatedAt int64 `json:"updated_at"`
}

// CurrentPrice is the price of token A in token B, reserveB/reserveA with 18 decimals.
// An empty pool has price zero.
func (p *Pool) CurrentPrice() fixedpoint.FixedPoint {
	if p.TokenAReserve == 0 {
		return fixedpoint.Zero
	}
	price, err := fixedpoint.FromRatio(p.TokenBReserve, p.TokenAReserve)
	if err != nil {
		return fixedpoint.Zero
	}
	return price
}

// IsOperational is false while the pool is paused or in emergency mode.
func (p *Pool) IsOperational() bool {
	return !p.Paused && !p.EmergencyMode
}

// Validate checks the reserve/supply relationship every committed pool must hold.
func (p *Pool) Validate() error {
	if uint64(p.BaseFeeBps) > 10_000 || uint64(p.CurrentFeeBps) > 10_000 {
		return dexerrors.ErrInvalidFeeTier.Wrapf("pool %s fee out of range", p.Address)
	}
	if p.LPSupply == 0 {
		if p.TokenAReserve != 0 || p.TokenBReserve != 0 {
			return dexerrors.ErrInvalidCalculation.Wrapf("pool %s has reserves without lp supply", p.Address)
		}
		return nil
	}
	if p.TokenAReserve == 0 || p.TokenBReserve == 0 {
		return dexerrors.ErrInsufficientLiquidity.Wrapf("pool %s has lp supply with an empty reserve", p.Address)
	}
	return nil
}
