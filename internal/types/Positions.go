/*

This file contains the types for liquidity positions, the strategy and risk settings
that drive automated range management, and the rebalance plans built from them.

*/

package types

import (
	"encoding/json"
	"fmt"

	"github.com/gagliardetto/solana-go"

	"github.com/fluxdex/flux-core/internal/dexerrors"
	"github.com/fluxdex/flux-core/internal/fixedpoint"
)

// DefaultRebalanceThresholdBps is the threshold given to a freshly opened position.
const DefaultRebalanceThresholdBps uint16 = 500

// StrategyType selects how a position's range is managed.
type StrategyType uint8

const (
	StrategyPassive StrategyType = iota
	StrategyActive
	StrategyRangeMarketMaking
	StrategyDynamicHedging
)

var strategyNames = map[StrategyType]string{
	StrategyPassive:           "passive",
	StrategyActive:            "active",
	StrategyRangeMarketMaking: "range_market_making",
	StrategyDynamicHedging:    "dynamic_hedging",
}

func (s StrategyType) String() string {
	if n, ok := strategyNames[s]; ok {
		return n
	}
	return fmt.Sprintf("strategy(%d)", uint8(s))
}

func ParseStrategyType(s string) (StrategyType, error) {
	for k, n := range strategyNames {
		if n == s {
			return k, nil
		}
	}
	return 0, dexerrors.ErrInvalidStrategyType.Wrapf("%q", s)
}

func (s StrategyType) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s *StrategyType) UnmarshalText(b []byte) error {
	v, err := ParseStrategyType(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// RiskProfile controls how wide a managed range is.
type RiskProfile uint8

const (
	RiskConservative RiskProfile = iota
	RiskBalanced
	RiskAggressive
)

var riskNames = map[RiskProfile]string{
	RiskConservative: "conservative",
	RiskBalanced:     "balanced",
	RiskAggressive:   "aggressive",
}

func (r RiskProfile) String() string {
	if n, ok := riskNames[r]; ok {
		return n
	}
	return fmt.Sprintf("risk(%d)", uint8(r))
}

// Tier maps the profile to the 1..3 scale used by the range engine.
func (r RiskProfile) Tier() uint8 {
	return uint8(r) + 1
}

func ParseRiskProfile(s string) (RiskProfile, error) {
	for k, n := range riskNames {
		if n == s {
			return k, nil
		}
	}
	return 0, dexerrors.ErrInvalidRiskProfile.Wrapf("%q", s)
}

func (r RiskProfile) MarshalText() ([]byte, error) { return []byte(r.String()), nil }

func (r *RiskProfile) UnmarshalText(b []byte) error {
	v, err := ParseRiskProfile(string(b))
	if err != nil {
		return err
	}
	*r = v
	return nil
}

// Position is one owner's share of a pool.
type Position struct {
	Address solana.PublicKey `json:"address"`
	Owner   solana.PublicKey `json:"owner"`
	Pool    solana.PublicKey `json:"pool"`

	LPTokens uint64 `json:"lp_tokens"`

	StrategyType          StrategyType          `json:"strategy_type"`
	RiskProfile           RiskProfile           `json:"risk_profile"`
	PriceRangeLower       fixedpoint.FixedPoint `json:"price_range_lower"`
	PriceRangeUpper       fixedpoint.FixedPoint `json:"price_range_upper"`
	AutoRebalance         bool                  `json:"auto_rebalance"`
	RebalanceThresholdBps uint16                `json:"rebalance_threshold_bps"`

	InitialDepositA uint64 `json:"initial_deposit_a"`
	InitialDepositB uint64 `json:"initial_deposit_b"`
	RealizedFeesA   uint64 `json:"realized_fees_a"`
	RealizedFeesB   uint64 `json:"realized_fees_b"`
	UnrealizedPnLA  int64  `json:"unrealized_pnl_a"`
	UnrealizedPnLB  int64  `json:"unrealized_pnl_b"`

	MEVRewardsEarned  uint64 `json:"mev_rewards_earned"`
	MEVRewardsClaimed uint64 `json:"mev_rewards_claimed"`

	CreatedAt      int64 `json:"created_at"`
	LastRebalanced int64 `json:"last_rebalanced"`
}

// IsEmpty reports a position that has never been funded or has been fully withdrawn.
func (p *Position) IsEmpty() bool {
	return p.LPTokens == 0
}

// HasRange is false until a price range has been assigned.
func (p *Position) HasRange() bool {
	return !p.PriceRangeUpper.IsZero()
}

// RebalanceAction moves one position to a new price range.
type RebalanceAction struct {
	Position    solana.PublicKey      `json:"position"`
	Owner       solana.PublicKey      `json:"owner"`
	OldLower    fixedpoint.FixedPoint `json:"old_lower"`
	OldUpper    fixedpoint.FixedPoint `json:"old_upper"`
	NewLower    fixedpoint.FixedPoint `json:"new_lower"`
	NewUpper    fixedpoint.FixedPoint `json:"new_upper"`
	PriceAtPlan fixedpoint.FixedPoint `json:"price_at_plan"`
}

// RebalancePlan holds every range change proposed for a pool in one cycle.
type RebalancePlan struct {
	Pool            solana.PublicKey  `json:"pool"`
	GoalDescription string            `json:"goal_description"`
	Actions         []RebalanceAction `json:"actions"`
}

func (p RebalancePlan) String() string {
	b, _ := json.Marshal(p)
	return string(b)
}
