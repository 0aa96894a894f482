package liquidity

import (
	"context"

	"github.com/gagliardetto/solana-go"

	"github.com/fluxdex/flux-core/internal/ammmath"
	"github.com/fluxdex/flux-core/internal/dexerrors"
	"github.com/fluxdex/flux-core/internal/state"
	"github.com/fluxdex/flux-core/internal/types"
)

// InitializePool creates an empty pool for a mint pair together with its vaults
// and LP mint. The pool address signs for the vaults and the LP mint.
func (s *Service) InitializePool(ctx context.Context, req types.InitializePoolRequest) (types.Pool, error) {
	const op = "initialize_pool"
	accounts, err := s.deriver.PoolAccounts(req.Authority, req.TokenAMint, req.TokenBMint)
	if err != nil {
		return types.Pool{}, err
	}
	l := s.requestLogger(op, accounts.Pool)

	if uint64(req.BaseFeeBps) > ammmath.BpsDenominator {
		return types.Pool{}, s.reject(l, op, dexerrors.ErrInvalidFeeTier.Wrapf("base fee %d bps exceeds %d", req.BaseFeeBps, ammmath.BpsDenominator))
	}
	if req.TokenAMint.Equals(req.TokenBMint) {
		return types.Pool{}, s.reject(l, op, dexerrors.ErrInvalidAccount.Wrap("token mints must differ"))
	}
	for _, mint := range []solana.PublicKey{req.TokenAMint, req.TokenBMint} {
		if _, err := s.tokens.Mint(ctx, mint); err != nil {
			return types.Pool{}, s.reject(l, op, err)
		}
	}
	if req.BaseFeeBps > s.params.RecommendedMaxFeeBps && s.params.RecommendedMaxFeeBps > 0 {
		l.Warn().Uint16("base_fee_bps", req.BaseFeeBps).Uint16("recommended_max", s.params.RecommendedMaxFeeBps).Msg("Base fee above recommended maximum")
	}

	ts := s.now().Unix()
	pool := types.Pool{
		Address:          accounts.Pool,
		Authority:        req.Authority,
		TokenAMint:       req.TokenAMint,
		TokenBMint:       req.TokenBMint,
		TokenAVault:      accounts.TokenAVault,
		TokenBVault:      accounts.TokenBVault,
		LPMint:           accounts.LPMint,
		BaseFeeBps:       req.BaseFeeBps,
		CurrentFeeBps:    req.BaseFeeBps,
		BatchSize:        1,
		UpgradeAuthority: req.Authority,
		CreatedAt:        ts,
		UpdatedAt:        ts,
	}

	err = s.store.Update(ctx, func(tx state.Tx) error {
		if err := tx.CreatePool(pool); err != nil {
			return err
		}
		if err := s.tokens.InitializeAccount(ctx, pool.TokenAVault, pool.TokenAMint, pool.Address); err != nil {
			return err
		}
		if err := s.tokens.InitializeAccount(ctx, pool.TokenBVault, pool.TokenBMint, pool.Address); err != nil {
			return err
		}
		if err := s.tokens.InitializeMint(ctx, pool.LPMint, pool.Address); err != nil {
			return err
		}
		return appendEvent(tx, types.EventPoolInitialized, pool.Address, ts, types.PoolInitialized{
			Pool:       pool.Address,
			Authority:  pool.Authority,
			TokenAMint: pool.TokenAMint,
			TokenBMint: pool.TokenBMint,
			BaseFeeBps: pool.BaseFeeBps,
			Timestamp:  ts,
		})
	})
	if err != nil {
		return types.Pool{}, s.reject(l, op, err)
	}

	s.metrics.ObservePool(pool)
	if s.metrics != nil {
		s.metrics.PoolsTotal.Inc()
	}
	l.Info().
		Str("token_a_mint", pool.TokenAMint.String()).
		Str("token_b_mint", pool.TokenBMint.String()).
		Uint16("base_fee_bps", pool.BaseFeeBps).
		Msg("Pool initialized")
	return pool, nil
}

// SetPoolFlags changes a pool's operational switches. Only the pool authority may call it.
func (s *Service) SetPoolFlags(ctx context.Context, req types.PoolFlagsRequest) (types.Pool, error) {
	const op = "set_pool_flags"
	l := s.requestLogger(op, req.Pool)

	var pool types.Pool
	err := s.store.Update(ctx, func(tx state.Tx) error {
		p, err := tx.GetPool(req.Pool)
		if err != nil {
			return err
		}
		if !p.Authority.Equals(req.Authority) {
			return dexerrors.ErrUnauthorized.Wrapf("%s is not the authority of pool %s", req.Authority, req.Pool)
		}

		if req.Paused != nil {
			p.Paused = *req.Paused
		}
		if req.EmergencyMode != nil {
			p.EmergencyMode = *req.EmergencyMode
		}
		if req.DynamicFeeEnabled != nil {
			p.DynamicFeeEnabled = *req.DynamicFeeEnabled
			if !p.DynamicFeeEnabled {
				p.CurrentFeeBps = p.BaseFeeBps
			}
		}
		if req.ALMEnabled != nil {
			p.ALMEnabled = *req.ALMEnabled
		}
		if req.MEVProtectionEnabled != nil {
			p.MEVProtectionEnabled = *req.MEVProtectionEnabled
			p.BatchSize = 1
			if p.MEVProtectionEnabled && s.params.DefaultBatchSize > 0 {
				p.BatchSize = s.params.DefaultBatchSize
			}
		}
		p.UpdatedAt = s.now().Unix()

		if err := tx.PutPool(p); err != nil {
			return err
		}
		pool = p
		return nil
	})
	if err != nil {
		return types.Pool{}, s.reject(l, op, err)
	}

	s.metrics.ObservePool(pool)
	l.Info().
		Bool("paused", pool.Paused).
		Bool("emergency_mode", pool.EmergencyMode).
		Bool("dynamic_fee", pool.DynamicFeeEnabled).
		Bool("alm", pool.ALMEnabled).
		Bool("mev_protection", pool.MEVProtectionEnabled).
		Msg("Pool flags updated")
	return pool, nil
}

// UpdatePoolFee stores fresh volatility and liquidity scores and derives the
// current fee from them. The event is recorded only when the fee changes.
func (s *Service) UpdatePoolFee(ctx context.Context, pool solana.PublicKey, volatilityScore, liquidityScore uint16) (types.PoolFeeUpdated, error) {
	const op = "update_pool_fee"
	l := s.requestLogger(op, pool)

	var update types.PoolFeeUpdated
	err := s.store.Update(ctx, func(tx state.Tx) error {
		p, err := tx.GetPool(pool)
		if err != nil {
			return err
		}
		fee, err := ammmath.CalculateDynamicFee(p.BaseFeeBps, volatilityScore, liquidityScore)
		if err != nil {
			return err
		}

		ts := s.now().Unix()
		update = types.PoolFeeUpdated{
			Pool:            p.Address,
			OldFeeBps:       p.CurrentFeeBps,
			NewFeeBps:       fee,
			VolatilityScore: volatilityScore,
			LiquidityScore:  liquidityScore,
			Timestamp:       ts,
		}
		p.VolatilityScore = volatilityScore
		p.CurrentFeeBps = fee
		p.UpdatedAt = ts
		if err := tx.PutPool(p); err != nil {
			return err
		}
		if update.OldFeeBps == update.NewFeeBps {
			return nil
		}
		return appendEvent(tx, types.EventPoolFeeUpdated, p.Address, ts, update)
	})
	if err != nil {
		return types.PoolFeeUpdated{}, s.reject(l, op, err)
	}

	if s.metrics != nil {
		s.metrics.PoolFeeBps.WithLabelValues(update.Pool.String()).Set(float64(update.NewFeeBps))
	}
	l.Debug().
		Uint16("old_fee_bps", update.OldFeeBps).
		Uint16("new_fee_bps", update.NewFeeBps).
		Uint16("volatility_score", update.VolatilityScore).
		Uint16("liquidity_score", update.LiquidityScore).
		Msg("Pool fee refreshed")
	return update, nil
}
