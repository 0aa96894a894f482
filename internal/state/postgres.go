package state

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"

	"github.com/gagliardetto/solana-go"
	"github.com/lib/pq"
	"lukechampine.com/uint128"

	"github.com/fluxdex/flux-core/internal/dexerrors"
	"github.com/fluxdex/flux-core/internal/fixedpoint"
	"github.com/fluxdex/flux-core/internal/types"
)

const pqUniqueViolation = "23505"

// PostgresStore persists state in PostgreSQL. Update runs inside one SQL
// transaction and locks the rows it reads with SELECT ... FOR UPDATE.
type PostgresStore struct {
	DB *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{DB: db}
}

var _ Store = (*PostgresStore)(nil)

func (s *PostgresStore) Update(ctx context.Context, fn func(tx Tx) error) (err error) {
	return s.run(ctx, false, fn)
}

func (s *PostgresStore) View(ctx context.Context, fn func(tx Tx) error) error {
	return s.run(ctx, true, fn)
}

func (s *PostgresStore) run(ctx context.Context, readOnly bool, fn func(tx Tx) error) (err error) {
	if s.DB == nil {
		return fmt.Errorf("database not initialized")
	}

	sqlTx, err := s.DB.BeginTx(ctx, &sql.TxOptions{ReadOnly: readOnly})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			sqlTx.Rollback()
			panic(p) // Re-panic after rollback
		} else if err != nil {
			sqlTx.Rollback()
		}
	}()

	if err = fn(&pgTx{ctx: ctx, tx: sqlTx, forUpdate: !readOnly}); err != nil {
		return err
	}
	if err = sqlTx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return TestDBConnection(ctx, s.DB)
}

func (s *PostgresStore) Close() error {
	if s.DB == nil {
		return nil
	}
	return s.DB.Close()
}

type pgTx struct {
	ctx       context.Context
	tx        *sql.Tx
	forUpdate bool
}

const poolColumns = `
	address, authority, token_a_mint, token_b_mint, token_a_vault, token_b_vault, lp_mint,
	token_a_reserve, token_b_reserve, lp_supply,
	base_fee_bps, current_fee_bps, dynamic_fee_enabled, alm_enabled, mev_protection_enabled, batch_size,
	volatility_score, last_price_update,
	total_volume_a, total_volume_b, total_fees_collected_a, total_fees_collected_b, swap_count,
	paused, emergency_mode, upgrade_authority, created_at, updated_at`

const positionColumns = `
	address, owner, pool, lp_tokens, strategy_type, risk_profile,
	price_range_lower, price_range_upper, auto_rebalance, rebalance_threshold_bps,
	initial_deposit_a, initial_deposit_b, realized_fees_a, realized_fees_b,
	unrealized_pnl_a, unrealized_pnl_b, mev_rewards_earned, mev_rewards_claimed,
	created_at, last_rebalanced`

func (t *pgTx) lockClause() string {
	if t.forUpdate {
		return " FOR UPDATE"
	}
	return ""
}

func (t *pgTx) GetPool(addr solana.PublicKey) (types.Pool, error) {
	row := t.tx.QueryRowContext(t.ctx, `SELECT `+poolColumns+` FROM pools WHERE address = $1`+t.lockClause(), addr.String())
	p, err := scanPool(row)
	if errors.Is(err, sql.ErrNoRows) {
		return types.Pool{}, dexerrors.ErrAccountNotFound.Wrapf("pool %s", addr)
	}
	if err != nil {
		return types.Pool{}, fmt.Errorf("failed to load pool %s: %w", addr, err)
	}
	return p, nil
}

func (t *pgTx) CreatePool(p types.Pool) error {
	_, err := t.tx.ExecContext(t.ctx, `INSERT INTO pools (`+poolColumns+`) VALUES (
		$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14,
		$15, $16, $17, $18, $19, $20, $21, $22, $23, $24, $25, $26, $27, $28)`, poolArgs(p)...)
	if isUniqueViolation(err) {
		return dexerrors.ErrAccountAlreadyInitialized.Wrapf("pool %s", p.Address)
	}
	if err != nil {
		return fmt.Errorf("failed to insert pool %s: %w", p.Address, err)
	}
	return nil
}

func (t *pgTx) PutPool(p types.Pool) error {
	res, err := t.tx.ExecContext(t.ctx, `UPDATE pools SET
		authority = $2, token_a_mint = $3, token_b_mint = $4, token_a_vault = $5, token_b_vault = $6, lp_mint = $7,
		token_a_reserve = $8, token_b_reserve = $9, lp_supply = $10,
		base_fee_bps = $11, current_fee_bps = $12, dynamic_fee_enabled = $13, alm_enabled = $14,
		mev_protection_enabled = $15, batch_size = $16, volatility_score = $17, last_price_update = $18,
		total_volume_a = $19, total_volume_b = $20, total_fees_collected_a = $21, total_fees_collected_b = $22,
		swap_count = $23, paused = $24, emergency_mode = $25, upgrade_authority = $26,
		created_at = $27, updated_at = $28
		WHERE address = $1`, poolArgs(p)...)
	if err != nil {
		return fmt.Errorf("failed to update pool %s: %w", p.Address, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return dexerrors.ErrAccountNotFound.Wrapf("pool %s", p.Address)
	}
	return nil
}

func (t *pgTx) ListPools() ([]types.Pool, error) {
	rows, err := t.tx.QueryContext(t.ctx, `SELECT `+poolColumns+` FROM pools ORDER BY created_at, address`)
	if err != nil {
		return nil, fmt.Errorf("failed to query pools: %w", err)
	}
	defer rows.Close()

	var pools []types.Pool
	for rows.Next() {
		p, err := scanPool(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan pool row: %w", err)
		}
		pools = append(pools, p)
	}
	return pools, rows.Err()
}

func (t *pgTx) GetPosition(addr solana.PublicKey) (types.Position, bool, error) {
	row := t.tx.QueryRowContext(t.ctx, `SELECT `+positionColumns+` FROM positions WHERE address = $1`+t.lockClause(), addr.String())
	p, err := scanPosition(row)
	if errors.Is(err, sql.ErrNoRows) {
		return types.Position{}, false, nil
	}
	if err != nil {
		return types.Position{}, false, fmt.Errorf("failed to load position %s: %w", addr, err)
	}
	return p, true, nil
}

func (t *pgTx) PutPosition(p types.Position) error {
	_, err := t.tx.ExecContext(t.ctx, `INSERT INTO positions (`+positionColumns+`) VALUES (
		$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)
		ON CONFLICT (address) DO UPDATE SET
		owner = EXCLUDED.owner, pool = EXCLUDED.pool, lp_tokens = EXCLUDED.lp_tokens,
		strategy_type = EXCLUDED.strategy_type, risk_profile = EXCLUDED.risk_profile,
		price_range_lower = EXCLUDED.price_range_lower, price_range_upper = EXCLUDED.price_range_upper,
		auto_rebalance = EXCLUDED.auto_rebalance, rebalance_threshold_bps = EXCLUDED.rebalance_threshold_bps,
		initial_deposit_a = EXCLUDED.initial_deposit_a, initial_deposit_b = EXCLUDED.initial_deposit_b,
		realized_fees_a = EXCLUDED.realized_fees_a, realized_fees_b = EXCLUDED.realized_fees_b,
		unrealized_pnl_a = EXCLUDED.unrealized_pnl_a, unrealized_pnl_b = EXCLUDED.unrealized_pnl_b,
		mev_rewards_earned = EXCLUDED.mev_rewards_earned, mev_rewards_claimed = EXCLUDED.mev_rewards_claimed,
		created_at = EXCLUDED.created_at, last_rebalanced = EXCLUDED.last_rebalanced`,
		p.Address.String(), p.Owner.String(), p.Pool.String(), u64(p.LPTokens),
		int(p.StrategyType), int(p.RiskProfile),
		p.PriceRangeLower.Value.String(), p.PriceRangeUpper.Value.String(),
		p.AutoRebalance, int(p.RebalanceThresholdBps),
		u64(p.InitialDepositA), u64(p.InitialDepositB), u64(p.RealizedFeesA), u64(p.RealizedFeesB),
		p.UnrealizedPnLA, p.UnrealizedPnLB, u64(p.MEVRewardsEarned), u64(p.MEVRewardsClaimed),
		p.CreatedAt, p.LastRebalanced,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23503" {
			return dexerrors.ErrAccountNotFound.Wrapf("pool %s", p.Pool)
		}
		return fmt.Errorf("failed to upsert position %s: %w", p.Address, err)
	}
	return nil
}

func (t *pgTx) ListPositions(pool solana.PublicKey) ([]types.Position, error) {
	rows, err := t.tx.QueryContext(t.ctx, `SELECT `+positionColumns+` FROM positions WHERE pool = $1 ORDER BY address`, pool.String())
	if err != nil {
		return nil, fmt.Errorf("failed to query positions: %w", err)
	}
	defer rows.Close()

	var out []types.Position
	for rows.Next() {
		p, err := scanPosition(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan position row: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (t *pgTx) AppendEvent(rec types.EventRecord) error {
	_, err := t.tx.ExecContext(t.ctx,
		`INSERT INTO pool_events (event_id, event_type, pool, event_timestamp, payload) VALUES ($1, $2, $3, $4, $5)`,
		rec.ID, string(rec.Type), rec.Pool.String(), rec.Timestamp, []byte(rec.Payload))
	if err != nil {
		return fmt.Errorf("failed to insert %s event: %w", rec.Type, err)
	}
	return nil
}

func (t *pgTx) ListEvents(pool solana.PublicKey, limit int) ([]types.EventRecord, error) {
	rows, err := t.tx.QueryContext(t.ctx,
		`SELECT event_id, event_type, pool, event_timestamp, payload FROM pool_events WHERE pool = $1 ORDER BY seq DESC LIMIT $2`,
		pool.String(), clampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	var out []types.EventRecord
	for rows.Next() {
		var (
			rec       types.EventRecord
			eventType string
			poolStr   string
			payload   []byte
		)
		if err := rows.Scan(&rec.ID, &eventType, &poolStr, &rec.Timestamp, &payload); err != nil {
			return nil, fmt.Errorf("failed to scan event row: %w", err)
		}
		rec.Type = types.EventType(eventType)
		if rec.Pool, err = solana.PublicKeyFromBase58(poolStr); err != nil {
			return nil, err
		}
		rec.Payload = payload
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (t *pgTx) AppendPriceObservation(obs types.PriceObservation) error {
	_, err := t.tx.ExecContext(t.ctx,
		`INSERT INTO price_observations (pool, price, observed_at) VALUES ($1, $2, $3)`,
		obs.Pool.String(), obs.Price.Value.String(), obs.Timestamp)
	if err != nil {
		return fmt.Errorf("failed to insert price observation: %w", err)
	}
	return nil
}

func (t *pgTx) RecentPrices(pool solana.PublicKey, limit int) ([]types.PriceObservation, error) {
	rows, err := t.tx.QueryContext(t.ctx,
		`SELECT price, observed_at FROM price_observations WHERE pool = $1 ORDER BY seq DESC LIMIT $2`,
		pool.String(), clampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to query price observations: %w", err)
	}
	defer rows.Close()

	var out []types.PriceObservation
	for rows.Next() {
		var (
			priceStr string
			obs      = types.PriceObservation{Pool: pool}
		)
		if err := rows.Scan(&priceStr, &obs.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan price row: %w", err)
		}
		if obs.Price, err = parseFixed(priceStr); err != nil {
			return nil, err
		}
		out = append(out, obs)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	// Newest first from the query; callers want chronological order.
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func poolArgs(p types.Pool) []any {
	return []any{
		p.Address.String(), p.Authority.String(), p.TokenAMint.String(), p.TokenBMint.String(),
		p.TokenAVault.String(), p.TokenBVault.String(), p.LPMint.String(),
		u64(p.TokenAReserve), u64(p.TokenBReserve), u64(p.LPSupply),
		int(p.BaseFeeBps), int(p.CurrentFeeBps), p.DynamicFeeEnabled, p.ALMEnabled, p.MEVProtectionEnabled, int(p.BatchSize),
		int(p.VolatilityScore), p.LastPriceUpdate,
		p.TotalVolumeA.String(), p.TotalVolumeB.String(), p.TotalFeesCollectedA.String(), p.TotalFeesCollectedB.String(),
		u64(p.SwapCount),
		p.Paused, p.EmergencyMode, p.UpgradeAuthority.String(), p.CreatedAt, p.UpdatedAt,
	}
}

func scanPool(row rowScanner) (types.Pool, error) {
	var (
		p                                                     types.Pool
		addr, authority, mintA, mintB, vaultA, vaultB, lpMint string
		upgradeAuthority                                      string
		reserveA, reserveB, supply, swapCount                 string
		volA, volB, feesA, feesB                              string
		baseFee, currentFee, batchSize, volatility            int
	)
	err := row.Scan(
		&addr, &authority, &mintA, &mintB, &vaultA, &vaultB, &lpMint,
		&reserveA, &reserveB, &supply,
		&baseFee, &currentFee, &p.DynamicFeeEnabled, &p.ALMEnabled, &p.MEVProtectionEnabled, &batchSize,
		&volatility, &p.LastPriceUpdate,
		&volA, &volB, &feesA, &feesB, &swapCount,
		&p.Paused, &p.EmergencyMode, &upgradeAuthority, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return types.Pool{}, err
	}

	keys := []struct {
		dst *solana.PublicKey
		src string
	}{
		{&p.Address, addr}, {&p.Authority, authority}, {&p.TokenAMint, mintA}, {&p.TokenBMint, mintB},
		{&p.TokenAVault, vaultA}, {&p.TokenBVault, vaultB}, {&p.LPMint, lpMint}, {&p.UpgradeAuthority, upgradeAuthority},
	}
	for _, k := range keys {
		if *k.dst, err = solana.PublicKeyFromBase58(k.src); err != nil {
			return types.Pool{}, fmt.Errorf("bad public key %q: %w", k.src, err)
		}
	}

	amounts := []struct {
		dst *uint64
		src string
	}{
		{&p.TokenAReserve, reserveA}, {&p.TokenBReserve, reserveB}, {&p.LPSupply, supply}, {&p.SwapCount, swapCount},
	}
	for _, a := range amounts {
		if *a.dst, err = strconv.ParseUint(a.src, 10, 64); err != nil {
			return types.Pool{}, fmt.Errorf("bad amount %q: %w", a.src, err)
		}
	}

	counters := []struct {
		dst *types.Counter
		src string
	}{
		{&p.TotalVolumeA, volA}, {&p.TotalVolumeB, volB}, {&p.TotalFeesCollectedA, feesA}, {&p.TotalFeesCollectedB, feesB},
	}
	for _, c := range counters {
		if *c.dst, err = types.ParseCounter(c.src); err != nil {
			return types.Pool{}, err
		}
	}

	p.BaseFeeBps = uint16(baseFee)
	p.CurrentFeeBps = uint16(currentFee)
	p.BatchSize = uint16(batchSize)
	p.VolatilityScore = uint16(volatility)
	return p, nil
}

func scanPosition(row rowScanner) (types.Position, error) {
	var (
		p                                        types.Position
		addr, owner, pool                        string
		lp, depA, depB, feesA, feesB, mevE, mevC string
		lower, upper                             string
		strategy, risk, threshold                int
	)
	err := row.Scan(
		&addr, &owner, &pool, &lp, &strategy, &risk,
		&lower, &upper, &p.AutoRebalance, &threshold,
		&depA, &depB, &feesA, &feesB,
		&p.UnrealizedPnLA, &p.UnrealizedPnLB, &mevE, &mevC,
		&p.CreatedAt, &p.LastRebalanced,
	)
	if err != nil {
		return types.Position{}, err
	}

	if p.Address, err = solana.PublicKeyFromBase58(addr); err != nil {
		return types.Position{}, err
	}
	if p.Owner, err = solana.PublicKeyFromBase58(owner); err != nil {
		return types.Position{}, err
	}
	if p.Pool, err = solana.PublicKeyFromBase58(pool); err != nil {
		return types.Position{}, err
	}

	amounts := []struct {
		dst *uint64
		src string
	}{
		{&p.LPTokens, lp}, {&p.InitialDepositA, depA}, {&p.InitialDepositB, depB},
		{&p.RealizedFeesA, feesA}, {&p.RealizedFeesB, feesB},
		{&p.MEVRewardsEarned, mevE}, {&p.MEVRewardsClaimed, mevC},
	}
	for _, a := range amounts {
		if *a.dst, err = strconv.ParseUint(a.src, 10, 64); err != nil {
			return types.Position{}, fmt.Errorf("bad amount %q: %w", a.src, err)
		}
	}

	if p.PriceRangeLower, err = parseFixed(lower); err != nil {
		return types.Position{}, err
	}
	if p.PriceRangeUpper, err = parseFixed(upper); err != nil {
		return types.Position{}, err
	}
	p.StrategyType = types.StrategyType(strategy)
	p.RiskProfile = types.RiskProfile(risk)
	p.RebalanceThresholdBps = uint16(threshold)
	return p, nil
}

// u64 formats amounts as text; database/sql rejects uint64 values with the high bit set.
func u64(v uint64) string {
	return strconv.FormatUint(v, 10)
}

// parseFixed reads a raw 18-decimal integer stored in a NUMERIC(39,0) column.
func parseFixed(s string) (fixedpoint.FixedPoint, error) {
	raw, err := uint128.FromString(s)
	if err != nil {
		return fixedpoint.Zero, fmt.Errorf("bad fixed-point value %q: %w", s, err)
	}
	return fixedpoint.New(raw), nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == pqUniqueViolation
}
