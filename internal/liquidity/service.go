package liquidity

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/fluxdex/flux-core/internal/address"
	"github.com/fluxdex/flux-core/internal/dexerrors"
	"github.com/fluxdex/flux-core/internal/logger"
	"github.com/fluxdex/flux-core/internal/metrics"
	"github.com/fluxdex/flux-core/internal/state"
	"github.com/fluxdex/flux-core/internal/types"
	"github.com/fluxdex/flux-core/internal/vault"
)

// Service runs every pool and position state transition. Each operation is one
// Store.Update unit of work: derived values are computed on copies, token
// movements go through the TokenProgram, and records are committed together.
//
// Workflows that move tokens check ctx once before starting and then run
// detached from its cancellation. When a later token call or the commit
// fails, the movements already applied are reversed.
type Service struct {
	logger  zerolog.Logger
	store   state.Store
	tokens  vault.TokenProgram
	deriver address.Deriver
	metrics *metrics.Metrics
	params  types.ProtocolParameters
	now     func() time.Time
}

// Config holds the dependencies for creating a new Service
type Config struct {
	Store      state.Store
	Tokens     vault.TokenProgram
	ProgramID  solana.PublicKey
	Metrics    *metrics.Metrics // optional
	Parameters types.ProtocolParameters
	Clock      func() time.Time // optional, defaults to time.Now
}

func NewService(cfg Config) (*Service, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("store cannot be nil")
	}
	if cfg.Tokens == nil {
		return nil, fmt.Errorf("token program cannot be nil")
	}
	if uint64(cfg.Parameters.DefaultRebalanceThresholdBps) > 10_000 {
		return nil, fmt.Errorf("default rebalance threshold %d bps exceeds 10000", cfg.Parameters.DefaultRebalanceThresholdBps)
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}

	s := &Service{
		logger:  logger.GetForComponent("liquidity_service"),
		store:   cfg.Store,
		tokens:  cfg.Tokens,
		deriver: address.NewDeriver(cfg.ProgramID),
		metrics: cfg.Metrics,
		params:  cfg.Parameters,
		now:     clock,
	}
	s.logger.Info().Str("program_id", s.deriver.ProgramID.String()).Msg("Liquidity service ready")
	return s, nil
}

// Deriver exposes the identifier derivation used for pools and positions.
func (s *Service) Deriver() address.Deriver { return s.deriver }

// Parameters returns the protocol parameters the service was built with.
func (s *Service) Parameters() types.ProtocolParameters { return s.params }

func (s *Service) requestLogger(op string, pool solana.PublicKey) zerolog.Logger {
	return s.logger.With().
		Str("request_id", uuid.NewString()).
		Str("op", op).
		Str("pool", pool.String()).
		Logger()
}

// reject logs and counts a failed request, then hands the error back.
func (s *Service) reject(l zerolog.Logger, op string, err error) error {
	kind := dexerrors.Kind(err)
	s.metrics.RecordRejection(op, string(kind))
	l.Warn().Err(err).Str("kind", string(kind)).Msg("Request rejected")
	return err
}

// requireOperational loads the pool and refuses paused or emergency pools.
func requireOperational(tx state.Tx, addr solana.PublicKey) (types.Pool, error) {
	pool, err := tx.GetPool(addr)
	if err != nil {
		return types.Pool{}, err
	}
	if pool.Paused {
		return types.Pool{}, dexerrors.ErrUnauthorized.Wrapf("pool %s is paused", addr)
	}
	if pool.EmergencyMode {
		return types.Pool{}, dexerrors.ErrUnauthorized.Wrapf("pool %s is in emergency mode", addr)
	}
	return pool, nil
}

// checkTokenAccount verifies an account holds the expected mint for owner and,
// when minBalance > 0, that it carries at least that amount.
func (s *Service) checkTokenAccount(ctx context.Context, account, mint, owner solana.PublicKey, minBalance uint64) error {
	acc, err := s.tokens.Account(ctx, account)
	if err != nil {
		return err
	}
	if !acc.Mint.Equals(mint) {
		return dexerrors.ErrInvalidAccount.Wrapf("account %s holds mint %s, expected %s", account, acc.Mint, mint)
	}
	if !acc.Owner.Equals(owner) {
		return dexerrors.ErrUnauthorized.Wrapf("account %s is not owned by %s", account, owner)
	}
	if acc.Amount < minBalance {
		return dexerrors.ErrInsufficientLiquidity.Wrapf("account %s holds %d, needs %d", account, acc.Amount, minBalance)
	}
	return nil
}

func appendEvent(tx state.Tx, typ types.EventType, pool solana.PublicKey, ts int64, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode %s event: %w", typ, err)
	}
	return tx.AppendEvent(types.EventRecord{
		ID:        uuid.NewString(),
		Type:      typ,
		Pool:      pool,
		Timestamp: ts,
		Payload:   raw,
	})
}

func checkedAdd(a, b uint64, what string) (uint64, error) {
	sum := a + b
	if sum < a {
		return 0, dexerrors.ErrOverflow.Wrapf("%s: %d + %d", what, a, b)
	}
	return sum, nil
}

func checkedSub(a, b uint64, what string) (uint64, error) {
	if b > a {
		return 0, dexerrors.ErrUnderflow.Wrapf("%s: %d - %d", what, a, b)
	}
	return a - b, nil
}

// GetPool returns a committed pool.
func (s *Service) GetPool(ctx context.Context, addr solana.PublicKey) (types.Pool, error) {
	var pool types.Pool
	err := s.store.View(ctx, func(tx state.Tx) error {
		var err error
		pool, err = tx.GetPool(addr)
		return err
	})
	return pool, err
}

func (s *Service) ListPools(ctx context.Context) ([]types.Pool, error) {
	var pools []types.Pool
	err := s.store.View(ctx, func(tx state.Tx) error {
		var err error
		pools, err = tx.ListPools()
		return err
	})
	return pools, err
}

func (s *Service) ListPositions(ctx context.Context, pool solana.PublicKey) ([]types.Position, error) {
	var positions []types.Position
	err := s.store.View(ctx, func(tx state.Tx) error {
		if _, err := tx.GetPool(pool); err != nil {
			return err
		}
		var err error
		positions, err = tx.ListPositions(pool)
		return err
	})
	return positions, err
}

// GetPosition looks a position up by owner, returning PositionNotFound when absent.
func (s *Service) GetPosition(ctx context.Context, owner, pool solana.PublicKey) (types.Position, error) {
	addr, err := s.deriver.Position(owner, pool)
	if err != nil {
		return types.Position{}, err
	}
	var pos types.Position
	err = s.store.View(ctx, func(tx state.Tx) error {
		p, found, err := tx.GetPosition(addr)
		if err != nil {
			return err
		}
		if !found {
			return dexerrors.ErrPositionNotFound.Wrapf("owner %s pool %s", owner, pool)
		}
		pos = p
		return nil
	})
	return pos, err
}

func (s *Service) ListEvents(ctx context.Context, pool solana.PublicKey, limit int) ([]types.EventRecord, error) {
	var events []types.EventRecord
	err := s.store.View(ctx, func(tx state.Tx) error {
		var err error
		events, err = tx.ListEvents(pool, limit)
		return err
	})
	return events, err
}

func (s *Service) RecentPrices(ctx context.Context, pool solana.PublicKey, limit int) ([]types.PriceObservation, error) {
	var prices []types.PriceObservation
	err := s.store.View(ctx, func(tx state.Tx) error {
		var err error
		prices, err = tx.RecentPrices(pool, limit)
		return err
	})
	return prices, err
}

// CheckSupplyInvariant verifies that the pool's LP supply equals the sum of its positions.
func (s *Service) CheckSupplyInvariant(ctx context.Context, pool solana.PublicKey) error {
	return s.store.View(ctx, func(tx state.Tx) error {
		p, err := tx.GetPool(pool)
		if err != nil {
			return err
		}
		positions, err := tx.ListPositions(pool)
		if err != nil {
			return err
		}
		var sum uint64
		for _, pos := range positions {
			if sum, err = checkedAdd(sum, pos.LPTokens, "position lp sum"); err != nil {
				return err
			}
		}
		if sum != p.LPSupply {
			return dexerrors.ErrInvalidCalculation.Wrapf("pool %s lp supply %d, positions hold %d", pool, p.LPSupply, sum)
		}
		return p.Validate()
	})
}
