package vault

import (
	"context"
	"math"
	"sort"
	"sync"

	"github.com/gagliardetto/solana-go"
	"github.com/rs/zerolog"

	"github.com/fluxdex/flux-core/internal/dexerrors"
	"github.com/fluxdex/flux-core/internal/logger"
)

// MemoryLedger is an in-process TokenProgram. It backs simulation mode and tests.
type MemoryLedger struct {
	mu       sync.RWMutex
	logger   zerolog.Logger
	mints    map[solana.PublicKey]*TokenMint
	accounts map[solana.PublicKey]*TokenAccount
}

func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{
		logger:   logger.GetForComponent("token_ledger"),
		mints:    make(map[solana.PublicKey]*TokenMint),
		accounts: make(map[solana.PublicKey]*TokenAccount),
	}
}

var _ TokenProgram = (*MemoryLedger)(nil)

func (l *MemoryLedger) InitializeMint(_ context.Context, mint, authority solana.PublicKey) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, exists := l.mints[mint]; exists {
		return dexerrors.ErrAccountAlreadyInitialized.Wrapf("mint %s", mint)
	}
	l.mints[mint] = &TokenMint{Address: mint, Authority: authority}
	l.logger.Debug().Str("mint", mint.String()).Str("authority", authority.String()).Msg("Mint initialized")
	return nil
}

func (l *MemoryLedger) InitializeAccount(_ context.Context, account, mint, owner solana.PublicKey) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, exists := l.accounts[account]; exists {
		return dexerrors.ErrAccountAlreadyInitialized.Wrapf("token account %s", account)
	}
	if _, ok := l.mints[mint]; !ok {
		return dexerrors.ErrAccountNotFound.Wrapf("mint %s", mint)
	}
	l.accounts[account] = &TokenAccount{Address: account, Mint: mint, Owner: owner}
	return nil
}

func (l *MemoryLedger) Account(_ context.Context, account solana.PublicKey) (TokenAccount, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	acc, ok := l.accounts[account]
	if !ok {
		return TokenAccount{}, dexerrors.ErrAccountNotFound.Wrapf("token account %s", account)
	}
	return *acc, nil
}

func (l *MemoryLedger) Mint(_ context.Context, mint solana.PublicKey) (TokenMint, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	m, ok := l.mints[mint]
	if !ok {
		return TokenMint{}, dexerrors.ErrAccountNotFound.Wrapf("mint %s", mint)
	}
	return *m, nil
}

func (l *MemoryLedger) Transfer(_ context.Context, from, to, authority solana.PublicKey, amount uint64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	src, ok := l.accounts[from]
	if !ok {
		return dexerrors.ErrAccountNotFound.Wrapf("token account %s", from)
	}
	dst, ok := l.accounts[to]
	if !ok {
		return dexerrors.ErrAccountNotFound.Wrapf("token account %s", to)
	}
	if !src.Owner.Equals(authority) {
		return dexerrors.ErrUnauthorized.Wrapf("%s does not own %s", authority, from)
	}
	if !src.Mint.Equals(dst.Mint) {
		return dexerrors.ErrInvalidAccount.Wrapf("mint mismatch between %s and %s", from, to)
	}
	if src.Amount < amount {
		return dexerrors.ErrInsufficientLiquidity.Wrapf("account %s holds %d, needs %d", from, src.Amount, amount)
	}
	if from.Equals(to) {
		return nil
	}
	if dst.Amount > math.MaxUint64-amount {
		return dexerrors.ErrOverflow.Wrapf("account %s balance", to)
	}

	src.Amount -= amount
	dst.Amount += amount
	return nil
}

func (l *MemoryLedger) MintTo(_ context.Context, mint, to, authority solana.PublicKey, amount uint64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	m, ok := l.mints[mint]
	if !ok {
		return dexerrors.ErrAccountNotFound.Wrapf("mint %s", mint)
	}
	dst, ok := l.accounts[to]
	if !ok {
		return dexerrors.ErrAccountNotFound.Wrapf("token account %s", to)
	}
	if !m.Authority.Equals(authority) {
		return dexerrors.ErrUnauthorized.Wrapf("%s is not the authority of mint %s", authority, mint)
	}
	if !dst.Mint.Equals(mint) {
		return dexerrors.ErrInvalidAccount.Wrapf("account %s does not hold mint %s", to, mint)
	}
	if m.Supply > math.MaxUint64-amount || dst.Amount > math.MaxUint64-amount {
		return dexerrors.ErrOverflow.Wrapf("minting %d of %s", amount, mint)
	}

	m.Supply += amount
	dst.Amount += amount
	return nil
}

func (l *MemoryLedger) Burn(_ context.Context, mint, from, authority solana.PublicKey, amount uint64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	m, ok := l.mints[mint]
	if !ok {
		return dexerrors.ErrAccountNotFound.Wrapf("mint %s", mint)
	}
	src, ok := l.accounts[from]
	if !ok {
		return dexerrors.ErrAccountNotFound.Wrapf("token account %s", from)
	}
	if !src.Owner.Equals(authority) {
		return dexerrors.ErrUnauthorized.Wrapf("%s does not own %s", authority, from)
	}
	if !src.Mint.Equals(mint) {
		return dexerrors.ErrInvalidAccount.Wrapf("account %s does not hold mint %s", from, mint)
	}
	if src.Amount < amount {
		return dexerrors.ErrInsufficientLiquidity.Wrapf("account %s holds %d, burning %d", from, src.Amount, amount)
	}

	src.Amount -= amount
	m.Supply -= amount
	return nil
}

// Faucet credits amount to an account without a mint authority. Simulation only.
func (l *MemoryLedger) Faucet(_ context.Context, account solana.PublicKey, amount uint64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	acc, ok := l.accounts[account]
	if !ok {
		return dexerrors.ErrAccountNotFound.Wrapf("token account %s", account)
	}
	m := l.mints[acc.Mint]
	if acc.Amount > math.MaxUint64-amount || m.Supply > math.MaxUint64-amount {
		return dexerrors.ErrOverflow.Wrapf("faucet %d into %s", amount, account)
	}
	acc.Amount += amount
	m.Supply += amount
	return nil
}

// AccountsByOwner lists token accounts owned by owner, ordered by address.
func (l *MemoryLedger) AccountsByOwner(owner solana.PublicKey) []TokenAccount {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var out []TokenAccount
	for _, acc := range l.accounts {
		if acc.Owner.Equals(owner) {
			out = append(out, *acc)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Address.String() < out[j].Address.String() })
	return out
}
