package liquidity

import (
	"context"

	"github.com/gagliardetto/solana-go"
	"github.com/rs/zerolog"

	"github.com/fluxdex/flux-core/internal/vault"
)

// effects applies token movements for one workflow and remembers how to
// reverse each one that landed. A workflow that fails after its first
// movement calls revert, so the ledger ends where it started.
type effects struct {
	ctx    context.Context
	tokens vault.TokenProgram
	undo   []func() error
}

// beginEffects checks ctx once and detaches from its cancellation. After this
// point the workflow runs to commit or to a full revert.
func (s *Service) beginEffects(ctx context.Context) (*effects, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &effects{ctx: context.WithoutCancel(ctx), tokens: s.tokens}, nil
}

// transfer moves amount from one account to another. toOwner signs the reversal.
func (e *effects) transfer(from, to, fromOwner, toOwner solana.PublicKey, amount uint64) error {
	if err := e.tokens.Transfer(e.ctx, from, to, fromOwner, amount); err != nil {
		return err
	}
	e.undo = append(e.undo, func() error {
		return e.tokens.Transfer(e.ctx, to, from, toOwner, amount)
	})
	return nil
}

func (e *effects) mintTo(mint, to, authority, toOwner solana.PublicKey, amount uint64) error {
	if err := e.tokens.MintTo(e.ctx, mint, to, authority, amount); err != nil {
		return err
	}
	e.undo = append(e.undo, func() error {
		return e.tokens.Burn(e.ctx, mint, to, toOwner, amount)
	})
	return nil
}

func (e *effects) burn(mint, from, owner, authority solana.PublicKey, amount uint64) error {
	if err := e.tokens.Burn(e.ctx, mint, from, owner, amount); err != nil {
		return err
	}
	e.undo = append(e.undo, func() error {
		return e.tokens.MintTo(e.ctx, mint, from, authority, amount)
	})
	return nil
}

// revert reverses the applied movements newest first. A reversal that fails is
// logged and the rest still run.
func (e *effects) revert(l zerolog.Logger) {
	if e == nil {
		return
	}
	for i := len(e.undo) - 1; i >= 0; i-- {
		if err := e.undo[i](); err != nil {
			l.Error().Err(err).Int("step", i).Msg("Failed to reverse token movement")
		}
	}
	if len(e.undo) > 0 {
		l.Warn().Int("steps", len(e.undo)).Msg("Token movements reversed")
	}
	e.undo = nil
}
