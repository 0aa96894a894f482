package vault

import (
	"context"

	"github.com/gagliardetto/solana-go"
)

// TokenAccount is a balance of one mint held by one owner.
type TokenAccount struct {
	Address solana.PublicKey `json:"address"`
	Mint    solana.PublicKey `json:"mint"`
	Owner   solana.PublicKey `json:"owner"`
	Amount  uint64           `json:"amount"`
}

// TokenMint is a fungible token definition.
type TokenMint struct {
	Address   solana.PublicKey `json:"address"`
	Authority solana.PublicKey `json:"authority"`
	Supply    uint64           `json:"supply"`
}

// TokenProgram defines the token movements the liquidity manager relies on.
// Each call is atomic on its own: it either applies fully or returns an error
// with no effect. Authority is the account owner for transfers and burns and
// the mint authority for mints.
type TokenProgram interface {
	// InitializeMint creates a mint controlled by authority.
	InitializeMint(ctx context.Context, mint, authority solana.PublicKey) error

	// InitializeAccount creates an empty token account for mint owned by owner.
	InitializeAccount(ctx context.Context, account, mint, owner solana.PublicKey) error

	// Account returns the current state of a token account.
	Account(ctx context.Context, account solana.PublicKey) (TokenAccount, error)

	// Mint returns the current state of a mint.
	Mint(ctx context.Context, mint solana.PublicKey) (TokenMint, error)

	// Transfer moves amount between two accounts of the same mint.
	Transfer(ctx context.Context, from, to, authority solana.PublicKey, amount uint64) error

	// MintTo creates amount new tokens in the destination account.
	MintTo(ctx context.Context, mint, to, authority solana.PublicKey, amount uint64) error

	// Burn destroys amount tokens held by the source account.
	Burn(ctx context.Context, mint, from, authority solana.PublicKey, amount uint64) error
}
