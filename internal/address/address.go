// Package address derives the deterministic identifiers of pools, their vaults,
// LP mints and positions from a program id and seed bytes.
package address

import (
	"fmt"

	"github.com/gagliardetto/solana-go"
)

const (
	PoolSeed     = "pool"
	VaultSeed    = "vault"
	LPMintSeed   = "lp_mint"
	PositionSeed = "position"
)

// DefaultProgramID is used when FLUX_PROGRAM_ID is not configured.
var DefaultProgramID = solana.MustPublicKeyFromBase58("F1uxDex111111111111111111111111111111111111")

// Deriver derives identifiers for one program.
type Deriver struct {
	ProgramID solana.PublicKey
}

func NewDeriver(programID solana.PublicKey) Deriver {
	if programID.IsZero() {
		programID = DefaultProgramID
	}
	return Deriver{ProgramID: programID}
}

func (d Deriver) find(seeds ...[]byte) (solana.PublicKey, error) {
	pda, _, err := solana.FindProgramAddress(seeds, d.ProgramID)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("failed to derive program address: %w", err)
	}
	return pda, nil
}

// Pool is keyed by the creating authority and the ordered mint pair.
func (d Deriver) Pool(authority, mintA, mintB solana.PublicKey) (solana.PublicKey, error) {
	return d.find([]byte(PoolSeed), authority.Bytes(), mintA.Bytes(), mintB.Bytes())
}

func (d Deriver) Vault(pool, mint solana.PublicKey) (solana.PublicKey, error) {
	return d.find([]byte(VaultSeed), pool.Bytes(), mint.Bytes())
}

func (d Deriver) LPMint(pool solana.PublicKey) (solana.PublicKey, error) {
	return d.find([]byte(LPMintSeed), pool.Bytes())
}

func (d Deriver) Position(owner, pool solana.PublicKey) (solana.PublicKey, error) {
	return d.find([]byte(PositionSeed), owner.Bytes(), pool.Bytes())
}

// PoolAccounts bundles every identifier created alongside a pool.
type PoolAccounts struct {
	Pool        solana.PublicKey
	TokenAVault solana.PublicKey
	TokenBVault solana.PublicKey
	LPMint      solana.PublicKey
}

func (d Deriver) PoolAccounts(authority, mintA, mintB solana.PublicKey) (PoolAccounts, error) {
	var (
		out PoolAccounts
		err error
	)
	if out.Pool, err = d.Pool(authority, mintA, mintB); err != nil {
		return PoolAccounts{}, err
	}
	if out.TokenAVault, err = d.Vault(out.Pool, mintA); err != nil {
		return PoolAccounts{}, err
	}
	if out.TokenBVault, err = d.Vault(out.Pool, mintB); err != nil {
		return PoolAccounts{}, err
	}
	if out.LPMint, err = d.LPMint(out.Pool); err != nil {
		return PoolAccounts{}, err
	}
	return out, nil
}
