package address

import (
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPoolAccountsAreDeterministic(t *testing.T) {
	d := NewDeriver(solana.PublicKey{})
	assert.Equal(t, DefaultProgramID, d.ProgramID)

	authority := solana.NewWallet().PublicKey()
	mintA := solana.NewWallet().PublicKey()
	mintB := solana.NewWallet().PublicKey()

	first, err := d.PoolAccounts(authority, mintA, mintB)
	require.NoError(t, err)
	second, err := d.PoolAccounts(authority, mintA, mintB)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	keys := []solana.PublicKey{first.Pool, first.TokenAVault, first.TokenBVault, first.LPMint}
	seen := map[solana.PublicKey]bool{}
	for _, k := range keys {
		assert.False(t, k.IsOnCurve(), "derived address must be off curve")
		assert.False(t, seen[k])
		seen[k] = true
	}

	swapped, err := d.Pool(authority, mintB, mintA)
	require.NoError(t, err)
	assert.NotEqual(t, first.Pool, swapped)
}

func TestPositionDependsOnOwnerAndPool(t *testing.T) {
	d := NewDeriver(DefaultProgramID)
	pool := solana.NewWallet().PublicKey()
	alice := solana.NewWallet().PublicKey()
	bob := solana.NewWallet().PublicKey()

	a, err := d.Position(alice, pool)
	require.NoError(t, err)
	b, err := d.Position(bob, pool)
	require.NoError(t, err)
	assert.NotEqual(t, a, b)

	again, err := d.Position(alice, pool)
	require.NoError(t, err)
	assert.Equal(t, a, again)
}
