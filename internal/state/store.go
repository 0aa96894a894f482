package state

import (
	"context"

	"github.com/gagliardetto/solana-go"

	"github.com/fluxdex/flux-core/internal/types"
)

// Store persists pools, positions and their history.
//
// Update runs fn with exclusive write access. Every write made through the Tx
// becomes visible together when fn returns nil, and none of them do when fn
// returns an error or panics. Cancellation of ctx is honoured before fn runs;
// a unit of work with external effects passes a context that cannot be
// cancelled. View runs fn against a consistent read snapshot.
type Store interface {
	Update(ctx context.Context, fn func(tx Tx) error) error
	View(ctx context.Context, fn func(tx Tx) error) error

	SaveProtocolParameters(ctx context.Context, params types.ProtocolParameters, configName string, version int, makeActive bool) (int64, error)
	LoadActiveProtocolParameters(ctx context.Context, configName string) (*types.ProtocolParameters, error)

	GetCurrentCycleNumber(ctx context.Context) (int, error)
	IncrementCycleNumber(ctx context.Context) (int, error)
	SaveCycleSnapshot(ctx context.Context, snapshot types.CycleSnapshot) (int64, error)
	GetRecentCycles(ctx context.Context, limit int) ([]types.CycleSnapshot, error)

	Ping(ctx context.Context) error
	Close() error
}

// Tx is the unit of work handed to Update and View. Writes on a View Tx fail.
type Tx interface {
	// GetPool returns ErrAccountNotFound when the pool does not exist.
	GetPool(addr solana.PublicKey) (types.Pool, error)
	// CreatePool returns ErrAccountAlreadyInitialized when the address is taken.
	CreatePool(pool types.Pool) error
	PutPool(pool types.Pool) error
	ListPools() ([]types.Pool, error)

	// GetPosition reports found=false for an address that has never been written.
	GetPosition(addr solana.PublicKey) (pos types.Position, found bool, err error)
	PutPosition(pos types.Position) error
	ListPositions(pool solana.PublicKey) ([]types.Position, error)

	AppendEvent(rec types.EventRecord) error
	// ListEvents returns the newest events first.
	ListEvents(pool solana.PublicKey, limit int) ([]types.EventRecord, error)

	AppendPriceObservation(obs types.PriceObservation) error
	// RecentPrices returns up to limit observations in chronological order.
	RecentPrices(pool solana.PublicKey, limit int) ([]types.PriceObservation, error)
}

const (
	defaultListLimit = 50
	maxListLimit     = 1000
)

func clampLimit(limit int) int {
	if limit <= 0 {
		return defaultListLimit
	}
	if limit > maxListLimit {
		return maxListLimit
	}
	return limit
}
