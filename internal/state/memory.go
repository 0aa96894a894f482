package state

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/gagliardetto/solana-go"

	"github.com/fluxdex/flux-core/internal/dexerrors"
	"github.com/fluxdex/flux-core/internal/types"
)

// MemoryStore keeps everything in process. Update holds the write lock for the
// whole unit of work and applies staged writes only after fn succeeds.
type MemoryStore struct {
	mu sync.RWMutex

	pools     map[solana.PublicKey]types.Pool
	positions map[solana.PublicKey]types.Position
	events    map[solana.PublicKey][]types.EventRecord
	prices    map[solana.PublicKey][]types.PriceObservation

	params       map[string][]storedParams
	nextParamsID int64

	cycleNumber int
	cycles      []types.CycleSnapshot
}

type storedParams struct {
	id      int64
	version int
	active  bool
	params  types.ProtocolParameters
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		pools:     make(map[solana.PublicKey]types.Pool),
		positions: make(map[solana.PublicKey]types.Position),
		events:    make(map[solana.PublicKey][]types.EventRecord),
		prices:    make(map[solana.PublicKey][]types.PriceObservation),
		params:    make(map[string][]storedParams),
	}
}

var _ Store = (*MemoryStore)(nil)

func (s *MemoryStore) Update(ctx context.Context, fn func(tx Tx) error) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := newMemoryTx(s, true)
	if err := fn(tx); err != nil {
		return err
	}
	tx.commit()
	return nil
}

func (s *MemoryStore) View(ctx context.Context, fn func(tx Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	return fn(newMemoryTx(s, false))
}

func (s *MemoryStore) SaveProtocolParameters(_ context.Context, params types.ProtocolParameters, configName string, version int, makeActive bool) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	list := s.params[configName]
	for _, p := range list {
		if p.version == version {
			return 0, fmt.Errorf("parameters %s version %d already exist", configName, version)
		}
	}
	if makeActive {
		for i := range list {
			list[i].active = false
		}
	}
	s.nextParamsID++
	s.params[configName] = append(list, storedParams{id: s.nextParamsID, version: version, active: makeActive, params: params})
	return s.nextParamsID, nil
}

func (s *MemoryStore) LoadActiveProtocolParameters(_ context.Context, configName string) (*types.ProtocolParameters, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	list := s.params[configName]
	for i := len(list) - 1; i >= 0; i-- {
		if list[i].active {
			p := list[i].params
			return &p, nil
		}
	}
	return nil, fmt.Errorf("no active protocol parameters found for config '%s'", configName)
}

func (s *MemoryStore) GetCurrentCycleNumber(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.cycleNumber, nil
}

func (s *MemoryStore) IncrementCycleNumber(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cycleNumber++
	return s.cycleNumber, nil
}

func (s *MemoryStore) SaveCycleSnapshot(_ context.Context, snapshot types.CycleSnapshot) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot.SnapshotID = int64(len(s.cycles) + 1)
	s.cycles = append(s.cycles, snapshot)
	return snapshot.SnapshotID, nil
}

func (s *MemoryStore) GetRecentCycles(_ context.Context, limit int) ([]types.CycleSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	limit = clampLimit(limit)
	out := make([]types.CycleSnapshot, 0, limit)
	for i := len(s.cycles) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, s.cycles[i])
	}
	return out, nil
}

func (s *MemoryStore) Ping(context.Context) error { return nil }

func (s *MemoryStore) Close() error { return nil }

// memoryTx stages writes over the committed maps.
type memoryTx struct {
	store    *MemoryStore
	writable bool

	pools     map[solana.PublicKey]types.Pool
	newPools  map[solana.PublicKey]bool
	positions map[solana.PublicKey]types.Position
	events    []types.EventRecord
	prices    []types.PriceObservation
}

func newMemoryTx(s *MemoryStore, writable bool) *memoryTx {
	return &memoryTx{
		store:     s,
		writable:  writable,
		pools:     make(map[solana.PublicKey]types.Pool),
		newPools:  make(map[solana.PublicKey]bool),
		positions: make(map[solana.PublicKey]types.Position),
	}
}

func (tx *memoryTx) checkWritable() error {
	if !tx.writable {
		return fmt.Errorf("write attempted in read-only transaction")
	}
	return nil
}

func (tx *memoryTx) GetPool(addr solana.PublicKey) (types.Pool, error) {
	if p, ok := tx.pools[addr]; ok {
		return p, nil
	}
	if p, ok := tx.store.pools[addr]; ok {
		return p, nil
	}
	return types.Pool{}, dexerrors.ErrAccountNotFound.Wrapf("pool %s", addr)
}

func (tx *memoryTx) CreatePool(pool types.Pool) error {
	if err := tx.checkWritable(); err != nil {
		return err
	}
	if _, err := tx.GetPool(pool.Address); err == nil {
		return dexerrors.ErrAccountAlreadyInitialized.Wrapf("pool %s", pool.Address)
	}
	tx.pools[pool.Address] = pool
	tx.newPools[pool.Address] = true
	return nil
}

func (tx *memoryTx) PutPool(pool types.Pool) error {
	if err := tx.checkWritable(); err != nil {
		return err
	}
	if _, err := tx.GetPool(pool.Address); err != nil {
		return err
	}
	tx.pools[pool.Address] = pool
	return nil
}

func (tx *memoryTx) ListPools() ([]types.Pool, error) {
	merged := make(map[solana.PublicKey]types.Pool, len(tx.store.pools)+len(tx.pools))
	for k, v := range tx.store.pools {
		merged[k] = v
	}
	for k, v := range tx.pools {
		merged[k] = v
	}
	out := make([]types.Pool, 0, len(merged))
	for _, p := range merged {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt < out[j].CreatedAt || (out[i].CreatedAt == out[j].CreatedAt && out[i].Address.String() < out[j].Address.String()) })
	return out, nil
}

func (tx *memoryTx) GetPosition(addr solana.PublicKey) (types.Position, bool, error) {
	if p, ok := tx.positions[addr]; ok {
		return p, true, nil
	}
	if p, ok := tx.store.positions[addr]; ok {
		return p, true, nil
	}
	return types.Position{}, false, nil
}

func (tx *memoryTx) PutPosition(pos types.Position) error {
	if err := tx.checkWritable(); err != nil {
		return err
	}
	if _, err := tx.GetPool(pos.Pool); err != nil {
		return err
	}
	tx.positions[pos.Address] = pos
	return nil
}

func (tx *memoryTx) ListPositions(pool solana.PublicKey) ([]types.Position, error) {
	merged := make(map[solana.PublicKey]types.Position)
	for k, v := range tx.store.positions {
		if v.Pool.Equals(pool) {
			merged[k] = v
		}
	}
	for k, v := range tx.positions {
		if v.Pool.Equals(pool) {
			merged[k] = v
		}
	}
	out := make([]types.Position, 0, len(merged))
	for _, p := range merged {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Address.String() < out[j].Address.String() })
	return out, nil
}

func (tx *memoryTx) AppendEvent(rec types.EventRecord) error {
	if err := tx.checkWritable(); err != nil {
		return err
	}
	tx.events = append(tx.events, rec)
	return nil
}

func (tx *memoryTx) ListEvents(pool solana.PublicKey, limit int) ([]types.EventRecord, error) {
	limit = clampLimit(limit)
	all := append(append([]types.EventRecord(nil), tx.store.events[pool]...), filterEvents(tx.events, pool)...)
	out := make([]types.EventRecord, 0, limit)
	for i := len(all) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, all[i])
	}
	return out, nil
}

func (tx *memoryTx) AppendPriceObservation(obs types.PriceObservation) error {
	if err := tx.checkWritable(); err != nil {
		return err
	}
	if obs.Timestamp == 0 {
		obs.Timestamp = time.Now().Unix()
	}
	tx.prices = append(tx.prices, obs)
	return nil
}

func (tx *memoryTx) RecentPrices(pool solana.PublicKey, limit int) ([]types.PriceObservation, error) {
	limit = clampLimit(limit)
	all := append([]types.PriceObservation(nil), tx.store.prices[pool]...)
	for _, o := range tx.prices {
		if o.Pool.Equals(pool) {
			all = append(all, o)
		}
	}
	if len(all) > limit {
		all = all[len(all)-limit:]
	}
	return all, nil
}

func (tx *memoryTx) commit() {
	s := tx.store
	for k, v := range tx.pools {
		s.pools[k] = v
	}
	for k, v := range tx.positions {
		s.positions[k] = v
	}
	for _, e := range tx.events {
		s.events[e.Pool] = append(s.events[e.Pool], e)
	}
	for _, o := range tx.prices {
		s.prices[o.Pool] = append(s.prices[o.Pool], o)
	}
}

func filterEvents(events []types.EventRecord, pool solana.PublicKey) []types.EventRecord {
	var out []types.EventRecord
	for _, e := range events {
		if e.Pool.Equals(pool) {
			out = append(out, e)
		}
	}
	return out
}
