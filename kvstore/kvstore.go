package kvstore

import (
	"context"

	corestore "cosmossdk.io/core/store"
	"cosmossdk.io/store/dbadapter"
	"cosmossdk.io/store/prefix"
	storetypes "cosmossdk.io/store/types"
	dbm "github.com/cosmos/cosmos-db"
)

type storeCtxKey struct{}

// Adapter exposes a storetypes.KVStore through the error-returning corestore API
// that collections expects.
type Adapter struct {
	store storetypes.KVStore
}

var _ corestore.KVStore = Adapter{}

func NewAdapter(store storetypes.KVStore) Adapter {
	return Adapter{store: store}
}

func (a Adapter) Get(key []byte) ([]byte, error) {
	return a.store.Get(key), nil
}

func (a Adapter) Has(key []byte) (bool, error) {
	return a.store.Has(key), nil
}

func (a Adapter) Set(key, value []byte) error {
	a.store.Set(key, value)
	return nil
}

func (a Adapter) Delete(key []byte) error {
	a.store.Delete(key)
	return nil
}

func (a Adapter) Iterator(start, end []byte) (corestore.Iterator, error) {
	return a.store.Iterator(start, end), nil
}

func (a Adapter) ReverseIterator(start, end []byte) (corestore.Iterator, error) {
	return a.store.ReverseIterator(start, end), nil
}

// WithStore returns a context carrying store, to be opened by a ContextService.
func WithStore(ctx context.Context, store storetypes.KVStore) context.Context {
	return context.WithValue(ctx, storeCtxKey{}, store)
}

func StoreFromContext(ctx context.Context) (storetypes.KVStore, bool) {
	store, ok := ctx.Value(storeCtxKey{}).(storetypes.KVStore)
	return store, ok
}

// ContextService opens whichever KV store the caller placed on the context,
// scoped under prefix. It panics when the context carries no store, the same
// way the sdk runtime does for a missing store key.
type ContextService struct {
	prefix []byte
}

var _ corestore.KVStoreService = ContextService{}

func NewContextService(prefix []byte) ContextService {
	return ContextService{prefix: prefix}
}

func (s ContextService) OpenKVStore(ctx context.Context) corestore.KVStore {
	store, ok := StoreFromContext(ctx)
	if !ok {
		panic("kvstore: no store in context")
	}
	if len(s.prefix) > 0 {
		store = prefix.NewStore(store, s.prefix)
	}
	return NewAdapter(store)
}

// MemService always opens the same in-memory store, regardless of context.
type MemService struct {
	store storetypes.KVStore
}

var _ corestore.KVStoreService = (*MemService)(nil)

func NewMemService() *MemService {
	return &MemService{store: NewMemStore()}
}

func (s *MemService) OpenKVStore(context.Context) corestore.KVStore {
	return NewAdapter(s.store)
}

func (s *MemService) Store() storetypes.KVStore {
	return s.store
}

func NewMemStore() storetypes.KVStore {
	return dbadapter.Store{DB: dbm.NewMemDB()}
}
