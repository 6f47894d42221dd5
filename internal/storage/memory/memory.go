// Package memory provides an in-memory implementation of the storage
// interfaces. It is safe for concurrent use and is primarily intended for
// tests and local development.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/apexlabs/nft-market/internal/domain/market"
	"github.com/apexlabs/nft-market/internal/storage"
)

// Store is the in-memory store.
type Store struct {
	mu     sync.RWMutex
	items  map[market.ItemKey]market.Item
	nfts   map[market.Address]struct{}
	fts    map[market.Address]struct{}
	nextTx market.TxID
}

var _ storage.ItemStore = (*Store)(nil)
var _ storage.RegistryStore = (*Store)(nil)
var _ storage.TransactionStore = (*Store)(nil)

// New creates an empty store.
func New() *Store {
	return &Store{
		items:  make(map[market.ItemKey]market.Item),
		nfts:   make(map[market.Address]struct{}),
		fts:    make(map[market.Address]struct{}),
		nextTx: 1,
	}
}

// ItemStore implementation ---------------------------------------------------

func (s *Store) GetItem(_ context.Context, key market.ItemKey) (market.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	item, ok := s.items[key]
	if !ok {
		return market.Item{}, fmt.Errorf("item %s: %w", key, market.ErrItemNotFound)
	}
	return item.Clone(), nil
}

func (s *Store) GetOrCreateItem(_ context.Context, key market.ItemKey) (market.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if item, ok := s.items[key]; ok {
		return item.Clone(), nil
	}

	item := market.NewItem(key)
	now := time.Now().UTC()
	item.CreatedAt = now
	item.UpdatedAt = now
	s.items[key] = item.Clone()
	return item, nil
}

func (s *Store) PutItem(_ context.Context, item market.Item) (market.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := item.Key()
	original, ok := s.items[key]
	if ok {
		item.CreatedAt = original.CreatedAt
	} else if item.CreatedAt.IsZero() {
		item.CreatedAt = time.Now().UTC()
	}
	item.UpdatedAt = time.Now().UTC()

	s.items[key] = item.Clone()
	return item, nil
}

func (s *Store) ListItems(_ context.Context, contract market.Address) ([]market.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]market.Item, 0)
	for key, item := range s.items {
		if contract == market.ZeroAddress || key.Contract == contract {
			result = append(result, item.Clone())
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Key().String() < result[j].Key().String()
	})
	return result, nil
}

func (s *Store) ListLockedItems(_ context.Context) ([]market.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]market.Item, 0)
	for _, item := range s.items {
		if item.Locked() {
			result = append(result, item.Clone())
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Key().String() < result[j].Key().String()
	})
	return result, nil
}

// RegistryStore implementation -----------------------------------------------

func (s *Store) AddNFTContract(_ context.Context, addr market.Address) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nfts[addr] = struct{}{}
	return nil
}

func (s *Store) AddFTContract(_ context.Context, addr market.Address) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fts[addr] = struct{}{}
	return nil
}

func (s *Store) IsApprovedNFT(_ context.Context, addr market.Address) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.nfts[addr]
	return ok, nil
}

func (s *Store) IsApprovedFT(_ context.Context, addr market.Address) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.fts[addr]
	return ok, nil
}

func (s *Store) ListNFTContracts(_ context.Context) ([]market.Address, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sortedAddresses(s.nfts), nil
}

func (s *Store) ListFTContracts(_ context.Context) ([]market.Address, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sortedAddresses(s.fts), nil
}

// TransactionStore implementation --------------------------------------------

func (s *Store) NextTransactionID(_ context.Context) (market.TxID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextTx
	s.nextTx++
	return id, nil
}

func sortedAddresses(set map[market.Address]struct{}) []market.Address {
	out := make([]market.Address, 0, len(set))
	for addr := range set {
		out = append(out, addr)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
