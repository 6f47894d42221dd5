// Package storage defines the persistence interfaces of the marketplace.
package storage

import (
	"context"

	"github.com/apexlabs/nft-market/internal/domain/market"
)

// ItemStore persists item records keyed by (NFT contract, token id).
type ItemStore interface {
	GetItem(ctx context.Context, key market.ItemKey) (market.Item, error)
	GetOrCreateItem(ctx context.Context, key market.ItemKey) (market.Item, error)
	PutItem(ctx context.Context, item market.Item) (market.Item, error)
	ListItems(ctx context.Context, contract market.Address) ([]market.Item, error)
	// ListLockedItems returns items with an in-flight settlement, for the
	// retry poller.
	ListLockedItems(ctx context.Context) ([]market.Item, error)
}

// RegistryStore persists the approval sets. The sets only grow; there is no
// removal.
type RegistryStore interface {
	AddNFTContract(ctx context.Context, addr market.Address) error
	AddFTContract(ctx context.Context, addr market.Address) error
	IsApprovedNFT(ctx context.Context, addr market.Address) (bool, error)
	IsApprovedFT(ctx context.Context, addr market.Address) (bool, error)
	ListNFTContracts(ctx context.Context) ([]market.Address, error)
	ListFTContracts(ctx context.Context) ([]market.Address, error)
}

// TransactionStore hands out settlement transaction ids from a monotonic
// market-wide counter.
type TransactionStore interface {
	NextTransactionID(ctx context.Context) (market.TxID, error)
}
