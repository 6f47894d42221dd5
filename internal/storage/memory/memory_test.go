package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/apexlabs/nft-market/internal/domain/market"
)

func TestStore_Items(t *testing.T) {
	store := New()
	ctx := context.Background()
	key := market.ItemKey{Contract: "nft", TokenID: "1"}

	if _, err := store.GetItem(ctx, key); !errors.Is(err, market.ErrItemNotFound) {
		t.Fatalf("expected ErrItemNotFound, got %v", err)
	}

	item, err := store.GetOrCreateItem(ctx, key)
	if err != nil {
		t.Fatalf("get or create: %v", err)
	}
	if item.Mode != market.SaleModeNone || item.CreatedAt.IsZero() {
		t.Fatalf("unexpected new item: %+v", item)
	}

	item.Owner = "alice"
	item.Mode = market.SaleModeFixed
	item.Price = 100
	if _, err := store.PutItem(ctx, item); err != nil {
		t.Fatalf("put: %v", err)
	}

	got, err := store.GetItem(ctx, key)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Owner != "alice" || got.Price != 100 {
		t.Fatalf("unexpected stored item: %+v", got)
	}
	if got.CreatedAt != item.CreatedAt {
		t.Fatal("put must preserve the original created_at")
	}

	// Mutating the returned copy must not touch the stored record.
	got.Owner = "mallory"
	again, _ := store.GetItem(ctx, key)
	if again.Owner != "alice" {
		t.Fatal("store returned a shared reference")
	}
}

func TestStore_ListLockedItems(t *testing.T) {
	store := New()
	ctx := context.Background()

	free, _ := store.GetOrCreateItem(ctx, market.ItemKey{Contract: "nft", TokenID: "1"})
	if _, err := store.PutItem(ctx, free); err != nil {
		t.Fatalf("put: %v", err)
	}
	locked, _ := store.GetOrCreateItem(ctx, market.ItemKey{Contract: "nft", TokenID: "2"})
	locked.Pending = &market.PendingSale{TxID: 1, Buyer: "bob"}
	if _, err := store.PutItem(ctx, locked); err != nil {
		t.Fatalf("put: %v", err)
	}

	result, err := store.ListLockedItems(ctx)
	if err != nil {
		t.Fatalf("list locked: %v", err)
	}
	if len(result) != 1 || result[0].TokenID != "2" {
		t.Fatalf("unexpected locked set: %+v", result)
	}
}

func TestStore_Registry(t *testing.T) {
	store := New()
	ctx := context.Background()

	if err := store.AddNFTContract(ctx, "nft-a"); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := store.AddFTContract(ctx, "usdx"); err != nil {
		t.Fatalf("add: %v", err)
	}

	if ok, _ := store.IsApprovedNFT(ctx, "nft-a"); !ok {
		t.Fatal("nft-a should be approved")
	}
	if ok, _ := store.IsApprovedNFT(ctx, "usdx"); ok {
		t.Fatal("ft approval must not leak into the nft set")
	}
	if ok, _ := store.IsApprovedFT(ctx, "usdx"); !ok {
		t.Fatal("usdx should be approved")
	}

	nfts, _ := store.ListNFTContracts(ctx)
	if len(nfts) != 1 || nfts[0] != "nft-a" {
		t.Fatalf("unexpected nft list: %v", nfts)
	}
}

func TestStore_NextTransactionID(t *testing.T) {
	store := New()
	ctx := context.Background()

	first, err := store.NextTransactionID(ctx)
	if err != nil {
		t.Fatalf("next: %v", err)
	}
	if first == 0 {
		t.Fatal("transaction ids start at 1, zero is never assigned")
	}
	second, _ := store.NextTransactionID(ctx)
	if second != first+1 {
		t.Fatalf("ids must be monotonic: %d then %d", first, second)
	}
}
