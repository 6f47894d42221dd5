package market

import (
	"encoding/json"
	"testing"
)

func TestBook_AddRemove(t *testing.T) {
	book := NewBook()

	if ok := book.Add(BookKey{Price: 100}, "alice"); !ok {
		t.Fatal("add should succeed on an empty book")
	}
	if ok := book.Add(BookKey{Price: 100}, "bob"); ok {
		t.Fatal("duplicate key must be rejected")
	}
	if holder, ok := book.Get(BookKey{Price: 100}); !ok || holder != "alice" {
		t.Fatalf("duplicate add must not overwrite: %s %v", holder, ok)
	}

	// Same price under a different payment token is a distinct key.
	if ok := book.Add(BookKey{FTContract: "usdx", Price: 100}, "carol"); !ok {
		t.Fatal("same price under another token must be accepted")
	}
	if book.Len() != 2 {
		t.Fatalf("expected 2 entries, got %d", book.Len())
	}

	if removed := book.Remove(BookKey{Price: 100}); !removed {
		t.Fatal("remove should report the entry existed")
	}
	if removed := book.Remove(BookKey{Price: 100}); removed {
		t.Fatal("second remove should report a missing entry")
	}
}

func TestBook_Ordering(t *testing.T) {
	book := NewBook()
	book.Add(BookKey{Price: 300}, "c")
	book.Add(BookKey{Price: 100}, "a")
	book.Add(BookKey{Price: 200}, "b")
	book.Add(BookKey{FTContract: "usdx", Price: 50}, "d")

	entries := book.Entries()
	if len(entries) != 4 {
		t.Fatalf("expected 4 entries, got %d", len(entries))
	}
	// Native entries first (empty token sorts lowest), ascending by price.
	wantPrices := []Price{100, 200, 300, 50}
	for i, want := range wantPrices {
		if entries[i].Price != want {
			t.Fatalf("entry %d: want price %d, got %d", i, want, entries[i].Price)
		}
	}

	best, ok := book.Best(ZeroAddress)
	if !ok || best.Price != 300 || best.Holder != "c" {
		t.Fatalf("best native entry: %+v %v", best, ok)
	}
	best, ok = book.Best("usdx")
	if !ok || best.Price != 50 {
		t.Fatalf("best usdx entry: %+v %v", best, ok)
	}
	if _, ok := book.Best("unknown"); ok {
		t.Fatal("best of an unknown token must report not found")
	}
}

func TestBook_JSONRoundTrip(t *testing.T) {
	book := NewBook()
	book.Add(BookKey{Price: 10}, "a")
	book.Add(BookKey{FTContract: "usdx", Price: 20}, "b")

	raw, err := json.Marshal(book)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	restored := NewBook()
	if err := json.Unmarshal(raw, restored); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if restored.Len() != 2 {
		t.Fatalf("expected 2 entries after round trip, got %d", restored.Len())
	}
	if holder, ok := restored.Get(BookKey{FTContract: "usdx", Price: 20}); !ok || holder != "b" {
		t.Fatalf("entry lost in round trip: %s %v", holder, ok)
	}
}

func TestItem_CloneIsIndependent(t *testing.T) {
	item := NewItem(ItemKey{Contract: "nft", TokenID: "1"})
	item.Auction = &Auction{CurrentPrice: 10}
	item.Pending = &PendingSale{TxID: 1}
	item.Offers.Add(BookKey{Price: 5}, "a")

	clone := item.Clone()
	clone.Auction.CurrentPrice = 99
	clone.Pending.TxID = 99
	clone.Offers.Add(BookKey{Price: 6}, "b")

	if item.Auction.CurrentPrice != 10 {
		t.Fatal("clone shares the auction")
	}
	if item.Pending.TxID != 1 {
		t.Fatal("clone shares the pending sale")
	}
	if item.Offers.Len() != 1 {
		t.Fatal("clone shares the offer book")
	}
}

func TestOfferHash_Deterministic(t *testing.T) {
	key := ItemKey{Contract: "nft", TokenID: "1"}
	a := OfferHash(key, "usdx", 100)
	b := OfferHash(key, "usdx", 100)
	if a != b {
		t.Fatal("hash must be deterministic")
	}
	if a == OfferHash(key, "usdx", 101) {
		t.Fatal("hash must cover the price")
	}
	if a == OfferHash(key, ZeroAddress, 100) {
		t.Fatal("hash must cover the payment token")
	}
}
