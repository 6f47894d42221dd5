package settlement

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/apexlabs/nft-market/internal/contracts"
	"github.com/apexlabs/nft-market/internal/domain/market"
	"github.com/apexlabs/nft-market/internal/storage/memory"
)

type transferCall struct {
	txID market.TxID
	from market.Address
	to   market.Address
	amt  market.Price
}

// The fakes mirror the on-chain contracts: a repeated call carrying an
// already-applied transaction id is acknowledged without moving anything
// again, so a re-driven settlement lands at most once per leg.
type fakeNFT struct {
	owner        market.Address
	payouts      contracts.Payout
	transferred  []market.Address
	applied      map[market.TxID]bool
	failTransfer bool
}

func (f *fakeNFT) Owner(context.Context, market.Address, market.TokenID) (market.Address, error) {
	return f.owner, nil
}

func (f *fakeNFT) Payouts(context.Context, market.Address, market.Address, market.Price) (contracts.Payout, error) {
	return f.payouts, nil
}

func (f *fakeNFT) Transfer(_ context.Context, txID market.TxID, _, to market.Address, _ market.TokenID) error {
	if f.failTransfer {
		return errors.New("nft contract unavailable")
	}
	if f.applied == nil {
		f.applied = make(map[market.TxID]bool)
	}
	if f.applied[txID] {
		return nil
	}
	f.applied[txID] = true
	f.transferred = append(f.transferred, to)
	return nil
}

// legKey identifies a payment leg within a settlement transaction.
type legKey struct {
	txID market.TxID
	to   market.Address
}

type fakeFT struct {
	balances map[market.Address]market.Price
	calls    []transferCall
	applied  map[legKey]bool
	attempts int
	failAt   int // fail the nth attempt, 1-based; 0 disables
}

func (f *fakeFT) BalanceOf(_ context.Context, _, holder market.Address) (market.Price, error) {
	return f.balances[holder], nil
}

func (f *fakeFT) Transfer(_ context.Context, txID market.TxID, _ market.Address, from, to market.Address, amount market.Price) error {
	f.attempts++
	if f.failAt > 0 && f.attempts == f.failAt {
		return errors.New("ft contract unavailable")
	}
	if f.applied == nil {
		f.applied = make(map[legKey]bool)
	}
	key := legKey{txID: txID, to: to}
	if f.applied[key] {
		return nil
	}
	f.applied[key] = true
	f.calls = append(f.calls, transferCall{txID: txID, from: from, to: to, amt: amount})
	return nil
}

type fakeValue struct {
	calls    []transferCall
	applied  map[legKey]bool
	attempts int
	failAt   int
}

func (f *fakeValue) Transfer(_ context.Context, txID market.TxID, to market.Address, amount market.Price) error {
	f.attempts++
	if f.failAt > 0 && f.attempts == f.failAt {
		return errors.New("value transfer rejected")
	}
	if f.applied == nil {
		f.applied = make(map[legKey]bool)
	}
	key := legKey{txID: txID, to: to}
	if f.applied[key] {
		return nil
	}
	f.applied[key] = true
	f.calls = append(f.calls, transferCall{txID: txID, to: to, amt: amount})
	return nil
}

func TestCoordinator_NativeFeeSplit(t *testing.T) {
	nft := &fakeNFT{payouts: contracts.Payout{"seller": 200}}
	value := &fakeValue{}
	coord := New(nft, &fakeFT{}, value, "market", "treasury", 10, nil)

	sale := Sale{
		Item:   market.ItemKey{Contract: "nft-a", TokenID: "1"},
		Seller: "seller",
		Buyer:  "buyer",
		Price:  200,
		TxID:   7,
	}
	if err := coord.Execute(context.Background(), sale); err != nil {
		t.Fatalf("execute: %v", err)
	}

	// 10% fee to treasury, 90% of the payout to the seller.
	if len(value.calls) != 2 {
		t.Fatalf("expected 2 payment legs, got %d", len(value.calls))
	}
	if value.calls[0].to != "treasury" || value.calls[0].amt != 20 {
		t.Fatalf("treasury leg: %+v", value.calls[0])
	}
	if value.calls[1].to != "seller" || value.calls[1].amt != 180 {
		t.Fatalf("seller leg: %+v", value.calls[1])
	}
	for _, call := range value.calls {
		if call.txID != 7 {
			t.Fatalf("payment leg must carry the sale tx id: %+v", call)
		}
	}
	if len(nft.transferred) != 1 || nft.transferred[0] != "buyer" {
		t.Fatalf("nft transfer: %v", nft.transferred)
	}
}

func TestCoordinator_RoyaltySplitOrder(t *testing.T) {
	nft := &fakeNFT{payouts: contracts.Payout{"royalty-b": 40, "royalty-a": 60, "seller": 100}}
	value := &fakeValue{}
	coord := New(nft, &fakeFT{}, value, "market", "treasury", 0, nil)

	sale := Sale{Item: market.ItemKey{Contract: "nft-a", TokenID: "1"}, Seller: "seller", Buyer: "buyer", Price: 200, TxID: 3}
	if err := coord.Execute(context.Background(), sale); err != nil {
		t.Fatalf("execute: %v", err)
	}

	// No fee, payees in address order so a retry replays the same sequence.
	want := []transferCall{
		{txID: 3, to: "royalty-a", amt: 60},
		{txID: 3, to: "royalty-b", amt: 40},
		{txID: 3, to: "seller", amt: 100},
	}
	if len(value.calls) != len(want) {
		t.Fatalf("expected %d legs, got %d", len(want), len(value.calls))
	}
	for i, w := range want {
		if value.calls[i] != w {
			t.Fatalf("leg %d: want %+v, got %+v", i, w, value.calls[i])
		}
	}
}

func TestCoordinator_TokenSaleSource(t *testing.T) {
	nft := &fakeNFT{payouts: contracts.Payout{"seller": 100}}
	ft := &fakeFT{balances: map[market.Address]market.Price{}}
	coord := New(nft, ft, &fakeValue{}, "market", "treasury", 0, nil)

	sale := Sale{
		Item:       market.ItemKey{Contract: "nft-a", TokenID: "1"},
		Seller:     "seller",
		Buyer:      "buyer",
		FTContract: "usdx",
		Price:      100,
		TxID:       9,
	}
	if err := coord.Execute(context.Background(), sale); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if len(ft.calls) != 1 || ft.calls[0].from != "buyer" {
		t.Fatalf("unescrowed token sale must pull from the buyer: %+v", ft.calls)
	}

	ft.calls = nil
	sale.TxID = 10
	sale.Escrowed = true
	if err := coord.Execute(context.Background(), sale); err != nil {
		t.Fatalf("execute escrowed: %v", err)
	}
	if len(ft.calls) != 1 || ft.calls[0].from != "market" {
		t.Fatalf("escrowed token sale must pull from the marketplace: %+v", ft.calls)
	}
}

func TestCoordinator_FailureWrapsSentinel(t *testing.T) {
	nft := &fakeNFT{payouts: contracts.Payout{"seller": 100}, failTransfer: true}
	coord := New(nft, &fakeFT{}, &fakeValue{}, "market", "treasury", 0, nil)

	sale := Sale{Item: market.ItemKey{Contract: "nft-a", TokenID: "1"}, Seller: "seller", Buyer: "buyer", Price: 100, TxID: 4}
	err := coord.Execute(context.Background(), sale)
	if !errors.Is(err, market.ErrSettlementFailed) {
		t.Fatalf("expected ErrSettlementFailed, got %v", err)
	}
}

func TestCoordinator_RetryAfterFailedPaymentLeg(t *testing.T) {
	nft := &fakeNFT{payouts: contracts.Payout{"seller": 200}}
	value := &fakeValue{failAt: 2} // treasury leg lands, seller leg fails
	coord := New(nft, &fakeFT{}, value, "market", "treasury", 10, nil)

	sale := Sale{Item: market.ItemKey{Contract: "nft-a", TokenID: "1"}, Seller: "seller", Buyer: "buyer", Price: 200, TxID: 7}
	if err := coord.Execute(context.Background(), sale); !errors.Is(err, market.ErrSettlementFailed) {
		t.Fatalf("expected ErrSettlementFailed, got %v", err)
	}
	if len(nft.transferred) != 0 {
		t.Fatalf("ownership must not move before every leg lands: %v", nft.transferred)
	}

	// Re-drive the identical transaction. The replayed treasury leg carries
	// the applied tx id and must not debit a second time.
	value.failAt = 0
	if err := coord.Execute(context.Background(), sale); err != nil {
		t.Fatalf("retry: %v", err)
	}

	if len(value.calls) != 2 {
		t.Fatalf("expected one net debit per payee, got %d legs: %+v", len(value.calls), value.calls)
	}
	if value.calls[0].to != "treasury" || value.calls[0].amt != 20 {
		t.Fatalf("treasury leg: %+v", value.calls[0])
	}
	if value.calls[1].to != "seller" || value.calls[1].amt != 180 {
		t.Fatalf("seller leg: %+v", value.calls[1])
	}
	if len(nft.transferred) != 1 || nft.transferred[0] != "buyer" {
		t.Fatalf("expected exactly one net ownership transfer, got %v", nft.transferred)
	}
}

func TestCoordinator_RetryEscrowedTokenSale(t *testing.T) {
	nft := &fakeNFT{payouts: contracts.Payout{"royalty": 100, "seller": 100}}
	ft := &fakeFT{failAt: 3} // fee and royalty legs land, seller leg fails
	coord := New(nft, ft, &fakeValue{}, "market", "treasury", 10, nil)

	sale := Sale{
		Item:       market.ItemKey{Contract: "nft-a", TokenID: "1"},
		Seller:     "seller",
		Buyer:      "buyer",
		FTContract: "usdx",
		Escrowed:   true,
		Price:      200,
		TxID:       12,
	}
	if err := coord.Execute(context.Background(), sale); !errors.Is(err, market.ErrSettlementFailed) {
		t.Fatalf("expected ErrSettlementFailed, got %v", err)
	}

	ft.failAt = 0
	if err := coord.Execute(context.Background(), sale); err != nil {
		t.Fatalf("retry: %v", err)
	}

	want := []transferCall{
		{txID: 12, from: "market", to: "treasury", amt: 20},
		{txID: 12, from: "market", to: "royalty", amt: 90},
		{txID: 12, from: "market", to: "seller", amt: 90},
	}
	if len(ft.calls) != len(want) {
		t.Fatalf("expected one net debit per payee, got %d legs: %+v", len(ft.calls), ft.calls)
	}
	for i, w := range want {
		if ft.calls[i] != w {
			t.Fatalf("leg %d: want %+v, got %+v", i, w, ft.calls[i])
		}
	}
	if len(nft.transferred) != 1 || nft.transferred[0] != "buyer" {
		t.Fatalf("expected exactly one net ownership transfer, got %v", nft.transferred)
	}
}

func TestCoordinator_LargePriceFeeSplit(t *testing.T) {
	const price = market.Price(18_446_744_073_709_551_600)
	nft := &fakeNFT{payouts: contracts.Payout{"seller": price}}
	value := &fakeValue{}
	coord := New(nft, &fakeFT{}, value, "market", "treasury", 10, nil)

	sale := Sale{Item: market.ItemKey{Contract: "nft-a", TokenID: "1"}, Seller: "seller", Buyer: "buyer", Price: price, TxID: 21}
	if err := coord.Execute(context.Background(), sale); err != nil {
		t.Fatalf("execute: %v", err)
	}

	// The product price*percent no longer fits in 64 bits; the split must
	// still come out exact rather than wrapping around.
	if len(value.calls) != 2 {
		t.Fatalf("expected 2 payment legs, got %d", len(value.calls))
	}
	if value.calls[0].to != "treasury" || value.calls[0].amt != 1_844_674_407_370_955_160 {
		t.Fatalf("treasury leg: %+v", value.calls[0])
	}
	if value.calls[1].to != "seller" || value.calls[1].amt != 16_602_069_666_338_596_440 {
		t.Fatalf("seller leg: %+v", value.calls[1])
	}
}

type recordingRedriver struct {
	mu    sync.Mutex
	calls []market.ItemKey
	fail  bool
}

func (r *recordingRedriver) RerunTransaction(_ context.Context, key market.ItemKey) (market.Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, key)
	if r.fail {
		return market.Event{}, errors.New("still failing")
	}
	return market.Event{Kind: market.EventItemSold}, nil
}

func (r *recordingRedriver) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

func TestPoller_RedrivesLockedItems(t *testing.T) {
	store := memory.New()
	ctx := context.Background()

	item, _ := store.GetOrCreateItem(ctx, market.ItemKey{Contract: "nft-a", TokenID: "1"})
	item.Pending = &market.PendingSale{TxID: 1, Buyer: "buyer", Seller: "seller", Price: 10}
	if _, err := store.PutItem(ctx, item); err != nil {
		t.Fatalf("put: %v", err)
	}

	redriver := &recordingRedriver{}
	poller := NewPoller(store, redriver, 10*time.Millisecond, nil)
	if err := poller.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer poller.Stop(context.Background())

	deadline := time.After(2 * time.Second)
	for redriver.count() == 0 {
		select {
		case <-deadline:
			t.Fatal("poller never re-drove the locked item")
		case <-time.After(5 * time.Millisecond):
		}
	}
	if redriver.calls[0] != item.Key() {
		t.Fatalf("unexpected key: %v", redriver.calls[0])
	}
}

func TestPoller_StopIsIdempotent(t *testing.T) {
	poller := NewPoller(memory.New(), &recordingRedriver{}, 10*time.Millisecond, nil)
	if err := poller.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := poller.Stop(context.Background()); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if err := poller.Stop(context.Background()); err != nil {
		t.Fatalf("second stop: %v", err)
	}
}
