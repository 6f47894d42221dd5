// Package market implements the marketplace action dispatcher: listing,
// fixed-price sales, auctions and price offers over the item store, driving
// the settlement coordinator wherever funds or ownership move.
package market

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/apexlabs/nft-market/internal/contracts"
	domain "github.com/apexlabs/nft-market/internal/domain/market"
	"github.com/apexlabs/nft-market/internal/events"
	"github.com/apexlabs/nft-market/internal/metrics"
	"github.com/apexlabs/nft-market/internal/services/settlement"
	"github.com/apexlabs/nft-market/internal/storage"
	"github.com/apexlabs/nft-market/pkg/logger"
)

// Settler drives the cross-actor protocol for one sale.
type Settler interface {
	Execute(ctx context.Context, sale settlement.Sale) error
}

// Service validates and applies inbound marketplace actions. Mutating actions
// are serialized through a single mutex, the process rendition of the actor's
// one-message-at-a-time discipline; the per-item pending-sale field stays the
// advisory lock across the asynchronous settlement calls.
type Service struct {
	mu        sync.Mutex
	items     storage.ItemStore
	registry  storage.RegistryStore
	txs       storage.TransactionStore
	nft       contracts.NFTClient
	ft        contracts.FTClient
	value     contracts.ValueClient
	settler   Settler
	publisher events.Publisher
	escrow    domain.Address
	clock     func() int64
	log       *logger.Logger
}

// New constructs the market service. escrow is the marketplace's own address,
// the holder of funds pulled when offers are placed.
func New(items storage.ItemStore, registry storage.RegistryStore, txs storage.TransactionStore,
	nft contracts.NFTClient, ft contracts.FTClient, value contracts.ValueClient,
	settler Settler, publisher events.Publisher, escrow domain.Address, log *logger.Logger) *Service {
	if publisher == nil {
		publisher = events.NewMemoryPublisher()
	}
	if log == nil {
		log = logger.NewDefault("market")
	}
	return &Service{
		items:     items,
		registry:  registry,
		txs:       txs,
		nft:       nft,
		ft:        ft,
		value:     value,
		settler:   settler,
		publisher: publisher,
		escrow:    escrow,
		clock:     func() int64 { return time.Now().UnixMilli() },
		log:       log,
	}
}

// WithClock overrides the millisecond clock. Intended for tests.
func (s *Service) WithClock(clock func() int64) *Service {
	s.clock = clock
	return s
}

// List adds or updates market data for an item. A nil price suspends the
// direct sale.
func (s *Service) List(ctx context.Context, caller, nftContract domain.Address, tokenID domain.TokenID, ftContract domain.Address, price *domain.Price) (ev domain.Event, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	defer func() { metrics.ObserveAction("list_item", err) }()

	if err = s.requireApproved(ctx, nftContract, ftContract); err != nil {
		return domain.Event{}, err
	}
	if price != nil && *price == 0 {
		return domain.Event{}, fmt.Errorf("list item: %w", domain.ErrZeroPrice)
	}

	owner, err := s.nft.Owner(ctx, nftContract, tokenID)
	if err != nil {
		return domain.Event{}, fmt.Errorf("owner query: %w", err)
	}
	if owner != caller {
		return domain.Event{}, fmt.Errorf("list item: caller does not own the token: %w", domain.ErrUnauthorized)
	}

	item, err := s.items.GetOrCreateItem(ctx, domain.ItemKey{Contract: nftContract, TokenID: tokenID})
	if err != nil {
		return domain.Event{}, err
	}
	if item.Locked() {
		return domain.Event{}, fmt.Errorf("list item: %w", domain.ErrTransactionPending)
	}
	if item.AuctionOpen() {
		return domain.Event{}, fmt.Errorf("list item: %w", domain.ErrAuctionActive)
	}

	item.Owner = caller
	item.FTContract = ftContract
	if price != nil {
		item.Mode = domain.SaleModeFixed
		item.Price = *price
	} else {
		item.Mode = domain.SaleModeNone
		item.Price = 0
	}
	if _, err = s.items.PutItem(ctx, item); err != nil {
		return domain.Event{}, err
	}

	s.log.WithField("item", item.Key().String()).
		WithField("owner", caller).
		Info("market data added")
	ev = s.newEvent(domain.EventMarketDataAdded, item)
	ev.Price = item.Price
	s.emit(ctx, ev)
	return ev, nil
}

// Buy purchases a listed item at its asking price. attached is the native
// value escrowed with the action; it is ignored for token sales. Re-invoking
// Buy while the caller's own purchase is pending re-drives the settlement
// under the same transaction id.
func (s *Service) Buy(ctx context.Context, caller, nftContract domain.Address, tokenID domain.TokenID, attached domain.Price) (ev domain.Event, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	defer func() { metrics.ObserveAction("buy_item", err) }()

	item, err := s.items.GetItem(ctx, domain.ItemKey{Contract: nftContract, TokenID: tokenID})
	if err != nil {
		return domain.Event{}, err
	}

	if item.Locked() {
		if item.Pending.Buyer != caller {
			return domain.Event{}, fmt.Errorf("buy item: %w", domain.ErrTransactionPending)
		}
		return s.redrive(ctx, item)
	}

	if item.AuctionOpen() {
		return domain.Event{}, fmt.Errorf("buy item: %w", domain.ErrAuctionActive)
	}
	if !item.ForSale() {
		return domain.Event{}, fmt.Errorf("buy item: %w", domain.ErrNotForSale)
	}
	if err = s.requirePayment(ctx, item.FTContract, caller, item.Price, attached); err != nil {
		return domain.Event{}, err
	}

	txID, err := s.txs.NextTransactionID(ctx)
	if err != nil {
		return domain.Event{}, fmt.Errorf("assign transaction id: %w", err)
	}
	item.Pending = &domain.PendingSale{
		TxID:       txID,
		Buyer:      caller,
		Seller:     item.Owner,
		Price:      item.Price,
		FTContract: item.FTContract,
		Escrowed:   item.FTContract == domain.ZeroAddress,
	}
	// The lock must be durable before the first cross-actor call.
	if item, err = s.items.PutItem(ctx, item); err != nil {
		return domain.Event{}, err
	}

	return s.settle(ctx, item, false)
}

// CreateAuction opens an auction on an item. minPrice is the starting price,
// bidPeriod the anti-snipe window and duration the auction length, both in
// milliseconds.
func (s *Service) CreateAuction(ctx context.Context, caller, nftContract domain.Address, tokenID domain.TokenID, ftContract domain.Address, minPrice domain.Price, bidPeriod, duration int64) (ev domain.Event, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	defer func() { metrics.ObserveAction("create_auction", err) }()

	if err = s.requireApproved(ctx, nftContract, ftContract); err != nil {
		return domain.Event{}, err
	}
	if minPrice == 0 {
		return domain.Event{}, fmt.Errorf("create auction: %w", domain.ErrZeroPrice)
	}
	if bidPeriod <= 0 || duration <= 0 {
		return domain.Event{}, fmt.Errorf("create auction: bid period and duration must be positive")
	}

	owner, err := s.nft.Owner(ctx, nftContract, tokenID)
	if err != nil {
		return domain.Event{}, fmt.Errorf("owner query: %w", err)
	}
	if owner != caller {
		return domain.Event{}, fmt.Errorf("create auction: caller does not own the token: %w", domain.ErrUnauthorized)
	}

	item, err := s.items.GetOrCreateItem(ctx, domain.ItemKey{Contract: nftContract, TokenID: tokenID})
	if err != nil {
		return domain.Event{}, err
	}
	if item.Locked() {
		return domain.Event{}, fmt.Errorf("create auction: %w", domain.ErrTransactionPending)
	}
	if item.AuctionOpen() {
		return domain.Event{}, fmt.Errorf("create auction: %w", domain.ErrAuctionActive)
	}

	now := s.clock()
	item.Owner = caller
	item.FTContract = ftContract
	item.Mode = domain.SaleModeAuction
	item.Price = 0
	item.Auction = &domain.Auction{
		BidPeriod:     bidPeriod,
		StartedAt:     now,
		EndedAt:       now + duration,
		CurrentPrice:  minPrice,
		CurrentWinner: domain.ZeroAddress,
	}
	if _, err = s.items.PutItem(ctx, item); err != nil {
		return domain.Event{}, err
	}

	s.log.WithField("item", item.Key().String()).
		WithField("min_price", minPrice).
		Info("auction created")
	ev = s.newEvent(domain.EventAuctionCreated, item)
	ev.Price = minPrice
	s.emit(ctx, ev)
	return ev, nil
}

// AddBid places a bid on an open auction. The bid must strictly exceed the
// current price; a bid landing within the bid period of expiry extends the
// auction.
func (s *Service) AddBid(ctx context.Context, caller, nftContract domain.Address, tokenID domain.TokenID, price, attached domain.Price) (ev domain.Event, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	defer func() { metrics.ObserveAction("add_bid", err) }()

	item, err := s.items.GetItem(ctx, domain.ItemKey{Contract: nftContract, TokenID: tokenID})
	if err != nil {
		return domain.Event{}, err
	}
	if item.Locked() {
		return domain.Event{}, fmt.Errorf("add bid: %w", domain.ErrTransactionPending)
	}
	if !item.AuctionOpen() {
		return domain.Event{}, fmt.Errorf("add bid: %w", domain.ErrNoAuction)
	}

	auction := item.Auction
	now := s.clock()
	if now >= auction.EndedAt || auction.Tx != nil {
		return domain.Event{}, fmt.Errorf("add bid: %w", domain.ErrAuctionExpired)
	}
	if price <= auction.CurrentPrice {
		return domain.Event{}, fmt.Errorf("add bid: %w", domain.ErrPriceTooLow)
	}
	if err = s.requirePayment(ctx, item.FTContract, caller, price, attached); err != nil {
		return domain.Event{}, err
	}

	// Outbid native escrow goes back to the previous winner before the new
	// bid is recorded.
	if item.FTContract == domain.ZeroAddress && auction.CurrentWinner != domain.ZeroAddress {
		refundTx, err := s.txs.NextTransactionID(ctx)
		if err != nil {
			return domain.Event{}, fmt.Errorf("assign transaction id: %w", err)
		}
		if err := s.value.Transfer(ctx, refundTx, auction.CurrentWinner, auction.CurrentPrice); err != nil {
			return domain.Event{}, fmt.Errorf("refund previous bidder: %w", err)
		}
	}

	auction.CurrentPrice = price
	auction.CurrentWinner = caller
	if auction.EndedAt-now < auction.BidPeriod {
		auction.EndedAt = now + auction.BidPeriod
	}
	item.Bids.Add(domain.BookKey{FTContract: item.FTContract, Price: price}, caller)

	if _, err = s.items.PutItem(ctx, item); err != nil {
		return domain.Event{}, err
	}

	s.log.WithField("item", item.Key().String()).
		WithField("bidder", caller).
		WithField("price", price).
		Info("bid added")
	ev = s.newEvent(domain.EventBidAdded, item)
	ev.Price = price
	s.emit(ctx, ev)
	return ev, nil
}

// SettleAuction closes an expired auction: cancellation when no bid was
// placed, otherwise settlement of the winning bid. A settle call on an
// auction whose settlement already started safely re-drives the recorded
// transaction id.
func (s *Service) SettleAuction(ctx context.Context, nftContract domain.Address, tokenID domain.TokenID) (ev domain.Event, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	defer func() { metrics.ObserveAction("settle_auction", err) }()

	item, err := s.items.GetItem(ctx, domain.ItemKey{Contract: nftContract, TokenID: tokenID})
	if err != nil {
		return domain.Event{}, err
	}

	if item.Locked() {
		return s.redrive(ctx, item)
	}

	if !item.AuctionOpen() {
		return domain.Event{}, fmt.Errorf("settle auction: %w", domain.ErrNoAuction)
	}
	auction := item.Auction
	if s.clock() < auction.EndedAt {
		return domain.Event{}, fmt.Errorf("settle auction: %w", domain.ErrAuctionStillOpen)
	}

	if auction.CurrentWinner == domain.ZeroAddress {
		item.Mode = domain.SaleModeNone
		item.Auction = nil
		if item, err = s.items.PutItem(ctx, item); err != nil {
			return domain.Event{}, err
		}
		s.log.WithField("item", item.Key().String()).Info("auction cancelled, no bids")
		ev = s.newEvent(domain.EventAuctionCancelled, item)
		s.emit(ctx, ev)
		return ev, nil
	}

	ticket := auction.Tx
	if ticket == nil {
		txID, err := s.txs.NextTransactionID(ctx)
		if err != nil {
			return domain.Event{}, fmt.Errorf("assign transaction id: %w", err)
		}
		ticket = &domain.SettlementTicket{
			Winner: auction.CurrentWinner,
			Price:  auction.CurrentPrice,
			TxID:   txID,
		}
		auction.Tx = ticket
	}
	item.Pending = &domain.PendingSale{
		TxID:       ticket.TxID,
		Buyer:      ticket.Winner,
		Seller:     item.Owner,
		Price:      ticket.Price,
		FTContract: item.FTContract,
		Escrowed:   item.FTContract == domain.ZeroAddress,
	}
	if item, err = s.items.PutItem(ctx, item); err != nil {
		return domain.Event{}, err
	}

	return s.settle(ctx, item, false)
}

// AddOffer places a price offer on an item, escrowing the offered funds.
func (s *Service) AddOffer(ctx context.Context, caller, nftContract domain.Address, tokenID domain.TokenID, ftContract domain.Address, price, attached domain.Price) (ev domain.Event, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	defer func() { metrics.ObserveAction("add_offer", err) }()

	if price == 0 {
		return domain.Event{}, fmt.Errorf("add offer: %w", domain.ErrZeroPrice)
	}
	if ftContract != domain.ZeroAddress {
		approved, err := s.registry.IsApprovedFT(ctx, ftContract)
		if err != nil {
			return domain.Event{}, err
		}
		if !approved {
			return domain.Event{}, fmt.Errorf("add offer: token %s: %w", ftContract, domain.ErrNotApproved)
		}
	}

	item, err := s.items.GetItem(ctx, domain.ItemKey{Contract: nftContract, TokenID: tokenID})
	if err != nil {
		return domain.Event{}, err
	}
	if item.Owner == domain.ZeroAddress {
		return domain.Event{}, fmt.Errorf("add offer: %w", domain.ErrNotForSale)
	}
	if item.Locked() {
		return domain.Event{}, fmt.Errorf("add offer: %w", domain.ErrTransactionPending)
	}
	if item.AuctionOpen() {
		return domain.Event{}, fmt.Errorf("add offer: %w", domain.ErrAuctionActive)
	}

	key := domain.BookKey{FTContract: ftContract, Price: price}
	if _, exists := item.Offers.Get(key); exists {
		return domain.Event{}, fmt.Errorf("add offer: %w", domain.ErrDuplicateOffer)
	}
	if err = s.requirePayment(ctx, ftContract, caller, price, attached); err != nil {
		return domain.Event{}, err
	}

	// Token offers are escrowed with the marketplace up front; native value
	// arrived attached to the action.
	if ftContract != domain.ZeroAddress {
		escrowTx, err := s.txs.NextTransactionID(ctx)
		if err != nil {
			return domain.Event{}, fmt.Errorf("assign transaction id: %w", err)
		}
		if err := s.ft.Transfer(ctx, escrowTx, ftContract, caller, s.escrow, price); err != nil {
			return domain.Event{}, fmt.Errorf("escrow offer tokens: %w", err)
		}
	}

	item.Offers.Add(key, caller)
	if _, err = s.items.PutItem(ctx, item); err != nil {
		return domain.Event{}, err
	}

	s.log.WithField("item", item.Key().String()).
		WithField("offerer", caller).
		WithField("price", price).
		Info("offer added")
	ev = s.newEvent(domain.EventOfferAdded, item)
	ev.FTContract = ftContract
	ev.Price = price
	s.emit(ctx, ev)
	return ev, nil
}

// WithdrawOffer removes the caller's offer and reimburses the escrowed funds.
func (s *Service) WithdrawOffer(ctx context.Context, caller, nftContract domain.Address, tokenID domain.TokenID, ftContract domain.Address, price domain.Price) (ev domain.Event, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	defer func() { metrics.ObserveAction("withdraw_offer", err) }()

	item, err := s.items.GetItem(ctx, domain.ItemKey{Contract: nftContract, TokenID: tokenID})
	if err != nil {
		return domain.Event{}, err
	}
	if item.Locked() {
		return domain.Event{}, fmt.Errorf("withdraw offer: %w", domain.ErrTransactionPending)
	}

	key := domain.BookKey{FTContract: ftContract, Price: price}
	holder, exists := item.Offers.Get(key)
	if !exists {
		return domain.Event{}, fmt.Errorf("withdraw offer: %w", domain.ErrOfferNotFound)
	}
	if holder != caller {
		return domain.Event{}, fmt.Errorf("withdraw offer: %w", domain.ErrUnauthorized)
	}

	refundTx, err := s.txs.NextTransactionID(ctx)
	if err != nil {
		return domain.Event{}, fmt.Errorf("assign transaction id: %w", err)
	}
	if ftContract == domain.ZeroAddress {
		err = s.value.Transfer(ctx, refundTx, caller, price)
	} else {
		err = s.ft.Transfer(ctx, refundTx, ftContract, s.escrow, caller, price)
	}
	if err != nil {
		return domain.Event{}, fmt.Errorf("reimburse offer: %w", err)
	}

	item.Offers.Remove(key)
	if _, err = s.items.PutItem(ctx, item); err != nil {
		return domain.Event{}, err
	}

	s.log.WithField("item", item.Key().String()).
		WithField("offerer", caller).
		WithField("price", price).
		Info("offer withdrawn")
	ev = s.newEvent(domain.EventWithdrawn, item)
	ev.FTContract = ftContract
	ev.Price = price
	s.emit(ctx, ev)
	return ev, nil
}

// AcceptOffer sells the item to the holder of the given offer. The offer
// entry is removed up front; the escrowed funds finance the settlement.
func (s *Service) AcceptOffer(ctx context.Context, caller, nftContract domain.Address, tokenID domain.TokenID, ftContract domain.Address, price domain.Price) (ev domain.Event, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	defer func() { metrics.ObserveAction("accept_offer", err) }()

	item, err := s.items.GetItem(ctx, domain.ItemKey{Contract: nftContract, TokenID: tokenID})
	if err != nil {
		return domain.Event{}, err
	}
	if item.Locked() {
		return domain.Event{}, fmt.Errorf("accept offer: %w", domain.ErrTransactionPending)
	}
	if caller != item.Owner {
		return domain.Event{}, fmt.Errorf("accept offer: %w", domain.ErrUnauthorized)
	}
	if item.AuctionOpen() {
		return domain.Event{}, fmt.Errorf("accept offer: %w", domain.ErrAuctionActive)
	}

	key := domain.BookKey{FTContract: ftContract, Price: price}
	offerer, exists := item.Offers.Get(key)
	if !exists {
		return domain.Event{}, fmt.Errorf("accept offer: %w", domain.ErrOfferNotFound)
	}

	txID, err := s.txs.NextTransactionID(ctx)
	if err != nil {
		return domain.Event{}, fmt.Errorf("assign transaction id: %w", err)
	}
	item.Offers.Remove(key)
	item.Pending = &domain.PendingSale{
		TxID:       txID,
		Buyer:      offerer,
		Seller:     item.Owner,
		Price:      price,
		FTContract: ftContract,
		Escrowed:   true,
	}
	if item, err = s.items.PutItem(ctx, item); err != nil {
		return domain.Event{}, err
	}

	return s.settle(ctx, item, false)
}

// RerunTransaction re-drives the pending settlement on an item under its
// recorded transaction id. Safe to call repeatedly; each failed attempt
// leaves the lock in place for the next.
func (s *Service) RerunTransaction(ctx context.Context, key domain.ItemKey) (ev domain.Event, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	defer func() { metrics.ObserveAction("rerun_transaction", err) }()

	item, err := s.items.GetItem(ctx, key)
	if err != nil {
		return domain.Event{}, err
	}
	if !item.Locked() {
		return domain.Event{}, fmt.Errorf("rerun transaction: no pending settlement on %s", key)
	}
	return s.redrive(ctx, item)
}

// Item returns one item record.
func (s *Service) Item(ctx context.Context, key domain.ItemKey) (domain.Item, error) {
	return s.items.GetItem(ctx, key)
}

// ListItems lists item records, optionally filtered by NFT contract.
func (s *Service) ListItems(ctx context.Context, contract domain.Address) ([]domain.Item, error) {
	return s.items.ListItems(ctx, contract)
}

// Internals -------------------------------------------------------------------

// settle runs the coordinator for the item's pending sale and finalizes the
// item on success. rerun marks attempts re-driven after an earlier failure.
func (s *Service) settle(ctx context.Context, item domain.Item, rerun bool) (domain.Event, error) {
	pending := item.Pending
	sale := settlement.Sale{
		Item:       item.Key(),
		Seller:     pending.Seller,
		Buyer:      pending.Buyer,
		FTContract: pending.FTContract,
		Price:      pending.Price,
		TxID:       pending.TxID,
		Escrowed:   pending.Escrowed,
	}

	if err := s.settler.Execute(ctx, sale); err != nil {
		pending.Attempts++
		if _, putErr := s.items.PutItem(ctx, item); putErr != nil {
			s.log.WithError(putErr).Warn("failed to record settlement attempt")
		}
		kind := domain.EventTransactionFailed
		if rerun || pending.Attempts > 1 {
			kind = domain.EventRerunTransaction
		}
		ev := s.newEvent(kind, item)
		ev.Price = pending.Price
		ev.TxID = pending.TxID
		s.emit(ctx, ev)
		return ev, err
	}

	wasAuction := item.AuctionOpen()
	item.Owner = pending.Buyer
	item.Mode = domain.SaleModeNone
	item.Price = 0
	item.Auction = nil
	item.Pending = nil
	item, err := s.items.PutItem(ctx, item)
	if err != nil {
		return domain.Event{}, err
	}

	kind := domain.EventItemSold
	if wasAuction {
		kind = domain.EventAuctionSettled
	}
	s.log.WithField("item", item.Key().String()).
		WithField("buyer", pending.Buyer).
		WithField("tx_id", pending.TxID).
		Info("sale settled")
	ev := s.newEvent(kind, item)
	ev.Price = pending.Price
	ev.TxID = pending.TxID
	s.emit(ctx, ev)
	return ev, nil
}

func (s *Service) redrive(ctx context.Context, item domain.Item) (domain.Event, error) {
	return s.settle(ctx, item, true)
}

// requireApproved checks the approval sets for the NFT contract and, when
// set, the payment token.
func (s *Service) requireApproved(ctx context.Context, nftContract, ftContract domain.Address) error {
	approved, err := s.registry.IsApprovedNFT(ctx, nftContract)
	if err != nil {
		return err
	}
	if !approved {
		return fmt.Errorf("contract %s: %w", nftContract, domain.ErrNotApproved)
	}
	if ftContract != domain.ZeroAddress {
		approved, err := s.registry.IsApprovedFT(ctx, ftContract)
		if err != nil {
			return err
		}
		if !approved {
			return fmt.Errorf("token %s: %w", ftContract, domain.ErrNotApproved)
		}
	}
	return nil
}

// requirePayment validates that the payer can cover the price: exact native
// value attached, or a sufficient token balance.
func (s *Service) requirePayment(ctx context.Context, ftContract, payer domain.Address, price, attached domain.Price) error {
	if ftContract == domain.ZeroAddress {
		if attached != price {
			return fmt.Errorf("attached %d, need %d: %w", attached, price, domain.ErrInsufficientPayment)
		}
		return nil
	}
	balance, err := s.ft.BalanceOf(ctx, ftContract, payer)
	if err != nil {
		return fmt.Errorf("balance query: %w", err)
	}
	if balance < price {
		return fmt.Errorf("balance %d, need %d: %w", balance, price, domain.ErrInsufficientPayment)
	}
	return nil
}

func (s *Service) newEvent(kind domain.EventKind, item domain.Item) domain.Event {
	return domain.Event{
		ID:         uuid.NewString(),
		Kind:       kind,
		Contract:   item.Contract,
		TokenID:    item.TokenID,
		Owner:      item.Owner,
		FTContract: item.FTContract,
		EmittedAt:  time.Now().UTC(),
	}
}

func (s *Service) emit(ctx context.Context, ev domain.Event) {
	if err := s.publisher.Publish(ctx, ev); err != nil {
		s.log.WithError(err).WithField("event", string(ev.Kind)).Warn("event publish failed")
	}
}
