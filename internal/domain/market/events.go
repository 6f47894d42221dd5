package market

import "time"

// EventKind names the reply emitted for one inbound action.
type EventKind string

const (
	EventNftContractAdded EventKind = "nft_contract_added"
	EventFtContractAdded  EventKind = "ft_contract_added"
	EventMarketDataAdded  EventKind = "market_data_added"
	EventItemSold         EventKind = "item_sold"
	EventAuctionCreated   EventKind = "auction_created"
	EventBidAdded         EventKind = "bid_added"
	EventAuctionSettled   EventKind = "auction_settled"
	EventAuctionCancelled EventKind = "auction_cancelled"
	EventOfferAdded       EventKind = "offer_added"
	EventOfferAccepted    EventKind = "offer_accepted"
	EventWithdrawn        EventKind = "offer_withdrawn"

	// EventTransactionFailed reports a settlement attempt whose cross-actor
	// protocol did not complete; the item stays locked under its transaction
	// id until a retry succeeds.
	EventTransactionFailed EventKind = "transaction_failed"
	// EventRerunTransaction reports that a re-driven settlement attempt
	// failed again and may be re-invoked with the same transaction id.
	EventRerunTransaction EventKind = "rerun_transaction"
)

// Event is the single reply produced by each accepted action.
type Event struct {
	ID         string    `json:"id"`
	Kind       EventKind `json:"kind"`
	Contract   Address   `json:"contract,omitempty"`
	TokenID    TokenID   `json:"token_id,omitempty"`
	Owner      Address   `json:"owner,omitempty"`
	FTContract Address   `json:"ft_contract,omitempty"`
	Price      Price     `json:"price,omitempty"`
	TxID       TxID      `json:"tx_id,omitempty"`
	EmittedAt  time.Time `json:"emitted_at"`
}
