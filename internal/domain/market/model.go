// Package market defines the marketplace data model: items, auctions, offers
// and the events replied to inbound actions.
package market

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// Address identifies an external actor (wallet or contract). The empty
// address means "no actor"; for payment tokens it selects the native value.
type Address string

// ZeroAddress is the absent address.
const ZeroAddress Address = ""

// TokenID identifies one NFT within a contract. Stored as the decimal string
// form of the on-chain 256-bit id.
type TokenID string

// Price is an amount in the smallest unit of the payment token.
type Price = uint64

// TxID is the idempotency key for one settlement attempt. Assigned from a
// market-wide monotonic counter and reused verbatim on every retry of the
// same attempt. Zero is never assigned.
type TxID = uint64

// SaleMode discriminates how an item is currently offered. An item is either
// off sale, at a fixed price, or under auction; never more than one.
type SaleMode string

const (
	SaleModeNone    SaleMode = "none"
	SaleModeFixed   SaleMode = "fixed"
	SaleModeAuction SaleMode = "auction"
)

// Auction is the embedded state of one auction cycle on an item. Timestamps
// are unix milliseconds.
type Auction struct {
	BidPeriod     int64             `json:"bid_period"`
	StartedAt     int64             `json:"started_at"`
	EndedAt       int64             `json:"ended_at"`
	CurrentPrice  Price             `json:"current_price"`
	CurrentWinner Address           `json:"current_winner"`
	Tx            *SettlementTicket `json:"tx,omitempty"`
}

// SettlementTicket records the settlement identity of an auction once a
// settle action has started it. Kept across failures so a repeated settle
// re-drives the same transaction id instead of minting a new one.
type SettlementTicket struct {
	Winner Address `json:"winner"`
	Price  Price   `json:"price"`
	TxID   TxID    `json:"tx_id"`
}

// PendingSale marks an in-flight settlement on an item. While set, the item
// rejects every new sale-affecting action; the stored fields let the same
// sale be re-driven under the identical transaction id.
type PendingSale struct {
	TxID       TxID    `json:"tx_id"`
	Buyer      Address `json:"buyer"`
	Seller     Address `json:"seller"`
	FTContract Address `json:"ft_contract,omitempty"`
	Price      Price   `json:"price"`
	Escrowed   bool    `json:"escrowed"`
	Attempts   int     `json:"attempts"`
}

// Offer is a named price commitment on an item.
type Offer struct {
	Hash       string  `json:"hash"`
	Offerer    Address `json:"offerer"`
	FTContract Address `json:"ft_contract,omitempty"`
	Price      Price   `json:"price"`
}

// ItemKey addresses one item record.
type ItemKey struct {
	Contract Address
	TokenID  TokenID
}

func (k ItemKey) String() string {
	return fmt.Sprintf("%s/%s", k.Contract, k.TokenID)
}

// Item is one NFT's marketplace state.
type Item struct {
	Contract   Address      `json:"contract"`
	TokenID    TokenID      `json:"token_id"`
	Owner      Address      `json:"owner"`
	FTContract Address      `json:"ft_contract,omitempty"` // empty selects native value
	Mode       SaleMode     `json:"mode"`
	Price      Price        `json:"price,omitempty"` // meaningful when Mode == SaleModeFixed
	Auction    *Auction     `json:"auction,omitempty"`
	Offers     *Book        `json:"offers"`
	Bids       *Book        `json:"bids"`
	Pending    *PendingSale `json:"pending,omitempty"`
	CreatedAt  time.Time    `json:"created_at"`
	UpdatedAt  time.Time    `json:"updated_at"`
}

// NewItem returns an unowned, unlisted item for the given key.
func NewItem(key ItemKey) Item {
	return Item{
		Contract: key.Contract,
		TokenID:  key.TokenID,
		Mode:     SaleModeNone,
		Offers:   NewBook(),
		Bids:     NewBook(),
	}
}

// Key returns the store key of the item.
func (i Item) Key() ItemKey {
	return ItemKey{Contract: i.Contract, TokenID: i.TokenID}
}

// ForSale reports whether the item can be bought directly right now.
func (i Item) ForSale() bool {
	return i.Mode == SaleModeFixed && i.Price > 0
}

// AuctionOpen reports whether an auction exists on the item. Settlement keeps
// the auction attached until it resolves, so this also covers the
// awaiting-settlement phase.
func (i Item) AuctionOpen() bool {
	return i.Mode == SaleModeAuction && i.Auction != nil
}

// Locked reports whether a settlement attempt is in flight on the item.
func (i Item) Locked() bool {
	return i.Pending != nil
}

// Clone returns a deep copy of the item, detached from store internals.
func (i Item) Clone() Item {
	out := i
	if i.Auction != nil {
		a := *i.Auction
		if i.Auction.Tx != nil {
			tx := *i.Auction.Tx
			a.Tx = &tx
		}
		out.Auction = &a
	}
	if i.Pending != nil {
		p := *i.Pending
		out.Pending = &p
	}
	out.Offers = i.Offers.Clone()
	out.Bids = i.Bids.Clone()
	return out
}

// OfferHash derives the content hash naming an offer, covering the item key,
// the payment token and the price.
func OfferHash(key ItemKey, ftContract Address, price Price) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s|%s|%s|%d", key.Contract, key.TokenID, ftContract, price)))
	return hex.EncodeToString(sum[:])
}
