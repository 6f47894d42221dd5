// Package contracts models the external collaborators of the marketplace:
// the NFT contract, the fungible-token contract and the native value mover.
// The marketplace only ever talks to them through these interfaces; every
// call that belongs to a settlement sequence carries that sequence's
// transaction id, and collaborators are expected to treat a repeated call
// bearing the same id as a no-op if already applied.
package contracts

import (
	"context"

	"github.com/apexlabs/nft-market/internal/domain/market"
)

// Payout maps each payee to the amount owed from a sale. The amounts sum to
// the sale price; royalty-style splits are computed by the NFT contract.
type Payout map[market.Address]market.Price

// NFTClient talks to one or more NFT contracts.
type NFTClient interface {
	// Owner returns the current on-chain owner of a token.
	Owner(ctx context.Context, contract market.Address, tokenID market.TokenID) (market.Address, error)
	// Payouts returns the payout breakdown for selling owner's token at the
	// given amount.
	Payouts(ctx context.Context, contract, owner market.Address, amount market.Price) (Payout, error)
	// Transfer moves token ownership to the recipient under a transaction id.
	Transfer(ctx context.Context, txID market.TxID, contract, to market.Address, tokenID market.TokenID) error
}

// FTClient talks to fungible-token contracts.
type FTClient interface {
	// BalanceOf returns the holder's balance on the token contract.
	BalanceOf(ctx context.Context, contract, holder market.Address) (market.Price, error)
	// Transfer moves tokens between holders under a transaction id.
	Transfer(ctx context.Context, txID market.TxID, contract, from, to market.Address, amount market.Price) error
}

// ValueClient moves native value out of the marketplace escrow. Buyers attach
// native value at action time; the wallet layer holding it is outside this
// core.
type ValueClient interface {
	Transfer(ctx context.Context, txID market.TxID, to market.Address, amount market.Price) error
}
