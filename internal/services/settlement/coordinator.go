// Package settlement executes the cross-actor protocol that moves NFT
// ownership and payment for one sale.
package settlement

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/apexlabs/nft-market/internal/contracts"
	"github.com/apexlabs/nft-market/internal/domain/market"
	"github.com/apexlabs/nft-market/internal/metrics"
	"github.com/apexlabs/nft-market/pkg/logger"
)

// Sale describes one logical sale to settle. TxID is the idempotency key for
// every outbound call of the attempt; a retried attempt must carry the
// identical Sale.
type Sale struct {
	Item       market.ItemKey
	Seller     market.Address
	Buyer      market.Address
	FTContract market.Address // empty selects native value
	Price      market.Price
	TxID       market.TxID
	// Escrowed marks sales whose funds already sit with the marketplace
	// (native value attached by the buyer, or tokens pulled when the offer
	// was placed). When false, token legs pull from the buyer directly.
	Escrowed bool
}

// Coordinator drives the settlement protocol: payout query, payment legs
// with the treasury fee split, then NFT ownership transfer. Steps are awaited
// in order and never unwound; a failed attempt is reported and may be
// re-driven under the same transaction id.
type Coordinator struct {
	nft        contracts.NFTClient
	ft         contracts.FTClient
	value      contracts.ValueClient
	escrow     market.Address
	treasury   market.Address
	feePercent uint8
	log        *logger.Logger
}

// New constructs a coordinator. feePercent is the treasury cut of every sale,
// 0-100.
func New(nft contracts.NFTClient, ft contracts.FTClient, value contracts.ValueClient, escrow, treasury market.Address, feePercent uint8, log *logger.Logger) *Coordinator {
	if log == nil {
		log = logger.NewDefault("settlement")
	}
	return &Coordinator{
		nft:        nft,
		ft:         ft,
		value:      value,
		escrow:     escrow,
		treasury:   treasury,
		feePercent: feePercent,
		log:        log,
	}
}

// Execute runs the protocol for one sale. Any step failing returns an error
// wrapping market.ErrSettlementFailed; already-completed steps stay applied
// and the collaborators are expected to no-op a repeated call bearing the
// same transaction id.
func (c *Coordinator) Execute(ctx context.Context, sale Sale) error {
	start := time.Now()
	err := c.execute(ctx, sale)
	metrics.ObserveSettlement(err == nil, time.Since(start))
	if err != nil {
		c.log.WithError(err).
			WithField("item", sale.Item.String()).
			WithField("tx_id", sale.TxID).
			Warn("settlement attempt failed")
		return err
	}
	c.log.WithField("item", sale.Item.String()).
		WithField("tx_id", sale.TxID).
		WithField("price", sale.Price).
		Info("settlement completed")
	return nil
}

func (c *Coordinator) execute(ctx context.Context, sale Sale) error {
	payout, err := c.nft.Payouts(ctx, sale.Item.Contract, sale.Seller, sale.Price)
	if err != nil {
		return fmt.Errorf("%w: payout query for %s: %v", market.ErrSettlementFailed, sale.Item, err)
	}

	fee := percentage(sale.Price, c.feePercent)
	if fee > 0 {
		if err := c.pay(ctx, sale, c.treasury, fee); err != nil {
			return fmt.Errorf("%w: treasury leg of tx %d: %v", market.ErrSettlementFailed, sale.TxID, err)
		}
	}

	for _, payee := range sortedPayees(payout) {
		share := percentage(payout[payee], 100-c.feePercent)
		if share == 0 {
			continue
		}
		if err := c.pay(ctx, sale, payee, share); err != nil {
			return fmt.Errorf("%w: payment leg to %s of tx %d: %v", market.ErrSettlementFailed, payee, sale.TxID, err)
		}
	}

	if err := c.nft.Transfer(ctx, sale.TxID, sale.Item.Contract, sale.Buyer, sale.Item.TokenID); err != nil {
		return fmt.Errorf("%w: nft transfer of tx %d: %v", market.ErrSettlementFailed, sale.TxID, err)
	}
	return nil
}

func (c *Coordinator) pay(ctx context.Context, sale Sale, to market.Address, amount market.Price) error {
	if sale.FTContract == market.ZeroAddress {
		// Native value is always held in escrow by the time settlement runs.
		return c.value.Transfer(ctx, sale.TxID, to, amount)
	}
	from := sale.Buyer
	if sale.Escrowed {
		from = c.escrow
	}
	return c.ft.Transfer(ctx, sale.TxID, sale.FTContract, from, to, amount)
}

// Payees are paid in deterministic address order so retries replay the same
// call sequence.
func sortedPayees(payout contracts.Payout) []market.Address {
	payees := make([]market.Address, 0, len(payout))
	for payee := range payout {
		payees = append(payees, payee)
	}
	sort.Slice(payees, func(i, j int) bool { return payees[i] < payees[j] })
	return payees
}

// percentage computes amount*pct/100 without overflowing for amounts near
// the top of the Price range. Splitting on the quotient and remainder of 100
// gives the same truncated result as the widened product.
func percentage(amount market.Price, pct uint8) market.Price {
	p := market.Price(pct)
	return amount/100*p + amount%100*p/100
}
