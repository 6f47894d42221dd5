// Package postgres implements the storage interfaces backed by PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/apexlabs/nft-market/internal/domain/market"
	"github.com/apexlabs/nft-market/internal/storage"
)

// Store implements the storage interfaces backed by PostgreSQL.
type Store struct {
	db *sql.DB
}

var _ storage.ItemStore = (*Store)(nil)
var _ storage.RegistryStore = (*Store)(nil)
var _ storage.TransactionStore = (*Store)(nil)

// New creates a Store using the provided database handle.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// EnsureSchema creates the marketplace tables if they do not exist and seeds
// the transaction counter.
func (s *Store) EnsureSchema(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS market_items (
			contract    TEXT NOT NULL,
			token_id    TEXT NOT NULL,
			owner       TEXT NOT NULL DEFAULT '',
			ft_contract TEXT NOT NULL DEFAULT '',
			mode        TEXT NOT NULL DEFAULT 'none',
			price       BIGINT NOT NULL DEFAULT 0,
			auction     JSONB,
			offers      JSONB NOT NULL DEFAULT '[]',
			bids        JSONB NOT NULL DEFAULT '[]',
			pending     JSONB,
			created_at  TIMESTAMPTZ NOT NULL,
			updated_at  TIMESTAMPTZ NOT NULL,
			PRIMARY KEY (contract, token_id)
		)`,
		`CREATE INDEX IF NOT EXISTS market_items_pending_idx
			ON market_items (contract, token_id) WHERE pending IS NOT NULL`,
		`CREATE TABLE IF NOT EXISTS market_contracts (
			address    TEXT NOT NULL,
			kind       TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL,
			PRIMARY KEY (address, kind)
		)`,
		`CREATE TABLE IF NOT EXISTS market_tx_counter (
			id      INT PRIMARY KEY,
			next_tx BIGINT NOT NULL
		)`,
		`INSERT INTO market_tx_counter (id, next_tx) VALUES (1, 1)
			ON CONFLICT (id) DO NOTHING`,
	}
	for _, stmt := range statements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

// --- ItemStore ----------------------------------------------------------------

func (s *Store) GetItem(ctx context.Context, key market.ItemKey) (market.Item, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT contract, token_id, owner, ft_contract, mode, price, auction, offers, bids, pending, created_at, updated_at
		FROM market_items
		WHERE contract = $1 AND token_id = $2
	`, key.Contract, key.TokenID)

	item, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return market.Item{}, fmt.Errorf("item %s: %w", key, market.ErrItemNotFound)
	}
	return item, err
}

func (s *Store) GetOrCreateItem(ctx context.Context, key market.ItemKey) (market.Item, error) {
	item, err := s.GetItem(ctx, key)
	if err == nil {
		return item, nil
	}
	if !errors.Is(err, market.ErrItemNotFound) {
		return market.Item{}, err
	}

	item = market.NewItem(key)
	now := time.Now().UTC()
	item.CreatedAt = now
	item.UpdatedAt = now

	offersJSON, bidsJSON, err := marshalBooks(item)
	if err != nil {
		return market.Item{}, err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO market_items (contract, token_id, owner, ft_contract, mode, price, auction, offers, bids, pending, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, NULL, $7, $8, NULL, $9, $10)
		ON CONFLICT (contract, token_id) DO NOTHING
	`, item.Contract, item.TokenID, item.Owner, item.FTContract, item.Mode, int64(item.Price), offersJSON, bidsJSON, item.CreatedAt, item.UpdatedAt)
	if err != nil {
		return market.Item{}, err
	}
	// Re-read to cover the conflict path.
	return s.GetItem(ctx, key)
}

func (s *Store) PutItem(ctx context.Context, item market.Item) (market.Item, error) {
	if item.CreatedAt.IsZero() {
		item.CreatedAt = time.Now().UTC()
	}
	item.UpdatedAt = time.Now().UTC()

	offersJSON, bidsJSON, err := marshalBooks(item)
	if err != nil {
		return market.Item{}, err
	}
	auctionJSON, err := marshalNullable(item.Auction)
	if err != nil {
		return market.Item{}, err
	}
	pendingJSON, err := marshalNullable(item.Pending)
	if err != nil {
		return market.Item{}, err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO market_items (contract, token_id, owner, ft_contract, mode, price, auction, offers, bids, pending, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (contract, token_id) DO UPDATE
		SET owner = EXCLUDED.owner, ft_contract = EXCLUDED.ft_contract, mode = EXCLUDED.mode,
			price = EXCLUDED.price, auction = EXCLUDED.auction, offers = EXCLUDED.offers,
			bids = EXCLUDED.bids, pending = EXCLUDED.pending, updated_at = EXCLUDED.updated_at
	`, item.Contract, item.TokenID, item.Owner, item.FTContract, item.Mode, int64(item.Price),
		auctionJSON, offersJSON, bidsJSON, pendingJSON, item.CreatedAt, item.UpdatedAt)
	if err != nil {
		return market.Item{}, err
	}
	return item, nil
}

func (s *Store) ListItems(ctx context.Context, contract market.Address) ([]market.Item, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT contract, token_id, owner, ft_contract, mode, price, auction, offers, bids, pending, created_at, updated_at
		FROM market_items
		WHERE $1 = '' OR contract = $1
		ORDER BY contract, token_id
	`, contract)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectItems(rows)
}

func (s *Store) ListLockedItems(ctx context.Context) ([]market.Item, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT contract, token_id, owner, ft_contract, mode, price, auction, offers, bids, pending, created_at, updated_at
		FROM market_items
		WHERE pending IS NOT NULL
		ORDER BY contract, token_id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectItems(rows)
}

// --- RegistryStore ------------------------------------------------------------

func (s *Store) AddNFTContract(ctx context.Context, addr market.Address) error {
	return s.addContract(ctx, addr, "nft")
}

func (s *Store) AddFTContract(ctx context.Context, addr market.Address) error {
	return s.addContract(ctx, addr, "ft")
}

func (s *Store) addContract(ctx context.Context, addr market.Address, kind string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO market_contracts (address, kind, created_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (address, kind) DO NOTHING
	`, addr, kind, time.Now().UTC())
	return err
}

func (s *Store) IsApprovedNFT(ctx context.Context, addr market.Address) (bool, error) {
	return s.isApproved(ctx, addr, "nft")
}

func (s *Store) IsApprovedFT(ctx context.Context, addr market.Address) (bool, error) {
	return s.isApproved(ctx, addr, "ft")
}

func (s *Store) isApproved(ctx context.Context, addr market.Address, kind string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS (SELECT 1 FROM market_contracts WHERE address = $1 AND kind = $2)
	`, addr, kind).Scan(&exists)
	return exists, err
}

func (s *Store) ListNFTContracts(ctx context.Context) ([]market.Address, error) {
	return s.listContracts(ctx, "nft")
}

func (s *Store) ListFTContracts(ctx context.Context) ([]market.Address, error) {
	return s.listContracts(ctx, "ft")
}

func (s *Store) listContracts(ctx context.Context, kind string) ([]market.Address, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT address FROM market_contracts WHERE kind = $1 ORDER BY address
	`, kind)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make([]market.Address, 0)
	for rows.Next() {
		var addr market.Address
		if err := rows.Scan(&addr); err != nil {
			return nil, err
		}
		result = append(result, addr)
	}
	return result, rows.Err()
}

// --- TransactionStore ---------------------------------------------------------

func (s *Store) NextTransactionID(ctx context.Context) (market.TxID, error) {
	var next int64
	err := s.db.QueryRowContext(ctx, `
		UPDATE market_tx_counter SET next_tx = next_tx + 1 WHERE id = 1
		RETURNING next_tx - 1
	`).Scan(&next)
	if err != nil {
		return 0, fmt.Errorf("next transaction id: %w", err)
	}
	return market.TxID(next), nil
}

// --- helpers ------------------------------------------------------------------

type rowScanner interface {
	Scan(dest ...any) error
}

func scanItem(row rowScanner) (market.Item, error) {
	var (
		item       market.Item
		price      int64
		auctionRaw []byte
		offersRaw  []byte
		bidsRaw    []byte
		pendingRaw []byte
	)
	err := row.Scan(&item.Contract, &item.TokenID, &item.Owner, &item.FTContract, &item.Mode,
		&price, &auctionRaw, &offersRaw, &bidsRaw, &pendingRaw, &item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		return market.Item{}, err
	}
	item.Price = market.Price(price)

	if len(auctionRaw) > 0 {
		item.Auction = &market.Auction{}
		if err := json.Unmarshal(auctionRaw, item.Auction); err != nil {
			return market.Item{}, fmt.Errorf("decode auction: %w", err)
		}
	}
	if len(pendingRaw) > 0 {
		item.Pending = &market.PendingSale{}
		if err := json.Unmarshal(pendingRaw, item.Pending); err != nil {
			return market.Item{}, fmt.Errorf("decode pending sale: %w", err)
		}
	}
	item.Offers = market.NewBook()
	if len(offersRaw) > 0 {
		if err := item.Offers.UnmarshalJSON(offersRaw); err != nil {
			return market.Item{}, fmt.Errorf("decode offers: %w", err)
		}
	}
	item.Bids = market.NewBook()
	if len(bidsRaw) > 0 {
		if err := item.Bids.UnmarshalJSON(bidsRaw); err != nil {
			return market.Item{}, fmt.Errorf("decode bids: %w", err)
		}
	}
	return item, nil
}

func collectItems(rows *sql.Rows) ([]market.Item, error) {
	result := make([]market.Item, 0)
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, item)
	}
	return result, rows.Err()
}

func marshalBooks(item market.Item) ([]byte, []byte, error) {
	offersJSON, err := item.Offers.MarshalJSON()
	if err != nil {
		return nil, nil, fmt.Errorf("encode offers: %w", err)
	}
	bidsJSON, err := item.Bids.MarshalJSON()
	if err != nil {
		return nil, nil, fmt.Errorf("encode bids: %w", err)
	}
	return offersJSON, bidsJSON, nil
}

func marshalNullable(v any) (any, error) {
	switch t := v.(type) {
	case *market.Auction:
		if t == nil {
			return nil, nil
		}
	case *market.PendingSale:
		if t == nil {
			return nil, nil
		}
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return raw, nil
}
