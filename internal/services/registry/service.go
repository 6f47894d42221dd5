// Package registry manages the approval sets of NFT and fungible-token
// contracts admitted to the marketplace.
package registry

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/apexlabs/nft-market/internal/domain/market"
	"github.com/apexlabs/nft-market/internal/storage"
	"github.com/apexlabs/nft-market/pkg/logger"
)

// Service guards the approval sets behind the admin address. Approvals only
// grow; there is no removal operation.
type Service struct {
	store storage.RegistryStore
	admin market.Address
	log   *logger.Logger
}

// New constructs a registry service.
func New(store storage.RegistryStore, admin market.Address, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("registry")
	}
	return &Service{store: store, admin: admin, log: log}
}

// AddNFTContract admits an NFT contract. Only the admin may call it.
func (s *Service) AddNFTContract(ctx context.Context, caller, addr market.Address) (market.Event, error) {
	if caller != s.admin {
		return market.Event{}, fmt.Errorf("add nft contract: %w", market.ErrUnauthorized)
	}
	if err := s.store.AddNFTContract(ctx, addr); err != nil {
		return market.Event{}, fmt.Errorf("add nft contract: %w", err)
	}
	s.log.WithField("contract", addr).Info("nft contract approved")
	return s.event(market.EventNftContractAdded, addr), nil
}

// AddFTContract admits a fungible-token contract. Only the admin may call it.
func (s *Service) AddFTContract(ctx context.Context, caller, addr market.Address) (market.Event, error) {
	if caller != s.admin {
		return market.Event{}, fmt.Errorf("add ft contract: %w", market.ErrUnauthorized)
	}
	if err := s.store.AddFTContract(ctx, addr); err != nil {
		return market.Event{}, fmt.Errorf("add ft contract: %w", err)
	}
	s.log.WithField("contract", addr).Info("ft contract approved")
	return s.event(market.EventFtContractAdded, addr), nil
}

// IsApprovedNFT reports membership in the NFT approval set.
func (s *Service) IsApprovedNFT(ctx context.Context, addr market.Address) (bool, error) {
	return s.store.IsApprovedNFT(ctx, addr)
}

// IsApprovedFT reports membership in the FT approval set.
func (s *Service) IsApprovedFT(ctx context.Context, addr market.Address) (bool, error) {
	return s.store.IsApprovedFT(ctx, addr)
}

// ListNFTContracts returns the NFT approval set.
func (s *Service) ListNFTContracts(ctx context.Context) ([]market.Address, error) {
	return s.store.ListNFTContracts(ctx)
}

// ListFTContracts returns the FT approval set.
func (s *Service) ListFTContracts(ctx context.Context) ([]market.Address, error) {
	return s.store.ListFTContracts(ctx)
}

func (s *Service) event(kind market.EventKind, contract market.Address) market.Event {
	return market.Event{
		ID:        uuid.NewString(),
		Kind:      kind,
		Contract:  contract,
		EmittedAt: time.Now().UTC(),
	}
}
