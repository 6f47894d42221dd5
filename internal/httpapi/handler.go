// Package httpapi exposes the marketplace action surface over REST.
package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	domain "github.com/apexlabs/nft-market/internal/domain/market"
	marketsvc "github.com/apexlabs/nft-market/internal/services/market"
	"github.com/apexlabs/nft-market/internal/services/registry"
)

// handler bundles the HTTP endpoints of the marketplace services.
type handler struct {
	market   *marketsvc.Service
	registry *registry.Service
}

// NewHandler returns a mux exposing the marketplace REST API.
func NewHandler(market *marketsvc.Service, reg *registry.Service, jwtSecret string) http.Handler {
	h := &handler{market: market, registry: reg}
	mux := http.NewServeMux()
	mux.HandleFunc("/contracts/nft", h.nftContracts)
	mux.HandleFunc("/contracts/ft", h.ftContracts)
	mux.HandleFunc("/items", h.items)
	mux.HandleFunc("/items/", h.itemResources)
	return Auth(jwtSecret)(mux)
}

func (h *handler) nftContracts(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		var payload struct {
			Address domain.Address `json:"address"`
		}
		if err := decodeJSON(r.Body, &payload); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		ev, err := h.registry.AddNFTContract(r.Context(), callerFrom(r), payload.Address)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, ev)

	case http.MethodGet:
		list, err := h.registry.ListNFTContracts(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, list)

	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h *handler) ftContracts(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		var payload struct {
			Address domain.Address `json:"address"`
		}
		if err := decodeJSON(r.Body, &payload); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		ev, err := h.registry.AddFTContract(r.Context(), callerFrom(r), payload.Address)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, ev)

	case http.MethodGet:
		list, err := h.registry.ListFTContracts(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, list)

	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h *handler) items(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		var payload struct {
			Contract   domain.Address `json:"contract"`
			TokenID    domain.TokenID `json:"token_id"`
			FTContract domain.Address `json:"ft_contract"`
			Price      *domain.Price  `json:"price"`
		}
		if err := decodeJSON(r.Body, &payload); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		ev, err := h.market.List(r.Context(), callerFrom(r), payload.Contract, payload.TokenID, payload.FTContract, payload.Price)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, ev)

	case http.MethodGet:
		contract := domain.Address(r.URL.Query().Get("contract"))
		list, err := h.market.ListItems(r.Context(), contract)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, list)

	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// itemResources routes /items/{contract}/{token}[/{action}].
func (h *handler) itemResources(w http.ResponseWriter, r *http.Request) {
	trimmed := strings.Trim(strings.TrimPrefix(r.URL.Path, "/items"), "/")
	parts := strings.Split(trimmed, "/")
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		http.NotFound(w, r)
		return
	}
	key := domain.ItemKey{Contract: domain.Address(parts[0]), TokenID: domain.TokenID(parts[1])}

	if len(parts) == 2 {
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		item, err := h.market.Item(r.Context(), key)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, item)
		return
	}

	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	action := strings.Join(parts[2:], "/")
	caller := callerFrom(r)

	var payload struct {
		FTContract domain.Address `json:"ft_contract"`
		Price      domain.Price   `json:"price"`
		Attached   domain.Price   `json:"attached"`
		MinPrice   domain.Price   `json:"min_price"`
		BidPeriod  int64          `json:"bid_period_ms"`
		Duration   int64          `json:"duration_ms"`
	}
	if r.Body != nil {
		if err := decodeJSON(r.Body, &payload); err != nil && !errors.Is(err, io.EOF) {
			writeError(w, http.StatusBadRequest, err)
			return
		}
	}

	var (
		ev  domain.Event
		err error
	)
	switch action {
	case "buy":
		ev, err = h.market.Buy(r.Context(), caller, key.Contract, key.TokenID, payload.Attached)
	case "auction":
		ev, err = h.market.CreateAuction(r.Context(), caller, key.Contract, key.TokenID, payload.FTContract, payload.MinPrice, payload.BidPeriod, payload.Duration)
	case "bids":
		ev, err = h.market.AddBid(r.Context(), caller, key.Contract, key.TokenID, payload.Price, payload.Attached)
	case "settle":
		ev, err = h.market.SettleAuction(r.Context(), key.Contract, key.TokenID)
	case "offers":
		ev, err = h.market.AddOffer(r.Context(), caller, key.Contract, key.TokenID, payload.FTContract, payload.Price, payload.Attached)
	case "offers/withdraw":
		ev, err = h.market.WithdrawOffer(r.Context(), caller, key.Contract, key.TokenID, payload.FTContract, payload.Price)
	case "offers/accept":
		ev, err = h.market.AcceptOffer(r.Context(), caller, key.Contract, key.TokenID, payload.FTContract, payload.Price)
	default:
		http.NotFound(w, r)
		return
	}
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ev)
}

// Helpers ---------------------------------------------------------------------

func decodeJSON(body io.Reader, target any) error {
	decoder := json.NewDecoder(body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(target); err != nil {
		if errors.Is(err, io.EOF) {
			return err
		}
		return fmt.Errorf("decode request: %w", err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

// writeDomainError maps each rejection kind to a distinct HTTP status.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrItemNotFound), errors.Is(err, domain.ErrOfferNotFound), errors.Is(err, domain.ErrNoAuction):
		writeError(w, http.StatusNotFound, err)
	case errors.Is(err, domain.ErrUnauthorized):
		writeError(w, http.StatusForbidden, err)
	case errors.Is(err, domain.ErrTransactionPending):
		writeError(w, http.StatusLocked, err)
	case errors.Is(err, domain.ErrDuplicateOffer):
		writeError(w, http.StatusConflict, err)
	case errors.Is(err, domain.ErrInsufficientPayment):
		writeError(w, http.StatusPaymentRequired, err)
	case errors.Is(err, domain.ErrSettlementFailed):
		writeError(w, http.StatusBadGateway, err)
	case errors.Is(err, domain.ErrNotApproved),
		errors.Is(err, domain.ErrAuctionActive),
		errors.Is(err, domain.ErrAuctionStillOpen),
		errors.Is(err, domain.ErrAuctionExpired),
		errors.Is(err, domain.ErrPriceTooLow),
		errors.Is(err, domain.ErrZeroPrice),
		errors.Is(err, domain.ErrNotForSale):
		writeError(w, http.StatusUnprocessableEntity, err)
	default:
		writeError(w, http.StatusInternalServerError, err)
	}
}
