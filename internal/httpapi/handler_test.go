package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/apexlabs/nft-market/internal/contracts"
	domain "github.com/apexlabs/nft-market/internal/domain/market"
	marketsvc "github.com/apexlabs/nft-market/internal/services/market"
	"github.com/apexlabs/nft-market/internal/services/registry"
	"github.com/apexlabs/nft-market/internal/services/settlement"
	"github.com/apexlabs/nft-market/internal/storage/memory"
)

const testSecret = "handler-test-secret"

type stubNFT struct {
	owners map[domain.ItemKey]domain.Address
}

func (s *stubNFT) Owner(_ context.Context, contract domain.Address, tokenID domain.TokenID) (domain.Address, error) {
	return s.owners[domain.ItemKey{Contract: contract, TokenID: tokenID}], nil
}

func (s *stubNFT) Payouts(_ context.Context, _, owner domain.Address, amount domain.Price) (contracts.Payout, error) {
	return contracts.Payout{owner: amount}, nil
}

func (s *stubNFT) Transfer(_ context.Context, _ domain.TxID, contract, to domain.Address, tokenID domain.TokenID) error {
	s.owners[domain.ItemKey{Contract: contract, TokenID: tokenID}] = to
	return nil
}

type stubFT struct{}

func (stubFT) BalanceOf(context.Context, domain.Address, domain.Address) (domain.Price, error) {
	return 0, nil
}

func (stubFT) Transfer(context.Context, domain.TxID, domain.Address, domain.Address, domain.Address, domain.Price) error {
	return nil
}

type stubValue struct{}

func (stubValue) Transfer(context.Context, domain.TxID, domain.Address, domain.Price) error {
	return nil
}

type okSettler struct{}

func (okSettler) Execute(context.Context, settlement.Sale) error { return nil }

func newTestHandler(t *testing.T) (http.Handler, *stubNFT) {
	t.Helper()
	store := memory.New()
	nft := &stubNFT{owners: map[domain.ItemKey]domain.Address{}}
	regSvc := registry.New(store, "admin", nil)
	mktSvc := marketsvc.New(store, store, store, nft, stubFT{}, stubValue{}, okSettler{}, nil, "market", nil)
	return NewHandler(mktSvc, regSvc, testSecret), nft
}

func doRequest(t *testing.T, h http.Handler, method, path, caller, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if caller != "" {
		token, err := SignToken(domain.Address(caller), testSecret)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHandler_AuthRequired(t *testing.T) {
	h, _ := newTestHandler(t)

	rec := doRequest(t, h, http.MethodPost, "/contracts/nft", "", `{"address":"nft-a"}`)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	// Reads pass through anonymously.
	rec = doRequest(t, h, http.MethodGet, "/items", "", "")
	require.Equal(t, http.StatusOK, rec.Code)

	// A token signed with another secret is rejected.
	token, err := SignToken("admin", "wrong-secret")
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/contracts/nft", strings.NewReader(`{"address":"nft-a"}`))
	req.Header.Set("Authorization", "Bearer "+token)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestHandler_ContractRegistration(t *testing.T) {
	h, _ := newTestHandler(t)

	rec := doRequest(t, h, http.MethodPost, "/contracts/nft", "mallory", `{"address":"nft-a"}`)
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec = doRequest(t, h, http.MethodPost, "/contracts/nft", "admin", `{"address":"nft-a"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	var ev domain.Event
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &ev))
	require.Equal(t, domain.EventNftContractAdded, ev.Kind)

	rec = doRequest(t, h, http.MethodGet, "/contracts/nft", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var list []domain.Address
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Equal(t, []domain.Address{"nft-a"}, list)
}

func TestHandler_ListAndBuy(t *testing.T) {
	h, nft := newTestHandler(t)
	nft.owners[domain.ItemKey{Contract: "nft-a", TokenID: "1"}] = "alice"

	rec := doRequest(t, h, http.MethodPost, "/contracts/nft", "admin", `{"address":"nft-a"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doRequest(t, h, http.MethodPost, "/items", "alice", `{"contract":"nft-a","token_id":"1","price":100}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doRequest(t, h, http.MethodGet, "/items/nft-a/1", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var item domain.Item
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &item))
	require.Equal(t, domain.SaleModeFixed, item.Mode)
	require.Equal(t, domain.Price(100), item.Price)

	rec = doRequest(t, h, http.MethodPost, "/items/nft-a/1/buy", "bob", `{"attached":100}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var ev domain.Event
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &ev))
	require.Equal(t, domain.EventItemSold, ev.Kind)

	rec = doRequest(t, h, http.MethodGet, "/items/nft-a/1", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &item))
	require.Equal(t, domain.Address("bob"), item.Owner)
	require.Equal(t, domain.SaleModeNone, item.Mode)
}

func TestHandler_ErrorMapping(t *testing.T) {
	h, nft := newTestHandler(t)
	nft.owners[domain.ItemKey{Contract: "nft-a", TokenID: "1"}] = "alice"

	rec := doRequest(t, h, http.MethodPost, "/contracts/nft", "admin", `{"address":"nft-a"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	// Unknown item resolves to 404.
	rec = doRequest(t, h, http.MethodPost, "/items/nft-a/99/buy", "bob", `{"attached":100}`)
	require.Equal(t, http.StatusNotFound, rec.Code)

	// A listed item without a price is not directly buyable.
	rec = doRequest(t, h, http.MethodPost, "/items", "alice", `{"contract":"nft-a","token_id":"1"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	rec = doRequest(t, h, http.MethodPost, "/items/nft-a/1/buy", "bob", `{"attached":100}`)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	// Wrong attached value on a priced listing.
	rec = doRequest(t, h, http.MethodPost, "/items", "alice", `{"contract":"nft-a","token_id":"1","price":100}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	rec = doRequest(t, h, http.MethodPost, "/items/nft-a/1/buy", "bob", `{"attached":50}`)
	require.Equal(t, http.StatusPaymentRequired, rec.Code)

	// Unknown action path.
	rec = doRequest(t, h, http.MethodPost, "/items/nft-a/1/frobnicate", "bob", `{}`)
	require.Equal(t, http.StatusNotFound, rec.Code)

	// Malformed JSON body.
	rec = doRequest(t, h, http.MethodPost, "/items", "alice", `{`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandler_AuctionFlow(t *testing.T) {
	h, nft := newTestHandler(t)
	nft.owners[domain.ItemKey{Contract: "nft-a", TokenID: "1"}] = "alice"

	rec := doRequest(t, h, http.MethodPost, "/contracts/nft", "admin", `{"address":"nft-a"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doRequest(t, h, http.MethodPost, "/items/nft-a/1/auction", "alice",
		`{"min_price":100,"bid_period_ms":10000,"duration_ms":50000}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var ev domain.Event
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &ev))
	require.Equal(t, domain.EventAuctionCreated, ev.Kind)

	rec = doRequest(t, h, http.MethodPost, "/items/nft-a/1/bids", "bob", `{"price":150,"attached":150}`)
	require.Equal(t, http.StatusOK, rec.Code)

	// Settling before expiry is rejected as a semantic error.
	rec = doRequest(t, h, http.MethodPost, "/items/nft-a/1/settle", "anyone", `{}`)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}
