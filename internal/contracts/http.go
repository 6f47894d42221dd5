package contracts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/apexlabs/nft-market/internal/domain/market"
	"github.com/apexlabs/nft-market/pkg/logger"
)

// Bridge posts JSON action requests to collaborator actors. Each contract
// address maps to a path segment under the base endpoint:
// POST {endpoint}/{contract}/{action}.
type Bridge struct {
	client   *http.Client
	endpoint *url.URL
	log      *logger.Logger
}

// NewBridge constructs a bridge for the given base endpoint.
func NewBridge(client *http.Client, endpoint string, log *logger.Logger) (*Bridge, error) {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return nil, fmt.Errorf("contracts endpoint required")
	}
	parsed, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("parse contracts endpoint: %w", err)
	}
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	if log == nil {
		log = logger.NewDefault("contracts")
	}
	return &Bridge{client: client, endpoint: parsed, log: log}, nil
}

func (b *Bridge) call(ctx context.Context, contract market.Address, action string, payload any, reply any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode %s request: %w", action, err)
	}

	callURL := *b.endpoint
	callURL.Path = strings.TrimRight(callURL.Path, "/") + "/" + url.PathEscape(string(contract)) + "/" + action

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, callURL.String(), bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build %s request: %w", action, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := b.client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("%s call to %s: %w", action, contract, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s call to %s: status %d", action, contract, resp.StatusCode)
	}
	if reply == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(reply); err != nil {
		return fmt.Errorf("decode %s reply from %s: %w", action, contract, err)
	}
	return nil
}

// HTTPNFTClient implements NFTClient over a bridge.
type HTTPNFTClient struct {
	bridge *Bridge
}

var _ NFTClient = (*HTTPNFTClient)(nil)

func NewHTTPNFTClient(bridge *Bridge) *HTTPNFTClient {
	return &HTTPNFTClient{bridge: bridge}
}

func (c *HTTPNFTClient) Owner(ctx context.Context, contract market.Address, tokenID market.TokenID) (market.Address, error) {
	var reply struct {
		Owner market.Address `json:"owner"`
	}
	req := map[string]any{"token_id": tokenID}
	if err := c.bridge.call(ctx, contract, "owner", req, &reply); err != nil {
		return market.ZeroAddress, err
	}
	return reply.Owner, nil
}

func (c *HTTPNFTClient) Payouts(ctx context.Context, contract, owner market.Address, amount market.Price) (Payout, error) {
	var reply struct {
		Payout Payout `json:"payout"`
	}
	req := map[string]any{"owner": owner, "amount": amount}
	if err := c.bridge.call(ctx, contract, "payouts", req, &reply); err != nil {
		return nil, err
	}
	return reply.Payout, nil
}

func (c *HTTPNFTClient) Transfer(ctx context.Context, txID market.TxID, contract, to market.Address, tokenID market.TokenID) error {
	req := map[string]any{"tx_id": txID, "to": to, "token_id": tokenID}
	return c.bridge.call(ctx, contract, "transfer", req, nil)
}

// HTTPFTClient implements FTClient over a bridge.
type HTTPFTClient struct {
	bridge *Bridge
}

var _ FTClient = (*HTTPFTClient)(nil)

func NewHTTPFTClient(bridge *Bridge) *HTTPFTClient {
	return &HTTPFTClient{bridge: bridge}
}

func (c *HTTPFTClient) BalanceOf(ctx context.Context, contract, holder market.Address) (market.Price, error) {
	var reply struct {
		Balance market.Price `json:"balance"`
	}
	req := map[string]any{"holder": holder}
	if err := c.bridge.call(ctx, contract, "balance", req, &reply); err != nil {
		return 0, err
	}
	return reply.Balance, nil
}

func (c *HTTPFTClient) Transfer(ctx context.Context, txID market.TxID, contract, from, to market.Address, amount market.Price) error {
	req := map[string]any{"tx_id": txID, "from": from, "to": to, "amount": amount}
	return c.bridge.call(ctx, contract, "transfer", req, nil)
}

// HTTPValueClient implements ValueClient over a bridge. Native value moves
// through a dedicated wallet actor addressed as "value".
type HTTPValueClient struct {
	bridge *Bridge
	wallet market.Address
}

var _ ValueClient = (*HTTPValueClient)(nil)

func NewHTTPValueClient(bridge *Bridge, wallet market.Address) *HTTPValueClient {
	if wallet == market.ZeroAddress {
		wallet = "value"
	}
	return &HTTPValueClient{bridge: bridge, wallet: wallet}
}

func (c *HTTPValueClient) Transfer(ctx context.Context, txID market.TxID, to market.Address, amount market.Price) error {
	req := map[string]any{"tx_id": txID, "to": to, "amount": amount}
	return c.bridge.call(ctx, c.wallet, "transfer", req, nil)
}
