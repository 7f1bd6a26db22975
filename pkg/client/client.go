// Package client is the blockchain-query boundary client (spec.md §6): an
// opaque HTTP client for a Blockfrost-class Cardano query API, exposing
// get_address_balance and get_current_block_height.
//
// Adapted from the teacher's pkg/client, whose Client/Option/do shape
// (functional options, a single authenticated do() request path, response
// size limiting) is kept verbatim; the mTLS/DNS-challenge/agent:// resolution
// surface it served has no counterpart in this domain and is replaced with
// the two read-only chain-query calls spec.md §6 names.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cardanoagents/enhanced-client/internal/money"
)

// Client is a Blockfrost-class chain-query API client.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// Option is a functional option for configuring a Client.
type Option func(*Client)

// WithHTTPClient sets a custom http.Client, overriding the default timeout.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithTimeout sets the per-request timeout (spec.md §5's 30s external-call
// default).
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.httpClient.Timeout = d }
}

// New creates a Client against baseURL, authenticating every request with
// apiKey (Blockfrost's project-id header convention).
func New(baseURL, apiKey string, opts ...Option) *Client {
	c := &Client{
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

type addressResponse struct {
	Amount []struct {
		Unit     string `json:"unit"`
		Quantity string `json:"quantity"`
	} `json:"amount"`
}

// GetAddressBalance implements get_address_balance(address) → Decimal,
// returning the address's balance in the chain's native unit (lovelace,
// i.e. micro-ADA — exactly the money.Amount representation).
func (c *Client) GetAddressBalance(ctx context.Context, address string) (money.Amount, error) {
	body, err := c.do(ctx, http.MethodGet, "/addresses/"+address, nil)
	if err != nil {
		return 0, fmt.Errorf("query address balance: %w", err)
	}
	var res addressResponse
	if err := json.Unmarshal(body, &res); err != nil {
		return 0, fmt.Errorf("decode address balance response: %w", err)
	}
	for _, amt := range res.Amount {
		if amt.Unit == "lovelace" {
			parsed, err := money.Parse(scaleLovelaceToUnit(amt.Quantity))
			if err != nil {
				return 0, fmt.Errorf("parse lovelace quantity %q: %w", amt.Quantity, err)
			}
			return parsed, nil
		}
	}
	return 0, nil
}

type blockResponse struct {
	Height int64 `json:"height"`
}

// GetCurrentBlockHeight implements get_current_block_height() → integer.
func (c *Client) GetCurrentBlockHeight(ctx context.Context) (int64, error) {
	body, err := c.do(ctx, http.MethodGet, "/blocks/latest", nil)
	if err != nil {
		return 0, fmt.Errorf("query current block height: %w", err)
	}
	var res blockResponse
	if err := json.Unmarshal(body, &res); err != nil {
		return 0, fmt.Errorf("decode block height response: %w", err)
	}
	return res.Height, nil
}

func (c *Client) do(ctx context.Context, method, path string, reqBody []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	_ = reqBody // every current call is a GET; kept for future POST-style queries
	if c.apiKey != "" {
		req.Header.Set("project_id", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("chain-query request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if err != nil {
		return nil, fmt.Errorf("read chain-query response: %w", err)
	}
	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("not found: %s", path)
	}
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("chain-query API error %d: %s", resp.StatusCode, string(body))
	}
	return body, nil
}

// scaleLovelaceToUnit renders a raw integer lovelace quantity string (as
// Blockfrost returns it) as a decimal ADA string money.Parse accepts.
// Lovelace already carries 6 decimal digits of precision, matching
// internal/money's Precision, so no actual scaling happens — only the
// decimal point placement.
func scaleLovelaceToUnit(raw string) string {
	neg := false
	if len(raw) > 0 && raw[0] == '-' {
		neg = true
		raw = raw[1:]
	}
	for len(raw) <= money.Precision {
		raw = "0" + raw
	}
	whole := raw[:len(raw)-money.Precision]
	frac := raw[len(raw)-money.Precision:]
	sign := ""
	if neg {
		sign = "-"
	}
	return fmt.Sprintf("%s%s.%s", sign, whole, frac)
}
