package issuer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cardanoagents/enhanced-client/internal/coreerr"
)

// HTTPGateway submits mint requests to an NMKR-class external issuer over
// HTTP. Grounded on the request/response handling in pkg/client.Client.do:
// build request, set headers, classify status codes, decode JSON body.
type HTTPGateway struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewHTTPGateway creates an HTTPGateway. timeout is applied per-request via
// the request context (spec.md §5's 30s default external-call timeout).
func NewHTTPGateway(baseURL, apiKey string, timeout time.Duration) *HTTPGateway {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPGateway{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

type mintRequestBody struct {
	AssetName        string         `json:"asset_name"`
	RecipientAddress string         `json:"recipient_address"`
	PolicyID         string         `json:"policy_id"`
	Metadata         map[string]any `json:"metadata"`
}

type mintResponseBody struct {
	TransactionID string `json:"transaction_id"`
	AssetID       string `json:"asset_id"`
}

// Mint implements Gateway.
func (g *HTTPGateway) Mint(ctx context.Context, req MintRequest) (*MintResult, error) {
	payload, err := json.Marshal(mintRequestBody{
		AssetName:        req.AssetName,
		RecipientAddress: req.RecipientAddress,
		PolicyID:         req.PolicyID,
		Metadata:         req.Metadata,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal mint request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/api/v1/mint", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build mint request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	if g.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+g.apiKey)
	}

	resp, err := g.httpClient.Do(httpReq)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, coreerr.New(coreerr.KindTransportTimeout, "mint request timed out")
		}
		return nil, coreerr.Newf(coreerr.KindTransportFailed, "mint request failed: %v", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if err != nil {
		return nil, coreerr.Newf(coreerr.KindTransportFailed, "read mint response: %v", err)
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, coreerr.RateLimited(resp.Header.Get("Retry-After"))
	case resp.StatusCode >= 500:
		return nil, coreerr.Newf(coreerr.KindTransportFailed, "issuer server error %d: %s", resp.StatusCode, string(body))
	case resp.StatusCode >= 300:
		return nil, coreerr.Newf(coreerr.KindInvalidField, "issuer rejected mint request (%d): %s", resp.StatusCode, string(body))
	}

	var decoded mintResponseBody
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, fmt.Errorf("decode mint response: %w", err)
	}
	return &MintResult{TransactionID: decoded.TransactionID, AssetID: decoded.AssetID}, nil
}
