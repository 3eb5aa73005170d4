// Package client talks to the entitlement backend: one purchase
// verification call and one snapshot refresh call. Everything else about
// the backend is out of the SDK's hands.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"golang.org/x/oauth2"

	"github.com/open-rails/purchasekit/entitlements"
)

const (
	verifyPath       = "/v1/purchases/verify"
	entitlementsPath = "/v1/entitlements"
)

// ErrConflict reports that the server already processed a verification
// request with the same idempotency key. It is a success condition for the
// purchase flow, not a failure; callers follow up with a snapshot refresh.
var ErrConflict = errors.New("purchase already processed")

// APIError is a definitive non-2xx answer from the server (other than a
// conflict). It is terminal for the attempt that triggered it: the server
// saw the request and rejected it, so retrying the same attempt is useless.
type APIError struct {
	StatusCode int
	Code       string `json:"error"`
	Message    string `json:"message"`
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("server rejected request (%d %s): %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("server rejected request (%d %s)", e.StatusCode, e.Code)
}

// VerifyRequest carries one verification attempt. Platform and device ID
// are filled in by the client; callers provide the attempt context.
type VerifyRequest struct {
	ProductID      string `json:"product_id"`
	EntitlementKey string `json:"entitlement_key"`
	IdempotencyKey string `json:"idempotency_key"`
	TransactionID  string `json:"transaction_id,omitempty"`
	ReceiptData    string `json:"receipt_data,omitempty"`
}

type verifyWireRequest struct {
	VerifyRequest
	Platform Platform `json:"platform"`
	DeviceID string   `json:"device_id,omitempty"`
}

type verifyWireResponse struct {
	Success  bool                   `json:"success"`
	Snapshot *entitlements.Snapshot `json:"entitlements_snapshot"`
	Message  string                 `json:"message,omitempty"`
}

// Client is the HTTP client for the two entitlement endpoints.
type Client struct {
	baseURL  string
	http     *http.Client
	platform Platform
	deviceID string
}

// New builds a client from cfg. When cfg.TokenSource is set, requests are
// bearer-authenticated through oauth2's transport.
func New(cfg Config) (*Client, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: cfg.Timeout}
	}
	if cfg.TokenSource != nil {
		ctx := context.WithValue(context.Background(), oauth2.HTTPClient, hc)
		hc = oauth2.NewClient(ctx, cfg.TokenSource)
	}

	deviceID := cfg.DeviceID
	if deviceID == "" {
		deviceID = NewDeviceID()
	}

	return &Client{
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		http:     hc,
		platform: cfg.Platform,
		deviceID: deviceID,
	}, nil
}

// Platform returns the platform this client reports to the server.
func (c *Client) Platform() Platform { return c.platform }

// DeviceID returns the install identifier sent with verification requests.
func (c *Client) DeviceID() string { return c.deviceID }

// VerifyPurchase submits one verification attempt.
//
// Outcomes:
//   - 2xx with a snapshot: the new snapshot is returned.
//   - conflict status: ErrConflict (already processed; not a failure).
//   - other non-2xx: *APIError.
//   - no response at all: the transport error, wrapped. The caller treats
//     this as retryable since the server may have processed the request.
func (c *Client) VerifyPurchase(ctx context.Context, req VerifyRequest) (*entitlements.Snapshot, error) {
	body, err := json.Marshal(verifyWireRequest{
		VerifyRequest: req,
		Platform:      c.platform,
		DeviceID:      c.deviceID,
	})
	if err != nil {
		return nil, fmt.Errorf("encode verify request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+verifyPath, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build verify request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("verify purchase: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusConflict {
		io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("verify purchase %s: %w", req.IdempotencyKey, ErrConflict)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, decodeAPIError(resp)
	}

	var payload verifyWireResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, &APIError{StatusCode: resp.StatusCode, Code: "malformed_response", Message: err.Error()}
	}
	if !payload.Success || payload.Snapshot == nil {
		return nil, &APIError{StatusCode: resp.StatusCode, Code: "malformed_response", Message: "success without snapshot"}
	}
	if err := payload.Snapshot.Validate(); err != nil {
		return nil, &APIError{StatusCode: resp.StatusCode, Code: "malformed_response", Message: err.Error()}
	}
	return payload.Snapshot, nil
}

// FetchSnapshot retrieves a fresh entitlement snapshot for the current
// user. The cache uses this for hydrating refreshes; it satisfies
// cache.Fetcher.
func (c *Client) FetchSnapshot(ctx context.Context) (*entitlements.Snapshot, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+entitlementsPath, nil)
	if err != nil {
		return nil, fmt.Errorf("build refresh request: %w", err)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("fetch snapshot: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, decodeAPIError(resp)
	}

	var snap entitlements.Snapshot
	if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil {
		return nil, &APIError{StatusCode: resp.StatusCode, Code: "malformed_response", Message: err.Error()}
	}
	if err := snap.Validate(); err != nil {
		return nil, &APIError{StatusCode: resp.StatusCode, Code: "malformed_response", Message: err.Error()}
	}
	return &snap, nil
}

func decodeAPIError(resp *http.Response) error {
	apiErr := &APIError{StatusCode: resp.StatusCode, Code: "server_error"}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err == nil && len(body) > 0 {
		_ = json.Unmarshal(body, apiErr)
	}
	return apiErr
}
