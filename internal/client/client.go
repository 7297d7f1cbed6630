// Package client is a thin HTTP client for the escrowd API, used by the
// escrowctl admin tool. Responses are passed through as raw JSON; the tool
// prints them rather than interpreting them.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// APIError is a non-2xx response from the server.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error (status %d): %s", e.StatusCode, e.Message)
}

// Client calls the escrowd HTTP API with a bearer token.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// New returns a Client for the given base URL (e.g. "http://localhost:8080").
func New(baseURL, token string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// ConfirmFunding confirms a pending funding intent.
func (c *Client) ConfirmFunding(ctx context.Context, intentID, notes string) (json.RawMessage, error) {
	body := map[string]any{}
	if notes != "" {
		body["notes"] = notes
	}
	return c.post(ctx, "/api/funding/"+intentID+"/confirm", body)
}

// RejectFunding rejects a pending funding intent. Notes are mandatory
// server-side.
func (c *Client) RejectFunding(ctx context.Context, intentID, notes string) (json.RawMessage, error) {
	return c.post(ctx, "/api/funding/"+intentID+"/reject", map[string]any{"notes": notes})
}

// SettlePayout marks a pending payout as settled. An empty ref lets the
// server generate one.
func (c *Client) SettlePayout(ctx context.Context, payoutID, ref string) (json.RawMessage, error) {
	body := map[string]any{}
	if ref != "" {
		body["tx_ref"] = ref
	}
	return c.post(ctx, "/api/payouts/"+payoutID+"/settle", body)
}

// Overview fetches the reviewer dashboard.
func (c *Client) Overview(ctx context.Context) (json.RawMessage, error) {
	return c.do(ctx, http.MethodGet, "/api/ledger/overview", nil)
}

func (c *Client) post(ctx context.Context, path string, body map[string]any) (json.RawMessage, error) {
	encoded, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	return c.do(ctx, http.MethodPost, path, encoded)
}

func (c *Client) do(ctx context.Context, method, path string, body []byte) (json.RawMessage, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var eb struct {
			Error string `json:"error"`
		}
		if err := json.Unmarshal(payload, &eb); err != nil || eb.Error == "" {
			eb.Error = strings.TrimSpace(string(payload))
		}
		return nil, &APIError{StatusCode: resp.StatusCode, Message: eb.Error}
	}

	return json.RawMessage(payload), nil
}
