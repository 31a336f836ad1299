// Package dhan talks to the Dhan HTTP API v2. It implements both
// market.PriceFeed (batch LTP quotes) and market.OrderExecutor (intraday
// market buys on NSE_FNO).
package dhan

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

const defaultBaseURL = "https://api.dhan.co"

// requestTimeout bounds every broker call so a stalled request surfaces as a
// feed/execution error instead of hanging the caller's serialization scope.
const requestTimeout = 10 * time.Second

// Client is an authenticated Dhan API client.
type Client struct {
	baseURL     string
	clientID    string
	accessToken string
	http        *http.Client
}

// NewClient builds a client from explicit credentials. baseURL may be empty
// to use the production API.
func NewClient(clientID, accessToken, baseURL string) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		baseURL:     baseURL,
		clientID:    clientID,
		accessToken: accessToken,
		http:        &http.Client{Timeout: requestTimeout},
	}
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("access-token", c.accessToken)
	req.Header.Set("client-id", c.clientID)

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var apiErr struct {
			ErrorType    string `json:"errorType"`
			ErrorMessage string `json:"errorMessage"`
		}
		json.NewDecoder(resp.Body).Decode(&apiErr)
		if apiErr.ErrorMessage != "" {
			return fmt.Errorf("dhan api %s: %s (%s)", resp.Status, apiErr.ErrorMessage, apiErr.ErrorType)
		}
		return fmt.Errorf("dhan api %s", resp.Status)
	}

	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}
