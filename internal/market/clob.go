package market

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// CLOBClient reads live midpoint prices from the Polymarket order
// book. It is read-only: order signing is out of scope here.
type CLOBClient struct {
	baseURL string
	client  *http.Client
}

func NewCLOBClient(baseURL string, timeout time.Duration) *CLOBClient {
	return &CLOBClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

type midpointResponse struct {
	Mid string `json:"mid"`
}

// Price returns the current midpoint price for a token, in [0,1].
func (c *CLOBClient) Price(ctx context.Context, tokenID string) (float64, error) {
	params := url.Values{}
	params.Set("token_id", tokenID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/midpoint?"+params.Encode(), nil)
	if err != nil {
		return 0, fmt.Errorf("building clob request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("fetching clob midpoint: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("clob returned status %d", resp.StatusCode)
	}

	var body midpointResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return 0, fmt.Errorf("decoding clob midpoint: %w", err)
	}

	price, err := strconv.ParseFloat(body.Mid, 64)
	if err != nil {
		return 0, fmt.Errorf("parsing clob midpoint %q: %w", body.Mid, err)
	}
	if price < 0 || price > 1 {
		return 0, fmt.Errorf("clob midpoint %v out of range", price)
	}
	return price, nil
}
