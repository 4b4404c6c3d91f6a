// Package market talks to Polymarket: event discovery through the
// Gamma API and live order-book prices through the CLOB API.
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

// StringList decodes a JSON array of strings that the Gamma API
// sometimes serves doubly encoded, as a string containing JSON.
type StringList []string

func (s *StringList) UnmarshalJSON(data []byte) error {
	var direct []string
	if err := json.Unmarshal(data, &direct); err == nil {
		*s = direct
		return nil
	}

	var nested string
	if err := json.Unmarshal(data, &nested); err != nil {
		return fmt.Errorf("decoding string list: %w", err)
	}
	if strings.TrimSpace(nested) == "" {
		*s = nil
		return nil
	}
	var arr []string
	if err := json.Unmarshal([]byte(nested), &arr); err != nil {
		return fmt.Errorf("decoding nested string list: %w", err)
	}
	*s = arr
	return nil
}

// PriceList decodes outcome prices, which Gamma serves as an array of
// numeric strings, often itself wrapped in a string.
type PriceList []float64

func (p *PriceList) UnmarshalJSON(data []byte) error {
	var raw StringList
	if err := raw.UnmarshalJSON(data); err != nil {
		// Last resort: a plain numeric array.
		var direct []float64
		if derr := json.Unmarshal(data, &direct); derr == nil {
			*p = direct
			return nil
		}
		return err
	}

	out := make([]float64, 0, len(raw))
	for _, s := range raw {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return fmt.Errorf("parsing outcome price %q: %w", s, err)
		}
		out = append(out, v)
	}
	*p = out
	return nil
}

// Market is one tradable question inside a Gamma event.
type Market struct {
	ID            string     `json:"id"`
	Question      string     `json:"question"`
	Slug          string     `json:"slug"`
	EndDate       string     `json:"endDate"`
	Closed        bool       `json:"closed"`
	Outcomes      StringList `json:"outcomes"`
	OutcomePrices PriceList  `json:"outcomePrices"`
	ClobTokenIDs  StringList `json:"clobTokenIds"`
}

// Event is a Gamma event grouping one or more markets.
type Event struct {
	Title   string   `json:"title"`
	Slug    string   `json:"slug"`
	Markets []Market `json:"markets"`
}

// TokenForOutcome returns the CLOB token id backing an outcome label.
// Binary markets list their tokens in [NO, YES] order; multi-outcome
// markets align tokens with outcome indices.
func (m Market) TokenForOutcome(label string, index int) string {
	if len(m.ClobTokenIDs) == 0 {
		return ""
	}
	lower := strings.ToLower(strings.TrimSpace(label))
	if len(m.ClobTokenIDs) == 2 && (lower == "yes" || lower == "no") {
		if lower == "yes" {
			return m.ClobTokenIDs[1]
		}
		return m.ClobTokenIDs[0]
	}
	if index >= 0 && index < len(m.ClobTokenIDs) {
		return m.ClobTokenIDs[index]
	}
	return ""
}

// GammaClient queries the Gamma events API with bounded retries.
type GammaClient struct {
	baseURL string
	client  *http.Client
	retries int
	backoff time.Duration
}

func NewGammaClient(baseURL string, timeout time.Duration, retries int, backoff time.Duration) *GammaClient {
	return &GammaClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
		retries: retries,
		backoff: backoff,
	}
}

// Events fetches /events with the given query parameters. Transient
// failures are retried with linear backoff before surfacing.
func (c *GammaClient) Events(ctx context.Context, params url.Values) ([]Event, error) {
	endpoint := c.baseURL + "/events?" + params.Encode()

	var events []Event
	attempts := c.retries
	if attempts < 1 {
		attempts = 1
	}

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		events, err = c.fetchEvents(ctx, endpoint)
		if err == nil {
			return events, nil
		}
		if attempt == attempts {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(c.backoff * time.Duration(attempt)):
		}
	}
	return nil, fmt.Errorf("fetching gamma events: %w", err)
}

func (c *GammaClient) fetchEvents(ctx context.Context, endpoint string) ([]Event, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("gamma returned status %d", resp.StatusCode)
	}

	var events []Event
	if err := json.NewDecoder(resp.Body).Decode(&events); err != nil {
		return nil, fmt.Errorf("decoding events: %w", err)
	}
	return events, nil
}
