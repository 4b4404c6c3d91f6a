package forecast

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/SpaceSnake26/SunCheck/internal/geo"
)

// VisualCrossing is the secondary global provider, backing the
// Timeline API. It is skipped entirely when no API key is configured.
type VisualCrossing struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

func NewVisualCrossing(baseURL, apiKey string, timeout time.Duration) *VisualCrossing {
	return &VisualCrossing{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: timeout},
	}
}

func (v *VisualCrossing) Name() string { return SourceVisualCrossing }

func (v *VisualCrossing) Covers(lat, lon float64) bool { return v.apiKey != "" }

type visualCrossingResponse struct {
	Days []struct {
		TempMax float64 `json:"tempmax"`
		Precip  float64 `json:"precip"`
	} `json:"days"`
}

func (v *VisualCrossing) Forecast(ctx context.Context, lat, lon float64, date time.Time, unit geo.Unit, tz string) (Sample, error) {
	day := date.Format("2006-01-02")

	unitGroup := "metric"
	if unit == geo.Fahrenheit {
		unitGroup = "us"
	}
	params := url.Values{}
	params.Set("key", v.apiKey)
	params.Set("unitGroup", unitGroup)
	params.Set("include", "days")
	params.Set("elements", "tempmax,precip")

	endpoint := fmt.Sprintf("%s/%.4f,%.4f/%s?%s", v.baseURL, lat, lon, day, params.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return Sample{}, fmt.Errorf("building visual crossing request: %w", err)
	}

	resp, err := v.client.Do(req)
	if err != nil {
		return Sample{}, fmt.Errorf("fetching visual crossing forecast: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Sample{}, fmt.Errorf("visual crossing returned status %d", resp.StatusCode)
	}

	var body visualCrossingResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return Sample{}, fmt.Errorf("decoding visual crossing response: %w", err)
	}
	if len(body.Days) == 0 {
		return Sample{}, fmt.Errorf("visual crossing: no daily data for %s: %w", day, ErrUnavailable)
	}

	// The metric unit group reports precipitation in mm already; the us
	// group reports inches.
	precip := body.Days[0].Precip
	if unitGroup == "us" {
		precip *= 25.4
	}

	return Sample{
		Source:    SourceVisualCrossing,
		Value:     body.Days[0].TempMax,
		Precip:    precip,
		Unit:      unit,
		FetchedAt: time.Now(),
	}, nil
}
