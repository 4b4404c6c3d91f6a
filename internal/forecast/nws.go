package forecast

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/SpaceSnake26/SunCheck/internal/geo"
)

const nwsUserAgent = "SunCheckWeatherBot/1.0 (github.com/SpaceSnake26/SunCheck)"

// NWS queries the US National Weather Service. It only covers
// coordinates inside the continental US; the points endpoint rejects
// everything else, so coverage is checked up front.
type NWS struct {
	baseURL string
	client  *http.Client
}

func NewNWS(baseURL string, timeout time.Duration) *NWS {
	return &NWS{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

func (n *NWS) Name() string { return SourceNWS }

func (n *NWS) Covers(lat, lon float64) bool { return geo.InContinentalUS(lat, lon) }

type nwsPointsResponse struct {
	Properties struct {
		Forecast string `json:"forecast"`
	} `json:"properties"`
}

type nwsForecastResponse struct {
	Properties struct {
		Periods []struct {
			StartTime       string  `json:"startTime"`
			IsDaytime       bool    `json:"isDaytime"`
			Temperature     float64 `json:"temperature"`
			TemperatureUnit string  `json:"temperatureUnit"`
		} `json:"periods"`
	} `json:"properties"`
}

// Forecast resolves the grid forecast URL for the point, then picks
// the daytime period starting on the requested date. NWS reports in
// Fahrenheit; the sample is converted to the requested unit.
func (n *NWS) Forecast(ctx context.Context, lat, lon float64, date time.Time, unit geo.Unit, tz string) (Sample, error) {
	var points nwsPointsResponse
	pointsURL := fmt.Sprintf("%s/points/%.4f,%.4f", n.baseURL, lat, lon)
	if err := n.getJSON(ctx, pointsURL, &points); err != nil {
		return Sample{}, fmt.Errorf("resolving nws point: %w", err)
	}
	if points.Properties.Forecast == "" {
		return Sample{}, fmt.Errorf("nws point %0.4f,%0.4f has no forecast url: %w", lat, lon, ErrUnavailable)
	}

	var fc nwsForecastResponse
	if err := n.getJSON(ctx, points.Properties.Forecast, &fc); err != nil {
		return Sample{}, fmt.Errorf("fetching nws forecast: %w", err)
	}

	day := date.Format("2006-01-02")
	for _, p := range fc.Properties.Periods {
		if !p.IsDaytime || !strings.HasPrefix(p.StartTime, day) {
			continue
		}
		value := p.Temperature
		from := geo.Fahrenheit
		if strings.EqualFold(p.TemperatureUnit, "C") || strings.Contains(p.TemperatureUnit, "degC") {
			from = geo.Celsius
		}
		return Sample{
			Source:    SourceNWS,
			Value:     geo.Convert(value, from, unit),
			Unit:      unit,
			FetchedAt: time.Now(),
		}, nil
	}
	return Sample{}, fmt.Errorf("nws: no daytime period for %s: %w", day, ErrUnavailable)
}

func (n *NWS) getJSON(ctx context.Context, endpoint string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("building nws request: %w", err)
	}
	req.Header.Set("User-Agent", nwsUserAgent)
	req.Header.Set("Accept", "application/geo+json")

	resp, err := n.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("nws returned status %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
