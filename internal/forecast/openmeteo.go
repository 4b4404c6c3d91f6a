package forecast

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/SpaceSnake26/SunCheck/internal/geo"
)

// OpenMeteo is the primary global forecast provider. The same client
// shape serves the forward forecast API and the historical archive
// API, which differ only in base URL and TTL semantics.
type OpenMeteo struct {
	baseURL string
	client  *http.Client
	name    string
}

func NewOpenMeteo(baseURL string, timeout time.Duration) *OpenMeteo {
	return &OpenMeteo{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
		name:    SourceOpenMeteo,
	}
}

// NewOpenMeteoArchive builds a client against the archive API, used
// for settlement lookups on past dates.
func NewOpenMeteoArchive(archiveURL string, timeout time.Duration) *OpenMeteo {
	return &OpenMeteo{
		baseURL: archiveURL,
		client:  &http.Client{Timeout: timeout},
		name:    SourceArchive,
	}
}

func (o *OpenMeteo) Name() string { return o.name }

func (o *OpenMeteo) Covers(lat, lon float64) bool { return true }

type openMeteoResponse struct {
	Daily struct {
		TemperatureMax   []float64 `json:"temperature_2m_max"`
		PrecipitationSum []float64 `json:"precipitation_sum"`
	} `json:"daily"`
}

func (o *OpenMeteo) Forecast(ctx context.Context, lat, lon float64, date time.Time, unit geo.Unit, tz string) (Sample, error) {
	day := date.Format("2006-01-02")

	params := url.Values{}
	params.Set("latitude", fmt.Sprintf("%.4f", lat))
	params.Set("longitude", fmt.Sprintf("%.4f", lon))
	params.Set("daily", "temperature_2m_max,precipitation_sum")
	params.Set("start_date", day)
	params.Set("end_date", day)
	if tz != "" {
		params.Set("timezone", tz)
	}
	if unit == geo.Fahrenheit {
		params.Set("temperature_unit", "fahrenheit")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, o.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return Sample{}, fmt.Errorf("building open-meteo request: %w", err)
	}

	resp, err := o.client.Do(req)
	if err != nil {
		return Sample{}, fmt.Errorf("fetching open-meteo forecast: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Sample{}, fmt.Errorf("open-meteo returned status %d", resp.StatusCode)
	}

	var body openMeteoResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return Sample{}, fmt.Errorf("decoding open-meteo response: %w", err)
	}
	if len(body.Daily.TemperatureMax) == 0 {
		return Sample{}, fmt.Errorf("open-meteo: no daily data for %s: %w", day, ErrUnavailable)
	}

	s := Sample{
		Source:    o.name,
		Value:     body.Daily.TemperatureMax[0],
		Unit:      unit,
		FetchedAt: time.Now(),
	}
	if len(body.Daily.PrecipitationSum) > 0 {
		s.Precip = body.Daily.PrecipitationSum[0]
	}
	return s, nil
}

// Geocoder resolves city names that are missing from the gazetteer to
// coordinates via the Open-Meteo geocoding API. Results are memoized
// for the process lifetime; city coordinates do not move.
type Geocoder struct {
	baseURL string
	client  *http.Client

	mu    sync.Mutex
	known map[string][2]float64
}

func NewGeocoder(baseURL string, timeout time.Duration) *Geocoder {
	return &Geocoder{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
		known:   make(map[string][2]float64),
	}
}

type geocodeResponse struct {
	Results []struct {
		Latitude  float64 `json:"latitude"`
		Longitude float64 `json:"longitude"`
	} `json:"results"`
}

func (g *Geocoder) Resolve(ctx context.Context, name string) (lat, lon float64, err error) {
	g.mu.Lock()
	if coords, ok := g.known[name]; ok {
		g.mu.Unlock()
		return coords[0], coords[1], nil
	}
	g.mu.Unlock()

	params := url.Values{}
	params.Set("name", name)
	params.Set("count", "1")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return 0, 0, fmt.Errorf("building geocoding request: %w", err)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return 0, 0, fmt.Errorf("geocoding %q: %w", name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, 0, fmt.Errorf("geocoding %q: status %d", name, resp.StatusCode)
	}

	var body geocodeResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return 0, 0, fmt.Errorf("decoding geocoding response: %w", err)
	}
	if len(body.Results) == 0 {
		return 0, 0, fmt.Errorf("geocoding %q: no results: %w", name, ErrUnavailable)
	}

	lat, lon = body.Results[0].Latitude, body.Results[0].Longitude
	g.mu.Lock()
	g.known[name] = [2]float64{lat, lon}
	g.mu.Unlock()
	return lat, lon, nil
}
