// Package forecast fetches daily weather forecasts from multiple
// independent providers, caches them, and aggregates them into a
// consensus probability for a target temperature interval.
package forecast

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/SpaceSnake26/SunCheck/internal/geo"
)

// Provider source names, used as cache key components and as keys in
// Consensus maps.
const (
	SourceOpenMeteo      = "OpenMeteo"
	SourceVisualCrossing = "VisualCrossing"
	SourceNWS            = "NWS"
	SourceArchive        = "OpenMeteoArchive"
)

// ErrUnavailable is returned when a provider produced no usable data
// after all retries. Callers treat it as "skip this source", never as
// a fatal condition.
var ErrUnavailable = errors.New("forecast unavailable")

// Sample is one daily observation from one provider: the forecast (or
// recorded) daily maximum temperature and precipitation sum.
type Sample struct {
	Source    string
	Value     float64 // daily max temperature, in Unit
	Precip    float64 // daily precipitation sum, mm
	Unit      geo.Unit
	FetchedAt time.Time
}

// Key identifies one cached provider response.
type Key struct {
	Provider string
	Lat      float64
	Lon      float64
	Date     string // YYYY-MM-DD
}

func keyFor(provider string, lat, lon float64, date time.Time) Key {
	return Key{Provider: provider, Lat: lat, Lon: lon, Date: date.Format("2006-01-02")}
}

// Cache stores provider samples with a TTL. Implementations must be
// safe for concurrent use; entries are idempotent fetches of the same
// key, so last-writer-wins on concurrent Put is fine.
type Cache interface {
	Get(key Key) (Sample, bool)
	Put(key Key, s Sample, ttl time.Duration)
}

// Provider fetches the daily forecast for one location and date.
type Provider interface {
	Name() string
	// Covers reports whether this provider can serve the given
	// coordinates at all (the national service only covers the
	// continental US, the commercial one needs an API key).
	Covers(lat, lon float64) bool
	Forecast(ctx context.Context, lat, lon float64, date time.Time, unit geo.Unit, tz string) (Sample, error)
}

// Consensus is the aggregated view across providers for one target
// interval. PerSource holds each provider's independently computed
// probability; RawValues holds the forecast values (already converted
// to the market unit) that produced them.
type Consensus struct {
	PerSource   map[string]float64
	RawValues   map[string]float64
	Probability float64
	Available   bool
}

func sampleUnit(s string) geo.Unit {
	if geo.Unit(s) == geo.Celsius {
		return geo.Celsius
	}
	return geo.Fahrenheit
}

// retry runs fn up to attempts times with linear backoff
// (backoff × attempt between tries), honoring context cancellation.
func retry(ctx context.Context, attempts int, backoff time.Duration, fn func() error) error {
	if attempts < 1 {
		attempts = 1
	}
	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err = fn(); err == nil {
			return nil
		}
		if attempt == attempts {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff * time.Duration(attempt)):
		}
	}
	return fmt.Errorf("after %d attempts: %w", attempts, err)
}
