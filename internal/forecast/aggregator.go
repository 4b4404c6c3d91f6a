package forecast

import (
	"context"
	"log/slog"
	"time"

	"github.com/SpaceSnake26/SunCheck/internal/geo"
	"github.com/SpaceSnake26/SunCheck/internal/prob"
)

// Metric selects which daily observable a consensus is computed over.
type Metric int

const (
	MaxTemperature Metric = iota
	Precipitation
)

// AggregatorConfig wires an Aggregator. Providers that report
// Covers == false for a location are skipped without being counted as
// failures.
type AggregatorConfig struct {
	Providers     []Provider
	Archive       Provider // historical lookups for settlement
	Cache         Cache
	Geocoder      *Geocoder // optional; used for cities missing coordinates
	Model         prob.Model
	Retries       int
	Backoff       time.Duration
	ForecastTTL   time.Duration
	HistoricalTTL time.Duration
}

// Aggregator fans a city/date out to every covering provider, scores
// each sample independently against a target interval, and averages.
// Safe for concurrent use as long as the Cache is.
type Aggregator struct {
	cfg AggregatorConfig
	now func() time.Time
}

func NewAggregator(cfg AggregatorConfig) *Aggregator {
	return &Aggregator{cfg: cfg, now: time.Now}
}

// Score computes the consensus probability that the daily value for
// city/date lands in [low, high], expressed in the market's unit.
// Provider failures reduce the source set; an empty set yields an
// unavailable consensus, never a fabricated probability.
func (a *Aggregator) Score(ctx context.Context, city geo.City, date time.Time, low, high float64, unit geo.Unit, metric Metric) Consensus {
	samples := a.Samples(ctx, city, date, unit)

	lead := a.leadDays(date)
	perSource := make(map[string]float64, len(samples))
	raw := make(map[string]float64, len(samples))

	for _, s := range samples {
		value := s.Precip
		if metric == MaxTemperature {
			value = geo.Convert(s.Value, s.Unit, unit)
		}
		raw[s.Source] = value
		perSource[s.Source] = a.cfg.Model.Interval(value, low, high, lead)
	}

	consensus, ok := prob.Consensus(perSource)
	return Consensus{
		PerSource:   perSource,
		RawValues:   raw,
		Probability: consensus,
		Available:   ok,
	}
}

// Samples fetches one sample per covering provider, read-through
// cached. Failed providers are logged and dropped; they never block
// the rest.
func (a *Aggregator) Samples(ctx context.Context, city geo.City, date time.Time, unit geo.Unit) []Sample {
	lat, lon, tz, err := a.resolveCoords(ctx, city)
	if err != nil {
		slog.Warn("no coordinates for city", "city", city.Name, "error", err)
		return nil
	}

	var samples []Sample
	for _, p := range a.cfg.Providers {
		if !p.Covers(lat, lon) {
			continue
		}
		s, err := a.sample(ctx, p, lat, lon, date, unit, tz, a.cfg.ForecastTTL)
		if err != nil {
			slog.Warn("provider fetch failed", "provider", p.Name(), "city", city.Name, "date", date.Format("2006-01-02"), "error", err)
			continue
		}
		samples = append(samples, s)
	}
	return samples
}

// Actual returns the recorded daily observation for a past date, used
// by the settlement resolver. Values come from the archive provider
// and are cached with the longer historical TTL.
func (a *Aggregator) Actual(ctx context.Context, city geo.City, date time.Time) (Sample, bool) {
	if a.cfg.Archive == nil {
		return Sample{}, false
	}
	lat, lon, tz, err := a.resolveCoords(ctx, city)
	if err != nil {
		slog.Warn("no coordinates for city", "city", city.Name, "error", err)
		return Sample{}, false
	}

	s, err := a.sample(ctx, a.cfg.Archive, lat, lon, date, city.Unit, tz, a.cfg.HistoricalTTL)
	if err != nil {
		slog.Warn("historical fetch failed", "city", city.Name, "date", date.Format("2006-01-02"), "error", err)
		return Sample{}, false
	}
	return s, true
}

func (a *Aggregator) sample(ctx context.Context, p Provider, lat, lon float64, date time.Time, unit geo.Unit, tz string, ttl time.Duration) (Sample, error) {
	key := keyFor(p.Name(), lat, lon, date)
	if a.cfg.Cache != nil {
		if s, ok := a.cfg.Cache.Get(key); ok {
			return s, nil
		}
	}

	var s Sample
	err := retry(ctx, a.cfg.Retries, a.cfg.Backoff, func() error {
		var ferr error
		s, ferr = p.Forecast(ctx, lat, lon, date, unit, tz)
		return ferr
	})
	if err != nil {
		return Sample{}, err
	}

	if a.cfg.Cache != nil {
		a.cfg.Cache.Put(key, s, ttl)
	}
	return s, nil
}

func (a *Aggregator) resolveCoords(ctx context.Context, city geo.City) (lat, lon float64, tz string, err error) {
	if city.Lat != 0 || city.Lon != 0 {
		return city.Lat, city.Lon, city.Timezone, nil
	}
	if a.cfg.Geocoder == nil {
		return 0, 0, "", ErrUnavailable
	}
	lat, lon, err = a.cfg.Geocoder.Resolve(ctx, city.Name)
	return lat, lon, "", err
}

func (a *Aggregator) leadDays(date time.Time) float64 {
	now := a.now().UTC()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	return date.Sub(today).Hours() / 24
}
