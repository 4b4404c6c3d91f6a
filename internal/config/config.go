package config

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

type Config struct {
	General   GeneralConfig   `toml:"general"`
	Schedule  ScheduleConfig  `toml:"schedule"`
	Trading   TradingConfig   `toml:"trading"`
	Weather   WeatherConfig   `toml:"weather"`
	Markets   MarketsConfig   `toml:"markets"`
	Telegram  TelegramConfig  `toml:"telegram"`
	Portfolio PortfolioConfig `toml:"portfolio"`
}

type GeneralConfig struct {
	DBPath   string `toml:"db_path"`
	LogLevel string `toml:"log_level"`
}

type ScheduleConfig struct {
	ScanInterval   Duration `toml:"scan_interval"`
	SettleInterval Duration `toml:"settle_interval"`
}

// TradingConfig carries the edge decision policy. Every constant here
// is policy, not mechanism: the engine reads them, never hard-codes them.
type TradingConfig struct {
	// MaxPrice is the price ceiling: outcomes at or above it are never
	// bought, whatever the edge.
	MaxPrice float64 `toml:"max_price"`
	// MinPrice is the dust floor below which a quote means no liquidity.
	MinPrice float64 `toml:"min_price"`
	// MinEdge is the minimum true-minus-market edge to act on.
	MinEdge float64 `toml:"min_edge"`
	// OverrideEdge lets a large edge stand in for a failed proximity check.
	OverrideEdge float64 `toml:"override_edge"`
	// ProximityTolerance is how far (in market units) the forecast may sit
	// outside the target range and still count as close.
	ProximityTolerance float64 `toml:"proximity_tolerance"`
	// MinEdgeWithProximity is the final edge floor applied after the
	// proximity-or-override rule passes.
	MinEdgeWithProximity float64 `toml:"min_edge_with_proximity"`
	// PriceRefreshMargin: refresh the live order-book price only when the
	// stale edge already exceeds this margin.
	PriceRefreshMargin float64 `toml:"price_refresh_margin"`
	// PriceMismatchMax: a refreshed price further than this from the stale
	// one is treated as a token mis-mapping and discarded.
	PriceMismatchMax float64 `toml:"price_mismatch_max"`
	// StakeUSD is the flat paper stake per approved trade.
	StakeUSD float64 `toml:"stake_usd"`
	// MaxSettleDays filters out proposals that settle too far out.
	MaxSettleDays float64 `toml:"max_settle_days"`
	// AutoApprove executes proposals immediately instead of queueing them.
	AutoApprove bool `toml:"auto_approve"`
}

type WeatherConfig struct {
	OpenMeteoURL        string `toml:"open_meteo_url"`
	OpenMeteoArchiveURL string `toml:"open_meteo_archive_url"`
	GeocodingURL        string `toml:"geocoding_url"`
	NWSBaseURL          string `toml:"nws_base_url"`
	VisualCrossingURL   string `toml:"visual_crossing_url"`
	VisualCrossingKey   string `toml:"visual_crossing_key"`

	RequestTimeout Duration `toml:"request_timeout"`
	MaxRetries     int      `toml:"max_retries"`
	RetryBackoff   Duration `toml:"retry_backoff"`

	ForecastTTL   Duration `toml:"forecast_ttl"`
	HistoricalTTL Duration `toml:"historical_ttl"`

	// SigmaBase and SigmaPerDay shape forecast uncertainty:
	// sigma = base + per_day * lead_days.
	SigmaBase   float64 `toml:"sigma_base"`
	SigmaPerDay float64 `toml:"sigma_per_day"`
	// FloorProbability is the fail-soft probability for degenerate inputs.
	FloorProbability float64 `toml:"floor_probability"`

	// BucketDeltaMax is the proximity cut for bucket candidates.
	BucketDeltaMax float64 `toml:"bucket_delta_max"`

	// Sentinel bounds for open-ended "or higher" / "or lower" labels.
	TempUpperBound float64 `toml:"temp_upper_bound"`
	TempLowerBound float64 `toml:"temp_lower_bound"`

	// RainThreshold (mm) decides a rain market; RainRangeHigh caps the
	// implied range for Yes-label inheritance.
	RainThreshold float64 `toml:"rain_threshold"`
	RainRangeHigh float64 `toml:"rain_range_high"`

	// LookaheadDays bounds how far ahead discovery probes for markets.
	LookaheadDays int `toml:"lookahead_days"`
}

type MarketsConfig struct {
	GammaURL       string   `toml:"gamma_url"`
	CLOBURL        string   `toml:"clob_url"`
	EventLimit     int      `toml:"event_limit"`
	CityQueryLimit int      `toml:"city_query_limit"`
	WeatherTagID   int      `toml:"weather_tag_id"`
	MaxWorkers     int      `toml:"max_workers"`
	RequestTimeout Duration `toml:"request_timeout"`
	MaxRetries     int      `toml:"max_retries"`
	RetryBackoff   Duration `toml:"retry_backoff"`
	// ProbeCities are the city slugs probed with exact event-slug
	// queries each cycle, on top of the tag and text searches.
	ProbeCities []string `toml:"probe_cities"`
}

type TelegramConfig struct {
	Enabled  bool   `toml:"enabled"`
	BotToken string `toml:"bot_token"`
	ChatID   string `toml:"chat_id"`
}

type PortfolioConfig struct {
	InitialCash float64 `toml:"initial_cash"`
}

// Duration wraps time.Duration for TOML unmarshaling.
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

func DefaultConfig() *Config {
	return &Config{
		General: GeneralConfig{
			DBPath:   "./data/suncheck.db",
			LogLevel: "info",
		},
		Schedule: ScheduleConfig{
			ScanInterval:   Duration{1 * time.Hour},
			SettleInterval: Duration{6 * time.Hour},
		},
		Trading: TradingConfig{
			MaxPrice:             0.18,
			MinPrice:             0.01,
			MinEdge:              0.06,
			OverrideEdge:         0.15,
			ProximityTolerance:   0.15,
			MinEdgeWithProximity: 0.04,
			PriceRefreshMargin:   0.03,
			PriceMismatchMax:     0.40,
			StakeUSD:             20.0,
			MaxSettleDays:        5.0,
			AutoApprove:          false,
		},
		Weather: WeatherConfig{
			OpenMeteoURL:        "https://api.open-meteo.com/v1/forecast",
			OpenMeteoArchiveURL: "https://archive-api.open-meteo.com/v1/archive",
			GeocodingURL:        "https://geocoding-api.open-meteo.com/v1/search",
			NWSBaseURL:          "https://api.weather.gov",
			VisualCrossingURL:   "https://weather.visualcrossing.com/VisualCrossingWebServices/rest/services/timeline",
			RequestTimeout:      Duration{10 * time.Second},
			MaxRetries:          3,
			RetryBackoff:        Duration{1 * time.Second},
			ForecastTTL:         Duration{1 * time.Hour},
			HistoricalTTL:       Duration{24 * time.Hour},
			SigmaBase:           0.8,
			SigmaPerDay:         0.3,
			FloorProbability:    0.01,
			BucketDeltaMax:      0.3,
			TempUpperBound:      150.0,
			TempLowerBound:      -50.0,
			RainThreshold:       0.5,
			RainRangeHigh:       10.0,
			LookaheadDays:       3,
		},
		Markets: MarketsConfig{
			GammaURL:       "https://gamma-api.polymarket.com",
			CLOBURL:        "https://clob.polymarket.com",
			EventLimit:     250,
			CityQueryLimit: 50,
			WeatherTagID:   1002,
			MaxWorkers:     10,
			RequestTimeout: Duration{15 * time.Second},
			MaxRetries:     3,
			RetryBackoff:   Duration{1 * time.Second},
			ProbeCities:    []string{"london", "miami", "seattle", "toronto", "new-york"},
		},
		Telegram: TelegramConfig{
			Enabled: false,
		},
		Portfolio: PortfolioConfig{
			InitialCash: 1000.0,
		},
	}
}

func (c *Config) Validate() error {
	if c.Trading.MaxPrice <= c.Trading.MinPrice {
		return fmt.Errorf("trading.max_price must exceed trading.min_price")
	}
	if c.Trading.MaxPrice > 1 || c.Trading.MinPrice < 0 {
		return fmt.Errorf("trading prices must lie in [0,1]")
	}
	if c.Trading.MinEdge < 0 || c.Trading.OverrideEdge < c.Trading.MinEdge {
		return fmt.Errorf("trading.override_edge must be at least trading.min_edge")
	}
	if c.Trading.StakeUSD <= 0 {
		return fmt.Errorf("trading.stake_usd must be positive")
	}
	if c.Weather.SigmaBase <= 0 || c.Weather.SigmaPerDay < 0 {
		return fmt.Errorf("weather sigma parameters must be positive")
	}
	if c.Weather.BucketDeltaMax <= 0 || c.Weather.BucketDeltaMax > 0.5 {
		return fmt.Errorf("weather.bucket_delta_max must lie in (0, 0.5]")
	}
	if c.Weather.TempUpperBound <= c.Weather.TempLowerBound {
		return fmt.Errorf("weather.temp_upper_bound must exceed weather.temp_lower_bound")
	}
	if c.Weather.MaxRetries < 1 || c.Markets.MaxRetries < 1 {
		return fmt.Errorf("max_retries must be at least 1")
	}
	if c.Markets.MaxWorkers < 1 {
		return fmt.Errorf("markets.max_workers must be at least 1")
	}
	if c.Telegram.Enabled && (c.Telegram.BotToken == "" || c.Telegram.ChatID == "") {
		return fmt.Errorf("telegram.bot_token and telegram.chat_id are required when telegram is enabled")
	}
	if c.Portfolio.InitialCash < 0 {
		return fmt.Errorf("portfolio.initial_cash must not be negative")
	}
	return nil
}
