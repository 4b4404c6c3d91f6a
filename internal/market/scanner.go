package market

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/SpaceSnake26/SunCheck/internal/config"
	"github.com/SpaceSnake26/SunCheck/internal/parse"
)

// negativeKeywords knock out whole event categories that keyword
// matching on "weather" words occasionally drags in.
var negativeKeywords = []string{
	"ukraine", "token", "coin", "crypto", "btc", "eth", "solana", "price of",
	"nba", "basketball", "nfl", "football", "nhl", "hockey", "mlb", "baseball",
	"vanguard", "s&p", "stock", "market cap", "election", "president",
	" vs ", " vs.", "fed ", "interest rate",
	"hurricane", "named storm", "typhoon", "cyclone",
	"troops", "fighting", "ceasefire", "war",
}

var weatherKeywords = []*regexp.Regexp{
	regexp.MustCompile(`\bweather\b`),
	regexp.MustCompile(`\btemperature\b`),
	regexp.MustCompile(`\bprecipitation\b`),
	regexp.MustCompile(`\bsnow\b`),
	regexp.MustCompile(`\brain\b`),
	regexp.MustCompile(`\bdegree\b`),
	regexp.MustCompile(`\bcelsius\b`),
	regexp.MustCompile(`\bfahrenheit\b`),
	regexp.MustCompile(`\bhighest temperature\b`),
}

// Scanner discovers open weather markets on Gamma. Three query
// families run each cycle: the weather tag listing, per-city text
// searches, and exact slug probes for the next few days, fanned out
// through a bounded worker pool and deduplicated by market ID.
type Scanner struct {
	gamma         *GammaClient
	tagID         int
	eventLimit    int
	cityLimit     int
	maxWorkers    int
	probeCities   []string
	lookaheadDays int
	now           func() time.Time
}

func NewScanner(gamma *GammaClient, cfg config.MarketsConfig, lookaheadDays int) *Scanner {
	return &Scanner{
		gamma:         gamma,
		tagID:         cfg.WeatherTagID,
		eventLimit:    cfg.EventLimit,
		cityLimit:     cfg.CityQueryLimit,
		maxWorkers:    cfg.MaxWorkers,
		probeCities:   cfg.ProbeCities,
		lookaheadDays: lookaheadDays,
		now:           time.Now,
	}
}

// Discover runs all query families and returns the filtered, deduped
// set of open weather markets. Individual query failures are logged
// and dropped; discovery only fails as a whole when nothing succeeds.
func (s *Scanner) Discover(ctx context.Context) ([]Market, error) {
	queries := s.buildQueries()

	results := make(chan []Event, len(queries))
	sem := make(chan struct{}, s.maxWorkers)
	var wg sync.WaitGroup

	for _, q := range queries {
		wg.Add(1)
		go func(params url.Values) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			events, err := s.gamma.Events(ctx, params)
			if err != nil {
				slog.Warn("gamma query failed", "params", params.Encode(), "error", err)
				return
			}
			results <- events
		}(q)
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	seen := make(map[string]bool)
	var markets []Market
	batches := 0
	for events := range results {
		batches++
		for _, e := range events {
			markets = append(markets, s.filterEvent(e, seen)...)
		}
	}

	if batches == 0 {
		return nil, fmt.Errorf("market discovery: all %d queries failed", len(queries))
	}

	slog.Info("market discovery complete", "queries", len(queries), "markets", len(markets))
	return markets, nil
}

func (s *Scanner) buildQueries() []url.Values {
	var queries []url.Values

	tag := url.Values{}
	tag.Set("tag_id", strconv.Itoa(s.tagID))
	tag.Set("active", "true")
	tag.Set("limit", strconv.Itoa(s.eventLimit))
	queries = append(queries, tag)

	for _, city := range s.probeCities {
		q := url.Values{}
		q.Set("query", "Highest temperature in "+strings.ReplaceAll(city, "-", " "))
		q.Set("limit", strconv.Itoa(s.cityLimit))
		queries = append(queries, q)

		for _, slug := range s.probeSlugs(city) {
			sq := url.Values{}
			sq.Set("slug", slug)
			queries = append(queries, sq)
		}
	}

	return queries
}

// probeSlugs enumerates the exact event slugs Polymarket uses for a
// city's daily temperature markets over the lookahead window. Slug
// formats vary (zero-padded days, trailing years, "at" vs "in"), so
// every variant is probed; misses are cheap empty responses.
func (s *Scanner) probeSlugs(city string) []string {
	slugs := []string{city + "-daily-weather"}

	today := s.now()
	for i := 0; i <= s.lookaheadDays; i++ {
		d := today.AddDate(0, 0, i)
		month := strings.ToLower(d.Month().String())
		variants := []string{
			fmt.Sprintf("%s-%d", month, d.Day()),
			fmt.Sprintf("%s-%02d", month, d.Day()),
			fmt.Sprintf("%s-%d-%d", month, d.Day(), d.Year()),
			fmt.Sprintf("%s-%02d-%d", month, d.Day(), d.Year()),
		}
		for _, v := range variants {
			slugs = append(slugs,
				"highest-temperature-in-"+city+"-on-"+v,
				"highest-temperature-at-"+city+"-on-"+v)
		}
	}
	return slugs
}

func (s *Scanner) filterEvent(e Event, seen map[string]bool) []Market {
	title := strings.ToLower(e.Title)
	slug := strings.ToLower(e.Slug)

	for _, nk := range negativeKeywords {
		if strings.Contains(title, nk) || strings.Contains(slug, nk) {
			return nil
		}
	}

	isWeather := false
	for _, wk := range weatherKeywords {
		if wk.MatchString(title) || wk.MatchString(slug) {
			isWeather = true
			break
		}
	}
	if !isWeather {
		return nil
	}

	var out []Market
	for _, m := range e.Markets {
		if m.Closed || seen[m.ID] {
			continue
		}
		if len(m.Outcomes) == 0 || len(m.OutcomePrices) == 0 {
			continue
		}
		if m.Slug == "" {
			m.Slug = e.Slug
		}

		// Drop cross-unit duplicate listings (a °C market on a US city).
		if city, ok := parse.CityFromSlug(m.Slug); ok {
			if !parse.UnitConsistent(city, m.Question) {
				slog.Debug("skipping cross-unit listing", "market", m.ID, "question", m.Question)
				continue
			}
		}

		seen[m.ID] = true
		out = append(out, m)
	}
	return out
}
