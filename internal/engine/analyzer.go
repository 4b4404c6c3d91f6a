package engine

import (
	"context"
	"log/slog"
	"math"
	"time"

	"github.com/SpaceSnake26/SunCheck/internal/config"
	"github.com/SpaceSnake26/SunCheck/internal/forecast"
	"github.com/SpaceSnake26/SunCheck/internal/geo"
	"github.com/SpaceSnake26/SunCheck/internal/market"
	"github.com/SpaceSnake26/SunCheck/internal/parse"
)

// Forecaster scores a target interval for a city and date. Satisfied
// by *forecast.Aggregator.
type Forecaster interface {
	Score(ctx context.Context, city geo.City, date time.Time, low, high float64, unit geo.Unit, metric forecast.Metric) forecast.Consensus
}

// PriceSource returns a live order-book price for an outcome token.
// Satisfied by *market.CLOBClient.
type PriceSource interface {
	Price(ctx context.Context, tokenID string) (float64, error)
}

// Analyzer evaluates every outcome of a market against the forecast
// consensus and applies the edge decision policy. All thresholds come
// from configuration.
type Analyzer struct {
	parser    *parse.Parser
	forecasts Forecaster
	prices    PriceSource // nil disables the live refresh step
	policy    config.TradingConfig
	now       func() time.Time
}

func NewAnalyzer(parser *parse.Parser, forecasts Forecaster, prices PriceSource, policy config.TradingConfig) *Analyzer {
	return &Analyzer{
		parser:    parser,
		forecasts: forecasts,
		prices:    prices,
		policy:    policy,
		now:       time.Now,
	}
}

// Analyze evaluates all outcomes of one market and returns the single
// best passing signal, if any. Every outcome is scored; the highest
// edge wins, never the first. A false return is the common case and
// carries no error: unparseable, stale, or fairly-priced markets are
// simply not opportunities.
func (a *Analyzer) Analyze(ctx context.Context, mkt market.Market) (Signal, bool) {
	city, ok := parse.CityFromSlug(mkt.Slug)
	if !ok {
		city, ok = geo.Find(mkt.Question)
	}
	if !ok {
		return Signal{}, false
	}

	date, ok := a.eventDate(mkt)
	if !ok {
		return Signal{}, false
	}
	today := a.today()
	if date.Before(today) {
		return Signal{}, false
	}

	unit := parse.DetectUnit(mkt.Question, city)
	metric := forecast.MaxTemperature
	if c, err := a.parser.ParseQuestion(mkt.Question); err == nil && c.Condition == parse.CondRain {
		metric = forecast.Precipitation
	}

	var best Signal
	found := false
	for i, label := range mkt.Outcomes {
		if i >= len(mkt.OutcomePrices) {
			break
		}
		sig, ok := a.evaluateOutcome(ctx, mkt, city, date, unit, metric, label, i, mkt.OutcomePrices[i])
		if !ok {
			continue
		}
		if !found || sig.Edge > best.Edge {
			best = sig
			found = true
		}
	}

	if found {
		slog.Info("opportunity",
			"market", best.MarketID,
			"city", best.City,
			"outcome", best.Outcome,
			"true_prob", best.TrueProb,
			"price", best.MarketProb,
			"edge", best.Edge,
		)
	}
	return best, found
}

func (a *Analyzer) evaluateOutcome(ctx context.Context, mkt market.Market, city geo.City, date time.Time, unit geo.Unit, metric forecast.Metric, label string, index int, gammaPrice float64) (Signal, bool) {
	// Dust quote: the book is empty or the market is done.
	if gammaPrice < a.policy.MinPrice {
		return Signal{}, false
	}

	r, err := a.parser.ParseLabel(label, mkt.Question)
	if err != nil {
		return Signal{}, false
	}

	cons := a.forecasts.Score(ctx, city, date, r.Low, r.High, unit, metric)
	if !cons.Available {
		return Signal{}, false
	}
	trueProb := cons.Probability

	price := gammaPrice
	tokenID := mkt.TokenForOutcome(label, index)
	if a.prices != nil && tokenID != "" && trueProb > gammaPrice+a.policy.PriceRefreshMargin {
		price = a.refreshPrice(ctx, tokenID, gammaPrice)
	}

	edge := trueProb - price

	if price >= a.policy.MaxPrice || edge <= a.policy.MinEdge {
		if edge > 0.02 {
			slog.Debug("near miss",
				"market", mkt.ID, "city", city.Name, "outcome", label,
				"edge", edge, "price", price)
		}
		return Signal{}, false
	}

	primary, hasPrimary := cons.RawValues[forecast.SourceOpenMeteo]
	proximity := hasPrimary && a.proximityPass(primary, r.Low, r.High)

	// Without proximity confirmation only an outsized edge justifies
	// acting on the model alone.
	if !proximity && edge <= a.policy.OverrideEdge {
		return Signal{}, false
	}
	if edge < a.policy.MinEdgeWithProximity {
		return Signal{}, false
	}

	return Signal{
		MarketID:      mkt.ID,
		Question:      mkt.Question,
		City:          city.Name,
		Outcome:       label,
		TokenID:       tokenID,
		TrueProb:      trueProb,
		MarketProb:    price,
		Edge:          edge,
		ProximityPass: proximity,
		SourceProbs:   cons.PerSource,
		ForecastValue: primary,
		EventDate:     date,
	}, true
}

// refreshPrice swaps the cached Gamma price for the live CLOB midpoint
// unless the two disagree wildly, which almost always means the token
// id maps to a different outcome than expected.
func (a *Analyzer) refreshPrice(ctx context.Context, tokenID string, gammaPrice float64) float64 {
	live, err := a.prices.Price(ctx, tokenID)
	if err != nil {
		slog.Debug("clob refresh failed", "token", tokenID, "error", err)
		return gammaPrice
	}
	if math.Abs(live-gammaPrice) > a.policy.PriceMismatchMax {
		slog.Warn("clob price mismatch, keeping gamma price",
			"token", tokenID, "gamma", gammaPrice, "clob", live)
		return gammaPrice
	}
	return live
}

func (a *Analyzer) proximityPass(value, low, high float64) bool {
	if low <= value && value <= high {
		return true
	}
	dist := math.Min(math.Abs(value-low), math.Abs(value-high))
	return dist <= a.policy.ProximityTolerance
}

func (a *Analyzer) eventDate(mkt market.Market) (time.Time, bool) {
	if c, err := a.parser.ParseQuestion(mkt.Question); err == nil && !c.EventDate.IsZero() {
		return c.EventDate, true
	}
	if mkt.EndDate != "" {
		if t, err := time.Parse(time.RFC3339, mkt.EndDate); err == nil {
			return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), true
		}
	}
	return time.Time{}, false
}

func (a *Analyzer) today() time.Time {
	now := a.now().UTC()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
}
