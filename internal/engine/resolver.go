package engine

import (
	"context"
	"time"

	"github.com/SpaceSnake26/SunCheck/internal/forecast"
	"github.com/SpaceSnake26/SunCheck/internal/geo"
	"github.com/SpaceSnake26/SunCheck/internal/parse"
)

// HistoricalSource reads the recorded daily observation for a past
// date. Satisfied by *forecast.Aggregator.
type HistoricalSource interface {
	Actual(ctx context.Context, city geo.City, date time.Time) (forecast.Sample, bool)
}

// Resolver is the settlement oracle: it re-parses a settled market's
// question and checks the constraint against the recorded weather.
type Resolver struct {
	parser  *parse.Parser
	history HistoricalSource
}

func NewResolver(parser *parse.Parser, history HistoricalSource) *Resolver {
	return &Resolver{parser: parser, history: history}
}

// Resolve settles a question against recorded data. endDate backs up
// questions that name no date of their own. Unknown means the question
// did not parse or no archive data exists yet; the caller retries on a
// later cycle.
func (r *Resolver) Resolve(ctx context.Context, question string, endDate time.Time) Resolution {
	c, err := r.parser.ParseQuestion(question)
	if err != nil {
		return Unresolved
	}

	date := c.EventDate
	if date.IsZero() {
		if endDate.IsZero() {
			return Unresolved
		}
		date = time.Date(endDate.Year(), endDate.Month(), endDate.Day(), 0, 0, 0, 0, time.UTC)
	}

	actual, ok := r.history.Actual(ctx, c.City, date)
	if !ok {
		return Unresolved
	}

	if c.Condition == parse.CondRain {
		if actual.Precip >= c.Low {
			return ResolvedYes
		}
		return ResolvedNo
	}

	maxTemp := geo.Convert(actual.Value, actual.Unit, c.Unit)

	var yes bool
	switch c.Condition {
	case parse.CondAbove:
		yes = maxTemp >= c.Low
	case parse.CondBelow:
		yes = maxTemp <= c.High
	case parse.CondRange:
		yes = c.Low <= maxTemp && maxTemp <= c.High
	default:
		return Unresolved
	}

	if yes {
		return ResolvedYes
	}
	return ResolvedNo
}
