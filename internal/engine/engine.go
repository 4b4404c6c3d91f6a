// Package engine is the decision core: it maps forecasts onto market
// outcomes and turns probability-versus-price gaps into buy signals.
package engine

import (
	"time"
)

// Signal is one accepted opportunity. It is constructed once per
// evaluation pass and never mutated; downstream layers only read it.
type Signal struct {
	MarketID      string
	Question      string
	City          string
	Outcome       string // the outcome label to buy
	TokenID       string // CLOB token backing that outcome
	TrueProb      float64
	MarketProb    float64
	Edge          float64 // TrueProb - MarketProb
	ProximityPass bool
	SourceProbs   map[string]float64
	ForecastValue float64 // primary provider's raw forecast, market units
	EventDate     time.Time
}

// Resolution is the settlement verdict for a closed market.
type Resolution string

const (
	ResolvedYes Resolution = "YES"
	ResolvedNo  Resolution = "NO"
	Unresolved  Resolution = "UNKNOWN"
)
