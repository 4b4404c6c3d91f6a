// Package scheduler drives the periodic scan/settle loops and wires
// the pipeline stages together.
package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/SpaceSnake26/SunCheck/internal/collector"
	"github.com/SpaceSnake26/SunCheck/internal/config"
	"github.com/SpaceSnake26/SunCheck/internal/engine"
	"github.com/SpaceSnake26/SunCheck/internal/forecast"
	"github.com/SpaceSnake26/SunCheck/internal/geo"
	"github.com/SpaceSnake26/SunCheck/internal/market"
	"github.com/SpaceSnake26/SunCheck/internal/notify"
	"github.com/SpaceSnake26/SunCheck/internal/parse"
	"github.com/SpaceSnake26/SunCheck/internal/portfolio"
	"github.com/SpaceSnake26/SunCheck/internal/prob"
)

// Scheduler orchestrates the trading loop: discover markets, analyze
// them for edge, propose trades, and settle what has resolved.
type Scheduler struct {
	scanner  *market.Scanner
	parser   *parse.Parser
	agg      *forecast.Aggregator
	analyzer *engine.Analyzer
	matcher  *engine.Matcher
	resolver *engine.Resolver
	book     *portfolio.Book
	recorder *collector.Recorder
	notifier notify.Notifier
	cache    *forecast.SQLCache // nil when running on a memory cache

	cfg        config.ScheduleConfig
	maxWorkers int
	deltaMax   float64
}

// New creates a Scheduler with all dependencies.
func New(
	scanner *market.Scanner,
	parser *parse.Parser,
	agg *forecast.Aggregator,
	analyzer *engine.Analyzer,
	matcher *engine.Matcher,
	resolver *engine.Resolver,
	book *portfolio.Book,
	recorder *collector.Recorder,
	notifier notify.Notifier,
	cache *forecast.SQLCache,
	cfg config.ScheduleConfig,
	maxWorkers int,
	deltaMax float64,
) *Scheduler {
	return &Scheduler{
		scanner:    scanner,
		parser:     parser,
		agg:        agg,
		analyzer:   analyzer,
		matcher:    matcher,
		resolver:   resolver,
		book:       book,
		recorder:   recorder,
		notifier:   notifier,
		cache:      cache,
		cfg:        cfg,
		maxWorkers: maxWorkers,
		deltaMax:   deltaMax,
	}
}

// Run starts both periodic loops and blocks until the context is
// cancelled. The first cycle of each runs immediately.
func (s *Scheduler) Run(ctx context.Context) error {
	slog.Info("scheduler starting",
		"scan_interval", s.cfg.ScanInterval.Duration,
		"settle_interval", s.cfg.SettleInterval.Duration,
	)

	s.runSettleCycle(ctx)
	s.runScanCycle(ctx)

	scanTicker := time.NewTicker(s.cfg.ScanInterval.Duration)
	settleTicker := time.NewTicker(s.cfg.SettleInterval.Duration)
	defer scanTicker.Stop()
	defer settleTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("scheduler shutting down")
			return ctx.Err()
		case <-scanTicker.C:
			s.runScanCycle(ctx)
		case <-settleTicker.C:
			s.runSettleCycle(ctx)
		}
	}
}

func (s *Scheduler) runScanCycle(ctx context.Context) {
	slog.Info("starting scan cycle")

	if err := s.book.Expire(); err != nil {
		slog.Error("expiring stale proposals failed", "error", err)
	}

	markets, err := s.scanner.Discover(ctx)
	if err != nil {
		slog.Error("market discovery failed", "error", err)
		s.notifier.Failure("market discovery", err)
		return
	}

	// The bucket scout runs first: cheap integer-rounding candidates
	// jump the queue before the full sweep grinds through everything.
	handled := s.scoutBuckets(ctx, markets)

	sem := make(chan struct{}, s.maxWorkers)
	var wg sync.WaitGroup
	for _, mkt := range markets {
		if handled[mkt.ID] {
			continue
		}
		wg.Add(1)
		go func(mkt market.Market) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			s.analyzeOne(ctx, mkt)
		}(mkt)
	}
	wg.Wait()

	slog.Info("scan cycle complete", "markets", len(markets))
}

// scoutBuckets groups markets by city and event date, snaps the
// forecast consensus onto the integer bucket grid, and analyzes the
// markets whose outcomes contain a candidate bucket. Returns the
// market IDs already handled.
func (s *Scheduler) scoutBuckets(ctx context.Context, markets []market.Market) map[string]bool {
	type group struct {
		city    geo.City
		date    time.Time
		markets []market.Market
	}
	groups := make(map[string]*group)

	for _, mkt := range markets {
		city, ok := parse.CityFromSlug(mkt.Slug)
		if !ok {
			continue
		}
		c, err := s.parser.ParseQuestion(mkt.Question)
		if err != nil || c.EventDate.IsZero() || c.Condition == parse.CondRain {
			continue
		}
		key := city.Slug + "|" + c.EventDate.Format("2006-01-02")
		g, ok := groups[key]
		if !ok {
			g = &group{city: city, date: c.EventDate}
			groups[key] = g
		}
		g.markets = append(g.markets, mkt)
	}

	handled := make(map[string]bool)
	for _, g := range groups {
		samples := s.agg.Samples(ctx, g.city, g.date, g.city.Unit)
		if len(samples) == 0 {
			continue
		}
		var sum float64
		for _, smp := range samples {
			sum += geo.Convert(smp.Value, smp.Unit, g.city.Unit)
		}
		mean := sum / float64(len(samples))

		candidate := prob.SelectBucket(mean, s.deltaMax)
		if !candidate.IsCandidate {
			continue
		}
		slog.Info("bucket candidate",
			"city", g.city.Name, "date", g.date.Format("2006-01-02"),
			"forecast", mean, "bucket", candidate.TargetBucket, "delta", candidate.Delta)

		for _, mkt := range g.markets {
			if _, _, ok := s.matcher.Match(g.city, g.date, candidate.TargetBucket, mkt); !ok {
				continue
			}
			s.analyzeOne(ctx, mkt)
			handled[mkt.ID] = true
		}
	}
	return handled
}

func (s *Scheduler) analyzeOne(ctx context.Context, mkt market.Market) {
	sig, ok := s.analyzer.Analyze(ctx, mkt)
	if !ok {
		return
	}

	s.recorder.Record(sig)
	s.notifier.Opportunity(sig)

	endDate := time.Time{}
	if mkt.EndDate != "" {
		if t, err := time.Parse(time.RFC3339, mkt.EndDate); err == nil {
			endDate = t
		}
	}

	trade, proposed, err := s.book.Propose(sig, endDate)
	if err != nil {
		slog.Error("trade proposal failed", "market", sig.MarketID, "error", err)
		s.notifier.Failure("trade proposal", err)
		return
	}
	if !proposed {
		return
	}
	if trade.Status == portfolio.StatusOpen {
		s.notifier.TradeOpened(trade)
	} else {
		s.notifier.TradeProposed(trade)
	}
}

func (s *Scheduler) runSettleCycle(ctx context.Context) {
	slog.Info("starting settlement cycle")

	open, err := s.book.Open()
	if err != nil {
		slog.Error("listing open positions failed", "error", err)
		return
	}

	settled := 0
	for _, t := range open {
		verdict := s.resolver.Resolve(ctx, t.Question, t.EndDate)
		if verdict == engine.Unresolved {
			continue
		}
		if err := s.book.Settle(t.ID, verdict); err != nil {
			slog.Error("settlement failed", "trade", t.ID, "error", err)
			continue
		}
		s.notifier.TradeSettled(t, verdict)
		settled++
	}

	if s.cache != nil {
		s.cache.Prune()
	}

	if report, err := s.book.Stats(); err != nil {
		slog.Error("portfolio report failed", "error", err)
	} else {
		portfolio.LogReport(report)
	}

	slog.Info("settlement cycle complete", "open", len(open), "settled", settled)
}
