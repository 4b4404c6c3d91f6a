// Package backtest replays recorded signals against settled weather
// to measure how well the probability model is calibrated.
package backtest

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/SpaceSnake26/SunCheck/internal/engine"
)

// Runner scores past signals once their markets have settled.
type Runner struct {
	db       *sql.DB
	resolver *engine.Resolver
	stake    decimal.Decimal
}

func NewRunner(db *sql.DB, resolver *engine.Resolver, stakeUSD float64) *Runner {
	return &Runner{
		db:       db,
		resolver: resolver,
		stake:    decimal.NewFromFloat(stakeUSD),
	}
}

type replaySignal struct {
	marketID string
	question string
	outcome  string
	trueProb float64
	price    float64
	endDate  time.Time
}

// Run replays every signal recorded in the date range. Signals whose
// markets cannot be resolved yet (future dates, missing archive data,
// multi-outcome questions) are skipped, not failed.
func (r *Runner) Run(ctx context.Context, fromStr, toStr string) error {
	from, to, err := parseDateRange(fromStr, toStr)
	if err != nil {
		return err
	}

	signals, err := r.loadSignals(from, to)
	if err != nil {
		return fmt.Errorf("loading signals: %w", err)
	}
	if len(signals) == 0 {
		return fmt.Errorf("no signals recorded between %s and %s",
			from.Format("2006-01-02"), to.Format("2006-01-02"))
	}

	slog.Info("calibration replay starting",
		"from", from.Format("2006-01-02"), "to", to.Format("2006-01-02"),
		"signals", len(signals))

	var (
		scored   int
		wins     int
		brierSum float64
		pnl      = decimal.Zero
		deciles  [10]struct{ hits, total int }
	)

	for _, sig := range signals {
		verdict := r.resolver.Resolve(ctx, sig.question, sig.endDate)
		if verdict == engine.Unresolved {
			continue
		}

		won := verdict == engine.ResolvedYes
		if sig.outcome == "No" {
			won = verdict == engine.ResolvedNo
		}

		scored++
		outcome := 0.0
		if won {
			outcome = 1.0
			wins++
		}
		diff := sig.trueProb - outcome
		brierSum += diff * diff

		if won && sig.price > 0 {
			payout := r.stake.Div(decimal.NewFromFloat(sig.price)).Round(2)
			pnl = pnl.Add(payout).Sub(r.stake)
		} else {
			pnl = pnl.Sub(r.stake)
		}

		d := int(sig.trueProb * 10)
		if d > 9 {
			d = 9
		}
		deciles[d].total++
		if won {
			deciles[d].hits++
		}
	}

	if scored == 0 {
		return fmt.Errorf("none of the %d signals could be resolved yet", len(signals))
	}

	slog.Info("=== CALIBRATION RESULTS ===",
		"signals", len(signals),
		"scored", scored,
		"hit_rate", float64(wins)/float64(scored),
		"brier", brierSum/float64(scored),
		"flat_stake_pnl", pnl,
	)
	for i, d := range deciles {
		if d.total == 0 {
			continue
		}
		slog.Info("calibration decile",
			"model_prob", fmt.Sprintf("%.1f-%.1f", float64(i)/10, float64(i+1)/10),
			"signals", d.total,
			"observed", float64(d.hits)/float64(d.total),
		)
	}
	return nil
}

func (r *Runner) loadSignals(from, to time.Time) ([]replaySignal, error) {
	rows, err := r.db.Query(`
		SELECT market_id, question, outcome, true_prob, market_prob, COALESCE(event_date, '')
		FROM signals
		WHERE created_at >= ? AND created_at <= ?
		ORDER BY created_at`,
		from.Format("2006-01-02 15:04:05"),
		to.Format("2006-01-02 15:04:05"))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var signals []replaySignal
	for rows.Next() {
		var sig replaySignal
		var eventDate string
		if err := rows.Scan(&sig.marketID, &sig.question, &sig.outcome,
			&sig.trueProb, &sig.price, &eventDate); err != nil {
			return nil, err
		}
		if eventDate != "" {
			if t, err := time.Parse("2006-01-02", eventDate); err == nil {
				sig.endDate = t
			}
		}
		signals = append(signals, sig)
	}
	return signals, rows.Err()
}

func parseDateRange(fromStr, toStr string) (time.Time, time.Time, error) {
	var from, to time.Time

	if fromStr == "" {
		from = time.Now().AddDate(-1, 0, 0) // Default: 1 year ago.
	} else {
		var err error
		from, err = time.Parse("2006-01-02", fromStr)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("parsing from date: %w", err)
		}
	}

	if toStr == "" {
		to = time.Now()
	} else {
		var err error
		to, err = time.Parse("2006-01-02", toStr)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("parsing to date: %w", err)
		}
	}

	return from, to, nil
}
