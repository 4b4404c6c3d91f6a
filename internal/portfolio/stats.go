package portfolio

import (
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"
)

// Report summarizes the book: counts, money flow, and win rate, plus a
// per-city breakdown.
type Report struct {
	TotalTrades   int
	OpenTrades    int
	SettledTrades int
	TotalStaked   decimal.Decimal
	TotalPnL      decimal.Decimal
	ROI           float64
	WinRate       float64
	Cash          decimal.Decimal
	CityStats     map[string]CityStats
}

// CityStats is the per-city slice of the report.
type CityStats struct {
	Trades  int
	Staked  decimal.Decimal
	PnL     decimal.Decimal
	WinRate float64
	AvgEdge float64
}

// Stats computes the full report from the positions table. Money sums
// run through decimal in Go; sqlite only stores the strings.
func (b *Book) Stats() (*Report, error) {
	r := &Report{
		TotalStaked: decimal.Zero,
		TotalPnL:    decimal.Zero,
		CityStats:   make(map[string]CityStats),
	}

	cash, err := b.Cash()
	if err != nil {
		return nil, err
	}
	r.Cash = cash

	rows, err := b.db.Query(`
		SELECT city, status, stake, COALESCE(pnl, '0'), edge
		FROM positions WHERE status IN (?, ?)`, StatusOpen, StatusSettled)
	if err != nil {
		return nil, fmt.Errorf("reading positions: %w", err)
	}
	defer rows.Close()

	type cityAcc struct {
		trades  int
		settled int
		wins    int
		staked  decimal.Decimal
		pnl     decimal.Decimal
		edgeSum float64
	}
	perCity := make(map[string]*cityAcc)
	var settled, wins int

	for rows.Next() {
		var city, status, stakeStr, pnlStr string
		var edge float64
		if err := rows.Scan(&city, &status, &stakeStr, &pnlStr, &edge); err != nil {
			return nil, err
		}
		stake, err := decimal.NewFromString(stakeStr)
		if err != nil {
			return nil, fmt.Errorf("bad stake %q: %w", stakeStr, err)
		}
		pnl, err := decimal.NewFromString(pnlStr)
		if err != nil {
			return nil, fmt.Errorf("bad pnl %q: %w", pnlStr, err)
		}

		r.TotalTrades++
		r.TotalStaked = r.TotalStaked.Add(stake)

		acc, ok := perCity[city]
		if !ok {
			acc = &cityAcc{staked: decimal.Zero, pnl: decimal.Zero}
			perCity[city] = acc
		}
		acc.trades++
		acc.staked = acc.staked.Add(stake)
		acc.edgeSum += edge

		if status == StatusOpen {
			r.OpenTrades++
			continue
		}
		r.SettledTrades++
		settled++
		r.TotalPnL = r.TotalPnL.Add(pnl)
		acc.settled++
		acc.pnl = acc.pnl.Add(pnl)
		if pnl.IsPositive() {
			wins++
			acc.wins++
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if r.TotalStaked.IsPositive() {
		roi, _ := r.TotalPnL.Div(r.TotalStaked).Float64()
		r.ROI = roi
	}
	if settled > 0 {
		r.WinRate = float64(wins) / float64(settled)
	}

	for city, acc := range perCity {
		stats := CityStats{
			Trades: acc.trades,
			Staked: acc.staked,
			PnL:    acc.pnl,
		}
		if acc.settled > 0 {
			stats.WinRate = float64(acc.wins) / float64(acc.settled)
		}
		if acc.trades > 0 {
			stats.AvgEdge = acc.edgeSum / float64(acc.trades)
		}
		r.CityStats[city] = stats
	}

	return r, nil
}

// LogReport logs the report as structured JSON.
func LogReport(r *Report) {
	slog.Info("=== PORTFOLIO REPORT ===",
		"total_trades", r.TotalTrades,
		"open", r.OpenTrades,
		"settled", r.SettledTrades,
		"staked", r.TotalStaked,
		"pnl", r.TotalPnL,
		"roi", r.ROI,
		"win_rate", r.WinRate,
		"cash", r.Cash,
	)

	for city, stats := range r.CityStats {
		slog.Info("city performance",
			"city", city,
			"trades", stats.Trades,
			"staked", stats.Staked,
			"pnl", stats.PnL,
			"win_rate", stats.WinRate,
			"avg_edge", stats.AvgEdge,
		)
	}
}
