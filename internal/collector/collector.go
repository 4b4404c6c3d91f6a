// Package collector persists every emitted edge signal, building the
// dataset later calibration runs replay.
package collector

import (
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/SpaceSnake26/SunCheck/internal/engine"
)

// Recorder appends signals to the database.
type Recorder struct {
	db *sql.DB
}

func NewRecorder(db *sql.DB) *Recorder {
	return &Recorder{db: db}
}

// Record stores one signal. Failures are logged, not returned: a full
// disk must not stop the trading loop.
func (r *Recorder) Record(sig engine.Signal) {
	eventDate := ""
	if !sig.EventDate.IsZero() {
		eventDate = sig.EventDate.UTC().Format("2006-01-02")
	}

	_, err := r.db.Exec(`
		INSERT INTO signals
			(market_id, question, city, outcome, true_prob, market_prob, edge, proximity_pass, forecast_value, event_date)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sig.MarketID, sig.Question, sig.City, sig.Outcome,
		sig.TrueProb, sig.MarketProb, sig.Edge,
		boolToInt(sig.ProximityPass), sig.ForecastValue, eventDate)
	if err != nil {
		slog.Error("signal record failed", "market", sig.MarketID, "error", err)
	}
}

// Recent returns the signals recorded in the last window, newest first.
func (r *Recorder) Recent(window time.Duration) ([]engine.Signal, error) {
	cutoff := time.Now().UTC().Add(-window).Format("2006-01-02 15:04:05")
	rows, err := r.db.Query(`
		SELECT market_id, question, city, outcome, true_prob, market_prob, edge, proximity_pass, COALESCE(forecast_value, 0), COALESCE(event_date, '')
		FROM signals WHERE created_at >= ? ORDER BY created_at DESC`, cutoff)
	if err != nil {
		return nil, fmt.Errorf("reading signals: %w", err)
	}
	defer rows.Close()

	var out []engine.Signal
	for rows.Next() {
		var sig engine.Signal
		var proximity int
		var eventDate string
		if err := rows.Scan(&sig.MarketID, &sig.Question, &sig.City, &sig.Outcome,
			&sig.TrueProb, &sig.MarketProb, &sig.Edge, &proximity,
			&sig.ForecastValue, &eventDate); err != nil {
			return nil, err
		}
		sig.ProximityPass = proximity == 1
		if eventDate != "" {
			if t, err := time.Parse("2006-01-02", eventDate); err == nil {
				sig.EventDate = t
			}
		}
		out = append(out, sig)
	}
	return out, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
