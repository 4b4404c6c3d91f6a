// Package portfolio keeps the paper-trading book: proposed trades,
// open positions, and the cash ledger, all persisted in sqlite so the
// record survives restarts. Money amounts go through decimal values,
// never floats.
package portfolio

import (
	"database/sql"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/SpaceSnake26/SunCheck/internal/config"
	"github.com/SpaceSnake26/SunCheck/internal/engine"
)

const (
	StatusPending  = "pending"
	StatusOpen     = "open"
	StatusRejected = "rejected"
	StatusSettled  = "settled"
	StatusExpired  = "expired"
)

// Trade is one row of the book, pending or otherwise.
type Trade struct {
	ID         string
	MarketID   string
	Question   string
	City       string
	Outcome    string
	TokenID    string
	Stake      decimal.Decimal
	Price      float64
	TrueProb   float64
	Edge       float64
	EventDate  time.Time
	EndDate    time.Time
	Status     string
	Resolution string
	Payout     decimal.Decimal
	PnL        decimal.Decimal
}

// Book manages positions and cash. All writes go straight to the
// database; a single mutex serializes the read-then-write cash paths,
// since proposals arrive from concurrent analysis workers.
type Book struct {
	mu            sync.Mutex
	db            *sql.DB
	stake         decimal.Decimal
	maxSettleDays float64
	autoApprove   bool
	now           func() time.Time
}

// New opens the book and seeds the cash ledger on first run.
func New(database *sql.DB, trading config.TradingConfig, initialCash float64) (*Book, error) {
	b := &Book{
		db:            database,
		stake:         decimal.NewFromFloat(trading.StakeUSD),
		maxSettleDays: trading.MaxSettleDays,
		autoApprove:   trading.AutoApprove,
		now:           time.Now,
	}

	var count int
	if err := database.QueryRow(`SELECT COUNT(*) FROM cash_ledger`).Scan(&count); err != nil {
		return nil, fmt.Errorf("reading cash ledger: %w", err)
	}
	if count == 0 {
		seed := decimal.NewFromFloat(initialCash)
		if _, err := database.Exec(`
			INSERT INTO cash_ledger (position_id, delta, balance, reason)
			VALUES (NULL, ?, ?, 'seed')`,
			seed.String(), seed.String()); err != nil {
			return nil, fmt.Errorf("seeding cash ledger: %w", err)
		}
		slog.Info("cash ledger seeded", "cash", seed)
	}
	return b, nil
}

// Cash returns the current balance from the last ledger entry.
func (b *Book) Cash() (decimal.Decimal, error) {
	var s string
	err := b.db.QueryRow(`SELECT balance FROM cash_ledger ORDER BY id DESC LIMIT 1`).Scan(&s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("reading balance: %w", err)
	}
	return decimal.NewFromString(s)
}

// Propose turns a signal into a pending trade. Duplicates of a live
// position and settlements too far out are dropped, not errored: the
// scanner re-finds the same opportunity every cycle.
func (b *Book) Propose(sig engine.Signal, endDate time.Time) (Trade, bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.maxSettleDays > 0 && !sig.EventDate.IsZero() {
		days := sig.EventDate.Sub(b.now().UTC()).Hours() / 24
		if days > b.maxSettleDays {
			return Trade{}, false, nil
		}
	}

	var count int
	err := b.db.QueryRow(`
		SELECT COUNT(*) FROM positions
		WHERE market_id = ? AND outcome = ? AND status IN (?, ?)`,
		sig.MarketID, sig.Outcome, StatusPending, StatusOpen).Scan(&count)
	if err != nil {
		return Trade{}, false, fmt.Errorf("checking duplicates: %w", err)
	}
	if count > 0 {
		return Trade{}, false, nil
	}

	t := Trade{
		ID:        uuid.NewString(),
		MarketID:  sig.MarketID,
		Question:  sig.Question,
		City:      sig.City,
		Outcome:   sig.Outcome,
		TokenID:   sig.TokenID,
		Stake:     b.stake,
		Price:     sig.MarketProb,
		TrueProb:  sig.TrueProb,
		Edge:      sig.Edge,
		EventDate: sig.EventDate,
		EndDate:   endDate,
		Status:    StatusPending,
	}

	_, err = b.db.Exec(`
		INSERT INTO positions
			(id, market_id, question, city, outcome, token_id, stake, price, true_prob, edge, event_date, end_date, status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.MarketID, t.Question, t.City, t.Outcome, t.TokenID,
		t.Stake.String(), t.Price, t.TrueProb, t.Edge,
		dateString(t.EventDate), dateString(t.EndDate), t.Status)
	if err != nil {
		return Trade{}, false, fmt.Errorf("inserting proposal: %w", err)
	}

	slog.Info("trade proposed",
		"id", t.ID, "market", t.MarketID, "outcome", t.Outcome,
		"stake", t.Stake, "price", t.Price, "edge", t.Edge)

	if b.autoApprove {
		if err := b.approve(t.ID); err != nil {
			return t, true, err
		}
		t.Status = StatusOpen
	}
	return t, true, nil
}

// Approve moves a pending trade to open and debits the stake. Refuses
// when cash would go negative.
func (b *Book) Approve(id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.approve(id)
}

func (b *Book) approve(id string) error {
	t, err := b.byID(id)
	if err != nil {
		return err
	}
	if t.Status != StatusPending {
		return fmt.Errorf("trade %s is %s, not pending", id, t.Status)
	}

	cash, err := b.Cash()
	if err != nil {
		return err
	}
	if cash.LessThan(t.Stake) {
		return fmt.Errorf("insufficient cash: %s < %s", cash, t.Stake)
	}

	tx, err := b.db.Begin()
	if err != nil {
		return fmt.Errorf("starting approval: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`
		UPDATE positions SET status = ?, opened_at = datetime('now') WHERE id = ?`,
		StatusOpen, id); err != nil {
		return fmt.Errorf("opening position: %w", err)
	}
	if _, err := tx.Exec(`
		INSERT INTO cash_ledger (position_id, delta, balance, reason)
		VALUES (?, ?, ?, 'stake')`,
		id, t.Stake.Neg().String(), cash.Sub(t.Stake).String()); err != nil {
		return fmt.Errorf("debiting stake: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing approval: %w", err)
	}

	slog.Info("trade approved", "id", id, "stake", t.Stake, "cash", cash.Sub(t.Stake))
	return nil
}

// ApproveAll approves every pending trade, stopping at the first
// failure (usually the cash running out).
func (b *Book) ApproveAll() (int, error) {
	pending, err := b.Pending()
	if err != nil {
		return 0, err
	}
	for i, t := range pending {
		if err := b.Approve(t.ID); err != nil {
			return i, fmt.Errorf("approving %s: %w", t.ID, err)
		}
	}
	return len(pending), nil
}

// Reject discards a pending trade.
func (b *Book) Reject(id string) error {
	res, err := b.db.Exec(`
		UPDATE positions SET status = ? WHERE id = ? AND status = ?`,
		StatusRejected, id, StatusPending)
	if err != nil {
		return fmt.Errorf("rejecting trade: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("no pending trade %s", id)
	}
	return nil
}

// Settle closes an open position with a verdict. A winning Yes-side
// position pays out stake/price (each share bought at price pays $1);
// a loss pays nothing. Unknown verdicts leave the position open for
// the next settlement cycle.
func (b *Book) Settle(id string, verdict engine.Resolution) error {
	if verdict == engine.Unresolved {
		return nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	t, err := b.byID(id)
	if err != nil {
		return err
	}
	if t.Status != StatusOpen {
		return fmt.Errorf("trade %s is %s, not open", id, t.Status)
	}

	payout := decimal.Zero
	if verdict == engine.ResolvedYes && t.Price > 0 {
		payout = t.Stake.Div(decimal.NewFromFloat(t.Price)).Round(2)
	}
	pnl := payout.Sub(t.Stake)

	cash, err := b.Cash()
	if err != nil {
		return err
	}

	tx, err := b.db.Begin()
	if err != nil {
		return fmt.Errorf("starting settlement: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`
		UPDATE positions
		SET status = ?, resolution = ?, payout = ?, pnl = ?, settled_at = datetime('now')
		WHERE id = ?`,
		StatusSettled, string(verdict), payout.String(), pnl.String(), id); err != nil {
		return fmt.Errorf("settling position: %w", err)
	}
	if payout.IsPositive() {
		if _, err := tx.Exec(`
			INSERT INTO cash_ledger (position_id, delta, balance, reason)
			VALUES (?, ?, ?, 'payout')`,
			id, payout.String(), cash.Add(payout).String()); err != nil {
			return fmt.Errorf("crediting payout: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing settlement: %w", err)
	}

	slog.Info("trade settled",
		"id", id, "market", t.MarketID, "verdict", verdict,
		"payout", payout, "pnl", pnl)
	return nil
}

// Expire rejects pending trades whose event date has passed.
func (b *Book) Expire() error {
	cutoff := b.now().UTC().Format("2006-01-02")
	res, err := b.db.Exec(`
		UPDATE positions SET status = ?
		WHERE status = ? AND event_date != '' AND event_date < ?`,
		StatusExpired, StatusPending, cutoff)
	if err != nil {
		return fmt.Errorf("expiring proposals: %w", err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		slog.Info("stale proposals expired", "count", n)
	}
	return nil
}

// Pending lists trades awaiting approval.
func (b *Book) Pending() ([]Trade, error) {
	return b.byStatus(StatusPending)
}

// Open lists live positions awaiting settlement.
func (b *Book) Open() ([]Trade, error) {
	return b.byStatus(StatusOpen)
}

func (b *Book) byStatus(status string) ([]Trade, error) {
	rows, err := b.db.Query(`
		SELECT id, market_id, question, city, outcome, COALESCE(token_id, ''),
		       stake, price, true_prob, edge,
		       COALESCE(event_date, ''), COALESCE(end_date, ''), status,
		       COALESCE(resolution, ''), COALESCE(payout, '0'), COALESCE(pnl, '0')
		FROM positions WHERE status = ? ORDER BY created_at`, status)
	if err != nil {
		return nil, fmt.Errorf("listing %s trades: %w", status, err)
	}
	defer rows.Close()

	var out []Trade
	for rows.Next() {
		t, err := scanTrade(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (b *Book) byID(id string) (Trade, error) {
	row := b.db.QueryRow(`
		SELECT id, market_id, question, city, outcome, COALESCE(token_id, ''),
		       stake, price, true_prob, edge,
		       COALESCE(event_date, ''), COALESCE(end_date, ''), status,
		       COALESCE(resolution, ''), COALESCE(payout, '0'), COALESCE(pnl, '0')
		FROM positions WHERE id = ?`, id)
	t, err := scanTrade(row)
	if err == sql.ErrNoRows {
		return Trade{}, fmt.Errorf("no trade %s", id)
	}
	return t, err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTrade(row rowScanner) (Trade, error) {
	var t Trade
	var stake, eventDate, endDate, payout, pnl string
	err := row.Scan(&t.ID, &t.MarketID, &t.Question, &t.City, &t.Outcome, &t.TokenID,
		&stake, &t.Price, &t.TrueProb, &t.Edge,
		&eventDate, &endDate, &t.Status, &t.Resolution, &payout, &pnl)
	if err != nil {
		return Trade{}, err
	}
	if t.Stake, err = decimal.NewFromString(stake); err != nil {
		return Trade{}, fmt.Errorf("bad stake %q: %w", stake, err)
	}
	if t.Payout, err = decimal.NewFromString(payout); err != nil {
		return Trade{}, fmt.Errorf("bad payout %q: %w", payout, err)
	}
	if t.PnL, err = decimal.NewFromString(pnl); err != nil {
		return Trade{}, fmt.Errorf("bad pnl %q: %w", pnl, err)
	}
	t.EventDate = parseDate(eventDate)
	t.EndDate = parseDate(endDate)
	return t, nil
}

func dateString(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format("2006-01-02")
}

func parseDate(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}
	}
	return t
}
