package portfolio

import (
	"database/sql"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/SpaceSnake26/SunCheck/internal/config"
	"github.com/SpaceSnake26/SunCheck/internal/db"
	"github.com/SpaceSnake26/SunCheck/internal/engine"
)

func testBook(t *testing.T) (*Book, *sql.DB) {
	t.Helper()
	database, err := db.Open(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { database.Close() })
	if err := db.Migrate(database); err != nil {
		t.Fatal(err)
	}

	book, err := New(database, config.DefaultConfig().Trading, 1000)
	if err != nil {
		t.Fatal(err)
	}
	return book, database
}

func testSignal() engine.Signal {
	return engine.Signal{
		MarketID:   "512329",
		Question:   "Will the highest temperature in Seattle be between 45-46 on February 6?",
		City:       "Seattle",
		Outcome:    "Yes",
		TokenID:    "yes-token",
		TrueProb:   0.72,
		MarketProb: 0.15,
		Edge:       0.57,
		EventDate:  time.Now().UTC().AddDate(0, 0, 2),
	}
}

func mustCash(t *testing.T, b *Book) decimal.Decimal {
	t.Helper()
	cash, err := b.Cash()
	if err != nil {
		t.Fatal(err)
	}
	return cash
}

func TestNew_SeedsCashOnce(t *testing.T) {
	book, database := testBook(t)

	if got := mustCash(t, book); !got.Equal(decimal.NewFromInt(1000)) {
		t.Errorf("cash = %s, want 1000", got)
	}

	// A second Book over the same database must not re-seed.
	if _, err := New(database, config.DefaultConfig().Trading, 1000); err != nil {
		t.Fatal(err)
	}
	var count int
	if err := database.QueryRow(`SELECT COUNT(*) FROM cash_ledger`).Scan(&count); err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Errorf("ledger has %d rows, want 1", count)
	}
}

func TestPropose_PendingAndDuplicate(t *testing.T) {
	book, _ := testBook(t)

	tr, ok, err := book.Propose(testSignal(), time.Time{})
	if err != nil || !ok {
		t.Fatalf("Propose: ok=%v err=%v", ok, err)
	}
	if tr.Status != StatusPending {
		t.Errorf("status = %q", tr.Status)
	}
	if !tr.Stake.Equal(decimal.NewFromInt(20)) {
		t.Errorf("stake = %s, want the flat 20", tr.Stake)
	}

	// Same market+outcome again: dropped silently.
	if _, ok, err := book.Propose(testSignal(), time.Time{}); err != nil || ok {
		t.Errorf("duplicate: ok=%v err=%v, want dropped", ok, err)
	}

	pending, err := book.Pending()
	if err != nil {
		t.Fatal(err)
	}
	if len(pending) != 1 {
		t.Fatalf("pending = %d", len(pending))
	}
}

func TestPropose_TooFarOut(t *testing.T) {
	book, _ := testBook(t)

	sig := testSignal()
	sig.EventDate = time.Now().UTC().AddDate(0, 0, 10) // beyond max_settle_days
	if _, ok, err := book.Propose(sig, time.Time{}); err != nil || ok {
		t.Errorf("ok=%v err=%v, want dropped", ok, err)
	}
}

func TestApprove_DebitsStake(t *testing.T) {
	book, _ := testBook(t)

	tr, _, err := book.Propose(testSignal(), time.Time{})
	if err != nil {
		t.Fatal(err)
	}
	if err := book.Approve(tr.ID); err != nil {
		t.Fatal(err)
	}

	if got := mustCash(t, book); !got.Equal(decimal.NewFromInt(980)) {
		t.Errorf("cash = %s, want 980", got)
	}

	open, err := book.Open()
	if err != nil {
		t.Fatal(err)
	}
	if len(open) != 1 || open[0].ID != tr.ID {
		t.Fatalf("open = %+v", open)
	}

	// Double approval must fail.
	if err := book.Approve(tr.ID); err == nil {
		t.Error("approving an open trade must fail")
	}
}

func TestApprove_InsufficientCash(t *testing.T) {
	database, err := db.Open(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	defer database.Close()
	if err := db.Migrate(database); err != nil {
		t.Fatal(err)
	}

	book, err := New(database, config.DefaultConfig().Trading, 5) // less than one stake
	if err != nil {
		t.Fatal(err)
	}

	tr, _, err := book.Propose(testSignal(), time.Time{})
	if err != nil {
		t.Fatal(err)
	}
	if err := book.Approve(tr.ID); err == nil {
		t.Error("approval must fail on insufficient cash")
	}
}

func TestSettle_WinPaysSharesAtDollar(t *testing.T) {
	book, _ := testBook(t)

	tr, _, err := book.Propose(testSignal(), time.Time{})
	if err != nil {
		t.Fatal(err)
	}
	if err := book.Approve(tr.ID); err != nil {
		t.Fatal(err)
	}

	if err := book.Settle(tr.ID, engine.ResolvedYes); err != nil {
		t.Fatal(err)
	}

	// $20 at 0.15 buys 133.33 shares paying $1 each.
	want := decimal.NewFromFloat(980 + 133.33)
	if got := mustCash(t, book); !got.Equal(want) {
		t.Errorf("cash = %s, want %s", got, want)
	}

	open, _ := book.Open()
	if len(open) != 0 {
		t.Errorf("position still open after settlement")
	}
}

func TestSettle_LossAndUnresolved(t *testing.T) {
	book, _ := testBook(t)

	tr, _, err := book.Propose(testSignal(), time.Time{})
	if err != nil {
		t.Fatal(err)
	}
	if err := book.Approve(tr.ID); err != nil {
		t.Fatal(err)
	}

	// Unknown verdict leaves the position open.
	if err := book.Settle(tr.ID, engine.Unresolved); err != nil {
		t.Fatal(err)
	}
	if open, _ := book.Open(); len(open) != 1 {
		t.Fatal("unresolved settlement must not close the position")
	}

	if err := book.Settle(tr.ID, engine.ResolvedNo); err != nil {
		t.Fatal(err)
	}
	if got := mustCash(t, book); !got.Equal(decimal.NewFromInt(980)) {
		t.Errorf("cash = %s, want 980 (stake lost)", got)
	}
}

func TestReject_And_Expire(t *testing.T) {
	book, _ := testBook(t)

	tr, _, err := book.Propose(testSignal(), time.Time{})
	if err != nil {
		t.Fatal(err)
	}
	if err := book.Reject(tr.ID); err != nil {
		t.Fatal(err)
	}
	if err := book.Reject(tr.ID); err == nil {
		t.Error("rejecting twice must fail")
	}

	// A pending trade on a past date expires.
	sig := testSignal()
	sig.Outcome = "No"
	sig.EventDate = time.Now().UTC().AddDate(0, 0, -3)
	if _, ok, err := book.Propose(sig, time.Time{}); err != nil || !ok {
		t.Fatalf("ok=%v err=%v", ok, err)
	}
	if err := book.Expire(); err != nil {
		t.Fatal(err)
	}
	if pending, _ := book.Pending(); len(pending) != 0 {
		t.Errorf("pending after expire = %d", len(pending))
	}
}

func TestApproveAll(t *testing.T) {
	book, _ := testBook(t)

	for _, id := range []string{"1", "2", "3"} {
		sig := testSignal()
		sig.MarketID = id
		if _, ok, err := book.Propose(sig, time.Time{}); err != nil || !ok {
			t.Fatalf("ok=%v err=%v", ok, err)
		}
	}

	n, err := book.ApproveAll()
	if err != nil {
		t.Fatal(err)
	}
	if n != 3 {
		t.Errorf("approved %d, want 3", n)
	}
	if got := mustCash(t, book); !got.Equal(decimal.NewFromInt(940)) {
		t.Errorf("cash = %s, want 940", got)
	}
}

func TestAutoApprove(t *testing.T) {
	database, err := db.Open(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	defer database.Close()
	if err := db.Migrate(database); err != nil {
		t.Fatal(err)
	}

	trading := config.DefaultConfig().Trading
	trading.AutoApprove = true
	book, err := New(database, trading, 1000)
	if err != nil {
		t.Fatal(err)
	}

	tr, ok, err := book.Propose(testSignal(), time.Time{})
	if err != nil || !ok {
		t.Fatalf("ok=%v err=%v", ok, err)
	}
	if tr.Status != StatusOpen {
		t.Errorf("status = %q, want open", tr.Status)
	}
	if got := mustCash(t, book); !got.Equal(decimal.NewFromInt(980)) {
		t.Errorf("cash = %s", got)
	}
}

func TestStats(t *testing.T) {
	book, _ := testBook(t)

	win, _, err := book.Propose(testSignal(), time.Time{})
	if err != nil {
		t.Fatal(err)
	}
	if err := book.Approve(win.ID); err != nil {
		t.Fatal(err)
	}
	if err := book.Settle(win.ID, engine.ResolvedYes); err != nil {
		t.Fatal(err)
	}

	lossSig := testSignal()
	lossSig.MarketID = "600000"
	lossSig.City = "Miami"
	loss, _, err := book.Propose(lossSig, time.Time{})
	if err != nil {
		t.Fatal(err)
	}
	if err := book.Approve(loss.ID); err != nil {
		t.Fatal(err)
	}
	if err := book.Settle(loss.ID, engine.ResolvedNo); err != nil {
		t.Fatal(err)
	}

	r, err := book.Stats()
	if err != nil {
		t.Fatal(err)
	}
	if r.TotalTrades != 2 || r.SettledTrades != 2 || r.OpenTrades != 0 {
		t.Errorf("counts = %+v", r)
	}
	if r.WinRate != 0.5 {
		t.Errorf("win rate = %v", r.WinRate)
	}
	if !r.TotalStaked.Equal(decimal.NewFromInt(40)) {
		t.Errorf("staked = %s", r.TotalStaked)
	}
	// 113.33 won on one, 20 lost on the other.
	if want := decimal.NewFromFloat(93.33); !r.TotalPnL.Equal(want) {
		t.Errorf("pnl = %s, want %s", r.TotalPnL, want)
	}
	if len(r.CityStats) != 2 {
		t.Errorf("city stats = %+v", r.CityStats)
	}
}
