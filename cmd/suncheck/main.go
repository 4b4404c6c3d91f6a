package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/SpaceSnake26/SunCheck/internal/backtest"
	"github.com/SpaceSnake26/SunCheck/internal/collector"
	"github.com/SpaceSnake26/SunCheck/internal/config"
	"github.com/SpaceSnake26/SunCheck/internal/db"
	"github.com/SpaceSnake26/SunCheck/internal/engine"
	"github.com/SpaceSnake26/SunCheck/internal/forecast"
	"github.com/SpaceSnake26/SunCheck/internal/market"
	"github.com/SpaceSnake26/SunCheck/internal/notify"
	"github.com/SpaceSnake26/SunCheck/internal/parse"
	"github.com/SpaceSnake26/SunCheck/internal/portfolio"
	"github.com/SpaceSnake26/SunCheck/internal/prob"
	"github.com/SpaceSnake26/SunCheck/internal/scheduler"
)

func main() {
	report := flag.Bool("report", false, "Print the portfolio report and exit")
	pending := flag.Bool("pending", false, "List pending trade proposals and exit")
	approve := flag.String("approve", "", "Approve a pending trade by id and exit")
	approveAll := flag.Bool("approve-all", false, "Approve every pending trade and exit")
	reject := flag.String("reject", "", "Reject a pending trade by id and exit")
	calibrate := flag.Bool("calibrate", false, "Replay recorded signals against settled weather and exit")
	calFrom := flag.String("from", "", "Calibration start date (YYYY-MM-DD)")
	calTo := flag.String("to", "", "Calibration end date (YYYY-MM-DD)")
	flag.Parse()

	configPath := "config.toml"
	if p := os.Getenv("SUNCHECK_CONFIG_PATH"); p != "" {
		configPath = p
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel(cfg.General.LogLevel),
	})))

	slog.Info("suncheck starting")

	database, err := db.Open(cfg.General.DBPath)
	if err != nil {
		slog.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer database.Close()

	if err := db.Migrate(database); err != nil {
		slog.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}
	slog.Info("database initialized", "path", cfg.General.DBPath)

	book, err := portfolio.New(database, cfg.Trading, cfg.Portfolio.InitialCash)
	if err != nil {
		slog.Error("failed to open portfolio", "error", err)
		os.Exit(1)
	}

	// One-shot book commands.
	switch {
	case *report:
		r, err := book.Stats()
		if err != nil {
			slog.Error("report failed", "error", err)
			os.Exit(1)
		}
		portfolio.LogReport(r)
		return
	case *pending:
		trades, err := book.Pending()
		if err != nil {
			slog.Error("listing pending trades failed", "error", err)
			os.Exit(1)
		}
		for _, t := range trades {
			fmt.Printf("%s  %-10s %-20s @ %.2f  $%s  edge +%.0f%%\n",
				t.ID, t.City, t.Outcome, t.Price, t.Stake, t.Edge*100)
		}
		return
	case *approve != "":
		if err := book.Approve(*approve); err != nil {
			slog.Error("approval failed", "error", err)
			os.Exit(1)
		}
		slog.Info("trade approved", "id", *approve)
		return
	case *approveAll:
		n, err := book.ApproveAll()
		if err != nil {
			slog.Error("approval failed", "approved", n, "error", err)
			os.Exit(1)
		}
		slog.Info("pending trades approved", "count", n)
		return
	case *reject != "":
		if err := book.Reject(*reject); err != nil {
			slog.Error("rejection failed", "error", err)
			os.Exit(1)
		}
		slog.Info("trade rejected", "id", *reject)
		return
	}

	// Weather side.
	w := cfg.Weather
	providers := []forecast.Provider{
		forecast.NewOpenMeteo(w.OpenMeteoURL, w.RequestTimeout.Duration),
		forecast.NewVisualCrossing(w.VisualCrossingURL, w.VisualCrossingKey, w.RequestTimeout.Duration),
		forecast.NewNWS(w.NWSBaseURL, w.RequestTimeout.Duration),
	}
	sqlCache := forecast.NewSQLCache(database)
	agg := forecast.NewAggregator(forecast.AggregatorConfig{
		Providers: providers,
		Archive:   forecast.NewOpenMeteoArchive(w.OpenMeteoArchiveURL, w.RequestTimeout.Duration),
		Cache:     sqlCache,
		Geocoder:  forecast.NewGeocoder(w.GeocodingURL, w.RequestTimeout.Duration),
		Model: prob.Model{
			SigmaBase:   w.SigmaBase,
			SigmaPerDay: w.SigmaPerDay,
			Floor:       w.FloorProbability,
		},
		Retries:       w.MaxRetries,
		Backoff:       w.RetryBackoff.Duration,
		ForecastTTL:   w.ForecastTTL.Duration,
		HistoricalTTL: w.HistoricalTTL.Duration,
	})

	// Market side.
	m := cfg.Markets
	gamma := market.NewGammaClient(m.GammaURL, m.RequestTimeout.Duration, m.MaxRetries, m.RetryBackoff.Duration)
	clob := market.NewCLOBClient(m.CLOBURL, m.RequestTimeout.Duration)
	scanner := market.NewScanner(gamma, m, w.LookaheadDays)

	// Decision pipeline.
	parser := parse.New(w.TempUpperBound, w.TempLowerBound, w.RainThreshold, w.RainRangeHigh)
	analyzer := engine.NewAnalyzer(parser, agg, clob, cfg.Trading)
	matcher := engine.NewMatcher(parser)
	resolver := engine.NewResolver(parser, agg)

	if *calibrate {
		runner := backtest.NewRunner(database, resolver, cfg.Trading.StakeUSD)
		if err := runner.Run(context.Background(), *calFrom, *calTo); err != nil {
			slog.Error("calibration failed", "error", err)
			os.Exit(1)
		}
		return
	}

	recorder := collector.NewRecorder(database)
	notifier, err := notify.New(cfg.Telegram)
	if err != nil {
		slog.Error("failed to start notifier", "error", err)
		os.Exit(1)
	}

	sched := scheduler.New(
		scanner, parser, agg, analyzer, matcher, resolver,
		book, recorder, notifier, sqlCache,
		cfg.Schedule, m.MaxWorkers, w.BucketDeltaMax,
	)

	// Graceful shutdown.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		slog.Info("received signal, shutting down", "signal", sig)
		cancel()
	}()

	if err := sched.Run(ctx); err != nil && err != context.Canceled {
		slog.Error("scheduler error", "error", err)
		os.Exit(1)
	}

	slog.Info("suncheck stopped")
}

func logLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
