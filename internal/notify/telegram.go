// Package notify pushes trade activity to a Telegram chat. Everything
// here is fire-and-forget: a dead bot never blocks the trading loop.
package notify

import (
	"fmt"
	"log/slog"
	"strconv"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/SpaceSnake26/SunCheck/internal/config"
	"github.com/SpaceSnake26/SunCheck/internal/engine"
	"github.com/SpaceSnake26/SunCheck/internal/portfolio"
)

// Notifier receives trading events. Implementations must never block
// the caller on delivery problems.
type Notifier interface {
	Opportunity(sig engine.Signal)
	TradeProposed(t portfolio.Trade)
	TradeOpened(t portfolio.Trade)
	TradeSettled(t portfolio.Trade, verdict engine.Resolution)
	Failure(stage string, err error)
}

// Noop drops every event. Used when Telegram is disabled.
type Noop struct{}

func (Noop) Opportunity(engine.Signal) {}

func (Noop) TradeProposed(portfolio.Trade) {}

func (Noop) TradeOpened(portfolio.Trade) {}

func (Noop) TradeSettled(portfolio.Trade, engine.Resolution) {}

func (Noop) Failure(string, error) {}

// Telegram delivers events as chat messages with a few retries.
type Telegram struct {
	bot     sender
	chatID  int64
	retries int
	backoff time.Duration
}

type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// New builds a Notifier from configuration. Disabled config yields the
// no-op implementation.
func New(cfg config.TelegramConfig) (Notifier, error) {
	if !cfg.Enabled {
		return Noop{}, nil
	}

	chatID, err := strconv.ParseInt(cfg.ChatID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("parsing telegram chat id: %w", err)
	}

	bot, err := tgbotapi.NewBotAPI(cfg.BotToken)
	if err != nil {
		return nil, fmt.Errorf("connecting telegram bot: %w", err)
	}

	slog.Info("telegram notifier connected", "bot", bot.Self.UserName)
	return &Telegram{
		bot:     bot,
		chatID:  chatID,
		retries: 3,
		backoff: time.Second,
	}, nil
}

func (t *Telegram) Opportunity(sig engine.Signal) {
	t.send(fmt.Sprintf(
		"🌤 Edge found\n%s\nOutcome: %s\nModel: %.0f%%  Market: %.0f%%  Edge: +%.0f%%",
		sig.Question, sig.Outcome,
		sig.TrueProb*100, sig.MarketProb*100, sig.Edge*100))
}

func (t *Telegram) TradeProposed(tr portfolio.Trade) {
	t.send(fmt.Sprintf(
		"📋 Trade proposed (%s)\n%s\nOutcome: %s @ %.2f\nStake: $%s  Edge: +%.0f%%",
		shortID(tr.ID), tr.Question, tr.Outcome, tr.Price, tr.Stake, tr.Edge*100))
}

func (t *Telegram) TradeOpened(tr portfolio.Trade) {
	t.send(fmt.Sprintf(
		"✅ Trade opened (%s)\n%s %s @ %.2f for $%s",
		shortID(tr.ID), tr.City, tr.Outcome, tr.Price, tr.Stake))
}

func (t *Telegram) TradeSettled(tr portfolio.Trade, verdict engine.Resolution) {
	icon := "🔴"
	if verdict == engine.ResolvedYes {
		icon = "🟢"
	}
	t.send(fmt.Sprintf(
		"%s Trade settled %s (%s)\n%s %s @ %.2f",
		icon, verdict, shortID(tr.ID), tr.City, tr.Outcome, tr.Price))
}

func (t *Telegram) Failure(stage string, err error) {
	t.send(fmt.Sprintf("⚠️ %s failed: %v", stage, err))
}

func (t *Telegram) send(text string) {
	msg := tgbotapi.NewMessage(t.chatID, text)

	var err error
	for attempt := 1; attempt <= t.retries; attempt++ {
		if _, err = t.bot.Send(msg); err == nil {
			return
		}
		time.Sleep(t.backoff * time.Duration(attempt))
	}
	slog.Warn("telegram delivery failed", "error", err)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
