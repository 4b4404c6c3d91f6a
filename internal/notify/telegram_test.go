package notify

import (
	"errors"
	"strings"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/shopspring/decimal"

	"github.com/SpaceSnake26/SunCheck/internal/config"
	"github.com/SpaceSnake26/SunCheck/internal/engine"
	"github.com/SpaceSnake26/SunCheck/internal/portfolio"
)

type fakeSender struct {
	failures int
	sent     []string
}

func (f *fakeSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	if f.failures > 0 {
		f.failures--
		return tgbotapi.Message{}, errors.New("telegram down")
	}
	msg, ok := c.(tgbotapi.MessageConfig)
	if !ok {
		return tgbotapi.Message{}, errors.New("unexpected chattable")
	}
	f.sent = append(f.sent, msg.Text)
	return tgbotapi.Message{}, nil
}

func testTelegram(failures int) (*Telegram, *fakeSender) {
	f := &fakeSender{failures: failures}
	return &Telegram{bot: f, chatID: 42, retries: 3, backoff: time.Millisecond}, f
}

func TestNew_DisabledIsNoop(t *testing.T) {
	n, err := New(config.TelegramConfig{Enabled: false})
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := n.(Noop); !ok {
		t.Fatalf("got %T, want Noop", n)
	}
	// Must be safe to call.
	n.Opportunity(engine.Signal{})
	n.Failure("scan", errors.New("x"))
}

func TestNew_BadChatID(t *testing.T) {
	_, err := New(config.TelegramConfig{Enabled: true, BotToken: "t", ChatID: "not-a-number"})
	if err == nil {
		t.Fatal("expected an error")
	}
}

func TestOpportunityMessage(t *testing.T) {
	tg, f := testTelegram(0)
	tg.Opportunity(engine.Signal{
		Question:   "Will the highest temperature in Seattle be between 45-46 on February 6?",
		Outcome:    "Yes",
		TrueProb:   0.72,
		MarketProb: 0.15,
		Edge:       0.57,
	})

	if len(f.sent) != 1 {
		t.Fatalf("sent %d messages", len(f.sent))
	}
	for _, want := range []string{"Seattle", "Yes", "72%", "15%", "+57%"} {
		if !strings.Contains(f.sent[0], want) {
			t.Errorf("message missing %q:\n%s", want, f.sent[0])
		}
	}
}

func TestSettledMessage(t *testing.T) {
	tg, f := testTelegram(0)
	tr := portfolio.Trade{
		ID:      "0b944f9d-2c6a-4a5e-9f34-000000000000",
		City:    "Seattle",
		Outcome: "Yes",
		Price:   0.15,
		Stake:   decimal.NewFromInt(20),
	}
	tg.TradeSettled(tr, engine.ResolvedYes)

	if len(f.sent) != 1 {
		t.Fatalf("sent %d messages", len(f.sent))
	}
	if !strings.Contains(f.sent[0], "YES") || !strings.Contains(f.sent[0], "0b944f9d") {
		t.Errorf("message = %s", f.sent[0])
	}
}

func TestSend_RetriesThenGivesUp(t *testing.T) {
	tg, f := testTelegram(2) // two failures, third attempt lands
	tg.Failure("scan", errors.New("boom"))
	if len(f.sent) != 1 {
		t.Errorf("sent %d messages, want delivery on third attempt", len(f.sent))
	}

	tg, f = testTelegram(5) // more failures than retries
	tg.Failure("scan", errors.New("boom"))
	if len(f.sent) != 0 {
		t.Errorf("sent %d messages, want none", len(f.sent))
	}
}
