package engine

import (
	"strings"

	"github.com/SpaceSnake26/SunCheck/internal/geo"
	"github.com/SpaceSnake26/SunCheck/internal/market"
	"github.com/SpaceSnake26/SunCheck/internal/parse"
	"time"
)

// Matcher maps a target integer bucket onto the concrete outcome a
// market offers for it. It exists to keep the bucket-scout path cheap:
// the caller has already pruned to candidate buckets before any
// outcome parsing happens.
type Matcher struct {
	parser *parse.Parser
}

func NewMatcher(parser *parse.Parser) *Matcher {
	return &Matcher{parser: parser}
}

// Match finds the first outcome of mkt whose parsed range contains the
// bucket. The market must mention both the city and the event date
// ("February 6") before outcome-level matching is attempted, which
// keeps cross-city and cross-date false positives out. A miss is the
// normal case, not an error.
func (m *Matcher) Match(city geo.City, date time.Time, bucket int, mkt market.Market) (label string, index int, ok bool) {
	if !m.covers(city, date, mkt) {
		return "", 0, false
	}

	for i, out := range mkt.Outcomes {
		r, err := m.parser.ParseLabel(out, mkt.Question)
		if err != nil {
			continue
		}
		if r.Low <= float64(bucket) && float64(bucket) <= r.High {
			return out, i, true
		}
	}
	return "", 0, false
}

func (m *Matcher) covers(city geo.City, date time.Time, mkt market.Market) bool {
	question := strings.ToLower(mkt.Question)
	slug := strings.ToLower(mkt.Slug)
	cityName := strings.ToLower(city.Name)

	if !strings.Contains(question, cityName) && !strings.Contains(slug, city.Slug) {
		return false
	}

	monthDay := strings.ToLower(parse.MonthDay(date))
	monthDaySlug := strings.ReplaceAll(monthDay, " ", "-")
	return strings.Contains(question, monthDay) || strings.Contains(slug, monthDaySlug)
}
