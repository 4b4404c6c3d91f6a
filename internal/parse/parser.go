// Package parse turns free-text weather market questions, slugs, and
// outcome labels into structured betting constraints.
//
// The grammar is one ordered table of (pattern, constructor) rules
// evaluated in priority order, with a single shared gazetteer and a
// single date-normalization routine, so question parsing and outcome
// label parsing can never drift apart.
package parse

import (
	"errors"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/SpaceSnake26/SunCheck/internal/geo"
)

// ErrNoParse marks text that matches no known market shape. Callers
// skip the market; this is never fatal.
var ErrNoParse = errors.New("unrecognized market text")

// Condition classifies the shape of a constraint.
type Condition string

const (
	CondAbove Condition = "above"
	CondBelow Condition = "below"
	CondRange Condition = "range"
	CondRain  Condition = "rain"
)

// Constraint is a structured betting constraint extracted from a
// market question. Low/High are in the unit the market itself uses.
// For CondAbove and CondBelow only the relevant bound is meaningful;
// the other carries the configured sentinel.
type Constraint struct {
	City      geo.City
	Unit      geo.Unit
	Condition Condition
	Low       float64
	High      float64
	EventDate time.Time // zero when the question names no date
}

// Range is a parsed outcome label interval. Open ends carry the
// configured sentinel bounds.
type Range struct {
	Low  float64
	High float64
}

// Parser extracts constraints and label ranges. The zero value is not
// usable; construct with New.
type Parser struct {
	upper float64 // sentinel for "X or higher"
	lower float64 // sentinel for "below X"

	rainThreshold float64
	rainRangeHigh float64

	now func() time.Time

	rules []rule
}

type rule struct {
	re    *regexp.Regexp
	build func(p *Parser, m []string, text string) (Constraint, bool)
}

var (
	reRange = regexp.MustCompile(`(?i)highest temperature (?:in|at) (.+?)\s+be\s+between\s+(-?\d+)\s*-\s*(-?\d+)`)
	reAbove = regexp.MustCompile(`(?i)highest temperature (?:in|at) (.+?)\s+be\s+(-?\d+).+?(?:higher|above|greater)`)
	reBelow = regexp.MustCompile(`(?i)highest temperature (?:in|at) (.+?)\s+be\s+(-?\d+).+?(?:below|lower|less)`)
	reExact = regexp.MustCompile(`(?i)highest temperature (?:in|at) (.+?)\s+be\s+(-?\d+)\s*(?:°?[cf])?(?:\s+on|\s*\?|\s*$)`)
	reRain  = regexp.MustCompile(`(?i)\b(?:rain|precipitation)\b`)

	reMonthDay  = regexp.MustCompile(`on ([A-Z][a-z]+) (\d{1,2})`)
	reLabelPair = regexp.MustCompile(`(-?\d+)\s*-\s*(-?\d+)`)
	reNumber    = regexp.MustCompile(`(-?\d+)`)
)

// New builds a Parser. upper/lower are the sentinel bounds substituted
// for open-ended comparisons; rainThreshold/rainRangeHigh define the
// implied interval of rain markets.
func New(upper, lower, rainThreshold, rainRangeHigh float64) *Parser {
	p := &Parser{
		upper:         upper,
		lower:         lower,
		rainThreshold: rainThreshold,
		rainRangeHigh: rainRangeHigh,
		now:           time.Now,
	}
	p.rules = []rule{
		{reRange, (*Parser).buildRange},
		{reAbove, (*Parser).buildAbove},
		{reBelow, (*Parser).buildBelow},
		{reExact, (*Parser).buildExact},
	}
	return p
}

func (p *Parser) buildRange(m []string, text string) (Constraint, bool) {
	low, high := atof(m[2]), atof(m[3])
	if low > high {
		low, high = high, low
	}
	return p.withCity(m[1], text, Constraint{Condition: CondRange, Low: low, High: high})
}

func (p *Parser) buildAbove(m []string, text string) (Constraint, bool) {
	return p.withCity(m[1], text, Constraint{Condition: CondAbove, Low: atof(m[2]), High: p.upper})
}

func (p *Parser) buildBelow(m []string, text string) (Constraint, bool) {
	return p.withCity(m[1], text, Constraint{Condition: CondBelow, Low: p.lower, High: atof(m[2])})
}

func (p *Parser) buildExact(m []string, text string) (Constraint, bool) {
	// A bare value is an integer-bucket bet: treat it as the half-open
	// degree band around that integer.
	v := atof(m[2])
	return p.withCity(m[1], text, Constraint{Condition: CondRange, Low: v - 0.5, High: v + 0.5})
}

func (p *Parser) withCity(cityText, fullText string, c Constraint) (Constraint, bool) {
	city, ok := geo.Find(cityText)
	if !ok {
		// Question grammars sometimes swallow trailing words into the
		// city group; fall back to scanning the whole sentence.
		city, ok = geo.Find(fullText)
	}
	if !ok {
		return Constraint{}, false
	}
	c.City = city
	c.Unit = detectUnit(fullText, city)
	return c, true
}

// ParseQuestion extracts a Constraint from a full market question.
// Unmatched text returns ErrNoParse.
func (p *Parser) ParseQuestion(question string) (Constraint, error) {
	text := normalize(question)

	for _, r := range p.rules {
		m := r.re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		c, ok := r.build(p, m, text)
		if !ok {
			continue
		}
		c.EventDate = p.extractDate(question)
		return c, nil
	}

	// Rain markets carry no temperature grammar; keyword plus a
	// gazetteer city is enough.
	if reRain.MatchString(text) {
		if city, ok := geo.Find(text); ok {
			return Constraint{
				City:      city,
				Unit:      city.Unit,
				Condition: CondRain,
				Low:       p.rainThreshold,
				High:      p.rainRangeHigh,
				EventDate: p.extractDate(question),
			}, nil
		}
	}

	return Constraint{}, ErrNoParse
}

// ParseLabel parses a short outcome label ("70-71", "76 or higher",
// "below 50", "75", "Yes") into its numeric range. Binary Yes labels
// inherit their range from the question's constraint.
func (p *Parser) ParseLabel(label, question string) (Range, error) {
	text := normalize(label)

	if m := reLabelPair.FindStringSubmatch(text); m != nil {
		low, high := atof(m[1]), atof(m[2])
		if low > high {
			low, high = high, low
		}
		return Range{low, high}, nil
	}

	if containsAny(text, "higher", "above", "greater") {
		if m := reNumber.FindStringSubmatch(text); m != nil {
			return Range{atof(m[1]), p.upper}, nil
		}
	}
	if containsAny(text, "below", "lower", "less") {
		if m := reNumber.FindStringSubmatch(text); m != nil {
			return Range{p.lower, atof(m[1])}, nil
		}
	}

	if m := reNumber.FindStringSubmatch(text); m != nil {
		v := atof(m[1])
		return Range{v - 0.5, v + 0.5}, nil
	}

	if text == "yes" || text == "yes!" {
		c, err := p.ParseQuestion(question)
		if err != nil {
			return Range{}, err
		}
		return Range{c.Low, c.High}, nil
	}

	return Range{}, ErrNoParse
}

// CityFromSlug extracts the gazetteer city from a market slug such as
// "highest-temperature-in-london-on-february-6".
func CityFromSlug(slug string) (geo.City, bool) {
	s := strings.ToLower(slug)

	for _, marker := range []string{"-in-", "-at-"} {
		idx := strings.Index(s, marker)
		if idx < 0 {
			continue
		}
		rest := s[idx+len(marker):]
		if cut := strings.Index(rest, "-on-"); cut >= 0 {
			rest = rest[:cut]
		}
		// Longest prefix first: "new-york-city..." must not stop at "new".
		parts := strings.Split(rest, "-")
		for n := len(parts); n >= 1; n-- {
			if c, ok := geo.BySlug(strings.Join(parts[:n], "-")); ok {
				return c, true
			}
		}
	}
	return geo.City{}, false
}

// extractDate parses an "on <Month> <Day>" phrase against the current
// year. A result more than 5 days in the past rolls forward one year,
// which handles December questions scanned in January.
func (p *Parser) extractDate(question string) time.Time {
	m := reMonthDay.FindStringSubmatch(question)
	if m == nil {
		return time.Time{}
	}

	month, ok := months[strings.ToLower(m[1])]
	if !ok {
		return time.Time{}
	}
	day, err := strconv.Atoi(m[2])
	if err != nil || day < 1 || day > 31 {
		return time.Time{}
	}

	now := p.now().UTC()
	d := time.Date(now.Year(), month, day, 0, 0, 0, 0, time.UTC)
	if now.Sub(d) > 5*24*time.Hour {
		d = d.AddDate(1, 0, 0)
	}
	return d
}

// MonthDay renders a date the way Polymarket questions spell it:
// "February 10", no leading zero.
func MonthDay(t time.Time) string {
	return t.Month().String() + " " + strconv.Itoa(t.Day())
}

var months = map[string]time.Month{
	"january": time.January, "february": time.February, "march": time.March,
	"april": time.April, "may": time.May, "june": time.June,
	"july": time.July, "august": time.August, "september": time.September,
	"october": time.October, "november": time.November, "december": time.December,
}

func detectUnit(text string, city geo.City) geo.Unit {
	switch {
	case strings.Contains(text, "°c") || strings.Contains(text, "celsius"):
		return geo.Celsius
	case strings.Contains(text, "°f") || strings.Contains(text, "fahrenheit"):
		return geo.Fahrenheit
	}
	return city.Unit
}

// DetectUnit resolves the unit a market text quotes: an explicit
// marker wins, otherwise the city's region decides.
func DetectUnit(text string, city geo.City) geo.Unit {
	return detectUnit(normalize(text), city)
}

// UnitConsistent reports whether a market's unit markers agree with
// the city's region. A Celsius-marked market on a US city (or the
// reverse) is a duplicate listing of the same question in the other
// unit, settled separately; the bot trades only the regional one.
func UnitConsistent(city geo.City, text string) bool {
	lower := normalize(text)
	explicitC := strings.Contains(lower, "°c") || strings.Contains(lower, "celsius")
	explicitF := strings.Contains(lower, "°f") || strings.Contains(lower, "fahrenheit")

	switch {
	case explicitC && !explicitF:
		return city.Unit == geo.Celsius
	case explicitF && !explicitC:
		return city.Unit == geo.Fahrenheit
	}
	return true
}

func normalize(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	// Gamma titles mix en-dashes into ranges.
	return strings.ReplaceAll(s, "–", "-")
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

func atof(s string) float64 {
	v, _ := strconv.ParseFloat(s, 64)
	return v
}
