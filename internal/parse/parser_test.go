package parse

import (
	"errors"
	"testing"
	"time"

	"github.com/SpaceSnake26/SunCheck/internal/geo"
)

func testParser() *Parser {
	p := New(150, -50, 0.5, 10)
	p.now = func() time.Time {
		return time.Date(2026, time.February, 5, 12, 0, 0, 0, time.UTC)
	}
	return p
}

func TestParseQuestion_Shapes(t *testing.T) {
	p := testParser()

	cases := []struct {
		name      string
		question  string
		city      string
		unit      geo.Unit
		cond      Condition
		low, high float64
	}{
		{
			name:     "range",
			question: "Will the highest temperature in Seattle be between 45-46°F on February 6?",
			city:     "Seattle", unit: geo.Fahrenheit, cond: CondRange, low: 45, high: 46,
		},
		{
			name:     "or higher",
			question: "Will the highest temperature in Miami be 76 or higher on February 6?",
			city:     "Miami", unit: geo.Fahrenheit, cond: CondAbove, low: 76, high: 150,
		},
		{
			name:     "or above",
			question: "Will the highest temperature in London be 12°C or above on February 6?",
			city:     "London", unit: geo.Celsius, cond: CondAbove, low: 12, high: 150,
		},
		{
			name:     "or lower",
			question: "Will the highest temperature in Toronto be -3 or lower on February 6?",
			city:     "Toronto", unit: geo.Celsius, cond: CondBelow, low: -50, high: -3,
		},
		{
			name:     "bare value",
			question: "Will the highest temperature in Seattle be 45°F on February 6?",
			city:     "Seattle", unit: geo.Fahrenheit, cond: CondRange, low: 44.5, high: 45.5,
		},
		{
			name:     "rain keyword",
			question: "Will it rain in London on February 6?",
			city:     "London", unit: geo.Celsius, cond: CondRain, low: 0.5, high: 10,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c, err := p.ParseQuestion(tc.question)
			if err != nil {
				t.Fatalf("ParseQuestion(%q): %v", tc.question, err)
			}
			if c.City.Name != tc.city {
				t.Errorf("city = %q, want %q", c.City.Name, tc.city)
			}
			if c.Unit != tc.unit {
				t.Errorf("unit = %q, want %q", c.Unit, tc.unit)
			}
			if c.Condition != tc.cond {
				t.Errorf("condition = %q, want %q", c.Condition, tc.cond)
			}
			if c.Low != tc.low || c.High != tc.high {
				t.Errorf("bounds = [%v, %v], want [%v, %v]", c.Low, c.High, tc.low, tc.high)
			}
		})
	}
}

func TestParseQuestion_Unrecognized(t *testing.T) {
	p := testParser()
	for _, q := range []string{
		"Will the Knicks win on February 6?",
		"Will the highest temperature in Atlantis be 45 on February 6?", // city not in gazetteer
		"",
	} {
		if _, err := p.ParseQuestion(q); !errors.Is(err, ErrNoParse) {
			t.Errorf("ParseQuestion(%q): err = %v, want ErrNoParse", q, err)
		}
	}
}

func TestParseQuestion_ExplicitUnitOverridesRegion(t *testing.T) {
	p := testParser()
	c, err := p.ParseQuestion("Will the highest temperature in Seattle be between 7-8°C on February 6?")
	if err != nil {
		t.Fatal(err)
	}
	if c.Unit != geo.Celsius {
		t.Errorf("unit = %q, want explicit Celsius over the city default", c.Unit)
	}
}

func TestParseLabel(t *testing.T) {
	p := testParser()
	question := "Will the highest temperature in Miami be 76 or higher on February 6?"

	cases := []struct {
		label     string
		low, high float64
	}{
		{"70-71", 70, 71},
		{"70–71", 70, 71}, // en-dash
		{"76 or higher", 76, 150},
		{"80 or above", 80, 150},
		{"below 50", -50, 50},
		{"50 or lower", -50, 50},
		{"75", 74.5, 75.5},
		{"Yes", 76, 150}, // inherits the question's constraint
	}
	for _, tc := range cases {
		r, err := p.ParseLabel(tc.label, question)
		if err != nil {
			t.Errorf("ParseLabel(%q): %v", tc.label, err)
			continue
		}
		if r.Low != tc.low || r.High != tc.high {
			t.Errorf("ParseLabel(%q) = [%v, %v], want [%v, %v]", tc.label, r.Low, r.High, tc.low, tc.high)
		}
	}
}

func TestParseLabel_YesOnRangeQuestion(t *testing.T) {
	p := testParser()
	r, err := p.ParseLabel("Yes", "Will the highest temperature in Seattle be between 45-46°F on February 6?")
	if err != nil {
		t.Fatal(err)
	}
	if r.Low != 45 || r.High != 46 {
		t.Errorf("Yes label = [%v, %v], want the question range [45, 46]", r.Low, r.High)
	}
}

func TestParseLabel_Unrecognized(t *testing.T) {
	p := testParser()
	if _, err := p.ParseLabel("Maybe", "not a weather question"); !errors.Is(err, ErrNoParse) {
		t.Errorf("err = %v, want ErrNoParse", err)
	}
	// Yes on an unparsable question has nothing to inherit.
	if _, err := p.ParseLabel("Yes", "Will the Knicks win?"); !errors.Is(err, ErrNoParse) {
		t.Errorf("err = %v, want ErrNoParse", err)
	}
}

func TestExtractDate(t *testing.T) {
	p := testParser() // clock fixed at 2026-02-05

	c, err := p.ParseQuestion("Will the highest temperature in Seattle be between 45-46 on February 6?")
	if err != nil {
		t.Fatal(err)
	}
	if want := time.Date(2026, time.February, 6, 0, 0, 0, 0, time.UTC); !c.EventDate.Equal(want) {
		t.Errorf("EventDate = %v, want %v", c.EventDate, want)
	}

	// Within the 5-day grace window the date stays in the current year.
	c, _ = p.ParseQuestion("Will the highest temperature in Seattle be between 45-46 on February 2?")
	if c.EventDate.Year() != 2026 {
		t.Errorf("recent past date rolled to %d, want 2026", c.EventDate.Year())
	}

	// Beyond the window it rolls forward a year.
	c, _ = p.ParseQuestion("Will the highest temperature in Seattle be between 45-46 on January 10?")
	if c.EventDate.Year() != 2027 {
		t.Errorf("stale date year = %d, want rollover to 2027", c.EventDate.Year())
	}

	c, _ = p.ParseQuestion("Will the highest temperature in Seattle be between 45-46 today?")
	if !c.EventDate.IsZero() {
		t.Errorf("question without a date should have zero EventDate, got %v", c.EventDate)
	}
}

func TestCityFromSlug(t *testing.T) {
	cases := []struct {
		slug string
		city string
		ok   bool
	}{
		{"highest-temperature-in-london-on-february-6", "London", true},
		{"highest-temperature-in-new-york-city-on-february-6", "New York", true},
		{"highest-temperature-at-seattle-on-february-6", "Seattle", true},
		{"will-it-rain-in-miami-on-february-6", "Miami", true},
		{"highest-temperature-in-gotham-on-february-6", "", false},
		{"nba-finals-game-6", "", false},
	}
	for _, tc := range cases {
		c, ok := CityFromSlug(tc.slug)
		if ok != tc.ok {
			t.Errorf("CityFromSlug(%q): ok = %v, want %v", tc.slug, ok, tc.ok)
			continue
		}
		if ok && c.Name != tc.city {
			t.Errorf("CityFromSlug(%q) = %q, want %q", tc.slug, c.Name, tc.city)
		}
	}
}

func TestUnitConsistent(t *testing.T) {
	seattle, _ := geo.Find("Seattle")
	london, _ := geo.Find("London")

	if UnitConsistent(seattle, "highest temperature in Seattle be between 7-8°C") {
		t.Error("Celsius-marked market on a US city is a duplicate listing")
	}
	if UnitConsistent(london, "highest temperature in London be between 45-46°F") {
		t.Error("Fahrenheit-marked market on a Celsius city is a duplicate listing")
	}
	if !UnitConsistent(seattle, "highest temperature in Seattle be between 45-46°F") {
		t.Error("regional unit marker must pass")
	}
	if !UnitConsistent(london, "highest temperature in London be between 7-8") {
		t.Error("no marker at all must pass")
	}
}

func TestMonthDay(t *testing.T) {
	if got := MonthDay(time.Date(2026, time.February, 6, 0, 0, 0, 0, time.UTC)); got != "February 6" {
		t.Errorf("MonthDay = %q, want %q", got, "February 6")
	}
}
