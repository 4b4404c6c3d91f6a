package engine

import (
	"context"
	"testing"
	"time"

	"github.com/SpaceSnake26/SunCheck/internal/forecast"
	"github.com/SpaceSnake26/SunCheck/internal/geo"
)

type fakeHistory struct {
	sample  forecast.Sample
	found   bool
	gotCity geo.City
	gotDate time.Time
}

func (f *fakeHistory) Actual(ctx context.Context, city geo.City, date time.Time) (forecast.Sample, bool) {
	f.gotCity = city
	f.gotDate = date
	return f.sample, f.found
}

func TestResolve_Verdicts(t *testing.T) {
	end := time.Date(2026, time.February, 6, 23, 0, 0, 0, time.UTC)

	cases := []struct {
		name     string
		question string
		sample   forecast.Sample
		want     Resolution
	}{
		{
			name:     "range hit",
			question: "Will the highest temperature in Seattle be between 45-46°F on February 6?",
			sample:   forecast.Sample{Value: 46.0, Unit: geo.Fahrenheit},
			want:     ResolvedYes,
		},
		{
			name:     "range miss",
			question: "Will the highest temperature in Seattle be between 45-46°F on February 6?",
			sample:   forecast.Sample{Value: 47.0, Unit: geo.Fahrenheit},
			want:     ResolvedNo,
		},
		{
			name:     "above at threshold",
			question: "Will the highest temperature in Miami be 76 or higher on February 6?",
			sample:   forecast.Sample{Value: 76.0, Unit: geo.Fahrenheit},
			want:     ResolvedYes,
		},
		{
			name:     "above missed",
			question: "Will the highest temperature in Miami be 76 or higher on February 6?",
			sample:   forecast.Sample{Value: 75.9, Unit: geo.Fahrenheit},
			want:     ResolvedNo,
		},
		{
			name:     "below at threshold",
			question: "Will the highest temperature in Toronto be -3°C or lower on February 6?",
			sample:   forecast.Sample{Value: -3.0, Unit: geo.Celsius},
			want:     ResolvedYes,
		},
		{
			name:     "below missed",
			question: "Will the highest temperature in Toronto be -3°C or lower on February 6?",
			sample:   forecast.Sample{Value: -2.5, Unit: geo.Celsius},
			want:     ResolvedNo,
		},
		{
			name:     "rain threshold met",
			question: "Will it rain in London on February 6?",
			sample:   forecast.Sample{Value: 8.0, Precip: 0.6, Unit: geo.Celsius},
			want:     ResolvedYes,
		},
		{
			name:     "trace precip is a no",
			question: "Will it rain in London on February 6?",
			sample:   forecast.Sample{Value: 8.0, Precip: 0.2, Unit: geo.Celsius},
			want:     ResolvedNo,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := NewResolver(testParser(), &fakeHistory{sample: tc.sample, found: true})
			if got := r.Resolve(context.Background(), tc.question, end); got != tc.want {
				t.Errorf("Resolve(%q) = %v, want %v", tc.question, got, tc.want)
			}
		})
	}
}

func TestResolve_ConvertsArchiveUnits(t *testing.T) {
	// Archive records Celsius, the market asked in Fahrenheit. 7.5°C is
	// 45.5°F, inside the range.
	hist := &fakeHistory{sample: forecast.Sample{Value: 7.5, Unit: geo.Celsius}, found: true}
	r := NewResolver(testParser(), hist)

	got := r.Resolve(context.Background(),
		"Will the highest temperature in Seattle be between 45-46°F on February 6?",
		time.Date(2026, time.February, 6, 0, 0, 0, 0, time.UTC))
	if got != ResolvedYes {
		t.Errorf("Resolve = %v, want YES after unit conversion", got)
	}
	if hist.gotCity.Name != "Seattle" {
		t.Errorf("queried city %q", hist.gotCity.Name)
	}
}

func TestResolve_UsesEndDateWhenQuestionHasNone(t *testing.T) {
	hist := &fakeHistory{sample: forecast.Sample{Value: 50.0, Unit: geo.Fahrenheit}, found: true}
	r := NewResolver(testParser(), hist)

	end := time.Date(2026, time.February, 9, 17, 30, 0, 0, time.UTC)
	got := r.Resolve(context.Background(),
		"Will the highest temperature in Seattle be 48 or higher?", end)
	if got != ResolvedYes {
		t.Fatalf("Resolve = %v", got)
	}
	want := time.Date(2026, time.February, 9, 0, 0, 0, 0, time.UTC)
	if !hist.gotDate.Equal(want) {
		t.Errorf("queried date %v, want end date truncated to midnight %v", hist.gotDate, want)
	}
}

func TestResolve_Unresolved(t *testing.T) {
	end := time.Date(2026, time.February, 6, 0, 0, 0, 0, time.UTC)

	t.Run("unparseable question", func(t *testing.T) {
		r := NewResolver(testParser(), &fakeHistory{found: true})
		if got := r.Resolve(context.Background(), "Who wins the Super Bowl?", end); got != Unresolved {
			t.Errorf("got %v", got)
		}
	})

	t.Run("archive has no data yet", func(t *testing.T) {
		r := NewResolver(testParser(), &fakeHistory{found: false})
		got := r.Resolve(context.Background(),
			"Will the highest temperature in Seattle be between 45-46°F on February 6?", end)
		if got != Unresolved {
			t.Errorf("got %v", got)
		}
	})

	t.Run("no date anywhere", func(t *testing.T) {
		r := NewResolver(testParser(), &fakeHistory{found: true})
		got := r.Resolve(context.Background(),
			"Will the highest temperature in Seattle be 48 or higher?", time.Time{})
		if got != Unresolved {
			t.Errorf("got %v", got)
		}
	})
}
