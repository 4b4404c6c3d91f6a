package forecast

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/SpaceSnake26/SunCheck/internal/geo"
)

var testDate = time.Date(2026, time.February, 6, 0, 0, 0, 0, time.UTC)

func TestOpenMeteo_Forecast(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("temperature_unit") != "fahrenheit" {
			t.Errorf("temperature_unit = %q, want fahrenheit", q.Get("temperature_unit"))
		}
		if q.Get("start_date") != "2026-02-06" || q.Get("end_date") != "2026-02-06" {
			t.Errorf("date range = %q..%q", q.Get("start_date"), q.Get("end_date"))
		}
		if q.Get("timezone") != "America/Los_Angeles" {
			t.Errorf("timezone = %q", q.Get("timezone"))
		}
		fmt.Fprint(w, `{"daily":{"temperature_2m_max":[45.8],"precipitation_sum":[0.3]}}`)
	}))
	defer srv.Close()

	om := NewOpenMeteo(srv.URL, time.Second)
	s, err := om.Forecast(context.Background(), 47.4502, -122.3088, testDate, geo.Fahrenheit, "America/Los_Angeles")
	if err != nil {
		t.Fatalf("Forecast: %v", err)
	}
	if s.Value != 45.8 || s.Precip != 0.3 || s.Unit != geo.Fahrenheit || s.Source != SourceOpenMeteo {
		t.Errorf("got %+v", s)
	}
}

func TestOpenMeteo_EmptyDaily(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"daily":{"temperature_2m_max":[]}}`)
	}))
	defer srv.Close()

	om := NewOpenMeteo(srv.URL, time.Second)
	if _, err := om.Forecast(context.Background(), 47.45, -122.31, testDate, geo.Fahrenheit, ""); err == nil {
		t.Fatal("expected error for empty daily data")
	}
}

func TestVisualCrossing_Forecast(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("unitGroup"); got != "metric" {
			t.Errorf("unitGroup = %q, want metric", got)
		}
		if got := r.URL.Query().Get("key"); got != "test-key" {
			t.Errorf("key = %q", got)
		}
		fmt.Fprint(w, `{"days":[{"tempmax":7.5,"precip":1.2}]}`)
	}))
	defer srv.Close()

	vc := NewVisualCrossing(srv.URL, "test-key", time.Second)
	s, err := vc.Forecast(context.Background(), 51.47, -0.4543, testDate, geo.Celsius, "Europe/London")
	if err != nil {
		t.Fatalf("Forecast: %v", err)
	}
	if s.Value != 7.5 || s.Precip != 1.2 {
		t.Errorf("got %+v", s)
	}
}

func TestVisualCrossing_CoversRequiresKey(t *testing.T) {
	if NewVisualCrossing("http://x", "", time.Second).Covers(47, -122) {
		t.Error("no API key should mean no coverage")
	}
	if !NewVisualCrossing("http://x", "k", time.Second).Covers(47, -122) {
		t.Error("keyed client should cover everything")
	}
}

func TestNWS_Forecast(t *testing.T) {
	mux := http.NewServeMux()
	var srv *httptest.Server
	mux.HandleFunc("/points/", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("User-Agent") == "" {
			t.Error("NWS requires a User-Agent")
		}
		fmt.Fprintf(w, `{"properties":{"forecast":"%s/gridpoints/SEW/124,67/forecast"}}`, srv.URL)
	})
	mux.HandleFunc("/gridpoints/SEW/124,67/forecast", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"properties":{"periods":[
			{"startTime":"2026-02-06T06:00:00-08:00","isDaytime":false,"temperature":38,"temperatureUnit":"F"},
			{"startTime":"2026-02-06T06:00:00-08:00","isDaytime":true,"temperature":46,"temperatureUnit":"F"},
			{"startTime":"2026-02-07T06:00:00-08:00","isDaytime":true,"temperature":44,"temperatureUnit":"F"}
		]}}`)
	})
	srv = httptest.NewServer(mux)
	defer srv.Close()

	nws := NewNWS(srv.URL, time.Second)
	s, err := nws.Forecast(context.Background(), 47.4502, -122.3088, testDate, geo.Fahrenheit, "")
	if err != nil {
		t.Fatalf("Forecast: %v", err)
	}
	if s.Value != 46 {
		t.Errorf("Value = %v, want the daytime period for the 6th", s.Value)
	}
}

func TestNWS_Coverage(t *testing.T) {
	nws := NewNWS("http://x", time.Second)
	if !nws.Covers(47.4502, -122.3088) {
		t.Error("Seattle should be covered")
	}
	if nws.Covers(51.47, -0.4543) {
		t.Error("London should not be covered")
	}
}

func TestGeocoder_Memoizes(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		fmt.Fprint(w, `{"results":[{"latitude":41.0,"longitude":28.9}]}`)
	}))
	defer srv.Close()

	g := NewGeocoder(srv.URL, time.Second)
	for i := 0; i < 3; i++ {
		lat, lon, err := g.Resolve(context.Background(), "Istanbul")
		if err != nil {
			t.Fatalf("Resolve: %v", err)
		}
		if lat != 41.0 || lon != 28.9 {
			t.Errorf("got %v,%v", lat, lon)
		}
	}
	if calls != 1 {
		t.Errorf("geocoding API called %d times, want 1", calls)
	}
}
