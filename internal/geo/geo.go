// Package geo holds the fixed city gazetteer the bot trades against.
//
// Coordinates point at the airport/station used for market settlement,
// not the city centre, so forecast lookups and settlement lookups agree.
package geo

import (
	"sort"
	"strings"
)

// Unit is a temperature unit.
type Unit string

const (
	Celsius    Unit = "C"
	Fahrenheit Unit = "F"
)

// City is one gazetteer entry.
type City struct {
	Name     string // display name, e.g. "New York"
	Slug     string // slug form, e.g. "new-york"
	Country  string // ISO 3166-1 alpha-2
	Unit     Unit   // unit Polymarket quotes this city in
	Lat, Lon float64
	Timezone string // IANA zone for the settlement station
	Station  string // ICAO station code
}

var cities = []City{
	{Name: "London", Slug: "london", Country: "GB", Unit: Celsius, Lat: 51.4700, Lon: -0.4543, Timezone: "Europe/London", Station: "EGLL"},
	{Name: "Paris", Slug: "paris", Country: "FR", Unit: Celsius, Lat: 49.0097, Lon: 2.5479, Timezone: "Europe/Paris", Station: "LFPG"},
	{Name: "Berlin", Slug: "berlin", Country: "DE", Unit: Celsius, Lat: 52.3667, Lon: 13.5033, Timezone: "Europe/Berlin", Station: "EDDB"},
	{Name: "Rome", Slug: "rome", Country: "IT", Unit: Celsius, Lat: 41.8003, Lon: 12.2389, Timezone: "Europe/Rome", Station: "LIRF"},
	{Name: "Madrid", Slug: "madrid", Country: "ES", Unit: Celsius, Lat: 40.4839, Lon: -3.5680, Timezone: "Europe/Madrid", Station: "LEMD"},
	{Name: "Tokyo", Slug: "tokyo", Country: "JP", Unit: Celsius, Lat: 35.5523, Lon: 139.7797, Timezone: "Asia/Tokyo", Station: "RJTT"},
	{Name: "Seoul", Slug: "seoul", Country: "KR", Unit: Celsius, Lat: 37.5665, Lon: 126.9780, Timezone: "Asia/Seoul", Station: "RKSS"},
	{Name: "Ankara", Slug: "ankara", Country: "TR", Unit: Celsius, Lat: 39.9334, Lon: 32.8597, Timezone: "Europe/Istanbul", Station: "LTAC"},
	{Name: "Toronto", Slug: "toronto", Country: "CA", Unit: Celsius, Lat: 43.6777, Lon: -79.6248, Timezone: "America/Toronto", Station: "CYYZ"},
	{Name: "Buenos Aires", Slug: "buenos-aires", Country: "AR", Unit: Celsius, Lat: -34.6037, Lon: -58.3816, Timezone: "America/Argentina/Buenos_Aires", Station: "SABE"},

	{Name: "New York", Slug: "new-york", Country: "US", Unit: Fahrenheit, Lat: 40.7831, Lon: -73.9712, Timezone: "America/New_York", Station: "KNYC"},
	{Name: "Miami", Slug: "miami", Country: "US", Unit: Fahrenheit, Lat: 25.7932, Lon: -80.2906, Timezone: "America/New_York", Station: "KMIA"},
	{Name: "Atlanta", Slug: "atlanta", Country: "US", Unit: Fahrenheit, Lat: 33.6407, Lon: -84.4277, Timezone: "America/New_York", Station: "KATL"},
	{Name: "Boston", Slug: "boston", Country: "US", Unit: Fahrenheit, Lat: 42.3601, Lon: -71.0589, Timezone: "America/New_York", Station: "KBOS"},
	{Name: "Chicago", Slug: "chicago", Country: "US", Unit: Fahrenheit, Lat: 41.9742, Lon: -87.9073, Timezone: "America/Chicago", Station: "KORD"},
	{Name: "Dallas", Slug: "dallas", Country: "US", Unit: Fahrenheit, Lat: 32.8998, Lon: -97.0403, Timezone: "America/Chicago", Station: "KDFW"},
	{Name: "Houston", Slug: "houston", Country: "US", Unit: Fahrenheit, Lat: 29.9902, Lon: -95.3368, Timezone: "America/Chicago", Station: "KIAH"},
	{Name: "Austin", Slug: "austin", Country: "US", Unit: Fahrenheit, Lat: 30.1975, Lon: -97.6664, Timezone: "America/Chicago", Station: "KAUS"},
	{Name: "Denver", Slug: "denver", Country: "US", Unit: Fahrenheit, Lat: 39.8561, Lon: -104.6737, Timezone: "America/Denver", Station: "KDEN"},
	{Name: "Phoenix", Slug: "phoenix", Country: "US", Unit: Fahrenheit, Lat: 33.4342, Lon: -112.0116, Timezone: "America/Phoenix", Station: "KPHX"},
	{Name: "Las Vegas", Slug: "las-vegas", Country: "US", Unit: Fahrenheit, Lat: 36.0840, Lon: -115.1537, Timezone: "America/Los_Angeles", Station: "KLAS"},
	{Name: "Seattle", Slug: "seattle", Country: "US", Unit: Fahrenheit, Lat: 47.4502, Lon: -122.3088, Timezone: "America/Los_Angeles", Station: "KSEA"},
	{Name: "Los Angeles", Slug: "los-angeles", Country: "US", Unit: Fahrenheit, Lat: 33.9416, Lon: -118.4085, Timezone: "America/Los_Angeles", Station: "KLAX"},
	{Name: "San Francisco", Slug: "san-francisco", Country: "US", Unit: Fahrenheit, Lat: 37.6213, Lon: -122.3790, Timezone: "America/Los_Angeles", Station: "KSFO"},
}

// byLength is the gazetteer sorted longest name first, so "new york"
// wins over "york" and "los angeles" over any shorter collision.
var byLength []City

var bySlug map[string]City

func init() {
	byLength = make([]City, len(cities))
	copy(byLength, cities)
	sort.SliceStable(byLength, func(i, j int) bool {
		return len(byLength[i].Name) > len(byLength[j].Name)
	})

	bySlug = make(map[string]City, len(cities))
	for _, c := range cities {
		bySlug[c.Slug] = c
	}
}

// Find locates the first gazetteer city whose name appears in text.
// Matching is case-insensitive and longest-city-name-first.
func Find(text string) (City, bool) {
	lower := strings.ToLower(text)
	for _, c := range byLength {
		if strings.Contains(lower, strings.ToLower(c.Name)) {
			return c, true
		}
	}
	return City{}, false
}

// BySlug looks a city up by its slug form ("new-york") or by a
// space-separated equivalent ("new york").
func BySlug(slug string) (City, bool) {
	s := strings.ToLower(strings.TrimSpace(slug))
	s = strings.ReplaceAll(s, " ", "-")
	c, ok := bySlug[s]
	return c, ok
}

// All returns every gazetteer city.
func All() []City {
	out := make([]City, len(cities))
	copy(out, cities)
	return out
}

// UnitFor returns the unit a market in the named city is quoted in.
// Unknown cities default to Fahrenheit, matching Polymarket's bias
// toward US markets.
func UnitFor(cityName string) Unit {
	if c, ok := Find(cityName); ok {
		return c.Unit
	}
	if c, ok := BySlug(cityName); ok {
		return c.Unit
	}
	return Fahrenheit
}

// Continental US bounding box. Alaska and Hawaii are out: the NWS
// point API covers them, but no Polymarket weather city does.
const (
	usLatMin = 24.5
	usLatMax = 49.5
	usLonMin = -125.0
	usLonMax = -66.9
)

// InContinentalUS reports whether the coordinates fall inside the
// continental US bounding box, the precondition for NWS lookups.
func InContinentalUS(lat, lon float64) bool {
	return lat >= usLatMin && lat <= usLatMax && lon >= usLonMin && lon <= usLonMax
}

// CToF converts Celsius to Fahrenheit.
func CToF(c float64) float64 { return c*9.0/5.0 + 32.0 }

// FToC converts Fahrenheit to Celsius.
func FToC(f float64) float64 { return (f - 32.0) * 5.0 / 9.0 }

// Convert converts value from one unit to another. Same-unit
// conversion is the identity.
func Convert(value float64, from, to Unit) float64 {
	if from == to {
		return value
	}
	if from == Celsius && to == Fahrenheit {
		return CToF(value)
	}
	return FToC(value)
}
