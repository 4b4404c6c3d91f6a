// Package prob converts forecast values into outcome probabilities.
//
// The true outcome is modelled as normally distributed around the
// forecast, with uncertainty growing linearly in forecast lead time.
package prob

import "math"

// Model scores target intervals against a forecast value.
type Model struct {
	// SigmaBase is the uncertainty of a same-day forecast.
	SigmaBase float64
	// SigmaPerDay is added to sigma per day of lead time.
	SigmaPerDay float64
	// Floor is the fail-soft probability returned for degenerate inputs.
	Floor float64
}

// Sigma returns the modelled standard deviation for the given lead time.
// Negative lead (settlement lookups on past dates) counts as zero.
func (m Model) Sigma(leadDays float64) float64 {
	if leadDays < 0 {
		leadDays = 0
	}
	return m.SigmaBase + m.SigmaPerDay*leadDays
}

// Interval returns P(low <= X <= high) for X ~ N(value, sigma(leadDays)).
// Degenerate inputs fail soft to the floor probability; the result is
// always in [0,1].
func (m Model) Interval(value, low, high, leadDays float64) float64 {
	sigma := m.Sigma(leadDays)
	if !finite(value) || !finite(low) || !finite(high) || !finite(sigma) || sigma <= 0 {
		return m.Floor
	}
	if high < low {
		low, high = high, low
	}

	p := normalCDF(high, value, sigma) - normalCDF(low, value, sigma)
	if math.IsNaN(p) {
		return m.Floor
	}
	if p < 0 {
		return 0
	}
	if p > 1 {
		return 1
	}
	return p
}

// normalCDF is the cumulative distribution function of N(mu, sigma).
func normalCDF(x, mu, sigma float64) float64 {
	return 0.5 * (1 + math.Erf((x-mu)/(sigma*math.Sqrt2)))
}

func finite(x float64) bool {
	return !math.IsNaN(x) && !math.IsInf(x, 0)
}

// Consensus averages independently-computed per-source probabilities.
// Sources are scored separately then averaged, rather than scoring the
// mean forecast, so disagreement between providers is not masked.
// An empty map has no consensus.
func Consensus(perSource map[string]float64) (float64, bool) {
	if len(perSource) == 0 {
		return 0, false
	}
	var sum float64
	for _, p := range perSource {
		sum += p
	}
	return sum / float64(len(perSource)), true
}
