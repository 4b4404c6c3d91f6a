package prob

import "math"

// BucketCandidate is the result of snapping a forecast value onto the
// integer bucket grid that temperature markets bet on.
type BucketCandidate struct {
	// TargetBucket is the integer nearest the forecast (ties to floor).
	TargetBucket int
	// Delta is the absolute distance to TargetBucket, always in [0, 0.5].
	Delta float64
	// IsCandidate is true when the forecast sits close enough to the
	// bucket for a rounding-based bet, but not exactly on it.
	IsCandidate bool
}

// SelectBucket snaps value to its nearest integer bucket and decides
// whether the proximity is actionable. A delta of exactly zero is not a
// candidate: an exact-integer forecast carries no rounding signal.
func SelectBucket(value, deltaMax float64) BucketCandidate {
	lo := math.Floor(value)
	hi := math.Ceil(value)

	target := lo
	if hi-value < value-lo {
		target = hi
	}

	// Round away float noise such as 0.30000000000000004.
	delta := math.Round(math.Abs(value-target)*1e4) / 1e4

	return BucketCandidate{
		TargetBucket: int(target),
		Delta:        delta,
		IsCandidate:  delta > 0 && delta <= deltaMax,
	}
}
