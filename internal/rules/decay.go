package rules

import (
	"math"
	"time"

	"github.com/tenetdb/tenet/internal/domain"
)

// NormalizeUTC is the single place where timestamps are coerced to UTC before
// any arithmetic. Zone-less timestamps read back from a store are treated as
// already-UTC wall time.
func NormalizeUTC(t time.Time) time.Time {
	return t.UTC()
}

// DecayFactor returns the multiplier in (0, 1] applied to a belief's raw
// confidence for the given age. With the exponential model a belief halves
// every halfLifeDays; with no decay the factor is always 1.
func DecayFactor(model domain.DecayModel, age time.Duration, halfLifeDays float64) float64 {
	if model != domain.DecayExponential {
		return 1.0
	}
	if halfLifeDays <= 0 {
		return 0.0
	}
	if age <= 0 {
		return 1.0
	}
	ageDays := age.Hours() / 24
	return math.Pow(0.5, ageDays/halfLifeDays)
}

// Age returns now-updatedAt with both timestamps normalized to UTC.
func Age(updatedAt, now time.Time) time.Duration {
	return NormalizeUTC(now).Sub(NormalizeUTC(updatedAt))
}
