package rules

import (
	"time"

	"github.com/tenetdb/tenet/internal/domain"
)

// Clamp bounds a confidence value to [0, 1].
func Clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// Confidence computes a belief's confidence from its evidence counts and age.
//
//	raw = base + support_weight*supports - contradiction_weight*counters
//	confidence = clamp(raw * decay_factor, 0, 1)
//
// The function is pure and total: any input combination yields a value in
// [0, 1].
func Confidence(cfg Config, supports, counters int, model domain.DecayModel, updatedAt, now time.Time) float64 {
	raw := cfg.BaseConfidence + cfg.SupportWeight*float64(supports) - cfg.ContradictionWeight*float64(counters)
	decay := DecayFactor(model, Age(updatedAt, now), cfg.HalfLifeDays)
	return Clamp(raw * decay)
}

// SeedConfidence is the initial confidence given to a synthesized belief with
// the given evidence group size.
func SeedConfidence(cfg Config, members int) float64 {
	return Clamp(cfg.BaseConfidence + cfg.SupportWeight*float64(members))
}
