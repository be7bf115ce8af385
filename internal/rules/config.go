package rules

import "time"

// Default tunables. Everything here is overridable via configuration so
// experimentation never requires a code change.
const (
	DefaultBaseConfidence       = 0.5
	DefaultSupportWeight        = 0.1
	DefaultContradictionWeight  = 0.1
	DefaultHalfLifeDays         = 30
	DefaultActivationThreshold  = 0.6
	DefaultDeprecationThreshold = 0.2
	DefaultColdDays             = 90
	DefaultSimilarityThreshold  = 0.93
	DefaultMinGroupSize         = 2
	DefaultDistillMinGroup      = 5
	DefaultBatchSize            = 500
	DefaultMaxCandidates        = 500
	DefaultMaxSignalRetries     = 5
	DefaultDedupMaxBeliefs      = 200
	DefaultDedupTimeBudget      = 30 * time.Second
	DefaultConfidenceStep       = 0.1
)

// Config carries every numeric threshold and weight the rule engine and
// agents use. It is built once by the config package and passed explicitly;
// no call site duplicates these as literals.
type Config struct {
	BaseConfidence      float64
	SupportWeight       float64
	ContradictionWeight float64
	HalfLifeDays        float64

	ActivationThreshold  float64
	DeprecationThreshold float64
	ColdDays             int

	SimilarityThreshold float64
	MinGroupSize        int
	DistillMinGroup     int

	BatchSize        int
	MaxCandidates    int
	MaxSignalRetries int
	DedupMaxBeliefs  int
	DedupTimeBudget  time.Duration

	ConfidenceStep float64
}

// DefaultConfig returns a Config populated with the default constants.
func DefaultConfig() Config {
	return Config{
		BaseConfidence:       DefaultBaseConfidence,
		SupportWeight:        DefaultSupportWeight,
		ContradictionWeight:  DefaultContradictionWeight,
		HalfLifeDays:         DefaultHalfLifeDays,
		ActivationThreshold:  DefaultActivationThreshold,
		DeprecationThreshold: DefaultDeprecationThreshold,
		ColdDays:             DefaultColdDays,
		SimilarityThreshold:  DefaultSimilarityThreshold,
		MinGroupSize:         DefaultMinGroupSize,
		DistillMinGroup:      DefaultDistillMinGroup,
		BatchSize:            DefaultBatchSize,
		MaxCandidates:        DefaultMaxCandidates,
		MaxSignalRetries:     DefaultMaxSignalRetries,
		DedupMaxBeliefs:      DefaultDedupMaxBeliefs,
		DedupTimeBudget:      DefaultDedupTimeBudget,
		ConfidenceStep:       DefaultConfidenceStep,
	}
}
