package domain

import (
	"time"

	"github.com/google/uuid"
)

type BeliefStatus string

const (
	BeliefProposed   BeliefStatus = "proposed"
	BeliefActive     BeliefStatus = "active"
	BeliefChallenged BeliefStatus = "challenged"
	BeliefDeprecated BeliefStatus = "deprecated"
	BeliefArchived   BeliefStatus = "archived"
)

func ValidBeliefStatus(s string) bool {
	switch BeliefStatus(s) {
	case BeliefProposed, BeliefActive, BeliefChallenged, BeliefDeprecated, BeliefArchived:
		return true
	}
	return false
}

type DecayModel string

const (
	DecayExponential DecayModel = "exponential"
	DecayNone        DecayModel = "none"
)

func ValidDecayModel(m string) bool {
	switch DecayModel(m) {
	case DecayExponential, DecayNone:
		return true
	}
	return false
}

// Agent tags recorded on beliefs so their origin stays queryable.
const (
	AgentSynthesis  = "synthesis"
	AgentChallenger = "challenger"
	AgentCurator    = "curator"
	AgentUser       = "user"
)

// Belief is a derived claim with epistemic state. Confidence is always kept in
// [0,1] and every status change recomputes it in the same mutation.
type Belief struct {
	ID               uuid.UUID      `json:"id"`
	ClaimText        string         `json:"claim_text"`
	Status           BeliefStatus   `json:"status"`
	Confidence       float64        `json:"confidence"`
	DecayModel       DecayModel     `json:"decay_model"`
	Scope            map[string]any `json:"scope,omitempty"`
	DerivedFromAgent string         `json:"derived_from_agent,omitempty"`
	Embedding        []float32      `json:"-"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
}
