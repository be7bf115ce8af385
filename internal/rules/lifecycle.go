package rules

import (
	"fmt"

	"github.com/tenetdb/tenet/internal/domain"
)

// ErrInvalidTransition wraps a rejected lifecycle transition. Callers match it
// with errors.Is.
var ErrInvalidTransition = fmt.Errorf("invalid belief status transition")

// validTransitions is the full lifecycle graph. Archived is terminal;
// challenged can be resolved back to active.
var validTransitions = map[domain.BeliefStatus][]domain.BeliefStatus{
	domain.BeliefProposed:   {domain.BeliefActive},
	domain.BeliefActive:     {domain.BeliefChallenged},
	domain.BeliefChallenged: {domain.BeliefActive, domain.BeliefDeprecated},
	domain.BeliefDeprecated: {domain.BeliefArchived},
	domain.BeliefArchived:   {},
}

// CanTransition reports whether from → to is an edge in the lifecycle graph.
func CanTransition(from, to domain.BeliefStatus) bool {
	for _, allowed := range validTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// ValidateTransition returns ErrInvalidTransition (wrapped with the offending
// pair) when from → to is not legal.
func ValidateTransition(from, to domain.BeliefStatus) error {
	if !CanTransition(from, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	return nil
}

// TransitionChain returns the guarded path from a belief's current status to
// target, walking only legal edges. It returns nil when no path exists. Used
// by the challenger and the curator's dedup pass, which must drive beliefs to
// challenged/deprecated without ever skipping guard validation.
func TransitionChain(from, to domain.BeliefStatus) []domain.BeliefStatus {
	if from == to {
		return []domain.BeliefStatus{}
	}
	// The graph is small and acyclic apart from challenged<->active, so a
	// short BFS is enough.
	type node struct {
		status domain.BeliefStatus
		path   []domain.BeliefStatus
	}
	seen := map[domain.BeliefStatus]bool{from: true}
	queue := []node{{status: from}}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, next := range validTransitions[cur.status] {
			if seen[next] {
				continue
			}
			path := append(append([]domain.BeliefStatus{}, cur.path...), next)
			if next == to {
				return path
			}
			seen[next] = true
			queue = append(queue, node{status: next, path: path})
		}
	}
	return nil
}
