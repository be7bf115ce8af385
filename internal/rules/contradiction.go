package rules

import (
	"strings"

	"github.com/google/uuid"
	"github.com/tenetdb/tenet/internal/domain"
)

// stopWords are excluded when checking subject overlap between claims.
var stopWords = map[string]bool{
	"is": true, "a": true, "the": true, "an": true, "and": true, "or": true,
	"of": true, "in": true, "to": true, "for": true, "it": true, "are": true,
}

// OpposingPairs is the default antonym lexicon for the opposing-predicate
// heuristic. A custom lexicon can be supplied through DetectorConfig.
var OpposingPairs = [][2]string{
	{"fast", "slow"},
	{"good", "bad"},
	{"easy", "hard"},
	{"simple", "complex"},
	{"safe", "unsafe"},
	{"efficient", "inefficient"},
	{"reliable", "unreliable"},
	{"secure", "insecure"},
	{"stable", "unstable"},
	{"useful", "useless"},
	{"true", "false"},
	{"correct", "incorrect"},
	{"possible", "impossible"},
	{"always", "never"},
	{"increase", "decrease"},
	{"better", "worse"},
}

// DetectorConfig parameterizes contradiction detection.
type DetectorConfig struct {
	// Pairs is the antonym lexicon; nil means OpposingPairs.
	Pairs [][2]string
}

func (c DetectorConfig) pairs() [][2]string {
	if c.Pairs != nil {
		return c.Pairs
	}
	return OpposingPairs
}

// Contradicts reports whether two claim texts conflict. Heuristics are tried
// in order and the first match wins:
//  1. negation: one claim is the "not"/"n't" form of the other;
//  2. opposing predicates: the claims share at least one non-stopword token
//     and each contains one side of an antonym pair.
func Contradicts(cfg DetectorConfig, claimA, claimB string) bool {
	a := strings.ToLower(strings.TrimSpace(claimA))
	b := strings.ToLower(strings.TrimSpace(claimB))
	if a == "" || b == "" || a == b {
		return false
	}

	if isNegation(a, b) {
		return true
	}

	wordsA := tokenSet(a)
	wordsB := tokenSet(b)
	if !sharesMeaningfulToken(wordsA, wordsB) {
		return false
	}
	return hasOpposingWords(cfg.pairs(), wordsA, wordsB)
}

// DetectAgainst runs the detector for one target claim across a candidate
// slice, returning the IDs of conflicting beliefs in candidate order. The
// belief with selfID (if any) is skipped.
func DetectAgainst(cfg DetectorConfig, selfID uuid.UUID, claim string, candidates []domain.Belief) []uuid.UUID {
	var matches []uuid.UUID
	for _, other := range candidates {
		if other.ID == selfID {
			continue
		}
		if Contradicts(cfg, claim, other.ClaimText) {
			matches = append(matches, other.ID)
		}
	}
	return matches
}

func isNegation(a, b string) bool {
	// "x is y" vs "x is not y"
	if strings.ReplaceAll(a, " not ", " ") == b {
		return true
	}
	if strings.ReplaceAll(b, " not ", " ") == a {
		return true
	}
	// "x isn't y" vs "x is not y" and contracted-vs-plain forms
	plainA := strings.ReplaceAll(strings.ReplaceAll(a, "n't ", " "), " not ", " ")
	plainB := strings.ReplaceAll(strings.ReplaceAll(b, "n't ", " "), " not ", " ")
	if plainA == plainB && a != b {
		return hasNegationMarker(a) != hasNegationMarker(b)
	}
	return false
}

func hasNegationMarker(s string) bool {
	if strings.Contains(s, " not ") {
		return true
	}
	return strings.Contains(s, "n't ")
}

func tokenSet(s string) map[string]bool {
	set := make(map[string]bool)
	for _, w := range strings.Fields(s) {
		w = strings.Trim(w, ".,;:!?\"'()")
		if w != "" {
			set[w] = true
		}
	}
	return set
}

func sharesMeaningfulToken(a, b map[string]bool) bool {
	for w := range a {
		if stopWords[w] {
			continue
		}
		if b[w] {
			return true
		}
	}
	return false
}

func hasOpposingWords(pairs [][2]string, a, b map[string]bool) bool {
	for _, p := range pairs {
		if (a[p[0]] && b[p[1]]) || (a[p[1]] && b[p[0]]) {
			return true
		}
	}
	return false
}
