package conflict

import "strings"

// Similarity decides whether two propositions talk about the same or a
// related action. The historical thresholds (any shared token for related,
// Jaccard >= 0.6 for same) were never justified empirically, so the whole
// heuristic is swappable rather than hard-coded into the detector.
type Similarity interface {
	// Related reports whether the propositions refer to related actions.
	Related(a, b string) bool

	// Same reports whether the propositions assert the same action.
	Same(a, b string) bool
}

// TokenSimilarity is the default Similarity: exact match, shared-token
// overlap for Related, and token-Jaccard for Same.
type TokenSimilarity struct {
	// JaccardThreshold for the Same test. Zero means the default 0.6.
	JaccardThreshold float64
}

// DefaultSimilarity returns the token heuristic with historical thresholds.
func DefaultSimilarity() TokenSimilarity {
	return TokenSimilarity{JaccardThreshold: 0.6}
}

// Related reports a non-empty shared-token overlap.
func (s TokenSimilarity) Related(a, b string) bool {
	if equalNormalized(a, b) {
		return true
	}
	ta, tb := tokenSet(a), tokenSet(b)
	for tok := range ta {
		if _, ok := tb[tok]; ok {
			return true
		}
	}
	return false
}

// Same reports exact match or token-Jaccard overlap at or above the
// threshold.
func (s TokenSimilarity) Same(a, b string) bool {
	if equalNormalized(a, b) {
		return true
	}
	threshold := s.JaccardThreshold
	if threshold == 0 {
		threshold = 0.6
	}

	ta, tb := tokenSet(a), tokenSet(b)
	if len(ta) == 0 || len(tb) == 0 {
		return false
	}
	inter := 0
	for tok := range ta {
		if _, ok := tb[tok]; ok {
			inter++
		}
	}
	union := len(ta) + len(tb) - inter
	return float64(inter)/float64(union) >= threshold
}

func equalNormalized(a, b string) bool {
	return normalize(a) == normalize(b) && normalize(a) != ""
}

func normalize(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// tokenSet splits a proposition into lowercase tokens on whitespace and
// common separators.
func tokenSet(s string) map[string]struct{} {
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		switch r {
		case ' ', '\t', '\n', '_', '-', '.', ',', ';', ':', '(', ')':
			return true
		}
		return false
	})
	set := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		if f != "" {
			set[f] = struct{}{}
		}
	}
	return set
}
