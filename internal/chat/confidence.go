package chat

import (
	"strings"

	"github.com/clearquote/assistant/internal/domain"
)

// hedging phrases that mark an uncertain answer.
var hedgePhrases = []string{
	"i'm not sure",
	"i am not sure",
	"i don't know",
	"i do not know",
	"i cannot determine",
	"it is unclear",
	"it's unclear",
	"i couldn't find",
	"i could not find",
	"might be",
	"may vary",
}

// CollapseConfidence maps the retrieval-internal signal plus text heuristics
// down to the stored three-level scale. The scope signal takes precedence
// when retrieval produced one; "conversational" is deliberately kept distinct
// internally and only collapses to low here, at the storage boundary.
func CollapseConfidence(scope domain.ScopeConfidence, hasContext bool, citations []domain.Citation, responseText string) domain.ConfidenceLevel {
	switch scope {
	case domain.ScopeConfidenceHigh:
		return domain.ConfidenceHigh
	case domain.ScopeConfidenceNeedsReview:
		return domain.ConfidenceMedium
	case domain.ScopeConfidenceNotFound, domain.ScopeConfidenceConversational:
		return domain.ConfidenceLow
	}

	// No scope signal (retrieval was skipped or failed): fall back to what the
	// text itself shows.
	if hasContext && len(citations) > 0 {
		return domain.ConfidenceHigh
	}
	if hasContext {
		return domain.ConfidenceMedium
	}
	if isHedging(responseText) {
		return domain.ConfidenceLow
	}
	if responseText != "" {
		return domain.ConfidenceMedium
	}
	return domain.ConfidenceLow
}

func isHedging(text string) bool {
	lower := strings.ToLower(text)
	for _, p := range hedgePhrases {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}
