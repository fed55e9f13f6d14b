package chat

import (
	"testing"

	"github.com/clearquote/assistant/internal/domain"
)

func TestCollapseConfidenceScopeSignal(t *testing.T) {
	tests := []struct {
		name  string
		scope domain.ScopeConfidence
		want  domain.ConfidenceLevel
	}{
		{"high passes through", domain.ScopeConfidenceHigh, domain.ConfidenceHigh},
		{"needs_review becomes medium", domain.ScopeConfidenceNeedsReview, domain.ConfidenceMedium},
		{"not_found becomes low", domain.ScopeConfidenceNotFound, domain.ConfidenceLow},
		{"conversational becomes low", domain.ScopeConfidenceConversational, domain.ConfidenceLow},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := CollapseConfidence(tc.scope, true, nil, "some answer")
			if got != tc.want {
				t.Fatalf("got %s, want %s", got, tc.want)
			}
		})
	}
}

func TestCollapseConfidenceTextFallback(t *testing.T) {
	citation := []domain.Citation{{DocumentID: "doc1"}}

	if got := CollapseConfidence("", true, citation, "grounded answer"); got != domain.ConfidenceHigh {
		t.Fatalf("context plus citations should be high, got %s", got)
	}
	if got := CollapseConfidence("", true, nil, "uncited answer"); got != domain.ConfidenceMedium {
		t.Fatalf("context without citations should be medium, got %s", got)
	}
	if got := CollapseConfidence("", false, nil, "I'm not sure what the policy says here."); got != domain.ConfidenceLow {
		t.Fatalf("hedging should be low, got %s", got)
	}
	if got := CollapseConfidence("", false, nil, "A straightforward reply."); got != domain.ConfidenceMedium {
		t.Fatalf("plain uncontexted answer should be medium, got %s", got)
	}
	if got := CollapseConfidence("", false, nil, ""); got != domain.ConfidenceLow {
		t.Fatalf("empty response should be low, got %s", got)
	}
}

func TestIsHedging(t *testing.T) {
	if !isHedging("Honestly, I don't know the answer.") {
		t.Fatalf("expected hedge detection")
	}
	if !isHedging("It is unclear from the documents.") {
		t.Fatalf("expected hedge detection")
	}
	if isHedging("The deductible is $500.") {
		t.Fatalf("confident statement flagged as hedging")
	}
}
