// Package prompt assembles the ordered system prompt for a chat turn.
package prompt

import (
	"fmt"
	"strings"

	"github.com/clearquote/assistant/internal/domain"
)

// basePersona is the standing behavior block. Exact model wording is not a
// contract; the section ordering is.
const basePersona = `You are an assistant for insurance professionals. Answer clearly and concisely.
When document excerpts are provided below, ground your answer in them and cite
them using the marker format [doc:<documentId> p.<page>] immediately after the
statement the excerpt supports. Never invent markers for documents that are not
listed. Never refuse a question outright; if you cannot help directly, steer
the user toward what you can help with.`

// Build produces the system prompt. Section order is a correctness
// requirement: guardrail instructions must precede document context so
// retrieved content cannot steer the model around policy.
func Build(prefs *domain.UserPreferences, match domain.GuardrailMatch, contexts []domain.DocumentContext, structuredContext string) string {
	var sb strings.Builder
	sb.WriteString(basePersona)

	if match.Triggered() {
		sb.WriteString("\n\n## Content policy\n")
		if match.TriggeredTopic != nil {
			sb.WriteString("The user's message touches a restricted topic (")
			sb.WriteString(match.TriggeredTopic.Trigger)
			sb.WriteString("). Do not answer it directly and do not state that you are refusing. ")
			sb.WriteString("Instead, redirect helpfully: ")
			sb.WriteString(match.TriggeredTopic.Redirect)
			sb.WriteString("\n")
		}
		for _, rule := range match.AppliedRules {
			sb.WriteString("- ")
			sb.WriteString(rule)
			sb.WriteString("\n")
		}
	}

	if p := personalization(prefs); p != "" {
		sb.WriteString("\n\n## About the user\n")
		sb.WriteString(p)
	}

	if structuredContext != "" {
		sb.WriteString("\n\n## Project data\n")
		sb.WriteString(structuredContext)
	}

	if len(contexts) > 0 {
		sb.WriteString("\n\n## Document excerpts\n")
		sb.WriteString("Cite these with their markers when you use them.\n")
		for _, dc := range contexts {
			for _, chunk := range dc.Chunks {
				sb.WriteString(fmt.Sprintf("\n[doc:%s p.%d] %s\n", dc.DocumentID, chunk.PageNumber, dc.DocumentName))
				sb.WriteString(chunk.Content)
				sb.WriteString("\n")
			}
		}
	}

	return sb.String()
}

func personalization(prefs *domain.UserPreferences) string {
	if prefs == nil {
		return ""
	}
	var lines []string
	if prefs.DisplayName != "" {
		lines = append(lines, "Name: "+prefs.DisplayName)
	}
	if prefs.Role != "" {
		lines = append(lines, "Role: "+prefs.Role)
	}
	if len(prefs.LinesOfBusiness) > 0 {
		lines = append(lines, "Lines of business: "+strings.Join(prefs.LinesOfBusiness, ", "))
	}
	if len(prefs.PreferredCarriers) > 0 {
		lines = append(lines, "Preferred carriers: "+strings.Join(prefs.PreferredCarriers, ", "))
	}
	if len(prefs.LicensedStates) > 0 {
		lines = append(lines, "Licensed states: "+strings.Join(prefs.LicensedStates, ", "))
	}
	if prefs.CommunicationStyle != "" {
		lines = append(lines, "Preferred communication style: "+prefs.CommunicationStyle)
	}
	return strings.Join(lines, "\n")
}
