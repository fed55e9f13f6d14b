// Package guardrail evaluates tenant content policy against inbound messages.
// A match never blocks a request: it produces redirect guidance that is folded
// into the system prompt, plus a durable audit event.
package guardrail

import (
	"context"
	"log"
	"strings"
	"sync"

	"github.com/clearquote/assistant/internal/domain"
)

// Matcher evaluates messages against a guardrail config.
type Matcher struct {
	mu      sync.Mutex
	engines map[string]*RulesEngine // keyed by rego module source
}

// NewMatcher creates a matcher.
func NewMatcher() *Matcher {
	return &Matcher{engines: make(map[string]*RulesEngine)}
}

// Evaluate matches the message against the config. Restricted-topic matching
// is a case-insensitive substring scan in config order; the first enabled
// trigger wins. When RestrictedTopicsEnabled is false, topic matching is
// skipped entirely regardless of configured topics.
func (m *Matcher) Evaluate(ctx context.Context, message string, cfg domain.GuardrailConfig) domain.GuardrailMatch {
	var match domain.GuardrailMatch

	if cfg.RestrictedTopicsEnabled {
		lower := strings.ToLower(message)
		for _, topic := range cfg.RestrictedTopics {
			if !topic.Enabled || topic.Trigger == "" {
				continue
			}
			if strings.Contains(lower, strings.ToLower(topic.Trigger)) {
				match.TriggeredTopic = &domain.TopicMatch{
					Trigger:  topic.Trigger,
					Redirect: topic.RedirectGuidance,
				}
				break
			}
		}
	}

	if cfg.CustomRules != "" {
		rules, err := m.applyRules(ctx, message, cfg.CustomRules)
		if err != nil {
			// A broken rule set degrades to topic matching only.
			log.Printf("WARN: custom guardrail rules failed: %v", err)
		} else {
			match.AppliedRules = rules
		}
	}

	return match
}

func (m *Matcher) applyRules(ctx context.Context, message, module string) ([]string, error) {
	m.mu.Lock()
	engine, ok := m.engines[module]
	m.mu.Unlock()

	if !ok {
		var err error
		engine, err = NewRulesEngine(ctx, module)
		if err != nil {
			return nil, err
		}
		m.mu.Lock()
		m.engines[module] = engine
		m.mu.Unlock()
	}

	return engine.Guidance(ctx, map[string]interface{}{"message": message})
}

// Excerpt truncates a message for the audit record. maxLen counts runes so a
// multibyte message is never cut mid-character.
func Excerpt(message string, maxLen int) string {
	r := []rune(message)
	if len(r) <= maxLen {
		return message
	}
	return string(r[:maxLen]) + "..."
}
