package guardrail

import (
	"context"
	"fmt"

	"github.com/open-policy-agent/opa/rego"
)

// RulesEngine evaluates tenant custom rules written in rego. Rules emit
// prompt guidance strings; they never block a request.
type RulesEngine struct {
	query rego.PreparedEvalQuery
}

// NewRulesEngine prepares the rego module for evaluation.
func NewRulesEngine(ctx context.Context, module string) (*RulesEngine, error) {
	r := rego.New(
		rego.Query("data.chat_guardrails.guidance"),
		rego.Module("chat_guardrails.rego", module),
	)

	query, err := r.PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare rego: %w", err)
	}

	return &RulesEngine{query: query}, nil
}

// Guidance evaluates the rules against the input and returns the guidance
// strings produced by matching rules. Input carries the message under the
// "message" key.
func (e *RulesEngine) Guidance(ctx context.Context, input interface{}) ([]string, error) {
	results, err := e.query.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		return nil, fmt.Errorf("failed to evaluate rules: %w", err)
	}

	if len(results) == 0 || len(results[0].Expressions) == 0 {
		return nil, nil
	}

	// guidance is a rego set/array of strings
	vals, ok := results[0].Expressions[0].Value.([]interface{})
	if !ok {
		return nil, nil
	}

	var guidance []string
	for _, v := range vals {
		if s, ok := v.(string); ok && s != "" {
			guidance = append(guidance, s)
		}
	}
	return guidance, nil
}

// DefaultRules is the baseline custom-rule module applied when a tenant has
// not defined its own.
const DefaultRules = `
package chat_guardrails

import rego.v1

guidance contains "Remind the user that quoted premiums are estimates until bound by the carrier." if {
	contains(lower(input.message), "premium")
}

guidance contains "Do not compare carriers by name; describe coverage differences neutrally." if {
	contains(lower(input.message), "which carrier is best")
}
`
