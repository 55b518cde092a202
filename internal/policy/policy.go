package policy

import (
	"fmt"
	"sort"

	"github.com/Knetic/govaluate"

	"github.com/yourorg/wallet-checkout/internal/payment"
)

// Action is a provider side effect to run after a readiness probe.
type Action string

const (
	ActionNone      Action = "none"
	ActionActivate  Action = "activate"
	ActionUpdateApp Action = "update_app"
)

// ParseAction accepts the action names used in rule config.
func ParseAction(s string) (Action, error) {
	switch Action(s) {
	case ActionNone, ActionActivate, ActionUpdateApp:
		return Action(s), nil
	default:
		return "", fmt.Errorf("policy: unknown action %q", s)
	}
}

// Rule is one readiness follow-up rule. Expression is a govaluate boolean
// expression over the parameters provider, status and reason.
type Rule struct {
	ID         string
	Expression string
	Priority   int
	Action     Action
}

// Decision is the outcome of evaluating the rules for one probe result.
type Decision struct {
	Action Action
	RuleID string
}

type compiledRule struct {
	Rule
	expr *govaluate.EvaluableExpression
}

// ReadinessPolicy decides what to do after a readiness probe. Rules are
// evaluated by ascending priority; the first match wins.
type ReadinessPolicy struct {
	rules []compiledRule
}

// DefaultRules activates a device wallet whose setup is incomplete and sends
// the user to the update page when the wallet app is outdated.
func DefaultRules() []Rule {
	return []Rule{
		{
			ID:         "device_setup_incomplete",
			Expression: "provider == 'device_wallet' && status == 'NOT_READY' && reason == 'SETUP_NOT_COMPLETED'",
			Priority:   1,
			Action:     ActionActivate,
		},
		{
			ID:         "device_app_outdated",
			Expression: "provider == 'device_wallet' && status == 'NOT_READY' && reason == 'APP_NEED_TO_UPDATE'",
			Priority:   2,
			Action:     ActionUpdateApp,
		},
	}
}

// NewReadinessPolicy compiles rules.
func NewReadinessPolicy(rules []Rule) (*ReadinessPolicy, error) {
	compiled := make([]compiledRule, 0, len(rules))
	for _, r := range rules {
		if r.Expression == "" {
			return nil, fmt.Errorf("policy rule ID '%s' has an empty expression", r.ID)
		}
		if _, err := ParseAction(string(r.Action)); err != nil {
			return nil, fmt.Errorf("policy rule ID '%s': %w", r.ID, err)
		}
		expr, err := govaluate.NewEvaluableExpression(r.Expression)
		if err != nil {
			return nil, fmt.Errorf("failed to compile rule ID '%s': %w", r.ID, err)
		}
		compiled = append(compiled, compiledRule{Rule: r, expr: expr})
	}
	sort.SliceStable(compiled, func(i, j int) bool { return compiled[i].Priority < compiled[j].Priority })
	return &ReadinessPolicy{rules: compiled}, nil
}

// Evaluate returns the action for a probe result. With no matching rule the
// action is ActionNone.
func (p *ReadinessPolicy) Evaluate(provider payment.Provider, readiness payment.Readiness, reason string) (Decision, error) {
	params := map[string]interface{}{
		"provider": provider.String(),
		"status":   readiness.String(),
		"reason":   reason,
	}
	for _, r := range p.rules {
		result, err := r.expr.Evaluate(params)
		if err != nil {
			return Decision{Action: ActionNone}, fmt.Errorf("error evaluating rule ID '%s': %w", r.ID, err)
		}
		matched, ok := result.(bool)
		if !ok {
			return Decision{Action: ActionNone}, fmt.Errorf("rule ID '%s' did not evaluate to a boolean (got %T)", r.ID, result)
		}
		if matched {
			return Decision{Action: r.Action, RuleID: r.ID}, nil
		}
	}
	return Decision{Action: ActionNone}, nil
}
