// Package policy decides which extracted rules must be confirmed by the user
// before a timer is armed on them.
//
// The decision is a CEL expression evaluated against a single variable, rule,
// with these fields:
//
//	rule.kind         string  kind tag, e.g. "time_limit"
//	rule.confidence   double  extraction confidence
//	rule.restrictive  bool    whether the kind can make parking illegal
//	rule.severity     string  "warning", "ticket" or "tow_away"
//	rule.confirmed    bool    already confirmed by the user
//	rule.has_window   bool    whether the rule is limited to a time window
package policy

import (
	"github.com/google/cel-go/cel"
	"github.com/pkg/errors"

	"github.com/hrygo/parksense/plugin/parking"
)

// DefaultExpression asks for confirmation of unrecognized or weakly
// recognized rules.
const DefaultExpression = `!rule.confirmed && (rule.kind == "unknown" || rule.confidence < 0.8)`

// Policy is a compiled confirmation expression. It is safe for concurrent use.
type Policy struct {
	expression string
	program    cel.Program
}

// New compiles expression. The expression must evaluate to a bool; a field
// read on its own (dyn) is checked at evaluation time.
func New(expression string) (*Policy, error) {
	env, err := cel.NewEnv(cel.Variable("rule", cel.MapType(cel.StringType, cel.DynType)))
	if err != nil {
		return nil, errors.Wrap(err, "failed to create CEL environment")
	}

	ast, issues := env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return nil, errors.Wrapf(issues.Err(), "failed to compile policy %q", expression)
	}
	if out := ast.OutputType(); !out.IsExactType(cel.BoolType) && !out.IsExactType(cel.DynType) {
		return nil, errors.Errorf("policy %q returns %s, want bool", expression, out)
	}

	program, err := env.Program(ast)
	if err != nil {
		return nil, errors.Wrap(err, "failed to build policy program")
	}
	return &Policy{expression: expression, program: program}, nil
}

// MustNew is New that panics on error, for expressions known at compile time.
func MustNew(expression string) *Policy {
	p, err := New(expression)
	if err != nil {
		panic(err)
	}
	return p
}

var defaultPolicy = MustNew(DefaultExpression)

// Default returns the policy built from DefaultExpression.
func Default() *Policy {
	return defaultPolicy
}

// Expression returns the source the policy was compiled from.
func (p *Policy) Expression() string {
	return p.expression
}

// NeedsConfirmation evaluates the policy for one rule.
func (p *Policy) NeedsConfirmation(rule parking.Rule) (bool, error) {
	out, _, err := p.program.Eval(map[string]any{"rule": activation(rule)})
	if err != nil {
		return false, errors.Wrapf(err, "failed to evaluate policy for %s rule", tagOf(rule))
	}
	needs, ok := out.Value().(bool)
	if !ok {
		return false, errors.Errorf("policy returned %T, want bool", out.Value())
	}
	return needs, nil
}

// Pending returns the indexes of rules that need confirmation.
func (p *Policy) Pending(rules []parking.Rule) ([]int, error) {
	var pending []int
	for i, r := range rules {
		needs, err := p.NeedsConfirmation(r)
		if err != nil {
			return nil, err
		}
		if needs {
			pending = append(pending, i)
		}
	}
	return pending, nil
}

func activation(rule parking.Rule) map[string]any {
	restrictive := rule.Kind != nil && rule.Kind.Restrictive()
	return map[string]any{
		"kind":        string(tagOf(rule)),
		"confidence":  rule.Confidence,
		"restrictive": restrictive,
		"severity":    rule.Severity.String(),
		"confirmed":   rule.Confirmed,
		"has_window":  rule.Window != nil,
	}
}

func tagOf(rule parking.Rule) parking.KindTag {
	if rule.Kind == nil {
		return parking.TagUnknown
	}
	return rule.Kind.Tag()
}
