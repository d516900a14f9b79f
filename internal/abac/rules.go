package abac

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/kinship-net/kinship/internal/model"
)

// Rule is one attribute rule. Every condition must hold for the rule
// to match. Deny rules take precedence over allow rules regardless of
// order; obligations accumulate from every matching allow-class rule.
type Rule struct {
	Name       string   `yaml:"name"`
	When       []string `yaml:"when"`
	Effect     string   `yaml:"effect"` // allow | deny | allow_redacted
	Redact     []string `yaml:"redact,omitempty"`
	BandMin    string   `yaml:"band_min,omitempty"`
	ReasonTags []string `yaml:"reason_tags,omitempty"`
}

// RuleEvaluator evaluates attribute rules against a context map.
// With no rules configured it allows with neutral obligations, the
// same contract the external engine honors for unconfigured domains.
type RuleEvaluator struct {
	rules []Rule
}

// NewRuleEvaluator builds an evaluator; malformed conditions are
// rejected up front so evaluation never fails at decision time.
func NewRuleEvaluator(rules []Rule) (*RuleEvaluator, error) {
	for _, r := range rules {
		for _, cond := range r.When {
			if _, _, _, err := splitCondition(cond); err != nil {
				return nil, fmt.Errorf("rule %q: %w", r.Name, err)
			}
		}
		switch strings.ToLower(r.Effect) {
		case "allow", "deny", "allow_redacted":
		default:
			return nil, fmt.Errorf("rule %q: unknown effect %q", r.Name, r.Effect)
		}
	}
	return &RuleEvaluator{rules: rules}, nil
}

// Evaluate implements Evaluator. The operation name is exposed to
// conditions as the "operation" attribute.
func (e *RuleEvaluator) Evaluate(operation string, context map[string]any) Result {
	ctx := make(map[string]any, len(context)+1)
	for k, v := range context {
		ctx[k] = v
	}
	ctx["operation"] = operation

	obl := model.NewObligation()
	allowMatched := false
	var reasons []string
	for _, rule := range e.rules {
		if !matches(rule, ctx) {
			continue
		}
		switch strings.ToLower(rule.Effect) {
		case "deny":
			return Result{
				Decision:    model.Deny,
				Reasons:     []string{ReasonDeny, "abac_rule:" + rule.Name},
				Obligations: model.NewObligation(),
			}
		case "allow", "allow_redacted":
			allowMatched = true
			reasons = append(reasons, "abac_rule:"+rule.Name)
			obl.AddRedact(rule.Redact...)
			obl.EscalateBandMin(model.Band(rule.BandMin))
			obl.AddTags(rule.ReasonTags...)
		}
	}
	if len(e.rules) == 0 || allowMatched {
		decision := model.Allow
		if len(obl.Redact) > 0 {
			decision = model.AllowRedacted
		}
		return Result{
			Decision:    decision,
			Reasons:     append([]string{ReasonAllow}, reasons...),
			Obligations: obl,
		}
	}
	// Rules exist but none matched: neutral allow. The attribute
	// engine advises; the capability gate already decided access.
	return Result{
		Decision:    model.Allow,
		Reasons:     []string{ReasonNoMatch},
		Obligations: model.NewObligation(),
	}
}

func matches(rule Rule, ctx map[string]any) bool {
	for _, cond := range rule.When {
		attr, op, want, err := splitCondition(cond)
		if err != nil {
			return false
		}
		if !holds(ctx[attr], op, want) {
			return false
		}
	}
	return len(rule.When) > 0
}

// splitCondition parses "<attr> <op> <value>".
func splitCondition(cond string) (attr, op, value string, err error) {
	fields := strings.Fields(cond)
	if len(fields) < 3 {
		return "", "", "", fmt.Errorf("condition %q: want <attr> <op> <value>", cond)
	}
	switch fields[1] {
	case "==", "!=", ">=", "<=", ">", "<", "contains":
	default:
		return "", "", "", fmt.Errorf("condition %q: unknown operator %q", cond, fields[1])
	}
	return fields[0], fields[1], strings.Join(fields[2:], " "), nil
}

func holds(have any, op, want string) bool {
	switch op {
	case "contains":
		switch v := have.(type) {
		case string:
			return strings.Contains(v, strings.Trim(want, `"`))
		case []string:
			for _, s := range v {
				if s == strings.Trim(want, `"`) {
					return true
				}
			}
		case []any:
			for _, item := range v {
				if s, ok := item.(string); ok && s == strings.Trim(want, `"`) {
					return true
				}
			}
		}
		return false
	case "==", "!=":
		eq := equalLoose(have, want)
		if op == "==" {
			return eq
		}
		return !eq
	default:
		a, aok := toFloat(have)
		b, berr := strconv.ParseFloat(want, 64)
		if !aok || berr != nil {
			return false
		}
		switch op {
		case ">=":
			return a >= b
		case "<=":
			return a <= b
		case ">":
			return a > b
		case "<":
			return a < b
		}
		return false
	}
}

func equalLoose(have any, want string) bool {
	want = strings.Trim(want, `"`)
	switch v := have.(type) {
	case string:
		return v == want
	case bool:
		return strconv.FormatBool(v) == want
	case nil:
		return want == "null" || want == ""
	default:
		if f, ok := toFloat(have); ok {
			if w, err := strconv.ParseFloat(want, 64); err == nil {
				return f == w
			}
		}
		return fmt.Sprintf("%v", v) == want
	}
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}
