// Package abac defines the attribute-based evaluator contract that
// the decision pipeline delegates to, plus a deterministic rule-based
// reference implementation. Production deployments inject their own
// Evaluator; the scoring algorithm itself lives outside this module.
package abac

import (
	"github.com/kinship-net/kinship/internal/model"
)

// Reason constants emitted by the reference evaluator.
const (
	ReasonAllow   = "abac_allow"
	ReasonDeny    = "abac_deny"
	ReasonNoMatch = "abac_no_match"
)

// Result is the evaluator's verdict for one operation.
type Result struct {
	Decision    model.Decision   `json:"decision"`
	Reasons     []string         `json:"reasons"`
	Obligations model.Obligation `json:"obligations"`
}

// Evaluator is the external attribute-based engine contract. The
// context arrives pre-populated with actor/device/environment
// attributes plus, for sharing operations, injected space-risk
// metadata.
type Evaluator interface {
	Evaluate(operation string, context map[string]any) Result
}

// AllowAll is an Evaluator that allows everything with neutral
// obligations. Useful as a default when no attribute engine is wired.
type AllowAll struct{}

// Evaluate implements Evaluator.
func (AllowAll) Evaluate(string, map[string]any) Result {
	return Result{
		Decision:    model.Allow,
		Reasons:     []string{ReasonAllow},
		Obligations: model.NewObligation(),
	}
}
