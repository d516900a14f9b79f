package scenario

import (
	"github.com/kinship-net/kinship/internal/abac"
	"github.com/kinship-net/kinship/internal/model"
)

// Case is one policy assertion. Exactly one of Share or Access must
// be set. ExpectReason, when present, must appear verbatim in the
// decision's reasons.
type Case struct {
	Share        *model.ShareRequest  `yaml:"share,omitempty"`
	Access       *model.AccessRequest `yaml:"access,omitempty"`
	Context      map[string]any       `yaml:"context,omitempty"`
	Expect       string               `yaml:"expect"`
	ExpectReason string               `yaml:"expect_reason,omitempty"`
}

// Scenario is a named collection of policy assertions with the state
// they run against. Every scenario evaluates against a fresh
// in-memory store: files are independent and repeatable.
type Scenario struct {
	Name       string                `yaml:"name"`
	Roles      []model.Role          `yaml:"roles,omitempty"`
	Bindings   []model.Binding       `yaml:"bindings,omitempty"`
	Consents   []model.ConsentRecord `yaml:"consents,omitempty"`
	BandFloors map[string]model.Band `yaml:"band_floors,omitempty"`
	ABACRules  []abac.Rule           `yaml:"abac_rules,omitempty"`
	StrictMode *bool                 `yaml:"strict_mode,omitempty"`
	Cases      []Case                `yaml:"cases"`
}

// CaseResult is the outcome of evaluating one assertion.
type CaseResult struct {
	Index    int      `json:"index"`
	Passed   bool     `json:"passed"`
	Kind     string   `json:"kind"`
	Summary  string   `json:"summary"`
	Expected string   `json:"expected"`
	Actual   string   `json:"actual"`
	Reasons  []string `json:"reasons"`
}

// RunResult is the outcome of one scenario file.
type RunResult struct {
	File   string       `json:"file"`
	Name   string       `json:"name"`
	Total  int          `json:"total"`
	Passed int          `json:"passed"`
	Failed int          `json:"failed"`
	Cases  []CaseResult `json:"cases"`
}
