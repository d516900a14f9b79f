package scenario

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/kinship-net/kinship/internal/model"
)

func memberScenario() *Scenario {
	return &Scenario{
		Name: "member-permissions",
		Roles: []model.Role{
			{Name: "member", Caps: []string{"memory.read", "memory.refer"}},
		},
		Bindings: []model.Binding{
			{PrincipalID: "alice", Role: "member", SpaceID: "personal:alice.chen"},
		},
		Cases: []Case{
			{
				Access: &model.AccessRequest{ActorID: "alice", Operation: "memory.read", Space: "personal:alice.chen"},
				Expect: "ALLOW",
			},
			{
				Share: &model.ShareRequest{
					Op: model.OpProject, ActorID: "alice",
					From: "personal:alice.chen", Band: model.BandGreen,
				},
				Expect:       "DENY",
				ExpectReason: "missing_cap:memory.project",
			},
		},
	}
}

func TestRunPassingScenario(t *testing.T) {
	result, err := Run(memberScenario())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if result.Total != 2 || result.Passed != 2 || result.Failed != 0 {
		t.Errorf("expected 2/2 passed, got %+v", result)
	}
}

func TestRunReportsFailure(t *testing.T) {
	s := memberScenario()
	s.Cases[0].Expect = "DENY" // wrong on purpose
	result, err := Run(s)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if result.Failed != 1 || result.Passed != 1 {
		t.Errorf("expected 1 failure, got %+v", result)
	}
	cr := result.Cases[0]
	if cr.Passed || cr.Actual != "ALLOW" || cr.Expected != "DENY" {
		t.Errorf("unexpected case result %+v", cr)
	}
}

func TestExpectReasonMustAppear(t *testing.T) {
	s := memberScenario()
	s.Cases[1].ExpectReason = "some_other_reason"
	result, err := Run(s)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if result.Cases[1].Passed {
		t.Error("expected reason mismatch to fail the case")
	}
}

func TestRunRejectsBadState(t *testing.T) {
	s := &Scenario{
		Name:     "broken",
		Bindings: []model.Binding{{PrincipalID: "a", Role: "ghost", SpaceID: "personal:a.x"}},
	}
	if _, err := Run(s); err == nil {
		t.Error("expected undefined role to fail setup")
	}

	s = &Scenario{
		Name:      "bad-rule",
		ABACRules: nil,
		Cases:     nil,
	}
	s.BandFloors = map[string]model.Band{"x": "PURPLE"}
	if _, err := Run(s); err == nil {
		t.Error("expected invalid band floor to fail setup")
	}
}

func TestLoadAndRunYAML(t *testing.T) {
	yaml := `
name: consent-gate
roles:
  - name: guardian
    caps: [memory.project]
bindings:
  - principal_id: alice
    role: guardian
    space_id: personal:alice.chen
consents:
  - from_space: personal:alice.chen
    to_space: extended:patel
    purpose: extended_family_consent
    granted_by: alice
cases:
  - share:
      op: PROJECT
      actor_id: alice
      from_space: personal:alice.chen
      to_space: extended:patel
      band: GREEN
    expect: ALLOW
    expect_reason: consent_verified:extended_family_consent
  - share:
      op: PROJECT
      actor_id: alice
      from_space: personal:alice.chen
      to_space: interfamily:city
      band: GREEN
    expect: DENY
    expect_reason: missing_consent:explicit_interfamily_consent
`
	path := filepath.Join(t.TempDir(), "consent.yaml")
	if err := os.WriteFile(path, []byte(yaml), 0600); err != nil {
		t.Fatalf("write: %v", err)
	}

	result, err := LoadAndRun(path)
	if err != nil {
		t.Fatalf("load and run: %v", err)
	}
	if result.Failed != 0 {
		t.Fatalf("expected clean run, got %+v", result.Cases)
	}
	if result.File != path || result.Name != "consent-gate" {
		t.Errorf("metadata missing: %+v", result)
	}
}

func TestFormatText(t *testing.T) {
	result, err := Run(memberScenario())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	out := FormatText([]*RunResult{result})
	if !strings.Contains(out, "member-permissions") {
		t.Errorf("scenario name missing from output:\n%s", out)
	}
}
