package service

import (
	"path/filepath"
	"testing"

	"github.com/kinship-net/kinship/internal/abac"
	"github.com/kinship-net/kinship/internal/audit"
	"github.com/kinship-net/kinship/internal/config"
	"github.com/kinship-net/kinship/internal/model"
	"github.com/kinship-net/kinship/internal/store"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	return &config.Config{
		StorePath:    filepath.Join(dir, "policy.json"),
		AuditLogPath: filepath.Join(dir, "logs", "decisions.jsonl"),
		HistoryPath:  filepath.Join(dir, "history.db"),
		InboxDir:     filepath.Join(dir, "inbox"),
		OutboxDir:    filepath.Join(dir, "outbox"),
		SeedRoles: []model.Role{
			{Name: "member", Caps: []string{"memory.read", "memory.refer"}},
			{Name: "guardian", Caps: []string{"memory.project"}, Inherits: []string{"member"}},
		},
	}
}

func TestOpenSeedsEmptyStore(t *testing.T) {
	cfg := testConfig(t)
	svc, err := Open(cfg, Options{Store: store.NewMemStore(), DisableSinks: true})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer svc.Close()

	roles, err := svc.RBAC.Roles()
	if err != nil {
		t.Fatalf("roles: %v", err)
	}
	if len(roles) != 2 {
		t.Errorf("expected 2 seeded roles, got %d", len(roles))
	}
}

func TestSeedsLeaveExistingStoreAlone(t *testing.T) {
	cfg := testConfig(t)
	st := store.NewMemStore()
	if _, err := st.Update(func(doc *store.Document) error {
		doc.Roles["custom"] = model.Role{Name: "custom", Caps: []string{"memory.read"}}
		return nil
	}); err != nil {
		t.Fatalf("pre-populate: %v", err)
	}

	svc, err := Open(cfg, Options{Store: st, DisableSinks: true})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer svc.Close()

	roles, err := svc.RBAC.Roles()
	if err != nil {
		t.Fatalf("roles: %v", err)
	}
	if len(roles) != 1 || roles[0].Name != "custom" {
		t.Errorf("seeds must not touch a non-empty store, got %v", roles)
	}
}

func TestEvaluateRecordsToSinks(t *testing.T) {
	cfg := testConfig(t)
	svc, err := Open(cfg, Options{Store: store.NewMemStore()})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer svc.Close()

	if err := svc.RBAC.Bind(model.Binding{
		PrincipalID: "alice", Role: "member", SpaceID: "personal:alice.chen",
	}); err != nil {
		t.Fatalf("bind: %v", err)
	}

	d, err := svc.EvaluateAccess(model.AccessRequest{
		ActorID: "alice", Operation: "memory.read", Space: "personal:alice.chen",
	})
	if err != nil {
		t.Fatalf("evaluate access: %v", err)
	}
	if d.Decision != model.Allow {
		t.Fatalf("expected ALLOW, got %s %v", d.Decision, d.Reasons)
	}

	d, err = svc.EvaluateShare(model.ShareRequest{
		Op: model.OpProject, ActorID: "alice",
		From: "personal:alice.chen", Band: model.BandGreen,
	}, nil)
	if err != nil {
		t.Fatalf("evaluate share: %v", err)
	}
	if d.Decision != model.Deny {
		t.Fatalf("expected DENY for member projection, got %s", d.Decision)
	}

	// Both decisions are in the chained log and the history database.
	res := audit.Verify(cfg.AuditLogPath)
	if !res.Valid || res.Lines != 2 {
		t.Errorf("expected 2-entry valid chain, got %+v", res)
	}
	events, err := svc.History.Recent(10)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(events) != 2 {
		t.Errorf("expected 2 history rows, got %d", len(events))
	}
	denies := 0
	for _, ev := range events {
		if ev.Decision == "DENY" {
			denies++
		}
	}
	if denies != 1 {
		t.Errorf("expected 1 deny recorded, got %d", denies)
	}
}

func TestConfigKnobsReachEngine(t *testing.T) {
	cfg := testConfig(t)
	cfg.DefaultOutcome = "DENY"
	svc, err := Open(cfg, Options{Store: store.NewMemStore(), DisableSinks: true})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer svc.Close()

	if err := svc.RBAC.Bind(model.Binding{
		PrincipalID: "alice", Role: "member", SpaceID: "personal:alice.chen",
	}); err != nil {
		t.Fatalf("bind: %v", err)
	}
	d, err := svc.EvaluateAccess(model.AccessRequest{
		ActorID: "alice", Operation: "memory.read", Space: "personal:alice.chen",
	})
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if d.Decision != model.Deny || d.Reasons[0] != "default_deny" {
		t.Errorf("expected default_deny applied from config, got %s %v", d.Decision, d.Reasons)
	}
}

func TestOpenRejectsBadRules(t *testing.T) {
	cfg := testConfig(t)
	cfg.ABACRules = []abac.Rule{
		{Name: "broken", When: []string{"not-a-condition"}, Effect: "deny"},
	}
	if _, err := Open(cfg, Options{Store: store.NewMemStore(), DisableSinks: true}); err == nil {
		t.Error("expected malformed rule to fail assembly")
	}
}
