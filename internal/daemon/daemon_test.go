package daemon

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/kinship-net/kinship/internal/config"
	"github.com/kinship-net/kinship/internal/model"
	"github.com/kinship-net/kinship/internal/service"
	"github.com/kinship-net/kinship/internal/store"
)

func testDaemon(t *testing.T) *Daemon {
	t.Helper()
	dir := t.TempDir()
	cfg := &config.Config{
		InboxDir:  filepath.Join(dir, "inbox"),
		OutboxDir: filepath.Join(dir, "outbox"),
		SeedRoles: []model.Role{
			{Name: "member", Caps: []string{"memory.read", "memory.refer"}},
		},
	}

	st := store.NewMemStore()
	svc, err := service.Open(cfg, service.Options{Store: st, DisableSinks: true})
	if err != nil {
		t.Fatalf("open service: %v", err)
	}
	t.Cleanup(func() { svc.Close() })

	if err := svc.RBAC.Bind(model.Binding{
		PrincipalID: "alice", Role: "member", SpaceID: "personal:alice.chen",
	}); err != nil {
		t.Fatalf("bind: %v", err)
	}

	d, err := New(svc)
	if err != nil {
		t.Fatalf("new daemon: %v", err)
	}
	return d
}

func dropRequest(t *testing.T, d *Daemon, name string, req Request) string {
	t.Helper()
	data, err := json.Marshal(req)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	path := filepath.Join(d.inbox, name)
	if err := os.WriteFile(path, data, 0600); err != nil {
		t.Fatalf("write request: %v", err)
	}
	return path
}

func readResponses(t *testing.T, d *Daemon) []Response {
	t.Helper()
	entries, err := os.ReadDir(d.outbox)
	if err != nil {
		t.Fatalf("read outbox: %v", err)
	}
	var out []Response
	for _, e := range entries {
		data, err := os.ReadFile(filepath.Join(d.outbox, e.Name()))
		if err != nil {
			t.Fatalf("read %s: %v", e.Name(), err)
		}
		var resp Response
		if err := json.Unmarshal(data, &resp); err != nil {
			t.Fatalf("decode %s: %v", e.Name(), err)
		}
		out = append(out, resp)
	}
	return out
}

func TestProcessAccessRequest(t *testing.T) {
	d := testDaemon(t)
	path := dropRequest(t, d, "req1.json", Request{
		Kind: "access",
		Access: &model.AccessRequest{
			ActorID: "alice", Operation: "memory.read", Space: "personal:alice.chen",
		},
	})

	d.Process(path)

	responses := readResponses(t, d)
	if len(responses) != 1 {
		t.Fatalf("expected 1 response, got %d", len(responses))
	}
	resp := responses[0]
	if resp.Decision.Decision != model.Allow {
		t.Errorf("expected ALLOW, got %s %v", resp.Decision.Decision, resp.Decision.Reasons)
	}
	if resp.Source != "req1.json" {
		t.Errorf("expected source recorded, got %s", resp.Source)
	}
	if resp.JobID == "" || resp.DoneAt.IsZero() {
		t.Errorf("job metadata missing: %+v", resp)
	}

	// The answered request is removed from the inbox.
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("request file left in inbox")
	}
}

func TestProcessShareRequest(t *testing.T) {
	d := testDaemon(t)
	path := dropRequest(t, d, "share.json", Request{
		Kind: "share",
		Share: &model.ShareRequest{
			Op: model.OpProject, ActorID: "alice",
			From: "personal:alice.chen", Band: model.BandGreen,
		},
	})

	d.Process(path)

	responses := readResponses(t, d)
	if len(responses) != 1 {
		t.Fatalf("expected 1 response, got %d", len(responses))
	}
	// Member lacks memory.project: the daemon answers with the DENY,
	// it does not error.
	dec := responses[0].Decision
	if dec.Decision != model.Deny {
		t.Errorf("expected DENY, got %s", dec.Decision)
	}
	if len(dec.Reasons) != 1 || dec.Reasons[0] != "missing_cap:memory.project" {
		t.Errorf("unexpected reasons %v", dec.Reasons)
	}
}

func TestMalformedRequestAnsweredWithDeny(t *testing.T) {
	d := testDaemon(t)
	path := filepath.Join(d.inbox, "garbage.json")
	if err := os.WriteFile(path, []byte("{nope"), 0600); err != nil {
		t.Fatalf("write: %v", err)
	}

	d.Process(path)

	responses := readResponses(t, d)
	if len(responses) != 1 {
		t.Fatalf("malformed request must still be answered, got %d responses", len(responses))
	}
	resp := responses[0]
	if resp.Decision.Decision != model.Deny {
		t.Errorf("expected DENY, got %s", resp.Decision.Decision)
	}
	if resp.Error == "" {
		t.Error("expected parse error surfaced")
	}
}

func TestUnknownKindDenied(t *testing.T) {
	d := testDaemon(t)
	path := dropRequest(t, d, "odd.json", Request{Kind: "telepathy"})

	d.Process(path)

	responses := readResponses(t, d)
	if len(responses) != 1 {
		t.Fatalf("expected 1 response, got %d", len(responses))
	}
	if responses[0].Decision.Decision != model.Deny {
		t.Errorf("expected DENY for unknown kind, got %s", responses[0].Decision.Decision)
	}
}

func TestContextPassedToEvaluation(t *testing.T) {
	d := testDaemon(t)
	path := dropRequest(t, d, "ctx.json", Request{
		Kind: "access",
		Access: &model.AccessRequest{
			ActorID: "alice", Operation: "memory.read", Space: "personal:alice.chen",
		},
		Context: map[string]any{"time_of_day": "night"},
	})
	d.Process(path)

	responses := readResponses(t, d)
	if len(responses) != 1 {
		t.Fatalf("expected 1 response, got %d", len(responses))
	}
	// No rules configured: the context is carried but harmless.
	if responses[0].Decision.Decision != model.Allow {
		t.Errorf("expected ALLOW, got %+v", responses[0].Decision)
	}
}

func TestIsRequestFile(t *testing.T) {
	cases := map[string]bool{
		"req.json":            true,
		"req.json.tmp":        false,
		"resp.tmp.json":       false,
		"notes.txt":           false,
		"nested/req.json":     true,
		"8f2c-uuid-like.json": true,
	}
	for name, want := range cases {
		if got := isRequestFile(name); got != want {
			t.Errorf("isRequestFile(%q): expected %v, got %v", name, want, got)
		}
	}
}
