package history

import (
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/kinship-net/kinship/internal/audit"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func testEvent(id, actor, decision string, ts time.Time) audit.Event {
	return audit.Event{
		DecisionID:   id,
		Timestamp:    ts.UTC().Format(time.RFC3339),
		Layer:        "access",
		Operation:    "memory.read",
		Actor:        actor,
		FromSpace:    "personal:alice.chen",
		Decision:     decision,
		Reasons:      []string{"rbac_capability_check"},
		ModelVersion: "kinship-policy/1",
	}
}

func TestRecordAndRecent(t *testing.T) {
	s := testStore(t)
	base := time.Now()
	for i := 0; i < 5; i++ {
		ev := testEvent(fmt.Sprintf("d%d", i), "alice", "ALLOW", base.Add(time.Duration(i)*time.Second))
		if err := s.Record(ev); err != nil {
			t.Fatalf("record %d: %v", i, err)
		}
	}

	recent, err := s.Recent(3)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(recent) != 3 {
		t.Fatalf("expected 3 events, got %d", len(recent))
	}
	// Newest first
	if recent[0].DecisionID != "d4" || recent[2].DecisionID != "d2" {
		t.Errorf("unexpected order: %s .. %s", recent[0].DecisionID, recent[2].DecisionID)
	}
	if len(recent[0].Reasons) != 1 || recent[0].Reasons[0] != "rbac_capability_check" {
		t.Errorf("reasons not round-tripped: %v", recent[0].Reasons)
	}
}

func TestRecordIdempotentByDecisionID(t *testing.T) {
	s := testStore(t)
	ev := testEvent("dup", "alice", "ALLOW", time.Now())
	if err := s.Record(ev); err != nil {
		t.Fatalf("record: %v", err)
	}
	if err := s.Record(ev); err != nil {
		t.Fatalf("replay: %v", err)
	}
	recent, err := s.Recent(10)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(recent) != 1 {
		t.Errorf("expected replay ignored, got %d rows", len(recent))
	}
}

func TestByActor(t *testing.T) {
	s := testStore(t)
	base := time.Now()
	s.Record(testEvent("a1", "alice", "ALLOW", base))
	s.Record(testEvent("b1", "bob", "DENY", base.Add(time.Second)))
	s.Record(testEvent("a2", "alice", "DENY", base.Add(2*time.Second)))

	events, err := s.ByActor("alice", 10)
	if err != nil {
		t.Fatalf("by actor: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 events for alice, got %d", len(events))
	}
	for _, ev := range events {
		if ev.Actor != "alice" {
			t.Errorf("foreign actor in results: %s", ev.Actor)
		}
	}
}

func TestDenyCount(t *testing.T) {
	s := testStore(t)
	base := time.Now()
	s.Record(testEvent("old", "alice", "DENY", base.Add(-2*time.Hour)))
	s.Record(testEvent("new1", "alice", "DENY", base))
	s.Record(testEvent("new2", "bob", "DENY", base))
	s.Record(testEvent("ok", "bob", "ALLOW", base))

	n, err := s.DenyCount(base.Add(-time.Hour))
	if err != nil {
		t.Fatalf("deny count: %v", err)
	}
	if n != 2 {
		t.Errorf("expected 2 recent denies, got %d", n)
	}
}

type failSink struct{}

func (failSink) Record(audit.Event) error { return fmt.Errorf("sink down") }

func TestFanoutStopsOnFirstError(t *testing.T) {
	s := testStore(t)
	f := Fanout{failSink{}, s}
	if err := f.Record(testEvent("x", "alice", "ALLOW", time.Now())); err == nil {
		t.Fatal("expected fanout error")
	}
	recent, _ := s.Recent(10)
	if len(recent) != 0 {
		t.Errorf("later sinks must not run after a failure, got %d rows", len(recent))
	}

	ok := Fanout{audit.Discard{}, s}
	if err := ok.Record(testEvent("y", "alice", "ALLOW", time.Now())); err != nil {
		t.Fatalf("fanout: %v", err)
	}
	recent, _ = s.Recent(10)
	if len(recent) != 1 {
		t.Errorf("expected 1 row, got %d", len(recent))
	}
}
