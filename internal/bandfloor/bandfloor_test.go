package bandfloor

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/kinship-net/kinship/internal/model"
)

func TestLookupExactBeatsPrefix(t *testing.T) {
	f, err := New(map[string]model.Band{
		"interfamily:*":            model.BandRed,
		"interfamily:neighborhood": model.BandAmber,
	})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if got := f.Lookup("interfamily:neighborhood"); got != model.BandAmber {
		t.Errorf("expected exact match AMBER, got %s", got)
	}
	if got := f.Lookup("interfamily:city"); got != model.BandRed {
		t.Errorf("expected prefix match RED, got %s", got)
	}
}

func TestLookupLongestPrefixWins(t *testing.T) {
	f, err := New(map[string]model.Band{
		"personal:*":       model.BandGreen,
		"personal:alice.*": model.BandRed,
	})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if got := f.Lookup("personal:alice.chen"); got != model.BandRed {
		t.Errorf("expected longest prefix RED, got %s", got)
	}
	if got := f.Lookup("personal:bob.chen"); got != model.BandGreen {
		t.Errorf("expected GREEN, got %s", got)
	}
}

func TestLookupNoMatch(t *testing.T) {
	f, err := New(map[string]model.Band{"extended:*": model.BandAmber})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if got := f.Lookup("personal:alice.chen"); got != "" {
		t.Errorf("expected empty band, got %s", got)
	}
}

func TestNewRejectsUnknownBand(t *testing.T) {
	if _, err := New(map[string]model.Band{"personal:*": "PURPLE"}); err == nil {
		t.Error("expected unknown band rejected")
	}
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "floors.yaml")
	if err := os.WriteFile(path, []byte("\"interfamily:*\": RED\n\"extended:chen\": AMBER\n"), 0600); err != nil {
		t.Fatalf("write: %v", err)
	}
	f, err := LoadFile(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got := f.Lookup("interfamily:city"); got != model.BandRed {
		t.Errorf("expected RED, got %s", got)
	}
	if got := f.Lookup("extended:chen"); got != model.BandAmber {
		t.Errorf("expected AMBER, got %s", got)
	}

	// Missing file yields empty floors, not an error.
	empty, err := LoadFile(filepath.Join(dir, "absent.yaml"))
	if err != nil {
		t.Fatalf("load missing: %v", err)
	}
	if got := empty.Lookup("interfamily:city"); got != "" {
		t.Errorf("expected no floor, got %s", got)
	}

	// Invalid YAML is an error.
	if err := os.WriteFile(path, []byte(":\n :"), 0600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := LoadFile(path); err == nil {
		t.Error("expected parse error")
	}
}
