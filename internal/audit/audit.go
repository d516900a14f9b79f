// Package audit is the reference decision-event sink: an append-only
// JSONL log with SHA-256 hash chaining. The decision engines never
// write here themselves; the owning service records events as a side
// effect of serving decisions.
package audit

import (
	"bufio"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kinship-net/kinship/internal/model"
)

// GenesisHash is the prev_hash of the first entry in a new log.
const GenesisHash = "sha256:0000000000000000000000000000000000000000000000000000000000000000"

// Event is one flat decision record. All fields are scalars or string
// slices so json.Marshal field order is deterministic and the hash
// chain reproducible.
type Event struct {
	Timestamp    string   `json:"ts"`
	DecisionID   string   `json:"decision_id"`
	Layer        string   `json:"layer"`
	Operation    string   `json:"operation"`
	Actor        string   `json:"actor"`
	FromSpace    string   `json:"from_space,omitempty"`
	ToSpace      string   `json:"to_space,omitempty"`
	Band         string   `json:"band,omitempty"`
	Decision     string   `json:"decision"`
	Reasons      []string `json:"reasons"`
	Redacted     bool     `json:"redacted"`
	BandMin      string   `json:"band_min,omitempty"`
	ModelVersion string   `json:"model_version"`
	PrevHash     string   `json:"prev_hash"`
}

// ShareEvent flattens a sharing decision into an Event.
func ShareEvent(req model.ShareRequest, d model.PolicyDecision) Event {
	return Event{
		DecisionID:   uuid.NewString(),
		Layer:        "sharing",
		Operation:    req.Op.ABACOperation(),
		Actor:        req.ActorID,
		FromSpace:    req.From,
		ToSpace:      req.To,
		Band:         string(req.Band),
		Decision:     string(d.Decision),
		Reasons:      d.Reasons,
		Redacted:     len(d.Obligations.Redact) > 0,
		BandMin:      string(d.Obligations.BandMin),
		ModelVersion: d.ModelVersion,
	}
}

// AccessEvent flattens an access decision into an Event.
func AccessEvent(req model.AccessRequest, d model.PolicyDecision) Event {
	return Event{
		DecisionID:   uuid.NewString(),
		Layer:        "access",
		Operation:    req.Operation,
		Actor:        req.ActorID,
		FromSpace:    req.Space,
		Decision:     string(d.Decision),
		Reasons:      d.Reasons,
		Redacted:     len(d.Obligations.Redact) > 0,
		BandMin:      string(d.Obligations.BandMin),
		ModelVersion: d.ModelVersion,
	}
}

// Sink is what the serving layer needs from an audit destination.
type Sink interface {
	Record(Event) error
}

// Log is the file-backed Sink. Each entry's prev_hash is the hash of
// the previous line, forming a tamper-evident chain.
type Log struct {
	path     string
	file     *os.File
	prevHash string
	mu       sync.Mutex
}

// Open opens or creates a log for appending, recovering the chain
// tail from the last existing line.
func Open(path string) (*Log, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("audit: create directory: %w", err)
	}

	prevHash := GenesisHash
	if info, err := os.Stat(path); err == nil && info.Size() > 0 {
		last, err := lastLine(path)
		if err != nil {
			return nil, err
		}
		if len(last) > 0 {
			prevHash = HashLine(last)
		}
	}

	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return nil, fmt.Errorf("audit: open file: %w", err)
	}
	return &Log{path: path, file: file, prevHash: prevHash}, nil
}

func lastLine(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("audit: read existing log: %w", err)
	}
	defer f.Close()
	scanner := bufio.NewScanner(f)
	var last []byte
	for scanner.Scan() {
		last = append(last[:0], scanner.Bytes()...)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("audit: scan existing log: %w", err)
	}
	return last, nil
}

// Record appends an event with hash chaining and syncs to disk.
func (l *Log) Record(ev Event) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if ev.Timestamp == "" {
		ev.Timestamp = time.Now().UTC().Format("2006-01-02T15:04:05.000Z")
	}
	if ev.DecisionID == "" {
		ev.DecisionID = uuid.NewString()
	}
	ev.PrevHash = l.prevHash

	line, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("audit: marshal event: %w", err)
	}
	if _, err := l.file.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("audit: write event: %w", err)
	}
	if err := l.file.Sync(); err != nil {
		return fmt.Errorf("audit: sync: %w", err)
	}
	l.prevHash = HashLine(line)
	return nil
}

// Close flushes and closes the underlying file.
func (l *Log) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.file.Close()
}

// HashLine returns "sha256:<hex>" of the given bytes.
func HashLine(line []byte) string {
	h := sha256.Sum256(line)
	return "sha256:" + hex.EncodeToString(h[:])
}

// Discard is a Sink that drops every event. For callers that run
// without an audit collaborator (tests, dry runs).
type Discard struct{}

// Record implements Sink.
func (Discard) Record(Event) error { return nil }
