// Package config loads the kinship service configuration: store and
// log locations, decision-engine knobs, band floors, attribute rules,
// and seed roles.
package config

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/kinship-net/kinship/internal/abac"
	"github.com/kinship-net/kinship/internal/model"
)

// Config holds all configurable service parameters.
type Config struct {
	StorePath    string `yaml:"store_path"`
	AuditLogPath string `yaml:"audit_log_path"`
	HistoryPath  string `yaml:"history_path"`
	InboxDir     string `yaml:"inbox_dir"`
	OutboxDir    string `yaml:"outbox_dir"`

	StrictMode     *bool  `yaml:"strict_mode"`
	DefaultOutcome string `yaml:"default_outcome"`

	// BandFloorsPath points at a standalone floors YAML. When set it
	// overrides BandFloors and `kinship serve` live-reloads it.
	BandFloorsPath string `yaml:"band_floors_path"`

	BandFloors map[string]model.Band `yaml:"band_floors"`
	ABACRules  []abac.Rule           `yaml:"abac_rules"`
	SeedRoles  []model.Role          `yaml:"roles"`
}

// Strict reports the strict-mode knob, defaulting on.
func (c *Config) Strict() bool {
	if c.StrictMode == nil {
		return true
	}
	return *c.StrictMode
}

// Outcome returns the default terminal decision, defaulting to ALLOW.
func (c *Config) Outcome() model.Decision {
	if c.DefaultOutcome == "" {
		return model.Allow
	}
	return model.Decision(c.DefaultOutcome)
}

// Dir returns the kinship home directory.
func Dir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "kinship")
	}
	return filepath.Join(home, ".kinship")
}

// DefaultConfig returns the built-in configuration.
func DefaultConfig() *Config {
	dir := Dir()
	return &Config{
		StorePath:    filepath.Join(dir, "policy.json"),
		AuditLogPath: filepath.Join(dir, "logs", "decisions.jsonl"),
		HistoryPath:  filepath.Join(dir, "history.db"),
		InboxDir:     filepath.Join(dir, "inbox"),
		OutboxDir:    filepath.Join(dir, "outbox"),
	}
}

// DefaultPath is the default config file location.
func DefaultPath() string {
	return filepath.Join(Dir(), "config.yaml")
}

// Load reads configuration from a YAML file. Empty path falls back to
// ~/.kinship/config.yaml. Missing file returns defaults. Invalid YAML
// returns an error.
func Load(path string) (*Config, error) {
	cfg, _, err := LoadWithHash(path)
	return cfg, err
}

// LoadWithHash additionally returns "sha256:<hex>" of the raw config
// bytes; with no file present the hash is that of empty input.
func LoadWithHash(path string) (*Config, string, error) {
	if path == "" {
		path = DefaultPath()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			h := sha256.Sum256(nil)
			return DefaultConfig(), "sha256:" + hex.EncodeToString(h[:]), nil
		}
		return nil, "", fmt.Errorf("read config: %w", err)
	}
	h := sha256.Sum256(data)
	hash := "sha256:" + hex.EncodeToString(h[:])

	// Defaults first; YAML overwrites only specified fields.
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, "", fmt.Errorf("parse config: %w", err)
	}
	if cfg.DefaultOutcome != "" {
		switch model.Decision(cfg.DefaultOutcome) {
		case model.Allow, model.Deny:
		default:
			return nil, "", fmt.Errorf("config: default_outcome must be ALLOW or DENY, got %q", cfg.DefaultOutcome)
		}
	}
	for pattern, band := range cfg.BandFloors {
		if !model.ValidBand(band) {
			return nil, "", fmt.Errorf("config: band floor %q: unknown band %q", pattern, band)
		}
	}
	return cfg, hash, nil
}

// DefaultConfigYAML returns a commented config for `kinship init`.
func DefaultConfigYAML() string {
	return `# kinship configuration
# Generated by: kinship init
#
# Paths default under ~/.kinship/ when omitted.
#store_path: /var/lib/kinship/policy.json
#audit_log_path: /var/lib/kinship/logs/decisions.jsonl
#history_path: /var/lib/kinship/history.db

# Decision engine knobs.
# strict_mode: an attribute-engine DENY is terminal (default true)
# default_outcome: terminal decision when both gates pass (ALLOW|DENY)
strict_mode: true
default_outcome: ALLOW

# Minimum band per space. Keys are exact space ids or "prefix*"
# wildcards; the longest matching prefix wins, exact beats wildcard.
band_floors:
  "interfamily:*": RED
  "extended:*": AMBER

# Attribute rules for the built-in evaluator. Deny rules take
# precedence. Conditions are "<attr> <op> <value>" with operators
# ==, !=, >=, <=, >, <, contains.
abac_rules:
  - name: high_pressure_redacts_children
    when: ["safety_pressure >= 0.7"]
    effect: allow_redacted
    redact: [child_content]
    reason_tags: [elevated_safety_pressure]
  - name: block_saturated_pressure
    when: ["safety_pressure >= 0.95"]
    effect: deny

# Roles seeded into an empty store on first run.
roles:
  - name: member
    caps: [memory.read, memory.write, memory.refer]
  - name: guardian
    caps: [memory.project, memory.detach, memory.undo, privacy.manage]
    inherits: [member]
`
}
