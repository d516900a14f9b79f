// Package service assembles the decision point from configuration:
// store, engines, evaluator, floors, and sinks. The CLI and the inbox
// daemon both serve through it; recording decision events is this
// layer's job, never the engines'.
package service

import (
	"fmt"

	"github.com/kinship-net/kinship/internal/abac"
	"github.com/kinship-net/kinship/internal/audit"
	"github.com/kinship-net/kinship/internal/bandfloor"
	"github.com/kinship-net/kinship/internal/config"
	"github.com/kinship-net/kinship/internal/consent"
	"github.com/kinship-net/kinship/internal/decision"
	"github.com/kinship-net/kinship/internal/history"
	"github.com/kinship-net/kinship/internal/model"
	"github.com/kinship-net/kinship/internal/rbac"
	"github.com/kinship-net/kinship/internal/sharing"
	"github.com/kinship-net/kinship/internal/store"
)

// Service is the wired decision point.
type Service struct {
	Cfg      *config.Config
	Store    store.Store
	RBAC     *rbac.Engine
	Consent  *consent.Ledger
	Sharing  *sharing.Policy
	Decision *decision.Engine

	sink    audit.Sink
	log     *audit.Log
	History *history.Store
}

// Options tweak assembly. Zero value wires everything from config.
type Options struct {
	// Store overrides the file store (tests use a MemStore).
	Store store.Store
	// Evaluator overrides the built-in rule evaluator.
	Evaluator abac.Evaluator
	// DisableSinks skips the audit log and history database.
	DisableSinks bool
}

// Open wires a Service from configuration.
func Open(cfg *config.Config, opts Options) (*Service, error) {
	st := opts.Store
	if st == nil {
		fs, err := store.NewFileStore(cfg.StorePath)
		if err != nil {
			return nil, err
		}
		st = fs
	}

	evaluator := opts.Evaluator
	if evaluator == nil {
		re, err := abac.NewRuleEvaluator(cfg.ABACRules)
		if err != nil {
			return nil, fmt.Errorf("wire abac rules: %w", err)
		}
		evaluator = re
	}

	var floors *bandfloor.Floors
	var err error
	if cfg.BandFloorsPath != "" {
		floors, err = bandfloor.LoadFile(cfg.BandFloorsPath)
	} else {
		floors, err = bandfloor.New(cfg.BandFloors)
	}
	if err != nil {
		return nil, err
	}

	engine := rbac.NewEngine(st)
	ledger := consent.NewLedger(st)
	share := sharing.NewPolicy(engine, ledger, evaluator, floors)
	dec := decision.NewEngine(engine, evaluator, ledger, share)
	dec.SetStrictMode(cfg.Strict())
	dec.SetDefaultOutcome(cfg.Outcome())

	svc := &Service{
		Cfg:      cfg,
		Store:    st,
		RBAC:     engine,
		Consent:  ledger,
		Sharing:  share,
		Decision: dec,
		sink:     audit.Discard{},
	}

	if !opts.DisableSinks {
		log, err := audit.Open(cfg.AuditLogPath)
		if err != nil {
			return nil, err
		}
		hist, err := history.Open(cfg.HistoryPath)
		if err != nil {
			log.Close()
			return nil, err
		}
		svc.log = log
		svc.History = hist
		svc.sink = history.Fanout{log, hist}
	}

	if err := svc.seedRoles(); err != nil {
		svc.Close()
		return nil, err
	}
	return svc, nil
}

// seedRoles defines configured roles into an empty store. A store
// with any roles already present is left alone: seeds are bootstrap,
// not reconciliation.
func (s *Service) seedRoles() error {
	doc, err := s.Store.Read()
	if err != nil {
		return err
	}
	if len(doc.Roles) > 0 || len(s.Cfg.SeedRoles) == 0 {
		return nil
	}
	for _, role := range s.Cfg.SeedRoles {
		if err := s.RBAC.DefineRole(role); err != nil {
			return fmt.Errorf("seed role %q: %w", role.Name, err)
		}
	}
	return nil
}

// Close releases the sinks. The store needs no teardown.
func (s *Service) Close() error {
	var first error
	if s.log != nil {
		if err := s.log.Close(); err != nil {
			first = err
		}
	}
	if s.History != nil {
		if err := s.History.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// EvaluateShare evaluates a sharing request and records the decision
// event. A sink failure is reported but never changes the decision.
func (s *Service) EvaluateShare(req model.ShareRequest, ctx map[string]any) (model.PolicyDecision, error) {
	d := s.Sharing.EvaluateShare(req, ctx)
	if err := s.sink.Record(audit.ShareEvent(req, d)); err != nil {
		return d, fmt.Errorf("record decision: %w", err)
	}
	return d, nil
}

// EvaluateAccess evaluates a plain capability check and records the
// decision event.
func (s *Service) EvaluateAccess(req model.AccessRequest) (model.PolicyDecision, error) {
	d := s.Decision.EvaluateAccess(req)
	if err := s.sink.Record(audit.AccessEvent(req, d)); err != nil {
		return d, fmt.Errorf("record decision: %w", err)
	}
	return d, nil
}
