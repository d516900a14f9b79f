// Package decision is the general-purpose decision engine for
// non-sharing operations: a capability gate reconciled with the
// attribute evaluator under conflict-resolution and default-deny
// rules.
package decision

import (
	"fmt"
	"sync"

	"github.com/kinship-net/kinship/internal/abac"
	"github.com/kinship-net/kinship/internal/consent"
	"github.com/kinship-net/kinship/internal/model"
	"github.com/kinship-net/kinship/internal/rbac"
	"github.com/kinship-net/kinship/internal/sharing"
	"github.com/kinship-net/kinship/internal/space"
)

// Engine evaluates plain capability-checked operations. Strict mode
// and the default terminal decision are policy knobs on the engine,
// not per-request parameters.
type Engine struct {
	rbac    *rbac.Engine
	abac    abac.Evaluator
	consent *consent.Ledger
	sharing *sharing.Policy

	mu             sync.RWMutex
	strictMode     bool
	defaultOutcome model.Decision
}

// NewEngine wires the decision engine. Strict mode defaults on; the
// default terminal decision defaults to ALLOW once both gates pass.
func NewEngine(rb *rbac.Engine, evaluator abac.Evaluator, ledger *consent.Ledger, share *sharing.Policy) *Engine {
	if evaluator == nil {
		evaluator = abac.AllowAll{}
	}
	return &Engine{
		rbac:           rb,
		abac:           evaluator,
		consent:        ledger,
		sharing:        share,
		strictMode:     true,
		defaultOutcome: model.Allow,
	}
}

// SetStrictMode toggles whether an attribute-engine DENY is terminal.
func (e *Engine) SetStrictMode(on bool) {
	e.mu.Lock()
	e.strictMode = on
	e.mu.Unlock()
}

// SetDefaultOutcome sets the terminal decision applied when both
// gates pass without conflict. Anything but ALLOW collapses to DENY.
func (e *Engine) SetDefaultOutcome(d model.Decision) {
	e.mu.Lock()
	e.defaultOutcome = d
	e.mu.Unlock()
}

func (e *Engine) knobs() (strict bool, outcome model.Decision) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.strictMode, e.defaultOutcome
}

// EvaluateAccess gates (actor, operation, space) through RBAC and the
// attribute evaluator. The operation name doubles as the required
// capability. Evaluation never raises past this boundary: any
// unexpected internal failure converts to DENY.
func (e *Engine) EvaluateAccess(req model.AccessRequest) (out model.PolicyDecision) {
	defer func() {
		if r := recover(); r != nil {
			out = model.DenyDecision(fmt.Sprintf("evaluation_error:%v", r))
		}
	}()

	strict, defaultOutcome := e.knobs()

	caps, err := e.rbac.ListCaps(req.ActorID, req.Space)
	if err != nil {
		return model.DenyDecision(fmt.Sprintf("evaluation_error:%v", err))
	}
	if !contains(caps, req.Operation) {
		return model.DenyDecision("missing_cap:" + req.Operation)
	}

	ctx := make(map[string]any, len(req.Context)+2)
	for k, v := range req.Context {
		ctx[k] = v
	}
	ctx["actor_id"] = req.ActorID
	ctx["space_id"] = req.Space

	res := e.abac.Evaluate(req.Operation, ctx)
	if res.Decision == model.Deny {
		if strict {
			return model.DenyDecision(append([]string{"abac_denied"}, res.Reasons...)...)
		}
		// Non-strict: the disagreement itself still resolves to DENY,
		// tagged as a conflict rather than a terminal attribute veto.
		return model.DenyDecision(append([]string{"conflict:rbac_allow_abac_deny"}, res.Reasons...)...)
	}

	if defaultOutcome != model.Allow {
		return model.DenyDecision("default_deny")
	}

	reasons := []string{"rbac_capability_check", "no_conflicts"}
	reasons = append(reasons, res.Reasons...)
	obl := model.NewObligation()
	obl.Merge(res.Obligations)
	return model.Finalize(reasons, obl, caps)
}

// Allowed reports whether a decision is allow-class.
func Allowed(d model.PolicyDecision) bool {
	return d.Decision == model.Allow || d.Decision == model.AllowRedacted
}

// CanRead reports whether the actor may read in the space.
func (e *Engine) CanRead(actor, spaceID string) bool {
	return Allowed(e.EvaluateAccess(model.AccessRequest{ActorID: actor, Operation: "memory.read", Space: spaceID}))
}

// CanWrite reports whether the actor may write in the space.
func (e *Engine) CanWrite(actor, spaceID string) bool {
	return Allowed(e.EvaluateAccess(model.AccessRequest{ActorID: actor, Operation: "memory.write", Space: spaceID}))
}

// CanManagePrivacy reports whether the actor may manage privacy
// settings in the space.
func (e *Engine) CanManagePrivacy(actor, spaceID string) bool {
	return Allowed(e.EvaluateAccess(model.AccessRequest{ActorID: actor, Operation: "privacy.manage", Space: spaceID}))
}

// CanProject evaluates a GREEN-band projection through the full
// sharing pipeline.
func (e *Engine) CanProject(actor, from, to string) bool {
	if e.sharing == nil {
		return false
	}
	d := e.sharing.EvaluateShare(model.ShareRequest{
		Op:      model.OpProject,
		ActorID: actor,
		From:    from,
		To:      to,
		Band:    model.BandGreen,
	}, nil)
	return Allowed(d)
}

// RequiresConsent reports whether op between the two spaces needs a
// ledger record, and which level. Parse failures report required
// consent: unparseable input must not read as consent-free.
func (e *Engine) RequiresConsent(from, to string, op model.ShareOp) (bool, string) {
	fi, err := space.Parse(from)
	if err != nil {
		return true, ""
	}
	ti, err := space.Parse(to)
	if err != nil {
		return true, ""
	}
	if op != model.OpProject && op != model.OpRefer {
		return false, ""
	}
	if !space.CrossFamily(fi, ti) {
		return false, ""
	}
	level := space.RequiredConsentLevel(fi, ti, string(op))
	if level == space.ConsentImplicit {
		return false, level
	}
	return true, level
}

// CheckOperations evaluates several operations for one (actor, space)
// pair in one call.
func (e *Engine) CheckOperations(actor, spaceID string, ops []string, ctx map[string]any) map[string]model.PolicyDecision {
	out := make(map[string]model.PolicyDecision, len(ops))
	for _, op := range ops {
		out[op] = e.EvaluateAccess(model.AccessRequest{
			ActorID:   actor,
			Operation: op,
			Space:     spaceID,
			Context:   ctx,
		})
	}
	return out
}

// EffectiveCapabilities exposes the raw RBAC resolution.
func (e *Engine) EffectiveCapabilities(actor, spaceID string) ([]string, error) {
	return e.rbac.ListCaps(actor, spaceID)
}

func contains(list []string, want string) bool {
	for _, s := range list {
		if s == want {
			return true
		}
	}
	return false
}
