// Package sharing is the space-hierarchy-aware sharing policy. It
// orchestrates the capability gate, the consent ledger, band policy,
// and the attribute evaluator into one decision per sharing request.
package sharing

import (
	"fmt"
	"sync"

	"github.com/kinship-net/kinship/internal/abac"
	"github.com/kinship-net/kinship/internal/bandfloor"
	"github.com/kinship-net/kinship/internal/consent"
	"github.com/kinship-net/kinship/internal/model"
	"github.com/kinship-net/kinship/internal/rbac"
	"github.com/kinship-net/kinship/internal/space"
)

// Policy evaluates sharing operations (REFER/PROJECT/DETACH/UNDO).
// All collaborators arrive through the constructor; the policy holds
// no hidden global state.
type Policy struct {
	rbac    *rbac.Engine
	consent *consent.Ledger
	abac    abac.Evaluator

	mu     sync.RWMutex
	floors *bandfloor.Floors
}

// NewPolicy wires the sharing policy. A nil evaluator defaults to
// AllowAll; nil floors default to empty.
func NewPolicy(engine *rbac.Engine, ledger *consent.Ledger, evaluator abac.Evaluator, floors *bandfloor.Floors) *Policy {
	if evaluator == nil {
		evaluator = abac.AllowAll{}
	}
	if floors == nil {
		floors, _ = bandfloor.New(nil)
	}
	return &Policy{rbac: engine, consent: ledger, abac: evaluator, floors: floors}
}

// SetFloors swaps the band-floor table. Used by the config watcher;
// in-flight evaluations keep the table they started with.
func (p *Policy) SetFloors(f *bandfloor.Floors) {
	p.mu.Lock()
	p.floors = f
	p.mu.Unlock()
}

func (p *Policy) currentFloors() *bandfloor.Floors {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.floors
}

// EvaluateShare runs the full sharing pipeline.
//
// Order (must not be changed):
//  1. Parse both space ids — DENY on malformed input
//  2. Capability gate — a missing capability is a final DENY, no
//     obligation accumulation
//  3. Cross-family consent for PROJECT/REFER
//  4. Band policy — hard denies stop here, soft reasons accumulate
//  5. Informational hierarchy/interfamily tags
//  6. Attribute evaluation over the enriched context
//  7. Obligation merge, interfamily audit forcing
//  8. ALLOW vs ALLOW_REDACTED from the merged redaction set
//
// Authorization outcomes are never errors: every failure mode inside
// the pipeline converts to a DENY with a machine-readable reason.
func (p *Policy) EvaluateShare(req model.ShareRequest, context map[string]any) model.PolicyDecision {
	if !model.ValidShareOp(req.Op) {
		return model.DenyDecision(fmt.Sprintf("unknown_operation:%s", req.Op))
	}
	if !model.ValidBand(req.Band) {
		return model.DenyDecision(fmt.Sprintf("invalid_band:%s", req.Band))
	}

	fromInfo, err := space.Parse(req.From)
	if err != nil {
		return model.DenyDecision(fmt.Sprintf("invalid_space_id:%s", req.From))
	}
	toInfo := fromInfo
	if req.To != "" {
		toInfo, err = space.Parse(req.To)
		if err != nil {
			return model.DenyDecision(fmt.Sprintf("invalid_space_id:%s", req.To))
		}
	}

	// Capability gate. A deny here is final and bypasses obligation
	// merging entirely.
	required := req.Op.RequiredCap()
	caps, err := p.rbac.ListCaps(req.ActorID, req.From)
	if err != nil {
		return model.DenyDecision(fmt.Sprintf("evaluation_error:%v", err))
	}
	if !contains(caps, required) {
		return model.DenyDecision("missing_cap:" + required)
	}

	var reasons []string
	obl := model.NewObligation()

	// Cross-family consent, PROJECT and REFER only. Implicit consent
	// is satisfied by definition and never consults the ledger.
	if (req.Op == model.OpProject || req.Op == model.OpRefer) && space.CrossFamily(fromInfo, toInfo) {
		level := space.RequiredConsentLevel(fromInfo, toInfo, string(req.Op))
		if level != space.ConsentImplicit {
			ok, err := p.consent.HasConsent(req.From, req.To, level)
			if err != nil {
				return model.DenyDecision(fmt.Sprintf("evaluation_error:%v", err))
			}
			if !ok {
				return model.DenyDecision("missing_consent:" + level)
			}
			reasons = append(reasons, "consent_verified:"+level)
		}
	}

	// Band policy.
	hard, soft := p.evaluateBandPolicy(req, fromInfo, toInfo, &obl)
	if len(hard) > 0 {
		return model.DenyDecision(append(reasons, hard...)...)
	}
	reasons = append(reasons, soft...)

	// Informational tags.
	delta := toInfo.Level - fromInfo.Level
	if delta < 0 {
		delta = -delta
	}
	if delta > 1 {
		obl.AddTags(fmt.Sprintf("hierarchy_jump:%d", delta))
	}
	if toInfo.Type == space.TypeInterfamily {
		obl.AddTags("interfamily_audit")
	}

	// Attribute evaluation over the enriched context.
	res := p.abac.Evaluate(req.Op.ABACOperation(), enrichContext(context, req, fromInfo, toInfo, delta))
	if res.Decision == model.Deny {
		return model.DenyDecision(append(reasons, res.Reasons...)...)
	}
	reasons = append(reasons, res.Reasons...)
	obl.Merge(res.Obligations)

	if toInfo.Type == space.TypeInterfamily {
		obl.LogAudit = true
		obl.AddTags("interfamily_operation")
	}

	return model.Finalize(reasons, obl, caps)
}

// evaluateBandPolicy applies the escalation rules for the request
// band. Hard reasons deny; soft reasons accumulate into the decision.
func (p *Policy) evaluateBandPolicy(req model.ShareRequest, from, to space.Info, obl *model.Obligation) (hard, soft []string) {
	external := to.Type == space.TypeExtended || to.Type == space.TypeInterfamily

	switch req.Band {
	case model.BandBlack:
		switch req.Op {
		case model.OpProject:
			hard = append(hard, "band_black_denies_projection")
		case model.OpDetach:
			hard = append(hard, "band_black_denies_detach")
		case model.OpRefer:
			// Reference under BLACK moves metadata only.
			soft = append(soft, "black_band_metadata_only")
		}
	case model.BandRed:
		switch req.Op {
		case model.OpProject:
			switch {
			case external:
				hard = append(hard, "band_red_denies_external_projection")
			case to.Level > from.Level:
				hard = append(hard, "band_red_denies_hierarchy_escalation")
			default:
				soft = append(soft, "red_band_metadata_only")
			}
		case model.OpDetach:
			if external {
				hard = append(hard, "band_red_denies_external_detach")
			}
		}
	case model.BandAmber:
		if req.Op == model.OpProject {
			if to.Type == space.TypeInterfamily {
				soft = append(soft, "amber_interfamily_requires_explicit_consent")
			}
			delta := to.Level - from.Level
			if delta < 0 {
				delta = -delta
			}
			if delta > 1 {
				soft = append(soft, "amber_hierarchy_jump")
			}
		}
	}

	// Configured minimum band per space: the higher floor of source
	// and target applies. A request below the floor is not denied;
	// the consuming layer must enforce the escalated band_min.
	floors := p.currentFloors()
	floor := floors.Lookup(from.SpaceID)
	if to.SpaceID != from.SpaceID {
		if tf := floors.Lookup(to.SpaceID); tf != "" {
			if floor == "" {
				floor = tf
			} else {
				floor = model.MaxBand(floor, tf)
			}
		}
	}
	if floor != "" && model.BandRank[req.Band] < model.BandRank[floor] {
		soft = append(soft, "band_floor_escalation:"+string(floor))
		obl.EscalateBandMin(floor)
	}

	return hard, soft
}

// enrichContext copies the caller context and injects space-risk
// metadata plus the adjusted safety-pressure signal for the attribute
// evaluator.
func enrichContext(base map[string]any, req model.ShareRequest, from, to space.Info, delta int) map[string]any {
	ctx := make(map[string]any, len(base)+12)
	for k, v := range base {
		ctx[k] = v
	}
	ctx["actor_id"] = req.ActorID
	ctx["band"] = string(req.Band)
	ctx["tags"] = req.Tags
	ctx["from_space_type"] = string(from.Type)
	ctx["to_space_type"] = string(to.Type)
	ctx["from_hierarchy_level"] = from.Level
	ctx["to_hierarchy_level"] = to.Level
	ctx["hierarchy_delta"] = delta
	ctx["cross_family"] = space.CrossFamily(from, to)
	if from.FamilyID != "" {
		ctx["from_family_id"] = from.FamilyID
	}
	if to.FamilyID != "" {
		ctx["to_family_id"] = to.FamilyID
	}
	if from.HouseholdID != "" {
		ctx["from_household_id"] = from.HouseholdID
	}
	if to.HouseholdID != "" {
		ctx["to_household_id"] = to.HouseholdID
	}

	pressure := 0.0
	if v, ok := ctx["safety_pressure"]; ok {
		if f, ok := toFloat(v); ok {
			pressure = f
		}
	}
	if delta > 1 {
		pressure += 0.2
	}
	if to.Type == space.TypeInterfamily {
		pressure += 0.3
	}
	if pressure > 1.0 {
		pressure = 1.0
	}
	ctx["safety_pressure"] = pressure
	return ctx
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}

func contains(list []string, want string) bool {
	for _, s := range list {
		if s == want {
			return true
		}
	}
	return false
}
