package model

import "time"

// ModelVersion identifies the decision model emitted in every
// PolicyDecision. Bump when decision semantics change.
const ModelVersion = "kinship-policy/1"

// Band classifies the security level of a sharing request.
type Band string

const (
	BandGreen Band = "GREEN"
	BandAmber Band = "AMBER"
	BandRed   Band = "RED"
	BandBlack Band = "BLACK"
)

// BandRank maps bands to comparable integers for monotonic escalation.
var BandRank = map[Band]int{
	BandGreen: 0,
	BandAmber: 1,
	BandRed:   2,
	BandBlack: 3,
}

// ValidBand reports whether b is one of the four known bands.
func ValidBand(b Band) bool {
	_, ok := BandRank[b]
	return ok
}

// MaxBand returns the higher-ranked of two bands.
func MaxBand(a, b Band) Band {
	if BandRank[a] >= BandRank[b] {
		return a
	}
	return b
}

// Decision is the terminal outcome of a policy evaluation.
type Decision string

const (
	Allow         Decision = "ALLOW"
	Deny          Decision = "DENY"
	AllowRedacted Decision = "ALLOW_REDACTED"
)

// ShareOp is a sharing/memory operation crossing space boundaries.
type ShareOp string

const (
	OpRefer   ShareOp = "REFER"
	OpProject ShareOp = "PROJECT"
	OpDetach  ShareOp = "DETACH"
	OpUndo    ShareOp = "UNDO"
)

// shareOpCaps maps each sharing operation to the capability the actor
// must hold in the source space.
var shareOpCaps = map[ShareOp]string{
	OpRefer:   "memory.refer",
	OpProject: "memory.project",
	OpDetach:  "memory.detach",
	OpUndo:    "memory.undo",
}

// RequiredCap returns the capability gating op, or "" for unknown ops.
func (op ShareOp) RequiredCap() string {
	return shareOpCaps[op]
}

// ABACOperation is the operation name passed to the attribute
// evaluator: "memory.<op>" in lower case.
func (op ShareOp) ABACOperation() string {
	if cap, ok := shareOpCaps[op]; ok {
		return cap
	}
	return "memory.unknown"
}

// ValidShareOp reports whether op is a known sharing operation.
func ValidShareOp(op ShareOp) bool {
	_, ok := shareOpCaps[op]
	return ok
}

// ShareRequest describes one sharing operation to evaluate.
type ShareRequest struct {
	Op      ShareOp  `json:"op" yaml:"op"`
	ActorID string   `json:"actor_id" yaml:"actor_id"`
	From    string   `json:"from_space" yaml:"from_space"`
	To      string   `json:"to_space,omitempty" yaml:"to_space,omitempty"`
	Band    Band     `json:"band" yaml:"band"`
	Tags    []string `json:"tags,omitempty" yaml:"tags,omitempty"`
}

// AccessRequest describes a plain (non-sharing) capability check.
// Operation doubles as the required capability name (e.g. "memory.read").
type AccessRequest struct {
	ActorID   string         `json:"actor_id" yaml:"actor_id"`
	Operation string         `json:"operation" yaml:"operation"`
	Space     string         `json:"space" yaml:"space"`
	Context   map[string]any `json:"context,omitempty" yaml:"context,omitempty"`
}

// Obligation is the side-conditions attached to an allow-class
// decision. LogAudit defaults to true; build with NewObligation.
type Obligation struct {
	Redact     []string `json:"redact,omitempty"`
	BandMin    Band     `json:"band_min,omitempty"`
	LogAudit   bool     `json:"log_audit"`
	ReasonTags []string `json:"reason_tags,omitempty"`
}

// NewObligation returns the neutral obligation set: nothing to redact,
// no band floor, audit logging on.
func NewObligation() Obligation {
	return Obligation{LogAudit: true}
}

// AddRedact appends redaction categories, deduplicating.
func (o *Obligation) AddRedact(cats ...string) {
	for _, c := range cats {
		if c == "" {
			continue
		}
		seen := false
		for _, have := range o.Redact {
			if have == c {
				seen = true
				break
			}
		}
		if !seen {
			o.Redact = append(o.Redact, c)
		}
	}
}

// AddTags appends reason tags. Tags are append-only through the
// pipeline: order records evaluation history.
func (o *Obligation) AddTags(tags ...string) {
	for _, t := range tags {
		if t != "" {
			o.ReasonTags = append(o.ReasonTags, t)
		}
	}
}

// EscalateBandMin raises the minimum band, never lowers it.
func (o *Obligation) EscalateBandMin(b Band) {
	if b == "" {
		return
	}
	if o.BandMin == "" || BandRank[b] > BandRank[o.BandMin] {
		o.BandMin = b
	}
}

// Merge folds another obligation set into o. Redaction unions, band
// floors escalate, audit logging is sticky-on, tags append.
func (o *Obligation) Merge(other Obligation) {
	o.AddRedact(other.Redact...)
	o.EscalateBandMin(other.BandMin)
	if other.LogAudit {
		o.LogAudit = true
	}
	o.AddTags(other.ReasonTags...)
}

// PolicyDecision is the canonical evaluation result.
type PolicyDecision struct {
	Decision      Decision   `json:"decision"`
	Reasons       []string   `json:"reasons"`
	Obligations   Obligation `json:"obligations"`
	EffectiveCaps []string   `json:"effective_caps,omitempty"`
	ModelVersion  string     `json:"model_version"`
}

// DenyDecision builds a terminal DENY. Deny bypasses obligation
// merging: the obligation set stays neutral.
func DenyDecision(reasons ...string) PolicyDecision {
	return PolicyDecision{
		Decision:     Deny,
		Reasons:      reasons,
		Obligations:  NewObligation(),
		ModelVersion: ModelVersion,
	}
}

// Finalize picks ALLOW vs ALLOW_REDACTED from the obligation set.
// Only valid on allow-class outcomes; hard denies never reach it.
func Finalize(reasons []string, obl Obligation, caps []string) PolicyDecision {
	d := Allow
	if len(obl.Redact) > 0 {
		d = AllowRedacted
	}
	return PolicyDecision{
		Decision:      d,
		Reasons:       reasons,
		Obligations:   obl,
		EffectiveCaps: caps,
		ModelVersion:  ModelVersion,
	}
}

// Role groups capabilities under a name, optionally inheriting from
// other roles. The inheritance graph must stay acyclic.
type Role struct {
	Name        string    `json:"name" yaml:"name"`
	Caps        []string  `json:"caps" yaml:"caps"`
	Inherits    []string  `json:"inherits,omitempty" yaml:"inherits,omitempty"`
	Description string    `json:"description,omitempty" yaml:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at" yaml:"created_at,omitempty"`
}

// Binding grants a principal a role within one space.
type Binding struct {
	PrincipalID string    `json:"principal_id" yaml:"principal_id"`
	Role        string    `json:"role" yaml:"role"`
	SpaceID     string    `json:"space_id" yaml:"space_id"`
	CreatedAt   time.Time `json:"created_at" yaml:"created_at,omitempty"`
}

// AssignmentStrategy controls how a dynamic assignment activates.
type AssignmentStrategy string

const (
	StrategyImmediate        AssignmentStrategy = "immediate"
	StrategyApprovalRequired AssignmentStrategy = "approval_required"
	StrategyConditional      AssignmentStrategy = "conditional"
	StrategyScheduled        AssignmentStrategy = "scheduled"
)

// ValidStrategy reports whether s is a known assignment strategy.
func ValidStrategy(s AssignmentStrategy) bool {
	switch s {
	case StrategyImmediate, StrategyApprovalRequired, StrategyConditional, StrategyScheduled:
		return true
	}
	return false
}

// AssignmentStatus is the lifecycle state of a dynamic assignment.
type AssignmentStatus string

const (
	AssignmentPending  AssignmentStatus = "pending"
	AssignmentApproved AssignmentStatus = "approved"
	AssignmentRejected AssignmentStatus = "rejected"
	AssignmentExpired  AssignmentStatus = "expired"
	AssignmentActive   AssignmentStatus = "active"
)

// Assignment is a lifecycle-managed role grant.
type Assignment struct {
	ID            string             `json:"assignment_id"`
	PrincipalID   string             `json:"principal_id"`
	Role          string             `json:"role"`
	SpaceID       string             `json:"space_id"`
	Strategy      AssignmentStrategy `json:"strategy"`
	Status        AssignmentStatus   `json:"status"`
	CreatedAt     time.Time          `json:"created_at"`
	ApprovedBy    string             `json:"approved_by,omitempty"`
	ApprovedAt    *time.Time         `json:"approved_at,omitempty"`
	ExpiresAt     *time.Time         `json:"expires_at,omitempty"`
	Justification string             `json:"justification,omitempty"`
	RejectedBy    string             `json:"rejected_by,omitempty"`
	RejectReason  string             `json:"reject_reason,omitempty"`
}

// ConsentRecord is one cross-space sharing consent. Uniqueness key is
// (from, to, purpose); repeat grants overwrite metadata.
type ConsentRecord struct {
	FromSpace string     `json:"from_space" yaml:"from_space"`
	ToSpace   string     `json:"to_space" yaml:"to_space"`
	Purpose   string     `json:"purpose" yaml:"purpose"`
	GrantedBy string     `json:"granted_by" yaml:"granted_by"`
	GrantedAt time.Time  `json:"granted_at" yaml:"granted_at,omitempty"`
	ExpiresAt *time.Time `json:"expires_at,omitempty" yaml:"expires_at,omitempty"`
}
