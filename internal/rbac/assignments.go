package rbac

import (
	"sort"
	"time"

	"github.com/kinship-net/kinship/internal/model"
	"github.com/kinship-net/kinship/internal/store"
)

// AssignmentRequest carries the inputs for a dynamic role assignment.
type AssignmentRequest struct {
	PrincipalID   string
	Role          string
	SpaceID       string
	Strategy      model.AssignmentStrategy
	Justification string
	ExpiresAt     *time.Time
}

// RequestAssignment records a dynamic assignment. Strategy immediate
// activates it and creates the binding in the same atomic update;
// every other strategy leaves it pending until approved or rejected.
func (e *Engine) RequestAssignment(req AssignmentRequest) (model.Assignment, error) {
	if !model.ValidStrategy(req.Strategy) {
		return model.Assignment{}, model.NewRBACError(model.CodeAssignmentNotFound,
			"unknown assignment strategy %q", req.Strategy)
	}
	asn := model.Assignment{
		ID:            e.newID(),
		PrincipalID:   req.PrincipalID,
		Role:          req.Role,
		SpaceID:       req.SpaceID,
		Strategy:      req.Strategy,
		Status:        model.AssignmentPending,
		CreatedAt:     e.now().UTC(),
		ExpiresAt:     req.ExpiresAt,
		Justification: req.Justification,
	}
	_, err := e.store.Update(func(doc *store.Document) error {
		if _, ok := doc.Roles[req.Role]; !ok {
			return model.NewRBACError(model.CodeUnknownRole,
				"cannot assign undefined role %q", req.Role)
		}
		if req.Strategy == model.StrategyImmediate {
			asn.Status = model.AssignmentActive
			if err := addBinding(doc, model.Binding{
				PrincipalID: asn.PrincipalID,
				Role:        asn.Role,
				SpaceID:     asn.SpaceID,
				CreatedAt:   asn.CreatedAt,
			}); err != nil {
				return err
			}
		}
		doc.Assignments[asn.ID] = asn
		return nil
	})
	if err != nil {
		return model.Assignment{}, err
	}
	return asn, nil
}

// ApproveAssignment transitions a pending assignment and creates its
// binding. Fails with unknown_role when the role was removed between
// request and approval.
func (e *Engine) ApproveAssignment(id, approver string) (model.Assignment, error) {
	var out model.Assignment
	_, err := e.store.Update(func(doc *store.Document) error {
		asn, ok := doc.Assignments[id]
		if !ok {
			return model.NewRBACError(model.CodeAssignmentNotFound, "assignment %q not found", id)
		}
		if asn.Status != model.AssignmentPending {
			return model.NewRBACError(model.CodeAssignmentNotPending,
				"assignment %q is %s, not pending", id, asn.Status)
		}
		if err := addBinding(doc, model.Binding{
			PrincipalID: asn.PrincipalID,
			Role:        asn.Role,
			SpaceID:     asn.SpaceID,
			CreatedAt:   e.now().UTC(),
		}); err != nil {
			return err
		}
		now := e.now().UTC()
		asn.Status = model.AssignmentApproved
		asn.ApprovedBy = approver
		asn.ApprovedAt = &now
		doc.Assignments[id] = asn
		out = asn
		return nil
	})
	if err != nil {
		return model.Assignment{}, err
	}
	return out, nil
}

// RejectAssignment transitions a pending assignment to rejected.
func (e *Engine) RejectAssignment(id, approver, reason string) (model.Assignment, error) {
	var out model.Assignment
	_, err := e.store.Update(func(doc *store.Document) error {
		asn, ok := doc.Assignments[id]
		if !ok {
			return model.NewRBACError(model.CodeAssignmentNotFound, "assignment %q not found", id)
		}
		if asn.Status != model.AssignmentPending {
			return model.NewRBACError(model.CodeAssignmentNotPending,
				"assignment %q is %s, not pending", id, asn.Status)
		}
		asn.Status = model.AssignmentRejected
		asn.RejectedBy = approver
		asn.RejectReason = reason
		doc.Assignments[id] = asn
		out = asn
		return nil
	})
	if err != nil {
		return model.Assignment{}, err
	}
	return out, nil
}

// CleanupExpiredAssignments marks every assignment past its
// expires_at as expired and removes the corresponding binding when
// present. Returns how many assignments changed state; a second run
// immediately after reports zero.
func (e *Engine) CleanupExpiredAssignments() (int, error) {
	expired := 0
	now := e.now()
	_, err := e.store.Update(func(doc *store.Document) error {
		for id, asn := range doc.Assignments {
			if asn.Status == model.AssignmentExpired || asn.Status == model.AssignmentRejected {
				continue
			}
			if asn.ExpiresAt == nil || asn.ExpiresAt.After(now) {
				continue
			}
			asn.Status = model.AssignmentExpired
			doc.Assignments[id] = asn
			removeBinding(doc, asn.PrincipalID, asn.Role, asn.SpaceID)
			expired++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return expired, nil
}

// Assignments lists assignments, optionally filtered by status
// (empty status means all), sorted by creation time then ID.
func (e *Engine) Assignments(status model.AssignmentStatus) ([]model.Assignment, error) {
	doc, err := e.store.Read()
	if err != nil {
		return nil, err
	}
	out := make([]model.Assignment, 0, len(doc.Assignments))
	for _, asn := range doc.Assignments {
		if status != "" && asn.Status != status {
			continue
		}
		out = append(out, asn)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// Assignment returns one assignment by ID.
func (e *Engine) Assignment(id string) (model.Assignment, error) {
	doc, err := e.store.Read()
	if err != nil {
		return model.Assignment{}, err
	}
	asn, ok := doc.Assignments[id]
	if !ok {
		return model.Assignment{}, model.NewRBACError(model.CodeAssignmentNotFound,
			"assignment %q not found", id)
	}
	return asn, nil
}
