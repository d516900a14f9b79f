// Package rbac is the role and capability engine: role definitions
// with inheritance, principal bindings per space, capability
// resolution, and the dynamic-assignment approval workflow.
package rbac

import (
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/kinship-net/kinship/internal/model"
	"github.com/kinship-net/kinship/internal/store"
)

// Engine resolves capabilities and mutates RBAC state through the
// document store. Every mutation is one atomic store update; a
// validation failure leaves the document untouched.
type Engine struct {
	store store.Store
	now   func() time.Time
	newID func() string
}

// NewEngine returns an engine over st.
func NewEngine(st store.Store) *Engine {
	return &Engine{
		store: st,
		now:   time.Now,
		newID: uuid.NewString,
	}
}

// DefineRole stores a role after verifying that its inheritance edges
// cannot close a cycle back to the role itself. Capabilities are
// deduplicated and sorted so resolution order is deterministic.
func (e *Engine) DefineRole(role model.Role) error {
	if role.Name == "" {
		return model.NewRBACError(model.CodeUnknownRole, "role name must not be empty")
	}
	role.Caps = dedupeSorted(role.Caps)
	if role.CreatedAt.IsZero() {
		role.CreatedAt = e.now().UTC()
	}
	_, err := e.store.Update(func(doc *store.Document) error {
		if cycles(doc.Roles, role) {
			return model.NewRBACError(model.CodeCircularDependency,
				"role %q inheritance would create a cycle", role.Name)
		}
		doc.Roles[role.Name] = role
		return nil
	})
	return err
}

// cycles reports whether inserting role would let any inheritance
// chain reach back to role.Name. Depth-first over the existing edges
// starting from each inherited role; a visited set bounds the walk
// even on an already-corrupt graph.
func cycles(roles map[string]model.Role, role model.Role) bool {
	visited := map[string]bool{}
	stack := append([]string{}, role.Inherits...)
	for len(stack) > 0 {
		name := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if name == role.Name {
			return true
		}
		if visited[name] {
			continue
		}
		visited[name] = true
		if parent, ok := roles[name]; ok {
			stack = append(stack, parent.Inherits...)
		}
	}
	return false
}

// RemoveRole deletes a role and cascades by removing every binding
// that references it. Removing an unknown role is a no-op.
func (e *Engine) RemoveRole(name string) error {
	_, err := e.store.Update(func(doc *store.Document) error {
		delete(doc.Roles, name)
		kept := doc.Bindings[:0]
		for _, b := range doc.Bindings {
			if b.Role != name {
				kept = append(kept, b)
			}
		}
		doc.Bindings = kept
		return nil
	})
	return err
}

// Bind adds a (principal, role, space) triple. Idempotent; fails with
// unknown_role when the role is undefined.
func (e *Engine) Bind(b model.Binding) error {
	if b.CreatedAt.IsZero() {
		b.CreatedAt = e.now().UTC()
	}
	_, err := e.store.Update(func(doc *store.Document) error {
		return addBinding(doc, b)
	})
	return err
}

func addBinding(doc *store.Document, b model.Binding) error {
	if _, ok := doc.Roles[b.Role]; !ok {
		return model.NewRBACError(model.CodeUnknownRole, "cannot bind undefined role %q", b.Role)
	}
	for _, have := range doc.Bindings {
		if have.PrincipalID == b.PrincipalID && have.Role == b.Role && have.SpaceID == b.SpaceID {
			return nil
		}
	}
	doc.Bindings = append(doc.Bindings, b)
	return nil
}

// Unbind removes a triple. Removing an absent binding is a no-op.
func (e *Engine) Unbind(principal, role, space string) error {
	_, err := e.store.Update(func(doc *store.Document) error {
		removeBinding(doc, principal, role, space)
		return nil
	})
	return err
}

func removeBinding(doc *store.Document, principal, role, space string) {
	kept := doc.Bindings[:0]
	for _, b := range doc.Bindings {
		if b.PrincipalID == principal && b.Role == role && b.SpaceID == space {
			continue
		}
		kept = append(kept, b)
	}
	doc.Bindings = kept
}

// ListCaps resolves the principal's effective capabilities in a
// space: the union over every matching binding of the bound role's
// own capabilities plus all transitively inherited ones. The
// traversal is iterative with a per-call visited set, so it
// terminates on any graph shape. The result is sorted.
func (e *Engine) ListCaps(principal, space string) ([]string, error) {
	doc, err := e.store.Read()
	if err != nil {
		return nil, err
	}
	caps := map[string]bool{}
	visited := map[string]bool{}
	var stack []string
	for _, b := range doc.Bindings {
		if b.PrincipalID == principal && b.SpaceID == space {
			stack = append(stack, b.Role)
		}
	}
	for len(stack) > 0 {
		name := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if visited[name] {
			continue
		}
		visited[name] = true
		role, ok := doc.Roles[name]
		if !ok {
			continue
		}
		for _, c := range role.Caps {
			caps[c] = true
		}
		stack = append(stack, role.Inherits...)
	}
	out := make([]string, 0, len(caps))
	for c := range caps {
		out = append(out, c)
	}
	sort.Strings(out)
	return out, nil
}

// HasCap is a membership test over ListCaps.
func (e *Engine) HasCap(principal, space, cap string) (bool, error) {
	caps, err := e.ListCaps(principal, space)
	if err != nil {
		return false, err
	}
	for _, c := range caps {
		if c == cap {
			return true, nil
		}
	}
	return false, nil
}

// Hierarchy describes a role's direct inheritance in both directions.
type Hierarchy struct {
	Role        string   `json:"role"`
	Inherits    []string `json:"inherits"`
	InheritedBy []string `json:"inherited_by"`
}

// RoleHierarchy returns the role's direct inherits plus the reverse
// index computed by scanning all roles.
func (e *Engine) RoleHierarchy(name string) (Hierarchy, error) {
	doc, err := e.store.Read()
	if err != nil {
		return Hierarchy{}, err
	}
	role, ok := doc.Roles[name]
	if !ok {
		return Hierarchy{}, model.NewRBACError(model.CodeUnknownRole, "role %q not defined", name)
	}
	h := Hierarchy{Role: name, Inherits: append([]string{}, role.Inherits...)}
	var children []string
	for childName, child := range doc.Roles {
		for _, parent := range child.Inherits {
			if parent == name {
				children = append(children, childName)
				break
			}
		}
	}
	sort.Strings(children)
	h.InheritedBy = children
	return h, nil
}

// Roles returns all defined roles sorted by name.
func (e *Engine) Roles() ([]model.Role, error) {
	doc, err := e.store.Read()
	if err != nil {
		return nil, err
	}
	out := make([]model.Role, 0, len(doc.Roles))
	for _, r := range doc.Roles {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func dedupeSorted(in []string) []string {
	seen := map[string]bool{}
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}
