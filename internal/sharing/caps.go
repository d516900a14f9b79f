package sharing

import (
	"fmt"

	"github.com/kinship-net/kinship/internal/space"
)

// knownSpaceCaps is the fixed capability set surfaced by
// SpaceCapabilities. RBAC may carry others; this projection keeps the
// consumer-facing surface stable.
var knownSpaceCaps = []string{
	"memory.read",
	"memory.write",
	"memory.refer",
	"memory.project",
	"memory.detach",
	"memory.undo",
	"privacy.manage",
}

// interfamilyAdminCap gates administrative actions on interfamily
// spaces.
const interfamilyAdminCap = "interfamily.admin"

// SpaceCaps is the capability projection for one (space, actor) pair.
type SpaceCaps struct {
	SpaceID          string   `json:"space_id"`
	ActorID          string   `json:"actor_id"`
	Caps             []string `json:"caps"`
	InterfamilyAdmin bool     `json:"interfamily_admin,omitempty"`
}

// SpaceCapabilities filters the actor's RBAC capabilities in the
// space to the fixed known set, and for interfamily spaces also
// reports whether the actor holds interfamily admin.
func (p *Policy) SpaceCapabilities(spaceID, actorID string) (SpaceCaps, error) {
	info, err := space.Parse(spaceID)
	if err != nil {
		return SpaceCaps{}, fmt.Errorf("space capabilities: %w", err)
	}
	all, err := p.rbac.ListCaps(actorID, spaceID)
	if err != nil {
		return SpaceCaps{}, err
	}
	out := SpaceCaps{SpaceID: spaceID, ActorID: actorID, Caps: []string{}}
	for _, cap := range knownSpaceCaps {
		if contains(all, cap) {
			out.Caps = append(out.Caps, cap)
		}
	}
	if info.Type == space.TypeInterfamily {
		out.InterfamilyAdmin = contains(all, interfamilyAdminCap)
	}
	return out, nil
}
