// Package space parses family-network space identifiers and answers
// hierarchy questions about them. A space id is "<type>:<path>" where
// type is one of personal, selective, shared, extended, interfamily.
package space

import (
	"fmt"
	"strings"
)

// Type is a space's position class in the sharing hierarchy.
type Type string

const (
	TypePersonal    Type = "personal"
	TypeSelective   Type = "selective"
	TypeShared      Type = "shared"
	TypeExtended    Type = "extended"
	TypeInterfamily Type = "interfamily"
)

// typeLevels is the fixed hierarchy level per space type.
var typeLevels = map[Type]int{
	TypePersonal:    0,
	TypeSelective:   1,
	TypeShared:      2,
	TypeExtended:    3,
	TypeInterfamily: 4,
}

// Info is the parsed, derived view of a space id. It is never
// persisted; parsing is deterministic.
type Info struct {
	SpaceID     string `json:"space_id"`
	Type        Type   `json:"space_type"`
	Level       int    `json:"hierarchy_level"`
	ParentSpace string `json:"parent_space,omitempty"`
	FamilyID    string `json:"family_id,omitempty"`
	HouseholdID string `json:"household_id,omitempty"`
}

// Parse splits a space id on the first ":" and dispatches on the
// prefix. Unknown prefixes and malformed paths fail; authorization
// callers convert that failure into a DENY.
func Parse(id string) (Info, error) {
	prefix, path, ok := strings.Cut(id, ":")
	if !ok || path == "" {
		return Info{}, fmt.Errorf("invalid space id format: %q", id)
	}
	info := Info{SpaceID: id}
	switch Type(prefix) {
	case TypePersonal:
		info.Type = TypePersonal
		info.FamilyID = path
	case TypeSelective:
		info.Type = TypeSelective
		household, family, _ := strings.Cut(path, ".")
		if household == "" {
			return Info{}, fmt.Errorf("invalid selective space id: %q", id)
		}
		info.HouseholdID = household
		info.FamilyID = family
	case TypeShared:
		info.Type = TypeShared
		info.HouseholdID = path
		info.ParentSpace = string(TypeSelective) + ":" + path
	case TypeExtended:
		info.Type = TypeExtended
		info.FamilyID = path
	case TypeInterfamily:
		info.Type = TypeInterfamily
	default:
		return Info{}, fmt.Errorf("unknown space type %q in %q", prefix, id)
	}
	info.Level = typeLevels[info.Type]
	return info, nil
}

// FamilyName extracts the comparable family identity of a space, or
// "" when the space carries none. For personal spaces the family name
// is the suffix after the last "." of the path (a bare path is its
// own family name).
func (i Info) FamilyName() string {
	switch i.Type {
	case TypePersonal:
		if idx := strings.LastIndex(i.FamilyID, "."); idx >= 0 {
			return i.FamilyID[idx+1:]
		}
		return i.FamilyID
	case TypeSelective, TypeExtended:
		return i.FamilyID
	default:
		// shared spaces carry only a household; interfamily spaces
		// belong to no single family.
		return ""
	}
}

// CrossFamily reports whether an operation between the two spaces
// crosses a family/tenant boundary. Interfamily on either side is
// always cross-family. Otherwise both sides must resolve to a family
// name and differ; absent family identity on either side yields
// false. That under-detects sharing involving bare shared: spaces —
// a known policy gap preserved from the original behavior rather
// than silently tightened. The relation is symmetric.
func CrossFamily(from, to Info) bool {
	if from.Type == TypeInterfamily || to.Type == TypeInterfamily {
		return true
	}
	a, b := from.FamilyName(), to.FamilyName()
	if a == "" || b == "" {
		return false
	}
	return a != b
}

// Consent levels required for cross-family sharing, by operation and
// the deeper of the two hierarchy levels.
const (
	ConsentExplicitInterfamily = "explicit_interfamily_consent"
	ConsentExtendedFamily      = "extended_family_consent"
	ConsentHousehold           = "household_consent"
	ConsentFamily              = "family_consent"
	ConsentInterfamily         = "interfamily_consent"
	ConsentImplicit            = "implicit_consent"
)

// RequiredConsentLevel derives the consent level for an operation
// from max(level(from), level(to)). PROJECT demands stronger consent
// than REFER at every level; other operations map like REFER.
func RequiredConsentLevel(from, to Info, op string) string {
	level := from.Level
	if to.Level > level {
		level = to.Level
	}
	if op == "PROJECT" {
		switch {
		case level >= 4:
			return ConsentExplicitInterfamily
		case level >= 3:
			return ConsentExtendedFamily
		case level >= 2:
			return ConsentHousehold
		default:
			return ConsentFamily
		}
	}
	switch {
	case level >= 4:
		return ConsentInterfamily
	case level >= 2:
		return ConsentHousehold
	default:
		return ConsentImplicit
	}
}
