package store

import (
	"encoding/json"

	"github.com/kinship-net/kinship/internal/model"
)

// Document is the full policy state held by one store: role
// definitions, principal bindings, dynamic assignments, and consent
// records. One store file holds exactly one document.
type Document struct {
	Roles       map[string]model.Role          `json:"roles"`
	Bindings    []model.Binding                `json:"bindings"`
	Assignments map[string]model.Assignment    `json:"assignments"`
	Consents    map[string]model.ConsentRecord `json:"consents"`
}

// NewDocument returns an empty document with all maps allocated.
func NewDocument() *Document {
	return &Document{
		Roles:       map[string]model.Role{},
		Bindings:    []model.Binding{},
		Assignments: map[string]model.Assignment{},
		Consents:    map[string]model.ConsentRecord{},
	}
}

// normalize allocates any nil maps so mutators never nil-check.
func (d *Document) normalize() {
	if d.Roles == nil {
		d.Roles = map[string]model.Role{}
	}
	if d.Assignments == nil {
		d.Assignments = map[string]model.Assignment{}
	}
	if d.Consents == nil {
		d.Consents = map[string]model.ConsentRecord{}
	}
}

// Clone deep-copies the document via its wire form.
func (d *Document) Clone() *Document {
	data, err := json.Marshal(d)
	if err != nil {
		// Document contains only JSON-safe types; marshal cannot fail.
		panic("store: clone marshal: " + err.Error())
	}
	out := NewDocument()
	if err := json.Unmarshal(data, out); err != nil {
		panic("store: clone unmarshal: " + err.Error())
	}
	out.normalize()
	return out
}

// roleWire decodes both role encodings found in the wild: the current
// object form {"caps": [...], "inherits": [...]} and the legacy bare
// capability list ["a", "b"]. Evaluation code only ever sees the
// normalized model.Role.
type roleWire model.Role

func (r *roleWire) UnmarshalJSON(data []byte) error {
	trimmed := firstByte(data)
	if trimmed == '[' {
		var caps []string
		if err := json.Unmarshal(data, &caps); err != nil {
			return err
		}
		*r = roleWire{Caps: caps}
		return nil
	}
	type plain roleWire
	return json.Unmarshal(data, (*plain)(r))
}

func firstByte(data []byte) byte {
	for _, b := range data {
		switch b {
		case ' ', '\t', '\n', '\r':
			continue
		}
		return b
	}
	return 0
}

// UnmarshalJSON accepts mixed role encodings and normalizes them.
func (d *Document) UnmarshalJSON(data []byte) error {
	var wire struct {
		Roles       map[string]roleWire            `json:"roles"`
		Bindings    []model.Binding                `json:"bindings"`
		Assignments map[string]model.Assignment    `json:"assignments"`
		Consents    map[string]model.ConsentRecord `json:"consents"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	d.Roles = make(map[string]model.Role, len(wire.Roles))
	for name, rw := range wire.Roles {
		role := model.Role(rw)
		if role.Name == "" {
			role.Name = name
		}
		d.Roles[name] = role
	}
	d.Bindings = wire.Bindings
	d.Assignments = wire.Assignments
	d.Consents = wire.Consents
	d.normalize()
	return nil
}

// ConsentKey is the uniqueness key for a consent record.
func ConsentKey(from, to, purpose string) string {
	return from + "|" + to + "|" + purpose
}
