// Package bandfloor maps space-id patterns to the minimum security
// band a space demands. Patterns are either exact ids or trailing-*
// prefixes; supplied at construction, read-only afterwards.
package bandfloor

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/kinship-net/kinship/internal/model"
)

// Floors resolves a space id to its configured minimum band.
type Floors struct {
	exact    map[string]model.Band
	prefixes []prefixFloor
}

type prefixFloor struct {
	prefix string
	band   model.Band
}

// New builds Floors from a pattern→band map. A trailing "*" marks a
// prefix pattern; anything else matches exactly. Unknown band names
// fail construction rather than silently weakening policy.
func New(patterns map[string]model.Band) (*Floors, error) {
	f := &Floors{exact: map[string]model.Band{}}
	for pattern, band := range patterns {
		if !model.ValidBand(band) {
			return nil, fmt.Errorf("band floor %q: unknown band %q", pattern, band)
		}
		if strings.HasSuffix(pattern, "*") {
			f.prefixes = append(f.prefixes, prefixFloor{
				prefix: strings.TrimSuffix(pattern, "*"),
				band:   band,
			})
			continue
		}
		f.exact[pattern] = band
	}
	return f, nil
}

// Lookup returns the minimum band for a space id, or "" when no
// pattern applies. Exact matches win; among wildcard matches the
// longest prefix wins.
func (f *Floors) Lookup(spaceID string) model.Band {
	if band, ok := f.exact[spaceID]; ok {
		return band
	}
	var best model.Band
	bestLen := -1
	for _, p := range f.prefixes {
		if strings.HasPrefix(spaceID, p.prefix) && len(p.prefix) > bestLen {
			best = p.band
			bestLen = len(p.prefix)
		}
	}
	return best
}

// LoadFile reads a YAML pattern→band map. Missing file yields empty
// floors; invalid YAML or an unknown band is an error.
func LoadFile(path string) (*Floors, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return New(nil)
		}
		return nil, fmt.Errorf("read band floors: %w", err)
	}
	var patterns map[string]model.Band
	if err := yaml.Unmarshal(data, &patterns); err != nil {
		return nil, fmt.Errorf("parse band floors: %w", err)
	}
	return New(patterns)
}
