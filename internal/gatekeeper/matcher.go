package gatekeeper

import "atomgate/internal/atom"

// Blocked reports whether an atom is contextually excluded by the snapshot.
//
// Matching is permissive: an atom is only blocked when the context has an
// explicit value for one of the atom's declared dimensions and that value
// matches none of the atom's values for it. A dimension the context leaves
// unassigned never blocks, and dimensions the atom does not declare are
// ignored. Multiple values for one dimension form an OR-set. Dimension keys
// and values both compare after normalization, so tag casing never decides
// a match.
//
// The strict alternative (treating an unassigned dimension as a mismatch)
// would silently drop every tagged atom from a fresh session, so atoms that
// want strictness must rely on explicit prohibition rules instead.
func Blocked(a *atom.Atom, snap *Snapshot) bool {
	if a == nil {
		return false
	}
	for dimension, values := range a.Tags {
		if len(values) == 0 {
			continue
		}
		ctxVal, assigned := snap.Value(dimension)
		if !assigned {
			continue
		}
		want := NormalizeTagValue(ctxVal)
		matched := false
		for _, v := range values {
			if NormalizeTagValue(v) == want {
				matched = true
				break
			}
		}
		if !matched {
			return true
		}
	}
	return false
}
