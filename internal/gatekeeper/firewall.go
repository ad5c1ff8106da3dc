package gatekeeper

import "atomgate/internal/atom"

// Reserved dimensions and values recognized by the exclusion engine.
const (
	// DimensionMode is the dimension carrying an atom's operating mode.
	DimensionMode = "mode"
	// DimensionTag is the free-form classification dimension.
	DimensionTag = "tag"

	// ValueModeActive marks an atom as belonging to the live operating mode.
	ValueModeActive = "active"
	// ValueDreamOnly marks an atom as usable only in offline rehearsal;
	// combined with ValueModeActive it is contradictory and the atom is
	// prohibited outright.
	ValueDreamOnly = "dream_only"
)

// hasTagValue reports whether the atom carries the given value under the
// given dimension. Both the dimension key and the value are normalized, so
// a catalog declaring "Mode" matches the reserved "mode" dimension.
func hasTagValue(a *atom.Atom, dimension, value string) bool {
	wantDim := NormalizeDimension(dimension)
	want := NormalizeTagValue(value)
	for dim, values := range a.Tags {
		if NormalizeDimension(dim) != wantDim {
			continue
		}
		for _, v := range values {
			if NormalizeTagValue(v) == want {
				return true
			}
		}
	}
	return false
}

// explicitlyProhibited reports whether an atom matches a hard prohibition
// rule on its own tags, independent of context and of every other atom.
func explicitlyProhibited(a *atom.Atom) bool {
	return hasTagValue(a, DimensionMode, ValueModeActive) &&
		hasTagValue(a, DimensionTag, ValueDreamOnly)
}

// computeProhibited runs the exclusion fixpoint. Three rule families feed
// the prohibited set:
//
//  1. Explicit rules: an atom tagged both (mode, active) and (tag,
//     dream_only) is contradictory and prohibited unconditionally.
//  2. Dependency propagation: an atom requiring a prohibited atom is itself
//     prohibited.
//  3. Conflict domination: an atom conflicting with an admitted skeleton
//     atom is prohibited. Skeleton membership is computed before this step
//     and never revised by it, which keeps the negation stratified: rule 3
//     reads the skeleton set, it does not feed back into it.
//
// The set only grows, so iterating to quiescence terminates in at most one
// pass per atom.
func (p *pass) computeProhibited() {
	p.prohibited = make(map[string]bool)

	for _, id := range p.cat.IDs() {
		a, _ := p.cat.Get(id)
		if explicitlyProhibited(a) {
			p.prohibited[id] = true
		}
	}

	pairs := p.cat.ConflictPairs()
	for changed := true; changed; {
		changed = false

		for _, pair := range pairs {
			a, b := pair[0], pair[1]
			if p.skeleton[a] && !p.prohibited[b] {
				p.prohibited[b] = true
				changed = true
			}
			if p.skeleton[b] && !p.prohibited[a] {
				p.prohibited[a] = true
				changed = true
			}
		}

		for _, id := range p.cat.IDs() {
			if p.prohibited[id] {
				continue
			}
			a, _ := p.cat.Get(id)
			for _, req := range a.Requires {
				if p.prohibited[req] {
					p.prohibited[id] = true
					changed = true
					break
				}
			}
		}
	}
}
