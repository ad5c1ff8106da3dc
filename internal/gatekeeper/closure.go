package gatekeeper

import "sort"

// computeClosure expands the tentative set over prerequisite edges and then
// invalidates every member whose prerequisites could not all be satisfied.
//
// Expansion: starting from the admitted skeleton plus unsuppressed
// candidates, every required atom is pulled in unless prohibited. Pulled-in
// prerequisites are exempt from scoring, blocking, and suppression; the
// prohibited set is the only barrier. Their own requirements are expanded
// recursively.
//
// Invalidation: an atom missing a direct prerequisite (necessarily one the
// exclusion engine barred) is invalid, and invalidity cascades upward
// through requirers. A requires B requires C with C prohibited therefore
// removes all three. Cycles among valid atoms are fine: if every member of
// a cycle is tentative, none is missing anything.
func (p *pass) computeClosure() {
	p.tentative = make(map[string]bool)

	var queue []string
	enqueue := func(id string) {
		if !p.tentative[id] {
			p.tentative[id] = true
			queue = append(queue, id)
		}
	}

	// Deterministic seed order. The fixpoint result is order-independent,
	// but keeping traversal sorted makes debug logs reproducible.
	for _, id := range p.cat.IDs() {
		if p.admitted[id] {
			enqueue(id)
		}
	}
	for _, id := range p.cat.IDs() {
		if p.candidates[id] && !p.suppressed[id] {
			enqueue(id)
		}
	}

	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		a, ok := p.cat.Get(id)
		if !ok {
			continue
		}
		for _, req := range a.Requires {
			if !p.prohibited[req] {
				enqueue(req)
			}
		}
	}

	p.invalid = make(map[string]bool)
	for id := range p.tentative {
		a, _ := p.cat.Get(id)
		for _, req := range a.Requires {
			if !p.tentative[req] {
				p.invalid[id] = true
				break
			}
		}
	}

	// Cascade invalidity to requirers until quiet.
	for changed := true; changed; {
		changed = false
		for id := range p.tentative {
			if p.invalid[id] {
				continue
			}
			a, _ := p.cat.Get(id)
			for _, req := range a.Requires {
				if p.invalid[req] {
					p.invalid[id] = true
					changed = true
					break
				}
			}
		}
	}
}

// finalIDs returns the surviving atom IDs in sorted order.
func (p *pass) finalIDs() []string {
	ids := make([]string, 0, len(p.tentative))
	for id := range p.tentative {
		if !p.invalid[id] {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}
