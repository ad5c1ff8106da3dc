package gatekeeper

// outranks reports whether candidate a beats candidate b. Score decides;
// ties fall back to lexicographic ID order, making the relation a strict
// total order over any candidate set and the resolution independent of
// iteration order.
func outranks(a, b string, scores Scores) bool {
	sa, sb := scores[a], scores[b]
	if sa != sb {
		return sa > sb
	}
	return a < b
}

// resolveConflicts suppresses the loser of every conflict edge whose both
// endpoints survived as candidates. Edges touching a non-candidate need no
// arbitration: the other side was already removed upstream (blocked,
// prohibited, or never scored).
//
// Suppression is not transitive. A suppressed atom stops suppressing, but
// this pass deliberately does not revive the transitive loser: with A > B >
// C and edges A-B, B-C, both B and C are suppressed even though B alone
// would have been enough to exclude C.
func (p *pass) resolveConflicts() {
	p.suppressed = make(map[string]bool)
	for _, pair := range p.cat.ConflictPairs() {
		a, b := pair[0], pair[1]
		if !p.candidates[a] || !p.candidates[b] {
			continue
		}
		if outranks(a, b, p.scores) {
			p.suppressed[b] = true
		} else {
			p.suppressed[a] = true
		}
	}
}
