package gatekeeper

import (
	"sort"

	"github.com/google/uuid"

	"atomgate/internal/atom"
	"atomgate/internal/logging"
)

// Provenance records which pipeline admitted an atom into the result.
type Provenance string

const (
	// ProvenanceSkeleton marks atoms admitted because they are mandatory.
	ProvenanceSkeleton Provenance = "skeleton"
	// ProvenanceFlesh marks atoms admitted on relevance score, including
	// prerequisites pulled in by the dependency closure.
	ProvenanceFlesh Provenance = "flesh"
)

// Selection is one admitted atom in a resolution result.
type Selection struct {
	ID         string
	Priority   int
	Score      float64
	Provenance Provenance
}

// RejectionReason names the first pipeline stage that removed an atom.
type RejectionReason string

const (
	// ReasonBlocked: the context snapshot contradicted a declared dimension.
	ReasonBlocked RejectionReason = "blocked"
	// ReasonProhibited: the exclusion engine barred the atom.
	ReasonProhibited RejectionReason = "prohibited"
	// ReasonUnscored: not mandatory and absent from the score map.
	ReasonUnscored RejectionReason = "unscored"
	// ReasonSuppressed: lost a conflict to a higher-ranked candidate.
	ReasonSuppressed RejectionReason = "suppressed"
	// ReasonInvalid: a prerequisite was missing or itself invalid.
	ReasonInvalid RejectionReason = "invalid"
)

// Rejection is one excluded atom plus the stage that removed it.
type Rejection struct {
	ID     string
	Reason RejectionReason
}

// Stats summarizes one resolution pass. Each counter is the raw size of its
// stage's set, and the sets overlap: an atom can be both blocked and
// prohibited, and every selected flesh atom is also a candidate. The
// counters do not partition the catalog and must not be summed; Rejected
// carries the single reason attributed to each unselected atom.
type Stats struct {
	CatalogSize int
	Blocked     int
	Prohibited  int
	Candidates  int
	Suppressed  int
	Invalid     int
	Selected    int
}

// Result is the outcome of one resolution pass. Selected is ordered by
// priority descending, ID ascending; Rejected covers every catalog atom not
// selected, sorted by ID. PassID is fresh per pass and is the only
// non-deterministic field.
type Result struct {
	PassID   string
	Selected []Selection
	Rejected []Rejection
	Stats    Stats
}

// SelectedIDs returns the admitted atom IDs in result order.
func (r *Result) SelectedIDs() []string {
	ids := make([]string, len(r.Selected))
	for i, sel := range r.Selected {
		ids[i] = sel.ID
	}
	return ids
}

// pass holds the intermediate sets of one resolution run. Each field is
// written by exactly one stage and read-only afterwards.
type pass struct {
	cat    *atom.Catalog
	snap   *Snapshot
	scores Scores

	blocked    map[string]bool
	skeleton   map[string]bool // mandatory and not blocked
	prohibited map[string]bool
	admitted   map[string]bool // skeleton minus prohibited
	candidates map[string]bool
	suppressed map[string]bool
	tentative  map[string]bool
	invalid    map[string]bool
}

// Resolve runs a full resolution pass over the catalog. It is pure and
// deterministic: identical inputs yield identical Selected and Rejected
// slices on every call, regardless of map iteration order. A nil snapshot
// blocks nothing; nil scores admit only the skeleton.
func Resolve(cat *atom.Catalog, snap *Snapshot, scores Scores) *Result {
	timer := logging.StartTimer(logging.CategoryGate, "Resolve")
	defer timer.Stop()

	p := &pass{cat: cat, snap: snap, scores: scores}

	p.computeBlocked()
	p.computeSkeleton()
	p.computeProhibited()
	p.computeCandidates()
	p.resolveConflicts()
	p.computeClosure()

	return p.assemble()
}

func (p *pass) computeBlocked() {
	p.blocked = make(map[string]bool)
	for _, id := range p.cat.IDs() {
		a, _ := p.cat.Get(id)
		if Blocked(a, p.snap) {
			p.blocked[id] = true
		}
	}
}

// computeSkeleton collects the mandatory atoms the context allows. Context
// blocking is the one force that pre-empts mandatory status; prohibition is
// applied afterwards, on top.
func (p *pass) computeSkeleton() {
	p.skeleton = make(map[string]bool)
	for _, id := range p.cat.IDs() {
		a, _ := p.cat.Get(id)
		if a.Mandatory && !p.blocked[id] {
			p.skeleton[id] = true
		}
	}
}

// computeCandidates derives the flesh candidate pool and the admitted
// skeleton. An atom is a candidate iff it carries a score and survived
// blocking and prohibition; mandatory atoms that also carry a score appear
// in both sets and report skeleton provenance.
func (p *pass) computeCandidates() {
	p.admitted = make(map[string]bool)
	for id := range p.skeleton {
		if !p.prohibited[id] {
			p.admitted[id] = true
		}
	}

	p.candidates = make(map[string]bool)
	for _, id := range p.cat.IDs() {
		if _, scored := p.scores[id]; !scored {
			continue
		}
		if p.blocked[id] || p.prohibited[id] {
			continue
		}
		p.candidates[id] = true
	}
}

// assemble builds the final Result: survivors ordered by priority
// descending then ID ascending, and a rejection entry for every other
// catalog atom naming the first stage that removed it.
func (p *pass) assemble() *Result {
	res := &Result{PassID: uuid.NewString()}

	selected := make(map[string]bool)
	for _, id := range p.finalIDs() {
		a, _ := p.cat.Get(id)
		prov := ProvenanceFlesh
		if p.admitted[id] {
			prov = ProvenanceSkeleton
		}
		res.Selected = append(res.Selected, Selection{
			ID:         id,
			Priority:   a.Priority,
			Score:      p.scores[id],
			Provenance: prov,
		})
		selected[id] = true
	}
	sort.SliceStable(res.Selected, func(i, j int) bool {
		if res.Selected[i].Priority != res.Selected[j].Priority {
			return res.Selected[i].Priority > res.Selected[j].Priority
		}
		return res.Selected[i].ID < res.Selected[j].ID
	})

	for _, id := range p.cat.IDs() {
		if selected[id] {
			continue
		}
		res.Rejected = append(res.Rejected, Rejection{ID: id, Reason: p.rejectionReason(id)})
	}

	res.Stats = Stats{
		CatalogSize: p.cat.Count(),
		Blocked:     len(p.blocked),
		Prohibited:  len(p.prohibited),
		Candidates:  len(p.candidates),
		Suppressed:  len(p.suppressed),
		Invalid:     len(p.invalid),
		Selected:    len(res.Selected),
	}

	logging.Gate("pass %s: %d/%d selected (%d blocked, %d prohibited, %d suppressed, %d invalid)",
		res.PassID, res.Stats.Selected, res.Stats.CatalogSize,
		res.Stats.Blocked, res.Stats.Prohibited, res.Stats.Suppressed, res.Stats.Invalid)

	return res
}

// rejectionReason reports the earliest pipeline stage that removed an atom.
func (p *pass) rejectionReason(id string) RejectionReason {
	switch {
	case p.blocked[id]:
		return ReasonBlocked
	case p.prohibited[id]:
		return ReasonProhibited
	case p.suppressed[id]:
		return ReasonSuppressed
	case p.invalid[id]:
		return ReasonInvalid
	default:
		return ReasonUnscored
	}
}
