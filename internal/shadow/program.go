package shadow

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"atomgate/internal/atom"
	"atomgate/internal/gatekeeper"
)

// rulesSource is the declarative mirror of the resolution pipeline. The
// extensional predicates (everything under Decl) are emitted as ground
// facts by buildProgram; the rules re-derive the final selection from
// scratch. Score comparison is pre-ground: outranks(A, B) facts are
// computed on the Go side for every scored conflict pair, so the program
// needs no arithmetic builtins and stays pure Datalog.
//
// The negations are stratified the same way the imperative engine orders
// its stages: blocked and outranks are base facts, prohibited closes before
// anything reads !prohibited, tentative closes before missing reads
// !tentative, and invalid closes before the selected_* predicates.
const rulesSource = `
Decl atom_mandatory(A).
Decl atom_tag(A, Dim, Value).
Decl atom_requires(A, B).
Decl atom_conflict(A, B).
Decl blocked(A).
Decl scored(A).
Decl outranks(A, B).

skeleton(A) :- atom_mandatory(A), !blocked(A).

prohibited(A) :- atom_tag(A, "mode", "active"), atom_tag(A, "tag", "dream_only").
prohibited(A) :- atom_requires(A, B), prohibited(B).
prohibited(B) :- atom_conflict(A, B), skeleton(A).

admitted(A) :- skeleton(A), !prohibited(A).

candidate(A) :- scored(A), !blocked(A), !prohibited(A).

suppressed(B) :- atom_conflict(A, B), candidate(A), candidate(B), outranks(A, B).

tentative(A) :- admitted(A).
tentative(A) :- candidate(A), !suppressed(A).
tentative(R) :- tentative(A), atom_requires(A, R), !prohibited(R).

missing(A) :- tentative(A), atom_requires(A, R), !tentative(R).
invalid(A) :- missing(A).
invalid(A) :- tentative(A), atom_requires(A, R), invalid(R).

selected_skeleton(A) :- tentative(A), !invalid(A), admitted(A).
selected_flesh(A) :- tentative(A), !invalid(A), !admitted(A).
`

// nameTable maps between atom IDs and the Mangle name constants that stand
// for them inside the program. Sanitizing an ID can collide with another,
// so names are disambiguated with a numeric suffix and the table keeps the
// reverse mapping for reading results back.
type nameTable struct {
	byID   map[string]string
	byName map[string]string
}

func newNameTable(ids []string) *nameTable {
	nt := &nameTable{
		byID:   make(map[string]string, len(ids)),
		byName: make(map[string]string, len(ids)),
	}
	sorted := append([]string(nil), ids...)
	sort.Strings(sorted)
	for _, id := range sorted {
		name := "/" + sanitizeName(id)
		for n := 2; ; n++ {
			if _, taken := nt.byName[name]; !taken {
				break
			}
			name = fmt.Sprintf("/%s_%d", sanitizeName(id), n)
		}
		nt.byID[id] = name
		nt.byName[name] = id
	}
	return nt
}

func (nt *nameTable) name(id string) string { return nt.byID[id] }

func (nt *nameTable) id(name string) (string, bool) {
	id, ok := nt.byName[name]
	return id, ok
}

// sanitizeName reduces an arbitrary atom ID to the character set Mangle
// accepts in name constants. Sanitizing is lossy, which is why IDs go
// through the collision-checked nameTable and tag dimensions and values
// bypass it entirely (they render as string constants).
func sanitizeName(s string) string {
	s = strings.TrimPrefix(strings.TrimSpace(s), "/")
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	out := b.String()
	if out == "" || (out[0] >= '0' && out[0] <= '9') {
		out = "a_" + out
	}
	return out
}

// buildProgram renders the full Mangle source for one pass: the rule block
// plus ground facts for the catalog, context, and precomputed rank order.
func buildProgram(cat *atom.Catalog, snap *gatekeeper.Snapshot, scores gatekeeper.Scores) (string, *nameTable) {
	nt := newNameTable(cat.IDs())

	var b strings.Builder
	b.WriteString(rulesSource)
	b.WriteString("\n")

	for _, id := range cat.IDs() {
		a, _ := cat.Get(id)
		name := nt.name(id)

		if a.Mandatory {
			fmt.Fprintf(&b, "atom_mandatory(%s).\n", name)
		}
		if gatekeeper.Blocked(a, snap) {
			fmt.Fprintf(&b, "blocked(%s).\n", name)
		}
		if _, ok := scores[id]; ok {
			fmt.Fprintf(&b, "scored(%s).\n", name)
		}
		for _, dim := range a.Dimensions() {
			for _, val := range a.TagValues(dim) {
				// Dimensions and values render as string constants through
				// the engine's own normalization, never through
				// sanitizeName: sanitizing folds distinct values (e.g.
				// "dream only" and "dream_only") into one constant and the
				// two evaluators would disagree on the prohibition rule.
				fmt.Fprintf(&b, "atom_tag(%s, %s, %s).\n", name,
					strconv.Quote(gatekeeper.NormalizeDimension(dim)),
					strconv.Quote(gatekeeper.NormalizeTagValue(val)))
			}
		}
		for _, req := range a.Requires {
			fmt.Fprintf(&b, "atom_requires(%s, %s).\n", name, nt.name(req))
		}
	}

	for _, pair := range cat.ConflictPairs() {
		a, bID := pair[0], pair[1]
		// The relation is symmetric; emit both directions so rules never
		// need to canonicalize pair order.
		fmt.Fprintf(&b, "atom_conflict(%s, %s).\n", nt.name(a), nt.name(bID))
		fmt.Fprintf(&b, "atom_conflict(%s, %s).\n", nt.name(bID), nt.name(a))

		_, aScored := scores[a]
		_, bScored := scores[bID]
		if aScored && bScored {
			winner, loser := a, bID
			if scores[bID] > scores[a] {
				winner, loser = bID, a
			}
			fmt.Fprintf(&b, "outranks(%s, %s).\n", nt.name(winner), nt.name(loser))
		}
	}

	return b.String(), nt
}
