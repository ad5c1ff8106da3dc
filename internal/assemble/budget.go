// Package assemble turns a resolution result into a budgeted text artifact.
// It is the one stage allowed to drop admitted atoms, and only for space:
// skeleton selections and their prerequisites are exempt, remaining flesh
// is fitted greedily in result order, and prerequisite integrity is
// restored by cascading drops.
package assemble

import (
	"atomgate/internal/atom"
	"atomgate/internal/gatekeeper"
	"atomgate/internal/logging"
)

// FitResult describes which selections survived budget fitting.
type FitResult struct {
	// Kept preserves the resolution result's order (priority descending,
	// ID ascending).
	Kept []gatekeeper.Selection

	// DroppedBudget lists flesh atoms that did not fit, in result order.
	DroppedBudget []string

	// DroppedCascade lists flesh atoms removed afterwards because a
	// prerequisite was dropped for space.
	DroppedCascade []string

	// TokensUsed is the estimated total for the kept atoms.
	TokensUsed int
}

// BudgetFitter enforces a token ceiling on assembled output.
type BudgetFitter struct {
	budget int
}

// NewBudgetFitter creates a fitter with the given token ceiling. A ceiling
// of zero or less disables fitting entirely.
func NewBudgetFitter(budget int) *BudgetFitter {
	return &BudgetFitter{budget: budget}
}

// Fit selects the subset of the resolution result that fits the budget.
//
// Skeleton atoms, plus everything they transitively require, are always
// kept; if that baseline alone exceeds the ceiling the overflow is logged
// and tolerated, because dropping mandatory content is worse than a long
// artifact. Remaining flesh atoms are admitted in result order while space
// remains. A kept flesh atom whose prerequisite was dropped for space is
// removed too, cascading until the kept set is closed under requires
// again. Freed space is not re-offered to lower-ranked atoms: re-opening
// admission after a cascade could oscillate, and the greedy order is part
// of the determinism contract.
func (f *BudgetFitter) Fit(cat *atom.Catalog, res *gatekeeper.Result) *FitResult {
	timer := logging.StartTimer(logging.CategoryAssemble, "BudgetFitter.Fit")
	defer timer.Stop()

	out := &FitResult{}
	exempt := f.exemptClosure(cat, res)

	for id := range exempt {
		out.TokensUsed += tokensFor(cat, id)
	}
	if f.budget > 0 && out.TokensUsed > f.budget {
		logging.Get(logging.CategoryAssemble).Warn(
			"mandatory baseline uses %d tokens, over the %d budget", out.TokensUsed, f.budget)
	}

	kept := make(map[string]bool, len(res.Selected))
	for _, sel := range res.Selected {
		if exempt[sel.ID] {
			out.Kept = append(out.Kept, sel)
			kept[sel.ID] = true
			continue
		}
		cost := tokensFor(cat, sel.ID)
		if f.budget > 0 && out.TokensUsed+cost > f.budget {
			out.DroppedBudget = append(out.DroppedBudget, sel.ID)
			continue
		}
		out.Kept = append(out.Kept, sel)
		kept[sel.ID] = true
		out.TokensUsed += cost
	}

	// Restore prerequisite closure among the kept atoms. The exempt set is
	// closed by construction, so only fitted flesh can cascade.
	for changed := true; changed; {
		changed = false
		pruned := out.Kept[:0]
		for _, sel := range out.Kept {
			if !exempt[sel.ID] && missingPrereq(cat, sel.ID, kept) {
				delete(kept, sel.ID)
				out.DroppedCascade = append(out.DroppedCascade, sel.ID)
				out.TokensUsed -= tokensFor(cat, sel.ID)
				changed = true
				continue
			}
			pruned = append(pruned, sel)
		}
		out.Kept = pruned
	}

	logging.AssembleDebug("budget fit: kept %d, dropped %d for space, %d by cascade, %d tokens",
		len(out.Kept), len(out.DroppedBudget), len(out.DroppedCascade), out.TokensUsed)
	return out
}

// exemptClosure collects the skeleton selections and their transitive
// prerequisites. The resolution result is closed under requires, so the
// closure never leaves the selected set.
func (f *BudgetFitter) exemptClosure(cat *atom.Catalog, res *gatekeeper.Result) map[string]bool {
	exempt := make(map[string]bool)
	var queue []string
	for _, sel := range res.Selected {
		if sel.Provenance == gatekeeper.ProvenanceSkeleton {
			exempt[sel.ID] = true
			queue = append(queue, sel.ID)
		}
	}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		a, ok := cat.Get(id)
		if !ok {
			continue
		}
		for _, req := range a.Requires {
			if !exempt[req] {
				exempt[req] = true
				queue = append(queue, req)
			}
		}
	}
	return exempt
}

func tokensFor(cat *atom.Catalog, id string) int {
	a, ok := cat.Get(id)
	if !ok {
		return 0
	}
	if a.TokenCount > 0 {
		return a.TokenCount
	}
	return atom.EstimateTokens(a.Content)
}

func missingPrereq(cat *atom.Catalog, id string, kept map[string]bool) bool {
	a, ok := cat.Get(id)
	if !ok {
		return false
	}
	for _, req := range a.Requires {
		if !kept[req] {
			return true
		}
	}
	return false
}
