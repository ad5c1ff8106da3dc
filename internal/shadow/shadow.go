// Package shadow cross-checks the imperative resolution engine against a
// declarative re-derivation of the same semantics in Mangle (Datalog with
// stratified negation). The two evaluators share only their inputs; a
// divergence means one of them drifted from the agreed pipeline and is
// reported with a structural diff instead of being silently absorbed.
package shadow

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/google/go-cmp/cmp"
	"github.com/google/mangle/analysis"
	"github.com/google/mangle/ast"
	_ "github.com/google/mangle/builtin"
	"github.com/google/mangle/engine"
	"github.com/google/mangle/factstore"
	"github.com/google/mangle/parse"
	"golang.org/x/sync/errgroup"

	"atomgate/internal/atom"
	"atomgate/internal/gatekeeper"
	"atomgate/internal/logging"
)

// Report is the outcome of one differential run.
type Report struct {
	Match bool
	// Diff is empty on a match, otherwise a go-cmp rendering of the
	// imperative (-) versus shadow (+) ID -> provenance maps.
	Diff string
	// Disputed lists the atom IDs the two evaluators disagree on, sorted.
	Disputed []string
}

// Evaluate runs only the declarative evaluator and returns its selection as
// an ID -> provenance map.
func Evaluate(cat *atom.Catalog, snap *gatekeeper.Snapshot, scores gatekeeper.Scores) (map[string]gatekeeper.Provenance, error) {
	timer := logging.StartTimer(logging.CategoryShadow, "Evaluate")
	defer timer.Stop()

	if cat.Count() == 0 {
		return map[string]gatekeeper.Provenance{}, nil
	}

	source, names := buildProgram(cat, snap, scores)

	unit, err := parse.Unit(strings.NewReader(source))
	if err != nil {
		return nil, fmt.Errorf("parsing shadow program: %w", err)
	}
	info, err := analysis.AnalyzeOneUnit(unit, nil)
	if err != nil {
		return nil, fmt.Errorf("analyzing shadow program: %w", err)
	}
	store := factstore.NewSimpleInMemoryStore()
	if _, err := engine.EvalProgramWithStats(info, store); err != nil {
		return nil, fmt.Errorf("evaluating shadow program: %w", err)
	}

	selected := make(map[string]gatekeeper.Provenance)
	collect := func(predicate string, prov gatekeeper.Provenance) error {
		pred := ast.PredicateSym{Symbol: predicate, Arity: 1}
		return store.GetFacts(ast.NewQuery(pred), func(fact ast.Atom) error {
			constant, ok := fact.Args[0].(ast.Constant)
			if !ok {
				return fmt.Errorf("%s: unexpected argument %v", predicate, fact.Args[0])
			}
			id, ok := names.id(constant.Symbol)
			if !ok {
				return fmt.Errorf("%s: unknown atom name %s", predicate, constant.Symbol)
			}
			selected[id] = prov
			return nil
		})
	}
	if err := collect("selected_skeleton", gatekeeper.ProvenanceSkeleton); err != nil {
		return nil, err
	}
	if err := collect("selected_flesh", gatekeeper.ProvenanceFlesh); err != nil {
		return nil, err
	}

	logging.ShadowDebug("shadow pass selected %d of %d atoms", len(selected), cat.Count())
	return selected, nil
}

// Check runs the imperative and declarative evaluators concurrently and
// compares their selections. The imperative result is always returned, even
// on divergence, so callers can keep serving while the report is escalated.
func Check(ctx context.Context, cat *atom.Catalog, snap *gatekeeper.Snapshot, scores gatekeeper.Scores) (*gatekeeper.Result, *Report, error) {
	var (
		result *gatekeeper.Result
		mirror map[string]gatekeeper.Provenance
	)

	g, _ := errgroup.WithContext(ctx)
	g.Go(func() error {
		result = gatekeeper.Resolve(cat, snap, scores)
		return nil
	})
	g.Go(func() error {
		var err error
		mirror, err = Evaluate(cat, snap, scores)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	imperative := make(map[string]gatekeeper.Provenance, len(result.Selected))
	for _, sel := range result.Selected {
		imperative[sel.ID] = sel.Provenance
	}

	report := &Report{Match: true}
	if diff := cmp.Diff(imperative, mirror); diff != "" {
		report.Match = false
		report.Diff = diff
		report.Disputed = divergenceSummary(imperative, mirror)
		logging.Shadow("DIVERGENCE pass %s on %v:\n%s", result.PassID, report.Disputed, diff)
	}
	return result, report, nil
}

// divergenceSummary lists the IDs on which two selections disagree, sorted.
func divergenceSummary(a, b map[string]gatekeeper.Provenance) []string {
	disputed := make(map[string]bool)
	for id, prov := range a {
		if other, ok := b[id]; !ok || other != prov {
			disputed[id] = true
		}
	}
	for id := range b {
		if _, ok := a[id]; !ok {
			disputed[id] = true
		}
	}
	ids := make([]string, 0, len(disputed))
	for id := range disputed {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
