package assemble

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"atomgate/internal/atom"
	"atomgate/internal/gatekeeper"
)

func contentAtom(id, content string, mandatory bool, priority int) *atom.Atom {
	a := atom.New(id, content)
	a.Mandatory = mandatory
	a.Priority = priority
	return a
}

func resolve(t *testing.T, scores gatekeeper.Scores, atoms ...*atom.Atom) (*atom.Catalog, *gatekeeper.Result) {
	t.Helper()
	cat, err := atom.NewCatalog(atoms)
	require.NoError(t, err)
	return cat, gatekeeper.Resolve(cat, gatekeeper.NewSnapshot(), scores)
}

// repeat builds content with a predictable token estimate: EstimateTokens
// uses (len+3)/4, so 4*n characters cost roughly n tokens.
func repeat(n int) string {
	return strings.Repeat("abcd", n)
}

func TestBudgetFitter_UnlimitedKeepsEverything(t *testing.T) {
	cat, res := resolve(t, gatekeeper.Scores{"flesh_a": 0.5},
		contentAtom("core", repeat(100), true, 100),
		contentAtom("flesh_a", repeat(100), false, 50),
	)

	fit := NewBudgetFitter(0).Fit(cat, res)

	assert.Len(t, fit.Kept, 2)
	assert.Empty(t, fit.DroppedBudget)
	assert.Empty(t, fit.DroppedCascade)
}

func TestBudgetFitter_DropsLowestRankedFirst(t *testing.T) {
	cat, res := resolve(t, gatekeeper.Scores{"flesh_hi": 0.9, "flesh_lo": 0.9},
		contentAtom("core", repeat(50), true, 100),
		contentAtom("flesh_hi", repeat(50), false, 80),
		contentAtom("flesh_lo", repeat(50), false, 20),
	)

	// Room for the skeleton plus one flesh atom.
	fit := NewBudgetFitter(110).Fit(cat, res)

	kept := make([]string, 0, len(fit.Kept))
	for _, sel := range fit.Kept {
		kept = append(kept, sel.ID)
	}
	assert.Equal(t, []string{"core", "flesh_hi"}, kept)
	assert.Equal(t, []string{"flesh_lo"}, fit.DroppedBudget)
}

func TestBudgetFitter_SkeletonExemptEvenOverBudget(t *testing.T) {
	cat, res := resolve(t, nil,
		contentAtom("core_a", repeat(100), true, 100),
		contentAtom("core_b", repeat(100), true, 90),
	)

	fit := NewBudgetFitter(50).Fit(cat, res)

	assert.Len(t, fit.Kept, 2)
	assert.Greater(t, fit.TokensUsed, 50)
}

func TestBudgetFitter_SkeletonPrerequisiteExempt(t *testing.T) {
	core := contentAtom("core", repeat(50), true, 100)
	core.Requires = []string{"helper"}
	cat, res := resolve(t, nil,
		core,
		contentAtom("helper", repeat(200), false, 10),
	)

	// helper is flesh (pulled in as a prerequisite) and far over budget,
	// but the skeleton needs it.
	fit := NewBudgetFitter(60).Fit(cat, res)

	require.Len(t, fit.Kept, 2)
	assert.Empty(t, fit.DroppedBudget)
}

func TestBudgetFitter_CascadeDropsDependents(t *testing.T) {
	user := contentAtom("user", repeat(10), false, 90)
	user.Requires = []string{"big_dep"}
	cat, res := resolve(t, gatekeeper.Scores{"user": 0.9},
		user,
		contentAtom("big_dep", repeat(500), false, 10),
	)

	// user fits easily but its prerequisite does not, so both must go.
	fit := NewBudgetFitter(100).Fit(cat, res)

	assert.Empty(t, fit.Kept)
	assert.Equal(t, []string{"big_dep"}, fit.DroppedBudget)
	assert.Equal(t, []string{"user"}, fit.DroppedCascade)
	assert.Zero(t, fit.TokensUsed)
}

func TestAssembler_JoinsInOrder(t *testing.T) {
	cat, res := resolve(t, gatekeeper.Scores{"beta": 0.5},
		contentAtom("alpha", "first part", true, 100),
		contentAtom("beta", "second part", false, 50),
	)
	fit := NewBudgetFitter(0).Fit(cat, res)

	artifact, err := NewAssembler().Assemble(cat, fit)
	require.NoError(t, err)

	assert.Equal(t, "first part\n\nsecond part", artifact)
}

func TestAssembler_Metadata(t *testing.T) {
	cat, res := resolve(t, nil, contentAtom("alpha", "body", true, 100))
	fit := NewBudgetFitter(0).Fit(cat, res)

	artifact, err := NewAssembler(WithMetadata(true)).Assemble(cat, fit)
	require.NoError(t, err)

	assert.Contains(t, artifact, "<!-- alpha (skeleton, priority 100) -->")
	assert.Contains(t, artifact, "body")
}

func TestAssembler_Minify(t *testing.T) {
	cat, res := resolve(t, nil, contentAtom("alpha", "a\n\n\n\nb  ", true, 100))
	fit := NewBudgetFitter(0).Fit(cat, res)

	artifact, err := NewAssembler(WithMinify(true)).Assemble(cat, fit)
	require.NoError(t, err)

	assert.Equal(t, "a\n\nb", artifact)
}

func TestAssembler_EmptyFit(t *testing.T) {
	cat, err := atom.NewCatalog(nil)
	require.NoError(t, err)

	artifact, err := NewAssembler().Assemble(cat, &FitResult{})
	require.NoError(t, err)
	assert.Empty(t, artifact)
}

func TestAnalyze(t *testing.T) {
	cat, res := resolve(t, gatekeeper.Scores{"beta": 0.5},
		contentAtom("alpha", "first", true, 100),
		contentAtom("beta", "second", false, 50),
	)
	fit := NewBudgetFitter(0).Fit(cat, res)
	artifact, err := NewAssembler().Assemble(cat, fit)
	require.NoError(t, err)

	stats := Analyze(artifact, fit)
	assert.Equal(t, 2, stats.AtomCount)
	assert.Equal(t, 1, stats.SkeletonCount)
	assert.Equal(t, 1, stats.FleshCount)
	assert.Equal(t, len(artifact), stats.CharCount)
}
