package atom

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCatalog_Valid(t *testing.T) {
	a := New("alpha", "a")
	a.Requires = []string{"beta"}
	b := New("beta", "b")
	b.Conflicts = []string{"gamma"}
	c := New("gamma", "c")

	cat, err := NewCatalog([]*Atom{c, a, b})
	require.NoError(t, err)

	assert.Equal(t, 3, cat.Count())
	assert.Equal(t, []string{"alpha", "beta", "gamma"}, cat.IDs())

	got, ok := cat.Get("beta")
	require.True(t, ok)
	assert.Equal(t, "beta", got.ID)

	_, ok = cat.Get("missing")
	assert.False(t, ok)

	all := cat.All()
	require.Len(t, all, 3)
	assert.Equal(t, "alpha", all[0].ID)
}

func TestNewCatalog_ClonesInput(t *testing.T) {
	a := New("alpha", "a")
	a.Tags = map[string][]string{"mode": {"active"}}

	cat, err := NewCatalog([]*Atom{a})
	require.NoError(t, err)

	a.Tags["mode"][0] = "dream"
	a.Priority = 999

	got, _ := cat.Get("alpha")
	assert.Equal(t, "active", got.Tags["mode"][0])
	assert.Zero(t, got.Priority)
}

func TestNewCatalog_AggregatesErrors(t *testing.T) {
	bad := New("bad", "x")
	bad.Requires = []string{"nowhere"}
	bad.Conflicts = []string{"nobody"}
	dup1 := New("dup", "x")
	dup2 := New("dup", "x")
	selfish := New("selfish", "x")
	selfish.Requires = []string{"selfish"}

	_, err := NewCatalog([]*Atom{bad, dup1, dup2, selfish})
	require.Error(t, err)

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	require.Len(t, verr.Errors, 4)

	types := make(map[CatalogErrorType]int)
	for _, ce := range verr.Errors {
		types[ce.Type]++
	}
	assert.Equal(t, 1, types[ErrDuplicateID])
	assert.Equal(t, 1, types[ErrUnknownRequire])
	assert.Equal(t, 1, types[ErrUnknownConflict])
	assert.Equal(t, 1, types[ErrInvalidAtom])

	assert.Contains(t, err.Error(), "4 errors")
}

func TestCatalog_ConflictPairs(t *testing.T) {
	// zeta declares the edge; alpha does not. Both declare the pair with
	// mid, which must still appear only once.
	zeta := New("zeta", "x")
	zeta.Conflicts = []string{"alpha", "mid"}
	mid := New("mid", "x")
	mid.Conflicts = []string{"zeta"}
	alpha := New("alpha", "x")

	cat, err := NewCatalog([]*Atom{zeta, mid, alpha})
	require.NoError(t, err)

	assert.Equal(t, [][2]string{
		{"alpha", "zeta"},
		{"mid", "zeta"},
	}, cat.ConflictPairs())
}

func TestCatalog_ConflictsOf(t *testing.T) {
	zeta := New("zeta", "x")
	zeta.Conflicts = []string{"alpha"}
	alpha := New("alpha", "x")
	solo := New("solo", "x")

	cat, err := NewCatalog([]*Atom{zeta, alpha, solo})
	require.NoError(t, err)

	// Both sides of the symmetric relation see the edge.
	assert.Equal(t, []string{"alpha"}, cat.ConflictsOf("zeta"))
	assert.Equal(t, []string{"zeta"}, cat.ConflictsOf("alpha"))
	assert.Empty(t, cat.ConflictsOf("solo"))
}

func TestCatalog_Dependents(t *testing.T) {
	base := New("base", "x")
	user1 := New("user1", "x")
	user1.Requires = []string{"base"}
	user2 := New("user2", "x")
	user2.Requires = []string{"base", "user1"}

	cat, err := NewCatalog([]*Atom{base, user1, user2})
	require.NoError(t, err)

	assert.Equal(t, []string{"user1", "user2"}, cat.Dependents("base"))
	assert.Equal(t, []string{"user2"}, cat.Dependents("user1"))
	assert.Empty(t, cat.Dependents("user2"))
}

func TestNewCatalog_Empty(t *testing.T) {
	cat, err := NewCatalog(nil)
	require.NoError(t, err)
	assert.Zero(t, cat.Count())
	assert.Empty(t, cat.IDs())
}
