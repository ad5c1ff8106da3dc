package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"atomgate/internal/atom"
	"atomgate/internal/gatekeeper"
)

func newStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleAtoms() []*atom.Atom {
	core := atom.New("core", "core content")
	core.Mandatory = true
	core.Priority = 100
	core.Description = "baseline rules"
	core.Tags = map[string][]string{"mode": {"active", "dream"}}

	helper := atom.New("helper", "helper content")
	helper.Priority = 40

	feature := atom.New("feature", "feature content")
	feature.Priority = 60
	feature.Requires = []string{"helper"}
	feature.Conflicts = []string{"core"}

	return []*atom.Atom{core, helper, feature}
}

func TestStore_SaveAndLoadRoundTrip(t *testing.T) {
	s := newStore(t)
	require.NoError(t, s.SaveAtoms(sampleAtoms()))

	cat, err := s.LoadCatalog()
	require.NoError(t, err)
	require.Equal(t, 3, cat.Count())

	core, ok := cat.Get("core")
	require.True(t, ok)
	assert.True(t, core.Mandatory)
	assert.Equal(t, 100, core.Priority)
	assert.Equal(t, "baseline rules", core.Description)
	assert.Equal(t, []string{"active", "dream"}, core.TagValues("mode"))
	assert.Equal(t, "core content", core.Content)
	assert.NotEmpty(t, core.ContentHash)

	feature, ok := cat.Get("feature")
	require.True(t, ok)
	assert.Equal(t, []string{"helper"}, feature.Requires)
	assert.Equal(t, []string{"core"}, feature.Conflicts)
}

func TestStore_UpsertOverwrites(t *testing.T) {
	s := newStore(t)
	a := atom.New("solo", "first draft")
	require.NoError(t, s.SaveAtoms([]*atom.Atom{a}))

	a.Content = "second draft"
	a.Version = 2
	a.Priority = 75
	require.NoError(t, s.SaveAtoms([]*atom.Atom{a}))

	cat, err := s.LoadCatalog()
	require.NoError(t, err)
	require.Equal(t, 1, cat.Count())

	loaded, _ := cat.Get("solo")
	assert.Equal(t, "second draft", loaded.Content)
	assert.Equal(t, 2, loaded.Version)
	assert.Equal(t, 75, loaded.Priority)
}

func TestStore_DeleteAtom(t *testing.T) {
	s := newStore(t)
	require.NoError(t, s.SaveAtoms([]*atom.Atom{atom.New("gone", "x")}))

	require.NoError(t, s.DeleteAtom("gone"))

	n, err := s.AtomCount()
	require.NoError(t, err)
	assert.Zero(t, n)

	err = s.DeleteAtom("gone")
	assert.ErrorContains(t, err, "not found")
}

func TestStore_LoadCatalogValidates(t *testing.T) {
	s := newStore(t)
	dangling := atom.New("dangling", "x")
	dangling.Requires = []string{"nowhere"}
	require.NoError(t, s.SaveAtoms([]*atom.Atom{dangling}))

	_, err := s.LoadCatalog()
	require.Error(t, err)
}

func TestStore_RecordAndLoadPass(t *testing.T) {
	s := newStore(t)

	core := atom.New("core", "core content")
	core.Mandatory = true
	core.Priority = 100
	extra := atom.New("extra", "extra content")
	extra.Priority = 50
	cat, err := atom.NewCatalog([]*atom.Atom{core, extra})
	require.NoError(t, err)

	snap := gatekeeper.NewSnapshot().Set("mode", "active")
	res := gatekeeper.Resolve(cat, snap, gatekeeper.Scores{"extra": 0.8})
	require.NoError(t, s.RecordPass(snap, res))

	rec, err := s.LoadPass(res.PassID)
	require.NoError(t, err)
	assert.Equal(t, res.PassID, rec.ID)
	assert.Equal(t, map[string]string{"mode": "active"}, rec.Context)
	assert.Equal(t, res.Stats, rec.Stats)
	assert.Equal(t, res.Selected, rec.Selected)
	assert.Equal(t, res.Rejected, rec.Rejected)
}

func TestStore_LoadPassNotFound(t *testing.T) {
	s := newStore(t)
	_, err := s.LoadPass("no-such-pass")
	assert.ErrorContains(t, err, "not found")
}

func TestStore_ListPasses(t *testing.T) {
	s := newStore(t)

	core := atom.New("core", "core content")
	core.Mandatory = true
	cat, err := atom.NewCatalog([]*atom.Atom{core})
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		res := gatekeeper.Resolve(cat, gatekeeper.NewSnapshot(), nil)
		require.NoError(t, s.RecordPass(gatekeeper.NewSnapshot(), res))
	}

	records, err := s.ListPasses(2)
	require.NoError(t, err)
	assert.Len(t, records, 2)
	for _, rec := range records {
		assert.Equal(t, 1, rec.Stats.Selected)
		assert.Empty(t, rec.Selected, "summaries omit details")
	}
}
