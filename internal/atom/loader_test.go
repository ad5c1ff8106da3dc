package atom

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestParseYAML_ListOfAtoms(t *testing.T) {
	path := writeFile(t, t.TempDir(), "atoms.yaml", `
- id: core_rules
  mandatory: true
  priority: 100
  content: "Always be safe."
  tags:
    mode: active
- id: go_style
  priority: 50
  content: "Prefer small interfaces."
  tags:
    language: [go]
  requires:
    - core_rules
`)

	atoms, err := ParseYAML(path)
	require.NoError(t, err)
	require.Len(t, atoms, 2)

	core := atoms[0]
	assert.Equal(t, "core_rules", core.ID)
	assert.True(t, core.Mandatory)
	assert.Equal(t, 100, core.Priority)
	// Scalar tag values normalize to single-element lists.
	assert.Equal(t, []string{"active"}, core.TagValues("mode"))
	assert.Equal(t, EstimateTokens("Always be safe."), core.TokenCount)

	style := atoms[1]
	assert.Equal(t, []string{"go"}, style.TagValues("language"))
	assert.Equal(t, []string{"core_rules"}, style.Requires)
}

func TestParseYAML_SingleAtom(t *testing.T) {
	path := writeFile(t, t.TempDir(), "one.yaml", `
id: solo
priority: 10
content: just one
`)

	atoms, err := ParseYAML(path)
	require.NoError(t, err)
	require.Len(t, atoms, 1)
	assert.Equal(t, "solo", atoms[0].ID)
}

func TestParseYAML_ContentFile(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "body.md", "external content body")
	path := writeFile(t, dir, "atom.yaml", `
id: external
content_file: body.md
`)

	atoms, err := ParseYAML(path)
	require.NoError(t, err)
	require.Len(t, atoms, 1)
	assert.Equal(t, "external content body", atoms[0].Content)
	assert.Equal(t, HashContent("external content body"), atoms[0].ContentHash)
}

func TestParseYAML_Errors(t *testing.T) {
	dir := t.TempDir()

	t.Run("missing id", func(t *testing.T) {
		path := writeFile(t, dir, "noid.yaml", `
- content: body without id
`)
		_, err := ParseYAML(path)
		assert.ErrorContains(t, err, "missing ID")
	})

	t.Run("missing content file", func(t *testing.T) {
		path := writeFile(t, dir, "nofile.yaml", `
- id: broken
  content_file: does_not_exist.md
`)
		_, err := ParseYAML(path)
		assert.ErrorContains(t, err, "content file")
	})

	t.Run("malformed yaml", func(t *testing.T) {
		path := writeFile(t, dir, "broken.yaml", "{{not yaml")
		_, err := ParseYAML(path)
		assert.Error(t, err)
	})

	t.Run("nonexistent path", func(t *testing.T) {
		_, err := ParseYAML(filepath.Join(dir, "missing.yaml"))
		assert.Error(t, err)
	})
}

func TestLoadCatalogDir(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "core.yaml", `
- id: core
  mandatory: true
  content: core body
`)
	writeFile(t, dir, "nested/extra.yml", `
- id: extra
  content: extra body
  requires: [core]
`)
	writeFile(t, dir, "ignored.txt", "not yaml")

	cat, err := LoadCatalogDir(dir)
	require.NoError(t, err)
	assert.Equal(t, 2, cat.Count())
	assert.Equal(t, []string{"core", "extra"}, cat.IDs())
}

func TestLoadCatalogDir_NoFiles(t *testing.T) {
	_, err := LoadCatalogDir(t.TempDir())
	assert.ErrorContains(t, err, "no YAML catalog files")
}

func TestLoadCatalogDir_CrossFileEdgeValidation(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "atoms.yaml", `
- id: dangling
  content: x
  requires: [ghost]
`)

	_, err := LoadCatalogDir(dir)
	require.Error(t, err)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, ErrUnknownRequire, verr.Errors[0].Type)
}
