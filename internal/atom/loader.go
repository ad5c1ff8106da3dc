package atom

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"atomgate/internal/logging"
)

// yamlAtomDefinition matches the on-disk YAML structure for atom catalogs.
// Tags are a dimension -> values mapping; scalar values are accepted and
// normalized to single-element lists.
type yamlAtomDefinition struct {
	ID          string `yaml:"id"`
	Description string `yaml:"description,omitempty"`

	Priority  int  `yaml:"priority"`
	Mandatory bool `yaml:"mandatory"`

	Tags      map[string]yamlStringList `yaml:"tags,omitempty"`
	Requires  []string                  `yaml:"requires,omitempty"`
	Conflicts []string                  `yaml:"conflicts,omitempty"`

	Content     string `yaml:"content,omitempty"`
	ContentFile string `yaml:"content_file,omitempty"`
}

// yamlStringList unmarshals either a scalar or a sequence of strings.
type yamlStringList []string

// UnmarshalYAML implements yaml.Unmarshaler.
func (l *yamlStringList) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		var s string
		if err := node.Decode(&s); err != nil {
			return err
		}
		*l = []string{s}
		return nil
	case yaml.SequenceNode:
		var values []string
		if err := node.Decode(&values); err != nil {
			return err
		}
		*l = values
		return nil
	default:
		return fmt.Errorf("tag values must be a string or a list of strings")
	}
}

// ParseYAML parses a YAML file containing atom definitions.
// The file may contain a single atom or a list of atoms.
func ParseYAML(path string) ([]*Atom, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	var rawAtoms []yamlAtomDefinition
	if err := yaml.Unmarshal(data, &rawAtoms); err != nil {
		// Try parsing as single atom
		var single yamlAtomDefinition
		if singleErr := yaml.Unmarshal(data, &single); singleErr != nil {
			return nil, fmt.Errorf("failed to parse YAML: %w", err)
		}
		rawAtoms = []yamlAtomDefinition{single}
	}

	atoms := make([]*Atom, 0, len(rawAtoms))
	for _, raw := range rawAtoms {
		a, err := convertYAMLAtom(raw, path)
		if err != nil {
			return nil, fmt.Errorf("invalid atom in %s: %w", filepath.Base(path), err)
		}
		atoms = append(atoms, a)
	}

	return atoms, nil
}

// convertYAMLAtom converts a YAML atom definition to an Atom.
func convertYAMLAtom(raw yamlAtomDefinition, sourcePath string) (*Atom, error) {
	if raw.ID == "" {
		return nil, fmt.Errorf("atom missing ID")
	}

	content := raw.Content
	if raw.ContentFile != "" && content == "" {
		contentPath := filepath.Join(filepath.Dir(sourcePath), raw.ContentFile)
		contentData, err := os.ReadFile(contentPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read content file %s: %w", raw.ContentFile, err)
		}
		content = string(contentData)
	}

	var tags map[string][]string
	if len(raw.Tags) > 0 {
		tags = make(map[string][]string, len(raw.Tags))
		for dim, values := range raw.Tags {
			tags[dim] = []string(values)
		}
	}

	a := &Atom{
		ID:          raw.ID,
		Version:     1,
		Description: raw.Description,
		Content:     content,
		TokenCount:  EstimateTokens(content),
		ContentHash: HashContent(content),
		Priority:    raw.Priority,
		Mandatory:   raw.Mandatory,
		Tags:        tags,
		Requires:    raw.Requires,
		Conflicts:   raw.Conflicts,
		CreatedAt:   time.Now(),
	}

	if err := a.Validate(); err != nil {
		return nil, err
	}

	return a, nil
}

// LoadCatalog parses one or more YAML files and builds a validated catalog.
func LoadCatalog(paths ...string) (*Catalog, error) {
	timer := logging.StartTimer(logging.CategoryCatalog, "LoadCatalog")
	defer timer.Stop()

	var all []*Atom
	for _, path := range paths {
		atoms, err := ParseYAML(path)
		if err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", path, err)
		}
		logging.Get(logging.CategoryCatalog).Debug(
			"Parsed %d atoms from %s", len(atoms), filepath.Base(path),
		)
		all = append(all, atoms...)
	}

	return NewCatalog(all)
}

// LoadCatalogDir recursively loads every YAML file under a directory into a
// single validated catalog.
func LoadCatalogDir(dirPath string) (*Catalog, error) {
	timer := logging.StartTimer(logging.CategoryCatalog, "LoadCatalogDir")
	defer timer.Stop()

	var paths []string
	err := filepath.Walk(dirPath, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		ext := strings.ToLower(filepath.Ext(path))
		if ext != ".yaml" && ext != ".yml" {
			return nil
		}
		paths = append(paths, path)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk directory %s: %w", dirPath, err)
	}

	if len(paths) == 0 {
		return nil, fmt.Errorf("no YAML catalog files found in %s", dirPath)
	}

	return LoadCatalog(paths...)
}
