package atom

import (
	"fmt"
	"sort"
	"strings"

	"atomgate/internal/logging"
)

// Catalog is the immutable, versioned table of candidate atoms.
// Construction validates the whole edge set up front: an unknown atom ID in
// a requires or conflicts list is a load-time failure, never a runtime
// selection error. After construction the catalog is read-only and safe to
// share across concurrent resolution passes.
type Catalog struct {
	atoms map[string]*Atom
	ids   []string // sorted, for deterministic iteration
}

// CatalogErrorType categorizes catalog validation errors.
type CatalogErrorType int

const (
	// ErrDuplicateID means two atoms share the same ID.
	ErrDuplicateID CatalogErrorType = iota

	// ErrUnknownRequire means a requires edge references a missing atom.
	ErrUnknownRequire

	// ErrUnknownConflict means a conflicts edge references a missing atom.
	ErrUnknownConflict

	// ErrInvalidAtom means an atom failed its own validation.
	ErrInvalidAtom
)

// CatalogError describes a single catalog validation failure.
type CatalogError struct {
	AtomID string
	RefID  string
	Type   CatalogErrorType
	Cause  error
}

// Error implements the error interface.
func (e CatalogError) Error() string {
	switch e.Type {
	case ErrDuplicateID:
		return fmt.Sprintf("duplicate atom ID %q", e.AtomID)
	case ErrUnknownRequire:
		return fmt.Sprintf("atom %q requires unknown atom %q", e.AtomID, e.RefID)
	case ErrUnknownConflict:
		return fmt.Sprintf("atom %q conflicts with unknown atom %q", e.AtomID, e.RefID)
	case ErrInvalidAtom:
		return fmt.Sprintf("atom %q is invalid: %v", e.AtomID, e.Cause)
	default:
		return fmt.Sprintf("atom %q: unknown catalog error", e.AtomID)
	}
}

// ValidationError aggregates every failure found during catalog construction
// so a bad catalog is reported in full, not one error at a time.
type ValidationError struct {
	Errors []CatalogError
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if len(e.Errors) == 1 {
		return fmt.Sprintf("catalog validation failed: %s", e.Errors[0].Error())
	}
	msgs := make([]string, len(e.Errors))
	for i, ce := range e.Errors {
		msgs[i] = ce.Error()
	}
	return fmt.Sprintf("catalog validation failed with %d errors: %s",
		len(e.Errors), strings.Join(msgs, "; "))
}

// NewCatalog builds a catalog from a slice of atoms, validating every atom
// and every edge. Atoms are cloned so later mutation of the input cannot
// leak into the catalog.
func NewCatalog(atoms []*Atom) (*Catalog, error) {
	timer := logging.StartTimer(logging.CategoryCatalog, "NewCatalog")
	defer timer.Stop()

	c := &Catalog{
		atoms: make(map[string]*Atom, len(atoms)),
	}

	var errs []CatalogError

	for _, a := range atoms {
		if err := a.Validate(); err != nil {
			errs = append(errs, CatalogError{AtomID: a.ID, Type: ErrInvalidAtom, Cause: err})
			continue
		}
		if _, exists := c.atoms[a.ID]; exists {
			errs = append(errs, CatalogError{AtomID: a.ID, Type: ErrDuplicateID})
			continue
		}
		c.atoms[a.ID] = a.Clone()
	}

	// Edge validation runs after all IDs are known
	for _, a := range c.atoms {
		for _, dep := range a.Requires {
			if _, ok := c.atoms[dep]; !ok {
				errs = append(errs, CatalogError{AtomID: a.ID, RefID: dep, Type: ErrUnknownRequire})
			}
		}
		for _, conflict := range a.Conflicts {
			if _, ok := c.atoms[conflict]; !ok {
				errs = append(errs, CatalogError{AtomID: a.ID, RefID: conflict, Type: ErrUnknownConflict})
			}
		}
	}

	if len(errs) > 0 {
		sort.Slice(errs, func(i, j int) bool {
			if errs[i].AtomID != errs[j].AtomID {
				return errs[i].AtomID < errs[j].AtomID
			}
			return errs[i].RefID < errs[j].RefID
		})
		logging.Get(logging.CategoryCatalog).Error(
			"Catalog rejected: %d validation errors", len(errs),
		)
		return nil, &ValidationError{Errors: errs}
	}

	c.ids = make([]string, 0, len(c.atoms))
	for id := range c.atoms {
		c.ids = append(c.ids, id)
	}
	sort.Strings(c.ids)

	logging.Get(logging.CategoryCatalog).Info("Catalog loaded: %d atoms", len(c.ids))
	return c, nil
}

// Get retrieves an atom by ID.
func (c *Catalog) Get(id string) (*Atom, bool) {
	a, ok := c.atoms[id]
	return a, ok
}

// IDs returns all atom IDs in sorted order. The returned slice is shared;
// callers must not modify it.
func (c *Catalog) IDs() []string {
	return c.ids
}

// All returns all atoms in sorted-ID order.
func (c *Catalog) All() []*Atom {
	result := make([]*Atom, 0, len(c.ids))
	for _, id := range c.ids {
		result = append(result, c.atoms[id])
	}
	return result
}

// Count returns the number of atoms in the catalog.
func (c *Catalog) Count() int {
	return len(c.atoms)
}

// ConflictPairs returns every unordered conflict pair {A, B} exactly once,
// with the lexicographically smaller ID first. Symmetry is normalized here
// so no consumer depends on which side declared the edge.
func (c *Catalog) ConflictPairs() [][2]string {
	seen := make(map[[2]string]bool)
	var pairs [][2]string

	for _, id := range c.ids {
		a := c.atoms[id]
		for _, other := range a.Conflicts {
			pair := [2]string{a.ID, other}
			if other < a.ID {
				pair = [2]string{other, a.ID}
			}
			if !seen[pair] {
				seen[pair] = true
				pairs = append(pairs, pair)
			}
		}
	}

	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i][0] != pairs[j][0] {
			return pairs[i][0] < pairs[j][0]
		}
		return pairs[i][1] < pairs[j][1]
	})

	return pairs
}

// ConflictsOf returns the IDs in conflict with the given atom, from either
// side of the symmetric relation, in sorted order.
func (c *Catalog) ConflictsOf(id string) []string {
	seen := make(map[string]bool)
	if a, ok := c.atoms[id]; ok {
		for _, other := range a.Conflicts {
			seen[other] = true
		}
	}
	for _, otherID := range c.ids {
		if otherID == id {
			continue
		}
		for _, target := range c.atoms[otherID].Conflicts {
			if target == id {
				seen[otherID] = true
			}
		}
	}

	result := make([]string, 0, len(seen))
	for other := range seen {
		result = append(result, other)
	}
	sort.Strings(result)
	return result
}

// Dependents returns the IDs of atoms that directly require the given atom,
// in sorted order.
func (c *Catalog) Dependents(id string) []string {
	var result []string
	for _, otherID := range c.ids {
		for _, dep := range c.atoms[otherID].Requires {
			if dep == id {
				result = append(result, otherID)
				break
			}
		}
	}
	return result
}
