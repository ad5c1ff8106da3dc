// Package atom defines the reusable content fragments ("atoms") that the
// gatekeeper selects from, and the immutable catalog that owns them.
//
// An atom is a small, self-contained fragment with selection metadata:
// context tags, a mandatory flag, a priority, prerequisite edges and
// mutual-exclusion edges. Atoms never exist outside a catalog, and a catalog
// never changes after construction, so a catalog can be shared freely across
// concurrent resolution passes.
package atom

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"time"
)

// Atom represents a single content fragment with its selection metadata.
type Atom struct {
	// Unique identifier for this atom (e.g., "go-error-handling-v2")
	ID string `json:"id"`

	// Version number for tracking updates
	Version int `json:"version"`

	// The actual fragment content (markdown/text). May be empty when the
	// catalog is used purely for selection decisions.
	Content string `json:"content,omitempty"`

	// Estimated token count (cached for downstream budget calculations)
	TokenCount int `json:"token_count"`

	// SHA256 hash of Content for deduplication
	ContentHash string `json:"content_hash,omitempty"`

	// Description used for semantic search (embedded instead of Content)
	Description string `json:"description,omitempty"`

	// Tags holds the contextual selectors as a dimension -> value multimap.
	// An atom may declare zero, one, or several values per dimension; the
	// dimension is satisfied if ANY declared value matches the context's
	// value. A dimension with no declared values never constrains.
	Tags map[string][]string `json:"tags,omitempty"`

	// Priority determines serialization order (higher = earlier)
	Priority int `json:"priority"`

	// Mandatory means this atom MUST be included unless context blocks it
	Mandatory bool `json:"mandatory"`

	// Requires lists atom IDs that must be present for this atom to survive
	Requires []string `json:"requires,omitempty"`

	// Conflicts lists atom IDs that cannot be present with this atom.
	// The relation is symmetric; declaring it on either side is enough.
	Conflicts []string `json:"conflicts,omitempty"`

	// CreatedAt tracks when this atom was created
	CreatedAt time.Time `json:"created_at"`
}

// EstimateTokens estimates the token count for content using chars/4
// approximation. This is a fast heuristic; actual tokenization may vary.
func EstimateTokens(content string) int {
	if content == "" {
		return 0
	}
	return (len(content) + 3) / 4
}

// HashContent computes a SHA256 hash of content for deduplication.
func HashContent(content string) string {
	if content == "" {
		return ""
	}
	hash := sha256.Sum256([]byte(content))
	return hex.EncodeToString(hash[:])
}

// New creates an Atom with computed content fields.
func New(id, content string) *Atom {
	return &Atom{
		ID:          id,
		Version:     1,
		Content:     content,
		TokenCount:  EstimateTokens(content),
		ContentHash: HashContent(content),
		CreatedAt:   time.Now(),
	}
}

// TagValues returns the declared values for a dimension, or nil.
func (a *Atom) TagValues(dimension string) []string {
	if a.Tags == nil {
		return nil
	}
	return a.Tags[dimension]
}

// HasTag reports whether the atom declares the given value for a dimension.
func (a *Atom) HasTag(dimension, value string) bool {
	for _, v := range a.Tags[dimension] {
		if v == value {
			return true
		}
	}
	return false
}

// Dimensions returns the dimensions the atom declares at least one value
// for, in sorted order.
func (a *Atom) Dimensions() []string {
	if len(a.Tags) == 0 {
		return nil
	}
	dims := make([]string, 0, len(a.Tags))
	for dim, values := range a.Tags {
		if len(values) > 0 {
			dims = append(dims, dim)
		}
	}
	sort.Strings(dims)
	return dims
}

// Validate checks the atom for internal consistency errors.
func (a *Atom) Validate() error {
	if a.ID == "" {
		return fmt.Errorf("atom ID is required")
	}

	for _, dep := range a.Requires {
		if dep == a.ID {
			return fmt.Errorf("atom %q cannot require itself", a.ID)
		}
		if dep == "" {
			return fmt.Errorf("atom %q has an empty requires entry", a.ID)
		}
	}

	for _, conflict := range a.Conflicts {
		if conflict == a.ID {
			return fmt.Errorf("atom %q cannot conflict with itself", a.ID)
		}
		if conflict == "" {
			return fmt.Errorf("atom %q has an empty conflicts entry", a.ID)
		}
	}

	return nil
}

// Clone creates a deep copy of the atom.
func (a *Atom) Clone() *Atom {
	clone := *a

	if a.Tags != nil {
		clone.Tags = make(map[string][]string, len(a.Tags))
		for dim, values := range a.Tags {
			clone.Tags[dim] = copyStringSlice(values)
		}
	}
	clone.Requires = copyStringSlice(a.Requires)
	clone.Conflicts = copyStringSlice(a.Conflicts)

	return &clone
}

// copyStringSlice creates a deep copy of a string slice.
func copyStringSlice(s []string) []string {
	if s == nil {
		return nil
	}
	c := make([]string, len(s))
	copy(c, s)
	return c
}
