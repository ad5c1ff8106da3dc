// Package gatekeeper resolves which atoms from a catalog are admitted into a
// budgeted output artifact. It reconciles three competing forces: mandatory
// skeleton content that must always appear unless context contradicts it,
// similarity-ranked flesh candidates, and a network of hard constraints
// (explicit prohibitions, prerequisite edges, mutual exclusions).
//
// A resolution pass is a pure function of (catalog, snapshot, scores): it
// performs no I/O, blocks on nothing, and always terminates. The catalog is
// read-only and safely shared; snapshot and scores are owned by one pass.
package gatekeeper

import (
	"fmt"
	"sort"
	"strings"
)

// Snapshot holds the current session's dimension -> value assignments
// (e.g., active mode, target language). It is read-only for the duration of
// a resolution pass and has no identity beyond that pass. Dimension keys are
// normalized on write and on lookup, so "Mode" and "mode" name the same
// dimension.
type Snapshot struct {
	values map[string]string
}

// NewSnapshot creates an empty context snapshot.
func NewSnapshot() *Snapshot {
	return &Snapshot{values: make(map[string]string)}
}

// SnapshotFrom creates a snapshot from a dimension -> value map.
func SnapshotFrom(values map[string]string) *Snapshot {
	s := NewSnapshot()
	for dim, val := range values {
		s.Set(dim, val)
	}
	return s
}

// Set assigns a value for a dimension and returns the snapshot for chaining.
// Setting an empty value clears the dimension.
func (s *Snapshot) Set(dimension, value string) *Snapshot {
	dimension = NormalizeDimension(dimension)
	if value == "" {
		delete(s.values, dimension)
		return s
	}
	s.values[dimension] = value
	return s
}

// Value returns the assigned value for a dimension and whether one is set.
func (s *Snapshot) Value(dimension string) (string, bool) {
	if s == nil {
		return "", false
	}
	v, ok := s.values[NormalizeDimension(dimension)]
	return v, ok
}

// Dimensions returns the assigned dimensions in sorted order.
func (s *Snapshot) Dimensions() []string {
	if s == nil || len(s.values) == 0 {
		return nil
	}
	dims := make([]string, 0, len(s.values))
	for dim := range s.values {
		dims = append(dims, dim)
	}
	sort.Strings(dims)
	return dims
}

// Clone creates a deep copy of the snapshot.
func (s *Snapshot) Clone() *Snapshot {
	clone := NewSnapshot()
	if s != nil {
		for dim, val := range s.values {
			clone.values[dim] = val
		}
	}
	return clone
}

// String returns a human-readable summary of the snapshot.
func (s *Snapshot) String() string {
	dims := s.Dimensions()
	parts := make([]string, 0, len(dims))
	for _, dim := range dims {
		parts = append(parts, fmt.Sprintf("%s=%s", dim, s.values[dim]))
	}
	return fmt.Sprintf("Snapshot{%s}", strings.Join(parts, ", "))
}

// Scores maps atom IDs to the normalized relevance score supplied by the
// external similarity search for the current pass. Only atoms present here
// are eligible for non-mandatory selection.
type Scores map[string]float64

// NormalizeTagValue canonicalizes a tag or context value so that legacy
// "/"-prefixed constants and bare values compare equal. Exported so the
// Datalog shadow renders tag facts through the exact same canonicalization
// this engine matches with.
func NormalizeTagValue(value string) string {
	value = strings.TrimSpace(value)
	value = strings.TrimPrefix(value, "/")
	return strings.ToLower(value)
}

// NormalizeDimension canonicalizes a dimension key. Dimensions follow the
// same rule as values so catalog authors and callers never have to agree on
// casing.
func NormalizeDimension(dimension string) string {
	return NormalizeTagValue(dimension)
}
