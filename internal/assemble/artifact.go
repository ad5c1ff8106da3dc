package assemble

import (
	"fmt"
	"strings"

	"atomgate/internal/atom"
	"atomgate/internal/gatekeeper"
	"atomgate/internal/logging"
)

// Assembler concatenates fitted selections into the final artifact text.
type Assembler struct {
	// atomSeparator is inserted between atom bodies.
	atomSeparator string

	// includeMetadata prefixes each atom with an ID/provenance comment
	// line, useful when inspecting assembled output by hand.
	includeMetadata bool

	// minifyWhitespace collapses runs of blank lines in the result.
	minifyWhitespace bool
}

// AssemblerOption configures an Assembler.
type AssemblerOption func(*Assembler)

// WithSeparator sets the separator between atom bodies.
func WithSeparator(sep string) AssemblerOption {
	return func(a *Assembler) { a.atomSeparator = sep }
}

// WithMetadata enables the per-atom metadata comment line.
func WithMetadata(enabled bool) AssemblerOption {
	return func(a *Assembler) { a.includeMetadata = enabled }
}

// WithMinify collapses excess blank lines in the assembled artifact.
func WithMinify(enabled bool) AssemblerOption {
	return func(a *Assembler) { a.minifyWhitespace = enabled }
}

// NewAssembler creates an assembler with default settings.
func NewAssembler(opts ...AssemblerOption) *Assembler {
	a := &Assembler{atomSeparator: "\n\n"}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Assemble joins the kept selections' content in their fitted order. Every
// selection must exist in the catalog; a miss indicates the result and
// catalog are from different loads and is reported as an error rather than
// silently skipped.
func (a *Assembler) Assemble(cat *atom.Catalog, fit *FitResult) (string, error) {
	timer := logging.StartTimer(logging.CategoryAssemble, "Assembler.Assemble")
	defer timer.Stop()

	if fit == nil || len(fit.Kept) == 0 {
		return "", nil
	}

	parts := make([]string, 0, len(fit.Kept))
	for _, sel := range fit.Kept {
		entry, ok := cat.Get(sel.ID)
		if !ok {
			return "", fmt.Errorf("assembling artifact: atom %q not in catalog", sel.ID)
		}
		body := entry.Content
		if a.includeMetadata {
			body = fmt.Sprintf("<!-- %s (%s, priority %d) -->\n%s",
				sel.ID, sel.Provenance, sel.Priority, body)
		}
		parts = append(parts, body)
	}

	artifact := strings.Join(parts, a.atomSeparator)
	if a.minifyWhitespace {
		artifact = collapseBlankLines(artifact)
	}

	logging.AssembleDebug("assembled %d atoms, %d chars, ~%d tokens",
		len(fit.Kept), len(artifact), atom.EstimateTokens(artifact))
	return artifact, nil
}

// collapseBlankLines reduces runs of blank lines to a single blank line and
// strips trailing whitespace per line.
func collapseBlankLines(content string) string {
	for strings.Contains(content, "\n\n\n") {
		content = strings.ReplaceAll(content, "\n\n\n", "\n\n")
	}
	lines := strings.Split(content, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " \t")
	}
	return strings.Join(lines, "\n")
}

// ArtifactStats summarizes an assembled artifact.
type ArtifactStats struct {
	CharCount     int
	TokenCount    int
	LineCount     int
	AtomCount     int
	SkeletonCount int
	FleshCount    int
}

// Analyze returns statistics for an assembled artifact.
func Analyze(artifact string, fit *FitResult) ArtifactStats {
	stats := ArtifactStats{
		CharCount:  len(artifact),
		TokenCount: atom.EstimateTokens(artifact),
		LineCount:  strings.Count(artifact, "\n") + 1,
	}
	if fit == nil {
		return stats
	}
	stats.AtomCount = len(fit.Kept)
	for _, sel := range fit.Kept {
		if sel.Provenance == gatekeeper.ProvenanceSkeleton {
			stats.SkeletonCount++
		} else {
			stats.FleshCount++
		}
	}
	return stats
}
