package main

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	"atomgate/internal/atom"
	"atomgate/internal/gatekeeper"
	"atomgate/internal/logging"
)

var (
	// Global flags
	verbose    bool
	catalogDir string
	dataDir    string

	// Logger
	logger *zap.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "atomgate",
	Short: "atomgate - deterministic prompt atom resolution",
	Long: `atomgate assembles bounded prompt artifacts from a catalog of content atoms.

A resolution pass is a pure function of the catalog, a context snapshot, and
a relevance score map: mandatory skeleton atoms are admitted first, scored
flesh candidates fill the rest, and a stratified exclusion engine enforces
prohibitions, prerequisite closure, and mutual-exclusion edges. Identical
inputs always produce identical output.

An independent Datalog shadow evaluator (Google Mangle) can re-derive any
pass and flag divergence from the imperative engine.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		config := zap.NewProductionConfig()
		if verbose {
			config.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = config.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}

		// Category file logging reads .atomgate/config.json under the
		// working directory; without debug_mode there it stays silent.
		wd, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("resolving working directory: %w", err)
		}
		if err := logging.Initialize(wd); err != nil {
			logger.Warn("debug logging unavailable", zap.Error(err))
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVar(&catalogDir, "catalog", "catalog", "directory of catalog YAML files")
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", ".atomgate", "directory for the pass history database")

	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(resolveCmd)
	rootCmd.AddCommand(shadowCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(passesCmd)
	rootCmd.AddCommand(dbCmd)
}

func main() {
	defer logging.CloseAll()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// loadCatalog reads and validates the configured catalog directory.
func loadCatalog() (*atom.Catalog, error) {
	cat, err := atom.LoadCatalogDir(catalogDir)
	if err != nil {
		return nil, fmt.Errorf("loading catalog from %s: %w", catalogDir, err)
	}
	return cat, nil
}

// parseContext turns repeated "dimension=value" flags into a snapshot.
func parseContext(pairs []string) (*gatekeeper.Snapshot, error) {
	snap := gatekeeper.NewSnapshot()
	for _, pair := range pairs {
		dim, val, ok := strings.Cut(pair, "=")
		if !ok || dim == "" || val == "" {
			return nil, fmt.Errorf("invalid context pair %q, expected dimension=value", pair)
		}
		snap.Set(dim, val)
	}
	return snap, nil
}

// gatherScores merges a YAML scores file with repeated "atom=score" flags.
// Flag values win over file values for the same atom.
func gatherScores(file string, pairs []string) (gatekeeper.Scores, error) {
	scores := gatekeeper.Scores{}
	if file != "" {
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("reading scores file: %w", err)
		}
		if err := yaml.Unmarshal(data, &scores); err != nil {
			return nil, fmt.Errorf("parsing scores file %s: %w", file, err)
		}
	}
	flagScores, err := parseScores(pairs)
	if err != nil {
		return nil, err
	}
	for id, score := range flagScores {
		scores[id] = score
	}
	return scores, nil
}

// parseScores turns repeated "atom=score" flags into a score map.
func parseScores(pairs []string) (gatekeeper.Scores, error) {
	scores := gatekeeper.Scores{}
	for _, pair := range pairs {
		id, raw, ok := strings.Cut(pair, "=")
		if !ok || id == "" {
			return nil, fmt.Errorf("invalid score pair %q, expected atom=score", pair)
		}
		score, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid score %q for atom %s: %w", raw, id, err)
		}
		scores[id] = score
	}
	return scores, nil
}

// printSelections writes a selection table to stdout.
func printSelections(selections []gatekeeper.Selection) {
	for _, sel := range selections {
		fmt.Printf("  %-30s priority=%-4d score=%.2f %s\n",
			sel.ID, sel.Priority, sel.Score, sel.Provenance)
	}
}

// printRejections writes a rejection table to stdout, grouped by reason.
func printRejections(rejections []gatekeeper.Rejection) {
	byReason := make(map[gatekeeper.RejectionReason][]string)
	for _, rej := range rejections {
		byReason[rej.Reason] = append(byReason[rej.Reason], rej.ID)
	}
	reasons := make([]string, 0, len(byReason))
	for reason := range byReason {
		reasons = append(reasons, string(reason))
	}
	sort.Strings(reasons)
	for _, reason := range reasons {
		fmt.Printf("  %s: %s\n", reason,
			strings.Join(byReason[gatekeeper.RejectionReason(reason)], ", "))
	}
}
