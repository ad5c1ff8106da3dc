package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"atomgate/internal/assemble"
	"atomgate/internal/gatekeeper"
	"atomgate/internal/store"
)

var (
	resolveContext    []string
	resolveScores     []string
	resolveScoresFile string
	resolveBudget     int
	resolveRecord     bool
	resolveOut        string
	resolveRejected   bool
	resolveMetadata   bool
)

// resolveCmd runs one resolution pass and prints or writes the artifact.
var resolveCmd = &cobra.Command{
	Use:   "resolve",
	Short: "Run a resolution pass and assemble the artifact",
	Example: `  atomgate resolve --context mode=active --score intro=0.9 --score extras=0.4
  atomgate resolve --budget 4000 --out artifact.txt --record`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cat, err := loadCatalog()
		if err != nil {
			return err
		}
		snap, err := parseContext(resolveContext)
		if err != nil {
			return err
		}
		scores, err := gatherScores(resolveScoresFile, resolveScores)
		if err != nil {
			return err
		}

		res := gatekeeper.Resolve(cat, snap, scores)
		logger.Info("pass complete",
			zap.String("pass_id", res.PassID),
			zap.Int("selected", res.Stats.Selected),
			zap.Int("catalog", res.Stats.CatalogSize),
		)

		if resolveRecord {
			db, err := store.NewStore(dataDir)
			if err != nil {
				return err
			}
			defer db.Close()
			if err := db.RecordPass(snap, res); err != nil {
				return fmt.Errorf("recording pass: %w", err)
			}
		}

		fit := assemble.NewBudgetFitter(resolveBudget).Fit(cat, res)
		artifact, err := assemble.NewAssembler(assemble.WithMetadata(resolveMetadata)).Assemble(cat, fit)
		if err != nil {
			return err
		}

		fmt.Fprintf(os.Stderr, "Pass %s: %d selected, %d kept after budget (~%d tokens)\n",
			res.PassID, len(res.Selected), len(fit.Kept), fit.TokensUsed)
		printSelections(fit.Kept)
		if len(fit.DroppedBudget) > 0 || len(fit.DroppedCascade) > 0 {
			fmt.Fprintf(os.Stderr, "Dropped for space: %v, cascaded: %v\n",
				fit.DroppedBudget, fit.DroppedCascade)
		}
		if resolveRejected {
			fmt.Println("Rejected:")
			printRejections(res.Rejected)
		}

		if resolveOut != "" {
			if err := os.WriteFile(resolveOut, []byte(artifact), 0644); err != nil {
				return fmt.Errorf("writing artifact: %w", err)
			}
			fmt.Fprintf(os.Stderr, "Artifact written to %s\n", resolveOut)
			return nil
		}
		fmt.Println(artifact)
		return nil
	},
}

func init() {
	resolveCmd.Flags().StringArrayVar(&resolveContext, "context", nil, "context dimension=value (repeatable)")
	resolveCmd.Flags().StringArrayVar(&resolveScores, "score", nil, "candidate atom=score (repeatable)")
	resolveCmd.Flags().StringVar(&resolveScoresFile, "scores-file", "", "YAML file mapping atom IDs to scores")
	resolveCmd.Flags().IntVar(&resolveBudget, "budget", 0, "token budget for the artifact (0 = unlimited)")
	resolveCmd.Flags().BoolVar(&resolveRecord, "record", false, "record the pass in the history database")
	resolveCmd.Flags().StringVarP(&resolveOut, "out", "o", "", "write the artifact to a file instead of stdout")
	resolveCmd.Flags().BoolVar(&resolveRejected, "rejected", false, "also print rejected atoms grouped by reason")
	resolveCmd.Flags().BoolVar(&resolveMetadata, "metadata", false, "prefix each atom with an ID comment")
}
