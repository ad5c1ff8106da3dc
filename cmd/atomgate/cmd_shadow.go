package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"atomgate/internal/shadow"
)

var (
	shadowContext    []string
	shadowScores     []string
	shadowScoresFile string
)

// shadowCmd runs a differential pass: imperative engine versus the Mangle
// re-derivation.
var shadowCmd = &cobra.Command{
	Use:   "shadow",
	Short: "Cross-check a pass against the Datalog shadow evaluator",
	Long: `Runs the imperative resolution engine and an independent Mangle (Datalog)
program over the same inputs and compares their selections. A divergence
means one evaluator drifted from the agreed semantics; the command exits
non-zero and prints the disagreeing atoms.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cat, err := loadCatalog()
		if err != nil {
			return err
		}
		snap, err := parseContext(shadowContext)
		if err != nil {
			return err
		}
		scores, err := gatherScores(shadowScoresFile, shadowScores)
		if err != nil {
			return err
		}

		res, report, err := shadow.Check(cmd.Context(), cat, snap, scores)
		if err != nil {
			return fmt.Errorf("shadow check: %w", err)
		}

		if report.Match {
			logger.Info("shadow check passed",
				zap.String("pass_id", res.PassID),
				zap.Int("selected", len(res.Selected)),
			)
			fmt.Printf("OK: both evaluators selected %d atoms\n", len(res.Selected))
			printSelections(res.Selected)
			return nil
		}

		logger.Error("shadow check diverged",
			zap.String("pass_id", res.PassID),
			zap.Strings("disputed", report.Disputed),
		)
		fmt.Printf("DIVERGENCE on %v\n%s\n", report.Disputed, report.Diff)
		return fmt.Errorf("evaluators disagree on %d atoms", len(report.Disputed))
	},
}

func init() {
	shadowCmd.Flags().StringArrayVar(&shadowContext, "context", nil, "context dimension=value (repeatable)")
	shadowCmd.Flags().StringArrayVar(&shadowScores, "score", nil, "candidate atom=score (repeatable)")
	shadowCmd.Flags().StringVar(&shadowScoresFile, "scores-file", "", "YAML file mapping atom IDs to scores")
}
