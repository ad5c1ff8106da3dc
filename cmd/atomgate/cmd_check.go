package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// checkCmd validates the catalog without running a resolution pass.
var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Validate the catalog directory",
	Long: `Loads every YAML file in the catalog directory and reports validation
failures: duplicate IDs, self-referential edges, and requires/conflicts
entries naming unknown atoms. Exits non-zero if the catalog is unusable.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cat, err := loadCatalog()
		if err != nil {
			return err
		}

		mandatory := 0
		totalTokens := 0
		for _, a := range cat.All() {
			if a.Mandatory {
				mandatory++
			}
			totalTokens += a.TokenCount
		}

		logger.Info("catalog valid",
			zap.String("dir", catalogDir),
			zap.Int("atoms", cat.Count()),
			zap.Int("mandatory", mandatory),
			zap.Int("conflict_pairs", len(cat.ConflictPairs())),
		)
		fmt.Printf("Catalog OK: %d atoms (%d mandatory), %d conflict pairs, ~%d tokens total\n",
			cat.Count(), mandatory, len(cat.ConflictPairs()), totalTokens)
		return nil
	},
}
