package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"atomgate/internal/atom"
	"atomgate/internal/gatekeeper"
)

var (
	watchContext    []string
	watchScores     []string
	watchScoresFile string
)

// watchCmd re-runs a resolution pass whenever the catalog directory
// changes, printing the new selection. Useful while authoring atoms.
var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch the catalog and re-resolve on every change",
	RunE: func(cmd *cobra.Command, args []string) error {
		snap, err := parseContext(watchContext)
		if err != nil {
			return err
		}
		scores, err := gatherScores(watchScoresFile, watchScores)
		if err != nil {
			return err
		}

		report := func(cat *atom.Catalog, loadErr error) {
			if loadErr != nil {
				logger.Warn("catalog reload failed", zap.Error(loadErr))
				fmt.Printf("catalog invalid: %v\n", loadErr)
				return
			}
			res := gatekeeper.Resolve(cat, snap, scores)
			fmt.Printf("catalog reloaded: %d atoms, %d selected\n",
				cat.Count(), len(res.Selected))
			printSelections(res.Selected)
		}

		// Initial pass before any file event.
		cat, err := loadCatalog()
		report(cat, err)

		watcher, err := atom.NewCatalogWatcher(catalogDir, report)
		if err != nil {
			return fmt.Errorf("starting watcher: %w", err)
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := watcher.Start(ctx); err != nil {
			return err
		}
		defer watcher.Stop()

		fmt.Printf("watching %s (ctrl-c to stop)\n", catalogDir)
		<-ctx.Done()

		stats := watcher.GetStats()
		logger.Info("watcher stopped",
			zap.Int("files_changed", stats.FilesChanged),
			zap.Int("reloads", stats.ReloadsAttempted),
		)
		return nil
	},
}

func init() {
	watchCmd.Flags().StringArrayVar(&watchContext, "context", nil, "context dimension=value (repeatable)")
	watchCmd.Flags().StringArrayVar(&watchScores, "score", nil, "candidate atom=score (repeatable)")
	watchCmd.Flags().StringVar(&watchScoresFile, "scores-file", "", "YAML file mapping atom IDs to scores")
}
