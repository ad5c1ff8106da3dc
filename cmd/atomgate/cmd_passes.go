package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"atomgate/internal/store"
)

var passesLimit int

// passesCmd lists recorded resolution passes.
var passesCmd = &cobra.Command{
	Use:   "passes [pass-id]",
	Short: "List or inspect recorded resolution passes",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := store.NewStore(dataDir)
		if err != nil {
			return err
		}
		defer db.Close()

		if len(args) == 1 {
			return showPass(db, args[0])
		}

		records, err := db.ListPasses(passesLimit)
		if err != nil {
			return err
		}
		if len(records) == 0 {
			fmt.Println("no recorded passes")
			return nil
		}
		for _, rec := range records {
			fmt.Printf("%s  %s  %d/%d selected (%d blocked, %d prohibited, %d suppressed, %d invalid)\n",
				rec.ID, rec.CreatedAt.Format("2006-01-02 15:04:05"),
				rec.Stats.Selected, rec.Stats.CatalogSize,
				rec.Stats.Blocked, rec.Stats.Prohibited,
				rec.Stats.Suppressed, rec.Stats.Invalid)
		}
		return nil
	},
}

func showPass(db *store.Store, passID string) error {
	rec, err := db.LoadPass(passID)
	if err != nil {
		return err
	}

	fmt.Printf("Pass %s at %s\n", rec.ID, rec.CreatedAt.Format("2006-01-02 15:04:05"))
	if len(rec.Context) > 0 {
		fmt.Println("Context:")
		for dim, val := range rec.Context {
			fmt.Printf("  %s=%s\n", dim, val)
		}
	}
	fmt.Printf("Selected (%d):\n", len(rec.Selected))
	printSelections(rec.Selected)
	if len(rec.Rejected) > 0 {
		fmt.Printf("Rejected (%d):\n", len(rec.Rejected))
		printRejections(rec.Rejected)
	}
	return nil
}

func init() {
	passesCmd.Flags().IntVar(&passesLimit, "limit", 20, "maximum passes to list")
}
