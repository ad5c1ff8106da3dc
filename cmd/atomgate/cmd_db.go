package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"atomgate/internal/store"
)

// dbCmd groups database maintenance commands.
var dbCmd = &cobra.Command{
	Use:   "db",
	Short: "Manage the catalog database",
}

// dbImportCmd loads the YAML catalog into the database, so a deployment
// can ship one sqlite file instead of a directory tree.
var dbImportCmd = &cobra.Command{
	Use:   "import",
	Short: "Import the YAML catalog into the database",
	RunE: func(cmd *cobra.Command, args []string) error {
		cat, err := loadCatalog()
		if err != nil {
			return err
		}
		db, err := store.NewStore(dataDir)
		if err != nil {
			return err
		}
		defer db.Close()

		if err := db.SaveAtoms(cat.All()); err != nil {
			return fmt.Errorf("importing catalog: %w", err)
		}
		logger.Info("catalog imported",
			zap.Int("atoms", cat.Count()),
			zap.String("db", db.Path()),
		)
		fmt.Printf("Imported %d atoms into %s\n", cat.Count(), db.Path())
		return nil
	},
}

// dbVerifyCmd re-validates the stored catalog.
var dbVerifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Validate the catalog stored in the database",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := store.NewStore(dataDir)
		if err != nil {
			return err
		}
		defer db.Close()

		cat, err := db.LoadCatalog()
		if err != nil {
			return fmt.Errorf("stored catalog invalid: %w", err)
		}
		fmt.Printf("Stored catalog OK: %d atoms, %d conflict pairs\n",
			cat.Count(), len(cat.ConflictPairs()))
		return nil
	},
}

func init() {
	dbCmd.AddCommand(dbImportCmd)
	dbCmd.AddCommand(dbVerifyCmd)
}
