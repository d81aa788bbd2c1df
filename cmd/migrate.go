package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or upgrade the catalog schema",
	RunE: func(cmd *cobra.Command, args []string) error {
		catalog, err := initCatalog(cmd.Context())
		if err != nil {
			return err
		}
		defer catalog.Close() //nolint:errcheck

		if err := catalog.Migrate(cmd.Context()); err != nil {
			return eris.Wrap(err, "migrate")
		}
		zap.L().Info("schema up to date", zap.String("driver", cfg.Store.Driver))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
