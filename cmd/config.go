package main

import (
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/bom-enrich/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the effective configuration as YAML",
	RunE: func(cmd *cobra.Command, args []string) error {
		shown := *cfg
		shown.Suppliers = append([]config.SupplierConfig(nil), cfg.Suppliers...)
		for i := range shown.Suppliers {
			if shown.Suppliers[i].APIKey != "" {
				shown.Suppliers[i].APIKey = "********"
			}
		}
		if shown.Enhance.APIKey != "" {
			shown.Enhance.APIKey = "********"
		}

		enc := yaml.NewEncoder(os.Stdout)
		enc.SetIndent(2)
		defer enc.Close() //nolint:errcheck
		return enc.Encode(shown)
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
}
