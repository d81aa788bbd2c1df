package main

import (
	"encoding/json"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/sells-group/bom-enrich/internal/model"
)

var (
	runManufacturer string
	runQuantity     int
)

var runCmd = &cobra.Command{
	Use:   "run <mpn>",
	Short: "Enrich a single part",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := initPipeline(cmd.Context())
		if err != nil {
			return err
		}
		defer env.Close()

		bomID := uuid.NewString()
		env.Tracker.StartBOM(bomID, 1)

		result := env.Orchestrator.Run(cmd.Context(), model.EnrichmentJob{
			BOMID:        bomID,
			ItemID:       uuid.NewString(),
			MPN:          args[0],
			Manufacturer: runManufacturer,
			Quantity:     runQuantity,
			RequestedAt:  time.Now(),
		})

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	},
}

func init() {
	runCmd.Flags().StringVar(&runManufacturer, "manufacturer", "", "manufacturer name, if known")
	runCmd.Flags().IntVar(&runQuantity, "quantity", 1, "line item quantity")
	rootCmd.AddCommand(runCmd)
}
