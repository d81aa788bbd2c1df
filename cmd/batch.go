package main

import (
	"encoding/json"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/bom-enrich/internal/bom"
	"github.com/sells-group/bom-enrich/internal/model"
)

var batchOutput string

var batchCmd = &cobra.Command{
	Use:   "batch <bom-file>",
	Short: "Enrich every line item of a BOM file (csv or xlsx)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := initPipeline(cmd.Context())
		if err != nil {
			return err
		}
		defer env.Close()

		items, err := bom.ParseFile(args[0])
		if err != nil {
			return err
		}

		bomID := uuid.NewString()
		jobs := bom.Jobs(bomID, items)
		zap.L().Info("bom parsed",
			zap.String("file", args[0]),
			zap.String("bom_id", bomID),
			zap.Int("items", len(jobs)),
		)

		results := env.Pool.RunBOM(cmd.Context(), bomID, jobs)

		out := os.Stdout
		if batchOutput != "" {
			f, err := os.Create(batchOutput)
			if err != nil {
				return err
			}
			defer f.Close()
			out = f
		}

		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(results); err != nil {
			return err
		}

		for _, r := range results {
			if r.Status == model.ResultFailed {
				os.Exit(1)
			}
		}
		return nil
	},
}

func init() {
	batchCmd.Flags().StringVarP(&batchOutput, "output", "o", "", "write results to file instead of stdout")
	rootCmd.AddCommand(batchCmd)
}
