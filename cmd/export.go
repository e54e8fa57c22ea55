package main

import (
	"io"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/enrich-cli/internal/export"
	"github.com/sells-group/enrich-cli/internal/store"
)

var (
	exportOutput      string
	exportStoreID     string
	exportMissingOnly bool
	exportLimit       int
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write stored customers as a flattened CSV",
	Long:  "Dumps stored customers with their enrichment payload flattened into dotted columns (data.details.locations[0].city).",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("export"); err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		filter := store.Filter{ExternalStoreID: exportStoreID, MissingStoreInfo: exportMissingOnly}
		records, err := st.Find(ctx, filter, exportLimit)
		if err != nil {
			return eris.Wrap(err, "export: find")
		}

		var w io.Writer = cmd.OutOrStdout()
		if exportOutput != "" && exportOutput != "-" {
			f, err := os.Create(exportOutput)
			if err != nil {
				return eris.Wrap(err, "export: create output")
			}
			defer f.Close() //nolint:errcheck
			w = f
		}

		if err := export.WriteCSV(w, records); err != nil {
			return err
		}

		zap.L().Info("export complete",
			zap.Int("records", len(records)),
			zap.String("output", exportOutput),
		)
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "-", "output CSV path (- for stdout)")
	exportCmd.Flags().StringVar(&exportStoreID, "store", "", "only customers of this external store id")
	exportCmd.Flags().BoolVar(&exportMissingOnly, "missing-only", false, "only customers missing store info")
	exportCmd.Flags().IntVar(&exportLimit, "limit", 0, "maximum rows (0 = all)")
	rootCmd.AddCommand(exportCmd)
}
