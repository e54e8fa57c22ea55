package main

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/enrich-cli/internal/ingest"
	"github.com/sells-group/enrich-cli/internal/reconcile"
	"github.com/sells-group/enrich-cli/internal/report"
)

var (
	updateInput  string
	updateFormat string
	updateReport bool
)

var updateStoresCmd = &cobra.Command{
	Use:   "update-stores",
	Short: "Apply external store id and store name from a CSV to existing customers",
	Long:  "Looks up each CSV row by normalized email and sets externalStoreId, storeName and storeInfoUpdatedAt on the stored customer. Unknown emails are counted, never created.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("update"); err != nil {
			return err
		}
		if _, err := report.ParseFormat(updateFormat); err != nil {
			return err
		}

		input := cfg.Batch.InputPath
		if updateInput != "" {
			input = updateInput
		}
		records, err := ingest.ReadCustomersWith(input, ingest.Options{Delimiter: cfg.Batch.DelimiterRune()})
		if err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		runID := uuid.NewString()
		zap.L().Info("update-stores: loaded input",
			zap.String("run_id", runID),
			zap.String("input", input),
			zap.Int("records", len(records)),
			zap.String("driver", cfg.Store.Driver),
		)

		u := reconcile.NewUpdater(st,
			reconcile.WithProgressEvery(cfg.Batch.ProgressEvery),
			reconcile.WithRunID(runID),
		)
		stats, runErr := u.Run(ctx, records)

		if err := report.RenderBatch(cmd.OutOrStdout(), stats, updateFormat); err != nil {
			return eris.Wrap(err, "render summary")
		}
		if runErr != nil || !updateReport {
			return runErr
		}

		summary, err := report.Build(ctx, st, report.DefaultOptions())
		if err != nil {
			return eris.Wrap(err, "build report")
		}
		if f, _ := report.ParseFormat(updateFormat); f == report.FormatText {
			fmt.Fprintln(cmd.OutOrStdout())
		}
		return report.Render(cmd.OutOrStdout(), summary, updateFormat)
	},
}

func init() {
	updateStoresCmd.Flags().StringVar(&updateInput, "input", "", "path to customer CSV (default batch.input_path)")
	updateStoresCmd.Flags().StringVar(&updateFormat, "format", "text", "summary format: text, json, yaml")
	updateStoresCmd.Flags().BoolVar(&updateReport, "report", false, "print the store info report after the run")
	rootCmd.AddCommand(updateStoresCmd)
}
