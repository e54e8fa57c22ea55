package main

import (
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/enrich-cli/internal/ingest"
	"github.com/sells-group/enrich-cli/internal/reconcile"
	"github.com/sells-group/enrich-cli/internal/report"
	"github.com/sells-group/enrich-cli/pkg/fullcontact"
)

var (
	enrichInput  string
	enrichStart  int
	enrichEnd    int
	enrichDelay  time.Duration
	enrichFormat string
)

var enrichCmd = &cobra.Command{
	Use:   "enrich",
	Short: "Match unknown customer emails against FullContact and store the results",
	Long:  "For CSV rows in the --start..--end range (1-based, inclusive), skips emails already stored and inserts the FullContact person match for the rest. Waits --delay after every API call.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("enrich"); err != nil {
			return err
		}
		if _, err := report.ParseFormat(enrichFormat); err != nil {
			return err
		}
		rng := reconcile.Range{Start: enrichStart, End: enrichEnd}
		if err := rng.Validate(); err != nil {
			return eris.Wrap(err, "invalid range")
		}

		delay := time.Duration(cfg.Batch.DelayMillis) * time.Millisecond
		if cmd.Flags().Changed("delay") {
			delay = enrichDelay
		}

		input := cfg.Batch.InputPath
		if enrichInput != "" {
			input = enrichInput
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

		client := fullcontact.NewClient(cfg.FullContact.Token,
			fullcontact.WithEndpoint(cfg.FullContact.Endpoint),
			fullcontact.WithPackages(cfg.FullContact.Packages),
			fullcontact.WithTimeout(time.Duration(cfg.FullContact.TimeoutSecs)*time.Second),
			fullcontact.WithRateLimit(cfg.FullContact.RequestsPerSecond),
		)
		matcher := reconcile.FullContactMatcher{Client: client, Packages: cfg.FullContact.Packages}

		runID := uuid.NewString()
		zap.L().Info("enrich: loaded input",
			zap.String("run_id", runID),
			zap.String("input", input),
			zap.Int("records", len(records)),
			zap.Stringer("range", rng),
			zap.Duration("delay", delay),
		)

		e := reconcile.NewEnricher(st, matcher,
			reconcile.WithDelayer(reconcile.FixedDelay(delay)),
			reconcile.WithProgressEvery(cfg.Batch.ProgressEvery),
			reconcile.WithRunID(runID),
		)
		stats, runErr := e.Run(ctx, records, rng)

		if err := report.RenderEnrich(cmd.OutOrStdout(), stats, enrichFormat); err != nil {
			return eris.Wrap(err, "render summary")
		}
		return runErr
	},
}

func init() {
	enrichCmd.Flags().StringVar(&enrichInput, "input", "", "path to customer CSV (default batch.input_path)")
	enrichCmd.Flags().IntVar(&enrichStart, "start", 1, "first row to process (1-based, inclusive)")
	enrichCmd.Flags().IntVar(&enrichEnd, "end", 0, "last row to process (inclusive, 0 = last row)")
	enrichCmd.Flags().DurationVar(&enrichDelay, "delay", time.Second, "wait after each API call (default batch.delay_ms)")
	enrichCmd.Flags().StringVar(&enrichFormat, "format", "text", "summary format: text, json, yaml")
	rootCmd.AddCommand(enrichCmd)
}
