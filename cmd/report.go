package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/enrich-cli/internal/report"
)

var (
	reportFormat  string
	reportStoreID string
	reportSample  int
	reportMissing int
	reportTop     int
)

var (
	profileFormat  string
	profileStoreID string
	profileTop     int

	compareFormat  string
	compareStoreID string
	compareAgainst string
	compareTop     int
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Summarize store-info coverage across stored customers",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("report"); err != nil {
			return err
		}
		if _, err := report.ParseFormat(reportFormat); err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		summary, err := report.Build(ctx, st, report.Options{
			SampleSize:        reportSample,
			MissingSampleSize: reportMissing,
			TopN:              reportTop,
			ExternalStoreID:   reportStoreID,
		})
		if err != nil {
			return eris.Wrap(err, "build report")
		}
		return report.Render(cmd.OutOrStdout(), summary, reportFormat)
	},
}

var reportProfileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Profile enrichment payloads: geography, demographics, finances, interests",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("report"); err != nil {
			return err
		}
		if _, err := report.ParseFormat(profileFormat); err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		p, err := report.BuildProfile(ctx, st, report.ProfileOptions{
			TopN:            profileTop,
			ExternalStoreID: profileStoreID,
		})
		if err != nil {
			return eris.Wrap(err, "build profile")
		}
		return report.RenderProfile(cmd.OutOrStdout(), p, profileFormat)
	},
}

var reportCompareCmd = &cobra.Command{
	Use:   "compare",
	Short: "Compare the customer collection with another collection of the same store",
	Long:  "Reports email overlap between the configured collection and --against, their gender, region, city and income distributions, and anomalies such as gender shares more than 5 percentage points apart.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("report"); err != nil {
			return err
		}
		if compareAgainst == "" {
			return eris.New("compare: --against is required")
		}
		if _, err := report.ParseFormat(compareFormat); err != nil {
			return err
		}

		left, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer left.Close() //nolint:errcheck

		right, err := openStore(ctx, compareAgainst)
		if err != nil {
			return err
		}
		defer right.Close() //nolint:errcheck

		c, err := report.Compare(ctx, left, right, report.CompareOptions{
			LeftName:        cfg.Store.Collection,
			RightName:       compareAgainst,
			TopN:            compareTop,
			ExternalStoreID: compareStoreID,
		})
		if err != nil {
			return eris.Wrap(err, "compare collections")
		}
		return report.RenderComparison(cmd.OutOrStdout(), c, compareFormat)
	},
}

func init() {
	reportCmd.Flags().StringVar(&reportFormat, "format", "text", "output format: text, json, yaml")
	reportCmd.Flags().StringVar(&reportStoreID, "store", "", "restrict the report to one external store id")
	reportCmd.Flags().IntVar(&reportSample, "sample", 5, "records with store info to sample")
	reportCmd.Flags().IntVar(&reportMissing, "missing", 3, "records missing store info to sample")
	reportCmd.Flags().IntVar(&reportTop, "top", 10, "number of stores to rank")

	reportProfileCmd.Flags().StringVar(&profileFormat, "format", "text", "output format: text, json, yaml")
	reportProfileCmd.Flags().StringVar(&profileStoreID, "store", "", "restrict the profile to one external store id")
	reportProfileCmd.Flags().IntVar(&profileTop, "top", 15, "values to list per section")
	reportCmd.AddCommand(reportProfileCmd)

	reportCompareCmd.Flags().StringVar(&compareFormat, "format", "text", "output format: text, json, yaml")
	reportCompareCmd.Flags().StringVar(&compareStoreID, "store", "", "restrict both sides to one external store id")
	reportCompareCmd.Flags().StringVar(&compareAgainst, "against", "", "collection (or table) to compare with")
	reportCompareCmd.Flags().IntVar(&compareTop, "top", 10, "values to compare per section")
	reportCmd.AddCommand(reportCompareCmd)

	rootCmd.AddCommand(reportCmd)
}
