package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/fraudleak/internal/model"
	"github.com/sells-group/fraudleak/internal/monitoring"
	"github.com/sells-group/fraudleak/internal/report"
	"github.com/sells-group/fraudleak/internal/store"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Inspect scoring run history",
	Long:  "Commands for listing, viewing, and summarizing persisted scoring runs.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := rootCmd.PersistentPreRunE(cmd, args); err != nil {
			return err
		}
		return cfg.Validate("runs")
	},
}

// -- runs list --

var runsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List scoring runs",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		source, _ := cmd.Flags().GetString("source")
		limit, _ := cmd.Flags().GetInt("limit")
		offset, _ := cmd.Flags().GetInt("offset")

		runs, err := st.ListRuns(ctx, store.RunFilter{Source: source, Limit: limit, Offset: offset})
		if err != nil {
			return eris.Wrap(err, "runs list")
		}

		if len(runs) == 0 {
			fmt.Fprintln(cmd.ErrOrStderr(), "No runs found.")
			return nil
		}

		formatRunsList(cmd.OutOrStdout(), runs)
		return nil
	},
}

// -- runs show --

var runsShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Show full details of a run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		run, err := st.GetRun(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "runs show")
		}

		out := cmd.OutOrStdout()
		if asTable, _ := cmd.Flags().GetBool("table"); asTable {
			fmt.Fprintf(out, "Run %s  source=%s  created=%s\n\n",
				run.ID, run.Source, run.CreatedAt.Format("2006-01-02 15:04"))
			return report.PrintFlagged(out, runResult(run))
		}

		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(run)
	},
}

// -- runs stats --

var runsStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Summarize recent runs and check alert thresholds",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		hours := cfg.Monitoring.LookbackHours
		if cmd.Flags().Changed("hours") {
			hours, _ = cmd.Flags().GetInt("hours")
		}

		snap, err := monitoring.NewCollector(st).Collect(ctx, hours)
		if err != nil {
			return eris.Wrap(err, "runs stats")
		}
		alerts := monitoring.NewAlerter(cfg.Monitoring).Evaluate(snap)

		formatSnapshot(cmd.OutOrStdout(), snap, alerts)
		return nil
	},
}

func init() {
	runsListCmd.Flags().String("source", "", "filter by input file path")
	runsListCmd.Flags().Int("limit", 50, "max number of runs to display")
	runsListCmd.Flags().Int("offset", 0, "number of runs to skip")

	runsShowCmd.Flags().Bool("table", false, "print flagged records as a table instead of JSON")

	runsStatsCmd.Flags().Int("hours", 24, "lookback window in hours (default from monitoring.lookback_hours)")

	runsCmd.AddCommand(runsListCmd)
	runsCmd.AddCommand(runsShowCmd)
	runsCmd.AddCommand(runsStatsCmd)
	rootCmd.AddCommand(runsCmd)
}

// runResult rebuilds the batch view of a persisted run for console output.
func runResult(run *model.Run) *model.BatchResult {
	return &model.BatchResult{
		Threshold:   run.Options.Threshold,
		Stats:       run.Stats,
		Assessments: run.Assessments,
		Rejected:    run.Rejected,
	}
}

// formatRunsList writes a tabular list of runs to w.
func formatRunsList(out io.Writer, runs []model.Run) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tSOURCE\tTOTAL\tFLAGGED\tREJECTED\tTHRESHOLD\tANOMALY\tCREATED")
	_, _ = fmt.Fprintln(w, "--\t------\t-----\t-------\t--------\t---------\t-------\t-------")

	for _, r := range runs {
		source := r.Source
		if len(source) > 30 {
			source = "..." + source[len(source)-27:]
		}

		_, _ = fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%d\t%.2f\t%t\t%s\n",
			truncateID(r.ID),
			source,
			r.Summary.Total,
			r.Summary.Flagged,
			r.Summary.Rejected,
			r.Options.Threshold,
			r.Options.Anomaly,
			r.CreatedAt.Format("2006-01-02 15:04"),
		)
	}
	_ = w.Flush()
}

// formatSnapshot writes aggregate stats and any alerts to w.
func formatSnapshot(out io.Writer, s *monitoring.Snapshot, alerts []monitoring.Alert) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "Window:\t%dh\n", s.LookbackHours)
	_, _ = fmt.Fprintf(w, "Runs:\t%d\n", s.Runs)
	_, _ = fmt.Fprintf(w, "Scored:\t%d\n", s.Scored)
	_, _ = fmt.Fprintf(w, "Flagged:\t%d (%.1f%%)\n", s.Flagged, s.FlagRate*100)
	_, _ = fmt.Fprintf(w, "Rejected:\t%d (%.1f%%)\n", s.Rejected, s.RejectRate*100)
	if s.Scored > 0 {
		_, _ = fmt.Fprintf(w, "Mean amount:\t%s\n", report.FormatAmount(s.MeanAmount))
	}
	if s.LatestRunID != "" {
		_, _ = fmt.Fprintf(w, "Latest run:\t%s\n", s.LatestRunID)
	}
	_ = w.Flush()

	if len(alerts) == 0 {
		return
	}
	_, _ = fmt.Fprintln(out, "\nAlerts:")
	for _, a := range alerts {
		_, _ = fmt.Fprintf(out, "  [%s] %s\n", a.Severity, a.Message)
	}
}

// truncateID returns the first 8 characters of a UUID for compact display.
func truncateID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
