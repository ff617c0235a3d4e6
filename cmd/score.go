package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os/signal"
	"slices"
	"strings"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/fraudleak/internal/config"
	"github.com/sells-group/fraudleak/internal/ledger"
	"github.com/sells-group/fraudleak/internal/model"
	"github.com/sells-group/fraudleak/internal/monitoring"
	"github.com/sells-group/fraudleak/internal/report"
	"github.com/sells-group/fraudleak/internal/scorer"
)

var scoreCmd = &cobra.Command{
	Use:   "score",
	Short: "Score a transaction file and write an audit report",
	Long: `Score every transaction in a spreadsheet or delimited file.

Each record gets a rule score from its amount, vendor and department.
With --anomaly an amount outlier score (more than two standard deviations
from the batch mean) is added. Records scoring at or above the threshold
are flagged.

Examples:
  # Score a workbook and write fraudleak_output.xlsx
  score --input transactions.xlsx

  # Include outlier detection and skip invalid rows
  score --input ledger.csv --anomaly --skip-invalid --output flagged.csv

  # Persist the run and export prometheus metrics
  score --input ledger.xlsx --save --metrics-file /var/lib/node_exporter/fraudleak.prom`,
	RunE: runScore,
}

func init() {
	f := scoreCmd.Flags()
	f.String("input", "", "transaction file (.xlsx, .csv, .tsv); prompted for when omitted")
	f.String("output", "", "report path (default from config: fraudleak_output.xlsx)")
	f.String("format", "", "report format: xlsx, csv, json or yaml (default: from output extension)")
	f.Float64("threshold", scorer.DefaultThreshold, "flag records with a risk score at or above this value")
	f.Bool("anomaly", false, "add the amount outlier score to the risk score")
	f.Bool("clamp", false, "bound risk scores to [0, 1]")
	f.Bool("skip-invalid", false, "exclude invalid records instead of failing the batch")
	f.Int("workers", 1, "records scored concurrently")
	f.String("sheet", "", "worksheet name for xlsx input (default: first sheet)")
	f.Bool("save", false, "persist the run to the configured store")
	f.String("metrics-file", "", "write prometheus textfile metrics to this path")

	rootCmd.AddCommand(scoreCmd)
}

func runScore(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	applyScoreFlags(cmd, cfg)
	if err := cfg.Validate("score"); err != nil {
		return err
	}

	log := zap.L().With(zap.String("command", "score"))

	input, _ := cmd.Flags().GetString("input")
	if input == "" {
		var err error
		input, err = promptInput(cmd.InOrStdin(), cmd.ErrOrStderr())
		if err != nil {
			return err
		}
	}

	format, err := report.ParseFormat(cfg.Report.Format, cfg.Report.Output)
	if err != nil {
		return err
	}

	if maxScore := scorer.MaxScore(cfg.Scorer); cfg.Scorer.Threshold > maxScore {
		log.Warn("threshold exceeds the highest reachable score; nothing will be flagged",
			zap.Float64("threshold", cfg.Scorer.Threshold),
			zap.Float64("max_score", maxScore),
		)
	}

	start := time.Now()
	res, err := scoreFile(ctx, input, cfg)
	if err != nil {
		return err
	}
	elapsed := time.Since(start)

	log.Info("batch scored",
		zap.String("input", input),
		zap.Int("scored", len(res.Assessments)),
		zap.Int("flagged", res.FlaggedCount()),
		zap.Int("rejected", len(res.Rejected)),
		zap.Duration("elapsed", elapsed),
	)

	if err := report.WriteFile(cfg.Report.Output, format, res); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if err := report.PrintFlagged(out, res); err != nil {
		return err
	}
	fmt.Fprintf(out, "\nReport written to %s\n", cfg.Report.Output)

	if save, _ := cmd.Flags().GetBool("save"); save {
		id, err := saveRun(ctx, input, cfg.Scorer, res)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Saved run %s\n", id)
	}

	if cfg.Metrics.File != "" {
		m := monitoring.NewMetrics()
		m.ObserveBatch(res, elapsed)
		if err := m.WriteTextfile(cfg.Metrics.File); err != nil {
			return err
		}
		log.Debug("metrics written", zap.String("path", cfg.Metrics.File))
	}

	return nil
}

// applyScoreFlags copies explicitly set flags over the loaded config.
func applyScoreFlags(cmd *cobra.Command, c *config.Config) {
	f := cmd.Flags()
	if f.Changed("output") {
		c.Report.Output, _ = f.GetString("output")
	}
	if f.Changed("format") {
		c.Report.Format, _ = f.GetString("format")
	}
	if f.Changed("threshold") {
		c.Scorer.Threshold, _ = f.GetFloat64("threshold")
	}
	if f.Changed("anomaly") {
		c.Scorer.Anomaly, _ = f.GetBool("anomaly")
	}
	if f.Changed("clamp") {
		c.Scorer.Clamp, _ = f.GetBool("clamp")
	}
	if f.Changed("skip-invalid") {
		if skip, _ := f.GetBool("skip-invalid"); skip {
			c.Scorer.MissingPolicy = string(scorer.MissingSkip)
		} else {
			c.Scorer.MissingPolicy = string(scorer.MissingAbort)
		}
	}
	if f.Changed("workers") {
		c.Scorer.Workers, _ = f.GetInt("workers")
	}
	if f.Changed("sheet") {
		c.Input.Sheet, _ = f.GetString("sheet")
	}
	if f.Changed("metrics-file") {
		c.Metrics.File, _ = f.GetString("metrics-file")
	}
	if c.Report.Output == "" {
		c.Report.Output = report.DefaultOutput
	}
}

// promptInput asks for the transaction file path on r.
func promptInput(r io.Reader, w io.Writer) (string, error) {
	fmt.Fprint(w, "Enter path to transaction file (.xlsx, .csv): ")
	sc := bufio.NewScanner(r)
	if !sc.Scan() {
		if err := sc.Err(); err != nil {
			return "", eris.Wrap(err, "score: read input path")
		}
		return "", eris.New("score: no input file given")
	}
	path := strings.Trim(strings.TrimSpace(sc.Text()), `"'`)
	if path == "" {
		return "", eris.New("score: no input file given")
	}
	return path, nil
}

// scoreFile loads path and scores it under c. Rows the loader could not parse
// follow the same missing-field policy as records the scorer rejects.
func scoreFile(ctx context.Context, path string, c *config.Config) (*model.BatchResult, error) {
	opts, err := scorer.OptionsFromConfig(c.Scorer)
	if err != nil {
		return nil, err
	}

	var delim rune
	if d := []rune(c.Input.Delimiter); len(d) == 1 {
		delim = d[0]
	}
	batch, err := ledger.Load(ctx, path, ledger.Options{
		Sheet:      c.Input.Sheet,
		SheetIndex: c.Input.SheetIndex,
		Delimiter:  delim,
	})
	if err != nil {
		return nil, err
	}

	if len(batch.Rejected) > 0 && opts.MissingPolicy == scorer.MissingAbort {
		return nil, eris.Wrap(&batch.Rejected[0], "score: invalid record")
	}

	res, err := scorer.New(opts).ScoreBatch(ctx, batch.Transactions, c.Scorer.Threshold)
	if err != nil {
		return nil, err
	}

	if len(batch.Rejected) > 0 {
		res.Rejected = append(batch.Rejected, res.Rejected...)
		slices.SortStableFunc(res.Rejected, func(a, b model.RecordError) int { return a.Row - b.Row })
	}
	return res, nil
}

// saveRun persists res and returns the new run ID.
func saveRun(ctx context.Context, source string, sc config.ScorerConfig, res *model.BatchResult) (string, error) {
	st, err := initStore(ctx)
	if err != nil {
		return "", err
	}
	defer st.Close() //nolint:errcheck

	run := model.NewRun(source, model.RunOptions{
		Threshold:     sc.Threshold,
		Anomaly:       sc.Anomaly,
		Clamp:         sc.Clamp,
		MissingPolicy: sc.MissingPolicy,
	}, res)
	if err := st.SaveRun(ctx, &run); err != nil {
		return "", eris.Wrap(err, "score: save run")
	}
	return run.ID, nil
}
