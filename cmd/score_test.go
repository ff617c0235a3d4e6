package main

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/fraudleak/internal/config"
	"github.com/sells-group/fraudleak/internal/fetcher"
	"github.com/sells-group/fraudleak/internal/model"
	"github.com/sells-group/fraudleak/internal/report"
	"github.com/sells-group/fraudleak/internal/scorer"
)

func scoreConfig() *config.Config {
	c := &config.Config{}
	c.Input.Delimiter = ","
	c.Report.Output = report.DefaultOutput
	c.Scorer = scorer.DefaultScorerConfig()
	return c
}

func TestScoreCommand_Flags(t *testing.T) {
	for _, name := range []string{"input", "output", "format", "threshold", "anomaly", "clamp",
		"skip-invalid", "workers", "sheet", "save", "metrics-file"} {
		assert.NotNil(t, scoreCmd.Flags().Lookup(name), "score command should have --%s", name)
	}
	assert.Equal(t, "0.7", scoreCmd.Flags().Lookup("threshold").DefValue)
}

func TestApplyScoreFlags(t *testing.T) {
	resetFlags(scoreCmd)
	t.Cleanup(func() { resetFlags(scoreCmd) })

	c := scoreConfig()
	c.Report.Output = ""
	require.NoError(t, scoreCmd.Flags().Set("threshold", "0.5"))
	require.NoError(t, scoreCmd.Flags().Set("anomaly", "true"))
	require.NoError(t, scoreCmd.Flags().Set("skip-invalid", "true"))
	require.NoError(t, scoreCmd.Flags().Set("workers", "4"))
	require.NoError(t, scoreCmd.Flags().Set("sheet", "Ledger"))

	applyScoreFlags(scoreCmd, c)

	assert.Equal(t, 0.5, c.Scorer.Threshold)
	assert.True(t, c.Scorer.Anomaly)
	assert.False(t, c.Scorer.Clamp, "unset flags keep config values")
	assert.Equal(t, "skip", c.Scorer.MissingPolicy)
	assert.Equal(t, 4, c.Scorer.Workers)
	assert.Equal(t, "Ledger", c.Input.Sheet)
	assert.Equal(t, report.DefaultOutput, c.Report.Output)
}

func TestPromptInput(t *testing.T) {
	var prompt strings.Builder
	path, err := promptInput(strings.NewReader("  \"ledger.xlsx\"  \n"), &prompt)
	require.NoError(t, err)
	assert.Equal(t, "ledger.xlsx", path)
	assert.Contains(t, prompt.String(), "Enter path")

	_, err = promptInput(strings.NewReader("\n"), &prompt)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no input file given")

	_, err = promptInput(strings.NewReader(""), &prompt)
	assert.Error(t, err)
}

func TestScoreFile(t *testing.T) {
	path := writeLedger(t, t.TempDir(), "tx.csv", ledgerCSV)

	res, err := scoreFile(context.Background(), path, scoreConfig())
	require.NoError(t, err)
	require.Len(t, res.Assessments, 4)

	want := map[string]float64{"T1": 0.4, "T2": 0.9, "T3": 0.4, "T4": 0.2}
	for _, a := range res.Assessments {
		assert.Equal(t, want[a.ID], a.RiskScore, a.ID)
	}
	assert.Equal(t, 1, res.FlaggedCount())
	assert.True(t, res.Assessments[1].Flagged)
}

const invalidCSV = "Transaction_ID,Amount,Vendor,Department\n" +
	"T1,abc,Acme,Sales\n" +
	"T2,200000,ShadyCorp,Procurement\n" +
	"T3,300,,Sales\n"

func TestScoreFile_AbortOnInvalid(t *testing.T) {
	path := writeLedger(t, t.TempDir(), "tx.csv", invalidCSV)

	_, err := scoreFile(context.Background(), path, scoreConfig())
	require.Error(t, err)
	assert.True(t, errors.Is(err, model.ErrInvalidAmount))

	var re *model.RecordError
	require.True(t, errors.As(err, &re))
	assert.Equal(t, "T1", re.ID)
}

func TestScoreFile_SkipInvalid(t *testing.T) {
	path := writeLedger(t, t.TempDir(), "tx.csv", invalidCSV)
	c := scoreConfig()
	c.Scorer.MissingPolicy = "skip"

	res, err := scoreFile(context.Background(), path, c)
	require.NoError(t, err)
	require.Len(t, res.Assessments, 1)
	assert.Equal(t, "T2", res.Assessments[0].ID)

	require.Len(t, res.Rejected, 2)
	assert.Equal(t, "T1", res.Rejected[0].ID)
	assert.Equal(t, "Amount", res.Rejected[0].Column)
	assert.Equal(t, "T3", res.Rejected[1].ID)
	assert.Equal(t, "Vendor", res.Rejected[1].Column)
	assert.Less(t, res.Rejected[0].Row, res.Rejected[1].Row)
}

func TestScoreFile_SourceUnreadable(t *testing.T) {
	_, err := scoreFile(context.Background(), filepath.Join(t.TempDir(), "missing.xlsx"), scoreConfig())
	require.Error(t, err)
	assert.True(t, errors.Is(err, model.ErrSourceUnreadable))
}

func TestScoreCommand_EndToEnd(t *testing.T) {
	dir := t.TempDir()
	input := writeLedger(t, dir, "tx.csv", ledgerCSV)
	output := filepath.Join(dir, "report.xlsx")
	metrics := filepath.Join(dir, "fraudleak.prom")

	out, err := executeCommand(t, dir, "score", "--input", input, "--output", output,
		"--save", "--metrics-file", metrics)
	require.NoError(t, err)

	assert.Contains(t, out, "T2")
	assert.Contains(t, out, "200,000.00")
	assert.Contains(t, out, "Total scored:  4")
	assert.Contains(t, out, "Report written to "+output)
	assert.Contains(t, out, "Saved run ")

	rows, err := fetcher.ReadXLSX(output, fetcher.XLSXOptions{SheetName: report.ResultsSheet})
	require.NoError(t, err)
	require.Len(t, rows, 5)
	assert.Equal(t, "YES", rows[2][5])

	prom, err := os.ReadFile(metrics)
	require.NoError(t, err)
	assert.Contains(t, string(prom), "fraudleak_transactions_flagged_total 1")

	_, err = os.Stat(filepath.Join(dir, "fraudleak.db"))
	assert.NoError(t, err, "run saved to default sqlite store")

	list, err := executeCommand(t, dir, "runs", "list")
	require.NoError(t, err)
	assert.Contains(t, list, "tx.csv")
	assert.Contains(t, list, "SOURCE")
}

func TestScoreCommand_PromptsForInput(t *testing.T) {
	dir := t.TempDir()
	writeLedger(t, dir, "tx.csv", ledgerCSV)

	t.Chdir(dir)
	resetFlags(rootCmd)
	t.Cleanup(func() { resetFlags(rootCmd) })

	var out strings.Builder
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetIn(strings.NewReader("tx.csv\n"))
	rootCmd.SetArgs([]string{"score", "--output", "out.json"})
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetIn(nil)
		rootCmd.SetArgs(nil)
	})

	require.NoError(t, rootCmd.Execute())
	assert.Contains(t, out.String(), "Enter path to transaction file")

	data, err := os.ReadFile(filepath.Join(dir, "out.json"))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"risk_score": 0.9`)
}

func TestScoreCommand_InvalidThreshold(t *testing.T) {
	dir := t.TempDir()
	input := writeLedger(t, dir, "tx.csv", ledgerCSV)

	_, err := executeCommand(t, dir, "score", "--input", input, "--threshold", "-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "scorer.threshold must be >= 0")
}
