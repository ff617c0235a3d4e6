// Package report writes scored batches to files and the console.
package report

import (
	"encoding/csv"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/fraudleak/internal/model"
)

// Format is a report output format.
type Format string

// Supported report formats.
const (
	FormatXLSX Format = "xlsx"
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// DefaultOutput is the report file written when no path is given.
const DefaultOutput = "fraudleak_output.xlsx"

// Columns is the header of tabular reports.
var Columns = []string{"Transaction_ID", "Amount", "Vendor", "Department", "Risk_Score", "Flagged", "Reasons"}

// ParseFormat resolves an explicit format name, or infers it from the output
// path when name is empty.
func ParseFormat(name, path string) (Format, error) {
	if name == "" {
		name = strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	}
	switch strings.ToLower(name) {
	case "xlsx":
		return FormatXLSX, nil
	case "csv":
		return FormatCSV, nil
	case "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	}
	return "", eris.Errorf("report: unsupported format %q", name)
}

// WriteFile writes res to path in the given format.
func WriteFile(path string, format Format, res *model.BatchResult) error {
	if format == FormatXLSX {
		return WriteXLSX(path, res)
	}

	f, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "report: create output file %s", path)
	}
	defer f.Close() //nolint:errcheck

	if err := Write(f, format, res); err != nil {
		return err
	}
	return eris.Wrap(f.Close(), "report: close output file")
}

// Write streams res to w. XLSX is only supported through WriteFile.
func Write(w io.Writer, format Format, res *model.BatchResult) error {
	switch format {
	case FormatCSV:
		return WriteCSV(w, res)
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return eris.Wrap(enc.Encode(res), "report: encode json")
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(res); err != nil {
			return eris.Wrap(err, "report: encode yaml")
		}
		return eris.Wrap(enc.Close(), "report: close yaml encoder")
	default:
		return eris.Errorf("report: format %q cannot be streamed", format)
	}
}

// WriteCSV writes one row per assessment under Columns.
func WriteCSV(w io.Writer, res *model.BatchResult) error {
	cw := csv.NewWriter(w)

	if err := cw.Write(Columns); err != nil {
		return eris.Wrap(err, "report: write CSV header")
	}
	for _, a := range res.Assessments {
		if err := cw.Write(row(a)); err != nil {
			return eris.Wrap(err, "report: write CSV row")
		}
	}
	cw.Flush()
	return eris.Wrap(cw.Error(), "report: flush CSV")
}

func row(a model.Assessment) []string {
	return []string{
		a.ID,
		strconv.FormatFloat(a.Amount, 'f', -1, 64),
		a.Vendor,
		a.Department,
		strconv.FormatFloat(a.RiskScore, 'f', 2, 64),
		FlagLabel(a.Flagged),
		strings.Join(a.Reasons, ";"),
	}
}

// FlagLabel renders a flag the way the audit report shows it.
func FlagLabel(flagged bool) string {
	if flagged {
		return "YES"
	}
	return "NO"
}
