// Package ledger loads transaction records from spreadsheet and CSV exports.
package ledger

import (
	"context"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/fraudleak/internal/fetcher"
	"github.com/sells-group/fraudleak/internal/model"
)

// Format is a supported input file format.
type Format string

// Supported input formats.
const (
	FormatXLSX Format = "xlsx"
	FormatCSV  Format = "csv"
	FormatTSV  Format = "tsv"
)

// Options configures how a source file is read.
type Options struct {
	Sheet      string // xlsx sheet name; overrides SheetIndex
	SheetIndex int
	Delimiter  rune // csv only; default ','
}

// Batch is the result of loading one source.
type Batch struct {
	Source       string
	Transactions []model.Transaction
	// Rejected holds rows whose cells could not be parsed.
	Rejected []model.RecordError
}

// DetectFormat picks the reader from the file extension.
func DetectFormat(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xlsm":
		return FormatXLSX, nil
	case ".csv", ".txt":
		return FormatCSV, nil
	case ".tsv":
		return FormatTSV, nil
	}
	return "", eris.Errorf("unsupported file type %q", filepath.Ext(path))
}

// Load reads path and maps its rows to transactions. Any failure to read the
// source or locate the required columns is returned as a *model.SourceError.
func Load(ctx context.Context, path string, opts Options) (*Batch, error) {
	format, err := DetectFormat(path)
	if err != nil {
		return nil, model.NewSourceError(path, err)
	}
	if _, err := os.Stat(path); err != nil {
		return nil, model.NewSourceError(path, eris.Wrap(err, "ledger: stat"))
	}

	var rows [][]string
	switch format {
	case FormatXLSX:
		rows, err = fetcher.ReadXLSX(path, fetcher.XLSXOptions{
			SheetName:  opts.Sheet,
			SheetIndex: opts.SheetIndex,
		})
	default:
		rows, err = readDelimited(ctx, path, format, opts)
	}
	if err != nil {
		return nil, model.NewSourceError(path, err)
	}

	batch, err := Parse(rows)
	if err != nil {
		return nil, model.NewSourceError(path, err)
	}
	batch.Source = path

	zap.L().Debug("ledger: loaded source",
		zap.String("path", path),
		zap.String("format", string(format)),
		zap.Int("transactions", len(batch.Transactions)),
		zap.Int("rejected", len(batch.Rejected)),
	)
	return batch, nil
}

func readDelimited(ctx context.Context, path string, format Format, opts Options) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrap(err, "ledger: open")
	}
	defer f.Close() //nolint:errcheck

	delim := opts.Delimiter
	if format == FormatTSV {
		delim = '\t'
	}
	return fetcher.ReadCSV(ctx, f, fetcher.CSVOptions{
		Delimiter:  delim,
		LazyQuotes: true,
		TrimSpace:  true,
	})
}

// Parse maps a header row plus data rows to transactions. Fully blank rows
// are ignored; each remaining row keeps its position as Transaction.Row.
func Parse(rows [][]string) (*Batch, error) {
	headerIdx := firstNonBlank(rows)
	if headerIdx < 0 {
		return nil, eris.New("ledger: source has no header row")
	}

	cols, err := MapColumns(rows[headerIdx])
	if err != nil {
		return nil, err
	}

	batch := &Batch{}
	pos := 0
	for _, row := range rows[headerIdx+1:] {
		if isBlank(row) {
			continue
		}
		tx, recErr := cols.transaction(row, pos)
		if recErr != nil {
			batch.Rejected = append(batch.Rejected, *recErr)
		} else {
			batch.Transactions = append(batch.Transactions, tx)
		}
		pos++
	}
	return batch, nil
}

// Columns holds the index of each known column in a header row; -1 when the
// column is absent.
type Columns struct {
	ID         int
	Amount     int
	Vendor     int
	Department int
}

var columnAliases = map[string]model.Field{
	"transactionid": model.FieldID,
	"transaction":   model.FieldID,
	"txnid":         model.FieldID,
	"id":            model.FieldID,
	"amount":        model.FieldAmount,
	"vendor":        model.FieldVendor,
	"vendorname":    model.FieldVendor,
	"department":    model.FieldDepartment,
	"dept":          model.FieldDepartment,
}

// MapColumns locates the known columns in header. Matching ignores case,
// spaces, underscores and hyphens; the first matching column wins. A header
// without Amount, Vendor and Department is an error.
func MapColumns(header []string) (Columns, error) {
	cols := Columns{ID: -1, Amount: -1, Vendor: -1, Department: -1}
	for i, name := range header {
		field, ok := columnAliases[normalizeHeader(name)]
		if !ok {
			continue
		}
		slot := cols.slot(field)
		if *slot < 0 {
			*slot = i
		}
	}

	var missing model.Field
	if cols.Amount < 0 {
		missing |= model.FieldAmount
	}
	if cols.Vendor < 0 {
		missing |= model.FieldVendor
	}
	if cols.Department < 0 {
		missing |= model.FieldDepartment
	}
	if missing != 0 {
		return cols, eris.Errorf("ledger: missing required columns: %s", missing)
	}
	return cols, nil
}

func (c *Columns) slot(f model.Field) *int {
	switch f {
	case model.FieldID:
		return &c.ID
	case model.FieldAmount:
		return &c.Amount
	case model.FieldVendor:
		return &c.Vendor
	default:
		return &c.Department
	}
}

func (c Columns) transaction(row []string, pos int) (model.Transaction, *model.RecordError) {
	tx := model.Transaction{Row: pos}

	if v, ok := cell(row, c.ID); ok {
		tx.ID = v
		tx.Present |= model.FieldID
	}
	if v, ok := cell(row, c.Vendor); ok {
		tx.Vendor = v
		tx.Present |= model.FieldVendor
	}
	if v, ok := cell(row, c.Department); ok {
		tx.Department = v
		tx.Present |= model.FieldDepartment
	}
	if v, ok := cell(row, c.Amount); ok {
		amount, err := ParseAmount(v)
		if err != nil {
			return tx, model.NewRecordError(pos, tx.Identifier(), model.FieldAmount, err)
		}
		tx.Amount = amount
		tx.Present |= model.FieldAmount
	}
	return tx, nil
}

// decimalPattern accepts plain decimal numbers with an optional exponent.
// strconv.ParseFloat alone would also take hex floats, Inf and NaN.
var decimalPattern = regexp.MustCompile(`^[+-]?(\d+\.?\d*|\.\d+)([eE][+-]?\d+)?$`)

// ParseAmount parses a numeric cell. Thousands separators, a leading currency
// symbol and accounting-style parentheses are accepted.
func ParseAmount(s string) (float64, error) {
	clean := strings.TrimSpace(s)
	negative := false
	if strings.HasPrefix(clean, "(") && strings.HasSuffix(clean, ")") {
		negative = true
		clean = clean[1 : len(clean)-1]
	}
	clean = strings.NewReplacer(",", "", "$", "", " ", "").Replace(clean)
	if !decimalPattern.MatchString(clean) {
		return 0, eris.Wrapf(model.ErrInvalidAmount, "cannot parse %q", s)
	}

	v, err := strconv.ParseFloat(clean, 64)
	if err != nil {
		return 0, eris.Wrapf(model.ErrInvalidAmount, "cannot parse %q", s)
	}
	if negative {
		v = -v
	}
	return v, nil
}

func cell(row []string, idx int) (string, bool) {
	if idx < 0 || idx >= len(row) {
		return "", false
	}
	v := strings.TrimSpace(row[idx])
	return v, v != ""
}

func normalizeHeader(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.NewReplacer(" ", "", "_", "", "-", "").Replace(s)
}

func isBlank(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

func firstNonBlank(rows [][]string) int {
	for i, row := range rows {
		if !isBlank(row) {
			return i
		}
	}
	return -1
}
