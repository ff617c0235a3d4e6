package report

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/fraudleak/internal/model"
)

// Sheet names used in XLSX reports.
const (
	ResultsSheet  = "Results"
	RejectedSheet = "Rejected"
)

// WriteXLSX writes res as a workbook. Assessments go to the Results sheet;
// rejected records, if any, to a Rejected sheet.
func WriteXLSX(path string, res *model.BatchResult) error {
	f := xlsx.NewFile()

	sheet, err := f.AddSheet(ResultsSheet)
	if err != nil {
		return eris.Wrap(err, "report: add results sheet")
	}
	addStringRow(sheet, Columns...)
	for _, a := range res.Assessments {
		r := sheet.AddRow()
		r.AddCell().SetString(a.ID)
		r.AddCell().SetFloat(a.Amount)
		r.AddCell().SetString(a.Vendor)
		r.AddCell().SetString(a.Department)
		r.AddCell().SetFloatWithFormat(a.RiskScore, "0.00")
		r.AddCell().SetString(FlagLabel(a.Flagged))
		r.AddCell().SetString(strings.Join(a.Reasons, ";"))
	}

	if len(res.Rejected) > 0 {
		rej, err := f.AddSheet(RejectedSheet)
		if err != nil {
			return eris.Wrap(err, "report: add rejected sheet")
		}
		addStringRow(rej, "Row", "Transaction_ID", "Column", "Reason")
		for _, e := range res.Rejected {
			r := rej.AddRow()
			r.AddCell().SetInt(e.Row)
			r.AddCell().SetString(e.ID)
			r.AddCell().SetString(e.Column)
			r.AddCell().SetString(e.Reason)
		}
	}

	return eris.Wrapf(f.Save(path), "report: save %s", path)
}

func addStringRow(sheet *xlsx.Sheet, values ...string) {
	r := sheet.AddRow()
	for _, v := range values {
		r.AddCell().SetString(v)
	}
}
