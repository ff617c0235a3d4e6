package report

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/sells-group/fraudleak/internal/model"
)

var printer = message.NewPrinter(language.English)

// FormatAmount renders an amount with thousands separators and two decimals.
func FormatAmount(amount float64) string {
	return printer.Sprintf("%.2f", amount)
}

// PrintFlagged writes the flagged assessments as a table followed by a run
// summary and any rejected records.
func PrintFlagged(w io.Writer, res *model.BatchResult) error {
	flagged := res.Flagged()

	if len(flagged) == 0 {
		if _, err := fmt.Fprintln(w, "No transactions flagged."); err != nil {
			return eris.Wrap(err, "report: write console")
		}
	} else {
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tAmount\tVendor\tDepartment\tRisk\tReasons\t")
		for _, a := range flagged {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%.2f\t%s\t\n",
				truncate(a.ID, 20), FormatAmount(a.Amount), truncate(a.Vendor, 30),
				truncate(a.Department, 20), a.RiskScore, strings.Join(a.Reasons, ","))
		}
		if err := tw.Flush(); err != nil {
			return eris.Wrap(err, "report: write flagged table")
		}
	}

	return PrintSummary(w, res)
}

// PrintSummary writes headline counts and batch statistics.
func PrintSummary(w io.Writer, res *model.BatchResult) error {
	total := len(res.Assessments)
	flagged := res.FlaggedCount()

	var b strings.Builder
	b.WriteString("\n--- Summary ---\n")
	fmt.Fprintf(&b, "Total scored:  %d\n", total)
	if total > 0 {
		fmt.Fprintf(&b, "Flagged:       %d (%.1f%%)\n", flagged, float64(flagged)/float64(total)*100)
	} else {
		fmt.Fprintf(&b, "Flagged:       0\n")
	}
	fmt.Fprintf(&b, "Rejected:      %d\n", len(res.Rejected))
	fmt.Fprintf(&b, "Threshold:     %.2f\n", res.Threshold)
	fmt.Fprintf(&b, "Mean amount:   %s\n", FormatAmount(res.Stats.Mean))
	fmt.Fprintf(&b, "Std amount:    %s\n", FormatAmount(res.Stats.StdDev))

	if len(res.Rejected) > 0 {
		b.WriteString("\nRejected records:\n")
		for _, e := range res.Rejected {
			fmt.Fprintf(&b, "  %s\n", e.Error())
		}
	}

	_, err := io.WriteString(w, b.String())
	return eris.Wrap(err, "report: write summary")
}

// truncate shortens s to n runes, ending in "..." when cut.
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
