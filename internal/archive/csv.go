// Package archive builds CSV exports of expense reports and moves them in
// and out of the archive backend through presigned URLs.
package archive

import (
	"log/slog"
	"strings"

	"github.com/pineapple-expense/expense-engine/internal/expense"
)

// Header is the fixed first line of every exported CSV file.
const Header = "Title,Total,Date,Comment,Category,Account Code,User Name"

// BuildCSV renders the expenses of the given reports as CSV text, one row
// per expense. Account codes come from the category mapping table and
// default to empty; the user name column comes from the owning report and
// defaults to "Unknown". Expense ids with no local record are skipped.
func BuildCSV(reports []*expense.Report, expenses map[string]*expense.Expense, accountCodes map[string]string) string {
	lines := []string{Header}

	for _, report := range reports {
		userName := report.UserName
		if userName == "" {
			userName = "Unknown"
		}
		for _, id := range report.ExpenseIDs {
			exp, ok := expenses[id]
			if !ok {
				slog.Warn("skipping unknown expense in CSV export", "report", report.ID, "expense", id)
				continue
			}
			fields := []string{
				escapeField(exp.Title),
				expense.FormatCents(exp.AmountCents),
				exp.Date.Format("01/02/2006"),
				escapeField(exp.Comment),
				escapeField(exp.Category),
				escapeField(accountCodes[exp.Category]),
				escapeField(userName),
			}
			lines = append(lines, strings.Join(fields, ","))
		}
	}

	return strings.Join(lines, "\n")
}

// escapeField wraps a field in quotes when it contains a comma or quote,
// doubling inner quotes.
func escapeField(field string) string {
	if strings.ContainsAny(field, `,"`) {
		return `"` + strings.ReplaceAll(field, `"`, `""`) + `"`
	}
	return field
}
