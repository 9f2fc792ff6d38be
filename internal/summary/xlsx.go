package summary

import (
	"io"
	"time"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/closure-tracker/internal/model"
)

const (
	sheetBanks    = "banks"
	sheetAttempts = "attempts"
)

// WriteXLSX writes a workbook with a per-bank stats sheet and a flat sheet
// of every attempt.
func WriteXLSX(w io.Writer, s model.BankSummary) error {
	f := xlsx.NewFile()

	banks, err := f.AddSheet(sheetBanks)
	if err != nil {
		return eris.Wrap(err, "summary: add banks sheet")
	}
	addHeader(banks, "bank", "attempts", "successes", "success_rate", "best_method", "last_seen")
	for _, st := range Stats(s) {
		row := banks.AddRow()
		row.AddCell().SetString(st.Bank)
		row.AddCell().SetInt(st.Attempts)
		row.AddCell().SetInt(st.Successes)
		row.AddCell().SetFloat(st.SuccessRate)
		row.AddCell().SetString(st.BestMethod)
		row.AddCell().SetString(st.LastSeen.Time().Format(time.RFC3339))
	}

	attempts, err := f.AddSheet(sheetAttempts)
	if err != nil {
		return eris.Wrap(err, "summary: add attempts sheet")
	}
	addHeader(attempts, "bank", "comment_id", "method", "success", "timestamp")
	for _, bank := range s.Banks() {
		for _, a := range s[bank] {
			row := attempts.AddRow()
			row.AddCell().SetString(bank)
			row.AddCell().SetString(a.CommentID)
			row.AddCell().SetString(a.Method)
			row.AddCell().SetBool(a.Success)
			row.AddCell().SetString(a.Timestamp.Time().Format(time.RFC3339))
		}
	}

	return eris.Wrap(f.Write(w), "summary: write xlsx")
}

func addHeader(sheet *xlsx.Sheet, names ...string) {
	row := sheet.AddRow()
	for _, n := range names {
		row.AddCell().SetString(n)
	}
}
