package summary

import (
	"fmt"
	"io"
	"sort"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/sells-group/closure-tracker/internal/model"
)

// BankStats aggregates one bank's attempts.
type BankStats struct {
	Bank        string         `json:"bank"`
	Attempts    int            `json:"attempts"`
	Successes   int            `json:"successes"`
	SuccessRate float64        `json:"success_rate"`
	BestMethod  string         `json:"best_method"` // most successes; empty when none succeeded
	LastSeen    model.UnixTime `json:"last_seen"`
	Methods     map[string]int `json:"methods"`
}

// Stats computes per-bank aggregates, most attempted first.
func Stats(s model.BankSummary) []BankStats {
	out := make([]BankStats, 0, len(s))
	for bank, attempts := range s {
		st := BankStats{Bank: bank, Attempts: len(attempts), Methods: map[string]int{}}
		wins := map[string]int{}
		for _, a := range attempts {
			st.Methods[a.Method]++
			if a.Success {
				st.Successes++
				wins[a.Method]++
			}
			if a.Timestamp > st.LastSeen {
				st.LastSeen = a.Timestamp
			}
		}
		if st.Attempts > 0 {
			st.SuccessRate = float64(st.Successes) / float64(st.Attempts)
		}
		st.BestMethod = argmax(wins)
		out = append(out, st)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Attempts != out[j].Attempts {
			return out[i].Attempts > out[j].Attempts
		}
		return out[i].Bank < out[j].Bank
	})
	return out
}

func argmax(counts map[string]int) string {
	var (
		best string
		n    int
	)
	for k, v := range counts {
		if v > n || (v == n && k < best) {
			best, n = k, v
		}
	}
	return best
}

// RenderTable writes stats as a terminal table. limit caps the rows; zero
// shows all.
func RenderTable(w io.Writer, stats []BankStats, limit int) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.AppendHeader(table.Row{"Bank", "Attempts", "Successes", "Rate", "Best Method", "Last Seen"})

	for i, st := range stats {
		if limit > 0 && i >= limit {
			break
		}
		t.AppendRow(table.Row{
			st.Bank,
			st.Attempts,
			st.Successes,
			fmt.Sprintf("%.0f%%", st.SuccessRate*100),
			st.BestMethod,
			st.LastSeen.Time().Format("2006-01-02"),
		})
	}
	t.AppendFooter(table.Row{fmt.Sprintf("%d banks", len(stats))})
	t.SetStyle(table.StyleRounded)
	t.Render()
}
