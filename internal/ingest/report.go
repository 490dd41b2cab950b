package ingest

import (
	"sort"

	"github.com/noah-isme/stem-dashboard-api/pkg/tabular"
)

// ReportEntry is the caller-facing form of a diagnostic.
type ReportEntry struct {
	ErrorMessage string `json:"error_message"`
	LineNum      int    `json:"line_num"`
	ColNum       *int   `json:"col_num,omitempty"`
	Sheet        string `json:"sheet,omitempty"`
}

var tableRank = map[tabular.TableName]int{
	tabular.TableStudents:    0,
	tabular.TableEnrollments: 1,
}

// BuildReport orders diagnostics by table, then line, then column, with
// column-less entries first. Ties keep their discovery order.
func BuildReport(diags []Diagnostic) []ReportEntry {
	sorted := make([]Diagnostic, len(diags))
	copy(sorted, diags)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if ra, rb := tableRank[a.Table], tableRank[b.Table]; ra != rb {
			return ra < rb
		}
		if a.Line != b.Line {
			return a.Line < b.Line
		}
		return a.Col < b.Col
	})

	entries := make([]ReportEntry, len(sorted))
	for i, diag := range sorted {
		entries[i] = ReportEntry{
			ErrorMessage: diag.Message,
			LineNum:      diag.Line,
			Sheet:        string(diag.Table),
		}
		if diag.Col > 0 {
			col := diag.Col
			entries[i].ColNum = &col
		}
	}
	return entries
}
