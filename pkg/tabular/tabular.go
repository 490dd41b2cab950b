// Package tabular reads uploaded CSV and XLSX exports into row/column tables.
//
// Every cell carries its 1-based column number and an explicit Present flag:
// blank cells and the usual spreadsheet NA tokens are reported as absent
// rather than as empty strings, so downstream validators can tell "missing"
// apart from "provided but wrong".
package tabular

import (
	"fmt"
	"strings"

	appErrors "github.com/noah-isme/stem-dashboard-api/pkg/errors"
)

// Kind is the declared format of an upload.
type Kind string

const (
	KindCSV         Kind = "csv"
	KindSpreadsheet Kind = "spreadsheet"
)

// ParseKind maps a user supplied kind (or file extension) onto a Kind.
func ParseKind(raw string) (Kind, bool) {
	switch strings.ToLower(strings.TrimPrefix(strings.TrimSpace(raw), ".")) {
	case "csv", "text/csv":
		return KindCSV, true
	case "spreadsheet", "xlsx", "xlsm", "excel":
		return KindSpreadsheet, true
	default:
		return "", false
	}
}

// TableName identifies one of the two logical record families.
type TableName string

const (
	TableStudents    TableName = "students"
	TableEnrollments TableName = "enrollments"
)

// Options tunes how a payload is mapped onto tables.
type Options struct {
	StudentSheet       string
	EnrollmentSheet    string
	RequireEnrollments bool
}

func (o Options) withDefaults() Options {
	if o.StudentSheet == "" {
		o.StudentSheet = string(TableStudents)
	}
	if o.EnrollmentSheet == "" {
		o.EnrollmentSheet = string(TableEnrollments)
	}
	return o
}

// Cell is a single normalized value. Col is 1-based; zero means the column
// does not exist in the table at all.
type Cell struct {
	Value   string
	Present bool
	Col     int
}

// Row is one data line of a table. Line is the physical line (CSV) or
// spreadsheet row number, the header being line 1.
type Row struct {
	Line  int
	Cells []Cell
}

// Table is a parsed sheet or CSV file.
type Table struct {
	Name   TableName
	Header []string
	Rows   []Row

	index map[string]int
}

// NewTable builds a table from a header and raw string records. It is the
// single place where null normalization happens.
func NewTable(name TableName, header []string, records [][]string, lines []int) *Table {
	t := &Table{Name: name, Header: make([]string, len(header))}
	for i, h := range header {
		t.Header[i] = strings.TrimSpace(h)
	}
	t.buildIndex()

	for i, record := range records {
		row := Row{Cells: make([]Cell, len(t.Header))}
		if i < len(lines) {
			row.Line = lines[i]
		} else {
			row.Line = i + 2
		}
		blank := true
		for col := range t.Header {
			cell := Cell{Col: col + 1}
			if col < len(record) {
				cell.Value, cell.Present = Normalize(record[col])
			}
			if cell.Present {
				blank = false
			}
			row.Cells[col] = cell
		}
		if blank {
			continue
		}
		t.Rows = append(t.Rows, row)
	}
	return t
}

func (t *Table) buildIndex() {
	t.index = make(map[string]int, len(t.Header))
	for i, h := range t.Header {
		key := HeaderKey(h)
		if key == "" {
			continue
		}
		if _, exists := t.index[key]; !exists {
			t.index[key] = i
		}
	}
}

// Column returns the 0-based index of the named column. Matching ignores
// case, spaces, underscores and hyphens.
func (t *Table) Column(name string) (int, bool) {
	if t == nil {
		return -1, false
	}
	idx, ok := t.index[HeaderKey(name)]
	if !ok {
		return -1, false
	}
	return idx, true
}

// Cell returns the cell at idx for row, or an absent cell when the column
// is missing.
func (t *Table) Cell(row Row, idx int) Cell {
	if idx < 0 || idx >= len(row.Cells) {
		return Cell{}
	}
	return row.Cells[idx]
}

// HeaderKey canonicalises a header for lookup.
func HeaderKey(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(strings.TrimSpace(name)) {
		switch r {
		case ' ', '_', '-', '\t':
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Workbook holds every table found in one upload.
type Workbook struct {
	Kind   Kind
	Tables map[TableName]*Table
}

// Table returns the named table or nil.
func (w *Workbook) Table(name TableName) *Table {
	if w == nil {
		return nil
	}
	return w.Tables[name]
}

// Read parses payload according to kind. Any failure is reported as
// errors.ErrSourceUnreadable; no partial workbook is returned.
func Read(kind Kind, payload []byte, opts Options) (*Workbook, error) {
	if len(payload) == 0 {
		return nil, unreadable(fmt.Errorf("empty payload"))
	}
	opts = opts.withDefaults()
	switch kind {
	case KindCSV:
		return readCSV(payload)
	case KindSpreadsheet:
		return readSpreadsheet(payload, opts)
	default:
		return nil, unreadable(fmt.Errorf("unsupported upload kind %q", kind))
	}
}

func unreadable(err error) error {
	return appErrors.Wrap(err, appErrors.ErrSourceUnreadable.Code, appErrors.ErrSourceUnreadable.Status, appErrors.ErrSourceUnreadable.Message)
}
