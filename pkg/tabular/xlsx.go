package tabular

import (
	"bytes"
	"fmt"

	"github.com/xuri/excelize/v2"
)

// readSpreadsheet reads the student and enrollment sheets of an XLSX
// workbook. Sheets are matched by name first, then by header signature.
func readSpreadsheet(payload []byte, opts Options) (*Workbook, error) {
	f, err := excelize.OpenReader(bytes.NewReader(payload))
	if err != nil {
		return nil, unreadable(fmt.Errorf("open workbook: %w", err))
	}
	defer func() { _ = f.Close() }()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, unreadable(fmt.Errorf("workbook has no sheets"))
	}

	wb := &Workbook{Kind: KindSpreadsheet, Tables: make(map[TableName]*Table, 2)}
	claimed := make(map[string]bool, len(sheets))

	wanted := []struct {
		table TableName
		sheet string
	}{
		{TableStudents, opts.StudentSheet},
		{TableEnrollments, opts.EnrollmentSheet},
	}
	for _, w := range wanted {
		for _, sheet := range sheets {
			if !claimed[sheet] && HeaderKey(sheet) == HeaderKey(w.sheet) {
				table, err := readSheet(f, sheet, w.table)
				if err != nil {
					return nil, err
				}
				wb.Tables[w.table] = table
				claimed[sheet] = true
				break
			}
		}
	}

	// Exports renamed by hand still carry the expected headers.
	for _, sheet := range sheets {
		if claimed[sheet] || len(wb.Tables) == len(wanted) {
			continue
		}
		rows, err := f.GetRows(sheet)
		if err != nil {
			return nil, unreadable(fmt.Errorf("read sheet %q: %w", sheet, err))
		}
		_, header, _ := splitHeader(rows)
		name, ok := DetectTable(header)
		if !ok || wb.Tables[name] != nil {
			continue
		}
		table, err := readSheet(f, sheet, name)
		if err != nil {
			return nil, err
		}
		wb.Tables[name] = table
		claimed[sheet] = true
	}

	if wb.Tables[TableStudents] == nil {
		return nil, unreadable(fmt.Errorf("workbook has no %q sheet", opts.StudentSheet))
	}
	if opts.RequireEnrollments && wb.Tables[TableEnrollments] == nil {
		return nil, unreadable(fmt.Errorf("workbook has no %q sheet", opts.EnrollmentSheet))
	}
	return wb, nil
}

func readSheet(f *excelize.File, sheet string, name TableName) (*Table, error) {
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, unreadable(fmt.Errorf("read sheet %q: %w", sheet, err))
	}
	headerAt, header, ok := splitHeader(rows)
	if !ok {
		return nil, unreadable(fmt.Errorf("sheet %q is empty", sheet))
	}

	records := rows[headerAt+1:]
	lines := make([]int, len(records))
	for i := range records {
		lines[i] = headerAt + i + 2
	}
	return NewTable(name, header, records, lines), nil
}

// splitHeader returns the index and content of the first non-empty row.
func splitHeader(rows [][]string) (int, []string, bool) {
	for i, row := range rows {
		for _, cell := range row {
			if _, present := Normalize(cell); present {
				return i, row, true
			}
		}
	}
	return 0, nil, false
}
