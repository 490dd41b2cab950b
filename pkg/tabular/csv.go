package tabular

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"unicode/utf8"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// readCSV parses a single-table CSV export. Which table it holds is inferred
// from the header.
func readCSV(payload []byte) (*Workbook, error) {
	payload = bytes.TrimPrefix(payload, utf8BOM)
	if !utf8.Valid(payload) {
		if bytes.IndexByte(payload, 0) >= 0 {
			return nil, unreadable(fmt.Errorf("payload is binary, not CSV text"))
		}
		payload = bytes.ToValidUTF8(payload, []byte("\uFFFD"))
	}

	reader := csv.NewReader(bytes.NewReader(payload))
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, unreadable(fmt.Errorf("csv has no header row"))
		}
		return nil, unreadable(fmt.Errorf("read csv header: %w", err))
	}

	name, ok := DetectTable(header)
	if !ok {
		return nil, unreadable(fmt.Errorf("csv header does not describe students or enrollments"))
	}

	var (
		records [][]string
		lines   []int
	)
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, unreadable(fmt.Errorf("read csv: %w", err))
		}
		line, _ := reader.FieldPos(0)
		records = append(records, record)
		lines = append(lines, line)
	}

	return &Workbook{
		Kind:   KindCSV,
		Tables: map[TableName]*Table{name: NewTable(name, header, records, lines)},
	}, nil
}

// DetectTable infers the record family from a header row. Course columns
// only appear in enrollment exports, so they win over Unique_ID.
func DetectTable(header []string) (TableName, bool) {
	keys := make(map[string]struct{}, len(header))
	for _, h := range header {
		keys[HeaderKey(h)] = struct{}{}
	}
	has := func(k string) bool {
		_, ok := keys[k]
		return ok
	}

	switch {
	case has("coursenumber") || has("coursegrade") || has("courseterm"):
		return TableEnrollments, true
	case has("uniqueid") || has("admityear"):
		return TableStudents, true
	default:
		return "", false
	}
}
