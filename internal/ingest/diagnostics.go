package ingest

import "github.com/noah-isme/stem-dashboard-api/pkg/tabular"

// Kind classifies a diagnostic.
type Kind string

const (
	KindHeader     Kind = "header"
	KindField      Kind = "field"
	KindResolution Kind = "resolution"
)

// Diagnostic is one problem found in an upload. Col is 1-based and zero when
// the problem is not tied to a single column.
type Diagnostic struct {
	Table   tabular.TableName
	Line    int
	Col     int
	Column  string
	Message string
	Kind    Kind
}

// Diagnostics accumulates problems for a single ingestion run.
type Diagnostics struct {
	items []Diagnostic
}

// Add appends diags in order.
func (d *Diagnostics) Add(diags ...Diagnostic) {
	d.items = append(d.items, diags...)
}

// Len returns the number of problems recorded so far.
func (d *Diagnostics) Len() int {
	return len(d.items)
}

// Empty reports whether nothing has been recorded.
func (d *Diagnostics) Empty() bool {
	return len(d.items) == 0
}

// Items returns a copy of the recorded problems.
func (d *Diagnostics) Items() []Diagnostic {
	out := make([]Diagnostic, len(d.items))
	copy(out, d.items)
	return out
}
