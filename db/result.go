package db

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/nestdb/nestdb/core"
)

// ResultKind classifies one entry of a batch result.
type ResultKind string

const (
	TableResult   ResultKind = "table"
	ScalarResult  ResultKind = "scalar"
	MessageResult ResultKind = "message"
	ErrorResult   ResultKind = "error"
	FormResult    ResultKind = "form"
)

// ResultSet is the normalized outcome of a single statement.
type ResultSet struct {
	Kind      ResultKind
	Statement string

	// table
	Columns []string
	Rows    []core.Row

	// scalar
	Value any

	// message / error
	Message string

	// form
	Form *Form
}

// Result is the outcome of one Execute call: one ResultSet per statement,
// in statement order.
type Result struct {
	Success          bool
	Data             []ResultSet
	Err              error
	Warning          string
	ExecutionTimeSec float64

	// ActiveDatabase is the database context after the batch, reflecting
	// any USE statements it contained.
	ActiveDatabase string
}

// ExecutionTime formats the batch duration in human-readable form.
func (r Result) ExecutionTime() string {
	return formatDuration(r.ExecutionTimeSec)
}

func formatDuration(secs float64) string {
	if secs < 0.001 {
		return "<1ms"
	} else if secs < 0.01 {
		return fmt.Sprintf("%dms", int(secs*1000))
	} else if secs < 1 {
		ms := secs * 1000
		if ms < 10 {
			return fmt.Sprintf("%.1fms", ms)
		}
		return fmt.Sprintf("%dms", int(ms))
	} else if secs < 60 {
		if secs < 10 {
			return fmt.Sprintf("%.1fs", secs)
		}
		return fmt.Sprintf("%ds", int(secs))
	}
	mins := int(secs / 60)
	remainSecs := int(secs) % 60
	if remainSecs == 0 {
		return fmt.Sprintf("%dm", mins)
	}
	return fmt.Sprintf("%dm%ds", mins, remainSecs)
}

// tabulate builds a ResultSet from raw engine rows. One row with one column
// collapses to a scalar; nil rows become a plain acknowledgement.
func tabulate(statement string, rows []core.Row) ResultSet {
	if rows == nil {
		return ResultSet{Kind: MessageResult, Statement: statement, Message: "OK"}
	}

	columns := columnOrder(rows)
	if len(rows) == 1 && len(columns) == 1 {
		return ResultSet{
			Kind:      ScalarResult,
			Statement: statement,
			Columns:   columns,
			Value:     rows[0][columns[0]],
		}
	}

	return ResultSet{Kind: TableResult, Statement: statement, Columns: columns, Rows: rows}
}

// columnOrder derives a stable column list from a row batch: the union of
// keys, sorted.
func columnOrder(rows []core.Row) []string {
	seen := map[string]bool{}
	var columns []string
	for _, row := range rows {
		for c := range row {
			if !seen[c] {
				seen[c] = true
				columns = append(columns, c)
			}
		}
	}
	sort.Strings(columns)
	return columns
}

// Display renders every result set of the batch to w.
func (r Result) Display(w io.Writer) {
	if r.Warning != "" {
		fmt.Fprintf(w, "warning: %s\n", r.Warning)
	}
	if !r.Success {
		fmt.Fprintf(w, "error: %v\n", r.Err)
		return
	}

	for _, rs := range r.Data {
		rs.Display(w)
	}
	fmt.Fprintf(w, "(%s)\n", r.ExecutionTime())
}

// Display renders a single result set to w.
func (rs ResultSet) Display(w io.Writer) {
	switch rs.Kind {
	case ScalarResult:
		fmt.Fprintf(w, "%s\n", formatCell(rs.Value))

	case MessageResult:
		fmt.Fprintln(w, rs.Message)

	case ErrorResult:
		fmt.Fprintf(w, "error: %s\n", rs.Message)

	case FormResult:
		rs.Form.Display(w)

	case TableResult:
		t := NewTable(w)
		t.Header(rs.Columns)
		for _, row := range rs.Rows {
			cells := make([]string, len(rs.Columns))
			for i, c := range rs.Columns {
				cells[i] = formatCell(row[c])
			}
			t.Row(cells)
		}
		t.Render()
		fmt.Fprintf(w, "%d rows\n", len(rs.Rows))
	}
}

func formatCell(v any) string {
	if v == nil {
		return "NULL"
	}
	return fmt.Sprintf("%v", v)
}

// SimpleTable provides basic table formatting without external dependencies.
type SimpleTable struct {
	writer  io.Writer
	headers []string
	rows    [][]string
}

// NewTable creates a new table writer.
func NewTable(w io.Writer) *SimpleTable {
	return &SimpleTable{writer: w}
}

// Header sets the table headers.
func (t *SimpleTable) Header(headers []string) {
	t.headers = headers
}

// Row adds a single row.
func (t *SimpleTable) Row(row []string) {
	t.rows = append(t.rows, row)
}

// Render outputs the formatted table.
func (t *SimpleTable) Render() {
	if len(t.headers) == 0 && len(t.rows) == 0 {
		return
	}

	widths := t.calculateWidths()
	separator := t.buildSeparator(widths)

	fmt.Fprintln(t.writer, separator)
	if len(t.headers) > 0 {
		fmt.Fprintln(t.writer, t.formatRow(t.headers, widths))
		fmt.Fprintln(t.writer, separator)
	}
	for _, row := range t.rows {
		fmt.Fprintln(t.writer, t.formatRow(row, widths))
	}
	fmt.Fprintln(t.writer, separator)
}

func (t *SimpleTable) calculateWidths() []int {
	numCols := len(t.headers)
	for _, row := range t.rows {
		if len(row) > numCols {
			numCols = len(row)
		}
	}

	widths := make([]int, numCols)
	for i, h := range t.headers {
		if len(h) > widths[i] {
			widths[i] = len(h)
		}
	}
	for _, row := range t.rows {
		for i, cell := range row {
			if i < numCols && len(cell) > widths[i] {
				widths[i] = len(cell)
			}
		}
	}
	for i := range widths {
		if widths[i] < 1 {
			widths[i] = 1
		}
	}
	return widths
}

func (t *SimpleTable) buildSeparator(widths []int) string {
	parts := make([]string, len(widths))
	for i, w := range widths {
		parts[i] = strings.Repeat("-", w+2)
	}
	return "+" + strings.Join(parts, "+") + "+"
}

func (t *SimpleTable) formatRow(row []string, widths []int) string {
	parts := make([]string, len(widths))
	for i, w := range widths {
		cell := ""
		if i < len(row) {
			cell = row[i]
		}
		parts[i] = " " + cell + strings.Repeat(" ", w-len(cell)+1)
	}
	return "|" + strings.Join(parts, "|") + "|"
}
