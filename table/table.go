package table

import (
	"github.com/sqldef/powerquery/pqerr"
	"github.com/sqldef/powerquery/value"
)

// Table is the ITable capability contract of spec §3. Implementations
// are immutable: operators always return a new Table.
type Table interface {
	Columns() []Column
	RowCount() int
	ColumnCount() int
	ColumnIndex(name string) (int, error)
	Cell(row, col int) value.Value
	Row(row int) []value.Value
	// IterRows calls fn for each row until fn returns false or rows are
	// exhausted.
	IterRows(fn func(row []value.Value) bool)
	Head(n int) Table
	// ToGrid renders the table as a [][]string suitable for the grid
	// scenarios of spec §8, optionally including a header row.
	ToGrid(includeHeader bool) [][]string
}

// Row is a plain row-backed table. It satisfies value.NestedTable so it
// can be embedded as a merge/nested join cell value.
type Row struct {
	cols []Column
	rows [][]value.Value
}

// New builds a Row table from columns and rows. Column names are
// uniquified via MakeUniqueColumnNames; rows shorter than columns are
// padded with nulls (ragged-row semantics, spec §3).
func New(cols []Column, rows [][]value.Value) *Row {
	names := MakeUniqueColumnNames(ColumnNames(cols))
	outCols := make([]Column, len(cols))
	for i, c := range cols {
		outCols[i] = Column{Name: names[i], Type: c.Type}
	}
	outRows := make([][]value.Value, len(rows))
	for i, r := range rows {
		outRows[i] = padRow(r, len(outCols))
	}
	return &Row{cols: outCols, rows: outRows}
}

func padRow(row []value.Value, width int) []value.Value {
	if len(row) >= width {
		out := make([]value.Value, width)
		copy(out, row[:width])
		return out
	}
	out := make([]value.Value, width)
	copy(out, row)
	for i := len(row); i < width; i++ {
		out[i] = value.Null()
	}
	return out
}

func (t *Row) Columns() []Column { return t.cols }
func (t *Row) RowCount() int     { return len(t.rows) }
func (t *Row) ColumnCount() int  { return len(t.cols) }

func (t *Row) ColumnIndex(name string) (int, error) {
	for i, c := range t.cols {
		if c.Name == name {
			return i, nil
		}
	}
	return -1, pqerr.UnknownColumn(name)
}

func (t *Row) Cell(row, col int) value.Value {
	if row < 0 || row >= len(t.rows) || col < 0 || col >= len(t.cols) {
		return value.Null()
	}
	return t.rows[row][col]
}

func (t *Row) Row(row int) []value.Value {
	if row < 0 || row >= len(t.rows) {
		return nil
	}
	out := make([]value.Value, len(t.rows[row]))
	copy(out, t.rows[row])
	return out
}

func (t *Row) IterRows(fn func(row []value.Value) bool) {
	for _, r := range t.rows {
		if !fn(r) {
			return
		}
	}
}

func (t *Row) Head(n int) Table {
	if n < 0 {
		n = 0
	}
	if n > len(t.rows) {
		n = len(t.rows)
	}
	rows := make([][]value.Value, n)
	copy(rows, t.rows[:n])
	return &Row{cols: t.cols, rows: rows}
}

func (t *Row) ToGrid(includeHeader bool) [][]string {
	grid := make([][]string, 0, len(t.rows)+1)
	if includeHeader {
		header := make([]string, len(t.cols))
		for i, c := range t.cols {
			header[i] = c.Name
		}
		grid = append(grid, header)
	}
	for _, r := range t.rows {
		line := make([]string, len(r))
		for i, v := range r {
			line[i] = v.String()
		}
		grid = append(grid, line)
	}
	return grid
}

// value.NestedTable implementation, used when a Row is embedded as a
// nested-join cell value (spec §4.3 nested joinMode).
func (t *Row) ColumnName(i int) string { return t.cols[i].Name }

// Rows exposes the raw row slice for operators that build a new table by
// filtering/reordering rows without touching column metadata.
func (t *Row) Rows() [][]value.Value { return t.rows }

var _ value.NestedTable = (*Row)(nil)
