package table

import (
	"github.com/sqldef/powerquery/pqerr"
	"github.com/sqldef/powerquery/value"
)

// Columnar is the columnar-adapter implementation of Table (spec §3:
// "Two implementations coexist: a row-backed table ... and a columnar
// adapter (for Arrow-style inputs)"). It stores one value.Value slice
// per column rather than one slice per row, which suits connectors that
// natively produce column batches (Parquet, Arrow record batches).
type Columnar struct {
	cols Columns
	data []ColumnData
}

// Columns and ColumnData are split out so a connector can build a
// Columnar table directly from decoded column vectors without an
// intermediate row-major copy.
type Columns = []Column

// ColumnData is one column's values, same length for every column in a
// well-formed Columnar table.
type ColumnData []value.Value

// NewColumnar builds a columnar table. Column names are uniquified the
// same way as Row tables.
func NewColumnar(cols []Column, data []ColumnData) *Columnar {
	names := MakeUniqueColumnNames(ColumnNames(cols))
	outCols := make([]Column, len(cols))
	for i, c := range cols {
		outCols[i] = Column{Name: names[i], Type: c.Type}
	}
	return &Columnar{cols: outCols, data: data}
}

func (t *Columnar) Columns() []Column { return t.cols }
func (t *Columnar) ColumnCount() int  { return len(t.cols) }

func (t *Columnar) RowCount() int {
	if len(t.data) == 0 {
		return 0
	}
	return len(t.data[0])
}

func (t *Columnar) ColumnIndex(name string) (int, error) {
	for i, c := range t.cols {
		if c.Name == name {
			return i, nil
		}
	}
	return -1, pqerr.UnknownColumn(name)
}

func (t *Columnar) Cell(row, col int) value.Value {
	if col < 0 || col >= len(t.data) || row < 0 || row >= len(t.data[col]) {
		return value.Null()
	}
	return t.data[col][row]
}

func (t *Columnar) Row(row int) []value.Value {
	out := make([]value.Value, len(t.cols))
	for c := range t.cols {
		out[c] = t.Cell(row, c)
	}
	return out
}

func (t *Columnar) IterRows(fn func(row []value.Value) bool) {
	n := t.RowCount()
	for r := 0; r < n; r++ {
		if !fn(t.Row(r)) {
			return
		}
	}
}

func (t *Columnar) Head(n int) Table {
	if n < 0 {
		n = 0
	}
	rowN := t.RowCount()
	if n > rowN {
		n = rowN
	}
	data := make([]ColumnData, len(t.data))
	for i, col := range t.data {
		data[i] = append(ColumnData{}, col[:n]...)
	}
	return &Columnar{cols: t.cols, data: data}
}

func (t *Columnar) ToGrid(includeHeader bool) [][]string {
	n := t.RowCount()
	grid := make([][]string, 0, n+1)
	if includeHeader {
		header := make([]string, len(t.cols))
		for i, c := range t.cols {
			header[i] = c.Name
		}
		grid = append(grid, header)
	}
	for r := 0; r < n; r++ {
		line := make([]string, len(t.cols))
		for c := range t.cols {
			line[c] = t.Cell(r, c).String()
		}
		grid = append(grid, line)
	}
	return grid
}

var _ Table = (*Columnar)(nil)
var _ Table = (*Row)(nil)

// ToRow materializes any Table implementation into a row-backed Row,
// used by operators whose algorithm is simplest expressed row-at-a-time
// (the large majority of the operator library).
func ToRow(t Table) *Row {
	if r, ok := t.(*Row); ok {
		return r
	}
	rows := make([][]value.Value, 0, t.RowCount())
	t.IterRows(func(row []value.Value) bool {
		rows = append(rows, row)
		return true
	})
	return &Row{cols: t.Columns(), rows: rows}
}
