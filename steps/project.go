package steps

import (
	"github.com/sqldef/powerquery/pqerr"
	"github.com/sqldef/powerquery/query"
	"github.com/sqldef/powerquery/table"
	"github.com/sqldef/powerquery/value"
)

func selectColumns(t table.Table, op *query.SelectColumnsOp) (table.Table, error) {
	idx := make([]int, len(op.Columns))
	cols := make([]table.Column, len(op.Columns))
	for i, name := range op.Columns {
		j, err := t.ColumnIndex(name)
		if err != nil {
			return nil, err
		}
		idx[i] = j
		cols[i] = t.Columns()[j]
	}
	return projectRows(t, cols, idx), nil
}

func removeColumns(t table.Table, op *query.RemoveColumnsOp) (table.Table, error) {
	drop := map[string]bool{}
	for _, name := range op.Columns {
		if _, err := t.ColumnIndex(name); err != nil {
			return nil, err
		}
		drop[name] = true
	}
	var idx []int
	var cols []table.Column
	for i, c := range t.Columns() {
		if !drop[c.Name] {
			idx = append(idx, i)
			cols = append(cols, c)
		}
	}
	return projectRows(t, cols, idx), nil
}

func renameColumn(t table.Table, op *query.RenameColumnOp) (table.Table, error) {
	oldIdx, err := t.ColumnIndex(op.Old)
	if err != nil {
		return nil, err
	}
	for i, c := range t.Columns() {
		if i != oldIdx && c.Name == op.New {
			return nil, pqerr.New(pqerr.KindInvalidArgument, "rename_column: duplicate target name "+op.New)
		}
	}
	cols := append([]table.Column{}, t.Columns()...)
	cols[oldIdx] = table.Column{Name: op.New, Type: cols[oldIdx].Type}
	rows := allRows(t)
	return table.New(cols, rows), nil
}

func reorderColumns(t table.Table, op *query.ReorderColumnsOp) (table.Table, error) {
	seen := map[string]bool{}
	var idx []int
	var cols []table.Column
	for _, name := range op.Columns {
		j, err := t.ColumnIndex(name)
		if err != nil {
			switch op.Missing {
			case query.MissingError:
				return nil, err
			case query.MissingIgnore:
				continue
			case query.MissingUseNull:
				idx = append(idx, -1)
				cols = append(cols, table.Column{Name: name})
				seen[name] = true
				continue
			}
		}
		idx = append(idx, j)
		cols = append(cols, t.Columns()[j])
		seen[name] = true
	}
	for i, c := range t.Columns() {
		if !seen[c.Name] {
			idx = append(idx, i)
			cols = append(cols, c)
		}
	}
	return projectRows(t, cols, idx), nil
}

// projectRows builds a new table with cols in the given order, pulling
// cell values by source index (-1 means "no source column", i.e. null).
func projectRows(t table.Table, cols []table.Column, idx []int) table.Table {
	n := t.RowCount()
	rows := make([][]value.Value, n)
	for r := 0; r < n; r++ {
		row := make([]value.Value, len(idx))
		for i, srcCol := range idx {
			if srcCol < 0 {
				row[i] = value.Null()
			} else {
				row[i] = t.Cell(r, srcCol)
			}
		}
		rows[r] = row
	}
	return table.New(cols, rows)
}
