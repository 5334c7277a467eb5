package steps

import (
	"github.com/sqldef/powerquery/pqerr"
	"github.com/sqldef/powerquery/query"
	"github.com/sqldef/powerquery/table"
	"github.com/sqldef/powerquery/value"
)

// expandTableColumn implements spec §4.2 expand_table_column: "Inline
// the nested tables produced by merge in nested mode." Each nested table
// cell may carry a different row count; expand_table_column fans each
// source row out into one output row per nested row (zero nested rows
// produce no output rows for that source row, matching how Power
// Query's own expand treats an empty nested table).
func expandTableColumn(t table.Table, op *query.ExpandTableColumnOp) (table.Table, error) {
	srcIdx, err := t.ColumnIndex(op.Column)
	if err != nil {
		return nil, err
	}

	var keepIdx []int
	var keepCols []table.Column
	for i, c := range t.Columns() {
		if i != srcIdx {
			keepIdx = append(keepIdx, i)
			keepCols = append(keepCols, c)
		}
	}

	nestedColIdx, nestedOutCols, err := resolveExpandColumns(t, srcIdx, op)
	if err != nil {
		return nil, err
	}

	outCols := append(append([]table.Column{}, keepCols...), nestedOutCols...)

	var rows [][]value.Value
	t.IterRows(func(row []value.Value) bool {
		nestedVal := row[srcIdx]
		nested, ok := nestedVal.AsTable()
		if !ok || nested == nil {
			return true
		}
		rowCount := nested.RowCount()
		if rowCount == 0 {
			return true
		}
		base := make([]value.Value, len(keepIdx))
		for i, j := range keepIdx {
			base[i] = row[j]
		}
		for r := 0; r < rowCount; r++ {
			out := append([]value.Value{}, base...)
			for _, col := range nestedColIdx {
				if col < 0 {
					out = append(out, value.Null())
					continue
				}
				out = append(out, nested.Cell(r, col))
			}
			rows = append(rows, out)
		}
		return true
	})
	return table.New(outCols, rows), nil
}

// resolveExpandColumns decides which nested-table column indices to pull
// (by name, probing the first non-empty nested table if op.Columns is
// nil) and the output column list (renamed via op.NewColumnNames when
// given).
func resolveExpandColumns(t table.Table, srcIdx int, op *query.ExpandTableColumnOp) ([]int, []table.Column, error) {
	nestedColNames := op.Columns
	if nestedColNames == nil {
		t.IterRows(func(row []value.Value) bool {
			nested, ok := row[srcIdx].AsTable()
			if ok && nested != nil && nested.ColumnCount() > 0 {
				for i := 0; i < nested.ColumnCount(); i++ {
					nestedColNames = append(nestedColNames, nested.ColumnName(i))
				}
				return false
			}
			return true
		})
	}
	if nestedColNames == nil {
		return nil, nil, nil
	}

	if op.NewColumnNames != nil && len(op.NewColumnNames) != len(nestedColNames) {
		return nil, nil, pqerr.New(pqerr.KindInvalidArgument, "expand_table_column: newColumnNames length mismatch")
	}
	outNames := nestedColNames
	if op.NewColumnNames != nil {
		outNames = op.NewColumnNames
	}
	outCols := make([]table.Column, len(outNames))
	for i, n := range outNames {
		outCols[i] = table.Column{Name: n}
	}

	var idx []int
	t.IterRows(func(row []value.Value) bool {
		nested, ok := row[srcIdx].AsTable()
		if !ok || nested == nil {
			return true
		}
		idx = make([]int, len(nestedColNames))
		for i, name := range nestedColNames {
			idx[i] = -1
			for c := 0; c < nested.ColumnCount(); c++ {
				if nested.ColumnName(c) == name {
					idx[i] = c
					break
				}
			}
		}
		return false
	})
	if idx == nil {
		idx = make([]int, len(nestedColNames))
		for i := range idx {
			idx[i] = i
		}
	}

	return idx, outCols, nil
}
