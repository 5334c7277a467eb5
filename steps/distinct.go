package steps

import (
	"github.com/sqldef/powerquery/query"
	"github.com/sqldef/powerquery/table"
	"github.com/sqldef/powerquery/value"
)

// distinctRows implements spec §4.2 distinct_rows: "If columns is null,
// deduplicate over all columns; keep first occurrence."
func distinctRows(t table.Table, op *query.DistinctRowsOp) (table.Table, error) {
	idx, err := resolveDistinctColumns(t, op.Columns)
	if err != nil {
		return nil, err
	}
	seen := map[string]bool{}
	var rows [][]value.Value
	t.IterRows(func(row []value.Value) bool {
		key := keyForColumns(row, idx)
		if !seen[key] {
			seen[key] = true
			rows = append(rows, row)
		}
		return true
	})
	return table.New(t.Columns(), rows), nil
}

func resolveDistinctColumns(t table.Table, columns []string) ([]int, error) {
	if columns == nil {
		idx := make([]int, t.ColumnCount())
		for i := range idx {
			idx[i] = i
		}
		return idx, nil
	}
	idx := make([]int, len(columns))
	for i, name := range columns {
		j, err := t.ColumnIndex(name)
		if err != nil {
			return nil, err
		}
		idx[i] = j
	}
	return idx, nil
}

func keyForColumns(row []value.Value, idx []int) string {
	vs := make([]value.Value, len(idx))
	for i, j := range idx {
		vs[i] = row[j]
	}
	return value.CompositeKey(vs...)
}

// removeRowsWithErrors implements spec §4.2: "Drop rows carrying error
// sentinels in any (or listed) column."
func removeRowsWithErrors(t table.Table, op *query.RemoveRowsWithErrorsOp) (table.Table, error) {
	idx, err := resolveDistinctColumns(t, op.Columns)
	if err != nil {
		return nil, err
	}
	var rows [][]value.Value
	t.IterRows(func(row []value.Value) bool {
		for _, j := range idx {
			if row[j].IsError() {
				return true
			}
		}
		rows = append(rows, row)
		return true
	})
	return table.New(t.Columns(), rows), nil
}
