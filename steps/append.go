package steps

import (
	"github.com/sqldef/powerquery/pqerr"
	"github.com/sqldef/powerquery/query"
	"github.com/sqldef/powerquery/table"
	"github.com/sqldef/powerquery/value"
)

// appendTables implements spec §4.2 append: "Stack rows from additional
// queries; output columns are the union of input columns in
// first-encountered order; missing columns become null." deps holds the
// already-resolved tables for op.QueryIDs, populated by the engine
// before Apply is called on an append step (the same resolution
// arrangement merge uses for RightQuery).
func appendTables(t table.Table, op *query.AppendOp, deps map[string]table.Table) (table.Table, error) {
	tables := make([]table.Table, 0, len(op.QueryIDs)+1)
	tables = append(tables, t)
	for _, id := range op.QueryIDs {
		dep, ok := deps[id]
		if !ok {
			return nil, pqerr.New(pqerr.KindUnknownQuery, "append: no resolved table for query "+id)
		}
		tables = append(tables, dep)
	}

	var outNames []string
	seen := map[string]bool{}
	colType := map[string]table.DataType{}
	for _, tb := range tables {
		for _, c := range tb.Columns() {
			if !seen[c.Name] {
				seen[c.Name] = true
				outNames = append(outNames, c.Name)
				colType[c.Name] = c.Type
			}
		}
	}
	outCols := make([]table.Column, len(outNames))
	for i, n := range outNames {
		outCols[i] = table.Column{Name: n, Type: colType[n]}
	}

	var rows [][]value.Value
	for _, tb := range tables {
		srcIdx := make([]int, len(outNames))
		for i, n := range outNames {
			j, err := tb.ColumnIndex(n)
			if err != nil {
				srcIdx[i] = -1
				continue
			}
			srcIdx[i] = j
		}
		tb.IterRows(func(row []value.Value) bool {
			out := make([]value.Value, len(outNames))
			for i, j := range srcIdx {
				if j == -1 {
					out[i] = value.Null()
					continue
				}
				out[i] = row[j]
			}
			rows = append(rows, out)
			return true
		})
	}
	return table.New(outCols, rows), nil
}
