package steps

import (
	"github.com/sqldef/powerquery/query"
	"github.com/sqldef/powerquery/table"
	"github.com/sqldef/powerquery/value"
)

// pivotRows implements spec §4.2 pivot: "new column names are the
// distinct non-null text values of rowCol. Schema is unknown afterwards."
// The remaining (non-rowCol, non-valueCol) columns become the grouping
// key, mirroring group_by's first-encounter ordering (invariant I4).
func pivotRows(t table.Table, op *query.PivotOp) (table.Table, error) {
	rowColIdx, err := t.ColumnIndex(op.RowCol)
	if err != nil {
		return nil, err
	}
	valColIdx, err := t.ColumnIndex(op.ValueCol)
	if err != nil {
		return nil, err
	}

	var keyIdx []int
	var keyCols []table.Column
	for i, c := range t.Columns() {
		if i == rowColIdx || i == valColIdx {
			continue
		}
		keyIdx = append(keyIdx, i)
		keyCols = append(keyCols, c)
	}

	var groupOrder []string
	groupKeyVals := map[string][]value.Value{}
	var pivotColOrder []string
	pivotColSeen := map[string]bool{}
	cells := map[string]map[string]AggState{}

	t.IterRows(func(row []value.Value) bool {
		keyVals := make([]value.Value, len(keyIdx))
		for i, j := range keyIdx {
			keyVals[i] = row[j]
		}
		gk := value.CompositeKey(keyVals...)
		if _, ok := groupKeyVals[gk]; !ok {
			groupOrder = append(groupOrder, gk)
			groupKeyVals[gk] = keyVals
			cells[gk] = map[string]AggState{}
		}

		pivotCol := row[rowColIdx]
		if pivotCol.IsNull() {
			return true
		}
		pc := asText(pivotCol)
		if !pivotColSeen[pc] {
			pivotColSeen[pc] = true
			pivotColOrder = append(pivotColOrder, pc)
		}

		st := cells[gk][pc]
		if st.distinctSeen == nil {
			st.distinctSeen = map[string]bool{}
		}
		ApplyAgg(&st, op.Agg, row[valColIdx], false)
		cells[gk][pc] = st
		return true
	})

	outCols := append([]table.Column{}, keyCols...)
	for _, pc := range pivotColOrder {
		outCols = append(outCols, table.Column{Name: pc})
	}

	rows := make([][]value.Value, 0, len(groupOrder))
	for _, gk := range groupOrder {
		row := append([]value.Value{}, groupKeyVals[gk]...)
		for _, pc := range pivotColOrder {
			if st, ok := cells[gk][pc]; ok {
				row = append(row, FinalizeAgg(st, op.Agg))
			} else {
				row = append(row, value.Null())
			}
		}
		rows = append(rows, row)
	}
	return table.New(outCols, rows), nil
}

// unpivotRows implements spec §4.2 unpivot: "columns in columns are
// removed and replaced by two new columns."
func unpivotRows(t table.Table, op *query.UnpivotOp) (table.Table, error) {
	unpivotIdx := make([]int, len(op.Columns))
	names := make([]string, len(op.Columns))
	for i, name := range op.Columns {
		j, err := t.ColumnIndex(name)
		if err != nil {
			return nil, err
		}
		unpivotIdx[i] = j
		names[i] = name
	}
	drop := map[int]bool{}
	for _, j := range unpivotIdx {
		drop[j] = true
	}

	var keepCols []table.Column
	var keepIdx []int
	for i, c := range t.Columns() {
		if !drop[i] {
			keepCols = append(keepCols, c)
			keepIdx = append(keepIdx, i)
		}
	}
	outCols := append(append([]table.Column{}, keepCols...),
		table.Column{Name: op.NameCol}, table.Column{Name: op.ValueCol})

	var rows [][]value.Value
	t.IterRows(func(row []value.Value) bool {
		for i, j := range unpivotIdx {
			out := make([]value.Value, 0, len(keepIdx)+2)
			for _, k := range keepIdx {
				out = append(out, row[k])
			}
			out = append(out, value.Text(names[i]), row[j])
			rows = append(rows, out)
		}
		return true
	})
	return table.New(outCols, rows), nil
}
