package steps

import (
	"sort"

	"github.com/sqldef/powerquery/query"
	"github.com/sqldef/powerquery/table"
	"github.com/sqldef/powerquery/value"
)

// sortRows implements spec §4.2 sort_rows: stable multi-key sort, ties
// broken by input position (invariant I3).
func sortRows(t table.Table, op *query.SortRowsOp) (table.Table, error) {
	idx := make([]int, len(op.SortBy))
	for i, k := range op.SortBy {
		j, err := t.ColumnIndex(k.Column)
		if err != nil {
			return nil, err
		}
		idx[i] = j
	}

	rows := allRows(t)
	order := make([]int, len(rows))
	for i := range order {
		order[i] = i
	}

	sort.SliceStable(order, func(a, b int) bool {
		ra, rb := rows[order[a]], rows[order[b]]
		for i, k := range op.SortBy {
			col := idx[i]
			va, vb := ra[col], rb[col]
			nullsFirst := k.Nulls == query.NullsFirst
			less := value.Less(va, vb, nullsFirst)
			greater := value.Less(vb, va, nullsFirst)
			if !less && !greater {
				continue // tied on this key, fall through to next
			}
			if k.Direction == query.Desc {
				return greater
			}
			return less
		}
		return false // fully tied: preserve input order (stable sort)
	})

	out := make([][]value.Value, len(rows))
	for i, o := range order {
		out[i] = rows[o]
	}
	return table.New(t.Columns(), out), nil
}
