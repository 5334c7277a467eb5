package steps

import (
	"fmt"

	"github.com/sqldef/powerquery/query"
	"github.com/sqldef/powerquery/table"
	"github.com/sqldef/powerquery/value"
)

// AggState is the running per-group aggregation accumulator, exported so
// streaming/extgroup can reuse the exact same accumulation and
// finalization rules when a group_by spills to disk.
type AggState struct {
	sum          float64
	count        int64 // non-null count (numeric aggs) or total count (AggCount over "*")
	min, max     value.Value
	hasMinMax    bool
	distinctSeen map[string]bool
}

// groupBy implements spec §4.2 group_by: "Groups iterate in
// first-encounter key order" (invariant I4). Grounded on the same
// first-encounter-order discipline the teacher applies when ordering
// generated DDL statements (schema/ddl_ordering.go in the source
// generation, generalized here to row grouping).
func groupBy(t table.Table, op *query.GroupByOp) (table.Table, error) {
	keyIdx := make([]int, len(op.Keys))
	for i, k := range op.Keys {
		j, err := t.ColumnIndex(k)
		if err != nil {
			return nil, err
		}
		keyIdx[i] = j
	}
	aggIdx := make([]int, len(op.Aggs))
	for i, a := range op.Aggs {
		if a.Column == "*" {
			aggIdx[i] = -1
			continue
		}
		j, err := t.ColumnIndex(a.Column)
		if err != nil {
			return nil, err
		}
		aggIdx[i] = j
	}

	var order []string
	groupKeys := map[string][]value.Value{}
	states := map[string][]AggState{}

	t.IterRows(func(row []value.Value) bool {
		keyVals := make([]value.Value, len(keyIdx))
		for i, j := range keyIdx {
			keyVals[i] = row[j]
		}
		k := value.CompositeKey(keyVals...)
		st, ok := states[k]
		if !ok {
			order = append(order, k)
			groupKeys[k] = keyVals
			st = make([]AggState, len(op.Aggs))
			for i := range st {
				st[i] = NewAggState()
			}
		}
		for i, a := range op.Aggs {
			var cell value.Value
			if aggIdx[i] == -1 {
				cell = value.Number(0) // placeholder; AggCount over "*" counts rows regardless
			} else {
				cell = row[aggIdx[i]]
			}
			ApplyAgg(&st[i], a.Op, cell, aggIdx[i] == -1)
		}
		states[k] = st
		return true
	})

	outCols := make([]table.Column, 0, len(op.Keys)+len(op.Aggs))
	for i, k := range op.Keys {
		outCols = append(outCols, table.Column{Name: k, Type: t.Columns()[keyIdx[i]].Type})
	}
	for _, a := range op.Aggs {
		name := a.As
		if name == "" {
			name = fmt.Sprintf("%s of %s", AggOpName(a.Op), a.Column)
		}
		outCols = append(outCols, table.Column{Name: name, Type: table.TypeNumber})
	}

	rows := make([][]value.Value, 0, len(order))
	for _, k := range order {
		row := make([]value.Value, 0, len(op.Keys)+len(op.Aggs))
		row = append(row, groupKeys[k]...)
		for i, a := range op.Aggs {
			row = append(row, FinalizeAgg(states[k][i], a.Op))
		}
		rows = append(rows, row)
	}
	return table.New(outCols, rows), nil
}

// NewAggState returns a zero-valued accumulator ready for ApplyAgg.
func NewAggState() AggState {
	return AggState{distinctSeen: map[string]bool{}}
}

func ApplyAgg(st *AggState, op query.AggOp, cell value.Value, isStar bool) {
	switch op {
	case query.AggCount:
		if isStar || !cell.IsNull() {
			st.count++
		}
	case query.AggCountDistinct:
		if !cell.IsNull() {
			st.distinctSeen[cell.Key()] = true
		}
	case query.AggSum, query.AggAverage:
		if !cell.IsNull() {
			st.sum += asNumber(cell)
			st.count++
		}
	case query.AggMin:
		if !cell.IsNull() {
			if !st.hasMinMax || value.Less(cell, st.min, false) {
				st.min = cell
				st.hasMinMax = true
			}
		}
	case query.AggMax:
		if !cell.IsNull() {
			if !st.hasMinMax || value.Less(st.max, cell, false) {
				st.max = cell
				st.hasMinMax = true
			}
		}
	}
}

func FinalizeAgg(st AggState, op query.AggOp) value.Value {
	switch op {
	case query.AggSum:
		return value.Number(st.sum)
	case query.AggCount:
		return value.Number(float64(st.count))
	case query.AggCountDistinct:
		return value.Number(float64(len(st.distinctSeen)))
	case query.AggAverage:
		if st.count == 0 {
			return value.Null()
		}
		return value.Number(st.sum / float64(st.count))
	case query.AggMin:
		if !st.hasMinMax {
			return value.Null()
		}
		return st.min
	case query.AggMax:
		if !st.hasMinMax {
			return value.Null()
		}
		return st.max
	default:
		return value.Error("unknown aggregation", nil)
	}
}

func AggOpName(op query.AggOp) string {
	switch op {
	case query.AggSum:
		return "Sum"
	case query.AggCount:
		return "Count"
	case query.AggAverage:
		return "Average"
	case query.AggMin:
		return "Min"
	case query.AggMax:
		return "Max"
	case query.AggCountDistinct:
		return "CountDistinct"
	default:
		return "Unknown"
	}
}
