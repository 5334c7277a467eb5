package steps

import (
	"strings"

	"github.com/sqldef/powerquery/pqerr"
	"github.com/sqldef/powerquery/query"
	"github.com/sqldef/powerquery/table"
	"github.com/sqldef/powerquery/value"
)

// merge implements spec §4.3: hash-based equi-join over a composite key.
// right is the already-resolved table for op.RightQuery (the engine
// recurses into dependencies before calling Apply on a merge step).
func merge(left table.Table, op *query.MergeOp, right table.Table) (table.Table, error) {
	if len(op.LeftKeys) != len(op.RightKeys) {
		return nil, pqerr.New(pqerr.KindInvalidJoin, "merge: leftKeys and rightKeys must be the same length")
	}

	leftIdx := make([]int, len(op.LeftKeys))
	for i, k := range op.LeftKeys {
		j, err := left.ColumnIndex(k)
		if err != nil {
			return nil, err
		}
		leftIdx[i] = j
	}
	rightIdx := make([]int, len(op.RightKeys))
	for i, k := range op.RightKeys {
		j, err := right.ColumnIndex(k)
		if err != nil {
			return nil, err
		}
		rightIdx[i] = j
	}

	comparers := resolveComparers(op, len(leftIdx))

	rightIndex := map[string][]int{}
	rightRows := allRows(right)
	for r, row := range rightRows {
		key := joinKey(row, rightIdx, comparers)
		rightIndex[key] = append(rightIndex[key], r)
	}

	matchedRight := map[int]bool{}
	leftRows := allRows(left)

	if op.JoinMode == query.JoinNested {
		return mergeNested(left, leftRows, leftIdx, right, rightRows, rightIdx, rightIndex, matchedRight, comparers, op)
	}
	return mergeFlat(left, leftRows, leftIdx, right, rightRows, rightIdx, rightIndex, matchedRight, comparers, op)
}

func resolveComparers(op *query.MergeOp, n int) []query.Comparer {
	out := make([]query.Comparer, n)
	if len(op.Comparers) == n {
		copy(out, op.Comparers)
		return out
	}
	var def query.Comparer
	if op.Comparer != nil {
		def = *op.Comparer
	}
	for i := range out {
		out[i] = def
	}
	return out
}

func joinKey(row []value.Value, idx []int, comparers []query.Comparer) string {
	vs := make([]value.Value, len(idx))
	for i, j := range idx {
		vs[i] = normalizeForComparer(row[j], comparers[i])
	}
	return value.CompositeKey(vs...)
}

// normalizeForComparer implements spec §4.3 comparer semantics:
// "ordinalIgnoreCase or caseSensitive=false" lowercases text key values;
// numeric/boolean/date equality is comparer-independent.
func normalizeForComparer(v value.Value, c query.Comparer) value.Value {
	if v.Kind() != value.KindText {
		return v
	}
	caseInsensitive := c.Name == "ordinalIgnoreCase" || (c.CaseSensitive != nil && !*c.CaseSensitive)
	if !caseInsensitive {
		return v
	}
	return value.Text(strings.ToLower(asText(v)))
}

func mergeFlat(
	left table.Table, leftRows [][]value.Value, leftIdx []int,
	right table.Table, rightRows [][]value.Value, rightIdx []int,
	rightIndex map[string][]int, matchedRight map[int]bool,
	comparers []query.Comparer, op *query.MergeOp,
) (table.Table, error) {
	rightKeySet := map[int]bool{}
	for _, j := range rightIdx {
		rightKeySet[j] = true
	}
	leftNames := map[string]bool{}
	for _, c := range left.Columns() {
		leftNames[c.Name] = true
	}

	var rightCarryIdx []int
	var rightCols []table.Column
	for i, c := range right.Columns() {
		if rightKeySet[i] && leftNames[c.Name] {
			continue // key columns sharing a name with the left side are folded, not duplicated
		}
		rightCarryIdx = append(rightCarryIdx, i)
		rightCols = append(rightCols, c)
	}

	outNames := table.MakeUniqueColumnNames(append(table.ColumnNames(left.Columns()), table.ColumnNames(rightCols)...))
	outCols := make([]table.Column, len(left.Columns())+len(rightCols))
	for i, c := range left.Columns() {
		outCols[i] = table.Column{Name: outNames[i], Type: c.Type}
	}
	for i, c := range rightCols {
		outCols[len(left.Columns())+i] = table.Column{Name: outNames[len(left.Columns())+i], Type: c.Type}
	}

	nullRight := make([]value.Value, len(rightCarryIdx))
	for i := range nullRight {
		nullRight[i] = value.Null()
	}
	nullLeft := make([]value.Value, len(left.Columns()))
	for i := range nullLeft {
		nullLeft[i] = value.Null()
	}

	var rows [][]value.Value
	emit := func(l, r []value.Value) {
		row := append(append([]value.Value{}, l...), r...)
		rows = append(rows, row)
	}
	carryRight := func(row []value.Value) []value.Value {
		out := make([]value.Value, len(rightCarryIdx))
		for i, j := range rightCarryIdx {
			out[i] = row[j]
		}
		return out
	}

	for _, lrow := range leftRows {
		key := joinKey(lrow, leftIdx, comparers)
		matches := rightIndex[key]
		if len(matches) == 0 {
			if op.JoinType == query.JoinInner || op.JoinType == query.JoinRight {
				continue
			}
			emit(lrow, nullRight)
			continue
		}
		for _, ri := range matches {
			matchedRight[ri] = true
			emit(lrow, carryRight(rightRows[ri]))
		}
	}

	if op.JoinType == query.JoinRight || op.JoinType == query.JoinFull {
		for ri, rrow := range rightRows {
			if !matchedRight[ri] {
				emit(nullLeft, carryRight(rrow))
			}
		}
	}

	return table.New(outCols, rows), nil
}

func mergeNested(
	left table.Table, leftRows [][]value.Value, leftIdx []int,
	right table.Table, rightRows [][]value.Value, rightIdx []int,
	rightIndex map[string][]int, matchedRight map[int]bool,
	comparers []query.Comparer, op *query.MergeOp,
) (table.Table, error) {
	rightProjCols, rightProjIdx, err := resolveRightColumns(right, op.RightColumns)
	if err != nil {
		return nil, err
	}

	outCols := append(append([]table.Column{}, left.Columns()...), table.Column{Name: op.NewColumnName})

	buildNested := func(rowIdxs []int) *table.Row {
		nrows := make([][]value.Value, len(rowIdxs))
		for i, ri := range rowIdxs {
			projected := make([]value.Value, len(rightProjIdx))
			for c, j := range rightProjIdx {
				projected[c] = rightRows[ri][j]
			}
			nrows[i] = projected
		}
		return table.New(rightProjCols, nrows)
	}

	var rows [][]value.Value
	for _, lrow := range leftRows {
		key := joinKey(lrow, leftIdx, comparers)
		matches := rightIndex[key]
		if len(matches) == 0 && (op.JoinType == query.JoinInner || op.JoinType == query.JoinRight) {
			continue
		}
		for _, ri := range matches {
			matchedRight[ri] = true
		}
		row := append(append([]value.Value{}, lrow...), value.Table(buildNested(matches)))
		rows = append(rows, row)
	}

	if op.JoinType == query.JoinRight || op.JoinType == query.JoinFull {
		nullLeft := make([]value.Value, len(left.Columns()))
		for i := range nullLeft {
			nullLeft[i] = value.Null()
		}
		for ri := range rightRows {
			if !matchedRight[ri] {
				row := append(append([]value.Value{}, nullLeft...), value.Table(buildNested([]int{ri})))
				rows = append(rows, row)
			}
		}
	}

	return table.New(outCols, rows), nil
}

func resolveRightColumns(right table.Table, names []string) ([]table.Column, []int, error) {
	if names == nil {
		idx := make([]int, right.ColumnCount())
		for i := range idx {
			idx[i] = i
		}
		return right.Columns(), idx, nil
	}
	cols := make([]table.Column, len(names))
	idx := make([]int, len(names))
	for i, n := range names {
		j, err := right.ColumnIndex(n)
		if err != nil {
			return nil, nil, err
		}
		cols[i] = right.Columns()[j]
		idx[i] = j
	}
	return cols, idx, nil
}
