package steps

import (
	"strings"

	"github.com/sqldef/powerquery/pqerr"
	"github.com/sqldef/powerquery/query"
	"github.com/sqldef/powerquery/table"
	"github.com/sqldef/powerquery/value"
)

func hasColumn(t table.Table, name string) bool {
	_, err := t.ColumnIndex(name)
	return err == nil
}

// addColumn implements spec §4.2 add_column: evaluation errors become
// per-cell error sentinels rather than aborting the pipeline (§7
// propagation policy).
func addColumn(t table.Table, op *query.AddColumnOp) (table.Table, error) {
	if hasColumn(t, op.Name) {
		return nil, pqerr.New(pqerr.KindInvalidArgument, "add_column: duplicate column name "+op.Name)
	}
	colIdx := columnIndexMap(t.Columns())
	cols := append(append([]table.Column{}, t.Columns()...), table.Column{Name: op.Name})
	rows := make([][]value.Value, 0, t.RowCount())
	t.IterRows(func(row []value.Value) bool {
		v := evalFormula(op.Formula, colIdx, row, nil)
		rows = append(rows, append(append([]value.Value{}, row...), v))
		return true
	})
	return table.New(cols, rows), nil
}

func addIndexColumn(t table.Table, op *query.AddIndexColumnOp) (table.Table, error) {
	if hasColumn(t, op.Name) {
		return nil, pqerr.New(pqerr.KindInvalidArgument, "add_index_column: duplicate column name "+op.Name)
	}
	cols := append(append([]table.Column{}, t.Columns()...), table.Column{Name: op.Name, Type: table.TypeNumber})
	increment := op.Increment
	if increment == 0 {
		increment = 1
	}
	i := int64(0)
	rows := make([][]value.Value, 0, t.RowCount())
	t.IterRows(func(row []value.Value) bool {
		idxVal := op.Initial + i*increment
		rows = append(rows, append(append([]value.Value{}, row...), value.Number(float64(idxVal))))
		i++
		return true
	})
	return table.New(cols, rows), nil
}

func combineColumns(t table.Table, op *query.CombineColumnsOp) (table.Table, error) {
	idx := make([]int, len(op.Columns))
	firstPos := -1
	for i, name := range op.Columns {
		j, err := t.ColumnIndex(name)
		if err != nil {
			return nil, err
		}
		idx[i] = j
		if firstPos == -1 || j < firstPos {
			firstPos = j
		}
	}
	drop := map[int]bool{}
	for _, j := range idx {
		drop[j] = true
	}

	var cols []table.Column
	inserted := false
	for i, c := range t.Columns() {
		if i == firstPos {
			cols = append(cols, table.Column{Name: op.NewName})
			inserted = true
		}
		if !drop[i] {
			cols = append(cols, c)
		}
	}
	if !inserted {
		cols = append(cols, table.Column{Name: op.NewName})
	}

	rows := make([][]value.Value, 0, t.RowCount())
	t.IterRows(func(row []value.Value) bool {
		parts := make([]string, len(idx))
		for i, j := range idx {
			parts[i] = row[j].String()
		}
		combined := value.Text(strings.Join(parts, op.Delimiter))

		var out []value.Value
		ins := false
		for i, v := range row {
			if i == firstPos {
				out = append(out, combined)
				ins = true
			}
			if !drop[i] {
				out = append(out, v)
			}
		}
		if !ins {
			out = append(out, combined)
		}
		rows = append(rows, out)
		return true
	})
	return table.New(cols, rows), nil
}

// splitColumn implements spec §4.2 split_column: "if newColumns
// provided, expand inline; else produce unknown schema" — the unknown
// case is handled by splitting into as many columns as the widest row
// needs, which is the operator's own best-effort schema discovery.
func splitColumn(t table.Table, op *query.SplitColumnOp) (table.Table, error) {
	srcIdx, err := t.ColumnIndex(op.Column)
	if err != nil {
		return nil, err
	}

	splitValues := make([][]string, t.RowCount())
	width := 0
	i := 0
	t.IterRows(func(row []value.Value) bool {
		parts := strings.Split(asText(row[srcIdx]), op.Delimiter)
		splitValues[i] = parts
		if len(parts) > width {
			width = len(parts)
		}
		i++
		return true
	})
	if op.NewColumns != nil {
		width = len(op.NewColumns)
	}

	newNames := make([]string, width)
	for i := 0; i < width; i++ {
		if op.NewColumns != nil && i < len(op.NewColumns) {
			newNames[i] = op.NewColumns[i]
		} else {
			newNames[i] = op.Column + "." + itoa(i+1)
		}
	}

	var cols []table.Column
	for i, c := range t.Columns() {
		if i == srcIdx {
			for _, n := range newNames {
				cols = append(cols, table.Column{Name: n})
			}
			continue
		}
		cols = append(cols, c)
	}

	rows := make([][]value.Value, 0, t.RowCount())
	t.IterRows(func(row []value.Value) bool {
		idxRow := len(rows)
		parts := splitValues[idxRow]
		var out []value.Value
		for i, v := range row {
			if i == srcIdx {
				for w := 0; w < width; w++ {
					if w < len(parts) {
						out = append(out, value.Text(parts[w]))
					} else {
						out = append(out, value.Null())
					}
				}
				continue
			}
			out = append(out, v)
		}
		rows = append(rows, out)
		return true
	})
	return table.New(cols, rows), nil
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf []byte
	for n > 0 {
		buf = append([]byte{byte('0' + n%10)}, buf...)
		n /= 10
	}
	if neg {
		buf = append([]byte{'-'}, buf...)
	}
	return string(buf)
}

func transformColumns(t table.Table, op *query.TransformColumnsOp) (table.Table, error) {
	idx := make([]int, len(op.Transforms))
	for i, tr := range op.Transforms {
		j, err := t.ColumnIndex(tr.Column)
		if err != nil {
			return nil, err
		}
		idx[i] = j
	}
	colIdx := columnIndexMap(t.Columns())
	cols := append([]table.Column{}, t.Columns()...)

	rows := make([][]value.Value, 0, t.RowCount())
	t.IterRows(func(row []value.Value) bool {
		out := append([]value.Value{}, row...)
		for i, tr := range op.Transforms {
			bound := row[idx[i]]
			out[idx[i]] = evalFormula(tr.Formula, colIdx, row, &bound)
		}
		rows = append(rows, out)
		return true
	})
	return table.New(cols, rows), nil
}

func transformColumnNames(t table.Table, op *query.TransformColumnNamesOp) (table.Table, error) {
	names := make([]string, len(t.Columns()))
	for i, c := range t.Columns() {
		switch op.Op {
		case query.NameUpper:
			names[i] = strings.ToUpper(c.Name)
		case query.NameLower:
			names[i] = strings.ToLower(c.Name)
		case query.NameTrim:
			names[i] = strings.TrimSpace(c.Name)
		default:
			names[i] = c.Name
		}
	}
	uniq := table.MakeUniqueColumnNames(names)
	cols := make([]table.Column, len(t.Columns()))
	for i, c := range t.Columns() {
		cols[i] = table.Column{Name: uniq[i], Type: c.Type}
	}
	return table.New(cols, allRows(t)), nil
}

func fillDown(t table.Table, op *query.FillDownOp) (table.Table, error) {
	idx, err := resolveDistinctColumns(t, op.Columns)
	if err != nil {
		return nil, err
	}
	rows := allRows(t)
	last := make([]value.Value, len(idx))
	hasLast := make([]bool, len(idx))
	for r := range rows {
		for i, j := range idx {
			cell := rows[r][j]
			if cell.IsNull() || cell.IsError() {
				if hasLast[i] {
					rows[r][j] = last[i]
				}
			} else {
				last[i] = cell
				hasLast[i] = true
			}
		}
	}
	return table.New(t.Columns(), rows), nil
}

func replaceValues(t table.Table, op *query.ReplaceValuesOp) (table.Table, error) {
	idx, err := t.ColumnIndex(op.Column)
	if err != nil {
		return nil, err
	}
	rows := allRows(t)
	for r := range rows {
		if value.Equal(rows[r][idx], op.Find) {
			rows[r][idx] = op.Replace
		}
	}
	return table.New(t.Columns(), rows), nil
}

func replaceErrorValues(t table.Table, op *query.ReplaceErrorValuesOp) (table.Table, error) {
	repl := map[int]value.Value{}
	for _, r := range op.Replacements {
		j, err := t.ColumnIndex(r.Column)
		if err != nil {
			return nil, err
		}
		repl[j] = r.Replace
	}
	rows := allRows(t)
	for r := range rows {
		for j, v := range repl {
			if rows[r][j].IsError() {
				rows[r][j] = v
			}
		}
	}
	return table.New(t.Columns(), rows), nil
}
