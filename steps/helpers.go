package steps

import (
	"github.com/sqldef/powerquery/table"
	"github.com/sqldef/powerquery/value"
)

// allRows materializes every row of t; used by operators that keep the
// column set unchanged (or nearly so) and only need a plain row slice to
// hand to table.New.
func allRows(t table.Table) [][]value.Value {
	rows := make([][]value.Value, 0, t.RowCount())
	t.IterRows(func(row []value.Value) bool {
		rows = append(rows, row)
		return true
	})
	return rows
}

// columnIndexMap builds a name→index lookup, used by the formula
// evaluator and by operators that need repeated column lookups.
func columnIndexMap(cols []table.Column) map[string]int {
	m := make(map[string]int, len(cols))
	for i, c := range cols {
		m[c.Name] = i
	}
	return m
}

// asText/asNumber unwrap value.Value's (T, ok) accessors for call sites
// that only care about the zero-value-on-mismatch behavior (e.g.
// stringifying a non-text cell for combine_columns still yields "").
func asText(v value.Value) string {
	s, _ := v.AsText()
	return s
}

func asNumber(v value.Value) float64 {
	n, _ := v.AsNumber()
	return n
}
