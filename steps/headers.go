package steps

import (
	"github.com/sqldef/powerquery/table"
	"github.com/sqldef/powerquery/value"
)

// promoteHeaders implements spec §4.2 promote_headers: "First row
// becomes column names (unique-ified)".
func promoteHeaders(t table.Table) (table.Table, error) {
	if t.RowCount() == 0 {
		return t, nil
	}
	header := t.Row(0)
	names := make([]string, len(header))
	for i, v := range header {
		names[i] = v.String()
	}
	names = table.MakeUniqueColumnNames(names)
	cols := make([]table.Column, len(header))
	for i := range header {
		cols[i] = table.Column{Name: names[i], Type: t.Columns()[i].Type}
	}
	rows := allRows(t)[1:]
	return table.New(cols, rows), nil
}

// demoteHeaders implements spec §4.2 demote_headers: "current names
// become a row", with fresh default column names replacing them.
func demoteHeaders(t table.Table) (table.Table, error) {
	headerRow := make([]value.Value, len(t.Columns()))
	for i, c := range t.Columns() {
		headerRow[i] = value.Text(c.Name)
	}
	cols := make([]table.Column, len(t.Columns()))
	for i := range cols {
		cols[i] = table.Column{Name: defaultColumnName(i)}
	}
	rows := append([][]value.Value{headerRow}, allRows(t)...)
	return table.New(cols, rows), nil
}

func defaultColumnName(i int) string {
	const letters = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	if i < 26 {
		return string(letters[i])
	}
	return string(letters[i/26-1]) + string(letters[i%26])
}
