package steps

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sqldef/powerquery/query"
	"github.com/sqldef/powerquery/table"
	"github.com/sqldef/powerquery/value"
)

func sampleTable() table.Table {
	cols := []table.Column{{Name: "Region"}, {Name: "Sales", Type: table.TypeNumber}, {Name: "Year", Type: table.TypeNumber}}
	rows := [][]value.Value{
		{value.Text("East"), value.Number(10), value.Number(2024)},
		{value.Text("West"), value.Number(20), value.Number(2024)},
	}
	return table.New(cols, rows)
}

func TestSelectColumns(t *testing.T) {
	out, err := selectColumns(sampleTable(), &query.SelectColumnsOp{Columns: []string{"Year", "Region"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"Year", "Region"}, table.ColumnNames(out.Columns()))
	assert.Equal(t, "2024", out.Cell(0, 0).String())
}

func TestRemoveColumns(t *testing.T) {
	out, err := removeColumns(sampleTable(), &query.RemoveColumnsOp{Columns: []string{"Sales"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"Region", "Year"}, table.ColumnNames(out.Columns()))
}

func TestRenameColumnRejectsDuplicate(t *testing.T) {
	_, err := renameColumn(sampleTable(), &query.RenameColumnOp{Old: "Region", New: "Sales"})
	require.Error(t, err)
}

func TestRenameColumn(t *testing.T) {
	out, err := renameColumn(sampleTable(), &query.RenameColumnOp{Old: "Region", New: "Area"})
	require.NoError(t, err)
	assert.Equal(t, []string{"Area", "Sales", "Year"}, table.ColumnNames(out.Columns()))
}

func TestReorderColumnsMissingUseNull(t *testing.T) {
	out, err := reorderColumns(sampleTable(), &query.ReorderColumnsOp{
		Columns: []string{"Bogus", "Year"},
		Missing: query.MissingUseNull,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"Bogus", "Year", "Region", "Sales"}, table.ColumnNames(out.Columns()))
	assert.True(t, out.Cell(0, 0).IsNull())
}

func TestReorderColumnsMissingError(t *testing.T) {
	_, err := reorderColumns(sampleTable(), &query.ReorderColumnsOp{
		Columns: []string{"Bogus"},
		Missing: query.MissingError,
	})
	require.Error(t, err)
}
