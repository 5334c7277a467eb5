package steps

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sqldef/powerquery/query"
	"github.com/sqldef/powerquery/table"
	"github.com/sqldef/powerquery/value"
)

func TestSortRowsMultiKeyDescAsc(t *testing.T) {
	cols := []table.Column{{Name: "Region"}, {Name: "Sales", Type: table.TypeNumber}}
	rows := [][]value.Value{
		{value.Text("East"), value.Number(20)},
		{value.Text("East"), value.Number(10)},
		{value.Text("West"), value.Number(5)},
	}
	tbl := table.New(cols, rows)

	out, err := sortRows(tbl, &query.SortRowsOp{SortBy: []query.SortKey{
		{Column: "Region", Direction: query.Asc},
		{Column: "Sales", Direction: query.Desc},
	}})
	require.NoError(t, err)
	assert.Equal(t, "20", out.Cell(0, 1).String())
	assert.Equal(t, "10", out.Cell(1, 1).String())
	assert.Equal(t, "West", out.Cell(2, 0).String())
}

func TestSortRowsStableOnFullTie(t *testing.T) {
	cols := []table.Column{{Name: "A"}}
	rows := [][]value.Value{{value.Number(1)}, {value.Number(1)}, {value.Number(1)}}
	tbl := table.New(cols, rows)
	out, err := sortRows(tbl, &query.SortRowsOp{SortBy: []query.SortKey{{Column: "A", Direction: query.Asc}}})
	require.NoError(t, err)
	assert.Equal(t, 3, out.RowCount())
}

func TestSortRowsNullsOrder(t *testing.T) {
	cols := []table.Column{{Name: "A"}}
	rows := [][]value.Value{{value.Number(1)}, {value.Null()}}
	tbl := table.New(cols, rows)
	out, err := sortRows(tbl, &query.SortRowsOp{SortBy: []query.SortKey{
		{Column: "A", Direction: query.Asc, Nulls: query.NullsFirst},
	}})
	require.NoError(t, err)
	assert.True(t, out.Cell(0, 0).IsNull())
}
