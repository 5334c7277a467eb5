package steps

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sqldef/powerquery/query"
	"github.com/sqldef/powerquery/table"
	"github.com/sqldef/powerquery/value"
)

func TestPivotRows(t *testing.T) {
	cols := []table.Column{{Name: "Region"}, {Name: "Quarter"}, {Name: "Sales", Type: table.TypeNumber}}
	rows := [][]value.Value{
		{value.Text("East"), value.Text("Q1"), value.Number(10)},
		{value.Text("East"), value.Text("Q2"), value.Number(20)},
		{value.Text("West"), value.Text("Q1"), value.Number(5)},
	}
	tbl := table.New(cols, rows)

	out, err := pivotRows(tbl, &query.PivotOp{RowCol: "Quarter", ValueCol: "Sales", Agg: query.AggSum})
	require.NoError(t, err)
	assert.Equal(t, []string{"Region", "Q1", "Q2"}, table.ColumnNames(out.Columns()))
	assert.Equal(t, "East", out.Cell(0, 0).String())
	assert.Equal(t, "10", out.Cell(0, 1).String())
	assert.Equal(t, "20", out.Cell(0, 2).String())
	assert.True(t, out.Cell(1, 2).IsNull(), "West has no Q2 value")
}

func TestUnpivotRows(t *testing.T) {
	cols := []table.Column{{Name: "Region"}, {Name: "Q1", Type: table.TypeNumber}, {Name: "Q2", Type: table.TypeNumber}}
	rows := [][]value.Value{{value.Text("East"), value.Number(10), value.Number(20)}}
	tbl := table.New(cols, rows)

	out, err := unpivotRows(tbl, &query.UnpivotOp{Columns: []string{"Q1", "Q2"}, NameCol: "Quarter", ValueCol: "Sales"})
	require.NoError(t, err)
	require.Equal(t, 2, out.RowCount())
	assert.Equal(t, []string{"Region", "Quarter", "Sales"}, table.ColumnNames(out.Columns()))
	assert.Equal(t, "Q1", out.Cell(0, 1).String())
	assert.Equal(t, "Q2", out.Cell(1, 1).String())
}
