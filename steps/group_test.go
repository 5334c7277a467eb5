package steps

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sqldef/powerquery/query"
	"github.com/sqldef/powerquery/table"
	"github.com/sqldef/powerquery/value"
)

func TestGroupByFirstEncounterOrderAndSum(t *testing.T) {
	cols := []table.Column{{Name: "Region"}, {Name: "Sales", Type: table.TypeNumber}}
	rows := [][]value.Value{
		{value.Text("West"), value.Number(5)},
		{value.Text("East"), value.Number(10)},
		{value.Text("West"), value.Number(7)},
	}
	tbl := table.New(cols, rows)

	out, err := groupBy(tbl, &query.GroupByOp{
		Keys: []string{"Region"},
		Aggs: []query.Aggregation{{Column: "Sales", Op: query.AggSum, As: "Total"}},
	})
	require.NoError(t, err)
	require.Equal(t, 2, out.RowCount())
	assert.Equal(t, "West", out.Cell(0, 0).String(), "first-encounter order: West appeared first")
	assert.Equal(t, "12", out.Cell(0, 1).String())
	assert.Equal(t, "East", out.Cell(1, 0).String())
	assert.Equal(t, "10", out.Cell(1, 1).String())
}

func TestGroupByCountStar(t *testing.T) {
	cols := []table.Column{{Name: "Region"}}
	rows := [][]value.Value{{value.Text("West")}, {value.Text("West")}, {value.Text("East")}}
	tbl := table.New(cols, rows)
	out, err := groupBy(tbl, &query.GroupByOp{
		Keys: []string{"Region"},
		Aggs: []query.Aggregation{{Column: "*", Op: query.AggCount, As: "N"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "2", out.Cell(0, 1).String())
	assert.Equal(t, "1", out.Cell(1, 1).String())
}

func TestGroupByAverageAndMinMax(t *testing.T) {
	cols := []table.Column{{Name: "K"}, {Name: "V", Type: table.TypeNumber}}
	rows := [][]value.Value{
		{value.Text("a"), value.Number(1)},
		{value.Text("a"), value.Number(3)},
	}
	tbl := table.New(cols, rows)
	out, err := groupBy(tbl, &query.GroupByOp{
		Keys: []string{"K"},
		Aggs: []query.Aggregation{
			{Column: "V", Op: query.AggAverage, As: "Avg"},
			{Column: "V", Op: query.AggMin, As: "Min"},
			{Column: "V", Op: query.AggMax, As: "Max"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "2", out.Cell(0, 1).String())
	assert.Equal(t, "1", out.Cell(0, 2).String())
	assert.Equal(t, "3", out.Cell(0, 3).String())
}
