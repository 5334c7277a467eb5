package steps

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sqldef/powerquery/query"
	"github.com/sqldef/powerquery/table"
	"github.com/sqldef/powerquery/value"
)

func TestDistinctRowsAllColumns(t *testing.T) {
	cols := []table.Column{{Name: "A"}}
	rows := [][]value.Value{{value.Number(1)}, {value.Number(1)}, {value.Number(2)}}
	tbl := table.New(cols, rows)
	out, err := distinctRows(tbl, &query.DistinctRowsOp{})
	require.NoError(t, err)
	assert.Equal(t, 2, out.RowCount())
}

func TestDistinctRowsByColumnKeepsFirst(t *testing.T) {
	cols := []table.Column{{Name: "A"}, {Name: "B"}}
	rows := [][]value.Value{
		{value.Number(1), value.Text("first")},
		{value.Number(1), value.Text("second")},
	}
	tbl := table.New(cols, rows)
	out, err := distinctRows(tbl, &query.DistinctRowsOp{Columns: []string{"A"}})
	require.NoError(t, err)
	require.Equal(t, 1, out.RowCount())
	assert.Equal(t, "first", out.Cell(0, 1).String())
}

func TestRemoveRowsWithErrors(t *testing.T) {
	cols := []table.Column{{Name: "A"}}
	rows := [][]value.Value{{value.Number(1)}, {value.Error("boom", nil)}}
	tbl := table.New(cols, rows)
	out, err := removeRowsWithErrors(tbl, &query.RemoveRowsWithErrorsOp{})
	require.NoError(t, err)
	assert.Equal(t, 1, out.RowCount())
}
