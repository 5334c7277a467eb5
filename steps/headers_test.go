package steps

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sqldef/powerquery/table"
	"github.com/sqldef/powerquery/value"
)

func TestPromoteHeadersUniquifies(t *testing.T) {
	cols := []table.Column{{Name: "A"}, {Name: "B"}}
	rows := [][]value.Value{
		{value.Text("Name"), value.Text("Name")},
		{value.Text("Alice"), value.Number(1)},
	}
	tbl := table.New(cols, rows)
	out, err := promoteHeaders(tbl)
	require.NoError(t, err)
	assert.Equal(t, []string{"Name", "Name·2"}, table.ColumnNames(out.Columns()))
	assert.Equal(t, 1, out.RowCount())
}

func TestDemoteHeaders(t *testing.T) {
	out, err := demoteHeaders(sampleTable())
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B", "C"}, table.ColumnNames(out.Columns()))
	assert.Equal(t, "Region", out.Cell(0, 0).String())
	assert.Equal(t, 3, out.RowCount())
}
