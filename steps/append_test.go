package steps

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sqldef/powerquery/query"
	"github.com/sqldef/powerquery/table"
	"github.com/sqldef/powerquery/value"
)

func TestAppendTablesUnionOfColumns(t *testing.T) {
	left := table.New([]table.Column{{Name: "A"}, {Name: "B"}}, [][]value.Value{{value.Number(1), value.Number(2)}})
	other := table.New([]table.Column{{Name: "B"}, {Name: "C"}}, [][]value.Value{{value.Number(3), value.Number(4)}})

	out, err := appendTables(left, &query.AppendOp{QueryIDs: []string{"other"}}, Deps{"other": other})
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B", "C"}, table.ColumnNames(out.Columns()))
	require.Equal(t, 2, out.RowCount())
	assert.True(t, out.Cell(0, 2).IsNull(), "left row has no C value")
	assert.True(t, out.Cell(1, 0).IsNull(), "other row has no A value")
	assert.Equal(t, "3", out.Cell(1, 1).String())
}

func TestAppendTablesUnknownQueryID(t *testing.T) {
	_, err := appendTables(sampleTable(), &query.AppendOp{QueryIDs: []string{"missing"}}, Deps{})
	require.Error(t, err)
}
