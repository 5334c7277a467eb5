package steps

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sqldef/powerquery/query"
	"github.com/sqldef/powerquery/table"
	"github.com/sqldef/powerquery/value"
)

func TestAddColumnFormula(t *testing.T) {
	out, err := addColumn(sampleTable(), &query.AddColumnOp{Name: "Doubled", Formula: "[Sales] * 2"})
	require.NoError(t, err)
	assert.Equal(t, "20", out.Cell(0, 3).String())
}

func TestAddColumnDuplicateName(t *testing.T) {
	_, err := addColumn(sampleTable(), &query.AddColumnOp{Name: "Sales", Formula: "1"})
	require.Error(t, err)
}

func TestAddIndexColumnDefaultIncrement(t *testing.T) {
	out, err := addIndexColumn(sampleTable(), &query.AddIndexColumnOp{Name: "Idx", Initial: 1})
	require.NoError(t, err)
	assert.Equal(t, "1", out.Cell(0, 3).String())
	assert.Equal(t, "2", out.Cell(1, 3).String())
}

func TestCombineColumns(t *testing.T) {
	out, err := combineColumns(sampleTable(), &query.CombineColumnsOp{
		Columns: []string{"Region", "Year"}, NewName: "Key", Delimiter: "-",
	})
	require.NoError(t, err)
	assert.Equal(t, "East-2024", out.Cell(0, 0).String())
}

func TestSplitColumnInferredWidth(t *testing.T) {
	cols := []table.Column{{Name: "Full"}}
	rows := [][]value.Value{{value.Text("a,b,c")}, {value.Text("x,y")}}
	tbl := table.New(cols, rows)
	out, err := splitColumn(tbl, &query.SplitColumnOp{Column: "Full", Delimiter: ","})
	require.NoError(t, err)
	assert.Equal(t, []string{"Full.1", "Full.2", "Full.3"}, table.ColumnNames(out.Columns()))
	assert.True(t, out.Cell(1, 2).IsNull())
}

func TestTransformColumnsBoundUnderscore(t *testing.T) {
	out, err := transformColumns(sampleTable(), &query.TransformColumnsOp{
		Transforms: []query.ColumnTransform{{Column: "Region", Formula: "upper(_)"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "EAST", out.Cell(0, 0).String())
}

func TestFillDown(t *testing.T) {
	cols := []table.Column{{Name: "A"}}
	rows := [][]value.Value{{value.Number(1)}, {value.Null()}, {value.Number(3)}}
	tbl := table.New(cols, rows)
	out, err := fillDown(tbl, &query.FillDownOp{Columns: []string{"A"}})
	require.NoError(t, err)
	assert.Equal(t, "1", out.Cell(1, 0).String())
}

func TestReplaceValues(t *testing.T) {
	out, err := replaceValues(sampleTable(), &query.ReplaceValuesOp{
		Column: "Region", Find: value.Text("East"), Replace: value.Text("EAST"),
	})
	require.NoError(t, err)
	assert.Equal(t, "EAST", out.Cell(0, 0).String())
}

func TestReplaceErrorValues(t *testing.T) {
	cols := []table.Column{{Name: "A"}}
	rows := [][]value.Value{{value.Error("bad", nil)}}
	tbl := table.New(cols, rows)
	out, err := replaceErrorValues(tbl, &query.ReplaceErrorValuesOp{
		Replacements: []query.ErrorReplacement{{Column: "A", Replace: value.Number(0)}},
	})
	require.NoError(t, err)
	assert.Equal(t, "0", out.Cell(0, 0).String())
}
