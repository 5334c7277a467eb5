package streaming

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sqldef/powerquery/query"
	"github.com/sqldef/powerquery/table"
	"github.com/sqldef/powerquery/value"
)

func cols() []table.Column {
	return []table.Column{{Name: "A"}, {Name: "B", Type: table.TypeNumber}}
}

func TestIsStreamable(t *testing.T) {
	assert.True(t, IsStreamable([]query.Operation{
		{Kind: query.OpSelectColumns, SelectColumns: &query.SelectColumnsOp{Columns: []string{"A"}}},
		{Kind: query.OpTake, Take: &query.TakeOp{N: 5}},
	}))
	assert.False(t, IsStreamable([]query.Operation{{Kind: query.OpGroupBy, GroupBy: &query.GroupByOp{}}}))
}

func TestCompileRejectsNonStreamable(t *testing.T) {
	_, err := Compile(cols(), []query.Operation{{Kind: query.OpGroupBy, GroupBy: &query.GroupByOp{}}})
	require.Error(t, err)
}

func TestPipelineTakeAcrossBatches(t *testing.T) {
	p, err := Compile(cols(), []query.Operation{{Kind: query.OpTake, Take: &query.TakeOp{N: 3}}})
	require.NoError(t, err)

	out1, done1, err := p.TransformBatch([][]value.Value{{value.Text("a"), value.Number(1)}, {value.Text("b"), value.Number(2)}})
	require.NoError(t, err)
	assert.Len(t, out1, 2)
	assert.False(t, done1)

	out2, done2, err := p.TransformBatch([][]value.Value{{value.Text("c"), value.Number(3)}, {value.Text("d"), value.Number(4)}})
	require.NoError(t, err)
	assert.Len(t, out2, 1, "only one more row needed to reach the take quota")
	assert.True(t, done2)
}

func TestPipelineAddIndexColumnContinuesAcrossBatches(t *testing.T) {
	p, err := Compile(cols(), []query.Operation{
		{Kind: query.OpAddIndexColumn, AddIndexColumn: &query.AddIndexColumnOp{Name: "Idx", Initial: 0, Increment: 1}},
	})
	require.NoError(t, err)

	out1, _, err := p.TransformBatch([][]value.Value{{value.Text("a"), value.Number(1)}})
	require.NoError(t, err)
	assert.Equal(t, "0", out1[0][2].String())

	out2, _, err := p.TransformBatch([][]value.Value{{value.Text("b"), value.Number(2)}})
	require.NoError(t, err)
	assert.Equal(t, "1", out2[0][2].String(), "index continues from the previous batch, not reset")
}

func TestPipelinePromoteHeadersSplice(t *testing.T) {
	p, err := Compile(cols(), []query.Operation{{Kind: query.OpPromoteHeaders}})
	require.NoError(t, err)

	out1, _, err := p.TransformBatch([][]value.Value{
		{value.Text("Name"), value.Text("Age")},
		{value.Text("Alice"), value.Number(30)},
	})
	require.NoError(t, err)
	require.Len(t, out1, 1, "header row consumed, one data row remains")
	assert.Equal(t, []string{"Name", "Age"}, table.ColumnNames(p.Columns()))

	out2, _, err := p.TransformBatch([][]value.Value{{value.Text("Bob"), value.Number(40)}})
	require.NoError(t, err)
	assert.Len(t, out2, 1, "second batch has no header row to consume")
}

func TestPipelineRemoveRowsTracksGlobalPosition(t *testing.T) {
	p, err := Compile(cols(), []query.Operation{
		{Kind: query.OpRemoveRows, RemoveRows: &query.RemoveRowsOp{Offset: 1, Count: 1}},
	})
	require.NoError(t, err)

	out1, _, err := p.TransformBatch([][]value.Value{
		{value.Text("a"), value.Number(1)}, {value.Text("b"), value.Number(2)},
	})
	require.NoError(t, err)
	assert.Len(t, out1, 1, "row at global index 1 removed")

	out2, _, err := p.TransformBatch([][]value.Value{{value.Text("c"), value.Number(3)}})
	require.NoError(t, err)
	assert.Len(t, out2, 1, "later batch rows are past the removed window")
}

func TestPipelineSelectAndFilterStateless(t *testing.T) {
	p, err := Compile(cols(), []query.Operation{
		{Kind: query.OpFilterRows, FilterRows: &query.FilterRowsOp{Predicate: query.Predicate{
			Kind:       query.PredComparison,
			Comparison: &query.Comparison{Column: "B", Op: query.CmpGreater, Value: value.Number(1)},
		}}},
		{Kind: query.OpSelectColumns, SelectColumns: &query.SelectColumnsOp{Columns: []string{"A"}}},
	})
	require.NoError(t, err)

	out, _, err := p.TransformBatch([][]value.Value{
		{value.Text("a"), value.Number(1)}, {value.Text("b"), value.Number(2)},
	})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "b", out[0][0].String())
}
