package steps

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sqldef/powerquery/query"
	"github.com/sqldef/powerquery/table"
	"github.com/sqldef/powerquery/value"
)

func leftRight() (table.Table, table.Table) {
	left := table.New(
		[]table.Column{{Name: "ID"}, {Name: "Name"}},
		[][]value.Value{{value.Number(1), value.Text("Alice")}, {value.Number(2), value.Text("Bob")}},
	)
	right := table.New(
		[]table.Column{{Name: "ID"}, {Name: "City"}},
		[][]value.Value{{value.Number(1), value.Text("NYC")}},
	)
	return left, right
}

func TestMergeInnerFlat(t *testing.T) {
	left, right := leftRight()
	out, err := merge(left, &query.MergeOp{
		JoinType: query.JoinInner, LeftKeys: []string{"ID"}, RightKeys: []string{"ID"}, JoinMode: query.JoinFlat,
	}, right)
	require.NoError(t, err)
	assert.Equal(t, 1, out.RowCount())
	assert.Equal(t, "NYC", out.Cell(0, 2).String())
}

func TestMergeLeftFlatFillsNull(t *testing.T) {
	left, right := leftRight()
	out, err := merge(left, &query.MergeOp{
		JoinType: query.JoinLeft, LeftKeys: []string{"ID"}, RightKeys: []string{"ID"}, JoinMode: query.JoinFlat,
	}, right)
	require.NoError(t, err)
	require.Equal(t, 2, out.RowCount())
	assert.True(t, out.Cell(1, 2).IsNull())
}

func TestMergeKeyLengthMismatch(t *testing.T) {
	left, right := leftRight()
	_, err := merge(left, &query.MergeOp{
		LeftKeys: []string{"ID"}, RightKeys: []string{"ID", "City"},
	}, right)
	require.Error(t, err)
}

func TestMergeNestedExpand(t *testing.T) {
	left, right := leftRight()
	out, err := merge(left, &query.MergeOp{
		JoinType: query.JoinInner, LeftKeys: []string{"ID"}, RightKeys: []string{"ID"},
		JoinMode: query.JoinNested, NewColumnName: "Details",
	}, right)
	require.NoError(t, err)
	require.Equal(t, 1, out.RowCount())
	nested, ok := out.Cell(0, 2).AsTable()
	require.True(t, ok)
	assert.Equal(t, 1, nested.RowCount())

	expanded, err := expandTableColumn(out, &query.ExpandTableColumnOp{Column: "Details"})
	require.NoError(t, err)
	assert.Contains(t, table.ColumnNames(expanded.Columns()), "City")
}

func TestMergeCaseInsensitiveComparer(t *testing.T) {
	left := table.New([]table.Column{{Name: "K"}}, [][]value.Value{{value.Text("ABC")}})
	right := table.New([]table.Column{{Name: "K"}, {Name: "V"}}, [][]value.Value{{value.Text("abc"), value.Number(1)}})
	out, err := merge(left, &query.MergeOp{
		JoinType: query.JoinInner, LeftKeys: []string{"K"}, RightKeys: []string{"K"}, JoinMode: query.JoinFlat,
		Comparer: &query.Comparer{Name: "ordinalIgnoreCase"},
	}, right)
	require.NoError(t, err)
	assert.Equal(t, 1, out.RowCount())
}
