package steps

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sqldef/powerquery/query"
	"github.com/sqldef/powerquery/table"
	"github.com/sqldef/powerquery/value"
)

func TestExpandTableColumnSelectedColumns(t *testing.T) {
	left, right := leftRight()
	nested, err := merge(left, &query.MergeOp{
		JoinType: query.JoinInner, LeftKeys: []string{"ID"}, RightKeys: []string{"ID"},
		JoinMode: query.JoinNested, NewColumnName: "Details",
	}, right)
	require.NoError(t, err)

	out, err := expandTableColumn(nested, &query.ExpandTableColumnOp{
		Column: "Details", Columns: []string{"City"}, NewColumnNames: []string{"HomeCity"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"ID", "Name", "HomeCity"}, table.ColumnNames(out.Columns()))
	assert.Equal(t, "NYC", out.Cell(0, 2).String())
}

func TestExpandTableColumnSkipsEmptyNested(t *testing.T) {
	emptyNested := table.New([]table.Column{{Name: "X"}}, nil)
	cols := []table.Column{{Name: "ID"}, {Name: "Details"}}
	rows := [][]value.Value{{value.Number(1), value.Table(emptyNested)}}
	tbl := table.New(cols, rows)

	out, err := expandTableColumn(tbl, &query.ExpandTableColumnOp{Column: "Details", Columns: []string{"X"}})
	require.NoError(t, err)
	assert.Equal(t, 0, out.RowCount())
}
