package steps

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sqldef/powerquery/query"
	"github.com/sqldef/powerquery/table"
	"github.com/sqldef/powerquery/value"
)

func TestChangeTypeTextToNumber(t *testing.T) {
	cols := []table.Column{{Name: "A"}}
	rows := [][]value.Value{{value.Text("42")}}
	tbl := table.New(cols, rows)
	out, err := changeType(tbl, &query.ChangeTypeOp{Column: "A", Type: table.TypeNumber})
	require.NoError(t, err)
	assert.Equal(t, table.TypeNumber, out.Columns()[0].Type)
	assert.Equal(t, "42", out.Cell(0, 0).String())
}

func TestChangeTypeInvalidBecomesError(t *testing.T) {
	cols := []table.Column{{Name: "A"}}
	rows := [][]value.Value{{value.Text("not a number")}}
	tbl := table.New(cols, rows)
	out, err := changeType(tbl, &query.ChangeTypeOp{Column: "A", Type: table.TypeNumber})
	require.NoError(t, err)
	assert.True(t, out.Cell(0, 0).IsError())
}

func TestChangeTypeNullPassesThrough(t *testing.T) {
	cols := []table.Column{{Name: "A"}}
	rows := [][]value.Value{{value.Null()}}
	tbl := table.New(cols, rows)
	out, err := changeType(tbl, &query.ChangeTypeOp{Column: "A", Type: table.TypeNumber})
	require.NoError(t, err)
	assert.True(t, out.Cell(0, 0).IsNull())
}

func TestChangeTypeNumberToDateRoundTrips(t *testing.T) {
	cols := []table.Column{{Name: "A"}}
	original := value.Number(45000)
	rows := [][]value.Value{{original}}
	tbl := table.New(cols, rows)

	toDate, err := changeType(tbl, &query.ChangeTypeOp{Column: "A", Type: table.TypeDate})
	require.NoError(t, err)
	require.False(t, toDate.Cell(0, 0).IsError())

	back, err := changeType(toDate, &query.ChangeTypeOp{Column: "A", Type: table.TypeNumber})
	require.NoError(t, err)
	n, ok := back.Cell(0, 0).AsNumber()
	require.True(t, ok)
	assert.InDelta(t, 45000, n, 1)
}
