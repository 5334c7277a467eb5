package steps

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sqldef/powerquery/query"
)

func TestTakeSkipRemoveRows(t *testing.T) {
	out, err := take(sampleTable(), &query.TakeOp{N: 1})
	require.NoError(t, err)
	assert.Equal(t, 1, out.RowCount())

	out, err = skip(sampleTable(), &query.SkipOp{N: 1})
	require.NoError(t, err)
	assert.Equal(t, 1, out.RowCount())
	assert.Equal(t, "West", out.Cell(0, 0).String())

	out, err = removeRows(sampleTable(), &query.RemoveRowsOp{Offset: 0, Count: 1})
	require.NoError(t, err)
	assert.Equal(t, 1, out.RowCount())
	assert.Equal(t, "West", out.Cell(0, 0).String())
}

func TestTakeNegativeCount(t *testing.T) {
	_, err := take(sampleTable(), &query.TakeOp{N: -1})
	require.Error(t, err)
}
