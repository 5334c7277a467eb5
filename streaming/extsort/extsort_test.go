package extsort

import (
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sqldef/powerquery/query"
	"github.com/sqldef/powerquery/streaming"
	"github.com/sqldef/powerquery/table"
	"github.com/sqldef/powerquery/value"
)

func cols() []table.Column {
	return []table.Column{{Name: "K", Type: table.TypeNumber}, {Name: "Tag", Type: table.TypeText}}
}

func drain(t *testing.T, src RowSource) [][]value.Value {
	t.Helper()
	var out [][]value.Value
	for {
		row, err := src.Next()
		if err == io.EOF {
			return out
		}
		require.NoError(t, err)
		out = append(out, row)
	}
}

func TestSortSingleRunNoSpill(t *testing.T) {
	rows := [][]value.Value{
		{value.Number(3), value.Text("c")},
		{value.Number(1), value.Text("a")},
		{value.Number(2), value.Text("b")},
	}
	out, err := Sort(
		[]query.SortKey{{Column: "K"}},
		cols(), &SliceSource{Rows: rows},
		Options{MaxInMemoryRows: 100},
	)
	require.NoError(t, err)
	got := drain(t, out)
	require.Len(t, got, 3)
	for i, want := range []float64{1, 2, 3} {
		n, _ := got[i][0].AsNumber()
		assert.Equal(t, want, n)
	}
}

func TestSortSpillsAcrossMultipleRuns(t *testing.T) {
	var rows [][]value.Value
	for i := 20; i > 0; i-- {
		rows = append(rows, []value.Value{value.Number(float64(i)), value.Text("x")})
	}
	var spillCount int
	out, err := Sort(
		[]query.SortKey{{Column: "K"}},
		cols(), &SliceSource{Rows: rows},
		Options{MaxInMemoryRows: 5, Spiller: &streaming.FileSpiller{}},
	)
	require.NoError(t, err)
	got := drain(t, out)
	require.Len(t, got, 20)
	for i := 0; i < 20; i++ {
		n, _ := got[i][0].AsNumber()
		assert.Equal(t, float64(i+1), n)
	}
	_ = spillCount
}

func TestSortStableTieBreakPreservesInputOrder(t *testing.T) {
	rows := [][]value.Value{
		{value.Number(1), value.Text("first")},
		{value.Number(1), value.Text("second")},
		{value.Number(1), value.Text("third")},
	}
	out, err := Sort(
		[]query.SortKey{{Column: "K"}},
		cols(), &SliceSource{Rows: rows},
		Options{MaxInMemoryRows: 2, Spiller: streaming.MemSpiller{}},
	)
	require.NoError(t, err)
	got := drain(t, out)
	require.Len(t, got, 3)
	s0, _ := got[0][1].AsText()
	s1, _ := got[1][1].AsText()
	s2, _ := got[2][1].AsText()
	assert.Equal(t, []string{"first", "second", "third"}, []string{s0, s1, s2})
}

func TestSortAscendingWithNullsFirst(t *testing.T) {
	rows := [][]value.Value{
		{value.Number(5), value.Text("a")},
		{value.Null(), value.Text("b")},
		{value.Number(1), value.Text("c")},
	}
	out, err := Sort(
		[]query.SortKey{{Column: "K", Nulls: query.NullsFirst}},
		cols(), &SliceSource{Rows: rows},
		Options{MaxInMemoryRows: 100},
	)
	require.NoError(t, err)
	got := drain(t, out)
	require.Len(t, got, 3)
	assert.True(t, got[0][0].IsNull(), "nulls-first places the null row ahead of every ascending value")
}
