package extmerge

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sqldef/powerquery/query"
	"github.com/sqldef/powerquery/streaming"
	"github.com/sqldef/powerquery/table"
	"github.com/sqldef/powerquery/value"
)

func leftCols() []table.Column {
	return []table.Column{{Name: "ID", Type: table.TypeNumber}, {Name: "Name", Type: table.TypeText}}
}

func rightCols() []table.Column {
	return []table.Column{{Name: "ID", Type: table.TypeNumber}, {Name: "Amount", Type: table.TypeNumber}}
}

func TestMergeBelowThresholdFallsBackToInMemory(t *testing.T) {
	left := &SliceSource{Rows: [][]value.Value{
		{value.Number(1), value.Text("Alice")},
		{value.Number(2), value.Text("Bob")},
	}}
	right := &SliceSource{Rows: [][]value.Value{
		{value.Number(1), value.Number(100)},
		{value.Number(2), value.Number(200)},
	}}
	op := &query.MergeOp{
		RightQuery: "right", JoinType: query.JoinInner,
		LeftKeys: []string{"ID"}, RightKeys: []string{"ID"}, JoinMode: query.JoinFlat,
	}
	out, err := Merge(leftCols(), left, rightCols(), right, op, Options{SpillThreshold: 100})
	require.NoError(t, err)
	assert.Equal(t, 2, out.RowCount())
}

func TestMergeSpillsAndJoinsCorrectly(t *testing.T) {
	var leftRows, rightRows [][]value.Value
	for i := 1; i <= 30; i++ {
		leftRows = append(leftRows, []value.Value{value.Number(float64(i)), value.Text("name")})
		rightRows = append(rightRows, []value.Value{value.Number(float64(i)), value.Number(float64(i * 10))})
	}
	left := &SliceSource{Rows: leftRows}
	right := &SliceSource{Rows: rightRows}
	op := &query.MergeOp{
		RightQuery: "right", JoinType: query.JoinInner,
		LeftKeys: []string{"ID"}, RightKeys: []string{"ID"}, JoinMode: query.JoinFlat,
	}
	out, err := Merge(leftCols(), left, rightCols(), right, op, Options{
		SpillThreshold: 5, NumBuckets: 4, Spiller: &streaming.FileSpiller{},
	})
	require.NoError(t, err)
	require.Equal(t, 30, out.RowCount())
	sumAmount := 0.0
	out.IterRows(func(row []value.Value) bool {
		amount, _ := row[len(row)-1].AsNumber()
		sumAmount += amount
		return true
	})
	var want float64
	for i := 1; i <= 30; i++ {
		want += float64(i * 10)
	}
	assert.Equal(t, want, sumAmount)
}

func TestMergeLeftJoinKeepsUnmatchedLeftRows(t *testing.T) {
	left := &SliceSource{Rows: [][]value.Value{
		{value.Number(1), value.Text("Alice")},
		{value.Number(99), value.Text("NoMatch")},
	}}
	right := &SliceSource{Rows: [][]value.Value{
		{value.Number(1), value.Number(100)},
	}}
	op := &query.MergeOp{
		RightQuery: "right", JoinType: query.JoinLeft,
		LeftKeys: []string{"ID"}, RightKeys: []string{"ID"}, JoinMode: query.JoinFlat,
	}
	out, err := Merge(leftCols(), left, rightCols(), right, op, Options{SpillThreshold: 1})
	require.NoError(t, err)
	assert.Equal(t, 2, out.RowCount())
}
