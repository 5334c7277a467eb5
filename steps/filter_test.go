package steps

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sqldef/powerquery/query"
	"github.com/sqldef/powerquery/table"
	"github.com/sqldef/powerquery/value"
)

func TestFilterRowsSimpleComparison(t *testing.T) {
	out, err := filterRows(sampleTable(), &query.FilterRowsOp{
		Predicate: query.Predicate{
			Kind:       query.PredComparison,
			Comparison: &query.Comparison{Column: "Region", Op: query.CmpEquals, Value: value.Text("West")},
		},
	})
	require.NoError(t, err)
	require.Equal(t, 1, out.RowCount())
	assert.Equal(t, "West", out.Cell(0, 0).String())
}

func TestFilterRowsAndEmptyIsTrue(t *testing.T) {
	out, err := filterRows(sampleTable(), &query.FilterRowsOp{
		Predicate: query.Predicate{Kind: query.PredAnd},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, out.RowCount())
}

func TestFilterRowsOrEmptyIsFalse(t *testing.T) {
	out, err := filterRows(sampleTable(), &query.FilterRowsOp{
		Predicate: query.Predicate{Kind: query.PredOr},
	})
	require.NoError(t, err)
	assert.Equal(t, 0, out.RowCount())
}

func TestFilterRowsUnknownColumn(t *testing.T) {
	_, err := filterRows(sampleTable(), &query.FilterRowsOp{
		Predicate: query.Predicate{
			Kind:       query.PredComparison,
			Comparison: &query.Comparison{Column: "Bogus", Op: query.CmpEquals, Value: value.Text("x")},
		},
	})
	require.Error(t, err)
}

func TestFilterRowsCaseInsensitiveContains(t *testing.T) {
	caseSensitive := false
	cols := []table.Column{{Name: "Name"}}
	tbl := table.New(cols, [][]value.Value{{value.Text("HELLO world")}})
	out, err := filterRows(tbl, &query.FilterRowsOp{
		Predicate: query.Predicate{
			Kind: query.PredComparison,
			Comparison: &query.Comparison{
				Column: "Name", Op: query.CmpContains, Value: value.Text("hello"), CaseSensitive: &caseSensitive,
			},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, out.RowCount())
}
