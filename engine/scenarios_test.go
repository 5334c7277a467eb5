package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sqldef/powerquery/connector"
	"github.com/sqldef/powerquery/connector/rangeconn"
	"github.com/sqldef/powerquery/connector/testconn"
	"github.com/sqldef/powerquery/query"
	"github.com/sqldef/powerquery/table"
	"github.com/sqldef/powerquery/value"
)

// TestCsvFilterGroupSort runs a csv-sourced query through filter, group,
// and sort end to end. The csv connector itself has no reference
// implementation (only range/table/database/odata/folder do); testconn
// stands in for it with the already-parsed grid a real csv connector
// would hand back, so the scenario exercises the engine/steps pipeline
// rather than a parser.
func TestCsvFilterGroupSort(t *testing.T) {
	cols := []table.Column{{Name: "Region", Type: table.TypeText}, {Name: "Product", Type: table.TypeText}, {Name: "Sales", Type: table.TypeNumber}}
	rows := [][]value.Value{
		{value.Text("East"), value.Text("A"), value.Number(100)},
		{value.Text("East"), value.Text("B"), value.Number(150)},
		{value.Text("West"), value.Text("A"), value.Number(200)},
		{value.Text("West"), value.Text("B"), value.Number(250)},
	}
	csv := testconn.New(func() (table.Table, error) { return table.New(cols, rows), nil })

	q := &query.Query{
		ID:     "sales",
		Source: query.Source{Kind: query.SourceCsv, Csv: &query.CsvSource{Path: "sales.csv"}},
		Steps: []query.Step{
			{ID: "s1", Operation: query.Operation{Kind: query.OpFilterRows, FilterRows: &query.FilterRowsOp{Predicate: query.Predicate{
				Kind:       query.PredComparison,
				Comparison: &query.Comparison{Column: "Region", Op: query.CmpEquals, Value: value.Text("East")},
			}}}},
			{ID: "s2", Operation: query.Operation{Kind: query.OpGroupBy, GroupBy: &query.GroupByOp{
				Keys: []string{"Region"},
				Aggs: []query.Aggregation{{Column: "Sales", Op: query.AggSum, As: "Total Sales"}},
			}}},
			{ID: "s3", Operation: query.Operation{Kind: query.OpSortRows, SortRows: &query.SortRowsOp{SortBy: []query.SortKey{{Column: "Total Sales", Direction: query.Desc}}}}},
		},
	}
	e := newTestEngine(map[string]connector.Connector{"csv": csv}, map[string]*query.Query{"sales": q})

	result, meta, err := e.Execute(context.Background(), q, Options{})
	require.NoError(t, err)
	assert.Equal(t, 1, meta.RowCount)
	assert.Equal(t, [][]string{{"Region", "Total Sales"}, {"East", "250"}}, result.ToGrid(true))
}

// TestMergeNullKeys runs an inner merge where both sides'
// join key is null, asserting merge treats null == null rather than
// excluding null-keyed rows the way SQL's three-valued logic would.
func TestMergeNullKeys(t *testing.T) {
	left := rangeQuery("left", [][]value.Value{
		{value.Text("Key"), value.Text("Left")},
		{value.Null(), value.Text("L1")},
	})
	right := rangeQuery("right", [][]value.Value{
		{value.Text("Key"), value.Text("Right")},
		{value.Null(), value.Text("R1")},
	})
	left.Steps = []query.Step{
		{ID: "m1", Operation: query.Operation{Kind: query.OpMerge, Merge: &query.MergeOp{
			RightQuery: "right",
			JoinType:   query.JoinInner,
			LeftKeys:   []string{"Key"},
			RightKeys:  []string{"Key"},
			JoinMode:   query.JoinFlat,
		}}},
	}
	queries := map[string]*query.Query{"left": left, "right": right}
	e := newTestEngine(map[string]connector.Connector{rangeconn.ID: rangeconn.New()}, queries)

	result, _, err := e.Execute(context.Background(), left, Options{})
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"Key", "Left", "Right"}, {"", "L1", "R1"}}, result.ToGrid(true))
}
