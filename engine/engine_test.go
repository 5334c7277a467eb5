package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sqldef/powerquery/cache"
	"github.com/sqldef/powerquery/connector"
	"github.com/sqldef/powerquery/connector/rangeconn"
	"github.com/sqldef/powerquery/connector/testconn"
	"github.com/sqldef/powerquery/query"
	"github.com/sqldef/powerquery/table"
	"github.com/sqldef/powerquery/value"
)

func rangeQuery(id string, values [][]value.Value, steps ...query.Step) *query.Query {
	return &query.Query{ID: id, Source: query.NewRangeSource(values, true), Steps: steps, Cacheable: true}
}

func newTestEngine(conns map[string]connector.Connector, queries map[string]*query.Query) *Engine {
	return &Engine{Connectors: conns, Queries: queries}
}

func TestExecuteSelectAndFilter(t *testing.T) {
	values := [][]value.Value{
		{value.Text("Name"), value.Text("Age")},
		{value.Text("Alice"), value.Number(30)},
		{value.Text("Bob"), value.Number(17)},
	}
	q := rangeQuery("q1", values,
		query.Step{ID: "s1", Operation: query.Operation{Kind: query.OpFilterRows, FilterRows: &query.FilterRowsOp{Predicate: query.Predicate{
			Kind:       query.PredComparison,
			Comparison: &query.Comparison{Column: "Age", Op: query.CmpGreaterEq, Value: value.Number(18)},
		}}}},
	)
	e := newTestEngine(map[string]connector.Connector{rangeconn.ID: rangeconn.New()}, map[string]*query.Query{"q1": q})

	result, meta, err := e.Execute(context.Background(), q, Options{})
	require.NoError(t, err)
	assert.Equal(t, 1, result.RowCount())
	assert.Equal(t, 1, meta.RowCount)
	assert.False(t, meta.FromCache)
}

func TestExecuteMergeCombinesTables(t *testing.T) {
	left := rangeQuery("left", [][]value.Value{
		{value.Text("ID"), value.Text("Name")},
		{value.Number(1), value.Text("Alice")},
		{value.Number(2), value.Text("Bob")},
	})
	right := rangeQuery("right", [][]value.Value{
		{value.Text("ID"), value.Text("City")},
		{value.Number(1), value.Text("Springfield")},
	})
	left.Steps = []query.Step{
		{ID: "m1", Operation: query.Operation{Kind: query.OpMerge, Merge: &query.MergeOp{
			RightQuery: "right",
			JoinType:   query.JoinInner,
			LeftKeys:   []string{"ID"},
			RightKeys:  []string{"ID"},
			JoinMode:   query.JoinFlat,
		}}},
	}
	queries := map[string]*query.Query{"left": left, "right": right}
	e := newTestEngine(map[string]connector.Connector{rangeconn.ID: rangeconn.New()}, queries)

	result, _, err := e.Execute(context.Background(), left, Options{})
	require.NoError(t, err)
	assert.Equal(t, 1, result.RowCount())
}

func TestExecuteDetectsCycle(t *testing.T) {
	a := rangeQuery("a", [][]value.Value{{value.Text("X")}})
	b := rangeQuery("b", [][]value.Value{{value.Text("X")}})
	a.Steps = []query.Step{{ID: "m", Operation: query.Operation{Kind: query.OpAppend, Append: &query.AppendOp{QueryIDs: []string{"b"}}}}}
	b.Steps = []query.Step{{ID: "m", Operation: query.Operation{Kind: query.OpAppend, Append: &query.AppendOp{QueryIDs: []string{"a"}}}}}
	queries := map[string]*query.Query{"a": a, "b": b}
	e := newTestEngine(map[string]connector.Connector{rangeconn.ID: rangeconn.New()}, queries)

	_, _, err := e.Execute(context.Background(), a, Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "CycleError")
}

func TestExecuteCachesResultAndAvoidsReread(t *testing.T) {
	reads := 0
	script := testconn.New(func() (table.Table, error) {
		reads++
		return table.New([]table.Column{{Name: "V"}}, [][]value.Value{{value.Number(float64(reads))}}), nil
	})
	q := &query.Query{ID: "cached", Source: query.Source{Kind: query.SourceApi, Api: &query.ApiSource{Url: "https://example.test/data"}}, Cacheable: true}
	e := newTestEngine(map[string]connector.Connector{"api": script}, map[string]*query.Query{"cached": q})
	store, err := cache.NewMemoryStore(16)
	require.NoError(t, err)
	tick := 0
	e.Cache = cache.NewManager(store, func() int64 { tick++; return int64(tick) })

	_, meta1, err := e.Execute(context.Background(), q, Options{})
	require.NoError(t, err)
	assert.False(t, meta1.FromCache)

	_, meta2, err := e.Execute(context.Background(), q, Options{})
	require.NoError(t, err)
	assert.True(t, meta2.FromCache)
	assert.Equal(t, int64(1), script.Reads())
}

func TestPrivacyFirewallBlocksPrivateMerge(t *testing.T) {
	left := rangeQuery("left", [][]value.Value{
		{value.Text("ID")},
		{value.Number(1)},
	})
	right := rangeQuery("right", [][]value.Value{
		{value.Text("ID")},
		{value.Number(1)},
	})
	left.Steps = []query.Step{
		{ID: "m1", Operation: query.Operation{Kind: query.OpMerge, Merge: &query.MergeOp{
			RightQuery: "right",
			JoinType:   query.JoinInner,
			LeftKeys:   []string{"ID"},
			RightKeys:  []string{"ID"},
			JoinMode:   query.JoinFlat,
		}}},
	}
	queries := map[string]*query.Query{"left": left, "right": right}
	e := newTestEngine(map[string]connector.Connector{rangeconn.ID: rangeconn.New()}, queries)
	e.Privacy = PrivacyPolicy{"left:source": PrivacyPrivate, "right:source": PrivacyOrganizational}

	_, _, err := e.Execute(context.Background(), left, Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "PrivacyBlocked")
}
