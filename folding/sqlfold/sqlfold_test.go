package sqlfold

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sqldef/powerquery/folding"
	"github.com/sqldef/powerquery/query"
	"github.com/sqldef/powerquery/value"
)

func TestSelectFilterSortTakeFoldsEntirely(t *testing.T) {
	b := New(Postgres, "SELECT * FROM orders", nil)
	steps := []query.Step{
		{Operation: query.Operation{Kind: query.OpSelectColumns, SelectColumns: &query.SelectColumnsOp{Columns: []string{"ID", "Total"}}}},
		{Operation: query.Operation{Kind: query.OpFilterRows, FilterRows: &query.FilterRowsOp{Predicate: query.Predicate{
			Kind:       query.PredComparison,
			Comparison: &query.Comparison{Column: "Total", Op: query.CmpGreater, Value: value.Number(100)},
		}}}},
		{Operation: query.Operation{Kind: query.OpSortRows, SortRows: &query.SortRowsOp{SortBy: []query.SortKey{{Column: "Total", Direction: query.Desc}}}}},
		{Operation: query.Operation{Kind: query.OpTake, Take: &query.TakeOp{N: 10}}},
	}
	plan := folding.Walk(steps, b)
	assert.Equal(t, folding.Remote, plan.Type)

	sql, args := b.Render()
	assert.Contains(t, sql, `"ID", "Total"`)
	assert.Contains(t, sql, "WHERE")
	assert.Contains(t, sql, "$1")
	assert.Contains(t, sql, "ORDER BY")
	assert.Contains(t, sql, "LIMIT $2")
	require.Len(t, args, 2)
	n, ok := args[1].AsNumber()
	require.True(t, ok)
	assert.Equal(t, 10.0, n)
}

func TestAddColumnAfterLimitStopsFolding(t *testing.T) {
	b := New(Postgres, "SELECT * FROM orders", nil)
	steps := []query.Step{
		{Operation: query.Operation{Kind: query.OpTake, Take: &query.TakeOp{N: 5}}},
		{Operation: query.Operation{Kind: query.OpAddColumn, AddColumn: &query.AddColumnOp{Name: "Double", Formula: "[Total] * 2"}}},
	}
	plan := folding.Walk(steps, b)
	assert.Equal(t, folding.Hybrid, plan.Type)
	assert.Equal(t, 1, plan.LocalStepOffset)
}

func TestUnsupportedAggRefusesGroupBy(t *testing.T) {
	b := New(Postgres, "SELECT * FROM sales", nil)
	steps := []query.Step{
		{Operation: query.Operation{Kind: query.OpGroupBy, GroupBy: &query.GroupByOp{
			Keys: []string{"Region"},
			Aggs: []query.Aggregation{{Column: "Id", Op: query.AggCountDistinct}},
		}}},
	}
	plan := folding.Walk(steps, b)
	assert.Equal(t, folding.Local, plan.Type)
}

func TestGroupBySumFolds(t *testing.T) {
	b := New(MySQL, "SELECT * FROM sales", nil)
	steps := []query.Step{
		{Operation: query.Operation{Kind: query.OpGroupBy, GroupBy: &query.GroupByOp{
			Keys: []string{"Region"},
			Aggs: []query.Aggregation{{Column: "Amount", Op: query.AggSum, As: "Total"}},
		}}},
	}
	plan := folding.Walk(steps, b)
	assert.Equal(t, folding.Remote, plan.Type)
	sql, _ := b.Render()
	assert.Contains(t, sql, "SUM(")
	assert.Contains(t, sql, "GROUP BY")
}

func TestMergeAcrossConnectionsStaysLocalWithDiagnostic(t *testing.T) {
	b := New(Postgres, "SELECT * FROM orders", func(id string) (string, bool) { return "", false })
	steps := []query.Step{
		{Operation: query.Operation{Kind: query.OpMerge, Merge: &query.MergeOp{
			RightQuery: "customers", JoinType: query.JoinInner, JoinMode: query.JoinFlat,
			LeftKeys: []string{"CustomerID"}, RightKeys: []string{"ID"},
		}}},
	}
	plan := folding.Walk(steps, b)
	assert.Equal(t, folding.Local, plan.Type)
	require.Len(t, plan.Diagnostics, 1)
	assert.True(t, plan.Diagnostics[0].Blocked)
}

func TestMergeSameConnectionFolds(t *testing.T) {
	b := New(Postgres, "SELECT * FROM orders", func(id string) (string, bool) { return "SELECT * FROM customers", true })
	steps := []query.Step{
		{Operation: query.Operation{Kind: query.OpMerge, Merge: &query.MergeOp{
			RightQuery: "customers", JoinType: query.JoinInner, JoinMode: query.JoinFlat,
			LeftKeys: []string{"CustomerID"}, RightKeys: []string{"ID"},
		}}},
	}
	plan := folding.Walk(steps, b)
	assert.Equal(t, folding.Remote, plan.Type)
	sql, _ := b.Render()
	assert.Contains(t, sql, "INNER JOIN")
}

func TestMSSQLLimitWrapsWithTop(t *testing.T) {
	b := New(SQLServer, "SELECT * FROM orders", nil)
	steps := []query.Step{{Operation: query.Operation{Kind: query.OpTake, Take: &query.TakeOp{N: 20}}}}
	folding.Walk(steps, b)
	sql, _ := b.Render()
	assert.Contains(t, sql, "TOP (@p1)")
}

func TestMSSQLLimitUsesFetchNextWhenOffsetPresent(t *testing.T) {
	b := New(SQLServer, "SELECT * FROM orders ORDER BY Id OFFSET 5 ROWS", nil)
	steps := []query.Step{{Operation: query.Operation{Kind: query.OpTake, Take: &query.TakeOp{N: 20}}}}
	folding.Walk(steps, b)
	sql, _ := b.Render()
	assert.Contains(t, sql, "FETCH NEXT @p1 ROWS ONLY")
}

func TestPostgresPlaceholderPreservesJsonbOperator(t *testing.T) {
	b := New(Postgres, `SELECT * FROM events WHERE payload ? 'key'`, nil)
	steps := []query.Step{
		{Operation: query.Operation{Kind: query.OpFilterRows, FilterRows: &query.FilterRowsOp{Predicate: query.Predicate{
			Kind:       query.PredComparison,
			Comparison: &query.Comparison{Column: "Id", Op: query.CmpEquals, Value: value.Number(1)},
		}}}},
	}
	folding.Walk(steps, b)
	sql, args := b.Render()
	assert.Contains(t, sql, "payload ? 'key'")
	assert.Contains(t, sql, "$1")
	require.Len(t, args, 1)
}

func TestArithRenderRejectsUnknownTokens(t *testing.T) {
	_, ok := renderArith("[Total] + foo(1)")
	assert.False(t, ok)
}

func TestArithRenderAcceptsNestedExpression(t *testing.T) {
	sql, ok := renderArith("([A] + [B]) * 2")
	require.True(t, ok)
	assert.Equal(t, `((("A" + "B")) * 2)`, sql)
}
