package odatafold

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sqldef/powerquery/folding"
	"github.com/sqldef/powerquery/query"
	"github.com/sqldef/powerquery/value"
)

func TestSelectFilterSortTopFoldsEntirely(t *testing.T) {
	b := New()
	steps := []query.Step{
		{Operation: query.Operation{Kind: query.OpSelectColumns, SelectColumns: &query.SelectColumnsOp{Columns: []string{"ID", "Name"}}}},
		{Operation: query.Operation{Kind: query.OpFilterRows, FilterRows: &query.FilterRowsOp{Predicate: query.Predicate{
			Kind:       query.PredComparison,
			Comparison: &query.Comparison{Column: "Age", Op: query.CmpGreater, Value: value.Number(18)},
		}}}},
		{Operation: query.Operation{Kind: query.OpSortRows, SortRows: &query.SortRowsOp{SortBy: []query.SortKey{{Column: "Name", Direction: query.Asc}}}}},
		{Operation: query.Operation{Kind: query.OpTake, Take: &query.TakeOp{N: 10}}},
	}
	plan := folding.Walk(steps, b)
	assert.Equal(t, folding.Remote, plan.Type)

	qs := b.Render()
	assert.Contains(t, qs, "$select=ID%2CName")
	assert.Contains(t, qs, "$filter=Age+gt+18")
	assert.Contains(t, qs, "$orderby=Name+asc")
	assert.Contains(t, qs, "$top=10")
}

func TestFilterAfterTopStopsFolding(t *testing.T) {
	b := New()
	steps := []query.Step{
		{Operation: query.Operation{Kind: query.OpTake, Take: &query.TakeOp{N: 5}}},
		{Operation: query.Operation{Kind: query.OpFilterRows, FilterRows: &query.FilterRowsOp{Predicate: query.Predicate{
			Kind:       query.PredComparison,
			Comparison: &query.Comparison{Column: "Age", Op: query.CmpGreater, Value: value.Number(18)},
		}}}},
	}
	plan := folding.Walk(steps, b)
	assert.Equal(t, folding.Hybrid, plan.Type)
	assert.Equal(t, 1, plan.LocalStepOffset)
}

func TestContainsRendersAsFunctionCall(t *testing.T) {
	b := New()
	steps := []query.Step{
		{Operation: query.Operation{Kind: query.OpFilterRows, FilterRows: &query.FilterRowsOp{Predicate: query.Predicate{
			Kind:       query.PredComparison,
			Comparison: &query.Comparison{Column: "Name", Op: query.CmpContains, Value: value.Text("art")},
		}}}},
	}
	plan := folding.Walk(steps, b)
	assert.Equal(t, folding.Remote, plan.Type)
	qs := b.Render()
	assert.Contains(t, qs, "contains%28Name%2C%27art%27%29")
}

func TestAndOrNotCompose(t *testing.T) {
	pred := query.Predicate{
		Kind: query.PredAnd,
		And: []query.Predicate{
			{Kind: query.PredComparison, Comparison: &query.Comparison{Column: "A", Op: query.CmpEquals, Value: value.Number(1)}},
			{Kind: query.PredNot, Not: &query.Predicate{
				Kind:       query.PredComparison,
				Comparison: &query.Comparison{Column: "B", Op: query.CmpIsNull},
			}},
		},
	}
	expr, ok := renderODataPredicate(pred)
	assert.True(t, ok)
	assert.Equal(t, "(A eq 1 and not (B eq null))", expr)
}

func TestNullsFirstSortDoesNotFold(t *testing.T) {
	b := New()
	steps := []query.Step{
		{Operation: query.Operation{Kind: query.OpSortRows, SortRows: &query.SortRowsOp{SortBy: []query.SortKey{{Column: "Name", Nulls: query.NullsFirst}}}}},
	}
	plan := folding.Walk(steps, b)
	assert.Equal(t, folding.Local, plan.Type)
}
